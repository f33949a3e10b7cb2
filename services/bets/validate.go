package bets

import (
	"fmt"
	"sort"
)

// SelectionReport carries the number-set and clover-set verdicts separately so both can be
// shown at once. A nil field means that set is valid.
type SelectionReport struct {
	Numbers error
	Clovers error
}

// OK reports whether both sets passed.
func (r SelectionReport) OK() bool {
	return r.Numbers == nil && r.Clovers == nil
}

// Err returns the first failure, numbers before clovers.
func (r SelectionReport) Err() error {
	if r.Numbers != nil {
		return r.Numbers
	}
	return r.Clovers
}

// Validator checks number selections against the registry's rules.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator backed by registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks numbers against the rule of modalityID.
func (v *Validator) Validate(modalityID string, numbers []int) error {
	rule, _ := v.registry.Lookup(modalityID)
	return checkSet(numbers, rule.MinNumbers, rule.MaxNumbers, rule.Pool)
}

// ValidateSelection checks numbers and, for modalities that draw clovers, the clover set.
// Clovers sent for a modality without a clover rule are reported as an invalid count.
func (v *Validator) ValidateSelection(modalityID string, numbers, clovers []int) SelectionReport {
	rule, _ := v.registry.Lookup(modalityID)
	report := SelectionReport{
		Numbers: checkSet(numbers, rule.MinNumbers, rule.MaxNumbers, rule.Pool),
	}
	switch {
	case rule.Clovers != nil:
		if err := checkSet(clovers, rule.Clovers.Min, rule.Clovers.Max, rule.Clovers.Pool); err != nil {
			report.Clovers = fmt.Errorf("clovers: %w", err)
		}
	case len(clovers) > 0:
		report.Clovers = fmt.Errorf("clovers: %w: modality %s does not draw clovers", ErrInvalidCount, rule.ModalityID)
	}
	return report
}

func checkSet(numbers []int, min, max, pool int) error {
	if len(numbers) < min || len(numbers) > max {
		return fmt.Errorf("%w: got %d, want between %d and %d", ErrInvalidCount, len(numbers), min, max)
	}
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > pool {
			return fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidRange, n, pool)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateNumber, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// sortedCopy returns numbers in ascending order without touching the input.
func sortedCopy(numbers []int) []int {
	if numbers == nil {
		return nil
	}
	out := append([]int(nil), numbers...)
	sort.Ints(out)
	return out
}
