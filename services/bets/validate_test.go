package bets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(DefaultRegistry())

	tests := []struct {
		name     string
		modality string
		numbers  []int
		wantErr  error
	}{
		{"MegaSenaSix", "megasena", []int{1, 2, 3, 4, 5, 6}, nil},
		{"MegaSenaTooFew", "megasena", []int{1, 2, 3, 4, 5}, ErrInvalidCount},
		{"MegaSenaTooMany", "megasena", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, ErrInvalidCount},
		{"MegaSenaOutOfRange", "megasena", []int{1, 2, 3, 4, 5, 61}, ErrInvalidRange},
		{"MegaSenaZero", "megasena", []int{0, 2, 3, 4, 5, 6}, ErrInvalidRange},
		{"MegaSenaDuplicate", "megasena", []int{1, 2, 3, 4, 5, 5}, ErrDuplicateNumber},
		{"QuinaFive", "quina", []int{10, 20, 30, 40, 80}, nil},
		{"LotomaniaExactlyFifty", "lotomania", seq(1, 50), nil},
		{"LotomaniaFortyNine", "lotomania", seq(1, 49), ErrInvalidCount},
		{"UnknownUsesDefault", "bolao-x", []int{1, 2, 3, 4, 5, 60}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.modality, tt.numbers)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestValidator_ValidateSelection_Clovers(t *testing.T) {
	v := NewValidator(DefaultRegistry())
	numbers := []int{1, 2, 3, 4, 5, 6}

	report := v.ValidateSelection("maismilionaria", numbers, []int{1, 2})
	assert.True(t, report.OK())

	report = v.ValidateSelection("maismilionaria", []int{1, 2, 3}, []int{7, 7})
	assert.ErrorIs(t, report.Numbers, ErrInvalidCount)
	assert.ErrorIs(t, report.Clovers, ErrInvalidRange, "both channels are reported together")
	assert.ErrorIs(t, report.Err(), ErrInvalidCount)

	report = v.ValidateSelection("maismilionaria", numbers, []int{1})
	assert.NoError(t, report.Numbers)
	assert.ErrorIs(t, report.Clovers, ErrInvalidCount)

	report = v.ValidateSelection("maismilionaria", numbers, []int{3, 3})
	assert.ErrorIs(t, report.Clovers, ErrDuplicateNumber)

	report = v.ValidateSelection("megasena", numbers, []int{1, 2})
	assert.ErrorIs(t, report.Clovers, ErrInvalidCount, "clovers on a modality without clovers")
}

// Validate succeeds iff the count is within bounds, every number is in [1,pool] and there
// are no duplicates.
func TestValidator_Property(t *testing.T) {
	reg := DefaultRegistry()
	v := NewValidator(reg)
	rules := reg.Rules()

	rapid.Check(t, func(t *rapid.T) {
		rule := rules[rapid.IntRange(0, len(rules)-1).Draw(t, "rule")]
		numbers := rapid.SliceOfN(rapid.IntRange(-2, rule.Pool+2), 0, rule.MaxNumbers+2).Draw(t, "numbers")

		inRange, unique := true, true
		seen := map[int]bool{}
		for _, n := range numbers {
			if n < 1 || n > rule.Pool {
				inRange = false
			}
			if seen[n] {
				unique = false
			}
			seen[n] = true
		}
		want := len(numbers) >= rule.MinNumbers && len(numbers) <= rule.MaxNumbers && inRange && unique

		err := v.Validate(rule.ModalityID, numbers)
		if (err == nil) != want {
			t.Fatalf("Validate(%s, %v) = %v, want ok=%v", rule.ModalityID, numbers, err, want)
		}
		if err != nil && !IsValidationError(err) {
			t.Fatalf("unexpected error kind: %v", err)
		}
	})
}

func TestValidator_DoesNotMutateInput(t *testing.T) {
	v := NewValidator(DefaultRegistry())
	numbers := []int{6, 5, 4, 3, 2, 1}
	require.NoError(t, v.Validate("megasena", numbers))
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, numbers)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "invalid_count", Kind(ErrInvalidCount))
	assert.Equal(t, "not_yet_drawn", Kind(ErrNotYetDrawn))
	assert.Equal(t, "persistence_error", Kind(&PersistenceError{BetID: "b", Err: errors.New("boom")}))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
	assert.Equal(t, "", Kind(nil))
	assert.True(t, IsRetryable(ErrProviderUnavailable))
	assert.False(t, IsRetryable(ErrDuplicateNumber))
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
