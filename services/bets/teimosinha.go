package bets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GenerateSequence expands base into repeatCount bets on consecutive contests starting at
// base.ContestNumber. repeatCount must be one of rule's multipliers. Children share a batch
// id and carry IsRepeating=false; the repetition belongs to the batch, not to any one bet.
func GenerateSequence(base BetSpec, repeatCount int, rule GameRule) ([]BetSpec, error) {
	if !rule.AllowsRepeat(repeatCount) {
		return nil, fmt.Errorf("%w: %d not in %v", ErrInvalidRepeatCount, repeatCount, rule.Multipliers)
	}

	batchID := uuid.New().String()
	out := make([]BetSpec, repeatCount)
	for i := range out {
		child := base
		child.ID = ""
		child.ContestNumber = base.ContestNumber + i
		child.Numbers = sortedCopy(base.Numbers)
		child.Clovers = sortedCopy(base.Clovers)
		child.Repetition = Repetition{
			IsRepeating:   false,
			RepeatCount:   repeatCount,
			SequenceIndex: i + 1,
			SequenceTotal: repeatCount,
			BatchID:       batchID,
		}
		out[i] = child
	}
	return out, nil
}

// ItemFailure records one bet of a batch that could not be stored.
type ItemFailure struct {
	SequenceIndex int    `json:"sequence_index"`
	ContestNumber int    `json:"contest_number"`
	Error         string `json:"error"`
	Kind          string `json:"kind"`
	err           error
}

// Unwrap exposes the underlying store error.
func (f ItemFailure) Unwrap() error { return f.err }

// BatchReport aggregates the per-item result of submitting a batch.
type BatchReport struct {
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Bets      []BetSpec     `json:"bets"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// Summary renders the aggregate count, e.g. "8 of 10 succeeded".
func (r BatchReport) Summary() string {
	return fmt.Sprintf("%d of %d succeeded", r.Succeeded, r.Requested)
}

// Complete reports whether every item was stored.
func (r BatchReport) Complete() bool {
	return r.Succeeded == r.Requested
}

// SubmitBatch stores each bet independently. A failed item is recorded and the remaining
// items are still submitted. Only context cancellation stops the loop early; the items not
// attempted are reported as failures.
func SubmitBatch(ctx context.Context, store Store, batch []BetSpec) BatchReport {
	report := BatchReport{Requested: len(batch)}
	for i, bet := range batch {
		if err := ctx.Err(); err != nil {
			for _, rest := range batch[i:] {
				report.Failures = append(report.Failures, newItemFailure(rest, err))
			}
			break
		}
		created, err := store.Create(ctx, bet)
		if err != nil {
			report.Failures = append(report.Failures, newItemFailure(bet, &PersistenceError{BetID: bet.ID, Err: err}))
			continue
		}
		report.Succeeded++
		report.Bets = append(report.Bets, created)
	}
	return report
}

func newItemFailure(bet BetSpec, err error) ItemFailure {
	return ItemFailure{
		SequenceIndex: bet.Repetition.SequenceIndex,
		ContestNumber: bet.ContestNumber,
		Error:         err.Error(),
		Kind:          Kind(err),
		err:           err,
	}
}
