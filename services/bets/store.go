package bets

import (
	"context"
	"time"
)

// Store persists bets. Implementations must make UpdateStatusAndCache a single conditional
// write: it lands only while the bet is still pending and unconsulted, and either all of
// {consulted, cached result, status} change or none do.
type Store interface {
	ListByOwner(ctx context.Context, ownerID string) ([]BetSpec, error)
	GetByID(ctx context.Context, id string) (BetSpec, error)
	Create(ctx context.Context, bet BetSpec) (BetSpec, error)
	UpdateStatusAndCache(ctx context.Context, id string, consulted bool, cached *DrawResult, status Status) (BetSpec, error)
	// ListUnconsulted returns pending bets with never-attempted ones first.
	ListUnconsulted(ctx context.Context, limit int) ([]BetSpec, error)
	// MarkAttempted records a failed reconciliation so ListUnconsulted rotates past it.
	MarkAttempted(ctx context.Context, ids []string, at time.Time) error
}

// Provider fetches raw official results. contest 0 asks for the latest drawn contest.
// A contest the provider has no record of yields an error wrapping ErrResultNotFound.
type Provider interface {
	GetResult(ctx context.Context, modalityID string, contest int) ([]byte, error)
}

// Guard is a cross-process in-flight marker keyed by bet id. Acquire is an atomic
// check-and-set; it returns false when another holder owns the key.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}
