package bets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/R3E-Network/lotterybets/internal/app/metrics"
	"github.com/R3E-Network/lotterybets/internal/inflight"
	"github.com/R3E-Network/lotterybets/pkg/logger"
)

// DefaultBatchConcurrency bounds ReconcileBatch fan-out.
const DefaultBatchConcurrency = 4

// Engine reconciles bets against official draw results. Each bet is fetched and written at
// most once: concurrent in-process callers share one attempt and a Guard excludes other
// processes.
type Engine struct {
	store       Store
	provider    Provider
	registry    *Registry
	guard       Guard
	retry       RetryPolicy
	concurrency int
	log         *logger.Logger
	flight      singleflight.Group

	mu    sync.Mutex
	calls map[string]*sharedCall
}

// sharedCall is the context of one in-process reconciliation attempt. It outlives any
// single caller and is cancelled only when every waiter has abandoned it.
type sharedCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithGuard replaces the default in-process guard.
func WithGuard(g Guard) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.guard = g
		}
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(e *Engine) { e.retry = p }
}

// WithBatchConcurrency bounds ReconcileBatch fan-out.
func WithBatchConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine creates a reconciliation engine.
func NewEngine(store Store, provider Provider, registry *Registry, log *logger.Logger, opts ...EngineOption) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if log == nil {
		log = logger.NewDefault("reconcile")
	}
	e := &Engine{
		store:       store,
		provider:    provider,
		registry:    registry,
		guard:       inflight.NewMemory(),
		retry:       DefaultRetryPolicy(),
		concurrency: DefaultBatchConcurrency,
		log:         log,
		calls:       make(map[string]*sharedCall),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile matches bet against its contest's draw result and persists the outcome.
// A consulted bet with a cached result is answered from the cache without contacting the
// provider. On any error the stored bet is left untouched.
func (e *Engine) Reconcile(ctx context.Context, bet BetSpec) (Outcome, error) {
	start := time.Now()
	outcome, err := e.reconcile(ctx, bet)

	label := Kind(err)
	if err == nil {
		label = string(outcome.Status)
		if outcome.FromCache {
			label = "cached"
		}
	}
	metrics.RecordReconciliation(bet.ModalityID, label, time.Since(start))
	return outcome, err
}

func (e *Engine) reconcile(ctx context.Context, bet BetSpec) (Outcome, error) {
	if bet.Consulted && bet.CachedResult != nil {
		return e.cachedOutcome(bet), nil
	}
	if bet.Status.Terminal() {
		return Outcome{}, fmt.Errorf("%w: bet %s is %s without a cached result", ErrInvalidTransition, bet.ID, bet.Status)
	}

	call := e.join(ctx, bet.ID)
	ch := e.flight.DoChan(bet.ID, func() (interface{}, error) {
		return e.reconcileFresh(call.ctx, bet.ID)
	})

	select {
	case res := <-ch:
		e.leave(bet.ID, call, false)
		if res.Err != nil {
			return Outcome{}, res.Err
		}
		if res.Shared {
			e.log.WithField("bet_id", bet.ID).Debug("joined in-flight reconciliation")
		}
		return res.Val.(Outcome), nil
	case <-ctx.Done():
	}

	if !e.leave(bet.ID, call, true) {
		// Others are still waiting; the attempt carries on without this caller.
		return Outcome{}, ctx.Err()
	}
	// Last waiter: the attempt is cancelled, wait so nothing lands after we return.
	res := <-ch
	if res.Err == nil {
		return res.Val.(Outcome), nil
	}
	return Outcome{}, ctx.Err()
}

// join registers a waiter on the shared attempt for key, creating it if needed.
func (e *Engine) join(ctx context.Context, key string) *sharedCall {
	e.mu.Lock()
	defer e.mu.Unlock()

	call, ok := e.calls[key]
	if !ok {
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &sharedCall{ctx: sctx, cancel: cancel}
		e.calls[key] = call
	}
	call.waiters++
	return call
}

// leave drops a waiter and reports whether it was the last one. The last waiter releases
// the shared context; when it abandons, the attempt is also forgotten so later callers
// start afresh instead of joining a cancelled one.
func (e *Engine) leave(key string, call *sharedCall, abandoned bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return false
	}
	if e.calls[key] == call {
		delete(e.calls, key)
	}
	if abandoned {
		e.flight.Forget(key)
	}
	call.cancel()
	return true
}

func (e *Engine) reconcileFresh(ctx context.Context, betID string) (Outcome, error) {
	release, ok, err := e.guard.Acquire(ctx, betID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: bet %s: %v", ErrInProgress, betID, err)
	}
	if !ok {
		return Outcome{}, fmt.Errorf("%w: bet %s", ErrInProgress, betID)
	}
	defer release()

	// Re-read under the guard; another process may have finished while we waited.
	bet, err := e.store.GetByID(ctx, betID)
	if err != nil {
		if errors.Is(err, ErrBetNotFound) {
			return Outcome{}, err
		}
		return Outcome{}, &PersistenceError{BetID: betID, Err: err}
	}
	if bet.Consulted && bet.CachedResult != nil {
		return e.cachedOutcome(bet), nil
	}
	if _, err := NextStatus(bet.Status, StatusFinalized); err != nil {
		return Outcome{}, err
	}

	rule, known := e.registry.Lookup(bet.ModalityID)
	if !known {
		e.log.WithField("bet_id", bet.ID).
			WithField("modality", bet.ModalityID).
			Warn("unknown modality, reconciling with default rule")
	}

	result, err := e.fetch(ctx, bet)
	if err != nil {
		return Outcome{}, err
	}
	result = CanonicalizeDraw(result, rule)

	matches := MatchCount(bet.Numbers, result.WinningNumbers)
	status, err := NextStatus(bet.Status, StatusForMatches(matches, rule))
	if err != nil {
		return Outcome{}, err
	}

	// Nothing has been written yet; a cancelled caller leaves no trace.
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	var updated BetSpec
	err = e.retry.Do(ctx, isRetryableWrite, func(ctx context.Context) error {
		var werr error
		updated, werr = e.store.UpdateStatusAndCache(ctx, bet.ID, true, &result, status)
		return werr
	})
	if errors.Is(err, ErrAlreadyReconciled) {
		current, gerr := e.store.GetByID(ctx, bet.ID)
		if gerr == nil && current.Consulted && current.CachedResult != nil {
			return e.cachedOutcome(current), nil
		}
	}
	if err != nil {
		e.log.WithError(err).WithField("bet_id", bet.ID).Error("persist reconciliation failed")
		return Outcome{}, &PersistenceError{BetID: bet.ID, Err: err}
	}

	e.log.WithField("bet_id", updated.ID).
		WithField("modality", rule.ModalityID).
		WithField("contest", bet.ContestNumber).
		WithField("match_count", matches).
		WithField("status", status).
		Info("bet reconciled")

	return Outcome{
		BetID:            updated.ID,
		MatchCount:       matches,
		CloverMatchCount: MatchCount(bet.Clovers, result.WinningClovers),
		Status:           status,
		FromCache:        false,
		Result:           updated.CachedResult,
	}, nil
}

// fetch retrieves and normalizes the bet's draw result.
func (e *Engine) fetch(ctx context.Context, bet BetSpec) (DrawResult, error) {
	var payload []byte
	err := e.retry.Do(ctx, isRetryableFetch, func(ctx context.Context) error {
		p, err := e.provider.GetResult(ctx, bet.ModalityID, bet.ContestNumber)
		if err != nil {
			metrics.RecordProviderFetch(bet.ModalityID, fetchLabel(err))
			return err
		}
		metrics.RecordProviderFetch(bet.ModalityID, "success")
		payload = p
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrResultNotFound):
		return DrawResult{}, fmt.Errorf("%w: %s contest %d", ErrNotYetDrawn, bet.ModalityID, bet.ContestNumber)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return DrawResult{}, ctx.Err()
		}
		return DrawResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	default:
		return DrawResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	result, err := NormalizeDrawResult(payload)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotYetDrawn):
		return DrawResult{}, err
	default:
		return DrawResult{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	if result.ContestNumber != 0 && result.ContestNumber != bet.ContestNumber {
		return DrawResult{}, fmt.Errorf("%w: provider answered contest %d for %d",
			ErrNotYetDrawn, result.ContestNumber, bet.ContestNumber)
	}
	if result.ContestNumber == 0 {
		result.ContestNumber = bet.ContestNumber
	}
	if result.ModalityID == "" {
		result.ModalityID = NormalizeModalityID(bet.ModalityID)
	}
	return result, nil
}

func (e *Engine) cachedOutcome(bet BetSpec) Outcome {
	return Outcome{
		BetID:            bet.ID,
		MatchCount:       MatchCount(bet.Numbers, bet.CachedResult.WinningNumbers),
		CloverMatchCount: MatchCount(bet.Clovers, bet.CachedResult.WinningClovers),
		Status:           bet.Status,
		FromCache:        true,
		Result:           bet.CachedResult,
	}
}

// BatchItem is the per-bet result of ReconcileBatch. Exactly one of Outcome and Err is set.
type BatchItem struct {
	BetID   string
	Outcome *Outcome
	Err     error
}

// ReconcileBatch reconciles every bet independently with bounded concurrency. One bet's
// failure never prevents the others from being processed. Items keep the input order.
func (e *Engine) ReconcileBatch(ctx context.Context, bets []BetSpec) []BatchItem {
	items := make([]BatchItem, len(bets))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range bets {
		i := i
		g.Go(func() error {
			items[i].BetID = bets[i].ID
			outcome, err := e.Reconcile(ctx, bets[i])
			if err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Outcome = &outcome
			return nil
		})
	}
	_ = g.Wait()

	e.log.WithField("bets", len(bets)).
		WithField("failed", countFailed(items)).
		Debug("batch reconciliation finished")
	return items
}

// MatchCount returns the size of the intersection of chosen and winning.
func MatchCount(chosen, winning []int) int {
	if len(chosen) == 0 || len(winning) == 0 {
		return 0
	}
	drawn := make(map[int]struct{}, len(winning))
	for _, n := range winning {
		drawn[n] = struct{}{}
	}
	count := 0
	counted := make(map[int]struct{}, len(chosen))
	for _, n := range chosen {
		if _, ok := drawn[n]; !ok {
			continue
		}
		if _, dup := counted[n]; dup {
			continue
		}
		counted[n] = struct{}{}
		count++
	}
	return count
}

func countFailed(items []BatchItem) int {
	n := 0
	for _, it := range items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

func isRetryableFetch(err error) bool {
	return !errors.Is(err, ErrResultNotFound) &&
		!errors.Is(err, context.Canceled)
}

func isRetryableWrite(err error) bool {
	return !errors.Is(err, ErrAlreadyReconciled) &&
		!errors.Is(err, ErrBetNotFound) &&
		!errors.Is(err, context.Canceled)
}

func fetchLabel(err error) string {
	if errors.Is(err, ErrResultNotFound) {
		return "not_found"
	}
	return "error"
}
