// Package sweeper periodically reconciles bets nobody has checked yet.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/lotterybets/internal/app/metrics"
	"github.com/R3E-Network/lotterybets/pkg/logger"
	"github.com/R3E-Network/lotterybets/services/bets"
)

// Defaults applied by New when Config leaves them unset.
const (
	DefaultSchedule  = "@every 10m"
	DefaultBatchSize = 200
	DefaultTimeout   = 5 * time.Minute
)

// Source lists bets awaiting reconciliation. MarkAttempted pushes bets whose attempt
// failed behind the rest, so undrawn contests cannot monopolise a sweep.
type Source interface {
	ListUnconsulted(ctx context.Context, limit int) ([]bets.BetSpec, error)
	MarkAttempted(ctx context.Context, ids []string, at time.Time) error
}

// Reconciler reconciles a batch of bets independently.
type Reconciler interface {
	ReconcileBatch(ctx context.Context, list []bets.BetSpec) []bets.BatchItem
}

// Config controls the sweep cadence.
type Config struct {
	Schedule  string
	BatchSize int
	Timeout   time.Duration
}

// Report summarises one sweep.
type Report struct {
	Scanned    int
	Reconciled int
	Pending    int
	Failed     int
}

// Sweeper runs reconciliation sweeps on a cron schedule.
type Sweeper struct {
	source     Source
	reconciler Reconciler
	cfg        Config
	log        *logger.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a sweeper.
func New(source Source, reconciler Reconciler, cfg Config, log *logger.Logger) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewDefault("sweeper")
	}
	return &Sweeper{source: source, reconciler: reconciler, cfg: cfg, log: log}
}

// Start schedules sweeps until Stop is called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(s.log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(s.log)),
	))
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Warn("sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.cron = c

	s.log.WithField("schedule", s.cfg.Schedule).
		WithField("batch_size", s.cfg.BatchSize).
		Info("sweeper started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("sweeper stopped")
}

// RunOnce reconciles up to BatchSize unconsulted bets.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	list, err := s.source.ListUnconsulted(ctx, s.cfg.BatchSize)
	if err != nil {
		metrics.RecordSweep(false)
		return Report{}, fmt.Errorf("list unconsulted bets: %w", err)
	}

	report := Report{Scanned: len(list)}
	if len(list) == 0 {
		metrics.RecordSweep(true)
		return report, nil
	}

	var attempted []string
	for _, item := range s.reconciler.ReconcileBatch(ctx, list) {
		if item.Err != nil && !errors.Is(item.Err, bets.ErrInProgress) {
			attempted = append(attempted, item.BetID)
		}
		switch {
		case item.Err == nil:
			report.Reconciled++
		case errors.Is(item.Err, bets.ErrNotYetDrawn), errors.Is(item.Err, bets.ErrInProgress):
			report.Pending++
		default:
			report.Failed++
			s.log.WithField("bet_id", item.BetID).
				WithField("kind", bets.Kind(item.Err)).
				WithError(item.Err).
				Warn("sweep could not reconcile bet")
		}
	}

	if err := s.source.MarkAttempted(ctx, attempted, time.Now()); err != nil {
		s.log.WithError(err).WithField("bets", len(attempted)).Warn("record sweep attempts failed")
	}

	metrics.RecordSweep(report.Failed == 0)
	s.log.WithField("scanned", report.Scanned).
		WithField("reconciled", report.Reconciled).
		WithField("pending", report.Pending).
		WithField("failed", report.Failed).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("sweep finished")
	return report, nil
}
