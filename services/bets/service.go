package bets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/R3E-Network/lotterybets/internal/app/metrics"
	"github.com/R3E-Network/lotterybets/pkg/logger"
)

// GroupRequest asks for a bet to be shared among participants.
type GroupRequest struct {
	Name         string        `json:"name"`
	Participants []Participant `json:"participants"`
}

// SubmitRequest is one bet submission, optionally repeated and/or shared.
type SubmitRequest struct {
	OwnerID       string        `json:"-"`
	Creator       Participant   `json:"-"`
	ModalityID    string        `json:"modality_id"`
	ContestNumber int           `json:"contest_number"`
	Numbers       []int         `json:"numbers"`
	Clovers       []int         `json:"clovers,omitempty"`
	RepeatCount   int           `json:"repeat_count,omitempty"`
	Group         *GroupRequest `json:"group,omitempty"`
}

// ListFilter narrows ListByOwner results. Zero values match everything.
type ListFilter struct {
	ModalityID string
	Status     Status
	Contest    int
	Repeating  *bool
}

// Stats summarises an owner's bets.
type Stats struct {
	Total      int            `json:"total"`
	Consulted  int            `json:"consulted"`
	ByStatus   map[Status]int `json:"by_status"`
	ByModality map[string]int `json:"by_modality"`
	Batches    int            `json:"batches"`
	Groups     int            `json:"groups"`
}

// Service ties validation, expansion, composition and reconciliation to a store.
type Service struct {
	store     Store
	registry  *Registry
	validator *Validator
	engine    *Engine
	log       *logger.Logger
	now       func() time.Time
}

// NewService constructs a bets service.
func NewService(store Store, registry *Registry, engine *Engine, log *logger.Logger) *Service {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if log == nil {
		log = logger.NewDefault("bets")
	}
	return &Service{
		store:     store,
		registry:  registry,
		validator: NewValidator(registry),
		engine:    engine,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Registry exposes the rule registry.
func (s *Service) Registry() *Registry { return s.registry }

// Validate checks a selection without storing anything.
func (s *Service) Validate(modalityID string, numbers, clovers []int) SelectionReport {
	return s.validator.ValidateSelection(modalityID, numbers, clovers)
}

// Submit validates req and stores the resulting bet or teimosinha batch. Validation errors
// reject the whole request; once validated, each bet is stored independently and the
// report lists any per-item failure.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (BatchReport, error) {
	rule, known := s.registry.Lookup(req.ModalityID)
	if !known {
		s.log.WithField("modality", req.ModalityID).Warn("unknown modality, validating with default rule")
	}
	if req.ContestNumber < 1 {
		return BatchReport{}, fmt.Errorf("%w: %d", ErrInvalidContest, req.ContestNumber)
	}
	if req.RepeatCount < 0 {
		metrics.RecordSubmission(rule.ModalityID, Kind(ErrInvalidRepeatCount))
		return BatchReport{}, fmt.Errorf("%w: %d", ErrInvalidRepeatCount, req.RepeatCount)
	}
	if err := s.validator.ValidateSelection(req.ModalityID, req.Numbers, req.Clovers).Err(); err != nil {
		metrics.RecordSubmission(rule.ModalityID, Kind(err))
		return BatchReport{}, err
	}

	base := BetSpec{
		OwnerID:       req.OwnerID,
		ModalityID:    rule.ModalityID,
		ContestNumber: req.ContestNumber,
		Numbers:       sortedCopy(req.Numbers),
		Clovers:       sortedCopy(req.Clovers),
		CreatedAt:     s.now(),
		Status:        StatusPending,
	}

	if req.Group != nil {
		group, err := ComposeGroup(req.Group.Name, req.Group.Participants, req.Creator)
		if err != nil {
			metrics.RecordSubmission(rule.ModalityID, Kind(err))
			return BatchReport{}, err
		}
		base.Group = &group
	}

	batch := []BetSpec{base}
	if req.RepeatCount > 1 {
		seq, err := GenerateSequence(base, req.RepeatCount, rule)
		if err != nil {
			metrics.RecordSubmission(rule.ModalityID, Kind(err))
			return BatchReport{}, err
		}
		batch = seq
	}

	report := SubmitBatch(ctx, s.store, batch)
	for range report.Bets {
		metrics.RecordSubmission(rule.ModalityID, "success")
	}
	for _, f := range report.Failures {
		metrics.RecordSubmission(rule.ModalityID, f.Kind)
	}

	entry := s.log.WithField("owner_id", req.OwnerID).
		WithField("modality", rule.ModalityID).
		WithField("contest", req.ContestNumber).
		WithField("requested", report.Requested).
		WithField("succeeded", report.Succeeded)
	if report.Complete() {
		entry.Info("bets submitted")
	} else {
		entry.Warn("bets partially submitted: " + report.Summary())
	}
	return report, nil
}

// Get returns one of the owner's bets.
func (s *Service) Get(ctx context.Context, ownerID, id string) (BetSpec, error) {
	bet, err := s.store.GetByID(ctx, id)
	if err != nil {
		return BetSpec{}, err
	}
	if bet.OwnerID != ownerID {
		return BetSpec{}, fmt.Errorf("%w: %s", ErrBetNotFound, id)
	}
	return bet, nil
}

// List returns the owner's bets matching filter, newest first.
func (s *Service) List(ctx context.Context, ownerID string, filter ListFilter) ([]BetSpec, error) {
	all, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}

	modality := ""
	if filter.ModalityID != "" {
		modality = NormalizeModalityID(filter.ModalityID)
	}

	out := make([]BetSpec, 0, len(all))
	for _, bet := range all {
		if modality != "" && bet.ModalityID != modality {
			continue
		}
		if filter.Status != "" && bet.Status != filter.Status {
			continue
		}
		if filter.Contest != 0 && bet.ContestNumber != filter.Contest {
			continue
		}
		if filter.Repeating != nil && isRepetition(bet) != *filter.Repeating {
			continue
		}
		out = append(out, bet)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ContestNumber < out[j].ContestNumber
	})
	return out, nil
}

// Reconcile reconciles one of the owner's bets.
func (s *Service) Reconcile(ctx context.Context, ownerID, id string) (Outcome, error) {
	bet, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Outcome{}, err
	}
	return s.engine.Reconcile(ctx, bet)
}

// ReconcileOwner reconciles every unconsulted bet of the owner.
func (s *Service) ReconcileOwner(ctx context.Context, ownerID string) ([]BatchItem, error) {
	all, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	pending := make([]BetSpec, 0, len(all))
	for _, bet := range all {
		if !bet.Consulted && bet.Status == StatusPending {
			pending = append(pending, bet)
		}
	}
	return s.engine.ReconcileBatch(ctx, pending), nil
}

// Stats summarises the owner's bets.
func (s *Service) Stats(ctx context.Context, ownerID string) (Stats, error) {
	all, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return Stats{}, fmt.Errorf("list bets: %w", err)
	}

	stats := Stats{
		ByStatus:   make(map[Status]int),
		ByModality: make(map[string]int),
	}
	batches := make(map[string]struct{})
	for _, bet := range all {
		stats.Total++
		stats.ByStatus[bet.Status]++
		stats.ByModality[bet.ModalityID]++
		if bet.Consulted {
			stats.Consulted++
		}
		if bet.Group != nil {
			stats.Groups++
		}
		if id := bet.Repetition.BatchID; id != "" {
			batches[id] = struct{}{}
		}
	}
	stats.Batches = len(batches)
	return stats, nil
}

func isRepetition(bet BetSpec) bool {
	return bet.Repetition.SequenceTotal > 1
}
