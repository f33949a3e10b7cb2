package bets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore provides an in-memory implementation of Store for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	bets     map[string]BetSpec
	attempts map[string]time.Time

	// FailCreate, when set, is consulted before every Create.
	FailCreate func(bet BetSpec) error
	// FailUpdate, when set, is consulted before every UpdateStatusAndCache.
	FailUpdate func(id string) error

	updates int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bets: make(map[string]BetSpec), attempts: make(map[string]time.Time)}
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]BetSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []BetSpec
	for _, bet := range s.bets {
		if bet.OwnerID == ownerID {
			result = append(result, bet)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (BetSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bet, ok := s.bets[id]
	if !ok {
		return BetSpec{}, fmt.Errorf("%w: %s", ErrBetNotFound, id)
	}
	return bet, nil
}

func (s *MemoryStore) Create(ctx context.Context, bet BetSpec) (BetSpec, error) {
	if s.FailCreate != nil {
		if err := s.FailCreate(bet); err != nil {
			return BetSpec{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bet.ID == "" {
		bet.ID = uuid.New().String()
	}
	if bet.CreatedAt.IsZero() {
		bet.CreatedAt = time.Now().UTC()
	}
	if bet.Status == "" {
		bet.Status = StatusPending
	}
	s.bets[bet.ID] = bet
	return bet, nil
}

func (s *MemoryStore) UpdateStatusAndCache(ctx context.Context, id string, consulted bool, cached *DrawResult, status Status) (BetSpec, error) {
	if s.FailUpdate != nil {
		if err := s.FailUpdate(id); err != nil {
			return BetSpec{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[id]
	if !ok {
		return BetSpec{}, fmt.Errorf("%w: %s", ErrBetNotFound, id)
	}
	if bet.Consulted || bet.Status != StatusPending {
		return BetSpec{}, fmt.Errorf("%w: %s", ErrAlreadyReconciled, id)
	}
	bet.Consulted = consulted
	bet.CachedResult = cached
	bet.Status = status
	bet.VerifiedAt = time.Now().UTC()
	s.bets[id] = bet
	s.updates++
	return bet, nil
}

// ListUnconsulted returns pending bets, never-attempted first, then by oldest attempt and
// creation time.
func (s *MemoryStore) ListUnconsulted(ctx context.Context, limit int) ([]BetSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []BetSpec
	for _, bet := range s.bets {
		if !bet.Consulted && bet.Status == StatusPending {
			result = append(result, bet)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		ai, aj := s.attempts[result[i].ID], s.attempts[result[j].ID]
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkAttempted records a failed reconciliation attempt for unconsulted bets.
func (s *MemoryStore) MarkAttempted(ctx context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if bet, ok := s.bets[id]; ok && !bet.Consulted {
			s.attempts[id] = at.UTC()
		}
	}
	return nil
}

// Put stores bet verbatim, bypassing Create defaults.
func (s *MemoryStore) Put(bet BetSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[bet.ID] = bet
}

// Updates returns the number of successful UpdateStatusAndCache calls.
func (s *MemoryStore) Updates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// MockProvider serves canned payloads keyed by modality and contest.
type MockProvider struct {
	mu       sync.Mutex
	payloads map[string][]byte
	errs     map[string]error
	calls    map[string]int

	// Gate, when non-nil, blocks every call until it is closed.
	Gate chan struct{}
}

// NewMockProvider creates an empty mock provider. Unknown contests return ErrResultNotFound.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		payloads: make(map[string][]byte),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetResult registers a raw payload for a contest.
func (m *MockProvider) SetResult(modalityID string, contest int, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[mockKey(modalityID, contest)] = payload
}

// SetError makes every fetch of a contest fail with err.
func (m *MockProvider) SetError(modalityID string, contest int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[mockKey(modalityID, contest)] = err
}

// Calls returns how many times a contest was fetched.
func (m *MockProvider) Calls(modalityID string, contest int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[mockKey(modalityID, contest)]
}

// TotalCalls returns the number of fetches across all contests.
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// GetResult implements Provider.
func (m *MockProvider) GetResult(ctx context.Context, modalityID string, contest int) ([]byte, error) {
	key := mockKey(modalityID, contest)

	m.mu.Lock()
	m.calls[key]++
	gate := m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	payload, ok := m.payloads[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, key)
	}
	return payload, nil
}

func mockKey(modalityID string, contest int) string {
	return fmt.Sprintf("%s/%d", NormalizeModalityID(modalityID), contest)
}

// ErrMockUnavailable simulates a transport failure.
var ErrMockUnavailable = errors.New("mock provider unreachable")

// NoRetry is a single-attempt policy for fast tests.
var NoRetry = RetryPolicy{MaxAttempts: 1}
