package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/lotterybets/pkg/logger"
	"github.com/R3E-Network/lotterybets/services/bets"
)

type failingSource struct{}

func (failingSource) ListUnconsulted(ctx context.Context, limit int) ([]bets.BetSpec, error) {
	return nil, errors.New("connection reset")
}

func (failingSource) MarkAttempted(ctx context.Context, ids []string, at time.Time) error {
	return nil
}

func quinaPayload(contest int, numbers ...int) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"loteria":  "quina",
		"concurso": contest,
		"dezenas":  numbers,
	})
	return payload
}

func setup(t *testing.T) (*bets.MemoryStore, *bets.MockProvider, *bets.Engine) {
	t.Helper()
	store := bets.NewMemoryStore()
	provider := bets.NewMockProvider()
	engine := bets.NewEngine(store, provider, bets.DefaultRegistry(), logger.NewDiscard(),
		bets.WithRetryPolicy(bets.NoRetry))

	for _, contest := range []int{6500, 6501, 6502} {
		_, err := store.Create(context.Background(), bets.BetSpec{
			OwnerID:       "user-1",
			ModalityID:    "quina",
			ContestNumber: contest,
			Numbers:       []int{5, 10, 15, 20, 25},
		})
		require.NoError(t, err)
	}
	return store, provider, engine
}

func TestRunOnce(t *testing.T) {
	store, provider, engine := setup(t)
	provider.SetResult("quina", 6500, quinaPayload(6500, 5, 10, 15, 40, 50))
	provider.SetResult("quina", 6501, quinaPayload(6501, 1, 2, 3, 4, 6))
	provider.SetError("quina", 6502, bets.ErrMockUnavailable)

	s := New(store, engine, Config{BatchSize: 10}, logger.NewDiscard())
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Scanned: 3, Reconciled: 2, Pending: 0, Failed: 1}, report)

	left, err := store.ListUnconsulted(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, 6502, left[0].ContestNumber)
}

func TestRunOnce_NotYetDrawnIsPending(t *testing.T) {
	store, _, engine := setup(t)

	s := New(store, engine, Config{BatchSize: 2}, logger.NewDiscard())
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Pending)
	assert.Zero(t, report.Failed)
}

func TestRunOnce_UndrawnBetsDoNotStarveDrawnOnes(t *testing.T) {
	ctx := context.Background()
	store := bets.NewMemoryStore()
	provider := bets.NewMockProvider()
	engine := bets.NewEngine(store, provider, bets.DefaultRegistry(), logger.NewDiscard(),
		bets.WithRetryPolicy(bets.NoRetry))

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.Create(ctx, bets.BetSpec{
			OwnerID:       "user-1",
			ModalityID:    "quina",
			ContestNumber: 7000 + i,
			Numbers:       []int{5, 10, 15, 20, 25},
			CreatedAt:     created.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	drawn, err := store.Create(ctx, bets.BetSpec{
		OwnerID:       "user-1",
		ModalityID:    "quina",
		ContestNumber: 6500,
		Numbers:       []int{5, 10, 15, 20, 25},
		CreatedAt:     created.Add(time.Hour),
	})
	require.NoError(t, err)
	provider.SetResult("quina", 6500, quinaPayload(6500, 5, 10, 15, 40, 50))

	s := New(store, engine, Config{BatchSize: 3}, logger.NewDiscard())

	first, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 3, Pending: 3}, first)

	second, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Reconciled)

	got, err := store.GetByID(ctx, drawn.ID)
	require.NoError(t, err)
	assert.True(t, got.Consulted)
	assert.Equal(t, bets.StatusPrize, got.Status)
}

func TestRunOnce_SourceError(t *testing.T) {
	s := New(failingSource{}, nil, Config{}, logger.NewDiscard())
	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStart_InvalidSchedule(t *testing.T) {
	store, _, engine := setup(t)
	s := New(store, engine, Config{Schedule: "every tuesday"}, logger.NewDiscard())
	assert.Error(t, s.Start(context.Background()))
}

func TestStart_RunsOnSchedule(t *testing.T) {
	store, provider, engine := setup(t)
	for _, contest := range []int{6500, 6501, 6502} {
		provider.SetResult("quina", contest, quinaPayload(contest, 5, 10, 15, 40, 50))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(store, engine, Config{Schedule: "@every 1s"}, logger.NewDiscard())
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "second start must fail")

	require.Eventually(t, func() bool {
		left, _ := store.ListUnconsulted(context.Background(), 0)
		return len(left) == 0
	}, 5*time.Second, 50*time.Millisecond)

	s.Stop()
	s.Stop()
}
