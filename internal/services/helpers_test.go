package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

var testLimits = config.LimitsConfig{
	MinBetRegular:  100,
	MinBetSweeps:   100,
	MaxBetRegular:  100000,
	MaxBetSweeps:   20000,
	DailyMultiple:  100,
	InitialRegular: 100000,
	InitialSweeps:  20000,
}

var testAntiCheat = config.AntiCheatConfig{
	Window:           5 * time.Minute,
	TimingDeviation:  0.5,
	MinTimingSamples: 2,
	PatternThreshold: 0.95,
	MaxActions:       256,
	MaxTrackedUsers:  100,
}

var testFairness = config.FairnessConfig{
	RoundTimeout:  5 * time.Minute,
	SweepInterval: time.Minute,
	SweepBatch:    100,
}

// eventRecorder collects published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []services.Event
}

func (r *eventRecorder) Publish(e services.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(t services.EventType) []services.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []services.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store     *services.MemoryStore
	clock     *clock.Mock
	metrics   *services.Metrics
	events    *eventRecorder
	fairness  *services.FairnessLedger
	ledger    *services.BettingLedger
	anticheat *services.AntiCheatMonitor
	engine    *services.GameEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := services.NewMemoryStore()
	return newTestEnvWithStore(t, store, store)
}

// newTestEnvWithStore wires the services over wrapped, which is store itself or
// a wrapper around it.
func newTestEnvWithStore(t *testing.T, store *services.MemoryStore, wrapped services.Store) *testEnv {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	log := zap.NewNop()
	metrics := services.NewMetrics()
	events := &eventRecorder{}

	fairness := services.NewFairnessLedger(wrapped, services.NewSeedGenerator(nil), events, clk, log, metrics)
	ledger := services.NewBettingLedger(wrapped, testLimits, events, clk, log, metrics)
	anticheat, err := services.NewAntiCheatMonitor(testAntiCheat, wrapped, events, clk, log, metrics)
	require.NoError(t, err)

	engine := services.NewGameEngine(fairness, ledger, anticheat, wrapped, testFairness, clk, log, metrics)
	engine.SetBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, services.MaxRetries)
	})

	return &testEnv{
		store:     store,
		clock:     clk,
		metrics:   metrics,
		events:    events,
		fairness:  fairness,
		ledger:    ledger,
		anticheat: anticheat,
		engine:    engine,
	}
}

// commitRounds opens a committed slots round of userID under each id so bets
// can be placed on them.
func commitRounds(t *testing.T, env *testEnv, userID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := env.fairness.Commit(context.Background(), services.CommitRequest{
			RoundID: id,
			UserID:  userID,
			Game:    models.GameTypeSlots,
			Draw:    slotsDraw,
		})
		require.NoError(t, err)
	}
}
