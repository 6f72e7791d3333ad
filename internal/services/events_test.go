package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fairplay-backend/internal/services"
)

type sinkRecorder struct {
	mu     sync.Mutex
	events []services.Event
	err    error
}

func (s *sinkRecorder) Deliver(_ context.Context, e services.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	metrics := services.NewMetrics()
	sink := &sinkRecorder{}
	d := services.NewDispatcher(2, zap.NewNop(), metrics, sink)

	for i := 0; i < 5; i++ {
		d.Publish(services.NewEvent(time.Now().UTC(), services.EventBetPlaced, "alice", "r", nil))
	}
	assert.Equal(t, int64(3), metrics.EventsDropped.Count())

	// A cancelled dispatcher still drains what it buffered.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 2, sink.count())
}

func TestDispatcherKeepsGoingAfterSinkErrors(t *testing.T) {
	failing := &sinkRecorder{err: errors.New("sink down")}
	healthy := &sinkRecorder{}
	d := services.NewDispatcher(4, zap.NewNop(), services.NewMetrics(), failing)
	d.AddSink(healthy)

	d.Publish(services.NewEvent(time.Now().UTC(), services.EventRoundRevealed, "alice", "r1", nil))
	d.Publish(services.NewEvent(time.Now().UTC(), services.EventRoundRevealed, "alice", "r2", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, healthy.count())
}

func TestAuditLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := services.NewAuditLogSink(zap.New(core))
	ctx := context.Background()

	require.NoError(t, sink.Deliver(ctx, services.NewEvent(time.Now().UTC(), services.EventIntegrityAlert, "alice", "r1", nil)))
	require.NoError(t, sink.Deliver(ctx, services.NewEvent(time.Now().UTC(), services.EventSecurityFlagged, "alice", "", nil)))
	require.NoError(t, sink.Deliver(ctx, services.NewEvent(time.Now().UTC(), services.EventBetPlaced, "alice", "r2", nil)))

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, string(services.EventIntegrityAlert), entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, "audit", entries[0].LoggerName)
}
