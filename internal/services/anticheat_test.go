package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

func bet(amount int64) models.ActionEvent {
	return models.ActionEvent{Type: models.ActionBet, Amount: amount}
}

// playBets submits amounts, advancing the clock by gaps[i] before bet i+1.
func playBets(env *testEnv, userID string, amounts []int64, gaps []time.Duration) []bool {
	ctx := context.Background()
	results := make([]bool, 0, len(amounts))
	for i, amount := range amounts {
		if i > 0 {
			env.clock.Add(gaps[i-1])
		}
		results = append(results, env.anticheat.ValidateAction(ctx, "session-1", userID, bet(amount)))
	}
	return results
}

var irregularGaps = []time.Duration{time.Second, 3 * time.Second, 9 * time.Second, 27 * time.Second, 81 * time.Second}

func TestAntiCheatAllowsVariedPlay(t *testing.T) {
	env := newTestEnv(t)

	results := playBets(env, "user-1", []int64{1000, 2500, 1200, 4000, 1800}, irregularGaps)
	assert.Equal(t, []bool{true, true, true, true, true}, results)
	assert.False(t, env.anticheat.IsFlagged("user-1"))
	assert.Empty(t, env.store.Violations("user-1"))
}

func TestAntiCheatFlagsConstantBets(t *testing.T) {
	env := newTestEnv(t)

	results := playBets(env, "user-1", []int64{1000, 1000, 1000}, irregularGaps)
	assert.Equal(t, []bool{true, true, false}, results)
	assert.True(t, env.anticheat.IsFlagged("user-1"))

	violations := env.store.Violations("user-1")
	require.Len(t, violations, 1)
	assert.Equal(t, services.ViolationSuspiciousBets, violations[0].Type)
	assert.Equal(t, "session-1", violations[0].SessionID)
	assert.Len(t, violations[0].Actions, 3)

	flagged := env.events.ofType(services.EventSecurityFlagged)
	require.Len(t, flagged, 1)
	assert.Equal(t, "user-1", flagged[0].UserID)
	assert.Equal(t, int64(1), env.metrics.PlayersFlagged.Count())
}

func TestAntiCheatFlagsProgressions(t *testing.T) {
	env := newTestEnv(t)

	// Doubling is geometric but not arithmetic; it still scores 0.5 and
	// repeats no runs, so it passes.
	results := playBets(env, "martingale", []int64{100, 200, 400, 800}, irregularGaps)
	assert.Equal(t, []bool{true, true, true, true}, results)

	// A constant step that is also a repeating sequence crosses the threshold.
	results = playBets(env, "stepper", []int64{500, 500, 500, 500}, irregularGaps)
	assert.Equal(t, []bool{true, true, false, false}, results)
}

func TestAntiCheatFlagsRegularTiming(t *testing.T) {
	env := newTestEnv(t)

	every2s := []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}
	results := playBets(env, "user-1", []int64{1000, 2500, 1200}, every2s)
	assert.Equal(t, []bool{true, true, false}, results)

	violations := env.store.Violations("user-1")
	require.Len(t, violations, 1)
	assert.Equal(t, services.ViolationSuspiciousTiming, violations[0].Type)
}

func TestAntiCheatFlagIsSticky(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	playBets(env, "user-1", []int64{1000, 1000, 1000}, irregularGaps)
	require.True(t, env.anticheat.IsFlagged("user-1"))

	env.clock.Add(time.Hour)
	assert.False(t, env.anticheat.ValidateAction(ctx, "session-2", "user-1", bet(3333)))

	violations := env.store.Violations("user-1")
	require.Len(t, violations, 2)
	assert.Equal(t, services.ViolationFlaggedPlayer, violations[1].Type)
	assert.Equal(t, "session-2", violations[1].SessionID)

	// Only the first rejection announces the flag.
	assert.Len(t, env.events.ofType(services.EventSecurityFlagged), 1)
	assert.Equal(t, int64(2), env.metrics.ActionsRejected.Count())

	assert.True(t, env.anticheat.ValidateAction(ctx, "session-3", "user-2", bet(1000)))
}

func TestAntiCheatWindowEviction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	results := playBets(env, "user-1", []int64{1000, 1000}, irregularGaps)
	assert.Equal(t, []bool{true, true}, results)

	env.clock.Add(testAntiCheat.Window + time.Second)
	assert.True(t, env.anticheat.ValidateAction(ctx, "session-1", "user-1", bet(1000)))
	assert.False(t, env.anticheat.IsFlagged("user-1"))
}

func TestAntiCheatIgnoresResolveActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resolve := models.ActionEvent{Type: models.ActionResolve, Amount: 1000}

	assert.True(t, env.anticheat.ValidateAction(ctx, "s", "user-1", bet(1000)))
	env.clock.Add(time.Second)
	env.anticheat.Observe(ctx, "user-1", resolve)
	env.clock.Add(time.Second)
	assert.True(t, env.anticheat.ValidateAction(ctx, "s", "user-1", bet(2500)))
	env.clock.Add(3 * time.Second)
	env.anticheat.Observe(ctx, "user-1", resolve)

	// With the resolves the gaps would be 1s, 1s, 3s and a 2s gap would fit.
	env.clock.Add(2 * time.Second)
	assert.True(t, env.anticheat.ValidateAction(ctx, "s", "user-1", bet(1200)))
}

func TestAntiCheatIgnoresRevealActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reveal := models.ActionEvent{Type: models.ActionReveal}

	// Reveals land 1s after each bet. Counted as actions the gaps would be
	// 1s, 3s, 1s and a 2s gap would fit.
	assert.True(t, env.anticheat.ValidateAction(ctx, "s", "user-1", bet(1000)))
	env.clock.Add(time.Second)
	env.anticheat.Observe(ctx, "user-1", reveal)
	env.clock.Add(3 * time.Second)
	assert.True(t, env.anticheat.ValidateAction(ctx, "s", "user-1", bet(2500)))
	env.clock.Add(time.Second)
	env.anticheat.Observe(ctx, "user-1", reveal)
	env.clock.Add(2 * time.Second)
	assert.True(t, env.anticheat.ValidateAction(ctx, "s", "user-1", bet(1200)))

	assert.False(t, env.anticheat.IsFlagged("user-1"))
	assert.Empty(t, env.store.Violations("user-1"))
}
