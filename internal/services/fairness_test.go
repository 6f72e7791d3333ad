package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

// tamperingStore rewrites rounds as they are read back.
type tamperingStore struct {
	*services.MemoryStore
	tamper func(r *models.Round)
}

func (s *tamperingStore) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	r, err := s.MemoryStore.GetRound(ctx, roundID)
	if err == nil && s.tamper != nil {
		s.tamper(r)
	}
	return r, err
}

var slotsDraw = models.DrawSpec{Count: 9, Min: 0, Max: 5}

func commitSlots(t *testing.T, env *testEnv, userID string) *models.Round {
	t.Helper()
	round, err := env.fairness.Commit(context.Background(), services.CommitRequest{
		UserID: userID,
		Game:   models.GameTypeSlots,
		Draw:   slotsDraw,
	})
	require.NoError(t, err)
	return round
}

func TestCommitHidesServerSeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	round := commitSlots(t, env, "user-1")
	assert.Empty(t, round.ServerSeed)
	assert.Len(t, round.ServerSeedHash, 64)
	assert.Equal(t, models.RoundStatusCommitted, round.Status)
	assert.Equal(t, services.AlgorithmARC4V1, round.Algorithm)
	assert.Equal(t, int64(1), round.Nonce)

	stored, err := env.store.GetRound(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, round.ServerSeedHash, services.HashSeed(stored.ServerSeed))

	second := commitSlots(t, env, "user-1")
	assert.Equal(t, int64(2), second.Nonce)
	assert.NotEqual(t, round.ServerSeedHash, second.ServerSeedHash)

	other := commitSlots(t, env, "user-2")
	assert.Equal(t, int64(1), other.Nonce)
	assert.Equal(t, int64(3), env.metrics.RoundsCommitted.Count())
}

func TestCommitRejectsBadDraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.fairness.Commit(ctx, services.CommitRequest{UserID: "u", Game: models.GameTypeDice,
		Draw: models.DrawSpec{Count: 1, Min: 10, Max: 1}})
	assert.True(t, errors.Is(err, services.ErrInvalidRange))

	_, err = env.fairness.Commit(ctx, services.CommitRequest{UserID: "u", Game: models.GameTypeDice,
		Draw: models.DrawSpec{Count: 0, Min: 1, Max: 6}})
	assert.True(t, errors.Is(err, services.ErrInvalidRange))
}

func TestCommitDuplicateRoundID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := services.CommitRequest{RoundID: "round_fixed", UserID: "u", Game: models.GameTypeSlots, Draw: slotsDraw}
	_, err := env.fairness.Commit(ctx, req)
	require.NoError(t, err)

	_, err = env.fairness.Commit(ctx, req)
	assert.True(t, errors.Is(err, services.ErrRoundExists))
}

func TestRevealAndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	round := commitSlots(t, env, "user-1")
	env.clock.Add(3 * time.Second)

	revealed, err := env.fairness.RevealRound(ctx, round.ID, "my-lucky-seed")
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusRevealed, revealed.Status)
	assert.Equal(t, "my-lucky-seed", revealed.ClientSeed)
	assert.Len(t, revealed.Outcome, 9)
	require.NotNil(t, revealed.RevealedAt)
	assert.True(t, revealed.RevealedAt.After(revealed.CommittedAt))

	expected, err := services.DeriveNumbers(revealed.ServerSeed, "my-lucky-seed", revealed.Nonce, 9, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, expected, revealed.Outcome)
	assert.Equal(t, round.ServerSeedHash, services.HashSeed(revealed.ServerSeed))

	report, err := env.fairness.Verify(ctx, round.ID)
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.Empty(t, report.Reason)
	assert.Equal(t, revealed.ServerSeed, report.ServerSeed)
	assert.Equal(t, revealed.Outcome, report.Outcome)
	assert.Equal(t, services.HashSeed(services.SeedString(revealed.ServerSeed, "my-lucky-seed", revealed.Nonce)),
		report.VerificationHash)

	assert.Len(t, env.events.ofType(services.EventRoundRevealed), 1)
}

func TestRevealGeneratesClientSeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	round := commitSlots(t, env, "user-1")
	outcome, err := env.fairness.Reveal(ctx, round.ID, "")
	require.NoError(t, err)
	assert.Len(t, outcome, 9)

	stored, err := env.store.GetRound(ctx, round.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ClientSeed, services.ClientSeedBytes*2)
}

func TestRevealTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	round := commitSlots(t, env, "user-1")
	first, err := env.fairness.Reveal(ctx, round.ID, "a")
	require.NoError(t, err)

	_, err = env.fairness.Reveal(ctx, round.ID, "b")
	assert.True(t, errors.Is(err, services.ErrAlreadyRevealed))
	assert.Equal(t, services.KindConflict, services.KindOf(err))

	stored, err := env.store.GetRound(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, first, stored.Outcome)
	assert.Equal(t, "a", stored.ClientSeed)
}

func TestRevealUnknownRound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.fairness.Reveal(context.Background(), "round_missing", "")
	assert.True(t, errors.Is(err, services.ErrRoundNotFound))
}

func TestVerifyBeforeReveal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	round := commitSlots(t, env, "user-1")
	report, err := env.fairness.Verify(ctx, round.ID)
	assert.True(t, errors.Is(err, services.ErrNotRevealed))
	require.NotNil(t, report)
	assert.False(t, report.IsValid)
	assert.Empty(t, report.ServerSeed)
	assert.Equal(t, round.ServerSeedHash, report.ServerSeedHash)
}

func TestAbandonPublishesSeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	round := commitSlots(t, env, "user-1")
	abandoned, err := env.fairness.Abandon(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusAbandoned, abandoned.Status)
	assert.Equal(t, round.ServerSeedHash, services.HashSeed(abandoned.ServerSeed))

	_, err = env.fairness.Reveal(ctx, round.ID, "late")
	assert.True(t, errors.Is(err, services.ErrRoundAbandoned))

	report, err := env.fairness.Verify(ctx, round.ID)
	assert.True(t, errors.Is(err, services.ErrNotRevealed))
	assert.Equal(t, abandoned.ServerSeed, report.ServerSeed)
	assert.Equal(t, models.RoundStatusAbandoned, report.Status)

	_, err = env.fairness.Abandon(ctx, round.ID)
	assert.True(t, errors.Is(err, services.ErrRoundAbandoned))
}

func TestVerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(r *models.Round)
		reason string
	}{
		{
			name: "outcome altered",
			tamper: func(r *models.Round) {
				r.Outcome[0] = (r.Outcome[0] + 1) % 6
			},
			reason: "outcome differs from recomputed draw",
		},
		{
			name: "server seed swapped",
			tamper: func(r *models.Round) {
				r.ServerSeed = services.HashSeed(r.ServerSeed)
			},
			reason: "server seed does not match commitment",
		},
		{
			name: "verification hash altered",
			tamper: func(r *models.Round) {
				r.VerificationHash = services.HashSeed("forged")
			},
			reason: "verification hash mismatch",
		},
		{
			name: "outcome truncated",
			tamper: func(r *models.Round) {
				r.Outcome = r.Outcome[:3]
			},
			reason: "outcome length differs from recomputed draw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := services.NewMemoryStore()
			wrapped := &tamperingStore{MemoryStore: store}
			env := newTestEnvWithStore(t, store, wrapped)
			ctx := context.Background()

			round := commitSlots(t, env, "user-1")
			_, err := env.fairness.Reveal(ctx, round.ID, "seed")
			require.NoError(t, err)

			wrapped.tamper = tt.tamper
			report, err := env.fairness.Verify(ctx, round.ID)
			require.NoError(t, err)
			assert.False(t, report.IsValid)
			assert.Equal(t, tt.reason, report.Reason)

			assert.Equal(t, int64(1), env.metrics.IntegrityFailures.Count())
			alerts := env.events.ofType(services.EventIntegrityAlert)
			require.Len(t, alerts, 1)
			assert.Equal(t, round.ID, alerts[0].RoundID)
		})
	}
}
