package services

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fairplay-backend/internal/models"
)

type CommitRequest struct {
	RoundID string
	UserID  string
	Game    models.GameType
	Draw    models.DrawSpec
}

// FairnessLedger runs the commit-reveal protocol: the hash of the server seed
// is published before any client input is seen and the seed itself only after
// the outcome is fixed.
type FairnessLedger struct {
	store     RoundStore
	seeds     *SeedGenerator
	publisher Publisher
	clock     clock.Clock
	log       *zap.Logger
	metrics   *Metrics
}

func NewFairnessLedger(store RoundStore, seeds *SeedGenerator, publisher Publisher, clk clock.Clock, log *zap.Logger, metrics *Metrics) *FairnessLedger {
	return &FairnessLedger{
		store:     store,
		seeds:     seeds,
		publisher: publisher,
		clock:     clk,
		log:       log.Named("fairness"),
		metrics:   metrics,
	}
}

// Commit stores a fresh committed round and returns its public view, which
// carries the server seed hash but not the seed.
func (f *FairnessLedger) Commit(ctx context.Context, req CommitRequest) (*models.Round, error) {
	if _, err := DeriveNumbers("", "", 0, 0, req.Draw.Min, req.Draw.Max); err != nil {
		return nil, err
	}
	if req.Draw.Count <= 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "draw count %d", req.Draw.Count)
	}

	serverSeed, err := f.seeds.NewServerSeed()
	if err != nil {
		return nil, err
	}

	nonce, err := f.store.NextNonce(ctx, req.UserID, req.Game)
	if err != nil {
		return nil, err
	}

	roundID := req.RoundID
	if roundID == "" {
		roundID = models.GenerateRoundID()
	}

	round := &models.Round{
		ID:             roundID,
		UserID:         req.UserID,
		GameType:       req.Game,
		Nonce:          nonce,
		Draw:           req.Draw,
		ServerSeed:     serverSeed,
		ServerSeedHash: HashSeed(serverSeed),
		Algorithm:      AlgorithmARC4V1,
		Status:         models.RoundStatusCommitted,
		CommittedAt:    f.clock.Now().UTC(),
	}
	if err := f.store.CreateRound(ctx, round); err != nil {
		return nil, err
	}

	f.metrics.RoundsCommitted.Inc(1)
	f.log.Debug("round committed",
		zap.String("round_id", round.ID),
		zap.String("user_id", round.UserID),
		zap.Int64("nonce", round.Nonce))

	return round.Public(), nil
}

func (f *FairnessLedger) Reveal(ctx context.Context, roundID, clientSeed string) ([]int, error) {
	round, err := f.RevealRound(ctx, roundID, clientSeed)
	if err != nil {
		return nil, err
	}
	return round.Outcome, nil
}

// RevealRound fixes the outcome of a committed round. An empty clientSeed is
// replaced by a generated one.
func (f *FairnessLedger) RevealRound(ctx context.Context, roundID, clientSeed string) (*models.Round, error) {
	round, err := f.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := transitionError(round.Status); err != nil {
		return nil, err
	}

	if clientSeed == "" {
		if clientSeed, err = f.seeds.NewClientSeed(); err != nil {
			return nil, err
		}
	}

	outcome, err := DeriveNumbersVersion(round.Algorithm, round.ServerSeed, clientSeed, round.Nonce,
		round.Draw.Count, round.Draw.Min, round.Draw.Max)
	if err != nil {
		return nil, err
	}

	now := f.clock.Now().UTC()
	round.ClientSeed = clientSeed
	round.Outcome = outcome
	round.VerificationHash = HashSeed(SeedString(round.ServerSeed, clientSeed, round.Nonce))
	round.RevealedAt = &now
	round.Status = models.RoundStatusRevealed

	if err := f.store.RevealRound(ctx, round); err != nil {
		return nil, err
	}

	f.metrics.RoundsRevealed.Inc(1)
	f.publisher.Publish(NewEvent(f.clock.Now().UTC(), EventRoundRevealed, round.UserID, round.ID, round.Public()))

	return round, nil
}

// Verify recomputes a revealed round from its stored seeds. A mismatch is
// reported and alerted on, never corrected.
func (f *FairnessLedger) Verify(ctx context.Context, roundID string) (*models.VerificationReport, error) {
	round, err := f.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	report := &models.VerificationReport{
		RoundID:        round.ID,
		Status:         round.Status,
		ServerSeedHash: round.ServerSeedHash,
		Nonce:          round.Nonce,
		Algorithm:      round.Algorithm,
	}

	switch round.Status {
	case models.RoundStatusCommitted:
		report.Reason = "round has not been revealed"
		return report, ErrNotRevealed
	case models.RoundStatusAbandoned:
		report.ServerSeed = round.ServerSeed
		report.Reason = "round was abandoned before reveal"
		return report, ErrNotRevealed
	}

	report.ServerSeed = round.ServerSeed
	report.ClientSeed = round.ClientSeed
	report.Outcome = round.Outcome
	report.VerificationHash = round.VerificationHash

	report.Reason = f.check(round)
	report.IsValid = report.Reason == ""
	if !report.IsValid {
		f.metrics.IntegrityFailures.Inc(1)
		f.log.Error("fairness integrity check failed",
			zap.String("round_id", round.ID),
			zap.String("user_id", round.UserID),
			zap.String("reason", report.Reason))
		f.publisher.Publish(NewEvent(f.clock.Now().UTC(), EventIntegrityAlert, round.UserID, round.ID, report))
	}

	return report, nil
}

func (f *FairnessLedger) check(round *models.Round) string {
	if HashSeed(round.ServerSeed) != round.ServerSeedHash {
		return "server seed does not match commitment"
	}

	expected, err := DeriveNumbersVersion(round.Algorithm, round.ServerSeed, round.ClientSeed, round.Nonce,
		round.Draw.Count, round.Draw.Min, round.Draw.Max)
	if err != nil {
		return err.Error()
	}
	if len(expected) != len(round.Outcome) {
		return "outcome length differs from recomputed draw"
	}
	for i := range expected {
		if expected[i] != round.Outcome[i] {
			return "outcome differs from recomputed draw"
		}
	}

	if HashSeed(SeedString(round.ServerSeed, round.ClientSeed, round.Nonce)) != round.VerificationHash {
		return "verification hash mismatch"
	}
	return ""
}

func (f *FairnessLedger) Round(ctx context.Context, roundID string) (*models.Round, error) {
	round, err := f.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return round.Public(), nil
}

// Abandon closes a round that was never revealed. Its server seed becomes
// public with the abandoned round.
func (f *FairnessLedger) Abandon(ctx context.Context, roundID string) (*models.Round, error) {
	if err := f.store.AbandonRound(ctx, roundID, f.clock.Now().UTC()); err != nil {
		return nil, err
	}

	round, err := f.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	f.metrics.RoundsAbandoned.Inc(1)
	f.log.Info("round abandoned",
		zap.String("round_id", round.ID),
		zap.String("user_id", round.UserID))
	f.publisher.Publish(NewEvent(f.clock.Now().UTC(), EventRoundAbandoned, round.UserID, round.ID, round.Public()))

	return round.Public(), nil
}
