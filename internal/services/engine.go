package services

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
)

// MaxRetries bounds the attempts made on transient ledger failures.
const MaxRetries = 3

// GameEngine drives a round through commit, bet, reveal and settlement.
type GameEngine struct {
	fairness  *FairnessLedger
	ledger    *BettingLedger
	anticheat *AntiCheatMonitor
	rounds    RoundStore
	cfg       config.FairnessConfig
	clock     clock.Clock
	log       *zap.Logger
	metrics   *Metrics

	newBackOff func() backoff.BackOff
}

func NewGameEngine(fairness *FairnessLedger, ledger *BettingLedger, anticheat *AntiCheatMonitor, rounds RoundStore, cfg config.FairnessConfig, clk clock.Clock, log *zap.Logger, metrics *Metrics) *GameEngine {
	return &GameEngine{
		fairness:  fairness,
		ledger:    ledger,
		anticheat: anticheat,
		rounds:    rounds,
		cfg:       cfg,
		clock:     clk,
		log:       log.Named("engine"),
		metrics:   metrics,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return backoff.WithMaxRetries(b, MaxRetries)
		},
	}
}

// SetBackOff replaces the retry policy.
func (e *GameEngine) SetBackOff(f func() backoff.BackOff) {
	e.newBackOff = f
}

// retry runs fn until it succeeds, fails with a non-transient error, or the
// retry budget is spent. fn receives the 1-based attempt number.
func (e *GameEngine) retry(ctx context.Context, op string, fn func(attempt int) error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			e.log.Warn("transient failure",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(e.newBackOff(), ctx))
}

func (e *GameEngine) StartRound(ctx context.Context, userID string, gameType models.GameType) (*models.Round, error) {
	game, err := LookupGame(gameType)
	if err != nil {
		return nil, err
	}

	var round *models.Round
	err = e.retry(ctx, "commit", func(int) error {
		var err error
		round, err = e.fairness.Commit(ctx, CommitRequest{
			UserID: userID,
			Game:   gameType,
			Draw:   game.Draw(),
		})
		return err
	})
	return round, err
}

// Play bets on a committed round, reveals it and settles the bet from the
// game's payout table.
func (e *GameEngine) Play(ctx context.Context, sessionID, userID, roundID string, req *models.PlayRoundRequest) (*models.PlayResult, error) {
	defer e.metrics.PlayLatency.UpdateSince(time.Now())

	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidAmount, err.Error())
	}

	round, err := e.fairness.Round(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.UserID != userID {
		return nil, ErrRoundNotOwned
	}
	if err := transitionError(round.Status); err != nil {
		return nil, err
	}

	game, err := LookupGame(round.GameType)
	if err != nil {
		return nil, err
	}
	if err := game.ValidateSelection(req.Selection); err != nil {
		return nil, err
	}

	allowed := e.anticheat.ValidateAction(ctx, sessionID, userID, models.ActionEvent{
		Type:   models.ActionBet,
		Amount: req.Amount,
	})
	if !allowed {
		return nil, ErrActionRejected
	}

	err = e.retry(ctx, "place_bet", func(attempt int) error {
		_, err := e.ledger.PlaceBet(ctx, userID, roundID, req.Amount, req.Currency)
		if attempt > 1 && errors.Is(err, ErrBetAlreadyPlaced) {
			return e.confirmBet(ctx, userID, roundID, req)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var revealed *models.Round
	err = e.retry(ctx, "reveal", func(attempt int) error {
		var err error
		revealed, err = e.fairness.RevealRound(ctx, roundID, req.ClientSeed)
		if attempt > 1 && errors.Is(err, ErrAlreadyRevealed) {
			revealed, err = e.rounds.GetRound(ctx, roundID)
		}
		return err
	})
	if errors.Is(err, ErrRoundAbandoned) {
		if _, rerr := e.ledger.Refund(ctx, roundID); rerr != nil && !errors.Is(rerr, ErrAlreadyResolved) {
			e.log.Error("failed to refund bet on abandoned round", zap.String("round_id", roundID), zap.Error(rerr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	payout := game.Payout(revealed.Outcome, req.Selection, req.Amount)

	var bet *models.Bet
	err = e.retry(ctx, "resolve_bet", func(attempt int) error {
		var err error
		bet, err = e.ledger.ResolveBet(ctx, userID, roundID, payout, payout > 0, req.Currency)
		if attempt > 1 && errors.Is(err, ErrAlreadyResolved) {
			bet, err = e.ledger.Bet(ctx, roundID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.anticheat.Observe(ctx, userID, models.ActionEvent{
		SessionID: sessionID,
		Type:      models.ActionResolve,
		Amount:    payout,
	})

	balance, err := e.ledger.Balance(ctx, userID, req.Currency)
	if err != nil {
		return nil, err
	}

	return &models.PlayResult{
		Round:      revealed.Public(),
		Bet:        bet,
		Outcome:    revealed.Outcome,
		Payout:     payout,
		Win:        payout > 0,
		NewBalance: balance,
	}, nil
}

// confirmBet checks that a bet reported as already placed is the one an
// earlier attempt wrote.
func (e *GameEngine) confirmBet(ctx context.Context, userID, roundID string, req *models.PlayRoundRequest) error {
	bet, err := e.ledger.Bet(ctx, roundID)
	if err != nil {
		return err
	}
	if bet.UserID != userID || bet.Amount != req.Amount || bet.Currency != req.Currency {
		return ErrBetAlreadyPlaced
	}
	return nil
}

// SweepAbandonedRounds abandons rounds committed longer than RoundTimeout ago
// and refunds their bets. A round leaves the pending index only once its
// refund has gone through.
func (e *GameEngine) SweepAbandonedRounds(ctx context.Context) (int, error) {
	cutoff := e.clock.Now().Add(-e.cfg.RoundTimeout)
	rounds, err := e.rounds.PendingRounds(ctx, cutoff, e.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, round := range rounds {
		if round.Status == models.RoundStatusCommitted {
			if _, err := e.fairness.Abandon(ctx, round.ID); err != nil {
				if errors.Is(err, ErrAlreadyRevealed) {
					continue
				}
				if !errors.Is(err, ErrRoundAbandoned) {
					e.log.Error("failed to abandon round", zap.String("round_id", round.ID), zap.Error(err))
					continue
				}
			}
		}
		if round.Status == models.RoundStatusRevealed {
			if err := e.rounds.ClearPending(ctx, round.ID); err != nil {
				e.log.Error("failed to clear pending round", zap.String("round_id", round.ID), zap.Error(err))
			}
			continue
		}

		if _, err := e.ledger.Refund(ctx, round.ID); err != nil &&
			!errors.Is(err, ErrBetNotFound) && !errors.Is(err, ErrAlreadyResolved) {
			e.log.Error("failed to refund abandoned round", zap.String("round_id", round.ID), zap.Error(err))
			continue
		}

		if err := e.rounds.ClearPending(ctx, round.ID); err != nil {
			e.log.Error("failed to clear pending round", zap.String("round_id", round.ID), zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		e.log.Info("abandoned rounds swept", zap.Int("count", swept))
	}
	return swept, nil
}

// RunSweeper sweeps every SweepInterval until ctx is cancelled.
func (e *GameEngine) RunSweeper(ctx context.Context) error {
	interval := e.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := e.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.SweepAbandonedRounds(ctx); err != nil {
				e.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
