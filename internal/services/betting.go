package services

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
)

// BettingLedger owns every balance change. Checks that depend on the balance
// or on today's wagers are repeated inside the store's atomic operation, the
// checks here only produce friendlier messages.
type BettingLedger struct {
	store     LedgerStore
	limits    config.LimitsConfig
	publisher Publisher
	clock     clock.Clock
	log       *zap.Logger
	metrics   *Metrics
}

func NewBettingLedger(store LedgerStore, limits config.LimitsConfig, publisher Publisher, clk clock.Clock, log *zap.Logger, metrics *Metrics) *BettingLedger {
	return &BettingLedger{
		store:     store,
		limits:    limits,
		publisher: publisher,
		clock:     clk,
		log:       log.Named("ledger"),
		metrics:   metrics,
	}
}

func ledgerError(err error) error {
	if err == nil || KindOf(err) != KindInternal {
		return err
	}
	return errors.Wrapf(ErrLedgerUnavailable, "ledger: %v", err)
}

func validCurrency(currency models.Currency) error {
	if err := currency.Validate(); err != nil {
		return errors.Wrap(ErrInvalidCurrency, err.Error())
	}
	return nil
}

func (l *BettingLedger) baseLimits(currency models.Currency) (minBet, maxBet int64) {
	if currency == models.CurrencySweeps {
		return l.limits.MinBetSweeps, l.limits.MaxBetSweeps
	}
	return l.limits.MinBetRegular, l.limits.MaxBetRegular
}

// GetLimits derives the player's limits for today. The maximum bet grows by
// half the base maximum for every VIP level above 1.
func (l *BettingLedger) GetLimits(ctx context.Context, userID string, currency models.Currency) (*models.PlayerLimits, error) {
	if err := validCurrency(currency); err != nil {
		return nil, err
	}

	vip, err := l.store.VIPLevel(ctx, userID)
	if err != nil {
		return nil, ledgerError(err)
	}
	if vip < 1 {
		vip = 1
	}

	minBet, baseMax := l.baseLimits(currency)
	maxBet := baseMax * int64(vip+1) / 2
	daily := l.limits.DailyMultiple * maxBet

	now := l.clock.Now()
	wagered, err := l.store.DailyWagered(ctx, userID, currency, now)
	if err != nil {
		return nil, ledgerError(err)
	}

	remaining := daily - wagered
	if remaining < 0 {
		remaining = 0
	}

	return &models.PlayerLimits{
		Currency:       currency,
		MinBet:         minBet,
		MaxBet:         maxBet,
		DailyLimit:     daily,
		DailyWagered:   wagered,
		RemainingDaily: remaining,
		ResetsAt:       startOfDay(now).Add(24 * time.Hour),
	}, nil
}

// PlaceBet debits amount for roundID and records the wager.
func (l *BettingLedger) PlaceBet(ctx context.Context, userID, roundID string, amount int64, currency models.Currency) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "bet amount must be positive")
	}

	limits, err := l.GetLimits(ctx, userID, currency)
	if err != nil {
		return nil, err
	}

	if amount < limits.MinBet {
		l.metrics.BetsRejected.Inc(1)
		return nil, errors.Wrapf(ErrBetOutOfRange, "minimum bet is %s", models.FormatCurrency(limits.MinBet))
	}
	if amount > limits.MaxBet {
		l.metrics.BetsRejected.Inc(1)
		return nil, errors.Wrapf(ErrBetOutOfRange, "maximum bet is %s", models.FormatCurrency(limits.MaxBet))
	}
	if amount > limits.RemainingDaily {
		l.metrics.BetsRejected.Inc(1)
		return nil, errors.Wrapf(ErrDailyLimitExceeded, "you can wager %s more today",
			models.FormatCurrency(limits.RemainingDaily))
	}

	now := l.clock.Now().UTC()
	placement := &BetPlacement{
		Bet: &models.Bet{
			RoundID:  roundID,
			UserID:   userID,
			Currency: currency,
			Amount:   amount,
			Status:   models.BetStatusPlaced,
			PlacedAt: now,
		},
		Transaction: &models.Transaction{
			ID:        models.GenerateTransactionID(),
			UserID:    userID,
			RoundID:   roundID,
			Currency:  currency,
			Amount:    -amount,
			Kind:      models.TransactionKindBet,
			CreatedAt: now,
		},
		DailyLimit: limits.DailyLimit,
		Day:        now,
	}

	tx, err := l.store.PlaceBet(ctx, placement)
	if err != nil {
		l.metrics.BetsRejected.Inc(1)
		switch {
		case errors.Is(err, ErrInsufficientBalance):
			return nil, errors.Wrapf(err, "balance is too low for a %s bet", models.FormatCurrency(amount))
		case errors.Is(err, ErrDailyLimitExceeded):
			return nil, errors.Wrapf(err, "daily limit of %s reached", models.FormatCurrency(limits.DailyLimit))
		}
		return nil, ledgerError(err)
	}

	l.metrics.BetsPlaced.Mark(1)
	l.log.Debug("bet placed",
		zap.String("user_id", userID),
		zap.String("round_id", roundID),
		zap.String("currency", string(currency)),
		zap.Int64("amount", amount),
		zap.Int64("balance_after", tx.BalanceAfter))
	l.publisher.Publish(NewEvent(l.clock.Now().UTC(), EventBetPlaced, userID, roundID, tx))

	return tx, nil
}

// ResolveBet settles the bet of roundID once. A win credits payout; a loss
// only marks the bet settled.
func (l *BettingLedger) ResolveBet(ctx context.Context, userID, roundID string, payout int64, won bool, currency models.Currency) (*models.Bet, error) {
	if err := validCurrency(currency); err != nil {
		return nil, err
	}
	if payout < 0 || (won && payout == 0) {
		return nil, errors.Wrapf(ErrInvalidAmount, "payout %d", payout)
	}

	now := l.clock.Now().UTC()
	settlement := &BetSettlement{
		RoundID:   roundID,
		UserID:    userID,
		Currency:  currency,
		Status:    models.BetStatusLost,
		SettledAt: now,
	}
	if won {
		settlement.Status = models.BetStatusWon
		settlement.Payout = payout
		settlement.Credit = &models.Transaction{
			ID:        models.GenerateTransactionID(),
			UserID:    userID,
			RoundID:   roundID,
			Currency:  currency,
			Amount:    payout,
			Kind:      models.TransactionKindWin,
			CreatedAt: now,
		}
	}

	bet, err := l.store.SettleBet(ctx, settlement)
	if err != nil {
		return nil, ledgerError(err)
	}

	l.metrics.BetsResolved.Inc(1)
	l.publisher.Publish(NewEvent(l.clock.Now().UTC(), EventBetResolved, userID, roundID, bet))

	return bet, nil
}

// Refund returns the stake of an unsettled bet. Rounds without a bet have
// nothing to refund and report ErrBetNotFound.
func (l *BettingLedger) Refund(ctx context.Context, roundID string) (*models.Bet, error) {
	bet, err := l.store.GetBet(ctx, roundID)
	if err != nil {
		return nil, ledgerError(err)
	}

	now := l.clock.Now().UTC()
	refunded, err := l.store.SettleBet(ctx, &BetSettlement{
		RoundID:   roundID,
		UserID:    bet.UserID,
		Currency:  bet.Currency,
		Status:    models.BetStatusRefunded,
		Payout:    bet.Amount,
		SettledAt: now,
		Credit: &models.Transaction{
			ID:        models.GenerateTransactionID(),
			UserID:    bet.UserID,
			RoundID:   roundID,
			Currency:  bet.Currency,
			Amount:    bet.Amount,
			Kind:      models.TransactionKindRefund,
			CreatedAt: now,
		},
	})
	if err != nil {
		return nil, ledgerError(err)
	}

	l.metrics.Refunds.Inc(1)
	l.log.Info("bet refunded",
		zap.String("user_id", bet.UserID),
		zap.String("round_id", roundID),
		zap.Int64("amount", bet.Amount))
	l.publisher.Publish(NewEvent(l.clock.Now().UTC(), EventBetResolved, bet.UserID, roundID, refunded))

	return refunded, nil
}

// OpenAccount grants the signup balances once per user. It reports whether
// this call opened the account.
func (l *BettingLedger) OpenAccount(ctx context.Context, userID string) (bool, error) {
	now := l.clock.Now().UTC()
	var grants []*models.Transaction
	for _, c := range models.Currencies {
		amount := l.limits.InitialRegular
		if c == models.CurrencySweeps {
			amount = l.limits.InitialSweeps
		}
		if amount <= 0 {
			continue
		}
		grants = append(grants, &models.Transaction{
			ID:        models.GenerateTransactionID(),
			UserID:    userID,
			Currency:  c,
			Amount:    amount,
			Kind:      models.TransactionKindBonus,
			CreatedAt: now,
		})
	}

	opened, err := l.store.OpenAccount(ctx, userID, grants)
	if err != nil {
		return false, ledgerError(err)
	}
	if opened {
		l.log.Info("account opened", zap.String("user_id", userID))
	}
	return opened, nil
}

// Credit adds a bonus or purchase to one currency.
func (l *BettingLedger) Credit(ctx context.Context, userID string, currency models.Currency, amount int64, kind models.TransactionKind) (*models.Transaction, error) {
	if err := validCurrency(currency); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "credit amount must be positive")
	}
	if kind != models.TransactionKindBonus && kind != models.TransactionKindPurchase {
		return nil, errors.Wrapf(ErrInvalidAmount, "cannot credit a %q transaction", kind)
	}

	tx, err := l.store.Credit(ctx, &models.Transaction{
		ID:        models.GenerateTransactionID(),
		UserID:    userID,
		Currency:  currency,
		Amount:    amount,
		Kind:      kind,
		CreatedAt: l.clock.Now().UTC(),
	})
	if err != nil {
		return nil, ledgerError(err)
	}

	l.publisher.Publish(NewEvent(l.clock.Now().UTC(), EventAccountCredited, userID, "", tx))
	return tx, nil
}

func (l *BettingLedger) Balances(ctx context.Context, userID string) (*models.Account, error) {
	regular, err := l.store.Balance(ctx, userID, models.CurrencyRegular)
	if err != nil {
		return nil, ledgerError(err)
	}
	sweeps, err := l.store.Balance(ctx, userID, models.CurrencySweeps)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &models.Account{UserID: userID, Regular: regular, Sweeps: sweeps}, nil
}

func (l *BettingLedger) Balance(ctx context.Context, userID string, currency models.Currency) (int64, error) {
	if err := validCurrency(currency); err != nil {
		return 0, err
	}
	balance, err := l.store.Balance(ctx, userID, currency)
	if err != nil {
		return 0, ledgerError(err)
	}
	return balance, nil
}

func (l *BettingLedger) Transactions(ctx context.Context, userID string, currency models.Currency, limit int) ([]*models.Transaction, error) {
	if err := validCurrency(currency); err != nil {
		return nil, err
	}
	txs, err := l.store.Transactions(ctx, userID, currency, limit)
	if err != nil {
		return nil, ledgerError(err)
	}
	return txs, nil
}

func (l *BettingLedger) Bet(ctx context.Context, roundID string) (*models.Bet, error) {
	bet, err := l.store.GetBet(ctx, roundID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return bet, nil
}
