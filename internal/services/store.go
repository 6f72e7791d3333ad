package services

import (
	"context"
	"time"

	"fairplay-backend/internal/models"
)

// RoundStore persists fairness rounds. State transitions are conditional
// updates performed inside the store, never read-modify-write in Go.
type RoundStore interface {
	// NextNonce atomically increments and returns the nonce of (userID, game).
	NextNonce(ctx context.Context, userID string, game models.GameType) (int64, error)
	CreateRound(ctx context.Context, round *models.Round) error
	GetRound(ctx context.Context, roundID string) (*models.Round, error)
	// RevealRound moves a committed round to revealed, storing the fields of
	// revealed. It fails with ErrAlreadyRevealed or ErrRoundAbandoned otherwise.
	RevealRound(ctx context.Context, revealed *models.Round) error
	// AbandonRound moves a committed round to abandoned. The round stays in the
	// pending index until ClearPending is called.
	AbandonRound(ctx context.Context, roundID string, at time.Time) error
	PendingRounds(ctx context.Context, committedBefore time.Time, limit int) ([]*models.Round, error)
	ClearPending(ctx context.Context, roundID string) error
}

// BetPlacement is applied atomically: balance and daily limit are checked,
// the balance debited, the transaction appended and the bet recorded.
type BetPlacement struct {
	Bet         *models.Bet
	Transaction *models.Transaction
	DailyLimit  int64
	Day         time.Time
}

// BetSettlement settles a placed bet exactly once. When Credit is set its
// amount is added to the balance in the same step.
type BetSettlement struct {
	RoundID   string
	UserID    string
	Currency  models.Currency
	Status    models.BetStatus
	Payout    int64
	Credit    *models.Transaction
	SettledAt time.Time
}

type LedgerStore interface {
	PlaceBet(ctx context.Context, p *BetPlacement) (*models.Transaction, error)
	SettleBet(ctx context.Context, s *BetSettlement) (*models.Bet, error)
	GetBet(ctx context.Context, roundID string) (*models.Bet, error)
	// Credit appends a positive transaction and adds it to the balance.
	Credit(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	// OpenAccount runs grants once per user; later calls are no-ops that
	// return false.
	OpenAccount(ctx context.Context, userID string, grants []*models.Transaction) (bool, error)
	Balance(ctx context.Context, userID string, currency models.Currency) (int64, error)
	DailyWagered(ctx context.Context, userID string, currency models.Currency, day time.Time) (int64, error)
	Transactions(ctx context.Context, userID string, currency models.Currency, limit int) ([]*models.Transaction, error)
	VIPLevel(ctx context.Context, userID string) (int, error)
	SetVIPLevel(ctx context.Context, userID string, level int) error
	RewardStore
}

// RewardGrant is applied atomically: the cooldown and daily cap are checked
// against earlier claims of the same type, then the claim is recorded and
// every credit applied.
type RewardGrant struct {
	Claim    *models.RewardClaim
	Credits  []*models.Transaction
	Cooldown time.Duration
	MaxDaily int
}

// RewardUsage summarises the earlier claims of one reward type. LastClaimAt
// is zero when the type was never claimed.
type RewardUsage struct {
	LastClaimAt  time.Time
	ClaimedToday int
}

type RewardStore interface {
	// ClaimReward fails with ErrRewardCooldown or ErrRewardLimitReached and
	// otherwise returns the credits with their resulting balances.
	ClaimReward(ctx context.Context, g *RewardGrant) ([]*models.Transaction, error)
	RewardUsage(ctx context.Context, userID string, reward models.RewardType, day time.Time) (RewardUsage, error)
	RewardClaims(ctx context.Context, userID string, limit int) ([]*models.RewardClaim, error)
}

type ViolationStore interface {
	RecordViolation(ctx context.Context, v *models.Violation) error
}

type Store interface {
	RoundStore
	LedgerStore
	ViolationStore
	Close() error
}

// DayKey is the UTC calendar day used for daily wager accounting.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// checkRewardUsage applies the cooldown and daily cap of g to a claim at now.
func checkRewardUsage(usage RewardUsage, g *RewardGrant, now time.Time) error {
	if g.Cooldown > 0 && !usage.LastClaimAt.IsZero() && now.Before(usage.LastClaimAt.Add(g.Cooldown)) {
		return ErrRewardCooldown
	}
	if g.MaxDaily > 0 && usage.ClaimedToday >= g.MaxDaily {
		return ErrRewardLimitReached
	}
	return nil
}
