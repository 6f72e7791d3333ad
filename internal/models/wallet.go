package models

import "time"

// Account is a read view over the two ledgers of a user. The balances are
// never stored together and never converted into each other.
type Account struct {
	UserID  string `json:"user_id"`
	Regular int64  `json:"regular"`
	Sweeps  int64  `json:"sweeps"`
}

type BetStatus string

const (
	BetStatusPlaced   BetStatus = "placed"
	BetStatusWon      BetStatus = "won"
	BetStatusLost     BetStatus = "lost"
	BetStatusRefunded BetStatus = "refunded"
)

// Bet is the settlement record for the wager of one round.
type Bet struct {
	RoundID   string     `json:"round_id"`
	UserID    string     `json:"user_id"`
	Currency  Currency   `json:"currency"`
	Amount    int64      `json:"amount"`
	Payout    int64      `json:"payout"`
	Status    BetStatus  `json:"status"`
	PlacedAt  time.Time  `json:"placed_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

type PlayerLimits struct {
	Currency       Currency  `json:"currency"`
	MinBet         int64     `json:"min_bet"`
	MaxBet         int64     `json:"max_bet"`
	DailyLimit     int64     `json:"daily_limit"`
	DailyWagered   int64     `json:"daily_wagered"`
	RemainingDaily int64     `json:"remaining_daily"`
	ResetsAt       time.Time `json:"resets_at"`
}
