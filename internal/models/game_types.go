package models

import "fmt"

type GameType string

const (
	GameTypeSlots    GameType = "slots"
	GameTypeRoulette GameType = "roulette"
	GameTypeDice     GameType = "dice"
	GameTypeCoinFlip GameType = "coinflip"
)

// DrawSpec is the shape of a round's random draw: Count integers in [Min, Max].
type DrawSpec struct {
	Count int `json:"count"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

type StartRoundRequest struct {
	GameType GameType `json:"game_type" binding:"required"`
}

type PlayRoundRequest struct {
	Amount     int64    `json:"amount" binding:"required"`
	Currency   Currency `json:"currency" binding:"required"`
	ClientSeed string   `json:"client_seed"`
	Selection  string   `json:"selection"`
}

type BetRequest struct {
	RoundID  string   `json:"round_id" binding:"required"`
	Amount   int64    `json:"amount" binding:"required"`
	Currency Currency `json:"currency" binding:"required"`
}

// ResolveRequest is sent by game servers; UserID names the player whose bet
// is settled.
type ResolveRequest struct {
	UserID   string   `json:"user_id" binding:"required"`
	RoundID  string   `json:"round_id" binding:"required"`
	Amount   int64    `json:"amount"`
	Won      bool     `json:"won"`
	Currency Currency `json:"currency" binding:"required"`
}

type RevealRequest struct {
	ClientSeed string `json:"client_seed"`
}

type PlayResult struct {
	Round      *Round `json:"round"`
	Bet        *Bet   `json:"bet"`
	Outcome    []int  `json:"outcome"`
	Payout     int64  `json:"payout"`
	Win        bool   `json:"win"`
	NewBalance int64  `json:"new_balance"`
}

func (r *BetRequest) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("bet amount must be positive")
	}
	return r.Currency.Validate()
}

func (r *ResolveRequest) Validate() error {
	if r.Amount < 0 {
		return fmt.Errorf("payout amount cannot be negative")
	}
	if r.Won && r.Amount == 0 {
		return fmt.Errorf("a winning resolution needs a payout amount")
	}
	return r.Currency.Validate()
}

func (r *PlayRoundRequest) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("bet amount must be positive")
	}
	return r.Currency.Validate()
}
