package models

import (
	"fmt"
	"time"
)

// Currency identifies one of the two independent ledgers of an account.
// Regular coins are wagering-only; sweeps coins are withdrawal-eligible.
type Currency string

const (
	CurrencyRegular Currency = "regular"
	CurrencySweeps  Currency = "sweeps"
)

var Currencies = []Currency{CurrencyRegular, CurrencySweeps}

func (c Currency) Validate() error {
	switch c {
	case CurrencyRegular, CurrencySweeps:
		return nil
	}
	return fmt.Errorf("invalid currency: %q", string(c))
}

type TransactionKind string

const (
	TransactionKindBet      TransactionKind = "bet"
	TransactionKindWin      TransactionKind = "win"
	TransactionKindBonus    TransactionKind = "bonus"
	TransactionKindPurchase TransactionKind = "purchase"
	TransactionKindRefund   TransactionKind = "refund"
)

// Transaction is an immutable balance-affecting event. Amount is signed and in
// cents: bets are negative, credits positive.
type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	RoundID      string          `json:"round_id,omitempty"`
	Currency     Currency        `json:"currency"`
	Amount       int64           `json:"amount"`
	Kind         TransactionKind `json:"kind"`
	BalanceAfter int64           `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}
