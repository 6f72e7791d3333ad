package models

import "time"

type ActionType string

const (
	ActionBet     ActionType = "bet"
	ActionReveal  ActionType = "reveal"
	ActionResolve ActionType = "resolve"
)

type ActionEvent struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Type      ActionType `json:"type"`
	Amount    int64      `json:"amount,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type Violation struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id"`
	Type      string        `json:"type"`
	Actions   []ActionEvent `json:"actions"`
	CreatedAt time.Time     `json:"created_at"`
}
