package models

import "time"

type RoundStatus string

const (
	RoundStatusCommitted RoundStatus = "committed"
	RoundStatusRevealed  RoundStatus = "revealed"
	RoundStatusAbandoned RoundStatus = "abandoned"
)

// Round is one unit of gameplay requiring randomness. Once it leaves the
// committed state it is never modified again.
type Round struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	GameType GameType `json:"game_type"`
	Nonce    int64    `json:"nonce"`
	Draw     DrawSpec `json:"draw"`

	ServerSeed       string `json:"server_seed,omitempty"`
	ServerSeedHash   string `json:"server_seed_hash"`
	ClientSeed       string `json:"client_seed,omitempty"`
	Outcome          []int  `json:"outcome,omitempty"`
	VerificationHash string `json:"verification_hash,omitempty"`
	Algorithm        string `json:"algorithm"`

	Status      RoundStatus `json:"status"`
	CommittedAt time.Time   `json:"committed_at"`
	RevealedAt  *time.Time  `json:"revealed_at,omitempty"`
}

// Public returns a copy safe to hand to players: the server seed stays hidden
// until the round has left the committed state.
func (r *Round) Public() *Round {
	cp := *r
	if cp.Status == RoundStatusCommitted {
		cp.ServerSeed = ""
	}
	if r.Outcome != nil {
		cp.Outcome = append([]int(nil), r.Outcome...)
	}
	return &cp
}

// VerificationReport is exposed verbatim for third-party audit.
type VerificationReport struct {
	RoundID          string      `json:"round_id"`
	IsValid          bool        `json:"is_valid"`
	Status           RoundStatus `json:"status"`
	ServerSeed       string      `json:"server_seed,omitempty"`
	ServerSeedHash   string      `json:"server_seed_hash"`
	ClientSeed       string      `json:"client_seed,omitempty"`
	Nonce            int64       `json:"nonce"`
	Outcome          []int       `json:"outcome,omitempty"`
	VerificationHash string      `json:"verification_hash,omitempty"`
	Algorithm        string      `json:"algorithm"`
	Reason           string      `json:"reason,omitempty"`
}
