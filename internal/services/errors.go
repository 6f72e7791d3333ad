package services

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies failures so callers know whether to retry, report, or
// treat the call as already done.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindConflict    ErrorKind = "conflict"
	KindNotFound    ErrorKind = "not_found"
	KindTransient   ErrorKind = "transient"
	KindIntegrity   ErrorKind = "integrity"
	KindSecurity    ErrorKind = "security"
	KindRateLimited ErrorKind = "rate_limited"
	KindInternal    ErrorKind = "internal"
)

type kindError struct {
	kind ErrorKind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newKindError(kind ErrorKind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrEntropyUnavailable   = newKindError(KindTransient, "entropy unavailable")
	ErrLedgerUnavailable    = newKindError(KindTransient, "ledger unavailable")
	ErrInvalidRange         = newKindError(KindValidation, "invalid range")
	ErrInvalidAmount        = newKindError(KindValidation, "invalid amount")
	ErrInvalidCurrency      = newKindError(KindValidation, "invalid currency")
	ErrBetOutOfRange        = newKindError(KindValidation, "bet out of range")
	ErrDailyLimitExceeded   = newKindError(KindValidation, "daily wager limit exceeded")
	ErrInsufficientBalance  = newKindError(KindValidation, "insufficient balance")
	ErrBetMismatch          = newKindError(KindValidation, "bet does not match round owner or currency")
	ErrUnknownGame          = newKindError(KindValidation, "unknown game")
	ErrInvalidSelection     = newKindError(KindValidation, "invalid selection")
	ErrUnknownReward        = newKindError(KindValidation, "unknown reward")
	ErrRoundExists          = newKindError(KindConflict, "round already exists")
	ErrAlreadyRevealed      = newKindError(KindConflict, "round already revealed")
	ErrRoundAbandoned       = newKindError(KindConflict, "round abandoned")
	ErrBetAlreadyPlaced     = newKindError(KindConflict, "bet already placed for round")
	ErrAlreadyResolved      = newKindError(KindConflict, "bet already resolved")
	ErrRewardCooldown       = newKindError(KindConflict, "reward is cooling down")
	ErrRewardLimitReached   = newKindError(KindConflict, "daily reward limit reached")
	ErrRoundNotFound        = newKindError(KindNotFound, "round not found")
	ErrNotRevealed          = newKindError(KindNotFound, "round not revealed")
	ErrBetNotFound          = newKindError(KindNotFound, "bet not found")
	ErrUnsupportedAlgorithm = newKindError(KindIntegrity, "unsupported fairness algorithm")
	ErrIntegrity            = newKindError(KindIntegrity, "fairness integrity check failed")
	ErrActionRejected       = newKindError(KindSecurity, "action rejected")
	ErrRoundNotOwned        = newKindError(KindSecurity, "round belongs to another player")
	ErrRewardRestricted     = newKindError(KindSecurity, "reward is granted by the game service")
	ErrRateLimited          = newKindError(KindRateLimited, "rate limit exceeded")
)

// KindOf returns the classification of err, or KindInternal when err does not
// wrap one of the package sentinels.
func KindOf(err error) ErrorKind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}

func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
