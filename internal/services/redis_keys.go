package services

import "time"

const (
	KeyRound            = "round:%s"
	KeyPendingRounds    = "rounds:pending"
	KeyNonce            = "nonce:%s:%s"
	KeyBet              = "bet:%s"
	KeyWallet           = "wallet:%s:%s"
	KeyWagered          = "wagered:%s:%s:%s"
	KeyTransaction      = "transaction:%s"
	KeyUserTransactions = "user:%s:transactions:%s"
	KeyAccountOpened    = "account:%s:opened"
	KeyVIPLevel         = "user:%s:vip"
	KeyRewardLast       = "reward:%s:%s:last"
	KeyRewardDaily      = "reward:%s:%s:%s"
	KeyRewardClaim      = "reward_claim:%s"
	KeyUserRewardClaims = "user:%s:rewards"
	KeyViolation        = "violation:%s"
	KeyUserViolations   = "user:%s:violations"
	KeyRateLimit        = "ratelimit:%s:%s"

	TTLWagered     = 48 * time.Hour
	TTLRewardDaily = 48 * time.Hour
	TTLViolation   = 90 * 24 * time.Hour // 90 days

	MaxViolationsPerUser = 100

	DefaultRateLimitBets    = 30 // Max 30 bets per minute
	DefaultRateLimitRounds  = 60 // Max 60 round commits per minute
	DefaultRateLimitRewards = 10 // Max 10 reward claims per minute
)
