package models

import "time"

type RewardType string

const (
	RewardDailyLogin      RewardType = "daily_login"
	RewardAdView          RewardType = "ad_view"
	RewardLevelUp         RewardType = "level_up"
	RewardAchievement     RewardType = "achievement"
	RewardFriendReferral  RewardType = "friend_referral"
	RewardFirstPurchase   RewardType = "first_purchase"
	RewardSocialShare     RewardType = "social_share"
	RewardTournamentEntry RewardType = "tournament_entry"
	RewardVIPBonus        RewardType = "vip_bonus"
)

// Reward is one entry of the bonus catalog. A zero Cooldown or MaxDaily means
// the reward is not limited that way.
type Reward struct {
	Type          RewardType    `json:"type"`
	RegularAmount int64         `json:"regular_amount"`
	SweepsAmount  int64         `json:"sweeps_amount"`
	Cooldown      time.Duration `json:"cooldown,omitempty"`
	MaxDaily      int           `json:"max_daily,omitempty"`
}

// RewardClaim records a granted reward. Both amounts are credited in the
// same step as the claim is written.
type RewardClaim struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Type          RewardType `json:"type"`
	RegularAmount int64      `json:"regular_amount"`
	SweepsAmount  int64      `json:"sweeps_amount"`
	CreatedAt     time.Time  `json:"created_at"`
}


// PurchaseRequest is sent by the payment service once a coin package is paid.
type PurchaseRequest struct {
	UserID   string   `json:"user_id" binding:"required"`
	Currency Currency `json:"currency" binding:"required"`
	Amount   int64    `json:"amount" binding:"required"`
}

// RewardGrantRequest names the player a game service rewards.
type RewardGrantRequest struct {
	UserID string `json:"user_id" binding:"required"`
}
