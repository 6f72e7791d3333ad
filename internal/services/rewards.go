package services

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fairplay-backend/internal/models"
)

// selfClaimable rewards are limited by cooldowns alone and may be claimed by
// the player. The rest are earned elsewhere and only a service grants them.
var rewardCatalog = map[models.RewardType]models.Reward{
	models.RewardDailyLogin:      {RegularAmount: 1000, SweepsAmount: 200, Cooldown: 24 * time.Hour},
	models.RewardAdView:          {RegularAmount: 100, SweepsAmount: 20, Cooldown: time.Hour, MaxDaily: 5},
	models.RewardLevelUp:         {RegularAmount: 5000, SweepsAmount: 1000},
	models.RewardAchievement:     {RegularAmount: 500, SweepsAmount: 100},
	models.RewardFriendReferral:  {RegularAmount: 2000, SweepsAmount: 400},
	models.RewardFirstPurchase:   {RegularAmount: 2000, SweepsAmount: 400},
	models.RewardSocialShare:     {RegularAmount: 200, SweepsAmount: 40, Cooldown: 24 * time.Hour},
	models.RewardTournamentEntry: {RegularAmount: 300, SweepsAmount: 60},
	models.RewardVIPBonus:        {RegularAmount: 10000, SweepsAmount: 2000, Cooldown: 7 * 24 * time.Hour},
}

func LookupReward(t models.RewardType) (models.Reward, error) {
	r, ok := rewardCatalog[t]
	if !ok {
		return models.Reward{}, errors.Wrapf(ErrUnknownReward, "%q", string(t))
	}
	r.Type = t
	return r, nil
}

// Rewards lists the catalog ordered by type.
func Rewards() []models.Reward {
	out := make([]models.Reward, 0, len(rewardCatalog))
	for t := range rewardCatalog {
		r, _ := LookupReward(t)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func selfClaimable(r models.Reward) bool {
	return r.Cooldown > 0
}

// ClaimReward credits a reward the player claims for themselves.
func (l *BettingLedger) ClaimReward(ctx context.Context, userID string, t models.RewardType) (*models.RewardClaim, []*models.Transaction, error) {
	r, err := LookupReward(t)
	if err != nil {
		return nil, nil, err
	}
	if !selfClaimable(r) {
		return nil, nil, errors.Wrapf(ErrRewardRestricted, "%q", string(t))
	}
	return l.grantReward(ctx, userID, r)
}

// GrantReward credits any reward on behalf of a game service.
func (l *BettingLedger) GrantReward(ctx context.Context, userID string, t models.RewardType) (*models.RewardClaim, []*models.Transaction, error) {
	r, err := LookupReward(t)
	if err != nil {
		return nil, nil, err
	}
	return l.grantReward(ctx, userID, r)
}

func (l *BettingLedger) grantReward(ctx context.Context, userID string, r models.Reward) (*models.RewardClaim, []*models.Transaction, error) {
	now := l.clock.Now().UTC()
	claim := &models.RewardClaim{
		ID:            models.GenerateRewardClaimID(),
		UserID:        userID,
		Type:          r.Type,
		RegularAmount: r.RegularAmount,
		SweepsAmount:  r.SweepsAmount,
		CreatedAt:     now,
	}

	var credits []*models.Transaction
	for _, c := range []struct {
		currency models.Currency
		amount   int64
	}{
		{models.CurrencyRegular, r.RegularAmount},
		{models.CurrencySweeps, r.SweepsAmount},
	} {
		if c.amount <= 0 {
			continue
		}
		credits = append(credits, &models.Transaction{
			ID:        models.GenerateTransactionID(),
			UserID:    userID,
			Currency:  c.currency,
			Amount:    c.amount,
			Kind:      models.TransactionKindBonus,
			CreatedAt: now,
		})
	}

	txs, err := l.store.ClaimReward(ctx, &RewardGrant{
		Claim:    claim,
		Credits:  credits,
		Cooldown: r.Cooldown,
		MaxDaily: r.MaxDaily,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRewardCooldown):
			return nil, nil, errors.Wrapf(err, "%s can be claimed again later", r.Type)
		case errors.Is(err, ErrRewardLimitReached):
			return nil, nil, errors.Wrapf(err, "%s can be claimed %d times a day", r.Type, r.MaxDaily)
		}
		return nil, nil, ledgerError(err)
	}

	l.metrics.RewardsClaimed.Inc(1)
	l.log.Info("reward claimed",
		zap.String("user_id", userID),
		zap.String("type", string(r.Type)),
		zap.Int64("regular", r.RegularAmount),
		zap.Int64("sweeps", r.SweepsAmount))
	l.publisher.Publish(NewEvent(now, EventRewardClaimed, userID, "", claim))

	return claim, txs, nil
}

// AvailableRewards lists the rewards the player could claim right now.
func (l *BettingLedger) AvailableRewards(ctx context.Context, userID string) ([]models.Reward, error) {
	now := l.clock.Now().UTC()
	var out []models.Reward
	for _, r := range Rewards() {
		if !selfClaimable(r) {
			continue
		}
		usage, err := l.store.RewardUsage(ctx, userID, r.Type, now)
		if err != nil {
			return nil, ledgerError(err)
		}
		g := &RewardGrant{Cooldown: r.Cooldown, MaxDaily: r.MaxDaily}
		if checkRewardUsage(usage, g, now) == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *BettingLedger) RewardHistory(ctx context.Context, userID string, limit int) ([]*models.RewardClaim, error) {
	claims, err := l.store.RewardClaims(ctx, userID, limit)
	if err != nil {
		return nil, ledgerError(err)
	}
	return claims, nil
}
