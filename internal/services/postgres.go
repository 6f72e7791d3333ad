package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
)

type RoundRecord struct {
	ID        string `gorm:"primaryKey;size:80"`
	UserID    string `gorm:"size:100;not null;index"`
	GameType  string `gorm:"size:20;not null"`
	Nonce     int64  `gorm:"not null"`
	DrawCount int
	DrawMin   int
	DrawMax   int

	ServerSeed       string         `gorm:"size:64;not null"`
	ServerSeedHash   string         `gorm:"size:64;not null"`
	ClientSeed       string         `gorm:"size:128"`
	Outcome          datatypes.JSON `gorm:"type:jsonb"`
	VerificationHash string         `gorm:"size:64"`
	Algorithm        string         `gorm:"size:40;not null"`
	Status           string         `gorm:"size:16;not null;index"`
	Pending          bool           `gorm:"index"`
	CommittedAt      time.Time      `gorm:"index"`
	RevealedAt       *time.Time
}

type BetRecord struct {
	RoundID   string `gorm:"primaryKey;size:80"`
	UserID    string `gorm:"size:100;not null;index"`
	Currency  string `gorm:"size:10;not null"`
	Amount    int64  `gorm:"not null"`
	Payout    int64
	Status    string `gorm:"size:16;not null"`
	PlacedAt  time.Time
	SettledAt *time.Time
}

type TransactionRecord struct {
	ID           string `gorm:"primaryKey;size:80"`
	UserID       string `gorm:"size:100;not null;index:idx_tx_user_currency"`
	Currency     string `gorm:"size:10;not null;index:idx_tx_user_currency"`
	RoundID      string `gorm:"size:80;index"`
	Amount       int64  `gorm:"not null"`
	Kind         string `gorm:"size:16;not null"`
	BalanceAfter int64
	CreatedAt    time.Time `gorm:"index"`
}

type BalanceRecord struct {
	UserID   string `gorm:"primaryKey;size:100"`
	Currency string `gorm:"primaryKey;size:10"`
	Balance  int64  `gorm:"not null;default:0"`
}

type WagerRecord struct {
	UserID   string `gorm:"primaryKey;size:100"`
	Currency string `gorm:"primaryKey;size:10"`
	Day      string `gorm:"primaryKey;size:10"`
	Wagered  int64  `gorm:"not null;default:0"`
}

type NonceRecord struct {
	UserID   string `gorm:"primaryKey;size:100"`
	GameType string `gorm:"primaryKey;size:20"`
	Nonce    int64  `gorm:"not null;default:0"`
}

type AccountRecord struct {
	UserID   string `gorm:"primaryKey;size:100"`
	VIPLevel int    `gorm:"not null;default:1"`
	Opened   bool
}

type RewardClaimRecord struct {
	ID            string `gorm:"primaryKey;size:80"`
	UserID        string `gorm:"size:100;not null;index"`
	Type          string `gorm:"size:32;not null"`
	RegularAmount int64
	SweepsAmount  int64
	CreatedAt     time.Time `gorm:"index"`
}

// RewardCounterRecord is locked to serialise the claims of one reward type.
type RewardCounterRecord struct {
	UserID       string `gorm:"primaryKey;size:100"`
	Type         string `gorm:"primaryKey;size:32"`
	LastClaimAt  *time.Time
	Day          string `gorm:"size:10"`
	ClaimedToday int
}

func (rec *RewardCounterRecord) usage(day time.Time) RewardUsage {
	var usage RewardUsage
	if rec.LastClaimAt != nil {
		usage.LastClaimAt = *rec.LastClaimAt
	}
	if rec.Day == DayKey(day) {
		usage.ClaimedToday = rec.ClaimedToday
	}
	return usage
}

type ViolationRecord struct {
	ID        string         `gorm:"primaryKey;size:80"`
	UserID    string         `gorm:"size:100;not null;index"`
	SessionID string         `gorm:"size:100;index"`
	Type      string         `gorm:"size:40;not null"`
	Actions   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}

// PostgresStore is the durable store. Balance rows are taken with SELECT ...
// FOR UPDATE inside a transaction; round transitions are conditional updates.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(cfg *config.Config) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(
			&RoundRecord{},
			&BetRecord{},
			&TransactionRecord{},
			&BalanceRecord{},
			&WagerRecord{},
			&NonceRecord{},
			&AccountRecord{},
			&RewardClaimRecord{},
			&RewardCounterRecord{},
			&ViolationRecord{},
		); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate database: %v", err)
		}
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dbError(err error) error {
	return errors.Wrapf(ErrLedgerUnavailable, "postgres: %v", err)
}

// passThrough keeps package sentinels returned from inside a transaction and
// wraps everything else as unavailable.
func passThrough(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	return dbError(err)
}

func (s *PostgresStore) NextNonce(ctx context.Context, userID string, game models.GameType) (int64, error) {
	var nonce int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := NonceRecord{UserID: userID, GameType: string(game)}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND game_type = ?", userID, game).
			First(&rec).Error; err != nil {
			return err
		}
		rec.Nonce++
		nonce = rec.Nonce
		return tx.Model(&rec).Where("user_id = ? AND game_type = ?", userID, game).
			Update("nonce", rec.Nonce).Error
	})
	if err != nil {
		return 0, dbError(err)
	}
	return nonce, nil
}

func roundToRecord(r *models.Round) (*RoundRecord, error) {
	var outcome datatypes.JSON
	if r.Outcome != nil {
		data, err := json.Marshal(r.Outcome)
		if err != nil {
			return nil, err
		}
		outcome = datatypes.JSON(data)
	}
	return &RoundRecord{
		ID:               r.ID,
		UserID:           r.UserID,
		GameType:         string(r.GameType),
		Nonce:            r.Nonce,
		DrawCount:        r.Draw.Count,
		DrawMin:          r.Draw.Min,
		DrawMax:          r.Draw.Max,
		ServerSeed:       r.ServerSeed,
		ServerSeedHash:   r.ServerSeedHash,
		ClientSeed:       r.ClientSeed,
		Outcome:          outcome,
		VerificationHash: r.VerificationHash,
		Algorithm:        r.Algorithm,
		Status:           string(r.Status),
		Pending:          r.Status == models.RoundStatusCommitted,
		CommittedAt:      r.CommittedAt,
		RevealedAt:       r.RevealedAt,
	}, nil
}

func (rec *RoundRecord) toModel() (*models.Round, error) {
	r := &models.Round{
		ID:               rec.ID,
		UserID:           rec.UserID,
		GameType:         models.GameType(rec.GameType),
		Nonce:            rec.Nonce,
		Draw:             models.DrawSpec{Count: rec.DrawCount, Min: rec.DrawMin, Max: rec.DrawMax},
		ServerSeed:       rec.ServerSeed,
		ServerSeedHash:   rec.ServerSeedHash,
		ClientSeed:       rec.ClientSeed,
		VerificationHash: rec.VerificationHash,
		Algorithm:        rec.Algorithm,
		Status:           models.RoundStatus(rec.Status),
		CommittedAt:      rec.CommittedAt,
		RevealedAt:       rec.RevealedAt,
	}
	if len(rec.Outcome) > 0 {
		if err := json.Unmarshal(rec.Outcome, &r.Outcome); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome: %v", err)
		}
	}
	return r, nil
}

func (s *PostgresStore) CreateRound(ctx context.Context, round *models.Round) error {
	rec, err := roundToRecord(round)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoundExists
	}
	return nil
}

func (s *PostgresStore) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	var rec RoundRecord
	err := s.db.WithContext(ctx).Where("id = ?", roundID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}
	return rec.toModel()
}

// transition applies updates only while the round is still committed and
// reports the reason when it is not.
func (s *PostgresStore) transition(ctx context.Context, roundID string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&RoundRecord{}).
		Where("id = ? AND status = ?", roundID, models.RoundStatusCommitted).
		Updates(updates)
	if res.Error != nil {
		return dbError(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	cur, err := s.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if err := transitionError(cur.Status); err != nil {
		return err
	}
	return errors.Wrapf(ErrLedgerUnavailable, "round %s was not updated", roundID)
}

func (s *PostgresStore) RevealRound(ctx context.Context, revealed *models.Round) error {
	outcome, err := json.Marshal(revealed.Outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %v", err)
	}
	return s.transition(ctx, revealed.ID, map[string]interface{}{
		"client_seed":       revealed.ClientSeed,
		"outcome":           datatypes.JSON(outcome),
		"verification_hash": revealed.VerificationHash,
		"revealed_at":       revealed.RevealedAt,
		"status":            string(models.RoundStatusRevealed),
		"pending":           false,
	})
}

func (s *PostgresStore) AbandonRound(ctx context.Context, roundID string, at time.Time) error {
	return s.transition(ctx, roundID, map[string]interface{}{
		"revealed_at": at,
		"status":      string(models.RoundStatusAbandoned),
	})
}

func (s *PostgresStore) PendingRounds(ctx context.Context, committedBefore time.Time, limit int) ([]*models.Round, error) {
	var recs []RoundRecord
	q := s.db.WithContext(ctx).
		Where("pending = ? AND committed_at < ?", true, committedBefore).
		Order("committed_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, dbError(err)
	}

	rounds := make([]*models.Round, 0, len(recs))
	for i := range recs {
		r, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, nil
}

func (s *PostgresStore) ClearPending(ctx context.Context, roundID string) error {
	err := s.db.WithContext(ctx).Model(&RoundRecord{}).
		Where("id = ?", roundID).
		Update("pending", false).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}

// lockBalance returns the balance row of (userID, currency) locked for the
// rest of tx, creating it at zero when missing.
func lockBalance(tx *gorm.DB, userID string, currency models.Currency) (*BalanceRecord, error) {
	rec := BalanceRecord{UserID: userID, Currency: string(currency)}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return nil, err
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func saveBalance(tx *gorm.DB, rec *BalanceRecord) error {
	return tx.Model(&BalanceRecord{}).
		Where("user_id = ? AND currency = ?", rec.UserID, rec.Currency).
		Update("balance", rec.Balance).Error
}

func txToRecord(t *models.Transaction) *TransactionRecord {
	return &TransactionRecord{
		ID:           t.ID,
		UserID:       t.UserID,
		Currency:     string(t.Currency),
		RoundID:      t.RoundID,
		Amount:       t.Amount,
		Kind:         string(t.Kind),
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.CreatedAt,
	}
}

func (rec *TransactionRecord) toModel() *models.Transaction {
	return &models.Transaction{
		ID:           rec.ID,
		UserID:       rec.UserID,
		RoundID:      rec.RoundID,
		Currency:     models.Currency(rec.Currency),
		Amount:       rec.Amount,
		Kind:         models.TransactionKind(rec.Kind),
		BalanceAfter: rec.BalanceAfter,
		CreatedAt:    rec.CreatedAt,
	}
}

func (rec *BetRecord) toModel() *models.Bet {
	return &models.Bet{
		RoundID:   rec.RoundID,
		UserID:    rec.UserID,
		Currency:  models.Currency(rec.Currency),
		Amount:    rec.Amount,
		Payout:    rec.Payout,
		Status:    models.BetStatus(rec.Status),
		PlacedAt:  rec.PlacedAt,
		SettledAt: rec.SettledAt,
	}
}

func (s *PostgresStore) PlaceBet(ctx context.Context, p *BetPlacement) (*models.Transaction, error) {
	bet := p.Bet
	var out models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A shared lock on the round holds off reveal and abandon until the
		// stake is recorded.
		var round RoundRecord
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id = ?", bet.RoundID).First(&round).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoundNotFound
		}
		if err != nil {
			return err
		}
		if round.UserID != bet.UserID {
			return ErrRoundNotOwned
		}
		if err := transitionError(models.RoundStatus(round.Status)); err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&BetRecord{
			RoundID:  bet.RoundID,
			UserID:   bet.UserID,
			Currency: string(bet.Currency),
			Amount:   bet.Amount,
			Status:   string(bet.Status),
			PlacedAt: bet.PlacedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBetAlreadyPlaced
		}

		bal, err := lockBalance(tx, bet.UserID, bet.Currency)
		if err != nil {
			return err
		}
		if bal.Balance < bet.Amount {
			return ErrInsufficientBalance
		}

		wager := WagerRecord{UserID: bet.UserID, Currency: string(bet.Currency), Day: DayKey(p.Day)}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&wager).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND currency = ? AND day = ?", wager.UserID, wager.Currency, wager.Day).
			First(&wager).Error; err != nil {
			return err
		}
		if wager.Wagered+bet.Amount > p.DailyLimit {
			return ErrDailyLimitExceeded
		}

		bal.Balance -= bet.Amount
		if err := saveBalance(tx, bal); err != nil {
			return err
		}
		if err := tx.Model(&WagerRecord{}).
			Where("user_id = ? AND currency = ? AND day = ?", wager.UserID, wager.Currency, wager.Day).
			Update("wagered", wager.Wagered+bet.Amount).Error; err != nil {
			return err
		}

		out = *p.Transaction
		out.BalanceAfter = bal.Balance
		return tx.Create(txToRecord(&out)).Error
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return &out, nil
}

func (s *PostgresStore) SettleBet(ctx context.Context, st *BetSettlement) (*models.Bet, error) {
	var rec BetRecord

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("round_id = ?", st.RoundID).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBetNotFound
		}
		if err != nil {
			return err
		}
		if rec.UserID != st.UserID || rec.Currency != string(st.Currency) {
			return ErrBetMismatch
		}
		if rec.Status != string(models.BetStatusPlaced) {
			return ErrAlreadyResolved
		}

		if st.Credit != nil {
			bal, err := lockBalance(tx, st.UserID, st.Currency)
			if err != nil {
				return err
			}
			bal.Balance += st.Credit.Amount
			if err := saveBalance(tx, bal); err != nil {
				return err
			}
			credit := *st.Credit
			credit.BalanceAfter = bal.Balance
			if err := tx.Create(txToRecord(&credit)).Error; err != nil {
				return err
			}
		}

		at := st.SettledAt
		rec.Status = string(st.Status)
		rec.Payout = st.Payout
		rec.SettledAt = &at
		return tx.Model(&BetRecord{}).Where("round_id = ?", rec.RoundID).Updates(map[string]interface{}{
			"status":     rec.Status,
			"payout":     rec.Payout,
			"settled_at": rec.SettledAt,
		}).Error
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return rec.toModel(), nil
}

func (s *PostgresStore) GetBet(ctx context.Context, roundID string) (*models.Bet, error) {
	var rec BetRecord
	err := s.db.WithContext(ctx).Where("round_id = ?", roundID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}
	return rec.toModel(), nil
}

func creditTx(tx *gorm.DB, t *models.Transaction) (*models.Transaction, error) {
	bal, err := lockBalance(tx, t.UserID, t.Currency)
	if err != nil {
		return nil, err
	}
	bal.Balance += t.Amount
	if err := saveBalance(tx, bal); err != nil {
		return nil, err
	}
	out := *t
	out.BalanceAfter = bal.Balance
	if err := tx.Create(txToRecord(&out)).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostgresStore) Credit(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = creditTx(tx, t)
		return err
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return out, nil
}

func (s *PostgresStore) OpenAccount(ctx context.Context, userID string, grants []*models.Transaction) (bool, error) {
	opened := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct := AccountRecord{UserID: userID, VIPLevel: 1}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acct).Error; err != nil {
			return err
		}
		res := tx.Model(&AccountRecord{}).
			Where("user_id = ? AND opened = ?", userID, false).
			Update("opened", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		opened = true
		for _, g := range grants {
			if _, err := creditTx(tx, g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, passThrough(err)
	}
	return opened, nil
}

func (s *PostgresStore) Balance(ctx context.Context, userID string, currency models.Currency) (int64, error) {
	var rec BalanceRecord
	err := s.db.WithContext(ctx).Where("user_id = ? AND currency = ?", userID, currency).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, dbError(err)
	}
	return rec.Balance, nil
}

func (s *PostgresStore) DailyWagered(ctx context.Context, userID string, currency models.Currency, day time.Time) (int64, error) {
	var rec WagerRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND currency = ? AND day = ?", userID, currency, DayKey(day)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, dbError(err)
	}
	return rec.Wagered, nil
}

func (s *PostgresStore) Transactions(ctx context.Context, userID string, currency models.Currency, limit int) ([]*models.Transaction, error) {
	var recs []TransactionRecord
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, dbError(err)
	}

	out := make([]*models.Transaction, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toModel())
	}
	return out, nil
}

func (s *PostgresStore) VIPLevel(ctx context.Context, userID string) (int, error) {
	var acct AccountRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, dbError(err)
	}
	return acct.VIPLevel, nil
}

func (s *PostgresStore) SetVIPLevel(ctx context.Context, userID string, level int) error {
	if level < 1 {
		return errors.Wrapf(ErrInvalidAmount, "vip level %d", level)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"vip_level": level}),
	}).Create(&AccountRecord{UserID: userID, VIPLevel: level}).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (s *PostgresStore) ClaimReward(ctx context.Context, g *RewardGrant) ([]*models.Transaction, error) {
	claim := g.Claim
	var out []*models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := RewardCounterRecord{UserID: claim.UserID, Type: string(claim.Type)}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND type = ?", counter.UserID, counter.Type).
			First(&counter).Error; err != nil {
			return err
		}

		usage := counter.usage(claim.CreatedAt)
		if err := checkRewardUsage(usage, g, claim.CreatedAt); err != nil {
			return err
		}

		at := claim.CreatedAt
		if err := tx.Model(&RewardCounterRecord{}).
			Where("user_id = ? AND type = ?", counter.UserID, counter.Type).
			Updates(map[string]interface{}{
				"last_claim_at": at,
				"day":           DayKey(at),
				"claimed_today": usage.ClaimedToday + 1,
			}).Error; err != nil {
			return err
		}

		if err := tx.Create(&RewardClaimRecord{
			ID:            claim.ID,
			UserID:        claim.UserID,
			Type:          string(claim.Type),
			RegularAmount: claim.RegularAmount,
			SweepsAmount:  claim.SweepsAmount,
			CreatedAt:     claim.CreatedAt,
		}).Error; err != nil {
			return err
		}

		for _, credit := range g.Credits {
			applied, err := creditTx(tx, credit)
			if err != nil {
				return err
			}
			out = append(out, applied)
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return out, nil
}

func (s *PostgresStore) RewardUsage(ctx context.Context, userID string, reward models.RewardType, day time.Time) (RewardUsage, error) {
	var counter RewardCounterRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, string(reward)).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RewardUsage{}, nil
	}
	if err != nil {
		return RewardUsage{}, dbError(err)
	}
	return counter.usage(day), nil
}

func (s *PostgresStore) RewardClaims(ctx context.Context, userID string, limit int) ([]*models.RewardClaim, error) {
	var recs []RewardClaimRecord
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, dbError(err)
	}

	out := make([]*models.RewardClaim, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &models.RewardClaim{
			ID:            rec.ID,
			UserID:        rec.UserID,
			Type:          models.RewardType(rec.Type),
			RegularAmount: rec.RegularAmount,
			SweepsAmount:  rec.SweepsAmount,
			CreatedAt:     rec.CreatedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) RecordViolation(ctx context.Context, v *models.Violation) error {
	actions, err := json.Marshal(v.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %v", err)
	}
	err = s.db.WithContext(ctx).Create(&ViolationRecord{
		ID:        v.ID,
		UserID:    v.UserID,
		SessionID: v.SessionID,
		Type:      v.Type,
		Actions:   datatypes.JSON(actions),
		CreatedAt: v.CreatedAt,
	}).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}
