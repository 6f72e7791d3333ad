package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
)

// RedisStore keeps rounds, bets and balances in Redis. Every multi-key
// mutation runs as a single Lua script so it is atomic on the server; no
// lock is ever held by the application.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// scriptError maps the error replies of the Lua scripts onto sentinels and
// everything else onto ErrLedgerUnavailable.
func scriptError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ROUND_EXISTS"):
		return ErrRoundExists
	case strings.Contains(msg, "ROUND_NOT_FOUND"):
		return ErrRoundNotFound
	case strings.Contains(msg, "ROUND_NOT_OWNED"):
		return ErrRoundNotOwned
	case strings.Contains(msg, "ROUND_REVEALED"):
		return ErrAlreadyRevealed
	case strings.Contains(msg, "ROUND_ABANDONED"):
		return ErrRoundAbandoned
	case strings.Contains(msg, "BET_EXISTS"):
		return ErrBetAlreadyPlaced
	case strings.Contains(msg, "BET_NOT_FOUND"):
		return ErrBetNotFound
	case strings.Contains(msg, "BET_MISMATCH"):
		return ErrBetMismatch
	case strings.Contains(msg, "ALREADY_RESOLVED"):
		return ErrAlreadyResolved
	case strings.Contains(msg, "INSUFFICIENT_BALANCE"):
		return ErrInsufficientBalance
	case strings.Contains(msg, "DAILY_LIMIT_EXCEEDED"):
		return ErrDailyLimitExceeded
	case strings.Contains(msg, "REWARD_COOLDOWN"):
		return ErrRewardCooldown
	case strings.Contains(msg, "REWARD_LIMIT"):
		return ErrRewardLimitReached
	}
	return errors.Wrapf(ErrLedgerUnavailable, "redis: %v", err)
}

func unavailable(err error) error {
	return errors.Wrapf(ErrLedgerUnavailable, "redis: %v", err)
}

func (s *RedisStore) NextNonce(ctx context.Context, userID string, game models.GameType) (int64, error) {
	n, err := s.client.Incr(ctx, fmt.Sprintf(KeyNonce, userID, game)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

var createRoundScript = redis.NewScript(`
	if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
		return redis.error_reply("ROUND_EXISTS")
	end
	redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
	return "OK"
`)

func (s *RedisStore) CreateRound(ctx context.Context, round *models.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %v", err)
	}

	keys := []string{fmt.Sprintf(KeyRound, round.ID), KeyPendingRounds}
	err = createRoundScript.Run(ctx, s.client, keys, data, round.CommittedAt.UnixMilli(), round.ID).Err()
	return scriptError(err)
}

func (s *RedisStore) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyRound, roundID)).Result()
	if err == redis.Nil {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	var round models.Round
	if err := json.Unmarshal([]byte(data), &round); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round: %v", err)
	}
	return &round, nil
}

// transitionRoundScript replaces a committed round. ARGV[3] == "1" also drops
// it from the pending index.
var transitionRoundScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("ROUND_NOT_FOUND")
	end

	local round = cjson.decode(data)
	if round.status ~= "committed" then
		return redis.error_reply("ROUND_" .. string.upper(round.status))
	end

	redis.call("SET", KEYS[1], ARGV[1])
	if ARGV[3] == "1" then
		redis.call("ZREM", KEYS[2], ARGV[2])
	end
	return "OK"
`)

func (s *RedisStore) transitionRound(ctx context.Context, round *models.Round, clearPending bool) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %v", err)
	}

	clear := "0"
	if clearPending {
		clear = "1"
	}
	keys := []string{fmt.Sprintf(KeyRound, round.ID), KeyPendingRounds}
	return scriptError(transitionRoundScript.Run(ctx, s.client, keys, data, round.ID, clear).Err())
}

func (s *RedisStore) RevealRound(ctx context.Context, revealed *models.Round) error {
	cur, err := s.GetRound(ctx, revealed.ID)
	if err != nil {
		return err
	}
	if err := transitionError(cur.Status); err != nil {
		return err
	}

	next := copyRound(cur)
	next.ClientSeed = revealed.ClientSeed
	next.Outcome = append([]int{}, revealed.Outcome...)
	next.VerificationHash = revealed.VerificationHash
	next.RevealedAt = revealed.RevealedAt
	next.Status = models.RoundStatusRevealed

	return s.transitionRound(ctx, next, true)
}

func (s *RedisStore) AbandonRound(ctx context.Context, roundID string, at time.Time) error {
	cur, err := s.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if err := transitionError(cur.Status); err != nil {
		return err
	}

	next := copyRound(cur)
	next.Status = models.RoundStatusAbandoned
	next.RevealedAt = &at

	return s.transitionRound(ctx, next, false)
}

func (s *RedisStore) PendingRounds(ctx context.Context, committedBefore time.Time, limit int) ([]*models.Round, error) {
	ids, err := s.client.ZRangeByScore(ctx, KeyPendingRounds, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    "(" + strconv.FormatInt(committedBefore.UnixMilli(), 10),
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	rounds := make([]*models.Round, 0, len(ids))
	for _, id := range ids {
		round, err := s.GetRound(ctx, id)
		if errors.Is(err, ErrRoundNotFound) {
			s.client.ZRem(ctx, KeyPendingRounds, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

func (s *RedisStore) ClearPending(ctx context.Context, roundID string) error {
	if err := s.client.ZRem(ctx, KeyPendingRounds, roundID).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

var placeBetScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[6])
	if not data then
		return redis.error_reply("ROUND_NOT_FOUND")
	end
	local round = cjson.decode(data)
	if round.user_id ~= ARGV[8] then
		return redis.error_reply("ROUND_NOT_OWNED")
	end
	if round.status ~= "committed" then
		return redis.error_reply("ROUND_" .. string.upper(round.status))
	end

	if redis.call("EXISTS", KEYS[1]) == 1 then
		return redis.error_reply("BET_EXISTS")
	end

	local amount = tonumber(ARGV[1])
	local balance = tonumber(redis.call("GET", KEYS[2]) or "0")
	if balance < amount then
		return redis.error_reply("INSUFFICIENT_BALANCE")
	end

	local wagered = tonumber(redis.call("GET", KEYS[3]) or "0")
	if wagered + amount > tonumber(ARGV[2]) then
		return redis.error_reply("DAILY_LIMIT_EXCEEDED")
	end

	local after = redis.call("DECRBY", KEYS[2], amount)
	redis.call("INCRBY", KEYS[3], amount)
	redis.call("EXPIRE", KEYS[3], tonumber(ARGV[7]))

	local tx = cjson.decode(ARGV[3])
	tx.balance_after = after
	redis.call("SET", KEYS[4], cjson.encode(tx))
	redis.call("ZADD", KEYS[5], ARGV[6], ARGV[5])

	redis.call("SET", KEYS[1], ARGV[4])
	return after
`)

func (s *RedisStore) PlaceBet(ctx context.Context, p *BetPlacement) (*models.Transaction, error) {
	bet, tx := p.Bet, p.Transaction

	txData, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %v", err)
	}
	betData, err := json.Marshal(bet)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bet: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyBet, bet.RoundID),
		fmt.Sprintf(KeyWallet, bet.UserID, bet.Currency),
		fmt.Sprintf(KeyWagered, bet.UserID, bet.Currency, DayKey(p.Day)),
		fmt.Sprintf(KeyTransaction, tx.ID),
		fmt.Sprintf(KeyUserTransactions, bet.UserID, bet.Currency),
		fmt.Sprintf(KeyRound, bet.RoundID),
	}
	after, err := placeBetScript.Run(ctx, s.client, keys,
		bet.Amount,
		p.DailyLimit,
		txData,
		betData,
		tx.ID,
		tx.CreatedAt.UnixMilli(),
		int64(TTLWagered.Seconds()),
		bet.UserID,
	).Int64()
	if err != nil {
		return nil, scriptError(err)
	}

	out := *tx
	out.BalanceAfter = after
	return &out, nil
}

var settleBetScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("BET_NOT_FOUND")
	end

	local bet = cjson.decode(data)
	if bet.user_id ~= ARGV[1] or bet.currency ~= ARGV[2] then
		return redis.error_reply("BET_MISMATCH")
	end
	if bet.status ~= "placed" then
		return redis.error_reply("ALREADY_RESOLVED")
	end

	bet.status = ARGV[3]
	bet.payout = tonumber(ARGV[4])
	bet.settled_at = ARGV[5]
	local encoded = cjson.encode(bet)
	redis.call("SET", KEYS[1], encoded)

	local credit = tonumber(ARGV[6])
	if credit > 0 then
		local after = redis.call("INCRBY", KEYS[2], credit)
		local tx = cjson.decode(ARGV[7])
		tx.balance_after = after
		redis.call("SET", KEYS[3], cjson.encode(tx))
		redis.call("ZADD", KEYS[4], ARGV[9], ARGV[8])
	end

	return encoded
`)

func (s *RedisStore) SettleBet(ctx context.Context, st *BetSettlement) (*models.Bet, error) {
	var (
		credit int64
		txData = []byte("{}")
		txID   string
		score  int64
	)
	if st.Credit != nil {
		data, err := json.Marshal(st.Credit)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction: %v", err)
		}
		credit, txData, txID, score = st.Credit.Amount, data, st.Credit.ID, st.Credit.CreatedAt.UnixMilli()
	}

	keys := []string{
		fmt.Sprintf(KeyBet, st.RoundID),
		fmt.Sprintf(KeyWallet, st.UserID, st.Currency),
		fmt.Sprintf(KeyTransaction, txID),
		fmt.Sprintf(KeyUserTransactions, st.UserID, st.Currency),
	}
	encoded, err := settleBetScript.Run(ctx, s.client, keys,
		st.UserID,
		string(st.Currency),
		string(st.Status),
		st.Payout,
		st.SettledAt.UTC().Format(time.RFC3339Nano),
		credit,
		txData,
		txID,
		score,
	).Text()
	if err != nil {
		return nil, scriptError(err)
	}

	var bet models.Bet
	if err := json.Unmarshal([]byte(encoded), &bet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bet: %v", err)
	}
	return &bet, nil
}

func (s *RedisStore) GetBet(ctx context.Context, roundID string) (*models.Bet, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyBet, roundID)).Result()
	if err == redis.Nil {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	var bet models.Bet
	if err := json.Unmarshal([]byte(data), &bet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bet: %v", err)
	}
	return &bet, nil
}

// creditScript applies grants: KEYS[1] is the idempotency flag (empty string
// for none), followed by (wallet, transaction, index) key triples, with
// (amount, json, id, score) ARGV quadruples in the same order.
var creditScript = redis.NewScript(`
	if KEYS[1] ~= "" then
		if redis.call("SETNX", KEYS[1], "1") == 0 then
			return {}
		end
	end

	local results = {}
	local n = (#KEYS - 1) / 3
	for i = 0, n - 1 do
		local wallet, txKey, index = KEYS[2 + i * 3], KEYS[3 + i * 3], KEYS[4 + i * 3]
		local amount = tonumber(ARGV[1 + i * 4])
		local after = redis.call("INCRBY", wallet, amount)
		local tx = cjson.decode(ARGV[2 + i * 4])
		tx.balance_after = after
		redis.call("SET", txKey, cjson.encode(tx))
		redis.call("ZADD", index, ARGV[4 + i * 4], ARGV[3 + i * 4])
		results[#results + 1] = after
	end
	return results
`)

func (s *RedisStore) runCredit(ctx context.Context, flagKey string, txs []*models.Transaction) ([]int64, error) {
	keys := []string{flagKey}
	args := make([]interface{}, 0, len(txs)*4)
	for _, tx := range txs {
		data, err := json.Marshal(tx)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction: %v", err)
		}
		keys = append(keys,
			fmt.Sprintf(KeyWallet, tx.UserID, tx.Currency),
			fmt.Sprintf(KeyTransaction, tx.ID),
			fmt.Sprintf(KeyUserTransactions, tx.UserID, tx.Currency),
		)
		args = append(args, tx.Amount, data, tx.ID, tx.CreatedAt.UnixMilli())
	}

	res, err := creditScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, scriptError(err)
	}
	return res, nil
}

func (s *RedisStore) Credit(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	res, err := s.runCredit(ctx, "", []*models.Transaction{tx})
	if err != nil {
		return nil, err
	}

	out := *tx
	out.BalanceAfter = res[0]
	return &out, nil
}

func (s *RedisStore) OpenAccount(ctx context.Context, userID string, grants []*models.Transaction) (bool, error) {
	res, err := s.runCredit(ctx, fmt.Sprintf(KeyAccountOpened, userID), grants)
	if err != nil {
		return false, err
	}
	return len(res) > 0 || len(grants) == 0, nil
}

func (s *RedisStore) Balance(ctx context.Context, userID string, currency models.Currency) (int64, error) {
	return s.getInt(ctx, fmt.Sprintf(KeyWallet, userID, currency), 0)
}

func (s *RedisStore) DailyWagered(ctx context.Context, userID string, currency models.Currency, day time.Time) (int64, error) {
	return s.getInt(ctx, fmt.Sprintf(KeyWagered, userID, currency, DayKey(day)), 0)
}

func (s *RedisStore) getInt(ctx context.Context, key string, def int64) (int64, error) {
	v, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return def, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return v, nil
}

func (s *RedisStore) Transactions(ctx context.Context, userID string, currency models.Currency, limit int) ([]*models.Transaction, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserTransactions, userID, currency), 0, stop).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []*models.Transaction{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyTransaction, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, unavailable(err)
	}

	transactions := make([]*models.Transaction, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}
	return transactions, nil
}

func (s *RedisStore) VIPLevel(ctx context.Context, userID string) (int, error) {
	lvl, err := s.getInt(ctx, fmt.Sprintf(KeyVIPLevel, userID), 1)
	return int(lvl), err
}

func (s *RedisStore) SetVIPLevel(ctx context.Context, userID string, level int) error {
	if level < 1 {
		return errors.Wrapf(ErrInvalidAmount, "vip level %d", level)
	}
	if err := s.client.Set(ctx, fmt.Sprintf(KeyVIPLevel, userID), level, 0).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// claimRewardScript checks and records a reward claim, then applies its
// credits with the key and ARGV layout of creditScript shifted past the four
// claim keys and six claim arguments.
var claimRewardScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	local cooldown = tonumber(ARGV[2])
	local last = redis.call("GET", KEYS[1])
	if cooldown > 0 and last and now < tonumber(last) + cooldown then
		return redis.error_reply("REWARD_COOLDOWN")
	end

	local maxDaily = tonumber(ARGV[3])
	local claimed = tonumber(redis.call("GET", KEYS[2]) or "0")
	if maxDaily > 0 and claimed >= maxDaily then
		return redis.error_reply("REWARD_LIMIT")
	end

	redis.call("SET", KEYS[1], ARGV[1])
	redis.call("INCR", KEYS[2])
	redis.call("EXPIRE", KEYS[2], tonumber(ARGV[6]))
	redis.call("SET", KEYS[3], ARGV[4])
	redis.call("ZADD", KEYS[4], ARGV[1], ARGV[5])

	local results = {}
	local n = (#KEYS - 4) / 3
	for i = 0, n - 1 do
		local wallet, txKey, index = KEYS[5 + i * 3], KEYS[6 + i * 3], KEYS[7 + i * 3]
		local amount = tonumber(ARGV[7 + i * 4])
		local after = redis.call("INCRBY", wallet, amount)
		local tx = cjson.decode(ARGV[8 + i * 4])
		tx.balance_after = after
		redis.call("SET", txKey, cjson.encode(tx))
		redis.call("ZADD", index, ARGV[10 + i * 4], ARGV[9 + i * 4])
		results[#results + 1] = after
	end
	return results
`)

func (s *RedisStore) ClaimReward(ctx context.Context, g *RewardGrant) ([]*models.Transaction, error) {
	claim := g.Claim
	data, err := json.Marshal(claim)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reward claim: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyRewardLast, claim.UserID, claim.Type),
		fmt.Sprintf(KeyRewardDaily, claim.UserID, claim.Type, DayKey(claim.CreatedAt)),
		fmt.Sprintf(KeyRewardClaim, claim.ID),
		fmt.Sprintf(KeyUserRewardClaims, claim.UserID),
	}
	args := []interface{}{
		claim.CreatedAt.UnixMilli(),
		g.Cooldown.Milliseconds(),
		g.MaxDaily,
		data,
		claim.ID,
		int64(TTLRewardDaily.Seconds()),
	}
	for _, tx := range g.Credits {
		txData, err := json.Marshal(tx)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction: %v", err)
		}
		keys = append(keys,
			fmt.Sprintf(KeyWallet, tx.UserID, tx.Currency),
			fmt.Sprintf(KeyTransaction, tx.ID),
			fmt.Sprintf(KeyUserTransactions, tx.UserID, tx.Currency),
		)
		args = append(args, tx.Amount, txData, tx.ID, tx.CreatedAt.UnixMilli())
	}

	res, err := claimRewardScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, scriptError(err)
	}

	out := make([]*models.Transaction, len(g.Credits))
	for i, tx := range g.Credits {
		cp := *tx
		cp.BalanceAfter = res[i]
		out[i] = &cp
	}
	return out, nil
}

func (s *RedisStore) RewardUsage(ctx context.Context, userID string, reward models.RewardType, day time.Time) (RewardUsage, error) {
	var usage RewardUsage

	last, err := s.getInt(ctx, fmt.Sprintf(KeyRewardLast, userID, reward), 0)
	if err != nil {
		return usage, err
	}
	if last > 0 {
		usage.LastClaimAt = time.UnixMilli(last).UTC()
	}

	today, err := s.getInt(ctx, fmt.Sprintf(KeyRewardDaily, userID, reward, DayKey(day)), 0)
	if err != nil {
		return usage, err
	}
	usage.ClaimedToday = int(today)
	return usage, nil
}

func (s *RedisStore) RewardClaims(ctx context.Context, userID string, limit int) ([]*models.RewardClaim, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserRewardClaims, userID), 0, stop).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []*models.RewardClaim{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyRewardClaim, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, unavailable(err)
	}

	claims := make([]*models.RewardClaim, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}

		var claim models.RewardClaim
		if err := json.Unmarshal([]byte(data), &claim); err != nil {
			continue
		}
		claims = append(claims, &claim)
	}
	return claims, nil
}

func (s *RedisStore) RecordViolation(ctx context.Context, v *models.Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal violation: %v", err)
	}

	listKey := fmt.Sprintf(KeyUserViolations, v.UserID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(KeyViolation, v.ID), data, TTLViolation)
	pipe.LPush(ctx, listKey, v.ID)
	pipe.LTrim(ctx, listKey, 0, MaxViolationsPerUser-1)
	pipe.Expire(ctx, listKey, TTLViolation)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Allow implements a fixed-window counter shared by every API process.
func (s *RedisStore) Allow(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, subject, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}
