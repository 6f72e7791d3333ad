package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"fairplay-backend/internal/models"
)

type balanceKey struct {
	userID   string
	currency models.Currency
}

type wagerKey struct {
	userID   string
	currency models.Currency
	day      string
}

type rewardKey struct {
	userID string
	reward models.RewardType
}

type nonceKey struct {
	userID string
	game   models.GameType
}

// MemoryStore keeps everything in process memory behind one mutex. It backs
// tests and the "memory" driver for local development; it is not durable.
type MemoryStore struct {
	mu           sync.Mutex
	rounds       map[string]*models.Round
	pending      map[string]struct{}
	nonces       map[nonceKey]int64
	bets         map[string]*models.Bet
	balances     map[balanceKey]int64
	wagered      map[wagerKey]int64
	transactions map[balanceKey][]*models.Transaction
	accounts     map[string]struct{}
	vip          map[string]int
	claims       map[rewardKey][]*models.RewardClaim
	userClaims   map[string][]*models.RewardClaim
	violations   []*models.Violation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds:       make(map[string]*models.Round),
		pending:      make(map[string]struct{}),
		nonces:       make(map[nonceKey]int64),
		bets:         make(map[string]*models.Bet),
		balances:     make(map[balanceKey]int64),
		wagered:      make(map[wagerKey]int64),
		transactions: make(map[balanceKey][]*models.Transaction),
		accounts:     make(map[string]struct{}),
		vip:          make(map[string]int),
		claims:       make(map[rewardKey][]*models.RewardClaim),
		userClaims:   make(map[string][]*models.RewardClaim),
	}
}

func (s *MemoryStore) NextNonce(ctx context.Context, userID string, game models.GameType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := nonceKey{userID: userID, game: game}
	s.nonces[k]++
	return s.nonces[k], nil
}

func (s *MemoryStore) CreateRound(ctx context.Context, round *models.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rounds[round.ID]; ok {
		return ErrRoundExists
	}
	s.rounds[round.ID] = copyRound(round)
	s.pending[round.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return copyRound(r), nil
}

func (s *MemoryStore) RevealRound(ctx context.Context, revealed *models.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rounds[revealed.ID]
	if !ok {
		return ErrRoundNotFound
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
	s.rounds[revealed.ID] = next
	delete(s.pending, revealed.ID)
	return nil
}

func (s *MemoryStore) AbandonRound(ctx context.Context, roundID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rounds[roundID]
	if !ok {
		return ErrRoundNotFound
	}
	if err := transitionError(cur.Status); err != nil {
		return err
	}
	next := copyRound(cur)
	next.Status = models.RoundStatusAbandoned
	next.RevealedAt = &at
	s.rounds[roundID] = next
	return nil
}

func (s *MemoryStore) PendingRounds(ctx context.Context, committedBefore time.Time, limit int) ([]*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Round
	for id := range s.pending {
		r := s.rounds[id]
		if r.CommittedAt.Before(committedBefore) {
			out = append(out, copyRound(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommittedAt.Before(out[j].CommittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ClearPending(ctx context.Context, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, roundID)
	return nil
}

func (s *MemoryStore) PlaceBet(ctx context.Context, p *BetPlacement) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet := p.Bet
	round, ok := s.rounds[bet.RoundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	if round.UserID != bet.UserID {
		return nil, ErrRoundNotOwned
	}
	if err := transitionError(round.Status); err != nil {
		return nil, err
	}
	if _, ok := s.bets[bet.RoundID]; ok {
		return nil, ErrBetAlreadyPlaced
	}

	bk := balanceKey{userID: bet.UserID, currency: bet.Currency}
	if s.balances[bk] < bet.Amount {
		return nil, ErrInsufficientBalance
	}
	wk := wagerKey{userID: bet.UserID, currency: bet.Currency, day: DayKey(p.Day)}
	if s.wagered[wk]+bet.Amount > p.DailyLimit {
		return nil, ErrDailyLimitExceeded
	}

	s.balances[bk] -= bet.Amount
	s.wagered[wk] += bet.Amount

	tx := *p.Transaction
	tx.BalanceAfter = s.balances[bk]
	s.transactions[bk] = append(s.transactions[bk], &tx)

	b := *bet
	s.bets[bet.RoundID] = &b

	out := tx
	return &out, nil
}

func (s *MemoryStore) SettleBet(ctx context.Context, st *BetSettlement) (*models.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[st.RoundID]
	if !ok {
		return nil, ErrBetNotFound
	}
	if bet.UserID != st.UserID || bet.Currency != st.Currency {
		return nil, ErrBetMismatch
	}
	if bet.Status != models.BetStatusPlaced {
		return nil, ErrAlreadyResolved
	}

	if st.Credit != nil {
		bk := balanceKey{userID: bet.UserID, currency: bet.Currency}
		s.balances[bk] += st.Credit.Amount
		tx := *st.Credit
		tx.BalanceAfter = s.balances[bk]
		s.transactions[bk] = append(s.transactions[bk], &tx)
	}

	settled := *bet
	settled.Status = st.Status
	settled.Payout = st.Payout
	at := st.SettledAt
	settled.SettledAt = &at
	s.bets[st.RoundID] = &settled

	out := settled
	return &out, nil
}

func (s *MemoryStore) GetBet(ctx context.Context, roundID string) (*models.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[roundID]
	if !ok {
		return nil, ErrBetNotFound
	}
	out := *bet
	return &out, nil
}

func (s *MemoryStore) Credit(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creditLocked(tx), nil
}

func (s *MemoryStore) creditLocked(tx *models.Transaction) *models.Transaction {
	bk := balanceKey{userID: tx.UserID, currency: tx.Currency}
	s.balances[bk] += tx.Amount
	t := *tx
	t.BalanceAfter = s.balances[bk]
	s.transactions[bk] = append(s.transactions[bk], &t)
	out := t
	return &out
}

func (s *MemoryStore) OpenAccount(ctx context.Context, userID string, grants []*models.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userID]; ok {
		return false, nil
	}
	s.accounts[userID] = struct{}{}
	for _, g := range grants {
		s.creditLocked(g)
	}
	return true, nil
}

func (s *MemoryStore) Balance(ctx context.Context, userID string, currency models.Currency) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances[balanceKey{userID: userID, currency: currency}], nil
}

func (s *MemoryStore) DailyWagered(ctx context.Context, userID string, currency models.Currency, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wagered[wagerKey{userID: userID, currency: currency, day: DayKey(day)}], nil
}

func (s *MemoryStore) Transactions(ctx context.Context, userID string, currency models.Currency, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.transactions[balanceKey{userID: userID, currency: currency}]
	out := make([]*models.Transaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		t := *all[i]
		out = append(out, &t)
	}
	return out, nil
}

func (s *MemoryStore) VIPLevel(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lvl, ok := s.vip[userID]; ok {
		return lvl, nil
	}
	return 1, nil
}

func (s *MemoryStore) SetVIPLevel(ctx context.Context, userID string, level int) error {
	if level < 1 {
		return errors.Wrapf(ErrInvalidAmount, "vip level %d", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vip[userID] = level
	return nil
}

func (s *MemoryStore) ClaimReward(ctx context.Context, g *RewardGrant) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim := g.Claim
	k := rewardKey{userID: claim.UserID, reward: claim.Type}
	usage := s.rewardUsageLocked(k, claim.CreatedAt)
	if err := checkRewardUsage(usage, g, claim.CreatedAt); err != nil {
		return nil, err
	}

	cp := *claim
	s.claims[k] = append(s.claims[k], &cp)
	s.userClaims[claim.UserID] = append(s.userClaims[claim.UserID], &cp)

	out := make([]*models.Transaction, 0, len(g.Credits))
	for _, tx := range g.Credits {
		out = append(out, s.creditLocked(tx))
	}
	return out, nil
}

func (s *MemoryStore) RewardUsage(ctx context.Context, userID string, reward models.RewardType, day time.Time) (RewardUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rewardUsageLocked(rewardKey{userID: userID, reward: reward}, day), nil
}

func (s *MemoryStore) rewardUsageLocked(k rewardKey, day time.Time) RewardUsage {
	var usage RewardUsage
	today := DayKey(day)
	for _, c := range s.claims[k] {
		if c.CreatedAt.After(usage.LastClaimAt) {
			usage.LastClaimAt = c.CreatedAt
		}
		if DayKey(c.CreatedAt) == today {
			usage.ClaimedToday++
		}
	}
	return usage
}

func (s *MemoryStore) RewardClaims(ctx context.Context, userID string, limit int) ([]*models.RewardClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.userClaims[userID]
	out := make([]*models.RewardClaim, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		c := *all[i]
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecordViolation(ctx context.Context, v *models.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *v
	cp.Actions = append([]models.ActionEvent(nil), v.Actions...)
	s.violations = append(s.violations, &cp)
	return nil
}

// Violations returns the recorded violations of userID.
func (s *MemoryStore) Violations(userID string) []*models.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Violation
	for _, v := range s.violations {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out
}

func (s *MemoryStore) Close() error { return nil }

func transitionError(status models.RoundStatus) error {
	switch status {
	case models.RoundStatusCommitted:
		return nil
	case models.RoundStatusAbandoned:
		return ErrRoundAbandoned
	default:
		return ErrAlreadyRevealed
	}
}

func copyRound(r *models.Round) *models.Round {
	cp := *r
	if r.Outcome != nil {
		cp.Outcome = append([]int{}, r.Outcome...)
	}
	if r.RevealedAt != nil {
		t := *r.RevealedAt
		cp.RevealedAt = &t
	}
	return &cp
}
