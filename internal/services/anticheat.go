package services

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
)

const (
	ViolationFlaggedPlayer    = "flagged_player_action"
	ViolationSuspiciousTiming = "suspicious_timing"
	ViolationSuspiciousBets   = "suspicious_betting"
)

// actionRing holds the most recent actions of one user in arrival order.
type actionRing struct {
	buf   []models.ActionEvent
	start int
	n     int
}

func newActionRing(capacity int) *actionRing {
	if capacity < 1 {
		capacity = 1
	}
	return &actionRing{buf: make([]models.ActionEvent, capacity)}
}

func (r *actionRing) push(a models.ActionEvent) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = a
		r.n++
		return
	}
	r.buf[r.start] = a
	r.start = (r.start + 1) % len(r.buf)
}

// evictBefore drops actions older than cutoff.
func (r *actionRing) evictBefore(cutoff time.Time) {
	for r.n > 0 && r.buf[r.start].Timestamp.Before(cutoff) {
		r.buf[r.start] = models.ActionEvent{}
		r.start = (r.start + 1) % len(r.buf)
		r.n--
	}
}

func (r *actionRing) items() []models.ActionEvent {
	out := make([]models.ActionEvent, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// AntiCheatMonitor watches the recent actions of each player and vetoes bets
// from players whose timing or bet sizing looks automated. Once flagged a
// player stays flagged for the lifetime of the process.
type AntiCheatMonitor struct {
	cfg       config.AntiCheatConfig
	store     ViolationStore
	publisher Publisher
	clock     clock.Clock
	log       *zap.Logger
	metrics   *Metrics

	mu      sync.Mutex
	windows *lru.Cache
	flagged map[string]struct{}
}

func NewAntiCheatMonitor(cfg config.AntiCheatConfig, store ViolationStore, publisher Publisher, clk clock.Clock, log *zap.Logger, metrics *Metrics) (*AntiCheatMonitor, error) {
	size := cfg.MaxTrackedUsers
	if size <= 0 {
		size = 10000
	}
	windows, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &AntiCheatMonitor{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		clock:     clk,
		log:       log.Named("anticheat"),
		metrics:   metrics,
		windows:   windows,
		flagged:   make(map[string]struct{}),
	}, nil
}

// window returns the user's ring with expired actions removed. Callers hold mu.
func (m *AntiCheatMonitor) window(userID string) *actionRing {
	var ring *actionRing
	if v, ok := m.windows.Get(userID); ok {
		ring = v.(*actionRing)
	} else {
		ring = newActionRing(m.cfg.MaxActions)
		m.windows.Add(userID, ring)
	}
	ring.evictBefore(m.clock.Now().Add(-m.cfg.Window))
	return ring
}

// ValidateAction reports whether action may proceed. A rejected action has
// already been recorded as a violation.
func (m *AntiCheatMonitor) ValidateAction(ctx context.Context, sessionID, userID string, action models.ActionEvent) bool {
	if action.Timestamp.IsZero() {
		action.Timestamp = m.clock.Now()
	}
	action.SessionID = sessionID
	action.UserID = userID

	m.mu.Lock()
	if _, ok := m.flagged[userID]; ok {
		snapshot := m.window(userID).items()
		m.mu.Unlock()
		m.reject(ctx, sessionID, userID, ViolationFlaggedPlayer, snapshot, false)
		return false
	}

	// Only bets take part in the heuristics; reveals and resolves follow a
	// bet at machine speed and stay in the window as evidence.
	ring := m.window(userID)
	var prior []models.ActionEvent
	for _, a := range ring.items() {
		if a.Type == models.ActionBet {
			prior = append(prior, a)
		}
	}
	ring.push(action)

	violation := ""
	if m.regularTiming(action, prior) {
		violation = ViolationSuspiciousTiming
	} else if action.Type == models.ActionBet && m.patternedBets(action, prior) {
		violation = ViolationSuspiciousBets
	}

	if violation == "" {
		m.mu.Unlock()
		return true
	}

	m.flagged[userID] = struct{}{}
	snapshot := ring.items()
	m.mu.Unlock()

	m.reject(ctx, sessionID, userID, violation, snapshot, true)
	return false
}

// Observe adds an action to the user's window without judging it.
func (m *AntiCheatMonitor) Observe(ctx context.Context, userID string, action models.ActionEvent) {
	if action.Timestamp.IsZero() {
		action.Timestamp = m.clock.Now()
	}
	action.UserID = userID

	m.mu.Lock()
	defer m.mu.Unlock()
	m.window(userID).push(action)
}

func (m *AntiCheatMonitor) IsFlagged(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flagged[userID]
	return ok
}

func (m *AntiCheatMonitor) reject(ctx context.Context, sessionID, userID, kind string, actions []models.ActionEvent, newlyFlagged bool) {
	m.metrics.ActionsRejected.Inc(1)

	v := &models.Violation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Type:      kind,
		Actions:   actions,
		CreatedAt: m.clock.Now().UTC(),
	}
	if err := m.store.RecordViolation(ctx, v); err != nil {
		m.log.Error("failed to record violation",
			zap.String("user_id", userID),
			zap.String("type", kind),
			zap.Error(err))
	}

	if !newlyFlagged {
		return
	}

	m.metrics.PlayersFlagged.Inc(1)
	m.log.Warn("player flagged",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.String("type", kind),
		zap.Int("actions", len(actions)))
	m.publisher.Publish(NewEvent(m.clock.Now().UTC(), EventSecurityFlagged, userID, "", map[string]string{
		"session_id": sessionID,
		"type":       kind,
	}))
}

// regularTiming flags an action whose gap to the previous one sits within
// TimingDeviation standard deviations of the mean gap.
func (m *AntiCheatMonitor) regularTiming(action models.ActionEvent, prior []models.ActionEvent) bool {
	samples := m.cfg.MinTimingSamples
	if samples < 2 {
		samples = 2
	}
	if len(prior) < samples {
		return false
	}

	intervals := make([]float64, 0, len(prior)-1)
	for i := 1; i < len(prior); i++ {
		intervals = append(intervals, float64(prior[i].Timestamp.Sub(prior[i-1].Timestamp)))
	}
	mean, std := meanStd(intervals)

	gap := float64(action.Timestamp.Sub(prior[len(prior)-1].Timestamp))
	return math.Abs(gap-mean) <= std*m.cfg.TimingDeviation
}

func (m *AntiCheatMonitor) patternedBets(action models.ActionEvent, prior []models.ActionEvent) bool {
	var amounts []int64
	for _, a := range prior {
		if a.Type == models.ActionBet {
			amounts = append(amounts, a.Amount)
		}
	}
	amounts = append(amounts, action.Amount)
	if len(amounts) < 3 {
		return false
	}
	return patternScore(amounts) >= m.cfg.PatternThreshold
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// patternScore adds 0.5 for an arithmetic progression, 0.5 for a geometric
// one and 0.3 when short runs repeat.
func patternScore(amounts []int64) float64 {
	n := len(amounts)
	if n < 3 {
		return 0
	}

	score := 0.0

	arithmetic := true
	d0 := amounts[1] - amounts[0]
	for i := 2; i < n; i++ {
		if amounts[i]-amounts[i-1] != d0 {
			arithmetic = false
			break
		}
	}
	if arithmetic {
		score += 0.5
	}

	geometric := true
	for _, a := range amounts {
		if a == 0 {
			geometric = false
			break
		}
	}
	if geometric {
		r0 := float64(amounts[1]) / float64(amounts[0])
		for i := 2; i < n; i++ {
			if math.Abs(float64(amounts[i])/float64(amounts[i-1])-r0) >= 0.01 {
				geometric = false
				break
			}
		}
	}
	if geometric {
		score += 0.5
	}

	runs := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		end := i + 3
		if end > n {
			end = n
		}
		parts := make([]string, 0, 3)
		for _, a := range amounts[i:end] {
			parts = append(parts, strconv.FormatInt(a, 10))
		}
		runs[strings.Join(parts, ",")] = struct{}{}
	}
	if float64(len(runs)) < float64(n)/2 {
		score += 0.3
	}

	return score
}
