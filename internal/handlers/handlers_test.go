package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/handlers"
	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router *gin.Engine
	jwt    *services.JWTService
	clock  *clock.Mock
}

func newServer(t *testing.T) *server {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	metrics := services.NewMetrics()
	store := services.NewMemoryStore()
	events := services.NewDispatcher(16, log, metrics)

	limits := config.LimitsConfig{
		MinBetRegular:  100,
		MinBetSweeps:   100,
		MaxBetRegular:  100000,
		MaxBetSweeps:   20000,
		DailyMultiple:  100,
		InitialRegular: 100000,
		InitialSweeps:  20000,
	}
	acCfg := config.AntiCheatConfig{
		Window:           5 * time.Minute,
		TimingDeviation:  0.5,
		MinTimingSamples: 2,
		PatternThreshold: 0.95,
		MaxActions:       256,
		MaxTrackedUsers:  100,
	}

	fairness := services.NewFairnessLedger(store, services.NewSeedGenerator(nil), events, clk, log, metrics)
	ledger := services.NewBettingLedger(store, limits, events, clk, log, metrics)
	anticheat, err := services.NewAntiCheatMonitor(acCfg, store, events, clk, log, metrics)
	require.NoError(t, err)
	engine := services.NewGameEngine(fairness, ledger, anticheat, store, config.FairnessConfig{
		RoundTimeout:  5 * time.Minute,
		SweepInterval: time.Minute,
		SweepBatch:    100,
	}, clk, log, metrics)
	jwtService := services.NewJWTService("secret", time.Hour)

	gameHandler := handlers.NewGameHandler(engine, fairness, ledger, anticheat, log)
	userHandler := handlers.NewUserHandler(ledger, log)
	rewardsHandler := handlers.NewRewardsHandler(ledger, log)
	fairnessHandler := handlers.NewFairnessHandler(fairness, metrics, log)

	r := gin.New()
	r.GET("/healthz", fairnessHandler.Health)
	r.GET("/metrics", fairnessHandler.Metrics)
	r.GET("/fairness/algorithm", fairnessHandler.Algorithm)
	r.GET("/fairness/rounds/:id/verify", fairnessHandler.Verify)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService))
	api.POST("/account", userHandler.OpenAccount)
	api.GET("/balance", userHandler.GetBalance)
	api.GET("/transactions", userHandler.GetTransactions)
	api.GET("/limits", gameHandler.GetLimits)
	api.POST("/rounds", gameHandler.StartRound)
	api.GET("/rounds/:id", gameHandler.GetRound)
	api.POST("/rounds/:id/play", gameHandler.Play)
	api.POST("/rounds/:id/reveal", gameHandler.Reveal)
	api.POST("/bets", gameHandler.PlaceBet)
	api.POST("/bets/resolve", middleware.RequireRole(services.RoleService), gameHandler.ResolveBet)
	api.GET("/rewards", rewardsHandler.List)
	api.GET("/rewards/history", rewardsHandler.History)
	api.POST("/rewards/:type", rewardsHandler.Claim)
	api.POST("/rewards/:type/grant", middleware.RequireRole(services.RoleService), rewardsHandler.Grant)
	api.POST("/purchases", middleware.RequireRole(services.RoleService), userHandler.Purchase)

	return &server{router: r, jwt: jwtService, clock: clk}
}

func (s *server) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := s.jwt.GenerateToken(userID, role)
	require.NoError(t, err)
	return token
}

// call sends body as JSON and decodes the JSON response into out when set.
func (s *server) call(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

type roundResponse struct {
	Round models.Round `json:"round"`
}

type reportResponse struct {
	Report models.VerificationReport `json:"report"`
}

type accountResponse struct {
	Opened  bool           `json:"opened"`
	Account models.Account `json:"account"`
}

func TestPlayAndVerify(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, "alice", services.RolePlayer)

	var opened accountResponse
	assert.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/account", alice, nil, &opened))
	assert.True(t, opened.Opened)
	assert.Equal(t, int64(100000), opened.Account.Regular)
	assert.Equal(t, int64(20000), opened.Account.Sweeps)
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/account", alice, nil, &opened))
	assert.False(t, opened.Opened)

	var started roundResponse
	code := s.call(t, http.MethodPost, "/api/rounds", alice, models.StartRoundRequest{GameType: models.GameTypeCoinFlip}, &started)
	require.Equal(t, http.StatusCreated, code)
	roundID := started.Round.ID
	assert.Empty(t, started.Round.ServerSeed)
	assert.Len(t, started.Round.ServerSeedHash, 64)

	var pending reportResponse
	assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/fairness/rounds/"+roundID+"/verify", "", nil, &pending))
	assert.Equal(t, models.RoundStatusCommitted, pending.Report.Status)
	assert.Empty(t, pending.Report.ServerSeed)

	var played struct {
		Result models.PlayResult `json:"result"`
	}
	code = s.call(t, http.MethodPost, "/api/rounds/"+roundID+"/play", alice, models.PlayRoundRequest{
		Amount:     500,
		Currency:   models.CurrencyRegular,
		ClientSeed: "alice-seed",
		Selection:  "heads",
	}, &played)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, played.Result.Outcome, 1)
	if played.Result.Outcome[0] == 0 {
		assert.Equal(t, int64(1000), played.Result.Payout)
		assert.Equal(t, int64(100500), played.Result.NewBalance)
	} else {
		assert.Equal(t, int64(0), played.Result.Payout)
		assert.Equal(t, int64(99500), played.Result.NewBalance)
	}

	var verified reportResponse
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/fairness/rounds/"+roundID+"/verify", "", nil, &verified))
	assert.True(t, verified.Report.IsValid)
	assert.Equal(t, "alice-seed", verified.Report.ClientSeed)
	assert.Equal(t, started.Round.ServerSeedHash, services.HashSeed(verified.Report.ServerSeed))

	assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/api/rounds/"+roundID+"/play", alice, models.PlayRoundRequest{
		Amount: 500, Currency: models.CurrencyRegular, Selection: "heads",
	}, nil))

	var txs struct {
		Count int `json:"count"`
	}
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/transactions", alice, nil, &txs))
	if played.Result.Win {
		assert.Equal(t, 3, txs.Count)
	} else {
		assert.Equal(t, 2, txs.Count)
	}
	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodGet, "/api/transactions?limit=0", alice, nil, nil))
}

func TestRoundsArePrivate(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, "alice", services.RolePlayer)
	bob := s.token(t, "bob", services.RolePlayer)

	var started roundResponse
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/rounds", alice, models.StartRoundRequest{GameType: models.GameTypeDice}, &started))
	path := "/api/rounds/" + started.Round.ID

	assert.Equal(t, http.StatusOK, s.call(t, http.MethodGet, path, alice, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodGet, path, bob, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, path+"/reveal", bob, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/api/rounds/missing", alice, nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodPost, "/api/rounds", alice, models.StartRoundRequest{GameType: "poker"}, nil))
}

func TestExternalBetFlow(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, "alice", services.RolePlayer)
	table := s.token(t, "table-7", services.RoleService)

	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/account", alice, nil, nil))

	var started roundResponse
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/rounds", alice, models.StartRoundRequest{GameType: models.GameTypeRoulette}, &started))
	roundID := started.Round.ID

	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodPost, "/api/bets", alice, models.BetRequest{
		RoundID: roundID, Amount: 50, Currency: models.CurrencyRegular,
	}, nil))

	// Irregular gaps keep the timing check quiet.
	s.clock.Add(time.Second)

	var placed struct {
		NewBalance int64 `json:"new_balance"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/bets", alice, models.BetRequest{
		RoundID: roundID, Amount: 1000, Currency: models.CurrencySweeps,
	}, &placed))
	assert.Equal(t, int64(19000), placed.NewBalance)

	s.clock.Add(3 * time.Second)
	assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/api/bets", alice, models.BetRequest{
		RoundID: roundID, Amount: 1000, Currency: models.CurrencySweeps,
	}, nil))

	var revealed struct {
		Outcome []int `json:"outcome"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/rounds/"+roundID+"/reveal", alice, models.RevealRequest{ClientSeed: "lucky"}, &revealed))
	require.Len(t, revealed.Outcome, 1)

	resolve := models.ResolveRequest{UserID: "alice", RoundID: roundID, Amount: 36000, Won: true, Currency: models.CurrencySweeps}
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/api/bets/resolve", alice, resolve, nil))
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/bets/resolve", table, resolve, nil))
	assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/api/bets/resolve", table, resolve, nil))

	var balance struct {
		Account models.Account `json:"account"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/balance", alice, nil, &balance))
	assert.Equal(t, int64(55000), balance.Account.Sweeps)
	assert.Equal(t, int64(100000), balance.Account.Regular)
}

func TestLimitsAndAlgorithm(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, "alice", services.RolePlayer)

	var limits struct {
		Limits        models.PlayerLimits `json:"limits"`
		MinBetDisplay string              `json:"min_bet_display"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/limits?currency=sweeps", alice, nil, &limits))
	assert.Equal(t, models.CurrencySweeps, limits.Limits.Currency)
	assert.Equal(t, "$1.00", limits.MinBetDisplay)
	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodGet, "/api/limits?currency=gold", alice, nil, nil))

	var algo struct {
		Algorithm      string `json:"algorithm"`
		HashIterations int    `json:"hash_iterations"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/fairness/algorithm", "", nil, &algo))
	assert.Equal(t, services.AlgorithmARC4V1, algo.Algorithm)
	assert.Equal(t, 1000, algo.HashIterations)

	assert.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.call(t, http.MethodGet, "/api/balance", "", nil, nil))
}

func TestRewardsAndPurchases(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, "alice", services.RolePlayer)
	shop := s.token(t, "shop", services.RoleService)

	var claimed struct {
		Claim        models.RewardClaim    `json:"claim"`
		Transactions []*models.Transaction `json:"transactions"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/rewards/daily_login", alice, nil, &claimed))
	assert.Equal(t, models.RewardDailyLogin, claimed.Claim.Type)
	require.Len(t, claimed.Transactions, 2)
	assert.Equal(t, models.TransactionKindBonus, claimed.Transactions[0].Kind)

	assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/api/rewards/daily_login", alice, nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodPost, "/api/rewards/jackpot", alice, nil, nil))

	// Level-ups are earned in game, so players cannot claim them directly.
	grant := models.RewardGrantRequest{UserID: "alice"}
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/api/rewards/level_up", alice, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/api/rewards/level_up/grant", alice, grant, nil))
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/rewards/level_up/grant", shop, grant, nil))

	var listed struct {
		Rewards   []models.Reward `json:"rewards"`
		Available []models.Reward `json:"available"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/rewards", alice, nil, &listed))
	assert.Len(t, listed.Rewards, 9)
	var available []models.RewardType
	for _, r := range listed.Available {
		available = append(available, r.Type)
	}
	assert.Equal(t, []models.RewardType{models.RewardAdView, models.RewardSocialShare, models.RewardVIPBonus}, available)

	s.clock.Add(24 * time.Hour)
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/rewards/daily_login", alice, nil, nil))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/rewards/ad_view", alice, nil, nil), "ad %d", i+1)
		assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/api/rewards/ad_view", alice, nil, nil))
		s.clock.Add(time.Hour)
	}
	assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/api/rewards/ad_view", alice, nil, nil))

	var history struct {
		Claims []models.RewardClaim `json:"claims"`
		Count  int                  `json:"count"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/rewards/history", alice, nil, &history))
	assert.Equal(t, 8, history.Count)
	assert.Equal(t, models.RewardAdView, history.Claims[0].Type)

	purchase := models.PurchaseRequest{UserID: "alice", Currency: models.CurrencySweeps, Amount: 5000}
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/api/purchases", alice, purchase, nil))
	var bought struct {
		NewBalance int64 `json:"new_balance"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/purchases", shop, purchase, &bought))
	assert.Equal(t, int64(200+1000+200+5*20+5000), bought.NewBalance)

	purchase.Currency = "gold"
	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodPost, "/api/purchases", shop, purchase, nil))

	var balance struct {
		Account models.Account `json:"account"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/balance", alice, nil, &balance))
	assert.Equal(t, int64(1000+5000+1000+5*100), balance.Account.Regular)
}
