package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/handlers"
	"fairplay-backend/internal/logger"
	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := services.NewMetrics()
	clk := clock.New()
	hub := handlers.NewWebSocketHub(zlog)
	dispatcher := services.NewDispatcher(cfg.EventBuffer, zlog, metrics, services.NewAuditLogSink(zlog))

	var (
		store   services.Store
		limiter middleware.RateLimiter
		relay   func(ctx context.Context) error
	)

	switch cfg.StoreDriver {
	case "redis":
		redisStore, err := services.NewRedisStore(cfg)
		if err != nil {
			return err
		}
		store = redisStore
		limiter = redisStore

		// Every instance publishes to the channel and every instance relays
		// the channel to its own sockets.
		dispatcher.AddSink(services.NewRedisEventSink(redisStore.Client(), cfg.EventChannel))
		relay = func(ctx context.Context) error {
			return services.RelayEvents(ctx, redisStore.Client(), cfg.EventChannel, hub, zlog)
		}
	case "postgres":
		pgStore, err := services.NewPostgresStore(cfg)
		if err != nil {
			return err
		}
		store = pgStore
		limiter = services.NewMemoryRateLimiter()
		dispatcher.AddSink(hub)
	default:
		store = services.NewMemoryStore()
		limiter = services.NewMemoryRateLimiter()
		dispatcher.AddSink(hub)
	}
	defer store.Close()

	zlog.Info("store ready", zap.String("driver", cfg.StoreDriver))

	fairness := services.NewFairnessLedger(store, services.NewSeedGenerator(nil), dispatcher, clk, zlog, metrics)
	ledger := services.NewBettingLedger(store, cfg.Limits, dispatcher, clk, zlog, metrics)
	anticheat, err := services.NewAntiCheatMonitor(cfg.AntiCheat, store, dispatcher, clk, zlog, metrics)
	if err != nil {
		return err
	}
	engine := services.NewGameEngine(fairness, ledger, anticheat, store, cfg.Fairness, clk, zlog, metrics)
	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)

	gameHandler := handlers.NewGameHandler(engine, fairness, ledger, anticheat, zlog)
	userHandler := handlers.NewUserHandler(ledger, zlog)
	rewardsHandler := handlers.NewRewardsHandler(ledger, zlog)
	fairnessHandler := handlers.NewFairnessHandler(fairness, metrics, zlog)
	wsHandler := handlers.NewWebSocketHandler(hub, ledger, zlog)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(zlog), middleware.CORS())

	router.GET("/healthz", fairnessHandler.Health)
	router.GET("/metrics", fairnessHandler.Metrics)

	public := router.Group("/fairness")
	{
		public.GET("/algorithm", fairnessHandler.Algorithm)
		public.GET("/rounds/:id/verify", fairnessHandler.Verify)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService), middleware.RateLimitMiddleware(limiter, zlog))
	{
		protected.POST("/account", userHandler.OpenAccount)
		protected.GET("/balance", userHandler.GetBalance)
		protected.GET("/transactions", userHandler.GetTransactions)
		protected.GET("/limits", gameHandler.GetLimits)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		rounds := protected.Group("/rounds")
		{
			rounds.POST("", gameHandler.StartRound)
			rounds.GET("/:id", gameHandler.GetRound)
			rounds.POST("/:id/play", gameHandler.Play)
			rounds.POST("/:id/reveal", gameHandler.Reveal)
		}

		bets := protected.Group("/bets")
		{
			bets.POST("", gameHandler.PlaceBet)
			bets.POST("/resolve", middleware.RequireRole(services.RoleService), gameHandler.ResolveBet)
		}

		rewards := protected.Group("/rewards")
		{
			rewards.GET("", rewardsHandler.List)
			rewards.GET("/history", rewardsHandler.History)
			rewards.POST("/:type", rewardsHandler.Claim)
			rewards.POST("/:type/grant", middleware.RequireRole(services.RoleService), rewardsHandler.Grant)
		}

		protected.POST("/purchases", middleware.RequireRole(services.RoleService), userHandler.Purchase)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return engine.RunSweeper(gctx) })
	if relay != nil {
		g.Go(func() error { return relay(gctx) })
	}

	g.Go(func() error {
		zlog.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
