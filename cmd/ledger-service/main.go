package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/ledger/internal/command"
	"github.com/eaglebank/ledger/internal/config"
	"github.com/eaglebank/ledger/internal/events"
	"github.com/eaglebank/ledger/internal/handler"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/logging"
	"github.com/eaglebank/ledger/internal/middleware"
	"github.com/eaglebank/ledger/internal/query"
	redisClient "github.com/eaglebank/ledger/internal/redis"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ledgerStreamMaxLen caps the event stream; consumers only need recent history.
const ledgerStreamMaxLen = 100000

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database connection (write store)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	if cfg.MigrateOnStart {
		if err := repository.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	// Redis connection (locks, read model cache, event streaming)
	redis, err := redisClient.NewClient(ctx, redisClient.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	locker := lock.NewRedisLocker(redis.Client, logger)
	guard := lock.NewAccountGuard(locker, lock.Options{
		WaitTimeout:  cfg.LockWaitTimeout,
		LeaseTimeout: cfg.LockLeaseTimeout,
		RetryDelay:   cfg.LockRetryDelay,
	}, logger)

	// --- CQRS wiring ---
	publisher := events.NewPublisher(redis.Client, ledgerStreamMaxLen)

	users := repository.NewUserRepository(db)
	accountWriteRepo := repository.NewAccountWriteRepository(db)
	accountReadRepo := repository.NewAccountReadRepository(db, redis.Client, cfg.AccountCacheTTL, logger)
	transactionWriteRepo := repository.NewTransactionWriteRepository(db)
	transactionReadRepo := repository.NewTransactionReadRepository(db, redis.Client, cfg.AccountCacheTTL, logger)
	txManager := repository.NewTxManager(db, 0)

	engine := command.NewTransactionCommandService(
		accountWriteRepo, transactionWriteRepo, users, transactionReadRepo, publisher,
		command.WithLogger(logger),
		command.WithTransactor(txManager),
	)
	transactionCmdSvc := command.NewGuardedTransactionService(engine, guard)
	accountCmdSvc := command.NewAccountCommandService(accountWriteRepo, users, guard, publisher, command.WithLogger(logger))

	accountQrySvc := query.NewAccountQueryService(accountReadRepo, users)
	transactionQrySvc := query.NewTransactionQueryService(transactionReadRepo)

	accountHandler := handler.NewAccountHandler(accountCmdSvc, accountQrySvc)
	transactionHandler := handler.NewTransactionHandler(transactionCmdSvc, transactionQrySvc)

	// Setup router
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("")
	if cfg.JWTSecret != "" {
		api.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	} else {
		logger.Warn("JWT_SECRET not set, API authentication disabled")
	}
	{
		api.POST("/account", accountHandler.CreateAccount)
		api.DELETE("/account", accountHandler.CloseAccount)
		api.GET("/account", accountHandler.ListAccounts)
		api.GET("/account/:id", accountHandler.GetAccount)

		api.POST("/transaction/use", transactionHandler.UseBalance)
		api.POST("/transaction/cancel", transactionHandler.CancelBalance)
		api.GET("/transaction/:transactionId", transactionHandler.QueryTransaction)
	}

	projector := query.NewAccountProjector(accountReadRepo, logger)
	go func() {
		subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
			Group:    "ledger-projector",
			Consumer: cfg.ConsumerName,
			Stream:   events.LedgerEventsStream,
			Handler:  projector.HandleLedgerEvent,
			Logger:   logger,
		})
		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("projector subscriber stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("ledger service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
