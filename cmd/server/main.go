package main

import (
	"context"   // Redis ping and shutdown deadlines
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"storefront_wallet/internal/api"     // HTTP handlers
	"storefront_wallet/internal/config"  // Configuration
	"storefront_wallet/internal/db"      // Database connection
	"storefront_wallet/internal/deposit" // Deposit flow
	"storefront_wallet/internal/events"  // Wallet events
	"storefront_wallet/internal/jobs"    // Background jobs
	"storefront_wallet/internal/ledger"  // Persisted monetary state
	"storefront_wallet/internal/payment" // Payment gateways

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

func setupLogger(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// connectRedis returns nil when Redis is not configured; caching and locking are then skipped
func connectRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		logrus.Info("REDIS_ADDR not set, caching and settlement locks disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}
	return rdb
}

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	conn, err := db.Open(cfg.DSN(), cfg.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	rdb := connectRedis(cfg)

	gateway, err := payment.New(cfg)
	if err != nil {
		logrus.Fatalf("failed to configure payment gateway: %v", err)
	}
	publisher := events.Connect(cfg.RabbitMQURL)
	defer publisher.Close()

	l := ledger.New(conn)
	deposits := deposit.NewService(l, gateway, publisher, rdb, deposit.Options{
		MaxDeposit:  cfg.MaxDeposit * 100, // Major to minor units
		CallbackURL: cfg.PaymentCallbackURL,
	})

	scheduler := jobs.NewScheduler(jobs.NewJobs(l, deposits, cfg.ReconcileAfter), cfg.ReconcileSchedule)
	if err := scheduler.Start(); err != nil {
		logrus.Fatalf("failed to start scheduler: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	api.RegisterRoutes(r, api.Deps{
		Ledger:         l,
		Deposits:       deposits,
		Gateway:        gateway,
		Redis:          rdb,
		Publisher:      publisher,
		JWTSecret:      cfg.JWTSecret,
		FrontendURL:    cfg.FrontendURL,
		WalletCurrency: cfg.WalletCurrency,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.AppPort, "provider": gateway.Name()}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("HTTP shutdown failed")
	}
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logrus.Warn("Scheduled jobs still running at shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
