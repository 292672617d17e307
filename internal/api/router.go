package api

import (
	"context"  // Health check deadline
	"net/http" // HTTP status codes
	"time"     // Health check deadline

	"storefront_wallet/internal/deposit"    // Deposit flow
	"storefront_wallet/internal/events"     // Wallet events
	"storefront_wallet/internal/ledger"     // Persisted state
	"storefront_wallet/internal/middleware" // Auth gates
	"storefront_wallet/internal/payment"    // Gateway

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// Deps are the services the HTTP API is built on; Redis may be nil
type Deps struct {
	Ledger         *ledger.Ledger
	Deposits       *deposit.Service
	Gateway        payment.Gateway
	Redis          *redis.Client
	Publisher      events.Publisher
	JWTSecret      string
	FrontendURL    string
	WalletCurrency string
}

// RegisterRoutes mounts every wallet route on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	if d.Publisher == nil {
		d.Publisher = events.NoopPublisher{}
	}
	verifier, _ := d.Gateway.(SignatureVerifier) // Only some providers sign webhooks

	r.GET("/healthz", HealthHandler(d.Ledger, d.Redis))

	// Gateway return and webhook, unauthenticated; the gateway is asked for the real outcome
	callback := CallbackHandler(d.Deposits, verifier, d.FrontendURL)
	r.GET("/wallet/callback", callback)
	r.POST("/wallet/callback", callback)

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet", middleware.JWTAuthMiddleware(d.JWTSecret))
	walletGroup.POST("", CreateWalletHandler(d.Ledger, d.WalletCurrency))
	walletGroup.GET("", GetWalletHandler(d.Ledger, d.Redis))
	walletGroup.GET("/balance", BalanceHandler(d.Ledger, d.Redis))
	walletGroup.GET("/transactions", TransactionHistoryHandler(d.Ledger, d.Redis))
	walletGroup.POST("/deposit", DepositHandler(d.Deposits))
	walletGroup.POST("/pay", PayHandler(d.Ledger, d.Redis, d.Publisher))
	walletGroup.PUT("/pin", SetPinHandler(d.Ledger, d.Redis))

	r.POST("/auth/logout", middleware.JWTAuthMiddleware(d.JWTSecret), LogoutHandler(d.Ledger))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin", middleware.JWTAuthMiddleware(d.JWTSecret), middleware.AdminOnlyMiddleware(d.Ledger))
	adminGroup.GET("/transactions", ListTransactionsHandler(d.Ledger, d.Redis))
	adminGroup.GET("/wallets", ListWalletsHandler(d.Ledger, d.Redis))
}

// HealthHandler reports whether the database and Redis answer
func HealthHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status, healthy := gin.H{"database": "ok", "redis": "disabled"}, true
		if err := l.Ping(ctx); err != nil {
			status["database"], healthy = err.Error(), false
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["redis"], healthy = err.Error(), false
			}
		}
		if !healthy {
			status["status"] = "unavailable"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["status"] = "ok"
		c.JSON(http.StatusOK, status)
	}
}
