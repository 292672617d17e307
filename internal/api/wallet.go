package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"regexp"   // PIN format

	"storefront_wallet/internal/deposit"    // Deposit flow
	"storefront_wallet/internal/domain"     // Domain models
	"storefront_wallet/internal/events"     // Wallet events
	"storefront_wallet/internal/ledger"     // Persisted monetary state
	"storefront_wallet/internal/middleware" // Authenticated user
	"storefront_wallet/internal/utils"      // Cache and money helpers

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Decimal amounts
	"github.com/sirupsen/logrus"    // Logging library
	"golang.org/x/crypto/bcrypt"    // PIN hashing
)

// pinPattern accepts 4 to 6 digits
var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// AmountRequest carries a major-unit amount, as a JSON number or string
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"` // e.g. "50.25"
}

// PayRequest debits the wallet for a storefront order
type PayRequest struct {
	Amount    decimal.Decimal `json:"amount"`                               // Major units
	Reference string          `json:"reference" binding:"required,max=100"` // Order reference, idempotency key
	Pin       string          `json:"pin"`                                  // Wallet PIN
}

// PinRequest sets or replaces the wallet PIN
type PinRequest struct {
	Pin string `json:"pin" binding:"required"` // 4-6 digits
}

// CreateWalletHandler creates a wallet for a user (one wallet per user)
func CreateWalletHandler(l *ledger.Ledger, currency string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		email := c.GetString(middleware.EmailKey)
		// The user row is provisioned from the token, so it must carry an email
		if email == "" {
			badRequest(c, "Token has no email claim")
			return
		}
		wallet, err := l.CreateWallet(c.Request.Context(), userID, email, currency)
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"wallet_id": wallet.ID,
			"currency":  wallet.Currency,
		}).Info("Wallet created")
		c.JSON(http.StatusCreated, walletView(wallet))
	}
}

// cachedWallet loads the user's wallet view, through the cache when available
func cachedWallet(ctx context.Context, l *ledger.Ledger, rdb *redis.Client, userID uint) (WalletView, bool, error) {
	key := utils.WalletCacheKey(userID)
	var view WalletView
	if found, err := utils.GetCache(ctx, rdb, key, &view); err == nil && found {
		return view, true, nil
	}
	wallet, err := l.GetWallet(ctx, userID)
	if err != nil {
		return WalletView{}, false, err
	}
	view = walletView(wallet)
	_ = utils.SetCache(ctx, rdb, key, view, utils.CacheTTL)
	return view, false, nil
}

// GetWalletHandler returns the user's wallet
func GetWalletHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		view, cached, err := cachedWallet(c.Request.Context(), l, rdb, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"wallet": view, "cached": cached})
	}
}

// BalanceHandler returns the user's balance and currency
func BalanceHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		view, cached, err := cachedWallet(c.Request.Context(), l, rdb, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"balance":         view.Balance,
			"balance_display": view.BalanceDisplay,
			"currency":        view.Currency,
			"cached":          cached,
		})
	}
}

// TransactionHistoryHandler returns a page of the user's transactions, most recent first
func TransactionHistoryHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		limit, offset, ok := pagination(c)
		if !ok {
			badRequest(c, "Invalid pagination parameters")
			return
		}
		ctx := c.Request.Context()
		key := utils.HistoryCacheKey(userID, limit, offset)
		var cached PageView[TransactionView]
		if found, err := utils.GetCache(ctx, rdb, key, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		page, err := l.History(ctx, userID, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := PageView[TransactionView]{
			Items:  transactionViews(page.Items),
			Total:  page.Total,
			Limit:  limit,
			Offset: offset,
		}
		_ = utils.SetCache(ctx, rdb, key, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// DepositHandler starts a gateway top-up and returns where to send the customer
func DepositHandler(svc *deposit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid amount")
			return
		}
		amount, err := utils.ToMinor(req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		checkout, err := svc.Initiate(c.Request.Context(), userID, c.GetString(middleware.EmailKey), amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, checkout)
	}
}

// PayHandler pays a storefront order from the wallet balance
func PayHandler(l *ledger.Ledger, rdb *redis.Client, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req PayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		amount, err := utils.ToMinor(req.Amount)
		if err != nil || amount <= 0 {
			badRequest(c, "Invalid amount")
			return
		}
		ctx := c.Request.Context()
		wallet, err := l.GetWallet(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := checkPin(wallet, req.Pin); err != nil {
			respondError(c, err)
			return
		}

		t, err := l.Pay(ctx, userID, req.Reference, amount)
		if errors.Is(err, domain.ErrAlreadySettled) {
			// Replayed order reference, nothing was debited this time
			c.JSON(http.StatusOK, gin.H{"transaction": transactionView(t), "replayed": true})
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,
				"reference": req.Reference,
				"amount":    amount,
				"error":     err.Error(),
			}).Warn("Wallet payment rejected")
			respondError(c, err)
			return
		}

		ctx = context.WithoutCancel(ctx)
		_ = utils.InvalidateWallet(ctx, rdb, userID)
		if err := publisher.Publish(ctx, events.WalletEvent{
			Type:       events.PaymentCompleted,
			Reference:  t.Reference,
			UserID:     userID,
			WalletID:   t.WalletID,
			Amount:     t.Amount,
			Currency:   t.Currency,
			Status:     string(t.Status),
			OccurredAt: *t.ProcessedAt,
		}); err != nil {
			logrus.WithFields(logrus.Fields{"reference": t.Reference, "error": err.Error()}).Warn("Failed to publish wallet event")
		}
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"wallet_id": t.WalletID,
			"reference": t.Reference,
			"amount":    t.Amount,
			"type":      t.Type,
		}).Info("Wallet payment")
		c.JSON(http.StatusOK, gin.H{"transaction": transactionView(t), "replayed": false})
	}
}

// checkPin verifies pin against the wallet's hash; wallets without a PIN must set one first
func checkPin(wallet *domain.Wallet, pin string) error {
	if !wallet.HasPin() {
		return domain.ErrPinNotSet
	}
	if bcrypt.CompareHashAndPassword([]byte(wallet.PinHash), []byte(pin)) != nil {
		return domain.ErrInvalidPin
	}
	return nil
}

// SetPinHandler sets or replaces the wallet PIN
func SetPinHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req PinRequest
		if err := c.ShouldBindJSON(&req); err != nil || !pinPattern.MatchString(req.Pin) {
			badRequest(c, "PIN must be 4-6 digits")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := l.SetPin(c.Request.Context(), userID, string(hash)); err != nil {
			respondError(c, err)
			return
		}
		_ = utils.DeleteCache(context.WithoutCancel(c.Request.Context()), rdb, utils.WalletCacheKey(userID))
		logrus.WithField("user_id", userID).Info("Wallet PIN updated")
		c.JSON(http.StatusOK, gin.H{"message": "PIN updated"})
	}
}
