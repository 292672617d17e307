package api

import (
	"net/http" // HTTP status codes
	"net/url"  // Cache key from query
	"strings"  // Filter normalisation
	"time"     // Date filters

	"storefront_wallet/internal/domain" // Domain models
	"storefront_wallet/internal/ledger" // Persisted state
	"storefront_wallet/internal/utils"  // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// parseTimeFilter accepts RFC 3339 timestamps or plain dates
func parseTimeFilter(v string, endOfDay bool) (*time.Time, bool) {
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, true
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

// adminCacheKey keys a cached admin listing on its sorted query string
func adminCacheKey(prefix string, query url.Values) string {
	return "admin:" + prefix + ":" + query.Encode()
}

// ListTransactionsHandler returns all wallet transactions, filtered by status, type, reference or date
func ListTransactionsHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cacheKey := adminCacheKey("txs", c.Request.URL.Query())
		var cached PageView[TransactionView]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}

		limit, offset, ok := pagination(c)
		if !ok {
			badRequest(c, "Invalid pagination parameters")
			return
		}
		filter := ledger.TransactionFilter{
			Status:    strings.ToUpper(c.Query("status")),
			Type:      strings.ToUpper(c.Query("type")),
			Reference: c.Query("reference"),
			Limit:     limit,
			Offset:    offset,
		}
		switch domain.TransactionStatus(filter.Status) {
		case "", domain.StatusPending, domain.StatusSuccess, domain.StatusFailed:
		default:
			badRequest(c, "Invalid status filter")
			return
		}
		switch domain.TransactionType(filter.Type) {
		case "", domain.TypeDeposit, domain.TypePayment:
		default:
			badRequest(c, "Invalid type filter")
			return
		}
		if filter.From, ok = parseTimeFilter(c.Query("from"), false); !ok {
			badRequest(c, "Invalid from date")
			return
		}
		if filter.To, ok = parseTimeFilter(c.Query("to"), true); !ok {
			badRequest(c, "Invalid to date")
			return
		}

		page, err := l.ListTransactions(ctx, filter)
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
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// ListWalletsHandler returns every wallet, oldest first
func ListWalletsHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cacheKey := adminCacheKey("wallets", c.Request.URL.Query())
		var cached PageView[WalletView]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}

		limit, offset, ok := pagination(c)
		if !ok {
			badRequest(c, "Invalid pagination parameters")
			return
		}
		page, err := l.ListWallets(ctx, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		views := make([]WalletView, len(page.Items))
		for i := range page.Items {
			views[i] = walletView(&page.Items[i])
		}
		resp := PageView[WalletView]{Items: views, Total: page.Total, Limit: limit, Offset: offset}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}
