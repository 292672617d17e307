package api

import (
	"strconv" // Query parsing

	"storefront_wallet/internal/domain" // Domain models
	"storefront_wallet/internal/utils"  // Money formatting

	"github.com/gin-gonic/gin" // Gin web framework
)

const (
	defaultPageSize = 20  // Default page size
	maxPageSize     = 100 // Largest page a client can ask for
)

// WalletView is the wallet as returned to its owner
type WalletView struct {
	domain.Wallet
	BalanceDisplay string `json:"balance_display"` // Balance in major units
	PinSet         bool   `json:"pin_set"`         // Whether payments require a PIN
}

// TransactionView is a transaction with its display amount
type TransactionView struct {
	domain.Transaction
	AmountDisplay string `json:"amount_display"` // Amount in major units
}

// PageView is one page of a listing
type PageView[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Cached bool  `json:"cached"`
}

func walletView(w *domain.Wallet) WalletView {
	return WalletView{Wallet: *w, BalanceDisplay: utils.FormatMinor(w.Balance), PinSet: w.HasPin()}
}

func transactionView(t *domain.Transaction) TransactionView {
	return TransactionView{Transaction: *t, AmountDisplay: utils.FormatMinor(t.Amount)}
}

func transactionViews(txs []domain.Transaction) []TransactionView {
	views := make([]TransactionView, len(txs))
	for i := range txs {
		views[i] = transactionView(&txs[i])
	}
	return views
}

// pagination reads limit and offset; limit defaults to 20 and is capped at 100
func pagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultPageSize, 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
