package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront_wallet/internal/domain"
	"storefront_wallet/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	conn := testutil.NewDB(t)
	return New(conn), conn
}

func seedWallet(t *testing.T, l *Ledger, conn *gorm.DB, userID uint, balance int64) *domain.Wallet {
	t.Helper()
	wallet, err := l.CreateWallet(context.Background(), userID, fmt.Sprintf("user%d@example.com", userID), "NGN")
	require.NoError(t, err)
	require.NoError(t, conn.Model(wallet).Update("balance", balance).Error)
	wallet.Balance = balance
	return wallet
}

func TestCreateWallet(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	wallet, err := l.CreateWallet(ctx, 1, "Ada@Example.com", "ngn")
	require.NoError(t, err)
	assert.Equal(t, "NGN", wallet.Currency)
	assert.True(t, wallet.IsActive)
	assert.Zero(t, wallet.Balance)

	_, err = l.CreateWallet(ctx, 1, "ada@example.com", "NGN")
	assert.ErrorIs(t, err, domain.ErrWalletExists)

	role, err := l.UserRole(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, role)
}

func TestGetBalanceUnknownWallet(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.GetBalance(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestSettleDepositSuccessCreditsOnce(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	wallet := seedWallet(t, l, conn, 1, 1000)

	_, err := l.CreatePendingDeposit(ctx, wallet, "abc123", 5000, "paystack")
	require.NoError(t, err)

	outcome := Outcome{Status: domain.StatusSuccess, Payload: domain.Payload(`{"status":"success","amount":5000}`)}
	settled, err := l.SettleDeposit(ctx, "abc123", outcome)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, settled.Status)
	assert.NotNil(t, settled.ProcessedAt)
	assert.JSONEq(t, `{"status":"success","amount":5000}`, string(settled.ProviderPayload))

	balance, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Balance{Amount: 6000, Currency: "NGN"}, balance)

	// Redelivery of the same reference is a no-op
	again, err := l.SettleDeposit(ctx, "abc123", outcome)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	require.NotNil(t, again)
	assert.Equal(t, domain.StatusSuccess, again.Status)

	balance, err = l.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), balance.Amount)
}

func TestSettleDepositNeverLeavesTerminalStatus(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	wallet := seedWallet(t, l, conn, 1, 0)

	_, err := l.CreatePendingDeposit(ctx, wallet, "failed-ref", 700, "paystack")
	require.NoError(t, err)

	_, err = l.SettleDeposit(ctx, "failed-ref", Outcome{Status: domain.StatusFailed, FailureReason: "declined"})
	require.NoError(t, err)

	got, err := l.SettleDeposit(ctx, "failed-ref", Outcome{Status: domain.StatusSuccess})
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "declined", got.FailureReason)

	balance, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, balance.Amount)
}

func TestSettleDepositRejectsPendingTarget(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.SettleDeposit(context.Background(), "x", Outcome{Status: domain.StatusPending})
	assert.Error(t, err)
}

func TestSettleDepositUnknownReference(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.SettleDeposit(context.Background(), "nope", Outcome{Status: domain.StatusSuccess})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestSettleDepositInactiveWalletRollsBack(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	wallet := seedWallet(t, l, conn, 1, 100)

	_, err := l.CreatePendingDeposit(ctx, wallet, "ref-inactive", 500, "paystack")
	require.NoError(t, err)
	require.NoError(t, conn.Model(wallet).Update("is_active", false).Error)

	_, err = l.SettleDeposit(ctx, "ref-inactive", Outcome{Status: domain.StatusSuccess})
	assert.ErrorIs(t, err, domain.ErrWalletInactive)

	tx, err := l.FindByReference(ctx, "ref-inactive")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, tx.Status)
}

func TestConcurrentSettlementCreditsOnce(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	wallet := seedWallet(t, l, conn, 1, 0)

	_, err := l.CreatePendingDeposit(ctx, wallet, "race", 2500, "paystack")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.SettleDeposit(ctx, "race", Outcome{Status: domain.StatusSuccess})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	balance, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), balance.Amount)
}

func TestPayDebitsAndIsIdempotent(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	seedWallet(t, l, conn, 1, 1000)

	paid, err := l.Pay(ctx, 1, "order-1", 400)
	require.NoError(t, err)
	assert.Equal(t, domain.TypePayment, paid.Type)
	assert.Equal(t, domain.StatusSuccess, paid.Status)

	again, err := l.Pay(ctx, 1, "order-1", 400)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.Equal(t, paid.ID, again.ID)

	_, err = l.Pay(ctx, 1, "order-1", 999)
	assert.ErrorIs(t, err, domain.ErrReferenceConflict)

	balance, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.Amount)
}

func TestPayNeverOverdraws(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	seedWallet(t, l, conn, 1, 300)

	_, err := l.Pay(ctx, 1, "order-big", 301)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The payment row was rolled back with the failed debit
	_, err = l.FindByReference(ctx, "order-big")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	balance, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance.Amount)
}

func TestPayRejectsNonPositiveAmount(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Pay(context.Background(), 1, "order", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestHistoryPagination(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	wallet := seedWallet(t, l, conn, 1, 0)
	other := seedWallet(t, l, conn, 2, 0)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.Create(&domain.Transaction{
			WalletID:  wallet.ID,
			Reference: fmt.Sprintf("ref-%d", i),
			Type:      domain.TypeDeposit,
			Status:    domain.StatusPending,
			Amount:    int64(100 * (i + 1)),
			Currency:  "NGN",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, conn.Create(&domain.Transaction{
		WalletID: other.ID, Reference: "foreign", Type: domain.TypeDeposit,
		Status: domain.StatusPending, Amount: 1, Currency: "NGN", CreatedAt: base.Add(time.Hour),
	}).Error)

	page, err := l.History(ctx, 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "ref-4", page.Items[0].Reference)
	assert.Equal(t, "ref-3", page.Items[1].Reference)

	page, err = l.History(ctx, 1, 2, 3)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "ref-1", page.Items[0].Reference)
	assert.Equal(t, "ref-0", page.Items[1].Reference)

	page, err = l.History(ctx, 1, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestListPendingDeposits(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	wallet := seedWallet(t, l, conn, 1, 0)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, conn.Create(&domain.Transaction{WalletID: wallet.ID, Reference: "stale", Type: domain.TypeDeposit,
		Status: domain.StatusPending, Amount: 10, Currency: "NGN", CreatedAt: old}).Error)
	require.NoError(t, conn.Create(&domain.Transaction{WalletID: wallet.ID, Reference: "fresh", Type: domain.TypeDeposit,
		Status: domain.StatusPending, Amount: 10, Currency: "NGN"}).Error)
	require.NoError(t, conn.Create(&domain.Transaction{WalletID: wallet.ID, Reference: "done", Type: domain.TypeDeposit,
		Status: domain.StatusSuccess, Amount: 10, Currency: "NGN", CreatedAt: old}).Error)

	txs, err := l.ListPendingDeposits(ctx, time.Now().Add(-15*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "stale", txs[0].Reference)
}

func TestListTransactionsFilters(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	wallet := seedWallet(t, l, conn, 1, 1000)

	_, err := l.CreatePendingDeposit(ctx, wallet, "dep-1", 100, "paystack")
	require.NoError(t, err)
	_, err = l.Pay(ctx, 1, "pay-1", 50)
	require.NoError(t, err)

	page, err := l.ListTransactions(ctx, TransactionFilter{Status: string(domain.StatusPending), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "dep-1", page.Items[0].Reference)

	page, err = l.ListTransactions(ctx, TransactionFilter{Type: string(domain.TypePayment), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "pay-1", page.Items[0].Reference)

	page, err = l.ListTransactions(ctx, TransactionFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}

func TestRefreshTokenCleanup(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, conn.Create(&[]domain.RefreshToken{
		{Token: "a", UserID: 1, ExpiresAt: now.Add(time.Hour)},
		{Token: "b", UserID: 1, ExpiresAt: now.Add(-time.Hour)},
		{Token: "c", UserID: 2, ExpiresAt: now.Add(-time.Hour)},
		{Token: "d", UserID: 2, ExpiresAt: now.Add(time.Hour)},
	}).Error)

	n, err := l.DeleteExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = l.DeleteRefreshTokens(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left int64
	require.NoError(t, conn.Model(&domain.RefreshToken{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}

func TestUserLookups(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	wallet, err := l.CreateWallet(ctx, 3, "Grace@Example.com", "NGN")
	require.NoError(t, err)

	email, err := l.UserEmail(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", email)

	owner, err := l.WalletOwner(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(3), owner)

	_, err = l.WalletOwner(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	role, err := l.UserRole(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, role)
	assert.NoError(t, l.Ping(ctx))
}
