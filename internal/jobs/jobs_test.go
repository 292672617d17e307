package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront_wallet/internal/deposit"
	"storefront_wallet/internal/domain"
	"storefront_wallet/internal/ledger"
	"storefront_wallet/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubSettler struct {
	seen     []string
	outcomes map[string]deposit.Outcome
	errs     map[string]error
}

func (s *stubSettler) Settle(ctx context.Context, reference string) (*deposit.Result, error) {
	s.seen = append(s.seen, reference)
	if err := s.errs[reference]; err != nil {
		return nil, err
	}
	return &deposit.Result{Outcome: s.outcomes[reference]}, nil
}

func seedPending(t *testing.T, l *ledger.Ledger, conn *gorm.DB, wallet *domain.Wallet, ref string, age time.Duration) {
	t.Helper()
	tx, err := l.CreatePendingDeposit(context.Background(), wallet, ref, 5000, "paystack")
	require.NoError(t, err)
	require.NoError(t, conn.Model(tx).UpdateColumn("created_at", time.Now().Add(-age)).Error)
}

func TestReconcileOnlyTouchesStaleDeposits(t *testing.T) {
	conn := testutil.NewDB(t)
	l := ledger.New(conn)
	wallet, err := l.CreateWallet(context.Background(), 1, "ada@example.com", "NGN")
	require.NoError(t, err)

	seedPending(t, l, conn, wallet, "old_ok", time.Hour)
	seedPending(t, l, conn, wallet, "old_failed", 40*time.Minute)
	seedPending(t, l, conn, wallet, "old_busy", 30*time.Minute)
	seedPending(t, l, conn, wallet, "fresh", time.Minute)

	settler := &stubSettler{
		outcomes: map[string]deposit.Outcome{"old_ok": deposit.OutcomeSuccess, "old_failed": deposit.OutcomeFailed},
		errs:     map[string]error{"old_busy": domain.ErrSettlementInProgress},
	}
	j := NewJobs(l, settler, 15*time.Minute)

	stats, err := j.reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"old_ok", "old_failed", "old_busy"}, settler.seen)
	assert.Equal(t, ReconcileStats{Checked: 3, Succeeded: 1, Failed: 1, Errors: 1}, stats)
}

func TestReconcileRotatesUnsettledDeposits(t *testing.T) {
	conn := testutil.NewDB(t)
	l := ledger.New(conn)
	wallet, err := l.CreateWallet(context.Background(), 1, "ada@example.com", "NGN")
	require.NoError(t, err)

	seedPending(t, l, conn, wallet, "stuck_a", 3*time.Hour)
	seedPending(t, l, conn, wallet, "stuck_b", 2*time.Hour)
	seedPending(t, l, conn, wallet, "waiting", time.Hour)

	settler := &stubSettler{
		outcomes: map[string]deposit.Outcome{"stuck_a": deposit.OutcomePending},
		errs:     map[string]error{"stuck_b": errors.New("gateway unavailable")},
	}
	j := NewJobs(l, settler, 15*time.Minute)
	j.batch = 2
	now := time.Now().Add(time.Minute)
	j.now = func() time.Time { return now }

	_, err = j.reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck_a", "stuck_b"}, settler.seen)

	// Deposits that stayed unsettled yield to the one never tried
	settler.seen = nil
	_, err = j.reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"waiting", "stuck_a"}, settler.seen)
}

func TestSweepRefreshTokens(t *testing.T) {
	conn := testutil.NewDB(t)
	l := ledger.New(conn)
	now := time.Now()
	require.NoError(t, conn.Create(&domain.RefreshToken{Token: "expired", UserID: 1, ExpiresAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, conn.Create(&domain.RefreshToken{Token: "live", UserID: 1, ExpiresAt: now.Add(time.Hour)}).Error)

	NewJobs(l, &stubSettler{}, time.Minute).SweepRefreshTokens()

	var tokens []domain.RefreshToken
	require.NoError(t, conn.Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.Equal(t, "live", tokens[0].Token)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(NewJobs(nil, &stubSettler{}, time.Minute), "not a schedule")
	assert.Error(t, s.Start())
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(NewJobs(nil, &stubSettler{}, time.Minute), "@every 1h")
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}
