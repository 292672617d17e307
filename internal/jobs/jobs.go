// Package jobs runs the wallet's background maintenance on a cron schedule.
package jobs

import (
	"context" // Job deadlines
	"errors"  // Error inspection
	"time"    // Cutoffs

	"storefront_wallet/internal/deposit" // Deposit settlement
	"storefront_wallet/internal/domain"  // Domain errors
	"storefront_wallet/internal/ledger"  // Persisted state

	"github.com/sirupsen/logrus" // Logging library
)

// reconcileBatch bounds how many deposits one run re-verifies
const reconcileBatch = 100

// Settler settles a deposit from the gateway's verification
type Settler interface {
	Settle(ctx context.Context, reference string) (*deposit.Result, error)
}

// Jobs holds the dependencies of every scheduled job
type Jobs struct {
	ledger  *ledger.Ledger
	settler Settler
	after   time.Duration
	batch   int
	timeout time.Duration
	now     func() time.Time
}

// NewJobs builds Jobs; deposits younger than after are left to the callback
func NewJobs(l *ledger.Ledger, settler Settler, after time.Duration) *Jobs {
	return &Jobs{ledger: l, settler: settler, after: after, batch: reconcileBatch, timeout: 2 * time.Minute, now: time.Now}
}

// ReconcileStats summarises one reconciliation run
type ReconcileStats struct {
	Checked   int
	Succeeded int
	Failed    int
	Pending   int
	Errors    int
}

// ReconcilePending re-verifies stale pending deposits whose callback never arrived
func (j *Jobs) ReconcilePending() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	stats, err := j.reconcile(ctx)
	if err != nil {
		logrus.WithError(err).Error("Pending deposit reconciliation failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"checked":   stats.Checked,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"pending":   stats.Pending,
		"errors":    stats.Errors,
	}).Info("Pending deposit reconciliation finished")
}

func (j *Jobs) reconcile(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	pending, err := j.ledger.ListPendingDeposits(ctx, j.now().Add(-j.after), j.batch)
	if err != nil {
		return stats, err
	}
	for _, t := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Checked++
		res, err := j.settler.Settle(ctx, t.Reference)
		if err != nil {
			// A live callback holds the lock; it will finish the job
			if !errors.Is(err, domain.ErrSettlementInProgress) {
				logrus.WithFields(logrus.Fields{"reference": t.Reference, "error": err.Error()}).Warn("Reconciliation of deposit failed")
			}
			stats.Errors++
			j.requeue(ctx, t.Reference)
			continue
		}
		switch res.Outcome {
		case deposit.OutcomeSuccess:
			stats.Succeeded++
		case deposit.OutcomeFailed:
			stats.Failed++
		default:
			stats.Pending++
			j.requeue(ctx, t.Reference)
		}
	}
	return stats, nil
}

// requeue pushes an unsettled deposit behind the ones not yet tried
func (j *Jobs) requeue(ctx context.Context, reference string) {
	if err := j.ledger.TouchPendingDeposit(ctx, reference, j.now()); err != nil {
		logrus.WithFields(logrus.Fields{"reference": reference, "error": err.Error()}).Warn("Failed to requeue pending deposit")
	}
}

// SweepRefreshTokens deletes expired refresh tokens
func (j *Jobs) SweepRefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	n, err := j.ledger.DeleteExpiredRefreshTokens(ctx, j.now())
	if err != nil {
		logrus.WithError(err).Error("Refresh token sweep failed")
		return
	}
	if n > 0 {
		logrus.WithField("deleted", n).Info("Expired refresh tokens removed")
	}
}
