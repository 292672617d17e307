// Package deposit runs wallet top-ups through the payment gateway: it opens a
// pending deposit, and later settles it from the gateway's own verification.
// The callback handler and the reconciliation job both settle through Settle.
package deposit

import (
	"context" // Request scoped cancellation
	"errors"  // Error inspection
	"fmt"     // Failure reasons
	"strings" // Reference comparison
	"time"    // Event timestamps

	"storefront_wallet/internal/domain"  // Domain models
	"storefront_wallet/internal/events"  // Wallet events
	"storefront_wallet/internal/ledger"  // Persisted monetary state
	"storefront_wallet/internal/payment" // Gateway clients
	"storefront_wallet/internal/utils"   // Cache and lock helpers

	"github.com/google/uuid"       // Reference generation
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Outcome is what the customer is told about a deposit
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// Result is the state of a deposit after a settle attempt
type Result struct {
	Outcome     Outcome
	Transaction *domain.Transaction
}

// Options tunes a Service
type Options struct {
	MaxDeposit  int64         // Largest single deposit, minor units; 0 disables the cap
	CallbackURL string        // Where the gateway returns the customer
	LockTTL     time.Duration // Lease on the per-reference settlement lock
}

// Service coordinates the ledger, the gateway and the side effects of a settlement
type Service struct {
	ledger    *ledger.Ledger
	gateway   payment.Gateway
	publisher events.Publisher
	rdb       *redis.Client
	locker    *utils.Locker
	opts      Options
	now       func() time.Time
}

// NewService builds a Service; rdb and publisher may be nil
func NewService(l *ledger.Ledger, gw payment.Gateway, publisher events.Publisher, rdb *redis.Client, opts Options) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &Service{
		ledger:    l,
		gateway:   gw,
		publisher: publisher,
		rdb:       rdb,
		locker:    utils.NewLocker(rdb, opts.LockTTL),
		opts:      opts,
		now:       time.Now,
	}
}

// NewReference returns a fresh deposit reference
func NewReference() string {
	return "dep_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Initiate records a pending deposit and opens a hosted checkout for it
func (s *Service) Initiate(ctx context.Context, userID uint, email string, amount int64) (*payment.Checkout, error) {
	if amount <= 0 || (s.opts.MaxDeposit > 0 && amount > s.opts.MaxDeposit) {
		return nil, domain.ErrInvalidAmount
	}
	wallet, err := s.ledger.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, domain.ErrWalletInactive
	}
	if email == "" {
		// Tokens without an email claim fall back to the address stored at wallet creation
		if email, err = s.ledger.UserEmail(ctx, userID); err != nil {
			return nil, err
		}
	}

	reference := NewReference()
	// The row must exist before the customer can reach the gateway
	if _, err := s.ledger.CreatePendingDeposit(ctx, wallet, reference, amount, s.gateway.Name()); err != nil {
		return nil, err
	}
	if err := utils.InvalidateWallet(context.WithoutCancel(ctx), s.rdb, userID); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Failed to invalidate wallet cache")
	}

	checkout, err := s.gateway.Initialize(ctx, payment.InitRequest{
		Reference:   reference,
		Email:       email,
		Amount:      amount,
		Currency:    wallet.Currency,
		CallbackURL: s.opts.CallbackURL,
	})
	if err != nil {
		closed, settleErr := s.ledger.SettleDeposit(context.WithoutCancel(ctx), reference, ledger.Outcome{
			Status:        domain.StatusFailed,
			FailureReason: "checkout initialisation failed",
		})
		if settleErr != nil {
			logrus.WithFields(logrus.Fields{"reference": reference, "error": settleErr.Error()}).Error("Failed to close abandoned deposit")
		} else {
			s.afterTransition(ctx, closed)
		}
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"reference": reference,
			"amount":    amount,
			"error":     err.Error(),
		}).Warn("Deposit initialisation failed")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"wallet_id": wallet.ID,
		"reference": reference,
		"amount":    amount,
		"provider":  s.gateway.Name(),
	}).Info("Deposit initiated")
	return checkout, nil
}

// Settle verifies reference with the gateway and applies the confirmed result.
// Already settled references are answered from the database without asking the gateway.
func (s *Service) Settle(ctx context.Context, reference string) (*Result, error) {
	t, err := s.ledger.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if t.Type != domain.TypeDeposit {
		return nil, domain.ErrTransactionNotFound
	}
	if t.Status.IsTerminal() {
		return resultOf(t), nil
	}

	release, err := s.locker.Acquire(ctx, "deposit:"+reference)
	if err != nil {
		if errors.Is(err, utils.ErrLockHeld) {
			return nil, domain.ErrSettlementInProgress
		}
		// Without the lock the conditional update still guarantees a single credit
		logrus.WithFields(logrus.Fields{"reference": reference, "error": err.Error()}).Warn("Settlement lock unavailable")
		release = func() {}
	}
	defer release()

	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		logrus.WithFields(logrus.Fields{"reference": reference, "error": err.Error()}).Warn("Deposit verification failed")
		return nil, err
	}

	// A non-final verdict never closes the deposit, whatever else it carries
	if v.Status == payment.StatusPending {
		logrus.WithFields(logrus.Fields{"reference": reference}).Info("Deposit still pending at gateway")
		return &Result{Outcome: OutcomePending, Transaction: t}, nil
	}

	outcome := ledger.Outcome{Payload: domain.Payload(v.Raw)}
	switch {
	case !strings.EqualFold(v.Reference, reference):
		outcome.Status, outcome.FailureReason = domain.StatusFailed, fmt.Sprintf("gateway returned reference %q", v.Reference)
	case !strings.EqualFold(v.Currency, t.Currency):
		outcome.Status, outcome.FailureReason = domain.StatusFailed, fmt.Sprintf("currency mismatch: expected %s, got %s", t.Currency, v.Currency)
	case v.Status == payment.StatusSuccess && v.Amount < t.Amount:
		outcome.Status, outcome.FailureReason = domain.StatusFailed, fmt.Sprintf("amount mismatch: expected %d, got %d", t.Amount, v.Amount)
	case v.Status == payment.StatusSuccess:
		outcome.Status = domain.StatusSuccess
	default:
		outcome.Status, outcome.FailureReason = domain.StatusFailed, gatewayReason(v)
	}

	settled, err := s.ledger.SettleDeposit(ctx, reference, outcome)
	if errors.Is(err, domain.ErrAlreadySettled) {
		return resultOf(settled), nil
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"reference": reference, "error": err.Error()}).Error("Deposit settlement failed")
		return nil, err
	}
	s.afterTransition(ctx, settled)
	return resultOf(settled), nil
}

// afterTransition runs the side effects of a status change; none of them can undo it
func (s *Service) afterTransition(ctx context.Context, t *domain.Transaction) {
	ctx = context.WithoutCancel(ctx)
	fields := logrus.Fields{
		"reference": t.Reference,
		"wallet_id": t.WalletID,
		"amount":    t.Amount,
		"status":    t.Status,
	}

	userID, err := s.ledger.WalletOwner(ctx, t.WalletID)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Error("Failed to resolve wallet owner")
	} else {
		fields["user_id"] = userID
		if err := utils.InvalidateWallet(ctx, s.rdb, userID); err != nil {
			logrus.WithFields(fields).WithError(err).Warn("Failed to invalidate wallet cache")
		}
	}

	eventType := events.DepositSucceeded
	if t.Status == domain.StatusFailed {
		eventType = events.DepositFailed
		fields["reason"] = t.FailureReason
	}
	occurredAt := s.now()
	if t.ProcessedAt != nil {
		occurredAt = *t.ProcessedAt
	}
	if err := s.publisher.Publish(ctx, events.WalletEvent{
		Type:       eventType,
		Reference:  t.Reference,
		UserID:     userID,
		WalletID:   t.WalletID,
		Amount:     t.Amount,
		Currency:   t.Currency,
		Status:     string(t.Status),
		OccurredAt: occurredAt,
	}); err != nil {
		logrus.WithFields(fields).WithError(err).Warn("Failed to publish wallet event")
	}

	if t.Status == domain.StatusSuccess {
		logrus.WithFields(fields).Info("Deposit credited")
	} else {
		logrus.WithFields(fields).Info("Deposit failed")
	}
}

func gatewayReason(v *payment.Verification) string {
	if v.GatewayResponse != "" {
		return v.GatewayResponse
	}
	return "payment failed at gateway"
}

func resultOf(t *domain.Transaction) *Result {
	switch t.Status {
	case domain.StatusSuccess:
		return &Result{Outcome: OutcomeSuccess, Transaction: t}
	case domain.StatusFailed:
		return &Result{Outcome: OutcomeFailed, Transaction: t}
	default:
		return &Result{Outcome: OutcomePending, Transaction: t}
	}
}
