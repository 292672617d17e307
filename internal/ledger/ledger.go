// Package ledger is the only code that reads or writes persisted monetary state.
// Balance changes are atomic SQL increments guarded against going negative, and
// every status transition is a conditional update keyed on the current status.
package ledger

import (
	"context" // Request scoped cancellation
	"errors"  // Error inspection
	"fmt"     // Error wrapping
	"strings" // Normalising input
	"time"    // Timestamps

	"storefront_wallet/internal/domain" // Importing domain models

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Upsert clauses
)

// Ledger wraps the database handle
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// New builds a Ledger over db
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Balance is the current spendable amount of a wallet
type Balance struct {
	Amount   int64  `json:"amount"`   // Minor units
	Currency string `json:"currency"` // ISO currency code
}

// Outcome is a confirmed gateway result applied to a pending deposit
type Outcome struct {
	Status        domain.TransactionStatus // SUCCESS or FAILED
	Payload       domain.Payload           // Raw provider payload
	FailureReason string                   // Set for FAILED
}

// CreateWallet provisions the user row and an empty wallet
func (l *Ledger) CreateWallet(ctx context.Context, userID uint, email, currency string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := domain.User{ID: userID, Email: strings.ToLower(email), Role: domain.RoleUser}
		// Keep an existing row (and its role) untouched
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&domain.Wallet{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrWalletExists
		}
		wallet = domain.Wallet{UserID: userID, Currency: strings.ToUpper(currency), IsActive: true}
		return tx.Create(&wallet).Error
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetWallet returns the wallet owned by userID
func (l *Ledger) GetWallet(ctx context.Context, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return &wallet, nil
}

// GetBalance returns the balance and currency of the user's wallet
func (l *Ledger) GetBalance(ctx context.Context, userID uint) (Balance, error) {
	wallet, err := l.GetWallet(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Amount: wallet.Balance, Currency: wallet.Currency}, nil
}

// SetPin stores a new PIN hash for the user's wallet
func (l *Ledger) SetPin(ctx context.Context, userID uint, hash string) error {
	res := l.db.WithContext(ctx).Model(&domain.Wallet{}).Where("user_id = ?", userID).Update("pin_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("set pin: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// CreatePendingDeposit records a deposit attempt before the customer is sent to the gateway
func (l *Ledger) CreatePendingDeposit(ctx context.Context, wallet *domain.Wallet, reference string, amount int64, provider string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	t := domain.Transaction{
		WalletID:  wallet.ID,
		Reference: reference,
		Type:      domain.TypeDeposit,
		Status:    domain.StatusPending,
		Amount:    amount,
		Currency:  wallet.Currency,
		Provider:  provider,
	}
	if err := l.db.WithContext(ctx).Create(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrReferenceConflict
		}
		return nil, fmt.Errorf("create pending deposit: %w", err)
	}
	return &t, nil
}

// FindByReference loads a transaction by its gateway reference
func (l *Ledger) FindByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return findByReference(l.db.WithContext(ctx), reference)
}

func findByReference(db *gorm.DB, reference string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := db.Where("reference = ?", reference).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	return &t, nil
}

// WalletOwner returns the user that owns walletID
func (l *Ledger) WalletOwner(ctx context.Context, walletID uint) (uint, error) {
	var wallet domain.Wallet
	if err := l.db.WithContext(ctx).Select("user_id").First(&wallet, walletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrWalletNotFound
		}
		return 0, fmt.Errorf("load wallet owner: %w", err)
	}
	return wallet.UserID, nil
}

// SettleDeposit moves a PENDING deposit to its terminal status and, on success,
// credits the wallet in the same database transaction. A reference that is no
// longer PENDING is left untouched and reported with ErrAlreadySettled together
// with its current row.
func (l *Ledger) SettleDeposit(ctx context.Context, reference string, outcome Outcome) (*domain.Transaction, error) {
	if !domain.StatusPending.CanTransitionTo(outcome.Status) {
		return nil, fmt.Errorf("settle %s: invalid target status %q", reference, outcome.Status)
	}
	var settled *domain.Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()
		// Conditional update: only the first settler sees RowsAffected == 1
		res := tx.Model(&domain.Transaction{}).
			Where("reference = ? AND status = ?", reference, domain.StatusPending).
			Updates(map[string]any{
				"status":           outcome.Status,
				"provider_payload": outcome.Payload,
				"failure_reason":   outcome.FailureReason,
				"processed_at":     now,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		t, err := findByReference(tx, reference)
		if err != nil {
			return err
		}
		settled = t
		if res.RowsAffected == 0 {
			return domain.ErrAlreadySettled
		}
		if outcome.Status == domain.StatusSuccess {
			return adjustBalance(tx, t.WalletID, t.Amount, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			return settled, err
		}
		return nil, err
	}
	return settled, nil
}

// Pay debits the wallet for a storefront checkout. Replaying the same reference
// returns the original transaction without debiting again.
func (l *Ledger) Pay(ctx context.Context, userID uint, reference string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	var paid domain.Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet domain.Wallet
		if err := tx.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWalletNotFound
			}
			return err
		}
		if existing, err := findByReference(tx, reference); err == nil {
			if existing.WalletID != wallet.ID || existing.Type != domain.TypePayment || existing.Amount != amount {
				return domain.ErrReferenceConflict
			}
			paid = *existing
			return domain.ErrAlreadySettled
		} else if !errors.Is(err, domain.ErrTransactionNotFound) {
			return err
		}
		now := l.now()
		paid = domain.Transaction{
			WalletID:    wallet.ID,
			Reference:   reference,
			Type:        domain.TypePayment,
			Status:      domain.StatusSuccess,
			Amount:      amount,
			Currency:    wallet.Currency,
			Provider:    "wallet",
			ProcessedAt: &now,
		}
		if err := tx.Create(&paid).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrReferenceConflict
			}
			return err
		}
		return adjustBalance(tx, wallet.ID, -amount, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			return &paid, err
		}
		return nil, err
	}
	return &paid, nil
}

// adjustBalance applies delta with an atomic increment. The WHERE clause is the
// non-negative precondition; when it rejects the row the whole transaction rolls back.
func adjustBalance(tx *gorm.DB, walletID uint, delta int64, now time.Time) error {
	res := tx.Model(&domain.Wallet{}).
		Where("id = ? AND is_active = ? AND balance + ? >= 0", walletID, true, delta).
		Updates(map[string]any{
			"balance":          gorm.Expr("balance + ?", delta),
			"last_activity_at": now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var wallet domain.Wallet
	if err := tx.First(&wallet, walletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrWalletNotFound
		}
		return err
	}
	if !wallet.IsActive {
		return domain.ErrWalletInactive
	}
	return domain.ErrInsufficientFunds
}
