package ledger

import (
	"context"
	"fmt"
	"time"

	"storefront_wallet/internal/domain"

	"gorm.io/gorm"
)

// Page is one slice of a larger ordered result
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// History returns the user's transactions most recent first. Offset skips exactly
// that many rows; at most limit rows are returned.
func (l *Ledger) History(ctx context.Context, userID uint, limit, offset int) (Page[domain.Transaction], error) {
	wallet, err := l.GetWallet(ctx, userID)
	if err != nil {
		return Page[domain.Transaction]{}, err
	}
	query := l.db.WithContext(ctx).Model(&domain.Transaction{}).Where("wallet_id = ?", wallet.ID).Session(&gorm.Session{})
	var page Page[domain.Transaction]
	if err := query.Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("count transactions: %w", err)
	}
	page.Items = make([]domain.Transaction, 0, limit)
	// id breaks ties between rows created in the same instant
	if err := query.Order("created_at desc").Order("id desc").Offset(offset).Limit(limit).Find(&page.Items).Error; err != nil {
		return page, fmt.Errorf("fetch transactions: %w", err)
	}
	return page, nil
}

// ListPendingDeposits returns deposits still PENDING that were created before cutoff,
// least recently attempted first
func (l *Ledger) ListPendingDeposits(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := l.db.WithContext(ctx).
		Where("type = ? AND status = ? AND created_at < ?", domain.TypeDeposit, domain.StatusPending, cutoff).
		Order("updated_at asc").
		Order("id asc").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list pending deposits: %w", err)
	}
	return txs, nil
}

// TouchPendingDeposit records an unfinished settle attempt so the deposit moves to the back of the queue
func (l *Ledger) TouchPendingDeposit(ctx context.Context, reference string, at time.Time) error {
	err := l.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("reference = ? AND status = ?", reference, domain.StatusPending).
		UpdateColumn("updated_at", at).Error
	if err != nil {
		return fmt.Errorf("touch pending deposit: %w", err)
	}
	return nil
}

// TransactionFilter narrows the admin transaction listing
type TransactionFilter struct {
	Status    string
	Type      string
	Reference string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// ListTransactions returns every wallet transaction matching filter, most recent first
func (l *Ledger) ListTransactions(ctx context.Context, f TransactionFilter) (Page[domain.Transaction], error) {
	query := l.db.WithContext(ctx).Model(&domain.Transaction{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Reference != "" {
		query = query.Where("reference = ?", f.Reference)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}
	query = query.Session(&gorm.Session{}) // Reused for count and fetch
	var page Page[domain.Transaction]
	if err := query.Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("count transactions: %w", err)
	}
	page.Items = make([]domain.Transaction, 0, f.Limit)
	if err := query.Order("created_at desc").Order("id desc").Offset(f.Offset).Limit(f.Limit).Find(&page.Items).Error; err != nil {
		return page, fmt.Errorf("fetch transactions: %w", err)
	}
	return page, nil
}

// ListWallets returns wallets ordered by id
func (l *Ledger) ListWallets(ctx context.Context, limit, offset int) (Page[domain.Wallet], error) {
	var page Page[domain.Wallet]
	query := l.db.WithContext(ctx).Model(&domain.Wallet{}).Session(&gorm.Session{})
	if err := query.Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("count wallets: %w", err)
	}
	page.Items = make([]domain.Wallet, 0, limit)
	if err := query.Order("id asc").Offset(offset).Limit(limit).Find(&page.Items).Error; err != nil {
		return page, fmt.Errorf("fetch wallets: %w", err)
	}
	return page, nil
}

// UserRole returns the role stored for userID, or "" when the user is unknown
func (l *Ledger) UserRole(ctx context.Context, userID uint) (string, error) {
	var user domain.User
	err := l.db.WithContext(ctx).Select("role").Where("id = ?", userID).Limit(1).Find(&user).Error
	if err != nil {
		return "", fmt.Errorf("load user role: %w", err)
	}
	return user.Role, nil
}

// UserEmail returns the email stored for userID
func (l *Ledger) UserEmail(ctx context.Context, userID uint) (string, error) {
	var user domain.User
	err := l.db.WithContext(ctx).Select("email").Where("id = ?", userID).Limit(1).Find(&user).Error
	if err != nil {
		return "", fmt.Errorf("load user email: %w", err)
	}
	return user.Email, nil
}

// DeleteRefreshTokens removes every refresh token of a user (logout)
func (l *Ledger) DeleteRefreshTokens(ctx context.Context, userID uint) (int64, error) {
	res := l.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

// DeleteExpiredRefreshTokens removes tokens that expired before now
func (l *Ledger) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res := l.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

// Ping checks the database connection
func (l *Ledger) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
