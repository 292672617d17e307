package domain

import "time" // Time for timestamps

// Wallet Model
type Wallet struct {
	ID             uint       `gorm:"primaryKey" json:"id"`                        // Primary key
	UserID         uint       `gorm:"uniqueIndex" json:"user_id"`                  // Foreign key to User
	Balance        int64      `gorm:"not null;default:0" json:"balance"`           // Balance in minor units (kobo)
	Currency       string     `gorm:"size:3;not null;default:NGN" json:"currency"` // ISO currency code
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`      // Inactive wallets cannot move money
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`                  // Last balance change
	PinHash        string     `gorm:"size:100" json:"-"`                           // bcrypt hash of the optional PIN
	CreatedAt      time.Time  `json:"created_at"`                                  // Row creation time
	UpdatedAt      time.Time  `json:"updated_at"`                                  // Row update time
}

// HasPin reports whether a PIN has been set on the wallet
func (w Wallet) HasPin() bool {
	return w.PinHash != ""
}
