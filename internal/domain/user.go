package domain

import "time" // Time for timestamps

// User Model
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                                    // Primary key, same as the identity provider's numeric subject
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`              // Email used for gateway receipts
	Role      string    `gorm:"size:16;default:user" json:"role"`                        // Role: user or admin
	Wallet    *Wallet   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"` // One-to-one relationship with Wallet
	CreatedAt time.Time `json:"created_at"`                                              // Row creation time
}

// Roles
const (
	RoleUser  = "user"  // Regular storefront customer
	RoleAdmin = "admin" // Dashboard operator
)
