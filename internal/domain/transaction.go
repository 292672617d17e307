package domain

import (
	"database/sql/driver" // Valuer interface for the payload column
	"encoding/json"       // Raw provider payloads
	"fmt"                 // Error formatting
	"time"                // Time for timestamps
)

// TransactionStatus is the lifecycle state of a ledger entry
type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING" // Waiting for gateway confirmation
	StatusSuccess TransactionStatus = "SUCCESS" // Confirmed, balance applied
	StatusFailed  TransactionStatus = "FAILED"  // Confirmed failure, balance untouched
)

// IsTerminal reports whether no further transition is allowed
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransitionTo allows only PENDING -> SUCCESS and PENDING -> FAILED
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == StatusPending && next.IsTerminal()
}

// TransactionType distinguishes money moving in from money moving out
type TransactionType string

const (
	TypeDeposit TransactionType = "DEPOSIT" // Gateway top-up
	TypePayment TransactionType = "PAYMENT" // Storefront checkout paid from the wallet
)

// Transaction Model
type Transaction struct {
	ID              uint              `gorm:"primaryKey" json:"id"`                                 // Primary key
	WalletID        uint              `gorm:"index;not null" json:"wallet_id"`                      // Owning wallet
	Reference       string            `gorm:"size:100;uniqueIndex;not null" json:"reference"`       // Gateway idempotency key
	Type            TransactionType   `gorm:"size:16;not null" json:"type"`                         // DEPOSIT or PAYMENT
	Status          TransactionStatus `gorm:"size:16;index;not null;default:PENDING" json:"status"` // PENDING, SUCCESS or FAILED
	Amount          int64             `gorm:"not null" json:"amount"`                               // Amount in minor units, always positive
	Currency        string            `gorm:"size:3;not null" json:"currency"`                      // ISO currency code
	Provider        string            `gorm:"size:32" json:"provider"`                              // paystack, opay or wallet
	ProviderPayload Payload           `gorm:"type:json" json:"provider_payload,omitempty"`          // Raw verification payload
	FailureReason   string            `gorm:"size:255" json:"failure_reason,omitempty"`             // Why the transaction failed
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`                               // When it became terminal
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`                              // Row creation time
	UpdatedAt       time.Time         `json:"updated_at"`                                           // Row update time
}

// Payload is an opaque provider JSON document stored as-is
type Payload []byte

// Value stores the payload as text, or NULL when empty
func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return string(p), nil
}

// Scan accepts the text or bytes drivers hand back for a JSON column
func (p *Payload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case []byte:
		*p = append(Payload(nil), v...)
	case string:
		*p = Payload(v)
	default:
		return fmt.Errorf("payload: unsupported scan type %T", src)
	}
	return nil
}

// MarshalJSON embeds the payload verbatim
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(p).MarshalJSON()
}

// UnmarshalJSON keeps a copy of the raw document
func (p *Payload) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}
	*p = append(Payload(nil), data...)
	return nil
}
