// Package payment talks to the hosted-checkout payment gateways. Every provider
// is reduced to the same two calls: start a checkout for a reference, and ask
// what happened to a reference.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront_wallet/internal/config"
)

// Status is the gateway's verdict on a reference
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending" // still in flight, ask again later
)

// InitRequest starts a hosted checkout
type InitRequest struct {
	Reference   string
	Email       string
	Amount      int64 // minor units
	Currency    string
	CallbackURL string
}

// Checkout is where the customer must be sent to pay
type Checkout struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// Verification is the normalised result of a status query
type Verification struct {
	Reference       string
	Status          Status
	Amount          int64 // minor units
	Currency        string
	GatewayResponse string
	Raw             json.RawMessage
}

// Gateway is implemented by every payment provider
type Gateway interface {
	Name() string
	Initialize(ctx context.Context, req InitRequest) (*Checkout, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// UpstreamError reports a gateway that was unreachable or answered with something unusable
type UpstreamError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// New builds the gateway selected by PAYMENT_PROVIDER
func New(cfg *config.Config) (Gateway, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	switch cfg.PaymentProvider {
	case "paystack":
		return NewPaystack(cfg.PaystackBaseURL, cfg.PaystackSecretKey, httpClient), nil
	case "opay":
		return NewOPay(cfg.OPayBaseURL, cfg.OPayMerchantID, cfg.OPayPublicKey, cfg.OPaySecretKey, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}
