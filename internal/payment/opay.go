package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// OPay is a client for the OPay cashier API
type OPay struct {
	BaseURL    string
	MerchantID string
	PublicKey  string
	SecretKey  string
	HTTPClient *http.Client
}

// NewOPay creates a new OPay client
func NewOPay(baseURL, merchantID, publicKey, secretKey string, httpClient *http.Client) *OPay {
	return &OPay{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		MerchantID: merchantID,
		PublicKey:  publicKey,
		SecretKey:  secretKey,
		HTTPClient: httpClient,
	}
}

// Name identifies the provider on stored transactions
func (o *OPay) Name() string { return "opay" }

type opayEnvelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type opayAmount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type opayCreateData struct {
	Reference  string `json:"reference"`
	CashierURL string `json:"cashierUrl"`
}

type opayStatusData struct {
	Reference     string     `json:"reference"`
	Status        string     `json:"status"`
	Amount        opayAmount `json:"amount"`
	FailureReason string     `json:"failureReason"`
}

// Initialize creates a cashier session; OPay authenticates it with the public key
func (o *OPay) Initialize(ctx context.Context, req InitRequest) (*Checkout, error) {
	body := map[string]any{
		"country":     "NG",
		"reference":   req.Reference,
		"amount":      opayAmount{Total: req.Amount, Currency: req.Currency},
		"returnUrl":   req.CallbackURL,
		"callbackUrl": req.CallbackURL,
		"userInfo":    map[string]string{"userEmail": req.Email},
		"product":     map[string]string{"name": "Wallet top-up", "description": "Wallet top-up " + req.Reference},
	}
	var data opayCreateData
	if _, err := o.do(ctx, "initialize", "/api/v1/international/cashier/create", body, "Bearer "+o.PublicKey, &data); err != nil {
		return nil, err
	}
	if data.CashierURL == "" {
		return nil, &UpstreamError{Provider: o.Name(), Op: "initialize", Message: "missing cashierUrl"}
	}
	return &Checkout{Reference: req.Reference, AuthorizationURL: data.CashierURL}, nil
}

// Verify queries the cashier status; OPay authenticates it with an HMAC-SHA512 of the body
func (o *OPay) Verify(ctx context.Context, reference string) (*Verification, error) {
	body, err := json.Marshal(map[string]string{"country": "NG", "reference": reference})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}
	var data opayStatusData
	raw, err := o.do(ctx, "verify", "/api/v1/international/cashier/status", json.RawMessage(body), "Bearer "+o.sign(body), &data)
	if err != nil {
		return nil, err
	}
	if data.Reference == "" || data.Status == "" {
		return nil, &UpstreamError{Provider: o.Name(), Op: "verify", Message: "incomplete verification data"}
	}
	return &Verification{
		Reference:       data.Reference,
		Status:          opayStatus(data.Status),
		Amount:          data.Amount.Total,
		Currency:        strings.ToUpper(data.Amount.Currency),
		GatewayResponse: data.FailureReason,
		Raw:             raw,
	}, nil
}

func opayStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "SUCCESS":
		return StatusSuccess
	case "FAIL", "CLOSE":
		return StatusFailed
	default: // INITIAL, PENDING
		return StatusPending
	}
}

func (o *OPay) sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(o.SecretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (o *OPay) do(ctx context.Context, op, path string, payload any, auth string, dest any) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	req.Header.Set("MerchantId", o.MerchantID)

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: o.Name(), Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UpstreamError{Provider: o.Name(), Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	var env opayEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		logrus.WithFields(logrus.Fields{"provider": o.Name(), "op": op, "status": resp.StatusCode}).Warn("undecodable gateway response")
		return nil, &UpstreamError{Provider: o.Name(), Op: op, StatusCode: resp.StatusCode, Message: "undecodable response"}
	}
	// "00000" is OPay's only success code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Code != "00000" {
		logrus.WithFields(logrus.Fields{"provider": o.Name(), "op": op, "status": resp.StatusCode, "code": env.Code, "message": env.Message}).Warn("gateway rejected request")
		return nil, &UpstreamError{Provider: o.Name(), Op: op, StatusCode: resp.StatusCode, Message: env.Code + " " + env.Message}
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return nil, &UpstreamError{Provider: o.Name(), Op: op, StatusCode: resp.StatusCode, Message: "malformed data", Err: err}
	}
	return env.Data, nil
}
