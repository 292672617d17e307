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
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Paystack is a client for the Paystack transaction API
type Paystack struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewPaystack creates a new Paystack client
func NewPaystack(baseURL, secretKey string, httpClient *http.Client) *Paystack {
	return &Paystack{BaseURL: strings.TrimRight(baseURL, "/"), SecretKey: secretKey, HTTPClient: httpClient}
}

// Name identifies the provider on stored transactions
func (p *Paystack) Name() string { return "paystack" }

// paystackEnvelope is the wrapper every Paystack response uses
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

// Initialize starts a hosted checkout
func (p *Paystack) Initialize(ctx context.Context, req InitRequest) (*Checkout, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    req.Amount,
		"currency":  req.Currency,
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	var data paystackInitData
	if _, err := p.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	if data.AuthorizationURL == "" {
		return nil, &UpstreamError{Provider: p.Name(), Op: "initialize", Message: "missing authorization_url"}
	}
	return &Checkout{Reference: req.Reference, AuthorizationURL: data.AuthorizationURL}, nil
}

// Verify asks Paystack for the outcome of a reference
func (p *Paystack) Verify(ctx context.Context, reference string) (*Verification, error) {
	var data paystackVerifyData
	raw, err := p.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data)
	if err != nil {
		return nil, err
	}
	if data.Reference == "" || data.Status == "" {
		return nil, &UpstreamError{Provider: p.Name(), Op: "verify", Message: "incomplete verification data"}
	}
	return &Verification{
		Reference:       data.Reference,
		Status:          paystackStatus(data.Status),
		Amount:          data.Amount,
		Currency:        strings.ToUpper(data.Currency),
		GatewayResponse: data.GatewayResponse,
		Raw:             raw,
	}, nil
}

func paystackStatus(s string) Status {
	switch strings.ToLower(s) {
	case "success":
		return StatusSuccess
	case "failed", "abandoned", "reversed":
		return StatusFailed
	default: // ongoing, pending, processing, queued
		return StatusPending
	}
}

// ValidWebhookSignature checks the x-paystack-signature header against the raw body
func (p *Paystack) ValidWebhookSignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(p.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// do executes a request and decodes the envelope's data into dest, returning the raw data
func (p *Paystack) do(ctx context.Context, op, method, path string, payload any, dest any) (json.RawMessage, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	var env paystackEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		logrus.WithFields(logrus.Fields{"provider": p.Name(), "op": op, "status": resp.StatusCode}).Warn("undecodable gateway response")
		return nil, &UpstreamError{Provider: p.Name(), Op: op, StatusCode: resp.StatusCode, Message: "undecodable response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		logrus.WithFields(logrus.Fields{"provider": p.Name(), "op": op, "status": resp.StatusCode, "message": env.Message}).Warn("gateway rejected request")
		return nil, &UpstreamError{Provider: p.Name(), Op: op, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: op, StatusCode: resp.StatusCode, Message: "malformed data", Err: err}
	}
	return env.Data, nil
}
