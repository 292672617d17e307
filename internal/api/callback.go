package api

import (
	"bytes"         // Restoring the request body
	"encoding/json" // Webhook bodies
	"errors"        // Error inspection
	"io"            // Body reads
	"net/http"      // HTTP status codes
	"net/url"       // Redirect query
	"strings"       // Content type checks

	"storefront_wallet/internal/deposit" // Deposit settlement
	"storefront_wallet/internal/domain"  // Domain errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// maxCallbackBody bounds what a callback may send
const maxCallbackBody = 1 << 20

// SignatureVerifier checks a gateway webhook signature over the raw body
type SignatureVerifier interface {
	ValidWebhookSignature(body []byte, signature string) bool
}

// callbackRedirect builds <frontend>/account/wallet?payment=<state>[&reference=<ref>]
func callbackRedirect(frontendURL, state, reference string) string {
	q := url.Values{}
	q.Set("payment", state)
	if reference != "" {
		q.Set("reference", reference)
	}
	return frontendURL + "/account/wallet?" + q.Encode()
}

// callbackReference finds the reference in the query, a form post or a JSON webhook
func callbackReference(c *gin.Context, body []byte) string {
	for _, key := range []string{"reference", "trxref"} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return v
		}
	}
	if len(body) == 0 {
		return ""
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var hook struct {
			Reference string `json:"reference"`
			Data      struct {
				Reference string `json:"reference"`
			} `json:"data"`
		}
		if json.Unmarshal(body, &hook) != nil {
			return ""
		}
		if hook.Data.Reference != "" {
			return strings.TrimSpace(hook.Data.Reference)
		}
		return strings.TrimSpace(hook.Reference)
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return ""
	}
	for _, key := range []string{"reference", "trxref"} {
		if v := strings.TrimSpace(form.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

// CallbackHandler settles a deposit when the gateway sends the customer (or its webhook) back.
// The outcome comes from the gateway's verification, never from the callback itself.
func CallbackHandler(svc *deposit.Service, verifier SignatureVerifier, frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Method == http.MethodPost && c.Request.Body != nil {
			b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
			if err != nil {
				c.Redirect(http.StatusFound, callbackRedirect(frontendURL, "error", ""))
				return
			}
			body = b
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		// A signed webhook body must carry a valid signature
		if sig := c.GetHeader("x-paystack-signature"); sig != "" && len(body) > 0 && verifier != nil && !verifier.ValidWebhookSignature(body, sig) {
			logrus.WithField("ip", c.ClientIP()).Warn("Callback rejected: invalid signature")
			c.Redirect(http.StatusFound, callbackRedirect(frontendURL, "error", ""))
			return
		}

		reference := callbackReference(c, body)
		if reference == "" {
			c.Redirect(http.StatusFound, callbackRedirect(frontendURL, "error", ""))
			return
		}

		res, err := svc.Settle(c.Request.Context(), reference)
		if err != nil {
			fields := logrus.Fields{"reference": reference, "error": err.Error()}
			state, ref := "error", ""
			switch {
			case errors.Is(err, domain.ErrTransactionNotFound):
				logrus.WithFields(fields).Warn("Callback for unknown reference")
			case errors.Is(err, domain.ErrSettlementInProgress):
				// Another delivery is settling it; the customer can check back with the reference
				ref = reference
			default:
				logrus.WithFields(fields).Error("Callback settlement failed")
			}
			c.Redirect(http.StatusFound, callbackRedirect(frontendURL, state, ref))
			return
		}

		switch res.Outcome {
		case deposit.OutcomeSuccess:
			c.Redirect(http.StatusFound, callbackRedirect(frontendURL, "success", reference))
		case deposit.OutcomeFailed:
			c.Redirect(http.StatusFound, callbackRedirect(frontendURL, "failed", reference))
		default:
			// Still pending at the gateway; reconciliation settles it later
			c.Redirect(http.StatusFound, callbackRedirect(frontendURL, "error", reference))
		}
	}
}
