package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes

	"storefront_wallet/internal/domain"  // Domain errors
	"storefront_wallet/internal/payment" // Upstream errors
	"storefront_wallet/internal/utils"   // Money errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// errorStatus maps a domain error to its HTTP status and public message
func errorStatus(err error) (int, string) {
	var upstream *payment.UpstreamError
	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound, "Wallet not found"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, domain.ErrWalletExists):
		return http.StatusConflict, "Wallet already exists"
	case errors.Is(err, domain.ErrReferenceConflict):
		return http.StatusConflict, "Reference already used"
	case errors.Is(err, domain.ErrSettlementInProgress):
		return http.StatusConflict, "Settlement already in progress"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest, "Insufficient funds"
	case errors.Is(err, domain.ErrWalletInactive):
		return http.StatusBadRequest, "Wallet is inactive"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, utils.ErrAmountPrecision),
		errors.Is(err, utils.ErrAmountRange):
		return http.StatusBadRequest, "Invalid amount"
	case errors.Is(err, domain.ErrPinNotSet):
		return http.StatusBadRequest, "Wallet PIN not set"
	case errors.Is(err, domain.ErrInvalidPin):
		return http.StatusUnauthorized, "Invalid PIN"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, "Payment provider unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError writes err as JSON. Detail is only exposed outside release mode.
func respondError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	body := gin.H{"error": msg}
	if status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": status,
			"error":  err.Error(),
		}).Error("Request failed")
		if gin.Mode() != gin.ReleaseMode {
			body["detail"] = err.Error()
		}
	}
	c.JSON(status, body)
}

// badRequest writes a validation error
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
