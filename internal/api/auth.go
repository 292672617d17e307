package api

import (
	"net/http" // HTTP status codes

	"storefront_wallet/internal/ledger"     // Refresh token storage
	"storefront_wallet/internal/middleware" // Authenticated user

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// LogoutHandler revokes every refresh token of the user. Access tokens expire on their own.
func LogoutHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		n, err := l.DeleteRefreshTokens(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": userID, "revoked": n}).Info("User logged out")
		c.JSON(http.StatusOK, gin.H{"message": "Logged out", "revoked": n})
	}
}
