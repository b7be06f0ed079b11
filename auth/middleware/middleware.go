package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adil/docexchange-backend/auth"
	"github.com/adil/docexchange-backend/initializers"
	"github.com/adil/docexchange-backend/models"
)

const currentUserKey = "currentUser"

// AuthRequired validates the bearer token and loads the user row for
// every request. Role and verification status always come from the
// database, so a stale or tampered claim can never elevate a caller.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := auth.ValidateToken(parts[1], auth.TypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		var user models.User
		if err := initializers.DB.First(&user, "id = ?", userID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(currentUserKey, &user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by AuthRequired. Calling it from
// an unprotected handler is a programming error.
func CurrentUser(c *gin.Context) *models.User {
	return c.MustGet(currentUserKey).(*models.User)
}
