package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adil/docexchange-backend/auth/middleware"
	"github.com/adil/docexchange-backend/jobs"
	"github.com/adil/docexchange-backend/models"
)

// CleanupTokens triggers the expiry sweeper on demand. Purging is
// storage hygiene; redemption checks expiry independently, so running
// this at any time is safe.
func CleanupTokens(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleOps {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only operations users can run cleanup"})
		return
	}

	count := jobs.RunCleanup(tokenStore)
	c.JSON(http.StatusOK, gin.H{"purged": count})
}
