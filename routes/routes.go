package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adil/docexchange-backend/auth/Oauth"
	"github.com/adil/docexchange-backend/auth/middleware"
	"github.com/adil/docexchange-backend/handlers"
)

func RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/api/auth")
	authGroup.POST("/signup", handlers.Signup)
	authGroup.GET("/verify-email", handlers.VerifyEmail)
	authGroup.POST("/login", handlers.Login)
	authGroup.POST("/refresh", handlers.Refresh)
	authGroup.GET("/:provider", Oauth.BeginAuth)
	authGroup.GET("/:provider/callback", Oauth.CompleteAuth)

	// Redemption is anonymous: the token is the credential.
	r.GET("/api/secure-download/:token", handlers.SecureDownload)

	fileGroup := r.Group("/api/files")
	fileGroup.Use(middleware.AuthRequired())
	fileGroup.POST("/upload", handlers.UploadFile)
	fileGroup.GET("", handlers.ListFiles)
	fileGroup.GET("/:id/download", handlers.RequestDownloadLink)

	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.AuthRequired())
	adminGroup.POST("/cleanup", handlers.CleanupTokens)
}
