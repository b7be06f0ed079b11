package Oauth

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/github"
	"github.com/markbates/goth/providers/google"
	"gorm.io/gorm"

	"github.com/adil/docexchange-backend/auth"
	"github.com/adil/docexchange-backend/initializers"
	"github.com/adil/docexchange-backend/models"
)

// InitStore wires the goth session store and the OAuth providers.
// OAuth sign-in is a client-role path only; the provider has already
// verified the email, so those accounts skip our verification mail.
func InitStore() {
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET is not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   true,
	})
	gothic.Store = store

	goth.UseProviders(
		google.New(
			os.Getenv("GOOGLE_CLIENT_ID"),
			os.Getenv("GOOGLE_CLIENT_SECRET"),
			os.Getenv("GOOGLE_REDIRECT_URL"),
			"email",
			"profile",
		),
		github.New(
			os.Getenv("GITHUB_CLIENT_ID"),
			os.Getenv("GITHUB_CLIENT_SECRET"),
			os.Getenv("GITHUB_REDIRECT_URL"),
			"user:email",
		),
	)
}

// BeginAuth starts the OAuth flow for the provider in the URL path.
func BeginAuth(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Add("provider", c.Param("provider"))
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// CompleteAuth finishes the OAuth flow, finds or creates the client
// user, and hands back the same JWT pair a password login would.
func CompleteAuth(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Add("provider", c.Param("provider"))
	c.Request.URL.RawQuery = q.Encode()

	gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		log.Printf("OAuth error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Authentication failed"})
		return
	}

	user, err := findOrCreateOAuthUser(gothUser)
	if err != nil {
		log.Printf("OAuth user lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process user data"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(user.ID.String())
	if err != nil {
		log.Printf("Token generation error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		HttpOnly: true,
		Secure:   true,
		Path:     "/api/auth/refresh",
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})

	session := sessions.Default(c)
	session.Set("authenticated", true)
	session.Set("user_id", user.ID.String())
	if err := session.Save(); err != nil {
		log.Printf("Session save error: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"role":          user.Role,
		"username":      user.Username,
	})
}

func findOrCreateOAuthUser(gothUser goth.User) (*models.User, error) {
	var user models.User

	var err error
	switch gothUser.Provider {
	case "google":
		err = initializers.DB.Where("google_id = ?", gothUser.UserID).First(&user).Error
	case "github":
		err = initializers.DB.Where("git_hub_id = ?", gothUser.UserID).First(&user).Error
	default:
		return nil, fmt.Errorf("unsupported provider: %s", gothUser.Provider)
	}
	if err == nil {
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("database query error: %v", err)
	}

	// No account for this provider id yet; link by email if one exists.
	err = initializers.DB.Where("email = ?", gothUser.Email).First(&user).Error
	if err == nil {
		return linkOAuthToExistingUser(&user, gothUser)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("database query error: %v", err)
	}

	return createNewOAuthUser(gothUser)
}

func linkOAuthToExistingUser(user *models.User, gothUser goth.User) (*models.User, error) {
	updates := map[string]interface{}{
		"provider":          gothUser.Provider,
		"is_email_verified": true,
	}
	switch gothUser.Provider {
	case "google":
		updates["google_id"] = gothUser.UserID
	case "github":
		updates["git_hub_id"] = gothUser.UserID
	}

	if err := initializers.DB.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to link OAuth account: %v", err)
	}
	return user, nil
}

func createNewOAuthUser(gothUser goth.User) (*models.User, error) {
	username := gothUser.NickName
	if username == "" {
		username = gothUser.Email
	}

	user := models.User{
		Username:        username,
		Email:           gothUser.Email,
		Role:            models.RoleClient,
		IsEmailVerified: true, // the provider verified it
		Provider:        &gothUser.Provider,
	}
	switch gothUser.Provider {
	case "google":
		user.GoogleID = &gothUser.UserID
	case "github":
		user.GitHubID = &gothUser.UserID
	}

	if err := initializers.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %v", err)
	}
	return &user, nil
}
