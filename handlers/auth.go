package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/adil/docexchange-backend/auth"
	"github.com/adil/docexchange-backend/initializers"
	"github.com/adil/docexchange-backend/models"
	"github.com/adil/docexchange-backend/token"
)

// Signup registers a client-role user and mails a verification link.
// Operations users are created out of band (see -create-ops-user).
func Signup(c *gin.Context) {
	var body struct {
		Username        string `json:"username" binding:"required"`
		Email           string `json:"email" binding:"required,email"`
		Password        string `json:"password" binding:"required,min=8"`
		ConfirmPassword string `json:"confirm_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if body.Password != body.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords don't match"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	verification := token.Generate()
	user := models.User{
		Username:               body.Username,
		Email:                  body.Email,
		PasswordHash:           string(hash),
		Role:                   models.RoleClient,
		EmailVerificationToken: &verification,
	}
	if err := initializers.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	verificationURL := baseURL + "/api/auth/verify-email?token=" + verification
	if err := mail.SendVerification(user.Email, user.Username, verificationURL); err != nil {
		log.Printf("Email sending failed: %v", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":          "User registered successfully. Please check your email for verification.",
		"verification_url": verificationURL, // For testing purposes
	})
}

func VerifyEmail(c *gin.Context) {
	tok := c.Query("token")
	if tok == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	var user models.User
	if err := initializers.DB.First(&user, "email_verification_token = ?", tok).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		return
	}

	updates := map[string]interface{}{
		"is_email_verified":        true,
		"email_verification_token": nil,
	}
	if err := initializers.DB.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// Login issues the JWT pair for both roles. Client users must have
// verified their email first; the flag is read from their row here,
// on every login.
func Login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Must include username and password"})
		return
	}

	var user models.User
	if err := initializers.DB.First(&user, "username = ?", body.Username).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
		return
	}

	if user.Role == models.RoleClient && !user.IsEmailVerified {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please verify your email before logging in"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(user.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"role":          user.Role,
		"username":      user.Username,
		"message":       "Login successful",
	})
}

func Refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	userID, err := auth.ValidateToken(body.RefreshToken, auth.TypeRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	// The user must still exist; a deleted account cannot refresh.
	var user models.User
	if err := initializers.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(user.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}
