package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adil/docexchange-backend/auth/middleware"
	"github.com/adil/docexchange-backend/broker"
	"github.com/adil/docexchange-backend/initializers"
	"github.com/adil/docexchange-backend/models"
)

// RequestDownloadLink mints a one-time download link for the file in
// the URL. With ?qr=1 the response is a QR code PNG of the link
// instead of JSON.
func RequestDownloadLink(c *gin.Context) {
	user := middleware.CurrentUser(c)

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	link, err := downloadBroker.RequestLink(user, fileID)
	switch {
	case errors.Is(err, broker.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only client users can download files"})
		return
	case errors.Is(err, broker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	case err != nil:
		log.Printf("Error minting download link: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create download link"})
		return
	}

	if c.Query("qr") == "1" {
		png, err := link.QRCodePNG(256)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"download_link": link.URL,
		"expires_at":    link.ExpiresAt,
		"message":       "success",
	})
}

// SecureDownload redeems a token and streams the file. No
// authentication: the token is the credential. Expired and
// already-used links get the same 410 so callers cannot tell whether a
// redemption already happened.
func SecureDownload(c *gin.Context) {
	dl, err := downloadBroker.Redeem(c.Request.Context(), c.Param("token"))
	switch {
	case errors.Is(err, broker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid download link"})
		return
	case errors.Is(err, broker.ErrGone):
		c.JSON(http.StatusGone, gin.H{"error": "This download link is no longer valid"})
		return
	case err != nil:
		log.Printf("Error redeeming download token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Download failed"})
		return
	}
	defer dl.Content.Close()

	event := models.DownloadEvent{
		FileID:    dl.FileID,
		Token:     dl.Token,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if err := initializers.DB.Create(&event).Error; err != nil {
		log.Printf("Error recording download event: %v", err)
	}

	c.DataFromReader(http.StatusOK, dl.Size, dl.ContentType, dl.Content, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", dl.Filename),
	})
}
