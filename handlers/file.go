package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"
	"gorm.io/gorm"

	"github.com/adil/docexchange-backend/auth/middleware"
	"github.com/adil/docexchange-backend/broker"
	"github.com/adil/docexchange-backend/initializers"
	"github.com/adil/docexchange-backend/models"
	"github.com/adil/docexchange-backend/policy"
)

// Only office documents are accepted, 10MB each.
var allowedExtensions = map[string]bool{
	"pptx": true,
	"docx": true,
	"xlsx": true,
}

const maxUploadSize = 10 << 20

// UploadFile stores a document for an operations user. Name, size and
// type are captured here and never mutated afterwards.
func UploadFile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if !policy.Allowed(user.Role, policy.OpUpload) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only operations users can upload files"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileHeader.Filename), "."))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only .pptx, .docx, and .xlsx files are allowed"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File size cannot exceed 10MB"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer src.Close()

	storageKey := fmt.Sprintf("uploads/%s/%s_%s",
		user.Username, shortuuid.New(), filepath.Base(fileHeader.Filename))

	contentType := broker.ContentTypeFor(ext)
	if err := blobs.Save(c.Request.Context(), storageKey, src, fileHeader.Size, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	newFile := models.File{
		OriginalName: fileHeader.Filename,
		StorageKey:   storageKey,
		FileSize:     fileHeader.Size,
		FileType:     ext,
		UploadedByID: user.ID,
	}
	if err := initializers.DB.Create(&newFile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB save failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "File uploaded successfully",
		"file_id":  newFile.ID,
		"filename": newFile.OriginalName,
	})
}

// ListFiles returns the uploaded documents for client users, newest
// first, with optional type filter, name search and limit/offset
// pagination.
func ListFiles(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if !policy.Allowed(user.Role, policy.OpList) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only client users can list files"})
		return
	}

	q := initializers.DB.Model(&models.File{})
	if fileType := c.Query("file_type"); fileType != "" {
		q = q.Where("file_type = ?", strings.ToLower(fileType))
	}
	if search := c.Query("search"); search != "" {
		q = q.Where("LOWER(original_name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	// Reused for Count and Find, so it needs its own session.
	q = q.Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch files"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	var files []models.File
	if err := q.Preload("UploadedBy").Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&files).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files, "count": count})
}
