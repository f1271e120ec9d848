package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
)

// AnnouncementFrontHandler serves announcements to resellers.
type AnnouncementFrontHandler struct {
	db *gorm.DB
}

// NewAnnouncementFrontHandler constructs an AnnouncementFrontHandler.
func NewAnnouncementFrontHandler(db *gorm.DB) *AnnouncementFrontHandler {
	return &AnnouncementFrontHandler{db: db}
}

// List returns recent announcements, newest first.
func (h *AnnouncementFrontHandler) List(c *gin.Context) {
	var rows []models.Announcement
	if errFind := h.db.WithContext(c.Request.Context()).Order("created_at DESC").Limit(50).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list announcements failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"title":      row.Title,
			"message":    row.Message,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"announcements": out})
}
