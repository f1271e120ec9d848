package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"gorm.io/gorm"
)

// AnnouncementHandler manages admin announcements shown to resellers.
type AnnouncementHandler struct {
	db  *gorm.DB
	bus *push.Bus
}

// NewAnnouncementHandler constructs an AnnouncementHandler.
func NewAnnouncementHandler(db *gorm.DB, bus *push.Bus) *AnnouncementHandler {
	return &AnnouncementHandler{db: db, bus: bus}
}

// createAnnouncementRequest defines the request body for announcements.
type createAnnouncementRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Create stores an announcement and broadcasts it to all open channels.
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var body createAnnouncementRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	message := strings.TrimSpace(body.Message)
	if title == "" || message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and message are required"})
		return
	}

	now := time.Now().UTC()
	announcement := models.Announcement{
		Title:       title,
		Message:     message,
		CreatedByID: GetAdminID(c),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&announcement).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create announcement failed"})
		return
	}

	if h.bus != nil {
		h.bus.Broadcast(push.OnlineUpdatePosted(message))
	}
	c.JSON(http.StatusCreated, h.formatAnnouncement(&announcement))
}

// List returns announcements, newest first.
func (h *AnnouncementHandler) List(c *gin.Context) {
	var rows []models.Announcement
	if errFind := h.db.WithContext(c.Request.Context()).Order("created_at DESC").Limit(100).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list announcements failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatAnnouncement(&row))
	}
	c.JSON(http.StatusOK, gin.H{"announcements": out})
}

// Delete removes an announcement.
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Announcement{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// formatAnnouncement formats an announcement row into response JSON.
func (h *AnnouncementHandler) formatAnnouncement(announcement *models.Announcement) gin.H {
	return gin.H{
		"id":            announcement.ID,
		"title":         announcement.Title,
		"message":       announcement.Message,
		"created_by_id": announcement.CreatedByID,
		"created_at":    announcement.CreatedAt,
	}
}
