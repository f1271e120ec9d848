package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
)

// ProfileHandler serves the authenticated reseller's own data.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Get returns the reseller's profile and current balance.
func (h *ProfileHandler) Get(c *gin.Context) {
	resellerID := getResellerID(c)
	if resellerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var reseller models.Reseller
	if errFind := h.db.WithContext(c.Request.Context()).First(&reseller, resellerID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var keyCount int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Key{}).
		Where("reseller_id = ?", resellerID).
		Count(&keyCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         reseller.ID,
		"username":   reseller.Username,
		"credits":    reseller.Credits,
		"rate_limit": reseller.RateLimit,
		"keys":       keyCount,
		"created_at": reseller.CreatedAt,
	})
}

// Journal returns the reseller's own credit journal, newest first.
func (h *ProfileHandler) Journal(c *gin.Context) {
	resellerID := getResellerID(c)
	if resellerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.CreditEntry
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("reseller_id = ?", resellerID).
		Order("id DESC").
		Limit(200).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list journal failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":            row.ID,
			"kind":          row.Kind,
			"amount":        row.Amount,
			"balance_after": row.BalanceAfter,
			"ref_id":        row.RefID,
			"note":          row.Note,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}
