package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
)

// OverviewHandler aggregates headline numbers for the admin dashboard.
type OverviewHandler struct {
	db *gorm.DB
}

// NewOverviewHandler constructs an OverviewHandler.
func NewOverviewHandler(db *gorm.DB) *OverviewHandler {
	return &OverviewHandler{db: db}
}

// Overview returns counts of resellers, keys, devices, and tokens.
func (h *OverviewHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	var resellers, activeResellers int64
	if errCount := h.db.WithContext(ctx).Model(&models.Reseller{}).Count(&resellers).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.Reseller{}).Where("active = ?", true).Count(&activeResellers).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview failed"})
		return
	}

	var totalKeys, liveKeys, revokedKeys int64
	if errCount := h.db.WithContext(ctx).Model(&models.Key{}).Count(&totalKeys).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.Key{}).
		Where("revoked = ? AND expires_at > ?", false, now).
		Count(&liveKeys).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.Key{}).Where("revoked = ?", true).Count(&revokedKeys).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview failed"})
		return
	}

	var devices int64
	if errCount := h.db.WithContext(ctx).Model(&models.Device{}).Count(&devices).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview failed"})
		return
	}

	var openTokens int64
	if errCount := h.db.WithContext(ctx).Model(&models.Token{}).Where("consumed = ?", false).Count(&openTokens).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resellers":        resellers,
		"active_resellers": activeResellers,
		"keys":             totalKeys,
		"live_keys":        liveKeys,
		"revoked_keys":     revokedKeys,
		"bound_devices":    devices,
		"open_tokens":      openTokens,
	})
}
