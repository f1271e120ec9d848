package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	dbutil "github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/keys"
	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
)

// KeyHandler manages license key endpoints for admins.
type KeyHandler struct {
	db      *gorm.DB
	revoker *keys.Revoker
}

// NewKeyHandler constructs a KeyHandler.
func NewKeyHandler(db *gorm.DB, revoker *keys.Revoker) *KeyHandler {
	return &KeyHandler{db: db, revoker: revoker}
}

// List returns keys with optional filters.
func (h *KeyHandler) List(c *gin.Context) {
	var (
		keyQ      = strings.TrimSpace(c.Query("key"))
		gameQ     = strings.TrimSpace(c.Query("game"))
		resellerQ = strings.TrimSpace(c.Query("reseller_id"))
		batchQ    = strings.TrimSpace(c.Query("batch_id"))
		revokedQ  = strings.TrimSpace(c.Query("revoked"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Key{})
	if keyQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+keyQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "key_string"), pattern)
	}
	if gameQ != "" {
		q = q.Where("game = ?", gameQ)
	}
	if resellerQ != "" {
		if id, errParse := strconv.ParseUint(resellerQ, 10, 64); errParse == nil {
			q = q.Where("reseller_id = ?", id)
		}
	}
	if batchQ != "" {
		q = q.Where("batch_id = ?", batchQ)
	}
	switch revokedQ {
	case "true", "1":
		q = q.Where("revoked = ?", true)
	case "false", "0":
		q = q.Where("revoked = ?", false)
	}

	var rows []models.Key
	if errFind := q.Order("created_at DESC").Limit(500).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list keys failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatKey(&row))
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// Get returns a key with its bound devices.
func (h *KeyHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var key models.Key
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Devices").First(&key, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	devices := make([]gin.H, 0, len(key.Devices))
	for _, device := range key.Devices {
		devices = append(devices, gin.H{
			"device_id": device.DeviceID,
			"bound_at":  device.BoundAt,
		})
	}
	payload := formatKey(&key)
	payload["devices"] = devices
	c.JSON(http.StatusOK, payload)
}

// Revoke permanently invalidates a key.
func (h *KeyHandler) Revoke(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	revoked, errRevoke := h.revoker.Revoke(c.Request.Context(), id, keys.AdminActor{AdminID: GetAdminID(c)})
	if errRevoke != nil {
		if errors.Is(errRevoke, keys.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
		return
	}
	c.JSON(http.StatusOK, formatKey(&revoked))
}

// formatKey formats a key row into response JSON.
func formatKey(key *models.Key) gin.H {
	return gin.H{
		"id":           key.ID,
		"key":          key.KeyString,
		"game":         key.Game,
		"device_limit": key.DeviceLimit,
		"expires_at":   key.ExpiresAt,
		"credit_cost":  key.CreditCost,
		"revoked":      key.Revoked,
		"revoked_at":   key.RevokedAt,
		"reseller_id":  key.ResellerID,
		"batch_id":     key.BatchID,
		"created_at":   key.CreatedAt,
	}
}
