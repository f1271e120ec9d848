package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/keys"
	"github.com/keymint-app/keymint/internal/ledger"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"github.com/keymint-app/keymint/internal/ratelimit"
	internalsettings "github.com/keymint-app/keymint/internal/settings"
	"github.com/keymint-app/keymint/internal/voucher"
	"gorm.io/gorm"
)

// KeyFrontHandler manages a reseller's own license keys.
type KeyFrontHandler struct {
	db        *gorm.DB
	generator *keys.Generator
	revoker   *keys.Revoker
	limiter   *ratelimit.Manager
}

// NewKeyFrontHandler constructs a KeyFrontHandler.
func NewKeyFrontHandler(db *gorm.DB, bus *push.Bus, limiter *ratelimit.Manager) *KeyFrontHandler {
	return &KeyFrontHandler{
		db:        db,
		generator: keys.NewGenerator(db, bus),
		revoker:   keys.NewRevoker(db, bus),
		limiter:   limiter,
	}
}

// generateKeysRequest defines the request body for key generation.
type generateKeysRequest struct {
	Game        string `json:"game"`
	DeviceLimit int    `json:"device_limit"`
	Days        int    `json:"days"`
	Count       int    `json:"count"`
	CustomKey   string `json:"custom_key"`
}

// Generate creates a key batch, debiting the reseller's balance.
func (h *KeyFrontHandler) Generate(c *gin.Context) {
	resellerID := getResellerID(c)
	if resellerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if h.limiter != nil {
		limit, errLimit := ratelimit.ResolveGenerateLimit(c.Request.Context(), h.db, resellerID)
		if errLimit != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit resolve failed"})
			return
		}
		result, errAllow := h.limiter.Allow(c.Request.Context(), ratelimit.KeyForReseller(resellerID), limit)
		if errAllow == nil && !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
	}

	var body generateKeysRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	created, errGenerate := h.generator.Generate(c.Request.Context(), keys.GenerateParams{
		ResellerID:  resellerID,
		Game:        models.Game(strings.TrimSpace(body.Game)),
		DeviceLimit: body.DeviceLimit,
		Days:        body.Days,
		Count:       body.Count,
		CustomKey:   strings.TrimSpace(body.CustomKey),
	})
	if errGenerate != nil {
		switch {
		case errors.Is(errGenerate, keys.ErrInvalidTier):
			c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidTier"})
		case errors.Is(errGenerate, keys.ErrInvalidCount),
			errors.Is(errGenerate, keys.ErrInvalidDeviceLimit),
			errors.Is(errGenerate, keys.ErrInvalidGame):
			c.JSON(http.StatusBadRequest, gin.H{"error": errGenerate.Error()})
		case errors.Is(errGenerate, keys.ErrDuplicateKey):
			c.JSON(http.StatusConflict, gin.H{"error": "DuplicateKey"})
		case errors.Is(errGenerate, ledger.ErrInsufficientCredit):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "InsufficientCredit"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate failed"})
		}
		return
	}

	out := make([]gin.H, 0, len(created))
	for _, key := range created {
		out = append(out, formatFrontKey(&key))
	}
	c.JSON(http.StatusCreated, gin.H{"keys": out, "batch_id": created[0].BatchID})
}

// List returns the reseller's own keys with optional filters.
func (h *KeyFrontHandler) List(c *gin.Context) {
	resellerID := getResellerID(c)
	if resellerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Key{}).
		Where("reseller_id = ?", resellerID)
	if gameQ := strings.TrimSpace(c.Query("game")); gameQ != "" {
		q = q.Where("game = ?", gameQ)
	}
	if batchQ := strings.TrimSpace(c.Query("batch_id")); batchQ != "" {
		q = q.Where("batch_id = ?", batchQ)
	}

	var rows []models.Key
	if errFind := q.Order("created_at DESC").Limit(500).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list keys failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatFrontKey(&row))
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// Get returns one of the reseller's keys with its bound devices.
func (h *KeyFrontHandler) Get(c *gin.Context) {
	resellerID := getResellerID(c)
	if resellerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var key models.Key
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Devices").
		Where("id = ? AND reseller_id = ?", id, resellerID).
		First(&key).Error; errFind != nil {
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
	payload := formatFrontKey(&key)
	payload["devices"] = devices
	c.JSON(http.StatusOK, payload)
}

// Revoke invalidates one of the reseller's own keys.
func (h *KeyFrontHandler) Revoke(c *gin.Context) {
	resellerID := getResellerID(c)
	if resellerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	revoked, errRevoke := h.revoker.Revoke(c.Request.Context(), id, keys.ResellerActor{ResellerID: resellerID})
	if errRevoke != nil {
		switch {
		case errors.Is(errRevoke, keys.ErrKeyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errRevoke, keys.ErrNotAuthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "NotAuthorized"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
		}
		return
	}
	c.JSON(http.StatusOK, formatFrontKey(&revoked))
}

// Export renders a batch of the reseller's keys as printable PDF vouchers.
func (h *KeyFrontHandler) Export(c *gin.Context) {
	resellerID := getResellerID(c)
	if resellerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	batchID := strings.TrimSpace(c.Query("batch_id"))
	if batchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_id is required"})
		return
	}

	var rows []models.Key
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("reseller_id = ? AND batch_id = ?", resellerID, batchID).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	pdf, errRender := voucher.GeneratePDF(internalsettings.SiteName(), rows)
	if errRender != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render pdf failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="keys-`+batchID+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// formatFrontKey formats a key row into response JSON.
func formatFrontKey(key *models.Key) gin.H {
	return gin.H{
		"id":           key.ID,
		"key":          key.KeyString,
		"game":         key.Game,
		"device_limit": key.DeviceLimit,
		"expires_at":   key.ExpiresAt,
		"credit_cost":  key.CreditCost,
		"revoked":      key.Revoked,
		"batch_id":     key.BatchID,
		"created_at":   key.CreatedAt,
	}
}
