// Package client serves the unauthenticated endpoint game clients call to
// verify a license key and bind their device.
package client

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/keys"
	"github.com/keymint-app/keymint/internal/ratelimit"
	"gorm.io/gorm"
)

// RegisterClientRoutes registers the client verification route.
func RegisterClientRoutes(r *gin.Engine, db *gorm.DB, limiter *ratelimit.Manager) {
	if r == nil || db == nil {
		return
	}
	handler := NewVerifyHandler(db, limiter)
	r.POST("/v0/client/verify", handler.Verify)
}

// VerifyHandler handles license verification from game clients.
type VerifyHandler struct {
	verifier *keys.Verifier
	limiter  *ratelimit.Manager
}

// NewVerifyHandler constructs a VerifyHandler.
func NewVerifyHandler(db *gorm.DB, limiter *ratelimit.Manager) *VerifyHandler {
	return &VerifyHandler{verifier: keys.NewVerifier(db), limiter: limiter}
}

// verifyRequest defines the request body for license verification.
type verifyRequest struct {
	Key      string `json:"key"`
	DeviceID string `json:"device_id"`
}

// Verify checks the key and binds the calling device. Responses carry a
// stable reason string clients switch on.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var body verifyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "BadRequest"})
		return
	}
	keyString := strings.TrimSpace(body.Key)
	deviceID := strings.TrimSpace(body.DeviceID)
	if keyString == "" || deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "BadRequest"})
		return
	}

	if h.limiter != nil {
		limit := ratelimit.ResolveVerifyLimit()
		result, errAllow := h.limiter.Allow(c.Request.Context(), ratelimit.KeyForDevice(deviceID), limit)
		if errAllow == nil && !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "reason": "RateLimited"})
			return
		}
	}

	result, errVerify := h.verifier.Verify(c.Request.Context(), keyString, deviceID)
	if errVerify != nil {
		switch {
		case errors.Is(errVerify, keys.ErrKeyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "reason": "KeyNotFound"})
		case errors.Is(errVerify, keys.ErrKeyRevoked):
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "reason": "KeyRevoked"})
		case errors.Is(errVerify, keys.ErrKeyExpired):
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "reason": "KeyExpired"})
		case errors.Is(errVerify, keys.ErrDeviceLimitExceeded):
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "reason": "DeviceLimitExceeded"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "reason": "Internal"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"game":            result.Key.Game,
		"expires_at":      result.Key.ExpiresAt,
		"slots_remaining": result.SlotsRemaining,
		"already_bound":   result.AlreadyBound,
	})
}
