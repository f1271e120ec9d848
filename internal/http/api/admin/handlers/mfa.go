package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/security"
	internalsettings "github.com/keymint-app/keymint/internal/settings"
	"gorm.io/gorm"
)

// MFAHandler manages TOTP enrollment for the authenticated admin.
type MFAHandler struct {
	db *gorm.DB
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db}
}

// pendingTOTPSecrets holds secrets generated by Prepare until confirmed.
// A restart drops pending enrollments, which only means re-scanning the QR.
var pendingTOTPSecrets = struct {
	sync.Mutex
	m map[uint64]string
}{m: map[uint64]string{}}

func setPendingTOTPSecret(adminID uint64, secret string) {
	pendingTOTPSecrets.Lock()
	pendingTOTPSecrets.m[adminID] = secret
	pendingTOTPSecrets.Unlock()
}

func takePendingTOTPSecret(adminID uint64) (string, bool) {
	pendingTOTPSecrets.Lock()
	defer pendingTOTPSecrets.Unlock()
	secret, ok := pendingTOTPSecrets.m[adminID]
	return secret, ok
}

func clearPendingTOTPSecret(adminID uint64) {
	pendingTOTPSecrets.Lock()
	delete(pendingTOTPSecrets.m, adminID)
	pendingTOTPSecrets.Unlock()
}

// Status reports whether TOTP is enabled for the current admin.
func (h *MFAHandler) Status(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": admin.TOTPSecret != ""})
}

// PrepareTOTP generates a new secret and provisioning URL for enrollment.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPSecret != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp already enabled"})
		return
	}

	key, errGen := security.GenerateTOTPSecret(internalsettings.DefaultSiteName, admin.Username)
	if errGen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}
	setPendingTOTPSecret(admin.ID, key.Secret())
	c.JSON(http.StatusOK, gin.H{
		"secret": key.Secret(),
		"url":    key.URL(),
	})
}

// confirmTOTPRequest defines the request body for TOTP confirmation.
type confirmTOTPRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP validates the first code and persists the pending secret.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	secret, okPending := takePendingTOTPSecret(admin.ID)
	if !okPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending totp enrollment"})
		return
	}
	if !security.ValidateTOTP(secret, strings.TrimSpace(body.Code)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{"totp_secret": secret, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enable totp failed"})
		return
	}
	clearPendingTOTPSecret(admin.ID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// disableTOTPRequest defines the request body for disabling TOTP.
type disableTOTPRequest struct {
	Code string `json:"code"`
}

// DisableTOTP turns TOTP off after verifying a current code.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enabled"})
		return
	}
	var body disableTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !security.ValidateTOTP(admin.TOTPSecret, strings.TrimSpace(body.Code)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{"totp_secret": "", "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// currentAdmin loads the admin from the auth middleware context.
func (h *MFAHandler) currentAdmin(c *gin.Context) (*models.Admin, bool) {
	adminID := GetAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &admin, true
}
