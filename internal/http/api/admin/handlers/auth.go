package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/config"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/security"
	"gorm.io/gorm"
)

// AuthHandler handles admin login endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for admin login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates an admin by username and password. Accounts with TOTP
// enabled get a mfa_required response instead of a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	admin, ok := h.authenticate(c, body.Username, body.Password)
	if !ok {
		return
	}
	if admin.TOTPSecret != "" {
		c.JSON(http.StatusOK, gin.H{"mfa_required": true})
		return
	}

	h.issueToken(c, admin)
}

// loginTOTPRequest defines the request body for TOTP login.
type loginTOTPRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// LoginTOTP authenticates an admin with password plus TOTP code.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	admin, ok := h.authenticate(c, body.Username, body.Password)
	if !ok {
		return
	}
	if admin.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enabled"})
		return
	}
	if !security.ValidateTOTP(admin.TOTPSecret, body.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	h.issueToken(c, admin)
}

// authenticate loads and checks the admin credentials. On failure it writes
// the error response and returns ok=false.
func (h *AuthHandler) authenticate(c *gin.Context, username, password string) (*models.Admin, bool) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return nil, false
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&admin).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	if !security.CheckPassword(admin.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return nil, false
	}
	if !admin.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
		return nil, false
	}
	return &admin, true
}

func (h *AuthHandler) issueToken(c *gin.Context, admin *models.Admin) {
	token, errSign := security.SignAdminToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, admin.ID, admin.Username)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"admin": gin.H{
			"id":             admin.ID,
			"username":       admin.Username,
			"is_super_admin": admin.IsSuperAdmin,
		},
	})
}
