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

// AuthFrontHandler handles reseller login.
type AuthFrontHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthFrontHandler constructs an AuthFrontHandler.
func NewAuthFrontHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthFrontHandler {
	return &AuthFrontHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for reseller login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a reseller and returns a JWT.
func (h *AuthFrontHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || strings.TrimSpace(body.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}

	var reseller models.Reseller
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&reseller).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !security.CheckPassword(reseller.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !reseller.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "reseller disabled"})
		return
	}

	token, errSign := security.SignResellerToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, reseller.ID, reseller.Username)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"reseller": gin.H{
			"id":       reseller.ID,
			"username": reseller.Username,
			"credits":  reseller.Credits,
		},
	})
}
