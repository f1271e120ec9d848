package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/security"
	"github.com/keymint-app/keymint/internal/tokens"
	"gorm.io/gorm"
)

// RedeemHandler handles public token redemption, the reseller signup path.
type RedeemHandler struct {
	db     *gorm.DB
	issuer *tokens.Issuer
}

// NewRedeemHandler constructs a RedeemHandler.
func NewRedeemHandler(db *gorm.DB) *RedeemHandler {
	return &RedeemHandler{db: db, issuer: tokens.NewIssuer(db)}
}

// redeemRequest defines the request body for token redemption.
type redeemRequest struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Redeem consumes an onboarding token and creates the reseller account.
func (h *RedeemHandler) Redeem(c *gin.Context) {
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.TrimSpace(body.Code)
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if code == "" || username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code, username, and password are required"})
		return
	}
	if len(password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	reseller, errRedeem := h.issuer.Redeem(c.Request.Context(), code, username, hash)
	if errRedeem != nil {
		switch {
		case errors.Is(errRedeem, tokens.ErrTokenInvalid):
			c.JSON(http.StatusNotFound, gin.H{"error": "TokenInvalid"})
		case errors.Is(errRedeem, tokens.ErrTokenConsumed):
			c.JSON(http.StatusConflict, gin.H{"error": "TokenConsumed"})
		case errors.Is(errRedeem, tokens.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       reseller.ID,
		"username": reseller.Username,
		"credits":  reseller.Credits,
	})
}
