package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/tokens"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TokenHandler manages onboarding token endpoints.
type TokenHandler struct {
	db     *gorm.DB
	issuer *tokens.Issuer
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(db *gorm.DB, issuer *tokens.Issuer) *TokenHandler {
	return &TokenHandler{db: db, issuer: issuer}
}

// issueTokensRequest defines the request body for batch token issuance.
type issueTokensRequest struct {
	CreditGrant decimal.Decimal `json:"credit_grant"`
	Count       int             `json:"count"`
}

// Issue creates a batch of unconsumed tokens.
func (h *TokenHandler) Issue(c *gin.Context) {
	var body issueTokensRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Count < 1 {
		body.Count = 1
	}
	if body.Count > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count too large"})
		return
	}

	created, errIssue := h.issuer.Issue(c.Request.Context(), GetAdminID(c), body.CreditGrant, body.Count)
	if errIssue != nil {
		if errors.Is(errIssue, tokens.ErrInvalidGrant) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credit_grant must be positive"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue tokens failed"})
		return
	}

	out := make([]gin.H, 0, len(created))
	for _, token := range created {
		out = append(out, h.formatToken(&token))
	}
	c.JSON(http.StatusCreated, gin.H{"tokens": out})
}

// List returns tokens with optional consumed filter.
func (h *TokenHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Token{})
	switch strings.TrimSpace(c.Query("consumed")) {
	case "true", "1":
		q = q.Where("consumed = ?", true)
	case "false", "0":
		q = q.Where("consumed = ?", false)
	}

	var rows []models.Token
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tokens failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatToken(&row))
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

// Delete removes an unconsumed token. Consumed tokens stay for audit.
func (h *TokenHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if errDelete := h.issuer.Delete(c.Request.Context(), id); errDelete != nil {
		switch {
		case errors.Is(errDelete, tokens.ErrTokenInvalid):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errDelete, tokens.ErrTokenNotDeletable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "consumed tokens cannot be deleted"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// formatToken formats a token row into response JSON.
func (h *TokenHandler) formatToken(token *models.Token) gin.H {
	return gin.H{
		"id":                   token.ID,
		"code":                 token.Code,
		"credit_grant":         token.CreditGrant,
		"consumed":             token.Consumed,
		"issued_by_id":         token.IssuedByID,
		"redeemed_reseller_id": token.RedeemedResellerID,
		"redeemed_at":          token.RedeemedAt,
		"created_at":           token.CreatedAt,
	}
}
