package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/keys"
)

// TierHandler exposes the pricing tier table. The response is advisory;
// Generate recomputes the cost server-side.
type TierHandler struct{}

// NewTierHandler constructs a TierHandler.
func NewTierHandler() *TierHandler {
	return &TierHandler{}
}

// List returns the tier table sorted by duration.
func (h *TierHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": keys.Tiers()})
}
