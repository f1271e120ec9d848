package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/config"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"github.com/keymint-app/keymint/internal/security"
	"gorm.io/gorm"
)

// WSHandler upgrades reseller connections to push channels. Browsers cannot
// set an Authorization header on WebSocket dials, so the JWT rides the
// token query parameter instead.
type WSHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
	bus    *push.Bus
}

// NewWSHandler constructs a WSHandler.
func NewWSHandler(db *gorm.DB, jwtCfg config.JWTConfig, bus *push.Bus) *WSHandler {
	return &WSHandler{db: db, jwtCfg: jwtCfg, bus: bus}
}

// Serve authenticates the token and hands the connection to the push bus.
func (h *WSHandler) Serve(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, errJWT := security.ParseResellerToken(h.jwtCfg.Secret, token)
	if errJWT != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var reseller models.Reseller
	if errFind := h.db.WithContext(c.Request.Context()).First(&reseller, claims.ResellerID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "reseller not found"})
		return
	}
	if !reseller.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "reseller disabled"})
		return
	}

	if errServe := push.ServeWS(h.bus, reseller.ID, c.Writer, c.Request); errServe != nil {
		// The upgrader already wrote the error response.
		return
	}
}
