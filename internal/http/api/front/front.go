package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/config"
	handlers "github.com/keymint-app/keymint/internal/http/api/front/handlers"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"github.com/keymint-app/keymint/internal/ratelimit"
	"github.com/keymint-app/keymint/internal/security"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the reseller-facing routes and middleware.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, bus *push.Bus, limiter *ratelimit.Manager) {
	if r == nil || db == nil {
		return
	}

	frontGroup := r.Group("/v0/front")

	authHandler := handlers.NewAuthFrontHandler(db, jwtCfg)
	frontGroup.POST("/login", authHandler.Login)

	redeemHandler := handlers.NewRedeemHandler(db)
	frontGroup.POST("/redeem", redeemHandler.Redeem)

	authed := frontGroup.Group("")
	authed.Use(resellerAuthMiddleware(db, jwtCfg))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.GET("/journal", profileHandler.Journal)

	tierHandler := handlers.NewTierHandler()
	authed.GET("/tiers", tierHandler.List)

	keyHandler := handlers.NewKeyFrontHandler(db, bus, limiter)
	authed.POST("/keys", keyHandler.Generate)
	authed.GET("/keys", keyHandler.List)
	authed.GET("/keys/export", keyHandler.Export)
	authed.GET("/keys/:id", keyHandler.Get)
	authed.POST("/keys/:id/revoke", keyHandler.Revoke)

	announcementHandler := handlers.NewAnnouncementFrontHandler(db)
	authed.GET("/announcements", announcementHandler.List)

	wsHandler := handlers.NewWSHandler(db, jwtCfg, bus)
	frontGroup.GET("/ws", wsHandler.Serve)
}

// resellerAuthMiddleware validates reseller JWTs and loads reseller context.
func resellerAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseResellerToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var reseller models.Reseller
		if errFind := db.WithContext(c.Request.Context()).First(&reseller, claims.ResellerID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "reseller not found"})
			return
		}
		if !reseller.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "reseller disabled"})
			return
		}

		c.Set("resellerID", reseller.ID)
		c.Set("resellerUsername", reseller.Username)
		c.Next()
	}
}
