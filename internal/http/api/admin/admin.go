package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/config"
	handlers "github.com/keymint-app/keymint/internal/http/api/admin/handlers"
	"github.com/keymint-app/keymint/internal/http/api/admin/permissions"
	"github.com/keymint-app/keymint/internal/keys"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"github.com/keymint-app/keymint/internal/security"
	"github.com/keymint-app/keymint/internal/tokens"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, bus *push.Bus) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	versionHandler := handlers.NewVersionHandler()
	r.GET("/v0/version", versionHandler.GetVersion)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)
	adminGroup.POST("/login/totp", authHandler.LoginTOTP)

	selfAuthed := adminGroup.Group("")
	selfAuthed.Use(adminAuthMiddleware(db, jwtCfg))

	mfaHandler := handlers.NewMFAHandler(db)
	selfAuthed.GET("/mfa/status", mfaHandler.Status)
	selfAuthed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	selfAuthed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	selfAuthed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))
	authed.Use(adminPermissionMiddleware())

	overviewHandler := handlers.NewOverviewHandler(db)
	authed.GET("/overview", overviewHandler.Overview)

	resellerHandler := handlers.NewResellerHandler(db, bus)
	authed.GET("/resellers", resellerHandler.List)
	authed.GET("/resellers/:id", resellerHandler.Get)
	authed.POST("/resellers/:id/disable", resellerHandler.Disable)
	authed.POST("/resellers/:id/enable", resellerHandler.Enable)
	authed.PUT("/resellers/:id/password", resellerHandler.ChangePassword)
	authed.POST("/resellers/:id/credit", resellerHandler.AdjustCredit)
	authed.GET("/resellers/:id/journal", resellerHandler.Journal)

	tokenHandler := handlers.NewTokenHandler(db, tokens.NewIssuer(db))
	authed.POST("/tokens", tokenHandler.Issue)
	authed.GET("/tokens", tokenHandler.List)
	authed.DELETE("/tokens/:id", tokenHandler.Delete)

	keyHandler := handlers.NewKeyHandler(db, keys.NewRevoker(db, bus))
	authed.GET("/keys", keyHandler.List)
	authed.GET("/keys/:id", keyHandler.Get)
	authed.POST("/keys/:id/revoke", keyHandler.Revoke)

	announcementHandler := handlers.NewAnnouncementHandler(db, bus)
	authed.POST("/announcements", announcementHandler.Create)
	authed.GET("/announcements", announcementHandler.List)
	authed.DELETE("/announcements/:id", announcementHandler.Delete)

	settingHandler := handlers.NewSettingHandler(db)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)

	adminHandler := handlers.NewAdminHandler(db)
	authed.POST("/admins", adminHandler.Create)
	authed.GET("/admins", adminHandler.List)
	authed.GET("/admins/:id", adminHandler.Get)
	authed.PUT("/admins/:id", adminHandler.Update)
	authed.DELETE("/admins/:id", adminHandler.Delete)
	authed.POST("/admins/:id/disable", adminHandler.Disable)
	authed.POST("/admins/:id/enable", adminHandler.Enable)
	authed.PUT("/admins/:id/password", adminHandler.ChangePassword)

	permissionHandler := handlers.NewPermissionHandler()
	authed.GET("/permissions", permissionHandler.List)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		adminPermissions := permissions.ParsePermissions(admin.Permissions)
		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Set("adminPermissions", adminPermissions)
		c.Set("adminIsSuperAdmin", admin.IsSuperAdmin)
		c.Next()
	}
}

// adminPermissionMiddleware enforces per-route permissions. Super admins
// bypass the check.
func adminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSuper, ok := c.Get("adminIsSuperAdmin"); ok {
			if super, okBool := isSuper.(bool); okBool && super {
				c.Next()
				return
			}
		}

		var granted []string
		if value, ok := c.Get("adminPermissions"); ok {
			if perms, okCast := value.([]string); okCast {
				granted = perms
			}
		}

		required := permissions.Key(c.Request.Method, c.FullPath())
		if !permissions.HasPermission(granted, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
