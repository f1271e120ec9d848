package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/config"
	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/http/api/admin"
	"github.com/keymint-app/keymint/internal/http/api/client"
	"github.com/keymint-app/keymint/internal/http/api/front"
	"github.com/keymint-app/keymint/internal/logging"
	"github.com/keymint-app/keymint/internal/push"
	"github.com/keymint-app/keymint/internal/ratelimit"
	internalsettings "github.com/keymint-app/keymint/internal/settings"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the key service with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}

	serverCfg, errServer := config.LoadServerConfig(configPath, defaultPort)
	if errServer != nil {
		return errServer
	}
	logging.Setup(serverCfg.Debug, serverCfg.LoggingToFile, "logs")

	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errReload := internalsettings.Reload(conn); errReload != nil {
		return errReload
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	var initState atomic.Bool
	initState.Store(initialized)

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	bus := push.NewBus()
	limiter := ratelimit.NewManager(nil, nil, nil)

	if serverCfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	admin.RegisterAdminRoutes(engine, conn, jwtConfig, bus)
	front.RegisterFrontRoutes(engine, conn, jwtConfig, bus, limiter)
	client.RegisterClientRoutes(engine, conn, limiter)

	engine.GET("/v0/init/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, InitStatusResponse{Initialized: initState.Load()})
	})
	engine.GET("/v0/init/prefill", func(c *gin.Context) {
		prefill, errPrefill := initPrefillFromDSN(dsn)
		if errPrefill != nil {
			c.JSON(http.StatusOK, gin.H{"locked": true})
			return
		}
		c.JSON(http.StatusOK, struct {
			Locked bool `json:"locked"`
			initPrefill
		}{Locked: true, initPrefill: prefill})
	})
	engine.POST("/v0/init/setup", func(c *gin.Context) {
		if ok, errCheck := HasAdminInitialized(conn); errCheck != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check admin status failed"})
			return
		} else if ok {
			initState.Store(true)
			c.JSON(http.StatusBadRequest, gin.H{"error": "System already initialized"})
			return
		}

		var req InitRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
			return
		}

		req.SiteName = strings.TrimSpace(req.SiteName)
		if req.SiteName == "" {
			req.SiteName = internalsettings.DefaultSiteName
		}

		req.AdminUsername = strings.TrimSpace(req.AdminUsername)
		if req.AdminUsername == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Admin username is required"})
			return
		}
		if strings.TrimSpace(req.AdminPassword) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Admin password is required"})
			return
		}
		if len(req.AdminPassword) < 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 6 characters"})
			return
		}

		if errAdmin := CreateAdminUserWithConn(conn, req.AdminUsername, req.AdminPassword, req.SiteName); errAdmin != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create admin: %v", errAdmin)})
			return
		}
		if errReload := internalsettings.Reload(conn); errReload != nil {
			log.WithError(errReload).Error("settings reload after init failed")
		}
		initState.Store(true)
		c.JSON(http.StatusOK, gin.H{"message": "Initialization successful"})
	})

	addr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s with config=%s", addr, configPath)
		if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
			errCh <- errListen
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
		return <-errCh
	case errRun := <-errCh:
		return errRun
	}
}
