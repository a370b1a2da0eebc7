package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/imgtools/internal/api/handlers"
	"github.com/codyseavey/imgtools/internal/services"
)

func SetupRouter(sessions *services.SessionStore, preferences *services.PreferenceService, telemetry services.Telemetry, exportStorage *services.ExportStorageService, exportCleanup *services.ExportCleanupService) *gin.Engine {
	router := gin.Default()
	router.Use(metricsMiddleware())

	// Get frontend dist path from env
	frontendPath := os.Getenv("FRONTEND_DIST_PATH")
	serveFrontend := frontendPath != "" && dirExists(frontendPath)

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	config.ExposeHeaders = []string{"Content-Disposition"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	maxUploadBytes := int64(envInt("MAX_UPLOAD_MB", 25)) << 20
	router.MaxMultipartMemory = maxUploadBytes
	limiter := newUploadLimiter(envInt("UPLOAD_RATE_PER_MIN", 60))

	toolHandler := handlers.NewToolHandler(sessions, preferences, telemetry, exportStorage, maxUploadBytes)

	// Serve archived exports
	if exportStorage != nil {
		router.Static("/exports", exportStorage.GetStorageDir())
	}

	// API routes
	api := router.Group("/api")
	{
		api.GET("/tools", toolHandler.ListTools)

		tools := api.Group("/tools/:tool")
		{
			tools.GET("/preferences", toolHandler.GetPreferences)
			tools.POST("/sessions", limiter.Middleware(), toolHandler.CreateSession)
			tools.GET("/sessions/:id", toolHandler.GetSession)
			tools.PUT("/sessions/:id/params", toolHandler.UpdateParams)
			tools.GET("/sessions/:id/preview", toolHandler.Preview)
			tools.POST("/sessions/:id/export", toolHandler.Export)
			tools.DELETE("/sessions/:id", toolHandler.CancelSession)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		health := gin.H{"status": "ok", "sessions": sessions.Len()}
		if exportCleanup != nil {
			lastRun, removed := exportCleanup.Status()
			cleanup := gin.H{"last_removed": removed}
			if !lastRun.IsZero() {
				cleanup["last_run"] = lastRun
			}
			health["export_cleanup"] = cleanup
		}
		c.JSON(200, health)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(frontendPath, "index.html")

		router.Static("/assets", filepath.Join(frontendPath, "assets"))
		router.StaticFile("/favicon.ico", filepath.Join(frontendPath, "favicon.ico"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
