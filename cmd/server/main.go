package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/codyseavey/imgtools/internal/api"
	"github.com/codyseavey/imgtools/internal/database"
	"github.com/codyseavey/imgtools/internal/services"
)

func main() {
	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./imgtools.db"
	}

	// Initialize database
	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	maxSessions := 256
	if v := os.Getenv("MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxSessions = n
		}
	}

	// Initialize services
	sessions := services.NewSessionStore(maxSessions, 0)
	preferences := services.NewPreferenceService(database.GetDB())
	telemetry := services.NewExportTelemetry(database.GetDB())
	exportStorage := services.NewExportStorageService()
	exportCleanup := services.NewExportCleanupService(exportStorage)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start export cleanup in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in export cleanup: %v - restarting in 30 seconds", r)
					}
				}()
				exportCleanup.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Export cleanup restarting after panic recovery...")
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(sessions, preferences, telemetry, exportStorage, exportCleanup)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s (max %d sessions)", port, maxSessions)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the cleanup worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Flush pending export events before the database goes away
	telemetry.Wait()

	log.Println("Server exited")
}
