package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/argoxlabels/internal/config"
	"github.com/xelth-com/argoxlabels/internal/database"
	"github.com/xelth-com/argoxlabels/internal/handlers"
	"github.com/xelth-com/argoxlabels/internal/services/labelsync"
	"github.com/xelth-com/argoxlabels/internal/services/lookup"
	"github.com/xelth-com/argoxlabels/internal/services/powerbi"
	"github.com/xelth-com/argoxlabels/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	store := database.NewLabelStore(db, cfg.Database.Table)

	// 3. Auto-Migrate Schema
	if cfg.Database.AutoMigrate {
		log.Printf("🚀 Synchronizing table %s...", store.Table())
		if err := store.Migrate(); err != nil {
			log.Printf("⚠️ Migration warning: %v\n", err)
		} else {
			log.Println("✅ Schema synchronized successfully")
		}
	} else {
		log.Printf("ℹ️  Auto-migration off: %s must carry a unique index on (ord_in_codigo, fil_in_codigo, orl_st_lotefabricacao)", store.Table())
	}

	// 4. Sync pipeline and scheduler
	client := powerbi.NewClient(powerbi.Config{
		AuthURL: cfg.PowerBI.AuthURL,
		APIURL:  cfg.PowerBI.APIURL,
		Timeout: time.Duration(cfg.PowerBI.TimeoutSeconds) * time.Second,
	})
	pipeline := labelsync.NewPipeline(client, store, labelsync.ParsePolicy(cfg.Sync.BatchPolicy))
	syncService := labelsync.NewService(pipeline, labelsync.DefaultsFromConfig(cfg.PowerBI),
		time.Duration(cfg.Sync.IntervalMinutes)*time.Minute)

	hub := websocket.NewHub()
	go hub.Run()
	syncService.SetListener(hub)
	syncService.Start()

	// 5. Set up HTTP router
	router := handlers.NewRouter(handlers.Options{
		JWTSecret:   cfg.JWTSecret,
		AdminHash:   cfg.AdminHash,
		PublicURL:   cfg.PublicURL,
		CORSOrigins: cfg.CORSOrigins,
	}, syncService, lookup.NewService(store), hub)

	if cfg.AdminHash == "" {
		log.Println("⚠️  ADMIN_PASSWORD_HASH not set: admin login and /api/sync are unavailable")
	}
	if cfg.PublicURL == "" {
		log.Println("⚠️  PUBLIC_URL not set: QR codes will carry host-relative links")
	}

	// 6. Start server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.Handler(),
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Label server (%s) starting on port %s\n", cfg.NodeEnv, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop scheduled sync
	syncService.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
