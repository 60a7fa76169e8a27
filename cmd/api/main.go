package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradefin-io/tradefingo/internal/alerts"
	"github.com/tradefin-io/tradefingo/internal/config"
	"github.com/tradefin-io/tradefingo/internal/database"
	"github.com/tradefin-io/tradefingo/internal/handlers"
	"github.com/tradefin-io/tradefingo/internal/integrity"
	"github.com/tradefin-io/tradefingo/internal/ledger"
	"github.com/tradefin-io/tradefingo/internal/lifecycle"
	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/storage"
	"github.com/tradefin-io/tradefingo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.LedgerEntry{},
		&models.TradeTransaction{},
		&models.IntegrityLog{},
		&models.IntegrityAlert{},
		&models.IntegrityRun{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✅ Schema synchronized successfully")

	// 4. Validate the transition table. A malformed table is a configuration
	// error and must never survive past startup.
	table, err := lifecycle.NewTable(lifecycle.DefaultRules())
	if err != nil {
		log.Fatalf("Transition table validation failed: %v", err)
	}
	machine := lifecycle.NewMachine(db.DB, table)
	ledgerStore := ledger.NewStore(db.DB)

	// 5. Storage backend for document content
	backend, err := storage.NewFS(cfg.StorageDir)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}

	// 6. Alert sink with email + websocket notification channels
	hub := websocket.NewHub()
	go hub.Run()
	sink := alerts.NewSink(db.DB,
		alerts.NewEmailNotifier(cfg.Alerts),
		alerts.NewHubNotifier(hub),
	)

	// 7. Integrity checker + scheduler (incremental and full cadences)
	checker := integrity.NewChecker(db.DB, backend, sink, cfg.Integrity)
	scheduler := integrity.NewScheduler(checker, cfg.Integrity)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start integrity scheduler: %v", err)
	}

	// 8. HTTP router
	router := handlers.NewRouter(handlers.Deps{
		DB:        db,
		Config:    cfg,
		Machine:   machine,
		Ledger:    ledgerStore,
		Checker:   checker,
		Scheduler: scheduler,
		Sink:      sink,
		Backend:   backend,
		Hub:       hub,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Server shutdown error: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("⚠️ Database shutdown error: %v", err)
	}
	log.Println("✅ Shutdown complete")
}
