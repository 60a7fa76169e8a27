package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradefin-io/tradefingo/internal/alerts"
	"github.com/tradefin-io/tradefingo/internal/config"
	"github.com/tradefin-io/tradefingo/internal/database"
	"github.com/tradefin-io/tradefingo/internal/integrity"
	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/storage"
)

func main() {
	fmt.Println("🔍 Running full integrity sweep...")

	// 1. Load Config & DB
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.AutoMigrate(
		&models.Document{},
		&models.LedgerEntry{},
		&models.IntegrityLog{},
		&models.IntegrityAlert{},
		&models.IntegrityRun{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	backend, err := storage.NewFS(cfg.StorageDir)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}

	sink := alerts.NewSink(db.DB, alerts.NewEmailNotifier(cfg.Alerts))
	checker := integrity.NewChecker(db.DB, backend, sink, cfg.Integrity)

	// Interrupting the sweep is safe: the run checkpoints its watermark and
	// already-written result rows stay intact.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		fmt.Println("\n🛑 Interrupt received, stopping after current document...")
		cancel()
	}()

	run, err := checker.CheckFull(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	fmt.Printf("\n✅ Sweep %s finished\n", run.ID)
	fmt.Printf("   Checked:    %d\n", run.Checked)
	fmt.Printf("   OK:         %d\n", run.OKCount)
	fmt.Printf("   Mismatches: %d\n", run.Mismatches)
	fmt.Printf("   Missing:    %d\n", run.Missing)
	fmt.Printf("   Errors:     %d\n", run.Errors)

	if run.Mismatches > 0 || run.Missing > 0 {
		os.Exit(1)
	}
}
