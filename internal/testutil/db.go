// Package testutil provides a throwaway embedded Postgres for DB-backed
// tests. Each test package starts one instance in TestMain and truncates
// tables between tests.
package testutil

import (
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradefin-io/tradefingo/internal/models"
)

// Setup starts an embedded Postgres on a free port, connects GORM and
// migrates every model. The returned stop function must run after the test
// binary finishes (call it from TestMain).
func Setup() (*gorm.DB, func(), error) {
	port, err := freePort()
	if err != nil {
		return nil, nil, fmt.Errorf("find free port: %w", err)
	}

	dataDir, err := os.MkdirTemp("", "tradefingo-pgdata-")
	if err != nil {
		return nil, nil, err
	}
	runtimeDir, err := os.MkdirTemp("", "tradefingo-pgrun-")
	if err != nil {
		os.RemoveAll(dataDir)
		return nil, nil, err
	}

	embedded := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Port(uint32(port)).
		DataPath(dataDir).
		RuntimePath(runtimeDir).
		Username("postgres").
		Password("postgres").
		Database("tradefin_test").
		Logger(io.Discard))

	if err := embedded.Start(); err != nil {
		os.RemoveAll(dataDir)
		os.RemoveAll(runtimeDir)
		return nil, nil, fmt.Errorf("start embedded postgres: %w", err)
	}

	stop := func() {
		_ = embedded.Stop()
		os.RemoveAll(dataDir)
		os.RemoveAll(runtimeDir)
	}

	dsn := fmt.Sprintf("host=localhost port=%d user=postgres password=postgres dbname=tradefin_test sslmode=disable", port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.LedgerEntry{},
		&models.TradeTransaction{},
		&models.IntegrityLog{},
		&models.IntegrityAlert{},
		&models.IntegrityRun{},
	); err != nil {
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return db, stop, nil
}

// Reset truncates all tables so tests start from a clean slate.
func Reset(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Exec(`TRUNCATE users, documents, ledger_entries, trade_transactions,
		integrity_logs, integrity_alerts, integrity_runs`).Error
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
