// Package ledger is the append-only store of document lifecycle events.
// The public surface has no update or delete: corrections are modeled as new
// AMEND entries, never as edits to history.
package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tradefin-io/tradefingo/internal/models"
)

// Store reads and appends ledger entries.
type Store struct {
	db *gorm.DB
}

// NewStore creates a ledger store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append writes one entry and returns its id. Storage errors propagate to
// the caller; nothing is swallowed.
func (s *Store) Append(ctx context.Context, entry *models.LedgerEntry) (string, error) {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return "", err
	}
	return entry.ID, nil
}

// EntriesFor returns a document's entries ordered by timestamp ascending,
// ties broken by the monotonic sequence number.
func (s *Store) EntriesFor(ctx context.Context, documentID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC, seq ASC").
		Find(&entries).Error
	return entries, err
}

// EntriesInWindow returns all entries with since <= created_at < until,
// for periodic and audit queries.
func (s *Store) EntriesInWindow(ctx context.Context, since, until time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", since, until).
		Order("created_at ASC, seq ASC").
		Find(&entries).Error
	return entries, err
}

// ForTransaction returns every entry linked to a trade transaction through
// the explicit transaction_id column.
func (s *Store) ForTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC, seq ASC").
		Find(&entries).Error
	return entries, err
}
