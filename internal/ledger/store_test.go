package ledger

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/testutil"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	db, stop, err := testutil.Setup()
	if err != nil {
		log.Fatalf("test database setup failed: %v", err)
	}
	testDB = db
	code := m.Run()
	stop()
	os.Exit(code)
}

func appendEntry(t *testing.T, store *Store, docID string, action models.Action, txID *string) *models.LedgerEntry {
	t.Helper()
	actorID := uuid.NewString()
	entry := &models.LedgerEntry{
		DocumentID:    docID,
		TransactionID: txID,
		Action:        action,
		ActorID:       &actorID,
		ActorRole:     models.RoleAuditor,
	}
	if _, err := store.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append %s failed: %v", action, err)
	}
	return entry
}

func TestAppendAssignsIDAndSeq(t *testing.T) {
	testutil.Reset(t, testDB)
	store := NewStore(testDB)

	entry := appendEntry(t, store, uuid.NewString(), models.ActionIssue, nil)
	if entry.ID == "" {
		t.Fatal("Append left entry without an id")
	}

	var stored models.LedgerEntry
	if err := testDB.First(&stored, "entry_id = ?", entry.ID).Error; err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	if stored.Seq == 0 {
		t.Fatal("entry has no sequence number")
	}
}

func TestEntriesForOrdering(t *testing.T) {
	testutil.Reset(t, testDB)
	store := NewStore(testDB)
	ctx := context.Background()

	docID := uuid.NewString()
	actions := []models.Action{models.ActionIssue, models.ActionShip, models.ActionReceive, models.ActionVerify}
	for _, a := range actions {
		appendEntry(t, store, docID, a, nil)
	}
	// Noise on another document must not leak in.
	appendEntry(t, store, uuid.NewString(), models.ActionIssue, nil)

	entries, err := store.EntriesFor(ctx, docID)
	if err != nil {
		t.Fatalf("EntriesFor failed: %v", err)
	}
	if len(entries) != len(actions) {
		t.Fatalf("expected %d entries, got %d", len(actions), len(entries))
	}
	for i, e := range entries {
		if e.Action != actions[i] {
			t.Fatalf("entry %d action = %s, want %s", i, e.Action, actions[i])
		}
		if i > 0 && entries[i-1].Seq >= e.Seq {
			t.Fatalf("sequence not strictly increasing at index %d: %d then %d", i, entries[i-1].Seq, e.Seq)
		}
	}
}

func TestEntriesInWindow(t *testing.T) {
	testutil.Reset(t, testDB)
	store := NewStore(testDB)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	docID := uuid.NewString()
	appendEntry(t, store, docID, models.ActionIssue, nil)
	appendEntry(t, store, docID, models.ActionVerify, nil)
	after := time.Now().UTC().Add(time.Second)

	entries, err := store.EntriesInWindow(ctx, before, after)
	if err != nil {
		t.Fatalf("EntriesInWindow failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in window, got %d", len(entries))
	}

	// A window that ends before the entries were written sees nothing.
	empty, err := store.EntriesInWindow(ctx, before.Add(-time.Hour), before)
	if err != nil {
		t.Fatalf("EntriesInWindow failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty window, got %d entries", len(empty))
	}
}

func TestForTransaction(t *testing.T) {
	testutil.Reset(t, testDB)
	store := NewStore(testDB)
	ctx := context.Background()

	txID := uuid.NewString()
	poID := uuid.NewString()
	locID := uuid.NewString()
	appendEntry(t, store, poID, models.ActionIssue, &txID)
	appendEntry(t, store, locID, models.ActionIssue, &txID)
	appendEntry(t, store, uuid.NewString(), models.ActionIssue, nil)

	entries, err := store.ForTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("ForTransaction failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for transaction, got %d", len(entries))
	}
	for _, e := range entries {
		if e.TransactionID == nil || *e.TransactionID != txID {
			t.Fatalf("entry %s linked to wrong transaction", e.ID)
		}
	}
}
