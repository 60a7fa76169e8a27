package lifecycle

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"

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

func testActor(role models.Role) models.Actor {
	return models.Actor{ID: uuid.NewString(), Role: role, OrgName: "Test Org"}
}

// createDoc inserts a document together with its ISSUE creation marker, the
// way the upload path does, so replayed history matches the stored status.
func createDoc(t *testing.T, docType models.DocType, owner models.Actor) *models.Document {
	t.Helper()
	doc := &models.Document{
		DocType:       docType,
		DocNumber:     string(docType) + "-" + uuid.NewString()[:8],
		OwnerID:       owner.ID,
		Status:        InitialStatus(docType),
		ContentDigest: uuid.NewString(),
	}
	if err := testDB.Create(doc).Error; err != nil {
		t.Fatalf("create document: %v", err)
	}
	ownerID := owner.ID
	entry := &models.LedgerEntry{
		DocumentID: doc.ID,
		Action:     models.ActionIssue,
		ActorID:    &ownerID,
		ActorRole:  owner.Role,
	}
	if err := testDB.Create(entry).Error; err != nil {
		t.Fatalf("create issue entry: %v", err)
	}
	return doc
}

func TestApplyVerify(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())
	ctx := context.Background()

	buyer := testActor(models.RoleBuyer)
	auditor := testActor(models.RoleAuditor)
	doc := createDoc(t, models.DocTypePurchaseOrder, buyer)

	res, err := machine.Apply(ctx, ApplyInput{
		DocumentID: doc.ID,
		Action:     models.ActionVerify,
		Actor:      auditor,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Document.Status != models.StatusVerified {
		t.Fatalf("result status = %s, want VERIFIED", res.Document.Status)
	}
	if res.Entry == nil || res.Entry.Action != models.ActionVerify {
		t.Fatalf("expected VERIFY ledger entry, got %+v", res.Entry)
	}

	var stored models.Document
	if err := testDB.First(&stored, "document_id = ?", doc.ID).Error; err != nil {
		t.Fatalf("reload document: %v", err)
	}
	if stored.Status != models.StatusVerified {
		t.Fatalf("stored status = %s, want VERIFIED", stored.Status)
	}
}

func TestApplyRejectsInvalidTransition(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())
	ctx := context.Background()

	buyer := testActor(models.RoleBuyer)
	seller := testActor(models.RoleSeller)
	doc := createDoc(t, models.DocTypePurchaseOrder, buyer)

	_, err := machine.Apply(ctx, ApplyInput{
		DocumentID: doc.ID,
		Action:     models.ActionShip,
		Actor:      seller,
	})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.Role != models.RoleSeller || invalid.Action != models.ActionShip {
		t.Fatalf("error names wrong attempt: %+v", invalid)
	}

	// A rejected transition leaves no trace: status unchanged, nothing
	// appended beyond the creation marker.
	var stored models.Document
	testDB.First(&stored, "document_id = ?", doc.ID)
	if stored.Status != models.StatusIssued {
		t.Fatalf("rejected transition changed status to %s", stored.Status)
	}
	var count int64
	testDB.Model(&models.LedgerEntry{}).Where("document_id = ?", doc.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected only the ISSUE entry, found %d entries", count)
	}
}

func TestApplyUnknownDocument(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())

	_, err := machine.Apply(context.Background(), ApplyInput{
		DocumentID: uuid.NewString(),
		Action:     models.ActionVerify,
		Actor:      testActor(models.RoleAuditor),
	})
	if !errors.Is(err, ErrUnknownDocument) {
		t.Fatalf("expected ErrUnknownDocument, got %v", err)
	}
}

func TestApplySpawnsLetterOfCredit(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())
	ctx := context.Background()

	buyer := testActor(models.RoleBuyer)
	bank := testActor(models.RoleBank)
	po := createDoc(t, models.DocTypePurchaseOrder, buyer)

	res, err := machine.Apply(ctx, ApplyInput{
		DocumentID: po.ID,
		Action:     models.ActionIssueLOC,
		Actor:      bank,
		Metadata:   map[string]interface{}{"doc_number": "LOC-2024-777"},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// The source document is untouched by the spawn.
	if res.Document.Status != models.StatusIssued {
		t.Fatalf("PO status after spawn = %s, want ISSUED", res.Document.Status)
	}

	loc := res.Spawned
	if loc == nil {
		t.Fatal("spawn rule produced no document")
	}
	if loc.DocType != models.DocTypeLetterOfCredit {
		t.Fatalf("spawned type = %s, want LETTER_OF_CREDIT", loc.DocType)
	}
	if loc.DocNumber != "LOC-2024-777" {
		t.Fatalf("spawned number = %s, want LOC-2024-777", loc.DocNumber)
	}
	if loc.Status != models.StatusIssued {
		t.Fatalf("spawned status = %s, want ISSUED", loc.Status)
	}
	if loc.OwnerID != bank.ID {
		t.Fatalf("spawned owner = %s, want issuing bank", loc.OwnerID)
	}
	if loc.CounterpartyID == nil || *loc.CounterpartyID != buyer.ID {
		t.Fatalf("spawned counterparty = %v, want PO owner", loc.CounterpartyID)
	}
	if loc.ContentDigest == "" {
		t.Fatal("spawned document has no issuance digest")
	}

	// The spawn wrote the LOC's own creation marker.
	var issueEntries []models.LedgerEntry
	testDB.Where("document_id = ? AND action = ?", loc.ID, models.ActionIssue).Find(&issueEntries)
	if len(issueEntries) != 1 {
		t.Fatalf("expected 1 ISSUE entry for spawned LOC, got %d", len(issueEntries))
	}
	if got := issueEntries[0].Metadata["spawned_from"]; got != po.ID {
		t.Fatalf("spawned_from = %v, want %s", got, po.ID)
	}

	// The PO's ISSUE_LOC entry references the new document.
	if got := res.Entry.Metadata["spawned_document_id"]; got != loc.ID {
		t.Fatalf("spawned_document_id = %v, want %s", got, loc.ID)
	}
}

func TestApplyConcurrentOneWinner(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())
	ctx := context.Background()

	buyer := testActor(models.RoleBuyer)
	auditor := testActor(models.RoleAuditor)
	doc := createDoc(t, models.DocTypePurchaseOrder, buyer)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := machine.Apply(ctx, ApplyInput{
				DocumentID: doc.ID,
				Action:     models.ActionVerify,
				Actor:      auditor,
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	var wins, rejections int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		default:
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			rejections++
		}
	}
	if wins != 1 || rejections != 1 {
		t.Fatalf("expected exactly one winner, got %d wins and %d rejections", wins, rejections)
	}

	// Exactly one VERIFY entry made it into the ledger.
	var count int64
	testDB.Model(&models.LedgerEntry{}).
		Where("document_id = ? AND action = ?", doc.ID, models.ActionVerify).
		Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 VERIFY entry, found %d", count)
	}
}

func TestVerifyHistoryConsistent(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())
	ctx := context.Background()

	seller := testActor(models.RoleSeller)
	buyer := testActor(models.RoleBuyer)
	auditor := testActor(models.RoleAuditor)
	bol := createDoc(t, models.DocTypeBillOfLading, seller)

	steps := []struct {
		action models.Action
		actor  models.Actor
	}{
		{models.ActionShip, seller},
		{models.ActionReceive, buyer},
		{models.ActionVerify, auditor},
	}
	for _, s := range steps {
		if _, err := machine.Apply(ctx, ApplyInput{DocumentID: bol.ID, Action: s.action, Actor: s.actor}); err != nil {
			t.Fatalf("Apply %s failed: %v", s.action, err)
		}
	}

	check, err := machine.VerifyHistory(ctx, bol.ID)
	if err != nil {
		t.Fatalf("VerifyHistory failed: %v", err)
	}
	if !check.Consistent {
		t.Fatalf("history inconsistent: stored %s, replayed %s", check.Stored, check.Replayed)
	}
	if check.Entries != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", check.Entries)
	}
	if check.Replayed != models.StatusVerified {
		t.Fatalf("replayed status = %s, want VERIFIED", check.Replayed)
	}
}

func TestVerifyHistoryDetectsStatusTamper(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())
	ctx := context.Background()

	buyer := testActor(models.RoleBuyer)
	doc := createDoc(t, models.DocTypePurchaseOrder, buyer)

	// Status changed behind the ledger's back.
	if err := testDB.Model(&models.Document{}).
		Where("document_id = ?", doc.ID).
		Update("status", models.StatusVerified).Error; err != nil {
		t.Fatalf("tamper update failed: %v", err)
	}

	check, err := machine.VerifyHistory(ctx, doc.ID)
	if err != nil {
		t.Fatalf("VerifyHistory failed: %v", err)
	}
	if check.Consistent {
		t.Fatal("tampered status went undetected")
	}
	if check.Replayed != models.StatusIssued {
		t.Fatalf("replayed status = %s, want ISSUED", check.Replayed)
	}
}

func TestAllowedActionsForUnknownDocument(t *testing.T) {
	testutil.Reset(t, testDB)
	machine := NewMachine(testDB, MustTable())

	_, err := machine.AllowedActionsFor(context.Background(), uuid.NewString(), models.RoleAuditor)
	if !errors.Is(err, ErrUnknownDocument) {
		t.Fatalf("expected ErrUnknownDocument, got %v", err)
	}
}
