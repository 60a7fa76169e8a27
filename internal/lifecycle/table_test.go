package lifecycle

import (
	"errors"
	"testing"

	"github.com/tradefin-io/tradefingo/internal/models"
)

func TestDefaultRulesValidate(t *testing.T) {
	if _, err := NewTable(DefaultRules()); err != nil {
		t.Fatalf("default rule set failed validation: %v", err)
	}
}

func TestNewTableRejectsMalformedRules(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
	}{
		{
			"unknown doc type",
			Rule{DocType: "WARRANTY_DEED", From: models.StatusIssued, Role: models.RoleAuditor, Action: models.ActionVerify, To: models.StatusVerified},
		},
		{
			"unknown status",
			Rule{DocType: models.DocTypeInvoice, From: "DRAFT", Role: models.RoleSeller, Action: models.ActionAmend, To: "DRAFT"},
		},
		{
			"unknown role",
			Rule{DocType: models.DocTypeInvoice, From: models.StatusIssued, Role: "NOTARY", Action: models.ActionAmend, To: models.StatusIssued},
		},
		{
			"system action in table",
			Rule{DocType: models.DocTypeInvoice, From: models.StatusIssued, Role: models.RoleAuditor, Action: models.ActionIntegrityAlert, To: models.StatusIssued},
		},
		{
			"spawn rule changes source status",
			Rule{DocType: models.DocTypePurchaseOrder, From: models.StatusIssued, Role: models.RoleBank, Action: models.ActionPay, To: models.StatusPaid, Spawns: models.DocTypeLetterOfCredit},
		},
		{
			"unreachable from-status",
			Rule{DocType: models.DocTypeInvoice, From: models.StatusShipped, Role: models.RoleBuyer, Action: models.ActionReceive, To: models.StatusReceived},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTable(append(DefaultRules(), tc.rule))
			if err == nil {
				t.Fatal("expected validation error, got none")
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
			}
			if len(cfgErr.Problems) == 0 {
				t.Fatal("ConfigurationError carries no problems")
			}
		})
	}
}

func TestNewTableRejectsDuplicateRule(t *testing.T) {
	rules := append(DefaultRules(), DefaultRules()[0])
	if _, err := NewTable(rules); err == nil {
		t.Fatal("duplicate rule passed validation")
	}
}

func TestAllowedActions(t *testing.T) {
	table := MustTable()

	got := table.AllowedActions(models.DocTypePurchaseOrder, models.StatusIssued, models.RoleBuyer)
	want := map[models.Action]bool{models.ActionAmend: true, models.ActionCancel: true}
	if len(got) != len(want) {
		t.Fatalf("buyer on issued PO: got %v, want AMEND and CANCEL", got)
	}
	for _, a := range got {
		if !want[a] {
			t.Fatalf("unexpected action %s for buyer on issued PO", a)
		}
	}
}

func TestAllowedActionsEmptyOnTerminal(t *testing.T) {
	table := MustTable()

	for _, role := range []models.Role{models.RoleBuyer, models.RoleSeller, models.RoleBank, models.RoleAuditor} {
		got := table.AllowedActions(models.DocTypePurchaseOrder, models.StatusPaid, role)
		if got == nil {
			t.Fatalf("AllowedActions returned nil for %s, want empty slice", role)
		}
		if len(got) != 0 {
			t.Fatalf("terminal status offered actions %v to %s", got, role)
		}
	}
}

func TestAllowedActionsEmptyForAbsentRole(t *testing.T) {
	table := MustTable()

	// A seller has no say over a purchase order's lifecycle.
	got := table.AllowedActions(models.DocTypePurchaseOrder, models.StatusIssued, models.RoleSeller)
	if len(got) != 0 {
		t.Fatalf("seller offered actions %v on issued PO", got)
	}
}

func TestIsTerminal(t *testing.T) {
	table := MustTable()

	cases := []struct {
		docType  models.DocType
		status   models.DocStatus
		terminal bool
	}{
		{models.DocTypePurchaseOrder, models.StatusIssued, false},
		{models.DocTypePurchaseOrder, models.StatusVerified, true},
		{models.DocTypePurchaseOrder, models.StatusCancelled, true},
		{models.DocTypeBillOfLading, models.StatusShipped, false},
		{models.DocTypeBillOfLading, models.StatusVerified, true},
		{models.DocTypeInvoice, models.StatusPaid, true},
	}
	for _, tc := range cases {
		if got := table.IsTerminal(tc.docType, tc.status); got != tc.terminal {
			t.Errorf("IsTerminal(%s, %s) = %v, want %v", tc.docType, tc.status, got, tc.terminal)
		}
	}
}

func TestReplayPurchaseOrderVerify(t *testing.T) {
	table := MustTable()

	status, err := table.Replay(models.DocTypePurchaseOrder,
		[]models.Action{models.ActionIssue, models.ActionVerify})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if status != models.StatusVerified {
		t.Fatalf("replayed status = %s, want VERIFIED", status)
	}
}

func TestReplayRejectsImpossibleHistory(t *testing.T) {
	table := MustTable()

	// A second VERIFY has no rule out of VERIFIED.
	_, err := table.Replay(models.DocTypePurchaseOrder,
		[]models.Action{models.ActionIssue, models.ActionVerify, models.ActionVerify})
	if err == nil {
		t.Fatal("replay accepted an impossible history")
	}
}

func TestReplayBillOfLadingFullFlow(t *testing.T) {
	table := MustTable()

	status, err := table.Replay(models.DocTypeBillOfLading,
		[]models.Action{models.ActionIssue, models.ActionShip, models.ActionReceive, models.ActionVerify})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if status != models.StatusVerified {
		t.Fatalf("replayed status = %s, want VERIFIED", status)
	}
}

func TestReplaySkipsSystemActions(t *testing.T) {
	table := MustTable()

	status, err := table.Replay(models.DocTypeBillOfLading,
		[]models.Action{models.ActionIssue, models.ActionShip, models.ActionIntegrityAlert, models.ActionReceive})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if status != models.StatusReceived {
		t.Fatalf("replayed status = %s, want RECEIVED", status)
	}
}

func TestReplaySelfLoopActions(t *testing.T) {
	table := MustTable()

	// AMEND and the LOC spawn leave the purchase order where it was.
	status, err := table.Replay(models.DocTypePurchaseOrder,
		[]models.Action{models.ActionIssue, models.ActionAmend, models.ActionIssueLOC, models.ActionVerify})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if status != models.StatusVerified {
		t.Fatalf("replayed status = %s, want VERIFIED", status)
	}
}
