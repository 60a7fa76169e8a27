// Package lifecycle implements the document state machine: the authoritative
// transition table mapping (document type, current status, actor role) to
// permitted actions, and the machine that applies them atomically.
package lifecycle

import (
	"fmt"

	"github.com/tradefin-io/tradefingo/internal/models"
)

// Rule is one row of the transition table. A rule with Spawns set creates a
// new document of that type as a side effect and leaves the source document's
// status unchanged (To == From).
type Rule struct {
	DocType models.DocType
	From    models.DocStatus
	Role    models.Role
	Action  models.Action
	To      models.DocStatus
	Spawns  models.DocType
}

// Table is a validated set of transition rules with fast lookups.
type Table struct {
	rules []Rule
	// (type, from, role, action) -> rule index
	byKey map[string]int
	// (type, from) -> true, used to derive terminal statuses
	outgoing map[string]bool
}

func key4(t models.DocType, s models.DocStatus, r models.Role, a models.Action) string {
	return string(t) + "|" + string(s) + "|" + string(r) + "|" + string(a)
}

func key2(t models.DocType, s models.DocStatus) string {
	return string(t) + "|" + string(s)
}

// InitialStatus is the status every document type starts in.
func InitialStatus(models.DocType) models.DocStatus {
	return models.StatusIssued
}

// DefaultRules is the fixed trade-finance rule set. It is data, not code:
// changing the lifecycle means changing this slice and nothing else.
func DefaultRules() []Rule {
	po := models.DocTypePurchaseOrder
	loc := models.DocTypeLetterOfCredit
	bol := models.DocTypeBillOfLading
	inv := models.DocTypeInvoice

	return []Rule{
		// Purchase Order
		{DocType: po, From: models.StatusIssued, Role: models.RoleAuditor, Action: models.ActionVerify, To: models.StatusVerified},
		{DocType: po, From: models.StatusIssued, Role: models.RoleBank, Action: models.ActionIssueLOC, To: models.StatusIssued, Spawns: loc},
		{DocType: po, From: models.StatusIssued, Role: models.RoleBuyer, Action: models.ActionAmend, To: models.StatusIssued},
		{DocType: po, From: models.StatusIssued, Role: models.RoleBuyer, Action: models.ActionCancel, To: models.StatusCancelled},

		// Letter of Credit
		{DocType: loc, From: models.StatusIssued, Role: models.RoleAuditor, Action: models.ActionVerify, To: models.StatusVerified},
		{DocType: loc, From: models.StatusIssued, Role: models.RoleBank, Action: models.ActionAmend, To: models.StatusIssued},
		{DocType: loc, From: models.StatusIssued, Role: models.RoleBank, Action: models.ActionCancel, To: models.StatusCancelled},

		// Bill of Lading
		{DocType: bol, From: models.StatusIssued, Role: models.RoleSeller, Action: models.ActionShip, To: models.StatusShipped},
		{DocType: bol, From: models.StatusShipped, Role: models.RoleBuyer, Action: models.ActionReceive, To: models.StatusReceived},
		{DocType: bol, From: models.StatusReceived, Role: models.RoleAuditor, Action: models.ActionVerify, To: models.StatusVerified},

		// Invoice
		{DocType: inv, From: models.StatusIssued, Role: models.RoleBank, Action: models.ActionPay, To: models.StatusPaid},
		{DocType: inv, From: models.StatusIssued, Role: models.RoleSeller, Action: models.ActionAmend, To: models.StatusIssued},
		{DocType: inv, From: models.StatusIssued, Role: models.RoleSeller, Action: models.ActionCancel, To: models.StatusCancelled},

		// Certificates only need auditor verification
		{DocType: models.DocTypeCertificateOfOrigin, From: models.StatusIssued, Role: models.RoleAuditor, Action: models.ActionVerify, To: models.StatusVerified},
		{DocType: models.DocTypeInsuranceCertificate, From: models.StatusIssued, Role: models.RoleAuditor, Action: models.ActionVerify, To: models.StatusVerified},
	}
}

// NewTable validates rules and builds lookup indexes. A malformed rule set is
// a ConfigurationError: callers treat it as fatal at startup.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{
		rules:    rules,
		byKey:    make(map[string]int),
		outgoing: make(map[string]bool),
	}

	knownTypes := make(map[models.DocType]bool)
	for _, dt := range models.DocTypes() {
		knownTypes[dt] = true
	}
	knownStatuses := map[models.DocStatus]bool{
		models.StatusIssued:    true,
		models.StatusVerified:  true,
		models.StatusShipped:   true,
		models.StatusReceived:  true,
		models.StatusPaid:      true,
		models.StatusCancelled: true,
	}
	knownRoles := map[models.Role]bool{
		models.RoleBuyer:   true,
		models.RoleSeller:  true,
		models.RoleBank:    true,
		models.RoleAuditor: true,
		models.RoleAdmin:   true,
	}

	var problems []string
	targets := make(map[string]bool) // (type, status) reachable as a To

	for i, r := range rules {
		if !knownTypes[r.DocType] {
			problems = append(problems, fmt.Sprintf("rule %d: unknown doc type %q", i, r.DocType))
			continue
		}
		if !knownStatuses[r.From] || !knownStatuses[r.To] {
			problems = append(problems, fmt.Sprintf("rule %d: unknown status %q -> %q", i, r.From, r.To))
			continue
		}
		if !knownRoles[r.Role] {
			problems = append(problems, fmt.Sprintf("rule %d: unknown role %q", i, r.Role))
			continue
		}
		if r.Action.IsSystem() {
			problems = append(problems, fmt.Sprintf("rule %d: system action %q cannot appear in the table", i, r.Action))
			continue
		}
		if r.Spawns != "" {
			if !knownTypes[r.Spawns] {
				problems = append(problems, fmt.Sprintf("rule %d: spawn target %q is not a known doc type", i, r.Spawns))
				continue
			}
			if r.To != r.From {
				problems = append(problems, fmt.Sprintf("rule %d: spawn rule must leave source status unchanged (%s -> %s)", i, r.From, r.To))
				continue
			}
		}
		k := key4(r.DocType, r.From, r.Role, r.Action)
		if _, dup := t.byKey[k]; dup {
			problems = append(problems, fmt.Sprintf("rule %d: duplicate rule for (%s, %s, %s, %s)", i, r.DocType, r.From, r.Role, r.Action))
			continue
		}
		t.byKey[k] = i
		t.outgoing[key2(r.DocType, r.From)] = true
		targets[key2(r.DocType, r.To)] = true
	}

	// Every From state must be reachable: either the type's initial status or
	// the target of some other rule. A dangling From is dead configuration.
	for i, r := range rules {
		if r.From == InitialStatus(r.DocType) {
			continue
		}
		if !targets[key2(r.DocType, r.From)] {
			problems = append(problems, fmt.Sprintf("rule %d: from-status %s is unreachable for %s", i, r.From, r.DocType))
		}
	}

	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}
	return t, nil
}

// MustTable builds the default table, panicking on a malformed rule set.
// Used at startup where a bad table is fatal by contract.
func MustTable() *Table {
	t, err := NewTable(DefaultRules())
	if err != nil {
		panic(err)
	}
	return t
}

// AllowedActions returns the actions a role may take on a document of the
// given type in the given status. An empty result means "nothing to do" for
// that role, which includes terminal statuses; it is not an error.
func (t *Table) AllowedActions(docType models.DocType, status models.DocStatus, role models.Role) []models.Action {
	actions := []models.Action{}
	for _, r := range t.rules {
		if r.DocType == docType && r.From == status && r.Role == role {
			actions = append(actions, r.Action)
		}
	}
	return actions
}

// Find returns the rule for (type, status, role, action), if any.
func (t *Table) Find(docType models.DocType, status models.DocStatus, role models.Role, action models.Action) (Rule, bool) {
	if i, ok := t.byKey[key4(docType, status, role, action)]; ok {
		return t.rules[i], true
	}
	return Rule{}, false
}

// IsTerminal reports whether no rule leads out of (type, status).
func (t *Table) IsTerminal(docType models.DocType, status models.DocStatus) bool {
	return !t.outgoing[key2(docType, status)]
}

// Replay folds a document's ledger actions through the table from the type's
// initial status and returns the resulting status. Creation markers (ISSUE)
// and system actions (INTEGRITY_ALERT) do not move state and are skipped.
// Role is deliberately ignored here: accepted entries already passed the role
// gate when they were written.
func (t *Table) Replay(docType models.DocType, actions []models.Action) (models.DocStatus, error) {
	status := InitialStatus(docType)
	for _, a := range actions {
		if a == models.ActionIssue || a.IsSystem() {
			continue
		}
		next, ok := t.step(docType, status, a)
		if !ok {
			return status, fmt.Errorf("replay: no rule for action %s on %s in status %s", a, docType, status)
		}
		status = next
	}
	return status, nil
}

func (t *Table) step(docType models.DocType, status models.DocStatus, action models.Action) (models.DocStatus, bool) {
	for _, r := range t.rules {
		if r.DocType == docType && r.From == status && r.Action == action {
			return r.To, true
		}
	}
	return status, false
}
