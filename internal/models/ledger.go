package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action is a lifecycle event recorded in the ledger.
type Action string

const (
	ActionIssue          Action = "ISSUE"
	ActionVerify         Action = "VERIFY"
	ActionShip           Action = "SHIP"
	ActionReceive        Action = "RECEIVE"
	ActionPay            Action = "PAY"
	ActionAmend          Action = "AMEND"
	ActionCancel         Action = "CANCEL"
	ActionIssueLOC       Action = "ISSUE_LOC"
	ActionIntegrityAlert Action = "INTEGRITY_ALERT"
)

// IsSystem reports whether the action is produced by the system rather than
// an actor-driven transition. System actions never move a document's status
// and are skipped when replaying history.
func (a Action) IsSystem() bool {
	return a == ActionIntegrityAlert
}

// LedgerEntry is one immutable event in a document's history. Entries are
// ordered by timestamp, ties broken by the monotonic Seq column. There is no
// update or delete path: corrections are new AMEND entries.
type LedgerEntry struct {
	ID            string            `gorm:"column:entry_id;primaryKey;type:uuid" json:"entryId"`
	Seq           int64             `gorm:"column:seq;autoIncrement;uniqueIndex" json:"seq"`
	DocumentID    string            `gorm:"column:document_id;type:uuid;not null;index" json:"documentId"`
	TransactionID *string           `gorm:"column:transaction_id;type:uuid;index" json:"transactionId,omitempty"`
	Action        Action            `gorm:"column:action;type:varchar(30);not null;index" json:"action"`
	ActorID       *string           `gorm:"column:actor_id;type:uuid" json:"actorId,omitempty"`
	ActorRole     Role              `gorm:"column:actor_role;type:varchar(20)" json:"actorRole"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt     time.Time         `gorm:"column:created_at;index" json:"createdAt"`
}

// TableName specifies the table name
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// BeforeCreate hook
func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
