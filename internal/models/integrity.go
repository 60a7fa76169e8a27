package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IntegrityStatus is the outcome of a single document integrity check.
type IntegrityStatus string

const (
	IntegrityOK           IntegrityStatus = "OK"
	IntegrityHashMismatch IntegrityStatus = "HASH_MISMATCH"
	IntegrityFileMissing  IntegrityStatus = "FILE_MISSING"
)

// AlertType classifies an integrity alert.
type AlertType string

const (
	AlertHashMismatch AlertType = "hash_mismatch"
	AlertFileMissing  AlertType = "file_missing"
)

// AlertSeverity is derived from the check outcome: a mismatch means the
// stored bytes changed under us (critical), a missing file may still be a
// storage problem (high).
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
)

// IntegrityLog records the result of one integrity check of one document.
// Every check writes a row, including repeated OK checks; rows are never
// deleted (compliance trail).
type IntegrityLog struct {
	ID             string          `gorm:"column:log_id;primaryKey;type:uuid" json:"logId"`
	DocumentID     string          `gorm:"column:document_id;type:uuid;not null;index" json:"documentId"`
	Status         IntegrityStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	StoredDigest   string          `gorm:"column:stored_digest;type:varchar(64)" json:"storedDigest"`
	ComputedDigest string          `gorm:"column:computed_digest;type:varchar(64)" json:"computedDigest"`
	Detail         string          `gorm:"column:detail" json:"detail,omitempty"`
	AlertCreated   bool            `gorm:"column:alert_created;default:false" json:"alertCreated"`
	CheckedAt      time.Time       `gorm:"column:checked_at;not null;index" json:"checkedAt"`
}

// TableName specifies the table name
func (IntegrityLog) TableName() string {
	return "integrity_logs"
}

// BeforeCreate hook
func (l *IntegrityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CheckedAt.IsZero() {
		l.CheckedAt = time.Now().UTC()
	}
	return nil
}

// IntegrityAlert is raised when a check finds drift between recorded and
// actual content. At most one unresolved alert exists per (document, type);
// resolution is an explicit auditor action and alerts are never deleted.
type IntegrityAlert struct {
	ID         string        `gorm:"column:alert_id;primaryKey;type:uuid" json:"alertId"`
	DocumentID string        `gorm:"column:document_id;type:uuid;not null;index:idx_alert_doc_type" json:"documentId"`
	AlertType  AlertType     `gorm:"column:alert_type;type:varchar(30);not null;index:idx_alert_doc_type" json:"alertType"`
	Detail     string        `gorm:"column:detail" json:"detail"`
	Severity   AlertSeverity `gorm:"column:severity;type:varchar(10);not null" json:"severity"`
	Resolved   bool          `gorm:"column:resolved;default:false;index" json:"resolved"`
	ResolvedBy *string       `gorm:"column:resolved_by;type:uuid" json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time    `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt  time.Time     `gorm:"column:created_at;index" json:"createdAt"`
}

// TableName specifies the table name
func (IntegrityAlert) TableName() string {
	return "integrity_alerts"
}

// BeforeCreate hook
func (a *IntegrityAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// SeverityFor maps a non-OK check outcome to an alert severity.
func SeverityFor(status IntegrityStatus) AlertSeverity {
	if status == IntegrityHashMismatch {
		return SeverityCritical
	}
	return SeverityHigh
}

// AlertTypeFor maps a non-OK check outcome to an alert type.
func AlertTypeFor(status IntegrityStatus) AlertType {
	if status == IntegrityHashMismatch {
		return AlertHashMismatch
	}
	return AlertFileMissing
}

// IntegrityRunMode distinguishes the frequent incremental sweep from the
// rarer full sweep and one-off on-demand checks.
type IntegrityRunMode string

const (
	RunIncremental IntegrityRunMode = "incremental"
	RunFull        IntegrityRunMode = "full"
	RunOnDemand    IntegrityRunMode = "on_demand"
)

// IntegrityRun records one sweep of the integrity checker: counts per
// outcome plus the watermark incremental runs resume from.
type IntegrityRun struct {
	ID         string           `gorm:"column:run_id;primaryKey;type:uuid" json:"runId"`
	Mode       IntegrityRunMode `gorm:"column:mode;type:varchar(20);not null;index" json:"mode"`
	StartedAt  time.Time        `gorm:"column:started_at;not null" json:"startedAt"`
	FinishedAt *time.Time       `gorm:"column:finished_at" json:"finishedAt,omitempty"`
	Watermark  time.Time        `gorm:"column:watermark" json:"watermark"`
	Checked    int              `gorm:"column:checked;default:0" json:"checked"`
	OKCount    int              `gorm:"column:ok_count;default:0" json:"okCount"`
	Mismatches int              `gorm:"column:mismatches;default:0" json:"mismatches"`
	Missing    int              `gorm:"column:missing;default:0" json:"missing"`
	Errors     int              `gorm:"column:errors;default:0" json:"errors"`
}

// TableName specifies the table name
func (IntegrityRun) TableName() string {
	return "integrity_runs"
}

// BeforeCreate hook
func (r *IntegrityRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
