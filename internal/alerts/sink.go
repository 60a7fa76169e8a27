// Package alerts persists integrity alerts and forwards them, best effort,
// to external notification channels.
package alerts

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/tradefin-io/tradefingo/internal/models"
)

var (
	// ErrNotFound means the alert id is unknown.
	ErrNotFound = errors.New("alerts: alert not found")
	// ErrAlreadyResolved means the alert was resolved before.
	ErrAlreadyResolved = errors.New("alerts: alert already resolved")
)

// Notifier forwards an alert to an external channel (email, connected
// auditor sessions). Failures are the notifier's problem: they are logged
// and never fail the recording of the alert.
type Notifier interface {
	Notify(alert *models.IntegrityAlert) error
}

// Sink records and resolves integrity alerts.
type Sink struct {
	db        *gorm.DB
	notifiers []Notifier
}

// NewSink creates an alert sink with optional notification channels.
func NewSink(db *gorm.DB, notifiers ...Notifier) *Sink {
	return &Sink{db: db, notifiers: notifiers}
}

// Record persists the alert unless an unresolved alert for the same
// (document, type) already exists, in which case the existing one is
// returned and no duplicate is created. Notification only fires for newly
// created alerts, in the background.
func (s *Sink) Record(ctx context.Context, alert *models.IntegrityAlert) (*models.IntegrityAlert, bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.IntegrityAlert
		err := tx.Where("document_id = ? AND alert_type = ? AND resolved = false",
			alert.DocumentID, alert.AlertType).First(&existing).Error
		if err == nil {
			*alert = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		go s.forward(*alert)
	}
	return alert, created, nil
}

// forward pushes the alert to every channel. Best effort: a dead SMTP server
// must not take integrity checking down with it.
func (s *Sink) forward(alert models.IntegrityAlert) {
	for _, n := range s.notifiers {
		if err := n.Notify(&alert); err != nil {
			log.Printf("⚠️ Alert notification failed for alert %s: %v", alert.ID, err)
		}
	}
}

// Resolve marks the alert resolved by the given user. Resolving twice is an
// idempotency violation surfaced as ErrAlreadyResolved.
func (s *Sink) Resolve(ctx context.Context, alertID, resolverID string) (*models.IntegrityAlert, error) {
	var alert models.IntegrityAlert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&alert, "alert_id = ?", alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if alert.Resolved {
			return ErrAlreadyResolved
		}
		now := time.Now().UTC()
		alert.Resolved = true
		alert.ResolvedBy = &resolverID
		alert.ResolvedAt = &now
		return tx.Model(&models.IntegrityAlert{}).
			Where("alert_id = ?", alertID).
			Updates(map[string]interface{}{
				"resolved":    true,
				"resolved_by": resolverID,
				"resolved_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Open lists unresolved alerts, newest first.
func (s *Sink) Open(ctx context.Context) ([]models.IntegrityAlert, error) {
	var out []models.IntegrityAlert
	err := s.db.WithContext(ctx).
		Where("resolved = false").
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// ForDocument lists all alerts for one document, newest first.
func (s *Sink) ForDocument(ctx context.Context, documentID string) ([]models.IntegrityAlert, error) {
	var out []models.IntegrityAlert
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
