// Package integrity recomputes stored content digests and detects drift
// between what was uploaded and what storage returns today.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tradefin-io/tradefingo/internal/alerts"
	"github.com/tradefin-io/tradefingo/internal/config"
	"github.com/tradefin-io/tradefingo/internal/hasher"
	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/storage"
)

// ErrUnknownDocument means the referenced document does not exist.
var ErrUnknownDocument = errors.New("integrity: unknown document")

// Checker verifies document content against recorded digests.
type Checker struct {
	db      *gorm.DB
	backend storage.Backend
	sink    *alerts.Sink
	cfg     config.IntegrityConfig
}

// NewChecker creates an integrity checker.
func NewChecker(db *gorm.DB, backend storage.Backend, sink *alerts.Sink, cfg config.IntegrityConfig) *Checker {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Checker{db: db, backend: backend, sink: sink, cfg: cfg}
}

// CheckOne verifies a single document and records the result. The digest
// comparison uses the document snapshot read at the start of the check, and
// the result row names both digests, so a comparison that raced a transition
// is self-describing rather than silently wrong.
//
// A missing file is an outcome (FILE_MISSING), not an error; transient
// storage failures are retried first and only recorded as FILE_MISSING once
// retries are exhausted.
func (c *Checker) CheckOne(ctx context.Context, documentID string) (*models.IntegrityLog, error) {
	var doc models.Document
	if err := c.db.WithContext(ctx).First(&doc, "document_id = ?", documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownDocument
		}
		return nil, err
	}

	checkLog := &models.IntegrityLog{
		DocumentID:   doc.ID,
		StoredDigest: doc.ContentDigest,
		CheckedAt:    time.Now().UTC(),
	}

	switch {
	case !doc.HasContent():
		// Inline documents created by the trade flow carry no file.
		checkLog.Status = models.IntegrityOK
		checkLog.Detail = "metadata-only document; no stored content to verify"

	case doc.ContentDigest == "":
		checkLog.Status = models.IntegrityFileMissing
		checkLog.Detail = "document has no recorded digest"

	default:
		data, err := c.readWithRetry(ctx, doc.ContentLocation)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			checkLog.Status = models.IntegrityFileMissing
			checkLog.Detail = fmt.Sprintf("content not found at %s", doc.ContentLocation)
		case err != nil:
			checkLog.Status = models.IntegrityFileMissing
			checkLog.Detail = fmt.Sprintf("storage unavailable after %d attempts: %v", c.cfg.RetryAttempts, err)
		default:
			checkLog.ComputedDigest = hasher.Digest(data)
			if checkLog.ComputedDigest == doc.ContentDigest {
				checkLog.Status = models.IntegrityOK
			} else {
				checkLog.Status = models.IntegrityHashMismatch
				checkLog.Detail = fmt.Sprintf("recorded %s, recomputed %s", doc.ContentDigest, checkLog.ComputedDigest)
			}
		}
	}

	if checkLog.Status != models.IntegrityOK {
		created, err := c.raiseAlert(ctx, &doc, checkLog)
		if err != nil {
			// The check result still gets recorded; alerting is reported
			// alongside it rather than failing the whole check.
			log.Printf("⚠️ Failed to raise alert for document %s: %v", doc.ID, err)
		}
		checkLog.AlertCreated = created
	}

	if err := c.db.WithContext(ctx).Create(checkLog).Error; err != nil {
		return nil, fmt.Errorf("record integrity result: %w", err)
	}
	return checkLog, nil
}

// readWithRetry reads content, retrying transient storage errors with a
// doubling backoff. ErrNotFound is definitive and never retried.
func (c *Checker) readWithRetry(ctx context.Context, location string) ([]byte, error) {
	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		data, err := c.backend.Read(location)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// raiseAlert records an alert for a failed check and, when the alert is new
// (no unresolved alert for the same document and outcome), appends the
// INTEGRITY_ALERT ledger entry. A re-check of a known, still-unresolved
// problem produces another result row but no second alert and no ledger spam.
func (c *Checker) raiseAlert(ctx context.Context, doc *models.Document, checkLog *models.IntegrityLog) (bool, error) {
	alert := &models.IntegrityAlert{
		DocumentID: doc.ID,
		AlertType:  models.AlertTypeFor(checkLog.Status),
		Severity:   models.SeverityFor(checkLog.Status),
		Detail: fmt.Sprintf("%s on %s %s: %s",
			checkLog.Status, doc.DocType, doc.DocNumber, checkLog.Detail),
	}

	alert, created, err := c.sink.Record(ctx, alert)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	entry := &models.LedgerEntry{
		DocumentID: doc.ID,
		Action:     models.ActionIntegrityAlert,
		// System action: no actor
		Metadata: map[string]interface{}{
			"outcome":         string(checkLog.Status),
			"stored_digest":   checkLog.StoredDigest,
			"computed_digest": checkLog.ComputedDigest,
			"alert_id":        alert.ID,
		},
	}
	if err := c.db.WithContext(ctx).Create(entry).Error; err != nil {
		return true, fmt.Errorf("append integrity ledger entry: %w", err)
	}
	return true, nil
}

// CheckIncremental sweeps documents touched since the last recorded
// watermark. This is the frequent cadence.
func (c *Checker) CheckIncremental(ctx context.Context) (*models.IntegrityRun, error) {
	since := c.lastWatermark(ctx)
	return c.sweep(ctx, models.RunIncremental, &since)
}

// CheckFull sweeps every document. This is the rare cadence.
func (c *Checker) CheckFull(ctx context.Context) (*models.IntegrityRun, error) {
	return c.sweep(ctx, models.RunFull, nil)
}

// lastWatermark returns the watermark of the most recent finished sweep, or
// the zero time when none exists (first incremental run checks everything).
func (c *Checker) lastWatermark(ctx context.Context) time.Time {
	var run models.IntegrityRun
	err := c.db.WithContext(ctx).
		Where("finished_at IS NOT NULL").
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		return time.Time{}
	}
	return run.Watermark
}

// sweep iterates documents in created_at order, checking batches with
// bounded parallelism. One document's failure never aborts the batch. The
// run row's watermark is checkpointed after every batch, so an interrupted
// sweep resumes without rechecking what it already covered and leaves all
// written result rows intact.
func (c *Checker) sweep(ctx context.Context, mode models.IntegrityRunMode, since *time.Time) (*models.IntegrityRun, error) {
	startedAt := time.Now().UTC()
	run := &models.IntegrityRun{
		Mode:      mode,
		StartedAt: startedAt,
		Watermark: startedAt,
	}
	if err := c.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("record integrity run: %w", err)
	}

	log.Printf("🔍 Integrity sweep (%s) starting", mode)

	var mu sync.Mutex
	cursor := time.Time{}
	interrupted := false
	for {
		if err := ctx.Err(); err != nil {
			log.Printf("🛑 Integrity sweep (%s) interrupted: %v", mode, err)
			interrupted = true
			break
		}

		q := c.db.WithContext(ctx).
			Where("created_at > ?", cursor).
			Order("created_at ASC").
			Limit(c.cfg.BatchSize)
		if since != nil {
			q = q.Where("updated_at >= ?", *since)
		}

		var docs []models.Document
		if err := q.Find(&docs).Error; err != nil {
			return run, fmt.Errorf("list documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		cursor = docs[len(docs)-1].CreatedAt

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Parallelism)
		for _, doc := range docs {
			doc := doc
			g.Go(func() error {
				checkLog, err := c.CheckOne(gctx, doc.ID)
				mu.Lock()
				defer mu.Unlock()
				run.Checked++
				if err != nil {
					run.Errors++
					log.Printf("⚠️ Integrity check failed for document %s: %v", doc.ID, err)
					return nil // one bad document never aborts the batch
				}
				switch checkLog.Status {
				case models.IntegrityOK:
					run.OKCount++
				case models.IntegrityHashMismatch:
					run.Mismatches++
				case models.IntegrityFileMissing:
					run.Missing++
				}
				return nil
			})
		}
		_ = g.Wait()

		// Checkpoint progress so an interrupted full sweep can pick up here.
		run.Watermark = cursor
		c.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
			"watermark":  run.Watermark,
			"checked":    run.Checked,
			"ok_count":   run.OKCount,
			"mismatches": run.Mismatches,
			"missing":    run.Missing,
			"errors":     run.Errors,
		})
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	// A completed sweep covers everything up to its start time. An
	// interrupted one only vouches for documents up to its cursor, so the
	// next incremental run re-covers the gap.
	if interrupted {
		run.Watermark = cursor
	} else {
		run.Watermark = startedAt
	}
	if err := c.db.WithContext(context.Background()).Model(run).Updates(map[string]interface{}{
		"finished_at": now,
		"watermark":   run.Watermark,
		"checked":     run.Checked,
		"ok_count":    run.OKCount,
		"mismatches":  run.Mismatches,
		"missing":     run.Missing,
		"errors":      run.Errors,
	}).Error; err != nil {
		return run, fmt.Errorf("finalize integrity run: %w", err)
	}

	log.Printf("✅ Integrity sweep (%s) finished: %d checked, %d ok, %d mismatch, %d missing, %d errors",
		mode, run.Checked, run.OKCount, run.Mismatches, run.Missing, run.Errors)
	return run, nil
}
