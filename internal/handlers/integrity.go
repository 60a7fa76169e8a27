package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tradefin-io/tradefingo/internal/models"
)

type checkDocumentRequest struct {
	DocumentID string `json:"documentId"`
}

// checkDocument queues an on-demand integrity check of one document. The
// caller never waits on storage: the result lands in integrity_logs and any
// problem raises an alert.
func (r *Router) checkDocument(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req, models.RoleAuditor, models.RoleBank); !ok {
		return
	}

	var body checkDocumentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.DocumentID == "" {
		respondError(w, http.StatusBadRequest, "documentId is required")
		return
	}

	var doc models.Document
	if err := r.db.WithContext(req.Context()).First(&doc, "document_id = ?", body.DocumentID).Error; err != nil {
		respondError(w, http.StatusNotFound, "Document not found")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := r.checker.CheckOne(ctx, doc.ID); err != nil {
			log.Printf("⚠️ On-demand integrity check failed for %s: %v", doc.ID, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"message":    "Integrity check queued",
		"documentId": doc.ID,
	})
}

type triggerSweepRequest struct {
	Mode models.IntegrityRunMode `json:"mode"`
}

// triggerSweep queues an on-demand incremental or full sweep.
func (r *Router) triggerSweep(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req, models.RoleAuditor, models.RoleAdmin); !ok {
		return
	}

	var body triggerSweepRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	switch body.Mode {
	case models.RunFull:
		r.scheduler.TriggerFull()
	case models.RunIncremental, "":
		r.scheduler.TriggerIncremental()
	default:
		respondError(w, http.StatusBadRequest, "mode must be incremental or full")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"message": "Sweep queued"})
}

// listRuns returns recent integrity sweeps, newest first.
func (r *Router) listRuns(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req, models.RoleAuditor, models.RoleBank); !ok {
		return
	}
	var runs []models.IntegrityRun
	if err := r.db.WithContext(req.Context()).Order("started_at DESC").Limit(50).Find(&runs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch runs")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// documentIntegrity returns the check history of one document.
func (r *Router) documentIntegrity(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req); !ok {
		return
	}
	var logs []models.IntegrityLog
	err := r.db.WithContext(req.Context()).
		Where("document_id = ?", mux.Vars(req)["id"]).
		Order("checked_at DESC").
		Limit(100).
		Find(&logs).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch integrity logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// listAlerts returns alerts, open ones only unless all=true.
func (r *Router) listAlerts(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req, models.RoleAuditor, models.RoleBank); !ok {
		return
	}

	if req.URL.Query().Get("all") == "true" {
		var out []models.IntegrityAlert
		if err := r.db.WithContext(req.Context()).Order("created_at DESC").Limit(200).Find(&out).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch alerts")
			return
		}
		respondJSON(w, http.StatusOK, out)
		return
	}

	open, err := r.sink.Open(req.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch alerts")
		return
	}
	respondJSON(w, http.StatusOK, open)
}

// resolveAlert marks an alert resolved by the calling auditor.
func (r *Router) resolveAlert(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleAuditor)
	if !ok {
		return
	}

	alert, err := r.sink.Resolve(req.Context(), mux.Vars(req)["id"], actor.ID)
	if err != nil {
		respondCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}
