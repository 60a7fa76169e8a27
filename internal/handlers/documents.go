package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/tradefin-io/tradefingo/internal/hasher"
	"github.com/tradefin-io/tradefingo/internal/lifecycle"
	"github.com/tradefin-io/tradefingo/internal/models"
)

const maxUploadBytes = 32 << 20 // 32MB

// uploadDocument receives a document file, stores its content, records the
// digest and creates the document in its type's initial status together with
// the ISSUE ledger entry.
func (r *Router) uploadDocument(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req)
	if !ok {
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	docType := models.DocType(req.FormValue("doc_type"))
	docNumber := req.FormValue("doc_number")
	if docType == "" || docNumber == "" {
		respondError(w, http.StatusBadRequest, "doc_type and doc_number are required")
		return
	}
	valid := false
	for _, dt := range models.DocTypes() {
		if dt == docType {
			valid = true
			break
		}
	}
	if !valid {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown doc_type %q", docType))
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	location := fmt.Sprintf("%s/%s_%s",
		strings.ToLower(string(docType)), uuid.NewString()[:8], filepath.Base(header.Filename))
	if err := r.backend.Write(location, data); err != nil {
		log.Printf("❌ Failed to store document content: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	now := time.Now().UTC()
	doc := models.Document{
		DocType:         docType,
		DocNumber:       docNumber,
		OwnerID:         actor.ID,
		Status:          lifecycle.InitialStatus(docType),
		ContentDigest:   hasher.Digest(data),
		ContentLocation: location,
		IssuedAt:        &now,
	}
	if cp := req.FormValue("counterparty_id"); cp != "" {
		doc.CounterpartyID = &cp
	}

	actorID := actor.ID
	err = r.db.WithContext(req.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return tx.Create(&models.LedgerEntry{
			DocumentID: doc.ID,
			Action:     models.ActionIssue,
			ActorID:    &actorID,
			ActorRole:  actor.Role,
			Metadata: map[string]interface{}{
				"filename": header.Filename,
				"size":     len(data),
			},
		}).Error
	})
	if err != nil {
		log.Printf("❌ Failed to save document: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error")
		return
	}

	log.Printf("📄 Document uploaded: %s (%s %s) by %s", doc.ID, doc.DocType, doc.DocNumber, actor.ID)
	respondJSON(w, http.StatusCreated, doc)
}

// listDocuments returns recent documents
func (r *Router) listDocuments(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req); !ok {
		return
	}
	var docs []models.Document
	q := r.db.WithContext(req.Context()).Order("created_at DESC").Limit(100)
	if dt := req.URL.Query().Get("doc_type"); dt != "" {
		q = q.Where("doc_type = ?", dt)
	}
	if err := q.Find(&docs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch documents")
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// getDocument returns one document
func (r *Router) getDocument(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req); !ok {
		return
	}
	var doc models.Document
	if err := r.db.WithContext(req.Context()).First(&doc, "document_id = ?", mux.Vars(req)["id"]).Error; err != nil {
		respondError(w, http.StatusNotFound, "Document not found")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// allowedActions returns what the calling role may do with the document in
// its current status. An empty list means nothing to do, not forbidden.
func (r *Router) allowedActions(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req)
	if !ok {
		return
	}
	actions, err := r.machine.AllowedActionsFor(req.Context(), mux.Vars(req)["id"], actor.Role)
	if err != nil {
		respondCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"role":    actor.Role,
		"actions": actions,
	})
}

type applyActionRequest struct {
	Action   models.Action          `json:"action"`
	Metadata map[string]interface{} `json:"metadata"`
}

// applyAction applies one lifecycle transition to the document.
func (r *Router) applyAction(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req)
	if !ok {
		return
	}

	var body applyActionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if body.Action == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}

	res, err := r.machine.Apply(req.Context(), lifecycle.ApplyInput{
		DocumentID: mux.Vars(req)["id"],
		Action:     body.Action,
		Actor:      *actor,
		Metadata:   body.Metadata,
	})
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"document": res.Document,
		"spawned":  res.Spawned,
		"entryId":  res.Entry.ID,
	})
}

// documentLedger returns the ordered ledger history of one document.
func (r *Router) documentLedger(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req); !ok {
		return
	}
	entries, err := r.ledger.EntriesFor(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch ledger")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// verifyHistory replays the document's ledger against the transition table
// and reports whether it reproduces the stored status.
func (r *Router) verifyHistory(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req, models.RoleAuditor, models.RoleBank); !ok {
		return
	}
	check, err := r.machine.VerifyHistory(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, check)
}

// ledgerWindow returns ledger entries in a [since, until) window.
func (r *Router) ledgerWindow(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req, models.RoleAuditor, models.RoleBank); !ok {
		return
	}

	q := req.URL.Query()
	since := time.Time{}
	until := time.Now().UTC().Add(time.Second)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		until = t
	}

	entries, err := r.ledger.EntriesInWindow(req.Context(), since, until)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch ledger")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
