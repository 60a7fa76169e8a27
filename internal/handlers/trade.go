package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/tradefin-io/tradefingo/internal/hasher"
	"github.com/tradefin-io/tradefingo/internal/lifecycle"
	"github.com/tradefin-io/tradefingo/internal/models"
)

// makeInlineDoc builds a metadata-only document created by the trade flow
// (no uploaded file). Its digest covers the issuance descriptor so the row
// itself is tamper-evident.
func makeInlineDoc(actor *models.Actor, docType models.DocType, docNumber string, counterparty *string) models.Document {
	now := time.Now().UTC()
	return models.Document{
		DocType:        docType,
		DocNumber:      docNumber,
		OwnerID:        actor.ID,
		CounterpartyID: counterparty,
		Status:         lifecycle.InitialStatus(docType),
		ContentDigest:  hasher.Digest([]byte(fmt.Sprintf("%s:%s:%s:%s", docType, docNumber, actor.ID, now.Format(time.RFC3339Nano)))),
		IssuedAt:       &now,
	}
}

type createPORequest struct {
	SellerID  string  `json:"sellerId"`
	DocNumber string  `json:"docNumber"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// createPO starts a trade: the buyer issues a purchase order and a pending
// transaction linking all later documents through an explicit foreign key.
func (r *Router) createPO(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleBuyer)
	if !ok {
		return
	}

	var body createPORequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if body.SellerID == "" || body.DocNumber == "" || body.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "sellerId, docNumber and a positive amount are required")
		return
	}

	var seller models.User
	if err := r.db.WithContext(req.Context()).First(&seller, "user_id = ?", body.SellerID).Error; err != nil {
		respondError(w, http.StatusNotFound, "Seller not found")
		return
	}

	doc := makeInlineDoc(actor, models.DocTypePurchaseOrder, body.DocNumber, &body.SellerID)
	tx := models.TradeTransaction{
		BuyerID:  actor.ID,
		SellerID: body.SellerID,
		Amount:   body.Amount,
		Currency: body.Currency,
		Status:   models.TxPending,
	}

	actorID := actor.ID
	err := r.db.WithContext(req.Context()).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(&tx).Error; err != nil {
			return err
		}
		if err := dbtx.Create(&doc).Error; err != nil {
			return err
		}
		return dbtx.Create(&models.LedgerEntry{
			DocumentID:    doc.ID,
			TransactionID: &tx.ID,
			Action:        models.ActionIssue,
			ActorID:       &actorID,
			ActorRole:     actor.Role,
			Metadata: map[string]interface{}{
				"amount":   body.Amount,
				"currency": body.Currency,
			},
		}).Error
	})
	if err != nil {
		log.Printf("❌ Failed to create PO: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"poId":          doc.ID,
		"transactionId": tx.ID,
		"status":        tx.Status,
	})
}

// transactionIDFor finds the trade transaction a document belongs to through
// its ISSUE ledger entry.
func (r *Router) transactionIDFor(req *http.Request, documentID string) *string {
	var entry models.LedgerEntry
	err := r.db.WithContext(req.Context()).
		Where("document_id = ? AND action = ?", documentID, models.ActionIssue).
		Order("created_at ASC, seq ASC").
		First(&entry).Error
	if err != nil {
		return nil
	}
	return entry.TransactionID
}

type issueLOCRequest struct {
	POID      string `json:"poId"`
	DocNumber string `json:"docNumber"`
}

// issueLOC lets a bank issue a letter of credit against a purchase order.
// The transition table spawns the LOC; the PO itself is unaffected.
func (r *Router) issueLOC(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleBank)
	if !ok {
		return
	}

	var body issueLOCRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	res, err := r.machine.Apply(req.Context(), lifecycle.ApplyInput{
		DocumentID:    body.POID,
		Action:        models.ActionIssueLOC,
		Actor:         *actor,
		TransactionID: r.transactionIDFor(req, body.POID),
		Metadata:      map[string]interface{}{"doc_number": body.DocNumber},
	})
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"locId": res.Spawned.ID,
		"po":    res.Document,
	})
}

type verifyDocumentsRequest struct {
	POID  string `json:"poId"`
	LOCID string `json:"locId"`
}

// verifyDocuments lets an auditor verify the PO and LOC pair, moving the
// transaction into progress.
func (r *Router) verifyDocuments(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleAuditor)
	if !ok {
		return
	}

	var body verifyDocumentsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	txID := r.transactionIDFor(req, body.POID)
	for _, docID := range []string{body.POID, body.LOCID} {
		if _, err := r.machine.Apply(req.Context(), lifecycle.ApplyInput{
			DocumentID:    docID,
			Action:        models.ActionVerify,
			Actor:         *actor,
			TransactionID: txID,
		}); err != nil {
			respondCoreError(w, err)
			return
		}
	}

	if txID != nil {
		r.updateTransactionStatus(req, *txID, models.TxInProgress)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Documents verified; transaction in progress",
	})
}

func (r *Router) updateTransactionStatus(req *http.Request, txID string, status models.TxStatus) {
	err := r.db.WithContext(req.Context()).
		Model(&models.TradeTransaction{}).
		Where("transaction_id = ?", txID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		log.Printf("⚠️ Failed to update transaction %s: %v", txID, err)
	}
}

type uploadBOLRequest struct {
	TransactionID string `json:"transactionId"`
	DocNumber     string `json:"docNumber"`
	TrackingID    string `json:"trackingId"`
}

// uploadBOL lets the seller issue a bill of lading and mark the goods
// shipped in one call: the BOL is created ISSUED and the SHIP transition
// applied on top, so replaying the ledger reproduces SHIPPED.
func (r *Router) uploadBOL(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleSeller)
	if !ok {
		return
	}

	var body uploadBOLRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var trade models.TradeTransaction
	if err := r.db.WithContext(req.Context()).First(&trade, "transaction_id = ?", body.TransactionID).Error; err != nil {
		respondError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if trade.SellerID != actor.ID {
		respondError(w, http.StatusForbidden, "Only the seller can upload a BOL for this transaction")
		return
	}

	doc := makeInlineDoc(actor, models.DocTypeBillOfLading, body.DocNumber, &trade.BuyerID)
	actorID := actor.ID
	err := r.db.WithContext(req.Context()).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(&doc).Error; err != nil {
			return err
		}
		return dbtx.Create(&models.LedgerEntry{
			DocumentID:    doc.ID,
			TransactionID: &trade.ID,
			Action:        models.ActionIssue,
			ActorID:       &actorID,
			ActorRole:     actor.Role,
			Metadata:      map[string]interface{}{"tracking_id": body.TrackingID},
		}).Error
	})
	if err != nil {
		log.Printf("❌ Failed to create BOL: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error")
		return
	}

	res, err := r.machine.Apply(req.Context(), lifecycle.ApplyInput{
		DocumentID:    doc.ID,
		Action:        models.ActionShip,
		Actor:         *actor,
		TransactionID: &trade.ID,
		Metadata:      map[string]interface{}{"tracking_id": body.TrackingID},
	})
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"bolId":    doc.ID,
		"document": res.Document,
	})
}

type issueInvoiceRequest struct {
	TransactionID string  `json:"transactionId"`
	DocNumber     string  `json:"docNumber"`
	Amount        float64 `json:"amount"`
}

// issueInvoice lets the seller issue the invoice for a transaction.
func (r *Router) issueInvoice(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleSeller)
	if !ok {
		return
	}

	var body issueInvoiceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var trade models.TradeTransaction
	if err := r.db.WithContext(req.Context()).First(&trade, "transaction_id = ?", body.TransactionID).Error; err != nil {
		respondError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if trade.SellerID != actor.ID {
		respondError(w, http.StatusForbidden, "Only the seller can issue invoices for this transaction")
		return
	}

	doc := makeInlineDoc(actor, models.DocTypeInvoice, body.DocNumber, &trade.BuyerID)
	actorID := actor.ID
	err := r.db.WithContext(req.Context()).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(&doc).Error; err != nil {
			return err
		}
		return dbtx.Create(&models.LedgerEntry{
			DocumentID:    doc.ID,
			TransactionID: &trade.ID,
			Action:        models.ActionIssue,
			ActorID:       &actorID,
			ActorRole:     actor.Role,
			Metadata:      map[string]interface{}{"amount": body.Amount},
		}).Error
	})
	if err != nil {
		log.Printf("❌ Failed to create invoice: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"invoiceId": doc.ID})
}

type markReceivedRequest struct {
	BOLID string `json:"bolId"`
}

// markReceived lets the buyer confirm receipt of the shipped goods.
func (r *Router) markReceived(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleBuyer)
	if !ok {
		return
	}

	var body markReceivedRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	res, err := r.machine.Apply(req.Context(), lifecycle.ApplyInput{
		DocumentID:    body.BOLID,
		Action:        models.ActionReceive,
		Actor:         *actor,
		TransactionID: r.transactionIDFor(req, body.BOLID),
	})
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"document": res.Document})
}

type payInvoiceRequest struct {
	InvoiceID string `json:"invoiceId"`
}

// payInvoice lets the bank pay the invoice and complete the transaction.
// Whether completion requires the BOL to be auditor-verified or merely
// received is a configuration knob of the deployment, not a hardcoded rule.
func (r *Router) payInvoice(w http.ResponseWriter, req *http.Request) {
	actor, ok := requireActor(w, req, models.RoleBank)
	if !ok {
		return
	}

	var body payInvoiceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	txID := r.transactionIDFor(req, body.InvoiceID)
	if txID != nil {
		if msg, ok := r.bolSatisfied(req, *txID); !ok {
			respondError(w, http.StatusConflict, msg)
			return
		}
	}

	res, err := r.machine.Apply(req.Context(), lifecycle.ApplyInput{
		DocumentID:    body.InvoiceID,
		Action:        models.ActionPay,
		Actor:         *actor,
		TransactionID: txID,
	})
	if err != nil {
		respondCoreError(w, err)
		return
	}

	if txID != nil {
		r.updateTransactionStatus(req, *txID, models.TxCompleted)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"document": res.Document,
		"message":  "Invoice paid; transaction completed",
	})
}

// bolSatisfied checks the transaction's bill of lading against the
// completion policy: RECEIVED always satisfies it, and when
// BOL_REQUIRE_VERIFY is set only VERIFIED does.
func (r *Router) bolSatisfied(req *http.Request, txID string) (string, bool) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(req.Context()).
		Where("transaction_id = ?", txID).
		Find(&entries).Error
	if err != nil {
		return "Failed to inspect transaction documents", false
	}

	docIDs := map[string]bool{}
	for _, e := range entries {
		docIDs[e.DocumentID] = true
	}

	for docID := range docIDs {
		var doc models.Document
		if err := r.db.WithContext(req.Context()).First(&doc, "document_id = ?", docID).Error; err != nil {
			continue
		}
		if doc.DocType != models.DocTypeBillOfLading {
			continue
		}
		if r.cfg.Lifecycle.BOLRequireVerify {
			if doc.Status == models.StatusVerified {
				return "", true
			}
			return fmt.Sprintf("Bill of lading %s must be verified before payment (status %s)", doc.DocNumber, doc.Status), false
		}
		if doc.Status == models.StatusReceived || doc.Status == models.StatusVerified {
			return "", true
		}
		return fmt.Sprintf("Bill of lading %s must be received before payment (status %s)", doc.DocNumber, doc.Status), false
	}
	return "No bill of lading found for this transaction", false
}

// getTransaction returns the transaction with its documents and ledger
// history, resolved through the explicit transaction_id column.
func (r *Router) getTransaction(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireActor(w, req); !ok {
		return
	}

	txID := mux.Vars(req)["id"]
	var trade models.TradeTransaction
	if err := r.db.WithContext(req.Context()).First(&trade, "transaction_id = ?", txID).Error; err != nil {
		respondError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	entries, err := r.ledger.ForTransaction(req.Context(), txID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch ledger")
		return
	}

	docIDs := []string{}
	seen := map[string]bool{}
	for _, e := range entries {
		if !seen[e.DocumentID] {
			seen[e.DocumentID] = true
			docIDs = append(docIDs, e.DocumentID)
		}
	}
	var docs []models.Document
	if len(docIDs) > 0 {
		if err := r.db.WithContext(req.Context()).Where("document_id IN ?", docIDs).Find(&docs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch documents")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transaction":   trade,
		"documents":     docs,
		"ledgerEntries": entries,
	})
}
