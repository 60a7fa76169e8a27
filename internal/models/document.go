package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocType enumerates the trade-finance document kinds tracked by the system.
type DocType string

const (
	DocTypePurchaseOrder        DocType = "PURCHASE_ORDER"
	DocTypeLetterOfCredit       DocType = "LETTER_OF_CREDIT"
	DocTypeBillOfLading         DocType = "BILL_OF_LADING"
	DocTypeInvoice              DocType = "INVOICE"
	DocTypeCertificateOfOrigin  DocType = "CERTIFICATE_OF_ORIGIN"
	DocTypeInsuranceCertificate DocType = "INSURANCE_CERTIFICATE"
)

// DocTypes lists every known document type.
func DocTypes() []DocType {
	return []DocType{
		DocTypePurchaseOrder,
		DocTypeLetterOfCredit,
		DocTypeBillOfLading,
		DocTypeInvoice,
		DocTypeCertificateOfOrigin,
		DocTypeInsuranceCertificate,
	}
}

// DocStatus is a document's position in its type's lifecycle.
type DocStatus string

const (
	StatusIssued    DocStatus = "ISSUED"
	StatusVerified  DocStatus = "VERIFIED"
	StatusShipped   DocStatus = "SHIPPED"
	StatusReceived  DocStatus = "RECEIVED"
	StatusPaid      DocStatus = "PAID"
	StatusCancelled DocStatus = "CANCELLED"
)

// Document is a tracked trade-finance document. Documents are created on
// upload and only ever mutated through the lifecycle state machine; they are
// never deleted (history lives in the ledger).
type Document struct {
	ID              string     `gorm:"column:document_id;primaryKey;type:uuid" json:"documentId"`
	DocType         DocType    `gorm:"column:doc_type;type:varchar(30);not null;index" json:"docType"`
	DocNumber       string     `gorm:"column:doc_number;not null" json:"docNumber"`
	OwnerID         string     `gorm:"column:owner_id;type:uuid;not null;index" json:"ownerId"`
	CounterpartyID  *string    `gorm:"column:counterparty_id;type:uuid" json:"counterpartyId,omitempty"`
	Status          DocStatus  `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	ContentDigest   string     `gorm:"column:content_digest;type:varchar(64)" json:"contentDigest"`
	ContentLocation string     `gorm:"column:content_location" json:"contentLocation"`
	IssuedAt        *time.Time `gorm:"column:issued_at" json:"issuedAt,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;index" json:"updatedAt"`
}

// TableName specifies the table name
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate hook
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// HasContent reports whether the document carries an uploaded file. Documents
// created inline by the trade flow are metadata-only and have nothing to
// verify.
func (d *Document) HasContent() bool {
	return d.ContentLocation != ""
}
