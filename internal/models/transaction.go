package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxStatus is the coarse state of a trade transaction tying the PO, LOC,
// BOL and invoice documents of one deal together.
type TxStatus string

const (
	TxPending    TxStatus = "PENDING"
	TxInProgress TxStatus = "IN_PROGRESS"
	TxCompleted  TxStatus = "COMPLETED"
	TxDisputed   TxStatus = "DISPUTED"
)

// TradeTransaction groups the documents of one buyer/seller deal. Ledger
// entries reference it through an explicit transaction_id column, never by
// scanning metadata blobs.
type TradeTransaction struct {
	ID        string    `gorm:"column:transaction_id;primaryKey;type:uuid" json:"transactionId"`
	BuyerID   string    `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyerId"`
	SellerID  string    `gorm:"column:seller_id;type:uuid;not null;index" json:"sellerId"`
	Amount    float64   `gorm:"column:amount;not null" json:"amount"`
	Currency  string    `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status    TxStatus  `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name
func (TradeTransaction) TableName() string {
	return "trade_transactions"
}

// BeforeCreate hook
func (t *TradeTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
