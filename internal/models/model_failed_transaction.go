package models

import "time"

// FailedTransaction is the failed payment audit trail. Never read for gating.
type FailedTransaction struct {
	ID              string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CustomerID      string    `gorm:"column:customer_id;type:varchar(255);index" json:"customer_id"`
	PaymentIntentID string    `gorm:"column:payment_intent_id;type:varchar(255)" json:"payment_intent_id"`
	InvoiceID       string    `gorm:"column:invoice_id;type:varchar(255)" json:"invoice_id"`
	FailureCode     string    `gorm:"column:failure_code;type:varchar(128)" json:"failure_code"`
	FailureMessage  string    `gorm:"column:failure_message;type:text" json:"failure_message"`
	Amount          int64     `gorm:"column:amount;not null;default:0" json:"amount"`
	Currency        string    `gorm:"column:currency;type:varchar(16)" json:"currency"`
	FailedAt        time.Time `gorm:"column:failed_at;not null" json:"failed_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func (FailedTransaction) TableName() string { return "failed_transaction" }
