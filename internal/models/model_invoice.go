package models

import "time"

// Invoice is appended on creation and updated in place on payment; never deleted.
type Invoice struct {
	InvoiceID      string     `gorm:"column:invoice_id;type:varchar(255);primaryKey" json:"invoice_id"`
	SubscriptionID string     `gorm:"column:subscription_id;type:varchar(255);index" json:"subscription_id"`
	CustomerID     string     `gorm:"column:customer_id;type:varchar(255);index;not null" json:"customer_id"`
	PeriodStart    *time.Time `gorm:"column:period_start" json:"period_start"`
	PeriodEnd      *time.Time `gorm:"column:period_end" json:"period_end"`
	Status         string     `gorm:"column:status;type:varchar(32)" json:"status"`
	AmountDue      int64      `gorm:"column:amount_due;not null;default:0" json:"amount_due"`
	AmountPaid     int64      `gorm:"column:amount_paid;not null;default:0" json:"amount_paid"`
	Currency       string     `gorm:"column:currency;type:varchar(16)" json:"currency"`
	PaidAt         *time.Time `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Invoice) TableName() string { return "invoice" }
