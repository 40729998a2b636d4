package models

import "time"

// PendingConfirmation holds a confirmation that arrived before the customer
// link existed. EnsureLink consumes it when the link is created.
type PendingConfirmation struct {
	CustomerID string    `gorm:"column:customer_id;type:varchar(255);primaryKey" json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PendingConfirmation) TableName() string { return "customer_pending_confirmation" }
