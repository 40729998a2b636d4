package models

import "time"

// CancellationRecord is an audit row; it never changes Subscription.IsActive.
type CancellationRecord struct {
	ID             string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string    `gorm:"column:subscription_id;type:varchar(255);not null;uniqueIndex:idx_cancellation_sub_at,priority:1" json:"subscription_id"`
	CustomerID     string    `gorm:"column:customer_id;type:varchar(255);index" json:"customer_id"`
	CanceledAt     time.Time `gorm:"column:canceled_at;not null;uniqueIndex:idx_cancellation_sub_at,priority:2" json:"canceled_at"`
	Reason         string    `gorm:"column:reason;type:varchar(128)" json:"reason"`
	Feedback       string    `gorm:"column:feedback;type:varchar(128)" json:"feedback"`
	Comment        string    `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
}

func (CancellationRecord) TableName() string { return "cancellation_record" }
