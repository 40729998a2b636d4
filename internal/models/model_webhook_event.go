package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the dedup ledger. EventID is the provider event id and the
// primary key; a row exists only for events whose handling committed.
type WebhookEvent struct {
	EventID    string         `gorm:"column:event_id;type:varchar(255);primaryKey" json:"event_id"`
	Type       string         `gorm:"column:type;type:varchar(128);not null;index" json:"type"`
	ReceivedAt time.Time      `gorm:"column:received_at;not null" json:"received_at"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
