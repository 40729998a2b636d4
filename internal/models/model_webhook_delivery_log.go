package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusReceived     WebhookDeliveryStatus = "received"
	WebhookDeliveryStatusDuplicate    WebhookDeliveryStatus = "duplicate"
	WebhookDeliveryStatusHandled      WebhookDeliveryStatus = "handled"
	WebhookDeliveryStatusHandleFailed WebhookDeliveryStatus = "handle_failed"
	WebhookDeliveryStatusBadSignature WebhookDeliveryStatus = "bad_signature"
)

// WebhookDeliveryLog records each delivery attempt, including duplicates and
// rejected signatures. Troubleshooting only.
type WebhookDeliveryLog struct {
	ID         string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID    string                `gorm:"column:event_id;type:varchar(255);index" json:"event_id"`
	EventType  string                `gorm:"column:event_type;type:varchar(128)" json:"event_type"`
	TraceID    string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Data       datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result     *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status     WebhookDeliveryStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	ReceivedAt time.Time             `gorm:"column:received_at" json:"received_at"`
	CreatedAt  time.Time             `json:"created_at"`
}

func (WebhookDeliveryLog) TableName() string { return "webhook_delivery_log" }
