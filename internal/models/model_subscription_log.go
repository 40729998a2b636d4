package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/craftbill/pkg/types"
)

// SubscriptionLog records changes to subscription rows.
// Use case: troubleshooting out-of-order webhook deliveries.
type SubscriptionLog struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CustomerID string `gorm:"column:customer_id;type:varchar(255);index;not null" json:"customer_id"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason    `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	// Extra carries the triggering event id and source.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
