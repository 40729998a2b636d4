package models

import (
	"time"

	"github.com/fatflowers/craftbill/pkg/types"
)

// Subscription is the derived subscription state, one row per provider customer.
// Status is a label derived alongside IsActive, not an independent source of truth.
type Subscription struct {
	ID             string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CustomerID     string `gorm:"column:customer_id;type:varchar(255);not null;uniqueIndex" json:"customer_id"`
	SubscriptionID string `gorm:"column:subscription_id;type:varchar(255);not null;index" json:"subscription_id"`
	IsActive       bool   `gorm:"column:is_active;not null;default:false" json:"is_active"`
	Interval       string `gorm:"column:billing_interval;type:varchar(32)" json:"interval"`
	// SubscriptionStartDate/EndDate bound the current billing period.
	SubscriptionStartDate *time.Time               `gorm:"column:subscription_start_date" json:"subscription_start_date"`
	SubscriptionEndDate   *time.Time               `gorm:"column:subscription_end_date" json:"subscription_end_date"`
	TrialStart            *time.Time               `gorm:"column:trial_start" json:"trial_start"`
	TrialEnd              *time.Time               `gorm:"column:trial_end" json:"trial_end"`
	Status                types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;default:''" json:"status"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// InTrial reports whether the row is labelled trialing and the trial has not ended at now.
func (s *Subscription) InTrial(now time.Time) bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusTrialing &&
		s.TrialEnd != nil &&
		s.TrialEnd.After(now)
}

// PeriodLapsed reports whether the current billing period ended before now.
// A missing period counts as lapsed.
func (s *Subscription) PeriodLapsed(now time.Time) bool {
	if s == nil || s.SubscriptionEndDate == nil {
		return true
	}
	return now.After(*s.SubscriptionEndDate)
}
