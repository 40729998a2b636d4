package types

import "time"

// SubscriptionStatus is the derived label stored next to Subscription.IsActive.
// The empty value means "no subscription" and is also the terminal label.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = ""
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
)

// Provider-side subscription statuses we branch on.
const (
	ProviderStatusActive   = "active"
	ProviderStatusTrialing = "trialing"
	ProviderStatusCanceled = "canceled"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonTrialStarted SubscriptionChangeReason = "trial_started"
	SubscriptionChangeReasonActivated    SubscriptionChangeReason = "activated"
	SubscriptionChangeReasonReconciled   SubscriptionChangeReason = "reconciled"
	SubscriptionChangeReasonDeleted      SubscriptionChangeReason = "deleted"
)

// TrialStatus summarises the trial window for API consumers.
type TrialStatus struct {
	IsTrialing    bool       `json:"is_trialing"`
	EndsAt        *time.Time `json:"ends_at"`
	DaysRemaining int64      `json:"days_remaining"`
}
