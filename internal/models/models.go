package models

// All lists every model owned by this service, in migration order.
func All() []any {
	return []any{
		&WebhookEvent{},
		&WebhookDeliveryLog{},
		&Customer{},
		&PendingConfirmation{},
		&Subscription{},
		&SubscriptionLog{},
		&Invoice{},
		&CancellationRecord{},
		&FailedTransaction{},
	}
}
