package types

// EventType is a billing provider webhook event type.
type EventType string

const (
	EventTypeCustomerCreated            EventType = "customer.created"
	EventTypeChargeSucceeded            EventType = "charge.succeeded"
	EventTypeInvoiceCreated             EventType = "invoice.created"
	EventTypeInvoicePaymentSucceeded    EventType = "invoice.payment_succeeded"
	EventTypeSubscriptionCreated        EventType = "customer.subscription.created"
	EventTypeSubscriptionUpdated        EventType = "customer.subscription.updated"
	EventTypeSubscriptionDeleted        EventType = "customer.subscription.deleted"
	EventTypePaymentIntentPaymentFailed EventType = "payment_intent.payment_failed"
)

// HandledEventTypes lists every event type that mutates local state. The
// webhook router refuses to start unless each one has a route.
var HandledEventTypes = []EventType{
	EventTypeCustomerCreated,
	EventTypeChargeSucceeded,
	EventTypeInvoiceCreated,
	EventTypeInvoicePaymentSucceeded,
	EventTypeSubscriptionCreated,
	EventTypeSubscriptionUpdated,
	EventTypeSubscriptionDeleted,
	EventTypePaymentIntentPaymentFailed,
}
