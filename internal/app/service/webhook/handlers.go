package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/craftbill/internal/app/service/reconcile"
	"github.com/fatflowers/craftbill/internal/models"
	stripeclient "github.com/fatflowers/craftbill/internal/platform/stripe"
	"github.com/fatflowers/craftbill/pkg/config"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/types"
)

// MetadataAccountID is the customer metadata key carrying the internal account id.
const MetadataAccountID = "account_id"

type CustomerStore interface {
	EnsureLink(ctx context.Context, tx *gorm.DB, accountID, customerID string, contact models.ContactFields) (*models.Customer, bool, error)
	UpsertContact(ctx context.Context, tx *gorm.DB, customerID string, contact models.ContactFields) error
	MarkConfirmed(ctx context.Context, tx *gorm.DB, customerID string) error
}

type SubscriptionStore interface {
	Upsert(ctx context.Context, tx *gorm.DB, m *models.Subscription, reason types.SubscriptionChangeReason, extra map[string]any) (*models.Subscription, error)
	Deactivate(ctx context.Context, tx *gorm.DB, subscriptionID string, extra map[string]any) (int64, error)
}

type BillingStore interface {
	InsertInvoice(ctx context.Context, tx *gorm.DB, inv *models.Invoice) (bool, error)
	ApplyPayment(ctx context.Context, tx *gorm.DB, inv *models.Invoice) error
	InsertCancellation(ctx context.Context, tx *gorm.DB, rec *models.CancellationRecord) error
	AppendFailedTransaction(ctx context.Context, tx *gorm.DB, ft *models.FailedTransaction) error
}

type Reconciler interface {
	Reconcile(ctx context.Context, subscriptionID string) (*reconcile.Result, error)
}

// Handlers holds one idempotent mutation per handled event type. None of them
// reads the previous row state to decide what to write.
type Handlers struct {
	cfg        *config.Config
	customers  CustomerStore
	subs       SubscriptionStore
	billing    BillingStore
	reconciler Reconciler
	log        *zap.SugaredLogger
}

func NewHandlers(cfg *config.Config, customers CustomerStore, subs SubscriptionStore, billing BillingStore, reconciler Reconciler, log *zap.SugaredLogger) *Handlers {
	return &Handlers{cfg: cfg, customers: customers, subs: subs, billing: billing, reconciler: reconciler, log: log}
}

// Routes is the dispatch table.
func (h *Handlers) Routes() map[types.EventType]HandlerFunc {
	return map[types.EventType]HandlerFunc{
		types.EventTypeCustomerCreated:            h.customerCreated,
		types.EventTypeChargeSucceeded:            h.chargeSucceeded,
		types.EventTypeInvoiceCreated:             h.invoiceCreated,
		types.EventTypeInvoicePaymentSucceeded:    h.invoicePaymentSucceeded,
		types.EventTypeSubscriptionCreated:        h.subscriptionCreated,
		types.EventTypeSubscriptionUpdated:        h.subscriptionUpdated,
		types.EventTypeSubscriptionDeleted:        h.subscriptionDeleted,
		types.EventTypePaymentIntentPaymentFailed: h.paymentFailed,
	}
}

func decode[T any](ev *stripeclient.Event) (*T, error) {
	var out T
	if len(ev.Object) == 0 {
		return nil, fmt.Errorf("event %s has no data object", ev.ID)
	}
	if err := json.Unmarshal(ev.Object, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
	}
	return &out, nil
}

func eventExtra(ev *stripeclient.Event) map[string]any {
	return map[string]any{"event_id": ev.ID, "event_type": string(ev.Type)}
}

func (h *Handlers) customerCreated(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	c, err := decode[Customer](ev)
	if err != nil {
		return err
	}
	accountID := c.AccountID()
	if accountID == "" {
		logctx.FromCtx(ctx, h.log).Warnw("customer_created_without_account", "customer_id", c.ID, "event_id", ev.ID)
		return nil
	}
	_, created, err := h.customers.EnsureLink(ctx, tx, accountID, c.ID, c.Contact())
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, h.log).Infow("customer_linked", "account_id", accountID, "customer_id", c.ID, "created", created)
	return nil
}

func (h *Handlers) chargeSucceeded(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	ch, err := decode[Charge](ev)
	if err != nil {
		return err
	}
	customerID := ch.Customer.String()
	if customerID == "" {
		return nil
	}
	if err := h.customers.UpsertContact(ctx, tx, customerID, ch.Contact()); err != nil {
		return err
	}
	return h.customers.MarkConfirmed(ctx, tx, customerID)
}

func (h *Handlers) invoiceCreated(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	inv, err := decode[Invoice](ev)
	if err != nil {
		return err
	}
	if inv.Customer.String() == "" {
		return fmt.Errorf("invoice %s has no customer", inv.ID)
	}
	if _, err := h.billing.InsertInvoice(ctx, tx, inv.ToModel()); err != nil {
		return err
	}
	return h.customers.UpsertContact(ctx, tx, inv.Customer.String(), inv.Contact())
}

func (h *Handlers) invoicePaymentSucceeded(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	inv, err := decode[Invoice](ev)
	if err != nil {
		return err
	}
	customerID := inv.Customer.String()
	if customerID == "" {
		return fmt.Errorf("invoice %s has no customer", inv.ID)
	}
	if err := h.billing.ApplyPayment(ctx, tx, inv.ToModel()); err != nil {
		return err
	}

	if subID := inv.SubscriptionID(); subID != "" {
		res, err := h.reconciler.Reconcile(ctx, subID)
		if err != nil {
			return err
		}
		if res.CustomerID != customerID {
			logctx.FromCtx(ctx, h.log).Warnw("invoice_customer_mismatch",
				"invoice_id", inv.ID, "invoice_customer_id", customerID, "subscription_customer_id", res.CustomerID)
		}
		label := res.Label()
		reason := types.SubscriptionChangeReasonReconciled
		if inv.HasTrialLine(h.cfg.Entitlement.TrialLineDescription) && label == types.SubscriptionStatusActive {
			// A paid trial invoice does not mean the trial is over.
			label = types.SubscriptionStatusTrialing
		}
		if label == types.SubscriptionStatusActive {
			reason = types.SubscriptionChangeReasonActivated
		}
		if _, err := h.subs.Upsert(ctx, tx, res.ToModel(label), reason, eventExtra(ev)); err != nil {
			return err
		}
		if err := h.customers.MarkConfirmed(ctx, tx, res.CustomerID); err != nil {
			return err
		}
	}
	return h.customers.MarkConfirmed(ctx, tx, customerID)
}

func (h *Handlers) subscriptionCreated(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	sub, err := decode[Subscription](ev)
	if err != nil {
		return err
	}
	if sub.Status != types.ProviderStatusTrialing {
		logctx.FromCtx(ctx, h.log).Infow("subscription_created_not_trial", "subscription_id", sub.ID, "status", sub.Status)
		return nil
	}
	customerID := sub.Customer.String()
	if customerID == "" {
		return fmt.Errorf("subscription %s has no customer", sub.ID)
	}
	start, end := sub.CurrentPeriod()
	row := &models.Subscription{
		CustomerID:            customerID,
		SubscriptionID:        sub.ID,
		IsActive:              false,
		Interval:              sub.Interval(),
		SubscriptionStartDate: start,
		SubscriptionEndDate:   end,
		TrialStart:            unixPtr(sub.TrialStart),
		TrialEnd:              unixPtr(sub.TrialEnd),
		Status:                types.SubscriptionStatusTrialing,
	}
	if _, err := h.subs.Upsert(ctx, tx, row, types.SubscriptionChangeReasonTrialStarted, eventExtra(ev)); err != nil {
		return err
	}
	return h.customers.MarkConfirmed(ctx, tx, customerID)
}

func (h *Handlers) subscriptionUpdated(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	sub, err := decode[Subscription](ev)
	if err != nil {
		return err
	}
	switch sub.Status {
	case types.ProviderStatusCanceled:
		if sub.CanceledAt <= 0 {
			logctx.FromCtx(ctx, h.log).Infow("subscription_canceled_without_timestamp", "subscription_id", sub.ID)
			return nil
		}
		return h.billing.InsertCancellation(ctx, tx, &models.CancellationRecord{
			SubscriptionID: sub.ID,
			CustomerID:     sub.Customer.String(),
			CanceledAt:     time.Unix(sub.CanceledAt, 0).UTC(),
			Reason:         sub.CancellationDetails.Reason,
			Feedback:       sub.CancellationDetails.Feedback,
			Comment:        sub.CancellationDetails.Comment,
		})
	case types.ProviderStatusActive:
		res, err := h.reconciler.Reconcile(ctx, sub.ID)
		if err != nil {
			return err
		}
		label := res.Label()
		if label != types.SubscriptionStatusActive {
			logctx.FromCtx(ctx, h.log).Warnw("subscription_update_stale",
				"subscription_id", sub.ID, "payload_status", sub.Status, "live_status", res.Status)
		}
		_, err = h.subs.Upsert(ctx, tx, res.ToModel(label), types.SubscriptionChangeReasonActivated, eventExtra(ev))
		return err
	default:
		return nil
	}
}

func (h *Handlers) subscriptionDeleted(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	sub, err := decode[Subscription](ev)
	if err != nil {
		return err
	}
	_, err = h.subs.Deactivate(ctx, tx, sub.ID, eventExtra(ev))
	return err
}

func (h *Handlers) paymentFailed(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error {
	pi, err := decode[PaymentIntent](ev)
	if err != nil {
		return err
	}
	failedAt := ev.Created
	if pi.Created > 0 && failedAt.IsZero() {
		failedAt = time.Unix(pi.Created, 0).UTC()
	}
	return h.billing.AppendFailedTransaction(ctx, tx, &models.FailedTransaction{
		CustomerID:      pi.Customer.String(),
		PaymentIntentID: pi.ID,
		InvoiceID:       pi.Invoice.String(),
		FailureCode:     pi.FailureCode(),
		FailureMessage:  pi.LastPaymentError.Message,
		Amount:          pi.Amount,
		Currency:        pi.Currency,
		FailedAt:        failedAt,
	})
}
