package entitlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/metrics"
	"github.com/fatflowers/craftbill/pkg/types"
)

// Hard denials. Each maps to a 403 with its own message.
var (
	ErrNotCustomer      = errors.New("not a current customer")
	ErrCustomerMismatch = errors.New("customer record is linked to a different account")
	ErrUnconfirmed      = errors.New("incomplete account information")
	ErrNoSubscription   = errors.New("not a current customer or subscription not active")
)

// IsDenial reports whether err is one of the hard entitlement denials.
func IsDenial(err error) bool {
	return errors.Is(err, ErrNotCustomer) ||
		errors.Is(err, ErrCustomerMismatch) ||
		errors.Is(err, ErrUnconfirmed) ||
		errors.Is(err, ErrNoSubscription)
}

type LinkReader interface {
	GetByAccountID(ctx context.Context, accountID string) (*models.Customer, error)
	GetByCustomerID(ctx context.Context, customerID string) (*models.Customer, error)
}

type SubscriptionReader interface {
	GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error)
}

type InvoiceReader interface {
	LatestInvoice(ctx context.Context, customerID string) (*models.Invoice, error)
}

// Decision is attached to every gated request.
type Decision struct {
	AccountID           string            `json:"account_id"`
	CustomerID          string            `json:"customer_id"`
	Restricted          bool              `json:"restricted"`
	TrialStatus         types.TrialStatus `json:"trial_status"`
	LatestInvoiceStatus string            `json:"latest_invoice_status,omitempty"`
}

// Service evaluates entitlement from local state only; it never calls the
// billing provider.
type Service struct {
	links    LinkReader
	subs     SubscriptionReader
	invoices InvoiceReader
	metrics  *metrics.Domain
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(links LinkReader, subs SubscriptionReader, invoices InvoiceReader, m *metrics.Domain, log *zap.SugaredLogger) *Service {
	return &Service{links: links, subs: subs, invoices: invoices, metrics: m, log: log, now: time.Now}
}

// Evaluate runs the gate for accountID. A non-nil error is either a hard
// denial (see IsDenial) or a storage failure.
func (s *Service) Evaluate(ctx context.Context, accountID string) (*Decision, error) {
	d, err := s.evaluate(ctx, accountID)
	switch {
	case err != nil && IsDenial(err):
		s.metrics.EntitlementDecision("denied")
		logctx.FromCtx(ctx, s.log).Infow("entitlement_denied", "account_id", accountID, "reason", err.Error())
	case err != nil:
		logctx.FromCtx(ctx, s.log).Errorw("entitlement_error", "account_id", accountID, "error", err)
	case d.Restricted:
		s.metrics.EntitlementDecision("restricted")
	default:
		s.metrics.EntitlementDecision("allowed")
	}
	return d, err
}

func (s *Service) evaluate(ctx context.Context, accountID string) (*Decision, error) {
	if accountID == "" {
		return nil, ErrNotCustomer
	}

	link, err := s.links.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, ErrNotCustomer
		}
		return nil, fmt.Errorf("load customer link: %w", err)
	}
	owner, err := s.links.GetByCustomerID(ctx, link.CustomerID)
	if err != nil && !errors.Is(err, customer.ErrNotFound) {
		return nil, fmt.Errorf("load customer owner: %w", err)
	}
	if owner == nil || owner.AccountID != accountID {
		return nil, ErrCustomerMismatch
	}

	if !link.Confirmed {
		return nil, ErrUnconfirmed
	}

	sub, err := s.subs.GetByCustomerID(ctx, link.CustomerID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub.CustomerID != link.CustomerID {
		return nil, ErrNoSubscription
	}

	now := s.now()
	inTrial := sub.InTrial(now)
	unrestricted := inTrial || sub.IsActive ||
		sub.Status == types.SubscriptionStatusActive ||
		sub.Status == types.SubscriptionStatusTrialing
	restricted := !unrestricted
	// Grace guard: a stale active flag must not outlive the billing period.
	if sub.SubscriptionEndDate == nil || (!inTrial && sub.PeriodLapsed(now)) {
		restricted = true
	}

	d := &Decision{
		AccountID:   accountID,
		CustomerID:  link.CustomerID,
		Restricted:  restricted,
		TrialStatus: TrialStatus(sub, now),
	}
	inv, err := s.invoices.LatestInvoice(ctx, link.CustomerID)
	switch {
	case err == nil:
		d.LatestInvoiceStatus = inv.Status
	case !errors.Is(err, billing.ErrNotFound):
		return nil, fmt.Errorf("load latest invoice: %w", err)
	}
	return d, nil
}

// TrialStatus summarises the trial window at now. Days remaining are rounded up.
func TrialStatus(sub *models.Subscription, now time.Time) types.TrialStatus {
	if sub == nil {
		return types.TrialStatus{}
	}
	ts := types.TrialStatus{IsTrialing: sub.InTrial(now)}
	ts.EndsAt = sub.TrialEnd
	if ts.IsTrialing {
		remaining := sub.TrialEnd.Sub(now)
		ts.DaysRemaining = int64(math.Ceil(remaining.Hours() / 24))
	}
	return ts
}

var Module = fx.Options(
	fx.Provide(
		func(s *customer.Service) LinkReader { return s },
		func(s *subscription.Service) SubscriptionReader { return s },
		func(s *billing.Service) InvoiceReader { return s },
	),
	fx.Provide(NewService),
)
