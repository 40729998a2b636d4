package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/internal/models"
	stripeclient "github.com/fatflowers/craftbill/internal/platform/stripe"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/metrics"
	"github.com/fatflowers/craftbill/pkg/types"
)

var ErrSubscriptionNotFound = errors.New("subscription not found at billing provider")

// SubscriptionFetcher is the live subscription lookup against the provider.
type SubscriptionFetcher interface {
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripelib.Subscription, error)
}

// Result is the authoritative subscription state as the provider reports it now.
type Result struct {
	SubscriptionID        string
	CustomerID            string
	IsActive              bool
	Status                string
	Interval              string
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time
	TrialStart            *time.Time
	TrialEnd              *time.Time
}

// ToModel maps the result onto a Subscription row carrying label.
func (r *Result) ToModel(label types.SubscriptionStatus) *models.Subscription {
	return &models.Subscription{
		CustomerID:            r.CustomerID,
		SubscriptionID:        r.SubscriptionID,
		IsActive:              r.IsActive,
		Interval:              r.Interval,
		SubscriptionStartDate: r.SubscriptionStartDate,
		SubscriptionEndDate:   r.SubscriptionEndDate,
		TrialStart:            r.TrialStart,
		TrialEnd:              r.TrialEnd,
		Status:                label,
	}
}

// Label derives the stored status label from the provider status.
func (r *Result) Label() types.SubscriptionStatus {
	switch r.Status {
	case types.ProviderStatusActive:
		return types.SubscriptionStatusActive
	case types.ProviderStatusTrialing:
		return types.SubscriptionStatusTrialing
	default:
		return types.SubscriptionStatusNone
	}
}

type Service struct {
	fetcher SubscriptionFetcher
	metrics *metrics.Domain
	log     *zap.SugaredLogger
}

func NewService(fetcher SubscriptionFetcher, m *metrics.Domain, log *zap.SugaredLogger) *Service {
	return &Service{fetcher: fetcher, metrics: m, log: log}
}

// Reconcile fetches the subscription from the provider. It never writes; the
// caller upserts the result inside its own transaction.
func (s *Service) Reconcile(ctx context.Context, subscriptionID string) (*Result, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("reconcile: empty subscription id")
	}
	start := time.Now()
	sub, err := s.fetcher.RetrieveSubscription(ctx, subscriptionID)
	outcome := "ok"
	defer func() { s.metrics.ObserveProcess("reconcile", outcome, start) }()
	if err != nil {
		outcome = "error"
		if errors.Is(err, stripeclient.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
		}
		return nil, fmt.Errorf("reconcile %s: %w", subscriptionID, err)
	}
	res, err := fromStripe(sub)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("reconcile %s: %w", subscriptionID, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_reconciled",
		"subscription_id", res.SubscriptionID, "customer_id", res.CustomerID,
		"status", res.Status, "is_active", res.IsActive, "period_end", res.SubscriptionEndDate)
	return res, nil
}

func fromStripe(sub *stripelib.Subscription) (*Result, error) {
	if sub == nil {
		return nil, fmt.Errorf("empty subscription")
	}
	res := &Result{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
		TrialStart:     unixPtr(sub.TrialStart),
		TrialEnd:       unixPtr(sub.TrialEnd),
	}
	if sub.Customer != nil {
		res.CustomerID = sub.Customer.ID
	}
	if res.CustomerID == "" {
		return nil, fmt.Errorf("subscription %s has no customer", sub.ID)
	}
	res.IsActive = res.Status == types.ProviderStatusActive
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		res.SubscriptionStartDate = unixPtr(item.CurrentPeriodStart)
		res.SubscriptionEndDate = unixPtr(item.CurrentPeriodEnd)
		if item.Price != nil && item.Price.Recurring != nil {
			res.Interval = string(item.Price.Recurring.Interval)
		}
	}
	return res, nil
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func newFetcher(c *stripeclient.Client) SubscriptionFetcher { return c }

var Module = fx.Options(
	fx.Provide(newFetcher),
	fx.Provide(NewService),
)
