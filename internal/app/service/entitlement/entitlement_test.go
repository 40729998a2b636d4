package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/internal/platform/db/dbtest"
	"github.com/fatflowers/craftbill/pkg/types"
)

type fixture struct {
	db        *gorm.DB
	svc       *Service
	customers *customer.Service
	subs      *subscription.Service
	billing   *billing.Service
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	log := zap.NewNop().Sugar()
	db := dbtest.New(t)
	f := &fixture{
		db:        db,
		customers: customer.NewService(db, log),
		subs:      subscription.NewService(db, log),
		billing:   billing.NewService(db, log),
		now:       time.Now().UTC(),
	}
	f.svc = NewService(f.customers, f.subs, f.billing, nil, log)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) link(t *testing.T, accountID, customerID string, confirmed bool) {
	ctx := context.Background()
	_, _, err := f.customers.EnsureLink(ctx, nil, accountID, customerID, models.ContactFields{})
	require.NoError(t, err)
	if confirmed {
		require.NoError(t, f.customers.MarkConfirmed(ctx, nil, customerID))
	}
}

func (f *fixture) subscription(t *testing.T, s *models.Subscription) {
	_, err := f.subs.Upsert(context.Background(), nil, s, types.SubscriptionChangeReasonReconciled, nil)
	require.NoError(t, err)
}

func TestEvaluate_DenialPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscription(t, &models.Subscription{CustomerID: "cus_1", SubscriptionID: "sub_1", IsActive: true, Status: types.SubscriptionStatusActive})

	_, err := f.svc.Evaluate(ctx, "acct_2")
	require.ErrorIs(t, err, ErrNotCustomer, "a subscription of another customer must not leak")

	f.link(t, "acct_1", "cus_1", false)
	_, err = f.svc.Evaluate(ctx, "acct_1")
	require.ErrorIs(t, err, ErrUnconfirmed)

	f.link(t, "acct_3", "cus_3", true)
	_, err = f.svc.Evaluate(ctx, "acct_3")
	require.ErrorIs(t, err, ErrNoSubscription)

	for _, e := range []error{ErrNotCustomer, ErrCustomerMismatch, ErrUnconfirmed, ErrNoSubscription} {
		require.True(t, IsDenial(e))
	}
	require.False(t, IsDenial(errors.New("db down")))
	require.NotEqual(t, ErrUnconfirmed.Error(), ErrNoSubscription.Error())
	require.NotEqual(t, ErrNotCustomer.Error(), ErrCustomerMismatch.Error())
}

type mismatchLinks struct{ LinkReader }

func (m mismatchLinks) GetByCustomerID(ctx context.Context, customerID string) (*models.Customer, error) {
	return &models.Customer{AccountID: "acct_other", CustomerID: customerID, Confirmed: true}, nil
}

func TestEvaluate_CustomerMismatch(t *testing.T) {
	f := newFixture(t)
	f.link(t, "acct_1", "cus_1", true)
	f.svc.links = mismatchLinks{LinkReader: f.customers}

	_, err := f.svc.Evaluate(context.Background(), "acct_1")
	require.ErrorIs(t, err, ErrCustomerMismatch)
}

func TestEvaluate_TrialBoundary(t *testing.T) {
	f := newFixture(t)
	f.link(t, "acct_1", "cus_1", true)
	f.subscription(t, &models.Subscription{
		CustomerID:          "cus_1",
		SubscriptionID:      "sub_1",
		Status:              types.SubscriptionStatusTrialing,
		TrialEnd:            lo.ToPtr(f.now.Add(time.Second)),
		SubscriptionEndDate: lo.ToPtr(f.now.Add(time.Second)),
	})

	d, err := f.svc.Evaluate(context.Background(), "acct_1")
	require.NoError(t, err)
	require.True(t, d.TrialStatus.IsTrialing)
	require.False(t, d.Restricted)
	require.EqualValues(t, 1, d.TrialStatus.DaysRemaining, "partial days round up")

	f.now = f.now.Add(2 * time.Second)
	d, err = f.svc.Evaluate(context.Background(), "acct_1")
	require.NoError(t, err)
	require.False(t, d.TrialStatus.IsTrialing)
	require.Zero(t, d.TrialStatus.DaysRemaining)
	require.True(t, d.Restricted, "trial over and period lapsed")
}

func TestEvaluate_GraceOverride(t *testing.T) {
	f := newFixture(t)
	f.link(t, "acct_1", "cus_1", true)
	f.subscription(t, &models.Subscription{
		CustomerID:          "cus_1",
		SubscriptionID:      "sub_1",
		IsActive:            true,
		Status:              types.SubscriptionStatusActive,
		SubscriptionEndDate: lo.ToPtr(f.now.Add(-time.Minute)),
	})

	d, err := f.svc.Evaluate(context.Background(), "acct_1")
	require.NoError(t, err)
	require.True(t, d.Restricted)
	require.Equal(t, "cus_1", d.CustomerID)
}

func TestEvaluate_MissingPeriodRestricts(t *testing.T) {
	f := newFixture(t)
	f.link(t, "acct_1", "cus_1", true)
	f.subscription(t, &models.Subscription{CustomerID: "cus_1", SubscriptionID: "sub_1", IsActive: true, Status: types.SubscriptionStatusActive})

	d, err := f.svc.Evaluate(context.Background(), "acct_1")
	require.NoError(t, err)
	require.True(t, d.Restricted)
}

func TestEvaluate_ActiveWithinPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.link(t, "acct_1", "cus_1", true)
	f.subscription(t, &models.Subscription{
		CustomerID:          "cus_1",
		SubscriptionID:      "sub_1",
		IsActive:            true,
		Status:              types.SubscriptionStatusActive,
		SubscriptionEndDate: lo.ToPtr(f.now.Add(24 * time.Hour)),
	})
	_, err := f.billing.InsertInvoice(ctx, nil, &models.Invoice{InvoiceID: "in_1", CustomerID: "cus_1", Status: "paid"})
	require.NoError(t, err)

	d, err := f.svc.Evaluate(ctx, "acct_1")
	require.NoError(t, err)
	require.False(t, d.Restricted)
	require.False(t, d.TrialStatus.IsTrialing)
	require.Equal(t, "paid", d.LatestInvoiceStatus)
}

func TestEvaluate_InactiveNoLabelRestricted(t *testing.T) {
	f := newFixture(t)
	f.link(t, "acct_1", "cus_1", true)
	f.subscription(t, &models.Subscription{
		CustomerID:          "cus_1",
		SubscriptionID:      "sub_1",
		SubscriptionEndDate: lo.ToPtr(f.now.Add(24 * time.Hour)),
	})

	d, err := f.svc.Evaluate(context.Background(), "acct_1")
	require.NoError(t, err)
	require.True(t, d.Restricted)
}

func TestTrialStatus_DaysRoundedUp(t *testing.T) {
	now := time.Now()
	sub := &models.Subscription{Status: types.SubscriptionStatusTrialing, TrialEnd: lo.ToPtr(now.Add(60 * 24 * time.Hour))}
	require.EqualValues(t, 60, TrialStatus(sub, now).DaysRemaining)

	sub.TrialEnd = lo.ToPtr(now.Add(59*24*time.Hour + time.Minute))
	require.EqualValues(t, 60, TrialStatus(sub, now).DaysRemaining)

	ts := TrialStatus(nil, now)
	require.False(t, ts.IsTrialing)
}
