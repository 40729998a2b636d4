package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/internal/platform/db/dbtest"
	"github.com/fatflowers/craftbill/pkg/types"
)

type remoteMock struct{ mock.Mock }

func (m *remoteMock) DeleteUser(_ context.Context, accountID string) error {
	return m.Called(accountID).Error(0)
}

func (m *remoteMock) DeleteCustomer(_ context.Context, customerID string) error {
	return m.Called(customerID).Error(0)
}

type fixture struct {
	svc       *Service
	remote    *remoteMock
	customers *customer.Service
	subs      *subscription.Service
	billing   *billing.Service
}

func newFixture(t *testing.T) *fixture {
	log := zap.NewNop().Sugar()
	db := dbtest.New(t)
	f := &fixture{
		remote:    &remoteMock{},
		customers: customer.NewService(db, log),
		subs:      subscription.NewService(db, log),
		billing:   billing.NewService(db, log),
	}
	f.svc = NewService(db, f.remote, f.remote, f.customers, f.subs, log)

	ctx := context.Background()
	_, _, err := f.customers.EnsureLink(ctx, nil, "acct_1", "cus_1", models.ContactFields{})
	require.NoError(t, err)
	_, err = f.subs.Upsert(ctx, nil, &models.Subscription{CustomerID: "cus_1", SubscriptionID: "sub_1", IsActive: true}, types.SubscriptionChangeReasonActivated, nil)
	require.NoError(t, err)
	_, err = f.billing.InsertInvoice(ctx, nil, &models.Invoice{InvoiceID: "in_1", CustomerID: "cus_1", Status: "paid"})
	require.NoError(t, err)
	return f
}

func (f *fixture) assertLocalGone(t *testing.T) {
	ctx := context.Background()
	_, err := f.customers.GetByAccountID(ctx, "acct_1")
	require.ErrorIs(t, err, customer.ErrNotFound)
	_, err = f.subs.GetByCustomerID(ctx, "cus_1")
	require.ErrorIs(t, err, subscription.ErrNotFound)
	_, err = f.billing.GetInvoice(ctx, "in_1")
	require.NoError(t, err, "invoices are retained")
}

func TestDelete_Complete(t *testing.T) {
	f := newFixture(t)
	f.remote.On("DeleteUser", "acct_1").Return(nil).Once()
	f.remote.On("DeleteCustomer", "cus_1").Return(nil).Once()

	report, err := f.svc.Delete(context.Background(), "acct_1")
	require.NoError(t, err)
	require.Equal(t, ResultComplete, report.Result)
	require.Equal(t, "cus_1", report.CustomerID)
	require.Equal(t, []string{SystemIdentity, SystemBilling, SystemLocal},
		[]string{report.Steps[0].System, report.Steps[1].System, report.Steps[2].System})
	f.assertLocalGone(t)
	f.remote.AssertExpectations(t)
}

func TestDelete_IdentityFailureIsPartial(t *testing.T) {
	f := newFixture(t)
	f.remote.On("DeleteUser", "acct_1").Return(errors.New("identity 503")).Once()
	f.remote.On("DeleteCustomer", "cus_1").Return(nil).Once()

	report, err := f.svc.Delete(context.Background(), "acct_1")
	require.NoError(t, err)
	require.Equal(t, ResultPartial, report.Result)
	require.False(t, report.Steps[0].OK)
	require.Contains(t, report.Steps[0].Error, "identity 503")
	require.True(t, report.Steps[1].OK)
	require.True(t, report.Steps[2].OK)
	f.assertLocalGone(t)
}

func TestDelete_NoLinkSkipsBilling(t *testing.T) {
	f := newFixture(t)
	f.remote.On("DeleteUser", "acct_9").Return(errors.New("not configured")).Once()

	report, err := f.svc.Delete(context.Background(), "acct_9")
	require.NoError(t, err)
	require.True(t, report.Steps[1].Skipped)
	require.Equal(t, ResultPartial, report.Result)
	f.remote.AssertNotCalled(t, "DeleteCustomer", mock.Anything)
}

func TestSummarize(t *testing.T) {
	require.Equal(t, ResultComplete, summarize([]StepReport{{OK: true}, {OK: true}}))
	require.Equal(t, ResultPartial, summarize([]StepReport{{OK: false}, {OK: true}}))
	require.Equal(t, ResultFailed, summarize([]StepReport{{OK: false}, {OK: false}}))
}
