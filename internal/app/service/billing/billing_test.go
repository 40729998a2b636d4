package billing

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/internal/platform/db/dbtest"
	"github.com/fatflowers/craftbill/pkg/types"
)

func newSvc(t *testing.T) *Service {
	return NewService(dbtest.New(t), zap.NewNop().Sugar())
}

func TestInvoice_InsertThenApplyPayment(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	inserted, err := svc.InsertInvoice(ctx, nil, &models.Invoice{InvoiceID: "in_1", CustomerID: "cus_1", Status: "open", AmountDue: 900})
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = svc.InsertInvoice(ctx, nil, &models.Invoice{InvoiceID: "in_1", CustomerID: "cus_1", Status: "draft"})
	require.NoError(t, err)
	require.False(t, inserted)

	paidAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, svc.ApplyPayment(ctx, nil, &models.Invoice{
		InvoiceID: "in_1", CustomerID: "cus_1", Status: "paid", AmountDue: 900, AmountPaid: 900, PaidAt: lo.ToPtr(paidAt),
	}))

	inv, err := svc.GetInvoice(ctx, "in_1")
	require.NoError(t, err)
	require.Equal(t, "paid", inv.Status)
	require.EqualValues(t, 900, inv.AmountPaid)
}

func TestApplyPayment_CreatesMissingInvoice(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	require.NoError(t, svc.ApplyPayment(ctx, nil, &models.Invoice{InvoiceID: "in_2", CustomerID: "cus_1", Status: "paid", AmountPaid: 100}))
	inserted, err := svc.InsertInvoice(ctx, nil, &models.Invoice{InvoiceID: "in_2", CustomerID: "cus_1", Status: "open"})
	require.NoError(t, err)
	require.False(t, inserted)

	inv, err := svc.GetInvoice(ctx, "in_2")
	require.NoError(t, err)
	require.Equal(t, "paid", inv.Status, "late creation event must not regress payment")
}

func TestInsertCancellation_Deduplicates(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()
	at := time.Unix(1735689600, 0).UTC()

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.InsertCancellation(ctx, nil, &models.CancellationRecord{SubscriptionID: "sub_1", CanceledAt: at, Reason: "cancellation_requested"}))
	}
	rows, err := svc.ListCancellations(ctx, "sub_1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.Error(t, svc.InsertCancellation(ctx, nil, &models.CancellationRecord{SubscriptionID: "sub_1"}))
}

func TestLatestInvoiceAndFailedTransactions(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	_, err := svc.LatestInvoice(ctx, "cus_1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.InsertInvoice(ctx, nil, &models.Invoice{InvoiceID: "in_a", CustomerID: "cus_1", Status: "paid", CreatedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	_, err = svc.InsertInvoice(ctx, nil, &models.Invoice{InvoiceID: "in_b", CustomerID: "cus_1", Status: "open", CreatedAt: time.Now()})
	require.NoError(t, err)

	latest, err := svc.LatestInvoice(ctx, "cus_1")
	require.NoError(t, err)
	require.Equal(t, "in_b", latest.InvoiceID)

	require.NoError(t, svc.AppendFailedTransaction(ctx, nil, &models.FailedTransaction{CustomerID: "cus_1", FailureCode: "card_declined", Amount: 500}))
	fts, err := svc.ListFailedTransactions(ctx, "cus_1")
	require.NoError(t, err)
	require.Len(t, fts, 1)
	require.Equal(t, "card_declined", fts[0].FailureCode)
}

func TestScanInvoices(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()
	for i, status := range []string{"paid", "open", "paid"} {
		_, err := svc.InsertInvoice(ctx, nil, &models.Invoice{
			InvoiceID: "in_" + string(rune('a'+i)), CustomerID: "cus_1", Status: status, AmountDue: int64(100 * (i + 1)),
		})
		require.NoError(t, err)
	}

	res, err := svc.ScanInvoices(ctx, &ScanInvoicesRequest{
		Filters: []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"paid"}}},
		SortBy:  "amount_due", SortOrder: "asc",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Total)
	require.Equal(t, "in_a", res.Items[0].InvoiceID)
	require.Equal(t, "in_c", res.Items[1].InvoiceID)

	_, err = svc.ScanInvoices(ctx, &ScanInvoicesRequest{SortBy: "amount_due; drop table invoice"})
	require.Error(t, err)
	_, err = svc.ScanInvoices(ctx, &ScanInvoicesRequest{Filters: []*types.CommonFilter{{Field: "extra->>'x'", Operator: types.CommonFilterOperatorEq, Values: []any{"1"}}}})
	require.Error(t, err)
}

func TestScanInvoices_GroupsAndDateRange(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()
	for i, status := range []string{"paid", "open", "paid"} {
		_, err := svc.InsertInvoice(ctx, nil, &models.Invoice{
			InvoiceID: "in_" + string(rune('a'+i)), CustomerID: "cus_1", Status: status, AmountDue: int64(100 * (i + 1)),
		})
		require.NoError(t, err)
	}

	res, err := svc.ScanInvoices(ctx, &ScanInvoicesRequest{
		Filters: []*types.CommonFilter{{Filters: []types.CommonFilter{
			{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"open"}},
			{Field: "amount_due", Operator: types.CommonFilterOperatorGte, Values: []any{300}},
		}}},
		SortBy: "amount_due", SortOrder: "asc",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Total)
	require.Equal(t, "in_b", res.Items[0].InvoiceID)
	require.Equal(t, "in_c", res.Items[1].InvoiceID)

	now := time.Now()
	res, err = svc.ScanInvoices(ctx, &ScanInvoicesRequest{Filters: []*types.CommonFilter{{
		Field: "created_at", Operator: types.CommonFilterOperatorDateRange,
		Values: []any{float64(now.Add(-48 * time.Hour).Unix()), now.Add(48 * time.Hour).UTC().Format(time.RFC3339)},
	}}})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Total)

	res, err = svc.ScanInvoices(ctx, &ScanInvoicesRequest{Filters: []*types.CommonFilter{{
		Field: "created_at", Operator: types.CommonFilterOperatorDateRange,
		Values: []any{float64(now.AddDate(-1, 0, 0).Unix()), float64(now.AddDate(0, 0, -30).Unix())},
	}}})
	require.NoError(t, err)
	require.Zero(t, res.Total)

	// nested fields go through the same column whitelist
	_, err = svc.ScanInvoices(ctx, &ScanInvoicesRequest{Filters: []*types.CommonFilter{{Filters: []types.CommonFilter{
		{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"open"}},
		{Field: "1=1 or status", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}}}})
	require.Error(t, err)
	_, err = svc.ScanInvoices(ctx, &ScanInvoicesRequest{Filters: []*types.CommonFilter{{
		Field: "created_at", Operator: types.CommonFilterOperatorDateRange, Values: []any{"yesterday", "today"},
	}}})
	require.Error(t, err)
}
