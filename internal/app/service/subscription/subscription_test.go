package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	models "github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/internal/platform/db/dbtest"
	types "github.com/fatflowers/craftbill/pkg/types"
)

func newSvc(t *testing.T) *Service {
	return NewService(dbtest.New(t), zap.NewNop().Sugar())
}

func TestUpsert_OneRowPerCustomer(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	trial, err := svc.Upsert(ctx, nil, &models.Subscription{
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusTrialing,
		TrialStart:     lo.ToPtr(now),
		TrialEnd:       lo.ToPtr(now.Add(14 * 24 * time.Hour)),
	}, types.SubscriptionChangeReasonTrialStarted, nil)
	require.NoError(t, err)
	require.False(t, trial.IsActive)

	active, err := svc.Upsert(ctx, nil, &models.Subscription{
		CustomerID:            "cus_1",
		SubscriptionID:        "sub_1",
		IsActive:              true,
		Interval:              "month",
		Status:                types.SubscriptionStatusActive,
		SubscriptionStartDate: lo.ToPtr(now),
		SubscriptionEndDate:   lo.ToPtr(now.Add(30 * 24 * time.Hour)),
	}, types.SubscriptionChangeReasonActivated, map[string]any{"event_id": "evt_2"})
	require.NoError(t, err)
	require.Equal(t, trial.ID, active.ID, "row identity survives upserts")
	require.True(t, active.IsActive)
	require.Equal(t, types.SubscriptionStatusActive, active.Status)
	require.Nil(t, active.TrialEnd, "every upsert writes the full derived state")

	var count int64
	require.NoError(t, svc.db.Model(&models.Subscription{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Eventually(t, func() bool {
		logs, err := svc.ListLogs(ctx, "cus_1")
		return err == nil && len(logs) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestUpsert_ConcurrentWritersLeaveSingleRow(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := types.SubscriptionStatusTrialing
			if i%2 == 1 {
				status = types.SubscriptionStatusActive
			}
			_, err := svc.Upsert(ctx, nil, &models.Subscription{
				CustomerID:     "cus_race",
				SubscriptionID: "sub_race",
				IsActive:       status == types.SubscriptionStatusActive,
				Status:         status,
			}, types.SubscriptionChangeReasonReconciled, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var rows []models.Subscription
	require.NoError(t, svc.db.Where("customer_id = ?", "cus_race").Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, rows[0].Status == types.SubscriptionStatusActive, rows[0].IsActive)
}

func TestDeactivate_ClearsLabelKeepsBounds(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()
	end := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	_, err := svc.Upsert(ctx, nil, &models.Subscription{
		CustomerID:          "cus_1",
		SubscriptionID:      "sub_1",
		IsActive:            true,
		Status:              types.SubscriptionStatusActive,
		SubscriptionEndDate: lo.ToPtr(end),
	}, types.SubscriptionChangeReasonActivated, nil)
	require.NoError(t, err)

	n, err := svc.Deactivate(ctx, nil, "sub_1", nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	row, err := svc.GetBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	require.False(t, row.IsActive)
	require.Equal(t, types.SubscriptionStatusNone, row.Status)
	require.NotNil(t, row.SubscriptionEndDate)
	require.True(t, end.Equal(*row.SubscriptionEndDate))

	n, err = svc.Deactivate(ctx, nil, "sub_unknown", nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteByCustomerID(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, nil, &models.Subscription{CustomerID: "cus_1", SubscriptionID: "sub_1"}, types.SubscriptionChangeReasonReconciled, nil)
	require.NoError(t, err)

	n, err := svc.DeleteByCustomerID(ctx, nil, "cus_1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = svc.GetByCustomerID(ctx, "cus_1")
	require.ErrorIs(t, err, ErrNotFound)
}
