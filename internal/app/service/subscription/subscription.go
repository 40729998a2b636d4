package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/tool"
	types "github.com/fatflowers/craftbill/pkg/types"
)

var ErrNotFound = errors.New("subscription not found")

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// upsertColumns are overwritten on conflict. Every write carries the full
// derived state, so the result never depends on what the row held before.
var upsertColumns = []string{
	"subscription_id",
	"is_active",
	"billing_interval",
	"subscription_start_date",
	"subscription_end_date",
	"trial_start",
	"trial_end",
	"status",
	"updated_at",
}

// Upsert writes m keyed on customer_id in one INSERT ... ON CONFLICT statement.
func (s *Service) Upsert(ctx context.Context, tx *gorm.DB, m *models.Subscription, reason types.SubscriptionChangeReason, extra map[string]any) (*models.Subscription, error) {
	if m.CustomerID == "" {
		return nil, fmt.Errorf("upsert subscription: empty customer id")
	}
	db := s.conn(tx).WithContext(ctx)

	before, err := s.find(db, "customer_id = ?", m.CustomerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get original subscription: %w", err)
	}

	row := *m
	row.ID = tool.GenerateUUIDV7()
	now := time.Now()
	row.CreatedAt, row.UpdatedAt = now, now

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}

	after, err := s.find(db, "customer_id = ?", m.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("reload subscription: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_upserted",
		"customer_id", after.CustomerID, "subscription_id", after.SubscriptionID,
		"status", after.Status, "is_active", after.IsActive, "reason", reason)
	s.saveLog(ctx, after.CustomerID, reason, before, after, extra)
	return after, nil
}

// Deactivate is the terminal transition: is_active=false and the derived label
// cleared for every row carrying subscriptionID. Period and trial bounds stay
// for audit. Returns the number of rows changed.
func (s *Service) Deactivate(ctx context.Context, tx *gorm.DB, subscriptionID string, extra map[string]any) (int64, error) {
	if subscriptionID == "" {
		return 0, fmt.Errorf("deactivate subscription: empty subscription id")
	}
	db := s.conn(tx).WithContext(ctx)

	var rows []*models.Subscription
	if err := db.Where("subscription_id = ?", subscriptionID).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}

	res := db.Model(&models.Subscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"is_active":  false,
			"status":     types.SubscriptionStatusNone,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate subscription %s: %w", subscriptionID, res.Error)
	}

	for _, before := range rows {
		after := *before
		after.IsActive = false
		after.Status = types.SubscriptionStatusNone
		s.saveLog(ctx, before.CustomerID, types.SubscriptionChangeReasonDeleted, before, &after, extra)
	}
	if res.RowsAffected == 0 {
		logctx.FromCtx(ctx, s.log).Infow("subscription_deactivate_no_row", "subscription_id", subscriptionID)
	}
	return res.RowsAffected, nil
}

func (s *Service) GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	return s.find(s.db.WithContext(ctx), "customer_id = ?", customerID)
}

func (s *Service) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	return s.find(s.db.WithContext(ctx), "subscription_id = ?", subscriptionID)
}

// DeleteByCustomerID removes the row. Only the account deletion flow calls it.
func (s *Service) DeleteByCustomerID(ctx context.Context, tx *gorm.DB, customerID string) (int64, error) {
	res := s.conn(tx).WithContext(ctx).Where("customer_id = ?", customerID).Delete(&models.Subscription{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete subscription for %s: %w", customerID, res.Error)
	}
	return res.RowsAffected, nil
}

// ListLogs returns the change log for a customer, oldest first.
func (s *Service) ListLogs(ctx context.Context, customerID string) ([]*models.SubscriptionLog, error) {
	var logs []*models.SubscriptionLog
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("created_at asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Service) find(db *gorm.DB, query string, arg string) (*models.Subscription, error) {
	var row models.Subscription
	if err := db.Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// saveLog writes the change log asynchronously; errors are logged but not returned.
func (s *Service) saveLog(ctx context.Context, customerID string, reason types.SubscriptionChangeReason, before, after *models.Subscription, extra map[string]any) {
	if extra == nil {
		extra = map[string]any{}
	}
	if tid := logctx.TraceID(ctx); tid != "" {
		extra["trace_id"] = tid
	}
	go func(b *models.Subscription, a *models.Subscription) {
		log := &models.SubscriptionLog{
			ID:         tool.GenerateUUIDV7(),
			CustomerID: customerID,
			Reason:     reason,
			Before:     datatypes.NewJSONType(b),
			After:      datatypes.NewJSONType(a),
			Extra:      datatypes.JSONMap(extra),
		}
		if err := s.db.Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}(before, after)
}
