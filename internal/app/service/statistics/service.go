package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/types"
)

type StatisticType string

const (
	// Subscription state
	StatisticTypeSubscriptionCountByStatus StatisticType = "subscription_count_by_status"
	StatisticTypeActiveSubscriptionCount   StatisticType = "active_subscription_count"

	// Billing records
	StatisticTypeDailyPaidInvoiceCount       StatisticType = "daily_paid_invoice_count"
	StatisticTypeDailyPaidAmount             StatisticType = "daily_paid_amount"
	StatisticTypeDailyFailedTransactionCount StatisticType = "daily_failed_transaction_count"

	// Customers
	StatisticTypeDailyNewCustomerCount StatisticType = "daily_new_customer_count"
)

// Filter fields and the statistics they apply to. Filters on other fields
// are rejected.
type SubscriptionStatisticFilterType string

const (
	SubscriptionStatisticFilterTypeCurrency   SubscriptionStatisticFilterType = "currency"
	SubscriptionStatisticFilterTypeCustomerID SubscriptionStatisticFilterType = "customer_id"
	SubscriptionStatisticFilterTypeCreatedAt  SubscriptionStatisticFilterType = "created_at"
)

var validFilters = map[SubscriptionStatisticFilterType][]StatisticType{
	SubscriptionStatisticFilterTypeCurrency: {
		StatisticTypeDailyPaidInvoiceCount, StatisticTypeDailyPaidAmount, StatisticTypeDailyFailedTransactionCount,
	},
	SubscriptionStatisticFilterTypeCustomerID: {
		StatisticTypeDailyPaidInvoiceCount, StatisticTypeDailyPaidAmount, StatisticTypeDailyFailedTransactionCount,
		StatisticTypeSubscriptionCountByStatus, StatisticTypeActiveSubscriptionCount,
	},
	SubscriptionStatisticFilterTypeCreatedAt: {
		StatisticTypeDailyPaidInvoiceCount, StatisticTypeDailyPaidAmount, StatisticTypeDailyFailedTransactionCount,
		StatisticTypeDailyNewCustomerCount,
	},
}

type SubscriptionStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type SubscriptionStatisticRequest struct {
	Filters   []*types.CommonFilter            `json:"filters"`
	DataItems []*SubscriptionStatisticDataItem `json:"data_items"`
}

// Validate rejects filters on unknown fields.
func (f *SubscriptionStatisticRequest) Validate() error {
	for _, filter := range f.Filters {
		if err := filter.Validate(); err != nil {
			return err
		}
		if filter.Field == "" {
			return fmt.Errorf("filter groups are not supported here")
		}
		if _, ok := validFilters[SubscriptionStatisticFilterType(filter.Field)]; !ok {
			return fmt.Errorf("unsupported filter field: %s", filter.Field)
		}
	}
	return nil
}

// GetFilters keeps the filters that apply to statisticType.
func (f *SubscriptionStatisticRequest) GetFilters(statisticType StatisticType) *SubscriptionStatisticRequest {
	if f == nil || len(f.Filters) == 0 {
		return &SubscriptionStatisticRequest{}
	}
	var result SubscriptionStatisticRequest
	for _, filter := range f.Filters {
		if lo.Contains(validFilters[SubscriptionStatisticFilterType(filter.Field)], statisticType) {
			result.Filters = append(result.Filters, filter)
		}
	}
	return &result
}

// Build composes a WHERE clause from the filters.
func (f *SubscriptionStatisticRequest) Build(builder clause.Builder) {
	if len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

type SubscriptionStatisticResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type SubscriptionStatisticResponse struct {
	DataItems map[StatisticType][]SubscriptionStatisticResponseDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

// dateExpr formats a timestamp column as YYYY-MM-DD for the active dialect.
func (s *Service) dateExpr(column string) string {
	if s.db.Dialector.Name() == "sqlite" {
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
	}
	return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
}

func where(request *SubscriptionStatisticRequest, st StatisticType) clause.Where {
	return clause.Where{Exprs: []clause.Expression{request.GetFilters(st)}}
}

func (s *Service) getSubscriptionCountByStatus(ctx context.Context, request *SubscriptionStatisticRequest) ([]SubscriptionStatisticResponseDataItem, error) {
	var results []SubscriptionStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("status as label, count(*) as value").
		Where(where(request, StatisticTypeSubscriptionCountByStatus)).
		Group("status").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getActiveSubscriptionCount(ctx context.Context, request *SubscriptionStatisticRequest) ([]SubscriptionStatisticResponseDataItem, error) {
	var results []SubscriptionStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("count(*) as value").
		Where(where(request, StatisticTypeActiveSubscriptionCount)).
		Where("(is_active = ? OR status IN ?)", true, []types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing}).
		Where("subscription_end_date >= ?", s.now())
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyPaidInvoiceCount(ctx context.Context, request *SubscriptionStatisticRequest) ([]SubscriptionStatisticResponseDataItem, error) {
	var results []SubscriptionStatisticResponseDataItem
	day := s.dateExpr("paid_at")
	q := s.db.WithContext(ctx).Table((models.Invoice{}).TableName()).
		Select(day+" as date, count(*) as value").
		Where("status = ? AND paid_at IS NOT NULL", "paid").
		Where(where(request, StatisticTypeDailyPaidInvoiceCount)).
		Group(day).
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyPaidAmount(ctx context.Context, request *SubscriptionStatisticRequest) ([]SubscriptionStatisticResponseDataItem, error) {
	var results []SubscriptionStatisticResponseDataItem
	day := s.dateExpr("paid_at")
	q := s.db.WithContext(ctx).Table((models.Invoice{}).TableName()).
		Select(day+" as date, currency as label, sum(amount_paid) as value").
		Where("status = ? AND paid_at IS NOT NULL", "paid").
		Where(where(request, StatisticTypeDailyPaidAmount)).
		Group(day).
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyFailedTransactionCount(ctx context.Context, request *SubscriptionStatisticRequest) ([]SubscriptionStatisticResponseDataItem, error) {
	var results []SubscriptionStatisticResponseDataItem
	day := s.dateExpr("failed_at")
	q := s.db.WithContext(ctx).Table((models.FailedTransaction{}).TableName()).
		Select(day+" as date, count(*) as value").
		Where(where(request, StatisticTypeDailyFailedTransactionCount)).
		Group(day).
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewCustomerCount(ctx context.Context, request *SubscriptionStatisticRequest) ([]SubscriptionStatisticResponseDataItem, error) {
	var results []SubscriptionStatisticResponseDataItem
	day := s.dateExpr("created_at")
	q := s.db.WithContext(ctx).Table((models.Customer{}).TableName()).
		Select(day+" as date, count(*) as value").
		Where(where(request, StatisticTypeDailyNewCustomerCount)).
		Group(day).
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *SubscriptionStatisticRequest, dataItem *SubscriptionStatisticDataItem) ([]SubscriptionStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeSubscriptionCountByStatus:
		return s.getSubscriptionCountByStatus(ctx, request)
	case StatisticTypeActiveSubscriptionCount:
		return s.getActiveSubscriptionCount(ctx, request)
	case StatisticTypeDailyPaidInvoiceCount:
		return s.getDailyPaidInvoiceCount(ctx, request)
	case StatisticTypeDailyPaidAmount:
		return s.getDailyPaidAmount(ctx, request)
	case StatisticTypeDailyFailedTransactionCount:
		return s.getDailyFailedTransactionCount(ctx, request)
	case StatisticTypeDailyNewCustomerCount:
		return s.getDailyNewCustomerCount(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetSubscriptionStatistic computes every requested data item in parallel.
func (s *Service) GetSubscriptionStatistic(ctx context.Context, request *SubscriptionStatisticRequest) (*SubscriptionStatisticResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []SubscriptionStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *SubscriptionStatisticDataItem) {
			defer wg.Done()
			res, err := s.getStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []SubscriptionStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]SubscriptionStatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &SubscriptionStatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
