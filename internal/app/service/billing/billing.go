package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/tool"
	"github.com/fatflowers/craftbill/pkg/types"
)

var ErrNotFound = errors.New("billing record not found")

// Service stores invoices, cancellations and failed payments. None of it is
// consulted for access decisions.
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

// InsertInvoice appends a new invoice. An invoice that already exists is left
// as is, so a payment update that raced ahead is never overwritten.
func (s *Service) InsertInvoice(ctx context.Context, tx *gorm.DB, inv *models.Invoice) (bool, error) {
	if inv.InvoiceID == "" {
		return false, fmt.Errorf("insert invoice: empty invoice id")
	}
	res := s.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "invoice_id"}}, DoNothing: true}).
		Create(inv)
	if res.Error != nil {
		return false, fmt.Errorf("insert invoice %s: %w", inv.InvoiceID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ApplyPayment updates status and amounts of an invoice in place, creating it
// when the payment event arrives before the creation event.
func (s *Service) ApplyPayment(ctx context.Context, tx *gorm.DB, inv *models.Invoice) error {
	if inv.InvoiceID == "" {
		return fmt.Errorf("apply payment: empty invoice id")
	}
	inv.UpdatedAt = time.Now()
	err := s.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "invoice_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "amount_due", "amount_paid", "paid_at", "updated_at"}),
	}).Create(inv).Error
	if err != nil {
		return fmt.Errorf("apply payment to invoice %s: %w", inv.InvoiceID, err)
	}
	return nil
}

// InsertCancellation appends an audit row; the same (subscription, canceled_at)
// pair is stored once.
func (s *Service) InsertCancellation(ctx context.Context, tx *gorm.DB, rec *models.CancellationRecord) error {
	if rec.SubscriptionID == "" || rec.CanceledAt.IsZero() {
		return fmt.Errorf("insert cancellation: subscription id and canceled_at are required")
	}
	if rec.ID == "" {
		rec.ID = tool.GenerateUUIDV7()
	}
	err := s.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subscription_id"}, {Name: "canceled_at"}},
			DoNothing: true,
		}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("insert cancellation for %s: %w", rec.SubscriptionID, err)
	}
	return nil
}

func (s *Service) AppendFailedTransaction(ctx context.Context, tx *gorm.DB, ft *models.FailedTransaction) error {
	if ft.ID == "" {
		ft.ID = tool.GenerateUUIDV7()
	}
	if ft.FailedAt.IsZero() {
		ft.FailedAt = time.Now()
	}
	if err := s.conn(tx).WithContext(ctx).Create(ft).Error; err != nil {
		return fmt.Errorf("append failed transaction: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_failed_recorded",
		"customer_id", ft.CustomerID, "invoice_id", ft.InvoiceID, "failure_code", ft.FailureCode)
	return nil
}

// LatestInvoice returns the most recent invoice of customerID.
func (s *Service) LatestInvoice(ctx context.Context, customerID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("created_at desc").Order("invoice_id desc").First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Service) ListCancellations(ctx context.Context, subscriptionID string) ([]*models.CancellationRecord, error) {
	var rows []*models.CancellationRecord
	if err := s.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).
		Order("canceled_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) ListFailedTransactions(ctx context.Context, customerID string) ([]*models.FailedTransaction, error) {
	var rows []*models.FailedTransaction
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("failed_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type ScanInvoicesRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanInvoicesResponse struct {
	Items []*models.Invoice `json:"items"`
	Total int64             `json:"total"`
}

var invoiceColumns = []string{
	"invoice_id", "subscription_id", "customer_id", "period_start", "period_end",
	"status", "amount_due", "amount_paid", "currency", "paid_at", "created_at", "updated_at",
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ScanInvoices implements paginated admin listing with filters.
func (s *Service) ScanInvoices(ctx context.Context, req *ScanInvoicesRequest) (*ScanInvoicesResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}
	for _, f := range req.Filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		for _, field := range f.Fields() {
			if !lo.Contains(invoiceColumns, field) {
				return nil, fmt.Errorf("unsupported filter field: %v", field)
			}
		}
	}
	if req.SortBy != "" && !lo.Contains(invoiceColumns, req.SortBy) {
		return nil, fmt.Errorf("unsupported sort field: %s", req.SortBy)
	}

	tx := s.db.WithContext(ctx).Model(&models.Invoice{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	var rows []*models.Invoice
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := lo.Ternary(req.SortBy == "", "created_at", req.SortBy)
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return &ScanInvoicesResponse{Items: rows, Total: total}, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
