package customer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/tool"
)

var ErrNotFound = errors.New("customer link not found")

// Service owns the account <-> billing customer link.
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

// EnsureLink creates the link for accountID if none exists. An existing link
// for the account is left untouched and returned with created=false.
func (s *Service) EnsureLink(ctx context.Context, tx *gorm.DB, accountID, customerID string, contact models.ContactFields) (*models.Customer, bool, error) {
	if accountID == "" || customerID == "" {
		return nil, false, fmt.Errorf("ensure link: account id and customer id are required")
	}
	db := s.conn(tx).WithContext(ctx)

	var existing models.Customer
	err := db.Where("account_id = ?", accountID).First(&existing).Error
	if err == nil {
		if existing.CustomerID != customerID {
			logctx.FromCtx(ctx, s.log).Warnw("customer_link_conflict",
				"account_id", accountID, "linked_customer_id", existing.CustomerID, "event_customer_id", customerID)
		}
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("load customer by account: %w", err)
	}

	row := &models.Customer{
		ID:         tool.GenerateUUIDV7(),
		AccountID:  accountID,
		CustomerID: customerID,
		Email:      contact.Email,
		Name:       contact.Name,
		Phone:      contact.Phone,
	}
	// Either unique key may already be taken by a concurrent insert.
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create customer link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var raced models.Customer
		if err := db.Where("account_id = ? OR customer_id = ?", accountID, customerID).First(&raced).Error; err != nil {
			return nil, false, fmt.Errorf("reload customer link: %w", err)
		}
		return &raced, false, nil
	}
	if err := s.applyPending(db, row); err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// UpsertContact refreshes the non-empty contact fields of the link for
// customerID. A missing link is not an error.
func (s *Service) UpsertContact(ctx context.Context, tx *gorm.DB, customerID string, contact models.ContactFields) error {
	if customerID == "" || contact.IsZero() {
		return nil
	}
	updates := map[string]any{}
	if contact.Email != "" {
		updates["email"] = contact.Email
	}
	if contact.Name != "" {
		updates["name"] = contact.Name
	}
	if contact.Phone != "" {
		updates["phone"] = contact.Phone
	}
	res := s.conn(tx).WithContext(ctx).Model(&models.Customer{}).
		Where("customer_id = ?", customerID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update contact for %s: %w", customerID, res.Error)
	}
	if res.RowsAffected == 0 {
		logctx.FromCtx(ctx, s.log).Infow("customer_link_missing", "customer_id", customerID, "op", "upsert_contact")
	}
	return nil
}

// MarkConfirmed sets confirmed=true. The statement never writes false, so the
// flag is monotonic regardless of event order. When no link exists yet the
// confirmation is parked and applied by EnsureLink.
func (s *Service) MarkConfirmed(ctx context.Context, tx *gorm.DB, customerID string) error {
	if customerID == "" {
		return nil
	}
	db := s.conn(tx).WithContext(ctx)
	res := db.Model(&models.Customer{}).
		Where("customer_id = ? AND confirmed = ?", customerID, false).
		Update("confirmed", true)
	if res.Error != nil {
		return fmt.Errorf("confirm customer %s: %w", customerID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var linked int64
	if err := db.Model(&models.Customer{}).Where("customer_id = ?", customerID).Count(&linked).Error; err != nil {
		return fmt.Errorf("check customer link %s: %w", customerID, err)
	}
	if linked > 0 {
		return nil
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PendingConfirmation{CustomerID: customerID}).Error; err != nil {
		return fmt.Errorf("park confirmation for %s: %w", customerID, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("customer_confirmation_pending", "customer_id", customerID)
	return nil
}

// applyPending confirms a freshly created link if a confirmation was parked
// for its customer id.
func (s *Service) applyPending(db *gorm.DB, row *models.Customer) error {
	res := db.Where("customer_id = ?", row.CustomerID).Delete(&models.PendingConfirmation{})
	if res.Error != nil {
		return fmt.Errorf("consume pending confirmation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	if err := db.Model(&models.Customer{}).Where("customer_id = ?", row.CustomerID).Update("confirmed", true).Error; err != nil {
		return fmt.Errorf("apply pending confirmation: %w", err)
	}
	row.Confirmed = true
	return nil
}

func (s *Service) GetByAccountID(ctx context.Context, accountID string) (*models.Customer, error) {
	return s.first(ctx, "account_id = ?", accountID)
}

func (s *Service) GetByCustomerID(ctx context.Context, customerID string) (*models.Customer, error) {
	return s.first(ctx, "customer_id = ?", customerID)
}

func (s *Service) first(ctx context.Context, query string, arg string) (*models.Customer, error) {
	var row models.Customer
	if err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// UpdateProfile writes contact fields requested by the account owner. Empty
// fields are left as they are.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, contact models.ContactFields) (*models.Customer, error) {
	row, err := s.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.UpsertContact(ctx, nil, row.CustomerID, contact); err != nil {
		return nil, err
	}
	return s.GetByAccountID(ctx, accountID)
}

var Module = fx.Options(
	fx.Provide(NewService),
)
