package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/craftbill/internal/app/service/customer"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/internal/platform/identity"
	stripeclient "github.com/fatflowers/craftbill/internal/platform/stripe"
	"github.com/fatflowers/craftbill/pkg/logctx"
)

// Systems touched by the deletion saga, in execution order.
const (
	SystemIdentity = "identity"
	SystemBilling  = "billing"
	SystemLocal    = "local"
)

type Result string

const (
	ResultComplete Result = "complete"
	ResultPartial  Result = "partial"
	ResultFailed   Result = "failed"
)

type StepReport struct {
	System  string `json:"system"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Report struct {
	AccountID  string       `json:"account_id"`
	CustomerID string       `json:"customer_id,omitempty"`
	Result     Result       `json:"result"`
	Steps      []StepReport `json:"steps"`
}

type IdentityDeleter interface {
	DeleteUser(ctx context.Context, accountID string) error
}

type CustomerDeleter interface {
	DeleteCustomer(ctx context.Context, customerID string) error
}

type LinkReader interface {
	GetByAccountID(ctx context.Context, accountID string) (*models.Customer, error)
}

type SubscriptionDeleter interface {
	DeleteByCustomerID(ctx context.Context, tx *gorm.DB, customerID string) (int64, error)
}

// Service deletes an account across the identity provider, the billing
// provider and the local store. Remote failures are reported, never rolled
// back, and never stop the local cleanup.
type Service struct {
	db       *gorm.DB
	identity IdentityDeleter
	billing  CustomerDeleter
	links    LinkReader
	subs     SubscriptionDeleter
	log      *zap.SugaredLogger
}

func NewService(db *gorm.DB, identity IdentityDeleter, billing CustomerDeleter, links LinkReader, subs SubscriptionDeleter, log *zap.SugaredLogger) *Service {
	return &Service{db: db, identity: identity, billing: billing, links: links, subs: subs, log: log}
}

func (s *Service) Delete(ctx context.Context, accountID string) (*Report, error) {
	if accountID == "" {
		return nil, fmt.Errorf("delete account: empty account id")
	}
	log := logctx.FromCtx(ctx, s.log).With("account_id", accountID)
	report := &Report{AccountID: accountID}

	link, err := s.links.GetByAccountID(ctx, accountID)
	if err != nil && !errors.Is(err, customer.ErrNotFound) {
		return nil, fmt.Errorf("load customer link: %w", err)
	}
	if link != nil {
		report.CustomerID = link.CustomerID
	}

	step := func(system string, fn func() error) {
		r := StepReport{System: system, OK: true}
		if err := fn(); err != nil {
			r.OK, r.Error = false, err.Error()
			log.Warnw("account_delete_step_failed", "system", system, "error", err)
		}
		report.Steps = append(report.Steps, r)
	}

	step(SystemIdentity, func() error { return s.identity.DeleteUser(ctx, accountID) })

	if link == nil {
		report.Steps = append(report.Steps, StepReport{System: SystemBilling, OK: true, Skipped: true})
	} else {
		step(SystemBilling, func() error { return s.billing.DeleteCustomer(ctx, link.CustomerID) })
	}

	step(SystemLocal, func() error { return s.deleteLocal(ctx, accountID, link) })

	report.Result = summarize(report.Steps)
	log.Infow("account_deleted", "result", report.Result, "customer_id", report.CustomerID)
	return report, nil
}

// deleteLocal removes the subscription and the link in one transaction.
// Invoices, cancellations and failed payments are kept as audit trail.
func (s *Service) deleteLocal(ctx context.Context, accountID string, link *models.Customer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if link != nil {
			if _, err := s.subs.DeleteByCustomerID(ctx, tx, link.CustomerID); err != nil {
				return err
			}
			if err := tx.Where("customer_id = ?", link.CustomerID).Delete(&models.PendingConfirmation{}).Error; err != nil {
				return fmt.Errorf("delete pending confirmation: %w", err)
			}
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&models.Customer{}).Error; err != nil {
			return fmt.Errorf("delete customer link: %w", err)
		}
		return nil
	})
}

func summarize(steps []StepReport) Result {
	failed := 0
	for _, st := range steps {
		if !st.OK {
			failed++
		}
	}
	switch {
	case failed == 0:
		return ResultComplete
	case failed == len(steps):
		return ResultFailed
	default:
		return ResultPartial
	}
}

var Module = fx.Options(
	fx.Provide(
		func(c *identity.Client) IdentityDeleter { return c },
		func(c *stripeclient.Client) CustomerDeleter { return c },
		func(s *customer.Service) LinkReader { return s },
		func(s *subscription.Service) SubscriptionDeleter { return s },
	),
	fx.Provide(NewService),
)
