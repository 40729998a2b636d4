package delivery_log

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook delivery log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, log *models.WebhookDeliveryLog) {
	if log == nil {
		return
	}
	go func() {
		if log.ID == "" {
			log.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save webhook delivery log: %v", err)
		}
	}()
}

// ListByEvent returns every delivery attempt recorded for eventID.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]*models.WebhookDeliveryLog, error) {
	var rows []*models.WebhookDeliveryLog
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
