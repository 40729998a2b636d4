package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/craftbill/internal/models"
)

// Service is the event dedup ledger. Its unique key on event_id is the only
// concurrency control for webhook processing.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Entry is what gets written for a first-seen event.
type Entry struct {
	EventID    string
	Type       string
	ReceivedAt time.Time
	Payload    []byte
}

// Record inserts the event inside tx. It returns false when the event id is
// already present, in which case the caller must roll back and skip handling.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, e Entry) (bool, error) {
	if e.EventID == "" {
		return false, fmt.Errorf("ledger: empty event id")
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	row := &models.WebhookEvent{
		EventID:    e.EventID,
		Type:       e.Type,
		ReceivedAt: e.ReceivedAt,
	}
	if len(e.Payload) > 0 {
		row.Payload = datatypes.JSON(e.Payload)
	}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("ledger insert %s: %w", e.EventID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Seen reports whether a committed ledger row exists for eventID.
func (s *Service) Seen(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
