package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/craftbill/internal/app/service/ledger"
	"github.com/fatflowers/craftbill/internal/models"
	stripeclient "github.com/fatflowers/craftbill/internal/platform/stripe"
	"github.com/fatflowers/craftbill/pkg/config"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/metrics"
)

var (
	ErrInvalidSignature = stripeclient.ErrInvalidSignature
	ErrTestModeInProd   = errors.New("webhook test mode is not allowed in prod")
)

type Verifier interface {
	Verify(payload []byte, signature string) (*stripeclient.Event, error)
}

type EventLedger interface {
	Record(ctx context.Context, tx *gorm.DB, e ledger.Entry) (bool, error)
}

type DeliveryLog interface {
	Save(ctx context.Context, log *models.WebhookDeliveryLog)
}

// Status of a processed delivery.
type Status string

const (
	StatusHandled   Status = "handled"
	StatusDuplicate Status = "duplicate"
	StatusIgnored   Status = "ignored"
)

type Outcome struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Status  Status `json:"status"`
}

// Ingestor verifies deliveries, deduplicates them on the ledger and dispatches
// first-seen events. Ledger insert and handler mutation share one transaction.
type Ingestor struct {
	cfg      *config.Config
	db       *gorm.DB
	verifier Verifier
	ledger   EventLedger
	router   *Router
	delivery DeliveryLog
	metrics  *metrics.Domain
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewIngestor(cfg *config.Config, db *gorm.DB, verifier Verifier, ledger EventLedger, router *Router, delivery DeliveryLog, m *metrics.Domain, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{
		cfg:      cfg,
		db:       db,
		verifier: verifier,
		ledger:   ledger,
		router:   router,
		delivery: delivery,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (i *Ingestor) event(payload []byte, signature string) (*stripeclient.Event, error) {
	if i.cfg.Stripe.WebhookTestMode {
		if i.cfg.IsProd() {
			return nil, ErrTestModeInProd
		}
		return TestModeEvent(), nil
	}
	return i.verifier.Verify(payload, signature)
}

// Ingest processes one delivery. A returned error wrapping ErrInvalidSignature
// maps to 400; any other error means the provider must redeliver.
func (i *Ingestor) Ingest(ctx context.Context, payload []byte, signature string) (out *Outcome, resErr error) {
	log := logctx.FromCtx(ctx, i.log)
	receivedAt := i.now()

	ev, err := i.event(payload, signature)
	if err != nil {
		// Only a failed signature check is the sender's fault (400); anything
		// else is ours and gets redelivered.
		outcome, status := metrics.OutcomeBadSignature, models.WebhookDeliveryStatusBadSignature
		if !errors.Is(err, ErrInvalidSignature) {
			outcome, status = metrics.OutcomeFailed, models.WebhookDeliveryStatusHandleFailed
		}
		i.metrics.WebhookEvent("unknown", outcome)
		i.saveDelivery(ctx, "", "", payload, status, receivedAt, err)
		log.Warnw("webhook_rejected", "error", err)
		return nil, err
	}

	out = &Outcome{EventID: ev.ID, Type: string(ev.Type)}
	log = log.With("event_id", ev.ID, "event_type", ev.Type)
	log.Infow("webhook_received")
	i.saveDelivery(ctx, ev.ID, string(ev.Type), payload, models.WebhookDeliveryStatusReceived, receivedAt, nil)

	defer func() {
		status := models.WebhookDeliveryStatusHandled
		outcome := string(out.Status)
		switch {
		case resErr != nil:
			status, outcome = models.WebhookDeliveryStatusHandleFailed, metrics.OutcomeFailed
		case out.Status == StatusDuplicate:
			status = models.WebhookDeliveryStatusDuplicate
		}
		i.metrics.WebhookEvent(string(ev.Type), outcome)
		i.saveDelivery(ctx, ev.ID, string(ev.Type), payload, status, receivedAt, resErr)
	}()

	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, err := i.ledger.Record(ctx, tx, ledger.Entry{
			EventID:    ev.ID,
			Type:       string(ev.Type),
			ReceivedAt: receivedAt,
			Payload:    ev.Object,
		})
		if err != nil {
			return err
		}
		if !first {
			out.Status = StatusDuplicate
			return nil
		}
		handled, err := i.router.Dispatch(ctx, tx, ev)
		if err != nil {
			return err
		}
		out.Status = StatusHandled
		if !handled {
			out.Status = StatusIgnored
		}
		return nil
	})
	if err != nil {
		log.Errorw("webhook_handle_error", "error", err)
		return out, fmt.Errorf("handle event %s: %w", ev.ID, err)
	}
	if out.Status == StatusDuplicate {
		log.Infow("webhook_duplicate")
	}
	return out, nil
}

func (i *Ingestor) saveDelivery(ctx context.Context, eventID, eventType string, payload []byte, status models.WebhookDeliveryStatus, receivedAt time.Time, err error) {
	if i.delivery == nil {
		return
	}
	entry := &models.WebhookDeliveryLog{
		EventID:    eventID,
		EventType:  eventType,
		TraceID:    logctx.TraceID(ctx),
		Status:     status,
		ReceivedAt: receivedAt,
	}
	if json.Valid(payload) {
		entry.Data = datatypes.JSON(payload)
	}
	if err != nil {
		res, _ := json.Marshal(map[string]any{"error": err.Error()})
		j := datatypes.JSON(res)
		entry.Result = &j
	}
	i.delivery.Save(ctx, entry)
}
