package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/fatflowers/craftbill/pkg/config"
	"github.com/fatflowers/craftbill/pkg/types"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Event is the provider-neutral view of a verified webhook event.
type Event struct {
	ID      string          `json:"id"`
	Type    types.EventType `json:"type"`
	Created time.Time       `json:"created"`
	// Object is the raw data.object payload.
	Object json.RawMessage `json:"object"`
}

// Verifier checks the Stripe-Signature header against the endpoint secret.
type Verifier struct {
	secret string
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{secret: cfg.Stripe.WebhookSecret}
}

// NewVerifierWithSecret is used by tests and the CLI.
func NewVerifierWithSecret(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(payload []byte, signature string) (*Event, error) {
	if v.secret == "" || signature == "" {
		return nil, ErrInvalidSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &Event{ID: ev.ID, Type: types.EventType(ev.Type)}
	if ev.Created > 0 {
		out.Created = time.Unix(ev.Created, 0).UTC()
	}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}
