package stripe

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/fatflowers/craftbill/pkg/types"
)

func signedPayload(t *testing.T, secret string) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      "evt_1",
		"object":  "event",
		"type":    "customer.created",
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{"id": "cus_1", "object": "customer"},
		},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return payload, signed.Header
}

func TestVerifier_AcceptsValidSignature(t *testing.T) {
	payload, header := signedPayload(t, "whsec_test")
	ev, err := NewVerifierWithSecret("whsec_test").Verify(payload, header)
	require.NoError(t, err)
	require.Equal(t, "evt_1", ev.ID)
	require.Equal(t, types.EventTypeCustomerCreated, ev.Type)
	require.JSONEq(t, `{"id":"cus_1","object":"customer"}`, string(ev.Object))
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	payload, header := signedPayload(t, "whsec_other")
	_, err := NewVerifierWithSecret("whsec_test").Verify(payload, header)
	require.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestVerifier_RejectsMissingHeaderOrSecret(t *testing.T) {
	payload, header := signedPayload(t, "whsec_test")
	_, err := NewVerifierWithSecret("whsec_test").Verify(payload, "")
	require.ErrorIs(t, err, ErrInvalidSignature)
	_, err = NewVerifierWithSecret("").Verify(payload, header)
	require.ErrorIs(t, err, ErrInvalidSignature)
}
