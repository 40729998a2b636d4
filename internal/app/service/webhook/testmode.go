package webhook

import (
	"encoding/json"
	"time"

	stripeclient "github.com/fatflowers/craftbill/internal/platform/stripe"
	"github.com/fatflowers/craftbill/pkg/types"
)

// Identifiers of the fixed event served in test mode.
const (
	TestModeEventID    = "evt_test_webhook"
	TestModeCustomerID = "cus_test_webhook"
	TestModeAccountID  = "acct_test_webhook"
)

// TestModeEvent is the statically constructed event substituted for every
// delivery when signature verification is disabled.
func TestModeEvent() *stripeclient.Event {
	obj, _ := json.Marshal(Customer{
		ID:       TestModeCustomerID,
		Email:    "test@example.com",
		Name:     "Test Customer",
		Metadata: map[string]string{MetadataAccountID: TestModeAccountID},
	})
	return &stripeclient.Event{
		ID:      TestModeEventID,
		Type:    types.EventTypeCustomerCreated,
		Created: time.Unix(1700000000, 0).UTC(),
		Object:  obj,
	}
}
