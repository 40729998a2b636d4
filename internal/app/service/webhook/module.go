package webhook

import (
	"go.uber.org/fx"

	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	deliverylog "github.com/fatflowers/craftbill/internal/app/service/delivery_log"
	"github.com/fatflowers/craftbill/internal/app/service/ledger"
	"github.com/fatflowers/craftbill/internal/app/service/reconcile"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	stripeclient "github.com/fatflowers/craftbill/internal/platform/stripe"
)

// Module wires the ingestor against the concrete stores.
var Module = fx.Options(
	fx.Provide(
		func(s *customer.Service) CustomerStore { return s },
		func(s *subscription.Service) SubscriptionStore { return s },
		func(s *billing.Service) BillingStore { return s },
		func(s *reconcile.Service) Reconciler { return s },
		func(v *stripeclient.Verifier) Verifier { return v },
		func(l *ledger.Service) EventLedger { return l },
		func(d *deliverylog.Service) DeliveryLog { return d },
	),
	fx.Provide(NewHandlers),
	fx.Provide(NewRouter),
	fx.Provide(NewIngestor),
)
