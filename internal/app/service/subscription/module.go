package subscription

import "go.uber.org/fx"

// Module provides the subscription store shared by the webhook handlers,
// the entitlement gate and the account deletion saga.
var Module = fx.Options(
	fx.Provide(NewService),
)
