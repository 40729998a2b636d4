package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/craftbill/internal/app/api/server"
	"github.com/fatflowers/craftbill/internal/app/service/account"
	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	deliverylog "github.com/fatflowers/craftbill/internal/app/service/delivery_log"
	"github.com/fatflowers/craftbill/internal/app/service/entitlement"
	"github.com/fatflowers/craftbill/internal/app/service/ledger"
	"github.com/fatflowers/craftbill/internal/app/service/reconcile"
	"github.com/fatflowers/craftbill/internal/app/service/statistics"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/internal/app/service/webhook"
	"github.com/fatflowers/craftbill/internal/platform/db"
	"github.com/fatflowers/craftbill/internal/platform/identity"
	"github.com/fatflowers/craftbill/internal/platform/stripe"
	"github.com/fatflowers/craftbill/pkg/config"
	"github.com/fatflowers/craftbill/pkg/logger"
	"github.com/fatflowers/craftbill/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Core is every service without the HTTP server. The operator CLI runs on it.
var Core = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	stripe.Module,
	identity.Module,
	ledger.Module,
	customer.Module,
	subscription.Module,
	billing.Module,
	reconcile.Module,
	deliverylog.Module,
	webhook.Module,
	entitlement.Module,
	account.Module,
	statistics.Module,
)

var Module = fx.Options(
	Core,
	server.Module,
)
