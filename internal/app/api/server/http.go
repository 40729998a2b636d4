package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/docs"
	"github.com/fatflowers/craftbill/internal/app/api/handlers"
	mw "github.com/fatflowers/craftbill/internal/app/api/middleware"
	"github.com/fatflowers/craftbill/internal/app/service/account"
	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	deliverylog "github.com/fatflowers/craftbill/internal/app/service/delivery_log"
	"github.com/fatflowers/craftbill/internal/app/service/entitlement"
	"github.com/fatflowers/craftbill/internal/app/service/reconcile"
	"github.com/fatflowers/craftbill/internal/app/service/statistics"
	subsvc "github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/internal/app/service/webhook"
	cfgpkg "github.com/fatflowers/craftbill/pkg/config"
	metrics "github.com/fatflowers/craftbill/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log         *zap.SugaredLogger
	Cfg         *cfgpkg.Config
	Ingestor    *webhook.Ingestor
	Entitlement *entitlement.Service
	Customers   *customer.Service
	Accounts    *account.Service
	Reconciler  *reconcile.Service
	Subs        *subsvc.Service
	Billing     *billing.Service
	Stats       *statistics.Service
	Deliveries  *deliverylog.Service
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log, cfg := d.Log, d.Cfg
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			Subsystem: "craftbill",
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	handlers.RegisterWebhookRoutes(pub, d.Ingestor, log)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Gated application routes
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	gated := apiV1.Group("")
	gated.Use(mw.AuthMiddleware(cfg, log), mw.EntitlementGate(d.Entitlement, log))
	handlers.RegisterCustomerRoutes(gated, d.Customers)

	// Admin APIs
	if len(cfg.Admin.Accounts) == 0 {
		log.Warnw("admin routes disabled: no admin.accounts configured")
		return
	}
	admin := apiV1.Group("/admin", gin.BasicAuth(gin.Accounts(cfg.Admin.Accounts)))
	handlers.RegisterAdminRoutes(admin, handlers.AdminServices{
		Accounts:   d.Accounts,
		Reconciler: d.Reconciler,
		Subs:       d.Subs,
		Billing:    d.Billing,
		Customers:  d.Customers,
		Stats:      d.Stats,
		Deliveries: d.Deliveries,
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
