// Package server exposes the billing back office over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	activitydomain "github.com/smallbiznis/deskflow/internal/activity/domain"
	dashboarddomain "github.com/smallbiznis/deskflow/internal/billingdashboard/domain"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	"github.com/smallbiznis/deskflow/internal/config"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	"github.com/smallbiznis/deskflow/internal/logger"
	"github.com/smallbiznis/deskflow/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/deskflow/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/deskflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/deskflow/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServerParam struct {
	fx.In

	Config       config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	HTTPMetrics  *metrics.HTTPMetrics
	CatalogSvc   catalogdomain.Service
	CouponSvc    coupondomain.Service
	PricingSvc   pricingdomain.Service
	SubSvc       subscriptiondomain.Service
	InvoiceSvc   invoicedomain.Service
	UsageSvc     usagedomain.Service
	PaymentSvc   paymentdomain.Service
	DashboardSvc dashboarddomain.Service
	Activity     activitydomain.Recorder
}

type Server struct {
	cfg config.Config
	db  *gorm.DB
	log *zap.Logger

	httpMetrics  *metrics.HTTPMetrics
	catalogSvc   catalogdomain.Service
	couponSvc    coupondomain.Service
	pricingSvc   pricingdomain.Service
	subSvc       subscriptiondomain.Service
	invoiceSvc   invoicedomain.Service
	usageSvc     usagedomain.Service
	paymentSvc   paymentdomain.Service
	dashboardSvc dashboarddomain.Service
	activity     activitydomain.Recorder
}

func NewServer(p ServerParam) *Server {
	return &Server{
		cfg: p.Config,
		db:  p.DB,
		log: p.Log.Named("server"),

		httpMetrics:  p.HTTPMetrics,
		catalogSvc:   p.CatalogSvc,
		couponSvc:    p.CouponSvc,
		pricingSvc:   p.PricingSvc,
		subSvc:       p.SubSvc,
		invoiceSvc:   p.InvoiceSvc,
		usageSvc:     p.UsageSvc,
		paymentSvc:   p.PaymentSvc,
		dashboardSvc: p.DashboardSvc,
		activity:     p.Activity,
	}
}

// Router builds the gin engine with all middleware and routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(metrics.GinMiddleware(s.httpMetrics))

	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the versioned API. Every /v1 route requires the
// organization header.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.Use(s.OrgRequired())

	v1.POST("/pricing/resolve", s.ResolvePrice)

	v1.POST("/plans", s.CreatePlan)
	v1.GET("/plans", s.ListPlans)
	v1.GET("/plans/:id", s.GetPlan)
	v1.POST("/plans/:id/activate", s.ActivatePlan)
	v1.POST("/plans/:id/archive", s.ArchivePlan)
	v1.POST("/plans/:id/pricings", s.CreatePricing)
	v1.GET("/plans/:id/pricings", s.ListPricings)
	v1.POST("/plans/:id/addons", s.AttachAddOn)
	v1.GET("/plans/:id/addons", s.ListPlanAddOns)
	v1.POST("/addons", s.CreateAddOn)

	v1.POST("/coupons", s.CreateCoupon)
	v1.GET("/coupons/:code", s.GetCoupon)
	v1.POST("/coupons/:id/disable", s.DisableCoupon)

	v1.POST("/subscriptions", s.CreateSubscription)
	v1.GET("/subscriptions", s.ListSubscriptions)
	v1.GET("/subscriptions/:id", s.GetSubscription)
	v1.GET("/subscriptions/:id/activity", s.ListSubscriptionActivity)
	v1.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	v1.POST("/subscriptions/:id/pause", s.PauseSubscription)
	v1.POST("/subscriptions/:id/resume", s.ResumeSubscription)
	v1.POST("/subscriptions/:id/roll", s.RollSubscriptionPeriod)

	v1.POST("/invoices/generate", s.GenerateInvoice)
	v1.GET("/invoices", s.ListInvoices)
	v1.GET("/invoices/:id", s.GetInvoice)
	v1.POST("/invoices/:id/finalize", s.FinalizeInvoice)
	v1.POST("/invoices/:id/pay", s.PayInvoice)
	v1.POST("/invoices/:id/void", s.VoidInvoice)
	v1.GET("/invoices/:id/payments", s.ListInvoicePayments)

	v1.POST("/usage", s.RecordUsage)

	v1.GET("/overview", s.GetOverview)
}

// Healthz reports liveness and database reachability.
func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run starts the HTTP listener under the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
