package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/happyinline/internal/config"
	"github.com/smallbiznis/happyinline/internal/observability"
	obsmiddleware "github.com/smallbiznis/happyinline/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/happyinline/internal/observability/metrics"
	obstracing "github.com/smallbiznis/happyinline/internal/observability/tracing"
	"github.com/smallbiznis/happyinline/internal/payment/webhook"
	"github.com/smallbiznis/happyinline/internal/plan"
	"github.com/smallbiznis/happyinline/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(func(s *webhook.Service) WebhookIngester { return s }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// WebhookIngester verifies and applies one processor delivery.
type WebhookIngester interface {
	IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) (webhook.Result, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	webhooks        WebhookIngester
	subscriptionSvc subscriptiondomain.Service
	plans           plan.Lookup
	ownerLimiter    *ratelimit.OwnerLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Webhooks        WebhookIngester
	SubscriptionSvc subscriptiondomain.Service
	Plans           plan.Lookup
	OwnerLimiter    *ratelimit.OwnerLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		webhooks:        p.Webhooks,
		subscriptionSvc: p.SubscriptionSvc,
		plans:           p.Plans,
		ownerLimiter:    p.OwnerLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/stripe", s.HandleStripeWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/plans", s.ListPlans)

	// -------- Subscriptions --------
	subs := api.Group("/subscriptions", s.OwnerRateLimit())
	{
		subs.POST("/checkout", s.Checkout)
		subs.POST("/upgrade", s.Upgrade)
		subs.POST("/refund", s.Refund)
		subs.POST("/cancel", s.Cancel)
	}

	// -------- Owners --------
	owners := api.Group("/owners/:ownerId")
	{
		owners.GET("/subscription", s.GetOwnerSubscription)
		owners.GET("/payments", s.ListOwnerPayments)
		owners.GET("/payments/:paymentId/receipt", s.GetPaymentReceipt)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
