package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/payflow/internal/config"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	obstracing "github.com/smallbiznis/payflow/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/payflow/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	paymentSvc paymentdomain.Service
	ledgerSvc  ledgerdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	LedgerSvc  ledgerdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		paymentSvc: p.PaymentSvc,
		ledgerSvc:  p.LedgerSvc,
	}

	svc.registerPaymentRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPaymentRoutes() {
	orders := s.engine.Group("/v1/orders/:order_id")

	payments := orders.Group("/payments")
	{
		payments.POST("/reserve", s.ReserveOrder)
		payments.POST("/reserve/rollback", s.RollbackReservation)
		payments.POST("/modify", s.ModifyOrder)
		payments.POST("/cancel", s.CancelOrder)
		payments.POST("/refund", s.RefundOrder)
		payments.POST("/manual-refund", s.ManualRefundOrder)
	}

	shipments := orders.Group("/shipments")
	{
		shipments.POST("/:shipment_id/complete", s.CompleteShipment)
		shipments.POST("/:shipment_id/cancel", s.CancelShipment)
		shipments.POST("/complete/rollback", s.RollbackShipmentCompletion)
	}

	ledger := orders.Group("/ledger")
	{
		ledger.GET("", s.GetLedger)
		ledger.GET("/state", s.GetLedgerState)
	}
}
