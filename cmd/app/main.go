package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"paygate/cmd/fx/access_fx"
	"paygate/cmd/fx/config_fx"
	"paygate/cmd/fx/controllers_fx"
	"paygate/cmd/fx/db_fx"
	"paygate/cmd/fx/dispatcher_fx"
	"paygate/cmd/fx/logger_fx"
	"paygate/cmd/fx/memcache_fx"
	"paygate/cmd/fx/notification_fx"
	"paygate/cmd/fx/paycode_fx"
	"paygate/cmd/fx/repositories_fx"
	"paygate/cmd/fx/telegram_fx"
	"paygate/cmd/fx/transaction_fx"
	"paygate/internal/api/controllers"
	"paygate/internal/config"
	"paygate/pkg/middleware"
)

func main() {
	app := fx.New(
		config_fx.Module,
		logger_fx.Module,
		db_fx.Module,
		memcache_fx.Module,
		repositories_fx.Module,
		dispatcher_fx.Module,
		telegram_fx.Module,
		transaction_fx.Module,
		access_fx.Module,
		notification_fx.Module,
		paycode_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				log.Info("starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

func ProvideRouter(
	cfg config.Config,
	log *zap.Logger,
	transactionController *controllers.TransactionController,
	paycodeController *controllers.PaycodeController,
	planController *controllers.PlanController,
	notificationController *controllers.NotificationController) *gin.Engine {

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(gin.Recovery())

	RegisterRoutes(r, []byte(cfg.JWTSecret), transactionController, paycodeController, planController, notificationController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	secret []byte,
	transactionController *controllers.TransactionController,
	paycodeController *controllers.PaycodeController,
	planController *controllers.PlanController,
	notificationController *controllers.NotificationController) {

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/paycodes/check", paycodeController.Check)

	auth := middleware.JWTAuthMiddleware(secret)

	txGroup := r.Group("/transactions", auth)
	txGroup.POST("", middleware.RequireCapability("transactions:write"), transactionController.CreateTransaction)
	txGroup.GET("/:id", middleware.RequireCapability("transactions:read"), transactionController.GetTransaction)
	txGroup.POST("/:id/status", middleware.RequireCapability("transactions:write"), transactionController.ChangeStatus)
	txGroup.POST("/:id/paycode", middleware.RequireCapability("paycodes:mint"), paycodeController.Mint)

	r.GET("/bots/:botId/plans", auth, middleware.RequireCapability("transactions:read"), planController.ListPlans)

	opsGroup := r.Group("", auth)
	opsGroup.POST("/alerts/broadcast", middleware.RequireCapability("alerts:broadcast"), notificationController.Broadcast)
	opsGroup.POST("/downsells/schedule", middleware.RequireCapability("downsells:schedule"), notificationController.ScheduleDownsells)
	opsGroup.GET("/jobs/attempts", middleware.RequireCapability("jobs:read"), notificationController.ListJobAttempts)
}
