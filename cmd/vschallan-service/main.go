package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/app"
	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/middlewares"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
	"github.com/invento-software-limited/Smart-Vat-Challan/vschallan"
)

func main() {
	settings := config.Load()
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	rt, err := app.Build(sigCtx, settings)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "startup"}).Fatal(err)
	}
	defer rt.Close()
	svc := rt.Service

	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	if settings.IsProduction() {
		corsConfig.AllowOrigins = settings.CorsAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())

	if settings.APISecret == "" {
		logger.WithFields(logrus.Fields{"field": "auth"}).Warn("API_SECRET not set, operator API is unauthenticated")
	}
	vschallan.RegisterRoutes(r.Group("", middlewares.AuthMiddleware(settings.APISecret)), svc)
	r.POST("/pubsub/vschallan-sync", vschallan.PubSubPushHandler(svc, settings.EnablePubSubPush))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"field": "server", "port": settings.Port}).Info("vschallan service listening")

	if settings.AutoSyncIntervalMinutes > 0 {
		go runAutoSync(sigCtx, svc, logger, time.Duration(settings.AutoSyncIntervalMinutes)*time.Minute)
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

// runAutoSync triggers AutoSync on every tick. The cadence check inside
// AutoSync decides whether a tick does any work.
func runAutoSync(ctx context.Context, svc *vschallan.Service, logger *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx := utils.SetTriggeredByInContext(ctx, models.SyncTriggeredSystem)
			tickCtx = utils.SetCorrelationIdInContext(tickCtx, uuid.NewString())
			if _, err := svc.AutoSync(tickCtx); err != nil {
				config.LogError(logger, "vschallan-service", "runAutoSync", "auto sync tick", nil, err)
			}
		}
	}
}
