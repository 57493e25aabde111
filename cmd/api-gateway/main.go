package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/interpreter-booking-api/internal/handler"
	"github.com/noah-isme/interpreter-booking-api/internal/repository"
	"github.com/noah-isme/interpreter-booking-api/internal/service"
	"github.com/noah-isme/interpreter-booking-api/pkg/cache"
	"github.com/noah-isme/interpreter-booking-api/pkg/config"
	"github.com/noah-isme/interpreter-booking-api/pkg/fhir"
	"github.com/noah-isme/interpreter-booking-api/pkg/logger"
)

// @title Interpreter Booking API
// @version 1.0.0
// @description Request assignment and interpreter availability engine
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStores(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open record store", "driver", cfg.StoreDriver, "error", err)
	}
	defer store.close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, search cache disabled", "error", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.FHIR.SearchCacheTTL, logr, cacheRepo.Enabled())
	a := newApp(cfg, store, fhir.NewClient(cfg.FHIR, nil, logr), cacheSvc, metricsSvc, logr)

	if err := a.auth.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
		logr.Sugar().Fatalw("failed to provision admin", "error", err)
	}
	if err := a.assignments.Rebuild(ctx); err != nil {
		logr.Sugar().Fatalw("failed to build matching index", "error", err)
	}

	if cfg.Reconcile.Enabled {
		reconciler := a.reconciler(cfg.Reconcile)
		reconciler.Start(ctx)
		reconciler.Every(cfg.Reconcile.Interval, reconcileJob)
		defer reconciler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]handler.ReadinessCheck{"store": store.ping}
	if cacheRepo.Enabled() {
		checks["redis"] = cacheRepo.Ping
	}
	r := a.router(cfg, checks)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
