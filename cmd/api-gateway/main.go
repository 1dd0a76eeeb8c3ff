package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/api/swagger"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/handler"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/middleware"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/repository"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/routes"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/service"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/cache"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/database"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/logger"
	corsmiddleware "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/middleware/requestid"
)

// @title Estudio Pilates Scheduling API
// @version 1.0.0
// @description Class session booking, waitlist, and attendance service
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	notifications := routes.Register(r, routes.Dependencies{
		Config:  cfg,
		DB:      db,
		Cache:   cacheRepo,
		Metrics: metrics,
		Logger:  logr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if notifications != nil {
		notifications.Start(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
	if notifications != nil {
		notifications.Stop()
	}
}
