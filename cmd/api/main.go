package main

import (
	"context"
	"log"
	"time"

	"waste-insights/internal/core/cache"
	"waste-insights/internal/core/config"
	"waste-insights/internal/core/logger"
	"waste-insights/internal/core/server"
	analyticshandler "waste-insights/internal/features/analytics/handler"
	analyticsservice "waste-insights/internal/features/analytics/service"
	reportadapter "waste-insights/internal/features/reports/adapters"
	reporthandler "waste-insights/internal/features/reports/handler"
	reportservice "waste-insights/internal/features/reports/service"
	"waste-insights/internal/jobs"

	"go.uber.org/zap"
)

// @title Waste Insights API
// @version 1.0
// @description Waste incident reporting with trend, workflow, driver performance and data quality analytics.
// @contact.name API Support
// @contact.email support@wasteinsights.io
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := reportadapter.NewMongoReportStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	cancel()
	if err != nil {
		l.Fatal("MongoDB connection failed", zap.Error(err))
	}
	defer store.Close(context.Background())
	l.Info("MongoDB connection verified", zap.String("database", cfg.Mongo.Database))

	// The cache is optional. Without REDIS_URL every report is computed
	// on demand.
	var reportCache cache.Cache
	if cfg.Cache.RedisURL != "" {
		adapter, err := cache.NewRedisAdapter(cfg.Cache.RedisURL)
		if err != nil {
			l.Fatal("Redis connection failed", zap.Error(err))
		}
		defer adapter.Close()
		if err := adapter.Ping(context.Background()); err != nil {
			l.Fatal("Redis ping failed", zap.Error(err))
		}
		reportCache = adapter
		l.Info("Redis connection verified")
	} else {
		l.Warn("REDIS_URL not set, analytics caching disabled")
	}

	reportSvc := reportservice.NewReportService(store, store)
	reportHdl := reporthandler.NewReportHandler(reportSvc)

	analyticsSvc := analyticsservice.NewAnalyticsService(store, reportCache, analyticsservice.Options{
		CacheTTL:              time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		EfficiencyTargetHours: cfg.Analytics.EfficiencyTargetHours,
	})
	analyticsHdl := analyticshandler.NewAnalyticsHandler(analyticsSvc)

	warmup := jobs.NewWarmup(analyticsSvc)
	if reportCache != nil {
		if err := warmup.Start(cfg.Analytics.WarmupCronSpec); err != nil {
			l.Fatal("Warm-up schedule failed", zap.Error(err))
		}
		defer warmup.Stop()
	}

	checks := map[string]server.HealthCheck{
		"mongo": store.Ping,
	}
	if reportCache != nil {
		checks["redis"] = reportCache.Ping
	}
	srv := server.New(cfg, checks)

	// Register Routes
	srv.App.Post("/api/reports", reportHdl.SubmitReport)
	srv.App.Get("/api/reports", reportHdl.ListReports)
	srv.App.Patch("/api/reports/:id/status", reportHdl.UpdateStatus)
	srv.App.Patch("/api/reports/:id/assign", reportHdl.AssignDriver)

	srv.App.Get("/api/analytics/trends", analyticsHdl.Trends)
	srv.App.Get("/api/analytics/workflow", analyticsHdl.Workflow)
	srv.App.Get("/api/analytics/drivers", analyticsHdl.Drivers)
	srv.App.Get("/api/analytics/drivers/:id/comparison", analyticsHdl.DriverComparison)
	srv.App.Get("/api/analytics/data-quality", analyticsHdl.DataQuality)
	srv.App.Get("/api/analytics/dashboard", analyticsHdl.Dashboard)

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
