package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"green/internal/amqp"
	"green/internal/cache"
	"green/internal/cli"
	apphttp "green/internal/http"
	"green/internal/ingest"
	"green/internal/log"
	"green/internal/metrics"
	"green/internal/report"
	"green/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	logger.Info("Starting green", "port", cfg.Port, "backend", cfg.DataBackend)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	store := cli.OpenStore(startupCtx, logger, cfg)
	loc := cli.Location(cfg)
	schema := report.DefaultSchema()
	m := metrics.New()

	grids := cache.NewLRUCache[*report.Grid](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(grids)
	caches.StartCleanup(cfg.ReportCacheTTL)

	reportOpts := []services.ReportServiceOption{
		services.WithGridCache(grids),
		services.WithReportMetrics(m),
	}
	recordOpts := []services.RecordServiceOption{
		services.WithRecordMetrics(m),
	}

	// Without a broker uploads still work, sheets publication is refused.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(startupCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			_ = store.Cleanup()
			os.Exit(1)
		}
		reportOpts = append(reportOpts, services.WithReportRequester(amqpClient))
		recordOpts = append(recordOpts, services.WithIngestPublisher(amqpClient))
		logger.Info("AMQP messaging enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP messaging disabled - no AMQP_URL provided")
	}

	reports := services.NewReportService(store.Store, schema, loc, reportOpts...)
	recordOpts = append(recordOpts, services.WithInvalidator(reports))
	records := services.NewRecordService(store.Store, ingest.NewParser(schema), loc, recordOpts...)
	staff := services.NewPetugasService(store.Store, services.WithPetugasInvalidator(reports))

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		UploadMaxBytes:     cfg.UploadMaxBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
		Metrics:            m,
	}, records, reports, staff, store.Store)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Store close error", log.FieldError, err)
		}
	})

	logger.Info("HTTP server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
