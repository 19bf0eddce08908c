package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"green/internal/amqp"
	"green/internal/cli"
	"green/internal/log"
	"green/internal/metrics"
	"green/internal/report"
	"green/internal/services"
	ports "green/internal/sheets"
	gsheet "green/internal/sheets/google"
	mem "green/internal/sheets/memory"
	"green/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting green-worker", "backend", cfg.DataBackend)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	store := cli.OpenStore(startupCtx, logger, cfg)
	loc := cli.Location(cfg)
	m := metrics.New()

	// Initialize Google Sheets client (optional)
	var out ports.Publisher
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(startupCtx, loc)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = store.Cleanup()
			os.Exit(1)
		}
		out = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		out = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory sheets")
	}

	reports := services.NewReportService(store.Store, report.DefaultSchema(), loc, services.WithReportMetrics(m))
	syncWorker := worker.NewSyncWorker(store.Store, reports, out, cfg.SyncBatchSize, m)
	sweeper := worker.NewSweeper(syncWorker, cfg.SyncInterval)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(startupCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			_ = store.Cleanup()
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP messaging disabled - relying on the periodic sweep")
	}

	var metricsSrv *http.Server
	if cfg.MetricsPort != "0" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", log.FieldError, err)
			}
		}()
		logger.Info("Worker metrics listening", "addr", metricsSrv.Addr)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...", log.FieldOperation, log.OpShutdown)
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil {
				logger.Warn("Metrics listener shutdown error", log.FieldError, err)
			}
		}
		if err := sweeper.Stop(ctx); err != nil {
			logger.Warn("Sweeper stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Store close error", log.FieldError, err)
		}
	})

	// Catch up on records whose events were missed while the worker was down.
	logger.Info("Performing startup sync check...", log.FieldOperation, log.OpStartup)
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", log.FieldError, err)
	}

	if amqpClient != nil {
		go func() {
			if err := amqpClient.Consume(ctx, syncWorker.Handlers()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
}
