package main

import (
	"context"
	"errors"
	"os"

	"hcms/internal/amqp"
	"hcms/internal/backend"
	"hcms/internal/cli"
	"hcms/internal/config"
	applog "hcms/internal/log"
	"hcms/internal/sheets"
	gsheet "hcms/internal/sheets/google"
	"hcms/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting hcms-worker", applog.FieldOperation, applog.OpStartup)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.JobsEnabled() {
		logger.Error("AMQP_URL is required for the export worker", applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Worker is using the memory backend; exports will not see records written by the server")
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize record store", applog.FieldError, err)
		os.Exit(1)
	}
	defer store.Cleanup()

	var publisher sheets.ReportPublisher
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("Google Sheets publishing enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(store.Repository, publisher, cfg.ExportDir)
	logger.Info("Consuming export jobs", "queue", cfg.AMQPQueue, "export_dir", cfg.ExportDir)
	if err := amqpClient.ConsumeExportRequests(ctx, exportWorker.HandleExportRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
