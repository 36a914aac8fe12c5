package main

import (
	"context"
	"errors"
	"os"
	"time"

	"consultoria/internal/amqp"
	"consultoria/internal/archive"
	"consultoria/internal/cli"
	"consultoria/internal/export/xlsx"
	"consultoria/internal/log"
	"consultoria/internal/sheets"
	gsheet "consultoria/internal/sheets/google"
	"consultoria/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(log.ComponentWorker)
	logger.Info("Starting export-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	store, cleanupBackend := cli.OpenStore(context.Background(), logger, cfg)

	conflict, err := xlsx.ParseConflict(cfg.SheetConflict)
	if err != nil {
		logger.Error("Invalid sheet conflict policy", log.FieldError, err)
		os.Exit(1)
	}

	sinks := []archive.Sink{archive.NewDir(cfg.ExportDir)}
	var gcs *archive.GCS
	if cfg.GCSBucket != "" {
		gcs, err = archive.NewGCS(context.Background(), cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			logger.Error("Failed to initialize Cloud Storage client", log.FieldError, err)
			os.Exit(1)
		}
		sinks = append(sinks, gcs)
		logger.Info("Cloud Storage archive enabled", "bucket", cfg.GCSBucket)
	}

	// Initialize Google Sheets mirror (optional)
	var mirror sheets.SummaryWriter
	if cfg.SheetsMirrorEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			Sheet:           cfg.GoogleSummarySheet,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	w := worker.NewExportWorker(worker.Options{
		Store:     store,
		Workbooks: xlsx.New(xlsx.Options{Conflict: conflict}),
		Sinks:     sinks,
		Mirror:    mirror,
		Config:    worker.Config{Interval: cfg.ExportInterval},
		Logger:    logger,
	})

	var amqpClient *amqp.Client
	if cfg.EventsEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("Skipping AMQP consumption - exports run on the interval only")
	}

	runCtx, cancelRun := context.WithCancel(context.Background())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		cancelRun()

		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := w.Stop(stopCtx); err != nil {
			logger.Warn("Export worker did not stop cleanly", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if gcs != nil {
			_ = gcs.Close()
		}
		if err := cleanupBackend(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	})

	if err := w.Start(runCtx); err != nil {
		logger.Error("Failed to start export worker", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			if err := amqpClient.Consume(runCtx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Export worker exited")
}
