package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"consultoria/internal/amqp"
	"consultoria/internal/cache"
	"consultoria/internal/chart"
	"consultoria/internal/cli"
	"consultoria/internal/core"
	"consultoria/internal/export/pdf"
	"consultoria/internal/export/xlsx"
	apphttp "consultoria/internal/http"
	"consultoria/internal/log"
	"consultoria/internal/services"
	"consultoria/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store, cleanupBackend := cli.OpenStore(context.Background(), logger, cfg)

	charts := chart.NewPieRenderer()
	conflict, err := xlsx.ParseConflict(cfg.SheetConflict)
	if err != nil {
		logger.Error("Invalid sheet conflict policy", log.FieldError, err)
		os.Exit(1)
	}

	exportCache := cache.NewLRUCache[[]byte](cfg.ExportCacheSize, cfg.ExportCacheTTL)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go cache.NewJanitor(logger, exportCache).Run(janitorCtx, time.Minute)

	// Events are optional; without a broker the dashboard works standalone.
	var (
		events     services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.EventsEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			events = amqpClient
		}
	}

	ledger := services.NewLedgerService(services.LedgerOptions{
		Store:     store,
		Workbooks: xlsx.New(xlsx.Options{Conflict: conflict}),
		Documents: pdf.New(pdf.Options{Charts: charts}),
		Events:    events,
		Cache:     exportCache,
		Logger:    logger,
	})

	kind, err := core.ParseKind(cfg.DefaultKind)
	if err != nil {
		kind = core.KindIncome
	}
	sess := session.New(session.Options{
		DefaultKind:      kind,
		ProjectionMonths: cfg.ProjectionDefaultMonths,
	})

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:            ":" + cfg.Port,
		Session:         sess,
		Ledger:          ledger,
		Charts:          charts,
		Logger:          logger,
		Theme:           cfg.Theme,
		NoticeDuration:  cfg.NoticeDuration,
		BlockSuspicious: cfg.BlockSuspicious,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if store.Dirty() {
			if err := ledger.Flush(shutdownCtx); err != nil {
				logger.Error("Unsaved records lost on shutdown",
					log.FieldError, err,
					log.FieldCount, store.Len())
			}
		}
		stopJanitor()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := cleanupBackend(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	})

	logger.Info("Starting consultoria server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"records", store.Len(),
		"events", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
