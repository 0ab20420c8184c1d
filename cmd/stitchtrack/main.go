package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stitchtrack/stitchtrack/internal/app"
	"github.com/stitchtrack/stitchtrack/internal/codeimage"
	"github.com/stitchtrack/stitchtrack/internal/cutting"
	"github.com/stitchtrack/stitchtrack/internal/masterdata"
	"github.com/stitchtrack/stitchtrack/internal/payments"
	"github.com/stitchtrack/stitchtrack/internal/platform/db"
	"github.com/stitchtrack/stitchtrack/internal/qc"
	"github.com/stitchtrack/stitchtrack/internal/shared"
	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	renderer, err := codeimage.NewFileRenderer(cfg.QRDir(), cfg.BarcodeDir())
	if err != nil {
		logger.Error("prepare upload directories", slog.Any("error", err))
		os.Exit(1)
	}

	clock := shared.SystemClock{}

	masterRepo := masterdata.NewRepository(dbpool)
	masterService := masterdata.NewService(masterRepo, clock, logger)
	masterHandler := masterdata.NewHandler(logger, masterService)

	cuttingRepo := cutting.NewRepository(dbpool)
	cuttingService := cutting.NewService(cuttingRepo, renderer, clock, logger)
	cuttingHandler := cutting.NewHandler(logger, cuttingService)

	stitchingRepo := stitching.NewRepository(dbpool)
	stitchingService := stitching.NewService(stitchingRepo, renderer, clock, logger)
	stitchingHandler := stitching.NewHandler(logger, stitchingService)

	qcRepo := qc.NewRepository(dbpool)
	qcService := qc.NewService(qcRepo, clock, logger)
	qcHandler := qc.NewHandler(logger, qcService)

	paymentsRepo := payments.NewRepository(dbpool)
	paymentsService := payments.NewService(paymentsRepo, clock, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		MasterDataHandler: masterHandler,
		CuttingHandler:    cuttingHandler,
		StitchingHandler:  stitchingHandler,
		QCHandler:         qcHandler,
		PaymentsHandler:   paymentsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
