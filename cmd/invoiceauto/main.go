package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/accounting"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/app"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/approval"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/audit"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/company"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/filestore"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/ocr"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/payment"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/platform/cache"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/platform/db"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/vendor"
)

func main() {
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, chart of accounts cache disabled", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		logger.Error("init file store", slog.Any("error", err))
		os.Exit(1)
	}

	var engine ocr.Engine = ocr.Disabled{}
	if cfg.OCREnabled() {
		docAI, err := ocr.NewDocumentAI(ctx, ocr.DocumentAIConfig{
			ProjectID:       cfg.DocAIProjectID,
			Location:        cfg.DocAILocation,
			ProcessorID:     cfg.DocAIProcessorID,
			CredentialsFile: cfg.DocAICredentialsFile,
		}, logger)
		if err != nil {
			logger.Error("init document ai", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := docAI.Close(); err != nil {
				logger.Warn("document ai close", slog.Any("error", err))
			}
		}()
		engine = docAI
	} else {
		logger.Info("ocr disabled, uploads start blank")
	}

	auditor := audit.NewRecorder(dbpool)
	companyRepo := company.NewRepository(dbpool)

	connectionStore := accounting.NewConnectionStore(dbpool)
	clientFactory := accounting.NewClientFactory(connectionStore)
	coaService := accounting.NewCOAService(clientFactory, redisClient, logger)
	accountingHandler := accounting.NewHandler(logger, coaService, clientFactory, connectionStore)

	vendorRepo := vendor.NewRepository(dbpool)
	vendorService := vendor.NewService(vendorRepo, logger)
	vendorHandler := vendor.NewHandler(logger, vendorService)

	invoiceRepo := invoice.NewRepository(dbpool)
	invoiceService := invoice.NewService(invoiceRepo, vendorService, engine, files, auditor, logger)
	invoiceHandler := invoice.NewHandler(logger, invoiceService)

	thresholdStore := approval.NewConfigStore(dbpool)
	approvalService := approval.NewService(invoiceRepo, companyRepo, thresholdStore, logger)
	approvalHandler := approval.NewHandler(logger, approvalService, companyRepo)

	paymentService := payment.NewService(invoiceRepo, coaService, clientFactory, companyRepo, auditor, logger)
	paymentHandler := payment.NewHandler(logger, paymentService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InvoiceHandler:    invoiceHandler,
		ApprovalHandler:   approvalHandler,
		PaymentHandler:    paymentHandler,
		VendorHandler:     vendorHandler,
		AccountingHandler: accountingHandler,
		Pool:              dbpool,
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

func newFileStore(ctx context.Context, cfg *app.Config) (filestore.Store, error) {
	if cfg.StorageDriver == "s3" {
		return filestore.NewS3(ctx, filestore.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
			URLExpiry: cfg.S3URLExpiry,
		})
	}
	return filestore.NewLocal(cfg.StorageLocalDir)
}
