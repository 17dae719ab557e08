package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/adapter/httpapi"
	"github.com/gigswap/gigswap-backend/internal/adapter/notify"
	"github.com/gigswap/gigswap-backend/internal/adapter/paygate"
	"github.com/gigswap/gigswap-backend/internal/adapter/repository/postgres"
	"github.com/gigswap/gigswap-backend/internal/config"
	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/usecase/bidding"
	"github.com/gigswap/gigswap-backend/internal/usecase/escrow"
	"github.com/gigswap/gigswap-backend/internal/usecase/formation"
	"github.com/gigswap/gigswap-backend/internal/usecase/lifecycle"
	"github.com/gigswap/gigswap-backend/internal/usecase/moderation"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := postgres.NewDB(cfg.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories
	taskRepo := postgres.NewTaskRepository(db)
	bidRepo := postgres.NewBidRepository(db)
	contractRepo := postgres.NewContractRepository(db)
	formationRepo := postgres.NewFormationRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	timelineRepo := postgres.NewTimelineRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	accountRepo := postgres.NewPayoutAccountRepository(db)

	// Payment processor
	var gateway domain.PaymentGateway
	if cfg.UseFakeGateway {
		logger.Warn("using fake payment processor")
		gateway = paygate.NewFake()
	} else {
		gateway = paygate.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey,
			cfg.GatewayTimeout, cfg.GatewayMaxRetries, cfg.GatewayRateLimit, logger)
	}

	// Notifications, throttled per user and kind
	notifier := notify.NewThrottled(notify.NewLogSink(logger), cfg.NotifyWindow, cfg.NotifyLimit, logger)

	// Services
	escrowSvc := escrow.NewService(contractRepo, paymentRepo, gateway, accountRepo, notifier,
		decimal.NewFromFloat(cfg.FeePercent), cfg.ReleaseWindow, cfg.Currency, logger)
	biddingSvc := bidding.NewService(taskRepo, bidRepo, notifier, logger)
	formationSvc := formation.NewService(formationRepo, escrowSvc, notifier, logger)
	lifecycleSvc := lifecycle.NewService(taskRepo, contractRepo, timelineRepo, escrowSvc, cfg.ReleaseWindow, logger)
	moderationSvc := moderation.NewService(taskRepo, contractRepo, auditRepo, escrowSvc, logger)

	// HTTP server
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.SetupHandlers(router, lifecycleSvc, biddingSvc, formationSvc, escrowSvc, moderationSvc,
		taskRepo, contractRepo, paymentRepo, timelineRepo, cfg.OpsToken, logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *http.Server, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
