package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/adapter/notify"
	"github.com/gigswap/gigswap-backend/internal/adapter/paygate"
	"github.com/gigswap/gigswap-backend/internal/adapter/repository/postgres"
	"github.com/gigswap/gigswap-backend/internal/config"
	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/usecase/autorelease"
	"github.com/gigswap/gigswap-backend/internal/usecase/escrow"
	"github.com/gigswap/gigswap-backend/internal/usecase/lifecycle"
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

	taskRepo := postgres.NewTaskRepository(db)
	contractRepo := postgres.NewContractRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	timelineRepo := postgres.NewTimelineRepository(db)
	accountRepo := postgres.NewPayoutAccountRepository(db)

	var gateway domain.PaymentGateway
	if cfg.UseFakeGateway {
		logger.Warn("using fake payment processor")
		gateway = paygate.NewFake()
	} else {
		gateway = paygate.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey,
			cfg.GatewayTimeout, cfg.GatewayMaxRetries, cfg.GatewayRateLimit, logger)
	}

	notifier := notify.NewThrottled(notify.NewLogSink(logger), cfg.NotifyWindow, cfg.NotifyLimit, logger)

	escrowSvc := escrow.NewService(contractRepo, paymentRepo, gateway, accountRepo, notifier,
		decimal.NewFromFloat(cfg.FeePercent), cfg.ReleaseWindow, cfg.Currency, logger)
	lifecycleSvc := lifecycle.NewService(taskRepo, contractRepo, timelineRepo, escrowSvc, cfg.ReleaseWindow, logger)

	worker := autorelease.NewWorker(contractRepo, lifecycleSvc, escrowSvc,
		cfg.SchedulerInterval, cfg.ReleaseWindow, cfg.SchedulerRunAtStart, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	worker.Run(ctx)
}
