package main

import (
	"context"
	"log/slog"
	"time"

	"scadenze/internal/amqp"
	"scadenze/internal/cli"
	"scadenze/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting scadenze-runner")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// Initialize AMQP client for publishing payment notifications.
	// The scadenze-worker will consume these and record the dispatch.
	var publisher services.TransactionPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized - payment notifications enabled")
		}
	} else {
		logger.Info("AMQP disabled - payment notifications will not be published")
	}

	orchestrator := services.NewOrchestrator(sqliteRepo, sqliteRepo, publisher)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Recurring payment runner configured",
		"interval", cfg.ExecutionInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.ExecutionInterval)
	defer ticker.Stop()

	// Run once on startup, then on every tick.
	runOnce(ctx, logger, orchestrator, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runOnce(ctx, logger, orchestrator, now)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("scadenze-runner stopped")
}

func runOnce(ctx context.Context, logger *slog.Logger, orchestrator *services.Orchestrator, now time.Time) {
	logger.Info("Processing due recurring payments...")
	report, err := orchestrator.RunExecution(ctx, now)
	if err != nil {
		logger.Error("Execution run failed", "error", err)
		return
	}
	logger.Info("Execution run complete",
		"run_id", report.RunID,
		"processed", report.ProcessedPayments,
		"created", report.CreatedTransactions,
		"total_amount_cents", report.TotalAmountCents)
}
