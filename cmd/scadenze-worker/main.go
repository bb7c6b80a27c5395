package main

import (
	"context"
	"time"

	amqpclient "scadenze/internal/amqp"
	"scadenze/internal/cli"
	"scadenze/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting scadenze-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient, err := amqpclient.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		return
	}
	defer amqpClient.Close()

	notifyWorker := worker.NewNotifyWorker(sqliteRepo)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	go func() {
		err := amqpClient.ConsumeTransactionCreated(ctx, func(msg *amqpclient.TransactionCreatedMessage) error {
			return notifyWorker.HandleTransactionCreated(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption stopped", "error", err)
		}
	}()

	logger.Info("scadenze-worker consuming payment notifications",
		"queue", cfg.AMQPQueue,
		"exchange", cfg.AMQPExchange)

	cli.WaitForShutdown(ctx, done)
	logger.Info("scadenze-worker stopped")
}
