package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"kosh/internal/amqp"
	"kosh/internal/cli"
	"kosh/internal/log"
	"kosh/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting kosh-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alertWorker := worker.NewAlertWorker(repo, worker.LogNotifier{})

	// Catch anything already over threshold before consuming.
	if err := alertWorker.SweepBudgets(ctx); err != nil {
		logger.Error("Startup budget sweep failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeBudgetAlerts(gctx, func(msg *amqp.BudgetAlertMessage) error {
			return alertWorker.HandleAlert(gctx, msg)
		})
	})
	g.Go(func() error {
		return alertWorker.RunPeriodicSweep(gctx, cfg.AlertSweepInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
