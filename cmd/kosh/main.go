package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"kosh/internal/amqp"
	"kosh/internal/cache"
	"kosh/internal/cli"
	"kosh/internal/log"
	"kosh/internal/rates"
	"kosh/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentEngine)

	logger.Info("Starting kosh engine")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is an optional shared rate cache; the in-process LRU alone
	// is enough to run.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Warn("Redis unreachable, continuing without it", "addr", cfg.RedisAddr, "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
			logger.Info("Redis rate cache enabled", "addr", cfg.RedisAddr)
		}
	}

	rateCache := cache.NewLRUCache[decimal.Decimal](cfg.RateCacheSize, cfg.RateCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(rateCache)
	cacheManager.StartCleanup(cfg.RateCacheTTL)
	defer cacheManager.Stop()

	normalizer := rates.NewNormalizer(repo, rateCache, rdb, cfg.RateCacheTTL)

	// Alert publishing is best effort: without a broker the engine
	// still serves every operation, budgets just never alert.
	var alerts services.AlertPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unreachable, budget alerts disabled", "error", err)
		} else {
			defer amqpClient.Close()
			alerts = amqpClient
		}
	}

	engine := services.NewEngine(repo, normalizer, alerts,
		cfg.BaseCurrency, cfg.DefaultAlertThreshold, cfg.SettlementRetries)

	if cfg.RateSeedFile != "" {
		if err := engine.Rates.SeedFromFile(ctx, cfg.RateSeedFile); err != nil {
			logger.Error("Rate seeding failed", "error", err, "path", cfg.RateSeedFile)
			os.Exit(1)
		}
	}

	logger.Info("Engine ready",
		"db", cfg.SQLiteDBPath,
		"base_currency", cfg.BaseCurrency,
		"alerts_enabled", alerts != nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	logger.Info("Engine stopped gracefully")
}
