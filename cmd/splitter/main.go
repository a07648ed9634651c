// Command splitter runs the source splitter (C3): it consumes the unified
// inbound topic and republishes each event onto its per-source topic,
// registering newly observed sources in the coordination store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crawlctl/internal/infra/adapter/bus/kafka"
	coordredis "crawlctl/internal/infra/adapter/coordstore/redis"
	workerPkg "crawlctl/internal/infra/worker"
	"crawlctl/internal/observability/logging"
	"crawlctl/internal/usecase/splitter"
)

const consumerGroup = "splitter"

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()

	hostConfig, _ := workerPkg.LoadCrawlHostConfigFromEnv(logger, workerMetrics)
	workerConfig, _ := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("splitter configuration loaded",
		slog.String("redis_host", hostConfig.RedisHost),
		slog.Any("kafka_hosts", hostConfig.KafkaHosts))

	store, err := coordredis.New(ctx, hostConfig.RedisHost)
	if err != nil {
		logger.Error("failed to connect to coordination store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	bus := kafka.New(hostConfig.KafkaHosts)
	splitterSvc := splitter.NewService(bus, store)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	workerPkg.StartMetricsServer(ctx, logger, nil)

	healthServer.SetReady(true)
	logger.Info("splitter started")

	if err := splitterSvc.Run(ctx, consumerGroup); err != nil {
		logger.Error("splitter exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("splitter stopped")
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}
