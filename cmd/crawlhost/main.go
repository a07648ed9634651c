// Command crawlhost runs the rate regulator (C4), crawl scheduler (C5),
// rate-limited fetcher (C6), and structured logger (C7) as a single
// process sharing one coordination store and message bus connection.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/infra/adapter/bus/kafka"
	coordredis "crawlctl/internal/infra/adapter/coordstore/redis"
	pgRepo "crawlctl/internal/infra/adapter/persistence/postgres"
	procstub "crawlctl/internal/infra/adapter/processor/stub"
	"crawlctl/internal/infra/catalog"
	"crawlctl/internal/infra/db"
	"crawlctl/internal/infra/notifier"
	workerPkg "crawlctl/internal/infra/worker"
	"crawlctl/internal/observability/logging"
	pkgconfig "crawlctl/internal/pkg/config"
	"crawlctl/internal/repository"
	"crawlctl/internal/usecase/fetcher"
	"crawlctl/internal/usecase/monitor"
	"crawlctl/internal/usecase/notify"
	"crawlctl/internal/usecase/regulator"
	"crawlctl/internal/usecase/scheduler"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()

	hostConfig, _ := workerPkg.LoadCrawlHostConfigFromEnv(logger, workerMetrics)
	workerConfig, _ := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("crawl host configuration loaded",
		slog.String("redis_host", hostConfig.RedisHost),
		slog.Any("kafka_hosts", hostConfig.KafkaHosts),
		slog.Int("max_tasks", hostConfig.MaxTasks),
		slog.Int("schedule_size", hostConfig.ScheduleSize),
		slog.Int("log_frequency_seconds", hostConfig.LogFrequencySeconds),
		slog.Float64("target_resolution", hostConfig.TargetResolution))

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	auditRepo := pgRepo.NewAuditRepo(database)

	store, err := coordredis.New(ctx, hostConfig.RedisHost)
	if err != nil {
		logger.Error("failed to connect to coordination store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	applySourcePolicy(ctx, logger, store)

	bus := kafka.New(hostConfig.KafkaHosts)

	catalogClient := catalog.NewClient(catalogBaseURL())

	notifyService := buildNotifyService(logger, workerConfig.NotifyMaxConcurrent)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := notifyService.Shutdown(shutdownCtx); err != nil {
			logger.Error("notify service shutdown error", slog.Any("error", err))
		}
	}()

	metadataProducer, err := bus.MetadataProducer(ctx)
	if err != nil {
		logger.Error("failed to construct metadata producer", slog.Any("error", err))
		os.Exit(1)
	}
	processorSvc := procstub.New(metadataProducer)

	regulatorSvc := regulator.NewService(store, catalogClient, notifyService, auditRepo)
	fetcherSvc := fetcher.New(store, nil, processorSvc)
	schedulerSvc := scheduler.NewService(bus, store, fetcherSvc, hostConfig.MaxTasks)
	monitorSvc := monitor.NewService(store, regulatorSvc, time.Duration(hostConfig.LogFrequencySeconds)*time.Second, hostConfig.TargetResolution)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	workerPkg.StartMetricsServer(ctx, logger, notifyService)

	startArchivalCron(logger, monitorSvc, auditRepo, workerConfig, workerMetrics)

	healthServer.SetReady(true)
	logger.Info("crawl host started")

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return regulatorSvc.Run(gctx) })
	group.Go(func() error { return schedulerSvc.Run(gctx) })
	group.Go(func() error { return monitorSvc.Run(gctx) })

	if err := group.Wait(); err != nil {
		logger.Error("crawl host exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("crawl host stopped")
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to
// have run (they are applied by db.MigrateUp itself, idempotently, since
// this process owns the halt-audit schema).
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// applySourcePolicy seeds the coordination store from an optional static
// policy file (SOURCE_POLICY_FILE): sources to register before the catalog
// or splitter has observed them, and overrides that should be in effect
// before the regulator's first override-check tick. Absent the env var,
// this is a no-op; a malformed file logs and is otherwise ignored, since a
// crawl host that fails to boot over a bad policy file is worse than one
// that boots without the seed.
func applySourcePolicy(ctx context.Context, logger *slog.Logger, store repository.CoordinationStore) {
	path := os.Getenv("SOURCE_POLICY_FILE")
	if path == "" {
		return
	}

	policy, err := pkgconfig.LoadSourcePolicy(path)
	if err != nil {
		logger.Warn("source policy file invalid, skipping", slog.String("path", path), slog.Any("error", err))
		return
	}

	for _, entry := range policy.Sources {
		source := entity.Source(entry.Name)
		if entry.SeedAsKnown {
			if _, err := store.AddKnownSource(ctx, source); err != nil {
				logger.Warn("source policy: seed known source failed", slog.String("source", entry.Name), slog.Any("error", err))
			}
		}
		if entry.OverrideRPS != nil {
			if err := store.SetOverride(ctx, source, *entry.OverrideRPS); err != nil {
				logger.Warn("source policy: set override failed", slog.String("source", entry.Name), slog.Any("error", err))
			}
		}
	}
	logger.Info("source policy applied", slog.String("path", path), slog.Int("sources", len(policy.Sources)))
}

func catalogBaseURL() string {
	if v := os.Getenv("CATALOG_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8081"
}

func buildNotifyService(logger *slog.Logger, maxConcurrent int) notify.Service {
	var channels []notify.Channel

	discordConfig := loadDiscordConfig(logger)
	if discordConfig.Enabled {
		channels = append(channels, notify.NewDiscordChannel(discordConfig))
		logger.Info("Discord channel initialized")
	}

	slackConfig := loadSlackConfig(logger)
	if slackConfig.Enabled {
		channels = append(channels, notify.NewSlackChannel(slackConfig))
		logger.Info("Slack channel initialized")
	}

	return notify.NewService(channels, maxConcurrent)
}

func loadDiscordConfig(logger *slog.Logger) notifier.DiscordConfig {
	enabled := os.Getenv("DISCORD_ENABLED") == "true"
	webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")
	if !enabled || webhookURL == "" {
		return notifier.DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil || u.Scheme != "https" || u.Host != "discord.com" || !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("invalid Discord webhook URL, disabling channel")
		return notifier.DiscordConfig{Enabled: false}
	}
	return notifier.DiscordConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 30 * time.Second}
}

func loadSlackConfig(logger *slog.Logger) notifier.SlackConfig {
	enabled := os.Getenv("SLACK_ENABLED") == "true"
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	if !enabled || webhookURL == "" {
		return notifier.SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil || u.Scheme != "https" || u.Host != "hooks.slack.com" || !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("invalid Slack webhook URL, disabling channel")
		return notifier.SlackConfig{Enabled: false}
	}
	return notifier.SlackConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 30 * time.Second}
}

// startArchivalCron schedules the hourly snapshot-archival job: it builds a
// monitoring snapshot and persists it via the halt-audit repository,
// independent of the structured logger's own emission cadence.
func startArchivalCron(logger *slog.Logger, monitorSvc *monitor.Service, auditRepo *pgRepo.AuditRepo, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runArchivalJob(logger, monitorSvc, auditRepo, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add archival cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
}

func runArchivalJob(logger *slog.Logger, monitorSvc *monitor.Service, auditRepo *pgRepo.AuditRepo, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	start := time.Now()
	metrics.RecordJobRun("started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CrawlTimeout)
	defer cancel()

	snapshot, err := monitorSvc.Snapshot(ctx, time.Now())
	if err != nil {
		logger.Error("archival snapshot build failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		return
	}

	if err := auditRepo.RecordSnapshot(ctx, snapshot); err != nil {
		logger.Error("archival snapshot persist failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(start).Seconds())
	metrics.RecordSnapshotsArchived(1)
	metrics.RecordLastSuccess()
	logger.Info("archival snapshot recorded", slog.Int("sources", len(snapshot.Specific)))
}
