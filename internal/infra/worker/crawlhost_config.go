package worker

import (
	"crawlctl/internal/pkg/config"
	"fmt"
	"log/slog"
	"strings"
)

// CrawlHostConfig holds the configuration read by the crawl host process:
// the regulator/scheduler/fetcher triad that shares a single coordination
// store and message bus connection.
//
// Configuration sources:
//   - Environment variables (loaded via LoadCrawlHostConfigFromEnv)
//   - Default values (provided by DefaultCrawlHostConfig)
type CrawlHostConfig struct {
	// RedisHost is the address (host:port) of the coordination store.
	// Default: "localhost:6379"
	RedisHost string

	// KafkaHosts is the list of bootstrap broker addresses for the message
	// bus, parsed from a comma-separated KAFKA_HOSTS value.
	// Default: ["localhost:9092"]
	KafkaHosts []string

	// MaxTasks is the global ceiling on concurrently in-flight fetch tasks
	// across all sources.
	// Range: 1-10000
	// Default: 3000
	MaxTasks int

	// ScheduleSize is read from SCHEDULE_SIZE, validated and logged at
	// startup. The scheduler does not use it: each sweep drains a source
	// up to its fairness share minus its in-flight count.
	// Range: 1-1000
	// Default: 50
	ScheduleSize int

	// LogFrequencySeconds is the interval between monitoring_update log
	// emissions.
	// Range: 1-3600
	// Default: 5
	LogFrequencySeconds int

	// TargetResolution is the rounding granularity the monitor applies to
	// its per-second rate fields: 100.0 rounds to the nearest 1/100.
	// Must be positive.
	// Default: 100.0
	TargetResolution float64
}

// DefaultCrawlHostConfig returns a CrawlHostConfig with sensible defaults
// for local development: a single-node Redis and Kafka broker, a 3,000
// task ceiling, and a 5-second monitoring cadence.
func DefaultCrawlHostConfig() CrawlHostConfig {
	return CrawlHostConfig{
		RedisHost:           "localhost:6379",
		KafkaHosts:          []string{"localhost:9092"},
		MaxTasks:            3000,
		ScheduleSize:        50,
		LogFrequencySeconds: 5,
		TargetResolution:    100.0,
	}
}

// Validate checks if the configuration values are valid, collecting all
// field errors rather than stopping at the first.
func (c *CrawlHostConfig) Validate() error {
	var errors []error

	if c.RedisHost == "" {
		errors = append(errors, fmt.Errorf("redis host: must not be empty"))
	}
	if len(c.KafkaHosts) == 0 {
		errors = append(errors, fmt.Errorf("kafka hosts: must have at least one entry"))
	}
	if err := config.ValidateIntRange(c.MaxTasks, 1, 10000); err != nil {
		errors = append(errors, fmt.Errorf("max tasks: %w", err))
	}
	if err := config.ValidateIntRange(c.ScheduleSize, 1, 1000); err != nil {
		errors = append(errors, fmt.Errorf("schedule size: %w", err))
	}
	if err := config.ValidateIntRange(c.LogFrequencySeconds, 1, 3600); err != nil {
		errors = append(errors, fmt.Errorf("log frequency seconds: %w", err))
	}
	if c.TargetResolution <= 0 {
		errors = append(errors, fmt.Errorf("target resolution: must be positive, got %f", c.TargetResolution))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// LoadCrawlHostConfigFromEnv loads crawl host configuration from environment
// variables, falling back to defaults (with a warning and a metrics
// increment) on any validation failure. Never returns an error.
//
// Environment variables:
//   - REDIS_HOST: host:port of the coordination store (default: "localhost:6379")
//   - KAFKA_HOSTS: comma-separated broker list (default: "localhost:9092")
//   - MAX_TASKS: integer 1-10000 (default: 3000)
//   - SCHEDULE_SIZE: integer 1-1000 (default: 50)
//   - LOG_FREQUENCY_SECONDS: integer 1-3600 (default: 5)
//   - TARGET_RESOLUTION: positive float (default: 100.0)
func LoadCrawlHostConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*CrawlHostConfig, error) {
	cfg := DefaultCrawlHostConfig()
	fallbackApplied := false

	result := config.LoadEnvWithFallback("REDIS_HOST", cfg.RedisHost, func(v string) error {
		if v == "" {
			return fmt.Errorf("must not be empty")
		}
		return nil
	})
	cfg.RedisHost = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("redis_host")
		metrics.RecordFallback("redis_host", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied", slog.String("field", "RedisHost"), slog.String("warning", warning))
		}
	}

	kafkaRaw := config.LoadEnvString("KAFKA_HOSTS", strings.Join(cfg.KafkaHosts, ","))
	hosts := splitAndTrim(kafkaRaw)
	if len(hosts) == 0 {
		fallbackApplied = true
		metrics.RecordValidationError("kafka_hosts")
		metrics.RecordFallback("kafka_hosts", "default")
		logger.Warn("Configuration fallback applied",
			slog.String("field", "KafkaHosts"),
			slog.String("warning", "KAFKA_HOSTS parsed to zero entries, using default"))
	} else {
		cfg.KafkaHosts = hosts
	}

	result = config.LoadEnvInt("MAX_TASKS", cfg.MaxTasks, func(v int) error {
		return config.ValidateIntRange(v, 1, 10000)
	})
	cfg.MaxTasks = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("max_tasks")
		metrics.RecordFallback("max_tasks", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied", slog.String("field", "MaxTasks"), slog.String("warning", warning))
		}
	}

	result = config.LoadEnvInt("SCHEDULE_SIZE", cfg.ScheduleSize, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	cfg.ScheduleSize = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("schedule_size")
		metrics.RecordFallback("schedule_size", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied", slog.String("field", "ScheduleSize"), slog.String("warning", warning))
		}
	}

	result = config.LoadEnvInt("LOG_FREQUENCY_SECONDS", cfg.LogFrequencySeconds, func(v int) error {
		return config.ValidateIntRange(v, 1, 3600)
	})
	cfg.LogFrequencySeconds = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("log_frequency_seconds")
		metrics.RecordFallback("log_frequency_seconds", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied", slog.String("field", "LogFrequencySeconds"), slog.String("warning", warning))
		}
	}

	result = config.LoadEnvFloat("TARGET_RESOLUTION", cfg.TargetResolution, func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("must be positive, got %f", v)
		}
		return nil
	})
	cfg.TargetResolution = result.Value.(float64)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("target_resolution")
		metrics.RecordFallback("target_resolution", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied", slog.String("field", "TargetResolution"), slog.String("warning", warning))
		}
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
