package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crawlctl/internal/usecase/notify"
)

// metricsHealthResponse is the /health liveness probe body.
type metricsHealthResponse struct {
	Status string `json:"status"`
}

// channelHealthResponse is the /health/channels readiness probe body.
type channelHealthResponse struct {
	Healthy  bool                  `json:"healthy"`
	Channels []channelStatusEntry  `json:"channels"`
}

type channelStatusEntry struct {
	Name               string     `json:"name"`
	Enabled            bool       `json:"enabled"`
	CircuitBreakerOpen bool       `json:"circuit_breaker_open"`
	DisabledUntil      *time.Time `json:"disabled_until,omitempty"`
}

// StartMetricsServer starts the Prometheus metrics HTTP server, returning
// the *http.Server for external shutdown control. It runs in a background
// goroutine and shuts itself down when ctx is cancelled.
//
// Endpoints:
//   - GET /metrics: Prometheus scrape endpoint
//   - GET /health: liveness probe, always 200
//   - GET /health/channels: notification channel circuit breaker status,
//     503 if any enabled channel's breaker is open. notifyService may be
//     nil (e.g. the splitter process has no notification channels).
//
// Environment variables:
//   - METRICS_PORT: port to listen on (default: 9090)
func StartMetricsServer(ctx context.Context, logger *slog.Logger, notifyService notify.Service) *http.Server {
	port := metricsPort()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", metricsHealthHandler)
	if notifyService != nil {
		mux.HandleFunc("/health/channels", channelHealthHandler(notifyService))
	} else {
		mux.HandleFunc("/health/channels", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "notification service not initialized"})
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}()

	return server
}

func metricsPort() int {
	portStr := os.Getenv("METRICS_PORT")
	if portStr == "" {
		return 9090
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 9090
	}
	return port
}

func metricsHealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(metricsHealthResponse{Status: "healthy"})
}

func channelHealthHandler(notifyService notify.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := notifyService.GetChannelHealth()
		channels := make([]channelStatusEntry, 0, len(statuses))
		healthy := true
		for _, s := range statuses {
			channels = append(channels, channelStatusEntry{
				Name:               s.Name,
				Enabled:            s.Enabled,
				CircuitBreakerOpen: s.CircuitBreakerOpen,
				DisabledUntil:      s.DisabledUntil,
			})
			if s.Enabled && s.CircuitBreakerOpen {
				healthy = false
			}
		}

		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(channelHealthResponse{Healthy: healthy, Channels: channels})
	}
}
