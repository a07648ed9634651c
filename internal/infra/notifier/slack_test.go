package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"crawlctl/internal/domain/entity"
)

func TestSlackNotifier_buildBlockKitPayload(t *testing.T) {
	t.Run("TC-1: should build valid Block Kit payload with all fields", func(t *testing.T) {
		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
			Timeout:    10 * time.Second,
		})

		event := testHaltEvent()
		payload := notifier.buildBlockKitPayload(event)

		if payload.Text == "" {
			t.Error("expected non-empty fallback text")
		}
		if len(payload.Blocks) != 2 {
			t.Fatalf("expected 2 blocks (section + context), got %d", len(payload.Blocks))
		}

		section := payload.Blocks[0]
		if section.Type != "section" {
			t.Errorf("expected first block type=section, got %q", section.Type)
		}
		if !strings.Contains(section.Text.Text, event.Reason) {
			t.Errorf("expected section text to contain reason %q", event.Reason)
		}

		contextBlock := payload.Blocks[1]
		if contextBlock.Type != "context" {
			t.Errorf("expected second block type=context, got %q", contextBlock.Type)
		}
		if !strings.Contains(contextBlock.Elements[0].Text, event.ID.String()) {
			t.Errorf("expected context text to contain halt id %q", event.ID.String())
		}
	})

	t.Run("TC-2: should truncate long fallback text", func(t *testing.T) {
		notifier := NewSlackNotifier(SlackConfig{WebhookURL: "https://hooks.slack.com/services/test", Timeout: 10 * time.Second})

		event := testHaltEvent()
		event.Source = entity.Source(strings.Repeat("a", 200))

		payload := notifier.buildBlockKitPayload(event)
		if len(payload.Text) > maxFallbackLength {
			t.Errorf("expected fallback text length<=%d, got %d", maxFallbackLength, len(payload.Text))
		}
	})

	t.Run("TC-3: should truncate long section text (>3000 chars)", func(t *testing.T) {
		notifier := NewSlackNotifier(SlackConfig{WebhookURL: "https://hooks.slack.com/services/test", Timeout: 10 * time.Second})

		event := testHaltEvent()
		event.Reason = strings.Repeat("b", 4000)

		payload := notifier.buildBlockKitPayload(event)
		if len(payload.Blocks[0].Text.Text) != maxSectionTextLength {
			t.Errorf("expected section text length=%d, got %d", maxSectionTextLength, len(payload.Blocks[0].Text.Text))
		}
	})
}

func TestSlackNotifier_sendWebhookRequest(t *testing.T) {
	t.Run("TC-1: should succeed with 200 OK response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type=application/json, got %q", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			var payload SlackWebhookPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Errorf("failed to parse request body: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		if err := notifier.sendWebhookRequest(context.Background(), testHaltEvent()); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should handle 429 rate limit via Retry-After header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(SlackErrorResponse{OK: false, Error: "rate_limited"})
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		err := notifier.sendWebhookRequest(context.Background(), testHaltEvent())

		rateLimitErr, ok := err.(*RateLimitError)
		if !ok {
			t.Fatalf("expected RateLimitError, got %T", err)
		}
		if rateLimitErr.RetryAfter != 3*time.Second {
			t.Errorf("expected retry_after=3s, got %v", rateLimitErr.RetryAfter)
		}
	})

	t.Run("TC-3: should return ClientError for 4xx (non-retryable)", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		err := notifier.sendWebhookRequest(context.Background(), testHaltEvent())

		clientErr, ok := err.(*ClientError)
		if !ok {
			t.Fatalf("expected ClientError, got %T", err)
		}
		if clientErr.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status=400, got %d", clientErr.StatusCode)
		}
		if isRetryableError(err) {
			t.Error("expected client error to be non-retryable")
		}
	})

	t.Run("TC-4: should return ServerError for 5xx (retryable)", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		err := notifier.sendWebhookRequest(context.Background(), testHaltEvent())

		serverErr, ok := err.(*ServerError)
		if !ok {
			t.Fatalf("expected ServerError, got %T", err)
		}
		if !isRetryableError(serverErr) {
			t.Error("expected server error to be retryable")
		}
	})
}

func TestSlackNotifier_sendWebhookRequestWithRetry(t *testing.T) {
	t.Run("TC-1: should succeed on first attempt (no retry)", func(t *testing.T) {
		var requestCount int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-1")

		if err := notifier.sendWebhookRequestWithRetry(ctx, testHaltEvent()); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if atomic.LoadInt32(&requestCount) != 1 {
			t.Errorf("expected 1 request, got %d", requestCount)
		}
	})

	t.Run("TC-2: should not retry on 4xx client error", func(t *testing.T) {
		var requestCount int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-2")

		err := notifier.sendWebhookRequestWithRetry(ctx, testHaltEvent())
		if err == nil {
			t.Fatal("expected error for 401, got nil")
		}
		if atomic.LoadInt32(&requestCount) != 1 {
			t.Errorf("expected 1 request (no retry for 4xx), got %d", requestCount)
		}
	})

	t.Run("TC-3: should report attempt count after exhausting retryable errors", func(t *testing.T) {
		var requestCount int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-3")

		err := notifier.sendWebhookRequestWithRetry(ctx, testHaltEvent())
		if err == nil {
			t.Fatal("expected error after max retries, got nil")
		}
		if atomic.LoadInt32(&requestCount) != 2 {
			t.Errorf("expected 2 requests (max attempts), got %d", requestCount)
		}
		if !strings.Contains(err.Error(), "failed after 2 attempts") {
			t.Errorf("expected error message to mention 2 attempts, got %v", err)
		}
	})

	t.Run("TC-4: should back off and retry on 429 rate limit", func(t *testing.T) {
		var requestCount int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-4")

		if err := notifier.sendWebhookRequestWithRetry(ctx, testHaltEvent()); err != nil {
			t.Errorf("expected no error after rate-limit backoff, got %v", err)
		}
		if atomic.LoadInt32(&requestCount) != 2 {
			t.Errorf("expected 2 requests, got %d", requestCount)
		}
	})

	t.Run("TC-5: should respect context cancellation during backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		ctx = context.WithValue(ctx, requestIDKey, "test-request-5")

		err := notifier.sendWebhookRequestWithRetry(ctx, testHaltEvent())
		if err == nil {
			t.Fatal("expected error from canceled context, got nil")
		}
	})

	t.Run("TC-6: should succeed after one retryable server error", func(t *testing.T) {
		var requestCount int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-6")

		if err := notifier.sendWebhookRequestWithRetry(ctx, testHaltEvent()); err != nil {
			t.Errorf("expected no error after retry, got %v", err)
		}
		if atomic.LoadInt32(&requestCount) != 2 {
			t.Errorf("expected 2 requests, got %d", requestCount)
		}
	})
}

func TestSlackNotifier_NotifyHalt(t *testing.T) {
	t.Run("TC-1: should send successful notification end-to-end", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		if err := notifier.NotifyHalt(context.Background(), testHaltEvent()); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should return error but not panic on failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("expected no panic, but got panic: %v", r)
				}
			}()
			err = notifier.NotifyHalt(context.Background(), testHaltEvent())
		}()

		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("TC-3: should send one webhook request for each call", func(t *testing.T) {
		var gotIDs []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotIDs = append(gotIDs, uuid.New().String())
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Timeout: 10 * time.Second})
		_ = notifier.NotifyHalt(context.Background(), testHaltEvent())
		_ = notifier.NotifyHalt(context.Background(), testHaltEvent())

		if len(gotIDs) != 2 || gotIDs[0] == gotIDs[1] {
			t.Errorf("expected two distinct request ids, got %v", gotIDs)
		}
	})
}

func TestNewSlackNotifier(t *testing.T) {
	t.Run("should create Slack notifier with proper configuration", func(t *testing.T) {
		config := SlackConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
			Timeout:    15 * time.Second,
		}

		notifier := NewSlackNotifier(config)

		if notifier == nil {
			t.Fatal("expected non-nil notifier")
		}
		if notifier.httpClient.Timeout != config.Timeout {
			t.Errorf("expected timeout=%v, got %v", config.Timeout, notifier.httpClient.Timeout)
		}
		if notifier.rateLimiter == nil {
			t.Error("expected rate limiter to be initialized")
		}
	})
}

func TestSlackErrorResponse_Unmarshal(t *testing.T) {
	t.Run("should unmarshal Slack error payload", func(t *testing.T) {
		raw := []byte(`{"ok":false,"error":"invalid_payload"}`)
		var resp SlackErrorResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			t.Fatalf("unexpected unmarshal error: %v", err)
		}
		if resp.OK {
			t.Error("expected ok=false")
		}
		if resp.Error != "invalid_payload" {
			t.Errorf("expected error=invalid_payload, got %q", resp.Error)
		}
	})
}
