// Package fetcher implements the rate-limited fetcher (C6): it acquires a
// token from the per-source bucket (busy-waiting when none is available),
// issues an HTTP GET, records the outcome in the coordination store, and
// hands successful bodies to the downstream image processor.
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/observability/metrics"
	"crawlctl/internal/observability/tracing"
	"crawlctl/internal/repository"
)

// tokenRetryInterval is how long the fetcher sleeps between token
// acquisition attempts; correct because the regulator tick is 1 s (§4.4).
const tokenRetryInterval = 1 * time.Second

// FetchTimeout is the recommended per-request HTTP timeout (§4.4).
const FetchTimeout = 10 * time.Second

// Processor is the downstream image processor contract (§4.6): given a
// fetched body and its identifying metadata, it decodes, thumbnails, and
// emits metadata events. Implementations must report their own outcome
// (typically ExpectedUnidentifiedImage on decode failure) back through
// the recordOutcome callback, not by returning an error here.
type Processor interface {
	Process(ctx context.Context, body []byte, task entity.FetchTask, recordOutcome func(code string))
}

// Fetcher implements the scheduler.Fetcher interface.
type Fetcher struct {
	store      repository.CoordinationStore
	httpClient *http.Client
	processor  Processor
}

// New constructs a Fetcher using httpClient for outbound GETs. Pass nil to
// use a default client with FetchTimeout and TLS 1.2+ enforced.
func New(store repository.CoordinationStore, httpClient *http.Client, processor Processor) *Fetcher {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Fetcher{store: store, httpClient: httpClient, processor: processor}
}

// Fetch runs one fetch task to completion: token acquisition, HTTP GET,
// outcome recording, and (on success) handoff to the downstream processor.
// It never returns an error; all failure modes are recorded as outcomes.
func (f *Fetcher) Fetch(ctx context.Context, task entity.FetchTask) {
	ctx, span := tracing.GetTracer().Start(ctx, "fetcher.fetch")
	defer span.End()

	if err := f.acquireToken(ctx, task.Source); err != nil {
		return // context cancelled while waiting for a token
	}

	start := time.Now()
	body, code, err := f.get(ctx, task.Event.URL)
	metrics.CrawlFetchDuration.WithLabelValues(task.Source.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		f.record(ctx, task.Source, code)
		slog.Debug("fetcher: request failed", slog.String("source", task.Source.String()), slog.String("url", task.Event.URL), slog.Any("error", err))
		return
	}

	statusNum, convErr := strconv.Atoi(code)
	if convErr == nil && statusNum >= 400 {
		f.record(ctx, task.Source, code)
		return // recorded; no payload forwarded per §4.4 step 5
	}

	if f.processor == nil {
		f.record(ctx, task.Source, code)
		return
	}

	// The HTTP outcome itself isn't recorded here: the processor reports
	// the final outcome (decode success or ExpectedUnidentifiedImage)
	// through recordOutcome, so every fetch lands exactly one outcome in
	// the coordination store, mirroring image.py's single record_* call
	// per image.
	f.processor.Process(ctx, body, task, func(decodeCode string) {
		f.record(ctx, task.Source, decodeCode)
	})
}

// record writes a single outcome to the coordination store and the
// corresponding metric. A Fetch whose context is cancelled before it
// acquires a token records nothing.
func (f *Fetcher) record(ctx context.Context, source entity.Source, code string) {
	outcome := entity.Outcome{Source: source, Code: code, Timestamp: time.Now()}
	if err := f.store.RecordOutcome(ctx, outcome); err != nil {
		slog.Warn("fetcher: record outcome failed", slog.String("source", source.String()), slog.Any("error", err))
	}
	metrics.CrawlFetchOutcomesTotal.WithLabelValues(source.String(), code).Inc()
}

// acquireToken busy-waits until a token is available for source, sleeping
// tokenRetryInterval between attempts. It returns an error only if ctx is
// cancelled while waiting.
func (f *Fetcher) acquireToken(ctx context.Context, source entity.Source) error {
	for {
		remaining, err := f.store.DecrementToken(ctx, source)
		if err == nil && remaining >= 0 {
			return nil
		}
		if err != nil {
			slog.Warn("fetcher: decrement token failed", slog.String("source", source.String()), slog.Any("error", err))
		}

		select {
		case <-time.After(tokenRetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// get issues the HTTP GET and classifies the result into a status code
// string, defaulting to a synthetic timeout/transport-error code when the
// request itself fails rather than returning a server status.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	if err := entity.ValidateURL(url); err != nil {
		return nil, "400", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "400", err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "599", err // synthetic code: transport error or timeout
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, strconv.Itoa(resp.StatusCode), err
	}

	return body, strconv.Itoa(resp.StatusCode), nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        200,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
