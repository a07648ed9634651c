// Package scheduler implements the crawl scheduler (C5): a fairness and
// memory-bounding layer that drains each known source's per-source topic
// in proportion to a computed share and spawns bounded fetch tasks. It
// never blocks on token availability; pacing is the fetcher's job (C6).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/observability/metrics"
	"crawlctl/internal/observability/tracing"
	"crawlctl/internal/repository"
)

// SchedulingPeriod is the fixed scheduler sweep interval (§6).
const SchedulingPeriod = 5 * time.Second

// shareDivisor bounds any single source's share at MAX_TASKS/4, so early
// discovered sources cannot starve later ones.
const shareDivisor = 4

// Fetcher is the C6 rate-limited fetcher's entrypoint from the scheduler's
// point of view: given a task, it runs to completion (acquiring a token,
// issuing the HTTP GET, recording the outcome). It never returns an error
// to the scheduler; failures are recorded as outcomes in the coordination
// store, not propagated.
type Fetcher interface {
	Fetch(ctx context.Context, task entity.FetchTask)
}

// Service runs the scheduler's 5-second sweep loop.
type Service struct {
	bus      repository.Bus
	store    repository.CoordinationStore
	fetcher  Fetcher
	maxTasks int
	sem      chan struct{}

	consumersMu sync.Mutex
	consumers   map[entity.Source]repository.SourceConsumer

	inFlightMu sync.Mutex
	inFlight   map[entity.Source]*int64
}

// NewService constructs a scheduler bound to the given bus, coordination
// store, and fetcher, with a global concurrency cap of maxTasks.
func NewService(bus repository.Bus, store repository.CoordinationStore, fetcher Fetcher, maxTasks int) *Service {
	return &Service{
		bus:       bus,
		store:     store,
		fetcher:   fetcher,
		maxTasks:  maxTasks,
		sem:       make(chan struct{}, maxTasks),
		consumers: make(map[entity.Source]repository.SourceConsumer),
		inFlight:  make(map[entity.Source]*int64),
	}
}

// Run sweeps every SchedulingPeriod until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(SchedulingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("scheduler sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep runs one scheduling pass: compute each source's share, drain up to
// share-in_flight messages per source, and dispatch a bounded fetch task
// for each drained message (§4.3).
func (s *Service) Sweep(ctx context.Context) error {
	ctx, span := tracing.GetTracer().Start(ctx, "scheduler.sweep")
	defer span.End()

	sources, err := s.store.KnownSources(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}

	share := s.maxTasks / len(sources)
	if maxShare := s.maxTasks / shareDivisor; share > maxShare {
		share = maxShare
	}
	metrics.CrawlSchedulerShare.Set(float64(share))

	for _, source := range sources {
		if share <= 0 {
			continue
		}

		inFlight := int(atomic.LoadInt64(s.inFlightCounter(source)))
		metrics.CrawlSchedulerInFlight.WithLabelValues(source.String()).Set(float64(inFlight))

		room := share - inFlight
		if room <= 0 {
			continue
		}

		consumer, err := s.consumerFor(ctx, source)
		if err != nil {
			slog.Warn("scheduler: consumer setup failed", slog.String("source", source.String()), slog.Any("error", err))
			continue
		}

		events, err := consumer.PollNonBlocking(ctx, room)
		if err != nil {
			slog.Warn("scheduler: poll failed", slog.String("source", source.String()), slog.Any("error", err))
			continue
		}

		for _, event := range events {
			s.dispatch(ctx, entity.FetchTask{Source: source, Event: event})
		}
	}

	return nil
}

func (s *Service) consumerFor(ctx context.Context, source entity.Source) (repository.SourceConsumer, error) {
	s.consumersMu.Lock()
	defer s.consumersMu.Unlock()

	if consumer, ok := s.consumers[source]; ok {
		return consumer, nil
	}

	consumer, err := s.bus.SourceConsumer(ctx, source, "scheduler")
	if err != nil {
		return nil, err
	}
	s.consumers[source] = consumer
	return consumer, nil
}

func (s *Service) inFlightCounter(source entity.Source) *int64 {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	counter, ok := s.inFlight[source]
	if !ok {
		counter = new(int64)
		s.inFlight[source] = counter
	}
	return counter
}

// dispatch spawns a goroutine for task, bounded by the shared semaphore of
// size maxTasks, and sweeps it out of the in-flight count on completion.
func (s *Service) dispatch(ctx context.Context, task entity.FetchTask) {
	counter := s.inFlightCounter(task.Source)
	atomic.AddInt64(counter, 1)

	go func() {
		defer atomic.AddInt64(counter, -1)

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-s.sem }()

		s.fetcher.Fetch(ctx, task)
	}()
}
