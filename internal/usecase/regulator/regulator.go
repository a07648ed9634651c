// Package regulator implements the rate regulator (C4): the periodic loop
// that recomputes per-source crawl rates from the catalog API, merges
// operator overrides, inspects status windows to trip or clear halts, and
// refills token buckets in the coordination store accordingly.
package regulator

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/observability/metrics"
	"crawlctl/internal/observability/slo"
	"crawlctl/internal/observability/tracing"
	"crawlctl/internal/repository"
	"crawlctl/internal/usecase/catalog"
	"crawlctl/internal/usecase/notify"
)

// Fixed timing and threshold constants, not runtime-tunable (§6).
const (
	TickInterval        = 1 * time.Second
	OverrideCheckPeriod  = 10 * time.Second
	CatalogRefreshPeriod = 30 * time.Minute

	errorWindow          = 60 * time.Second
	errorWindowMinSize   = 5
	errorWindowThreshold = 0.10
	last50Size           = 50

	haltSetPermanent = "halted"
	haltSetTemporary = "temp_halted"
)

// Service runs the regulator's tick loop. A single instance is the
// canonical deployment: running more than one against the same
// coordination store would double-refill tokens, so orchestration must
// ensure exactly one regulator per deployment (an Open Question in
// spec.md resolved this way, recorded in DESIGN.md).
type Service struct {
	store    repository.CoordinationStore
	catalog  catalog.Client
	notifier notify.Service
	audit    repository.HaltAuditRepository // optional; nil disables persistence

	mu                 sync.Mutex
	catalogRates       entity.RateTable
	overrides          map[entity.Source]float64
	lastMerged         entity.RateTable
	deferredNextRefill map[entity.Source]time.Time
	lastCatalogRefresh time.Time
	lastOverrideCheck  time.Time
}

// NewService constructs a regulator bound to the given coordination store,
// catalog API client, and halt notifier. audit may be nil.
func NewService(store repository.CoordinationStore, catalogClient catalog.Client, notifier notify.Service, audit repository.HaltAuditRepository) *Service {
	return &Service{
		store:              store,
		catalog:            catalogClient,
		notifier:           notifier,
		audit:              audit,
		catalogRates:       make(entity.RateTable),
		overrides:          make(map[entity.Source]float64),
		lastMerged:         make(entity.RateTable),
		deferredNextRefill: make(map[entity.Source]time.Time),
	}
}

// Rates returns a snapshot of the most recently merged rate table, used by
// the structured logger (C7) to report rate_limit per source.
func (s *Service) Rates() entity.RateTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMerged.Clone()
}

// Run ticks the regulator every TickInterval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.Tick(ctx, now); err != nil {
				slog.Error("regulator tick failed", slog.Any("error", err))
			}
		}
	}
}

// Tick runs one full regulator cycle against now, following the ordering
// contract recompute -> override-merge -> error-check -> replenish (§4.2).
// now is threaded through explicitly so tests can drive deterministic time
// boundaries instead of depending on wall-clock sleeps.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	ctx, span := tracing.GetTracer().Start(ctx, "regulator.tick")
	defer span.End()

	start := time.Now()
	defer func() {
		elapsed := time.Since(start).Seconds()
		metrics.CrawlRegulatorTickDuration.Observe(elapsed)
		slo.UpdateLatencyP95(elapsed)
		slo.UpdateLatencyP99(elapsed)
	}()

	sources, err := s.store.KnownSources(ctx)
	if err != nil {
		return err
	}

	s.recomputeCatalogRates(ctx, now)
	s.checkOverrides(ctx, sources, now)

	merged := s.mergeRates(sources)

	permanentHalted, tempHalted, err := s.errorThresholdCheck(ctx, sources, now)
	if err != nil {
		return err
	}

	tokens := s.replenish(merged, permanentHalted, tempHalted, now)
	if err := s.store.SetTokens(ctx, tokens); err != nil {
		return err
	}

	for source, t := range tokens {
		metrics.CrawlTokensCurrent.WithLabelValues(source.String()).Set(float64(t))
	}
	for source, r := range merged {
		metrics.CrawlRateTarget.WithLabelValues(source.String()).Set(r)
	}

	s.mu.Lock()
	s.lastMerged = merged
	s.mu.Unlock()

	return nil
}

// recomputeCatalogRates refreshes the catalog-derived rate table every
// CatalogRefreshPeriod. On catalog failure it retains the previous table
// and logs a warning; the crawl must not stall on catalog unavailability.
func (s *Service) recomputeCatalogRates(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := s.lastCatalogRefresh.IsZero() || now.Sub(s.lastCatalogRefresh) >= CatalogRefreshPeriod
	s.mu.Unlock()
	if !due {
		return
	}

	fresh, err := catalog.RefreshRates(ctx, s.catalog)
	if err != nil {
		slog.Warn("catalog API unreachable, retaining previous rate table", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.catalogRates = fresh
	s.lastCatalogRefresh = now
	s.mu.Unlock()
}

// checkOverrides refreshes the operator-override cache every
// OverrideCheckPeriod in a single batched read.
func (s *Service) checkOverrides(ctx context.Context, sources []entity.Source, now time.Time) {
	s.mu.Lock()
	due := s.lastOverrideCheck.IsZero() || now.Sub(s.lastOverrideCheck) >= OverrideCheckPeriod
	s.mu.Unlock()
	if !due {
		return
	}

	overrides, err := s.store.GetOverrides(ctx, sources)
	if err != nil {
		slog.Warn("override check failed", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.overrides = overrides
	s.lastOverrideCheck = now
	s.mu.Unlock()
}

// mergeRates builds the per-tick merged rate table: catalog rate, replaced
// by an operator override when present. Sources with no catalog entry yet
// (discovered since the last catalog refresh) default to MinCrawlRPS.
func (s *Service) mergeRates(sources []entity.Source) entity.RateTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(entity.RateTable, len(sources))
	for _, source := range sources {
		rate, ok := s.catalogRates[source]
		if !ok {
			rate = catalog.MinCrawlRPS
		}
		if override, ok := s.overrides[source]; ok {
			rate = override
		}
		merged[source] = rate
	}
	return merged
}

// errorThresholdCheck reaps stale window entries, trips or clears
// temp_halted for each source, and trips (sticky) halted for any source
// whose last-50 outcomes are entirely non-expected. It returns the set of
// sources in each halt state after this tick's updates.
func (s *Service) errorThresholdCheck(ctx context.Context, sources []entity.Source, now time.Time) (permanent, temporary map[entity.Source]bool, err error) {
	alreadyHalted, err := s.store.HaltedSources(ctx, haltSetPermanent)
	if err != nil {
		return nil, nil, err
	}
	permanent = make(map[entity.Source]bool, len(alreadyHalted))
	for _, source := range alreadyHalted {
		permanent[source] = true
	}
	temporary = make(map[entity.Source]bool, len(sources))

	for _, source := range sources {
		cutoff := now.Add(-errorWindow)
		if err := s.store.ReapWindow(ctx, source, errorWindow, cutoff); err != nil {
			slog.Warn("reap window failed", slog.String("source", source.String()), slog.Any("error", err))
			continue
		}

		window, err := s.store.Window60s(ctx, source, now)
		if err != nil {
			slog.Warn("read window60s failed", slog.String("source", source.String()), slog.Any("error", err))
			continue
		}

		var expected, nonExpected int
		for _, outcome := range window {
			if outcome.Expected() {
				expected++
			} else {
				nonExpected++
			}
		}

		exceeds := false
		if len(window) > errorWindowMinSize {
			if expected == 0 {
				exceeds = nonExpected > 0
			} else {
				exceeds = float64(nonExpected)/float64(expected) > errorWindowThreshold
			}
		}

		if exceeds {
			wasHalted, _ := s.store.IsHalted(ctx, haltSetTemporary, source)
			if err := s.store.AddHalt(ctx, haltSetTemporary, source); err != nil {
				slog.Warn("add temp halt failed", slog.String("source", source.String()), slog.Any("error", err))
			} else {
				temporary[source] = true
				if !wasHalted {
					metrics.CrawlHaltsTotal.WithLabelValues(source.String(), "temporary").Inc()
				}
			}
		} else {
			if err := s.store.RemoveHalt(ctx, haltSetTemporary, source); err != nil {
				slog.Warn("remove temp halt failed", slog.String("source", source.String()), slog.Any("error", err))
			}
		}

		if permanent[source] {
			continue // sticky: never re-evaluate a source already permanently halted
		}

		last50, err := s.store.Last50(ctx, source)
		if err != nil {
			slog.Warn("read last50 failed", slog.String("source", source.String()), slog.Any("error", err))
			continue
		}
		if len(last50) < last50Size {
			continue
		}

		allNonExpected := true
		for _, code := range last50 {
			if entity.IsExpectedStatus(code) {
				allNonExpected = false
				break
			}
		}
		if !allNonExpected {
			continue
		}

		if err := s.store.AddHalt(ctx, haltSetPermanent, source); err != nil {
			slog.Warn("add permanent halt failed", slog.String("source", source.String()), slog.Any("error", err))
			continue
		}
		permanent[source] = true
		metrics.CrawlHaltsTotal.WithLabelValues(source.String(), "permanent").Inc()
		s.emitPermanentHalt(ctx, source, now)
	}

	return permanent, temporary, nil
}

// emitPermanentHalt logs the structured crawl_halted event, persists it to
// the audit log if configured, and pages the notification service: a
// permanent halt strongly suggests misconfiguration or a breaking upstream
// change, so it alerts immediately rather than waiting for the hourly
// digest (§10).
func (s *Service) emitPermanentHalt(ctx context.Context, source entity.Source, now time.Time) {
	event := entity.HaltEvent{
		ID:        uuid.New(),
		Source:    source,
		Type:      entity.HaltPermanent,
		Reason:    "last 50 recorded outcomes were all non-expected",
		Timestamp: now,
	}

	slog.Info("crawl_halted",
		slog.String("event", "crawl_halted"),
		slog.String("source", source.String()),
		slog.String("halt_type", string(event.Type)),
		slog.String("halt_id", event.ID.String()))

	if s.audit != nil {
		if err := s.audit.RecordHalt(ctx, event); err != nil {
			slog.Warn("persist halt audit record failed", slog.String("source", source.String()), slog.Any("error", err))
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyHalt(ctx, event); err != nil {
			slog.Warn("notify halt failed", slog.String("source", source.String()), slog.Any("error", err))
		}
	}
}

// replenish computes this tick's token allotment for every source: zero for
// any halted source, floor(rate) for rate >= 1, and a deferred single-token
// refill for rate < 1.
func (s *Service) replenish(merged entity.RateTable, permanent, temporary map[entity.Source]bool, now time.Time) map[entity.Source]int64 {
	tokens := make(map[entity.Source]int64, len(merged))

	for source, rate := range merged {
		if permanent[source] || temporary[source] {
			tokens[source] = 0
			continue
		}

		if rate >= 1 {
			tokens[source] = int64(math.Floor(rate))
			continue
		}

		if rate <= 0 {
			tokens[source] = 0
			continue
		}

		next, scheduled := s.deferredNextRefill[source]
		if !scheduled || !now.Before(next) {
			tokens[source] = 1
			s.deferredNextRefill[source] = now.Add(time.Duration(float64(time.Second) / rate))
		} else {
			tokens[source] = 0
		}
	}

	return tokens
}
