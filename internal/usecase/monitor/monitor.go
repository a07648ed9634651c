// Package monitor implements the structured logger (C7): the periodic loop
// that assembles a monitoring_update document from the coordination store's
// cumulative counters and the regulator's current rate table, and emits it
// as a single structured log line.
package monitor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/observability/slo"
	"crawlctl/internal/observability/tracing"
	"crawlctl/internal/repository"
	"crawlctl/internal/usecase/regulator"
)

const (
	counterNumResized   = "num_resized"
	counterResizeErrors = "resize_errors"
	counterNumSplit     = "num_split"

	haltSetPermanent = "halted"
	haltSetTemporary = "temp_halted"
)

// RateSource reports the regulator's currently merged per-source crawl
// rates, used to populate each SourceSnapshot's RateLimit field.
type RateSource interface {
	Rates() entity.RateTable
}

var _ RateSource = (*regulator.Service)(nil)

// Service periodically builds and logs a monitoring_update document.
// Resolution controls how finely per-second rates are rounded: a target
// resolution of 100.0 rounds a computed rate to the nearest 1/100.
type Service struct {
	store      repository.CoordinationStore
	rates      RateSource
	interval   time.Duration
	resolution float64

	mu            sync.Mutex
	last          time.Time
	lastResized   int64
	lastErrors    int64
	lastSplit     int64
	haveBaseline  bool
}

// NewService constructs a C7 logger bound to the coordination store and the
// regulator whose rate table it reports. interval is the tick cadence
// (LOG_FREQUENCY_SECONDS); resolution is TARGET_RESOLUTION, the rounding
// granularity applied to the per-second derivative fields.
func NewService(store repository.CoordinationStore, rates RateSource, interval time.Duration, resolution float64) *Service {
	if resolution <= 0 {
		resolution = 1
	}
	return &Service{
		store:      store,
		rates:      rates,
		interval:   interval,
		resolution: resolution,
	}
}

// Run emits a monitoring_update document every interval until ctx is
// cancelled. The first tick establishes a counter baseline and reports
// zero-valued per-second rates rather than a spurious spike from process
// start.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.Tick(ctx, now); err != nil {
				slog.Error("monitor tick failed", slog.Any("error", err))
			}
		}
	}
}

// Tick builds one monitoring_update document and logs it at Info level.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	ctx, span := tracing.GetTracer().Start(ctx, "monitor.tick")
	defer span.End()

	snapshot, err := s.buildSnapshot(ctx, now)
	if err != nil {
		return err
	}

	slog.Info("monitoring_update",
		slog.String("event", snapshot.Event),
		slog.Time("timestamp", snapshot.Timestamp),
		slog.Any("general", snapshot.General),
		slog.Any("specific", snapshot.Specific))
	return nil
}

// Snapshot builds the same document Tick logs, without logging it. The
// hourly archival job uses this to persist a snapshot independently of the
// logger's own cadence.
func (s *Service) Snapshot(ctx context.Context, now time.Time) (entity.MonitoringSnapshot, error) {
	return s.buildSnapshot(ctx, now)
}

func (s *Service) buildSnapshot(ctx context.Context, now time.Time) (entity.MonitoringSnapshot, error) {
	sources, err := s.store.KnownSources(ctx)
	if err != nil {
		return entity.MonitoringSnapshot{}, err
	}

	resized, err := s.store.GetCounter(ctx, counterNumResized)
	if err != nil {
		return entity.MonitoringSnapshot{}, err
	}
	resizeErrors, err := s.store.GetCounter(ctx, counterResizeErrors)
	if err != nil {
		return entity.MonitoringSnapshot{}, err
	}
	split, err := s.store.GetCounter(ctx, counterNumSplit)
	if err != nil {
		return entity.MonitoringSnapshot{}, err
	}

	resizedPS, errorsPS, splitPS := s.perSecondRates(now, resized, resizeErrors, split)

	halted, err := s.store.HaltedSources(ctx, haltSetPermanent)
	if err != nil {
		return entity.MonitoringSnapshot{}, err
	}

	rates := s.rates.Rates()
	specific := make(map[entity.Source]entity.SourceSnapshot, len(sources))
	var totalSuccesses, totalErrors int64
	for _, source := range sources {
		snap, err := s.buildSourceSnapshot(ctx, source, rates)
		if err != nil {
			return entity.MonitoringSnapshot{}, err
		}
		specific[source] = snap
		totalSuccesses += snap.Successes
		totalErrors += snap.Errors
	}
	updateSLO(totalSuccesses, totalErrors)

	return entity.MonitoringSnapshot{
		Event:     "monitoring_update",
		Timestamp: now,
		General: entity.GeneralSnapshot{
			NumResized:     resized,
			ResizeErrors:   resizeErrors,
			NumSplit:       split,
			NumResizedPS:   resizedPS,
			ResizeErrorsPS: errorsPS,
			NumSplitPS:     splitPS,
			HaltedSources:  halted,
		},
		Specific: specific,
	}, nil
}

func (s *Service) buildSourceSnapshot(ctx context.Context, source entity.Source, rates entity.RateTable) (entity.SourceSnapshot, error) {
	successes, failures, err := s.store.SuccessErrorCounts(ctx, source)
	if err != nil {
		return entity.SourceSnapshot{}, err
	}

	last50, err := s.store.Last50(ctx, source)
	if err != nil {
		return entity.SourceSnapshot{}, err
	}

	tempHalted, err := s.store.IsHalted(ctx, haltSetTemporary, source)
	if err != nil {
		return entity.SourceSnapshot{}, err
	}

	halted, err := s.store.IsHalted(ctx, haltSetPermanent, source)
	if err != nil {
		return entity.SourceSnapshot{}, err
	}

	return entity.SourceSnapshot{
		Source:     source,
		RateLimit:  rates[source],
		Successes:  successes,
		Errors:     failures,
		Last50:     last50,
		TempHalted: tempHalted,
		Halted:     halted,
	}, nil
}

// perSecondRates derives the three general per-second rates from the delta
// against the previous tick, rounded to the configured resolution. The
// first call after process start has no baseline and reports zero.
func (s *Service) perSecondRates(now time.Time, resized, resizeErrors, split int64) (resizedPS, errorsPS, splitPS float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.haveBaseline {
		s.haveBaseline = true
		s.last = now
		s.lastResized = resized
		s.lastErrors = resizeErrors
		s.lastSplit = split
		return 0, 0, 0
	}

	elapsed := now.Sub(s.last).Seconds()
	if elapsed <= 0 {
		elapsed = s.interval.Seconds()
	}

	resizedPS = s.round(float64(resized-s.lastResized) / elapsed)
	errorsPS = s.round(float64(resizeErrors-s.lastErrors) / elapsed)
	splitPS = s.round(float64(split-s.lastSplit) / elapsed)

	s.last = now
	s.lastResized = resized
	s.lastErrors = resizeErrors
	s.lastSplit = split
	return resizedPS, errorsPS, splitPS
}

func (s *Service) round(v float64) float64 {
	return math.Round(v*s.resolution) / s.resolution
}

// updateSLO reports the aggregate fetch availability and error ratio across
// every known source to the service-level-objective gauges.
func updateSLO(successes, errors int64) {
	total := successes + errors
	if total == 0 {
		return
	}
	slo.UpdateAvailability(float64(successes) / float64(total))
	slo.UpdateErrorRate(float64(errors) / float64(total))
}
