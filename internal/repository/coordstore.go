// Package repository declares the interfaces the usecase layer depends on
// for coordination, messaging, and audit persistence, following the same
// "usecase owns the interface, infra owns the implementation" split as the
// reference codebase's source/article repositories.
package repository

import (
	"context"
	"time"

	"crawlctl/internal/domain/entity"
)

// CoordinationStore is the C1 coordination substrate: token buckets, halt
// sets, rate overrides, sliding status windows, and known-source tracking.
// A single logical instance backs every regulator, scheduler, and fetcher
// in a deployment; all methods must be safe for concurrent use.
type CoordinationStore interface {
	// DecrementToken atomically decrements currtokens:{source} and returns
	// the value after decrementing. A negative result means no token was
	// available; the caller must not treat the bucket as having gone
	// negative other than as a signal to retry.
	DecrementToken(ctx context.Context, source entity.Source) (int64, error)

	// SetTokens overwrites currtokens:{source} for every source in the map
	// in a single batched round trip. Refill replaces, it does not add.
	SetTokens(ctx context.Context, tokens map[entity.Source]int64) error

	// GetOverrides reads override_rate:{source} for every given source in
	// one batched round trip. Sources with no override are omitted from
	// the result.
	GetOverrides(ctx context.Context, sources []entity.Source) (map[entity.Source]float64, error)

	// SetOverride writes override_rate:{source}. Used at process startup to
	// seed operator-supplied overrides from a static policy file; during
	// steady-state operation overrides are written directly against the
	// coordination store by operators, not by this application.
	SetOverride(ctx context.Context, source entity.Source, rate float64) error

	// AddKnownSource adds source to the inbound_sources set. Returns true
	// if the source was newly added (i.e. had never been seen before).
	AddKnownSource(ctx context.Context, source entity.Source) (bool, error)

	// KnownSources returns every source ever observed by the splitter.
	KnownSources(ctx context.Context) ([]entity.Source, error)

	// RecordOutcome performs the full status-recording batch described in
	// §4.4: global and per-source counters, the three sliding windows, and
	// the last-50 list, as a single atomic operation.
	RecordOutcome(ctx context.Context, outcome entity.Outcome) error

	// Window60s returns the still-live entries of status60s:{source},
	// i.e. those scored after now-60s. It does not reap; reaping is an
	// explicit, separate regulator responsibility (ReapWindow).
	Window60s(ctx context.Context, source entity.Source, now time.Time) ([]entity.Outcome, error)

	// ReapWindow removes entries scored before the cutoff from
	// status60s/1hr/12hr:{source}.
	ReapWindow(ctx context.Context, source entity.Source, window time.Duration, cutoff time.Time) error

	// Last50 returns the bounded statuslast50req:{source} list, most
	// recent first.
	Last50(ctx context.Context, source entity.Source) ([]string, error)

	// AddHalt adds source to the named halt set ("halted" or "temp_halted").
	AddHalt(ctx context.Context, set string, source entity.Source) error

	// RemoveHalt removes source from the named halt set. A no-op if absent.
	RemoveHalt(ctx context.Context, set string, source entity.Source) error

	// HaltedSources returns the current members of the named halt set.
	HaltedSources(ctx context.Context, set string) ([]entity.Source, error)

	// IsHalted reports whether source is currently in the named halt set.
	IsHalted(ctx context.Context, set string, source entity.Source) (bool, error)

	// IncrCounter atomically increments a named global or per-source
	// counter (num_resized, resize_errors, num_split, and their
	// per-source/per-code variants) and returns the new value.
	IncrCounter(ctx context.Context, key string, delta int64) (int64, error)

	// GetCounter reads a named counter's current value (0 if unset).
	GetCounter(ctx context.Context, key string) (int64, error)

	// SuccessErrorCounts returns the cumulative success/error counts for a
	// source, used by the structured logger.
	SuccessErrorCounts(ctx context.Context, source entity.Source) (successes, errors int64, err error)

	// Close releases any underlying connection resources.
	Close() error
}
