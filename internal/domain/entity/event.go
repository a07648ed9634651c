package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExpectedUnidentifiedImage is the reserved status code the downstream image
// processor reports when a fetched payload does not decode as an image.
// It is treated as an expected outcome for circuit-breaker purposes: the
// bytes not being a decodable image is not the upstream server's fault.
const ExpectedUnidentifiedImage = "UnidentifiedImageError"

// expectedStatuses is the fixed set of outcome codes that do not count
// toward temporary or permanent halts.
var expectedStatuses = map[string]struct{}{
	"200":                     {},
	"404":                     {},
	"301":                     {},
	ExpectedUnidentifiedImage: {},
}

// IsExpectedStatus reports whether code is in the fixed expected-status set.
func IsExpectedStatus(code string) bool {
	_, ok := expectedStatuses[code]
	return ok
}

// InboundEvent is the unified-topic message produced by an external
// collaborator and consumed by the source splitter (C3).
type InboundEvent struct {
	Source Source    `json:"source"`
	UUID   uuid.UUID `json:"uuid"`
	URL    string    `json:"url"`
}

// SourceEvent is the per-source-topic message the splitter (C3) republishes
// and the scheduler (C5) drains for dispatch to the fetcher (C6).
type SourceEvent struct {
	UUID uuid.UUID `json:"uuid"`
	URL  string    `json:"url"`
}

// FetchTask is a per-source event paired with the source it came from, the
// unit of work the scheduler hands to a fetch goroutine.
type FetchTask struct {
	Source Source
	Event  SourceEvent
}

// Outcome is a single recorded response to a fetch attempt, the unit that
// flows into the sliding status windows and the last-50 list.
type Outcome struct {
	Source    Source
	Code      string // numeric HTTP status as a string, or ExpectedUnidentifiedImage
	Timestamp time.Time
}

// Expected reports whether this outcome counts as expected for circuit
// breaking purposes.
func (o Outcome) Expected() bool {
	return IsExpectedStatus(o.Code)
}

// MetadataEvent is published to the outbound metadata topic by the
// downstream image processor once a fetch has been decoded.
type MetadataEvent struct {
	Identifier uuid.UUID         `json:"identifier"`
	Height     *int              `json:"height,omitempty"`
	Width      *int              `json:"width,omitempty"`
	EXIF       map[string]string `json:"exif,omitempty"`
}

// HaltType distinguishes the two halt semantics a crawl_halted event can
// report.
type HaltType string

const (
	HaltTemporary HaltType = "temporary"
	HaltPermanent HaltType = "permanent"
)

// HaltEvent is the structured log (and, in this implementation, audit-log)
// record emitted when the regulator trips a halt for a source.
type HaltEvent struct {
	ID        uuid.UUID `json:"id"`
	Source    Source    `json:"source"`
	Type      HaltType  `json:"type"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceSnapshot is the C7 per-source block of a monitoring_update document.
type SourceSnapshot struct {
	Source     Source   `json:"-"`
	RateLimit  float64  `json:"rate_limit"`
	Successes  int64    `json:"successes"`
	Errors     int64    `json:"errors"`
	Last50     []string `json:"last_50"`
	TempHalted bool     `json:"temp_halted"`
	Halted     bool     `json:"halted"`
}

// MonitoringSnapshot is the single JSON document C7 emits on every logger
// tick: general (cross-source) counters plus a per-source breakdown.
type MonitoringSnapshot struct {
	Event     string                    `json:"event"`
	Timestamp time.Time                 `json:"timestamp"`
	General   GeneralSnapshot           `json:"general"`
	Specific  map[Source]SourceSnapshot `json:"specific"`
}

// GeneralSnapshot is the cross-source block of a monitoring_update document.
type GeneralSnapshot struct {
	NumResized     int64    `json:"num_resized"`
	ResizeErrors   int64    `json:"resize_errors"`
	NumSplit       int64    `json:"num_split"`
	NumResizedPS   float64  `json:"num_resized_per_sec"`
	ResizeErrorsPS float64  `json:"resize_errors_per_sec"`
	NumSplitPS     float64  `json:"num_split_per_sec"`
	HaltedSources  []Source `json:"halted_sources"`
}
