// Package stub provides a reference in-process implementation of the
// downstream image processor contract (§4.6 of the specification this
// package implements): it decodes enough of the fetched buffer to report
// dimensions, computes a nearest-neighbour thumbnail size, and publishes a
// metadata event. Real thumbnail persistence and EXIF extraction remain the
// external image-processing pipeline's responsibility; this stub exists so
// the fetch pipeline (C6) is exercisable end-to-end without that
// collaborator.
package stub

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/repository"
)

// Maximum thumbnail dimensions per §4.6.
const (
	maxThumbnailWidth  = 640
	maxThumbnailHeight = 480
)

// Processor implements fetcher.Processor. It reports its outcome through the
// recordOutcome callback rather than touching the coordination store
// directly: the fetcher is the single writer of §6 counters, so every fetch
// lands exactly one outcome regardless of whether it fails at the transport,
// HTTP, or decode stage.
type Processor struct {
	metadata repository.MetadataProducer
}

// New constructs a stub processor. metadata may be nil, in which case
// dimension events are computed but not published (useful in tests that
// only care about the decode/outcome side effects).
func New(metadata repository.MetadataProducer) *Processor {
	return &Processor{metadata: metadata}
}

// Process decodes body's image header, computes a bounded nearest-neighbour
// thumbnail size, publishes the resulting dimensions, and reports its own
// outcome back through recordOutcome: the reserved UnidentifiedImageError
// code on decode failure (treated as expected per §4.6), or 200 on success.
func (p *Processor) Process(ctx context.Context, body []byte, task entity.FetchTask, recordOutcome func(code string)) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		recordOutcome(entity.ExpectedUnidentifiedImage)
		return
	}

	width, height := thumbnailSize(cfg.Width, cfg.Height, maxThumbnailWidth, maxThumbnailHeight)
	p.publish(ctx, task, width, height)

	recordOutcome("200")
}

func (p *Processor) publish(ctx context.Context, task entity.FetchTask, width, height int) {
	if p.metadata == nil {
		return
	}
	event := entity.MetadataEvent{Identifier: task.Event.UUID, Width: &width, Height: &height}
	if err := p.metadata.Publish(ctx, event); err != nil {
		slog.Warn("stub processor: publish metadata failed", slog.String("source", task.Source.String()), slog.Any("error", err))
	}
}

// thumbnailSize scales (width, height) down to fit within (maxW, maxH)
// while preserving aspect ratio, nearest-neighbour style (integer
// truncation, no upscaling of already-smaller images).
func thumbnailSize(width, height, maxW, maxH int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	if width <= maxW && height <= maxH {
		return width, height
	}

	ratio := float64(maxW) / float64(width)
	if h := float64(maxH) / float64(height); h < ratio {
		ratio = h
	}

	scaledW := int(float64(width) * ratio)
	scaledH := int(float64(height) * ratio)
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	return scaledW, scaledH
}
