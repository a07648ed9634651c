package repository

import (
	"context"

	"crawlctl/internal/domain/entity"
)

// InboundConsumer reads JSON-encoded entity.InboundEvent messages off the
// unified inbound topic. Implementations join the "splitter" consumer
// group so multiple splitter instances cooperate.
type InboundConsumer interface {
	// Consume blocks until a message is available, ctx is cancelled, or an
	// unrecoverable transport error occurs. A nil error with a nil event
	// means the message was malformed and has already been discarded
	// (offset committed) per §4.1's failure semantics.
	Consume(ctx context.Context) (*entity.InboundEvent, error)

	// CommitBatch commits consumer offsets up to the most recently
	// returned message. Called periodically, not after every message.
	CommitBatch(ctx context.Context) error

	Close() error
}

// SourceProducer publishes JSON-encoded entity.SourceEvent messages onto a
// single source's per-source topic ({source}_urls).
type SourceProducer interface {
	Publish(ctx context.Context, event entity.SourceEvent) error
	Close() error
}

// SourceConsumer drains a single source's per-source topic non-blockingly,
// the primitive the crawl scheduler (C5) uses to fill each source's share.
type SourceConsumer interface {
	// PollNonBlocking returns up to max pending messages without blocking.
	// It returns fewer than max (possibly zero) if the topic is currently
	// drained; this is not an error.
	PollNonBlocking(ctx context.Context, max int) ([]entity.SourceEvent, error)

	Close() error
}

// MetadataProducer publishes outbound metadata events (dimensions and/or
// EXIF) produced by the downstream image processor.
type MetadataProducer interface {
	Publish(ctx context.Context, event entity.MetadataEvent) error
	Close() error
}

// Bus is the C2 message-bus client: a factory for the consumer/producer
// roles above. A single Bus implementation backs both the splitter process
// and the crawl host process, each using the roles it needs.
type Bus interface {
	InboundConsumer(ctx context.Context, groupID string) (InboundConsumer, error)
	SourceProducer(ctx context.Context, source entity.Source) (SourceProducer, error)
	SourceConsumer(ctx context.Context, source entity.Source, groupID string) (SourceConsumer, error)
	MetadataProducer(ctx context.Context) (MetadataProducer, error)
	Close() error
}
