// Package memory provides an in-process Bus fake for component tests: each
// topic is backed by a buffered Go channel instead of a Kafka partition.
package memory

import (
	"context"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/repository"
)

const channelCapacity = 4096

// Bus is an in-memory repository.Bus. All consumers of the same topic
// compete for messages, the same fan-out semantics as a Kafka consumer
// group with multiple members.
type Bus struct {
	inbound  chan entity.InboundEvent
	sources  map[entity.Source]chan entity.SourceEvent
	metadata chan entity.MetadataEvent
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		inbound:  make(chan entity.InboundEvent, channelCapacity),
		sources:  make(map[entity.Source]chan entity.SourceEvent),
		metadata: make(chan entity.MetadataEvent, channelCapacity),
	}
}

func (b *Bus) sourceChan(source entity.Source) chan entity.SourceEvent {
	ch, ok := b.sources[source]
	if !ok {
		ch = make(chan entity.SourceEvent, channelCapacity)
		b.sources[source] = ch
	}
	return ch
}

// PublishInbound is a test helper seeding the unified inbound topic.
func (b *Bus) PublishInbound(event entity.InboundEvent) {
	b.inbound <- event
}

// DrainMetadata is a test helper reading every metadata event published so
// far without blocking.
func (b *Bus) DrainMetadata() []entity.MetadataEvent {
	var out []entity.MetadataEvent
	for {
		select {
		case e := <-b.metadata:
			out = append(out, e)
		default:
			return out
		}
	}
}

func (b *Bus) InboundConsumer(ctx context.Context, groupID string) (repository.InboundConsumer, error) {
	return &inboundConsumer{ch: b.inbound}, nil
}

func (b *Bus) SourceProducer(ctx context.Context, source entity.Source) (repository.SourceProducer, error) {
	return &sourceProducer{ch: b.sourceChan(source)}, nil
}

func (b *Bus) SourceConsumer(ctx context.Context, source entity.Source, groupID string) (repository.SourceConsumer, error) {
	return &sourceConsumer{ch: b.sourceChan(source)}, nil
}

func (b *Bus) MetadataProducer(ctx context.Context) (repository.MetadataProducer, error) {
	return &metadataProducer{ch: b.metadata}, nil
}

func (b *Bus) Close() error { return nil }

type inboundConsumer struct {
	ch chan entity.InboundEvent
}

func (c *inboundConsumer) Consume(ctx context.Context) (*entity.InboundEvent, error) {
	select {
	case e := <-c.ch:
		return &e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *inboundConsumer) CommitBatch(ctx context.Context) error { return nil }
func (c *inboundConsumer) Close() error                          { return nil }

type sourceProducer struct {
	ch chan entity.SourceEvent
}

func (p *sourceProducer) Publish(ctx context.Context, event entity.SourceEvent) error {
	select {
	case p.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *sourceProducer) Close() error { return nil }

type sourceConsumer struct {
	ch chan entity.SourceEvent
}

func (c *sourceConsumer) PollNonBlocking(ctx context.Context, max int) ([]entity.SourceEvent, error) {
	out := make([]entity.SourceEvent, 0, max)
	for len(out) < max {
		select {
		case e := <-c.ch:
			out = append(out, e)
		default:
			return out, nil
		}
	}
	return out, nil
}

func (c *sourceConsumer) Close() error { return nil }

type metadataProducer struct {
	ch chan entity.MetadataEvent
}

func (p *metadataProducer) Publish(ctx context.Context, event entity.MetadataEvent) error {
	select {
	case p.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *metadataProducer) Close() error { return nil }
