// Package kafka backs the message bus (C2) with Kafka via
// github.com/segmentio/kafka-go. Topic layout: a single inbound_images
// topic fanning into one {source}_urls topic per normalized source, plus a
// shared outbound metadata topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/repository"
)

const (
	inboundTopic  = "inbound_images"
	metadataTopic = "image_metadata"
	topicPrefix   = ""
	topicSuffix   = "_urls"
)

func sourceTopic(source entity.Source) string {
	return topicPrefix + source.String() + topicSuffix
}

// Bus implements repository.Bus against a Kafka cluster. Producers for
// per-source topics are created lazily and cached, mirroring the splitter's
// lazy per-source registration in §4.1.
type Bus struct {
	brokers []string

	mu        sync.Mutex
	producers map[string]*kafkago.Writer
}

// New returns a Bus dialing the given broker addresses. No connection is
// established until the first reader/writer is constructed.
func New(brokers []string) *Bus {
	return &Bus{brokers: brokers, producers: make(map[string]*kafkago.Writer)}
}

func (b *Bus) writerFor(topic string) *kafkago.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.producers[topic]; ok {
		return w
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(b.brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           100 * time.Millisecond,
	}
	b.producers[topic] = w
	return w
}

func (b *Bus) InboundConsumer(ctx context.Context, groupID string) (repository.InboundConsumer, error) {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: b.brokers,
		GroupID: groupID,
		Topic:   inboundTopic,
	})
	return &inboundConsumer{reader: reader}, nil
}

func (b *Bus) SourceProducer(ctx context.Context, source entity.Source) (repository.SourceProducer, error) {
	return &sourceProducer{writer: b.writerFor(sourceTopic(source))}, nil
}

func (b *Bus) SourceConsumer(ctx context.Context, source entity.Source, groupID string) (repository.SourceConsumer, error) {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: b.brokers,
		GroupID: groupID,
		Topic:   sourceTopic(source),
	})
	return &sourceConsumer{reader: reader}, nil
}

func (b *Bus) MetadataProducer(ctx context.Context) (repository.MetadataProducer, error) {
	return &metadataProducer{writer: b.writerFor(metadataTopic)}, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, w := range b.producers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type inboundConsumer struct {
	reader *kafkago.Reader
}

func (c *inboundConsumer) Consume(ctx context.Context) (*entity.InboundEvent, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("kafka: fetch inbound message: %w", err)
	}

	var event entity.InboundEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed payload: discard by committing past it rather than
		// stalling the consumer group on a poison message.
		_ = c.reader.CommitMessages(ctx, msg)
		return nil, nil
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("kafka: commit inbound offset: %w", err)
	}
	return &event, nil
}

func (c *inboundConsumer) CommitBatch(ctx context.Context) error {
	return nil
}

func (c *inboundConsumer) Close() error {
	return c.reader.Close()
}

type sourceProducer struct {
	writer *kafkago.Writer
}

func (p *sourceProducer) Publish(ctx context.Context, event entity.SourceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal source event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.UUID.String()),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("kafka: publish source event: %w", err)
	}
	return nil
}

func (p *sourceProducer) Close() error {
	return nil // owned by Bus.producers; closed on Bus.Close
}

type sourceConsumer struct {
	reader *kafkago.Reader
}

func (c *sourceConsumer) PollNonBlocking(ctx context.Context, max int) ([]entity.SourceEvent, error) {
	out := make([]entity.SourceEvent, 0, max)
	for len(out) < max {
		pollCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		msg, err := c.reader.FetchMessage(pollCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			// Timeout with nothing pending: the topic is drained for now.
			break
		}

		var event entity.SourceEvent
		if err := json.Unmarshal(msg.Value, &event); err == nil {
			out = append(out, event)
		}
		if err := c.reader.CommitMessages(context.Background(), msg); err != nil {
			return out, fmt.Errorf("kafka: commit source offset: %w", err)
		}
	}
	return out, nil
}

func (c *sourceConsumer) Close() error {
	return c.reader.Close()
}

type metadataProducer struct {
	writer *kafkago.Writer
}

func (p *metadataProducer) Publish(ctx context.Context, event entity.MetadataEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal metadata event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Identifier.String()),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("kafka: publish metadata event: %w", err)
	}
	return nil
}

func (p *metadataProducer) Close() error {
	return nil
}
