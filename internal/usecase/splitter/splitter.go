// Package splitter implements the source splitter (C3): it drains the
// unified inbound topic, lower-cases and registers each message's source,
// and republishes the message (without the source field) onto that
// source's dedicated per-source topic.
package splitter

import (
	"context"
	"log/slog"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/observability/metrics"
	"crawlctl/internal/observability/tracing"
	"crawlctl/internal/repository"
)

// splitCountCommitEvery is how often the num_split counter is incremented
// and consumer offsets are committed, per §4.1.
const splitCountCommitEvery = 1000

// Service runs the splitter's consume loop.
type Service struct {
	bus   repository.Bus
	store repository.CoordinationStore

	consumer  repository.InboundConsumer
	producers map[entity.Source]repository.SourceProducer

	sinceCommit int
}

// NewService constructs a splitter bound to the given message bus and
// coordination store. Call Run to start draining the inbound topic.
func NewService(bus repository.Bus, store repository.CoordinationStore) *Service {
	return &Service{
		bus:       bus,
		store:     store,
		producers: make(map[entity.Source]repository.SourceProducer),
	}
}

// Run consumes the unified inbound topic until ctx is cancelled. A
// malformed message is dropped and logged; a transport-level consumer or
// producer error propagates up so orchestration can restart the process
// (§4.1's failure semantics).
func (s *Service) Run(ctx context.Context, groupID string) error {
	consumer, err := s.bus.InboundConsumer(ctx, groupID)
	if err != nil {
		return err
	}
	s.consumer = consumer
	defer s.consumer.Close()

	for {
		select {
		case <-ctx.Done():
			return s.closeProducers()
		default:
		}

		event, err := s.consumer.Consume(ctx)
		if err != nil {
			return err
		}
		if event == nil {
			// Malformed message: already discarded by the consumer per
			// §4.1's parse-failure semantics.
			metrics.CrawlSplitDropped.Inc()
			continue
		}

		if err := s.split(ctx, *event); err != nil {
			return err
		}

		s.sinceCommit++
		if s.sinceCommit >= splitCountCommitEvery {
			if err := s.flush(ctx); err != nil {
				return err
			}
		}
	}
}

// split handles a single inbound event: normalize and register the source,
// lazily create its per-source producer, and republish without the source
// field.
func (s *Service) split(ctx context.Context, event entity.InboundEvent) error {
	ctx, span := tracing.GetTracer().Start(ctx, "splitter.split")
	defer span.End()

	source := entity.NormalizeSource(event.Source.String())
	if !source.Valid() {
		slog.Warn("dropping inbound event with empty source", slog.String("uuid", event.UUID.String()))
		metrics.CrawlSplitDropped.Inc()
		return nil
	}

	if _, err := s.store.AddKnownSource(ctx, source); err != nil {
		return err
	}

	producer, err := s.producerFor(ctx, source)
	if err != nil {
		return err
	}

	if err := producer.Publish(ctx, entity.SourceEvent{UUID: event.UUID, URL: event.URL}); err != nil {
		return err
	}

	metrics.CrawlSplitTotal.Inc()
	return nil
}

func (s *Service) producerFor(ctx context.Context, source entity.Source) (repository.SourceProducer, error) {
	if producer, ok := s.producers[source]; ok {
		return producer, nil
	}

	producer, err := s.bus.SourceProducer(ctx, source)
	if err != nil {
		return nil, err
	}
	s.producers[source] = producer
	return producer, nil
}

// flush commits consumer offsets and the num_split counter, then resets
// the batch window.
func (s *Service) flush(ctx context.Context) error {
	if _, err := s.store.IncrCounter(ctx, "num_split", int64(s.sinceCommit)); err != nil {
		return err
	}
	if err := s.consumer.CommitBatch(ctx); err != nil {
		return err
	}
	s.sinceCommit = 0
	return nil
}

func (s *Service) closeProducers() error {
	for _, producer := range s.producers {
		_ = producer.Close()
	}
	return nil
}
