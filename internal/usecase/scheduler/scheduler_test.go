package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlctl/internal/domain/entity"
	busmem "crawlctl/internal/infra/adapter/bus/memory"
	storemem "crawlctl/internal/infra/adapter/coordstore/memory"
	"crawlctl/internal/usecase/scheduler"
)

type recordingFetcher struct {
	mu    sync.Mutex
	tasks []entity.FetchTask
}

func (f *recordingFetcher) Fetch(ctx context.Context, task entity.FetchTask) {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
}

func (f *recordingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func TestSweep_DrainsUpToShare(t *testing.T) {
	bus := busmem.New()
	store := storemem.New()
	fetcher := &recordingFetcher{}
	svc := scheduler.NewService(bus, store, fetcher, 24)

	ctx := context.Background()
	_, err := store.AddKnownSource(ctx, "flickr")
	require.NoError(t, err)

	producer, err := bus.SourceProducer(ctx, "flickr")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, producer.Publish(ctx, entity.SourceEvent{UUID: uuid.New(), URL: "https://example.com"}))
	}

	require.NoError(t, svc.Sweep(ctx))

	assert.Eventually(t, func() bool { return fetcher.count() == 5 }, time.Second, 5*time.Millisecond)
}

func TestSweep_SharesFairlyAcrossSources(t *testing.T) {
	bus := busmem.New()
	store := storemem.New()
	fetcher := &recordingFetcher{}
	svc := scheduler.NewService(bus, store, fetcher, 4) // maxTasks/4 cap = 1

	ctx := context.Background()
	for _, source := range []entity.Source{"a", "b", "c", "d"} {
		_, err := store.AddKnownSource(ctx, source)
		require.NoError(t, err)
		producer, err := bus.SourceProducer(ctx, source)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, producer.Publish(ctx, entity.SourceEvent{UUID: uuid.New(), URL: "https://example.com"}))
		}
	}

	require.NoError(t, svc.Sweep(ctx))

	// share = min(floor(4/4), 4/4) = 1 per source; with 4 sources and a
	// semaphore of 4, exactly one task per source should have been drained.
	assert.Eventually(t, func() bool { return fetcher.count() == 4 }, time.Second, 5*time.Millisecond)
}
