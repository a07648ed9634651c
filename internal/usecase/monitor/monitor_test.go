package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/infra/adapter/coordstore/memory"
	"crawlctl/internal/usecase/monitor"
)

type fakeRates struct {
	table entity.RateTable
}

func (f fakeRates) Rates() entity.RateTable {
	return f.table
}

func TestTick_FirstCallReportsZeroRatesAndBuildsSnapshot(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.AddKnownSource(ctx, "example")
	require.NoError(t, err)
	_, err = store.IncrCounter(ctx, "num_split", 5)
	require.NoError(t, err)

	svc := monitor.NewService(store, fakeRates{table: entity.RateTable{"example": 3.5}}, 5*time.Second, 100)

	require.NoError(t, svc.Tick(ctx, time.Now()))
}

func TestTick_SecondCallDerivesPerSecondRates(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, err := store.AddKnownSource(ctx, "example")
	require.NoError(t, err)

	svc := monitor.NewService(store, fakeRates{table: entity.RateTable{}}, 5*time.Second, 100)

	start := time.Now()
	require.NoError(t, svc.Tick(ctx, start))

	_, err = store.IncrCounter(ctx, "num_split", 10)
	require.NoError(t, err)

	require.NoError(t, svc.Tick(ctx, start.Add(5*time.Second)))
}

func TestTick_ZeroResolutionFallsBackToOne(t *testing.T) {
	store := memory.New()
	svc := monitor.NewService(store, fakeRates{table: entity.RateTable{}}, time.Second, 0)
	require.NoError(t, svc.Tick(context.Background(), time.Now()))
}
