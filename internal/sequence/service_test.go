package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

type memoryCounters struct {
	mu       sync.Mutex
	counters map[string]int64
	err      error
}

func newMemoryCounters() *memoryCounters {
	return &memoryCounters{counters: make(map[string]int64)}
}

func (m *memoryCounters) IncrementCounter(ctx context.Context, entityType, periodKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	key := entityType + "/" + periodKey
	m.counters[key]++
	return m.counters[key], nil
}

func TestNextIsStrictlyIncreasingPerKey(t *testing.T) {
	svc := NewService(newMemoryCounters())
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		n, err := svc.Next(ctx, EntityPurchaseOrder, "202403")
		require.NoError(t, err)
		require.Greater(t, n, prev)
		prev = n
	}

	// A different period starts over.
	n, err := svc.Next(ctx, EntityPurchaseOrder, "202404")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// As does a different entity type in the same period.
	n, err = svc.Next(ctx, EntitySupplier, "202403")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestNextConcurrentCallersGetDistinctOrdinals(t *testing.T) {
	svc := NewService(newMemoryCounters())
	ctx := context.Background()

	const callers = 50
	results := make(chan int64, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			n, err := svc.Next(ctx, EntityPurchaseOrder, "202403")
			if err != nil {
				return err
			}
			results <- n
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	seen := make(map[int64]bool, callers)
	for n := range results {
		require.False(t, seen[n], "ordinal %d issued twice", n)
		require.GreaterOrEqual(t, n, int64(1))
		require.LessOrEqual(t, n, int64(callers))
		seen[n] = true
	}
	require.Len(t, seen, callers, "committed ordinals must be gap-free")
}

func TestNextValidatesKey(t *testing.T) {
	svc := NewService(newMemoryCounters())
	_, err := svc.Next(context.Background(), "", "202403")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Next(context.Background(), EntityPurchaseOrder, "  ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFormatting(t *testing.T) {
	march := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "PO-202403-007", PONumber(march, 7))
	require.Equal(t, "PO-202403-123", PONumber(march, 123))
	require.Equal(t, "PO-202403-1234", PONumber(march, 1234), "ordinals past the pad width keep all digits")
	require.Equal(t, "SUP2024003", SupplierCode(march, 3))

	december := time.Date(2023, time.December, 31, 23, 59, 0, 0, time.UTC)
	require.Equal(t, "PO-202312-001", PONumber(december, 1))
}
