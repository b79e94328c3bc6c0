package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachBatchCoversEveryItem(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	seen := make(map[int]int)
	var sizes []int

	err := forEachBatch(context.Background(), items, BatchOptions{Size: 5, Workers: 3}, func(ctx context.Context, batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		sizes = append(sizes, len(batch))
		for _, v := range batch {
			seen[v]++
		}
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, seen, 23)
	for v, n := range seen {
		assert.Equal(t, 1, n, "item %d", v)
	}
	assert.ElementsMatch(t, []int{5, 5, 5, 5, 3}, sizes)
}

func TestForEachBatchBoundsConcurrency(t *testing.T) {
	items := make([]int, 40)
	var inFlight, peak atomic.Int64

	err := forEachBatch(context.Background(), items, BatchOptions{Size: 1, Workers: 4}, func(ctx context.Context, batch []int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(4))
}

func TestForEachBatchReturnsFirstError(t *testing.T) {
	items := []int{1, 2, 3, 4}

	err := forEachBatch(context.Background(), items, BatchOptions{Size: 1}, func(ctx context.Context, batch []int) error {
		if batch[0] == 3 {
			return errBoom
		}
		return nil
	})
	assert.ErrorIs(t, err, errBoom)
}

func TestForEachBatchEmpty(t *testing.T) {
	called := false
	err := forEachBatch(context.Background(), []string(nil), BatchOptions{}, func(ctx context.Context, batch []string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
