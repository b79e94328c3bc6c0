package service

import (
	"context"
	"sync/atomic"
	"time"

	"inventory-intel/internal/models"

	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 100

// BatchOptions bounds how many records are in flight at once.
type BatchOptions struct {
	Size    int
	Workers int
}

// forEachBatch splits items into fixed-size batches and hands each to fn,
// running up to opts.Workers batches at a time. Batches have no ordering
// dependency on each other.
func forEachBatch[T any](ctx context.Context, items []T, opts BatchOptions, fn func(ctx context.Context, batch []T) error) error {
	size := opts.Size
	if size <= 0 {
		size = defaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		g.Go(func() error {
			return fn(ctx, batch)
		})
	}

	return g.Wait()
}

// runCounter is shared by concurrently running batches.
type runCounter struct {
	processed atomic.Int64
	updated   atomic.Int64
	skipped   atomic.Int64
	errors    atomic.Int64
}

func (c *runCounter) stats(runID, engine string, started time.Time) *models.RunStats {
	return &models.RunStats{
		RunID:     runID,
		Engine:    engine,
		Processed: int(c.processed.Load()),
		Updated:   int(c.updated.Load()),
		Skipped:   int(c.skipped.Load()),
		Errors:    int(c.errors.Load()),
		Duration:  time.Since(started),
	}
}
