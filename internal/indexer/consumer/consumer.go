// Package consumer drives the indexing pipeline: it discovers files, reads
// and validates them on a bounded worker pool, and merges the resulting
// chunks into the indexer engine.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/fileid"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/ingestion/discovery"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/ingestion/loader"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
)

// Stats summarizes one indexing run.
type Stats struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// IndexConsumer feeds files into an Engine.
type IndexConsumer struct {
	engine  *indexer.Engine
	ids     *fileid.Registry
	enc     encoding.Encoding
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an IndexConsumer. workers below 1 means one worker; m may be
// nil.
func New(engine *indexer.Engine, ids *fileid.Registry, enc encoding.Encoding, workers int, m *metrics.Metrics) *IndexConsumer {
	return &IndexConsumer{
		engine:  engine,
		ids:     ids,
		enc:     enc,
		workers: max(workers, 1),
		metrics: m,
		logger:  slog.Default().With("component", "index-consumer"),
	}
}

// IndexTree discovers the files under root and indexes them.
func (ic *IndexConsumer) IndexTree(ctx context.Context, root string, recursive bool, excludeExt string) (Stats, error) {
	paths, err := discovery.ListFiles(ctx, root, recursive, excludeExt)
	if err != nil {
		return Stats{}, err
	}
	ic.logger.Info("files discovered", "root", root, "count", len(paths))
	return ic.IndexPaths(ctx, paths)
}

// IndexPaths reads, validates and merges every path in parallel. A file that
// fails to read or merge is logged and counted; it never stops the batch.
// Only cancellation of ctx returns an error.
func (ic *IndexConsumer) IndexPaths(ctx context.Context, paths []string) (Stats, error) {
	start := time.Now()
	var indexed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ic.workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunk, err := loader.ReadChunk(path, ic.enc, ic.ids)
			if err != nil {
				ic.logger.Warn("file read failed", "path", path, "error", err)
				ic.metrics.FileSkipped("error")
				failed.Add(1)
				return nil
			}
			if chunk == nil {
				ic.metrics.FileSkipped("invalid")
				skipped.Add(1)
				return nil
			}
			if err := ic.engine.Merge(*chunk); err != nil {
				ic.logger.Warn("merge failed", "path", path, "error", err)
				ic.metrics.FileSkipped("error")
				failed.Add(1)
				return nil
			}
			ic.metrics.FileIndexed()
			indexed.Add(1)
			return nil
		})
	}
	err := g.Wait()

	stats := Stats{
		Indexed: int(indexed.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	ic.metrics.SetPostingListSize(ic.engine.Size())
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return stats, fmt.Errorf("indexing cancelled: %w", err)
	}
	ic.logger.Info("indexing complete",
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"trigrams", ic.engine.Trigrams(),
		"duration", time.Since(start),
	)
	return stats, nil
}
