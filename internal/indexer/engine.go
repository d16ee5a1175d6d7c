// Package indexer owns the in-memory posting list and its persistence.
package indexer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
)

// Engine merges file chunks into a posting list and writes it to disk.
// Merges run concurrently with each other; a write excludes merges for its
// whole duration so the file is a consistent snapshot.
type Engine struct {
	mu       sync.RWMutex
	postings *index.PostingList
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine returns an Engine with an empty posting list. m may be nil.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{
		postings: index.NewPostingList(),
		metrics:  m,
		logger:   slog.Default().With("component", "indexer"),
	}
}

// Merge tokenizes chunk and appends every trigram with its token index as
// the position.
func (e *Engine) Merge(chunk ingestion.Chunk) error {
	if chunk.Location != 0 {
		return fmt.Errorf("merging %s at offset %d: %w", chunk.Path, chunk.Location, apperrors.ErrUnsupportedChunk)
	}
	tokens := tokenizer.Tokenize(chunk.Text)

	e.mu.RLock()
	err := e.postings.AppendTokens(chunk.FileID, tokens)
	e.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("merging %s: %w", chunk.Path, err)
	}
	e.logger.Debug("chunk merged",
		"path", chunk.Path,
		"file_id", chunk.FileID,
		"trigrams", len(tokens),
	)
	return nil
}

// Purge discards the posting list.
func (e *Engine) Purge() {
	e.mu.Lock()
	e.postings = index.NewPostingList()
	e.mu.Unlock()
	e.metrics.SetPostingListSize(0)
}

// Size returns the number of (trigram, file, position) triples held.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.postings.Size()
}

// Trigrams returns the number of distinct trigrams held.
func (e *Engine) Trigrams() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.postings.Len()
}

// Lookup returns the in-memory record for a trigram.
func (e *Engine) Lookup(name string) (index.Trigram, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.postings.Lookup(name)
}

// Encoded returns the sorted wire form of the posting list.
func (e *Engine) Encoded() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.postings.Encode()
}

// WritePlain writes the sorted, uncompressed index to path.
func (e *Engine) WritePlain(path string, enc encoding.Encoding) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	n, err := segment.WritePlain(path, e.postings.Encode(), enc)
	e.metrics.IndexWrite("plain", err)
	if err != nil {
		e.logger.Error("plain index write failed", "path", path, "error", err)
		return fmt.Errorf("writing plain index: %w", err)
	}
	e.logger.Info("plain index written",
		"path", path,
		"bytes", n,
		"trigrams", e.postings.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// WriteCompressed writes the deflated index to path and records it in the
// directory's register.
func (e *Engine) WriteCompressed(path string, enc encoding.Encoding) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	n, err := segment.WriteCompressed(path, e.postings.Encode(), enc)
	e.metrics.IndexWrite("compressed", err)
	if err != nil {
		e.logger.Error("compressed index write failed", "path", path, "error", err)
		return fmt.Errorf("writing compressed index: %w", err)
	}
	e.logger.Info("compressed index written",
		"path", path,
		"bytes", n,
		"duration", time.Since(start),
	)
	return nil
}

// Persist writes both index forms to the paths derived from cfg.
func (e *Engine) Persist(cfg config.IndexerConfig, enc encoding.Encoding) error {
	if err := e.WritePlain(cfg.PlainIndexPath(), enc); err != nil {
		return err
	}
	return e.WriteCompressed(cfg.CompressedIndexPath(), enc)
}

// Load replaces the posting list with the one in the compressed index at
// path.
func (e *Engine) Load(path string, enc encoding.Encoding) error {
	text, err := segment.ReadCompressed(path, enc)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	return e.replace(path, text)
}

// LoadPlain replaces the posting list with the one in the plain index at
// path.
func (e *Engine) LoadPlain(path string, enc encoding.Encoding) error {
	text, err := segment.ReadPlain(path, enc)
	if err != nil {
		return fmt.Errorf("loading plain index: %w", err)
	}
	return e.replace(path, text)
}

func (e *Engine) replace(path, text string) error {
	postings, err := index.Decode(text)
	if err != nil {
		return fmt.Errorf("parsing index %s: %w", path, err)
	}
	e.mu.Lock()
	e.postings = postings
	e.mu.Unlock()
	e.metrics.SetPostingListSize(postings.Size())
	e.logger.Info("index loaded",
		"path", path,
		"trigrams", postings.Len(),
		"size", postings.Size(),
	)
	return nil
}
