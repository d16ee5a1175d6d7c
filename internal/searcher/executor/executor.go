// Package executor answers search requests: raw pattern scans over a
// directory tree, trigram lookups and index-assisted pattern searches over
// the plain index, and glob file finding.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/fileid"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/ingestion/discovery"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/binsearch"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/scanner"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/tracing"
)

// Search strategies reported in results.
const (
	StrategyScan    = "scan"
	StrategyIndexed = "indexed"
	StrategyGlob    = "glob"
)

// SearchResult lists the files answering one request.
type SearchResult struct {
	Query     string   `json:"query"`
	Root      string   `json:"root,omitempty"`
	Strategy  string   `json:"strategy"`
	TotalHits int      `json:"total_hits"`
	Files     []string `json:"files"`
	Truncated bool     `json:"truncated,omitempty"`
	TookMs    int64    `json:"took_ms"`
}

// FileHit is one file's entry in a trigram record.
type FileHit struct {
	FileID    int32   `json:"file_id"`
	Path      string  `json:"path,omitempty"`
	Positions []int32 `json:"positions"`
}

// TrigramResult is the decoded record of one trigram.
type TrigramResult struct {
	Trigram string    `json:"trigram"`
	Found   bool      `json:"found"`
	Files   []FileHit `json:"files"`
}

// Executor runs searches against one index directory.
type Executor struct {
	scanner    *scanner.Scanner
	cfg        config.IndexerConfig
	enc        encoding.Encoding
	workers    int
	maxResults int
	metrics    *metrics.Metrics
	logger     *slog.Logger

	idsMu sync.Mutex
	ids   *fileid.Registry
}

// New creates an Executor. Index files are located through cfg and decoded
// with enc.
func New(sc *scanner.Scanner, cfg config.IndexerConfig, search config.SearchConfig, enc encoding.Encoding, m *metrics.Metrics) *Executor {
	return &Executor{
		scanner:    sc,
		cfg:        cfg,
		enc:        enc,
		workers:    max(search.Workers, 1),
		maxResults: search.MaxResults,
		metrics:    m,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// FindPattern scans every file under root for pattern.
func (e *Executor) FindPattern(ctx context.Context, root, pattern string) (*SearchResult, error) {
	start := time.Now()
	files, err := e.scanner.FindPattern(ctx, root, pattern, e.enc, e.cfg.IndexFileExt)
	if err != nil {
		return nil, err
	}
	return e.result(pattern, root, StrategyScan, files, start), nil
}

// FindFiles lists the files and directories under root whose name matches
// glob.
func (e *Executor) FindFiles(ctx context.Context, root, glob string) (*SearchResult, error) {
	start := time.Now()
	files, err := discovery.FindFiles(ctx, root, glob)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return e.result(glob, root, StrategyGlob, files, start), nil
}

// LookupTrigram returns the plain-index record for name. Names shorter than
// a trigram are space padded the way the tokenizer pads a file's tail.
func (e *Executor) LookupTrigram(ctx context.Context, name string) (*TrigramResult, error) {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > tokenizer.Width || strings.ContainsAny(name, "\r\n") {
		return nil, fmt.Errorf("%w: trigram must be 1 to %d characters without line breaks", apperrors.ErrInvalidArgument, tokenizer.Width)
	}
	name += strings.Repeat(" ", tokenizer.Width-n)

	s, err := binsearch.Open(e.cfg.PlainIndexPath(), e.enc)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	rec, found, err := s.Lookup(name)
	if err != nil {
		e.metrics.Lookup("error")
		return nil, err
	}
	result := &TrigramResult{Trigram: name, Found: found, Files: []FileHit{}}
	if !found {
		e.metrics.Lookup("miss")
		return result, nil
	}
	e.metrics.Lookup("hit")

	ids, err := e.registry()
	if err != nil {
		e.logger.Warn("file id map unavailable, returning ids only", "error", err)
	}
	for _, ref := range rec.FileRefs {
		hit := FileHit{FileID: ref.FileID, Positions: ref.Positions}
		if ids != nil {
			hit.Path, _ = ids.Path(ref.FileID)
		}
		result.Files = append(result.Files, hit)
	}
	return result, nil
}

// IndexedSearch finds the indexed files containing pattern. Trigram lookups
// narrow the candidates; every candidate is then confirmed by scanning the
// file itself, so the result holds no false positives.
func (e *Executor) IndexedSearch(ctx context.Context, pattern string) (*SearchResult, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "indexed-search")
	defer span.End()
	if pattern == "" || strings.ContainsAny(pattern, "\r\n") {
		return nil, fmt.Errorf("%w: pattern must be non-empty and on one line", apperrors.ErrInvalidArgument)
	}
	if _, err := charset.EncodeFragment(e.enc, pattern); err != nil {
		e.logger.Debug("pattern not representable", "charset", charset.Name(e.enc), "error", err)
		return e.result(pattern, "", StrategyIndexed, nil, start), nil
	}
	ids, err := e.registry()
	if err != nil {
		return nil, err
	}
	s, err := binsearch.Open(e.cfg.PlainIndexPath(), e.enc)
	if err != nil {
		return nil, err
	}
	_, planned := tracing.Start(ctx, "candidates")
	candidates, err := e.candidates(s, pattern, ids)
	s.Close()
	planned.SetAttr("candidates", len(candidates))
	planned.End()
	if err != nil {
		return nil, err
	}

	vctx, verified := tracing.Start(ctx, "verify")
	files, err := e.verify(vctx, pattern, candidates, ids)
	verified.SetAttr("matches", len(files))
	verified.End()
	if err != nil {
		return nil, err
	}
	e.logger.Debug("indexed search",
		"pattern", pattern,
		"candidates", len(candidates),
		"matches", len(files),
	)
	return e.result(pattern, "", StrategyIndexed, files, start), nil
}

// candidates returns the ids of files that may contain pattern. A match can
// begin anywhere inside a trigram, so each of the three alignments is tried:
// for shift s, the complete trigrams of pattern[s:] must appear in a file at
// consecutive positions. An alignment with no complete trigram cannot rule
// out any file.
func (e *Executor) candidates(s *binsearch.Searcher, pattern string, ids *fileid.Registry) ([]int32, error) {
	runes := []rune(pattern)
	records := make(map[string]map[int32]map[int32]struct{})
	lookup := func(name string) (map[int32]map[int32]struct{}, error) {
		if rec, ok := records[name]; ok {
			return rec, nil
		}
		t, found, err := s.Lookup(name)
		if err != nil {
			e.metrics.Lookup("error")
			return nil, err
		}
		rec := make(map[int32]map[int32]struct{})
		if found {
			e.metrics.Lookup("hit")
			for _, ref := range t.FileRefs {
				positions := make(map[int32]struct{}, len(ref.Positions))
				for _, p := range ref.Positions {
					positions[p] = struct{}{}
				}
				rec[ref.FileID] = positions
			}
		} else {
			e.metrics.Lookup("miss")
		}
		records[name] = rec
		return rec, nil
	}

	union := make(map[int32]struct{})
	for shift := 0; shift < tokenizer.Width && shift < len(runes); shift++ {
		terms := tokenizer.Complete(string(runes[shift:]))
		if len(terms) == 0 {
			return ids.IDs(), nil
		}
		first, err := lookup(terms[0])
		if err != nil {
			return nil, err
		}
		for fileID, starts := range first {
			if _, seen := union[fileID]; seen {
				continue
			}
			ok, err := consecutive(fileID, starts, terms[1:], lookup)
			if err != nil {
				return nil, err
			}
			if ok {
				union[fileID] = struct{}{}
			}
		}
	}

	out := make([]int32, 0, len(union))
	for id := range union {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// consecutive reports whether some start position p has terms[k] at p+k+1
// in fileID for every k.
func consecutive(
	fileID int32,
	starts map[int32]struct{},
	terms []string,
	lookup func(string) (map[int32]map[int32]struct{}, error),
) (bool, error) {
	alive := make([]int32, 0, len(starts))
	for p := range starts {
		alive = append(alive, p)
	}
	for k, term := range terms {
		rec, err := lookup(term)
		if err != nil {
			return false, err
		}
		positions := rec[fileID]
		next := alive[:0]
		for _, p := range alive {
			if _, ok := positions[p+int32(k)+1]; ok {
				next = append(next, p)
			}
		}
		alive = next
		if len(alive) == 0 {
			return false, nil
		}
	}
	return len(alive) > 0, nil
}

// verify scans each candidate file for pattern in parallel. Files that are
// gone or unreadable are logged and dropped.
func (e *Executor) verify(ctx context.Context, pattern string, candidates []int32, ids *fileid.Registry) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, id := range candidates {
		path, ok := ids.Path(id)
		if !ok {
			e.logger.Warn("index references unknown file id", "file_id", id)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := e.scanner.SearchFile(path, pattern, e.enc)
			if err != nil {
				e.logger.Warn("candidate verification failed", "path", path, "error", err)
				return nil
			}
			if found {
				mu.Lock()
				files = append(files, path)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verifying candidates: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// registry returns the persisted file id map, loading it on first use.
func (e *Executor) registry() (*fileid.Registry, error) {
	e.idsMu.Lock()
	defer e.idsMu.Unlock()
	if e.ids != nil {
		return e.ids, nil
	}
	ids, err := fileid.Load(e.cfg.FileIDsPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrIndexNotFound, err)
	}
	e.ids = ids
	return ids, nil
}

// Reload drops the cached file id map so the next request reads the one on
// disk. Call it after the index has been rebuilt.
func (e *Executor) Reload() {
	e.idsMu.Lock()
	e.ids = nil
	e.idsMu.Unlock()
}

func (e *Executor) result(query, root, strategy string, files []string, start time.Time) *SearchResult {
	if files == nil {
		files = []string{}
	}
	r := &SearchResult{
		Query:     query,
		Root:      root,
		Strategy:  strategy,
		TotalHits: len(files),
		Files:     files,
	}
	if e.maxResults > 0 && len(files) > e.maxResults {
		r.Files = files[:e.maxResults]
		r.Truncated = true
	}
	r.TookMs = time.Since(start).Milliseconds()
	return r
}
