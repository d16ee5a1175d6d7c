// Package scanner searches raw file content for a literal byte pattern.
//
// Files below SmallFileThreshold are read into memory; larger files are
// mapped one window at a time. Both paths use the same forward
// skip-and-verify scan: find the pattern's first byte, then compare the rest.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/ingestion/discovery"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/mmap"
)

const (
	// SmallFileThreshold is the size below which a file is read whole.
	SmallFileThreshold = 50_000
	// DefaultWindowSize is the mapped window for large files. It is a
	// multiple of every supported mapping granularity.
	DefaultWindowSize = 4 << 20
)

// Scanner runs pattern searches. The zero value is not usable; call New.
type Scanner struct {
	workers    int
	windowSize int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWindowSize overrides the mapped window size. It is rounded up to the
// mapping granularity.
func WithWindowSize(n int) Option {
	return func(s *Scanner) {
		s.windowSize = n
	}
}

// WithMetrics records per-file scans on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// New returns a Scanner that checks up to workers files at once.
func New(workers int, opts ...Option) *Scanner {
	s := &Scanner{
		workers:    max(workers, 1),
		windowSize: DefaultWindowSize,
		logger:     slog.Default().With("component", "scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.windowSize = roundUp(max(s.windowSize, 1), mmap.Granularity())
	return s
}

// SearchFile reports whether the file at path contains pattern encoded with
// enc. A pattern enc cannot represent is never found.
func (s *Scanner) SearchFile(path, pattern string, enc encoding.Encoding) (bool, error) {
	if path == "" || pattern == "" || enc == nil {
		return false, fmt.Errorf("%w: path, pattern and charset are required", apperrors.ErrInvalidArgument)
	}
	pat, err := charset.EncodeFragment(enc, pattern)
	if err != nil {
		s.logger.Debug("pattern not representable", "charset", charset.Name(enc), "error", err)
		return false, nil
	}
	return s.searchBytes(path, pat)
}

func (s *Scanner) searchBytes(path string, pat []byte) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	strategy := "read"
	if info.Size() >= SmallFileThreshold {
		strategy = "mmap"
	}

	start := time.Now()
	var found bool
	if strategy == "read" {
		found, err = searchRead(path, pat)
	} else {
		found, err = s.searchMapped(path, pat)
	}

	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case found:
		result = "match"
	}
	s.metrics.Scan(strategy, result, time.Since(start))
	return found, err
}

func searchRead(path string, pat []byte) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return indexOf(data, pat) >= 0, nil
}

// searchMapped scans path one window at a time. Consecutive windows overlap
// by at least len(pat)-1 bytes so no match is lost at a boundary, and each
// window is unmapped before the next is mapped.
func (s *Scanner) searchMapped(path string, pat []byte) (bool, error) {
	f, err := mmap.OpenFile(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	gran := int64(mmap.Granularity())
	size := f.Size()
	window := int64(s.windowSize)
	if need := int64(len(pat)-1) + gran; window < need {
		window = int64(roundUp(int(need), int(gran)))
	}

	for off := int64(0); off < size; {
		length := min(window, size-off)
		found, err := scanWindow(f, off, int(length), pat)
		if err != nil {
			return false, fmt.Errorf("scanning %s at %d: %w", path, off, err)
		}
		if found {
			return true, nil
		}
		if off+length >= size {
			break
		}
		off = (off + length - int64(len(pat)-1)) / gran * gran
	}
	return false, nil
}

func scanWindow(f *mmap.File, off int64, length int, pat []byte) (bool, error) {
	m, err := f.Map(off, length)
	if err != nil {
		return false, err
	}
	found := indexOf(m.Bytes(), pat) >= 0
	if err := m.Close(); err != nil {
		return false, err
	}
	return found, nil
}

// indexOf returns the first offset of pat in buf, or -1. After a failed
// verification the scan resumes one byte past the candidate, so overlapping
// occurrences are not skipped.
func indexOf(buf, pat []byte) int {
	n := len(pat)
	if n == 0 || len(buf) < n {
		return -1
	}
	first, rest := pat[0], pat[1:]
	last := len(buf) - n
	for i := 0; i <= last; i++ {
		j := bytes.IndexByte(buf[i:last+1], first)
		if j < 0 {
			return -1
		}
		i += j
		if bytes.Equal(buf[i+1:i+n], rest) {
			return i
		}
	}
	return -1
}

// FindPattern returns the files under root, recursively, that contain
// pattern. Files ending in excludeExt are not searched. A file that cannot
// be read is logged and treated as not matching. Results are sorted.
func (s *Scanner) FindPattern(ctx context.Context, root, pattern string, enc encoding.Encoding, excludeExt string) ([]string, error) {
	if root == "" || pattern == "" || enc == nil {
		return nil, fmt.Errorf("%w: root, pattern and charset are required", apperrors.ErrInvalidArgument)
	}
	pat, err := charset.EncodeFragment(enc, pattern)
	if err != nil {
		return nil, nil
	}
	paths, err := discovery.ListFiles(ctx, root, true, excludeExt)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		matches []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := s.searchBytes(path, pat)
			if err != nil {
				s.logger.Warn("scan failed", "path", path, "error", err)
				return nil
			}
			if found {
				mu.Lock()
				matches = append(matches, path)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pattern search cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pattern search cancelled: %w", err)
	}
	sort.Strings(matches)
	s.logger.Debug("pattern search complete", "root", root, "files", len(paths), "matches", len(matches))
	return matches, nil
}

func roundUp(n, multiple int) int {
	return (n + multiple - 1) / multiple * multiple
}
