package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/logger"
)

type SearchExecutor interface {
	FindPattern(ctx context.Context, root, pattern string) (*executor.SearchResult, error)
	IndexedSearch(ctx context.Context, pattern string) (*executor.SearchResult, error)
	FindFiles(ctx context.Context, root, glob string) (*executor.SearchResult, error)
	LookupTrigram(ctx context.Context, name string) (*executor.TrigramResult, error)
	Reload()
}

type Handler struct {
	executor    SearchExecutor
	cache       *cache.QueryCache
	defaultRoot string
	logger      *slog.Logger
}

func New(exec SearchExecutor, queryCache *cache.QueryCache, defaultRoot string) *Handler {
	return &Handler{
		executor:    exec,
		cache:       queryCache,
		defaultRoot: defaultRoot,
		logger:      slog.Default().With("component", "search-handler"),
	}
}

// Search scans the files under root for the raw pattern q.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	root, err := h.root(r)
	if err != nil {
		h.fail(r.Context(), w, "invalid root", err)
		return
	}
	h.run(w, r, cache.Key{Kind: executor.StrategyScan, Root: root, Query: query}, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.FindPattern(ctx, root, query)
	})
}

// Indexed answers q from the trigram index.
func (h *Handler) Indexed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	h.run(w, r, cache.Key{Kind: executor.StrategyIndexed, Query: query}, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.IndexedSearch(ctx, query)
	})
}

// Files lists the paths under root whose name matches glob.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	glob := r.URL.Query().Get("glob")
	if glob == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'glob' is required")
		return
	}
	root, err := h.root(r)
	if err != nil {
		h.fail(r.Context(), w, "invalid root", err)
		return
	}
	h.run(w, r, cache.Key{Kind: executor.StrategyGlob, Root: root, Query: glob}, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.FindFiles(ctx, root, glob)
	})
}

// Trigram returns the index record of one trigram.
func (h *Handler) Trigram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.URL.Query().Get("t")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 't' is required")
		return
	}
	result, err := h.executor.LookupTrigram(ctx, name)
	if err != nil {
		h.fail(ctx, w, "trigram lookup failed", err)
		return
	}
	logger.FromContext(ctx).Info("trigram lookup", "trigram", result.Trigram, "found", result.Found, "files", len(result.Files))
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) run(
	w http.ResponseWriter,
	r *http.Request,
	key cache.Key,
	compute func(context.Context) (*executor.SearchResult, error),
) {
	start := time.Now()
	ctx := r.Context()

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return compute(ctx)
		})
	} else {
		result, err = compute(ctx)
	}
	if err != nil {
		h.fail(ctx, w, key.Kind+" failed", err)
		return
	}

	logger.FromContext(ctx).Info("search completed",
		"kind", key.Kind,
		"query", key.Query,
		"root", key.Root,
		"total_hits", result.TotalHits,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// Reload makes the next indexed request read the index files from disk
// again and drops cached results computed from the old ones.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	h.executor.Reload()
	if h.cache != nil {
		if _, err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// root resolves the root parameter. A relative root is taken from the
// default root, and the result must not leave it.
func (h *Handler) root(r *http.Request) (string, error) {
	param := r.URL.Query().Get("root")
	if param == "" {
		return h.defaultRoot, nil
	}
	base, err := filepath.Abs(h.defaultRoot)
	if err != nil {
		return "", fmt.Errorf("resolving default root: %w", err)
	}
	root := param
	if !filepath.IsAbs(root) {
		root = filepath.Join(base, root)
	}
	root = filepath.Clean(root)
	rel, err := filepath.Rel(base, root)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: root %q is outside the search root", apperrors.ErrInvalidArgument, param)
	}
	return root, nil
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	logger.FromContext(ctx).Error(msg, "error", err, "status", status)
	if status >= http.StatusInternalServerError {
		h.writeError(w, status, msg)
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
