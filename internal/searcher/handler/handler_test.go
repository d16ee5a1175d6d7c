package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
)

type stubExecutor struct {
	mu       sync.Mutex
	calls    map[string]int
	reloaded int
	err      error
}

func newStub() *stubExecutor {
	return &stubExecutor{calls: make(map[string]int)}
}

func (s *stubExecutor) record(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[kind]++
	return s.err
}

func (s *stubExecutor) FindPattern(_ context.Context, root, pattern string) (*executor.SearchResult, error) {
	if err := s.record("scan"); err != nil {
		return nil, err
	}
	return &executor.SearchResult{Query: pattern, Root: root, Strategy: executor.StrategyScan, TotalHits: 1, Files: []string{root + "/hit.txt"}}, nil
}

func (s *stubExecutor) IndexedSearch(_ context.Context, pattern string) (*executor.SearchResult, error) {
	if err := s.record("indexed"); err != nil {
		return nil, err
	}
	return &executor.SearchResult{Query: pattern, Strategy: executor.StrategyIndexed, Files: []string{}}, nil
}

func (s *stubExecutor) FindFiles(_ context.Context, root, glob string) (*executor.SearchResult, error) {
	if err := s.record("glob"); err != nil {
		return nil, err
	}
	return &executor.SearchResult{Query: glob, Root: root, Strategy: executor.StrategyGlob, TotalHits: 2, Files: []string{"a", "b"}}, nil
}

func (s *stubExecutor) LookupTrigram(_ context.Context, name string) (*executor.TrigramResult, error) {
	if err := s.record("trigram"); err != nil {
		return nil, err
	}
	return &executor.TrigramResult{Trigram: name, Found: true, Files: []executor.FileHit{{FileID: 1, Path: "a", Positions: []int32{0, 4}}}}, nil
}

func (s *stubExecutor) Reload() {
	s.mu.Lock()
	s.reloaded++
	s.mu.Unlock()
}

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapStore) FlushByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

func serve(h *Handler, method, target string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestSearchUsesDefaultRoot(t *testing.T) {
	h := New(newStub(), nil, "/srv")
	rec := serve(h, http.MethodGet, "/api/v1/search?q=hello+world", h.Search)
	require.Equal(t, http.StatusOK, rec.Code)

	var res executor.SearchResult
	decode(t, rec, &res)
	assert.Equal(t, "hello world", res.Query)
	assert.Equal(t, "/srv", res.Root)
	assert.Equal(t, []string{"/srv/hit.txt"}, res.Files)

	rec = serve(h, http.MethodGet, "/api/v1/search?q=x&root=docs", h.Search)
	decode(t, rec, &res)
	assert.Equal(t, "/srv/docs", res.Root)

	rec = serve(h, http.MethodGet, "/api/v1/search?q=x&root=/srv/docs/../logs", h.Search)
	decode(t, rec, &res)
	assert.Equal(t, "/srv/logs", res.Root)
}

func TestRootOutsideDefaultRootRejected(t *testing.T) {
	stub := newStub()
	h := New(stub, nil, "/srv")
	for _, root := range []string{"/", "/tmp", "/srv2", "..", "docs/../../etc"} {
		for target, fn := range map[string]http.HandlerFunc{
			"/api/v1/search?q=x&root=" + url.QueryEscape(root):   h.Search,
			"/api/v1/files?glob=*&root=" + url.QueryEscape(root): h.Files,
		} {
			rec := serve(h, http.MethodGet, target, fn)
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
			var body map[string]string
			decode(t, rec, &body)
			assert.Contains(t, body["error"], "outside the search root", target)
		}
	}
	assert.Empty(t, stub.calls)
}

func TestMissingParameters(t *testing.T) {
	h := New(newStub(), nil, ".")
	for target, fn := range map[string]http.HandlerFunc{
		"/api/v1/search":  h.Search,
		"/api/v1/indexed": h.Indexed,
		"/api/v1/files":   h.Files,
		"/api/v1/trigram": h.Trigram,
	} {
		rec := serve(h, http.MethodGet, target, fn)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		var body map[string]string
		decode(t, rec, &body)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	stub := newStub()
	h := New(stub, nil, ".")

	stub.err = fmt.Errorf("opening: %w", apperrors.ErrIndexNotFound)
	rec := serve(h, http.MethodGet, "/api/v1/indexed?q=abc", h.Indexed)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Contains(t, body["error"], "index file not found")

	stub.err = fmt.Errorf("%w: trigram too long", apperrors.ErrInvalidArgument)
	rec = serve(h, http.MethodGet, "/api/v1/trigram?t=abcd", h.Trigram)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub.err = fmt.Errorf("disk on fire")
	rec = serve(h, http.MethodGet, "/api/v1/search?q=abc", h.Search)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "scan failed", body["error"])
}

func TestTrigram(t *testing.T) {
	h := New(newStub(), nil, ".")
	rec := serve(h, http.MethodGet, "/api/v1/trigram?t=abc", h.Trigram)
	require.Equal(t, http.StatusOK, rec.Code)

	var res executor.TrigramResult
	decode(t, rec, &res)
	assert.True(t, res.Found)
	assert.Equal(t, []int32{0, 4}, res.Files[0].Positions)
}

func TestCachedResults(t *testing.T) {
	stub := newStub()
	qc := cache.New(&mapStore{data: make(map[string][]byte)}, config.RedisConfig{CacheTTL: time.Minute}, nil)
	h := New(stub, qc, ".")

	for range 3 {
		rec := serve(h, http.MethodGet, "/api/v1/files?glob=*.go", h.Files)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, stub.calls["glob"])

	rec := serve(h, http.MethodGet, "/api/v1/cache/stats", h.CacheStats)
	var stats map[string]any
	decode(t, rec, &stats)
	assert.Equal(t, 2.0, stats["hits"])
	assert.Equal(t, 1.0, stats["misses"])
	assert.Equal(t, "66.7%", stats["hit_rate"])

	rec = serve(h, http.MethodPost, "/api/v1/index/reload", h.Reload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stub.reloaded)

	serve(h, http.MethodGet, "/api/v1/files?glob=*.go", h.Files)
	assert.Equal(t, 2, stub.calls["glob"])
}

func TestCacheDisabled(t *testing.T) {
	h := New(newStub(), nil, ".")

	rec := serve(h, http.MethodGet, "/api/v1/cache/stats", h.CacheStats)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "disabled", body["status"])

	rec = serve(h, http.MethodPost, "/api/v1/cache/invalidate", h.CacheInvalidate)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
