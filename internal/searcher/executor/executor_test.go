package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/fileid"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/scanner"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	root string
	exec *Executor
	m    *metrics.Metrics
}

func (f fixture) path(name string) string {
	return filepath.Join(f.root, name)
}

func newFixture(t *testing.T, maxResults int) fixture {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.txt": "the quick brown fox\n",
		"b.txt": "quick silver\n",
		"c.txt": "brown bear\nfox trot\n",
		"d.txt": "xquickx\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}

	enc, err := charset.Lookup("UTF-8")
	require.NoError(t, err)
	cfg := config.IndexerConfig{
		DataDir:      t.TempDir(),
		IndexName:    "index",
		IndexFileExt: ".idx",
	}
	m := metrics.New(prometheus.NewRegistry())
	engine := indexer.NewEngine(m)
	ids := fileid.NewRegistry()
	stats, err := consumer.New(engine, ids, enc, 2, m).IndexTree(context.Background(), root, true, cfg.IndexFileExt)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Indexed)
	require.NoError(t, engine.Persist(cfg, enc))
	require.NoError(t, ids.Save(cfg.FileIDsPath()))

	sc := scanner.New(2, scanner.WithMetrics(m))
	exec := New(sc, cfg, config.SearchConfig{Workers: 2, MaxResults: maxResults}, enc, m)
	return fixture{root: root, exec: exec, m: m}
}

func TestIndexedSearch(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	tests := []struct {
		pattern string
		want    []string
	}{
		{"quick", []string{f.path("a.txt"), f.path("b.txt"), f.path("d.txt")}},
		{"fox", []string{f.path("a.txt"), f.path("c.txt")}},
		{"brown fox", []string{f.path("a.txt")}},
		{"ck", []string{f.path("a.txt"), f.path("b.txt"), f.path("d.txt")}},
		{"uick brow", []string{f.path("a.txt")}},
		{"zebra", []string{}},
		{"bearfox", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			res, err := f.exec.IndexedSearch(ctx, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, StrategyIndexed, res.Strategy)
			assert.Equal(t, tt.want, res.Files)
			assert.Equal(t, len(tt.want), res.TotalHits)
		})
	}
}

func TestIndexedSearchMatchesScan(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	for _, pattern := range []string{"q", "qu", "e q", "n fox", "own", "ver", "x", "trot"} {
		indexed, err := f.exec.IndexedSearch(ctx, pattern)
		require.NoError(t, err)
		scanned, err := f.exec.FindPattern(ctx, f.root, pattern)
		require.NoError(t, err)
		assert.Equal(t, scanned.Files, indexed.Files, pattern)
	}
}

func TestIndexedSearchArguments(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.exec.IndexedSearch(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	_, err = f.exec.IndexedSearch(ctx, "brown\nfox")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestMaxResultsTruncates(t *testing.T) {
	f := newFixture(t, 1)
	res, err := f.exec.IndexedSearch(context.Background(), "quick")
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalHits)
	assert.Equal(t, []string{f.path("a.txt")}, res.Files)
	assert.True(t, res.Truncated)
}

func TestLookupTrigram(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	res, err := f.exec.LookupTrigram(ctx, "the")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Len(t, res.Files, 1)
	assert.Equal(t, f.path("a.txt"), res.Files[0].Path)
	assert.Equal(t, []int32{0}, res.Files[0].Positions)

	res, err = f.exec.LookupTrigram(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "x  ", res.Trigram)
	require.True(t, res.Found)
	got := map[string][]int32{}
	for _, hit := range res.Files {
		got[hit.Path] = hit.Positions
	}
	assert.Equal(t, map[string][]int32{
		f.path("a.txt"): {6},
		f.path("d.txt"): {2},
	}, got)

	res, err = f.exec.LookupTrigram(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Files)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.LookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.LookupsTotal.WithLabelValues("miss")))
}

func TestLookupTrigramArguments(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	for _, name := range []string{"", "abcd", "a\n"} {
		_, err := f.exec.LookupTrigram(ctx, name)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, "%q", name)
	}
}

func TestMissingIndex(t *testing.T) {
	enc, err := charset.Lookup("UTF-8")
	require.NoError(t, err)
	cfg := config.IndexerConfig{DataDir: t.TempDir(), IndexName: "index", IndexFileExt: ".idx"}
	exec := New(scanner.New(1), cfg, config.SearchConfig{Workers: 1, MaxResults: 10}, enc, nil)

	_, err = exec.LookupTrigram(context.Background(), "abc")
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
	_, err = exec.IndexedSearch(context.Background(), "abc")
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestReloadPicksUpNewRegistry(t *testing.T) {
	f := newFixture(t, 100)
	_, err := f.exec.IndexedSearch(context.Background(), "quick")
	require.NoError(t, err)

	require.NoError(t, fileid.NewRegistry().Save(f.exec.cfg.FileIDsPath()))
	f.exec.Reload()

	res, err := f.exec.IndexedSearch(context.Background(), "quick")
	require.NoError(t, err)
	assert.Empty(t, res.Files)
}

func TestFindPatternAndFiles(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	res, err := f.exec.FindPattern(ctx, f.root, "brown")
	require.NoError(t, err)
	assert.Equal(t, StrategyScan, res.Strategy)
	assert.Equal(t, f.root, res.Root)
	assert.Equal(t, []string{f.path("a.txt"), f.path("c.txt")}, res.Files)

	res, err = f.exec.FindFiles(ctx, f.root, "[ab].txt")
	require.NoError(t, err)
	assert.Equal(t, StrategyGlob, res.Strategy)
	assert.Equal(t, []string{f.path("a.txt"), f.path("b.txt")}, res.Files)

	_, err = f.exec.FindFiles(ctx, f.root, "[")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
