package consumer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/fileid"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func corpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.txt":           "alpha beta\ngamma\n",
		"b.txt":           "beta gamma delta\n",
		"sub/c.txt":       "epsilon\nzeta\n",
		"noline.txt":      "no newline here",
		"blob.bin":        "\x00\xff\xfe\x01\n",
		"index.plain.idx": "[abc](1)0",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func TestIndexTree(t *testing.T) {
	enc, err := charset.Lookup("UTF-8")
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	engine := indexer.NewEngine(m)
	ids := fileid.NewRegistry()
	ic := New(engine, ids, enc, 4, m)

	stats, err := ic.IndexTree(context.Background(), corpus(t), true, ".idx")
	require.NoError(t, err)

	assert.Equal(t, Stats{Indexed: 3, Skipped: 2}, stats)
	assert.Equal(t, 3, ids.Len())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesIndexedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesSkippedTotal.WithLabelValues("invalid")))
	assert.Equal(t, 15, engine.Size())
	assert.Equal(t, float64(engine.Size()), testutil.ToFloat64(m.PostingListSize))

	tr, ok := engine.Lookup("alp")
	require.True(t, ok)
	require.Len(t, tr.FileRefs, 1)
	path, ok := ids.Path(tr.FileRefs[0].FileID)
	require.True(t, ok)
	assert.Equal(t, "a.txt", filepath.Base(path))
}

func TestIndexPathsCountsFailures(t *testing.T) {
	enc, err := charset.Lookup("UTF-8")
	require.NoError(t, err)
	root := corpus(t)
	ic := New(indexer.NewEngine(nil), fileid.NewRegistry(), enc, 2, nil)

	stats, err := ic.IndexPaths(context.Background(), []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "missing.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped, "an unreadable file fails validation and is skipped")
}

func TestIndexPathsManyFiles(t *testing.T) {
	enc, err := charset.Lookup("UTF-8")
	require.NoError(t, err)
	root := t.TempDir()
	var paths []string
	for i := 0; i < 64; i++ {
		p := filepath.Join(root, fmt.Sprintf("f%02d.txt", i))
		require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf("file number %02d\n", i)), 0o644))
		paths = append(paths, p)
	}
	engine := indexer.NewEngine(nil)
	ic := New(engine, fileid.NewRegistry(), enc, 8, nil)

	stats, err := ic.IndexPaths(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 64, stats.Indexed)

	tr, ok := engine.Lookup("fil")
	require.True(t, ok)
	assert.Len(t, tr.FileRefs, 64)
}

func TestIndexPathsCancelled(t *testing.T) {
	enc, err := charset.Lookup("UTF-8")
	require.NoError(t, err)
	root := corpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ic := New(indexer.NewEngine(nil), fileid.NewRegistry(), enc, 2, nil)
	_, err = ic.IndexPaths(ctx, []string{filepath.Join(root, "a.txt")})
	assert.ErrorIs(t, err, context.Canceled)
}
