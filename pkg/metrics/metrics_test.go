package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FileIndexed()
	m.FileIndexed()
	m.FileSkipped("invalid")
	m.SetPostingListSize(42)
	m.IndexWrite("plain", nil)
	m.IndexWrite("compressed", errors.New("disk full"))
	m.Scan("mmap", "match", 3*time.Millisecond)
	m.Lookup("hit")
	m.CacheHit()
	m.CacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkippedTotal.WithLabelValues("invalid")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.PostingListSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexWritesTotal.WithLabelValues("plain", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexWritesTotal.WithLabelValues("compressed", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("mmap", "match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FileIndexed()
		m.FileSkipped("error")
		m.SetPostingListSize(1)
		m.IndexWrite("plain", nil)
		m.Scan("read", "miss", time.Millisecond)
		m.Lookup("miss")
		m.CacheHit()
		m.CacheMiss()
	})
}
