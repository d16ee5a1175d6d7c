package fileid

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDForIsIdempotent(t *testing.T) {
	r := NewRegistry()

	a, err := r.IDFor("/tmp/a.txt")
	require.NoError(t, err)
	b, err := r.IDFor("/tmp/b.txt")
	require.NoError(t, err)
	again, err := r.IDFor("/tmp/a.txt")
	require.NoError(t, err)

	assert.Equal(t, int32(1), a)
	assert.Equal(t, int32(2), b)
	assert.Equal(t, a, again)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []int32{1, 2}, r.IDs())
}

func TestPath(t *testing.T) {
	r := NewRegistry()
	id, err := r.IDFor("/srv/x.go")
	require.NoError(t, err)

	p, ok := r.Path(id)
	assert.True(t, ok)
	assert.Equal(t, "/srv/x.go", p)

	for _, missing := range []int32{0, -1, 2} {
		_, ok := r.Path(missing)
		assert.False(t, ok, missing)
	}
}

func TestConcurrentIDFor(t *testing.T) {
	r := NewRegistry()
	const paths = 200
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < paths; i++ {
				_, err := r.IDFor(fmt.Sprintf("/f/%d", i))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, paths, r.Len())
	seen := make(map[int32]bool)
	for i := 0; i < paths; i++ {
		id, err := r.IDFor(fmt.Sprintf("/f/%d", i))
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
		assert.True(t, id >= 1 && id <= paths)
	}
}

func TestSaveLoad(t *testing.T) {
	r := NewRegistry()
	for _, p := range []string{"/a", "/b", "/c"} {
		_, err := r.IDFor(p)
		require.NoError(t, err)
	}
	path := filepath.Join(t.TempDir(), "nested", "index.fids.idx")
	require.NoError(t, r.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	p, ok := loaded.Path(2)
	assert.True(t, ok)
	assert.Equal(t, "/b", p)

	next, err := loaded.IDFor("/d")
	require.NoError(t, err)
	assert.Equal(t, int32(4), next)
}

func TestConcurrentSave(t *testing.T) {
	r := NewRegistry()
	for i := range 50 {
		_, err := r.IDFor(fmt.Sprintf("/data/file-%d.txt", i))
		require.NoError(t, err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "index.fids.idx")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Save(path)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, loaded.Len())
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	dup := filepath.Join(dir, "dup")
	require.NoError(t, os.WriteFile(dup, []byte(`{"paths":["/a","/a"]}`), 0o644))
	_, err = Load(dup)
	assert.Error(t, err)
}
