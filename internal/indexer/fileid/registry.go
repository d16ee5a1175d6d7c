// Package fileid maps file paths to the compact integer IDs stored in the
// index. IDs start at 1, are assigned in first-seen order and are never
// reused or removed.
package fileid

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
)

// Registry is a concurrency-safe, append-only path <-> ID mapping. The zero
// value is not usable; call NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	ids   map[string]int32
	paths []string
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]int32)}
}

// IDFor returns the ID of path, assigning Len()+1 the first time path is
// seen. Lookups of known paths only take the read lock.
func (r *Registry) IDFor(path string) (int32, error) {
	r.mu.RLock()
	id, ok := r.ids[path]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[path]; ok {
		return id, nil
	}
	if len(r.paths) >= math.MaxInt32 {
		return 0, fmt.Errorf("assigning id for %s: %w", path, apperrors.ErrCapacityExceeded)
	}
	r.paths = append(r.paths, path)
	id = int32(len(r.paths))
	r.ids[path] = id
	return id, nil
}

// Path returns the path registered under id.
func (r *Registry) Path(id int32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 1 || int(id) > len(r.paths) {
		return "", false
	}
	return r.paths[id-1], true
}

// Len returns the number of registered paths, which is also the highest ID.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}

// IDs returns every assigned ID in ascending order.
func (r *Registry) IDs() []int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int32, len(r.paths))
	for i := range ids {
		ids[i] = int32(i + 1)
	}
	return ids
}

type snapshot struct {
	Paths []string `json:"paths"`
}

// Save writes the registry as JSON to path. The file is written to a
// uniquely named temporary sibling and renamed into place, so concurrent
// saves never share a temp file.
func (r *Registry) Save(path string) error {
	r.mu.RLock()
	data, err := json.Marshal(snapshot{Paths: r.paths})
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling file ids: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating file id directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file ids: %w", err)
	}
	tmp := f.Name()
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("setting file ids mode: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing file ids: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing file ids: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming file ids: %w", err)
	}
	return nil
}

// Load reads a registry written by Save. Position i of the stored list has
// ID i+1, so IDs survive the round trip.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file ids: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing file ids %s: %w", path, err)
	}
	r := NewRegistry()
	for i, p := range snap.Paths {
		if _, dup := r.ids[p]; dup {
			return nil, fmt.Errorf("parsing file ids %s: duplicate path %q", path, p)
		}
		r.ids[p] = int32(i + 1)
	}
	r.paths = snap.Paths
	return r, nil
}
