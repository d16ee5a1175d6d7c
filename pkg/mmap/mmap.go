// Package mmap provides read-only memory mappings of whole files or of
// windows within a file. Every mapping is released deterministically by
// Close; nothing relies on garbage collection to unmap memory, so callers can
// search a file repeatedly without leaking mappings or file locks.
package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned when a closed mapping or file is used.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidOffset is returned for negative or unaligned offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
	// ErrOutOfBounds is returned when a window extends past the file end.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
)

// Mapping is a read-only view of a file region.
type Mapping struct {
	data   []byte
	closed atomic.Bool
}

// Bytes returns the mapped bytes. The slice is invalid after Close.
func (m *Mapping) Bytes() []byte {
	if m == nil || m.closed.Load() {
		return nil
	}
	return m.data
}

// Len returns the mapped length in bytes.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.data)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the region. It is idempotent.
func (m *Mapping) Close() error {
	if m == nil || m.closed.Swap(true) {
		return nil
	}
	data := m.data
	m.data = nil
	if len(data) == 0 {
		return nil
	}
	return munmap(data)
}

// File is an open file from which windows can be mapped one at a time.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens path for windowed mapping.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, size: fi.Size()}, nil
}

// Size returns the file size in bytes.
func (f *File) Size() int64 {
	return f.size
}

// Map maps length bytes starting at offset. The offset must be a multiple of
// Granularity.
func (f *File) Map(offset int64, length int) (*Mapping, error) {
	if f.f == nil {
		return nil, ErrClosed
	}
	if offset < 0 || offset%int64(Granularity()) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}
	if length < 0 || offset+int64(length) > f.size {
		return nil, fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfBounds, offset, length, f.size)
	}
	if length == 0 {
		return &Mapping{}, nil
	}
	data, err := mmap(f.f, offset, length)
	if err != nil {
		return nil, fmt.Errorf("mapping %s at %d: %w", f.f.Name(), offset, err)
	}
	return &Mapping{data: data}, nil
}

// Close closes the underlying file. Mappings already returned by Map stay
// valid until they are closed themselves.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// Open maps the whole file at path. An empty file yields an empty mapping.
func Open(path string) (*Mapping, error) {
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if f.size > int64(maxInt) {
		return nil, fmt.Errorf("%w: %d bytes", ErrOutOfBounds, f.size)
	}
	return f.Map(0, int(f.size))
}

const maxInt = int(^uint(0) >> 1)
