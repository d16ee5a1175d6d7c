// Package binsearch locates trigram records in a plain index file by binary
// search over a read-only memory mapping.
//
// Records are newline-terminated and variable length, so every probe is
// realigned backwards to the start of the record containing it. The bounds
// [start, end) always sit on record starts and shrink on every probe.
package binsearch

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/bytematch"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/mmap"
)

// MaxFileSize is the largest plain index that can be searched.
const MaxFileSize = math.MaxInt32 - 1

// Searcher holds one mapping of a plain index open for repeated lookups.
type Searcher struct {
	path    string
	enc     encoding.Encoding
	newline []byte
	mapping *mmap.Mapping
}

// Open maps the plain index at path, whose text is encoded with enc.
func Open(path string, enc encoding.Encoding) (*Searcher, error) {
	if path == "" || enc == nil {
		return nil, fmt.Errorf("%w: index path and charset are required", apperrors.ErrInvalidArgument)
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat index: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", apperrors.ErrFileTooBig, path, info.Size())
	}
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping index: %w", err)
	}
	return &Searcher{
		path:    path,
		enc:     enc,
		newline: charset.Newline(enc),
		mapping: m,
	}, nil
}

// Close unmaps the index.
func (s *Searcher) Close() error {
	return s.mapping.Close()
}

// Locate returns the byte offset of the first record whose leading bytes
// equal pattern, encoded with the searcher's charset.
func (s *Searcher) Locate(pattern string) (int64, bool, error) {
	pat, err := s.encode(pattern)
	if err != nil {
		return 0, false, err
	}
	off, ok := s.search(pat)
	return int64(off), ok, nil
}

// LocateLine is Locate returning the whole matching record without its line
// break.
func (s *Searcher) LocateLine(pattern string) (string, bool, error) {
	pat, err := s.encode(pattern)
	if err != nil {
		return "", false, err
	}
	off, ok := s.search(pat)
	if !ok {
		return "", false, nil
	}
	data := s.mapping.Bytes()
	line := data[off:]
	if n := bytematch.IndexOf(line, s.newline); n != bytematch.NotFound {
		line = line[:n]
	}
	text, err := charset.Decode(s.enc, line)
	if err != nil {
		return "", false, fmt.Errorf("decoding record at %d in %s: %w", off, s.path, err)
	}
	return text, true, nil
}

// Lookup finds the record for trigram name and decodes it.
func (s *Searcher) Lookup(name string) (index.Trigram, bool, error) {
	line, ok, err := s.LocateLine("[" + name + "]")
	if err != nil || !ok {
		return index.Trigram{}, false, err
	}
	t, err := index.DecodeRecord(line)
	if err != nil {
		return index.Trigram{}, false, fmt.Errorf("record for %q in %s: %w", name, s.path, err)
	}
	return t, true, nil
}

func (s *Searcher) encode(pattern string) ([]byte, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", apperrors.ErrInvalidArgument)
	}
	pat, err := charset.EncodeFragment(s.enc, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}
	return pat, nil
}

func (s *Searcher) search(pat []byte) (int, bool) {
	data := s.mapping.Bytes()
	start, end := 0, len(data)
	for start < end {
		mid := start + (end-start)/2
		rec := s.recordStart(data, start, mid)
		probe := data[rec:min(rec+len(pat), len(data))]
		switch cmp := bytes.Compare(probe, pat); {
		case cmp == 0:
			return rec, true
		case cmp < 0:
			start = s.nextRecord(data, rec, end)
		default:
			end = rec
		}
	}
	return 0, false
}

// recordStart returns the start of the record containing mid, never before
// start.
func (s *Searcher) recordStart(data []byte, start, mid int) int {
	if i := bytes.LastIndex(data[start:mid], s.newline); i >= 0 {
		return start + i + len(s.newline)
	}
	return start
}

// nextRecord returns the start of the record after rec, or end.
func (s *Searcher) nextRecord(data []byte, rec, end int) int {
	if i := bytematch.IndexOf(data[rec:end], s.newline); i != bytematch.NotFound {
		return rec + i + len(s.newline)
	}
	return end
}

// Locate opens path, looks up pattern and unmaps the file again.
func Locate(path, pattern string, enc encoding.Encoding) (int64, bool, error) {
	s, err := Open(path, enc)
	if err != nil {
		return 0, false, err
	}
	defer s.Close()
	return s.Locate(pattern)
}

// LocateLine opens path, returns the record matching pattern and unmaps the
// file again.
func LocateLine(path, pattern string, enc encoding.Encoding) (string, bool, error) {
	s, err := Open(path, enc)
	if err != nil {
		return "", false, err
	}
	defer s.Close()
	return s.LocateLine(pattern)
}
