// Package validator decides whether a file looks like text in a given
// charset. Files that fail are skipped by the indexer and never reported as
// errors.
package validator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/bytematch"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
)

// SampleSize is the number of leading bytes inspected per file.
const SampleSize = 1000

// ValidationError holds per-check failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidateSample checks that sample decodes cleanly under enc and contains
// at least one newline. A multi-byte UTF-8 sequence cut off by the sample
// boundary is not held against it.
func ValidateSample(sample []byte, enc encoding.Encoding) error {
	errs := make(map[string]string)
	if !charset.Valid(enc, charset.TrimIncomplete(enc, sample)) {
		errs["charset"] = fmt.Sprintf("sample does not decode as %s", charset.Name(enc))
	}
	if !bytematch.Contains(sample, charset.Newline(enc)) {
		errs["newline"] = "sample has no line break"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateFile reads up to SampleSize bytes of path and reports whether they
// pass ValidateSample. Unreadable files are invalid.
func ValidateFile(path string, enc encoding.Encoding) bool {
	sample, err := readSample(path, SampleSize)
	if err != nil {
		slog.Debug("could not sample file", "path", path, "error", err)
		return false
	}
	if err := ValidateSample(sample, enc); err != nil {
		slog.Debug("file rejected", "path", path, "reason", err)
		return false
	}
	return true
}

func readSample(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
