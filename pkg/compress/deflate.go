// Package compress wraps raw deflate streams (no zlib or gzip framing) used
// for compressed index files.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// DefaultLevel is the compression level used for index files.
const DefaultLevel = flate.DefaultCompression

// Deflate compresses data at the given level into a raw deflate stream.
func Deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 64)
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflating: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing deflate stream: %w", err)
	}
	return buf.Bytes(), nil
}

// Inflate decompresses a raw deflate stream.
func Inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflating: %w", err)
	}
	return out, nil
}
