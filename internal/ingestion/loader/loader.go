// Package loader reads validated files into ingestion chunks.
package loader

import (
	"fmt"
	"os"

	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/fileid"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
)

// ReadChunk validates path under enc and, if it passes, reads the whole
// file into a Chunk with the path's registry ID. A file whose sample is not
// valid text returns (nil, nil); only read failures are errors. Malformed
// bytes past the sample decode to U+FFFD.
func ReadChunk(path string, enc encoding.Encoding, ids *fileid.Registry) (*ingestion.Chunk, error) {
	if !validator.ValidateFile(path, enc) {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	text, err := charset.DecodeLenient(enc, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	id, err := ids.IDFor(path)
	if err != nil {
		return nil, err
	}
	return &ingestion.Chunk{
		Text:   text,
		FileID: id,
		Path:   path,
	}, nil
}
