package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/compress"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
)

// ReadPlain returns the encoded posting list stored at path.
func ReadPlain(path string, enc encoding.Encoding) (string, error) {
	data, err := readIndexFile(path)
	if err != nil {
		return "", err
	}
	text, err := charset.Decode(enc, data)
	if err != nil {
		return "", fmt.Errorf("decoding plain index %s: %w", path, err)
	}
	return text, nil
}

// ReadCompressed inflates the index at path and returns its encoded posting
// list.
func ReadCompressed(path string, enc encoding.Encoding) (string, error) {
	data, err := readIndexFile(path)
	if err != nil {
		return "", err
	}
	raw, err := compress.Inflate(data)
	if err != nil {
		return "", fmt.Errorf("inflating index %s: %w", path, err)
	}
	text, err := charset.Decode(enc, raw)
	if err != nil {
		return "", fmt.Errorf("decoding compressed index %s: %w", path, err)
	}
	return text, nil
}

func readIndexFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return data, nil
}
