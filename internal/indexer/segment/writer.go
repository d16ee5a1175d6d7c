// Package segment persists encoded posting lists: the plain, sorted index
// queried by binary search, the deflate-compressed index, and the register of
// compressed index files kept in each index directory.
package segment

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/compress"
)

// WritePlain writes encoded, converted to enc, to path and returns the number
// of bytes written.
func WritePlain(path string, encoded string, enc encoding.Encoding) (int, error) {
	data, err := charset.Encode(enc, encoded)
	if err != nil {
		return 0, fmt.Errorf("encoding plain index: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// WriteCompressed deflates encoded, converted to enc, at the default level,
// writes it to path and records path in the directory's register.
func WriteCompressed(path string, encoded string, enc encoding.Encoding) (int, error) {
	data, err := charset.Encode(enc, encoded)
	if err != nil {
		return 0, fmt.Errorf("encoding compressed index: %w", err)
	}
	compressed, err := compress.Deflate(data, compress.DefaultLevel)
	if err != nil {
		return 0, err
	}
	if err := writeAtomic(path, compressed); err != nil {
		return 0, err
	}
	if _, err := AppendRegister(path); err != nil {
		return 0, err
	}
	return len(compressed), nil
}

// writeAtomic writes data to a uniquely named .tmp sibling of path, syncs
// it, and renames it over path.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+TempSuffix)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	tmpPath := f.Name()
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("setting index file mode: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}
