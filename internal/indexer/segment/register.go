package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
)

// RegisterName is the file, one per index directory, listing the absolute
// paths of every compressed index written there.
const RegisterName = "index.regf"

// TempSuffix ends the names of index files that are still being written.
const TempSuffix = ".tmp"

// Register layout, little endian:
//
//	magic u32 | version u32 | count u32 | count x (len u32, path bytes) | crc32 u32
//
// The checksum covers everything before it.
const (
	RegisterMagic   uint32 = 0x54535247
	RegisterVersion uint32 = 1
	registerHeader         = 12
	registerFooter         = 4
)

var registerMu sync.Mutex

// RegisterPath returns the register file for the directory holding indexPath.
func RegisterPath(indexPath string) string {
	return filepath.Join(filepath.Dir(indexPath), RegisterName)
}

// ReadRegister returns the paths listed in the register at path. A missing
// register is empty; an unreadable one wraps ErrRegisterCorrupt.
func ReadRegister(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading register %s: %w", path, err)
	}
	paths, err := decodeRegister(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrRegisterCorrupt, path, err)
	}
	return paths, nil
}

// AppendRegister adds the absolute form of indexPath to its directory's
// register. It reports whether the path was new.
func AppendRegister(indexPath string) (bool, error) {
	abs, err := filepath.Abs(indexPath)
	if err != nil {
		return false, fmt.Errorf("resolving index path: %w", err)
	}
	regPath := RegisterPath(abs)

	registerMu.Lock()
	defer registerMu.Unlock()

	paths, err := ReadRegister(regPath)
	if err != nil {
		return false, err
	}
	if slices.Contains(paths, abs) {
		return false, nil
	}
	paths = append(paths, abs)
	if err := writeAtomic(regPath, encodeRegister(paths)); err != nil {
		return false, fmt.Errorf("writing register: %w", err)
	}
	return true, nil
}

func encodeRegister(paths []string) []byte {
	size := registerHeader + registerFooter
	for _, p := range paths {
		size += 4 + len(p)
	}
	buf := make([]byte, registerHeader, size)
	binary.LittleEndian.PutUint32(buf[0:4], RegisterMagic)
	binary.LittleEndian.PutUint32(buf[4:8], RegisterVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(paths)))
	for _, p := range paths {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

func decodeRegister(data []byte) ([]string, error) {
	if len(data) < registerHeader+registerFooter {
		return nil, fmt.Errorf("truncated: %d bytes", len(data))
	}
	body := data[:len(data)-registerFooter]
	want := binary.LittleEndian.Uint32(data[len(data)-registerFooter:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("checksum mismatch: %08x != %08x", got, want)
	}
	if magic := binary.LittleEndian.Uint32(body[0:4]); magic != RegisterMagic {
		return nil, fmt.Errorf("bad magic bytes %x", magic)
	}
	if v := binary.LittleEndian.Uint32(body[4:8]); v != RegisterVersion {
		return nil, fmt.Errorf("unsupported version %d", v)
	}
	count := binary.LittleEndian.Uint32(body[8:12])
	rest := body[registerHeader:]
	paths := make([]string, 0, min(int(count), len(rest)/4))
	for i := uint32(0); i < count; i++ {
		if len(rest) < 4 {
			return nil, fmt.Errorf("entry %d: truncated length", i)
		}
		n := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint64(n) > uint64(len(rest)) {
			return nil, fmt.Errorf("entry %d: length %d exceeds remaining %d bytes", i, n, len(rest))
		}
		paths = append(paths, string(rest[:n]))
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(rest))
	}
	return paths, nil
}
