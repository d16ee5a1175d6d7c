//go:build !windows

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// Granularity is the alignment required for mapping offsets.
func Granularity() int {
	return os.Getpagesize()
}

func mmap(f *os.File, offset int64, length int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), offset, length, unix.PROT_READ, unix.MAP_SHARED)
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}
