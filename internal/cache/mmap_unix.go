//go:build darwin || linux

package cache

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapData creates a read-only memory map over the file at path. The
// returned cleanup releases the mapping. A missing or empty file maps to a
// nil slice with a no-op cleanup.
func mapData(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, func() error { return nil }, nil
		}
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return nil, func() error { return nil }, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	// The mapping stays valid after the descriptor is closed.
	if err := f.Close(); err != nil {
		unix.Munmap(data)
		return nil, nil, err
	}

	cleanup := func() error {
		return unix.Munmap(data)
	}
	return data, cleanup, nil
}
