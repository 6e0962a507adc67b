//go:build !darwin && !linux

package cache

import "os"

// mapData falls back to reading the whole data file on platforms without a
// memory-map binding. Access semantics are identical; only locality differs.
func mapData(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, func() error { return nil }, nil
		}
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
