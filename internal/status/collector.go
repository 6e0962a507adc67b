// Package status collects and renders cache health information.
package status

import (
	"os"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
	"github.com/ConnerAdamsMaine/PTree/pkg/version"
)

// Collect gathers status data from an open store.
func Collect(store *cache.Store) *Data {
	d := &Data{
		Version:         version.Version,
		IndexPath:       store.IndexPath(),
		DataPath:        store.DataPath(),
		Entries:         store.Len(),
		Root:            store.Root(),
		LastScannedRoot: store.LastScannedRoot(),
		LastScan:        store.LastScan(),
		Journal:         store.Journal(),
		SkipStats:       store.SkipStats(),
		SkipReport:      store.SkipReport(),
	}

	if info, err := os.Stat(d.IndexPath); err == nil {
		d.IndexSize = info.Size()
	}
	if info, err := os.Stat(d.DataPath); err == nil {
		d.DataSize = info.Size()
	}
	return d
}
