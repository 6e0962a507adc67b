package status

import (
	"time"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
)

// Data aggregates everything the status view renders.
type Data struct {
	Version string

	IndexPath string
	DataPath  string
	IndexSize int64
	DataSize  int64

	Entries         int
	Root            string
	LastScannedRoot string
	LastScan        time.Time

	Journal   cache.JournalState
	SkipStats map[string]int

	SkipReport string
}

// HasJournal reports whether a change journal has ever been observed.
func (d *Data) HasJournal() bool {
	return d.Journal.JournalID != 0
}
