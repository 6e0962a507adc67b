package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ConnerAdamsMaine/PTree/internal/derrors"
)

// Index header layout: 4-byte magic, u16 version, u16 flags, then a
// JSON-encoded Index payload running to EOF. The index is small and always
// fully materialised; the data file next to it is the one that grows.
var indexMagic = [4]byte{'P', 'T', 'R', 'I'}

const indexVersion uint16 = 1

const headerSize = 8

// JournalState tracks the change-journal position persisted between runs.
// Zero value means no journal has been observed yet.
type JournalState struct {
	JournalID   uint64    `json:"journal_id"`
	LastUSN     int64     `json:"last_usn"`
	Drive       string    `json:"drive_letter"`
	LastRead    time.Time `json:"last_read"`
	ChangeCount uint64    `json:"change_count"`
}

// Index is the header/directory of the persistent store: path → byte offset
// into the data file, plus scan bookkeeping.
type Index struct {
	Offsets         map[string]uint64 `json:"offsets"`
	Root            string            `json:"root"`
	LastScannedRoot string            `json:"last_scanned_root"`
	LastScan        time.Time         `json:"last_scan"`
	SkipStats       map[string]int    `json:"skip_stats"`
	Journal         JournalState      `json:"journal_state"`
}

func newIndex() *Index {
	return &Index{
		Offsets:   make(map[string]uint64),
		SkipStats: make(map[string]int),
	}
}

// loadIndex reads and validates an index file. A missing file yields a fresh
// empty index; a bad magic or version yields FormatMismatch.
func loadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newIndex(), nil
		}
		return nil, err
	}

	if len(data) < headerSize {
		return nil, derrors.NewFormatMismatchError(path, "index file too short for header")
	}
	if !bytes.Equal(data[:4], indexMagic[:]) {
		return nil, derrors.NewFormatMismatchError(path, "index magic mismatch")
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != indexVersion {
		return nil, derrors.NewFormatMismatchError(path, fmt.Sprintf("unsupported index version %d", version))
	}

	idx := newIndex()
	if err := json.Unmarshal(data[headerSize:], idx); err != nil {
		return nil, derrors.NewCorruptError(path, fmt.Sprintf("malformed index payload: %v", err))
	}
	if idx.Offsets == nil {
		idx.Offsets = make(map[string]uint64)
	}
	if idx.SkipStats == nil {
		idx.SkipStats = make(map[string]int)
	}
	return idx, nil
}

// writeIndex writes the index to path via a sibling .tmp file and an atomic
// rename. On failure the previous index file is left untouched.
func writeIndex(idx *Index, path string) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return err
	}

	var header [headerSize]byte
	copy(header[:4], indexMagic[:])
	binary.LittleEndian.PutUint16(header[4:6], indexVersion)
	binary.LittleEndian.PutUint16(header[6:8], 0) // flags, reserved

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// subtreePrefix returns the prefix matching every descendant of path
func subtreePrefix(path string) string {
	return filepath.Clean(path) + string(filepath.Separator)
}
