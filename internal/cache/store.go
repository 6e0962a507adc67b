// Package cache implements the persistent directory-tree cache: a small,
// fully-materialised index file next to an append-only, memory-mapped data
// file of length-prefixed entries. Single-entry access after open costs one
// offset lookup and one bounded decode.
package cache

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ConnerAdamsMaine/PTree/internal/derrors"
)

// DefaultFlushThreshold is the number of buffered entries that triggers a
// drain into the in-memory overlay.
const DefaultFlushThreshold = 5000

// Store manages the on-disk cache pair and its in-memory state. A single
// process owns the files at a time; concurrent readers and one writer within
// that process are coordinated by the store's lock.
type Store struct {
	mu sync.RWMutex

	indexPath string
	dataPath  string

	index *Index

	// Memory map over the data file, nil when no data file exists yet.
	data  []byte
	unmap func() error

	// Entries accepted but not yet appended to the data file. Get consults
	// this overlay before the map so readers always see committed state.
	dirty map[string]*Entry

	// Staged writes, drained into dirty when the threshold is hit.
	pending        []*Entry
	flushThreshold int
}

// Open loads the store rooted at indexPath/dataPath, creating the parent
// directory when absent. A missing pair yields an empty store; a malformed
// header yields FormatMismatch; an index whose offsets point past the data
// file yields Corrupt. A torn final frame is dropped from the index.
func Open(indexPath, dataPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, err
	}

	idx, err := loadIndex(indexPath)
	if err != nil {
		return nil, err
	}

	data, unmap, err := mapData(dataPath)
	if err != nil {
		return nil, err
	}

	if len(idx.Offsets) > 0 && data == nil {
		unmap()
		return nil, derrors.NewCorruptError(dataPath, "index references entries but data file is missing")
	}

	s := &Store{
		indexPath:      indexPath,
		dataPath:       dataPath,
		index:          idx,
		data:           data,
		unmap:          unmap,
		dirty:          make(map[string]*Entry),
		flushThreshold: DefaultFlushThreshold,
	}

	if err := s.pruneTorn(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// pruneTorn drops index entries whose frame does not validate against the
// mapped data. A frame that starts inside the file but runs past its end is
// the torn-tail case and is tolerated; an offset at or past the end of the
// file means the index and data disagree.
func (s *Store) pruneTorn() error {
	for path, off := range s.index.Offsets {
		if off >= uint64(len(s.data)) {
			return derrors.NewCorruptError(s.dataPath,
				fmt.Sprintf("index offset %d past end of %d-byte data file", off, len(s.data)))
		}
		if _, err := frameAt(s.data, off); err != nil {
			delete(s.index.Offsets, path)
		}
	}
	return nil
}

// frameAt validates and returns the payload of the frame at off.
func frameAt(data []byte, off uint64) ([]byte, error) {
	if off+4 > uint64(len(data)) {
		return nil, io.ErrUnexpectedEOF
	}
	n := uint64(binary.LittleEndian.Uint32(data[off : off+4]))
	if off+4+n > uint64(len(data)) {
		return nil, io.ErrUnexpectedEOF
	}
	return data[off+4 : off+4+n], nil
}

// Close releases the memory map. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmap == nil {
		return nil
	}
	err := s.unmap()
	s.unmap = nil
	s.data = nil
	return err
}

// Get returns the entry stored for path, or nil when absent. Reads hit the
// in-memory overlay first, then decode from the mapped data file.
func (s *Store) Get(path string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(path)
}

func (s *Store) getLocked(path string) (*Entry, error) {
	for i := len(s.pending) - 1; i >= 0; i-- {
		if s.pending[i].Path == path {
			return s.pending[i].Clone(), nil
		}
	}
	if e, ok := s.dirty[path]; ok {
		return e.Clone(), nil
	}

	off, ok := s.index.Offsets[path]
	if !ok {
		return nil, nil
	}
	payload, err := frameAt(s.data, off)
	if err != nil {
		return nil, derrors.NewTruncatedError(s.dataPath, off)
	}
	return decodeEntry(payload)
}

// GetBatch returns one result per requested path, nil for absent paths.
func (s *Store) GetBatch(paths []string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, len(paths))
	for i, p := range paths {
		e, err := s.getLocked(p)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// GetAll materialises every entry. On-disk entries are decoded in ascending
// offset order for locality, then the in-memory overlay is applied on top.
func (s *Store) GetAll() (map[string]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type slot struct {
		path string
		off  uint64
	}
	slots := make([]slot, 0, len(s.index.Offsets))
	for p, off := range s.index.Offsets {
		slots = append(slots, slot{p, off})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].off < slots[j].off })

	entries := make(map[string]*Entry, len(slots)+len(s.dirty))
	for _, sl := range slots {
		payload, err := frameAt(s.data, sl.off)
		if err != nil {
			return nil, derrors.NewTruncatedError(s.dataPath, sl.off)
		}
		e, err := decodeEntry(payload)
		if err != nil {
			return nil, err
		}
		entries[sl.path] = e
	}
	for p, e := range s.dirty {
		entries[p] = e.Clone()
	}
	for _, e := range s.pending {
		entries[e.Path] = e.Clone()
	}
	return entries, nil
}

// BufferEntry stages an entry for a later flush. Crossing the flush
// threshold drains the staging buffer into the overlay.
func (s *Store) BufferEntry(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, e.Clone())
	if len(s.pending) >= s.flushThreshold {
		s.flushLocked()
	}
}

// Flush drains all staged entries into the in-memory overlay.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Store) flushLocked() {
	for _, e := range s.pending {
		s.dirty[e.Path] = e
	}
	s.pending = s.pending[:0]
}

// SetFlushThreshold overrides the staging buffer size.
func (s *Store) SetFlushThreshold(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.flushThreshold = n
	}
}

// Append writes one entry to the data file immediately, fsyncs, records its
// offset in the index and refreshes the map. Returns the entry's offset.
func (s *Store) Append(e *Entry) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offsets, err := s.appendLocked([]*Entry{e})
	if err != nil {
		return 0, err
	}
	if err := s.remapLocked(); err != nil {
		return 0, err
	}
	return offsets[0], nil
}

// appendLocked writes entries to the data file in order and records their
// offsets. The caller remaps afterwards.
func (s *Store) appendLocked(entries []*Entry) ([]uint64, error) {
	f, err := os.OpenFile(s.dataPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	offsets := make([]uint64, 0, len(entries))
	var lenBuf [4]byte
	for _, e := range entries {
		payload, err := encodeEntry(e)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return nil, err
		}
		if _, err := f.Write(payload); err != nil {
			return nil, err
		}
		offsets = append(offsets, uint64(pos))
		s.index.Offsets[e.Path] = uint64(pos)
		pos += int64(4 + len(payload))
	}

	if err := f.Sync(); err != nil {
		return nil, err
	}
	return offsets, nil
}

func (s *Store) remapLocked() error {
	if s.unmap != nil {
		if err := s.unmap(); err != nil {
			return err
		}
	}
	data, unmap, err := mapData(s.dataPath)
	if err != nil {
		return err
	}
	s.data = data
	s.unmap = unmap
	return nil
}

// SaveIndex persists the index alone, atomically.
func (s *Store) SaveIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeIndex(s.index, s.indexPath)
}

// Save flushes staged entries, appends the overlay to the data file and
// persists the index. The data file only grows; Compact rewrites it.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushLocked()

	if len(s.dirty) > 0 {
		entries := make([]*Entry, 0, len(s.dirty))
		for _, e := range s.dirty {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

		if _, err := s.appendLocked(entries); err != nil {
			return err
		}
		if err := s.remapLocked(); err != nil {
			return err
		}
		s.dirty = make(map[string]*Entry)
	}

	return writeIndex(s.index, s.indexPath)
}

// Compact rewrites the data file from the live entry set, dropping frames
// orphaned by RemoveSubtree or superseded by later appends, then persists
// the index.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushLocked()

	live := make(map[string]*Entry, len(s.index.Offsets)+len(s.dirty))
	for p, off := range s.index.Offsets {
		if _, shadowed := s.dirty[p]; shadowed {
			continue
		}
		payload, err := frameAt(s.data, off)
		if err != nil {
			return derrors.NewTruncatedError(s.dataPath, off)
		}
		e, err := decodeEntry(payload)
		if err != nil {
			return err
		}
		live[p] = e
	}
	for p, e := range s.dirty {
		live[p] = e
	}

	paths := make([]string, 0, len(live))
	for p := range live {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	tmpPath := s.dataPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	offsets := make(map[string]uint64, len(live))
	var pos uint64
	var lenBuf [4]byte
	for _, p := range paths {
		payload, err := encodeEntry(live[p])
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return err
		}
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return err
		}
		if _, err := f.Write(payload); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return err
		}
		offsets[p] = pos
		pos += uint64(4 + len(payload))
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
	if err := os.Rename(tmpPath, s.dataPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.index.Offsets = offsets
	s.dirty = make(map[string]*Entry)
	if err := s.remapLocked(); err != nil {
		return err
	}
	return writeIndex(s.index, s.indexPath)
}

// RemoveSubtree removes path and every key under it from the live entry
// set. The data file is not touched; orphaned frames are reclaimed by the
// next Compact.
func (s *Store) RemoveSubtree(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clean := filepath.Clean(path)
	prefix := subtreePrefix(clean)

	match := func(p string) bool {
		return p == clean || strings.HasPrefix(p, prefix)
	}

	for p := range s.index.Offsets {
		if match(p) {
			delete(s.index.Offsets, p)
		}
	}
	for p := range s.dirty {
		if match(p) {
			delete(s.dirty, p)
		}
	}
	kept := s.pending[:0]
	for _, e := range s.pending {
		if !match(e.Path) {
			kept = append(kept, e)
		}
	}
	s.pending = kept
}

// Has reports whether path is present in the live entry set.
func (s *Store) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.dirty[path]; ok {
		return true
	}
	for _, e := range s.pending {
		if e.Path == path {
			return true
		}
	}
	_, ok := s.index.Offsets[path]
	return ok
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.index.Offsets)
	for p := range s.dirty {
		if _, onDisk := s.index.Offsets[p]; !onDisk {
			n++
		}
	}
	for _, e := range s.pending {
		_, onDisk := s.index.Offsets[e.Path]
		_, flushed := s.dirty[e.Path]
		if !onDisk && !flushed {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the store holds no entries at all.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index.Offsets) == 0 && len(s.dirty) == 0 && len(s.pending) == 0
}

// Paths returns every live entry path, unordered.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.index.Offsets))
	out := make([]string, 0, len(s.index.Offsets)+len(s.dirty))
	for p := range s.index.Offsets {
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for p := range s.dirty {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, e := range s.pending {
		if _, ok := seen[e.Path]; !ok {
			seen[e.Path] = struct{}{}
			out = append(out, e.Path)
		}
	}
	return out
}

// Root returns the absolute path the cache was built for.
func (s *Store) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Root
}

// SetRoot records the root the cache is built for.
func (s *Store) SetRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Root = root
}

// LastScannedRoot returns the subtree populated on the most recent run.
func (s *Store) LastScannedRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.LastScannedRoot
}

// SetLastScannedRoot records the subtree populated by the current run.
func (s *Store) SetLastScannedRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.LastScannedRoot = root
}

// LastScan returns the instant of the last successful update.
func (s *Store) LastScan() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.LastScan
}

// SetLastScan records the instant of a successful update.
func (s *Store) SetLastScan(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.LastScan = t.UTC()
}

// Journal returns the persisted change-journal state.
func (s *Store) Journal() JournalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Journal
}

// SetJournal replaces the persisted change-journal state.
func (s *Store) SetJournal(js JournalState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Journal = js
}

// RecordSkip counts one traversal skip of the given directory name.
func (s *Store) RecordSkip(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.SkipStats[name]++
}

// ResetSkipStats clears skip counts ahead of a fresh traversal.
func (s *Store) ResetSkipStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.SkipStats = make(map[string]int)
}

// SkipStats returns a copy of the skip counts.
func (s *Store) SkipStats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.index.SkipStats))
	for k, v := range s.index.SkipStats {
		out[k] = v
	}
	return out
}

// SkipReport formats the skip counts, most-skipped first.
func (s *Store) SkipReport() string {
	stats := s.SkipStats()
	if len(stats) == 0 {
		return "(no directories skipped)"
	}

	type skip struct {
		name  string
		count int
	}
	sorted := make([]skip, 0, len(stats))
	for name, count := range stats {
		sorted = append(sorted, skip{name, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})

	var b strings.Builder
	for _, sk := range sorted {
		fmt.Fprintf(&b, "  %d × %s\n", sk.count, sk.name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// IndexPath returns the path of the index file.
func (s *Store) IndexPath() string { return s.indexPath }

// DataPath returns the path of the data file.
func (s *Store) DataPath() string { return s.dataPath }
