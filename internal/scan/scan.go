// Package scan implements the parallel directory traversal engine. Workers
// share a FIFO of pending directories and an in-progress set; each worker
// enumerates one directory at a time, buffers its entry into the cache and
// queues subdirectories for other workers.
package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
	"github.com/ConnerAdamsMaine/PTree/internal/derrors"
	"github.com/ConnerAdamsMaine/PTree/internal/logger"
)

// DefaultTTL is the cache age below which a traversal is skipped.
const DefaultTTL = time.Hour

// parallelSortThreshold is the children count above which sorting is split
// across goroutines.
const parallelSortThreshold = 100

// Options control a traversal run.
type Options struct {
	// Skip holds directory basenames never descended into, compared
	// case-insensitively.
	Skip []string

	// Workers is the pool size; 0 means twice the logical CPU count.
	Workers int

	// Force bypasses the freshness gate.
	Force bool

	// TTL is the cache age below which the run is a no-op; 0 means
	// DefaultTTL.
	TTL time.Duration
}

// Stats reports what a traversal run did.
type Stats struct {
	Directories int64
	Skipped     int64
	Errors      int64
	Fresh       bool
}

// walkState is shared by all workers of one run.
type walkState struct {
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []string
	inProgress map[string]struct{}
	cancelled  atomic.Bool
}

func newWalkState(root string) *walkState {
	ws := &walkState{
		queue:      []string{root},
		inProgress: make(map[string]struct{}),
	}
	ws.cond = sync.NewCond(&ws.mu)
	return ws
}

// next pops the next pending directory and marks it in progress. It blocks
// while the queue is empty but other workers may still enqueue, and returns
// false once no work remains or the run is cancelled.
func (ws *walkState) next() (string, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for {
		if ws.cancelled.Load() {
			return "", false
		}
		if len(ws.queue) > 0 {
			path := ws.queue[0]
			ws.queue = ws.queue[1:]
			if _, busy := ws.inProgress[path]; busy {
				continue
			}
			ws.inProgress[path] = struct{}{}
			return path, true
		}
		if len(ws.inProgress) == 0 {
			return "", false
		}
		ws.cond.Wait()
	}
}

func (ws *walkState) push(path string) {
	ws.mu.Lock()
	ws.queue = append(ws.queue, path)
	ws.mu.Unlock()
	ws.cond.Signal()
}

func (ws *walkState) finish(path string) {
	ws.mu.Lock()
	delete(ws.inProgress, path)
	ws.mu.Unlock()
	ws.cond.Broadcast()
}

func (ws *walkState) cancel() {
	ws.cancelled.Store(true)
	ws.cond.Broadcast()
}

// Run traverses the subtree under root and fills store with one entry per
// reachable directory. Per-directory errors are counted, never fatal; a
// missing root is.
func Run(ctx context.Context, root string, store *cache.Store, opts Options, log *logger.Logger) (*Stats, error) {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, derrors.NewRootMissingError(root)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if !opts.Force && !store.IsEmpty() && time.Since(store.LastScan()) < ttl {
		log.Debug().Str("root", root).Msg("cache is fresh, skipping traversal")
		return &Stats{Fresh: true}, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	skip := make(map[string]struct{}, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[strings.ToLower(name)] = struct{}{}
	}

	if store.Root() == "" || !within(store.Root(), root) {
		store.SetRoot(root)
	}
	store.SetLastScannedRoot(root)
	store.ResetSkipStats()

	ws := newWalkState(root)
	stats := &Stats{}

	// Propagate cancellation to the pool; workers drain their current
	// directory before exiting so every committed entry stays consistent.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ws.cancel()
		case <-watchDone:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ws, store, skip, stats, log)
		}()
	}
	wg.Wait()
	close(watchDone)

	store.Flush()
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	store.SetLastScan(time.Now().UTC())

	log.Info().
		Str("root", root).
		Int64("directories", atomic.LoadInt64(&stats.Directories)).
		Int64("skipped", atomic.LoadInt64(&stats.Skipped)).
		Int64("errors", atomic.LoadInt64(&stats.Errors)).
		Msg("traversal complete")
	return stats, nil
}

func worker(ws *walkState, store *cache.Store, skip map[string]struct{}, stats *Stats, log *logger.Logger) {
	for {
		path, ok := ws.next()
		if !ok {
			return
		}
		processDir(ws, store, skip, stats, path, log)
		ws.finish(path)
	}
}

// processDir enumerates one directory and commits its entry. Unreadable
// directories leave no entry behind; their name still appears in the
// parent's children.
func processDir(ws *walkState, store *cache.Store, skip map[string]struct{}, stats *Stats, path string, log *logger.Logger) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		log.Debug().Str("path", path).Err(err).Msg("directory not readable")
		return
	}

	children := make([]string, 0, len(dirents))
	for _, de := range dirents {
		name := de.Name()
		if _, skipped := skip[strings.ToLower(name)]; skipped {
			store.RecordSkip(name)
			atomic.AddInt64(&stats.Skipped, 1)
			continue
		}

		children = append(children, name)

		// Symlinks are recorded as leaves, never descended.
		if de.IsDir() && de.Type()&os.ModeSymlink == 0 {
			ws.push(filepath.Join(path, name))
		}
	}

	sortChildren(children)

	entry := &cache.Entry{
		Path:     path,
		Name:     filepath.Base(path),
		Modified: time.Now().UTC().Truncate(time.Second),
		Size:     0,
		Children: children,
		IsHidden: isHidden(path),
	}
	if target, ok := symlinkTarget(path); ok {
		entry.SymlinkTarget = target
	}

	store.BufferEntry(entry)
	atomic.AddInt64(&stats.Directories, 1)
}

// within reports whether path equals base or lives under it.
func within(base, path string) bool {
	if base == path {
		return true
	}
	return strings.HasPrefix(path, filepath.Clean(base)+string(filepath.Separator))
}

func isHidden(path string) bool {
	name := filepath.Base(path)
	return len(name) > 1 && name[0] == '.'
}

func symlinkTarget(path string) (string, bool) {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return "", false
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", false
	}
	return target, true
}
