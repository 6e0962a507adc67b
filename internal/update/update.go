// Package update decides how the cache catches up with the filesystem: an
// incremental replay of the change journal when possible, a full traversal
// when not, or nothing at all while the cache is fresh.
package update

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
	"github.com/ConnerAdamsMaine/PTree/internal/derrors"
	"github.com/ConnerAdamsMaine/PTree/internal/journal"
	"github.com/ConnerAdamsMaine/PTree/internal/logger"
	"github.com/ConnerAdamsMaine/PTree/internal/scan"
	"github.com/ConnerAdamsMaine/PTree/internal/timing"
)

// DefaultReadBufferSize is the byte size requested per journal read.
const DefaultReadBufferSize = 64 * 1024

// Action names what an update run did.
type Action string

const (
	ActionNone        Action = "none"
	ActionScan        Action = "scan"
	ActionIncremental Action = "incremental"
)

// Options control one update run.
type Options struct {
	// Force bypasses the freshness gate and always runs a full traversal.
	Force bool

	// TTL is the cache age below which the run is a no-op; 0 means the
	// traversal default.
	TTL time.Duration

	// Workers and Skip are handed to the traversal engine.
	Workers int
	Skip    []string

	// ReadBufferSize is the journal read request size; 0 means the default.
	ReadBufferSize int
}

// Result reports what an update run did.
type Result struct {
	Action  Action
	Scan    *scan.Stats
	Applied *journal.ApplyResult
}

// Run ensures the cache under root reflects the current filesystem. The
// decision order: force → full scan; fresh cache → no-op; journal usable →
// incremental; otherwise full scan. Incremental failures other than an id
// mismatch surface to the caller, they never silently fall back.
func Run(ctx context.Context, root string, store *cache.Store, reader journal.Reader, opts Options, log *logger.Logger) (*Result, error) {
	root = filepath.Clean(root)
	timer := timing.NewTimer()

	if opts.Force {
		return fullScan(ctx, root, store, reader, opts, timer, log)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = scan.DefaultTTL
	}
	if !store.IsEmpty() && time.Since(store.LastScan()) < ttl {
		log.Debug().Str("root", root).Msg("cache fresh, nothing to update")
		return &Result{Action: ActionNone}, nil
	}

	volume := VolumeOf(root)
	info, err := reader.Query(volume)
	if err != nil {
		if derrors.HasCode(err, derrors.CodeJournalNotActive) {
			log.Debug().Str("volume", volume).Msg("no change journal, running full traversal")
			return fullScan(ctx, root, store, reader, opts, timer, log)
		}
		return nil, err
	}

	js := store.Journal()
	if js.JournalID != info.JournalID {
		// The journal was recreated since the cache last saw it; its USNs
		// no longer mean anything to us.
		log.Warn().
			Uint64("persisted", js.JournalID).
			Uint64("observed", info.JournalID).
			Msg("journal id mismatch, resetting state and rescanning")
		store.SetJournal(cache.JournalState{
			JournalID: info.JournalID,
			Drive:     driveOf(volume),
		})
		return fullScan(ctx, root, store, reader, opts, timer, log)
	}

	return incremental(root, volume, store, reader, info, opts, timer, log)
}

// fullScan runs the traversal engine and, when a journal is active, adopts
// its current position so the next run can go incremental.
func fullScan(ctx context.Context, root string, store *cache.Store, reader journal.Reader, opts Options, timer *timing.Timer, log *logger.Logger) (*Result, error) {
	stats, err := scan.Run(ctx, root, store, scan.Options{
		Skip:    opts.Skip,
		Workers: opts.Workers,
		Force:   opts.Force,
		TTL:     opts.TTL,
	}, log)
	if err != nil {
		return nil, err
	}
	timer.Mark("scan")

	if stats.Fresh {
		return &Result{Action: ActionNone, Scan: stats}, nil
	}

	volume := VolumeOf(root)
	if info, err := reader.Query(volume); err == nil {
		store.SetJournal(cache.JournalState{
			JournalID: info.JournalID,
			LastUSN:   info.NextUSN,
			Drive:     driveOf(volume),
			LastRead:  time.Now().UTC(),
		})
	}

	if err := store.Save(); err != nil {
		return nil, err
	}
	timer.Mark("save")

	log.Info().Str("root", root).Str("timing", timer.Summary()).Msg("full traversal saved")
	return &Result{Action: ActionScan, Scan: stats}, nil
}

// incremental drains the journal from the persisted position and replays
// the records onto the cache.
func incremental(root, volume string, store *cache.Store, reader journal.Reader, info *journal.Info, opts Options, timer *timing.Timer, log *logger.Logger) (*Result, error) {
	bufSize := opts.ReadBufferSize
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}

	js := store.Journal()
	start := js.LastUSN
	if start < info.LowestValidUSN {
		start = info.LowestValidUSN
	}

	total := &journal.ApplyResult{}
	var deletions int
	for {
		next, raw, err := reader.Read(volume, start, journal.ReasonMaskAll, bufSize)
		if err != nil {
			return nil, derrors.NewJournalReadError(volume, err)
		}
		records, lastUSN := journal.DecodeRecords(volume, raw)
		if len(records) == 0 && next <= start {
			break
		}

		res, err := journal.Apply(store, records, log)
		if err != nil {
			return nil, err
		}
		total.Created += res.Created
		total.Modified += res.Modified
		total.Deleted += res.Deleted
		total.Ignored += res.Ignored
		deletions += res.Deleted

		if lastUSN > next {
			next = lastUSN
		}
		if next <= start {
			break
		}
		start = next
	}
	timer.Mark("apply")

	js.LastUSN = start
	js.LastRead = time.Now().UTC()
	js.ChangeCount += uint64(total.Total())
	store.SetJournal(js)
	store.SetLastScan(time.Now().UTC())

	// Deletions orphan frames in the data file; rewrite it while we are
	// the exclusive writer.
	var err error
	if deletions > 0 {
		err = store.Compact()
	} else {
		err = store.Save()
	}
	if err != nil {
		return nil, err
	}
	timer.Mark("save")

	log.Info().
		Str("root", root).
		Int("created", total.Created).
		Int("modified", total.Modified).
		Int("deleted", total.Deleted).
		Str("timing", timer.Summary()).
		Msg("incremental update applied")
	return &Result{Action: ActionIncremental, Applied: total}, nil
}

// VolumeOf returns the journal volume identifier for a path: the drive root
// on systems with drive letters, the filesystem root otherwise.
func VolumeOf(path string) string {
	if vol := filepath.VolumeName(path); vol != "" {
		return vol + string(filepath.Separator)
	}
	return string(filepath.Separator)
}

// driveOf extracts a drive letter from a volume root, empty when none.
func driveOf(volume string) string {
	if len(volume) >= 2 && volume[1] == ':' {
		return volume[:1]
	}
	return ""
}
