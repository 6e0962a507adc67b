// Package watch runs the long-lived update loop: it polls the change
// journal on an interval when one is active, and falls back to filesystem
// notifications with throttled rescans when none is.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
	"github.com/ConnerAdamsMaine/PTree/internal/derrors"
	"github.com/ConnerAdamsMaine/PTree/internal/journal"
	"github.com/ConnerAdamsMaine/PTree/internal/logger"
	"github.com/ConnerAdamsMaine/PTree/internal/scan"
	"github.com/ConnerAdamsMaine/PTree/internal/update"
)

// Options configure a daemon run.
type Options struct {
	// Interval is the journal poll period; it also bounds how often the
	// notification path may trigger a rescan.
	Interval time.Duration

	// Debounce is the quiet period after a notification before a rescan.
	Debounce time.Duration

	// Skip and Workers are handed to the traversal engine.
	Skip    []string
	Workers int
}

// Daemon keeps one cache in step with one subtree until cancelled.
type Daemon struct {
	root   string
	store  *cache.Store
	reader journal.Reader
	opts   Options
	log    *logger.Logger
}

// New creates a daemon for the given root and store.
func New(root string, store *cache.Store, reader journal.Reader, opts Options, log *logger.Logger) *Daemon {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Daemon{
		root:   filepath.Clean(root),
		store:  store,
		reader: reader,
		opts:   opts,
		log:    log,
	}
}

// Run blocks until ctx is cancelled. The change source is picked once at
// startup: journal polling when the volume has an active journal,
// filesystem notifications otherwise.
func (d *Daemon) Run(ctx context.Context) error {
	volume := update.VolumeOf(d.root)
	_, err := d.reader.Query(volume)
	switch {
	case err == nil:
		d.log.Info().Str("volume", volume).Msg("watching via change journal")
		return d.runJournal(ctx)
	case derrors.HasCode(err, derrors.CodeJournalNotActive):
		d.log.Info().Str("root", d.root).Msg("no change journal, watching via filesystem notifications")
		return d.runNotify(ctx)
	default:
		return err
	}
}

// runJournal polls the journal on the configured interval and applies
// whatever accumulated.
func (d *Daemon) runJournal(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("watch loop stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := update.Run(ctx, d.root, d.store, d.reader, update.Options{
			TTL:     d.opts.Interval,
			Skip:    d.opts.Skip,
			Workers: d.opts.Workers,
		}, d.log)
		if err != nil {
			// Transient read failures retry on the next cycle.
			d.log.Error().Err(err).Msg("update cycle failed")
			continue
		}
		if res.Applied != nil && res.Applied.Total() > 0 {
			d.log.Info().
				Int("created", res.Applied.Created).
				Int("modified", res.Applied.Modified).
				Int("deleted", res.Applied.Deleted).
				Msg("changes applied")
		}
	}
}

// runNotify marks the tree dirty on filesystem events and rescans after a
// quiet period, never more than once per interval.
func (d *Daemon) runNotify(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := d.addWatches(watcher); err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Every(d.opts.Interval), 1)
	debounce := time.NewTimer(d.opts.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	dirty := false

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("watch loop stopping")
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("filesystem event")
			if !dirty {
				dirty = true
			} else if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(d.opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn().Err(err).Msg("watcher error")

		case <-debounce.C:
			if !dirty {
				continue
			}
			dirty = false
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			if err := d.rescan(ctx); err != nil {
				d.log.Error().Err(err).Msg("rescan failed")
				continue
			}
			// Directories may have come and gone; refresh the watch set.
			if err := d.addWatches(watcher); err != nil {
				d.log.Warn().Err(err).Msg("failed to refresh watches")
			}
		}
	}
}

func (d *Daemon) rescan(ctx context.Context) error {
	if _, err := scan.Run(ctx, d.root, d.store, scan.Options{
		Skip:    d.opts.Skip,
		Workers: d.opts.Workers,
		Force:   true,
	}, d.log); err != nil {
		return err
	}
	return d.store.Save()
}

// addWatches covers the root and its immediate subdirectories. Changes
// deeper down raise no event of their own; they are picked up only by a
// rescan triggered by an event in a watched directory.
func (d *Daemon) addWatches(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(d.root); err != nil {
		return err
	}
	dirents, err := os.ReadDir(d.root)
	if err != nil {
		return err
	}
	for _, de := range dirents {
		if de.IsDir() && de.Type()&os.ModeSymlink == 0 {
			// Best effort: unreadable subdirectories stay uncovered.
			_ = watcher.Add(filepath.Join(d.root, de.Name()))
		}
	}
	return nil
}
