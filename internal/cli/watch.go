package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ConnerAdamsMaine/PTree/internal/logger"
	"github.com/ConnerAdamsMaine/PTree/internal/watch"
)

// WatchParams holds parameters for the Watch function
type WatchParams struct {
	Root       string
	CachePath  string
	ConfigPath string
	LogLevel   string

	Interval int
	Threads  int
	Skip     []string
}

// Watch runs the update daemon until the context is cancelled.
func Watch(ctx context.Context, params WatchParams) error {
	log := logger.New(params.LogLevel, nil)

	root, err := resolveRoot(params.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve watch root: %w", err)
	}

	cfg, err := loadSettings(params.ConfigPath, root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	interval := cfg.WatchInterval()
	if params.Interval > 0 {
		interval = time.Duration(params.Interval) * time.Second
	}
	skip := append(append([]string(nil), cfg.Skip...), params.Skip...)
	threads := cfg.Threads
	if params.Threads > 0 {
		threads = params.Threads
	}

	cacheBase := params.CachePath
	if cacheBase == "" {
		cacheBase = cfg.Cache
	}
	store, err := openStore(cacheBase)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	daemon := watch.New(root, store, newJournalReader(), watch.Options{
		Interval: interval,
		Debounce: cfg.WatchDebounce(),
		Skip:     skip,
		Workers:  threads,
	}, log)

	if err := daemon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
