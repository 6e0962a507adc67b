package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ConnerAdamsMaine/PTree/internal/logger"
	"github.com/ConnerAdamsMaine/PTree/internal/render"
	"github.com/ConnerAdamsMaine/PTree/internal/update"
)

// ScanParams holds parameters for the Scan function
type ScanParams struct {
	Root       string
	CachePath  string
	ConfigPath string
	LogLevel   string

	Force   bool
	Threads int
	Skip    []string
	TTL     int

	Format     string
	Depth      int
	Color      string
	ShowHidden bool
	Quiet      bool
	Output     string
}

// Scan updates the cache for the requested root and renders the tree.
func Scan(ctx context.Context, params ScanParams) error {
	log := logger.New(params.LogLevel, nil)

	root, err := resolveRoot(params.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve scan root: %w", err)
	}

	cfg, err := loadSettings(params.ConfigPath, root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	skip := append(append([]string(nil), cfg.Skip...), params.Skip...)
	ttl := cfg.TTLDuration()
	if params.TTL > 0 {
		ttl = time.Duration(params.TTL) * time.Second
	}
	threads := cfg.Threads
	if params.Threads > 0 {
		threads = params.Threads
	}
	format := cfg.Format
	if params.Format != "" {
		format = params.Format
	}
	depth := cfg.MaxDepth
	if params.Depth > 0 {
		depth = params.Depth
	}
	showHidden := params.ShowHidden || cfg.ShowHidden

	cacheBase := params.CachePath
	if cacheBase == "" {
		cacheBase = cfg.Cache
	}
	store, err := openStore(cacheBase)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	res, err := update.Run(ctx, root, store, newJournalReader(), update.Options{
		Force:   params.Force,
		TTL:     ttl,
		Workers: threads,
		Skip:    skip,
	}, log)
	if err != nil {
		return err
	}
	log.Debug().Str("action", string(res.Action)).Msg("update finished")

	if params.Quiet {
		return nil
	}

	useColor := false
	switch params.Color {
	case "always":
		useColor = true
	case "never":
		useColor = false
	default:
		useColor = stdoutIsTTY() && params.Output == ""
	}

	opts := render.Options{
		MaxDepth:   depth,
		ShowHidden: showHidden,
		Color:      useColor,
	}

	var out string
	switch format {
	case "json":
		out, err = render.JSON(store, opts)
	default:
		out, err = render.Tree(store, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}

	if params.Output != "" {
		return os.WriteFile(params.Output, []byte(out), 0644)
	}
	fmt.Println(out)
	return nil
}
