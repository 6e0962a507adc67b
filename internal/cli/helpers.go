// Package cli implements the ptree command actions.
package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
	"github.com/ConnerAdamsMaine/PTree/internal/config"
	"github.com/ConnerAdamsMaine/PTree/internal/journal"
)

// DefaultCacheBase returns the cache file base path (without extension)
// under the user cache directory.
func DefaultCacheBase() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "ptree", "cache", "ptree")
}

// cachePaths derives the index/data pair from a base path. A base carrying
// an extension is used as-is for its stem.
func cachePaths(base string) (string, string) {
	if base == "" {
		base = DefaultCacheBase()
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".idx", base + ".dat"
}

// openStore opens the cache pair at the given base path.
func openStore(base string) (*cache.Store, error) {
	indexPath, dataPath := cachePaths(base)
	return cache.Open(indexPath, dataPath)
}

// newJournalReader returns the journal binding for this build. No platform
// binding is included, so it always returns the stub and the orchestrator
// falls back to full traversals.
func newJournalReader() journal.Reader {
	return journal.Stub{}
}

// resolveRoot turns an optional argument into an absolute scan root.
func resolveRoot(arg string) (string, error) {
	if arg == "" {
		return os.Getwd()
	}
	return filepath.Abs(arg)
}

// loadSettings loads configuration for a run, discovering a file near root
// when none was named explicitly.
func loadSettings(configPath, root string) (*config.Settings, error) {
	return config.LoadOrDefault(configPath, root)
}

// stdoutIsTTY reports whether stdout is attached to a terminal.
func stdoutIsTTY() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
