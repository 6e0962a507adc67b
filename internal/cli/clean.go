package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ConnerAdamsMaine/PTree/internal/logger"
)

// CleanParams holds parameters for the Clean function
type CleanParams struct {
	CachePath string
	LogLevel  string
	All       bool
}

// Clean removes the cache files so the next run rebuilds from scratch.
func Clean(params CleanParams) error {
	log := logger.New(params.LogLevel, nil)

	indexPath, dataPath := cachePaths(params.CachePath)

	if params.All {
		dir := filepath.Dir(indexPath)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove cache directory: %w", err)
		}
		log.Info().Str("dir", dir).Msg("cache directory removed")
		fmt.Printf("✓ Cache directory removed: %s\n", dir)
		return nil
	}

	for _, path := range []string{indexPath, dataPath, indexPath + ".tmp", dataPath + ".tmp"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	log.Info().Str("index", indexPath).Str("data", dataPath).Msg("cache files removed")
	fmt.Println("✓ Cache cleared")
	return nil
}
