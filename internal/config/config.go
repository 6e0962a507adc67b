// Package config handles loading and parsing of PTree configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// SupportedConfigNames contains supported configuration file names (in order
// of preference)
var SupportedConfigNames = []string{
	".ptree.yml",
	".ptree.yaml",
	".ptree.toml",
	".ptree.json",
}

// defaultsYAML seeds every load; file values are merged on top.
var defaultsYAML = []byte(`
skip:
  - .git
  - node_modules
  - $RECYCLE.BIN
  - System Volume Information
ttl: 3600
threads: 0
format: tree
show_hidden: false
max_depth: 0
watch:
  interval: 60
  debounce: 500
`)

// WatchSettings configure the watch daemon.
type WatchSettings struct {
	// Interval is the journal poll period in seconds.
	Interval int `koanf:"interval"`
	// Debounce is the quiet period in milliseconds after a filesystem
	// notification before a rescan is triggered.
	Debounce int `koanf:"debounce"`
}

// Settings represents a PTree configuration.
type Settings struct {
	Skip       []string      `koanf:"skip"`
	TTL        int           `koanf:"ttl"`
	Threads    int           `koanf:"threads"`
	Cache      string        `koanf:"cache"`
	Format     string        `koanf:"format"`
	ShowHidden bool          `koanf:"show_hidden"`
	MaxDepth   int           `koanf:"max_depth"`
	Watch      WatchSettings `koanf:"watch"`
}

// TTLDuration returns the freshness TTL as a duration.
func (s *Settings) TTLDuration() time.Duration {
	return time.Duration(s.TTL) * time.Second
}

// WatchInterval returns the watch poll period as a duration.
func (s *Settings) WatchInterval() time.Duration {
	return time.Duration(s.Watch.Interval) * time.Second
}

// WatchDebounce returns the notification quiet period as a duration.
func (s *Settings) WatchDebounce() time.Duration {
	return time.Duration(s.Watch.Debounce) * time.Millisecond
}

// Default returns the built-in settings.
func Default() *Settings {
	s, err := unmarshal(koanfWithDefaults())
	if err != nil {
		// The embedded defaults are static; failing to parse them is a
		// programming error.
		panic(err)
	}
	return s
}

// Load reads and parses a configuration file, layered over the defaults.
func Load(path string) (*Settings, error) {
	k := koanfWithDefaults()

	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return unmarshal(k)
}

// Discover returns the first config file found in dir, then in the user
// config directory. Empty when none exists.
func Discover(dir string) string {
	candidates := []string{dir}
	if userDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(userDir, "ptree"))
	}

	for _, base := range candidates {
		for _, name := range SupportedConfigNames {
			path := filepath.Join(base, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault loads path when given, discovers a config near dir
// otherwise, and falls back to the defaults when nothing is found.
func LoadOrDefault(path, dir string) (*Settings, error) {
	if path == "" {
		path = Discover(dir)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func koanfWithDefaults() *koanf.Koanf {
	k := koanf.New(".")
	// The embedded defaults always parse; Load merges user files on top.
	_ = k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser())
	return k
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

func unmarshal(k *koanf.Koanf) (*Settings, error) {
	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return s, nil
}
