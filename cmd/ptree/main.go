// Package main is the entry point for the ptree CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ptreecli "github.com/ConnerAdamsMaine/PTree/internal/cli"
	"github.com/ConnerAdamsMaine/PTree/pkg/version"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:                  "ptree",
		Usage:                 "Cached directory tree indexer",
		Version:               version.Version,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("PTREE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "cache",
				Usage: "Cache file base path",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "Update the cache for a directory tree and render it",
				ArgsUsage: "[root]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rescan even when the cache is fresh",
					},
					&cli.IntFlag{
						Name:  "threads",
						Usage: "Traversal worker count (0 = twice the logical CPUs)",
					},
					&cli.StringSliceFlag{
						Name:  "skip",
						Usage: "Additional directory names to skip (repeatable)",
					},
					&cli.IntFlag{
						Name:  "ttl",
						Usage: "Cache freshness TTL in seconds",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (tree, json)",
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Maximum tree depth (0 = unlimited)",
					},
					&cli.StringFlag{
						Name:  "color",
						Value: "auto",
						Usage: "Colorize output (auto, always, never)",
					},
					&cli.BoolFlag{
						Name:  "show-hidden",
						Usage: "Mark hidden directories in the output",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "Update the cache without rendering",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Write output to a file instead of stdout",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return ptreecli.Scan(ctx, ptreecli.ScanParams{
						Root:       cmd.Args().First(),
						CachePath:  cmd.String("cache"),
						ConfigPath: cmd.String("config"),
						LogLevel:   cmd.String("log-level"),
						Force:      cmd.Bool("force"),
						Threads:    int(cmd.Int("threads")),
						Skip:       cmd.StringSlice("skip"),
						TTL:        int(cmd.Int("ttl")),
						Format:     cmd.String("format"),
						Depth:      int(cmd.Int("depth")),
						Color:      cmd.String("color"),
						ShowHidden: cmd.Bool("show-hidden"),
						Quiet:      cmd.Bool("quiet"),
						Output:     cmd.String("output"),
					})
				},
			},
			{
				Name:  "status",
				Usage: "Show cache health and journal state",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return ptreecli.Status(ptreecli.StatusParams{
						CachePath: cmd.String("cache"),
						LogLevel:  cmd.String("log-level"),
					})
				},
			},
			{
				Name:      "watch",
				Usage:     "Keep the cache updated until interrupted",
				ArgsUsage: "[root]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "interval",
						Usage: "Update interval in seconds",
					},
					&cli.IntFlag{
						Name:  "threads",
						Usage: "Traversal worker count for fallback rescans",
					},
					&cli.StringSliceFlag{
						Name:  "skip",
						Usage: "Additional directory names to skip (repeatable)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
					defer stop()

					return ptreecli.Watch(ctx, ptreecli.WatchParams{
						Root:       cmd.Args().First(),
						CachePath:  cmd.String("cache"),
						ConfigPath: cmd.String("config"),
						LogLevel:   cmd.String("log-level"),
						Interval:   int(cmd.Int("interval")),
						Threads:    int(cmd.Int("threads")),
						Skip:       cmd.StringSlice("skip"),
					})
				},
			},
			{
				Name:  "clean",
				Usage: "Remove the cache files",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Remove the entire cache directory",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return ptreecli.Clean(ptreecli.CleanParams{
						CachePath: cmd.String("cache"),
						LogLevel:  cmd.String("log-level"),
						All:       cmd.Bool("all"),
					})
				},
			},
			{
				Name:      "validate",
				Usage:     "Validate a configuration file",
				ArgsUsage: "<config-file>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return fmt.Errorf("usage: ptree validate <config-file>")
					}
					return ptreecli.Validate(ptreecli.ValidateParams{ConfigPath: path})
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
