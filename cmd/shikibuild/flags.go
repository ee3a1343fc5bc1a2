package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/shikibuild/internal"
	"github.com/starford/shikibuild/internal/apperr"
	pkgconfig "github.com/starford/shikibuild/pkg/config"
)

const defaultConfigFile = "shikibuild.yaml"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file (defaults apply when it does not exist)",
			DefaultText: defaultConfigFile,
			Value:       defaultConfigFile,
			Sources:     cli.EnvVars("SHIKIBUILD_CONFIG"),
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log at debug level",
		},
	}
}

func buildFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "content-dir", Usage: "Markdown content root"},
		&cli.StringFlag{Name: "output-dir", Usage: "Directory for per-file block results"},
		&cli.StringFlag{Name: "cache-dir", Usage: "Directory for the block cache and build record"},
		&cli.IntFlag{Name: "concurrency", Usage: "Blocks rendered in parallel"},
		&cli.BoolFlag{Name: "no-parallel", Usage: "Render blocks one at a time"},
		&cli.BoolFlag{Name: "no-incremental", Usage: "Process every file regardless of the last build time"},
	}
}

// loadConfig reads the config file (or defaults) and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	found, err := pkgconfig.LoadOptional(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidConfig, err)
	}

	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	if v := cmd.String("content-dir"); v != "" {
		cfg.Build.ContentDir = v
	}
	if v := cmd.String("output-dir"); v != "" {
		cfg.Build.OutputDir = v
	}
	if v := cmd.String("cache-dir"); v != "" {
		cfg.Build.CacheDir = v
	}
	if cmd.IsSet("concurrency") {
		cfg.Build.Concurrency = int(cmd.Int("concurrency"))
	}
	if cmd.Bool("no-parallel") {
		cfg.Build.Parallel = false
	}
	if cmd.Bool("no-incremental") {
		cfg.Build.Incremental = false
	}

	if !found {
		logger(cfg).Debug("config file not found, using defaults", slog.String("path", path))
	}
	return cfg, nil
}

// logger returns a stderr logger for commands whose stdout is their result.
func logger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}
