package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/shikibuild/internal"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "shikibuild",
		Usage:   "Pre-render fenced code blocks in Markdown content to dual-theme highlighted HTML",
		Version: internal.Version,
		Flags:   append(globalFlags(), buildFlags()...),
		Action:  runBuild,
		Commands: []*cli.Command{
			buildCommand(),
			serveCommand(),
			mcpCommand(),
			languagesCommand(),
			themesCommand(),
			configCommand(),
			cacheCommand(),
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
