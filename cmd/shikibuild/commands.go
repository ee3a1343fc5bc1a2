package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/starford/shikibuild/internal"
	"github.com/starford/shikibuild/internal/cache"
	"github.com/starford/shikibuild/internal/highlight"
	"github.com/starford/shikibuild/internal/lang"
	pkgconfig "github.com/starford/shikibuild/pkg/config"
)

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:   "build",
		Usage:  "Render every changed Markdown file (default command)",
		Action: runBuild,
	}
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithOutput(cmd.Root().Writer)); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the build API, optionally rebuilding on content changes",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP port"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Rebuild when content changes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("port") {
				cfg.Serve.Port = int(cmd.Int("port"))
			}
			if cmd.Bool("watch") {
				cfg.Serve.Watch = true
			}
			return internal.Serve(ctx, internal.WithConfig(cfg))
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.ServeMCP(ctx, internal.WithConfig(cfg))
		},
	}
}

func resolver() *lang.Resolver {
	return lang.NewResolver(highlight.NewChroma().Languages(), lang.DefaultOverrides)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one <%s> argument", name)
	}
	return cmd.Args().First(), nil
}

func languagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "languages",
		Usage: "Inspect supported languages",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List supported languages",
				Action: func(_ context.Context, cmd *cli.Command) error {
					w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tALIASES")
					for _, info := range resolver().Languages() {
						fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.Name, strings.Join(info.Aliases, ", "))
					}
					return w.Flush()
				},
			},
			{
				Name:      "check",
				Usage:     "Check whether a fence tag is supported",
				ArgsUsage: "<tag>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					tag, err := requireArg(cmd, "tag")
					if err != nil {
						return err
					}
					r := resolver()
					if info, ok := r.Info(tag); ok {
						fmt.Fprintf(cmd.Root().Writer, "%q is supported: %s (%s)\n", tag, info.Name, info.ID)
						return nil
					}
					return errors.New(r.SuggestionMessage(tag))
				},
			},
			{
				Name:      "suggest",
				Usage:     "Suggest languages resembling a tag",
				ArgsUsage: "<tag>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					tag, err := requireArg(cmd, "tag")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, resolver().SuggestionMessage(tag))
					return nil
				},
			},
			{
				Name:  "doc",
				Usage: "Print the supported language table as Markdown",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprint(cmd.Root().Writer, resolver().Documentation())
					return nil
				},
			},
		},
	}
}

func themesCommand() *cli.Command {
	return &cli.Command{
		Name:  "themes",
		Usage: "Inspect available themes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available themes",
				Action: func(_ context.Context, cmd *cli.Command) error {
					for _, name := range highlight.ThemeNames() {
						fmt.Fprintln(cmd.Root().Writer, name)
					}
					return nil
				},
			},
			{
				Name:      "check",
				Usage:     "Check whether a theme exists",
				ArgsUsage: "<theme>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					name, err := requireArg(cmd, "theme")
					if err != nil {
						return err
					}
					if highlight.HasTheme(name) {
						fmt.Fprintf(cmd.Root().Writer, "theme %q is available\n", name)
						return nil
					}
					if similar := lang.Rank(name, highlight.ThemeNames(), 3); len(similar) > 0 {
						return fmt.Errorf("theme %q not found; did you mean: %s", name, strings.Join(similar, ", "))
					}
					return fmt.Errorf("theme %q not found", name)
				},
			},
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print or validate configuration",
		Commands: []*cli.Command{
			{
				Name:  "default",
				Usage: "Print the default configuration as YAML",
				Action: func(_ context.Context, cmd *cli.Command) error {
					out, err := pkgconfig.Marshal(internal.NewDefaultConfig())
					if err != nil {
						return err
					}
					_, err = cmd.Root().Writer.Write(out)
					return err
				},
			},
			{
				Name:  "validate",
				Usage: "Load and validate the configuration file",
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					if err := cfg.Validate(); err != nil {
						return fmt.Errorf("config validation failed: %w", err)
					}
					fmt.Fprintln(cmd.Root().Writer, "configuration is valid")
					return nil
				},
			},
		},
	}
}

func openCache(cmd *cli.Command) (*cache.Cache, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.Build.CacheDir,
		cache.WithMaxAge(cfg.Build.CacheMaxAge),
		cache.WithLogger(logger(cfg)),
	)
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the block cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show the number and size of cached entries",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := openCache(cmd)
					if err != nil {
						return err
					}
					s, err := c.DiskStats(ctx)
					if err != nil {
						return err
					}
					w := cmd.Root().Writer
					fmt.Fprintf(w, "Directory: %s\nEntries:   %d\nSize:      %s\n", c.Dir(), s.Count, humanize.Bytes(uint64(s.Bytes)))
					if s.Count > 0 {
						fmt.Fprintf(w, "Oldest:    %s\nNewest:    %s\n", humanize.Time(s.Oldest), humanize.Time(s.Newest))
					}
					return nil
				},
			},
			{
				Name:  "prune",
				Usage: "Delete expired cache entries",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := openCache(cmd)
					if err != nil {
						return err
					}
					n, err := c.Prune(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "pruned %d expired entries\n", n)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "Delete every cache entry",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := openCache(cmd)
					if err != nil {
						return err
					}
					if err := c.Clear(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, "cache cleared")
					return nil
				},
			},
		},
	}
}
