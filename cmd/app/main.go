package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/readwise2anki/internal"
	"github.com/starford/readwise2anki/internal/reconcile"
	pkgconfig "github.com/starford/readwise2anki/pkg/config"
)

// loadConfig reads the config file, then lets flags override it.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadWithDefaults(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}

	if cmd.IsSet("api-token") {
		cfg.Readwise.Token = cmd.String("api-token")
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
		cfg.App.LogFormat = internal.LogFormatText
	}
	if cmd.IsSet("use-cache") {
		cfg.Cache.Enabled = cmd.Bool("use-cache")
	}
	if cmd.IsSet("cache-path") {
		cfg.Cache.Path = cmd.String("cache-path")
	}
	if cmd.IsSet("deck") {
		cfg.Anki.Deck = cmd.String("deck")
	}
	if cmd.Bool("delete-orphans") {
		cfg.Sync.Orphans = reconcile.OrphansDelete
	}
	if cmd.IsSet("incremental") {
		cfg.Sync.Incremental = cmd.Bool("incremental")
	}
	if cmd.IsSet("updated-after") {
		cfg.Sync.UpdatedAfter = cmd.String("updated-after")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.History(ctx, int(cmd.Int("limit")), internal.WithConfig(cfg))
}

// errorChain lists err and every error it wraps, outermost first, each with
// its concrete type.
func errorChain(err error) []string {
	if err == nil {
		return nil
	}
	chain := []string{fmt.Sprintf("%T: %v", err, err)}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		chain = append(chain, errorChain(u.Unwrap())...)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			chain = append(chain, errorChain(e)...)
		}
	}
	return chain
}

func main() {
	cmd := &cli.Command{
		Name:   "readwise2anki",
		Usage:  "One-way sync of Readwise highlights into an Anki deck through AnkiConnect",
		Action: runSync,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "api-token",
				Usage:   "Readwise API token",
				Sources: cli.EnvVars("READWISE_API_TOKEN"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Debug logging in text format",
			},
			&cli.BoolFlag{
				Name:  "use-cache",
				Usage: "Read the export from the local snapshot, fetching it once if missing",
			},
			&cli.StringFlag{
				Name:  "cache-path",
				Usage: "Location of the export snapshot",
			},
			&cli.StringFlag{
				Name:  "deck",
				Usage: "Target Anki deck",
			},
			&cli.BoolFlag{
				Name:  "delete-orphans",
				Usage: "Delete notes whose highlight is no longer in the export",
			},
			&cli.BoolFlag{
				Name:  "incremental",
				Usage: "Only fetch records updated since the last successful run",
			},
			&cli.StringFlag{
				Name:  "updated-after",
				Usage: "Only fetch records updated after this RFC3339 time",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "history",
				Usage:  "Show recent sync runs",
				Action: runHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 20,
					},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		attrs := []any{slog.String("error", err.Error())}
		if cmd.Bool("verbose") {
			attrs = append(attrs, slog.Any("chain", errorChain(err)))
		}
		slog.Error("application error", attrs...)
		stop()
		os.Exit(1)
	}
}
