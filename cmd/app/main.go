package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notepress/internal"
	pkgconfig "github.com/starford/notepress/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if note := cmd.String("note"); note != "" {
		opts = append(opts, internal.WithNote(note))
	}
	if query := cmd.String("query"); query != "" {
		opts = append(opts, internal.WithQuery(query))
	}
	if cmd.IsSet("dry-run") {
		opts = append(opts, internal.WithDryRun(cmd.Bool("dry-run")))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runPreview(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("preview requires a note GUID or note link argument")
	}
	return internal.Preview(ctx, cfg, ref)
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Status(ctx, cfg, int(cmd.Int("limit")))
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:  "notepress",
		Usage: "Publish rich-text notes to a WordPress site, resolving cross-note references",
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Resolve and publish notes matching the configured query",
				Action: runSync,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "note",
						Usage: "Sync a single note by GUID or note link",
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Override the configured note search query",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Resolve and render without modifying anything",
					},
				},
			},
			{
				Name:      "preview",
				Usage:     "Render a note's content to HTML on stdout",
				ArgsUsage: "<guid-or-link>",
				Action:    runPreview,
				Flags:     []cli.Flag{configFlag},
			},
			{
				Name:   "status",
				Usage:  "Show recent sync journal entries",
				Action: runStatus,
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to show",
						Value: 20,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
