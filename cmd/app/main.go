package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/blogit/internal"
	pkgconfig "github.com/starford/blogit/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withApp loads the configuration, builds the application and runs fn against it.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := internal.New(internal.WithConfig(cfg))
		if err != nil {
			return fmt.Errorf("app init error: %w", err)
		}
		defer app.Close()

		if err := fn(ctx, cmd, app); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if !cfg.Watch.Enabled {
		app, err := internal.New(opts...)
		if err != nil {
			return fmt.Errorf("app init error: %w", err)
		}
		defer app.Close()
		return app.Build(ctx)
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "blogit",
		Usage:  "Build a blog from Markdown articles kept in a git repository",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Build the collection once and print a summary",
				Action: withApp(func(ctx context.Context, _ *cli.Command, app *internal.App) error {
					return app.Build(ctx)
				}),
			},
			{
				Name:      "show",
				Usage:     "Print one article",
				ArgsUsage: "<slug>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					slug := cmd.Args().First()
					if slug == "" {
						return fmt.Errorf("slug argument is required")
					}
					return app.Show(ctx, slug)
				}),
			},
			{
				Name:  "tags",
				Usage: "Print every tag with its article count",
				Action: withApp(func(ctx context.Context, _ *cli.Command, app *internal.App) error {
					return app.Tags(ctx)
				}),
			},
			{
				Name:  "watch",
				Usage: "Rebuild on changes until interrupted",
				Action: withApp(func(ctx context.Context, _ *cli.Command, app *internal.App) error {
					return app.Watch(ctx)
				}),
			},
			{
				Name:  "ratelimit",
				Usage: "Print the GitHub API quota",
				Action: withApp(func(ctx context.Context, _ *cli.Command, app *internal.App) error {
					return app.RateLimit(ctx)
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
