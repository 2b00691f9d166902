package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/arbor/internal"
	pkgconfig "github.com/starford/arbor/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func printTree(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.PrintTree(ctx, internal.WithConfig(cfg))
}

func reset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("reset: refusing to delete the stored tree without --yes")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Reset(ctx, internal.WithConfig(cfg))
}

func cat(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("cat: node id is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Cat(ctx, id,
		internal.WithConfig(cfg),
		internal.WithTerminalStyle(cmd.String("style"), int(cmd.Int("width"))),
	)
}

func main() {
	cmd := &cli.Command{
		Name:    "arbor",
		Usage:   "Local-first backend for a markdown file tree editor",
		Version: version,
		Action:  run,
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
				Name:   "serve",
				Usage:  "Serve the HTTP API and event stream (default)",
				Action: run,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the tree to an MCP client over stdio",
				Action: runMCP,
			},
			{
				Name:   "tree",
				Usage:  "Print the stored tree as an outline with node ids",
				Action: printTree,
			},
			{
				Name:   "reset",
				Usage:  "Delete the stored tree so the next start is empty",
				Action: reset,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion",
					},
				},
			},
			{
				Name:      "cat",
				Usage:     "Render a stored file in the terminal",
				ArgsUsage: "<id>",
				Action:    cat,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "style",
						Usage: "glamour style (auto, dark, light, notty)",
						Value: "auto",
					},
					&cli.IntFlag{
						Name:  "width",
						Usage: "Word wrap width",
						Value: 80,
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
