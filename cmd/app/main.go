package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/notebridge/nsx2joplin/internal"
	pkgconfig "github.com/notebridge/nsx2joplin/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := internal.NewDefaultConfig()
	if configPath := cmd.String("config"); configPath != "" {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Flags override config file values.
	if v := cmd.String("archive"); v != "" {
		cfg.Archive.Path = v
	}
	if v := cmd.String("media-folder"); v != "" {
		cfg.Archive.MediaFolder = v
	}
	if v := cmd.String("token"); v != "" {
		cfg.Joplin.Token = v
	}
	if v := cmd.String("joplin-url"); v != "" {
		cfg.Joplin.BaseURL = v
	}
	if v := cmd.String("snapshot-file"); v != "" {
		cfg.Snapshot.Path = v
	}
	if cmd.Bool("save-snapshot") {
		cfg.Snapshot.Save = true
	}
	if cmd.Bool("from-snapshot") {
		cfg.Snapshot.Load = true
	}
	if cmd.Bool("extract-only") {
		cfg.ExtractOnly = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "nsx2joplin",
		Usage:  "Migrate a Synology Note Station .nsx export into Joplin via the Web Clipper API",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to optional YAML config file",
				Sources: cli.EnvVars("NSX2JOPLIN_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "archive",
				Aliases: []string{"a"},
				Usage:   "Path to the .nsx archive (default: first *.nsx in the working directory)",
			},
			&cli.StringFlag{
				Name:  "media-folder",
				Usage: "Attachment subdirectory name inside each notebook directory",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Joplin Web Clipper authorization token",
				Sources: cli.EnvVars("JOPLIN_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "joplin-url",
				Usage:   "Joplin Web Clipper base URL",
				Sources: cli.EnvVars("JOPLIN_BASE_URL"),
			},
			&cli.StringFlag{
				Name:  "snapshot-file",
				Usage: "Path of the intermediate snapshot file",
			},
			&cli.BoolFlag{
				Name:  "save-snapshot",
				Usage: "Write the normalized document to the snapshot file after extraction",
			},
			&cli.BoolFlag{
				Name:  "from-snapshot",
				Usage: "Load the normalized document from the snapshot file instead of extracting",
			},
			&cli.BoolFlag{
				Name:  "extract-only",
				Usage: "Stop after extraction, do not upload",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
