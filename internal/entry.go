// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/notebridge/nsx2joplin/internal/archive"
	"github.com/notebridge/nsx2joplin/internal/converter"
	"github.com/notebridge/nsx2joplin/internal/extract"
	"github.com/notebridge/nsx2joplin/internal/joplin"
	"github.com/notebridge/nsx2joplin/internal/models"
	"github.com/notebridge/nsx2joplin/internal/snapshot"
	"github.com/notebridge/nsx2joplin/internal/upload"
)

// Run starts the migration with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("archive", cfg.Archive.Path),
		slog.String("media_folder", cfg.Archive.MediaFolder),
		slog.String("joplin_base_url", cfg.Joplin.BaseURL),
		slog.Bool("extract_only", cfg.ExtractOnly),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Pandoc is required before any processing starts, even when the
	// document comes from a snapshot and no conversion will run.
	conv, err := converter.Detect(logger)
	if err != nil {
		return err
	}
	defer conv.Cleanup()

	var doc *models.Document

	if cfg.Snapshot.Load {
		loaded, err := snapshot.Load(cfg.Snapshot.Path)
		if err != nil {
			return err
		}
		logger.Info("Loaded document from snapshot", slog.String("path", cfg.Snapshot.Path))
		doc = loaded
	} else {
		extracted, err := runExtraction(ctx, cfg, conv, logger)
		if err != nil {
			return err
		}
		doc = extracted

		if cfg.Snapshot.Save {
			if err := snapshot.Save(cfg.Snapshot.Path, doc); err != nil {
				return err
			}
			logger.Info("Saved document snapshot", slog.String("path", cfg.Snapshot.Path))
		}
	}

	if cfg.ExtractOnly {
		logger.Info("Extract-only run, skipping upload",
			slog.Int("notebooks", len(doc.Notebooks)),
			slog.Int("notes", len(doc.Notes)))
		return nil
	}

	svc := app.svc
	if svc == nil {
		svc = serviceAdapter{joplin.New(cfg.Joplin.BaseURL, cfg.Joplin.Token)}
	}
	driver := upload.NewDriver(svc, nil, logger)
	if err := driver.Upload(ctx, doc); err != nil {
		return err
	}

	logger.Info("Migration finished",
		slog.Int("notebooks", len(doc.Notebooks)),
		slog.Int("notes", len(doc.Notes)))
	return nil
}

// serviceAdapter adapts the joplin client to the upload.Service
// capability interface.
type serviceAdapter struct {
	c *joplin.Client
}

func (s serviceAdapter) CreateFolder(ctx context.Context, title string) (string, error) {
	return s.c.CreateFolder(ctx, title)
}

func (s serviceAdapter) CreateResource(ctx context.Context, filePath, title string) (string, error) {
	return s.c.CreateResource(ctx, filePath, title)
}

func (s serviceAdapter) CreateNote(ctx context.Context, n upload.NewNote) error {
	return s.c.CreateNote(ctx, joplin.NewNote{
		Title:     n.Title,
		Body:      n.Body,
		ParentID:  n.ParentID,
		Tags:      n.Tags,
		CreatedMS: n.CreatedMS,
		UpdatedMS: n.UpdatedMS,
	})
}

// runExtraction performs the extraction stage: archive discovery,
// then the walk itself.
func runExtraction(ctx context.Context, cfg *Config, conv *converter.Pandoc, logger *slog.Logger) (*models.Document, error) {
	archivePath, err := resolveArchivePath(cfg.Archive.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("Extracting notes", slog.String("archive", archivePath))

	arc, err := archive.OpenZip(archivePath)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	extractor := extract.New(arc, conv, workDir, cfg.Archive.MediaFolder, logger)
	doc, err := extractor.Extract(ctx)
	if err != nil {
		return nil, err
	}

	for _, w := range extractor.Warnings() {
		logger.Warn("extraction data loss", slog.String("warning", w))
	}
	return doc, nil
}

// resolveArchivePath returns the explicit path when given, otherwise
// the first *.nsx file in the working directory. No archive at all is
// a fatal error.
func resolveArchivePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	matches, err := filepath.Glob("*.nsx")
	if err != nil {
		return "", fmt.Errorf("scan working directory: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no .nsx files found in the working directory")
	}
	return matches[0], nil
}
