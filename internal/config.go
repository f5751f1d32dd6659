package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/notebridge/nsx2joplin/internal/joplin"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Archive  ArchiveConfig     `yaml:"archive"`
	Joplin   JoplinConfig      `yaml:"joplin"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`

	// ExtractOnly stops the run after extraction (and snapshot, if
	// requested), skipping the upload stage entirely.
	ExtractOnly bool `yaml:"extract_only"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.Snapshot.Validate(); err != nil {
		return err
	}
	if !c.ExtractOnly {
		return c.Joplin.Validate()
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ArchiveConfig describes the input archive and the attachment layout.
type ArchiveConfig struct {
	// Path to the .nsx file. When empty, the working directory is
	// searched for *.nsx files and the first match is used.
	Path string `yaml:"path"`
	// MediaFolder names the attachment subdirectory created inside
	// every notebook directory.
	MediaFolder string `yaml:"media_folder"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MediaFolder, validation.Required),
	)
}

// JoplinConfig holds the Web Clipper endpoint and authorization token.
type JoplinConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Validate validates the Joplin configuration.
func (c *JoplinConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
	); err != nil {
		return err
	}
	if c.Token == "" {
		return fmt.Errorf("joplin: token is required for upload (set JOPLIN_TOKEN or use --extract-only)")
	}
	return nil
}

// SnapshotConfig controls the optional intermediate snapshot file.
type SnapshotConfig struct {
	Path string `yaml:"path"`
	// Save writes the snapshot after extraction; Load reads it instead
	// of extracting.
	Save bool `yaml:"save"`
	Load bool `yaml:"load"`
}

// Validate validates the snapshot configuration.
func (c *SnapshotConfig) Validate() error {
	if (c.Save || c.Load) && c.Path == "" {
		return fmt.Errorf("snapshot: path is required when save or load is set")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Archive: ArchiveConfig{
			MediaFolder: "attachments",
		},
		Joplin: JoplinConfig{
			BaseURL: joplin.DefaultBaseURL,
		},
		Snapshot: SnapshotConfig{
			Path: "nsx_content.json",
		},
	}
}
