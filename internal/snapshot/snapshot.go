// Package snapshot persists the normalized document between the
// extraction and upload stages, so a run can skip re-extraction.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/notebridge/nsx2joplin/internal/models"
)

// Save serializes the document to path as indented JSON.
func Save(path string, doc *models.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// Load reads a document previously written by Save.
func Load(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	return &doc, nil
}
