// Package extract reads a Note Station archive and produces the
// normalized document consumed by the upload stage, materializing
// attachments and notebook directories on disk as it goes.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/notebridge/nsx2joplin/internal/archive"
	"github.com/notebridge/nsx2joplin/internal/checksum"
	"github.com/notebridge/nsx2joplin/internal/models"
	"github.com/notebridge/nsx2joplin/internal/sanitize"
)

// attachmentPrefix is an archive-internal name prefix stripped from
// attachment file names.
const attachmentPrefix = "ns_attach_image_"

// brokenImgRe matches the malformed image tag shape Note Station emits
// for embedded images, which is normalized to a plain <img src= before
// conversion.
var brokenImgRe = regexp.MustCompile(`<img class=[^>]*syno-notestation-image-object[^>]*src=[^>]*ref=`)

// HTMLConverter turns an HTML fragment into Markdown.
type HTMLConverter interface {
	Convert(ctx context.Context, html string) (string, error)
}

// Extractor walks one archive and builds a models.Document.
type Extractor struct {
	arc         archive.Reader
	conv        HTMLConverter
	workDir     string
	mediaFolder string
	logger      *slog.Logger
	warnings    []string
}

// New creates an Extractor. mediaFolder names the attachment
// subdirectory created inside every notebook directory; it is
// sanitized like any other path component.
func New(arc archive.Reader, conv HTMLConverter, workDir, mediaFolder string, logger *slog.Logger) *Extractor {
	return &Extractor{
		arc:         arc,
		conv:        conv,
		workDir:     workDir,
		mediaFolder: sanitize.Clean(mediaFolder),
		logger:      logger,
	}
}

// Warnings returns the data-quality warnings collected during the last
// Extract call, such as notes dropped for missing parent notebooks.
func (e *Extractor) Warnings() []string {
	return e.warnings
}

// Extract reads the manifest and converts every notebook and note into
// the normalized document. Notebook directories are allocated for all
// notebooks before the first note is processed, because notes join to
// notebooks by identifier lookup.
func (e *Extractor) Extract(ctx context.Context) (*models.Document, error) {
	manifest, err := archive.ReadManifest(e.arc)
	if err != nil {
		return nil, fmt.Errorf("extract: read manifest: %w", err)
	}

	e.warnings = nil
	doc := &models.Document{}
	index := make(map[string]*models.Notebook, len(manifest.Notebook))

	for _, nbID := range manifest.Notebook {
		nb, err := e.extractNotebook(nbID)
		if err != nil {
			return nil, err
		}
		doc.Notebooks = append(doc.Notebooks, *nb)
		index[nbID] = nb
	}

	for i, noteID := range manifest.Note {
		e.logger.Info("reading note",
			slog.Int("index", i+1),
			slog.Int("total", len(manifest.Note)),
			slog.String("id", noteID))

		note, err := e.extractNote(ctx, noteID, index)
		if err != nil {
			return nil, err
		}
		if note == nil {
			continue
		}
		doc.Notes = append(doc.Notes, *note)
	}

	return doc, nil
}

type notebookRecord struct {
	Title string `json:"title"`
	Ctime int64  `json:"ctime"`
}

func (e *Extractor) extractNotebook(nbID string) (*models.Notebook, error) {
	data, err := e.arc.ReadMember(nbID)
	if err != nil {
		return nil, fmt.Errorf("extract: notebook %s: %w", nbID, err)
	}
	var rec notebookRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("extract: notebook %s: %w", nbID, err)
	}

	title := rec.Title
	if title == "" {
		title = "Untitled"
	}

	e.logger.Info("reading notebook", slog.String("title", title))

	path := e.allocateDir(sanitize.Clean(title))
	mediaPath := filepath.Join(path, e.mediaFolder)
	if err := os.MkdirAll(mediaPath, 0o755); err != nil {
		return nil, fmt.Errorf("extract: create notebook dirs: %w", err)
	}

	return &models.Notebook{
		ID:        nbID,
		Title:     title,
		Ctime:     rec.Ctime,
		Mtime:     rec.Ctime,
		Path:      path,
		MediaPath: mediaPath,
	}, nil
}

// allocateDir picks a directory name under workDir that does not exist
// yet, appending _1, _2, … when the sanitized title collides with an
// existing directory.
func (e *Extractor) allocateDir(base string) string {
	path := filepath.Join(e.workDir, base)
	for n := 1; dirExists(path); n++ {
		path = filepath.Join(e.workDir, base+"_"+strconv.Itoa(n))
	}
	return path
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

type noteRecord struct {
	Title      string          `json:"title"`
	ParentID   string          `json:"parent_id"`
	Content    string          `json:"content"`
	Attachment json.RawMessage `json:"attachment"`
	Tag        []string        `json:"tag"`
	SourceURL  string          `json:"source_url"`
	Ctime      int64           `json:"ctime"`
	Mtime      int64           `json:"mtime"`
	Latitude   json.RawMessage `json:"latitude"`
	Longitude  json.RawMessage `json:"longitude"`
}

// extractNote builds one note. A nil note with nil error means the
// note was dropped for data-quality reasons and recorded as a warning.
func (e *Extractor) extractNote(ctx context.Context, noteID string, index map[string]*models.Notebook) (*models.Note, error) {
	data, err := e.arc.ReadMember(noteID)
	if err != nil {
		return nil, fmt.Errorf("extract: note %s: %w", noteID, err)
	}
	var rec noteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("extract: note %s: %w", noteID, err)
	}

	title := rec.Title
	if title == "" {
		title = "Untitled"
	}

	parent, ok := index[rec.ParentID]
	if !ok {
		w := fmt.Sprintf("note %s (%q) references unknown notebook %q, dropped", noteID, title, rec.ParentID)
		e.warnings = append(e.warnings, w)
		e.logger.Warn("dropping note with unresolved parent notebook",
			slog.String("id", noteID),
			slog.String("title", title),
			slog.String("parent_id", rec.ParentID))
		return nil, nil
	}

	html := brokenImgRe.ReplaceAllString(rec.Content, `<img src=`)
	content, err := e.conv.Convert(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("extract: note %s (%q): %w", noteID, title, err)
	}

	attachments, err := e.extractAttachments(rec.Attachment, parent)
	if err != nil {
		return nil, fmt.Errorf("extract: note %s (%q): %w", noteID, title, err)
	}

	return &models.Note{
		ID:          noteID,
		ParentNbID:  rec.ParentID,
		Title:       title,
		Content:     content,
		Attachments: attachments,
		Tags:        rec.Tag,
		SourceURL:   rec.SourceURL,
		Ctime:       rec.Ctime,
		Mtime:       rec.Mtime,
		Latitude:    rawJSONString(rec.Latitude),
		Longitude:   rawJSONString(rec.Longitude),
	}, nil
}

type attachmentRecord struct {
	Name string `json:"name"`
	MD5  string `json:"md5"`
	Ref  string `json:"ref"`
	Type string `json:"type"`
}

// extractAttachments decodes the note's attachment object preserving
// its declaration order, writes every resolvable payload into the
// notebook's media directory, and returns the surviving records.
// A nil input (no attachment key) yields nil, distinct from a present
// map whose entries all failed to resolve.
func (e *Extractor) extractAttachments(raw json.RawMessage, parent *models.Notebook) ([]models.Attachment, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	attachments := []models.Attachment{}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // opening brace
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
		key, _ := keyTok.(string)
		var rec attachmentRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode attachment %s: %w", key, err)
		}

		name := strings.ReplaceAll(sanitize.Clean(rec.Name), attachmentPrefix, "")

		if rec.MD5 == "" {
			e.logger.Warn("attachment has no content hash, skipped",
				slog.String("attachment", key), slog.String("name", name))
			continue
		}
		payload, err := e.arc.ReadMember("file_" + rec.MD5)
		if errors.Is(err, archive.ErrMemberNotFound) {
			e.logger.Warn("attachment payload missing from archive, skipped",
				slog.String("attachment", key), slog.String("name", name))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", name, err)
		}
		if sum := checksum.MD5(payload); sum != rec.MD5 {
			e.logger.Warn("attachment payload hash mismatch",
				slog.String("attachment", key),
				slog.String("name", name),
				slog.String("want", rec.MD5),
				slog.String("got", sum))
		}
		if err := os.WriteFile(filepath.Join(parent.MediaPath, name), payload, 0o644); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", name, err)
		}

		attachments = append(attachments, models.Attachment{
			ID:   key,
			MD5:  rec.MD5,
			Name: name,
			Ref:  rec.Ref,
			Type: rec.Type,
		})
	}

	return attachments, nil
}

// rawJSONString renders a scalar JSON value as a plain string, so that
// coordinates stored as either numbers or strings pass through intact.
func rawJSONString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
