// Package upload recreates the normalized document on a remote note
// service, one call at a time.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/notebridge/nsx2joplin/internal/models"
)

// Service is the capability the driver needs from the remote note
// service. The real implementation is the joplin client; tests use a
// recorder fake.
type Service interface {
	CreateFolder(ctx context.Context, title string) (string, error)
	CreateResource(ctx context.Context, filePath, title string) (string, error)
	CreateNote(ctx context.Context, n NewNote) error
}

// NewNote mirrors the remote note creation request. Timestamps are
// epoch milliseconds; Tags is comma-joined, empty when absent.
type NewNote struct {
	Title     string
	Body      string
	ParentID  string
	Tags      string
	CreatedMS int64
	UpdatedMS int64
}

// placeholderRe matches an unresolved image reference left behind by
// the HTML conversion. Non-greedy, so a second placeholder on the same
// line is left for the next attachment.
var placeholderRe = regexp.MustCompile(`!\[\]\(.*?\)`)

// PauseFor is the rate-limit policy for the remote service, keyed on
// the 1-indexed global count of uploaded notes. Every 1000th note earns
// a 300 s pause, every other 500th a 120 s pause.
func PauseFor(index int) time.Duration {
	switch {
	case index > 0 && index%1000 == 0:
		return 300 * time.Second
	case index > 0 && index%500 == 0:
		return 120 * time.Second
	default:
		return 0
	}
}

// Driver uploads a document through a Service, strictly sequentially.
type Driver struct {
	svc    Service
	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewDriver creates a Driver. sleep may be nil, in which case
// time.Sleep is used; tests inject a recorder.
func NewDriver(svc Service, sleep func(time.Duration), logger *slog.Logger) *Driver {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Driver{svc: svc, sleep: sleep, logger: logger}
}

// Upload recreates every notebook as a remote folder and every note as
// a remote note, in document order. The first failed remote call ends
// the run.
func (d *Driver) Upload(ctx context.Context, doc *models.Document) error {
	uploaded := 0
	for _, nb := range doc.Notebooks {
		folderID, err := d.svc.CreateFolder(ctx, nb.Title)
		if err != nil {
			return fmt.Errorf("upload: notebook %q: %w", nb.Title, err)
		}

		notes := notesOf(doc, nb.ID)
		for i, note := range notes {
			d.logger.Info("writing note",
				slog.Int("index", i+1),
				slog.Int("total", len(notes)),
				slog.String("notebook", nb.Title),
				slog.String("title", note.Title))

			if err := d.uploadNote(ctx, folderID, nb.MediaPath, note); err != nil {
				return fmt.Errorf("upload: note %q: %w", note.Title, err)
			}

			uploaded++
			if pause := PauseFor(uploaded); pause > 0 {
				d.logger.Info("pausing to respect the web clipper rate limit",
					slog.Int("uploaded", uploaded),
					slog.Duration("pause", pause))
				d.sleep(pause)
			}
		}
	}
	return nil
}

// notesOf filters the document's notes down to one notebook,
// preserving document order.
func notesOf(doc *models.Document, nbID string) []models.Note {
	var out []models.Note
	for _, n := range doc.Notes {
		if n.ParentNbID == nbID {
			out = append(out, n)
		}
	}
	return out
}

func (d *Driver) uploadNote(ctx context.Context, folderID, mediaPath string, note models.Note) error {
	body := note.Content
	if len(note.Attachments) > 0 {
		rewritten, resolved, err := d.uploadAttachments(ctx, mediaPath, note.Content, note.Attachments)
		if err != nil {
			return err
		}
		body = rewritten
		for _, att := range resolved {
			d.logger.Debug("uploaded resource",
				slog.String("name", att.Name),
				slog.String("resource_id", att.ResourceID))
		}
	}

	return d.svc.CreateNote(ctx, NewNote{
		Title:     note.Title,
		Body:      body,
		ParentID:  folderID,
		Tags:      strings.Join(note.Tags, ","),
		CreatedMS: note.Ctime * 1000,
		UpdatedMS: note.Mtime * 1000,
	})
}

// uploadAttachments uploads every attachment as a remote resource and
// rewrites the body to reference the assigned resource ids. It returns
// a new body and a new attachment slice; the inputs are not mutated.
//
// Image attachments replace the first unresolved ![]() placeholder, in
// declaration order. Binary attachments are prepended as links, so the
// last-processed binary ends up first in the final body.
func (d *Driver) uploadAttachments(ctx context.Context, mediaPath, body string, atts []models.Attachment) (string, []models.Attachment, error) {
	resolved := make([]models.Attachment, len(atts))
	for i, att := range atts {
		resourceID, err := d.svc.CreateResource(ctx, filepath.Join(mediaPath, att.Name), att.Name)
		if err != nil {
			return "", nil, fmt.Errorf("attachment %q: %w", att.Name, err)
		}
		att.ResourceID = resourceID
		resolved[i] = att

		switch att.Type {
		case "image":
			body = replaceFirstPlaceholder(body, att.Name, resourceID)
		case "binary":
			body = fmt.Sprintf("[%s](:/%s)\n\n", att.Name, resourceID) + body
		}
	}
	return body, resolved, nil
}

// replaceFirstPlaceholder swaps the first ![]() occurrence for an
// image reference to the uploaded resource. Later occurrences are left
// for later attachments.
func replaceFirstPlaceholder(body, name, resourceID string) string {
	loc := placeholderRe.FindStringIndex(body)
	if loc == nil {
		return body
	}
	return body[:loc[0]] + fmt.Sprintf("![%s](:/%s)", name, resourceID) + body[loc[1]:]
}
