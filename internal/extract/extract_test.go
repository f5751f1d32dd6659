package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notebridge/nsx2joplin/internal/archive"
	"github.com/notebridge/nsx2joplin/internal/testutil"
)

// fakeArchive satisfies archive.Reader from an in-memory member map.
type fakeArchive map[string]string

func (f fakeArchive) ReadMember(name string) ([]byte, error) {
	data, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("fake: %w: %s", archive.ErrMemberNotFound, name)
	}
	return []byte(data), nil
}

func (f fakeArchive) Members() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	return names
}

// passthroughConverter returns the HTML unchanged, trimmed.
type passthroughConverter struct{}

func (passthroughConverter) Convert(_ context.Context, html string) (string, error) {
	return strings.TrimSpace(html), nil
}

func newTestExtractor(t *testing.T, arc fakeArchive) *Extractor {
	t.Helper()
	return New(arc, passthroughConverter{}, t.TempDir(), "attachments", testutil.Logger())
}

func TestExtract_SingleNotebookAndNote(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"My Notes","ctime":1600000000}`,
		"n1":          `{"title":"Hello","parent_id":"nb1","content":"<p>hi</p>","ctime":1600000001,"mtime":1600000002}`,
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Notebooks) != 1 || doc.Notebooks[0].Title != "My Notes" {
		t.Fatalf("notebooks = %+v", doc.Notebooks)
	}
	nb := doc.Notebooks[0]
	if nb.Mtime != nb.Ctime {
		t.Errorf("notebook mtime = %d, want ctime %d", nb.Mtime, nb.Ctime)
	}
	if len(doc.Notes) != 1 {
		t.Fatalf("notes = %+v", doc.Notes)
	}
	n := doc.Notes[0]
	if n.Title != "Hello" || n.ParentNbID != "nb1" || n.Content != "<p>hi</p>" {
		t.Errorf("note = %+v", n)
	}
	if n.Tags != nil {
		t.Errorf("missing tag key should yield nil Tags, got %v", n.Tags)
	}
	if n.Attachments != nil {
		t.Errorf("missing attachment key should yield nil Attachments, got %v", n.Attachments)
	}
}

func TestExtract_UntitledDefaults(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"","ctime":1}`,
		"n1":          `{"parent_id":"nb1","content":""}`,
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Notebooks[0].Title != "Untitled" {
		t.Errorf("notebook title = %q, want Untitled", doc.Notebooks[0].Title)
	}
	if doc.Notes[0].Title != "Untitled" {
		t.Errorf("note title = %q, want Untitled", doc.Notes[0].Title)
	}
}

func TestExtract_DirCollisionSuffixes(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1","nb2","nb3"],"note":[]}`,
		"nb1":         `{"title":"Same","ctime":1}`,
		"nb2":         `{"title":"Same","ctime":2}`,
		"nb3":         `{"title":"Same","ctime":3}`,
	}
	workDir := t.TempDir()
	e := New(arc, passthroughConverter{}, workDir, "attachments", testutil.Logger())

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	wantDirs := []string{"Same", "Same_1", "Same_2"}
	for i, want := range wantDirs {
		got := filepath.Base(doc.Notebooks[i].Path)
		if got != want {
			t.Errorf("notebook %d dir = %q, want %q", i, got, want)
		}
		if _, err := os.Stat(doc.Notebooks[i].MediaPath); err != nil {
			t.Errorf("media dir missing for notebook %d: %v", i, err)
		}
	}
}

func TestExtract_DropsNoteWithUnknownParent(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1","n2"]}`,
		"nb1":         `{"title":"Kept","ctime":1}`,
		"n1":          `{"title":"orphan","parent_id":"missing","content":""}`,
		"n2":          `{"title":"kept","parent_id":"nb1","content":""}`,
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Notes) != 1 || doc.Notes[0].Title != "kept" {
		t.Fatalf("notes = %+v", doc.Notes)
	}
	if len(e.Warnings()) != 1 {
		t.Fatalf("warnings = %v, want 1", e.Warnings())
	}
	if !strings.Contains(e.Warnings()[0], "missing") {
		t.Errorf("warning should name the unknown notebook id: %q", e.Warnings()[0])
	}
}

func TestExtract_AttachmentRoundTrip(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"Book","ctime":1}`,
		"n1": `{"title":"pic","parent_id":"nb1","content":"",
			"attachment":{
				"ak1":{"name":"ns_attach_image_photo.png","md5":"abc","ref":"r1","type":"image"},
				"ak2":{"name":"gone.bin","md5":"nope","type":"binary"},
				"ak3":{"name":"nohash.bin","type":"binary"}
			}}`,
		"file_abc": "PNGDATA",
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	atts := doc.Notes[0].Attachments
	if len(atts) != 1 {
		t.Fatalf("attachments = %+v, want exactly the resolvable one", atts)
	}
	a := atts[0]
	if a.Name != "photo.png" {
		t.Errorf("name = %q, want prefix stripped", a.Name)
	}
	if a.ID != "ak1" || a.MD5 != "abc" || a.Type != "image" || a.Ref != "r1" {
		t.Errorf("attachment = %+v", a)
	}
	written, err := os.ReadFile(filepath.Join(doc.Notebooks[0].MediaPath, "photo.png"))
	if err != nil {
		t.Fatalf("attachment file: %v", err)
	}
	if string(written) != "PNGDATA" {
		t.Errorf("payload = %q", written)
	}
}

func TestExtract_AttachmentOrderPreserved(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"Book","ctime":1}`,
		"n1": `{"title":"many","parent_id":"nb1","content":"",
			"attachment":{
				"z":{"name":"first.png","md5":"m1","type":"image"},
				"a":{"name":"second.png","md5":"m2","type":"image"},
				"m":{"name":"third.png","md5":"m3","type":"image"}
			}}`,
		"file_m1": "1",
		"file_m2": "2",
		"file_m3": "3",
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	atts := doc.Notes[0].Attachments
	want := []string{"first.png", "second.png", "third.png"}
	if len(atts) != len(want) {
		t.Fatalf("attachments = %+v", atts)
	}
	for i, name := range want {
		if atts[i].Name != name {
			t.Errorf("attachment %d = %q, want %q (declaration order)", i, atts[i].Name, name)
		}
	}
}

func TestExtract_AllAttachmentsFailedIsEmptyNotNil(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"Book","ctime":1}`,
		"n1":          `{"title":"x","parent_id":"nb1","content":"","attachment":{"ak":{"name":"gone","md5":"missing","type":"binary"}}}`,
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	atts := doc.Notes[0].Attachments
	if atts == nil || len(atts) != 0 {
		t.Errorf("attachments = %#v, want empty non-nil slice", atts)
	}
}

func TestExtract_RepairsBrokenImgTag(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"Book","ctime":1}`,
		"n1":          `{"title":"img","parent_id":"nb1","content":"<img class=\"syno-notestation-image-object\" src=\"webman/3rdparty/NoteStation/images/transparent.gif\" border=\"0\" width=\"400\" ref=\"abc\" />"}`,
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got := doc.Notes[0].Content
	if !strings.HasPrefix(got, `<img src="abc"`) {
		t.Errorf("content = %q, want normalized <img src=", got)
	}
}

func TestExtract_FromRealZip(t *testing.T) {
	path := testutil.BuildZip(t, map[string]string{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"Zipped","ctime":5}`,
		"n1":          `{"title":"inside","parent_id":"nb1","content":"<p>zip</p>"}`,
	})
	z, err := archive.OpenZip(path)
	if err != nil {
		t.Fatalf("OpenZip: %v", err)
	}
	defer z.Close()

	e := New(z, passthroughConverter{}, t.TempDir(), "attachments", testutil.Logger())
	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Notes) != 1 || doc.Notes[0].Content != "<p>zip</p>" {
		t.Errorf("notes = %+v", doc.Notes)
	}
}

func TestExtract_TagsPreserved(t *testing.T) {
	arc := fakeArchive{
		"config.json": `{"notebook":["nb1"],"note":["n1"]}`,
		"nb1":         `{"title":"Book","ctime":1}`,
		"n1":          `{"title":"t","parent_id":"nb1","content":"","tag":["work","todo"]}`,
	}
	e := newTestExtractor(t, arc)

	doc, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	tags := doc.Notes[0].Tags
	if len(tags) != 2 || tags[0] != "work" || tags[1] != "todo" {
		t.Errorf("tags = %v", tags)
	}
}
