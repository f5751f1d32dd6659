// Package models defines the domain types for the migration pipeline.
package models

// Document is the normalized output of the extraction stage and the
// input of the upload stage. Its JSON form is the snapshot format.
type Document struct {
	Notebooks []Notebook `json:"notebooks"`
	Notes     []Note     `json:"notes"`
}

// Notebook is a Note Station notebook with the local directories
// allocated for its exported assets.
type Notebook struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Ctime int64  `json:"ctime"`
	Mtime int64  `json:"mtime"`
	// Path is the directory allocated for this notebook, unique on disk
	// even when titles collide. MediaPath is its attachment subdirectory.
	Path      string `json:"path"`
	MediaPath string `json:"media_path"`
}

// Note is a single note after HTML-to-Markdown conversion.
// Tags and Attachments are nil when the source record lacked the key,
// which is distinct from present-but-empty.
type Note struct {
	ID         string `json:"id"`
	ParentNbID string `json:"parent_nb_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	// Attachments and Tags marshal as null when absent from the source,
	// keeping the snapshot faithful to the "key missing" case.
	Attachments []Attachment `json:"attachment"`
	Tags        []string     `json:"tag"`
	SourceURL   string       `json:"source_url"`
	Ctime       int64        `json:"ctime"`
	Mtime       int64        `json:"mtime"`
	Latitude    string       `json:"latitude"`
	Longitude   string       `json:"longitude"`
}

// Attachment is one binary attached to a note. MD5 keys the payload
// inside the archive; Name is already sanitized for the file system.
// ResourceID is assigned by the remote service during upload.
type Attachment struct {
	ID         string `json:"id"`
	MD5        string `json:"md5"`
	Name       string `json:"name"`
	Ref        string `json:"ref,omitempty"`
	Type       string `json:"type"`
	ResourceID string `json:"joplin_resource_id,omitempty"`
}
