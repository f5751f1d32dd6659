// Package archive provides lookup access to the members of a Note
// Station .nsx export container.
package archive

import (
	"encoding/json"
	"errors"
)

// ErrMemberNotFound reports a lookup for a member the archive does not
// contain. Callers use it to tell recoverable misses (a dangling
// attachment hash) from real read failures.
var ErrMemberNotFound = errors.New("member not found")

// Reader is the capability the extractor needs from an archive:
// member lookup by name, no eager materialization.
type Reader interface {
	// ReadMember returns the raw bytes of the named member.
	ReadMember(name string) ([]byte, error)
	// Members returns the names of all members in the archive.
	Members() []string
}

// manifestMember is the archive's top-level table of contents.
const manifestMember = "config.json"

// Manifest lists the notebook and note member identifiers of an
// archive, in export order.
type Manifest struct {
	Notebook []string `json:"notebook"`
	Note     []string `json:"note"`
}

// ReadManifest parses the archive's config.json member.
func ReadManifest(r Reader) (*Manifest, error) {
	data, err := r.ReadMember(manifestMember)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
