package archive

import (
	"archive/zip"
	"fmt"
	"io"
)

// Zip implements Reader over a zip container on disk.
type Zip struct {
	rc    *zip.ReadCloser
	index map[string]*zip.File
	names []string
}

// OpenZip opens the archive at path and indexes its members.
func OpenZip(path string) (*Zip, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	z := &Zip{
		rc:    rc,
		index: make(map[string]*zip.File, len(rc.File)),
		names: make([]string, 0, len(rc.File)),
	}
	for _, f := range rc.File {
		z.index[f.Name] = f
		z.names = append(z.names, f.Name)
	}
	return z, nil
}

// ReadMember returns the decompressed bytes of the named member.
func (z *Zip) ReadMember(name string) ([]byte, error) {
	f, ok := z.index[name]
	if !ok {
		return nil, fmt.Errorf("archive: %w: %s", ErrMemberNotFound, name)
	}
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open member %s: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("archive: read member %s: %w", name, err)
	}
	return data, nil
}

// Members returns the member names in container order.
func (z *Zip) Members() []string {
	return z.names
}

// Close releases the underlying file handle.
func (z *Zip) Close() error {
	return z.rc.Close()
}
