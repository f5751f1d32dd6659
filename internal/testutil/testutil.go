// Package testutil provides shared test helpers.
package testutil

import (
	"archive/zip"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// Logger returns a quiet slog logger for tests, surfacing only errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// InstallPandoc puts a fake pandoc script reporting the given version
// on PATH, replacing the real search path for the test's duration.
func InstallPandoc(t *testing.T, version string) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\necho 'pandoc " + version + "'\n"
	if err := os.WriteFile(filepath.Join(dir, "pandoc"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)
}

// BuildZip writes a zip file with the given members into a temp
// directory and returns its path.
func BuildZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.nsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range members {
		mw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}
