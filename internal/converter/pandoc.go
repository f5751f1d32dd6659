// Package converter turns Note Station HTML into Markdown by driving
// an external pandoc binary.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	probeTimeout   = 3 * time.Second
	convertTimeout = 20 * time.Second

	outputFormat = "markdown_strict+pipe_tables-raw_html"
)

// Pandoc converts HTML to Markdown via a pandoc subprocess. The input
// and output temp files are allocated once and reused for every call;
// this is only safe because conversions are strictly sequential.
type Pandoc struct {
	bin     string
	args    []string
	inPath  string
	outPath string
	logger  *slog.Logger
}

// Detect locates pandoc on the search path or in the current
// directory, probes its version, and builds the argument set for it.
// A missing binary is an error; a failed version probe is not — the
// modern argument set is used as a fallback.
func Detect(logger *slog.Logger) (*Pandoc, error) {
	bin, err := exec.LookPath("pandoc")
	if err != nil {
		info, statErr := os.Stat("pandoc")
		if statErr != nil || !info.Mode().IsRegular() {
			return nil, fmt.Errorf("converter: pandoc not found on PATH or in the current directory")
		}
		bin = "./pandoc"
	}

	in, err := os.CreateTemp("", "nsx2joplin-html-*")
	if err != nil {
		return nil, fmt.Errorf("converter: create temp input: %w", err)
	}
	in.Close()
	out, err := os.CreateTemp("", "nsx2joplin-md-*")
	if err != nil {
		return nil, fmt.Errorf("converter: create temp output: %w", err)
	}
	out.Close()

	p := &Pandoc{
		bin:     bin,
		inPath:  in.Name(),
		outPath: out.Name(),
		logger:  logger,
	}

	version, err := probeVersion(bin)
	if err != nil {
		logger.Warn("pandoc version probe failed, assuming a modern pandoc",
			slog.String("error", err.Error()))
	} else {
		logger.Info("found pandoc", slog.String("version", version))
	}
	p.args = argsForVersion(version)
	return p, nil
}

// Convert runs pandoc over html and returns the Markdown rendering.
// The subprocess is bounded by a 20 second timeout; exceeding it is an
// error, with no retry.
func (p *Pandoc) Convert(ctx context.Context, html string) (string, error) {
	if err := os.WriteFile(p.inPath, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("converter: write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	args := append(append([]string{}, p.args...), "-o", p.outPath, p.inPath)
	cmd := exec.CommandContext(ctx, p.bin, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("converter: pandoc timed out after %s", convertTimeout)
		}
		return "", fmt.Errorf("converter: pandoc: %w", err)
	}

	data, err := os.ReadFile(p.outPath)
	if err != nil {
		return "", fmt.Errorf("converter: read output: %w", err)
	}
	return string(data), nil
}

// Cleanup removes the reusable temp file pair.
func (p *Pandoc) Cleanup() {
	_ = os.Remove(p.inPath)
	_ = os.Remove(p.outPath)
}

// probeVersion runs `pandoc -v` and returns the version string from
// the first output line ("pandoc 2.19.2" → "2.19.2").
func probeVersion(bin string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "-v").Output()
	if err != nil {
		return "", fmt.Errorf("run pandoc -v: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	version := strings.TrimSpace(strings.TrimPrefix(line, "pandoc"))
	if version == "" {
		return "", fmt.Errorf("no version in %q", line)
	}
	return version, nil
}

// argsForVersion selects the pandoc flag set for the detected version.
// Three historical tiers: pre-1.16 uses --no-wrap, pre-1.19 uses
// --wrap=none, and anything newer also gets ATX heading anchors.
// An empty version (probe failure) selects the modern tier.
func argsForVersion(version string) []string {
	base := []string{"-f", "html", "-t", outputFormat}
	switch {
	case version != "" && versionLess(version, "1.16"):
		return append(base, "--no-wrap")
	case version != "" && versionLess(version, "1.19"):
		return append(base, "--wrap=none")
	default:
		return append(base, "--wrap=none", "--atx-headers")
	}
}

// versionLess reports whether dotted version a sorts before b,
// comparing numeric components and treating missing components as zero.
// Non-numeric components compare as zero.
func versionLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}
