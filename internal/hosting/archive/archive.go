// Package archive opens uploaded zip archives and locates engine marker
// files inside them.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrBadArchive marks uploads that cannot be parsed at all: truncated or
// non-zip bytes, or an unusable charset hint. These are caller errors, not
// server faults.
var ErrBadArchive = errors.New("bad archive")

// resourceForkPrefix marks macOS resource-fork pseudo-directories. Entries
// under it never count as markers.
const resourceForkPrefix = "__MACOSX/"

type Entry struct {
	Path string
	Dir  bool

	file *zip.File
}

// Archive is a read-only view of an uploaded zip. Entry paths are already
// decoded: legacy archives store filenames in a regional charset and flag
// them as non-UTF-8; those names are transcoded once at open time so that
// validation and extraction agree on paths.
type Archive struct {
	entries []Entry
}

// Open parses the archive bytes. charset names an IANA character set used
// to decode entry names that are not flagged UTF-8; empty means names are
// taken as-is.
func Open(data []byte, charset string) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	decode := func(name string) (string, error) { return name, nil }
	if charset != "" {
		enc, err := ianaindex.IANA.Encoding(charset)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("%w: unknown charset %q", ErrBadArchive, charset)
		}
		dec := enc.NewDecoder()
		decode = func(name string) (string, error) {
			out, err := dec.String(name)
			if err != nil {
				return "", fmt.Errorf("decode entry name: %w", err)
			}
			return out, nil
		}
	}

	a := &Archive{entries: make([]Entry, 0, len(zr.File))}
	for _, f := range zr.File {
		name := f.Name
		if f.NonUTF8 {
			decoded, err := decode(name)
			if err != nil {
				return nil, err
			}
			name = decoded
		}
		name = strings.TrimPrefix(name, "./")
		a.entries = append(a.entries, Entry{
			Path: name,
			Dir:  f.FileInfo().IsDir() || strings.HasSuffix(name, "/"),
			file: f,
		})
	}
	return a, nil
}

func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Extract writes the full archive content under dst. Entry paths escaping
// dst are rejected.
func (a *Archive) Extract(dst string) error {
	for _, e := range a.entries {
		rel := filepath.FromSlash(strings.TrimSuffix(e.Path, "/"))
		if rel == "" {
			continue
		}
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("unsafe entry path %q", e.Path)
		}
		target := filepath.Join(dst, rel)
		if e.Dir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(e.file, target); err != nil {
			return fmt.Errorf("extract %s: %w", e.Path, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Close()
}
