// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrNoArchive reports that a file carries no appended paqlet archive. The
// plain launcher binary hits this on every packer invocation, so callers
// must treat it as a mode signal, not a failure.
var ErrNoArchive = errors.New("no paqlet archive appended to file")

// Artifact is an opened packed artifact.
type Artifact struct {
	// Path is the absolute location the artifact was opened from.
	Path string
	// ModTime is the artifact file's modification timestamp, the cache
	// identity together with the metadata name.
	ModTime time.Time
	// Meta is the embedded metadata record.
	Meta Metadata

	file *os.File
	zr   *zip.Reader
}

// Open inspects the file at path for an appended archive and loads its
// metadata record. It returns ErrNoArchive (wrapped) when the file is a
// plain executable.
func Open(path string) (*Artifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%s: %w", abs, ErrNoArchive)
		}
		return nil, fmt.Errorf("reading archive in %s: %w", abs, err)
	}

	metaFile := findMember(zr, MetadataMember)
	if metaFile == nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", abs, ErrNoArchive)
	}

	meta, err := readMetadata(metaFile)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading metadata in %s: %w", abs, err)
	}

	return &Artifact{
		Path:    abs,
		ModTime: info.ModTime(),
		Meta:    meta,
		file:    f,
		zr:      zr,
	}, nil
}

// Close releases the underlying file.
func (a *Artifact) Close() error {
	return a.file.Close()
}

// Stamp returns the timestamp identity of the artifact, derived from its
// modification time: a UTC second-resolution string suitable for directory
// names. Equal stamps mean "same release" for caching purposes.
func (a *Artifact) Stamp() string {
	return a.ModTime.UTC().Format("20060102150405")
}

// ExtractPayload expands every payload member into destDir, preserving the
// orig/ namespace and each member's permission bits.
func (a *Artifact) ExtractPayload(destDir string) error {
	for _, member := range a.zr.File {
		if !strings.HasPrefix(member.Name, PayloadPrefix) {
			continue
		}
		if err := extractMember(member, destDir); err != nil {
			return err
		}
	}
	return nil
}

func findMember(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readMetadata(member *zip.File) (Metadata, error) {
	var meta Metadata
	rc, err := member.Open()
	if err != nil {
		return meta, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return meta, err
	}
	if err := toml.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func extractMember(member *zip.File, destDir string) error {
	// Guard against zip-slip: member names must stay inside destDir.
	rel := filepath.FromSlash(member.Name)
	if filepath.IsAbs(rel) || strings.Contains(member.Name, "..") {
		return fmt.Errorf("refusing to extract archive member with unsafe path %q", member.Name)
	}
	dest := filepath.Join(destDir, rel)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := member.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
