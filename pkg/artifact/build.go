// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/paqlet/paqlet/pkg/manifest"
	"github.com/paqlet/paqlet/pkg/platform"
	"github.com/pelletier/go-toml/v2"
)

// memberModTime is the fixed timestamp stamped on every archive member, so
// that identical inputs produce identical archive bytes. Build freshness is
// carried by the metadata built_at field and the output file's mtime.
var memberModTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// BuildError reports an I/O failure while assembling the artifact, naming
// the offending path.
type BuildError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("building artifact: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error { return e.Err }

// Build assembles the artifact at outPath: the launcher bytes first, then
// the appended archive with the metadata record and the resolved payload
// files (relative slash paths, as produced by fileset.Resolve).
//
// The output is written to a temporary file and renamed into place, so a
// failed build never leaves a partial artifact at the final path.
func Build(m *manifest.Manifest, files []string, launcher io.Reader, outPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".paqlet-build-*")
	if err != nil {
		return &BuildError{Path: outPath, Err: err}
	}
	tmpPath := tmp.Name()
	// Best-effort cleanup; after a successful rename there is nothing left
	// to remove.
	defer os.Remove(tmpPath)
	defer tmp.Close()

	headLen, err := io.Copy(tmp, launcher)
	if err != nil {
		return &BuildError{Path: outPath, Err: fmt.Errorf("writing launcher: %w", err)}
	}

	zw := zip.NewWriter(tmp)
	zw.SetOffset(headLen)

	meta := MetadataFromManifest(m, time.Now())
	if err := writeMetadataMember(zw, meta); err != nil {
		return &BuildError{Path: outPath, Err: err}
	}

	for _, rel := range files {
		if err := writePayloadMember(zw, m.ResolvedBase, rel); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return &BuildError{Path: outPath, Err: err}
	}
	if err := tmp.Chmod(platform.ExecutableMode()); err != nil {
		return &BuildError{Path: outPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &BuildError{Path: outPath, Err: err}
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return &BuildError{Path: outPath, Err: err}
	}
	return nil
}

func writeMetadataMember(zw *zip.Writer, meta Metadata) error {
	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("serializing metadata: %w", err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     MetadataMember,
		Method:   zip.Deflate,
		Modified: memberModTime,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writePayloadMember(zw *zip.Writer, baseDir, rel string) error {
	src := filepath.Join(baseDir, filepath.FromSlash(rel))
	f, err := os.Open(src)
	if err != nil {
		return &BuildError{Path: src, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &BuildError{Path: src, Err: err}
	}

	hdr := &zip.FileHeader{
		Name:     PayloadPrefix + rel,
		Method:   zip.Deflate,
		Modified: memberModTime,
	}
	hdr.SetMode(info.Mode().Perm())

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return &BuildError{Path: src, Err: err}
	}
	if _, err := io.Copy(w, f); err != nil {
		return &BuildError{Path: src, Err: err}
	}
	return nil
}
