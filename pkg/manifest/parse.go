// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paqlet/paqlet/pkg/cueutil"
)

//go:embed manifest_schema.cue
var manifestSchema []byte

// Load reads and validates the manifest at path. When path is a directory,
// the default manifest filename is looked up inside it. Every failure mode
// (missing file, malformed CUE, schema violation, cross-field rule) comes
// back as a *ValidationError.
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ValidationError{FilePath: path, Problems: []string{err.Error()}}
	}

	if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
		abs = filepath.Join(abs, DefaultFileName)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ValidationError{
			FilePath: abs,
			Problems: []string{fmt.Sprintf("cannot read manifest: %v", err)},
		}
	}

	return ParseBytes(data, abs)
}

// ParseBytes parses manifest content from bytes. path is recorded as the
// manifest location and anchors all relative-path validation.
func ParseBytes(data []byte, path string) (*Manifest, error) {
	m, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Manifest", path)
	if err != nil {
		// cueutil already prefixes messages with the filename; strip it so
		// ValidationError does not print the path twice.
		msg := strings.TrimPrefix(err.Error(), path+": ")
		return nil, &ValidationError{FilePath: path, Problems: []string{msg}}
	}

	m.FilePath = path
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}
