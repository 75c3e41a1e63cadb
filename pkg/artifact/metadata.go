// SPDX-License-Identifier: MPL-2.0

// Package artifact builds and reads paqlet artifacts: a copy of the paqlet
// launcher executable with a ZIP archive appended, holding the payload tree
// and a metadata record. The file is simultaneously a runnable binary and a
// valid ZIP (the central directory is located from the end of the file).
package artifact

import (
	"time"

	"github.com/paqlet/paqlet/pkg/manifest"
)

const (
	// MetadataMember is the archive member holding the metadata record.
	MetadataMember = "metadata.toml"

	// PayloadPrefix is the archive namespace for the packed project files.
	PayloadPrefix = "orig/"
)

// Execution style values stored in the metadata record.
const (
	ExecScript     = "script"
	ExecModule     = "module"
	ExecEntrypoint = "entrypoint"
)

// RestrictionMinimumPythonVersion is the stable name of the interpreter
// version restriction, as used in the ignore-list override.
const RestrictionMinimumPythonVersion = "minimum-python-version"

// Metadata is the subset of manifest fields the bootstrap needs at run
// time, serialized as TOML inside the archive.
type Metadata struct {
	Name             string   `toml:"name"`
	ExecStyle        string   `toml:"exec_style"`
	ExecValue        []string `toml:"exec_value"`
	DefaultArgs      []string `toml:"default_args"`
	RequirementFiles []string `toml:"requirement_files"`
	Dependencies     []string `toml:"dependencies"`

	// UnpackRestrictions maps stable restriction names to their configured
	// values, e.g. "minimum-python-version" -> "3.8".
	UnpackRestrictions map[string]string `toml:"unpack_restrictions,omitempty"`

	// BuiltAt is set to the build time by the archive builder. It is
	// informational (surfaced by the info action); cache identity uses the
	// artifact file's modification timestamp.
	BuiltAt time.Time `toml:"built_at"`
}

// MetadataFromManifest derives the embedded metadata record from a
// validated manifest.
func MetadataFromManifest(m *manifest.Manifest, builtAt time.Time) Metadata {
	meta := Metadata{
		Name:             m.Name,
		DefaultArgs:      m.Exec.DefaultArgs,
		RequirementFiles: m.Requirements,
		Dependencies:     m.Dependencies,
		BuiltAt:          builtAt.UTC(),
	}

	switch {
	case m.Exec.Script != "":
		meta.ExecStyle = ExecScript
		meta.ExecValue = []string{m.Exec.Script}
	case m.Exec.Module != "":
		meta.ExecStyle = ExecModule
		meta.ExecValue = []string{m.Exec.Module}
	default:
		meta.ExecStyle = ExecEntrypoint
		meta.ExecValue = m.Exec.Entrypoint
	}

	if v := m.UnpackRestrictions.MinimumPythonVersion; v != "" {
		meta.UnpackRestrictions = map[string]string{
			RestrictionMinimumPythonVersion: v,
		}
	}
	return meta
}
