// SPDX-License-Identifier: MPL-2.0

// Package manifest parses and validates paqlet.cue project manifests.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paqlet/paqlet/pkg/fileset"
)

// DefaultFileName is the manifest filename looked up when the packer is
// pointed at a directory.
const DefaultFileName = "paqlet.cue"

type (
	// Exec describes how the payload is launched inside the provisioned
	// environment. Exactly one of Script, Module or Entrypoint is set.
	Exec struct {
		Script      string   `json:"script,omitempty"`
		Module      string   `json:"module,omitempty"`
		Entrypoint  []string `json:"entrypoint,omitempty"`
		DefaultArgs []string `json:"default_args,omitempty"`
	}

	// Restrictions are named preconditions checked at bootstrap time.
	Restrictions struct {
		MinimumPythonVersion string `json:"minimum_python_version,omitempty"`
	}

	// Manifest is the packing-time contract loaded from paqlet.cue.
	Manifest struct {
		Name               string       `json:"name"`
		BaseDir            string       `json:"basedir,omitempty"`
		Exec               Exec         `json:"exec"`
		Requirements       []string     `json:"requirements,omitempty"`
		Dependencies       []string     `json:"dependencies,omitempty"`
		Include            []string     `json:"include,omitempty"`
		Exclude            []string     `json:"exclude,omitempty"`
		UnpackRestrictions Restrictions `json:"unpack_restrictions,omitempty"`

		// FilePath is where the manifest was loaded from.
		FilePath string `json:"-"`
		// ResolvedBase is the absolute payload root after applying the
		// basedir default and resolving relative to the manifest dir.
		ResolvedBase string `json:"-"`
	}

	// ValidationError aggregates every problem found in a manifest, so the
	// user can fix all of them in one pass.
	ValidationError struct {
		FilePath string
		Problems []string
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", e.FilePath, e.Problems[0])
	}
	return fmt.Sprintf("%s: problem(s) found in the manifest:\n  - %s",
		e.FilePath, strings.Join(e.Problems, "\n  - "))
}

// validate runs the cross-field rules the schema cannot express and fills
// the resolved fields. It returns a *ValidationError listing every problem.
func (m *Manifest) validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	manifestDir := filepath.Dir(m.FilePath)

	// Resolve the payload root first so path containment checks below have
	// something to anchor on.
	base := m.BaseDir
	if base == "" {
		base = manifestDir
	} else if !filepath.IsAbs(base) {
		base = filepath.Join(manifestDir, base)
	}
	base = filepath.Clean(base)
	if info, err := os.Stat(base); err != nil {
		addf("'basedir': path %q not found", base)
	} else if !info.IsDir() {
		addf("'basedir': path %q must be a directory", base)
	}
	m.ResolvedBase = base

	// Exactly one execution mode.
	modes := 0
	if m.Exec.Script != "" {
		modes++
	}
	if m.Exec.Module != "" {
		modes++
	}
	if len(m.Exec.Entrypoint) > 0 {
		modes++
	}
	switch {
	case modes == 0:
		addf("'exec': need one of these subkeys: 'script', 'module', 'entrypoint'")
	case modes > 1:
		addf("'exec': only one of these subkeys is allowed: 'script', 'module', 'entrypoint'")
	}

	if m.Exec.Script != "" {
		if p := m.checkInsideBase("exec.script", m.Exec.Script, true); p != "" {
			addf("%s", p)
		}
	}
	if m.Exec.Module != "" {
		if p := m.checkInsideBase("exec.module", m.Exec.Module, false); p != "" {
			addf("%s", p)
		}
	}
	for i, req := range m.Requirements {
		if p := m.checkInsideBase(fmt.Sprintf("requirements[%d]", i), req, true); p != "" {
			addf("%s", p)
		}
	}

	for _, field := range []struct {
		name     string
		patterns []string
	}{{"include", m.Include}, {"exclude", m.Exclude}} {
		for i, pat := range field.patterns {
			if err := fileset.ValidatePattern(pat); err != nil {
				addf("'%s[%d]': %v", field.name, i, err)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{FilePath: m.FilePath, Problems: problems}
	}
	return nil
}

// checkInsideBase verifies that a manifest-declared relative path exists and
// resolves inside the payload root. It returns a problem description, or ""
// when the path is fine. mustBeFile additionally requires a regular file.
func (m *Manifest) checkInsideBase(field, rel string, mustBeFile bool) string {
	if filepath.IsAbs(rel) || filepath.IsAbs(filepath.FromSlash(rel)) {
		return fmt.Sprintf("'%s': path %q must be relative", field, rel)
	}

	abs := filepath.Clean(filepath.Join(m.ResolvedBase, filepath.FromSlash(rel)))
	relToBase, err := filepath.Rel(m.ResolvedBase, abs)
	if err != nil || relToBase == ".." || strings.HasPrefix(relToBase, ".."+string(filepath.Separator)) {
		return fmt.Sprintf("'%s': path %q must be inside the packed project", field, rel)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Sprintf("'%s': path %q not found", field, abs)
	}
	if mustBeFile && !info.Mode().IsRegular() {
		return fmt.Sprintf("'%s': path %q must be a file", field, abs)
	}
	return ""
}
