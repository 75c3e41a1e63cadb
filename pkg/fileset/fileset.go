// SPDX-License-Identifier: MPL-2.0

// Package fileset expands include/exclude glob patterns against a project
// tree into a concrete, deterministically ordered file list.
package fileset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultInclude is the include list used when the manifest declares none:
// everything under the base directory.
var DefaultInclude = []string{"**"}

// Resolve walks baseDir and returns the relative slash-separated paths of
// all regular files selected by the include patterns and not removed by the
// exclude patterns. Include patterns are applied first (union of matches,
// directories expanded recursively), then any path matching an exclude
// pattern, directly or through an ancestor directory, is dropped.
//
// The result is sorted lexicographically, so the same tree and patterns
// produce the same list on every platform. A pattern matching nothing is
// not an error, and neither is an empty result.
func Resolve(baseDir string, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, patterns := range [][]string{include, exclude} {
		for _, p := range patterns {
			if err := ValidatePattern(p); err != nil {
				return nil, err
			}
		}
	}

	var selected []string
	err := filepath.WalkDir(baseDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(baseDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		ok, err := anyMatch(include, rel)
		if err != nil || !ok {
			return err
		}
		excluded, err := anyMatch(exclude, rel)
		if err != nil {
			return err
		}
		if !excluded {
			selected = append(selected, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving file set under %s: %w", baseDir, err)
	}

	sort.Strings(selected)
	return selected, nil
}

// anyMatch reports whether any pattern covers the path, directly or through
// an ancestor directory.
func anyMatch(patterns []string, rel string) (bool, error) {
	for _, p := range patterns {
		ok, err := matchesWithAncestors(p, strings.TrimPrefix(rel, "./"))
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}
