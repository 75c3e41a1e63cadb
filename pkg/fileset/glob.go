// SPDX-License-Identifier: MPL-2.0

package fileset

import (
	"fmt"
	"path"
	"strings"
)

// The glob grammar is a portability contract: patterns always use forward
// slashes and are case-sensitive on every platform, so the same manifest
// resolves to the same file set on Linux, macOS and Windows.
//
// Grammar:
//   - `*`, `?` and `[...]` match within a single path segment, with
//     standard shell semantics (including `[a-z]` ranges and `[^...]`
//     negation as supported by path.Match).
//   - `**` as a whole segment matches zero or more segments, including
//     across directory boundaries.

// Match reports whether the slash-separated relative path name matches the
// pattern. It returns an error for a malformed pattern.
func Match(pattern, name string) (bool, error) {
	pat := splitPattern(pattern)
	return matchSegments(pat, strings.Split(name, "/"))
}

// ValidatePattern checks that a pattern is well-formed without matching
// anything.
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty pattern")
	}
	if strings.HasPrefix(pattern, "/") || strings.Contains(pattern, "\\") {
		return fmt.Errorf("pattern %q must be relative and use forward slashes", pattern)
	}
	for _, seg := range splitPattern(pattern) {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// splitPattern normalizes a pattern into segments, dropping a leading "./".
func splitPattern(pattern string) []string {
	pattern = strings.TrimPrefix(pattern, "./")
	return strings.Split(pattern, "/")
}

// matchSegments matches pattern segments against path segments, giving `**`
// its zero-or-more-segments meaning.
func matchSegments(pat, segs []string) (bool, error) {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true, nil
			}
			for i := 0; i <= len(segs); i++ {
				ok, err := matchSegments(pat[1:], segs[i:])
				if ok || err != nil {
					return ok, err
				}
			}
			return false, nil
		}
		if len(segs) == 0 {
			return false, nil
		}
		ok, err := path.Match(pat[0], segs[0])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0, nil
}

// matchesWithAncestors reports whether the pattern matches the path itself
// or any of its ancestor directories. A pattern naming a directory thereby
// covers everything beneath it.
func matchesWithAncestors(pattern, name string) (bool, error) {
	for cur := name; cur != "."; cur = path.Dir(cur) {
		ok, err := Match(pattern, cur)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}
