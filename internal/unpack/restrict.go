// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/paqlet/paqlet/pkg/artifact"
)

// pyVersionProbe asks the interpreter for its version in a form that is
// stable across Python builds, unlike the `python --version` banner.
const pyVersionProbe = "import sys; print('%d.%d.%d' % sys.version_info[:3])"

// RestrictionError reports an unpack restriction that is not satisfied by
// the host. No filesystem mutation has happened when it is raised.
type RestrictionError struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *RestrictionError) Error() string {
	return fmt.Sprintf("unpack restriction %q not satisfied: %s (set PAQLET_IGNORE_RESTRICTIONS=%s to bypass)",
		e.Name, e.Reason, e.Name)
}

// checkRestrictions evaluates every embedded restriction, in sorted name
// order so failures are reported deterministically. Restrictions named in
// the user's ignore set are skipped.
func (e *Engine) checkRestrictions(ctx context.Context) error {
	restrictions := e.art.Meta.UnpackRestrictions
	if len(restrictions) == 0 {
		return nil
	}

	names := maps.Keys(restrictions)
	slices.Sort(names)

	for _, name := range names {
		if e.ignored[name] {
			e.log.Debug("skipping ignored restriction", "name", name)
			continue
		}
		var err error
		switch name {
		case artifact.RestrictionMinimumPythonVersion:
			err = e.checkMinimumPython(ctx, restrictions[name])
		default:
			err = &RestrictionError{
				Name:   name,
				Reason: "unknown restriction, the artifact was packed by a newer paqlet",
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// checkMinimumPython probes the base interpreter and compares its version
// against the packed minimum.
func (e *Engine) checkMinimumPython(ctx context.Context, minimum string) error {
	python, err := e.basePython()
	if err != nil {
		return &RestrictionError{Name: artifact.RestrictionMinimumPythonVersion, Reason: err.Error()}
	}
	current, err := e.runner.Output(ctx, python, "-c", pyVersionProbe)
	if err != nil {
		return &RestrictionError{
			Name:   artifact.RestrictionMinimumPythonVersion,
			Reason: fmt.Sprintf("cannot determine interpreter version: %v", err),
		}
	}
	less, err := versionLess(current, minimum)
	if err != nil {
		return &RestrictionError{Name: artifact.RestrictionMinimumPythonVersion, Reason: err.Error()}
	}
	if less {
		return &RestrictionError{
			Name:   artifact.RestrictionMinimumPythonVersion,
			Reason: fmt.Sprintf("interpreter version %s is below the required minimum %s", current, minimum),
		}
	}
	e.log.Debug("restriction satisfied", "name", artifact.RestrictionMinimumPythonVersion,
		"current", current, "minimum", minimum)
	return nil
}

// versionLess compares two dotted version numbers component-wise, with
// missing components counting as zero.
func versionLess(a, b string) (bool, error) {
	av, err := parseVersion(a)
	if err != nil {
		return false, err
	}
	bv, err := parseVersion(b)
	if err != nil {
		return false, err
	}
	for i := 0; i < len(av) || i < len(bv); i++ {
		var x, y int
		if i < len(av) {
			x = av[i]
		}
		if i < len(bv) {
			y = bv[i]
		}
		if x != y {
			return x < y, nil
		}
	}
	return false, nil
}

func parseVersion(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed version %q", s)
		}
		nums = append(nums, n)
	}
	return nums, nil
}
