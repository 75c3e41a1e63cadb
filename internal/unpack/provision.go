// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paqlet/paqlet/pkg/platform"
)

// ProvisionError reports a failed environment provisioning step. The
// partially provisioned directory is intentionally left on disk for
// diagnosis; without a marker it is rebuilt from scratch on the next run.
type ProvisionError struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed while %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisionError) Unwrap() error { return e.Err }

// provision builds the environment directory from scratch: payload
// expansion, virtualenv creation, then dependency installation in declared
// order, and finally the completion marker. Step order is load-bearing: the
// marker comes last, so an interruption anywhere leaves a directory the
// next invocation recognizes as incomplete and rebuilds.
func (e *Engine) provision(ctx context.Context, envDir string) error {
	lock, err := acquireProvisionLock(e.dataRoot)
	if err != nil {
		// Without the advisory lock concurrent first runs race
		// last-writer-wins; both build an equivalent environment.
		e.log.Debug("provision lock unavailable, continuing unlocked", "error", err)
	} else {
		defer lock.Release()
	}

	// Another invocation may have finished provisioning while this one
	// waited on the lock.
	if e.cacheFresh(envDir) {
		e.log.Debug("environment provisioned concurrently, reusing", "dir", envDir)
		return nil
	}

	if _, err := os.Stat(envDir); err == nil {
		e.log.Debug("removing stale environment", "dir", envDir)
		if err := os.RemoveAll(envDir); err != nil {
			return &ProvisionError{Step: "removing stale environment", Err: err}
		}
	}
	if err := os.MkdirAll(envDir, 0o755); err != nil {
		return &ProvisionError{Step: "creating environment directory", Err: err}
	}

	e.log.Debug("expanding payload", "dir", envDir)
	if err := e.art.ExtractPayload(envDir); err != nil {
		return &ProvisionError{Step: "expanding payload", Err: err}
	}

	python, err := e.basePython()
	if err != nil {
		return &ProvisionError{Step: "locating base interpreter", Err: err}
	}
	venvDir := filepath.Join(envDir, venvDirName)
	e.log.Debug("creating virtualenv", "dir", venvDir)
	if err := e.runner.Run(ctx, python, "-m", "venv", venvDir); err != nil {
		return &ProvisionError{Step: "creating virtualenv", Err: err}
	}

	venvPython := platform.VenvPython(venvDir)
	origDir := filepath.Join(envDir, origDirName)
	for _, req := range e.art.Meta.RequirementFiles {
		reqPath := filepath.Join(origDir, filepath.FromSlash(req))
		e.log.Debug("installing requirements file", "path", reqPath)
		if err := e.runner.Run(ctx, venvPython, "-m", "pip", "install", "-r", reqPath); err != nil {
			return &ProvisionError{Step: fmt.Sprintf("installing requirements file %s", req), Err: err}
		}
	}
	if deps := e.art.Meta.Dependencies; len(deps) > 0 {
		e.log.Debug("installing dependencies", "specifiers", deps)
		argv := append([]string{venvPython, "-m", "pip", "install"}, deps...)
		if err := e.runner.Run(ctx, argv...); err != nil {
			return &ProvisionError{Step: "installing dependencies", Err: err}
		}
	}

	if err := e.cache.Write(envDir, e.art.Stamp()); err != nil {
		return &ProvisionError{Step: "writing completion marker", Err: err}
	}
	e.log.Debug("environment provisioned", "dir", envDir)
	return nil
}
