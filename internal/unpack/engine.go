// SPDX-License-Identifier: MPL-2.0

// Package unpack implements the bootstrap state machine an end user's
// invocation of a packed artifact runs through: restriction checks, cache
// lookup, environment provisioning, dependency installation and delegated
// execution, plus the info and uninstall maintenance actions.
package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/paqlet/paqlet/internal/config"
	"github.com/paqlet/paqlet/pkg/artifact"
	"github.com/paqlet/paqlet/pkg/platform"
)

// Environment directory layout.
const (
	origDirName = "orig"
	venvDirName = "venv"
)

type (
	// Engine drives one invocation of a packed artifact. All collaborators
	// are injected so the state machine is testable without touching real
	// interpreters or installers.
	Engine struct {
		art      *artifact.Artifact
		dataRoot string
		cache    SetupCache
		runner   Runner
		log      *log.Logger
		ignored  map[string]bool

		// python is the base interpreter; discovered on first use when not
		// injected.
		python string
	}

	// Options configures an Engine. Zero-value fields get production
	// defaults.
	Options struct {
		// DataRoot is the user-scoped directory holding provisioned
		// environments. Defaults to the platform data dir.
		DataRoot string
		// Cache decides environment reuse. Defaults to the disk marker.
		Cache SetupCache
		// Runner spawns external processes. Defaults to os/exec.
		Runner Runner
		// Logger receives bootstrap diagnostics.
		Logger *log.Logger
		// Python is the base interpreter path; discovered on PATH when
		// empty.
		Python string
		// IgnoredRestrictions is the set of restriction names to skip.
		IgnoredRestrictions map[string]bool
	}
)

// New builds an Engine for the given opened artifact.
func New(art *artifact.Artifact, opts Options) (*Engine, error) {
	if opts.DataRoot == "" {
		root, err := config.DataDir()
		if err != nil {
			return nil, err
		}
		opts.DataRoot = root
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Cache == nil {
		opts.Cache = NewDiskCache()
	}
	if opts.Runner == nil {
		opts.Runner = NewExecRunner(opts.Logger)
	}
	return &Engine{
		art:      art,
		dataRoot: opts.DataRoot,
		cache:    opts.Cache,
		runner:   opts.Runner,
		log:      opts.Logger,
		ignored:  opts.IgnoredRestrictions,
		python:   opts.Python,
	}, nil
}

// EnvDir returns the environment directory for the artifact's (name,
// timestamp) identity. A replaced artifact gets a fresh directory; the old
// one is orphaned until uninstalled.
func (e *Engine) EnvDir() string {
	return filepath.Join(e.dataRoot, e.art.Meta.Name+"-"+e.art.Stamp())
}

// Run executes the full pipeline and returns the exit code to propagate.
// userArgs, when non-empty, replace the packed default arguments entirely.
//
// The returned error is terminal: restriction failures and provisioning
// failures abort before the payload ever starts. A payload that itself
// exits non-zero is not an error here; its code is passed through.
func (e *Engine) Run(ctx context.Context, userArgs []string) (ExitCode, error) {
	e.log.Debug("bootstrap start", "artifact", e.art.Path, "stamp", e.art.Stamp())

	// Restrictions run before any filesystem mutation.
	if err := e.checkRestrictions(ctx); err != nil {
		return 1, err
	}

	envDir := e.EnvDir()
	if e.cacheFresh(envDir) {
		e.log.Debug("reusing provisioned environment", "dir", envDir)
	} else {
		if err := os.MkdirAll(e.dataRoot, 0o755); err != nil {
			return 1, &ProvisionError{Step: "creating data root", Err: err}
		}
		if err := e.provision(ctx, envDir); err != nil {
			return 1, err
		}
	}

	return e.execute(ctx, envDir, userArgs)
}

// cacheFresh reports whether envDir exists and its marker records exactly
// the current artifact stamp.
func (e *Engine) cacheFresh(envDir string) bool {
	if _, err := os.Stat(envDir); err != nil {
		return false
	}
	stamp, ok := e.cache.RecordedStamp(envDir)
	return ok && stamp == e.art.Stamp()
}

// execute delegates to the payload inside the provisioned environment.
func (e *Engine) execute(ctx context.Context, envDir string, userArgs []string) (ExitCode, error) {
	venvDir := filepath.Join(envDir, venvDirName)
	argv := buildCommand(platform.VenvPython(venvDir), &e.art.Meta, userArgs)

	spec := PayloadSpec{
		Argv: argv,
		Dir:  filepath.Join(envDir, origDirName),
		Env:  payloadEnviron(e.art.Path, platform.VenvBinDir(venvDir)),
	}
	code, err := e.runner.RunPayload(ctx, spec)
	if err != nil {
		return code, err
	}
	e.log.Debug("payload finished", "code", int(code))
	return code, nil
}

// buildCommand concatenates the execution-mode prefix with either the
// user-supplied arguments or the packed default arguments.
func buildCommand(pythonExec string, meta *artifact.Metadata, userArgs []string) []string {
	argv := []string{pythonExec}
	switch meta.ExecStyle {
	case artifact.ExecScript:
		argv = append(argv, filepath.FromSlash(meta.ExecValue[0]))
	case artifact.ExecModule:
		argv = append(argv, "-m", meta.ExecValue[0])
	default: // entrypoint: raw tokens
		argv = append(argv, meta.ExecValue...)
	}
	if len(userArgs) > 0 {
		return append(argv, userArgs...)
	}
	return append(argv, meta.DefaultArgs...)
}

// payloadEnviron builds the payload environment: the inherited one with the
// venv bin dir appended to PATH and the artifact path variable set.
func payloadEnviron(artifactPath, venvBinDir string) []string {
	env := os.Environ()
	appended := false
	for i, kv := range env {
		key, _, found := strings.Cut(kv, "=")
		if found && strings.EqualFold(key, "PATH") {
			env[i] = kv + string(os.PathListSeparator) + venvBinDir
			appended = true
			break
		}
	}
	if !appended {
		env = append(env, "PATH="+venvBinDir)
	}
	return append(env, config.EnvArtifactPath+"="+artifactPath)
}

// basePython returns the base interpreter, discovering it on PATH once.
func (e *Engine) basePython() (string, error) {
	if e.python == "" {
		python, err := platform.FindPython()
		if err != nil {
			return "", err
		}
		e.python = python
	}
	return e.python, nil
}

// Info writes a read-only report of the artifact and its environment: the
// resolved directory, cache status, and the key metadata fields.
func (e *Engine) Info(w io.Writer) error {
	envDir := e.EnvDir()

	status := "absent (first run will provision)"
	if _, err := os.Stat(envDir); err == nil {
		if e.cacheFresh(envDir) {
			status = "ready (provisioned for this artifact)"
		} else {
			status = "incomplete (next run will re-provision)"
		}
	}

	meta := &e.art.Meta
	fmt.Fprintf(w, "name: %s\n", meta.Name)
	fmt.Fprintf(w, "artifact: %s\n", e.art.Path)
	fmt.Fprintf(w, "built: %s\n", meta.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "stamp: %s\n", e.art.Stamp())
	fmt.Fprintf(w, "environment: %s\n", envDir)
	fmt.Fprintf(w, "status: %s\n", status)
	fmt.Fprintf(w, "exec: %s %s\n", meta.ExecStyle, strings.Join(meta.ExecValue, " "))
	if len(meta.DefaultArgs) > 0 {
		fmt.Fprintf(w, "default args: %s\n", strings.Join(meta.DefaultArgs, " "))
	}
	if len(meta.RequirementFiles) > 0 {
		fmt.Fprintf(w, "requirement files: %s\n", strings.Join(meta.RequirementFiles, ", "))
	}
	if len(meta.Dependencies) > 0 {
		fmt.Fprintf(w, "dependencies: %s\n", strings.Join(meta.Dependencies, ", "))
	}
	if len(meta.UnpackRestrictions) > 0 {
		names := maps.Keys(meta.UnpackRestrictions)
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "restriction: %s = %s\n", name, meta.UnpackRestrictions[name])
		}
	}
	return nil
}

// Uninstall removes the provisioned environment for the current identity.
// Removing an already-absent environment is success, not an error.
func (e *Engine) Uninstall() error {
	envDir := e.EnvDir()
	if _, err := os.Stat(envDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.log.Info("nothing to uninstall", "dir", envDir)
			return nil
		}
		return err
	}
	if err := os.RemoveAll(envDir); err != nil {
		return fmt.Errorf("removing environment %s: %w", envDir, err)
	}
	e.log.Info("environment removed", "dir", envDir)
	return nil
}
