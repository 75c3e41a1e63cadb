// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

type (
	// PayloadSpec describes the delegated payload process.
	PayloadSpec struct {
		// Argv is the full command line, interpreter first.
		Argv []string
		// Dir is the working directory (the expanded orig/ tree).
		Dir string
		// Env is the complete environment for the process.
		Env []string
	}

	// Runner executes the external collaborators: the isolated-runtime
	// creation tool, the dependency installer, interpreter probes, and the
	// payload itself. It exists as an interface so the engine can be tested
	// without spawning processes.
	Runner interface {
		// Run executes argv to completion, capturing its output for
		// diagnostics. A non-zero exit is an error.
		Run(ctx context.Context, argv ...string) error
		// Output executes argv and returns its trimmed standard output.
		Output(ctx context.Context, argv ...string) (string, error)
		// RunPayload hands the terminal over to the payload process and
		// reports its exit code. The error is non-nil only when the process
		// could not be started or waited on.
		RunPayload(ctx context.Context, spec PayloadSpec) (ExitCode, error)
	}

	// CommandError reports a collaborator subprocess that failed, keeping
	// its captured output for the user to diagnose.
	CommandError struct {
		Argv   []string
		Output string
		Err    error
	}
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", strings.Join(e.Argv, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error { return e.Err }

// execRunner is the production Runner backed by os/exec.
type execRunner struct {
	log *log.Logger
}

// NewExecRunner returns a Runner that spawns real subprocesses, logging
// their output at debug level.
func NewExecRunner(logger *log.Logger) Runner {
	return &execRunner{log: logger}
}

func (r *execRunner) Run(ctx context.Context, argv ...string) error {
	r.log.Debug("running external command", "argv", argv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			r.log.Debug(":: " + line)
		}
	}
	if err != nil {
		return &CommandError{Argv: argv, Output: string(out), Err: err}
	}
	return nil
}

func (r *execRunner) Output(ctx context.Context, argv ...string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", &CommandError{Argv: argv, Output: string(out), Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *execRunner) RunPayload(ctx context.Context, spec PayloadSpec) (ExitCode, error) {
	r.log.Debug("running payload", "argv", spec.Argv, "dir", spec.Dir)
	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	code := ExitCodeFromError(err)
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// The process never ran; surface the cause.
		return code, fmt.Errorf("launching payload %q: %w", spec.Argv[0], err)
	}
	return code, nil
}
