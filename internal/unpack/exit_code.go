// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"errors"
	"os/exec"
)

// ExitCode represents a process exit status code.
// Exit codes are in the range 0-255 on POSIX systems.
// The zero value (0) means success.
type ExitCode int

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// ExitCodeFromError maps a process wait error to the exit code to
// propagate: nil is success, an exec.ExitError carries the child's own
// code, and anything else (start failure, signal without status) is a
// generic failure.
func ExitCodeFromError(err error) ExitCode {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return ExitCode(exitErr.ExitCode())
	}
	return 1
}
