// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// FindPython locates a base Python interpreter on the host PATH.
// It prefers `python3` and falls back to `python` (the common name on
// Windows installs).
func FindPython() (string, error) {
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no python interpreter found on PATH (tried python3, python)")
}

// VenvBinDir returns the executables directory of a virtualenv:
// `bin` on POSIX systems, `Scripts` on Windows.
func VenvBinDir(venvDir string) string {
	if runtime.GOOS == Windows {
		return filepath.Join(venvDir, "Scripts")
	}
	return filepath.Join(venvDir, "bin")
}

// VenvPython returns the path of the Python executable inside a virtualenv.
// The path is derived from the venv layout convention, not probed, so it is
// valid to call before the venv exists.
func VenvPython(venvDir string) string {
	name := "python"
	if runtime.GOOS == Windows {
		name += ".exe"
	}
	return filepath.Join(VenvBinDir(venvDir), name)
}

// ExecutableMode returns the file mode for freshly written executables.
// The x bits are a no-op on Windows but harmless to set.
func ExecutableMode() os.FileMode {
	return 0o755
}
