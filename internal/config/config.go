// SPDX-License-Identifier: MPL-2.0

// Package config resolves paqlet's user-scoped paths and environment
// overrides. All PAQLET_* variables are read through a single viper
// instance so the override surface stays in one place.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/paqlet/paqlet/pkg/platform"
)

const (
	// AppName is the application name, used for the data directory.
	AppName = "paqlet"

	// EnvArtifactPath is set for the payload process and carries the
	// artifact's own absolute path.
	EnvArtifactPath = "PAQLET_ARTIFACT"
)

// env binds the supported PAQLET_* environment overrides:
//
//	PAQLET_DEBUG                verbose bootstrap diagnostics
//	PAQLET_IGNORE_RESTRICTIONS  comma-separated restriction names to skip
//	PAQLET_DATA_DIR             override of the user data root (mainly tests)
var env = newEnv()

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(AppName))
	for _, key := range []string{"debug", "ignore_restrictions", "data_dir"} {
		// BindEnv only fails on an empty key.
		_ = v.BindEnv(key)
	}
	return v
}

// Debug reports whether verbose bootstrap diagnostics are enabled.
func Debug() bool {
	return env.GetBool("debug")
}

// IgnoredRestrictions returns the set of restriction names the user opted
// out of, parsed from the comma-separated override.
func IgnoredRestrictions() map[string]bool {
	raw := env.GetString("ignore_restrictions")
	ignored := make(map[string]bool)
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			ignored[name] = true
		}
	}
	return ignored
}

// DataDir returns paqlet's user-scoped data root, where provisioned
// environments live. Platform conventions: Windows uses %LOCALAPPDATA%,
// macOS uses ~/Library/Application Support, and Linux/others use
// $XDG_DATA_HOME (defaulting to ~/.local/share).
func DataDir() (string, error) {
	if override := env.GetString("data_dir"); override != "" {
		return override, nil
	}

	var dataDir string
	switch runtime.GOOS {
	case platform.Windows:
		dataDir = os.Getenv("LOCALAPPDATA")
		if dataDir == "" {
			dataDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		dataDir = os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
	}

	return filepath.Join(dataDir, AppName), nil
}
