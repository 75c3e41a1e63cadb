// SPDX-License-Identifier: MPL-2.0

// Package cmd contains both CLI personalities of the paqlet binary: the
// packer (plain executable) and the bootstrap program (packed artifact).
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/paqlet/paqlet/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug output
	verbose bool

	// rootCmd is the packer personality: one positional argument naming
	// the manifest file or the directory containing it.
	rootCmd = &cobra.Command{
		Use:   "paqlet <manifest-or-directory>",
		Short: "Pack a Python project into a single self-bootstrapping artifact",
		Long: TitleStyle.Render("paqlet") + SubtitleStyle.Render(" - pack once, run anywhere Python runs") + `

paqlet packages an application tree (sources, data, dependency list) into
one distributable file. On first execution the artifact provisions an
isolated virtualenv, installs the declared dependencies, and launches the
application; later executions reuse the environment.

Projects are described by a ` + cmdStyle.Render("paqlet.cue") + ` manifest. See ` + cmdStyle.Render("paqlet docs") + ` for the
manifest reference and a quick start.`,
		Args: cobra.ExactArgs(1),
		RunE: runPack,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.AddCommand(docsCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newLogger builds the CLI logger. Debug level is enabled by the verbose
// flag or the PAQLET_DEBUG environment override (the only channel available
// when the binary runs as an artifact).
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          config.AppName,
		ReportTimestamp: false,
	})
	if verbose || config.Debug() {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// Execute runs the packer personality. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
