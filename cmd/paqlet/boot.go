// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/paqlet/paqlet/internal/config"
	"github.com/paqlet/paqlet/internal/unpack"
	"github.com/paqlet/paqlet/pkg/artifact"
)

// newBootstrapCmd builds the bootstrap personality command tree for an
// opened artifact. The default invocation runs the full pipeline; info and
// uninstall are the maintenance actions. Arguments after -- are forwarded
// to the payload, replacing its packed default arguments.
//
// Unlike the packer personality this tree stays silent on success: the
// terminal belongs to the payload.
func newBootstrapCmd(art *artifact.Artifact) *cobra.Command {
	newEngine := func() (*unpack.Engine, error) {
		return unpack.New(art, unpack.Options{
			Logger:              newLogger(),
			IgnoredRestrictions: config.IgnoredRestrictions(),
		})
	}

	bootCmd := &cobra.Command{
		Use:   filepath.Base(art.Path) + " [-- payload args...]",
		Short: fmt.Sprintf("Run the packed %q application", art.Meta.Name),
		Args:  cobra.ArbitraryArgs,
		// The payload owns stdout/stderr; keep cobra from decorating them.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var forwarded []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				forwarded = args[dash:]
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			code, err := engine.Run(cmd.Context(), forwarded)
			if err != nil {
				return err
			}
			if !code.IsSuccess() {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	bootCmd.CompletionOptions.DisableDefaultCmd = true

	bootCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Report the environment directory, cache status and metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			return engine.Info(cmd.OutOrStdout())
		},
	})

	bootCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the provisioned environment for this artifact",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			return engine.Uninstall()
		},
	})

	return bootCmd
}

// ExecuteBootstrap runs the bootstrap personality for an artifact this
// binary was opened as. The process exit code is the payload's own code;
// every fatal bootstrap path prints one cause and exits non-zero without
// running the payload.
func ExecuteBootstrap(art *artifact.Artifact) {
	bootCmd := newBootstrapCmd(art)
	if err := bootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			// Delegated exit code: the payload already reported whatever it
			// had to say.
			if exitErr.Err == nil {
				os.Exit(int(exitErr.Code))
			}
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: ")+exitErr.Error())
			os.Exit(int(exitErr.Code))
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
