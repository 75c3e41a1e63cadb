// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paqlet/paqlet/pkg/artifact"
	"github.com/paqlet/paqlet/pkg/fileset"
	"github.com/paqlet/paqlet/pkg/manifest"
)

// packOutput is the output path override for the built artifact.
var packOutput string

func init() {
	rootCmd.Flags().StringVarP(&packOutput, "output", "o", "",
		"artifact output path (default <name>.paq in the current directory)")
}

// runPack drives the packing pipeline: manifest load, file set resolution,
// artifact build.
func runPack(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	m, err := manifest.Load(args[0])
	if err != nil {
		return err
	}
	logger.Debug("manifest loaded", "name", m.Name, "basedir", m.ResolvedBase)

	files, err := fileset.Resolve(m.ResolvedBase, m.Include, m.Exclude)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("file set is empty, the artifact will carry no payload files")
	}
	for _, f := range files {
		logger.Debug("packing", "file", f)
	}

	out := packOutput
	if out == "" {
		out = m.Name + ".paq"
	}

	// The artifact head is a copy of this very executable; when the copy
	// runs it detects the appended archive and becomes the bootstrap.
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot locate own executable: %w", err)
	}
	launcher, err := os.Open(exe)
	if err != nil {
		return fmt.Errorf("cannot read own executable: %w", err)
	}
	defer launcher.Close()

	if err := artifact.Build(m, files, launcher, out); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(),
		SuccessStyle.Render("✓")+" packed "+cmdStyle.Render(m.Name)+
			fmt.Sprintf(" (%d files) into %s", len(files), cmdStyle.Render(out)))
	return nil
}
