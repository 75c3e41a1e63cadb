// SPDX-License-Identifier: MPL-2.0

// paqlet packages a Python application tree into a single self-contained
// artifact that provisions its own virtualenv on first run.
//
// The same binary has two personalities: invoked as the plain `paqlet`
// executable it is the packer CLI; invoked as a packed artifact (its own
// file carries an appended archive) it is the bootstrap program that
// provisions and launches the payload.
package main

import (
	"errors"
	"fmt"
	"os"

	cmd "github.com/paqlet/paqlet/cmd/paqlet"
	"github.com/paqlet/paqlet/pkg/artifact"
)

func main() {
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "paqlet: cannot determine own executable path:", err)
		os.Exit(1)
	}

	art, err := artifact.Open(exe)
	switch {
	case err == nil:
		defer art.Close()
		cmd.ExecuteBootstrap(art)
	case errors.Is(err, artifact.ErrNoArchive):
		// Plain binary, no appended archive: packer personality.
		cmd.Execute()
	default:
		// An archive is present but unreadable: the artifact is corrupt.
		fmt.Fprintln(os.Stderr, "paqlet: corrupt artifact:", err)
		os.Exit(1)
	}
}
