// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// quickstartMD is the rendered reference for the manifest format and the
// artifact lifecycle.
const quickstartMD = `# paqlet quick start

Describe your project in a ` + "`paqlet.cue`" + ` manifest next to your sources:

` + "```cue" + `
name: "demo"

// Exactly one of script, module or entrypoint.
exec: {
	script: "ep.py"
	default_args: ["--port", "8080"]
}

// Requirement files (installed in order) and literal specifiers.
requirements: ["requirements.txt"]
dependencies: ["requests"]

// Optional payload selection; defaults to everything under basedir.
exclude: [".git", "**/__pycache__"]

// Optional preconditions checked before the first run.
unpack_restrictions: minimum_python_version: "3.8"
` + "```" + `

Pack it:

` + "```sh" + `
paqlet .            # looks for paqlet.cue in the directory
` + "```" + `

The result is a single executable file, ` + "`demo.paq`" + `. On first run it
creates an isolated environment under your user data directory, installs
the declared dependencies into it, and starts the application; later runs
reuse the environment.

## Artifact actions

- ` + "`./demo.paq`" + ` — run the application (default arguments apply)
- ` + "`./demo.paq -- --port 9090`" + ` — run with your own arguments
- ` + "`./demo.paq info`" + ` — show the environment directory and cache status
- ` + "`./demo.paq uninstall`" + ` — remove the provisioned environment

## Environment overrides

- ` + "`PAQLET_DEBUG=1`" + ` — verbose bootstrap diagnostics
- ` + "`PAQLET_IGNORE_RESTRICTIONS=name,...`" + ` — skip named unpack restrictions
- ` + "`PAQLET_ARTIFACT`" + ` — set *for* the payload: the artifact's absolute path
`

// docsCmd renders the quick start reference in the terminal.
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show the manifest reference and quick start",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := glamour.RenderWithEnvironmentConfig(quickstartMD)
		if err != nil {
			// Fall back to the raw markdown rather than failing the command.
			out = quickstartMD
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}
