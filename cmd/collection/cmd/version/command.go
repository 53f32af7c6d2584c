// Package version provides the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/collection/cmd/application"
)

// NewCommand creates the version command.
func NewCommand(app application.Application) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "collection %s\n", app.Version())
			if long {
				fmt.Fprintf(out, "  commit:   %s\n", app.Commit())
				fmt.Fprintf(out, "  built:    %s\n", app.Date())
				fmt.Fprintf(out, "  built by: %s\n", app.BuiltBy())
			}
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "include commit and build details")
	return cmd
}
