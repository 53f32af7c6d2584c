// Package check provides the consistency gate command.
package check

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/collection"
	"github.com/agentstation/collection/cmd/application"
	"github.com/agentstation/collection/pkg/errors"
)

// NewCommand creates the check command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "check",
		GroupID: "core",
		Short:   "Fail while any stored item is pending",
		Args:    cobra.NoArgs,
		Long: `Check walks the per-item record store and partitions the items by status.
It exits with a non-zero status and lists the ids when any item is still
pending, so a release can only proceed once every item is moderated.`,
		Example: `  collection check
  collection check --collection ./collection`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []collection.Option
			if dir != "" {
				opts = append(opts, collection.WithCollectionDir(dir))
			}
			b, err := app.Builder(opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report, err := b.Check(cmd.Context())
			var gate *errors.GateFailure
			if errors.As(err, &gate) {
				fmt.Fprintln(out, "Pending items:")
				for _, id := range gate.Pending {
					fmt.Fprintln(out, "  "+id)
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d item(s) checked: %d passed, %d deleted, none pending\n",
				report.Total(), len(report.Passed), len(report.Deleted))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "collection", "", "per-item record store (default from config)")
	return cmd
}
