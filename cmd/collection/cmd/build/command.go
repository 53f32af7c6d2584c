// Package build provides the build command implementation.
package build

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/collection"
	"github.com/agentstation/collection/cmd/application"
	"github.com/agentstation/collection/pkg/build"
	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/save"
)

// Flags holds the build command flags.
type Flags struct {
	Overwrite       bool
	DryRun          bool
	Index           string
	Dist            string
	Collection      string
	GroupBy         string
	PruneDeleted    bool
	FirstMatch      bool
	IsolateFailures bool
	Partners        []string
	Timeout         time.Duration
	Community       string
	MaxItems        int
	Sandbox         bool
	Summary         bool
}

// NewCommand creates the build command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "build",
		GroupID: "core",
		Short:   "Fetch, reconcile and write the collection",
		Args:    cobra.NoArgs,
		Long: `Build fetches every source, reconciles the items against the index and
writes the artifacts:

• dist/rdf.yaml and dist/rdf.json - export of passed items
• rdf.yaml (--overwrite) or new-rdf.yaml - next index snapshot
• dist/test-rdf.yaml - review artifact
• collection/<partner>/<item>/rdf.yaml - per-item records
• dist/review-summary.md - markdown review summary

Moderation decisions are sticky: known items keep their status, new items
start pending and vanished items become deleted.`,
		Example: `  collection build                          # Propose a new index
  collection build --overwrite              # Replace the index
  collection build --partner zenodo --dry-run
  collection build --isolate-failures       # Keep going when a partner is down`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Overwrite, "overwrite", false, "replace the index instead of writing "+constants.ProposedIndexName)
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "reconcile and report without writing anything")
	cmd.Flags().StringVar(&flags.Index, "index", "", "index snapshot path (default from config)")
	cmd.Flags().StringVar(&flags.Dist, "dist", "", "build output directory (default from config)")
	cmd.Flags().StringVar(&flags.Collection, "collection", "", "per-item record store (default from config)")
	cmd.Flags().StringVar(&flags.GroupBy, "group-by", "partner", "export grouping: partner, type")
	cmd.Flags().BoolVar(&flags.PruneDeleted, "prune-deleted", false, "drop vanished items instead of keeping them as deleted")
	cmd.Flags().BoolVar(&flags.FirstMatch, "first-match", false, "keep the first of duplicate ids instead of failing")
	cmd.Flags().BoolVar(&flags.IsolateFailures, "isolate-failures", false, "keep going when a source fails, carrying its previous bucket")
	cmd.Flags().StringSliceVar(&flags.Partners, "partner", nil, "only fetch these buckets (repeatable)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", constants.CommandTimeout, "timeout for the whole build")
	cmd.Flags().StringVar(&flags.Community, "community", "", "registry community (default from config)")
	cmd.Flags().IntVar(&flags.MaxItems, "max-items", 0, "registry record limit (default from config)")
	cmd.Flags().BoolVar(&flags.Sandbox, "sandbox", false, "search the sandbox registry")
	cmd.Flags().BoolVar(&flags.Summary, "summary", false, "print the markdown review summary to stdout")

	return cmd
}

// Execute runs a build with the parsed flags.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	ctx := cmd.Context()

	groupBy, ok := save.ParseGroupBy(flags.GroupBy)
	if !ok {
		return &errors.ValidationError{Field: "group-by", Value: flags.GroupBy, Message: "must be partner or type"}
	}

	b, err := app.Builder(BuilderOptions(app, cmd, flags)...)
	if err != nil {
		return err
	}

	opts := append(app.BuildOptions(), BuildOptions(flags, groupBy)...)
	result, err := b.Build(ctx, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	if result.Report != nil {
		for _, path := range result.Report.Written {
			app.Logger().Debug().Str("path", path).Msg("Wrote file")
		}
	}
	return nil
}

// BuilderOptions converts path and registry flags into builder options.
func BuilderOptions(app application.Application, cmd *cobra.Command, flags *Flags) []collection.Option {
	var opts []collection.Option
	if flags.Index != "" {
		opts = append(opts, collection.WithIndexPath(flags.Index))
	}
	if flags.Dist != "" {
		opts = append(opts, collection.WithDistDir(flags.Dist))
	}
	if flags.Collection != "" {
		opts = append(opts, collection.WithCollectionDir(flags.Collection))
	}

	z := app.Zenodo()
	changed := false
	if flags.Community != "" {
		z.Community = flags.Community
		changed = true
	}
	if flags.MaxItems > 0 {
		z.MaxItems = flags.MaxItems
		changed = true
	}
	if flags.Sandbox {
		z.BaseURL = constants.ZenodoSandboxURL
		changed = true
	}
	if changed {
		opts = append(opts, collection.WithZenodo(z))
	}
	if flags.Summary {
		opts = append(opts, collection.WithSaveOptions(save.WithWriter(cmd.OutOrStdout())))
	}
	return opts
}

// BuildOptions converts behavior flags into build options.
func BuildOptions(flags *Flags, groupBy save.GroupBy) []build.Option {
	return []build.Option{
		build.WithOverwrite(flags.Overwrite),
		build.WithDryRun(flags.DryRun),
		build.WithTimeout(flags.Timeout),
		build.WithPartners(flags.Partners...),
		build.WithIsolateFailures(flags.IsolateFailures),
		build.WithPruneDeleted(flags.PruneDeleted),
		build.WithFirstMatch(flags.FirstMatch),
		build.WithGroupBy(groupBy),
	}
}
