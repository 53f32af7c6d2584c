package collection

import (
	"context"

	"github.com/agentstation/collection/internal/sources/partner"
	"github.com/agentstation/collection/internal/sources/zenodo"
	"github.com/agentstation/collection/pkg/build"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/logging"
	"github.com/agentstation/collection/pkg/reconciler"
	"github.com/agentstation/collection/pkg/save"
	"github.com/agentstation/collection/pkg/sources"
)

// Build fetches every source, reconciles against the index and writes the
// artifacts. Any error aborts the run before the first file is written.
func (b *Builder) Build(ctx context.Context, opts ...build.Option) (*build.Result, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Parse options
	options := build.NewOptions(opts...)

	// Step 2: Setup context with timeout
	var cancel context.CancelFunc
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		cancel = func() {}
	}
	defer cancel()
	ctx = logging.WithOperation(ctx, "build")
	logger := logging.Ctx(ctx)

	// Step 3: Load the previous snapshot
	previous, err := b.Previous(ctx)
	if err != nil {
		return nil, err
	}

	// Step 4: Validate options against the declared partners
	if err := options.Validate(previous.Config.Partners); err != nil {
		return nil, err
	}

	// Step 5: Build sources, primary registry first
	srcs := b.sources(previous, options)

	// Step 6: Fetch (parallel, results in source order)
	outcomes, err := sources.FetchAll(ctx, srcs, options.FetchOptions()...)
	if err != nil {
		return nil, err
	}

	// Step 7: Normalize and overlay partner configs
	batches, failed, invalid := normalize(ctx, srcs, outcomes)

	// Step 8: Reconcile sequentially
	r, err := reconciler.New(options.ReconcilerOptions()...)
	if err != nil {
		return nil, err
	}
	run, err := r.Run(ctx, previous, batches)
	if err != nil {
		return nil, err
	}

	result := &build.Result{
		Run:     run,
		Failed:  failed,
		Invalid: invalid,
		Mode:    options.Mode,
		DryRun:  options.DryRun,
	}
	if options.DryRun {
		logger.Info().Bool("dry_run", true).Msg("Dry run completed - no artifacts written")
		return result, nil
	}

	// Step 9: Write artifacts
	saveOpts := []save.Option{
		save.WithIndexPath(b.config.indexPath),
		save.WithDistDir(b.config.distDir),
		save.WithCollectionDir(b.config.collectionDir),
		save.WithGroupBy(options.GroupBy),
	}
	writer := save.NewWriter(append(saveOpts, b.config.saveOptions...)...)
	report, err := writer.Write(ctx, run, options.Mode)
	if err != nil {
		return nil, err
	}
	result.Report = report

	logger.Info().Msg(result.Summary())
	b.hooks.trigger(run)
	return result, nil
}

// sources returns the configured sources: the registry, then every declared
// partner in declaration order. Buckets outside the selection are skipped.
func (b *Builder) sources(previous *items.Snapshot, options *build.Options) []sources.Source {
	var srcs []sources.Source
	if b.config.sources != nil {
		for _, src := range b.config.sources {
			if options.Selected(src.ID().String()) {
				srcs = append(srcs, src)
			}
		}
		return srcs
	}

	if options.Selected(items.PrimaryPartnerID) {
		srcs = append(srcs, zenodo.New(b.config.zenodo))
	}
	for _, p := range previous.Config.Partners {
		if options.Selected(p.ID) {
			srcs = append(srcs, partner.New(p, partner.WithClient(b.config.client)))
		}
	}
	return srcs
}

// normalize turns outcomes into reconciler batches. Failed sources (only
// present under failure isolation) get no batch, so their previous bucket
// is carried. Entries failing validation are logged and skipped.
func normalize(ctx context.Context, srcs []sources.Source, outcomes []sources.Outcome) ([]reconciler.Batch, []sources.Outcome, int) {
	var (
		batches []reconciler.Batch
		failed  []sources.Outcome
		invalid int
	)
	for i, o := range outcomes {
		if o.Failed() {
			failed = append(failed, o)
			continue
		}
		src := srcs[i]
		id := src.ID().String()
		logger := logging.Ctx(logging.WithPartner(ctx, id))

		batch := reconciler.Batch{
			Partner: src.Partner().Overlay(o.Fetched.Config),
			Items:   make([]items.Item, 0, len(o.Fetched.Items)),
			Skipped: o.Fetched.Skipped,
		}
		for _, raw := range o.Fetched.Items {
			it, err := items.Normalize(raw, id)
			if err != nil {
				invalid++
				logger.Warn().Err(err).Msg("Skipping invalid item")
				batch.Skipped = append(batch.Skipped, sources.Skip{ID: rawID(raw), Reason: err.Error()})
				continue
			}
			batch.Items = append(batch.Items, it)
		}
		batches = append(batches, batch)
	}
	return batches, failed, invalid
}

func rawID(raw items.RawItem) string {
	if s, ok := raw["id"].(string); ok {
		return s
	}
	return ""
}
