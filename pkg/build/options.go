// Package build provides options and results for one collection build run.
package build

import (
	"fmt"
	"slices"
	"time"

	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/reconciler"
	"github.com/agentstation/collection/pkg/save"
	"github.com/agentstation/collection/pkg/sources"
)

// Options controls the overall build orchestration in Builder.Build().
type Options struct {
	// Orchestration control
	Mode    save.Mode     // Overwrite the index or propose a side file
	DryRun  bool          // Reconcile and report without writing anything
	Timeout time.Duration // Timeout for the entire build

	// Source selection
	Partners []string // Which buckets to fetch (empty means all); the rest are carried over

	// Fetch behavior
	FetchTimeout    time.Duration // Per-source timeout
	Concurrency     int           // Sources fetched at once
	IsolateFailures bool          // Keep going when a source fails, carrying its previous bucket

	// Reconcile behavior
	PruneDeleted bool // Drop tombstones instead of keeping them as deleted
	FirstMatch   bool // Keep the first of duplicate ids instead of failing

	// Output control
	GroupBy save.GroupBy // Export attachment keys
}

// Apply applies the given options to the build options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Defaults returns the default build options.
func Defaults() *Options {
	return &Options{
		Mode:            save.ModePropose,
		DryRun:          false,
		Timeout:         constants.CommandTimeout,
		Partners:        nil,
		FetchTimeout:    constants.SourceFetchTimeout,
		Concurrency:     constants.MaxConcurrentFetches,
		IsolateFailures: false,
		PruneDeleted:    false,
		FirstMatch:      false,
		GroupBy:         save.GroupByPartner,
	}
}

// NewOptions returns the defaults with opts applied.
func NewOptions(opts ...Option) *Options {
	return Defaults().Apply(opts...)
}

// Option is a function that configures build Options.
type Option func(*Options)

// Validate checks the options against the partners declared in the previous snapshot.
func (o *Options) Validate(declared []items.Partner) error {
	if o.Timeout < 0 {
		return &errors.ValidationError{Field: "Timeout", Value: o.Timeout, Message: "timeout must be non-negative"}
	}
	if o.FetchTimeout < 0 {
		return &errors.ValidationError{Field: "FetchTimeout", Value: o.FetchTimeout, Message: "fetch timeout must be non-negative"}
	}
	if o.Concurrency < 0 {
		return &errors.ValidationError{Field: "Concurrency", Value: o.Concurrency, Message: "concurrency must be non-negative"}
	}
	for _, id := range o.Partners {
		if id == items.PrimaryPartnerID {
			continue
		}
		found := slices.ContainsFunc(declared, func(p items.Partner) bool { return p.ID == id })
		if !found {
			return &errors.ValidationError{
				Field:   "Partners",
				Value:   id,
				Message: fmt.Sprintf("partner '%s' is not declared in the index", id),
			}
		}
	}
	return nil
}

// Selected reports whether a bucket should be fetched in this run.
func (o *Options) Selected(id string) bool {
	return len(o.Partners) == 0 || slices.Contains(o.Partners, id)
}

// FetchOptions converts build options to fetch options.
func (o *Options) FetchOptions() []sources.Option {
	opts := []sources.Option{
		sources.WithTimeout(o.FetchTimeout),
		sources.WithConcurrency(o.Concurrency),
	}
	if o.IsolateFailures {
		opts = append(opts, sources.WithIsolateFailures())
	}
	return opts
}

// ReconcilerOptions converts build options to reconciler options.
func (o *Options) ReconcilerOptions() []reconciler.Option {
	var opts []reconciler.Option
	if o.PruneDeleted {
		opts = append(opts, reconciler.WithTombstonePolicy(reconciler.TombstonePrune))
	}
	if o.FirstMatch {
		opts = append(opts, reconciler.WithDuplicatePolicy(reconciler.DuplicateFirstMatch))
	}
	return opts
}

// WithMode selects overwrite or propose.
func WithMode(mode save.Mode) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

// WithOverwrite selects overwrite mode when enabled, propose otherwise.
func WithOverwrite(enabled bool) Option {
	return func(o *Options) {
		o.Mode = save.ModePropose
		if enabled {
			o.Mode = save.ModeOverwrite
		}
	}
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(o *Options) {
		o.DryRun = dryRun
	}
}

// WithTimeout configures the build timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// WithPartners restricts the fetch to the given buckets.
func WithPartners(ids ...string) Option {
	return func(o *Options) {
		o.Partners = ids
	}
}

// WithFetchTimeout configures the per-source timeout.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.FetchTimeout = timeout
	}
}

// WithConcurrency configures how many sources are fetched at once.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithIsolateFailures configures failure isolation.
func WithIsolateFailures(isolate bool) Option {
	return func(o *Options) {
		o.IsolateFailures = isolate
	}
}

// WithPruneDeleted configures whether tombstones are dropped.
func WithPruneDeleted(prune bool) Option {
	return func(o *Options) {
		o.PruneDeleted = prune
	}
}

// WithFirstMatch configures the legacy duplicate tie-break.
func WithFirstMatch(firstMatch bool) Option {
	return func(o *Options) {
		o.FirstMatch = firstMatch
	}
}

// WithGroupBy configures the export grouping.
func WithGroupBy(g save.GroupBy) Option {
	return func(o *Options) {
		o.GroupBy = g
	}
}
