package reconciler

import (
	"github.com/agentstation/collection/pkg/differ"
	"github.com/agentstation/collection/pkg/errors"
)

// options configures a reconciler.
type options struct {
	tombstones TombstonePolicy
	duplicates DuplicatePolicy
	differ     differ.Differ
}

func defaultOptions() *options {
	return &options{
		tombstones: TombstoneRetain,
		duplicates: DuplicateReject,
		differ:     differ.New(),
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithTombstonePolicy sets how vanished items are kept.
func WithTombstonePolicy(policy TombstonePolicy) Option {
	return func(o *options) error {
		switch policy {
		case TombstoneRetain, TombstonePrune:
			o.tombstones = policy
			return nil
		}
		return &errors.ValidationError{
			Field:   "tombstone_policy",
			Value:   policy,
			Message: "must be retain or prune",
		}
	}
}

// WithDuplicatePolicy sets how repeated ids are handled.
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(o *options) error {
		switch policy {
		case DuplicateReject, DuplicateFirstMatch:
			o.duplicates = policy
			return nil
		}
		return &errors.ValidationError{
			Field:   "duplicate_policy",
			Value:   policy,
			Message: "must be reject or first-match",
		}
	}
}

// WithDiffer replaces the change detector.
func WithDiffer(d differ.Differ) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{
				Field:   "differ",
				Message: "cannot be nil",
			}
		}
		o.differ = d
		return nil
	}
}
