package reconciler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/collection/pkg/differ"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/sources"
)

// Batch is the normalized fetch of one source.
type Batch struct {
	Partner items.Partner // descriptor after the feed's config overlay
	Items   []items.Item
	Skipped []sources.Skip
}

// BucketResult is the outcome of reconciling one partner bucket.
type BucketResult struct {
	Partner string

	// Current holds every fetched item with its moderation status, in fetch order.
	Current []items.Item
	// Next is the projected bucket of the next snapshot.
	Next []items.Item

	Passed  []items.Item
	Pending []items.Item
	New     []items.Item
	Removed []items.Item // previously known items that vanished, status deleted

	// Duplicates lists ids dropped under the first-match policy.
	Duplicates []string
	Changeset  *differ.Changeset
}

// Skipped is an entry an adapter left out, with its partner.
type Skipped struct {
	Partner string
	sources.Skip
}

// Result represents the outcome of a reconciliation run.
type Result struct {
	// Next is the snapshot to persist.
	Next *items.Snapshot
	// Buckets holds the per-partner results in run order.
	Buckets []*BucketResult

	Passed  []items.Item
	Pending []items.Item
	New     []items.Item
	Removed []items.Item

	// Carried lists buckets copied unchanged from the previous snapshot.
	Carried []string
	Skipped []Skipped

	Metadata ResultMetadata
}

// ResultMetadata contains metadata about the reconciliation run.
type ResultMetadata struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Partners that were reconciled, in order
	Partners []string

	TombstonePolicy TombstonePolicy
	DuplicatePolicy DuplicatePolicy

	Stats ResultStatistics
}

// ResultStatistics contains counts about the run.
type ResultStatistics struct {
	ItemsProcessed  int
	ItemsSkipped    int
	BucketsCarried  int
	DuplicatesFound int
	TotalTimeMs     int64
}

// NewResult creates a new result with defaults.
func NewResult() *Result {
	return &Result{
		Passed:  []items.Item{},
		Pending: []items.Item{},
		New:     []items.Item{},
		Removed: []items.Item{},
		Metadata: ResultMetadata{
			RunID:     uuid.NewString(),
			StartTime: time.Now(),
			Partners:  []string{},
		},
	}
}

// Finalize calculates duration and marks completion.
func (r *Result) Finalize() {
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
	r.Metadata.Stats.TotalTimeMs = r.Metadata.Duration.Milliseconds()
}

// HasChanges returns true if items were added or removed.
func (r *Result) HasChanges() bool {
	return len(r.New) > 0 || len(r.Removed) > 0
}

// Current returns every fetched item across buckets, in run order.
func (r *Result) Current() []items.Item {
	var all []items.Item
	for _, b := range r.Buckets {
		all = append(all, b.Current...)
	}
	return all
}

// Bucket returns the result for a partner.
func (r *Result) Bucket(partnerID string) (*BucketResult, bool) {
	for _, b := range r.Buckets {
		if b.Partner == partnerID {
			return b, true
		}
	}
	return nil, false
}

// PassedByType regroups passed items by their type, in type order.
// Types without passed items are present with an empty list.
func (r *Result) PassedByType() map[items.Type][]items.Item {
	return GroupByType(r.Passed)
}

// GroupByType groups items by type, keeping their relative order.
func GroupByType(list []items.Item) map[items.Type][]items.Item {
	out := make(map[items.Type][]items.Item, len(items.Types()))
	for _, t := range items.Types() {
		out[t] = []items.Item{}
	}
	for _, it := range list {
		out[it.Type] = append(out[it.Type], it)
	}
	return out
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := fmt.Sprintf("%d passed, %d pending, %d new, %d removed across %d partner(s)",
		len(r.Passed), len(r.Pending), len(r.New), len(r.Removed), len(r.Buckets))
	if len(r.Carried) > 0 {
		s += fmt.Sprintf(", %d carried over", len(r.Carried))
	}
	if !r.HasChanges() {
		s += "; no changes"
	}
	return s
}
