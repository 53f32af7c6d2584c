// Package reconciler merges freshly fetched items into the previous catalog
// snapshot. Moderation decisions are sticky: an item keeps the status it had
// in the previous snapshot, new items start pending, and items that vanished
// from their source become deleted tombstones.
package reconciler

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/logging"
)

// Reconciler is the main interface for reconciling fetched items.
type Reconciler interface {
	// Reconcile merges the current items of one partner into its previous bucket.
	Reconcile(previous *items.Snapshot, partnerID string, current []items.Item) (*BucketResult, error)

	// Run reconciles every batch in order and aggregates the results.
	Run(ctx context.Context, previous *items.Snapshot, batches []Batch) (*Result, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	options *options
}

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{options: options}, nil
}

// Reconcile merges current into the previous bucket of partnerID.
func (r *reconciler) Reconcile(previous *items.Snapshot, partnerID string, current []items.Item) (*BucketResult, error) {
	if partnerID == "" {
		return nil, &errors.ValidationError{Field: "partner", Message: "partner id cannot be empty"}
	}

	prev := previous.Bucket(partnerID)
	res := &BucketResult{
		Partner: partnerID,
		Current: make([]items.Item, 0, len(current)),
		Next:    make([]items.Item, 0, len(current)),
		Passed:  []items.Item{},
		Pending: []items.Item{},
		New:     []items.Item{},
		Removed: []items.Item{},
	}

	if dups := items.DuplicateIDs(prev); len(dups) > 0 && r.options.duplicates == DuplicateReject {
		return nil, &errors.DuplicateIDError{Partner: partnerID, Origin: "previous", IDs: dups}
	}
	if dups := items.DuplicateIDs(current); len(dups) > 0 {
		if r.options.duplicates == DuplicateReject {
			return nil, &errors.DuplicateIDError{Partner: partnerID, Origin: "current", IDs: dups}
		}
		res.Duplicates = dups
		current = firstOccurrences(current)
	}

	cs := r.options.differ.Items(prev, current)
	res.Changeset = cs

	previousByID := make(map[string]items.Item, len(cs.Retained))
	for _, kept := range cs.Retained {
		previousByID[kept.Current.ID] = kept.Previous
	}

	for _, it := range current {
		it.PartnerID = partnerID
		before, known := previousByID[it.ID]
		switch {
		case !known || before.Status == items.StatusDeleted:
			// A reappearing tombstone starts over; its old decision no longer applies.
			it.Status = items.StatusPending
			res.New = append(res.New, it)
		case before.Status == "":
			it.Status = items.StatusPending
		default:
			it.Status = before.Status
		}

		switch it.Status {
		case items.StatusPassed:
			res.Passed = append(res.Passed, it)
		case items.StatusPending:
			res.Pending = append(res.Pending, it)
		}
		res.Current = append(res.Current, it)
		res.Next = append(res.Next, it.Project())
	}

	for _, gone := range cs.Removed {
		wasTombstone := gone.Status == items.StatusDeleted
		gone.Status = items.StatusDeleted
		if gone.PartnerID == "" {
			gone.PartnerID = partnerID
		}
		if !wasTombstone {
			res.Removed = append(res.Removed, gone)
		}
		if r.options.tombstones == TombstoneRetain {
			res.Next = append(res.Next, gone.Project())
		}
	}

	return res, nil
}

// Run reconciles each batch in order. Buckets of the previous snapshot that
// no batch covers are carried into the next snapshot unchanged.
func (r *reconciler) Run(ctx context.Context, previous *items.Snapshot, batches []Batch) (*Result, error) {
	if previous == nil {
		previous = items.NewSnapshot()
	}
	result := NewResult()
	result.Metadata.TombstonePolicy = r.options.tombstones
	result.Metadata.DuplicatePolicy = r.options.duplicates

	ctx = logging.WithRunID(ctx, result.Metadata.RunID)
	logger := logging.Ctx(ctx)

	result.Next = previous.Template()
	buckets := make(map[string][]items.Item, len(batches))

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		partnerID := batch.Partner.ID
		if _, dup := buckets[partnerID]; dup {
			return nil, &errors.ValidationError{Field: "partner", Value: partnerID, Message: "partner reconciled twice in one run"}
		}

		br, err := r.Reconcile(previous, partnerID, batch.Items)
		if err != nil {
			return nil, errors.WrapResource("reconcile", "partner", partnerID, err)
		}
		buckets[partnerID] = br.Next
		if partnerID != items.PrimaryPartnerID {
			result.Next.SetPartner(batch.Partner)
		}

		result.Buckets = append(result.Buckets, br)
		result.Metadata.Partners = append(result.Metadata.Partners, partnerID)
		result.Passed = append(result.Passed, br.Passed...)
		result.Pending = append(result.Pending, br.Pending...)
		result.New = append(result.New, br.New...)
		result.Removed = append(result.Removed, br.Removed...)
		for _, s := range batch.Skipped {
			result.Skipped = append(result.Skipped, Skipped{Partner: partnerID, Skip: s})
		}
		result.Metadata.Stats.ItemsProcessed += len(br.Current)
		result.Metadata.Stats.DuplicatesFound += len(br.Duplicates)

		logBucket(logger, br)
	}

	// Keep the previous bucket order stable, then append buckets seen for the first time.
	order := previous.BucketIDs()
	for _, id := range result.Metadata.Partners {
		if !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	for _, id := range order {
		if next, ok := buckets[id]; ok {
			result.Next.SetBucket(id, next)
			continue
		}
		result.Next.SetBucket(id, previous.Bucket(id))
		result.Carried = append(result.Carried, id)
		logger.Warn().Str("partner", id).Msg("Partner not fetched in this run, keeping its previous bucket")
	}

	result.Metadata.Stats.ItemsSkipped = len(result.Skipped)
	result.Metadata.Stats.BucketsCarried = len(result.Carried)
	result.Finalize()

	logger.Info().
		Int("passed", len(result.Passed)).
		Int("pending", len(result.Pending)).
		Int("new", len(result.New)).
		Int("removed", len(result.Removed)).
		Int("carried", len(result.Carried)).
		Dur("duration", result.Metadata.Duration).
		Msg("Reconciliation completed")
	return result, nil
}

// logBucket reports the id lists of one partner.
func logBucket(logger *zerolog.Logger, br *BucketResult) {
	if len(br.Duplicates) > 0 {
		logger.Warn().Str("partner", br.Partner).Strs("ids", br.Duplicates).Msg("Duplicate ids, keeping first occurrence")
	}
	logger.Info().Str("partner", br.Partner).Strs("ids", items.IDs(br.Passed)).Msg("Passed items")
	logger.Info().Str("partner", br.Partner).Strs("ids", items.IDs(br.New)).Msg("New items")
	logger.Info().Str("partner", br.Partner).Strs("ids", items.IDs(br.Removed)).Msg("Removed items")
	logger.Info().Str("partner", br.Partner).Strs("ids", items.IDs(br.Pending)).Msg("Pending items")
}

// Prune returns a copy of the snapshot without deleted tombstones.
func Prune(s *items.Snapshot) *items.Snapshot {
	out := s.Template()
	for _, id := range s.BucketIDs() {
		kept := slices.DeleteFunc(s.Bucket(id), func(it items.Item) bool {
			return it.Status == items.StatusDeleted
		})
		out.SetBucket(id, kept)
	}
	return out
}

// firstOccurrences drops repeated ids, keeping the first.
func firstOccurrences(list []items.Item) []items.Item {
	seen := make(map[string]bool, len(list))
	out := make([]items.Item, 0, len(list))
	for _, it := range list {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
