package reconciler_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/logging"
	"github.com/agentstation/collection/pkg/reconciler"
	"github.com/agentstation/collection/pkg/sources"
)

func newReconciler(t *testing.T, opts ...reconciler.Option) reconciler.Reconciler {
	t.Helper()
	r, err := reconciler.New(opts...)
	require.NoError(t, err)
	return r
}

func dataset(id string) items.Item {
	return items.Item{ID: id, Type: items.TypeDataset, Fields: map[string]any{"name": id}}
}

func indexed(id string, status items.Status) items.Item {
	return items.Item{ID: id, Type: items.TypeDataset, Status: status}
}

func snapshotWith(buckets map[string][]items.Item, order ...string) *items.Snapshot {
	s := items.NewSnapshot()
	for _, id := range order {
		s.SetBucket(id, buckets[id])
	}
	return s
}

func TestReconcileZenodoScenario(t *testing.T) {
	previous := snapshotWith(map[string][]items.Item{
		"zenodo": {indexed("10.1/abc", items.StatusPassed)},
	}, "zenodo")
	current := []items.Item{dataset("10.1/abc"), dataset("10.1/xyz")}

	res, err := newReconciler(t).Reconcile(previous, "zenodo", current)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.1/abc"}, items.IDs(res.Passed))
	assert.Equal(t, []string{"10.1/xyz"}, items.IDs(res.New))
	assert.Equal(t, []string{"10.1/xyz"}, items.IDs(res.Pending))
	assert.Empty(t, res.Removed)

	want := []items.Item{
		indexed("10.1/abc", items.StatusPassed),
		indexed("10.1/xyz", items.StatusPending),
	}
	if diff := cmp.Diff(want, res.Next); diff != "" {
		t.Errorf("next bucket mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "zenodo", res.Current[0].PartnerID)
	assert.Equal(t, "10.1/abc", res.Current[0].Fields["name"], "full record is kept on current items")
}

func TestReconcileStatusIsSticky(t *testing.T) {
	for _, status := range []items.Status{items.StatusPassed, items.StatusPending} {
		t.Run(status.String(), func(t *testing.T) {
			previous := snapshotWith(map[string][]items.Item{"p": {indexed("p/1", status)}}, "p")

			res, err := newReconciler(t).Reconcile(previous, "p", []items.Item{dataset("p/1")})
			require.NoError(t, err)
			assert.Equal(t, status, res.Next[0].Status)
			assert.Empty(t, res.New)
		})
	}
}

func TestReconcileNewItems(t *testing.T) {
	res, err := newReconciler(t).Reconcile(nil, "zenodo", []items.Item{dataset("a"), dataset("b")})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, items.IDs(res.New))
	assert.Equal(t, []string{"a", "b"}, items.IDs(res.Pending))
	for _, it := range res.Next {
		assert.Equal(t, items.StatusPending, it.Status)
	}
}

func TestReconcileRemovedItems(t *testing.T) {
	previous := snapshotWith(map[string][]items.Item{
		"zenodo": {indexed("a", items.StatusPassed), indexed("b", items.StatusPending)},
	}, "zenodo")

	t.Run("retain", func(t *testing.T) {
		res, err := newReconciler(t).Reconcile(previous, "zenodo", []items.Item{dataset("a")})
		require.NoError(t, err)
		require.Len(t, res.Removed, 1)
		assert.Equal(t, "b", res.Removed[0].ID)
		assert.Equal(t, items.StatusDeleted, res.Removed[0].Status)
		assert.Equal(t, []items.Item{indexed("a", items.StatusPassed), indexed("b", items.StatusDeleted)}, res.Next)
	})

	t.Run("prune", func(t *testing.T) {
		r := newReconciler(t, reconciler.WithTombstonePolicy(reconciler.TombstonePrune))
		res, err := r.Reconcile(previous, "zenodo", []items.Item{dataset("a")})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, items.IDs(res.Removed))
		assert.Equal(t, []string{"a"}, items.IDs(res.Next))
	})

	t.Run("tombstones are not reported twice", func(t *testing.T) {
		prev := snapshotWith(map[string][]items.Item{"zenodo": {indexed("b", items.StatusDeleted)}}, "zenodo")
		res, err := newReconciler(t).Reconcile(prev, "zenodo", nil)
		require.NoError(t, err)
		assert.Empty(t, res.Removed)
		assert.Equal(t, []items.Item{indexed("b", items.StatusDeleted)}, res.Next)
	})

	t.Run("reappearing tombstone is new", func(t *testing.T) {
		prev := snapshotWith(map[string][]items.Item{"zenodo": {indexed("b", items.StatusDeleted)}}, "zenodo")
		res, err := newReconciler(t).Reconcile(prev, "zenodo", []items.Item{dataset("b")})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, items.IDs(res.New))
		assert.Equal(t, items.StatusPending, res.Next[0].Status)
	})
}

func TestReconcileDuplicates(t *testing.T) {
	current := []items.Item{dataset("a"), dataset("a")}

	_, err := newReconciler(t).Reconcile(nil, "zenodo", current)
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateID(err))

	r := newReconciler(t, reconciler.WithDuplicatePolicy(reconciler.DuplicateFirstMatch))
	res, err := r.Reconcile(nil, "zenodo", current)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Duplicates)
	assert.Len(t, res.Next, 1)

	prev := snapshotWith(map[string][]items.Item{
		"zenodo": {indexed("a", items.StatusPassed), indexed("a", items.StatusPending)},
	}, "zenodo")
	_, err = newReconciler(t).Reconcile(prev, "zenodo", []items.Item{dataset("a")})
	var dup *errors.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "previous", dup.Origin)

	res, err = r.Reconcile(prev, "zenodo", []items.Item{dataset("a")})
	require.NoError(t, err)
	assert.Equal(t, items.StatusPassed, res.Next[0].Status, "first previous occurrence wins")
}

func TestPartnerNamespacing(t *testing.T) {
	a, err := items.Normalize(items.RawItem{"id": 42, "type": "dataset"}, "partnerA")
	require.NoError(t, err)
	b, err := items.Normalize(items.RawItem{"id": 42, "type": "dataset"}, "partnerB")
	require.NoError(t, err)

	batches := []reconciler.Batch{
		{Partner: items.Partner{ID: "partnerA", Source: "a"}, Items: []items.Item{a}},
		{Partner: items.Partner{ID: "partnerB", Source: "b"}, Items: []items.Item{b}},
	}
	res, err := newReconciler(t).Run(context.Background(), nil, batches)
	require.NoError(t, err)

	assert.Equal(t, []string{"partnerA/42", "partnerB/42"}, items.IDs(res.New))
	assert.Equal(t, []string{"partnerA/42"}, items.IDs(res.Next.Bucket("partnerA")))
	assert.Equal(t, []string{"partnerB/42"}, items.IDs(res.Next.Bucket("partnerB")))
}

func TestRunIsIdempotent(t *testing.T) {
	r := newReconciler(t)
	batches := []reconciler.Batch{
		{Partner: items.Partner{ID: "zenodo"}, Items: []items.Item{dataset("10.1/abc"), dataset("10.1/xyz")}},
		{Partner: items.Partner{ID: "imjoy", Source: "feed"}, Items: []items.Item{dataset("imjoy/a")}},
	}
	previous := snapshotWith(map[string][]items.Item{
		"zenodo": {indexed("10.1/abc", items.StatusPassed), indexed("10.1/old", items.StatusPassed)},
	}, "zenodo")

	first, err := r.Run(context.Background(), previous, batches)
	require.NoError(t, err)
	assert.True(t, first.HasChanges())

	second, err := r.Run(context.Background(), first.Next, batches)
	require.NoError(t, err)
	assert.False(t, second.HasChanges())
	assert.Empty(t, second.New)
	assert.Empty(t, second.Removed)

	if diff := cmp.Diff(first.Next.Items(), second.Next.Items()); diff != "" {
		t.Errorf("second run changed the snapshot (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Next.BucketIDs(), second.Next.BucketIDs())
}

func TestRunAggregates(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	previous := snapshotWith(map[string][]items.Item{
		"zenodo":  {indexed("z1", items.StatusPassed)},
		"imjoy":   {indexed("imjoy/a", items.StatusPassed)},
		"offline": {indexed("offline/x", items.StatusPending)},
	}, "zenodo", "imjoy", "offline")
	previous.Config.Partners = []items.Partner{
		{ID: "imjoy", Source: "feed", Name: "Old"},
		{ID: "offline", Source: "feed2"},
	}

	app := items.Item{ID: "imjoy/b", Type: items.TypeApplication}
	batches := []reconciler.Batch{
		{Partner: items.Partner{ID: "zenodo"}, Items: []items.Item{dataset("z1")}},
		{
			Partner: items.Partner{ID: "imjoy", Source: "feed", Name: "ImJoy"},
			Items:   []items.Item{dataset("imjoy/a"), app},
			Skipped: []sources.Skip{{ID: "plugin", Reason: sources.ReasonPluginDescriptor}},
		},
	}

	res, err := newReconciler(t).Run(ctx, previous, batches)
	require.NoError(t, err)

	assert.Equal(t, []string{"z1", "imjoy/a"}, items.IDs(res.Passed))
	assert.Equal(t, []string{"imjoy/b"}, items.IDs(res.Pending))
	assert.Equal(t, []string{"offline"}, res.Carried)
	assert.Equal(t, []string{"zenodo", "imjoy", "offline"}, res.Next.BucketIDs())
	assert.Equal(t, previous.Bucket("offline"), res.Next.Bucket("offline"))
	assert.Equal(t, []string{"zenodo", "imjoy"}, res.Metadata.Partners)
	assert.NotEmpty(t, res.Metadata.RunID)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "imjoy", res.Skipped[0].Partner)

	p, ok := res.Next.Partner("imjoy")
	require.True(t, ok)
	assert.Equal(t, "ImJoy", p.Name)

	byType := res.PassedByType()
	assert.Len(t, byType[items.TypeDataset], 2)
	assert.Empty(t, byType[items.TypeApplication])
	assert.Len(t, res.Current(), 3)

	tl.AssertContains(t, "Pending items")
	tl.AssertContains(t, "imjoy/b")
	tl.AssertContains(t, "keeping its previous bucket")
	assert.Contains(t, res.Summary(), "1 carried over")
}

func TestRunRejectsRepeatedPartner(t *testing.T) {
	batches := []reconciler.Batch{
		{Partner: items.Partner{ID: "p"}},
		{Partner: items.Partner{ID: "p"}},
	}
	_, err := newReconciler(t).Run(context.Background(), nil, batches)
	assert.True(t, errors.IsValidationError(err))
}

func TestPrune(t *testing.T) {
	s := snapshotWith(map[string][]items.Item{
		"zenodo": {indexed("a", items.StatusPassed), indexed("b", items.StatusDeleted)},
	}, "zenodo")

	pruned := reconciler.Prune(s)
	assert.Equal(t, []string{"a"}, items.IDs(pruned.Bucket("zenodo")))
	assert.Len(t, s.Bucket("zenodo"), 2, "input is not modified")
}

func TestOptionsValidation(t *testing.T) {
	_, err := reconciler.New(reconciler.WithTombstonePolicy("forget"))
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New(reconciler.WithDuplicatePolicy("last"))
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New(reconciler.WithDiffer(nil))
	assert.True(t, errors.IsValidationError(err))

	assert.Equal(t, "First Match", reconciler.DuplicateFirstMatch.Name())
	assert.Equal(t, "Retain", reconciler.TombstoneRetain.Name())
}
