package collection_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/collection"
	"github.com/agentstation/collection/internal/sources/zenodo"
	"github.com/agentstation/collection/internal/store"
	"github.com/agentstation/collection/internal/transport"
	"github.com/agentstation/collection/pkg/build"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/save"
	"github.com/agentstation/collection/pkg/sources"
)

type fakeSource struct {
	partner items.Partner
	fetched *sources.Fetched
	err     error
}

func (f *fakeSource) ID() sources.ID         { return sources.ID(f.partner.ID) }
func (f *fakeSource) Partner() items.Partner { return f.partner }
func (f *fakeSource) Fetch(context.Context) (*sources.Fetched, error) {
	return f.fetched, f.err
}

func primary(raws ...items.RawItem) *fakeSource {
	return &fakeSource{
		partner: items.Partner{ID: items.PrimaryPartnerID},
		fetched: &sources.Fetched{Items: raws},
	}
}

func raw(id, typ string) items.RawItem {
	return items.RawItem{"id": id, "type": typ, "name": "item " + id}
}

type workspace struct {
	dir, index, dist, collection string
}

func newWorkspace(t *testing.T, index string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:        dir,
		index:      filepath.Join(dir, "rdf.yaml"),
		dist:       filepath.Join(dir, "dist"),
		collection: filepath.Join(dir, "collection"),
	}
	if index != "" {
		require.NoError(t, os.WriteFile(ws.index, []byte(index), 0o600))
	}
	return ws
}

func (ws workspace) builder(t *testing.T, opts ...collection.Option) *collection.Builder {
	t.Helper()
	base := []collection.Option{
		collection.WithIndexPath(ws.index),
		collection.WithDistDir(ws.dist),
		collection.WithCollectionDir(ws.collection),
	}
	b, err := collection.New(append(base, opts...)...)
	require.NoError(t, err)
	return b
}

func (ws workspace) exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

const zenodoIndex = `attachments:
  zenodo:
  - id: 10.1/abc
    type: dataset
    status: passed
`

func TestBuildZenodoScenario(t *testing.T) {
	ws := newWorkspace(t, zenodoIndex)
	b := ws.builder(t, collection.WithSources(primary(raw("10.1/abc", "dataset"), raw("10.1/xyz", "dataset"))))

	var added []string
	b.OnItemAdded(func(it items.Item) { added = append(added, it.ID) })

	res, err := b.Build(context.Background(), build.WithOverwrite(true))
	require.NoError(t, err)
	require.NotNil(t, res.Report)

	assert.Equal(t, []string{"10.1/abc"}, items.IDs(res.Run.Passed))
	assert.Equal(t, []string{"10.1/xyz"}, items.IDs(res.Run.New))
	assert.Equal(t, []string{"10.1/xyz"}, items.IDs(res.Run.Pending))
	assert.Equal(t, []string{"10.1/xyz"}, added)

	index, err := items.LoadSnapshot(ws.index)
	require.NoError(t, err)
	got := index.Bucket("zenodo")
	require.Len(t, got, 2)
	assert.Equal(t, items.StatusPassed, got[0].Status)
	assert.Equal(t, items.StatusPending, got[1].Status)

	export, err := items.LoadSnapshot(filepath.Join(ws.dist, "rdf.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1/abc"}, items.IDs(export.Bucket("zenodo")))
}

func TestBuildIsIdempotent(t *testing.T) {
	ws := newWorkspace(t, zenodoIndex)
	src := primary(raw("10.1/abc", "dataset"), raw("10.1/xyz", "dataset"))

	_, err := ws.builder(t, collection.WithSources(src)).Build(context.Background(), build.WithOverwrite(true))
	require.NoError(t, err)
	first, err := os.ReadFile(ws.index)
	require.NoError(t, err)

	res, err := ws.builder(t, collection.WithSources(src)).Build(context.Background(), build.WithOverwrite(true))
	require.NoError(t, err)
	second, err := os.ReadFile(ws.index)
	require.NoError(t, err)

	assert.False(t, res.HasChanges())
	assert.True(t, res.Report.ReviewNoop)
	assert.Equal(t, string(first), string(second))
}

func TestBuildProposeKeepsIndex(t *testing.T) {
	ws := newWorkspace(t, zenodoIndex)
	_, err := ws.builder(t, collection.WithSources(primary(raw("10.1/abc", "dataset")))).
		Build(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(ws.index)
	require.NoError(t, err)
	assert.Equal(t, zenodoIndex, string(data))
	assert.True(t, ws.exists(filepath.Join(ws.dir, "new-rdf.yaml")))
}

func TestBuildPartnerIdentityMismatchWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/records/":
			fmt.Fprint(w, `{"hits":{"total":0,"hits":[]}}`)
		case "/imjoy.yaml":
			fmt.Fprint(w, "config:\n  id: someone-else\napplication:\n- id: viewer\n  name: Viewer\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	index := fmt.Sprintf("config:\n  partners:\n  - id: imjoy\n    source: %s/imjoy.yaml\n%s", srv.URL, zenodoIndex)
	ws := newWorkspace(t, index)
	b := ws.builder(t,
		collection.WithZenodo(zenodo.Config{BaseURL: srv.URL, RequestsPerSecond: 1000}),
		collection.WithClient(transport.New(transport.WithRetry(0, time.Millisecond, time.Millisecond))),
	)

	_, err := b.Build(context.Background(), build.WithOverwrite(true))
	require.Error(t, err)
	assert.True(t, errors.IsPartnerIdentity(err))

	data, readErr := os.ReadFile(ws.index)
	require.NoError(t, readErr)
	assert.Equal(t, index, string(data), "index is untouched")
	assert.False(t, ws.exists(ws.dist))
	assert.False(t, ws.exists(ws.collection))
	assert.False(t, ws.exists(filepath.Join(ws.dir, "new-rdf.yaml")))
}

func TestBuildPartnerNamespacing(t *testing.T) {
	index := "config:\n  partners:\n  - id: partnerA\n    source: a.yaml\n  - id: partnerB\n    source: b.yaml\n"
	ws := newWorkspace(t, index)
	srcA := &fakeSource{
		partner: items.Partner{ID: "partnerA", Source: "a.yaml"},
		fetched: &sources.Fetched{
			Config: &items.PartnerConfig{ID: "partnerA", Name: "Partner A"},
			Items:  []items.RawItem{{"id": 42, "type": "application"}},
		},
	}
	srcB := &fakeSource{
		partner: items.Partner{ID: "partnerB", Source: "b.yaml"},
		fetched: &sources.Fetched{Items: []items.RawItem{{"id": "42", "type": "application"}}},
	}

	res, err := ws.builder(t, collection.WithSources(primary(), srcA, srcB)).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"partnerA/42", "partnerB/42"}, items.IDs(res.Run.New))
	p, ok := res.Run.Next.Partner("partnerA")
	require.True(t, ok)
	assert.Equal(t, "Partner A", p.Name, "feed config is overlaid on the descriptor")
}

func TestBuildPrefixedLocalIDsDoNotCollide(t *testing.T) {
	ws := newWorkspace(t, "config:\n  partners:\n  - id: imjoy\n    source: imjoy.yaml\n")
	feed := &fakeSource{
		partner: items.Partner{ID: "imjoy", Source: "imjoy.yaml"},
		fetched: &sources.Fetched{Items: []items.RawItem{
			{"id": "1", "type": "application"},
			{"id": "imjoy/1", "type": "application"},
		}},
	}

	res, err := ws.builder(t, collection.WithSources(primary(), feed)).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"imjoy/1", "imjoy/imjoy/1"}, items.IDs(res.Run.New))
}

func TestBuildIsolateFailures(t *testing.T) {
	index := "config:\n  partners:\n  - id: flaky\n    source: flaky.yaml\nattachments:\n  flaky:\n  - id: flaky/1\n    type: dataset\n    status: passed\n"
	flaky := &fakeSource{
		partner: items.Partner{ID: "flaky", Source: "flaky.yaml"},
		err:     errors.NewAPIError("flaky", 503, "unavailable"),
	}

	t.Run("fail fast", func(t *testing.T) {
		ws := newWorkspace(t, index)
		_, err := ws.builder(t, collection.WithSources(primary(), flaky)).Build(context.Background())
		require.Error(t, err)
		assert.False(t, ws.exists(ws.dist))
	})

	t.Run("isolated", func(t *testing.T) {
		ws := newWorkspace(t, index)
		seedRecords(t, ws, items.Item{ID: "flaky/1", Type: items.TypeDataset, Status: items.StatusPassed, PartnerID: "flaky"})
		res, err := ws.builder(t, collection.WithSources(primary(), flaky)).
			Build(context.Background(), build.WithIsolateFailures(true))
		require.NoError(t, err)

		require.Len(t, res.Failed, 1)
		assert.Equal(t, sources.ID("flaky"), res.Failed[0].Source)
		assert.Equal(t, []string{"flaky"}, res.Run.Carried)
		assert.Equal(t, []string{"flaky/1"}, items.IDs(res.Run.Next.Bucket("flaky")))
		assert.Empty(t, res.Run.Removed, "a failed source does not remove its items")
		assert.Contains(t, res.Summary(), "failed: flaky")

		export, err := items.LoadSnapshot(filepath.Join(ws.dist, "rdf.yaml"))
		require.NoError(t, err)
		assert.Equal(t, []string{"flaky/1"}, items.IDs(export.Bucket("flaky")))
	})
}

func seedRecords(t *testing.T, ws workspace, list ...items.Item) {
	t.Helper()
	require.NoError(t, store.New(ws.collection).Write(list))
}

const partnerIndex = `config:
  partners:
  - id: imjoy
    source: imjoy.yaml
attachments:
  zenodo:
  - id: 10.1/abc
    type: dataset
    status: passed
  imjoy:
  - id: imjoy/1
    type: application
    status: passed
  - id: imjoy/2
    type: application
    status: pending
  - id: imjoy/3
    type: application
    status: deleted
`

func TestBuildOverwriteKeepsCarriedBucketsInExport(t *testing.T) {
	ws := newWorkspace(t, partnerIndex)
	seedRecords(t, ws,
		items.Item{ID: "imjoy/1", Type: items.TypeApplication, Status: items.StatusPassed, PartnerID: "imjoy",
			Fields: map[string]any{"name": "Viewer"}},
		items.Item{ID: "imjoy/2", Type: items.TypeApplication, Status: items.StatusPending, PartnerID: "imjoy"},
	)
	imjoy := &fakeSource{partner: items.Partner{ID: "imjoy", Source: "imjoy.yaml"}, err: fmt.Errorf("must not be fetched")}
	src := primary(raw("10.1/abc", "dataset"), raw("10.1/xyz", "dataset"))

	res, err := ws.builder(t, collection.WithSources(src, imjoy)).
		Build(context.Background(), build.WithOverwrite(true), build.WithPartners("zenodo"))
	require.NoError(t, err)
	assert.Equal(t, []string{"imjoy"}, res.Run.Carried)

	index, err := items.LoadSnapshot(ws.index)
	require.NoError(t, err)
	assert.Equal(t, []string{"imjoy/1", "imjoy/2", "imjoy/3"}, items.IDs(index.Bucket("imjoy")))

	export, err := items.LoadSnapshot(filepath.Join(ws.dist, "rdf.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1/abc"}, items.IDs(export.Bucket("zenodo")))
	carried := export.Bucket("imjoy")
	require.Len(t, carried, 1)
	assert.Equal(t, "imjoy/1", carried[0].ID)
	assert.Equal(t, "Viewer", carried[0].Fields["name"], "carried items are exported with their full record")

	review, err := items.LoadSnapshot(filepath.Join(ws.dist, "test-rdf.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"imjoy/1", "imjoy/2"}, items.IDs(review.Bucket("imjoy")))
}

func TestBuildCarriedBucketByType(t *testing.T) {
	ws := newWorkspace(t, partnerIndex)
	seedRecords(t, ws, items.Item{ID: "imjoy/1", Type: items.TypeApplication, Status: items.StatusPassed, PartnerID: "imjoy"})

	_, err := ws.builder(t, collection.WithSources(primary(raw("10.1/abc", "dataset")))).
		Build(context.Background(), build.WithPartners("zenodo"), build.WithGroupBy(save.GroupByType))
	require.NoError(t, err)

	export, err := items.LoadSnapshot(filepath.Join(ws.dist, "rdf.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1/abc"}, items.IDs(export.Bucket("dataset")))
	assert.Equal(t, []string{"imjoy/1"}, items.IDs(export.Bucket("application")))
}

func TestBuildCarriedPassedItemWithoutRecordWritesNothing(t *testing.T) {
	ws := newWorkspace(t, partnerIndex)
	before, err := os.ReadFile(ws.index)
	require.NoError(t, err)

	_, err = ws.builder(t, collection.WithSources(primary(raw("10.1/abc", "dataset")))).
		Build(context.Background(), build.WithOverwrite(true), build.WithPartners("zenodo"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	after, err := os.ReadFile(ws.index)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.False(t, ws.exists(ws.dist))
}

func TestBuildSkipsInvalidItems(t *testing.T) {
	ws := newWorkspace(t, "")
	src := primary(raw("10.1/ok", "dataset"), items.RawItem{"id": "10.1/bad", "type": "model"})

	res, err := ws.builder(t, collection.WithSources(src)).Build(context.Background(), build.WithDryRun(true))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, []string{"10.1/ok"}, items.IDs(res.Run.New))
	require.Len(t, res.Run.Skipped, 1)
	assert.Equal(t, "10.1/bad", res.Run.Skipped[0].ID)
}

func TestBuildDryRunWritesNothing(t *testing.T) {
	ws := newWorkspace(t, zenodoIndex)
	res, err := ws.builder(t, collection.WithSources(primary(raw("10.1/new", "dataset")))).
		Build(context.Background(), build.WithDryRun(true), build.WithOverwrite(true))
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Nil(t, res.Report)
	assert.True(t, res.HasChanges())
	assert.False(t, ws.exists(ws.dist))
}

func TestBuildRejectsUndeclaredPartner(t *testing.T) {
	ws := newWorkspace(t, zenodoIndex)
	_, err := ws.builder(t, collection.WithSources(primary())).
		Build(context.Background(), build.WithPartners("nobody"))
	assert.True(t, errors.IsValidationError(err))
}

func TestCheckAfterBuild(t *testing.T) {
	ws := newWorkspace(t, zenodoIndex)
	b := ws.builder(t, collection.WithSources(primary(raw("10.1/abc", "dataset"), raw("10.1/xyz", "dataset"))))

	_, err := b.Build(context.Background(), build.WithOverwrite(true))
	require.NoError(t, err)

	report, err := b.Check(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsGateFailure(err))
	assert.Equal(t, []string{"10.1/xyz"}, report.Pending)
	assert.Equal(t, []string{"10.1/abc"}, report.Passed)
}

func TestNewRejectsEmptyPaths(t *testing.T) {
	_, err := collection.New(collection.WithIndexPath(""))
	assert.Error(t, err)
}
