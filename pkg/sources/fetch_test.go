package sources

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
)

type fakeSource struct {
	id    ID
	delay time.Duration
	items []items.RawItem
	err   error
	calls atomic.Int32
}

func (f *fakeSource) ID() ID { return f.id }

func (f *fakeSource) Partner() items.Partner {
	return items.Partner{ID: string(f.id), Source: "mem://" + string(f.id)}
}

func (f *fakeSource) Fetch(ctx context.Context) (*Fetched, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Fetched{Items: f.items}, nil
}

func TestFetchAllKeepsSourceOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	srcs := []Source{
		&fakeSource{id: "zenodo", delay: 30 * time.Millisecond, items: []items.RawItem{{"id": "a"}}},
		&fakeSource{id: "p1", delay: 10 * time.Millisecond, items: []items.RawItem{{"id": "b"}}},
		&fakeSource{id: "p2", items: []items.RawItem{{"id": "c"}}},
	}

	outcomes, err := FetchAll(context.Background(), srcs, WithConcurrency(3))
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, srcs[i].ID(), o.Source)
		assert.False(t, o.Failed())
		require.Len(t, o.Fetched.Items, 1)
	}
	assert.Equal(t, "a", outcomes[0].Fetched.Items[0]["id"])
}

func TestFetchAllFailFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.NewAPIError("p1", 503, "down")
	slow := &fakeSource{id: "p2", delay: 5 * time.Second}
	srcs := []Source{
		&fakeSource{id: "zenodo"},
		&fakeSource{id: "p1", err: boom},
		slow,
	}

	start := time.Now()
	outcomes, err := FetchAll(context.Background(), srcs)
	require.Error(t, err)
	assert.Nil(t, outcomes)
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
	assert.Less(t, time.Since(start), 2*time.Second, "remaining fetches are canceled")
}

func TestFetchAllIsolateFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	srcs := []Source{
		&fakeSource{id: "zenodo", items: []items.RawItem{{"id": "a"}}},
		&fakeSource{id: "p1", err: fmt.Errorf("feed broken")},
		&fakeSource{id: "p2", items: []items.RawItem{{"id": "c"}}},
	}

	outcomes, err := FetchAll(context.Background(), srcs, WithIsolateFailures())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.False(t, outcomes[0].Failed())
	assert.True(t, outcomes[1].Failed())
	assert.EqualError(t, outcomes[1].Err, "feed broken")
	assert.False(t, outcomes[2].Failed())
}

func TestFetchAllIdentityMismatchAlwaysFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	srcs := []Source{
		&fakeSource{id: "p1", err: &errors.PartnerIdentityError{Expected: "p1", Declared: "other"}},
	}

	_, err := FetchAll(context.Background(), srcs, WithIsolateFailures())
	require.Error(t, err)
	assert.True(t, errors.IsPartnerIdentity(err))
}

func TestFetchAllTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	srcs := []Source{&fakeSource{id: "p1", delay: time.Second}}

	_, err := FetchAll(context.Background(), srcs, WithTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
}

func TestFetchAllEmpty(t *testing.T) {
	outcomes, err := FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
