package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/logging"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger(t)
	base := []Option{
		WithSource("test"),
		WithRetry(2, time.Millisecond, 5*time.Millisecond),
		WithLogger(tl.Logger),
	}
	return New(append(base, opts...)...), tl
}

func TestGetText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "collection", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("config:\n  id: imjoy\n"))
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	text, err := c.GetText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "config:\n  id: imjoy\n", text)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"id":1}]}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, WithAuth(&BearerAuth{}, "secret"))
	var out struct {
		Hits struct {
			Hits []map[string]any `json:"hits"`
		} `json:"hits"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Len(t, out.Hits.Hits, 1)
}

func TestGetJSONParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	var pe *errors.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	text, err := c.GetText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitedAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	_, err := c.GetText(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
	assert.True(t, errors.IsFetchError(err))
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")

	var apiErr *errors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "test", apiErr.Source)
	assert.Equal(t, srv.URL, apiErr.Endpoint)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	_, err := c.GetText(context.Background(), srv.URL)
	var apiErr *errors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := newTestClient(t, WithRetry(0, time.Millisecond, time.Millisecond))
	_, err := c.GetText(context.Background(), url)
	var fe *errors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, url, fe.URL)
}

func TestCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestClient(t)
	_, err := c.GetText(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
