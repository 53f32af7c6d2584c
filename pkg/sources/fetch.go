package sources

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/logging"
)

// Outcome is the fetch result of one source.
type Outcome struct {
	Source   ID
	Fetched  *Fetched
	Err      error
	Duration time.Duration
}

// Failed reports whether the fetch failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Options configures FetchAll.
type Options struct {
	Timeout         time.Duration // per-source timeout
	Concurrency     int
	IsolateFailures bool
}

// Option is a function that configures FetchAll.
type Option func(*Options)

// WithTimeout bounds each source fetch.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithConcurrency limits how many sources are fetched at once.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithIsolateFailures keeps going when a source fails. The failure is
// recorded on its Outcome. Partner identity mismatches still abort.
func WithIsolateFailures() Option {
	return func(o *Options) {
		o.IsolateFailures = true
	}
}

func defaultOptions() *Options {
	return &Options{
		Timeout:     constants.SourceFetchTimeout,
		Concurrency: constants.MaxConcurrentFetches,
	}
}

// FetchAll fetches every source and returns outcomes in source order.
// By default the first failure cancels the remaining fetches and is returned.
func FetchAll(ctx context.Context, srcs []Source, opts ...Option) ([]Outcome, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	outcomes := make([]Outcome, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	if o.Concurrency > 0 {
		g.SetLimit(o.Concurrency)
	}

	for i, src := range srcs {
		g.Go(func() error {
			outcomes[i] = fetchOne(gctx, src, o.Timeout)
			err := outcomes[i].Err
			if err == nil {
				return nil
			}
			if errors.IsPartnerIdentity(err) || !o.IsolateFailures {
				return err
			}
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("source", src.ID().String()).
				Msg("Source failed, keeping its previous bucket")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func fetchOne(ctx context.Context, src Source, timeout time.Duration) Outcome {
	start := time.Now()
	out := Outcome{Source: src.ID()}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = logging.WithField(ctx, "source", src.ID().String())

	logger := logging.Ctx(ctx)
	logger.Debug().Msg("Fetching source")

	fetched, err := src.Fetch(ctx)
	out.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &errors.TimeoutError{
				Operation: "fetch " + src.ID().String(),
				Duration:  timeout.String(),
				Message:   err.Error(),
			}
		}
		out.Err = err
		return out
	}

	if fetched == nil {
		fetched = &Fetched{}
	}
	out.Fetched = fetched
	for _, s := range fetched.Skipped {
		logger.Warn().Str("item", s.ID).Str("reason", s.Reason).Msg("Skipped entry")
	}
	logger.Info().
		Int("items", len(fetched.Items)).
		Int("skipped", len(fetched.Skipped)).
		Dur("duration", out.Duration).
		Msg("Fetched source")
	return out
}
