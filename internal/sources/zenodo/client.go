// Package zenodo implements the primary registry source: it searches the
// registry records API for collection uploads and converts each record into a
// raw collection item.
package zenodo

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/agentstation/collection/internal/transport"
	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/logging"
	"github.com/agentstation/collection/pkg/sources"
)

// Config configures the registry search.
type Config struct {
	BaseURL           string
	Community         string
	Type              items.Type // empty searches every type
	Query             string
	Sort              string
	PageSize          int
	MaxItems          int // scale limit of one run
	RequestsPerSecond float64
	AccessToken       string
}

// DefaultConfig returns the production registry configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           constants.ZenodoURL,
		Sort:              "mostviewed",
		PageSize:          constants.DefaultPageSize,
		MaxItems:          constants.DefaultMaxItems,
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
	}
}

// Source fetches items from the registry.
type Source struct {
	cfg     Config
	client  *transport.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithClient replaces the transport client.
func WithClient(c *transport.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// WithEmptyResultRetry sets how often a search answered without hits is
// repeated, and the pause between attempts.
func WithEmptyResultRetry(retries int, backoff time.Duration) Option {
	return func(s *Source) {
		s.retries = retries
		s.backoff = backoff
	}
}

// New creates a registry source.
func New(cfg Config, opts ...Option) *Source {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Sort == "" {
		cfg.Sort = def.Sort
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}

	s := &Source{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retries: constants.MaxRetries,
		backoff: constants.RetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		tOpts := []transport.Option{transport.WithSource("zenodo")}
		if cfg.AccessToken != "" {
			tOpts = append(tOpts, transport.WithAuth(&transport.BearerAuth{}, cfg.AccessToken))
		}
		s.client = transport.New(tOpts...)
	}
	return s
}

// ID implements sources.Source.
func (s *Source) ID() sources.ID {
	return sources.PrimaryID
}

// Partner implements sources.Source.
func (s *Source) Partner() items.Partner {
	return items.Partner{
		ID:     items.PrimaryPartnerID,
		Name:   "Zenodo",
		Source: s.cfg.BaseURL + "/api/records/",
	}
}

// Fetch pages through the search until the hits run out or MaxItems is reached.
func (s *Source) Fetch(ctx context.Context) (*sources.Fetched, error) {
	logger := logging.Ctx(ctx)
	out := &sources.Fetched{}
	seen := 0
	truncated := false

	for page := 1; seen < s.cfg.MaxItems; page++ {
		hits, total, err := s.page(ctx, page, logger)
		if err != nil {
			return nil, err
		}

		for _, raw := range hits {
			if seen >= s.cfg.MaxItems {
				truncated = true
				break
			}
			seen++
			item, skip := convertHit(raw)
			if skip != nil {
				out.Skipped = append(out.Skipped, *skip)
				continue
			}
			out.Items = append(out.Items, item)
		}

		if len(hits) < s.cfg.PageSize || (total > 0 && page*s.cfg.PageSize >= total) {
			break
		}
		if seen >= s.cfg.MaxItems && total > seen {
			truncated = true
		}
	}

	if truncated {
		logger.Warn().Int("max_items", s.cfg.MaxItems).Msg("Registry search truncated at the item limit")
	}
	return out, nil
}

// page fetches one search page. A body without hits means the registry is
// throttling; the request is repeated after a pause and reported as a 429
// once the retries are used up.
func (s *Source) page(ctx context.Context, page int, logger *zerolog.Logger) ([]json.RawMessage, int, error) {
	endpoint := s.searchURL(page)
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		var resp searchResponse
		if err := s.client.GetJSON(ctx, endpoint, &resp); err != nil {
			return nil, 0, err
		}
		if resp.Hits != nil {
			total, _ := resp.total()
			logger.Debug().Int("page", page).Int("hits", len(resp.Hits.Hits)).Int("total", total).Msg("Fetched registry page")
			return resp.Hits.Hits, total, nil
		}

		if attempt >= s.retries {
			return nil, 0, &errors.APIError{
				Source:     "zenodo",
				StatusCode: 429,
				Message:    "search answered without hits",
				Endpoint:   endpoint,
			}
		}
		logger.Warn().Int("page", page).Int("attempt", attempt+1).Msg("Hitting rate limit, retrying")
		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

func (s *Source) searchURL(page int) string {
	q := url.Values{}
	if s.cfg.Community != "" {
		q.Set("communities", s.cfg.Community)
	}
	q.Set("sort", s.cfg.Sort)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(s.cfg.PageSize))
	q.Add("keywords", constants.CommunityKeyword)
	if s.cfg.Type != "" {
		q.Add("keywords", constants.TypeKeywordPrefix+string(s.cfg.Type))
	}
	if s.cfg.Query != "" {
		q.Set("q", s.cfg.Query)
	}
	return s.cfg.BaseURL + "/api/records/?" + q.Encode()
}

func convertHit(raw json.RawMessage) (items.RawItem, *sources.Skip) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &sources.Skip{Reason: sources.ReasonInvalidEntry + ": " + err.Error()}
	}
	var deposit map[string]any
	if err := json.Unmarshal(raw, &deposit); err != nil {
		return nil, &sources.Skip{ID: rec.Metadata.DOI, Reason: sources.ReasonInvalidEntry + ": " + err.Error()}
	}

	item, err := ToRawItem(rec, deposit)
	if err != nil {
		id := rec.Metadata.DOI
		if id == "" {
			id = rec.ID.String()
		}
		return nil, &sources.Skip{ID: id, Reason: sources.ReasonInvalidEntry + ": " + err.Error()}
	}
	return item, nil
}

var _ sources.Source = (*Source)(nil)
