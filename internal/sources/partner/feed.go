// Package partner implements the partner feed source. A feed is a YAML
// document with a config block describing the partner and one list of items
// per supported type.
package partner

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/collection/internal/transport"
	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/sources"
)

// feed is the decoded feed document.
type feed struct {
	Config      *items.PartnerConfig `yaml:"config"`
	Dataset     []any                `yaml:"dataset"`
	Application []any                `yaml:"application"`
}

func (f *feed) entries(t items.Type) []any {
	switch t {
	case items.TypeDataset:
		return f.Dataset
	case items.TypeApplication:
		return f.Application
	}
	return nil
}

// Source fetches one partner feed.
type Source struct {
	partner items.Partner
	client  *transport.Client
}

// Option configures a Source.
type Option func(*Source)

// WithClient replaces the transport client.
func WithClient(c *transport.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// New creates a source for a declared partner.
func New(p items.Partner, opts ...Option) *Source {
	s := &Source{partner: p}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = transport.New(transport.WithSource(p.ID))
	}
	return s
}

// ID implements sources.Source.
func (s *Source) ID() sources.ID {
	return sources.ID(s.partner.ID)
}

// Partner implements sources.Source.
func (s *Source) Partner() items.Partner {
	return s.partner
}

// Fetch downloads the feed and returns its items tagged with their type.
func (s *Source) Fetch(ctx context.Context) (*sources.Fetched, error) {
	text, err := s.client.GetText(ctx, s.partner.Source)
	if err != nil {
		return nil, err
	}
	return Parse([]byte(text), s.partner)
}

// Parse decodes a feed document for partner p.
// A feed whose config does not declare p's id is rejected.
func Parse(data []byte, p items.Partner) (*sources.Fetched, error) {
	var doc feed
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", p.Source, err)
	}
	if doc.Config == nil || doc.Config.ID != p.ID {
		declared := ""
		if doc.Config != nil {
			declared = doc.Config.ID
		}
		return nil, &errors.PartnerIdentityError{Expected: p.ID, Declared: declared, Source: p.Source}
	}

	out := &sources.Fetched{Config: doc.Config}
	for _, t := range items.Types() {
		for i, entry := range doc.entries(t) {
			m, ok := entry.(map[string]any)
			if !ok {
				out.Skipped = append(out.Skipped, sources.Skip{
					ID:     fmt.Sprintf("%s[%d]", t, i),
					Reason: sources.ReasonNotMapping,
				})
				continue
			}
			raw := items.RawItem(maps.Clone(m))
			raw["type"] = string(t)

			if t == items.TypeApplication && isPluginDescriptor(raw["source"]) {
				out.Skipped = append(out.Skipped, sources.Skip{
					ID:     fmt.Sprint(raw["id"]),
					Reason: sources.ReasonPluginDescriptor,
				})
				continue
			}
			out.Items = append(out.Items, raw)
		}
	}
	return out, nil
}

// isPluginDescriptor reports whether an application source points at a
// plugin descriptor page. Parsing those is not supported.
func isPluginDescriptor(source any) bool {
	s, ok := source.(string)
	return ok && strings.HasSuffix(s, constants.PluginDescriptorSuffix)
}

var _ sources.Source = (*Source)(nil)
