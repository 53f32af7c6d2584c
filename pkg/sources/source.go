// Package sources defines the contract shared by the registry and partner
// feed adapters, and the fetcher that runs them.
//
// Fetches may run in parallel; results always come back in the order the
// sources were configured so reconciliation stays deterministic.
//
// Example usage:
//
//	outcomes, err := sources.FetchAll(ctx, srcs, sources.WithIsolateFailures())
//	if err != nil {
//	    return err
//	}
//	for _, o := range outcomes {
//	    if o.Failed() {
//	        continue
//	    }
//	    // normalize o.Fetched.Items
//	}
package sources

import (
	"context"

	"github.com/agentstation/collection/pkg/items"
)

// ID identifies a source. It equals the bucket the source feeds.
type ID string

// String returns the string representation of a source id.
func (id ID) String() string {
	return string(id)
}

// PrimaryID is the source id of the primary registry.
const PrimaryID ID = items.PrimaryPartnerID

// Source represents a remote that delivers raw items for one bucket.
type Source interface {
	// ID returns the bucket this source feeds
	ID() ID

	// Partner returns the descriptor the source was configured with
	Partner() items.Partner

	// Fetch retrieves every raw item of the source
	Fetch(ctx context.Context) (*Fetched, error)
}

// Fetched is the result of one successful fetch.
type Fetched struct {
	Config  *items.PartnerConfig // config block declared by the feed, nil for the registry
	Items   []items.RawItem
	Skipped []Skip
}

// Skip records a raw entry the adapter deliberately left out.
type Skip struct {
	ID     string
	Reason string
}

// Skip reasons.
const (
	ReasonPluginDescriptor = "plugin descriptor not supported"
	ReasonNotMapping       = "entry is not a mapping"
	ReasonInvalidEntry     = "invalid entry"
)
