package collection

import (
	"github.com/agentstation/collection/internal/sources/zenodo"
	"github.com/agentstation/collection/internal/transport"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/save"
	"github.com/agentstation/collection/pkg/sources"
)

// Option is a function that configures a Builder.
type Option func(*config) error

// WithIndexPath configures the authoritative index snapshot.
func WithIndexPath(path string) Option {
	return func(c *config) error {
		if path == "" {
			return &errors.ValidationError{Field: "index_path", Message: "index path cannot be empty"}
		}
		c.indexPath = path
		return nil
	}
}

// WithDistDir configures the build output directory.
func WithDistDir(dir string) Option {
	return func(c *config) error {
		if dir == "" {
			return &errors.ValidationError{Field: "dist_dir", Message: "dist directory cannot be empty"}
		}
		c.distDir = dir
		return nil
	}
}

// WithCollectionDir configures the per-item record store.
func WithCollectionDir(dir string) Option {
	return func(c *config) error {
		if dir == "" {
			return &errors.ValidationError{Field: "collection_dir", Message: "collection directory cannot be empty"}
		}
		c.collectionDir = dir
		return nil
	}
}

// WithZenodo configures the primary registry search.
func WithZenodo(cfg zenodo.Config) Option {
	return func(c *config) error {
		c.zenodo = cfg
		return nil
	}
}

// WithClient configures the transport used for partner feeds.
func WithClient(client *transport.Client) Option {
	return func(c *config) error {
		c.client = client
		return nil
	}
}

// WithSources replaces the sources built from the index. The first source
// should feed the primary bucket.
func WithSources(srcs ...sources.Source) Option {
	return func(c *config) error {
		c.sources = srcs
		return nil
	}
}

// WithSaveOptions adds writer options such as a summary copy to stdout.
func WithSaveOptions(opts ...save.Option) Option {
	return func(c *config) error {
		c.saveOptions = append(c.saveOptions, opts...)
		return nil
	}
}
