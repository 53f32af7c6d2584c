package collection

import (
	"context"
	"fmt"

	"github.com/agentstation/collection/internal/sources/zenodo"
	"github.com/agentstation/collection/internal/transport"
	"github.com/agentstation/collection/pkg/checker"
	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/logging"
	"github.com/agentstation/collection/pkg/save"
	"github.com/agentstation/collection/pkg/sources"
)

// config holds the Builder configuration
type config struct {
	indexPath     string
	distDir       string
	collectionDir string

	zenodo      zenodo.Config
	client      *transport.Client
	sources     []sources.Source
	saveOptions []save.Option
}

func defaultConfig() *config {
	return &config{
		indexPath:     constants.DefaultIndexPath,
		distDir:       constants.DefaultDistDir,
		collectionDir: constants.DefaultCollectionDir,
		zenodo:        zenodo.DefaultConfig(),
	}
}

// Builder runs collection builds and consistency checks.
type Builder struct {
	config *config
	hooks  *hooks
}

// New creates a new Builder with the given options
func New(opts ...Option) (*Builder, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}
	if cfg.client == nil {
		cfg.client = transport.New(transport.WithSource("partner"))
	}
	return &Builder{config: cfg, hooks: newHooks()}, nil
}

// OnItemAdded registers a callback for items added by a written build
func (b *Builder) OnItemAdded(fn ItemAddedHook) {
	b.hooks.OnItemAdded(fn)
}

// OnItemRemoved registers a callback for items removed by a written build
func (b *Builder) OnItemRemoved(fn ItemRemovedHook) {
	b.hooks.OnItemRemoved(fn)
}

// Previous loads the index snapshot. A missing index is a first run and
// yields an empty snapshot.
func (b *Builder) Previous(ctx context.Context) (*items.Snapshot, error) {
	snapshot, err := items.LoadSnapshot(b.config.indexPath)
	if err != nil {
		if errors.IsNotFound(err) {
			logging.Ctx(ctx).Warn().Str("path", b.config.indexPath).Msg("No index found, starting from an empty snapshot")
			return items.NewSnapshot(), nil
		}
		return nil, err
	}
	if err := snapshot.Validate(); err != nil {
		return nil, errors.WrapResource("validate", "index", b.config.indexPath, err)
	}
	return snapshot, nil
}

// Check audits the per-item store. It returns a *errors.GateFailure when
// any item is still pending.
func (b *Builder) Check(ctx context.Context) (*checker.Report, error) {
	return checker.New(b.config.collectionDir).Check(ctx)
}
