// Package app provides the application context and dependency management
// for the collection CLI: configuration, logging and the builder that
// commands share.
package app

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/collection"
	"github.com/agentstation/collection/cmd/application"
	"github.com/agentstation/collection/internal/sources/zenodo"
	"github.com/agentstation/collection/pkg/build"
	"github.com/agentstation/collection/pkg/errors"
)

// App represents the collection application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// builderOptions are appended to every builder, e.g. test sources
	builderOptions []collection.Option
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Zenodo returns the configured registry search.
func (a *App) Zenodo() zenodo.Config {
	z := a.config.Zenodo
	return zenodo.Config{
		BaseURL:           z.URL(),
		Community:         z.Community,
		PageSize:          z.PageSize,
		MaxItems:          z.MaxItems,
		RequestsPerSecond: z.RequestsPerSecond,
		AccessToken:       z.AccessToken,
	}
}

// BuildOptions returns the configured build defaults.
func (a *App) BuildOptions() []build.Option {
	return []build.Option{
		build.WithFetchTimeout(a.config.FetchTimeout),
		build.WithConcurrency(a.config.MaxConcurrentFetches),
	}
}

// Builder creates a builder from the configuration. opts override it.
func (a *App) Builder(opts ...collection.Option) (*collection.Builder, error) {
	base := []collection.Option{
		collection.WithIndexPath(a.config.IndexPath),
		collection.WithDistDir(a.config.DistDir),
		collection.WithCollectionDir(a.config.CollectionDir),
		collection.WithZenodo(a.Zenodo()),
	}
	base = append(base, a.builderOptions...)
	b, err := collection.New(append(base, opts...)...)
	if err != nil {
		return nil, errors.WrapResource("create", "builder", "", err)
	}
	return b, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithBuilderOptions adds options to every builder the app creates.
func WithBuilderOptions(opts ...collection.Option) Option {
	return func(a *App) error {
		a.builderOptions = append(a.builderOptions, opts...)
		return nil
	}
}

var _ application.Application = (*App)(nil)
