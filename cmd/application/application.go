// Package application provides the application interface for collection commands.
//
// The Application interface defines the contract between the application layer and
// command implementations, enabling dependency injection and testability.
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            b, err := app.Builder()
//	            if err != nil {
//	                return err
//	            }
//	            _, err = b.Build(cmd.Context(), app.BuildOptions()...)
//	            return err
//	        },
//	    }
//	}
//
// Testing with Mocks:
//
//	mock := &application.Mock{
//	    BuilderFunc: func(opts ...collection.Option) (*collection.Builder, error) {
//	        return collection.New(append(opts, collection.WithSources(src))...)
//	    },
//	}
//	cmd := NewCommand(mock)
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/collection"
	"github.com/agentstation/collection/internal/sources/zenodo"
	"github.com/agentstation/collection/pkg/build"
)

// Application provides the application interface that commands need.
// The App struct from cmd/collection/app implements this interface.
type Application interface {
	// Builder returns a builder configured from the loaded configuration.
	// opts are applied last and override configured values.
	Builder(opts ...collection.Option) (*collection.Builder, error)

	// Zenodo returns the configured registry search.
	Zenodo() zenodo.Config

	// BuildOptions returns the configured build defaults.
	BuildOptions() []build.Option

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}

// Mock is an Application for command tests. Nil funcs fall back to
// zero configuration and a no-op logger.
type Mock struct {
	BuilderFunc   func(opts ...collection.Option) (*collection.Builder, error)
	ZenodoConfig  zenodo.Config
	BuildDefaults []build.Option
	LoggerFunc    func() *zerolog.Logger
	VersionString string
	CommitString  string
	DateString    string
	BuiltByString string
}

// Builder implements Application.
func (m *Mock) Builder(opts ...collection.Option) (*collection.Builder, error) {
	if m.BuilderFunc != nil {
		return m.BuilderFunc(opts...)
	}
	return collection.New(opts...)
}

// Zenodo implements Application.
func (m *Mock) Zenodo() zenodo.Config {
	return m.ZenodoConfig
}

// BuildOptions implements Application.
func (m *Mock) BuildOptions() []build.Option {
	return m.BuildDefaults
}

// Logger implements Application.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// Version implements Application.
func (m *Mock) Version() string { return m.VersionString }

// Commit implements Application.
func (m *Mock) Commit() string { return m.CommitString }

// Date implements Application.
func (m *Mock) Date() string { return m.DateString }

// BuiltBy implements Application.
func (m *Mock) BuiltBy() string { return m.BuiltByString }

var _ Application = (*Mock)(nil)
