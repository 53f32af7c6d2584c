package save

import (
	"io"
	"path/filepath"

	"github.com/agentstation/collection/pkg/constants"
)

// Mode selects where the next index snapshot goes.
type Mode int

// Mode constants.
const (
	// ModePropose writes the next index to a side file for review.
	ModePropose Mode = iota
	// ModeOverwrite replaces the authoritative index.
	ModeOverwrite
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModePropose:
		return "propose"
	case ModeOverwrite:
		return "overwrite"
	}
	return "unknown"
}

// Format is an encoding of the canonical export.
type Format int

// Format constants.
const (
	FormatJSON Format = iota
	FormatYAML
)

// IsValid checks if the format is valid.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	}
	return "unknown"
}

// GroupBy selects the attachment keys of the canonical export.
type GroupBy int

// GroupBy constants.
const (
	GroupByPartner GroupBy = iota
	GroupByType
)

// String returns the string representation of the grouping.
func (g GroupBy) String() string {
	switch g {
	case GroupByPartner:
		return "partner"
	case GroupByType:
		return "type"
	}
	return "unknown"
}

// ParseGroupBy converts a flag value into a GroupBy.
func ParseGroupBy(s string) (GroupBy, bool) {
	switch s {
	case "", "partner":
		return GroupByPartner, true
	case "type":
		return GroupByType, true
	}
	return GroupByPartner, false
}

// Options is the configuration for save.
type Options struct {
	indexPath     string
	distDir       string
	collectionDir string
	formats       []Format
	groupBy       GroupBy
	summary       bool
	writer        io.Writer
}

// IndexPath returns the authoritative index path.
func (s *Options) IndexPath() string {
	return s.indexPath
}

// ProposedPath returns the side file written in propose mode, next to the index.
func (s *Options) ProposedPath() string {
	return filepath.Join(filepath.Dir(s.indexPath), constants.ProposedIndexName)
}

// DistDir returns the build output directory.
func (s *Options) DistDir() string {
	return s.distDir
}

// CollectionDir returns the per-item store root.
func (s *Options) CollectionDir() string {
	return s.collectionDir
}

// Formats returns the export encodings.
func (s *Options) Formats() []Format {
	return s.formats
}

// GroupBy returns the export grouping.
func (s *Options) GroupBy() GroupBy {
	return s.groupBy
}

// Writer returns the writer that receives a copy of the review summary.
func (s *Options) Writer() io.Writer {
	return s.writer
}

// Defaults returns the default save options.
func Defaults() *Options {
	return &Options{
		indexPath:     constants.DefaultIndexPath,
		distDir:       constants.DefaultDistDir,
		collectionDir: constants.DefaultCollectionDir,
		formats:       []Format{FormatYAML, FormatJSON},
		groupBy:       GroupByPartner,
		summary:       true,
		writer:        nil,
	}
}

// Apply applies the given options to the save options.
func (s *Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		opt(s)
	}
	return *s
}

// Option is a function that configures save options.
type Option func(*Options)

// WithIndexPath sets the authoritative index path.
func WithIndexPath(path string) Option {
	return func(s *Options) {
		s.indexPath = path
	}
}

// WithDistDir sets the build output directory.
func WithDistDir(dir string) Option {
	return func(s *Options) {
		s.distDir = dir
	}
}

// WithCollectionDir sets the per-item store root.
func WithCollectionDir(dir string) Option {
	return func(s *Options) {
		s.collectionDir = dir
	}
}

// WithFormats restricts the export encodings. Invalid formats are ignored.
func WithFormats(formats ...Format) Option {
	return func(s *Options) {
		s.formats = s.formats[:0:0]
		for _, f := range formats {
			if f.IsValid() {
				s.formats = append(s.formats, f)
			}
		}
	}
}

// WithGroupBy regroups the export attachments.
func WithGroupBy(g GroupBy) Option {
	return func(s *Options) {
		s.groupBy = g
	}
}

// WithSummary toggles the markdown review summary.
func WithSummary(enabled bool) Option {
	return func(s *Options) {
		s.summary = enabled
	}
}

// WithWriter for an extra copy of the review summary, e.g. stdout.
func WithWriter(w io.Writer) Option {
	return func(s *Options) {
		s.writer = w
	}
}
