// Package plugins holds the plugin capability model, the registry of
// initialized plugins, the file type hook dispatcher and the format resolver.
package plugins

import (
	"context"
	"fmt"
	"io"

	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/rs/zerolog"
)

// Kind is the closed set of plugin capabilities.
type Kind int

// Plugin kinds.
const (
	KindFileType Kind = iota
	KindMetadataReader
	KindMetadataWriter
	KindInputFormat
	KindOutputFormat
	KindInputProfile
	KindOutputProfile
)

func (k Kind) String() string {
	switch k {
	case KindFileType:
		return "File type"
	case KindMetadataReader:
		return "Metadata reader"
	case KindMetadataWriter:
		return "Metadata writer"
	case KindInputFormat:
		return "Conversion input"
	case KindOutputFormat:
		return "Conversion output"
	case KindInputProfile:
		return "Input profile"
	case KindOutputProfile:
		return "Output profile"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// InstallationType records where a plugin came from.
type InstallationType int

// Installation origins.
const (
	InstallationExternal InstallationType = 1
	InstallationSystem   InstallationType = 2
	InstallationBuiltin  InstallationType = 3
)

func (t InstallationType) String() string {
	switch t {
	case InstallationExternal:
		return "external"
	case InstallationSystem:
		return "system"
	case InstallationBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Plugin is implemented by every plugin kind.
type Plugin interface {
	// Meta returns the shared plugin fields.
	Meta() *Base
	// Kind selects which capability interface the plugin implements.
	Kind() Kind
	// Initialize runs once per instantiation, when the registry is rebuilt.
	Initialize() error
}

// Library is the persistence collaborator handed to post-import style hooks.
type Library interface {
	// FormatPath returns the stored file of one format of a book.
	FormatPath(ctx context.Context, bookID int64, format string) (string, error)
}

// FileTypePlugin runs on files of given types at pipeline occasions.
type FileTypePlugin interface {
	Plugin
	Occasions() Occasions
	// Run returns the path of a new file, or "" (or the input path) when the
	// file was left unchanged. The input file must not be modified in place.
	Run(ctx context.Context, path string) (string, error)
	PostImport(ctx context.Context, bookID int64, format string, db Library) error
	PostConvert(ctx context.Context, bookID int64, format string, db Library) error
	PostDelete(ctx context.Context, bookID int64, format string, db Library) error
	PostAdd(ctx context.Context, bookID int64, formats map[string]string, db Library) error
}

// MetadataReader extracts metadata from a book file.
type MetadataReader interface {
	Plugin
	// GetMetadata returns an error, never panics, on malformed input.
	GetMetadata(ctx context.Context, r io.ReadSeeker, ftype string) (*oeb.Metadata, error)
}

// Stream is a seekable, truncatable file, as *os.File.
type Stream interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
}

// MetadataWriter updates the metadata stored in a book file in place.
type MetadataWriter interface {
	Plugin
	SetMetadata(ctx context.Context, s Stream, mi *oeb.Metadata, ftype string) error
}

// ConvertOptions carries conversion options and the logging sink.
type ConvertOptions struct {
	Options map[string]string
	// Customization is the site customization of the plugin being called.
	Customization string
	Log           zerolog.Logger
}

// Option returns a named option or def.
func (o ConvertOptions) Option(name, def string) string {
	if v, ok := o.Options[name]; ok {
		return v
	}

	return def
}

// InputFormat parses a book file into the document model.
type InputFormat interface {
	Plugin
	Convert(ctx context.Context, path string, opts ConvertOptions) (*oeb.Book, error)
}

// OutputFormat writes the document model as one container format.
type OutputFormat interface {
	Plugin
	// OutputType is the single file type this plugin produces.
	OutputType() string
	Convert(ctx context.Context, book *oeb.Book, outputPath string, input InputFormat, opts ConvertOptions) error
}

// Profile describes a reading device.
type Profile struct {
	ShortName    string
	ScreenWidth  int
	ScreenHeight int
	DPI          float64
	FBase        float64   // base font size in pt
	FSizes       []float64 // font size ladder in pt
}

// ProfilePlugin is implemented by input and output profiles.
type ProfilePlugin interface {
	Plugin
	DeviceProfile() Profile
}
