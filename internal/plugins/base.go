package plugins

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Wildcard is the file type matching every file.
const Wildcard = "*"

// DefaultPriority is the priority of a plugin that does not set one.
const DefaultPriority = 1

// Base holds the fields shared by every plugin kind.
type Base struct {
	Name               string
	Description        string
	Author             string
	Version            [3]int
	Priority           int
	SupportedPlatforms []string
	InstallationType   InstallationType
	MinimumVersion     [3]int
	CanBeDisabled      bool
	FileTypes          []string

	// SiteCustomization is refreshed from the persisted configuration before each use.
	SiteCustomization string
	// OriginalPathToFile is the path a hook run started from.
	OriginalPathToFile string
	// Archive is the zip or wasm file backing an external plugin.
	Archive string
}

// NewBase returns base fields with the defaults every plugin starts from.
func NewBase(name, description string, fileTypes ...string) Base {
	ft := make([]string, 0, len(fileTypes))
	for _, t := range fileTypes {
		ft = append(ft, strings.ToLower(t))
	}

	return Base{
		Name:               name,
		Description:        description,
		Author:             "ebookconv",
		Version:            [3]int{1, 0, 0},
		Priority:           DefaultPriority,
		SupportedPlatforms: []string{"windows", "darwin", "linux"},
		MinimumVersion:     [3]int{0, 1, 0},
		CanBeDisabled:      true,
		FileTypes:          ft,
	}
}

// Meta returns b. Embedding Base gives a plugin its Meta method.
func (b *Base) Meta() *Base {
	return b
}

// Initialize is a no-op by default.
func (b *Base) Initialize() error {
	return nil
}

// HasFileType reports whether ft, compared case-insensitively, is handled.
func (b *Base) HasFileType(ft string) bool {
	return slices.Contains(b.FileTypes, strings.ToLower(ft))
}

// VersionString renders Version as dotted text.
func (b *Base) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", b.Version[0], b.Version[1], b.Version[2])
}

// FileTypeBase is embedded by file type plugins. Hooks default to no-ops.
type FileTypeBase struct {
	Base
	On Occasions
}

// Kind implements Plugin.
func (*FileTypeBase) Kind() Kind { return KindFileType }

// Occasions returns the on_* flags.
func (f *FileTypeBase) Occasions() Occasions { return f.On }

// Run leaves the file unchanged.
func (*FileTypeBase) Run(_ context.Context, path string) (string, error) { return path, nil }

// PostImport does nothing.
func (*FileTypeBase) PostImport(context.Context, int64, string, Library) error { return nil }

// PostConvert does nothing.
func (*FileTypeBase) PostConvert(context.Context, int64, string, Library) error { return nil }

// PostDelete does nothing.
func (*FileTypeBase) PostDelete(context.Context, int64, string, Library) error { return nil }

// PostAdd does nothing.
func (*FileTypeBase) PostAdd(context.Context, int64, map[string]string, Library) error { return nil }

// MetadataReaderBase is embedded by metadata readers.
type MetadataReaderBase struct {
	Base
	// Quick asks for the cheapest read, skipping expensive fields such as covers.
	Quick bool
}

// Kind implements Plugin.
func (*MetadataReaderBase) Kind() Kind { return KindMetadataReader }

// MetadataWriterBase is embedded by metadata writers.
type MetadataWriterBase struct {
	Base
	// ApplyNull makes empty fields clear the stored values.
	ApplyNull bool
}

// Kind implements Plugin.
func (*MetadataWriterBase) Kind() Kind { return KindMetadataWriter }

// SetApplyNull sets ApplyNull for the following writes.
func (w *MetadataWriterBase) SetApplyNull(v bool) { w.ApplyNull = v }

// InputFormatBase is embedded by input format plugins.
type InputFormatBase struct {
	Base
}

// Kind implements Plugin.
func (*InputFormatBase) Kind() Kind { return KindInputFormat }

// OutputFormatBase is embedded by output format plugins.
type OutputFormatBase struct {
	Base
	FileType string
}

// NewOutputFormatBase returns an output base producing fileType.
func NewOutputFormatBase(name, description, fileType string) OutputFormatBase {
	return OutputFormatBase{Base: NewBase(name, description, fileType), FileType: strings.ToLower(fileType)}
}

// Kind implements Plugin.
func (*OutputFormatBase) Kind() Kind { return KindOutputFormat }

// OutputType implements OutputFormat.
func (o *OutputFormatBase) OutputType() string { return o.FileType }

// ProfileBase holds a device profile.
type ProfileBase struct {
	Base
	Profile Profile
}

// DeviceProfile implements ProfilePlugin.
func (p *ProfileBase) DeviceProfile() Profile { return p.Profile }

// InputProfile is a concrete input profile plugin.
type InputProfile struct {
	ProfileBase
}

// Kind implements Plugin.
func (*InputProfile) Kind() Kind { return KindInputProfile }

// OutputProfile is a concrete output profile plugin.
type OutputProfile struct {
	ProfileBase
}

// Kind implements Plugin.
func (*OutputProfile) Kind() Kind { return KindOutputProfile }

// NewInputProfile returns an input profile plugin.
func NewInputProfile(name, description string, p Profile) *InputProfile {
	return &InputProfile{ProfileBase{Base: NewBase(name, description), Profile: p}}
}

// NewOutputProfile returns an output profile plugin.
func NewOutputProfile(name, description string, p Profile) *OutputProfile {
	return &OutputProfile{ProfileBase{Base: NewBase(name, description), Profile: p}}
}
