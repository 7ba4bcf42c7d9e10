// Package builtins registers the plugins shipped with ebookconv.
package builtins

import (
	"github.com/andrei-cloud/ebookconv/internal/plugins"
)

// DefaultDisabled lists builtins that stay off until explicitly enabled.
// Reading PDF metadata validates the whole document, which is slow on large files.
var DefaultDisabled = []string{"Read PDF metadata"}

// Factories returns the builtin plugins in registration order.
func Factories() []plugins.Factory {
	fs := []plugins.Factory{
		plugins.Builtin("Read EPUB metadata", NewEPUBMetadataReader),
		plugins.Builtin("Read MOBI metadata", NewMOBIMetadataReader),
		plugins.Builtin("Read OPF metadata", NewOPFMetadataReader),
		plugins.Builtin("Read PDF metadata", NewPDFMetadataReader),
		plugins.Builtin("Set EPUB metadata", NewEPUBMetadataWriter),
		plugins.Builtin("Set MOBI metadata", NewMOBIMetadataWriter),
		plugins.Builtin("EPUB Input", NewEPUBInput),
		plugins.Builtin("EPUB Output", NewEPUBOutput),
		plugins.Builtin("MOBI Input", NewMOBIInput),
		plugins.Builtin("MOBI Output", NewMOBIOutput),
		plugins.Builtin("AZW3 Output", NewAZW3Output),
		plugins.Builtin("OEB Output", NewOEBOutput),
		plugins.Builtin("TXT Output", NewTXTOutput),
	}
	for _, p := range inputProfiles {
		fs = append(fs, plugins.Builtin(p.name, func() *plugins.InputProfile {
			return plugins.NewInputProfile(p.name, p.description, p.profile)
		}))
	}
	for _, p := range outputProfiles {
		fs = append(fs, plugins.Builtin(p.name, func() *plugins.OutputProfile {
			return plugins.NewOutputProfile(p.name, p.description, p.profile)
		}))
	}

	return fs
}

// NewRegistry returns a registry holding the builtins followed by extra
// factories, with the builtin default-disabled set applied.
func NewRegistry(settings plugins.Settings, extra ...plugins.Factory) *plugins.Registry {
	r := plugins.NewRegistry(settings, append(Factories(), extra...)...)
	r.SetDefaultDisabled(DefaultDisabled...)

	return r
}
