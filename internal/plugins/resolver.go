package plugins

import (
	"slices"
	"strings"
)

// PluginForInputFormat returns the first input plugin, in priority order,
// handling format. Disabled plugins are returned too; callers check IsDisabled.
// The plugin is shared by concurrent conversions and is not modified; its
// customization is read with PluginCustomization.
func (r *Registry) PluginForInputFormat(format string) (InputFormat, bool) {
	format = strings.ToLower(format)
	for _, p := range r.snap.Load().plugins {
		in, ok := p.(InputFormat)
		if !ok || p.Kind() != KindInputFormat || !p.Meta().HasFileType(format) {
			continue
		}

		return in, true
	}

	return nil, false
}

// PluginForOutputFormat returns the first output plugin producing format.
func (r *Registry) PluginForOutputFormat(format string) (OutputFormat, bool) {
	format = strings.ToLower(format)
	for _, p := range r.snap.Load().plugins {
		out, ok := p.(OutputFormat)
		if !ok || p.Kind() != KindOutputFormat || out.OutputType() != format {
			continue
		}

		return out, true
	}

	return nil, false
}

// AllInputFormats lists the file types of every input plugin.
func (r *Registry) AllInputFormats() []string {
	return r.inputFormats(false)
}

// AvailableInputFormats lists the file types of enabled input plugins.
func (r *Registry) AvailableInputFormats() []string {
	return r.inputFormats(true)
}

func (r *Registry) inputFormats(enabledOnly bool) []string {
	set := map[string]struct{}{}
	for _, p := range r.snap.Load().plugins {
		if p.Kind() != KindInputFormat || (enabledOnly && r.IsPluginDisabled(p)) {
			continue
		}
		for _, ft := range p.Meta().FileTypes {
			set[ft] = struct{}{}
		}
	}

	return sortedKeys(set)
}

// AvailableOutputFormats lists the output types of enabled output plugins.
func (r *Registry) AvailableOutputFormats() []string {
	set := map[string]struct{}{}
	for _, p := range r.snap.Load().plugins {
		out, ok := p.(OutputFormat)
		if !ok || p.Kind() != KindOutputFormat || r.IsPluginDisabled(p) {
			continue
		}
		set[out.OutputType()] = struct{}{}
	}

	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)

	return out
}

// MetadataReaders returns every metadata reader in priority order.
func (r *Registry) MetadataReaders() []MetadataReader {
	return pluginsOf[MetadataReader](r, KindMetadataReader)
}

// MetadataWriters returns every metadata writer in priority order.
func (r *Registry) MetadataWriters() []MetadataWriter {
	return pluginsOf[MetadataWriter](r, KindMetadataWriter)
}

// InputProfiles returns the input profiles in priority order.
func (r *Registry) InputProfiles() []ProfilePlugin {
	return pluginsOf[ProfilePlugin](r, KindInputProfile)
}

// OutputProfiles returns the output profiles in priority order.
func (r *Registry) OutputProfiles() []ProfilePlugin {
	return pluginsOf[ProfilePlugin](r, KindOutputProfile)
}

// MetadataReadersFor returns the enabled readers registered for ft.
func (r *Registry) MetadataReadersFor(ft string) []MetadataReader {
	var out []MetadataReader
	for _, p := range r.snap.Load().readers[strings.ToLower(ft)] {
		if !r.IsPluginDisabled(p) {
			out = append(out, p)
		}
	}

	return out
}

// MetadataWritersFor returns the enabled writers registered for ft.
func (r *Registry) MetadataWritersFor(ft string) []MetadataWriter {
	var out []MetadataWriter
	for _, p := range r.snap.Load().writers[strings.ToLower(ft)] {
		if !r.IsPluginDisabled(p) {
			out = append(out, p)
		}
	}

	return out
}

func pluginsOf[T Plugin](r *Registry, kind Kind) []T {
	var out []T
	for _, p := range r.snap.Load().plugins {
		if p.Kind() != kind {
			continue
		}
		if t, ok := p.(T); ok {
			out = append(out, t)
		}
	}

	return out
}

// CustomizePlugin stores the trimmed customization string of a plugin.
func (r *Registry) CustomizePlugin(name, custom string) error {
	return r.settings.SetCustomization(name, strings.TrimSpace(custom))
}

// PluginCustomization returns the stored customization string of a plugin.
func (r *Registry) PluginCustomization(name string) string {
	return r.settings.Customization(name)
}
