package plugins

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/andrei-cloud/ebookconv/internal/logging"
	"github.com/rs/zerolog/log"
)

// Settings is the view of persisted plugin configuration the registry needs.
type Settings interface {
	Customization(name string) string
	SetCustomization(name, value string) error
	InEnabled(name string) bool
	InDisabled(name string) bool
}

// Factory instantiates one plugin during a rebuild.
type Factory struct {
	Name             string
	InstallationType InstallationType
	New              func() (Plugin, error)
}

// Builtin wraps a constructor as a builtin factory.
func Builtin[P Plugin](name string, newFn func() P) Factory {
	return Factory{
		Name:             name,
		InstallationType: InstallationBuiltin,
		New:              func() (Plugin, error) { return newFn(), nil },
	}
}

// snapshot is the immutable, derived view published on every rebuild.
type snapshot struct {
	plugins         []Plugin
	hooks           [occasionCount]map[string][]FileTypePlugin
	postAdd         []FileTypePlugin
	readers         map[string][]MetadataReader
	writers         map[string][]MetadataWriter
	runLocks        map[Plugin]*sync.Mutex
	defaultDisabled map[string]bool
}

func emptySnapshot(defaultDisabled map[string]bool) *snapshot {
	s := &snapshot{
		readers:         map[string][]MetadataReader{},
		writers:         map[string][]MetadataWriter{},
		runLocks:        map[Plugin]*sync.Mutex{},
		defaultDisabled: defaultDisabled,
	}
	for i := range s.hooks {
		s.hooks[i] = map[string][]FileTypePlugin{}
	}

	return s
}

// Registry owns the initialized plugins of a process. Rebuilds are serialized;
// lookups read an atomically published snapshot and never block.
type Registry struct {
	settings  Settings
	mu        sync.Mutex
	factories []Factory
	snap      atomic.Pointer[snapshot]
}

// NewRegistry returns an empty registry. Call Rebuild to initialize plugins.
func NewRegistry(settings Settings, factories ...Factory) *Registry {
	if settings == nil {
		settings = noSettings{}
	}
	r := &Registry{settings: settings, factories: factories}
	r.snap.Store(emptySnapshot(map[string]bool{}))

	return r
}

// Settings returns the persisted configuration the registry reads.
func (r *Registry) Settings() Settings {
	return r.settings
}

// SetFactories replaces the factory list used by the next rebuild.
func (r *Registry) SetFactories(factories ...Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = factories
}

// AddFactories appends factories, such as discovered external plugins, after the current ones.
func (r *Registry) AddFactories(factories ...Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = append(r.factories, factories...)
}

// SetDefaultDisabled replaces the set of plugins disabled unless explicitly enabled.
func (r *Registry) SetDefaultDisabled(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dd := make(map[string]bool, len(names))
	for _, n := range names {
		dd[n] = true
	}

	next := *r.snap.Load()
	next.defaultDisabled = dd
	r.snap.Store(&next)
}

// Rebuild instantiates and initializes every factory in order, then publishes
// the plugins sorted by priority, highest first, keeping registration order on
// ties. A plugin whose construction or initialization fails is logged and left out.
func (r *Registry) Rebuild(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugins := make([]Plugin, 0, len(r.factories))
	for _, f := range r.factories {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("plugin initialization interrupted")
			break
		}

		p, err := initialize(f)
		if err != nil {
			logging.LogPluginInitFailure(f.Name, f.InstallationType.String(), err)
			continue
		}
		plugins = append(plugins, p)
	}

	sort.SliceStable(plugins, func(i, j int) bool {
		return plugins[i].Meta().Priority > plugins[j].Meta().Priority
	})

	r.snap.Store(derive(plugins, r.snap.Load().defaultDisabled))

	log.Debug().Int("plugins", len(plugins)).Msg("plugin registry rebuilt")
}

// Reset publishes an empty registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.Store(emptySnapshot(r.snap.Load().defaultDisabled))
}

// initialize builds one plugin, converting a panic into an error.
func initialize(f Factory) (p Plugin, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()

	if f.New == nil {
		return nil, fmt.Errorf("factory %q has no constructor", f.Name)
	}
	p, err = f.New()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("factory %q returned no plugin", f.Name)
	}
	if err := checkCapability(p); err != nil {
		return nil, err
	}

	p.Meta().InstallationType = f.InstallationType
	if err := p.Initialize(); err != nil {
		return nil, err
	}

	return p, nil
}

// checkCapability verifies that a plugin implements the interface of its kind.
func checkCapability(p Plugin) error {
	var ok bool
	switch p.Kind() {
	case KindFileType:
		_, ok = p.(FileTypePlugin)
	case KindMetadataReader:
		_, ok = p.(MetadataReader)
	case KindMetadataWriter:
		_, ok = p.(MetadataWriter)
	case KindInputFormat:
		_, ok = p.(InputFormat)
	case KindOutputFormat:
		_, ok = p.(OutputFormat)
	case KindInputProfile, KindOutputProfile:
		_, ok = p.(ProfilePlugin)
	}
	if !ok {
		return fmt.Errorf("plugin %q does not implement the %s capability", p.Meta().Name, p.Kind())
	}

	return nil
}

// derive builds the hook tables and metadata indices from sorted plugins.
func derive(plugins []Plugin, defaultDisabled map[string]bool) *snapshot {
	s := emptySnapshot(defaultDisabled)
	s.plugins = plugins

	for _, p := range plugins {
		s.runLocks[p] = &sync.Mutex{}

		switch p.Kind() {
		case KindFileType:
			ftp := p.(FileTypePlugin)
			on := ftp.Occasions()
			for _, ft := range p.Meta().FileTypes {
				for occ := range occasionCount {
					if on.Has(occ) {
						s.hooks[occ][ft] = append(s.hooks[occ][ft], ftp)
					}
				}
			}
			if on.PostImport {
				s.postAdd = append(s.postAdd, ftp)
			}
		case KindMetadataReader:
			mr := p.(MetadataReader)
			for _, ft := range p.Meta().FileTypes {
				s.readers[ft] = append(s.readers[ft], mr)
			}
		case KindMetadataWriter:
			mw := p.(MetadataWriter)
			for _, ft := range p.Meta().FileTypes {
				s.writers[ft] = append(s.writers[ft], mw)
			}
		}
	}

	return s
}

// InitializedPlugins returns the registry contents in priority order.
func (r *Registry) InitializedPlugins() []Plugin {
	return append([]Plugin(nil), r.snap.Load().plugins...)
}

// FindByName returns the first plugin with the given name.
func (r *Registry) FindByName(name string) (Plugin, bool) {
	for _, p := range r.snap.Load().plugins {
		if p.Meta().Name == name {
			return p, true
		}
	}

	return nil, false
}

// IsDisabled resolves the enable state of a plugin name: an explicit enable
// wins over an explicit disable, which wins over the default-disabled set.
func (r *Registry) IsDisabled(name string) bool {
	if r.settings.InEnabled(name) {
		return false
	}

	return r.settings.InDisabled(name) || r.snap.Load().defaultDisabled[name]
}

// IsPluginDisabled is IsDisabled for a plugin value.
func (r *Registry) IsPluginDisabled(p Plugin) bool {
	return r.IsDisabled(p.Meta().Name)
}

// noSettings is used when a registry has no persisted configuration.
type noSettings struct{}

func (noSettings) Customization(string) string          { return "" }
func (noSettings) SetCustomization(string, string) error { return nil }
func (noSettings) InEnabled(string) bool                { return false }
func (noSettings) InDisabled(string) bool               { return false }
