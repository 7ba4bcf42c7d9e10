package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Persisted plugin state keys.
const (
	KeyPlugins             = "plugins"
	KeyFiletypeMapping     = "filetype_mapping"
	KeyPluginCustomization = "plugin_customization"
	KeyDisabledPlugins     = "disabled_plugins"
	KeyEnabledPlugins      = "enabled_plugins"
)

// Customize is the persisted plugin state. Map keys are plugin names folded to
// lower case, since viper folds nested keys when it reads them back.
type Customize struct {
	Plugins             map[string]string `mapstructure:"plugins"`
	FiletypeMapping     map[string]string `mapstructure:"filetype_mapping"`
	PluginCustomization map[string]string `mapstructure:"plugin_customization"`
	DisabledPlugins     []string          `mapstructure:"disabled_plugins"`
	EnabledPlugins      []string          `mapstructure:"enabled_plugins"`
}

// CustomizeStore guards the persisted plugin state and writes it back to disk.
type CustomizeStore struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
	data Customize
}

// NewMemoryCustomize returns a store that is never written to disk.
func NewMemoryCustomize() *CustomizeStore {
	s := &CustomizeStore{v: newCustomizeViper()}
	s.data = emptyCustomize()

	return s
}

// OpenCustomize loads the plugin state from path, starting empty when the file does not exist.
func OpenCustomize(path string) (*CustomizeStore, error) {
	s := &CustomizeStore{v: newCustomizeViper(), path: path}
	s.v.SetConfigFile(path)

	if err := s.reload(); err != nil {
		return nil, err
	}

	return s, nil
}

func newCustomizeViper() *viper.Viper {
	cv := viper.NewWithOptions(viper.KeyDelimiter("::"))
	cv.SetConfigType("yaml")
	cv.SetDefault(KeyPlugins, map[string]string{})
	cv.SetDefault(KeyFiletypeMapping, map[string]string{})
	cv.SetDefault(KeyPluginCustomization, map[string]string{})
	cv.SetDefault(KeyDisabledPlugins, []string{})
	cv.SetDefault(KeyEnabledPlugins, []string{})

	return cv
}

func emptyCustomize() Customize {
	return Customize{
		Plugins:             map[string]string{},
		FiletypeMapping:     map[string]string{},
		PluginCustomization: map[string]string{},
	}
}

// reload re-reads the backing file into memory.
func (s *CustomizeStore) reload() error {
	data := emptyCustomize()

	if s.path != "" {
		if err := s.v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("error reading plugin state %s: %w", s.path, err)
			}
		}
		if err := s.v.Unmarshal(&data); err != nil {
			return fmt.Errorf("unable to decode plugin state: %w", err)
		}
	}

	for _, m := range []*map[string]string{&data.Plugins, &data.FiletypeMapping, &data.PluginCustomization} {
		if *m == nil {
			*m = map[string]string{}
		}
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	return nil
}

// save writes the state through a fresh viper instance so file values are
// never shadowed by overrides on the reading instance.
func (s *CustomizeStore) save() error {
	if s.path == "" {
		return nil
	}

	w := viper.NewWithOptions(viper.KeyDelimiter("::"))
	w.SetConfigType("yaml")
	w.Set(KeyPlugins, s.data.Plugins)
	w.Set(KeyFiletypeMapping, s.data.FiletypeMapping)
	w.Set(KeyPluginCustomization, s.data.PluginCustomization)
	w.Set(KeyDisabledPlugins, s.data.DisabledPlugins)
	w.Set(KeyEnabledPlugins, s.data.EnabledPlugins)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("error creating plugin state directory: %w", err)
	}
	if err := w.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("error writing plugin state %s: %w", s.path, err)
	}

	return nil
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Customization returns the stored customization string for a plugin, or "".
func (s *CustomizeStore) Customization(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data.PluginCustomization[foldName(name)]
}

// SetCustomization stores a trimmed customization string for a plugin.
// An empty value removes the entry.
func (s *CustomizeStore) SetCustomization(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value = strings.TrimSpace(value)
	if value == "" {
		delete(s.data.PluginCustomization, foldName(name))
	} else {
		s.data.PluginCustomization[foldName(name)] = value
	}

	return s.save()
}

// InEnabled reports whether the plugin is explicitly enabled.
func (s *CustomizeStore) InEnabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Contains(s.data.EnabledPlugins, name)
}

// InDisabled reports whether the plugin is explicitly disabled.
func (s *CustomizeStore) InDisabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Contains(s.data.DisabledPlugins, name)
}

// Enable moves the plugin into the enabled set.
func (s *CustomizeStore) Enable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.DisabledPlugins = remove(s.data.DisabledPlugins, name)
	if !slices.Contains(s.data.EnabledPlugins, name) {
		s.data.EnabledPlugins = append(s.data.EnabledPlugins, name)
	}

	return s.save()
}

// Disable moves the plugin into the disabled set.
func (s *CustomizeStore) Disable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.EnabledPlugins = remove(s.data.EnabledPlugins, name)
	if !slices.Contains(s.data.DisabledPlugins, name) {
		s.data.DisabledPlugins = append(s.data.DisabledPlugins, name)
	}

	return s.save()
}

func remove(list []string, name string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(s string) bool { return s == name })
}

// InstalledPlugins returns the installed external plugins, keyed by folded name.
func (s *CustomizeStore) InstalledPlugins() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.data.Plugins)
}

// AddPlugin records an installed external plugin archive.
func (s *CustomizeStore) AddPlugin(name, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Plugins[foldName(name)] = path

	return s.save()
}

// RemovePlugin forgets an installed external plugin and returns its archive path.
func (s *CustomizeStore) RemovePlugin(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.data.Plugins[foldName(name)]
	if !ok {
		return "", false, nil
	}
	delete(s.data.Plugins, foldName(name))

	return path, true, s.save()
}

// FiletypeMapping returns the persisted file type mapping.
func (s *CustomizeStore) FiletypeMapping() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.data.FiletypeMapping)
}

// Snapshot returns a deep copy of the current state.
func (s *CustomizeStore) Snapshot() Customize {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Customize{
		Plugins:             maps.Clone(s.data.Plugins),
		FiletypeMapping:     maps.Clone(s.data.FiletypeMapping),
		PluginCustomization: maps.Clone(s.data.PluginCustomization),
		DisabledPlugins:     slices.Clone(s.data.DisabledPlugins),
		EnabledPlugins:      slices.Clone(s.data.EnabledPlugins),
	}
}

// Watch reloads the state whenever the backing file changes and calls onChange afterwards.
func (s *CustomizeStore) Watch(onChange func()) {
	if s.path == "" {
		return
	}

	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := s.reload(); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("failed to reload plugin state")
			return
		}
		log.Info().Str("file", e.Name).Msg("plugin state reloaded")
		if onChange != nil {
			onChange()
		}
	})
	s.v.WatchConfig()
}
