package builtins

import (
	"context"
	"maps"
	"slices"

	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/rs/zerolog/log"
)

// Installed lists the external plugin files recorded in persisted settings.
type Installed interface {
	InstalledPlugins() map[string]string
}

// Load compiles the external plugins found in dir plus those recorded in
// installed, and returns a rebuilt registry holding builtins and externals.
// The manager owns the wasm runtime and must be closed once the registry is
// no longer served.
func Load(
	ctx context.Context,
	settings plugins.Settings,
	dir string,
	installed Installed,
) (*plugins.Registry, *plugins.PluginManager, error) {
	var extra []string
	if installed != nil {
		m := installed.InstalledPlugins()
		for _, name := range slices.Sorted(maps.Keys(m)) {
			extra = append(extra, m[name])
		}
	}

	pm := plugins.NewPluginManager(ctx)
	external, err := pm.LoadAll(dir, extra...)
	if err != nil {
		pm.Close()
		return nil, nil, err
	}

	r := NewRegistry(settings, external...)
	r.Rebuild(ctx)

	log.Debug().Int("external", len(external)).Int("initialized", len(r.InitializedPlugins())).
		Msg("plugin registry loaded")

	return r, pm, nil
}
