// Package env assembles the configuration, persisted plugin state and plugin
// registry shared by CLI commands.
package env

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/builtins"
	"github.com/andrei-cloud/ebookconv/internal/config"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/logging"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Env is what a command needs to work with plugins.
type Env struct {
	Config   *config.Config
	Store    *config.CustomizeStore
	Registry *plugins.Registry
	Manager  *plugins.PluginManager
}

// InitLogger configures logging from the log section. Interactive commands
// pass quiet to keep their output clean unless debug is requested.
func InitLogger(quiet bool) {
	cfg := config.Get()
	level := strings.TrimSpace(strings.ToLower(cfg.Log.Level))
	format := strings.TrimSpace(strings.ToLower(cfg.Log.Format))

	logging.InitLogger(level == "debug", format != "json")
	if quiet && level != "debug" {
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	}
}

// Load opens the customize store and builds the registry with builtins and
// external plugins.
func Load(ctx context.Context) (*Env, error) {
	cfg := config.Get()

	store, err := config.OpenCustomize(cfg.Plugin.Customize)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin state: %w", err)
	}

	reg, pm, err := builtins.Load(ctx, store, cfg.Plugin.Path, store)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	return &Env{Config: cfg, Store: store, Registry: reg, Manager: pm}, nil
}

// Close releases the wasm runtime.
func (e *Env) Close() error {
	if e.Manager == nil {
		return nil
	}

	return e.Manager.Close()
}

// Plugin finds an initialized plugin by name.
func (e *Env) Plugin(name string) (plugins.Plugin, error) {
	p, ok := e.Registry.FindByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errorcodes.ErrPluginNotFound, name)
	}

	return p, nil
}
