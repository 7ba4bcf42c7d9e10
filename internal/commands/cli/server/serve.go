// Package server provides server-related CLI commands.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/andrei-cloud/ebookconv/internal/builtins"
	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/andrei-cloud/ebookconv/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conversion server",
		Long: `Start the conversion server answering convert, plugin listing and PalmDOC
requests over TCP. Plugins are reloaded on SIGHUP and whenever the persisted
plugin state changes.`,
		RunE: runServe,
	}

	// Add serve command specific flags that can override config.
	cmd.Flags().String("host", "localhost", "Server host")
	cmd.Flags().Int("port", 1600, "Server port")

	// Bind serve command flags to viper.
	_ = viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}

func logPlugins(p *server.Plugins) {
	for _, info := range server.ListPlugins(p.Registry) {
		log.Debug().
			Str("plugin", info.Name).
			Str("kind", info.Kind).
			Str("version", info.Version).
			Str("installation", info.Installation).
			Bool("disabled", info.Disabled).
			Msg("plugin details")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	env.InitLogger(false)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}

	// Make sure plugin directory exists.
	if err := os.MkdirAll(e.Config.Plugin.Path, 0o755); err != nil {
		_ = e.Close()
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	first := &server.Plugins{Registry: e.Registry, Manager: e.Manager}
	logPlugins(first)

	serverAddr := fmt.Sprintf("%s:%d", e.Config.Server.Host, e.Config.Server.Port)
	srv, err := server.NewServer(serverAddr, first)
	if err != nil {
		_ = e.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() {
		if pm := srv.Plugins().Manager; pm != nil {
			_ = pm.Close()
		}
	}()

	// Create a context that will be canceled when the server is stopping.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var mu sync.Mutex
	reload := func() {
		mu.Lock()
		defer mu.Unlock()

		log.Info().Msg("reloading plugins...")
		reg, pm, err := builtins.Load(ctx, e.Store, e.Config.Plugin.Path, e.Store)
		if err != nil {
			log.Error().Err(err).Msg("failed to reload plugins")
			return
		}
		next := &server.Plugins{Registry: reg, Manager: pm}
		srv.SetPlugins(next)
		log.Info().Int("plugins", len(reg.InitializedPlugins())).Msg("plugins reloaded")
		logPlugins(next)
	}

	// Reload plugins on SIGHUP.
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(reloadChan)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reloadChan:
				reload()
			}
		}
	}()

	e.Store.Watch(reload)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopChan)

	for stopped := false; !stopped; {
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			errChan = nil
		case <-stopChan:
			stopped = true
		case <-ctx.Done():
			stopped = true
		}
	}

	log.Info().Msg("shutting down server...")
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	return nil
}
