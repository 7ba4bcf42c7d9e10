package plugin

import (
	"fmt"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/andrei-cloud/ebookconv/internal/config"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/spf13/cobra"
)

// NewEnableCommand creates the enable command.
func NewEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable NAME",
		Short: "Enable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(cmd, args[0], true)
		},
	}
}

// NewDisableCommand creates the disable command.
func NewDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable NAME",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(cmd, args[0], false)
		},
	}
}

func runToggle(cmd *cobra.Command, name string, enable bool) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.Plugin(name)
	if err != nil {
		return err
	}
	if err := setEnabled(e.Store, p, enable); err != nil {
		return err
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	cmd.Printf("%s %s\n", p.Meta().Name, state)

	return nil
}

// setEnabled persists the enable state of p. Plugins that cannot be disabled are refused.
func setEnabled(store *config.CustomizeStore, p plugins.Plugin, enable bool) error {
	m := p.Meta()
	if enable {
		return store.Enable(m.Name)
	}
	if !m.CanBeDisabled {
		return fmt.Errorf("%w: %s", errorcodes.ErrNotDisableable, m.Name)
	}

	return store.Disable(m.Name)
}
