// Package plugin provides plugin management commands.
package plugin

import "github.com/spf13/cobra"

// NewPluginCommand creates the main plugin command group.
func NewPluginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Plugin management commands",
		Long: `Commands for listing, enabling, customizing and installing plugins.
Changes are written to the plugin state file and picked up by a running
server without a restart.`,
	}

	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewEnableCommand())
	cmd.AddCommand(NewDisableCommand())
	cmd.AddCommand(NewCustomizeCommand())
	cmd.AddCommand(NewInstallCommand())
	cmd.AddCommand(NewRemoveCommand())
	cmd.AddCommand(NewManageCommand())
	cmd.AddCommand(NewCreateCommand())

	return cmd
}
