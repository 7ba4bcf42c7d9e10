// Package cli provides centralized command registration.
package cli

import (
	"fmt"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/convert"
	"github.com/andrei-cloud/ebookconv/internal/commands/cli/library"
	"github.com/andrei-cloud/ebookconv/internal/commands/cli/meta"
	"github.com/andrei-cloud/ebookconv/internal/commands/cli/palmdoc"
	"github.com/andrei-cloud/ebookconv/internal/commands/cli/plugin"
	"github.com/andrei-cloud/ebookconv/internal/commands/cli/server"
	"github.com/spf13/cobra"
)

// RegisterCommands registers all root commands.
func RegisterCommands(root *cobra.Command) error {
	root.AddCommand(convert.NewConvertCommand())
	root.AddCommand(meta.NewMetaCommand())

	palmdocCmd, err := palmdoc.NewPalmDocCommand()
	if err != nil {
		return fmt.Errorf("failed to create palmdoc command: %w", err)
	}
	root.AddCommand(palmdocCmd)

	root.AddCommand(plugin.NewPluginCommand())
	root.AddCommand(library.NewLibraryCommand())
	root.AddCommand(server.NewServeCommand())
	root.AddCommand(server.NewRemoteCommand())
	root.AddCommand(newVersionCommand())

	return nil
}
