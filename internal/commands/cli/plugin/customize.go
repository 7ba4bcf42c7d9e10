package plugin

import (
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/spf13/cobra"
)

// NewCustomizeCommand creates the customize command.
func NewCustomizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customize NAME [VALUE]",
		Short: "Show or set the customization string of a plugin",
		Long: `Show or set the free-form customization string handed to a plugin
before each run. Without VALUE the current string is printed.`,
		Example: `  ebookconv plugin customize "MOBI Output" none
  ebookconv plugin customize "Normalize text" --clear`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runCustomize,
	}
	cmd.Flags().Bool("clear", false, "remove the customization")

	return cmd
}

func runCustomize(cmd *cobra.Command, args []string) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.Plugin(args[0])
	if err != nil {
		return err
	}
	name := p.Meta().Name

	reset, _ := cmd.Flags().GetBool("clear")
	switch {
	case reset:
		if err := e.Registry.CustomizePlugin(name, ""); err != nil {
			return err
		}
	case len(args) == 2:
		if err := e.Registry.CustomizePlugin(name, args[1]); err != nil {
			return err
		}
	}

	cmd.Printf("%s: %q\n", name, strings.TrimSpace(e.Registry.PluginCustomization(name)))

	return nil
}
