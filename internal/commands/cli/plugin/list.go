package plugin

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins",
		Long:  `List every initialized plugin in priority order with its metadata and state.`,
		Args:  cobra.NoArgs,
		RunE:  runListPlugins,
	}
	cmd.Flags().String("kind", "", "only list plugins of this kind (e.g. \"file type\")")

	return cmd
}

func runListPlugins(cmd *cobra.Command, _ []string) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	kind, _ := cmd.Flags().GetString("kind")

	return writePluginTable(cmd.OutOrStdout(), e.Registry, kind)
}

// writePluginTable prints the registry as an aligned table.
func writePluginTable(out io.Writer, r *plugins.Registry, kind string) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "Name\tKind\tVersion\tFile types\tPriority\tStatus\tInstalled")
	_, _ = fmt.Fprintln(w, "----\t----\t-------\t----------\t--------\t------\t---------")

	for _, p := range r.InitializedPlugins() {
		if kind != "" && !strings.EqualFold(p.Kind().String(), kind) {
			continue
		}
		m := p.Meta()
		status := "enabled"
		if r.IsPluginDisabled(p) {
			status = "disabled"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			m.Name,
			p.Kind(),
			m.VersionString(),
			strings.Join(m.FileTypes, ","),
			m.Priority,
			status,
			m.InstallationType)
	}

	return w.Flush()
}
