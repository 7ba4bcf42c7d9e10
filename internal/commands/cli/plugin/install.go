package plugin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/spf13/cobra"
)

// NewInstallCommand creates the install command.
func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install FILE",
		Short: "Install an external plugin (.wasm or .zip)",
		Long: `Check that FILE loads as a file type plugin, copy it into the plugin
directory and record it in the plugin state.`,
		Args: cobra.ExactArgs(1),
		RunE: runInstall,
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove an installed external plugin",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}
}

func runInstall(cmd *cobra.Command, args []string) error {
	env.InitLogger(true)

	name, err := plugins.Inspect(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("%s is not a valid plugin: %w", args[0], err)
	}

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if p, ok := e.Registry.FindByName(name); ok && p.Meta().InstallationType != plugins.InstallationExternal {
		return fmt.Errorf("plugin %q clashes with a %s plugin", name, p.Meta().InstallationType)
	}

	dir := e.Config.Plugin.Path
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}
	dest, err := filepath.Abs(filepath.Join(dir, filepath.Base(args[0])))
	if err != nil {
		return err
	}
	src, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if src != dest {
		if err := copyFile(src, dest); err != nil {
			return fmt.Errorf("failed to copy plugin: %w", err)
		}
	}

	if err := e.Store.AddPlugin(name, dest); err != nil {
		return err
	}
	cmd.Printf("Installed plugin %s (%s)\n", name, dest)

	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	path, ok, err := e.Store.RemovePlugin(args[0])
	if err != nil {
		return err
	}
	if !ok {
		if _, found := e.Registry.FindByName(args[0]); found {
			return fmt.Errorf("%w: %s", errorcodes.ErrP7, args[0])
		}
		return fmt.Errorf("%w: %s", errorcodes.ErrPluginNotFound, args[0])
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	cmd.Printf("Removed plugin %s\n", args[0])

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
