// Package library provides the library commands.
package library

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	lib "github.com/andrei-cloud/ebookconv/internal/library"
	"github.com/spf13/cobra"
)

// NewLibraryCommand creates the library command group.
func NewLibraryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the book library",
		Long: `Add books to the library, attach or remove formats and list its content.
Adding runs the import hooks of file type plugins, followed by the post import
and post add hooks.`,
	}

	cmd.AddCommand(
		newAddCommand(),
		newAddFormatCommand(),
		newRemoveCommand(),
		newListCommand(),
	)

	return cmd
}

// withLibrary loads the plugins, opens the configured library and runs fn.
func withLibrary(cmd *cobra.Command, fn func(ctx context.Context, l *lib.Library) error) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	l, err := lib.Open(cmd.Context(), e.Config.Library.Path, e.Registry)
	if err != nil {
		return err
	}
	defer l.Close()

	return fn(cmd.Context(), l)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid book id %q", s)
	}

	return id, nil
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add FILE...",
		Short: "Add books to the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, l *lib.Library) error {
				for _, path := range args {
					id, err := l.Add(ctx, path)
					if err != nil {
						return fmt.Errorf("add %s: %w", path, err)
					}
					cmd.Printf("Added %s as book %d\n", path, id)
				}

				return nil
			})
		},
	}
}

func newAddFormatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-format ID FILE",
		Short: "Attach a file as another format of a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, l *lib.Library) error {
				return l.AddFormat(ctx, id, args[1])
			})
		},
	}
}

func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a book or one of its formats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")

			return withLibrary(cmd, func(ctx context.Context, l *lib.Library) error {
				if format != "" {
					return l.RemoveFormat(ctx, id, strings.ToLower(format))
				}

				return l.Remove(ctx, id)
			})
		},
	}

	cmd.Flags().String("format", "", "only remove this format")

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the books in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLibrary(cmd, func(ctx context.Context, l *lib.Library) error {
				return writeBooks(ctx, cmd.OutOrStdout(), l)
			})
		},
	}
}

// writeBooks prints one line per book with its formats.
func writeBooks(ctx context.Context, out io.Writer, l *lib.Library) error {
	ids, err := l.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTitle\tAuthors\tFormats")
	for _, id := range ids {
		b, err := l.Get(ctx, id)
		if err != nil {
			return err
		}
		formats := slices.Sorted(maps.Keys(b.Formats))
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.ID, b.Title, b.Authors, strings.ToUpper(strings.Join(formats, ",")))
	}

	return w.Flush()
}
