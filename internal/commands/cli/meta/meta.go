// Package meta provides commands reading and writing e-book metadata.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewMetaCommand creates the meta command group.
func NewMetaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and write e-book metadata",
		Long:  `Read and write the metadata stored inside e-book files using the metadata plugins.`,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newSetCommand())

	return cmd
}

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Show the metadata of a file",
		Example: `  ebookconv meta show book.epub
  ebookconv meta show book.mobi --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}
	cmd.Flags().StringP("format", "f", "text", "output format (text, yaml, json)")

	return cmd
}

func newSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set FILE",
		Short: "Update the metadata stored in a file",
		Example: `  ebookconv meta set book.epub --title "Dune" --author "Frank Herbert"
  ebookconv meta set book.mobi --tag scifi --tag classic --identifier isbn=9780441013593`,
		Args: cobra.ExactArgs(1),
		RunE: runSet,
	}
	cmd.Flags().String("title", "", "book title")
	cmd.Flags().StringSlice("author", nil, "author, repeat for several")
	cmd.Flags().String("publisher", "", "publisher")
	cmd.Flags().String("language", "", "language code")
	cmd.Flags().String("description", "", "description")
	cmd.Flags().StringSlice("tag", nil, "tag, repeat for several")
	cmd.Flags().StringToString("identifier", nil, "identifier as scheme=value")
	cmd.Flags().String("pubdate", "", "publication date (YYYY-MM-DD)")
	cmd.Flags().Bool("apply-null", false, "clear fields that are not given")

	return cmd
}

// metadataView is the serialized form of oeb.Metadata.
type metadataView struct {
	Title       string            `json:"title"                 yaml:"title"`
	Authors     []string          `json:"authors,omitempty"     yaml:"authors,omitempty"`
	Publisher   string            `json:"publisher,omitempty"   yaml:"publisher,omitempty"`
	Language    string            `json:"language,omitempty"    yaml:"language,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"        yaml:"tags,omitempty"`
	Pubdate     string            `json:"pubdate,omitempty"     yaml:"pubdate,omitempty"`
}

func newMetadataView(mi *oeb.Metadata) metadataView {
	v := metadataView{
		Title:       mi.Title,
		Authors:     mi.Authors,
		Publisher:   mi.Publisher,
		Language:    mi.Language,
		Identifiers: mi.Identifiers,
		Description: mi.Description,
		Tags:        mi.Tags,
	}
	if !mi.Pubdate.IsZero() {
		v.Pubdate = mi.Pubdate.Format("2006-01-02")
	}

	return v
}

// render writes mi in the requested format.
func render(mi *oeb.Metadata, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return mi.String(), nil
	case "yaml":
		out, err := yaml.Marshal(newMetadataView(mi))
		return string(out), err
	case "json":
		out, err := json.MarshalIndent(newMetadataView(mi), "", "  ")
		return string(out) + "\n", err
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// readMetadata returns the result of the first enabled reader for the file type that succeeds.
func readMetadata(ctx context.Context, r *plugins.Registry, path string) (*oeb.Metadata, error) {
	ft := plugins.FileType(path)
	readers := r.MetadataReadersFor(ft)
	if len(readers) == 0 {
		return nil, fmt.Errorf("%w: %q", errorcodes.ErrF3, ft)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var errs []error
	for _, reader := range readers {
		if r.IsPluginDisabled(reader) {
			errs = append(errs, fmt.Errorf("%s: %w", reader.Meta().Name, errorcodes.ErrPluginDisabled))
			continue
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}

		var mi *oeb.Metadata
		err := plugins.WithMount(ctx, reader, func(ctx context.Context) error {
			var err error
			mi, err = reader.GetMetadata(ctx, f, ft)
			return err
		})
		if err == nil {
			return mi, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", reader.Meta().Name, err))
	}

	return nil, errors.Join(errs...)
}

func runShow(cmd *cobra.Command, args []string) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	mi, err := readMetadata(cmd.Context(), e.Registry, args[0])
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	out, err := render(mi, format)
	if err != nil {
		return err
	}
	cmd.Print(out)

	return nil
}

// metadataFromFlags collects the fields given on the command line.
func metadataFromFlags(cmd *cobra.Command) (*oeb.Metadata, error) {
	flags := cmd.Flags()
	mi := &oeb.Metadata{}
	mi.Title, _ = flags.GetString("title")
	mi.Authors, _ = flags.GetStringSlice("author")
	mi.Publisher, _ = flags.GetString("publisher")
	mi.Language, _ = flags.GetString("language")
	mi.Description, _ = flags.GetString("description")
	mi.Tags, _ = flags.GetStringSlice("tag")

	ids, _ := flags.GetStringToString("identifier")
	for scheme, value := range ids {
		mi.SetIdentifier(scheme, value)
	}

	if d, _ := flags.GetString("pubdate"); d != "" {
		t, err := oeb.ParseDate(d)
		if err != nil {
			return nil, err
		}
		mi.Pubdate = t
	}

	return mi, nil
}

// writeMetadata runs the first enabled writer for the file type.
func writeMetadata(ctx context.Context, r *plugins.Registry, path string, mi *oeb.Metadata, applyNull bool) error {
	ft := plugins.FileType(path)
	var writer plugins.MetadataWriter
	for _, w := range r.MetadataWritersFor(ft) {
		if !r.IsPluginDisabled(w) {
			writer = w
			break
		}
	}
	if writer == nil {
		return fmt.Errorf("%w: %q", errorcodes.ErrF4, ft)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if base, ok := writer.(interface{ SetApplyNull(bool) }); ok {
		base.SetApplyNull(applyNull)
	}

	return plugins.WithMount(ctx, writer, func(ctx context.Context) error {
		return writer.SetMetadata(ctx, f, mi, ft)
	})
}

func runSet(cmd *cobra.Command, args []string) error {
	env.InitLogger(true)

	mi, err := metadataFromFlags(cmd)
	if err != nil {
		return err
	}
	applyNull, _ := cmd.Flags().GetBool("apply-null")

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := writeMetadata(cmd.Context(), e.Registry, args[0], mi, applyNull); err != nil {
		return err
	}

	updated, err := readMetadata(cmd.Context(), e.Registry, args[0])
	if err != nil {
		return err
	}
	cmd.Print(updated.String())

	return nil
}
