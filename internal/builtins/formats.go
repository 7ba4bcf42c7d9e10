package builtins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/andrei-cloud/ebookconv/internal/formats/epub"
	"github.com/andrei-cloud/ebookconv/internal/formats/mobi"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
)

// EPUBInput parses EPUB files.
type EPUBInput struct {
	plugins.InputFormatBase
}

// NewEPUBInput returns the EPUB input plugin.
func NewEPUBInput() *EPUBInput {
	p := &EPUBInput{}
	p.Base = plugins.NewBase("EPUB Input", "Convert EPUB files (.epub) to HTML", "epub")

	return p
}

// Convert implements plugins.InputFormat.
func (*EPUBInput) Convert(_ context.Context, path string, opts plugins.ConvertOptions) (*oeb.Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := epub.OpenStream(f)
	if err != nil {
		return nil, err
	}
	opts.Log.Debug().Str("opf", c.OPFPath).Msg("found package document")

	return c.Book()
}

// MOBIInput parses MOBI and PalmDOC files.
type MOBIInput struct {
	plugins.InputFormatBase
}

// NewMOBIInput returns the MOBI input plugin.
func NewMOBIInput() *MOBIInput {
	p := &MOBIInput{}
	p.Base = plugins.NewBase("MOBI Input", "Convert MOBI files (.mobi, .prc, .azw) to HTML",
		"mobi", "prc", "azw", "azw3", "pobi")

	return p
}

// Convert implements plugins.InputFormat.
func (*MOBIInput) Convert(_ context.Context, path string, opts plugins.ConvertOptions) (*oeb.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := mobi.Parse(data)
	if err != nil {
		return nil, err
	}
	opts.Log.Debug().Uint32("version", f.Version()).Uint32("encoding", f.Encoding()).Msg("parsed MOBI headers")

	return f.Book()
}

// EPUBOutput writes EPUB files.
type EPUBOutput struct {
	plugins.OutputFormatBase
}

// NewEPUBOutput returns the EPUB output plugin.
func NewEPUBOutput() *EPUBOutput {
	return &EPUBOutput{plugins.NewOutputFormatBase("EPUB Output", "Convert e-books to EPUB format", "epub")}
}

// Convert implements plugins.OutputFormat.
func (*EPUBOutput) Convert(
	_ context.Context,
	book *oeb.Book,
	outputPath string,
	_ plugins.InputFormat,
	_ plugins.ConvertOptions,
) error {
	return writeFile(outputPath, func(f *os.File) error { return epub.Write(f, book) })
}

// MOBIOutput writes MOBI 6 files.
type MOBIOutput struct {
	plugins.OutputFormatBase
	version uint32
}

// NewMOBIOutput returns the MOBI output plugin.
func NewMOBIOutput() *MOBIOutput {
	return &MOBIOutput{
		OutputFormatBase: plugins.NewOutputFormatBase("MOBI Output", "Convert e-books to MOBI format", "mobi"),
		version:          mobi.VersionMOBI6,
	}
}

// NewAZW3Output returns the AZW3 output plugin.
func NewAZW3Output() *MOBIOutput {
	return &MOBIOutput{
		OutputFormatBase: plugins.NewOutputFormatBase("AZW3 Output", "Convert e-books to AZW3 format", "azw3"),
		version:          mobi.VersionKF8,
	}
}

// Convert implements plugins.OutputFormat. The "compression" option or the
// site customization selects "none" or "palmdoc" text records.
func (o *MOBIOutput) Convert(
	_ context.Context,
	book *oeb.Book,
	outputPath string,
	_ plugins.InputFormat,
	opts plugins.ConvertOptions,
) error {
	compression := uint16(mobi.CompressionPalmDOC)
	mode := opts.Option("compression", opts.Customization)
	if strings.EqualFold(strings.TrimSpace(mode), "none") {
		compression = mobi.CompressionNone
	}

	return writeFile(outputPath, func(f *os.File) error {
		return mobi.Write(f, book, mobi.WriteOptions{Version: o.version, Compression: compression})
	})
}

// OEBOutput writes an exploded OEB directory: the package document and its items.
type OEBOutput struct {
	plugins.OutputFormatBase
}

// NewOEBOutput returns the OEB output plugin.
func NewOEBOutput() *OEBOutput {
	p := &OEBOutput{plugins.NewOutputFormatBase("OEB Output", "Convert e-books to an OEB directory", "oeb")}
	p.Author = "Kovid Goyal"

	return p
}

// Convert implements plugins.OutputFormat. outputPath is the directory to create.
func (*OEBOutput) Convert(
	_ context.Context,
	book *oeb.Book,
	outputPath string,
	_ plugins.InputFormat,
	_ plugins.ConvertOptions,
) error {
	opf, err := oeb.WriteOPF(book)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outputPath, "content.opf"), opf, 0o644); err != nil {
		return err
	}
	for _, it := range book.Manifest {
		dst := filepath.Join(outputPath, filepath.FromSlash(it.Href))
		if !strings.HasPrefix(dst, filepath.Clean(outputPath)+string(filepath.Separator)) {
			return fmt.Errorf("manifest item %s escapes the output directory", it.Href)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, it.Data, 0o644); err != nil {
			return err
		}
	}

	return nil
}

// TXTOutput writes the book as Markdown text.
type TXTOutput struct {
	plugins.OutputFormatBase
	conv *converter.Converter
}

// NewTXTOutput returns the TXT output plugin.
func NewTXTOutput() *TXTOutput {
	return &TXTOutput{
		OutputFormatBase: plugins.NewOutputFormatBase("TXT Output", "Convert e-books to Markdown formatted text", "txt"),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert implements plugins.OutputFormat.
func (o *TXTOutput) Convert(
	_ context.Context,
	book *oeb.Book,
	outputPath string,
	_ plugins.InputFormat,
	opts plugins.ConvertOptions,
) error {
	var parts []string
	if t := book.Metadata.Title; t != "" {
		parts = append(parts, "# "+t)
	}
	for _, it := range book.SpineItems() {
		body, err := oeb.BodyMarkup(it.Data)
		if err != nil {
			return err
		}
		md, err := o.conv.ConvertString(string(body))
		if err != nil {
			return fmt.Errorf("convert %s to markdown: %w", it.Href, err)
		}
		if md = strings.TrimSpace(md); md != "" {
			parts = append(parts, md)
		}
	}
	opts.Log.Debug().Int("sections", len(parts)).Msg("rendered markdown")

	return os.WriteFile(outputPath, []byte(strings.Join(parts, "\n\n")+"\n"), 0o644)
}

// writeFile creates path and hands it to write, removing it on failure.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return f.Close()
}
