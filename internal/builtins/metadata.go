package builtins

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/formats/epub"
	"github.com/andrei-cloud/ebookconv/internal/formats/mobi"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// EPUBMetadataReader reads the package document metadata of EPUB files.
type EPUBMetadataReader struct {
	plugins.MetadataReaderBase
}

// NewEPUBMetadataReader returns the EPUB metadata reader.
func NewEPUBMetadataReader() *EPUBMetadataReader {
	p := &EPUBMetadataReader{}
	p.Base = plugins.NewBase("Read EPUB metadata", "Read metadata from EPUB files", "epub")

	return p
}

// GetMetadata implements plugins.MetadataReader.
func (*EPUBMetadataReader) GetMetadata(_ context.Context, r io.ReadSeeker, _ string) (*oeb.Metadata, error) {
	return epub.ReadMetadata(r)
}

// MOBIMetadataReader reads the EXTH and PalmDB metadata of MOBI files.
type MOBIMetadataReader struct {
	plugins.MetadataReaderBase
}

// NewMOBIMetadataReader returns the MOBI metadata reader.
func NewMOBIMetadataReader() *MOBIMetadataReader {
	p := &MOBIMetadataReader{}
	p.Base = plugins.NewBase("Read MOBI metadata", "Read metadata from MOBI files",
		"mobi", "prc", "azw", "azw3", "azw4", "pobi")

	return p
}

// GetMetadata implements plugins.MetadataReader.
func (*MOBIMetadataReader) GetMetadata(_ context.Context, r io.ReadSeeker, _ string) (*oeb.Metadata, error) {
	return mobi.ReadMetadata(r)
}

// OPFMetadataReader reads standalone package documents.
type OPFMetadataReader struct {
	plugins.MetadataReaderBase
}

// NewOPFMetadataReader returns the OPF metadata reader.
func NewOPFMetadataReader() *OPFMetadataReader {
	p := &OPFMetadataReader{}
	p.Base = plugins.NewBase("Read OPF metadata", "Read metadata from OPF files", "opf")

	return p
}

// GetMetadata implements plugins.MetadataReader.
func (*OPFMetadataReader) GetMetadata(_ context.Context, r io.ReadSeeker, _ string) (*oeb.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	book, err := oeb.ParseOPF(data)
	if err != nil {
		return nil, err
	}

	return &book.Metadata, nil
}

// PDFMetadataReader reads the document information dictionary of PDF files.
type PDFMetadataReader struct {
	plugins.MetadataReaderBase
}

// NewPDFMetadataReader returns the PDF metadata reader.
func NewPDFMetadataReader() *PDFMetadataReader {
	p := &PDFMetadataReader{}
	p.Base = plugins.NewBase("Read PDF metadata", "Read metadata from PDF files", "pdf")

	return p
}

// GetMetadata implements plugins.MetadataReader.
func (*PDFMetadataReader) GetMetadata(_ context.Context, r io.ReadSeeker, _ string) (*oeb.Metadata, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	pdf, err := api.ReadValidateAndOptimize(r, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	xref := pdf.XRefTable
	md := &oeb.Metadata{
		Title:       strings.TrimSpace(xref.Title),
		Description: strings.TrimSpace(xref.Subject),
		Identifiers: map[string]string{},
	}
	if a := strings.TrimSpace(xref.Author); a != "" {
		md.Authors = splitAuthors(a)
	}
	for _, k := range strings.FieldsFunc(xref.Keywords, func(r rune) bool { return r == ',' || r == ';' }) {
		if k = strings.TrimSpace(k); k != "" {
			md.Tags = append(md.Tags, k)
		}
	}
	if t, err := oeb.ParseDate(pdfDate(xref.CreationDate)); err == nil {
		md.Pubdate = t
	}
	if md.Title == "" {
		md.Title = "Unknown"
	}

	return md, nil
}

// splitAuthors splits the "A & B" or "A, B" author strings found in documents.
func splitAuthors(s string) []string {
	sep := "&"
	if !strings.Contains(s, sep) && strings.Count(s, ",") > 1 {
		sep = ","
	}

	var out []string
	for _, a := range strings.Split(s, sep) {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}

	return out
}

// pdfDate turns "D:YYYYMMDDHHmmSS..." into the date part ParseDate accepts.
func pdfDate(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 8 {
		return ""
	}

	return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
}

// EPUBMetadataWriter updates the package document of EPUB files.
type EPUBMetadataWriter struct {
	plugins.MetadataWriterBase
}

// NewEPUBMetadataWriter returns the EPUB metadata writer.
func NewEPUBMetadataWriter() *EPUBMetadataWriter {
	p := &EPUBMetadataWriter{}
	p.Base = plugins.NewBase("Set EPUB metadata", "Set metadata in EPUB files", "epub")

	return p
}

// SetMetadata implements plugins.MetadataWriter.
func (w *EPUBMetadataWriter) SetMetadata(_ context.Context, s plugins.Stream, mi *oeb.Metadata, _ string) error {
	return epub.SetMetadata(s, mi, w.ApplyNull)
}

// MOBIMetadataWriter updates the EXTH block of MOBI files.
type MOBIMetadataWriter struct {
	plugins.MetadataWriterBase
}

// NewMOBIMetadataWriter returns the MOBI metadata writer.
func NewMOBIMetadataWriter() *MOBIMetadataWriter {
	p := &MOBIMetadataWriter{}
	p.Base = plugins.NewBase("Set MOBI metadata", "Set metadata in MOBI files", "mobi", "prc", "azw", "azw3")

	return p
}

// SetMetadata implements plugins.MetadataWriter.
func (w *MOBIMetadataWriter) SetMetadata(_ context.Context, s plugins.Stream, mi *oeb.Metadata, _ string) error {
	return mobi.SetMetadata(s, mi, w.ApplyNull)
}
