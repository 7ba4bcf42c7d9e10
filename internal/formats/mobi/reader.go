package mobi

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/pkg/palmdoc"
	"github.com/microcosm-cc/bluemonday"
)

// File is a parsed MOBI or PalmDOC book.
type File struct {
	db     *database
	header *header
}

// Parse decodes the database structure and record 0 of data.
func Parse(data []byte) (*File, error) {
	db, err := parseDatabase(data)
	if err != nil {
		return nil, err
	}
	if tc := db.typeCreator(); tc != "BOOKMOBI" && tc != "TEXtREAd" {
		return nil, malformed("unknown PalmDB type %q", tc)
	}

	h, err := parseRecord0(db.records[0])
	if err != nil {
		return nil, err
	}

	return &File{db: db, header: h}, nil
}

// ParseStream reads all of r and parses it.
func ParseStream(r io.ReadSeeker) (*File, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Version is the MOBI file version, 0 for plain PalmDOC files.
func (f *File) Version() uint32 {
	return f.header.Version
}

// Encoding is the text encoding code of the book.
func (f *File) Encoding() uint32 {
	return f.header.Encoding
}

// Metadata returns the book's metadata from its headers.
func (f *File) Metadata() *oeb.Metadata {
	md := &oeb.Metadata{Identifiers: map[string]string{}}
	md.Title = strings.TrimSpace(decodeText(f.header.Encoding, f.header.FullName))
	if md.Title == "" {
		md.Title = f.db.name()
	}
	applyEXTH(md, f.header.EXTH, f.header.Encoding)
	if md.Title == "" {
		md.Title = "Unknown"
	}

	return md
}

// Text returns the decompressed text of the book, still in its own encoding.
func (f *File) Text() ([]byte, error) {
	h := f.header
	if err := h.checkReadable(); err != nil {
		return nil, err
	}

	last := min(int(h.RecordCount), len(f.db.records)-1)
	var text bytes.Buffer
	for i := 1; i <= last; i++ {
		rec := f.db.records[i]
		if n := trailingSize(rec, h.ExtraFlags); n <= len(rec) {
			rec = rec[:len(rec)-n]
		}
		if h.Compression == CompressionPalmDOC {
			rec = palmdoc.Decompress(rec)
		}
		text.Write(rec)
	}

	out := text.Bytes()
	if h.TextLength > 0 && int(h.TextLength) < len(out) {
		out = out[:h.TextLength]
	}

	return out, nil
}

// trailingSize returns the size of the trailing entries appended to a text record.
func trailingSize(rec []byte, flags uint16) int {
	size := 0
	for bits := flags >> 1; bits != 0; bits >>= 1 {
		if bits&1 != 0 {
			size += trailingEntry(rec[:max(len(rec)-size, 0)])
		}
	}
	if flags&1 != 0 {
		if off := len(rec) - size - 1; off >= 0 {
			size += int(rec[off]&0x3) + 1
		}
	}

	return size
}

// trailingEntry reads the backward encoded size at the end of b.
func trailingEntry(b []byte) int {
	result, shift := 0, 0
	for i := len(b) - 1; i >= 0; i-- {
		v := b[i]
		result |= int(v&0x7f) << shift
		shift += 7
		if v&0x80 != 0 || shift >= 28 {
			break
		}
	}

	return result
}

var pageBreak = regexp.MustCompile(`(?i)<mbp:pagebreak[^>]*>`)

// sanitizer drops scripts and the proprietary mbp markup, keeping content.
var sanitizer = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id", "align").Globally()
	p.AllowAttrs("filepos").OnElements("a")
	return p
}()

// Book converts the text into one document per page break.
func (f *File) Book() (*oeb.Book, error) {
	raw, err := f.Text()
	if err != nil {
		return nil, err
	}

	book := oeb.NewBook()
	book.Metadata = *f.Metadata()

	text := decodeText(f.header.Encoding, raw)
	if !strings.Contains(strings.ToLower(text), "<html") && !strings.Contains(text, "<p") {
		text = plainToHTML(text)
	}

	for _, part := range pageBreak.Split(text, -1) {
		clean := sanitizer.Sanitize(part)
		body, err := oeb.BodyMarkup([]byte("<body>" + clean + "</body>"))
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			continue
		}
		n := len(book.Spine) + 1
		book.AddDocument(fmt.Sprintf("part%04d", n), fmt.Sprintf("part%04d.html", n),
			oeb.WrapXHTML(book.Metadata.Title, body))
	}

	return book, nil
}

// plainToHTML turns the blank-line separated paragraphs of a PalmDOC text into markup.
func plainToHTML(text string) string {
	var b strings.Builder
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, para := range strings.Split(text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			b.WriteString("<p>")
			b.WriteString(htmlEscaper.Replace(para))
			b.WriteString("</p>\n")
		}
	}

	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// ReadMetadata returns the metadata of the MOBI book in r.
func ReadMetadata(r io.ReadSeeker) (*oeb.Metadata, error) {
	f, err := ParseStream(r)
	if err != nil {
		return nil, err
	}

	return f.Metadata(), nil
}
