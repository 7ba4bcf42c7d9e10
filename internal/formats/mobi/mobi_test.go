package mobi

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBook(paragraph string) *oeb.Book {
	b := oeb.NewBook()
	b.Metadata.Title = "Die Straße"
	b.Metadata.Authors = []string{"Anna Autor", "Ben Beta"}
	b.Metadata.Publisher = "Verlag"
	b.Metadata.Language = "de"
	b.Metadata.Tags = []string{"Roman"}
	b.Metadata.SetIdentifier("isbn", "9780000000001")
	b.Metadata.Pubdate = time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	b.AddDocument("c1", "c1.xhtml", oeb.WrapXHTML("One", []byte("<p>"+paragraph+"</p>")))
	b.AddDocument("c2", "c2.xhtml", oeb.WrapXHTML("Two", []byte("<p>Zweites Kapitel</p>")))
	return b
}

// TestWriteRead verifies that a written MOBI book reads back with its metadata and text.
func TestWriteRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts WriteOptions
	}{
		{"palmdoc", WriteOptions{}},
		{"uncompressed", WriteOptions{Compression: CompressionNone}},
		{"kf8", WriteOptions{Version: VersionKF8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// long enough to span records, with multibyte runes across boundaries.
			para := strings.Repeat("Grüße aus Köln. ", 700)

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, sampleBook(para), tt.opts))

			f, err := Parse(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, "BOOKMOBI", f.db.typeCreator())
			assert.Equal(t, uint32(EncodingUTF8), f.Encoding())
			if tt.opts.Version != 0 {
				assert.Equal(t, tt.opts.Version, f.Version())
			}

			md := f.Metadata()
			assert.Equal(t, "Die Straße", md.Title)
			assert.Equal(t, []string{"Anna Autor", "Ben Beta"}, md.Authors)
			assert.Equal(t, "Verlag", md.Publisher)
			assert.Equal(t, "de", md.Language)
			assert.Equal(t, []string{"Roman"}, md.Tags)
			assert.Equal(t, "9780000000001", md.Identifier("isbn"))
			assert.Equal(t, 2020, md.Pubdate.Year())

			text, err := f.Text()
			require.NoError(t, err)
			assert.Contains(t, string(text), para)
			assert.Contains(t, string(text), "<mbp:pagebreak/>")

			book, err := f.Book()
			require.NoError(t, err)
			require.Len(t, book.Spine, 2)
			second, ok := book.Item(book.Spine[1])
			require.True(t, ok)
			assert.Contains(t, string(second.Data), "<p>Zweites Kapitel</p>")
		})
	}
}

// TestPalmName verifies that titles are squeezed into PalmDB names.
func TestPalmName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Die Stra_e", palmName("Die Straße"))
	assert.Len(t, palmName(strings.Repeat("a", 50)), maxPalmName)
}

// TestTrailingSize verifies trailing entry stripping for the multibyte and size-encoded flags.
func TestTrailingSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rec   []byte
		flags uint16
		want  int
	}{
		{"none", []byte("abc"), 0, 0},
		{"multibyte", []byte{'a', 0xc3, 0xa4, 0x02}, 0x1, 3},
		{"sized entry", []byte{'a', 'b', 'x', 0x82}, 0x2, 2},
		{"both", []byte{'a', 0x00, 'x', 0x82}, 0x3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, trailingSize(tt.rec, tt.flags))
		})
	}
}

// TestParseMalformed verifies that broken files yield errors instead of panics.
func TestParseMalformed(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("short"))
	assert.ErrorIs(t, err, errorcodes.ErrMalformedContainer)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBook("x"), WriteOptions{}))
	data := buf.Bytes()

	truncated := data[:palmHeaderLen+4]
	_, err = Parse(truncated)
	assert.ErrorIs(t, err, errorcodes.ErrMalformedContainer)

	huff := bytes.Clone(data)
	rec0 := int(binary.BigEndian.Uint32(huff[palmHeaderLen:]))
	binary.BigEndian.PutUint16(huff[rec0:], CompressionHuffCDIC)
	f, err := Parse(huff)
	require.NoError(t, err)
	_, err = f.Text()
	assert.ErrorIs(t, err, errorcodes.ErrUnsupportedCompress)
}

// TestPlainPalmDoc verifies that a TEXtREAd book without a MOBI header is read as paragraphs.
func TestPlainPalmDoc(t *testing.T) {
	t.Parallel()

	text := []byte("First para.\n\nSecond & last.")
	rec0 := make([]byte, palmDocHeaderLen)
	binary.BigEndian.PutUint16(rec0[0:], CompressionNone)
	binary.BigEndian.PutUint32(rec0[4:], uint32(len(text)))
	binary.BigEndian.PutUint16(rec0[8:], 1)

	db := newDatabase("Plain Text", [][]byte{rec0, text})
	copy(db.header[60:68], "TEXtREAd")

	f, err := Parse(db.bytes())
	require.NoError(t, err)
	assert.Equal(t, "Plain Text", f.Metadata().Title)

	book, err := f.Book()
	require.NoError(t, err)
	require.Len(t, book.Spine, 1)
	doc, _ := book.Item(book.Spine[0])
	assert.Contains(t, string(doc.Data), "<p>Second &amp; last.</p>")
}

// TestSetMetadata verifies in-place metadata updates that keep unmanaged EXTH records.
func TestSetMetadata(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.mobi")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, sampleBook("text"), WriteOptions{}))

	require.NoError(t, SetMetadata(f, &oeb.Metadata{Title: "New Title", Authors: []string{"C. Writer"}}, false))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	parsed, err := Parse(data)
	require.NoError(t, err)

	md := parsed.Metadata()
	assert.Equal(t, "New Title", md.Title)
	assert.Equal(t, []string{"C. Writer"}, md.Authors)
	assert.Equal(t, "Verlag", md.Publisher)
	assert.Equal(t, "New Title", parsed.db.name())

	var cde bool
	for _, r := range parsed.header.EXTH {
		if r.Type == exthCDEType {
			cde = string(r.Data) == "EBOK"
		}
	}
	assert.True(t, cde)

	text, err := parsed.Text()
	require.NoError(t, err)
	assert.Contains(t, string(text), "<p>text</p>")
}

// TestCP1252 verifies decoding of legacy single-byte text.
func TestCP1252(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "café €", decodeText(EncodingCP1252, []byte{'c', 'a', 'f', 0xe9, ' ', 0x80}))
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, encodeText(EncodingCP1252, "café"))
	assert.Equal(t, "café", decodeText(EncodingUTF8, []byte("café")))
}
