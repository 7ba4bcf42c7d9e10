package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBook() *oeb.Book {
	b := oeb.NewBook()
	b.Metadata.Title = "Sample"
	b.Metadata.Authors = []string{"Jane Roe"}
	b.Metadata.Language = "en"
	b.AddDocument("c1", "text/ch1.xhtml", oeb.WrapXHTML("One", []byte("<p>first</p>")))
	b.AddDocument("c2", "text/ch2.xhtml", oeb.WrapXHTML("Two", []byte("<p>second</p>")))
	b.AddItem("css", "style.css", oeb.MediaCSS, []byte("p{}"))
	return b
}

// TestWriteRead verifies that a written EPUB reads back with metadata, spine and item data.
func TestWriteRead(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBook()))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "mimetype", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)

	c, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/content.opf", c.OPFPath)
	assert.False(t, c.Encrypted())

	book, err := c.Book()
	require.NoError(t, err)
	assert.Equal(t, "Sample", book.Metadata.Title)
	assert.Equal(t, []string{"Jane Roe"}, book.Metadata.Authors)
	assert.NotEmpty(t, book.Metadata.Identifier("uuid"))
	assert.Equal(t, []string{"c1", "c2"}, book.Spine)

	ch1, ok := book.Item("c1")
	require.True(t, ok)
	assert.Contains(t, string(ch1.Data), "<p>first</p>")

	ncx, ok := book.Item("ncx")
	require.True(t, ok)
	assert.Contains(t, string(ncx.Data), "<text>Two</text>")
}

// TestSetMetadata verifies that metadata is rewritten in place and other entries survive.
func TestSetMetadata(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, sampleBook()))

	require.NoError(t, SetMetadata(f, &oeb.Metadata{Title: "Renamed", Tags: []string{"sf"}}, false))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md, err := ReadMetadata(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", md.Title)
	assert.Equal(t, []string{"Jane Roe"}, md.Authors)
	assert.Equal(t, []string{"sf"}, md.Tags)

	c, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	css, err := c.ReadFile("OEBPS/style.css")
	require.NoError(t, err)
	assert.Equal(t, "p{}", string(css))
}

// TestOpenMalformed verifies the errors returned for broken containers.
func TestOpenMalformed(t *testing.T) {
	t.Parallel()

	_, err := Open(bytes.NewReader([]byte("not a zip")), 9)
	assert.True(t, errors.Is(err, errorcodes.ErrMalformedContainer))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("mimetype")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.True(t, errors.Is(err, errorcodes.ErrC3))
}

// TestEncrypted verifies that font obfuscation is tolerated and other encryption is refused.
func TestEncrypted(t *testing.T) {
	t.Parallel()

	build := func(algorithm string) []byte {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, sampleBook()))
		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)

		var out bytes.Buffer
		zw := zip.NewWriter(&out)
		for _, f := range zr.File {
			require.NoError(t, zw.Copy(f))
		}
		w, err := zw.Create(encryptionPath)
		require.NoError(t, err)
		_, err = w.Write([]byte(`<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">` +
			`<EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><EncryptionMethod Algorithm="` +
			algorithm + `"/></EncryptedData></encryption>`))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return out.Bytes()
	}

	fonts := build(idpfObfuscation)
	c, err := Open(bytes.NewReader(fonts), int64(len(fonts)))
	require.NoError(t, err)
	assert.False(t, c.Encrypted())

	drm := build("http://www.w3.org/2001/04/xmlenc#aes128-cbc")
	c, err = Open(bytes.NewReader(drm), int64(len(drm)))
	require.NoError(t, err)
	assert.True(t, c.Encrypted())
	_, err = c.Book()
	assert.ErrorIs(t, err, errorcodes.ErrC4)
}
