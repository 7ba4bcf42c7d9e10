package meta

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/builtins"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *plugins.Registry {
	r := builtins.NewRegistry(nil)
	r.Rebuild(context.Background())

	return r
}

// TestReadWriteMetadata verifies metadata set through writers is read back.
func TestReadWriteMetadata(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	ctx := context.Background()

	b := oeb.NewBook()
	b.Metadata.Title = "Before"
	b.AddDocument("c1", "c1.xhtml", oeb.WrapXHTML("Before", []byte("<p>x</p>")))
	path := filepath.Join(t.TempDir(), "book.mobi")
	require.NoError(t, builtins.NewMOBIOutput().Convert(ctx, b, path, nil, plugins.ConvertOptions{}))

	mi := &oeb.Metadata{Title: "After", Authors: []string{"A. Writer"}, Tags: []string{"x"}}
	require.NoError(t, writeMetadata(ctx, r, path, mi, false))

	got, err := readMetadata(ctx, r, path)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	assert.Equal(t, []string{"A. Writer"}, got.Authors)
	assert.Equal(t, []string{"x"}, got.Tags)
}

// TestMetadataErrors verifies missing plugins are reported with their codes.
func TestMetadataErrors(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	ctx := context.Background()

	_, err := readMetadata(ctx, r, filepath.Join(t.TempDir(), "a.docx"))
	assert.ErrorIs(t, err, errorcodes.ErrF3)

	err = writeMetadata(ctx, r, filepath.Join(t.TempDir(), "a.opf"), &oeb.Metadata{}, false)
	assert.ErrorIs(t, err, errorcodes.ErrF4)

	// the only pdf reader is disabled by default.
	pdf := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4\n"), 0o600))
	_, err = readMetadata(ctx, r, pdf)
	assert.ErrorIs(t, err, errorcodes.ErrPluginDisabled)
}

// TestRender verifies the output formats of meta show.
func TestRender(t *testing.T) {
	t.Parallel()

	mi := &oeb.Metadata{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		Pubdate: time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		format string
		want   string
	}{
		{"text", "Title       : Dune\nAuthor(s)   : Frank Herbert\nPublished   : 1965-08-01\n"},
		{"yaml", "title: Dune\nauthors:\n    - Frank Herbert\npubdate: \"1965-08-01\"\n"},
		{"json", "{\n  \"title\": \"Dune\",\n  \"authors\": [\n    \"Frank Herbert\"\n  ],\n  \"pubdate\": \"1965-08-01\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()
			got, err := render(mi, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := render(mi, "xml")
	assert.Error(t, err)
}
