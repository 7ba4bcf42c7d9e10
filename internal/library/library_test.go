package library

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/andrei-cloud/ebookconv/internal/builtins"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder logs every library hook call it receives.
type recorder struct {
	plugins.FileTypeBase
	mu     sync.Mutex
	events []string
	seen   map[string]bool // format path existed when the hook ran
}

func newRecorder() *recorder {
	r := &recorder{seen: map[string]bool{}}
	r.Base = plugins.NewBase("Recorder", "records library hooks", plugins.Wildcard)
	r.On = plugins.Occasions{Import: true, PostImport: true, PostConvert: true, PostDelete: true}

	return r
}

func (r *recorder) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Run(_ context.Context, path string) (string, error) {
	r.record("import:" + plugins.FileType(path))
	return "", nil
}

func (r *recorder) PostImport(ctx context.Context, id int64, format string, db plugins.Library) error {
	r.record("postimport:" + format)
	p, err := db.FormatPath(ctx, id, format)
	if err != nil {
		return err
	}
	_, err = os.Stat(p)
	r.seen[format] = err == nil

	return nil
}

func (r *recorder) PostAdd(_ context.Context, _ int64, formats map[string]string, _ plugins.Library) error {
	r.record("postadd:" + strconv.Itoa(len(formats)))
	return nil
}

func (r *recorder) PostConvert(_ context.Context, _ int64, format string, _ plugins.Library) error {
	r.record("postconvert:" + format)
	return nil
}

func (r *recorder) PostDelete(_ context.Context, _ int64, format string, _ plugins.Library) error {
	r.record("postdelete:" + format)
	return nil
}

type noSettings struct{}

func (noSettings) Customization(string) string          { return "" }
func (noSettings) SetCustomization(string, string) error { return nil }
func (noSettings) InEnabled(string) bool                { return false }
func (noSettings) InDisabled(string) bool               { return false }

func openLibrary(t *testing.T) (*Library, *recorder) {
	t.Helper()

	rec := newRecorder()
	reg := builtins.NewRegistry(noSettings{}, plugins.Factory{
		Name: "Recorder", New: func() (plugins.Plugin, error) { return rec, nil },
	})
	reg.Rebuild(context.Background())

	lib, err := Open(context.Background(), filepath.Join(t.TempDir(), "library"), reg)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	return lib, rec
}

func writeEPUB(t *testing.T, title string, authors ...string) string {
	t.Helper()

	b := oeb.NewBook()
	b.Metadata.Title = title
	b.Metadata.Authors = authors
	b.AddDocument("c1", "c1.xhtml", oeb.WrapXHTML(title, []byte("<p>text</p>")))

	path := filepath.Join(t.TempDir(), "upload.epub")
	require.NoError(t, builtins.NewEPUBOutput().Convert(context.Background(), b, path, nil, plugins.ConvertOptions{}))

	return path
}

// TestAdd verifies import, metadata extraction and the hook sequence of a new book.
func TestAdd(t *testing.T) {
	t.Parallel()

	lib, rec := openLibrary(t)
	ctx := context.Background()

	id, err := lib.Add(ctx, writeEPUB(t, "Dune: Messiah", "Frank Herbert"))
	require.NoError(t, err)

	b, err := lib.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dune: Messiah", b.Title)
	assert.Equal(t, "Frank Herbert", b.Authors)
	require.Contains(t, b.Formats, "epub")
	assert.Equal(t, "Dune_ Messiah.epub", filepath.Base(b.Formats["epub"]))
	assert.FileExists(t, b.Formats["epub"])

	assert.Equal(t, []string{"import:epub", "postimport:epub", "postadd:1"}, rec.events)
	assert.True(t, rec.seen["epub"])

	ids, err := lib.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)
}

// TestAddFallbackTitle verifies the file name is used when no reader knows the format.
func TestAddFallbackTitle(t *testing.T) {
	t.Parallel()

	lib, _ := openLibrary(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain"), 0o600))

	id, err := lib.Add(ctx, path)
	require.NoError(t, err)

	b, err := lib.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "notes", b.Title)

	_, err = lib.Add(ctx, filepath.Join(t.TempDir(), "noext"))
	assert.Error(t, err)
}

// TestFormats verifies adding, resolving and removing formats.
func TestFormats(t *testing.T) {
	t.Parallel()

	lib, rec := openLibrary(t)
	ctx := context.Background()

	id, err := lib.Add(ctx, writeEPUB(t, "Book"))
	require.NoError(t, err)

	mobi := filepath.Join(t.TempDir(), "book.mobi")
	require.NoError(t, os.WriteFile(mobi, []byte("not really mobi"), 0o600))
	require.NoError(t, lib.AddFormat(ctx, id, mobi))

	p, err := lib.FormatPath(ctx, id, "MOBI")
	require.NoError(t, err)
	assert.FileExists(t, p)

	require.NoError(t, lib.RemoveFormat(ctx, id, "mobi"))
	assert.NoFileExists(t, p)

	_, err = lib.FormatPath(ctx, id, "mobi")
	assert.ErrorIs(t, err, errorcodes.ErrL2)
	_, err = lib.FormatPath(ctx, id+100, "mobi")
	assert.ErrorIs(t, err, errorcodes.ErrBookNotFound)
	assert.ErrorIs(t, lib.AddFormat(ctx, id+100, mobi), errorcodes.ErrBookNotFound)

	assert.Contains(t, rec.events, "postconvert:mobi")
	assert.Contains(t, rec.events, "postdelete:mobi")
}

// TestRemove verifies a removed book leaves neither rows nor files behind.
func TestRemove(t *testing.T) {
	t.Parallel()

	lib, rec := openLibrary(t)
	ctx := context.Background()

	id, err := lib.Add(ctx, writeEPUB(t, "Gone"))
	require.NoError(t, err)

	require.NoError(t, lib.Remove(ctx, id))
	_, err = lib.Get(ctx, id)
	assert.ErrorIs(t, err, errorcodes.ErrBookNotFound)
	assert.NoDirExists(t, lib.bookDir(id))
	assert.Contains(t, rec.events, "postdelete:epub")

	ids, err := lib.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TestSafeName verifies title to file name mapping.
func TestSafeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Plain", "Plain"},
		{"a/b\\c", "a_b_c"},
		{"  ..hidden.. ", "hidden"},
		{"", "book"},
		{"tab\there", "tabhere"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, safeName(tt.in))
		})
	}
}
