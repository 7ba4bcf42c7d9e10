package plugin

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrei-cloud/ebookconv/internal/builtins"
	"github.com/andrei-cloud/ebookconv/internal/config"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) (*plugins.Registry, *config.CustomizeStore) {
	t.Helper()

	store := config.NewMemoryCustomize()
	r := builtins.NewRegistry(store)
	r.Rebuild(context.Background())

	return r, store
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(m manageModel, keys ...string) manageModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(manageModel)
	}

	return m
}

// TestManageModel verifies toggling rows and collecting the changes.
func TestManageModel(t *testing.T) {
	t.Parallel()

	r, _ := testRegistry(t)
	m := newManageModel(r)
	require.NotEmpty(t, m.rows)
	assert.Empty(t, m.changes())

	first := m.rows[0]
	m = press(m, " ")
	assert.Equal(t, map[string]bool{first.name: !first.enabled}, m.changes())

	m = press(m, " ")
	assert.Empty(t, m.changes())

	m = press(m, "j", "j", "k")
	assert.Equal(t, 1, m.cursor)

	m = press(m, "up", "up")
	assert.Equal(t, 0, m.cursor)

	m = press(m, "enter")
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "0 plugin state change(s) saved")
}

// TestManageModelProtected verifies plugins that cannot be disabled stay on.
func TestManageModelProtected(t *testing.T) {
	t.Parallel()

	m := manageModel{rows: []pluginRow{{name: "Core", enabled: true, initial: true}}}
	m = press(m, " ")
	assert.True(t, m.rows[0].enabled)
	assert.Contains(t, m.View(), "Core cannot be disabled")

	m = press(m, "q")
	assert.True(t, m.cancelled)
}

// TestSetEnabled verifies persisted enable state and the non-disableable guard.
func TestSetEnabled(t *testing.T) {
	t.Parallel()

	r, store := testRegistry(t)

	p, ok := r.FindByName("TXT Output")
	require.True(t, ok)
	require.NoError(t, setEnabled(store, p, false))
	assert.True(t, r.IsPluginDisabled(p))
	require.NoError(t, setEnabled(store, p, true))
	assert.False(t, r.IsPluginDisabled(p))

	pdf, ok := r.FindByName("Read PDF metadata")
	require.True(t, ok)
	assert.True(t, r.IsPluginDisabled(pdf))
	require.NoError(t, setEnabled(store, pdf, true))
	assert.False(t, r.IsPluginDisabled(pdf))

	locked := &plugins.FileTypeBase{Base: plugins.NewBase("Locked", "")}
	locked.CanBeDisabled = false
	assert.ErrorIs(t, setEnabled(store, locked, false), errorcodes.ErrNotDisableable)
}

// TestWritePluginTable verifies the listing and its kind filter.
func TestWritePluginTable(t *testing.T) {
	t.Parallel()

	r, _ := testRegistry(t)

	var out bytes.Buffer
	require.NoError(t, writePluginTable(&out, r, ""))
	assert.Contains(t, out.String(), "EPUB Input")
	assert.Contains(t, out.String(), "disabled")

	out.Reset()
	require.NoError(t, writePluginTable(&out, r, "conversion output"))
	assert.Contains(t, out.String(), "MOBI Output")
	assert.NotContains(t, out.String(), "EPUB Input")
}

// TestScaffold verifies the generated plugin sources.
func TestScaffold(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := pluginSource{
		Name: "Fix Quotes", Ident: identFor("Fix Quotes"), Desc: "d", Version: "0.1.0",
		Author: "me", FileTypes: "txt,html", Occasions: "preprocess",
	}
	assert.Equal(t, "fix_quotes", s.Ident)

	pkgDir, err := scaffold(dir, s)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(pkgDir, "fix_quotes.go"))
	assert.FileExists(t, filepath.Join(pkgDir, "fix_quotes_test.go"))

	exports, err := os.ReadFile(filepath.Join(pkgDir, "exports.go"))
	require.NoError(t, err)
	assert.Contains(t, string(exports), `ftplugin.String("Fix Quotes")`)
	assert.Contains(t, string(exports), `ftplugin.String("txt,html")`)

	_, err = scaffold(dir, s)
	assert.Error(t, err)

	s.Ident, s.Occasions = "other", "sometimes"
	_, err = scaffold(dir, s)
	assert.Error(t, err)
}

func TestIdentFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "normalize_text", identFor("Normalize  Text!"))
	assert.Equal(t, "a1", identFor("--A1--"))
	assert.Equal(t, "", identFor("!!!"))
}
