package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCustomizePersistence verifies that plugin state survives a reopen of the backing file.
func TestCustomizePersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "customize.yaml")
	store, err := OpenCustomize(path)
	require.NoError(t, err)

	require.NoError(t, store.SetCustomization("Read EPUB metadata", "  quick  "))
	require.NoError(t, store.Disable("MOBI Output"))
	require.NoError(t, store.Enable("EPUB Output"))
	require.NoError(t, store.AddPlugin("Normalize Text", "/plugins/normalize.zip"))

	reopened, err := OpenCustomize(path)
	require.NoError(t, err)

	assert.Equal(t, "quick", reopened.Customization("Read EPUB metadata"))
	assert.Equal(t, "quick", reopened.Customization("read epub metadata"))
	assert.True(t, reopened.InDisabled("MOBI Output"))
	assert.True(t, reopened.InEnabled("EPUB Output"))
	assert.Equal(t, map[string]string{"normalize text": "/plugins/normalize.zip"}, reopened.InstalledPlugins())
}

// TestCustomizeEnableDisable verifies that enabling and disabling move a name between the sets.
func TestCustomizeEnableDisable(t *testing.T) {
	t.Parallel()

	store := NewMemoryCustomize()
	require.NoError(t, store.Disable("A"))
	assert.True(t, store.InDisabled("A"))
	assert.False(t, store.InEnabled("A"))

	require.NoError(t, store.Enable("A"))
	assert.False(t, store.InDisabled("A"))
	assert.True(t, store.InEnabled("A"))

	require.NoError(t, store.Enable("A"))
	assert.Equal(t, []string{"A"}, store.Snapshot().EnabledPlugins)
}

// TestCustomizeNameMatching verifies customization keys are folded while the
// enable and disable sets match exact names.
func TestCustomizeNameMatching(t *testing.T) {
	t.Parallel()

	store := NewMemoryCustomize()
	require.NoError(t, store.SetCustomization("MOBI Output", "none"))
	assert.Equal(t, "none", store.Customization("mobi output"))
	assert.Equal(t, "none", store.Customization(" MOBI OUTPUT "))

	require.NoError(t, store.Disable("MOBI Output"))
	assert.True(t, store.InDisabled("MOBI Output"))
	assert.False(t, store.InDisabled("mobi output"))

	require.NoError(t, store.Enable("TXT Output"))
	assert.True(t, store.InEnabled("TXT Output"))
	assert.False(t, store.InEnabled("txt output"))
}

// TestCustomizeRemoval verifies that empty customizations and removed plugins disappear.
func TestCustomizeRemoval(t *testing.T) {
	t.Parallel()

	store := NewMemoryCustomize()
	require.NoError(t, store.SetCustomization("X", "value"))
	require.NoError(t, store.SetCustomization("X", "   "))
	assert.Empty(t, store.Customization("X"))

	_, ok, err := store.RemovePlugin("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.AddPlugin("Ext", "/p/ext.wasm"))
	path, ok, err := store.RemovePlugin("EXT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/p/ext.wasm", path)
	assert.Empty(t, store.InstalledPlugins())
}
