package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPackResult verifies that PackResult and UnpackResult are inverse operations.
func TestPackResult(t *testing.T) {
	t.Parallel()

	ptr, length := UnpackResult(PackResult(0xDEADBEEF, 0xFEEDFACE))
	assert.Equal(t, uint32(0xDEADBEEF), ptr)
	assert.Equal(t, uint32(0xFEEDFACE), length)
}

// TestParseVersion verifies dotted version parsing.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want [3]int
	}{
		{"1.2.3", [3]int{1, 2, 3}},
		{"v2.1", [3]int{2, 1, 0}},
		{"x.4", [3]int{0, 4, 0}},
		{"", [3]int{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseVersion(tt.in), tt.in)
	}
}

// TestSplitList verifies comma separated list parsing.
func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"txt", "html"}, splitList(" TXT, ,html "))
	assert.Nil(t, splitList(""))
}

// TestLoadAllSkipsBrokenModules verifies that files which are not valid wasm modules are skipped.
func TestLoadAllSkipsBrokenModules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "broken.wasm", "not wasm")
	writeFile(t, dir, "notes.txt", "ignored")

	pm := NewPluginManager(t.Context())
	defer pm.Close()

	factories, err := pm.LoadAll(dir)
	assert.NoError(t, err)
	assert.Empty(t, factories)

	factories, err = pm.LoadAll(dir + "/missing")
	assert.NoError(t, err)
	assert.Empty(t, factories)
}
