package palmdoc

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompressDecompressFiles verifies the subcommands round trip through files and stdio.
func TestCompressDecompressFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	text := strings.Repeat("All work and no play makes Jack a dull boy. ", 50)
	in := filepath.Join(dir, "in.txt")
	packed := filepath.Join(dir, "in.pdc")
	require.NoError(t, os.WriteFile(in, []byte(text), 0o600))

	cmd, err := NewPalmDocCommand()
	require.NoError(t, err)
	cmd.SetArgs([]string{"compress", in, packed})
	require.NoError(t, cmd.Execute())

	compressed, err := os.ReadFile(packed)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(text))

	cmd, err = NewPalmDocCommand()
	require.NoError(t, err)
	var out bytes.Buffer
	cmd.SetIn(bytes.NewReader(compressed))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"decompress", "-", "-"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, text, out.String())
}

// TestMissingInput verifies read failures are reported.
func TestMissingInput(t *testing.T) {
	t.Parallel()

	cmd, err := NewPalmDocCommand()
	require.NoError(t, err)
	cmd.SetArgs([]string{"compress", filepath.Join(t.TempDir(), "nope"), "-"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	assert.ErrorContains(t, cmd.Execute(), "failed to read input")
}
