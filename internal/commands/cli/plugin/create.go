package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Scaffold a new wasm file type plugin",
		Long: `Create the source of a new file type plugin. This will:
1. Create commands/<name>/<name>.go with the transformation logic and its test
2. Create commands/<name>/exports.go with the wasm exports
3. Optionally build the plugin with tinygo into the plugin directory`,
		Args: cobra.ExactArgs(1),
		RunE: runCreatePlugin,
	}

	cmd.Flags().StringP("desc", "d", "", "Plugin description")
	cmd.Flags().StringP("version", "v", "0.1.0", "Plugin version")
	cmd.Flags().StringP("author", "a", "ebookconv", "Plugin author")
	cmd.Flags().String("file-types", "txt", "comma separated file types the plugin runs on")
	cmd.Flags().String("occasions", "preprocess", "comma separated occasions (import, preprocess, postprocess)")
	cmd.Flags().String("dir", "commands", "directory the plugin source is created in")
	cmd.Flags().Bool("build", false, "build the plugin with tinygo after creating it")

	return cmd
}

// pluginSource holds the values substituted into the templates.
type pluginSource struct {
	Name, Ident, Desc, Version, Author, FileTypes, Occasions string
}

func (s pluginSource) logic() string {
	return fmt.Sprintf(`// Command %[2]s is the %[1]s file type plugin.
package main

// Transform returns the new file contents, or nil to leave the file unchanged.
func Transform(data []byte, customization string) ([]byte, error) {
	_ = customization

	return nil, nil
}

func main() {}
`, s.Name, s.Ident)
}

func (s pluginSource) test() string {
	return `package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransform(t *testing.T) {
	t.Parallel()

	out, err := Transform([]byte("text"), "")
	assert.NoError(t, err)
	assert.Nil(t, out)
}
`
}

func (s pluginSource) exports() string {
	return fmt.Sprintf(`//go:build tinygo.wasm

package main

import "github.com/andrei-cloud/ebookconv/pkg/ftplugin"

//export Alloc
func Alloc(size uint32) uint32 { return ftplugin.Alloc(size) }

//export Run
func Run(ptr, length uint32) uint64 {
	custom := ftplugin.SiteCustomization()

	return ftplugin.Handle(ptr, length, func(data []byte) ([]byte, error) {
		return Transform(data, custom)
	})
}

//export Name
func Name() uint64 { return ftplugin.String(%[1]q) }

//export Description
func Description() uint64 { return ftplugin.String(%[2]q) }

//export Author
func Author() uint64 { return ftplugin.String(%[3]q) }

//export Version
func Version() uint64 { return ftplugin.String(%[4]q) }

//export FileTypes
func FileTypes() uint64 { return ftplugin.String(%[5]q) }

//export Occasions
func Occasions() uint64 { return ftplugin.String(%[6]q) }

//export Priority
func Priority() int32 { return 1 }
`, s.Name, s.Desc, s.Author, s.Version, s.FileTypes, s.Occasions)
}

// identFor turns a plugin name into a directory and file name.
func identFor(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}

	return strings.Trim(b.String(), "_")
}

// scaffold writes the plugin sources below dir and returns the package directory.
func scaffold(dir string, s pluginSource) (string, error) {
	for _, occ := range strings.Split(s.Occasions, ",") {
		if _, err := plugins.ParseOccasion(strings.TrimSpace(occ)); err != nil {
			return "", err
		}
	}

	pkgDir := filepath.Join(dir, s.Ident)
	if _, err := os.Stat(pkgDir); err == nil {
		return "", fmt.Errorf("%s already exists", pkgDir)
	}
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plugin directory: %w", err)
	}

	files := map[string]string{
		s.Ident + ".go":      s.logic(),
		s.Ident + "_test.go": s.test(),
		"exports.go":         s.exports(),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(pkgDir, name), []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", name, err)
		}
	}

	return pkgDir, nil
}

func runCreatePlugin(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	s := pluginSource{Name: args[0], Ident: identFor(args[0])}
	if s.Ident == "" {
		return fmt.Errorf("invalid plugin name %q", args[0])
	}
	s.Desc, _ = flags.GetString("desc")
	s.Version, _ = flags.GetString("version")
	s.Author, _ = flags.GetString("author")
	s.FileTypes, _ = flags.GetString("file-types")
	s.Occasions, _ = flags.GetString("occasions")
	dir, _ := flags.GetString("dir")

	pkgDir, err := scaffold(dir, s)
	if err != nil {
		return err
	}
	cmd.Printf("Created plugin source in %s\n", pkgDir)

	if build, _ := flags.GetBool("build"); build {
		out := filepath.Join("plugins", s.Ident+".wasm")
		if err := runTinyGo(out, "./"+filepath.ToSlash(pkgDir)); err != nil {
			return fmt.Errorf("failed to build plugin: %w", err)
		}
		cmd.Printf("Built %s\n", out)
	}

	return nil
}

func runTinyGo(out, pkg string) error {
	buildCmd := exec.Command("tinygo", "build", "-o", out, "-target", "wasi", pkg)
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr

	return buildCmd.Run()
}
