package plugins

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// archiveEntry is the module a zip packaged plugin must carry.
const archiveEntry = "plugin.wasm"

// PluginManager compiles external wasm file type plugins and owns the runtime
// their instances live in.
type PluginManager struct {
	//nolint:containedctx // Context is stored in the struct intentionally to allow reuse across plugin operations.
	ctx     context.Context
	runtime wazero.Runtime
	mu      sync.RWMutex
	active  map[api.Module]*WasmFileType
}

// NewPluginManager returns a PluginManager ready to load plugins.
func NewPluginManager(ctx context.Context) *PluginManager {
	return &PluginManager{ctx: ctx, active: make(map[api.Module]*WasmFileType)}
}

// LoadAll compiles every .wasm or .zip plugin in dir plus the extra files and
// returns one external factory per plugin. A plugin that fails to load is
// logged and skipped. A missing dir is not an error.
func (pm *PluginManager) LoadAll(dir string, extra ...string) ([]Factory, error) {
	var files []string
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !isPluginFile(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	files = append(files, extra...)

	// create new runtime for fresh module instantiation.
	newRt := wazero.NewRuntime(pm.ctx)
	wasi_snapshot_preview1.MustInstantiate(pm.ctx, newRt)

	if err := NewHostFunctions(newRt, pm.lookup).Register(pm.ctx); err != nil {
		_ = newRt.Close(pm.ctx)
		return nil, err
	}

	seen := make(map[string]bool, len(files))
	factories := make([]Factory, 0, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err == nil {
			file = abs
		}
		if seen[file] {
			continue
		}
		seen[file] = true

		f, err := pm.compile(newRt, file)
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("failed to load wasm plugin")
			continue
		}
		factories = append(factories, f)
		log.Info().Str("plugin", f.Name).Str("file", file).Msg("loaded wasm plugin")
	}

	pm.mu.Lock()
	if pm.runtime != nil {
		if err := pm.runtime.Close(pm.ctx); err != nil {
			log.Error().Err(err).Msg("failed to close previous runtime")
		}
	}
	pm.runtime = newRt
	pm.active = make(map[api.Module]*WasmFileType)
	pm.mu.Unlock()

	return factories, nil
}

// Inspect compiles one plugin file in a throwaway runtime and returns its
// declared name, checking that it can be loaded.
func Inspect(ctx context.Context, file string) (string, error) {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	pm := &PluginManager{ctx: ctx, active: map[api.Module]*WasmFileType{}}
	if err := NewHostFunctions(rt, pm.lookup).Register(ctx); err != nil {
		return "", err
	}
	f, err := pm.compile(rt, file)
	if err != nil {
		return "", err
	}

	return f.Name, nil
}

func (pm *PluginManager) compile(rt wazero.Runtime, file string) (Factory, error) {
	wasmBytes, err := readPluginModule(file)
	if err != nil {
		return Factory{}, err
	}

	compiled, err := rt.CompileModule(pm.ctx, wasmBytes)
	if err != nil {
		return Factory{}, fmt.Errorf("failed to compile plugin module: %w", err)
	}
	if _, ok := compiled.ExportedFunctions()["Run"]; !ok {
		return Factory{}, errors.New("plugin does not export Run function")
	}
	if _, ok := compiled.ExportedFunctions()["Alloc"]; !ok {
		return Factory{}, errors.New("plugin does not export Alloc function")
	}

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	md, err := readWasmMetadata(pm.ctx, rt, compiled, name)
	if err != nil {
		return Factory{}, err
	}
	if len(md.FileTypes) == 0 {
		log.Warn().Str("plugin", md.Name).Msg("wasm plugin declares no file types")
	}

	return Factory{
		Name:             md.Name,
		InstallationType: InstallationExternal,
		New: func() (Plugin, error) {
			w := &WasmFileType{pm: pm, compiled: compiled}
			w.Base = NewBase(md.Name, md.Description, md.FileTypes...)
			w.Author = md.Author
			w.Version = md.Version
			w.Priority = md.Priority
			w.Archive = file
			w.On = md.Occasions

			return w, nil
		},
	}, nil
}

func isPluginFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".wasm" || ext == ".zip"
}

// readPluginModule returns the wasm bytes of a plain module or of the
// plugin.wasm entry of a zip archive.
func readPluginModule(file string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(file), ".zip") {
		return os.ReadFile(file)
	}

	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open plugin archive: %w", err)
	}
	defer zr.Close()

	rc, err := zr.Open(archiveEntry)
	if err != nil {
		return nil, fmt.Errorf("plugin archive has no %s: %w", archiveEntry, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func (pm *PluginManager) lookup(mod api.Module) *WasmFileType {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return pm.active[mod]
}

// Close closes the underlying wasm runtime.
func (pm *PluginManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.runtime == nil {
		return nil
	}

	return pm.runtime.Close(pm.ctx)
}

// WasmFileType is a file type plugin implemented by a wasm module. Its module
// is instantiated on Mount and closed on unmount, so each hook run starts from
// fresh guest memory.
type WasmFileType struct {
	FileTypeBase
	pm       *PluginManager
	compiled wazero.CompiledModule
	mod      api.Module
}

// Mount instantiates the plugin's module.
func (w *WasmFileType) Mount(ctx context.Context) (Unmount, error) {
	w.pm.mu.Lock()
	defer w.pm.mu.Unlock()

	if w.pm.runtime == nil {
		return nil, errors.New("plugin runtime is closed")
	}

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions() // Empty list means don't run any start functions
	mod, err := w.pm.runtime.InstantiateModule(ctx, w.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate plugin module: %w", err)
	}
	w.mod = mod
	w.pm.active[mod] = w

	return func(ctx context.Context) error {
		w.pm.mu.Lock()
		delete(w.pm.active, mod)
		w.mod = nil
		w.pm.mu.Unlock()

		return mod.Close(ctx)
	}, nil
}

// Run hands the file content to the guest's Run export. An empty result
// leaves the file unchanged; otherwise it is written to a new temp file.
func (w *WasmFileType) Run(ctx context.Context, path string) (string, error) {
	mod := w.mod
	if mod == nil {
		return "", errors.New("plugin is not mounted")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	ptr, err := AllocBuffer(ctx, mod, data)
	if err != nil {
		return "", err
	}

	outPtr, outLen, err := CallPacked(ctx, mod.ExportedFunction("Run"), uint64(ptr), uint64(len(data)))
	if err != nil {
		return "", fmt.Errorf("plugin execution error: %w", err)
	}
	if outLen == 0 {
		return "", nil
	}

	out, err := ReadBuffer(mod, outPtr, outLen)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(os.TempDir(), "ebookconv-"+uuid.NewString()+filepath.Ext(path))
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return "", err
	}

	log.Debug().
		Str("event", "plugin_response").
		Str("plugin", w.Name).
		Int("bytes", len(out)).
		Str("output", dst).
		Msg("wasm plugin produced a new file")

	return dst, nil
}
