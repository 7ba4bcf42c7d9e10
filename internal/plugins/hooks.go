package plugins

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/logging"
	"github.com/rs/zerolog/log"
)

// HookResult is the outcome of one file type plugin run.
type HookResult struct {
	Plugin string
	// Path is the file the pipeline continues with after this plugin.
	Path  string
	Err   error
	Stack []byte
}

// OK reports whether the plugin ran without failing.
func (r HookResult) OK() bool {
	return r.Err == nil
}

// PluginsFor returns the enabled plugins registered for ft at occ:
// type specific entries first, then the wildcard entries.
func (r *Registry) PluginsFor(ft string, occ Occasion) []FileTypePlugin {
	if occ < 0 || occ >= occasionCount {
		return nil
	}
	return r.pluginsFor(r.snap.Load(), strings.ToLower(ft), occ)
}

func (r *Registry) pluginsFor(s *snapshot, ft string, occ Occasion) []FileTypePlugin {
	var out []FileTypePlugin
	table := s.hooks[occ]
	for _, key := range []string{ft, Wildcard} {
		for _, p := range table[key] {
			if !r.IsPluginDisabled(p) {
				out = append(out, p)
			}
		}
		if ft == Wildcard {
			break
		}
	}

	return out
}

// PostAddPlugins returns the enabled plugins with the postimport flag set.
func (r *Registry) PostAddPlugins() []FileTypePlugin {
	return r.postAddPlugins(r.snap.Load())
}

func (r *Registry) postAddPlugins(s *snapshot) []FileTypePlugin {
	var out []FileTypePlugin
	for _, p := range s.postAdd {
		if !r.IsPluginDisabled(p) {
			out = append(out, p)
		}
	}

	return out
}

// FileType returns the lowercase extension of path without the dot.
func FileType(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// RunFileTypeHooks runs the plugins registered for ft at occ over path, one
// after the other, each receiving the file produced by the previous one. An
// empty ft is taken from the extension of path. A failing plugin is logged and
// skipped. After postprocess hooks the final content is copied onto path and
// path is returned.
func (r *Registry) RunFileTypeHooks(
	ctx context.Context,
	path string,
	occ Occasion,
	ft string,
) (string, []HookResult) {
	if ft == "" {
		ft = FileType(path)
	}

	s := r.snap.Load()
	plugins := r.pluginsFor(s, strings.ToLower(ft), occ)
	if len(plugins) == 0 {
		return path, nil
	}

	current := path
	results := make([]HookResult, 0, len(plugins))
	for _, p := range plugins {
		res := r.runHook(ctx, s, p, occ, path, current)
		results = append(results, res)
		current = res.Path
	}

	if occ == OccasionPostprocess && !samePath(current, path) {
		if err := copyFile(current, path); err != nil {
			log.Error().Err(err).Str("from", current).Str("to", path).
				Msg("failed to copy postprocessed file back")
			return current, results
		}
		current = path
	}

	return current, results
}

// runHook isolates one plugin run: it holds the plugin's run lock, refreshes
// its customization, mounts it and recovers a panic.
func (r *Registry) runHook(
	ctx context.Context,
	s *snapshot,
	p FileTypePlugin,
	occ Occasion,
	original, current string,
) (res HookResult) {
	meta := p.Meta()
	res = HookResult{Plugin: meta.Name, Path: current}

	unlock := lockPlugin(s, p)
	defer unlock()

	defer func() {
		if rec := recover(); rec != nil {
			res.Path = current
			res.Err = fmt.Errorf("plugin %s panicked: %v", meta.Name, rec)
			res.Stack = debug.Stack()
		}
		if res.Err != nil {
			logging.LogHookFailure(meta.Name, occ.String(), current, res.Err, res.Stack)
		}
	}()

	meta.SiteCustomization = r.settings.Customization(meta.Name)
	err := WithMount(ctx, p, func(ctx context.Context) error {
		meta.OriginalPathToFile = original
		out, err := p.Run(ctx, current)
		if err != nil {
			return err
		}
		if out != "" {
			res.Path = out
		}

		return nil
	})
	if err != nil {
		res.Path = current
		res.Err = err
	}

	return res
}

// RunPostImport runs the postimport hooks registered for format.
func (r *Registry) RunPostImport(ctx context.Context, bookID int64, format string, db Library) []HookResult {
	return r.runSideEffect(ctx, OccasionPostImport, format, func(ctx context.Context, p FileTypePlugin) error {
		return p.PostImport(ctx, bookID, format, db)
	})
}

// RunPostConvert runs the postconvert hooks registered for format.
func (r *Registry) RunPostConvert(ctx context.Context, bookID int64, format string, db Library) []HookResult {
	return r.runSideEffect(ctx, OccasionPostConvert, format, func(ctx context.Context, p FileTypePlugin) error {
		return p.PostConvert(ctx, bookID, format, db)
	})
}

// RunPostDelete runs the postdelete hooks registered for format.
func (r *Registry) RunPostDelete(ctx context.Context, bookID int64, format string, db Library) []HookResult {
	return r.runSideEffect(ctx, OccasionPostDelete, format, func(ctx context.Context, p FileTypePlugin) error {
		return p.PostDelete(ctx, bookID, format, db)
	})
}

// RunPostAdd runs every postimport-flagged plugin once with all formats of a newly added book.
func (r *Registry) RunPostAdd(ctx context.Context, bookID int64, formats map[string]string, db Library) []HookResult {
	s := r.snap.Load()
	var results []HookResult
	for _, p := range r.postAddPlugins(s) {
		results = append(results, r.callHook(ctx, s, p, "postadd", func(ctx context.Context) error {
			return p.PostAdd(ctx, bookID, formats, db)
		}))
	}

	return results
}

func (r *Registry) runSideEffect(
	ctx context.Context,
	occ Occasion,
	format string,
	call func(ctx context.Context, p FileTypePlugin) error,
) []HookResult {
	s := r.snap.Load()
	var results []HookResult
	for _, p := range r.pluginsFor(s, strings.ToLower(format), occ) {
		results = append(results, r.callHook(ctx, s, p, occ.String(), func(ctx context.Context) error {
			return call(ctx, p)
		}))
	}

	return results
}

func (r *Registry) callHook(
	ctx context.Context,
	s *snapshot,
	p FileTypePlugin,
	occasion string,
	fn func(ctx context.Context) error,
) (res HookResult) {
	meta := p.Meta()
	res = HookResult{Plugin: meta.Name}

	unlock := lockPlugin(s, p)
	defer unlock()

	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("plugin %s panicked: %v", meta.Name, rec)
			res.Stack = debug.Stack()
		}
		if res.Err != nil {
			logging.LogHookFailure(meta.Name, occasion, "", res.Err, res.Stack)
		}
	}()

	meta.SiteCustomization = r.settings.Customization(meta.Name)
	res.Err = WithMount(ctx, p, fn)

	return res
}

// lockPlugin serializes runs of one plugin instance.
func lockPlugin(s *snapshot, p Plugin) func() {
	mu, ok := s.runLocks[p]
	if !ok {
		return func() {}
	}
	mu.Lock()

	return mu.Unlock
}

func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}

	return a == b
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
