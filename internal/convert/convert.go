// Package convert runs conversions through the plugin registry: preprocess
// hooks, input plugin, output plugin and postprocess hooks.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/logging"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Job is one conversion request.
type Job struct {
	Input        string            `json:"input"`
	OutputFormat string            `json:"output_format"`
	Output       string            `json:"output,omitempty"`    // explicit output path
	OutputDir    string            `json:"output_dir,omitempty"` // used when Output is empty
	Options      map[string]string `json:"options,omitempty"`
}

// Result is the outcome of one job.
type Result struct {
	Job    Job
	Output string
	Err    error
	Took   time.Duration
}

// Converter runs jobs against a registry.
type Converter struct {
	Registry *plugins.Registry
	// Progress, when set, is called after every job of a batch.
	Progress func(Result)
}

// New returns a converter using r.
func New(r *plugins.Registry) *Converter {
	return &Converter{Registry: r}
}

// Resolve returns the enabled input and output plugins for a job.
func (c *Converter) Resolve(job Job) (plugins.InputFormat, plugins.OutputFormat, error) {
	inFmt := plugins.FileType(job.Input)
	in, ok := c.Registry.PluginForInputFormat(inFmt)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", errorcodes.ErrNoInputPlugin, inFmt)
	}
	if c.Registry.IsPluginDisabled(in) {
		return nil, nil, fmt.Errorf("%w: %s", errorcodes.ErrPluginDisabled, in.Meta().Name)
	}

	outFmt := strings.ToLower(job.OutputFormat)
	out, ok := c.Registry.PluginForOutputFormat(outFmt)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", errorcodes.ErrNoOutputPlugin, outFmt)
	}
	if c.Registry.IsPluginDisabled(out) {
		return nil, nil, fmt.Errorf("%w: %s", errorcodes.ErrPluginDisabled, out.Meta().Name)
	}

	return in, out, nil
}

// OutputPath returns where a job writes its result.
func OutputPath(job Job) string {
	if job.Output != "" {
		return job.Output
	}

	dir := job.OutputDir
	if dir == "" {
		dir = filepath.Dir(job.Input)
	}
	base := strings.TrimSuffix(filepath.Base(job.Input), filepath.Ext(job.Input))

	return filepath.Join(dir, base+"."+strings.ToLower(job.OutputFormat))
}

// Convert runs one job and returns the output path.
func (c *Converter) Convert(ctx context.Context, job Job) (string, error) {
	start := time.Now()

	in, out, err := c.Resolve(job)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(job.Input); err != nil {
		return "", err
	}

	opts := plugins.ConvertOptions{
		Options: job.Options,
		Log:     log.With().Str("input", job.Input).Str("output_format", out.OutputType()).Logger(),
	}
	inOpts, outOpts := opts, opts
	inOpts.Customization = c.Registry.PluginCustomization(in.Meta().Name)
	outOpts.Customization = c.Registry.PluginCustomization(out.Meta().Name)

	source, _ := c.Registry.RunFileTypeHooks(ctx, job.Input, plugins.OccasionPreprocess, "")

	var book *oeb.Book
	err = plugins.WithMount(ctx, in, func(ctx context.Context) error {
		var err error
		book, err = in.Convert(ctx, source, inOpts)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", in.Meta().Name, err)
	}

	final := OutputPath(job)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", err
	}
	tmp := filepath.Join(filepath.Dir(final), ".ebookconv-"+uuid.NewString()+"."+out.OutputType())
	err = plugins.WithMount(ctx, out, func(ctx context.Context) error {
		return out.Convert(ctx, book, tmp, in, outOpts)
	})
	if err != nil {
		os.RemoveAll(tmp)
		return "", fmt.Errorf("%s: %w", out.Meta().Name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}

	final, _ = c.Registry.RunFileTypeHooks(ctx, final, plugins.OccasionPostprocess, out.OutputType())

	logging.LogConversion(job.Input, final, in.Meta().Name, out.Meta().Name, time.Since(start))

	return final, nil
}

// ConvertAll runs jobs with at most workers in flight. A failing job does not
// stop the others; the returned error joins every failure.
func (c *Converter) ConvertAll(ctx context.Context, jobs []Job, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]Result, len(jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Job: job, Err: err}
				return nil
			}

			start := time.Now()
			output, err := c.Convert(gctx, job)
			results[i] = Result{Job: job, Output: output, Err: err, Took: time.Since(start)}
			if c.Progress != nil {
				mu.Lock()
				c.Progress(results[i])
				mu.Unlock()
			}

			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Job.Input, r.Err))
		}
	}

	return results, errors.Join(errs...)
}
