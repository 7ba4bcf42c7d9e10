package plugins

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
)

// Unmount releases what Mount acquired.
type Unmount func(ctx context.Context) error

// Mounter is implemented by plugins whose code must be loaded before use.
type Mounter interface {
	Mount(ctx context.Context) (Unmount, error)
}

// WithMount runs fn with the plugin's code mounted. The unmount runs on every
// exit path, including a panic in fn.
func WithMount(ctx context.Context, p Plugin, fn func(ctx context.Context) error) (err error) {
	m, ok := p.(Mounter)
	if !ok {
		return fn(ctx)
	}

	unmount, err := m.Mount(ctx)
	if err != nil {
		return fmt.Errorf("mount plugin %s: %w", p.Meta().Name, err)
	}
	defer func() {
		if uerr := unmount(ctx); uerr != nil {
			log.Error().Err(uerr).Str("plugin", p.Meta().Name).Msg("failed to unmount plugin")
			err = errors.Join(err, uerr)
		}
	}()

	return fn(ctx)
}

// LoadResources reads the named entries from the plugin's backing zip archive.
// Names that are not present are left out of the result.
func (b *Base) LoadResources(names ...string) (map[string][]byte, error) {
	if b.Archive == "" || !strings.EqualFold(path.Ext(b.Archive), ".zip") {
		return map[string][]byte{}, nil
	}

	zr, err := zip.OpenReader(b.Archive)
	if err != nil {
		return nil, fmt.Errorf("open plugin archive: %w", err)
	}
	defer zr.Close()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	res := make(map[string][]byte, len(names))
	for _, f := range zr.File {
		if !wanted[f.Name] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open resource %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read resource %s: %w", f.Name, err)
		}
		res[f.Name] = data
	}

	return res, nil
}
