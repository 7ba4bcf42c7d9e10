package plugins

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// HostFunctions provides the "env" module imported by wasm plugins.
type HostFunctions struct {
	builder wazero.HostModuleBuilder
	// lookup maps a guest instance back to the plugin it is mounted for.
	lookup func(api.Module) *WasmFileType
}

// NewHostFunctions creates a new host functions provider.
func NewHostFunctions(runtime wazero.Runtime, lookup func(api.Module) *WasmFileType) *HostFunctions {
	return &HostFunctions{
		builder: runtime.NewHostModuleBuilder("env"),
		lookup:  lookup,
	}
}

// Register adds all host functions to the wasm runtime.
func (h *HostFunctions) Register(ctx context.Context) error {
	h.builder.NewFunctionBuilder().
		WithFunc(h.logDebug).
		Export("log_debug")

	h.builder.NewFunctionBuilder().
		WithFunc(h.logInfo).
		Export("log_info")

	h.builder.NewFunctionBuilder().
		WithFunc(h.logError).
		Export("log_error")

	h.builder.NewFunctionBuilder().
		WithFunc(h.siteCustomization).
		Export("site_customization")

	h.builder.NewFunctionBuilder().
		WithFunc(h.originalPath).
		Export("original_path")

	if _, err := h.builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host functions module: %w", err)
	}

	return nil
}

// readMemory safely reads bytes from wasm module memory.
func readMemory(mod api.Module, ptr, size uint32) ([]byte, error) {
	if mod == nil {
		return nil, fmt.Errorf("nil module")
	}

	memory := mod.Memory()
	if memory == nil {
		return nil, fmt.Errorf("no memory exported")
	}

	data, ok := memory.Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("failed to read memory at %d[%d]", ptr, size)
	}

	return data, nil
}

func (h *HostFunctions) pluginName(mod api.Module) string {
	if p := h.lookup(mod); p != nil {
		return p.Name
	}

	return ""
}

func (h *HostFunctions) guestLog(ev *zerolog.Event, mod api.Module, ptr, size uint32) {
	data, err := readMemory(mod, ptr, size)
	if err != nil {
		log.Error().Err(err).Msg("failed to read plugin log message")
		return
	}

	ev.Str("source", "wasm").
		Str("plugin", h.pluginName(mod)).
		Msg(string(data))
}

func (h *HostFunctions) logDebug(_ context.Context, mod api.Module, ptr, size uint32) {
	h.guestLog(log.Debug(), mod, ptr, size)
}

func (h *HostFunctions) logInfo(_ context.Context, mod api.Module, ptr, size uint32) {
	h.guestLog(log.Info(), mod, ptr, size)
}

func (h *HostFunctions) logError(_ context.Context, mod api.Module, ptr, size uint32) {
	h.guestLog(log.Error(), mod, ptr, size)
}

// siteCustomization hands the guest its customization string.
func (h *HostFunctions) siteCustomization(ctx context.Context, mod api.Module) uint64 {
	p := h.lookup(mod)
	if p == nil {
		return 0
	}

	return h.writeString(ctx, mod, p.SiteCustomization)
}

// originalPath hands the guest the path the current hook run started from.
func (h *HostFunctions) originalPath(ctx context.Context, mod api.Module) uint64 {
	p := h.lookup(mod)
	if p == nil {
		return 0
	}

	return h.writeString(ctx, mod, p.OriginalPathToFile)
}

func (h *HostFunctions) writeString(ctx context.Context, mod api.Module, s string) uint64 {
	if s == "" {
		return 0
	}

	ptr, err := AllocBuffer(ctx, mod, []byte(s))
	if err != nil {
		log.Error().Err(err).Msg("failed to hand string to plugin")
		return 0
	}

	return PackResult(ptr, uint32(len(s)))
}
