package plugins

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// wasmMetadata is what a wasm plugin declares through its metadata exports.
type wasmMetadata struct {
	Name        string
	Description string
	Author      string
	Version     [3]int
	FileTypes   []string
	Occasions   Occasions
	Priority    int
}

// readWasmMetadata instantiates compiled once, calls the string exports Name,
// Description, Author, Version, FileTypes and Occasions and the i32 export
// Priority, then closes the instance. Missing exports keep their defaults.
func readWasmMetadata(
	ctx context.Context,
	rt wazero.Runtime,
	compiled wazero.CompiledModule,
	fallbackName string,
) (wasmMetadata, error) {
	md := wasmMetadata{
		Name:     fallbackName,
		Version:  [3]int{1, 0, 0},
		Priority: DefaultPriority,
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return md, fmt.Errorf("instantiate for metadata: %w", err)
	}
	defer mod.Close(ctx)

	if v := exportedString(ctx, mod, "Name"); v != "" {
		md.Name = v
	}
	md.Description = exportedString(ctx, mod, "Description")
	md.Author = exportedString(ctx, mod, "Author")
	if v := exportedString(ctx, mod, "Version"); v != "" {
		md.Version = parseVersion(v)
	}
	md.FileTypes = splitList(exportedString(ctx, mod, "FileTypes"))
	for _, name := range splitList(exportedString(ctx, mod, "Occasions")) {
		occ, err := ParseOccasion(name)
		if err != nil {
			log.Warn().Err(err).Str("plugin", md.Name).Msg("ignoring occasion")
			continue
		}
		md.Occasions.Set(occ)
	}
	if fn := mod.ExportedFunction("Priority"); fn != nil {
		if res, err := fn.Call(ctx); err == nil && len(res) > 0 {
			md.Priority = int(api.DecodeI32(res[0]))
		}
	}

	log.Debug().Str("plugin", md.Name).
		Strs("file_types", md.FileTypes).
		Str("occasions", md.Occasions.String()).
		Int("priority", md.Priority).
		Msg("read wasm plugin metadata")

	return md, nil
}

// exportedString calls a packed-result export and reads the string it points at.
func exportedString(ctx context.Context, mod api.Module, name string) string {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return ""
	}
	ptr, size, err := CallPacked(ctx, fn)
	if err != nil || size == 0 {
		return ""
	}
	data, err := ReadBuffer(mod, ptr, size)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// parseVersion reads up to three dotted numbers; unparsable parts are zero.
func parseVersion(s string) [3]int {
	var v [3]int
	for i, part := range strings.SplitN(strings.TrimPrefix(s, "v"), ".", 3) {
		n, _ := strconv.Atoi(strings.TrimSpace(part))
		v[i] = n
	}

	return v
}
