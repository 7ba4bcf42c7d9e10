//go:build wasip1 || tinygo.wasm

package ftplugin

import "unsafe"

//go:wasmimport env log_debug
func hostLogDebug(ptr, length uint32)

//go:wasmimport env log_info
func hostLogInfo(ptr, length uint32)

//go:wasmimport env log_error
func hostLogError(ptr, length uint32)

//go:wasmimport env site_customization
func hostSiteCustomization() uint64

//go:wasmimport env original_path
func hostOriginalPath() uint64

// hostLog passes msg to a host log function. msg stays reachable for the call.
//
//nolint:gosec // allow unsafe pointer usage.
func hostLog(fn func(ptr, length uint32), msg string) {
	if msg == "" {
		return
	}
	fn(uint32(uintptr(unsafe.Pointer(unsafe.StringData(msg)))), uint32(len(msg)))
}

// hostString reads a string the host wrote into guest memory through Alloc.
func hostString(fn func() uint64) string {
	ptr, length := UnpackResult(fn())
	if length == 0 {
		return ""
	}
	s := string(ReadBytes(ptr, length))
	arena.Free(ptr)

	return s
}

// LogDebug logs msg at debug level on the host.
func LogDebug(msg string) { hostLog(hostLogDebug, msg) }

// LogInfo logs msg at info level on the host.
func LogInfo(msg string) { hostLog(hostLogInfo, msg) }

// LogError logs msg at error level on the host.
func LogError(msg string) { hostLog(hostLogError, msg) }

// SiteCustomization returns the user's customization string for this plugin.
func SiteCustomization() string { return hostString(hostSiteCustomization) }

// OriginalPath returns the path the current hook run started from.
func OriginalPath() string { return hostString(hostOriginalPath) }
