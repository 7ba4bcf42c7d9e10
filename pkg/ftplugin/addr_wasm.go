//go:build wasip1 || tinygo.wasm

package ftplugin

import "unsafe"

// addressOf returns the linear memory offset of b's first byte.
//
//nolint:gosec // allow unsafe pointer usage.
func addressOf(b []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}
