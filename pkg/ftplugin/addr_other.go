//go:build !wasip1 && !tinygo.wasm

package ftplugin

// Outside wasm addresses are synthetic 8-byte aligned offsets, so the arena
// behaves the same in host side tests.
var nextPtr uint32 = 8

func addressOf(b []byte) uint32 {
	n := uint32(len(b))
	ptr := nextPtr
	nextPtr += n + (8-n%8)%8

	return ptr
}
