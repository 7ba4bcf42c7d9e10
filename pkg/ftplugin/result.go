package ftplugin

var (
	pool  = NewBufferPool()
	arena = NewArena(pool)
)

// Unchanged is the Run result telling the host the file was left as is.
const Unchanged uint64 = 0

// PackResult combines a pointer and a length into a single uint64 result.
func PackResult(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// UnpackResult splits a packed result into pointer and length.
func UnpackResult(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// Alloc reserves guest memory for the host. Export it as "Alloc".
func Alloc(size uint32) uint32 {
	return arena.Alloc(size)
}

// ReadBytes returns the allocation the host filled at ptr.
func ReadBytes(ptr, length uint32) []byte {
	b, _ := arena.Bytes(ptr, length)
	return b
}

// WriteResult copies data into guest memory and returns its packed location.
func WriteResult(data []byte) uint64 {
	ptr := arena.Alloc(uint32(len(data)))
	buf, _ := arena.Bytes(ptr, uint32(len(data)))
	copy(buf, data)

	return PackResult(ptr, uint32(len(data)))
}

// String returns s as a packed result, for metadata exports such as Name.
func String(s string) uint64 {
	return WriteResult([]byte(s))
}

// Handle runs fn on the file contents passed to Run and packs its output. A
// nil output or an error leaves the file unchanged; errors are logged to the
// host.
func Handle(ptr, length uint32, fn func(data []byte) ([]byte, error)) uint64 {
	in := ReadBytes(ptr, length)
	if in == nil && length > 0 {
		LogError("run: input buffer not found")
		return Unchanged
	}

	defer arena.Free(ptr)

	out, err := fn(in)
	if err != nil {
		LogError("run: " + err.Error())
		return Unchanged
	}
	if out == nil {
		return Unchanged
	}

	return WriteResult(out)
}
