package ftplugin

// Arena keeps the buffers handed to the host alive until Reset. Buffers are
// identified by the guest address of their first byte.
type Arena struct {
	pool *BufferPool
	live map[uint32][]byte
}

// NewArena returns an empty arena drawing from pool.
func NewArena(pool *BufferPool) *Arena {
	return &Arena{pool: pool, live: make(map[uint32][]byte)}
}

// Alloc reserves n bytes and returns their address. Zero sized requests get
// one byte so every allocation has a distinct address.
func (a *Arena) Alloc(n uint32) uint32 {
	buf := a.pool.Get(int(max(n, 1)))
	ptr := addressOf(buf)
	a.live[ptr] = buf

	return ptr
}

// Bytes returns the first n bytes of the allocation at ptr.
func (a *Arena) Bytes(ptr, n uint32) ([]byte, bool) {
	buf, ok := a.live[ptr]
	if !ok || int(n) > len(buf) {
		return nil, false
	}

	return buf[:n], true
}

// Free releases one allocation.
func (a *Arena) Free(ptr uint32) {
	if buf, ok := a.live[ptr]; ok {
		delete(a.live, ptr)
		a.pool.Put(buf)
	}
}

// Reset releases every allocation.
func (a *Arena) Reset() {
	for ptr, buf := range a.live {
		delete(a.live, ptr)
		a.pool.Put(buf)
	}
}

// Len returns the number of live allocations.
func (a *Arena) Len() int {
	return len(a.live)
}
