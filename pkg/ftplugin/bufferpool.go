// Package ftplugin is the guest side SDK for wasm file type plugins. It owns
// guest memory handed to the host, packs results and forwards logging and
// customization lookups to the host module "env".
package ftplugin

import (
	"sync"
)

// BufferPool manages reusable byte slices organized by size buckets. Book
// files are handed to plugins whole, so buckets go up to a megabyte.
type BufferPool struct {
	pools       map[int]*sync.Pool
	sizeBuckets []int

	// Metrics for pool usage
	allocations int64
	oversized   int64
	returned    int64
	statsMu     sync.RWMutex
}

// NewBufferPool creates a new buffer pool with predefined size buckets.
//
// Example usage:
//
//	pool := ftplugin.NewBufferPool()
//	buf := pool.Get(512)
//	defer pool.Put(buf)
func NewBufferPool() *BufferPool {
	sizeBuckets := []int{256, 4 << 10, 64 << 10, 256 << 10, 1 << 20}
	pools := make(map[int]*sync.Pool, len(sizeBuckets))
	for _, size := range sizeBuckets {
		pools[size] = &sync.Pool{
			New: func() any {
				return make([]byte, 0, size)
			},
		}
	}

	return &BufferPool{pools: pools, sizeBuckets: sizeBuckets}
}

// bucketFor returns the smallest bucket holding size, or 0 when none does.
func (bp *BufferPool) bucketFor(size int) int {
	for _, bs := range bp.sizeBuckets {
		if bs >= size {
			return bs
		}
	}

	return 0
}

// Get returns a zeroed buffer of length size.
func (bp *BufferPool) Get(size int) []byte {
	bp.statsMu.Lock()
	bp.allocations++
	bp.statsMu.Unlock()

	bucket := bp.bucketFor(size)
	if bucket == 0 {
		bp.statsMu.Lock()
		bp.oversized++
		bp.statsMu.Unlock()
		return make([]byte, size)
	}

	buf, _ := bp.pools[bucket].Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}

	return buf[:size:cap(buf)]
}

// Put clears buf and returns it to its bucket. Oversized buffers are dropped.
func (bp *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	bucket := bp.bucketFor(cap(buf))
	if bucket == 0 || bucket != cap(buf) {
		return
	}

	clear(buf[:cap(buf)])
	bp.pools[bucket].Put(buf[:0])

	bp.statsMu.Lock()
	bp.returned++
	bp.statsMu.Unlock()
}

// Stats returns counters about the pool's usage.
func (bp *BufferPool) Stats() map[string]int64 {
	bp.statsMu.RLock()
	defer bp.statsMu.RUnlock()

	return map[string]int64{
		"allocations": bp.allocations,
		"oversized":   bp.oversized,
		"returned":    bp.returned,
	}
}

// GetBucketSizes returns the available buffer bucket sizes.
func (bp *BufferPool) GetBucketSizes() []int {
	sizes := make([]int, len(bp.sizeBuckets))
	copy(sizes, bp.sizeBuckets)
	return sizes
}
