package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// AllocBuffer allocates guest memory via the wasm Alloc export and writes
// data into the guest's linear memory, returning the pointer address.
func AllocBuffer(
	ctx context.Context,
	mod api.Module,
	data []byte,
) (uint32, error) {
	alloc := mod.ExportedFunction("Alloc")
	if alloc == nil {
		return 0, errors.New("module does not export Alloc")
	}

	length := uint32(len(data))
	if length == 0 {
		return 0, nil
	}

	results, err := alloc.Call(ctx, uint64(length))
	if err != nil {
		return 0, fmt.Errorf("alloc failed: %w", err)
	}
	if len(results) < 1 {
		return 0, errors.New("alloc returned no results")
	}

	ptr := api.DecodeU32(results[0])
	if !mod.Memory().Write(ptr, data) {
		return 0, errors.New("memory write failed: bounds exceeded")
	}

	return ptr, nil
}

// PackResult combines a pointer and a length into one uint64.
func PackResult(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// UnpackResult splits a packed uint64 into pointer and length.
func UnpackResult(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// CallPacked invokes fn with the given params and unpacks its single uint64 result.
func CallPacked(ctx context.Context, fn api.Function, params ...uint64) (ptr, length uint32, err error) {
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, 0, fmt.Errorf("execution failed: %w", err)
	}
	if len(results) < 1 {
		return 0, 0, errors.New("invalid execution result")
	}
	ptr, length = UnpackResult(results[0])

	return ptr, length, nil
}

// ReadBuffer copies length bytes at ptr out of guest memory.
func ReadBuffer(mod api.Module, ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, errors.New("memory read failed: bounds exceeded")
	}

	return append([]byte(nil), data...), nil
}
