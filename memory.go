package binmod

import (
	"context"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

// packPtr combines a guest pointer and length into the single 64-bit
// descriptor that crosses the host/guest boundary in both directions:
// (ptr << 32) | len.
func packPtr(ptr uint32, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtr splits a 64-bit descriptor back into its pointer and length.
func unpackPtr(packed uint64) (ptr uint32, length uint32) {
	return uint32(packed >> 32), uint32(packed & 0xFFFFFFFF)
}

// memoryOps mediates every transfer across a single instance's linear
// memory: allocation is delegated to the guest's own guest_alloc/
// guest_dealloc exports so the guest's allocator remains the sole owner of
// its heap layout.
type memoryOps struct {
	memory     *wasmtime.Memory
	allocFn    *wasmtime.Func
	deallocFn  *wasmtime.Func
	storelike  wasmtime.Storelike
}

func newMemoryOpsFromInstance(inst *wasmtime.Instance, store wasmtime.Storelike) (*memoryOps, *ModuleError) {
	mem := inst.GetExport(store, "memory")
	if mem == nil || mem.Memory() == nil {
		return nil, newErr(KindMemory, "failed to find memory export")
	}
	allocFn := inst.GetFunc(store, "guest_alloc")
	if allocFn == nil {
		return nil, newErr(KindMemory, "failed to find guest_alloc")
	}
	deallocFn := inst.GetFunc(store, "guest_dealloc")
	if deallocFn == nil {
		return nil, newErr(KindMemory, "failed to find guest_dealloc")
	}
	return &memoryOps{memory: mem.Memory(), allocFn: allocFn, deallocFn: deallocFn, storelike: store}, nil
}

func newMemoryOpsFromCaller(caller *wasmtime.Caller) (*memoryOps, *ModuleError) {
	memExport := caller.GetExport("memory")
	if memExport == nil || memExport.Memory() == nil {
		return nil, newErr(KindMemory, "failed to find memory export")
	}
	allocExport := caller.GetExport("guest_alloc")
	if allocExport == nil || allocExport.Func() == nil {
		return nil, newErr(KindMemory, "failed to find guest_alloc")
	}
	deallocExport := caller.GetExport("guest_dealloc")
	if deallocExport == nil || deallocExport.Func() == nil {
		return nil, newErr(KindMemory, "failed to find guest_dealloc")
	}
	return &memoryOps{
		memory:    memExport.Memory(),
		allocFn:   allocExport.Func(),
		deallocFn: deallocExport.Func(),
		storelike: caller,
	}, nil
}

func (m *memoryOps) alloc(store wasmtime.Storelike, size uint32) (uint32, *ModuleError) {
	ret, err := m.allocFn.Call(store, int32(size))
	if err != nil {
		return 0, wrapErr(KindMemory, "guest alloc failed", err)
	}
	ptr, ok := ret.(int32)
	if !ok {
		return 0, newErr(KindMemory, "guest_alloc returned unexpected type")
	}
	return uint32(ptr), nil
}

func (m *memoryOps) dealloc(store wasmtime.Storelike, ptr, size uint32) *ModuleError {
	if _, err := m.deallocFn.Call(store, int32(ptr), int32(size)); err != nil {
		return wrapErr(KindMemory, "guest dealloc failed", err)
	}
	return nil
}

// write allocates len(data) bytes in the guest and copies data into it,
// returning the region's (ptr, len).
func (m *memoryOps) write(store wasmtime.Storelike, data []byte) (uint32, uint32, *ModuleError) {
	size := uint32(len(data))
	ptr, mErr := m.alloc(store, size)
	if mErr != nil {
		return 0, 0, mErr
	}
	dst := m.memory.UnsafeData(store)
	if int(ptr)+len(data) > len(dst) {
		return 0, 0, newErr(KindMemory, "write would overflow guest memory")
	}
	copy(dst[ptr:], data)
	return ptr, size, nil
}

// read copies len bytes out of the guest starting at ptr and then
// deallocates that region: every successful read consumes its source.
func (m *memoryOps) read(store wasmtime.Storelike, ptr, length uint32) ([]byte, *ModuleError) {
	if ptr == 0 || length == 0 {
		return nil, newErr(KindMemory, "null pointer or zero length")
	}
	src := m.memory.UnsafeData(store)
	if int(ptr)+int(length) > len(src) {
		return nil, newErr(KindMemory, "read would overflow guest memory")
	}
	buf := make([]byte, length)
	copy(buf, src[ptr:ptr+length])

	if mErr := m.dealloc(store, ptr, length); mErr != nil {
		return nil, mErr
	}
	return buf, nil
}

// blockOn runs fn on its own goroutine and waits for it, returning
// ctx.Err() early if ctx is done first (fn itself keeps running). Used by
// AsyncModule.Instantiate and AsyncModule.Call.
func blockOn(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
