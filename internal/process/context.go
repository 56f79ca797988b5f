package process

import (
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
)

// The methods below implement host.Context, the surface a bound syscall
// sees. They forward directly to the process's own heap, private map and
// PDPI cache; internal/host never imports this package, so there is no
// cycle.

func (p *Process) GetPdProcessHandle(index int) (interface{}, error) {
	return p.pdpi.get(index)
}

func (p *Process) PublicAlloc(n uint64) memory.Handle { return p.heap.Alloc(n) }

func (p *Process) PublicFree(handle memory.Handle) error { return p.heap.Free(handle) }

func (p *Process) PublicPtrSize(handle memory.Handle) (uint64, bool) { return p.heap.Size(handle) }

func (p *Process) PublicPtrData(handle memory.Handle) ([]byte, bool) {
	slot, ok := p.heap.Get(handle)
	if !ok {
		return nil, false
	}
	return slot.Data, true
}

func (p *Process) PrivateAlloc(n uint64) ([]byte, error) { return p.private.Alloc(n) }

func (p *Process) PrivateFree(ptr uintptr) error { return p.private.Free(ptr) }

func (p *Process) PrivateReserve(n uint64) bool { return p.counters.Reserve(n) }

func (p *Process) PrivateRelease(n uint64) { p.counters.Release(n) }

// ModuleHandle and Internal identify this process to a syscall that wants
// to correlate several calls against the same caller; a plain in-module
// host context has no richer identity to offer than the Process itself.
func (p *Process) ModuleHandle() interface{} { return p }

func (p *Process) Internal() interface{} { return p }
