package memory

import (
	"sync"
	"unsafe"

	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// PrivateMap backs host-side allocations a syscall makes through the
// privateAlloc callback: a raw-pointer-to-size table that lets a later
// privateFree validate the pointer and recover its size without trusting
// the caller. The "pointer" is the address of the first byte of a Go
// slice the VM itself allocated on the syscall's behalf; Go never moves
// heap allocations once referenced this way, so the address is stable
// for the buffer's lifetime.
type PrivateMap struct {
	mu       sync.Mutex
	sizes    map[uintptr][]byte
	counters *Counters
}

// NewPrivateMap returns an empty private-allocation table booked against
// counters.
func NewPrivateMap(counters *Counters) *PrivateMap {
	return &PrivateMap{
		sizes:    make(map[uintptr][]byte),
		counters: counters,
	}
}

// Alloc reserves n bytes for host-side use, charging the private and
// total counters. Returns (nil, OutOfMemory) if either counter lacks
// headroom.
func (p *PrivateMap) Alloc(n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.counters.ChargePrivate(n) {
		return nil, vmerr.ExcOutOfMemory
	}
	buf := make([]byte, n)
	p.sizes[ptrKey(buf)] = buf
	return buf, nil
}

// Free validates that ptr was returned by Alloc and releases its
// accounting. InvalidReference if the pointer is unknown.
func (p *PrivateMap) Free(ptr uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, ok := p.sizes[ptr]
	if !ok {
		return vmerr.InvalidReference
	}
	delete(p.sizes, ptr)
	p.counters.ReleasePrivate(uint64(len(buf)))
	return nil
}

// Size looks up the allocated size of a previously-returned pointer.
func (p *PrivateMap) Size(ptr uintptr) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, ok := p.sizes[ptr]
	if !ok {
		return 0, false
	}
	return uint64(len(buf)), true
}

func ptrKey(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}
