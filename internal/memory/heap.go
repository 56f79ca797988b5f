package memory

import (
	"sync"

	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// Handle addresses a Slot within a Heap. Handle 0 is reserved for null;
// 1, 2 and 3 alias the active linking unit's rodata, data and bss
// sections respectively. User allocations start at 4.
type Handle uint64

const (
	HandleNull   Handle = 0
	HandleRodata Handle = 1
	HandleData   Handle = 2
	HandleBss    Handle = 3

	firstUserHandle Handle = 4
)

// Heap is the per-process MemoryMap: a handle-indexed table of slots with
// public alloc/free accounted against a shared Counters.
type Heap struct {
	mu       sync.Mutex
	slots    map[Handle]*Slot
	next     Handle
	counters *Counters
}

// NewHeap returns an empty heap whose public allocations are booked
// against counters.
func NewHeap(counters *Counters) *Heap {
	return &Heap{
		slots:    make(map[Handle]*Slot),
		next:     firstUserHandle,
		counters: counters,
	}
}

// AddStatic installs a slot at a fixed handle without going through the
// allocation/accounting path — used once at process setup to alias the
// reserved handles 1/2/3 onto the active linking unit's rodata/data/bss
// buffers, which are not counted against the public heap budget.
func (h *Heap) AddStatic(handle Handle, data []byte, readable, writable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slots[handle] = &Slot{
		Data:     data,
		Specials: &Specials{Readable: readable, Writable: writable},
	}
}

// Alloc implements the public-alloc procedure from the spec: a zero-size
// request returns the null handle, insufficient headroom in either the
// publicHeap or total counter returns the null handle, otherwise a fresh
// slot is inserted under an unused handle and both watermarks are
// updated.
func (h *Heap) Alloc(n uint64) Handle {
	if n == 0 {
		return HandleNull
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.counters.ChargePublic(n) {
		return HandleNull
	}

	handle := h.allocHandleLocked()
	h.slots[handle] = &Slot{Data: make([]byte, n)}
	return handle
}

// allocHandleLocked finds an unused handle starting from h.next, skipping
// the reserved range 0..=3 and any handle currently in use. Termination
// is guaranteed because the map can never hold more than 2^64-4 entries.
func (h *Heap) allocHandleLocked() Handle {
	candidate := h.next
	for {
		if candidate < firstUserHandle {
			candidate = firstUserHandle
		}
		if _, used := h.slots[candidate]; !used {
			break
		}
		candidate++
	}
	h.next = candidate + 1
	if h.next < firstUserHandle {
		h.next = firstUserHandle
	}
	return candidate
}

// Free implements the public-free procedure: InvalidReference if the
// handle is unknown, MemoryInUse if the slot's refcount is nonzero,
// otherwise the slot is disposed and its accounting reversed.
func (h *Heap) Free(handle Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	slot, ok := h.slots[handle]
	if !ok {
		return vmerr.InvalidReference
	}
	if slot.NRefs != 0 {
		return vmerr.MemoryInUse
	}
	size := uint64(slot.Size())
	slot.dispose()
	delete(h.slots, handle)
	h.counters.ReleasePublic(size)
	return nil
}

// Get returns the slot at handle, if any.
func (h *Heap) Get(handle Handle) (*Slot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[handle]
	return s, ok
}

// Size reports a slot's size in bytes, or (0, false) if handle is unknown
// — the basis of the memGetSize micro-op.
func (h *Heap) Size(handle Handle) (uint64, bool) {
	s, ok := h.Get(handle)
	if !ok {
		return 0, false
	}
	return uint64(s.Size()), true
}

// Bump increments a slot's reference count, failing with OutOfMemory if
// doing so would wrap a uint64 (spec: "exception OutOfMemory if the
// refcount would wrap").
func (h *Heap) Bump(handle Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[handle]
	if !ok {
		return vmerr.InvalidReference
	}
	if s.NRefs == ^uint64(0) {
		return vmerr.ExcOutOfMemory
	}
	s.NRefs++
	return nil
}

// Unbump decrements a slot's reference count. It is a programmer error
// to call this on an already-zero count; callers only do so paired with
// a prior successful Bump.
func (h *Heap) Unbump(handle Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[handle]
	if !ok {
		return vmerr.InvalidReference
	}
	if s.NRefs > 0 {
		s.NRefs--
	}
	return nil
}
