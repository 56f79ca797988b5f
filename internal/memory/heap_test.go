package memory

import "testing"

func newTestHeap() *Heap {
	counters := NewCounters(1024, 1024, 1024, 4096)
	return NewHeap(counters)
}

func TestHeapAllocZeroSizeReturnsNull(t *testing.T) {
	h := newTestHeap()
	if got := h.Alloc(0); got != HandleNull {
		t.Fatalf("Alloc(0) = %d, want HandleNull", got)
	}
}

func TestHeapAllocSkipsReservedHandles(t *testing.T) {
	h := newTestHeap()
	got := h.Alloc(16)
	if got < firstUserHandle {
		t.Fatalf("Alloc handle %d collides with reserved range", got)
	}
}

func TestHeapAllocRespectsPublicLimit(t *testing.T) {
	h := newTestHeap()
	if got := h.Alloc(2048); got != HandleNull {
		t.Fatalf("Alloc(2048) = %d, want HandleNull (exceeds publicHeap limit of 1024)", got)
	}
}

func TestHeapFreeUnknownHandle(t *testing.T) {
	h := newTestHeap()
	if err := h.Free(Handle(999)); err == nil {
		t.Fatal("Free on unknown handle should fail")
	}
}

func TestHeapFreeBlockedWhileReferenced(t *testing.T) {
	h := newTestHeap()
	handle := h.Alloc(16)
	if handle == HandleNull {
		t.Fatal("Alloc failed")
	}
	if err := h.Bump(handle); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}
	before := h.counters.PublicHeap.Usage

	if err := h.Free(handle); err == nil {
		t.Fatal("Free should fail while NRefs > 0")
	}
	if h.counters.PublicHeap.Usage != before {
		t.Fatal("Free must not mutate accounting on failure")
	}

	if err := h.Unbump(handle); err != nil {
		t.Fatalf("Unbump failed: %v", err)
	}
	if err := h.Free(handle); err != nil {
		t.Fatalf("Free should succeed once NRefs reaches 0: %v", err)
	}
	if h.counters.PublicHeap.Usage != 0 {
		t.Fatalf("publicHeap usage = %d after free, want 0", h.counters.PublicHeap.Usage)
	}
}

func TestHeapHandleStability(t *testing.T) {
	h := newTestHeap()
	a := h.Alloc(8)
	b := h.Alloc(8)
	if a == b {
		t.Fatalf("Alloc returned the same handle twice: %d", a)
	}
	if err := h.Free(a); err != nil {
		t.Fatalf("Free(a) failed: %v", err)
	}
	// a is now free to be reused, but must not collide with b while b lives.
	c := h.Alloc(8)
	if c == b {
		t.Fatalf("Alloc reused a handle (%d) still in use", b)
	}
}

func TestCountersAccountingIdentity(t *testing.T) {
	counters := NewCounters(1024, 1024, 1024, 4096)
	h := NewHeap(counters)

	a := h.Alloc(100)
	p := NewPrivateMap(counters)
	_, err := p.Alloc(50)
	if err != nil {
		t.Fatalf("PrivateMap.Alloc failed: %v", err)
	}
	counters.Reserve(25)

	checkIdentity(t, counters)

	h.Free(a)
	counters.Release(25)
	checkIdentity(t, counters)
}

func checkIdentity(t *testing.T, c *Counters) {
	t.Helper()
	sum := c.PublicHeap.Usage + c.Private.Usage + c.Reserved.Usage
	if sum != c.Total.Usage {
		t.Fatalf("accounting identity violated: public=%d private=%d reserved=%d total=%d",
			c.PublicHeap.Usage, c.Private.Usage, c.Reserved.Usage, c.Total.Usage)
	}
}
