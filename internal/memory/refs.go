package memory

import "github.com/sharemind-sdk/libvm-sub001/internal/vmerr"

// refBase is the state shared by Reference and CReference: a byte window
// plus, when it aliases a heap slot rather than a caller-local register,
// the handle and heap needed to unbump the slot's refcount on release.
type refBase struct {
	data    []byte
	handle  Handle
	hasSlot bool
	heap    *Heap
}

func newRefBase(heap *Heap, handle Handle, offset, size uint64) (refBase, error) {
	slot, ok := heap.Get(handle)
	if !ok {
		return refBase{}, vmerr.InvalidReference
	}
	if offset > uint64(slot.Size()) || size > uint64(slot.Size())-offset {
		return refBase{}, vmerr.OutOfBoundsReferenceSize
	}
	if err := heap.Bump(handle); err != nil {
		return refBase{}, err
	}
	return refBase{
		data:    slot.Data[offset : offset+size],
		handle:  handle,
		hasSlot: true,
		heap:    heap,
	}, nil
}

func (b *refBase) release() error {
	if !b.hasSlot {
		return nil
	}
	return b.heap.Unbump(b.handle)
}

// Size returns the reference's byte window length.
func (b *refBase) Size() int { return len(b.data) }

// Reference is a mutable typed view into a slot or a caller-local
// register block. Writes through Bytes() are visible to anything else
// aliasing the same slot.
type Reference struct{ refBase }

// NewLocalReference wraps a caller-local byte window (internal = none in
// the spec): no slot backs it, so Release is a no-op.
func NewLocalReference(data []byte) *Reference {
	return &Reference{refBase{data: data}}
}

// NewSlotReference creates a mutable reference into heap[handle][offset:offset+size],
// bumping the slot's refcount.
func NewSlotReference(heap *Heap, handle Handle, offset, size uint64) (*Reference, error) {
	base, err := newRefBase(heap, handle, offset, size)
	if err != nil {
		return nil, err
	}
	return &Reference{base}, nil
}

// Bytes returns the mutable byte window this reference covers.
func (r *Reference) Bytes() []byte { return r.data }

// Release unbumps the backing slot's refcount, if any. Safe to call on a
// reference with no backing slot.
func (r *Reference) Release() error { return r.release() }

// CReference is an immutable typed view: the dispatcher's store-class
// micro-ops refuse to operate on a CReference, which is what makes it
// distinct from Reference despite an identical underlying representation.
type CReference struct{ refBase }

// NewLocalCReference wraps a caller-local byte window as read-only.
func NewLocalCReference(data []byte) *CReference {
	return &CReference{refBase{data: data}}
}

// NewSlotCReference creates an immutable reference into a slot, bumping
// its refcount exactly like NewSlotReference.
func NewSlotCReference(heap *Heap, handle Handle, offset, size uint64) (*CReference, error) {
	base, err := newRefBase(heap, handle, offset, size)
	if err != nil {
		return nil, err
	}
	return &CReference{base}, nil
}

// Bytes returns the read-only byte window this reference covers. Callers
// must not mutate the returned slice; nothing below the dispatcher
// enforces that in Go, the same way the C implementation relied on the
// verifier rather than hardware write-protection.
func (r *CReference) Bytes() []byte { return r.data }

// Release unbumps the backing slot's refcount, if any.
func (r *CReference) Release() error { return r.release() }
