package codeimage

import "github.com/sharemind-sdk/libvm-sub001/internal/memory"

// CodeAddr names a single instruction: which code section, and which
// block offset within it. Used for return addresses and for the
// dispatcher's current-IP bookkeeping.
type CodeAddr struct {
	Section uint32
	Offset  uint32
}

// RegisterRef names one register cell in a specific frame — the
// "returnValueAddr" concept from the spec, i.e. where a call's result
// should land once the callee returns.
type RegisterRef struct {
	Frame *StackFrame
	Index uint32
}

// Write stores v into the named register.
func (r RegisterRef) Write(v CodeBlock) {
	r.Frame.Stack[r.Index] = v
}

// StackFrame is one call frame: a register vector plus ref/cref stacks,
// linked back to its caller. Each frame is allocated on its own by
// NewStackFrame and linked to its caller through Prev, so a frame's
// address stays stable across a push into the next frame.
type StackFrame struct {
	Stack     []CodeBlock
	RefStack  []*memory.Reference
	CRefStack []*memory.CReference

	Prev *StackFrame

	// ReturnAddr is nil for the global frame; returning from a frame
	// with ReturnAddr == nil halts the process.
	ReturnAddr *CodeAddr
	// ReturnValueAddr is nil when the call that created this frame
	// discards the return value.
	ReturnValueAddr *RegisterRef
}

// NewStackFrame returns an empty frame linked to prev.
func NewStackFrame(prev *StackFrame) *StackFrame {
	return &StackFrame{Prev: prev}
}

// Push grows the register vector by one slot holding v.
func (f *StackFrame) Push(v CodeBlock) {
	f.Stack = append(f.Stack, v)
}

// PushRef appends a reference to the ref stack.
func (f *StackFrame) PushRef(r *memory.Reference) {
	f.RefStack = append(f.RefStack, r)
}

// PushCRef appends a const-reference to the cref stack.
func (f *StackFrame) PushCRef(r *memory.CReference) {
	f.CRefStack = append(f.CRefStack, r)
}

// Resize grows or shrinks the register vector to exactly n entries,
// zero-extending on growth and simply truncating on shrink (registers
// hold plain CodeBlocks, never references, so a shrink never needs to
// release anything).
func (f *StackFrame) Resize(n uint32) {
	if uint32(len(f.Stack)) >= n {
		f.Stack = f.Stack[:n]
		return
	}
	grown := make([]CodeBlock, n)
	copy(grown, f.Stack)
	f.Stack = grown
}

// Clear drops every register and reference this frame holds, releasing
// each reference's slot bump first. Used before a non-call fallthrough
// discards a speculatively-built next frame.
func (f *StackFrame) Clear() {
	for _, r := range f.RefStack {
		r.Release()
	}
	for _, r := range f.CRefStack {
		r.Release()
	}
	f.Stack = nil
	f.RefStack = nil
	f.CRefStack = nil
}
