// Package testasm is a minimal two-pass-free assembler used only by
// tests: it turns a sequence of isa opcodes plus labels into a text
// section's raw bytes, the same job assembler/ie32asm.go's Assembler
// does for IE32 source, but driven directly from Go rather than parsing
// a textual syntax.
package testasm

import (
	"encoding/binary"

	"github.com/sharemind-sdk/libvm-sub001/internal/isa"
)

type argKind int

const (
	argValue argKind = iota
	argAbsLabel
	argRelLabel
)

// Arg is one instruction argument: either a literal 64-bit value (used
// for immediates, register indices and counts) or a forward/backward
// label reference resolved once every instruction has been emitted.
type Arg struct {
	kind  argKind
	val   uint64
	label string
}

// Imm wraps a raw immediate value.
func Imm(v uint64) Arg { return Arg{kind: argValue, val: v} }

// Reg wraps a register index.
func Reg(i uint32) Arg { return Arg{kind: argValue, val: uint64(i)} }

// Count wraps a plain count argument (register-vector size, arg count).
func Count(n uint32) Arg { return Arg{kind: argValue, val: uint64(n)} }

// None is the ArgRegisterOrNone sentinel meaning "no register" (a
// discarded call/syscall result).
func None() Arg { return Arg{kind: argValue, val: uint64(isa.AllNone)} }

// AbsLabel resolves to the absolute block offset of a later Mark(name).
func AbsLabel(name string) Arg { return Arg{kind: argAbsLabel, label: name} }

// RelLabel resolves to the signed block offset from the block just past
// this argument to a later (or earlier) Mark(name) — exactly what
// Jmp/Jz/Jnz expect.
func RelLabel(name string) Arg { return Arg{kind: argRelLabel, label: name} }

type pendingFixup struct {
	pos   uint32
	kind  argKind
	label string
}

// Builder accumulates one code section's instructions.
type Builder struct {
	blocks  []uint64
	labels  map[string]uint32
	pending []pendingFixup
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{labels: make(map[string]uint32)}
}

// Mark records the current position under name, for a later AbsLabel or
// RelLabel argument to resolve against.
func (b *Builder) Mark(name string) {
	b.labels[name] = uint32(len(b.blocks))
}

// Emit appends one instruction: its opcode block followed by one block
// per argument, in order. The argument count must match the opcode's
// fixed arity from the isa package.
func (b *Builder) Emit(opcode isa.Opcode, args ...Arg) {
	if info, ok := isa.Lookup(opcode); ok && info.NumArgs != len(args) {
		panic("testasm: wrong argument count for opcode")
	}
	b.blocks = append(b.blocks, uint64(opcode))
	for _, a := range args {
		pos := uint32(len(b.blocks))
		switch a.kind {
		case argValue:
			b.blocks = append(b.blocks, a.val)
		case argAbsLabel, argRelLabel:
			b.blocks = append(b.blocks, 0)
			b.pending = append(b.pending, pendingFixup{pos: pos, kind: a.kind, label: a.label})
		}
	}
}

// Build resolves every label reference and returns the section's raw
// little-endian bytes, ready to embed as a container's text section body.
func (b *Builder) Build() []byte {
	for _, p := range b.pending {
		target, ok := b.labels[p.label]
		if !ok {
			panic("testasm: undefined label " + p.label)
		}
		switch p.kind {
		case argAbsLabel:
			b.blocks[p.pos] = uint64(target)
		case argRelLabel:
			rel := int64(target) - int64(p.pos) - 1
			b.blocks[p.pos] = uint64(uint32(int32(rel)))
		}
	}

	out := make([]byte, len(b.blocks)*8)
	for i, v := range b.blocks {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}
