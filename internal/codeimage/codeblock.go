// Package codeimage holds the code and data representations a Program is
// built from: the 8-byte CodeBlock union, CodeSection (instructions plus
// the valid-instruction/address map produced by preparation), DataSection
// (rodata/data/bss buffers) and StackFrame (a call frame's registers and
// reference stacks).
package codeimage

import "math"

// CodeBlock is the VM's fixed 8-byte union: every instruction word and
// every argument slot is one CodeBlock, reinterpreted as whichever view
// the opcode needs. Go has no union type, so the views are accessor
// methods over the same uint64 storage, the way the teacher reinterprets
// 32-bit memory words via encoding/binary rather than raw casts.
type CodeBlock uint64

// Int64 views the block as a signed 64-bit integer.
func (b CodeBlock) Int64() int64 { return int64(b) }

// Uint64 views the block as an unsigned 64-bit integer.
func (b CodeBlock) Uint64() uint64 { return uint64(b) }

// Float32 views the low 32 bits of the block as an IEEE-754 float32, the
// VM's one floating-point width (spec §4.3: "32-bit float").
func (b CodeBlock) Float32() float32 { return math.Float32frombits(uint32(b)) }

// Uint32 views the low 32 bits of the block as an unsigned 32-bit integer
// (used for register indices, jump offsets, syscall indices, and other
// small immediate arguments packed into a CodeBlock).
func (b CodeBlock) Uint32() uint32 { return uint32(b) }

// Int32 views the low 32 bits as a signed 32-bit integer, used by
// relative jump offsets which may be negative.
func (b CodeBlock) Int32() int32 { return int32(uint32(b)) }

// CodeBlockFromInt64 builds a block from a signed 64-bit integer.
func CodeBlockFromInt64(v int64) CodeBlock { return CodeBlock(uint64(v)) }

// CodeBlockFromUint64 builds a block from an unsigned 64-bit integer.
func CodeBlockFromUint64(v uint64) CodeBlock { return CodeBlock(v) }

// CodeBlockFromFloat32 builds a block whose low 32 bits hold the IEEE-754
// bit pattern of f; the high 32 bits are zero.
func CodeBlockFromFloat32(f float32) CodeBlock {
	return CodeBlock(uint64(math.Float32bits(f)))
}

// BlockSize is the fixed width, in bytes, of one CodeBlock and therefore
// of one instruction word in a container's text section.
const BlockSize = 8
