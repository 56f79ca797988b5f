package loader

import (
	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/isa"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// prepare runs the two-pass preparer over one text section's raw blocks,
// grounded on assembler/ie32asm.go's two-pass assemble(): a first pass
// that walks the opcode stream once to discover every instruction
// boundary (so jump targets can be validated against real boundaries
// rather than arbitrary offsets), and a second pass that validates every
// argument now that the full boundary set is known and appends the
// end-of-section sentinel.
func prepare(blocks []codeimage.CodeBlock) (*codeimage.CodeSection, error) {
	cs := codeimage.NewCodeSection(blocks)

	if err := preparePass1(cs); err != nil {
		return nil, err
	}
	if err := preparePass2(cs); err != nil {
		return nil, err
	}

	cs.EndSentinel = cs.Len()
	cs.Blocks = append(cs.Blocks, codeimage.CodeBlockFromUint64(uint64(isa.EndOfSection)))
	cs.AddressMap[cs.EndSentinel] = codeimage.InstrDescriptor{Opcode: byte(isa.EndOfSection), NumArgs: 0}

	return cs, nil
}

// preparePass1 discovers instruction boundaries: at each offset, read the
// opcode, look up its fixed argument count, assert the instruction (plus
// its arguments) fits within the section, record the boundary, and
// advance past the arguments.
func preparePass1(cs *codeimage.CodeSection) error {
	var offset uint32
	total := cs.Len()

	for offset < total {
		opcode := isa.Opcode(byte(cs.Blocks[offset].Uint64()))
		info, ok := isa.Lookup(opcode)
		if !ok {
			return vmerr.NewPositionedError(vmerr.InvalidInstruction, int64(offset), "unknown opcode")
		}

		argsEnd := uint64(offset) + 1 + uint64(info.NumArgs)
		if argsEnd > uint64(total) {
			return vmerr.NewPositionedError(vmerr.InvalidInstruction, int64(offset), "instruction arguments run past section end")
		}

		cs.AddressMap[offset] = codeimage.InstrDescriptor{Opcode: byte(opcode), NumArgs: info.NumArgs}
		offset = uint32(argsEnd)
	}

	return nil
}

// preparePass2 walks every instruction boundary pass 1 discovered and
// validates its jump arguments: relative and absolute jump targets must
// land on a real instruction boundary. Syscall indices are not checked
// here; the Syscall handler checks them against the program's bindings
// when it executes and raises InvalidIndexSyscall. Register, count and
// immediate arguments need no prepare-time validation since register
// bounds depend on a frame size only known at call time.
//
// The teacher's preparer rewrites a syscall's bound index into a direct
// C function pointer so dispatch never re-resolves it; here the index is
// kept as is and resolved by a Go slice lookup at dispatch time.
func preparePass2(cs *codeimage.CodeSection) error {
	for offset, descr := range cs.AddressMap {
		opcode := isa.Opcode(descr.Opcode)
		info, ok := isa.Lookup(opcode)
		if !ok {
			return vmerr.NewPositionedError(vmerr.InvalidInstruction, int64(offset), "unknown opcode")
		}

		for i, kind := range info.Args {
			argOffset := offset + 1 + uint32(i)
			arg := cs.Blocks[argOffset]

			switch kind {
			case isa.ArgRelJump:
				target := int64(argOffset) + 1 + int64(arg.Int32())
				if target < 0 || target > int64(^uint32(0)) || !cs.IsValidInstr(uint32(target)) {
					return vmerr.NewPositionedError(vmerr.InvalidInstruction, int64(argOffset), "relative jump target is not an instruction boundary")
				}
			case isa.ArgAbsJump:
				target := arg.Uint32()
				if !cs.IsValidInstr(target) {
					return vmerr.NewPositionedError(vmerr.InvalidInstruction, int64(argOffset), "absolute jump target is not an instruction boundary")
				}
			case isa.ArgSyscallIndex, isa.ArgRegister, isa.ArgRegisterOrNone, isa.ArgImmediate, isa.ArgCount:
				// Validated at runtime, where the bound table length and
				// frame size are known.
			}
		}
	}

	return nil
}
