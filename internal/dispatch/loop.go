package dispatch

import (
	"unsafe"

	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/dispatch/fp"
	"github.com/sharemind-sdk/libvm-sub001/internal/host"
	"github.com/sharemind-sdk/libvm-sub001/internal/isa"
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// handler executes one instruction's semantics. It returns true when it
// has already repositioned State.IP itself (a jump, call or return) so
// step should not also advance past the instruction's arguments.
type handler func(s *State, args []codeimage.CodeBlock) bool

var handlers [256]handler

func register(oc isa.Opcode, h handler) { handlers[byte(oc)] = h }

func init() {
	register(isa.Nop, execNop)
	register(isa.Push, execPush)
	register(isa.PushReg, execPushReg)
	register(isa.ClearStack, execClearStack)
	register(isa.ResizeStack, execResizeStack)
	register(isa.LoadImm, execLoadImm)
	register(isa.Mov, execMov)
	register(isa.Jmp, execJmp)
	register(isa.Jz, execJz)
	register(isa.Jnz, execJnz)
	register(isa.Call, execCall)
	register(isa.Ret, execReturn)
	register(isa.Syscall, execSyscall)
	register(isa.ArgPop, execArgPop)
	register(isa.PushRef, execPushRef)
	register(isa.PushCRef, execPushCRef)
	register(isa.PushRefLocal, execPushRefLocal)
	register(isa.PushCRefLoc, execPushCRefLocal)
	register(isa.MemAlloc, execMemAlloc)
	register(isa.MemFree, execMemFree)
	register(isa.MemSize, execMemSize)
	register(isa.Reserve, execReserve)
	register(isa.ReleaseMem, execReleaseMem)
	register(isa.Assert, execAssert)

	register(isa.And, execAnd)
	register(isa.Or, execOr)
	register(isa.Xor, execXor)
	register(isa.Shl, execShl)
	register(isa.Shr, execShr)
	register(isa.Not, execNot)

	register(isa.FAdd, execFAdd)
	register(isa.FSub, execFSub)
	register(isa.FMul, execFMul)
	register(isa.FDiv, execFDiv)

	register(isa.IToFS64, execIToFS64)
	register(isa.IToFU64, execIToFU64)
	register(isa.FToIS64, execFToIS64)
	register(isa.FToIU64, execFToIU64)
	register(isa.Trunc8, execTrunc(8))
	register(isa.Trunc16, execTrunc(16))
	register(isa.Trunc32, execTrunc(32))
	register(isa.Sext8, execSext(8))
	register(isa.Sext16, execSext(16))
	register(isa.Sext32, execSext(32))

	register(isa.CmpLtS64, execCmpLtS64)
	register(isa.CmpLtU64, execCmpLtU64)

	register(isa.EndOfSection, execEndOfSection)
}

// Run steps s until it halts, either from a return out of the global
// frame, an unhandled exception, or running past the prepared program (an
// internal error, since the end-of-section sentinel should always stop
// the loop first). It also returns, without halting, as soon as
// ShouldPause reports true before a step.
func Run(s *State) {
	for !s.Halted {
		if s.ShouldPause != nil && s.ShouldPause() {
			return
		}
		step(s)
	}
}

func step(s *State) {
	descr, ok := s.Section.Descriptor(s.IP)
	if !ok {
		s.raise(vmerr.JumpToInvalidAddress)
		return
	}

	oc := isa.Opcode(descr.Opcode)
	args := s.Section.Blocks[s.IP+1 : s.IP+1+uint32(descr.NumArgs)]

	h := handlers[byte(oc)]
	if h == nil {
		if info, ok := isa.LookupArith(oc); ok {
			jumped := execArith(s, info, args)
			if !jumped && !s.Halted {
				advance(s, descr)
			}
			return
		}
		s.raise(vmerr.InvalidIndexSyscall)
		return
	}

	jumped := h(s, args)
	if !jumped && !s.Halted {
		advance(s, descr)
	}
}

func advance(s *State, descr codeimage.InstrDescriptor) {
	s.IP += 1 + uint32(descr.NumArgs)
}

func raiseFromErr(s *State, err error) {
	if exc, ok := err.(vmerr.VmProcessException); ok {
		s.raise(exc)
		return
	}
	s.raise(vmerr.InvalidArgument)
}

func execNop(s *State, args []codeimage.CodeBlock) bool { return false }

func execPush(s *State, args []codeimage.CodeBlock) bool {
	s.nextFrame().Push(args[0])
	return false
}

func execPushReg(s *State, args []codeimage.CodeBlock) bool {
	v, ok := s.reg(args[0].Uint32())
	if !ok {
		return true
	}
	s.nextFrame().Push(v)
	return false
}

func execClearStack(s *State, args []codeimage.CodeBlock) bool {
	if s.Next != nil {
		s.Next.Clear()
		s.Next = nil
	}
	return false
}

func execResizeStack(s *State, args []codeimage.CodeBlock) bool {
	s.Frame.Resize(args[0].Uint32())
	return false
}

func execLoadImm(s *State, args []codeimage.CodeBlock) bool {
	s.setReg(args[0].Uint32(), args[1])
	return false
}

func execMov(s *State, args []codeimage.CodeBlock) bool {
	v, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	s.setReg(args[0].Uint32(), v)
	return false
}

// relJumpTarget mirrors prepare.go's pass-2 target computation exactly:
// the target is one past the argument block, offset by its signed value.
func relJumpTarget(argOffset uint32, rel int32) uint32 {
	return uint32(int64(argOffset) + 1 + int64(rel))
}

func execJmp(s *State, args []codeimage.CodeBlock) bool {
	argOffset := s.IP + 1
	s.IP = relJumpTarget(argOffset, args[0].Int32())
	return true
}

func execJz(s *State, args []codeimage.CodeBlock) bool {
	v, ok := s.reg(args[0].Uint32())
	if !ok {
		return true
	}
	if v.Uint64() != 0 {
		return false
	}
	argOffset := s.IP + 1 + 1
	s.IP = relJumpTarget(argOffset, args[1].Int32())
	return true
}

func execJnz(s *State, args []codeimage.CodeBlock) bool {
	v, ok := s.reg(args[0].Uint32())
	if !ok {
		return true
	}
	if v.Uint64() == 0 {
		return false
	}
	argOffset := s.IP + 1 + 1
	s.IP = relJumpTarget(argOffset, args[1].Int32())
	return true
}

func execCall(s *State, args []codeimage.CodeBlock) bool {
	addr := args[0].Uint32()
	retReg := args[1].Uint32()
	nargs := args[2].Uint32()

	next := s.nextFrame()
	if uint32(len(next.Stack)) < nargs {
		s.raise(vmerr.InvalidArgument)
		return true
	}
	if retReg != isa.AllNone && int(retReg) >= len(s.Frame.Stack) {
		s.raise(vmerr.InvalidIndexRegister)
		return true
	}

	returnOffset := s.IP + 1 + 3
	next.ReturnAddr = &codeimage.CodeAddr{Section: s.SectionIndex, Offset: returnOffset}
	if retReg != isa.AllNone {
		next.ReturnValueAddr = &codeimage.RegisterRef{Frame: s.Frame, Index: retReg}
	}
	next.Prev = s.Frame

	s.Frame = next
	s.Next = nil
	s.IP = addr
	return true
}

func execReturn(s *State, args []codeimage.CodeBlock) bool {
	regArg := args[0].Uint32()
	var retVal codeimage.CodeBlock
	if regArg != isa.AllNone {
		v, ok := s.reg(regArg)
		if !ok {
			return true
		}
		retVal = v
	}

	frame := s.Frame
	retAddr := frame.ReturnAddr
	retValueAddr := frame.ReturnValueAddr
	frame.Clear()

	if retAddr == nil {
		s.ReturnValue = retVal
		s.Halted = true
		return true
	}

	if retValueAddr != nil {
		retValueAddr.Write(retVal)
	}
	s.Frame = frame.Prev
	s.SectionIndex = retAddr.Section
	s.Section = s.Program.CodeSection(retAddr.Section)
	s.IP = retAddr.Offset
	return true
}

func execSyscall(s *State, args []codeimage.CodeBlock) bool {
	idx := args[0].Uint32()
	retReg := args[1].Uint32()
	nargs := args[2].Uint32()

	binding, ok := s.Program.SyscallBinding(idx)
	if !ok {
		s.raise(vmerr.InvalidIndexSyscall)
		return true
	}

	next := s.nextFrame()
	if uint32(len(next.Stack)) < nargs {
		s.raise(vmerr.InvalidArgument)
		return true
	}
	if retReg != isa.AllNone && int(retReg) >= len(s.Frame.Stack) {
		s.raise(vmerr.InvalidIndexRegister)
		return true
	}

	var ret codeimage.CodeBlock
	var retPtr *codeimage.CodeBlock
	if retReg != isa.AllNone {
		retPtr = &ret
	}

	status := binding.Callable(next.Stack, next.RefStack, next.CRefStack, retPtr, s.Ctx)
	next.Clear()
	s.Next = nil

	switch status {
	case host.StatusOk:
		if retPtr != nil {
			s.setReg(retReg, ret)
		}
	case host.StatusOutOfMemory:
		s.raise(vmerr.ExcOutOfMemory)
	case host.StatusInvalidCall:
		s.raise(vmerr.InvalidSyscallInvocation)
	default:
		s.raise(vmerr.SyscallFailure)
	}
	return false
}

func execArgPop(s *State, args []codeimage.CodeBlock) bool {
	if len(s.Frame.Stack) == 0 {
		s.raise(vmerr.InvalidIndexStack)
		return true
	}
	v := s.Frame.Stack[0]
	s.Frame.Stack = s.Frame.Stack[1:]
	s.setReg(args[0].Uint32(), v)
	return false
}

func execPushRef(s *State, args []codeimage.CodeBlock) bool {
	h, ok1 := s.reg(args[0].Uint32())
	o, ok2 := s.reg(args[1].Uint32())
	sz, ok3 := s.reg(args[2].Uint32())
	if !ok1 || !ok2 || !ok3 {
		return true
	}
	ref, err := memory.NewSlotReference(s.Heap, memory.Handle(h.Uint64()), o.Uint64(), sz.Uint64())
	if err != nil {
		raiseFromErr(s, err)
		return true
	}
	s.nextFrame().PushRef(ref)
	return false
}

func execPushCRef(s *State, args []codeimage.CodeBlock) bool {
	h, ok1 := s.reg(args[0].Uint32())
	o, ok2 := s.reg(args[1].Uint32())
	sz, ok3 := s.reg(args[2].Uint32())
	if !ok1 || !ok2 || !ok3 {
		return true
	}
	ref, err := memory.NewSlotCReference(s.Heap, memory.Handle(h.Uint64()), o.Uint64(), sz.Uint64())
	if err != nil {
		raiseFromErr(s, err)
		return true
	}
	s.nextFrame().PushCRef(ref)
	return false
}

// regBytes returns the 8-byte backing storage of register idx, for the
// local-reference opcodes that let a syscall see a register's raw bytes
// without a heap slot behind them.
func regBytes(s *State, idx uint32) ([]byte, bool) {
	if int(idx) >= len(s.Frame.Stack) {
		s.raise(vmerr.InvalidIndexRegister)
		return nil, false
	}
	b := (*[8]byte)(unsafe.Pointer(&s.Frame.Stack[idx]))
	return b[:], true
}

func execPushRefLocal(s *State, args []codeimage.CodeBlock) bool {
	b, ok := regBytes(s, args[0].Uint32())
	if !ok {
		return true
	}
	s.nextFrame().PushRef(memory.NewLocalReference(b))
	return false
}

func execPushCRefLocal(s *State, args []codeimage.CodeBlock) bool {
	b, ok := regBytes(s, args[0].Uint32())
	if !ok {
		return true
	}
	s.nextFrame().PushCRef(memory.NewLocalCReference(b))
	return false
}

func execMemAlloc(s *State, args []codeimage.CodeBlock) bool {
	szv, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	handle := s.Heap.Alloc(szv.Uint64())
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(uint64(handle)))
	return false
}

func execMemFree(s *State, args []codeimage.CodeBlock) bool {
	hv, ok := s.reg(args[0].Uint32())
	if !ok {
		return true
	}
	if err := s.Heap.Free(memory.Handle(hv.Uint64())); err != nil {
		raiseFromErr(s, err)
	}
	return false
}

func execMemSize(s *State, args []codeimage.CodeBlock) bool {
	hv, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	sz, found := s.Heap.Size(memory.Handle(hv.Uint64()))
	if !found {
		sz = 0
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(sz))
	return false
}

func execReserve(s *State, args []codeimage.CodeBlock) bool {
	szv, ok := s.reg(args[0].Uint32())
	if !ok {
		return true
	}
	if !s.Counters.Reserve(szv.Uint64()) {
		s.raise(vmerr.ExcOutOfMemory)
	}
	return false
}

func execReleaseMem(s *State, args []codeimage.CodeBlock) bool {
	szv, ok := s.reg(args[0].Uint32())
	if !ok {
		return true
	}
	s.Counters.Release(szv.Uint64())
	return false
}

func execAssert(s *State, args []codeimage.CodeBlock) bool {
	v, ok := s.reg(args[0].Uint32())
	if !ok {
		return true
	}
	if v.Uint64() == 0 {
		s.raise(vmerr.UserAssert)
	}
	return false
}

func execAnd(s *State, args []codeimage.CodeBlock) bool {
	return execBinBitwise(s, args, func(a, b uint64) uint64 { return a & b })
}
func execOr(s *State, args []codeimage.CodeBlock) bool {
	return execBinBitwise(s, args, func(a, b uint64) uint64 { return a | b })
}
func execXor(s *State, args []codeimage.CodeBlock) bool {
	return execBinBitwise(s, args, func(a, b uint64) uint64 { return a ^ b })
}
func execShl(s *State, args []codeimage.CodeBlock) bool {
	return execBinBitwise(s, args, func(a, b uint64) uint64 {
		if b >= 64 {
			return 0
		}
		return a << b
	})
}
func execShr(s *State, args []codeimage.CodeBlock) bool {
	return execBinBitwise(s, args, func(a, b uint64) uint64 {
		if b >= 64 {
			return 0
		}
		return a >> b
	})
}

func execBinBitwise(s *State, args []codeimage.CodeBlock, f func(a, b uint64) uint64) bool {
	av, ok1 := s.reg(args[1].Uint32())
	bv, ok2 := s.reg(args[2].Uint32())
	if !ok1 || !ok2 {
		return true
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(f(av.Uint64(), bv.Uint64())))
	return false
}

func execNot(s *State, args []codeimage.CodeBlock) bool {
	av, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(^av.Uint64()))
	return false
}

func execFAdd(s *State, args []codeimage.CodeBlock) bool { return execBinFloat(s, args, s.FP.Add) }
func execFSub(s *State, args []codeimage.CodeBlock) bool { return execBinFloat(s, args, s.FP.Sub) }
func execFMul(s *State, args []codeimage.CodeBlock) bool { return execBinFloat(s, args, s.FP.Mul) }
func execFDiv(s *State, args []codeimage.CodeBlock) bool { return execBinFloat(s, args, s.FP.Div) }

func execBinFloat(s *State, args []codeimage.CodeBlock, f func(a, b float32) (float32, fp.Flags)) bool {
	av, ok1 := s.reg(args[1].Uint32())
	bv, ok2 := s.reg(args[2].Uint32())
	if !ok1 || !ok2 {
		return true
	}
	res, flags := f(av.Float32(), bv.Float32())
	if exc, raised := fpException(flags); raised {
		s.raise(exc)
		return true
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromFloat32(res))
	return false
}

// fpException maps one operation's sticky flags to the single exception
// spec.md §5 says to raise, in the priority order a real FPU's status
// word is read in: an invalid operand or divide-by-zero flag is a
// sharper diagnosis than a mere overflow/underflow/inexact result, so
// a flags value with more than one bit set reports the most specific one.
func fpException(flags fp.Flags) (vmerr.VmProcessException, bool) {
	switch {
	case flags.Invalid:
		return vmerr.FloatingPointInvalidOperation, true
	case flags.DivByZero:
		return vmerr.FloatingPointDivideByZero, true
	case flags.Overflow:
		return vmerr.FloatingPointOverflow, true
	case flags.Underflow:
		return vmerr.FloatingPointUnderflow, true
	case flags.Inexact:
		return vmerr.FloatingPointInexactResult, true
	default:
		return vmerr.UnknownFpe, false
	}
}

func execIToFS64(s *State, args []codeimage.CodeBlock) bool {
	av, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromFloat32(float32(av.Int64())))
	return false
}

func execIToFU64(s *State, args []codeimage.CodeBlock) bool {
	av, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromFloat32(float32(av.Uint64())))
	return false
}

func execFToIS64(s *State, args []codeimage.CodeBlock) bool {
	av, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromInt64(int64(av.Float32())))
	return false
}

func execFToIU64(s *State, args []codeimage.CodeBlock) bool {
	av, ok := s.reg(args[1].Uint32())
	if !ok {
		return true
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(uint64(av.Float32())))
	return false
}

func execTrunc(width int) handler {
	return func(s *State, args []codeimage.CodeBlock) bool {
		av, ok := s.reg(args[1].Uint32())
		if !ok {
			return true
		}
		s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(maskWidthBits(av.Uint64(), width)))
		return false
	}
}

func execSext(width int) handler {
	return func(s *State, args []codeimage.CodeBlock) bool {
		av, ok := s.reg(args[1].Uint32())
		if !ok {
			return true
		}
		s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(uint64(signExtend(av.Uint64(), width))))
		return false
	}
}

func execCmpLtS64(s *State, args []codeimage.CodeBlock) bool {
	av, ok1 := s.reg(args[1].Uint32())
	bv, ok2 := s.reg(args[2].Uint32())
	if !ok1 || !ok2 {
		return true
	}
	var result uint64
	if av.Int64() < bv.Int64() {
		result = 1
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(result))
	return false
}

func execCmpLtU64(s *State, args []codeimage.CodeBlock) bool {
	av, ok1 := s.reg(args[1].Uint32())
	bv, ok2 := s.reg(args[2].Uint32())
	if !ok1 || !ok2 {
		return true
	}
	var result uint64
	if av.Uint64() < bv.Uint64() {
		result = 1
	}
	s.setReg(args[0].Uint32(), codeimage.CodeBlockFromUint64(result))
	return false
}

func execEndOfSection(s *State, args []codeimage.CodeBlock) bool {
	s.raise(vmerr.JumpToInvalidAddress)
	return true
}

func maskWidthBits(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}
	return v & (1<<uint(width) - 1)
}

func signExtend(v uint64, width int) int64 {
	if width >= 64 {
		return int64(v)
	}
	shift := uint(64 - width)
	return int64(v<<shift) >> shift
}
