package dispatch

import (
	"math"

	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/isa"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// execArith handles every opcode in the generated integer-arithmetic
// range: one function driven by the (width, signed, op) descriptor
// rather than 40 hand-written case arms, the way cpu_ie32.go's
// resolveOperand is one function driven by an addressing-mode classifier
// instead of a case per instruction.
func execArith(s *State, info isa.ArithInfo, args []codeimage.CodeBlock) bool {
	dst := args[0].Uint32()
	av, ok1 := s.reg(args[1].Uint32())
	bv, ok2 := s.reg(args[2].Uint32())
	if !ok1 || !ok2 {
		return true
	}

	var result uint64
	if info.Signed {
		a := narrowSigned(av.Uint64(), info.Width)
		b := narrowSigned(bv.Uint64(), info.Width)
		switch info.Op {
		case isa.OpAdd:
			result = uint64(a + b)
		case isa.OpSub:
			result = uint64(a - b)
		case isa.OpMul:
			result = uint64(a * b)
		case isa.OpDiv:
			if b == 0 {
				s.raise(vmerr.IntegerDivideByZero)
				return true
			}
			if a == minIntForWidth(info.Width) && b == -1 {
				s.raise(vmerr.IntegerOverflow)
				return true
			}
			result = uint64(a / b)
		case isa.OpMod:
			if b == 0 {
				s.raise(vmerr.IntegerDivideByZero)
				return true
			}
			if a == minIntForWidth(info.Width) && b == -1 {
				s.raise(vmerr.IntegerOverflow)
				return true
			}
			result = uint64(a % b)
		}
	} else {
		a := narrowUnsigned(av.Uint64(), info.Width)
		b := narrowUnsigned(bv.Uint64(), info.Width)
		switch info.Op {
		case isa.OpAdd:
			result = a + b
		case isa.OpSub:
			result = a - b
		case isa.OpMul:
			result = a * b
		case isa.OpDiv:
			if b == 0 {
				s.raise(vmerr.IntegerDivideByZero)
				return true
			}
			result = a / b
		case isa.OpMod:
			if b == 0 {
				s.raise(vmerr.IntegerDivideByZero)
				return true
			}
			result = a % b
		}
	}

	s.setReg(dst, codeimage.CodeBlockFromUint64(maskWidth(result, info.Width)))
	return false
}

func widthBits(w isa.Width) int {
	switch w {
	case isa.Width8:
		return 8
	case isa.Width16:
		return 16
	case isa.Width32:
		return 32
	default:
		return 64
	}
}

// narrowSigned reinterprets the low width(w) bits of v as a sign-extended
// int64 operand.
func narrowSigned(v uint64, w isa.Width) int64 {
	return signExtend(v, widthBits(w))
}

// minIntForWidth is the most negative value representable at width w —
// the one operand for which signed division or modulo by -1 overflows
// the width's range (e.g. int8 -128 / -1 would be 128, unrepresentable
// at that width). The original C source's SIGFPE handler maps exactly
// this condition to FPE_INTOVF; Go's own division never traps here, so
// the check has to be explicit.
func minIntForWidth(w isa.Width) int64 {
	bits := widthBits(w)
	if bits >= 64 {
		return math.MinInt64
	}
	return -(int64(1) << uint(bits-1))
}

// narrowUnsigned masks v down to width(w) bits.
func narrowUnsigned(v uint64, w isa.Width) uint64 {
	return maskWidthBits(v, widthBits(w))
}

// maskWidth truncates an arithmetic result back to its operating width
// before it is stored in a 64-bit register.
func maskWidth(v uint64, w isa.Width) uint64 {
	return maskWidthBits(v, widthBits(w))
}
