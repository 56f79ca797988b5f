package process

import (
	"testing"

	"github.com/sharemind-sdk/libvm-sub001/internal/host/demo"
	"github.com/sharemind-sdk/libvm-sub001/internal/isa"
	"github.com/sharemind-sdk/libvm-sub001/internal/loader"
	"github.com/sharemind-sdk/libvm-sub001/internal/loader/testasm"
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
	"github.com/sharemind-sdk/libvm-sub001/internal/program"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

func unlimitedCounters() *memory.Counters {
	u := ^uint64(0)
	return memory.NewCounters(u, u, u, u)
}

func buildProgram(t *testing.T, units []testasm.UnitSpec) *program.Program {
	t.Helper()
	data := testasm.Container(0, units)
	ld := loader.New(demo.New())
	prog, err := ld.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return prog
}

func TestProcessReturnsConstant(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(1))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(42))
	b.Emit(isa.Ret, testasm.Reg(0))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build()}})
	proc := New(prog, unlimitedCounters(), demo.New())

	if result := proc.Run(); result != vmerr.Ok {
		t.Fatalf("Run: %v", result)
	}
	if proc.Status() != StatusFinished {
		t.Fatalf("status = %v, want Finished", proc.Status())
	}
	if proc.ReturnValue().Uint64() != 42 {
		t.Fatalf("return value = %d, want 42", proc.ReturnValue().Uint64())
	}
}

func TestProcessCallReturnsToCorrectRegister(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(1))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(5))
	b.Emit(isa.PushReg, testasm.Reg(0))
	b.Emit(isa.Call, testasm.AbsLabel("callee"), testasm.Reg(0), testasm.Count(1))
	b.Emit(isa.Ret, testasm.Reg(0))

	b.Mark("callee")
	b.Emit(isa.ResizeStack, testasm.Count(2))
	b.Emit(isa.LoadImm, testasm.Reg(1), testasm.Imm(10))
	addU64 := isa.ArithOpcode(isa.Width64, false, isa.OpAdd)
	b.Emit(addU64, testasm.Reg(0), testasm.Reg(0), testasm.Reg(1))
	b.Emit(isa.Ret, testasm.Reg(0))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build()}})
	proc := New(prog, unlimitedCounters(), demo.New())

	if result := proc.Run(); result != vmerr.Ok {
		t.Fatalf("Run: %v", result)
	}
	if proc.Status() != StatusFinished {
		t.Fatalf("status = %v, want Finished", proc.Status())
	}
	if got := proc.ReturnValue().Uint64(); got != 15 {
		t.Fatalf("return value = %d, want 15", got)
	}
}

func TestProcessSyscallEchoU64(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(1))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(7))
	b.Emit(isa.PushReg, testasm.Reg(0))
	b.Emit(isa.Syscall, testasm.Count(0), testasm.Reg(0), testasm.Count(1))
	b.Emit(isa.Ret, testasm.Reg(0))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build(), Binds: []string{"echo_u64"}}})
	resolver := demo.New()
	proc := New(prog, unlimitedCounters(), resolver)

	if result := proc.Run(); result != vmerr.Ok {
		t.Fatalf("Run: %v", result)
	}
	if proc.Status() != StatusFinished {
		t.Fatalf("status = %v, want Finished", proc.Status())
	}
	if got := proc.ReturnValue().Uint64(); got != 7 {
		t.Fatalf("return value = %d, want 7 (echoed)", got)
	}
}

func TestProcessMemAllocFreeRoundtrip(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(2))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(16))
	b.Emit(isa.MemAlloc, testasm.Reg(1), testasm.Reg(0))
	b.Emit(isa.MemFree, testasm.Reg(1))
	b.Emit(isa.Ret, testasm.Reg(1))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build()}})
	proc := New(prog, unlimitedCounters(), demo.New())

	if result := proc.Run(); result != vmerr.Ok {
		t.Fatalf("Run: %v", result)
	}
	if proc.Status() != StatusFinished {
		t.Fatalf("status = %v, want Finished (free should have succeeded with no live references)", proc.Status())
	}
	if proc.ReturnValue().Uint64() == 0 {
		t.Fatal("expected a nonzero handle from MemAlloc")
	}
}

func TestProcessFreeBlockedWhileReferenced(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(4))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(16))
	b.Emit(isa.MemAlloc, testasm.Reg(1), testasm.Reg(0))
	b.Emit(isa.LoadImm, testasm.Reg(2), testasm.Imm(0))
	b.Emit(isa.LoadImm, testasm.Reg(3), testasm.Imm(16))
	b.Emit(isa.PushRef, testasm.Reg(1), testasm.Reg(2), testasm.Reg(3))
	b.Emit(isa.MemFree, testasm.Reg(1))
	b.Emit(isa.Ret, testasm.Reg(1))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build()}})
	proc := New(prog, unlimitedCounters(), demo.New())

	if result := proc.Run(); result != vmerr.RuntimeException {
		t.Fatalf("Run() = %v, want RuntimeException", result)
	}
	if proc.Status() != StatusTrapped {
		t.Fatalf("status = %v, want Trapped", proc.Status())
	}
	if proc.Exception() != vmerr.MemoryInUse {
		t.Fatalf("exception = %v, want MemoryInUse", proc.Exception())
	}
}

func TestProcessIntegerDivideByZeroTraps(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(3))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(10))
	b.Emit(isa.LoadImm, testasm.Reg(1), testasm.Imm(0))
	divS64 := isa.ArithOpcode(isa.Width64, true, isa.OpDiv)
	b.Emit(divS64, testasm.Reg(2), testasm.Reg(0), testasm.Reg(1))
	b.Emit(isa.Ret, testasm.Reg(2))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build()}})
	proc := New(prog, unlimitedCounters(), demo.New())

	if result := proc.Run(); result != vmerr.RuntimeException {
		t.Fatalf("Run() = %v, want RuntimeException", result)
	}
	if proc.Status() != StatusTrapped {
		t.Fatalf("status = %v, want Trapped", proc.Status())
	}
	if proc.Exception() != vmerr.IntegerDivideByZero {
		t.Fatalf("exception = %v, want IntegerDivideByZero", proc.Exception())
	}
}

func TestProcessPauseBeforeRunThenContinue(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(1))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(99))
	b.Emit(isa.Ret, testasm.Reg(0))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build()}})
	proc := New(prog, unlimitedCounters(), demo.New())

	proc.Pause()
	if result := proc.Run(); result != vmerr.RuntimeTrap {
		t.Fatalf("Run() = %v, want RuntimeTrap", result)
	}
	if proc.Status() != StatusPaused {
		t.Fatalf("status = %v, want Paused", proc.Status())
	}
	if proc.CurrentIP() != 0 {
		t.Fatalf("IP = %d, want 0 (nothing should have executed)", proc.CurrentIP())
	}

	if result := proc.Continue(); result != vmerr.Ok {
		t.Fatalf("Continue() = %v, want Ok", result)
	}
	if proc.Status() != StatusFinished {
		t.Fatalf("status = %v, want Finished", proc.Status())
	}
	if proc.ReturnValue().Uint64() != 99 {
		t.Fatalf("return value = %d, want 99", proc.ReturnValue().Uint64())
	}
}

func TestProcessRunTwiceIsRejected(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(1))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(1))
	b.Emit(isa.Ret, testasm.Reg(0))

	prog := buildProgram(t, []testasm.UnitSpec{{Text: b.Build()}})
	proc := New(prog, unlimitedCounters(), demo.New())

	if result := proc.Run(); result != vmerr.Ok {
		t.Fatalf("Run: %v", result)
	}
	if result := proc.Run(); result != vmerr.InvalidInputState {
		t.Fatalf("Run() on an already-finished process = %v, want InvalidInputState", result)
	}
}
