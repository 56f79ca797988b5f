package loader

import (
	"encoding/binary"
	"testing"

	"github.com/sharemind-sdk/libvm-sub001/internal/host/demo"
	"github.com/sharemind-sdk/libvm-sub001/internal/isa"
	"github.com/sharemind-sdk/libvm-sub001/internal/loader/testasm"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

func simpleReturn42() []byte {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(1))
	b.Emit(isa.LoadImm, testasm.Reg(0), testasm.Imm(42))
	b.Emit(isa.Ret, testasm.Reg(0))
	return b.Build()
}

func TestLoadSimpleContainer(t *testing.T) {
	data := testasm.Container(0, []testasm.UnitSpec{{Text: simpleReturn42()}})

	ld := New(demo.New())
	prog, err := ld.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !prog.Ready() {
		t.Fatal("loaded program is not Ready")
	}
	if len(prog.CodeSections) != 1 {
		t.Fatalf("expected 1 code section, got %d", len(prog.CodeSections))
	}
	cs := prog.CodeSection(0)
	if !cs.IsValidInstr(0) || !cs.IsValidInstr(2) || !cs.IsValidInstr(5) {
		t.Fatalf("expected instruction boundaries at 0, 2, 5; address map = %+v", cs.AddressMap)
	}
	if cs.IsValidInstr(1) {
		t.Fatal("offset 1 is inside ResizeStack's argument, must not be a boundary")
	}
	if !cs.IsValidInstr(cs.EndSentinel) {
		t.Fatal("end-of-section sentinel must be a valid address")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := testasm.Container(0, []testasm.UnitSpec{{Text: simpleReturn42()}})
	data[0] = 'X'

	ld := New(demo.New())
	if _, err := ld.Load(data); err == nil {
		t.Fatal("expected an error for corrupted magic")
	}
	if ld.LastError() == nil {
		t.Fatal("LastError should retain the failure after a failed Load")
	}
}

func TestLoadRejectsNoCodeSection(t *testing.T) {
	data := testasm.Container(0, []testasm.UnitSpec{{Rodata: []byte("hi")}})

	ld := New(demo.New())
	_, err := ld.Load(data)
	if err == nil {
		t.Fatal("expected NoCodeSection error")
	}
	le, ok := err.(*vmerr.LoadError)
	if !ok || le.Code != vmerr.NoCodeSection {
		t.Fatalf("expected NoCodeSection, got %v", err)
	}
}

func TestLoadRejectsUndefinedBind(t *testing.T) {
	data := testasm.Container(0, []testasm.UnitSpec{{
		Text:  simpleReturn42(),
		Binds: []string{"does_not_exist"},
	}})

	ld := New(demo.New())
	_, err := ld.Load(data)
	le, ok := err.(*vmerr.LoadError)
	if !ok || le.Code != vmerr.UndefinedBind {
		t.Fatalf("expected UndefinedBind, got %v", err)
	}
}

func TestLoadResolvesBind(t *testing.T) {
	data := testasm.Container(0, []testasm.UnitSpec{{
		Text:  simpleReturn42(),
		Binds: []string{"echo_u64"},
	}})

	ld := New(demo.New())
	prog, err := ld.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := prog.SyscallBinding(0); !ok {
		t.Fatal("expected one resolved syscall binding")
	}
}

func TestLoadRejectsJumpToMidInstruction(t *testing.T) {
	b := testasm.New()
	b.Emit(isa.ResizeStack, testasm.Count(1)) // offsets 0 (opcode), 1 (arg)
	b.Emit(isa.Jmp, testasm.RelLabel("target"))
	b.Mark("target")
	b.Emit(isa.Ret, testasm.Reg(0))
	text := b.Build()

	// Corrupt the jump's own argument (block 3) so it lands on block 1,
	// the ResizeStack instruction's argument rather than an opcode.
	binary.LittleEndian.PutUint64(text[3*8:], uint64(uint32(int32(-3))))

	data := testasm.Container(0, []testasm.UnitSpec{{Text: text}})

	ld := New(demo.New())
	if _, err := ld.Load(data); err == nil {
		t.Fatal("expected InvalidInstruction for a jump landing mid-instruction")
	}
}

// TestInstructionSetClosure asserts every opcode the isa package defines (the
// fixed ops plus the full generated arithmetic range) round-trips through
// Lookup with a sane, non-negative argument count — the property the
// preparer's pass 1 depends on to never walk off a section mid-decode.
func TestInstructionSetClosure(t *testing.T) {
	for oc := 0; oc < 256; oc++ {
		info, ok := isa.Lookup(isa.Opcode(oc))
		if !ok {
			continue
		}
		if info.NumArgs < 0 {
			t.Fatalf("opcode %#x has negative NumArgs", oc)
		}
		if len(info.Args) != info.NumArgs {
			t.Fatalf("opcode %#x: len(Args)=%d != NumArgs=%d", oc, len(info.Args), info.NumArgs)
		}
	}
}

func TestLoadRoundtripsEmptyUnits(t *testing.T) {
	data := testasm.Container(1, []testasm.UnitSpec{
		{}, // synthesised empty unit
		{Text: simpleReturn42()},
	})

	ld := New(demo.New())
	prog, err := ld.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prog.ActiveUnit != 1 {
		t.Fatalf("expected active unit 1, got %d", prog.ActiveUnit)
	}
	if len(prog.Rodata) != 2 || len(prog.Data) != 2 || len(prog.Bss) != 2 {
		t.Fatal("expected synthesised empty rodata/data/bss for the unit that carried none")
	}
}
