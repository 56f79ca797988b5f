// Package dispatch is the direct-threaded instruction loop: a [256]handler
// jump table keyed by isa.Opcode, replacing the switch statement
// cpu_ie32.go's Execute() uses for the same job. Each step reads exactly
// one prepared instruction and mutates State; a handler reports whether
// it has repositioned the IP itself, and the loop stops once State.Halted
// is set.
package dispatch

import (
	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/dispatch/fp"
	"github.com/sharemind-sdk/libvm-sub001/internal/host"
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
	"github.com/sharemind-sdk/libvm-sub001/internal/program"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// State is everything one dispatch step needs. internal/process builds
// one per Process and owns it across Run/Continue calls; dispatch never
// imports process, so process implementing host.Context for syscalls
// creates no import cycle.
type State struct {
	Program *program.Program
	Heap    *memory.Heap
	Private *memory.PrivateMap
	Counters *memory.Counters
	Ctx     host.Context
	FP      fp.Ops

	SectionIndex uint32
	Section      *codeimage.CodeSection
	IP           uint32

	Frame *codeimage.StackFrame
	Next  *codeimage.StackFrame

	ReturnValue codeimage.CodeBlock
	Exception   vmerr.VmProcessException
	Halted      bool

	// ShouldPause, when set, is polled once per step; Run returns
	// without setting Halted when it reports true, so a later call to
	// Run resumes exactly where execution left off. Used by
	// internal/process to implement Process.Pause cooperatively rather
	// than by killing a goroutine.
	ShouldPause func() bool
}

// NewState builds a State positioned at the start of section 0's global
// frame, the entry point of a freshly loaded program.
func NewState(prog *program.Program, heap *memory.Heap, private *memory.PrivateMap, counters *memory.Counters, ctx host.Context) *State {
	section := prog.CodeSection(0)
	return &State{
		Program:  prog,
		Heap:     heap,
		Private:  private,
		Counters: counters,
		Ctx:      ctx,
		FP:       fp.Default,

		SectionIndex: 0,
		Section:      section,
		IP:           0,

		Frame: codeimage.NewStackFrame(nil),
	}
}

// nextFrame returns State.Next, building an empty one lazily on first
// use within a single instruction sequence (spec: "push creates the next
// frame lazily").
func (s *State) nextFrame() *codeimage.StackFrame {
	if s.Next == nil {
		s.Next = codeimage.NewStackFrame(nil)
	}
	return s.Next
}

// raise records exc as the terminal exception and stops the loop. The
// exception value and a halted dispatcher are the only two ways Run
// returns control to the caller short of falling off the program.
func (s *State) raise(exc vmerr.VmProcessException) {
	s.Exception = exc
	s.Halted = true
}

// reg reads register i of the current frame, raising InvalidIndexRegister
// and returning ok=false if i is out of bounds.
func (s *State) reg(i uint32) (codeimage.CodeBlock, bool) {
	if int(i) >= len(s.Frame.Stack) {
		s.raise(vmerr.InvalidIndexRegister)
		return 0, false
	}
	return s.Frame.Stack[i], true
}

// setReg writes register i of the current frame, raising
// InvalidIndexRegister and returning false if i is out of bounds.
func (s *State) setReg(i uint32, v codeimage.CodeBlock) bool {
	if int(i) >= len(s.Frame.Stack) {
		s.raise(vmerr.InvalidIndexRegister)
		return false
	}
	s.Frame.Stack[i] = v
	return true
}
