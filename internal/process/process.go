// Package process implements Process, the unit of execution: one loaded
// Program bound to its own memory map, frame stack and PDPI cache,
// driven by internal/dispatch's direct-threaded loop. Lifecycle
// (Run/Pause/Continue/Free) follows program_executor.go's
// mutex-guarded-status-plus-session-counter pattern, which exists there
// to let a slow or stuck async operation discover it has been
// superseded instead of clobbering newer state.
package process

import (
	"sync"

	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/dispatch"
	"github.com/sharemind-sdk/libvm-sub001/internal/host"
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
	"github.com/sharemind-sdk/libvm-sub001/internal/program"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmlog"
)

// Status is a Process's lifecycle state.
type Status int

const (
	StatusCreated Status = iota
	StatusRunning
	StatusPaused
	StatusFinished
	StatusTrapped
)

// Process is one running (or not-yet-started, or finished) instance of a
// Program. A Process is safe to Pause from a different goroutine than
// the one that called Run; Continue resumes in the caller's goroutine.
type Process struct {
	mu      sync.Mutex
	status  Status
	session uint64

	prog     *program.Program
	heap     *memory.Heap
	private  *memory.PrivateMap
	counters *memory.Counters

	state *dispatch.State

	pdpi *pdpiCache

	pauseRequested bool
	done           chan struct{}
}

// New builds a Process ready to Run, installing the active linking unit's
// rodata (aliased) and private copies of its data and bss under the fresh
// heap's reserved handles the way spec §3 describes, and booking memory
// limits against counters.
func New(prog *program.Program, counters *memory.Counters, resolver host.Resolver) *Process {
	heap := memory.NewHeap(counters)
	unit := int(prog.ActiveUnit)

	if unit < len(prog.Rodata) {
		r := prog.Rodata[unit]
		heap.AddStatic(memory.HandleRodata, r.Bytes, r.Readable, r.Writable)
	}
	if unit < len(prog.Data) {
		d := prog.Data[unit]
		heap.AddStatic(memory.HandleData, append([]byte(nil), d.Bytes...), d.Readable, d.Writable)
	}
	if unit < len(prog.Bss) {
		b := prog.Bss[unit]
		heap.AddStatic(memory.HandleBss, make([]byte, len(b.Bytes)), b.Readable, b.Writable)
	}

	private := memory.NewPrivateMap(counters)

	p := &Process{
		status:   StatusCreated,
		prog:     prog,
		heap:     heap,
		private:  private,
		counters: counters,
		pdpi:     newPdpiCache(prog, resolver),
	}
	p.state = dispatch.NewState(prog, heap, private, counters, p)
	p.state.ShouldPause = p.shouldPause
	return p
}

func (p *Process) shouldPause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauseRequested
}

// Run starts dispatch from the entry point and reports the outcome the
// way spec.md §6.3 defines run()'s return: Ok on a normal finish,
// RuntimeException if a fault trapped the process (Exception() names
// which one), RuntimeTrap if it was cooperatively paused instead, or
// InvalidInputState if this Process was already started. It is an
// error to Run a Process more than once; use Continue after a Pause.
func (p *Process) Run() vmerr.VmError {
	p.mu.Lock()
	if p.status != StatusCreated {
		p.mu.Unlock()
		return vmerr.InvalidInputState
	}
	p.status = StatusRunning
	p.session++
	session := p.session
	p.mu.Unlock()

	p.runLoop(session)
	return p.outcome()
}

// Continue resumes a Paused process from exactly where it left off,
// reporting its outcome the same way Run does.
func (p *Process) Continue() vmerr.VmError {
	p.mu.Lock()
	if p.status != StatusPaused {
		p.mu.Unlock()
		return vmerr.InvalidInputState
	}
	p.status = StatusRunning
	p.pauseRequested = false
	session := p.session
	p.mu.Unlock()

	p.runLoop(session)
	return p.outcome()
}

// outcome reports the VmError matching the status runLoop just settled
// on, once dispatch has returned control to the caller.
func (p *Process) outcome() vmerr.VmError {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case StatusTrapped:
		return vmerr.RuntimeException
	case StatusPaused:
		return vmerr.RuntimeTrap
	default:
		return vmerr.Ok
	}
}

func (p *Process) runLoop(session uint64) {
	dispatch.Run(p.state)

	p.mu.Lock()
	defer p.mu.Unlock()
	if session != p.session {
		// The session was bumped by a later Run; discard this result.
		// Continue keeps the session unchanged.
		return
	}
	switch {
	case p.state.Halted && p.state.Exception != vmerr.None:
		p.status = StatusTrapped
		vmlog.ForProcess(session).WithField("exception", p.state.Exception).Warn("process trapped")
	case p.state.Halted:
		p.status = StatusFinished
	default:
		p.status = StatusPaused
	}
}

// Pause cooperatively stops dispatch before its next step. It is
// idempotent: calling it on an already-paused or finished process is a
// no-op. Pause does not block for the loop to actually stop; the caller
// learns the new status from Status() once Run/Continue returns.
func (p *Process) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseRequested = true
}

// Free clears this process's PDPI cache. The heap and private map are not
// released explicitly; they are dropped with the Process itself. Free does
// not stop a concurrently running dispatch loop; callers must Pause first.
func (p *Process) Free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pdpi.stopAll()
}

// Status reports the process's current lifecycle state.
func (p *Process) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// ReturnValue is the global frame's return value once Status is Finished.
func (p *Process) ReturnValue() codeimage.CodeBlock { return p.state.ReturnValue }

// Exception is the fault that trapped the process, valid once Status is
// Trapped.
func (p *Process) Exception() vmerr.VmProcessException { return p.state.Exception }

// CurrentCodeSection and CurrentIP report where a paused or trapped
// process stopped, for diagnostics.
func (p *Process) CurrentCodeSection() uint32 { return p.state.SectionIndex }
func (p *Process) CurrentIP() uint32          { return p.state.IP }

// Counters exposes this process's memory accounting, e.g. for a host
// reporting resource usage.
func (p *Process) Counters() *memory.Counters { return p.counters }

var _ host.Context = (*Process)(nil)
