// Package program holds Program, the immutable loaded artifact produced
// by internal/loader and consumed by internal/process. A Program is
// built once, becomes Ready, and may then back any number of Processes
// concurrently; nothing about it changes after loading.
package program

import (
	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/host"
)

// Program is the loaded, prepared artifact: code sections ready for
// direct-threaded dispatch, the data sections for every linking unit,
// and the resolved syscall/PD bindings the code references by index.
type Program struct {
	CodeSections []*codeimage.CodeSection

	// Rodata, Data and Bss are parallel, indexed by linking unit.
	Rodata []*codeimage.DataSection
	Data   []*codeimage.DataSection
	Bss    []*codeimage.DataSection

	SyscallBindings []host.SyscallBinding
	PdBindings      []host.PDBinding

	ActiveUnit uint16

	ready bool
}

// New returns an empty Program ready for the loader to populate.
func New() *Program {
	return &Program{}
}

// Ready reports whether preparation has completed successfully; a
// Program may only back a Process once Ready returns true.
func (p *Program) Ready() bool { return p.ready }

// MarkReady is called by the loader once every code section has been
// through both preparation passes without error. Programs never become
// un-ready again.
func (p *Program) MarkReady() { p.ready = true }

// CodeSection returns the code section at index, or nil if out of range.
func (p *Program) CodeSection(index uint32) *codeimage.CodeSection {
	if int(index) >= len(p.CodeSections) {
		return nil
	}
	return p.CodeSections[index]
}

// SyscallBinding returns the binding at index, or (zero, false) if out
// of range — the bounds check behind the InvalidIndexSyscall exception.
func (p *Program) SyscallBinding(index uint32) (host.SyscallBinding, bool) {
	if int(index) >= len(p.SyscallBindings) {
		return host.SyscallBinding{}, false
	}
	return p.SyscallBindings[index], true
}

// PdBinding returns the PD binding at index, or (zero, false) if out of
// range.
func (p *Program) PdBinding(index int) (host.PDBinding, bool) {
	if index < 0 || index >= len(p.PdBindings) {
		return host.PDBinding{}, false
	}
	return p.PdBindings[index], true
}
