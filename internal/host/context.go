// Package host defines the small surface the VM core depends on from its
// external collaborators: the syscall ABI a bound syscall must implement,
// and the Context a running Process hands to every syscall invocation.
// The dynamic module loader that actually resolves a signature or a PD
// name to these types lives outside this module (spec §1); Resolver
// below is the interface the loader consumes from it.
package host

import (
	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
)

// Status is the syscall ABI's return code.
type Status int

const (
	StatusOk Status = iota
	StatusOutOfMemory
	StatusInvalidCall
	StatusGeneralFailure
)

// Syscall is the signature every bound syscall callable implements: it
// receives the next frame's register stack, ref and cref stacks, an
// optional destination for a return value, and the process's Context.
type Syscall func(stack []codeimage.CodeBlock, refs []*memory.Reference, crefs []*memory.CReference, ret *codeimage.CodeBlock, ctx Context) Status

// Context is offered to every syscall invocation. It is implemented by
// internal/process.Process; the interface lives here so that neither
// package needs to import the other's concrete type, avoiding an import
// cycle between process and the syscalls it hosts.
type Context interface {
	// GetPdProcessHandle returns the started PDPI handle for the
	// pdbind at the given index, starting it on first use.
	GetPdProcessHandle(index int) (interface{}, error)

	PublicAlloc(n uint64) memory.Handle
	PublicFree(handle memory.Handle) error
	PublicPtrSize(handle memory.Handle) (uint64, bool)
	PublicPtrData(handle memory.Handle) ([]byte, bool)

	PrivateAlloc(n uint64) ([]byte, error)
	PrivateFree(ptr uintptr) error
	PrivateReserve(n uint64) bool
	PrivateRelease(n uint64)

	ModuleHandle() interface{}
	Internal() interface{}
}

// SyscallBinding is a resolved syscall: the callable plus the module
// handle and opaque value the resolver attached to it.
type SyscallBinding struct {
	Callable     Syscall
	ModuleHandle interface{}
	Internal     interface{}
}

// PDFactory constructs a started protection-domain-process-instance for
// a given PD handle. Modeled as a function rather than an interface
// because the only thing a Process does with one is call it once, on
// first use of the corresponding pdbind, and cache the result.
type PDFactory func() (interface{}, error)

// PDBinding is a resolved protection-domain name.
type PDBinding struct {
	Handle  interface{}
	Factory PDFactory
}

// Resolver is the host context the loader queries while processing bind
// and pdbind sections (spec §4.1): resolve a syscall signature string to
// a binding, or a PD name string to a binding. The real dynamic module
// loader behind this interface is out of scope for this module; see
// internal/host/demo for a minimal in-repo implementation used by tests
// and cmd/smvmrun.
type Resolver interface {
	ResolveSyscall(signature string) (SyscallBinding, bool)
	ResolvePD(name string) (PDBinding, bool)
}
