// Package demo provides a minimal host.Resolver usable by tests and
// cmd/smvmrun: a fixed table of syscall signatures and PD names resolved
// by string lookup, the way program_executor.go's detectExecType
// resolves a file extension to a handler with a plain switch rather than
// a plugin mechanism. The real dynamic module loader this stands in for
// is out of scope for this module (spec §1).
package demo

import (
	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/host"
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
)

// Resolver is a host.Resolver backed by two plain maps.
type Resolver struct {
	syscalls map[string]host.SyscallBinding
	pds      map[string]host.PDBinding
}

// New returns a Resolver preloaded with the echo_u64 syscall used by the
// spec's S5 scenario and any additional syscalls/PDs the caller supplies.
func New() *Resolver {
	r := &Resolver{
		syscalls: make(map[string]host.SyscallBinding),
		pds:      make(map[string]host.PDBinding),
	}
	r.RegisterSyscall("echo_u64", echoU64)
	return r
}

// RegisterSyscall adds or replaces a syscall binding by signature.
func (r *Resolver) RegisterSyscall(signature string, fn host.Syscall) {
	r.syscalls[signature] = host.SyscallBinding{Callable: fn, ModuleHandle: "demo"}
}

// RegisterPD adds or replaces a protection-domain binding by name.
func (r *Resolver) RegisterPD(name string, factory host.PDFactory) {
	r.pds[name] = host.PDBinding{Factory: factory}
}

// ResolveSyscall implements host.Resolver.
func (r *Resolver) ResolveSyscall(signature string) (host.SyscallBinding, bool) {
	b, ok := r.syscalls[signature]
	return b, ok
}

// ResolvePD implements host.Resolver.
func (r *Resolver) ResolvePD(name string) (host.PDBinding, bool) {
	b, ok := r.pds[name]
	return b, ok
}

// echoU64 returns its first stack argument unchanged — the syscall used
// by spec scenario S5.
func echoU64(stack []codeimage.CodeBlock, _ []*memory.Reference, _ []*memory.CReference, ret *codeimage.CodeBlock, _ host.Context) host.Status {
	if len(stack) < 1 {
		return host.StatusInvalidCall
	}
	if ret != nil {
		*ret = stack[0]
	}
	return host.StatusOk
}
