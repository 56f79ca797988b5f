// Package vmerr defines the two error taxonomies used across the VM core:
// VmError for load- and control-time failures, and VmProcessException for
// runtime faults carried in a Process's exceptionValue register.
package vmerr

import "fmt"

// VmError is returned by loader, preparer and process-control operations.
type VmError int

const (
	Ok VmError = iota
	OutOfMemory
	LockFailure
	InvalidInputState
	InvalidInputFile
	NoCodeSection
	InvalidHeader
	InvalidInstruction
	InvalidArguments
	UndefinedBind
	UndefinedPdBind
	DuplicatePdBind
	PdpiStartupFailed
	RuntimeException
	RuntimeTrap
)

var vmErrorNames = [...]string{
	Ok:                  "Ok",
	OutOfMemory:         "OutOfMemory",
	LockFailure:         "LockFailure",
	InvalidInputState:   "InvalidInputState",
	InvalidInputFile:    "InvalidInputFile",
	NoCodeSection:       "NoCodeSection",
	InvalidHeader:       "InvalidHeader",
	InvalidInstruction:  "InvalidInstruction",
	InvalidArguments:    "InvalidArguments",
	UndefinedBind:       "UndefinedBind",
	UndefinedPdBind:     "UndefinedPdBind",
	DuplicatePdBind:     "DuplicatePdBind",
	PdpiStartupFailed:   "PdpiStartupFailed",
	RuntimeException:    "RuntimeException",
	RuntimeTrap:         "RuntimeTrap",
}

func (e VmError) String() string {
	if int(e) < 0 || int(e) >= len(vmErrorNames) {
		return fmt.Sprintf("VmError(%d)", int(e))
	}
	return vmErrorNames[e]
}

func (e VmError) Error() string { return e.String() }

// LoadError wraps a VmError with the byte offset of the offending input,
// when one is meaningful (container parsing, preparation). Position is -1
// when the error carries no useful location.
type LoadError struct {
	Code     VmError
	Position int64
	Detail   string
}

func (e *LoadError) Error() string {
	if e.Position >= 0 {
		if e.Detail != "" {
			return fmt.Sprintf("%s at offset %d: %s", e.Code, e.Position, e.Detail)
		}
		return fmt.Sprintf("%s at offset %d", e.Code, e.Position)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return e.Code.String()
}

// Unwrap lets callers test with errors.Is(err, vmerr.InvalidInstruction)
// style comparisons against the sentinel VmError values above.
func (e *LoadError) Unwrap() error { return e.Code }

// NewLoadError builds a LoadError with no known position.
func NewLoadError(code VmError, detail string) *LoadError {
	return &LoadError{Code: code, Position: -1, Detail: detail}
}

// NewPositionedError builds a LoadError anchored to a byte offset.
func NewPositionedError(code VmError, pos int64, detail string) *LoadError {
	return &LoadError{Code: code, Position: pos, Detail: detail}
}

// VmProcessException is carried in Process.exceptionValue and returned by
// Process.Exception() after a RuntimeException halts the dispatch loop.
type VmProcessException int

const (
	None VmProcessException = iota
	ExcOutOfMemory
	InvalidArgument
	InvalidSyscallInvocation
	SyscallFailure
	InvalidIndexRegister
	InvalidIndexStack
	InvalidIndexReference
	InvalidIndexConstReference
	JumpToInvalidAddress
	InvalidIndexSyscall
	InvalidReference
	MemoryInUse
	OutOfBoundsRead
	OutOfBoundsWrite
	OutOfBoundsReferenceIndex
	OutOfBoundsReferenceSize
	ReadDenied
	WriteDenied
	UnknownFpe
	IntegerDivideByZero
	IntegerOverflow
	FloatingPointDivideByZero
	FloatingPointOverflow
	FloatingPointUnderflow
	FloatingPointInexactResult
	FloatingPointInvalidOperation
	UserAssert
)

var exceptionNames = [...]string{
	None:                          "None",
	ExcOutOfMemory:                "OutOfMemory",
	InvalidArgument:               "InvalidArgument",
	InvalidSyscallInvocation:      "InvalidSyscallInvocation",
	SyscallFailure:                "SyscallFailure",
	InvalidIndexRegister:          "InvalidIndexRegister",
	InvalidIndexStack:             "InvalidIndexStack",
	InvalidIndexReference:         "InvalidIndexReference",
	InvalidIndexConstReference:    "InvalidIndexConstReference",
	JumpToInvalidAddress:          "JumpToInvalidAddress",
	InvalidIndexSyscall:           "InvalidIndexSyscall",
	InvalidReference:              "InvalidReference",
	MemoryInUse:                   "MemoryInUse",
	OutOfBoundsRead:               "OutOfBoundsRead",
	OutOfBoundsWrite:              "OutOfBoundsWrite",
	OutOfBoundsReferenceIndex:     "OutOfBoundsReferenceIndex",
	OutOfBoundsReferenceSize:      "OutOfBoundsReferenceSize",
	ReadDenied:                    "ReadDenied",
	WriteDenied:                   "WriteDenied",
	UnknownFpe:                    "UnknownFpe",
	IntegerDivideByZero:           "IntegerDivideByZero",
	IntegerOverflow:               "IntegerOverflow",
	FloatingPointDivideByZero:     "FloatingPointDivideByZero",
	FloatingPointOverflow:         "FloatingPointOverflow",
	FloatingPointUnderflow:        "FloatingPointUnderflow",
	FloatingPointInexactResult:    "FloatingPointInexactResult",
	FloatingPointInvalidOperation: "FloatingPointInvalidOperation",
	UserAssert:                    "UserAssert",
}

func (e VmProcessException) String() string {
	if int(e) < 0 || int(e) >= len(exceptionNames) {
		return fmt.Sprintf("VmProcessException(%d)", int(e))
	}
	return exceptionNames[e]
}

func (e VmProcessException) Error() string { return e.String() }
