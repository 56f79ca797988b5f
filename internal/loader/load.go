package loader

import (
	"encoding/binary"
	"strings"

	"github.com/sharemind-sdk/libvm-sub001/internal/codeimage"
	"github.com/sharemind-sdk/libvm-sub001/internal/host"
	"github.com/sharemind-sdk/libvm-sub001/internal/program"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// Loader drives Load, keeping the last failure around for callers that
// want a diagnostic after a failed load without threading an error value
// through several layers — the way program_executor.go keeps a
// lastFailureReason field for its async startExecute path instead of
// only returning an error from the goroutine that can't be joined.
type Loader struct {
	resolver host.Resolver
	lastErr  error
}

// New returns a Loader that resolves bind/pdbind sections against
// resolver.
func New(resolver host.Resolver) *Loader {
	return &Loader{resolver: resolver}
}

// LastError returns the error from the most recent failed Load, or nil.
func (l *Loader) LastError() error { return l.lastErr }

// Load parses and prepares a container, returning a ready Program on
// success. On failure it records the error (retrievable via LastError)
// and returns it.
func (l *Loader) Load(data []byte) (*program.Program, error) {
	p, err := l.load(data)
	l.lastErr = err
	return p, err
}

func (l *Loader) load(data []byte) (*program.Program, error) {
	pc, err := parseContainer(data)
	if err != nil {
		return nil, err
	}

	prog := program.New()
	prog.ActiveUnit = pc.ActiveLinkingUnit

	sawCode := false

	for _, unit := range pc.Units {
		var rodata, dataSec, bss *codeimage.DataSection
		var syscalls []host.SyscallBinding
		var pds []host.PDBinding

		for _, sec := range unit.Sections {
			switch sec.Type {
			case SectionText:
				blocks, err := decodeBlocks(sec.Body)
				if err != nil {
					return nil, vmerr.NewPositionedError(vmerr.InvalidInputFile, sec.Offset, err.Error())
				}
				cs, err := prepare(blocks)
				if err != nil {
					return nil, err
				}
				prog.CodeSections = append(prog.CodeSections, cs)
				sawCode = true

			case SectionRodata:
				rodata = codeimage.NewRodata(cloneBytes(sec.Body))

			case SectionData:
				dataSec = codeimage.NewData(cloneBytes(sec.Body))

			case SectionBss:
				n, err := decodeUint32(sec.Body)
				if err != nil {
					return nil, vmerr.NewPositionedError(vmerr.InvalidInputFile, sec.Offset, err.Error())
				}
				bss = codeimage.NewBss(n)

			case SectionBind:
				for _, sig := range splitStrings(sec.Body) {
					binding, ok := l.resolver.ResolveSyscall(sig)
					if !ok {
						return nil, vmerr.NewPositionedError(vmerr.UndefinedBind, sec.Offset, sig)
					}
					syscalls = append(syscalls, binding)
				}

			case SectionPdBind:
				for _, name := range splitStrings(sec.Body) {
					binding, ok := l.resolver.ResolvePD(name)
					if !ok {
						return nil, vmerr.NewPositionedError(vmerr.UndefinedPdBind, sec.Offset, name)
					}
					pds = append(pds, binding)
				}

			default:
				// spec.md §6.1: unknown section types are forward-compatible
				// and must be skipped, not rejected.
			}
		}

		if rodata == nil {
			rodata = codeimage.NewRodata(nil)
		}
		if dataSec == nil {
			dataSec = codeimage.NewData(nil)
		}
		if bss == nil {
			bss = codeimage.NewBss(0)
		}

		prog.Rodata = append(prog.Rodata, rodata)
		prog.Data = append(prog.Data, dataSec)
		prog.Bss = append(prog.Bss, bss)
		prog.SyscallBindings = append(prog.SyscallBindings, syscalls...)
		prog.PdBindings = append(prog.PdBindings, pds...)
	}

	if !sawCode {
		return nil, vmerr.NewLoadError(vmerr.NoCodeSection, "container carries no text section")
	}

	prog.MarkReady()
	return prog, nil
}

// decodeBlocks reinterprets a text section's body as little-endian
// CodeBlocks, eight bytes each.
func decodeBlocks(body []byte) ([]codeimage.CodeBlock, error) {
	if len(body)%codeimage.BlockSize != 0 {
		return nil, vmerr.InvalidInputFile
	}
	n := len(body) / codeimage.BlockSize
	blocks := make([]codeimage.CodeBlock, n)
	for i := 0; i < n; i++ {
		v := binary.LittleEndian.Uint64(body[i*codeimage.BlockSize:])
		blocks[i] = codeimage.CodeBlockFromUint64(v)
	}
	return blocks, nil
}

// decodeUint32 reads a bss section's body as a single little-endian
// uint32 byte count.
func decodeUint32(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, vmerr.InvalidInputFile
	}
	return binary.LittleEndian.Uint32(body), nil
}

// splitStrings splits a bind/pdbind section body on NUL bytes into its
// constituent signature/name strings, dropping the trailing empty
// element padding leaves behind.
func splitStrings(body []byte) []string {
	raw := strings.Split(string(body), "\x00")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
