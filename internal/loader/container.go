// Package loader turns a bit-exact container byte stream into a
// program.Program: container.go parses the fixed binary headers with
// encoding/binary the way the teacher's cpu_ie32.go reads words off its
// memory bus, load.go dispatches each section to the right Program slot,
// and prepare.go runs the two-pass preparer assembler/ie32asm.go's
// assemble() is grounded on.
package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// Magic is the fixed 4-byte tag every container begins with.
var Magic = [4]byte{'S', 'M', 'V', 'M'}

// FileFormatVersion0 is the only format version this loader accepts.
const FileFormatVersion0 uint16 = 0

// Section types, as carried in SectionHeader_0.Type.
const (
	SectionText   uint32 = 0
	SectionRodata uint32 = 1
	SectionData   uint32 = 2
	SectionBss    uint32 = 3
	SectionBind   uint32 = 4
	SectionPdBind uint32 = 5
)

// CommonHeader opens every container: an 8-byte tag identifying both the
// format and the version a reader must speak to understand what follows.
type CommonHeader struct {
	Magic             [4]byte
	FileFormatVersion uint16
	Reserved          uint16
}

// FormatHeader0 follows CommonHeader in a version-0 container: how many
// linking units it holds, and which one the loader should treat as
// active (the only one whose rodata/data/bss are aliased into a fresh
// process's default memory map — spec §3's handles 1/2/3).
type FormatHeader0 struct {
	UnitsMinusOne     uint16
	ActiveLinkingUnit uint16
	_                 uint32 // padding to an 8-byte boundary
}

// UnitHeader0 opens one linking unit: how many sections it carries.
type UnitHeader0 struct {
	SectionsMinusOne uint16
	_                [6]byte // padding to an 8-byte boundary
}

// SectionHeader0 opens one section within a unit.
type SectionHeader0 struct {
	Type   uint32
	Length uint32
}

const headerBlockSize = 8

// padLen returns how many zero bytes follow a body of n bytes to bring
// the next header back onto an 8-byte boundary, matching CodeBlock
// granularity throughout the container.
func padLen(n int) int {
	rem := n % headerBlockSize
	if rem == 0 {
		return 0
	}
	return headerBlockSize - rem
}

// reader tracks the byte offset consumed so far, so parse failures can be
// reported with a position the way vmerr.LoadError expects.
type reader struct {
	r   io.Reader
	pos int64
}

func (rd *reader) read(buf []byte) error {
	n, err := io.ReadFull(rd.r, buf)
	rd.pos += int64(n)
	if err != nil {
		return err
	}
	return nil
}

func (rd *reader) readBinary(v interface{}) error {
	before := rd.pos
	if err := binary.Read(rd.r, binary.LittleEndian, v); err != nil {
		wrapped := errors.Wrap(err, "reading fixed-layout header")
		return vmerr.NewPositionedError(vmerr.InvalidHeader, before, wrapped.Error())
	}
	rd.pos += int64(binary.Size(v))
	return nil
}

func (rd *reader) skip(n int) error {
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	return rd.read(buf)
}

// readCommonHeader reads and validates CommonHeader.
func readCommonHeader(rd *reader) (CommonHeader, error) {
	var h CommonHeader
	if err := rd.readBinary(&h); err != nil {
		return h, err
	}
	if !bytes.Equal(h.Magic[:], Magic[:]) {
		return h, vmerr.NewPositionedError(vmerr.InvalidHeader, 0, "bad magic")
	}
	if h.FileFormatVersion != FileFormatVersion0 {
		return h, vmerr.NewPositionedError(vmerr.InvalidHeader, 4, fmt.Sprintf("unsupported format version %d", h.FileFormatVersion))
	}
	return h, nil
}

// rawSection is one section's type and raw body, padding already
// discarded, ready for load.go to interpret by type.
type rawSection struct {
	Type   uint32
	Body   []byte
	Offset int64 // byte offset of Body[0] in the container, for diagnostics
}

// rawUnit is one linking unit's sections in file order.
type rawUnit struct {
	Sections []rawSection
}

// parsedContainer is the fully-parsed, not-yet-interpreted container.
type parsedContainer struct {
	ActiveLinkingUnit uint16
	Units             []rawUnit
}

// parseContainer reads the whole container into memory and validates
// every fixed header, leaving section bodies uninterpreted for load.go.
func parseContainer(data []byte) (*parsedContainer, error) {
	rd := &reader{r: bytes.NewReader(data)}

	if _, err := readCommonHeader(rd); err != nil {
		return nil, err
	}

	var fh FormatHeader0
	if err := rd.readBinary(&fh); err != nil {
		return nil, err
	}

	numUnits := int(fh.UnitsMinusOne) + 1
	pc := &parsedContainer{
		ActiveLinkingUnit: fh.ActiveLinkingUnit,
		Units:             make([]rawUnit, numUnits),
	}
	if int(fh.ActiveLinkingUnit) >= numUnits {
		return nil, vmerr.NewPositionedError(vmerr.InvalidHeader, rd.pos, "active linking unit out of range")
	}

	for u := 0; u < numUnits; u++ {
		var uh UnitHeader0
		if err := rd.readBinary(&uh); err != nil {
			return nil, err
		}
		numSections := int(uh.SectionsMinusOne) + 1
		unit := rawUnit{Sections: make([]rawSection, numSections)}

		for s := 0; s < numSections; s++ {
			var sh SectionHeader0
			if err := rd.readBinary(&sh); err != nil {
				return nil, err
			}

			bodyLen := int(sh.Length)
			if sh.Type == SectionText {
				bodyLen = int(sh.Length) * 8
			}

			offset := rd.pos
			body := make([]byte, bodyLen)
			if err := rd.read(body); err != nil {
				return nil, vmerr.NewPositionedError(vmerr.InvalidInputFile, offset, "truncated section body")
			}
			if err := rd.skip(padLen(bodyLen)); err != nil {
				return nil, vmerr.NewPositionedError(vmerr.InvalidInputFile, rd.pos, "truncated section padding")
			}

			unit.Sections[s] = rawSection{Type: sh.Type, Body: body, Offset: offset}
		}

		pc.Units[u] = unit
	}

	return pc, nil
}
