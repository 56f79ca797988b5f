package testasm

import (
	"bytes"
	"encoding/binary"
)

// Section types, duplicated from internal/loader to avoid importing the
// package under test from its own test helper.
const (
	SectionText   uint32 = 0
	SectionRodata uint32 = 1
	SectionData   uint32 = 2
	SectionBss    uint32 = 3
	SectionBind   uint32 = 4
	SectionPdBind uint32 = 5
)

// UnitSpec describes one linking unit's sections. Text is the section's
// raw bytes (a Builder's Build() output); Bss is a byte count, not a
// buffer. Binds/PdBinds are NUL-joined into the bind/pdbind sections the
// way the container format expects.
type UnitSpec struct {
	Text    []byte
	Rodata  []byte
	Data    []byte
	Bss     uint32
	Binds   []string
	PdBinds []string
}

// Container builds a complete, bit-exact container byte stream from a set
// of linking units, the fixture every loader test starts from.
func Container(activeUnit uint16, units []UnitSpec) []byte {
	var buf bytes.Buffer

	buf.WriteString("SMVM")
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // file format version
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved

	binary.Write(&buf, binary.LittleEndian, uint16(len(units)-1))
	binary.Write(&buf, binary.LittleEndian, activeUnit)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // format header padding

	for _, u := range units {
		sections := collectSections(u)
		binary.Write(&buf, binary.LittleEndian, uint16(len(sections)-1))
		buf.Write(make([]byte, 6)) // unit header padding

		for _, sec := range sections {
			writeSection(&buf, sec.typ, sec.body)
		}
	}

	return buf.Bytes()
}

type sectionSpec struct {
	typ  uint32
	body []byte
}

func collectSections(u UnitSpec) []sectionSpec {
	var secs []sectionSpec
	if u.Text != nil {
		secs = append(secs, sectionSpec{SectionText, u.Text})
	}
	if u.Rodata != nil {
		secs = append(secs, sectionSpec{SectionRodata, u.Rodata})
	}
	if u.Data != nil {
		secs = append(secs, sectionSpec{SectionData, u.Data})
	}
	if u.Bss != 0 {
		bssLen := make([]byte, 4)
		binary.LittleEndian.PutUint32(bssLen, u.Bss)
		secs = append(secs, sectionSpec{SectionBss, bssLen})
	}
	if len(u.Binds) > 0 {
		secs = append(secs, sectionSpec{SectionBind, joinNUL(u.Binds)})
	}
	if len(u.PdBinds) > 0 {
		secs = append(secs, sectionSpec{SectionPdBind, joinNUL(u.PdBinds)})
	}
	if len(secs) == 0 {
		// A unit with nothing at all still needs one section per the
		// loader's NoCodeSection/empty-unit handling; an empty bss
		// section is the cheapest no-op placeholder.
		secs = append(secs, sectionSpec{SectionBss, []byte{0, 0, 0, 0}})
	}
	return secs
}

func joinNUL(names []string) []byte {
	var buf bytes.Buffer
	for _, n := range names {
		buf.WriteString(n)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, typ uint32, body []byte) {
	length := uint32(len(body))
	if typ == SectionText {
		length = uint32(len(body) / 8)
	}
	binary.Write(buf, binary.LittleEndian, typ)
	binary.Write(buf, binary.LittleEndian, length)
	buf.Write(body)
	pad := (8 - len(body)%8) % 8
	buf.Write(make([]byte, pad))
}
