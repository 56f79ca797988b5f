package codeimage

// InstrDescriptor records what pass 1 discovered about one instruction:
// its original opcode (kept for disassembly/diagnostics even though pass
// 2 overwrites the block itself with a dispatch token), its declared
// argument count, and an optional source line number carried through
// from a debug section (0 when unknown).
type InstrDescriptor struct {
	Opcode  byte
	NumArgs int
	Line    int
}

// CodeSection is one linking unit's text: a packed CodeBlock array plus
// the address map that doubles as the "set of valid instruction offsets"
// from the spec — an offset is a valid instruction iff it has an entry
// here. Unifying the set and the map avoids keeping two structures in
// sync, the way the teacher prefers one lookup table over parallel ones
// (memory_bus.go's single IORegion mapping).
type CodeSection struct {
	Blocks      []CodeBlock
	AddressMap  map[uint32]InstrDescriptor
	EndSentinel uint32 // offset (in blocks) of the appended end-of-section sentinel
}

// NewCodeSection wraps blocks, ready for pass 1 to populate AddressMap.
func NewCodeSection(blocks []CodeBlock) *CodeSection {
	return &CodeSection{
		Blocks:     blocks,
		AddressMap: make(map[uint32]InstrDescriptor),
	}
}

// Len returns the number of CodeBlocks in the section, including the
// sentinel once appended.
func (s *CodeSection) Len() uint32 { return uint32(len(s.Blocks)) }

// IsValidInstr reports whether offset is the start of a real instruction
// as discovered by pass 1 — the basis of jump-target validation for both
// the preparer (static jump arguments) and the dispatcher (computed
// jumps).
func (s *CodeSection) IsValidInstr(offset uint32) bool {
	_, ok := s.AddressMap[offset]
	return ok
}

// Descriptor returns the instruction descriptor at offset.
func (s *CodeSection) Descriptor(offset uint32) (InstrDescriptor, bool) {
	d, ok := s.AddressMap[offset]
	return d, ok
}
