package codeimage

// DataSection is a linking unit's rodata, data, or bss: a raw byte
// buffer with read/write flags. The loader synthesises an empty one for
// any unit that omits a given kind, so Program's per-unit slices stay
// parallel regardless of which sections the container actually carried.
type DataSection struct {
	Bytes    []byte
	Readable bool
	Writable bool
}

// NewRodata returns a read-only data section over the given bytes.
func NewRodata(data []byte) *DataSection {
	return &DataSection{Bytes: data, Readable: true, Writable: false}
}

// NewData returns a read/write data section initialised from data.
func NewData(data []byte) *DataSection {
	return &DataSection{Bytes: data, Readable: true, Writable: true}
}

// NewBss returns a read/write, zero-initialised data section of size n.
func NewBss(n uint32) *DataSection {
	return &DataSection{Bytes: make([]byte, n), Readable: true, Writable: true}
}

// Size returns the section's length in bytes.
func (d *DataSection) Size() int { return len(d.Bytes) }
