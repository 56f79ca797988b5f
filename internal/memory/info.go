package memory

// Info is one of a Process's four memory-accounting counters
// (publicHeap, private, reserved, total). Max is a watermark: the
// largest Usage has ever reached, kept for diagnostics.
type Info struct {
	Usage      uint64
	UpperLimit uint64
	Max        uint64
}

// NewInfo returns a counter bounded by upperLimit; pass ^uint64(0) for
// an effectively unbounded counter.
func NewInfo(upperLimit uint64) *Info {
	return &Info{UpperLimit: upperLimit}
}

// Available returns how many more bytes this counter can absorb before
// hitting UpperLimit.
func (i *Info) Available() uint64 {
	if i.Usage >= i.UpperLimit {
		return 0
	}
	return i.UpperLimit - i.Usage
}

func (i *Info) charge(n uint64) {
	i.Usage += n
	if i.Usage > i.Max {
		i.Max = i.Usage
	}
}

func (i *Info) uncharge(n uint64) {
	if n > i.Usage {
		i.Usage = 0
		return
	}
	i.Usage -= n
}

// Counters bundles the four per-process memory budgets and enforces the
// accounting identity from the spec: Total.Usage always equals the sum
// of PublicHeap, Private and Reserved usage. Every charge/uncharge goes
// through Reserve/Release/ChargePublic/ChargePrivate below so that
// invariant can never be violated from outside this package.
type Counters struct {
	PublicHeap *Info
	Private    *Info
	Reserved   *Info
	Total      *Info
}

// NewCounters builds a Counters with the four independent upper limits
// supplied (use ^uint64(0) for "no limit" on any of them).
func NewCounters(publicHeapLimit, privateLimit, reservedLimit, totalLimit uint64) *Counters {
	return &Counters{
		PublicHeap: NewInfo(publicHeapLimit),
		Private:    NewInfo(privateLimit),
		Reserved:   NewInfo(reservedLimit),
		Total:      NewInfo(totalLimit),
	}
}

// tryCharge books n bytes against both specific and Total, refusing (and
// changing nothing) if either counter's headroom is insufficient. This is
// the "checks both its specific counter and the total" rule from the
// allocation procedure in the spec.
func (c *Counters) tryCharge(specific *Info, n uint64) bool {
	if n > specific.Available() || n > c.Total.Available() {
		return false
	}
	specific.charge(n)
	c.Total.charge(n)
	return true
}

func (c *Counters) release(specific *Info, n uint64) {
	specific.uncharge(n)
	c.Total.uncharge(n)
}

// ChargePublic books a public-heap allocation.
func (c *Counters) ChargePublic(n uint64) bool { return c.tryCharge(c.PublicHeap, n) }

// ReleasePublic reverses ChargePublic.
func (c *Counters) ReleasePublic(n uint64) { c.release(c.PublicHeap, n) }

// ChargePrivate books a host-side private allocation.
func (c *Counters) ChargePrivate(n uint64) bool { return c.tryCharge(c.Private, n) }

// ReleasePrivate reverses ChargePrivate.
func (c *Counters) ReleasePrivate(n uint64) { c.release(c.Private, n) }

// Reserve books n bytes a syscall intends to allocate internally later,
// without actually allocating anything now.
func (c *Counters) Reserve(n uint64) bool { return c.tryCharge(c.Reserved, n) }

// Release reverses Reserve.
func (c *Counters) Release(n uint64) { c.release(c.Reserved, n) }
