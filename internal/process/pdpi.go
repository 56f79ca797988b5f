package process

import (
	"sync"

	"github.com/sharemind-sdk/libvm-sub001/internal/host"
	"github.com/sharemind-sdk/libvm-sub001/internal/program"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
)

// pdpiCache starts a protection-domain-process-instance on first use of
// its pdbind index and hands back the same handle for every later use,
// modeled on the original C library's pdpicache.h: a lazily-populated,
// index-keyed table the process tears down on Free rather than on every
// syscall return.
type pdpiCache struct {
	mu       sync.Mutex
	prog     *program.Program
	resolver host.Resolver
	handles  map[int]interface{}
}

func newPdpiCache(prog *program.Program, resolver host.Resolver) *pdpiCache {
	return &pdpiCache{
		prog:     prog,
		resolver: resolver,
		handles:  make(map[int]interface{}),
	}
}

// get returns the started handle for pdbind index, starting it via the
// binding's Factory on first use.
func (c *pdpiCache) get(index int) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[index]; ok {
		return h, nil
	}

	binding, ok := c.prog.PdBinding(index)
	if !ok {
		return nil, vmerr.InvalidArgument
	}
	if binding.Factory == nil {
		c.handles[index] = binding.Handle
		return binding.Handle, nil
	}

	h, err := binding.Factory()
	if err != nil {
		return nil, vmerr.PdpiStartupFailed
	}
	c.handles[index] = h
	return h, nil
}

// stopAll is the PDPI teardown step: it forgets every started handle by
// replacing the cache's map, so a later get starts the instance again.
// No stop call is made on the handles themselves; PDFactory offers no
// stop operation. Kept as an explicit step because pdpicache.h always
// pairs a startup with an explicit stop.
func (c *pdpiCache) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = make(map[int]interface{})
}
