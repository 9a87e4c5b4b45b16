package tlsvm

import "github.com/bennetttaylor/gosyslab/internal/errs"

// MaxAreas is the process-wide cap on live TLSAreas.
const MaxAreas = 128

// Registry is the process-wide bounded table of TLSAreas:
// a fixed array of MaxAreas slots, looked up by Identity with a linear
// scan, new entries placed at the lowest free index so tests are
// deterministic.
//
// No internal locking is used: the TLS API's concurrency model guarantees
// it is only ever called by the currently scheduled user thread,
// and the scheduler never interleaves two TLS calls. Engine serializes
// its own operations on a Registry with its mutex; code that uses a
// Registry directly (FindByAddr, Lookup) does not take that mutex.
type Registry struct {
	slots [MaxAreas]*Area
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// find returns the slot index owned by id, or -1.
func (r *Registry) find(id Identity) int {
	for i, a := range r.slots {
		if a != nil && a.owner == id {
			return i
		}
	}
	return -1
}

// firstFree returns the lowest free slot index, or -1 if full.
func (r *Registry) firstFree() int {
	for i, a := range r.slots {
		if a == nil {
			return i
		}
	}
	return -1
}

// Lookup returns the Area registered for id, if any.
func (r *Registry) Lookup(id Identity) (*Area, bool) {
	i := r.find(id)
	if i < 0 {
		return nil, false
	}
	return r.slots[i], true
}

// insert places area in the lowest free slot. It requires the caller
// already checked that id has no existing Area (errs.Exists) and that a
// slot is free (errs.Exhausted).
func (r *Registry) insert(area *Area) error {
	if _, ok := r.Lookup(area.owner); ok {
		return errs.New(errs.Exists, "tlsvm: area already registered for %d", area.owner)
	}
	slot := r.firstFree()
	if slot < 0 {
		return errs.New(errs.Exhausted, "tlsvm: registry full at %d areas", MaxAreas)
	}
	r.slots[slot] = area
	return nil
}

// remove clears the slot owned by id.
func (r *Registry) remove(id Identity) {
	if i := r.find(id); i >= 0 {
		r.slots[i] = nil
	}
}

// FindByAddr scans every live area for one owning a page at addr, the
// operation SignalGate performs on every fault. It returns the owning
// Area, its owner identity, and the page index.
func (r *Registry) FindByAddr(addr uintptr) (area *Area, owner Identity, pageIdx int, found bool) {
	for _, a := range r.slots {
		if a == nil {
			continue
		}
		if idx, ok := a.ContainsAddr(addr); ok {
			return a, a.owner, idx, true
		}
	}
	return nil, 0, 0, false
}

// Count returns the number of live areas, used by tests exercising the
// MaxAreas-success/1-failure registry boundary (invariant 6).
func (r *Registry) Count() int {
	n := 0
	for _, a := range r.slots {
		if a != nil {
			n++
		}
	}
	return n
}
