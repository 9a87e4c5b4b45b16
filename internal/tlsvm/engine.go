package tlsvm

import (
	"sync"

	"github.com/bennetttaylor/gosyslab/internal/errs"
	"github.com/bennetttaylor/gosyslab/internal/hostvm"
)

// Engine is CoWEngine: the read/write/clone logic that
// enforces page protection and refcount-based copy-on-write over a
// Registry. All five operations are linear scans over fixed-size tables,
// exactly as the source does, and are serialized by a single mutex: the
// refcount is managed inside the Engine's own critical section, the same
// way the source guards its pointer-heavy refcounted pages.
type Engine struct {
	mu  sync.Mutex
	reg *Registry
}

// NewEngine returns an Engine over a fresh Registry.
func NewEngine() *Engine {
	return &Engine{reg: NewRegistry()}
}

// Registry exposes the underlying table, primarily for SignalGate's fault
// lookup (internal/trap) and for tests asserting on registry occupancy.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Create implements tls_create: requires size > 0,
// no existing Area for id, and a free registry slot. Reserves
// ceil(size/pagesize) fresh pages, each ref_count 1 and protection None.
// No partial areas are left behind on failure.
func (e *Engine) Create(id Identity, size uint) error {
	if size == 0 {
		return errs.New(errs.InvalidArg, "tlsvm: create requires size > 0")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reg.Lookup(id); ok {
		return errs.New(errs.Exists, "tlsvm: area already exists for %d", id)
	}
	if e.reg.Count() >= MaxAreas {
		return errs.New(errs.Exhausted, "tlsvm: registry full at %d areas", MaxAreas)
	}

	n := pageCount(size)
	pages := make([]*page, 0, n)
	for i := 0; i < n; i++ {
		p, err := newPage()
		if err != nil {
			// Unwind any pages already reserved for this area so a
			// failed create never leaks a partial area.
			for _, done := range pages {
				done.hp.Release()
			}
			return err
		}
		pages = append(pages, p)
	}

	area := &Area{owner: id, size: size, pages: pages}
	if err := e.reg.insert(area); err != nil {
		for _, p := range pages {
			p.hp.Release()
		}
		return err
	}
	return nil
}

// Destroy implements tls_destroy: requires a
// registered Area for id. For each page, decrements its refcount if
// shared, else releases it via hostvm. Then removes the Area.
func (e *Engine) Destroy(id Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	area, ok := e.reg.Lookup(id)
	if !ok {
		return errs.New(errs.NotFound, "tlsvm: no area for %d", id)
	}
	for _, p := range area.pages {
		if p.shared() {
			p.refCount--
		} else {
			p.hp.Release()
		}
	}
	e.reg.remove(id)
	return nil
}

// Read implements tls_read: requires offset+length <=
// size. Per byte, transiently promotes the containing page to ReadOnly
// (the stricter reading of the source's unnecessarily-broad ReadWrite
// promotion, per open question OQ-2), copies the byte out, and
// restores None. Reading a shared page never changes its refcount or
// triggers copy-on-write.
func (e *Engine) Read(id Identity, offset, length uint, out []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	area, ok := e.reg.Lookup(id)
	if !ok {
		return errs.New(errs.NotFound, "tlsvm: no area for %d", id)
	}
	if offset+length > area.size {
		return errs.New(errs.InvalidArg, "tlsvm: read [%d,%d) exceeds size %d", offset, offset+length, area.size)
	}
	for i := uint(0); i < length; i++ {
		pn, poff := area.pageIndex(offset + i)
		p := area.pages[pn]
		p.hp.SetAccess(hostvm.ReadOnly)
		out[i] = p.hp.Bytes()[poff]
		p.hp.SetAccess(hostvm.None)
	}
	return nil
}

// Write implements tls_write. Requires offset+length
// <= size. For each byte: if the containing page is not shared, write it
// in place under a transient ReadWrite promotion. If it is shared,
// perform copy-on-write first — reserve a fresh page, copy the shared
// page's contents into it while the shared page is briefly readable,
// downgrade the shared page permanently to ReadOnly (it still belongs to
// its other holders), decrement its refcount, substitute the fresh page
// into this Area at the same index with refCount 1, and only then store
// the byte.
func (e *Engine) Write(id Identity, offset, length uint, in []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	area, ok := e.reg.Lookup(id)
	if !ok {
		return errs.New(errs.NotFound, "tlsvm: no area for %d", id)
	}
	if offset+length > area.size {
		return errs.New(errs.InvalidArg, "tlsvm: write [%d,%d) exceeds size %d", offset, offset+length, area.size)
	}
	for i := uint(0); i < length; i++ {
		pn, poff := area.pageIndex(offset + i)
		p := area.pages[pn]

		if p.shared() {
			fresh, err := newPage()
			if err != nil {
				return err
			}
			fresh.hp.SetAccess(hostvm.ReadWrite)

			p.hp.SetAccess(hostvm.ReadOnly)
			copy(fresh.hp.Bytes(), p.hp.Bytes())
			// p stays ReadOnly: it still belongs to its other holders
			// and the downgrade is permanent.

			p.refCount--
			area.pages[pn] = fresh
			p = fresh
		}

		p.hp.SetAccess(hostvm.ReadWrite)
		p.hp.Bytes()[poff] = in[i]
		p.hp.SetAccess(hostvm.None)
	}
	return nil
}

// Clone implements tls_clone: requires no existing
// Area for id, a registered Area for donor, and a free registry slot.
// Creates a new Area of the same size whose page slots alias the donor's
// pages with incremented refcounts. No content is copied now; copying is
// deferred to the first write on each page on either side.
func (e *Engine) Clone(id Identity, donor Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reg.Lookup(id); ok {
		return errs.New(errs.Exists, "tlsvm: area already exists for %d", id)
	}
	donorArea, ok := e.reg.Lookup(donor)
	if !ok {
		return errs.New(errs.NotFound, "tlsvm: no area for donor %d", donor)
	}
	if e.reg.Count() >= MaxAreas {
		return errs.New(errs.Exhausted, "tlsvm: registry full at %d areas", MaxAreas)
	}

	pages := make([]*page, len(donorArea.pages))
	for i, p := range donorArea.pages {
		p.refCount++
		pages[i] = p
	}

	area := &Area{owner: id, size: donorArea.size, pages: pages}
	return e.reg.insert(area)
}
