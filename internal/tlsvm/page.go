// Package tlsvm implements CoW-TLS: per-thread virtual memory regions
// backed by reference-counted physical pages. It is
// grounded in biscuit/src/mem/mem.go's Refcnt/Refup/Refdown shape
// and biscuit/src/vm/as.go's PTE_COW handling, re-pointed at hostvm's real
// page mappings instead of a software page table.
package tlsvm

import "github.com/bennetttaylor/gosyslab/internal/hostvm"

// Identity names the thread a TLSArea belongs to. It is a plain uint64 so
// this package stays independent of the scheduler's own thread-id type;
// the tls facade package is what binds the two together.
type Identity uint64

// page wraps one hostvm.Page with the refcount that drives copy-on-write.
// The protection invariant is enforced by every caller in this package,
// never by page itself: while refCount > 1 the page's protection is None
// or ReadOnly, and ReadWrite only while refCount == 1 or transiently open
// by the sole owner.
type page struct {
	hp       *hostvm.Page
	refCount int
}

func newPage() (*page, error) {
	hp, err := hostvm.ReservePage()
	if err != nil {
		return nil, err
	}
	return &page{hp: hp, refCount: 1}, nil
}

// shared reports whether more than one TLSArea currently references this
// page. Mutation of refCount is only ever done by the engine's critical
// section (the owning Engine's mutex, see engine.go).
func (p *page) shared() bool {
	return p.refCount > 1
}
