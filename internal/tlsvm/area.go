package tlsvm

import "github.com/bennetttaylor/gosyslab/internal/hostvm"

// Area is one thread's byte-addressable TLS region: a declared size and
// an ordered sequence of page references of length ceil(size/pagesize).
// The same *page may appear in many Areas (sharing after clone) but at
// most once within a given Area.
type Area struct {
	owner Identity
	size  uint
	pages []*page
}

func pageCount(size uint) int {
	ps := uint(hostvm.PageSize)
	return int((size + ps - 1) / ps)
}

func (a *Area) pageIndex(offset uint) (pageNum int, pageOff uint) {
	ps := uint(hostvm.PageSize)
	return int(offset / ps), offset % ps
}

// Size returns the area's declared byte size.
func (a *Area) Size() uint { return a.size }

// PageCount returns the number of pages backing the area.
func (a *Area) PageCount() int { return len(a.pages) }

// RefcountAt returns the refcount of the page backing byte offset off,
// exposed for the refcount-soundness property test (invariant 2).
func (a *Area) RefcountAt(off uint) int {
	n, _ := a.pageIndex(off)
	return a.pages[n].refCount
}

// RawBytes exposes page pageIdx's backing memory directly, bypassing
// Engine.Read/Write's transient protection dance entirely. It exists so
// callers (and tests) can reproduce a thread touching its region with a
// raw pointer, which must fault, since pages sit at None protection
// except during the brief window Engine opens them.
func (a *Area) RawBytes(pageIdx int) []byte {
	return a.pages[pageIdx].hp.Bytes()
}

// RawAddr returns the base address of page pageIdx, for tests that need
// to assert which address a fault resolved to.
func (a *Area) RawAddr(pageIdx int) uintptr {
	return a.pages[pageIdx].hp.Addr()
}

// ContainsAddr reports whether addr falls within one of this area's
// pages, and if so returns the page's index. This is the operation
// SignalGate's trap handler performs against every registered Area.
func (a *Area) ContainsAddr(addr uintptr) (pageIdx int, ok bool) {
	aligned := hostvm.AlignDown(addr)
	for i, p := range a.pages {
		if p.hp.Addr() == aligned {
			return i, true
		}
	}
	return 0, false
}
