// Package hostvm is the thinnest layer of the core: it reserves and
// releases single page-aligned anonymous mappings and changes their
// protection. Every other core package builds on top of it and nothing
// below it is allowed to fail softly — a stuck protection breaks every
// CoW-TLS invariant, so SetAccess is fatal on error.
//
// Grounded on biscuit/src/mem/mem.go's PGSHIFT/PGSIZE/PGOFFSET constants
// and Physpg_t refcount bookkeeping style, re-pointed at a real POSIX host
// via golang.org/x/sys/unix instead of a page-table walker.
package hostvm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bennetttaylor/gosyslab/internal/errs"
)

// Access enumerates the three protection levels the documented design allows.
type Access int

const (
	// None denies all access; pages start here.
	None Access = iota
	// ReadOnly permits loads.
	ReadOnly
	// ReadWrite permits loads and stores.
	ReadWrite
)

func (a Access) prot() int {
	switch a {
	case None:
		return unix.PROT_NONE
	case ReadOnly:
		return unix.PROT_READ
	case ReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	default:
		panic(fmt.Sprintf("hostvm: bad access level %d", a))
	}
}

func (a Access) String() string {
	switch a {
	case None:
		return "none"
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	default:
		return "invalid"
	}
}

// PageSize is the host's page size. It is read once at process start
// and treated as an opaque constant (mem.PGSIZE's role) rather than
// re-queried per call.
var PageSize = unix.Getpagesize()

// Page is one anonymous, private mapping of exactly PageSize bytes,
// initially unreadable and unwritable. It is the Go analogue
// of biscuit's Physpg_t, minus the physical-address indirection: here the
// mapping's virtual address *is* its only identity, since there is no
// kernel page table to hide behind.
type Page struct {
	mem    []byte
	access Access
	freed  bool
}

// ReservePage maps a fresh, unreadable page. It fails only if the host
// refuses the mapping.
func ReservePage() (*Page, error) {
	mem, err := unix.Mmap(-1, 0, PageSize, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errs.New(errs.Exhausted, "hostvm: mmap failed: %v", err)
	}
	return &Page{mem: mem, access: None}, nil
}

// Addr returns the page's base address, used only as a lookup key (e.g.
// by SignalGate to align a fault address down to its owning page) and
// never dereferenced directly outside this package.
func (p *Page) Addr() uintptr {
	return uintptr(unsafe.Pointer(&p.mem[0]))
}

// AlignDown rounds addr down to the start of its containing page, the
// first step SignalGate performs on a faulting address (step 1).
func AlignDown(addr uintptr) uintptr {
	mask := uintptr(PageSize - 1)
	return addr &^ mask
}

// Bytes exposes the page's backing memory. Callers outside this package
// are expected to respect the access level returned by Access() — this
// package does not re-check protection on every byte access: whoever
// asks for the slice has already proved it owns the page.
func (p *Page) Bytes() []byte {
	return p.mem
}

// Access reports the page's last-set protection.
func (p *Page) Access() Access {
	return p.access
}

// SetAccess changes the page's protection. Failure here is fatal: a
// mapping stuck in the wrong protection state breaks every refcount/CoW
// invariant layered on top, so there is no sensible way to recover and
// continue.
func (p *Page) SetAccess(a Access) {
	if err := unix.Mprotect(p.mem, a.prot()); err != nil {
		errs.Fatal("hostvm: mprotect(%s) failed at %#x: %v", a, p.Addr(), err)
	}
	p.access = a
}

// Release unmaps a page previously returned by ReservePage. Releasing an
// already-released page panics: the caller's refcounting is the only
// thing protecting against a double release, and a silent no-op would
// just hide the bug.
func (p *Page) Release() error {
	if p.freed {
		panic("hostvm: double release of page")
	}
	p.freed = true
	return unix.Munmap(p.mem)
}
