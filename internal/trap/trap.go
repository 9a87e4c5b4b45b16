// Package trap is SignalGate: it watches a user thread's
// execution for a touch of protected TLS memory and, if one occurs,
// terminates only the thread that touched it — never the whole process —
// while leaving every unrelated fault to crash exactly as it would have
// without this package installed.
//
// A process-wide sigaction(SIGSEGV/SIGBUS) handler (the source's actual
// mechanism) is not something a Go library can install without fighting
// the runtime's own use of those signals for stack growth and nil-pointer
// panics. The idiomatic Go substitute — and the one used here — is
// runtime/debug.SetPanicOnFault: set per-goroutine, it turns a fault from
// touching unmapped or protected memory into a recoverable *runtime.Error
// satisfying an Addr() method, instead of crashing the process. That is
// exactly the trap this package installs, scoped to the one goroutine
// standing in for a user thread.
package trap

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/bennetttaylor/gosyslab/internal/hostvm"
	"github.com/bennetttaylor/gosyslab/internal/tlsvm"
)

// faultAddr is satisfied by the runtime.Error the Go runtime raises for a
// fault on protected/unmapped memory when SetPanicOnFault is enabled.
type faultAddr interface {
	error
	Addr() uintptr
}

// Outcome reports what Guard observed after running the protected body.
type Outcome int

const (
	// Clean means the body returned normally; no fault occurred.
	Clean Outcome = iota
	// Terminated means a TLS-owned fault occurred and the calling
	// thread must terminate.
	Terminated
)

// Guard runs fn with per-goroutine fault-to-panic conversion enabled,
// exactly as SignalGate runs as the installed handler for the duration
// of a user thread's execution. callerID names the thread executing fn
// purely for diagnostics; Guard always terminates whichever thread's
// execution actually trapped, which is always the caller of Guard, not
// necessarily the owner of the faulting page (see TestGuardResolvesForeignOwner
// for the isolation scenario where the two differ).
//
// If fn panics with a fault whose address resolves to a page owned by
// some Area in reg, Guard logs a diagnostic and returns Terminated: the
// thread must stop, not the process. If fn panics with
// anything else — a fault at an address reg does not own, or an
// ordinary non-fault panic — Guard re-panics the original value
// unchanged, preserving native crash semantics for unrelated faults.
func Guard(callerID tlsvm.Identity, reg *tlsvm.Registry, fn func()) (outcome Outcome) {
	debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(false)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var fa faultAddr
		if err, ok := r.(error); ok && errors.As(err, &fa) {
			aligned := hostvm.AlignDown(fa.Addr())
			if area, owner, pageIdx, found := reg.FindByAddr(aligned); found {
				logrus.WithFields(logrus.Fields{
					"thread": callerID,
					"owner":  owner,
					"page":   pageIdx,
					"addr":   fmt.Sprintf("%#x", aligned),
				}).Warn("tlsvm: segmentation fault in TLS region, terminating thread")
				_ = area
				outcome = Terminated
				return
			}
		}
		// Not a TLS-owned fault (or not a fault at all): restore
		// default behavior by letting the panic continue unwinding.
		panic(r)
	}()

	fn()
	return Clean
}
