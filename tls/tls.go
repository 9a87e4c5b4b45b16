// Package tls is CoW-TLS's external interface: per-thread
// scratch memory, created/destroyed/read/written/cloned by the calling
// thread's own identity, with copy-on-write sharing across Clone.
//
// This package binds internal/tlsvm's CoWEngine to internal/uthread's
// thread identities: every operation is keyed by uthread.Self(), and
// every operation runs under internal/trap.Guard, so a fault on protected
// TLS memory raised during one of these calls is converted into the
// calling thread's termination rather than crashing the process. Only
// these calls are guarded: a thread body that touches TLS memory with a
// raw pointer (for example via tlsvm.Area.RawBytes) outside them runs
// without Guard, and its fault is not caught by this package.
package tls

import (
	"github.com/bennetttaylor/gosyslab/internal/errs"
	"github.com/bennetttaylor/gosyslab/internal/tlsvm"
	"github.com/bennetttaylor/gosyslab/internal/trap"
	internaluthread "github.com/bennetttaylor/gosyslab/internal/uthread"
	"github.com/bennetttaylor/gosyslab/uthread"
)

var engine = tlsvm.NewEngine()

func selfID() tlsvm.Identity {
	return tlsvm.Identity(internaluthread.Self())
}

// guarded runs fn under SignalGate for the calling thread, translating a
// Terminated outcome into the same consequence exit_thread's caller sees:
// the thread stops, via uthread.Exit, instead of returning to its caller:
// the calling thread transitions its own TCB to Exited and invokes the
// scheduler.
func guarded(fn func()) {
	id := selfID()
	if trap.Guard(id, engine.Registry(), fn) == trap.Terminated {
		internaluthread.Exit(nil)
	}
}

// Create implements tls_create: allocates size bytes of
// thread-local scratch for the calling thread.
func Create(size uint) (err error) {
	guarded(func() {
		err = engine.Create(selfID(), size)
	})
	return err
}

// Destroy implements tls_destroy: releases the calling
// thread's area.
func Destroy() (err error) {
	guarded(func() {
		err = engine.Destroy(selfID())
	})
	return err
}

// Read implements tls_read: copies length bytes starting at
// offset from the calling thread's area into out.
func Read(offset, length uint, out []byte) (err error) {
	if uint(len(out)) < length {
		return errs.New(errs.InvalidArg, "tls: out buffer shorter than length")
	}
	guarded(func() {
		err = engine.Read(selfID(), offset, length, out)
	})
	return err
}

// Write implements tls_write: copies length bytes from in into
// the calling thread's area starting at offset, triggering copy-on-write
// if the underlying pages are still shared with a clone.
func Write(offset, length uint, in []byte) (err error) {
	if uint(len(in)) < length {
		return errs.New(errs.InvalidArg, "tls: in buffer shorter than length")
	}
	guarded(func() {
		err = engine.Write(selfID(), offset, length, in)
	})
	return err
}

// Clone implements tls_clone: gives the calling thread its own
// area aliasing donor's pages, deferring any copy to the first write on
// either side.
func Clone(donor uthread.ID) (err error) {
	guarded(func() {
		err = engine.Clone(selfID(), tlsvm.Identity(donor))
	})
	return err
}
