// Package uthread is UserThreads' external interface: a fixed
// population of cooperative, baton-scheduled goroutines together with the
// Mutex and Barrier primitives that coordinate them. It is a thin
// re-export of internal/uthread, which carries the actual TCB table,
// scheduler, and synchronization state; this package exists so the
// public surface matches the module's own public boundary while the scheduler's
// singleton and its test-only Configure/Tick hooks stay unexported from
// anything outside this module.
package uthread

import internaluthread "github.com/bennetttaylor/gosyslab/internal/uthread"

// ID identifies a live thread, the Go analogue of a pthread_t.
type ID = internaluthread.ID

// Create implements create_thread: start runs on its own
// goroutine once scheduled, receiving arg, and its return value becomes
// available to Join.
func Create(start func(arg any) any, arg any) (ID, error) {
	return internaluthread.Create(start, arg)
}

// Exit implements exit_thread: never returns to its caller.
func Exit(ret any) {
	internaluthread.Exit(ret)
}

// Join implements join_thread.
func Join(id ID) (any, error) {
	return internaluthread.Join(id)
}

// Self implements self_thread_id.
func Self() ID {
	return internaluthread.Self()
}

// Yield voluntarily hands off to the next ready thread.
func Yield() {
	internaluthread.Yield()
}

// Checkpoint honors a pending preemption request at a safe point.
func Checkpoint() {
	internaluthread.Checkpoint()
}

// Mutex implements SyncPrimitives' mutex.
type Mutex = internaluthread.Mutex

// Barrier implements SyncPrimitives' reusable barrier.
type Barrier = internaluthread.Barrier
