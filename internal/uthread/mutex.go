package uthread

import "github.com/bennetttaylor/gosyslab/internal/errs"

// Mutex implements SyncPrimitives' mutex: a boolean lock guarded by
// masking the preemption signal for each of its own state transitions,
// with the owner making progress the only way a spinning waiter will
// ever see it unlocked. Grounded in
// multithreading/threads.c's pthread_mutex_lock/unlock, which does
// exactly this over sigprocmask(SIG_BLOCK/UNBLOCK, SIGALRM).
type Mutex struct {
	locked      bool
	initialized bool
}

// Init prepares m for use.
func (m *Mutex) Init() error {
	defaultScheduler.withMasked(func() {
		m.locked = false
		m.initialized = true
	})
	return nil
}

// Lock blocks until m is acquired, spinning and yielding between
// attempts.
func (m *Mutex) Lock() {
	for {
		acquired := false
		defaultScheduler.withMasked(func() {
			if m.initialized && !m.locked {
				m.locked = true
				acquired = true
			}
		})
		if acquired {
			return
		}
		defaultScheduler.Yield()
	}
}

// Unlock releases m.
func (m *Mutex) Unlock() {
	defaultScheduler.withMasked(func() {
		m.locked = false
	})
}

// Destroy releases m's state. Destroying an uninitialized mutex is an
// error surface; destroying a held mutex has no defined behavior here
// but must not leak other threads' state, so it simply clears the fields
// under the mask rather than attempting to wake anyone.
func (m *Mutex) Destroy() error {
	var wasInit bool
	defaultScheduler.withMasked(func() {
		wasInit = m.initialized
		m.locked = false
		m.initialized = false
	})
	if !wasInit {
		return errs.New(errs.InvalidArg, "uthread: destroy of uninitialized mutex")
	}
	return nil
}
