package uthread

import "github.com/bennetttaylor/gosyslab/internal/errs"

// Barrier implements SyncPrimitives' reusable barrier. Reuse is driven
// by the generation_exited flag rather than a release-epoch counter, by
// design: once released, the next arrival observes generation_exited ==
// true and clears arrivals for a fresh generation.
//
// Unlike the source (multithreading/threads.c's pthread_barrier_wait,
// whose non-serial wait loop condition is unreachable), non-winners
// here actually spin-yield until arrivals reach the limit: this module
// implements the stricter of the two plausible readings.
type Barrier struct {
	limit       int
	arrivals    int
	exited      bool
	initialized bool
}

// Init prepares b to gather count arrivals per generation.
func (b *Barrier) Init(count int) error {
	if count == 0 {
		return errs.New(errs.InvalidArg, "uthread: barrier count must be > 0")
	}
	defaultScheduler.withMasked(func() {
		b.limit = count
		b.arrivals = 0
		b.exited = false
		b.initialized = true
	})
	return nil
}

// Destroy releases b's state.
func (b *Barrier) Destroy() error {
	var wasInit bool
	defaultScheduler.withMasked(func() {
		wasInit = b.initialized
		b.limit, b.arrivals = 0, 0
		b.exited = true
		b.initialized = false
	})
	if !wasInit {
		return errs.New(errs.InvalidArg, "uthread: destroy of uninitialized barrier")
	}
	return nil
}

// Wait blocks until limit arrivals have been observed for the current
// generation, then returns true to exactly one caller per generation
// (the serial sentinel, ) and false to the rest. A fresh
// generation begins automatically on the first arrival after the
// previous one released.
func (b *Barrier) Wait() bool {
	sched := defaultScheduler
	winner := false

	sched.withMasked(func() {
		if b.exited {
			b.arrivals = 0
			b.exited = false
		}
		b.arrivals++
		if b.arrivals >= b.limit {
			winner = true
		}
	})

	if !winner {
		for {
			reached := false
			sched.withMasked(func() {
				reached = b.arrivals >= b.limit
			})
			if reached {
				break
			}
			sched.Yield()
		}
	}

	sched.withMasked(func() {
		b.exited = true
	})

	return winner
}
