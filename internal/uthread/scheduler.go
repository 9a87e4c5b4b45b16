package uthread

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bennetttaylor/gosyslab/internal/errs"
)

// DefaultQuantum is the preemption period names as the default
// (50ms), standing in for ualarm(QUANTUM, QUANTUM) in
// multithreading/threads.c.
const DefaultQuantum = 50 * time.Millisecond

// Options configures a Scheduler. The zero value is its default
// behavior: a 50ms real ticker driving preemption.
type Options struct {
	// Quantum overrides DefaultQuantum. Ignored if Manual is true.
	Quantum time.Duration
	// Manual disables the real-time ticker; preemption ticks only occur
	// when the test (or caller) invokes Scheduler.Tick() explicitly.
	// [EXPANSION] added so invariant 8 (scheduler liveness) and
	// invariant 9 (mutex exclusion) are testable without depending on
	// wall-clock scheduling.
	Manual bool
}

// Scheduler is the Scheduler + ThreadTable components
// combined: it owns the circular TCB list, the running cursor, and the
// preemption ticker, and exposes the masking primitive SyncPrimitives is
// built on.
type Scheduler struct {
	mu  sync.Mutex
	cur *tcb
	// byID supports O(1) Join/lookup; the circular next/prev links are
	// still the ThreadTable's real structure, walked by schedule().
	byID   map[ID]*tcb
	nextID uint64
	live   int // Ready+Running threads, for the liveness-stop check

	masked           int32 // atomic: >0 while a SyncPrimitives critical section holds the "alarm"
	preemptRequested int32 // atomic: set by the ticker, consumed by Checkpoint

	quantum time.Duration
	manual  bool
	ticker  *time.Ticker
	stopCh  chan struct{}

	initOnce sync.Once
}

func newScheduler(opts Options) *Scheduler {
	q := opts.Quantum
	if q <= 0 {
		q = DefaultQuantum
	}
	return &Scheduler{
		byID:    make(map[ID]*tcb),
		quantum: q,
		manual:  opts.Manual,
		stopCh:  make(chan struct{}),
	}
}

// defaultScheduler is the process-wide singleton design note
// calls for ("re-architect as a singleton owned by an initialization
// routine, guarded by the same mechanism that already establishes
// critical sections"): callers only ever see IDs and the exported
// Create/Exit/Join/Self/Mutex/Barrier API in api.go, never a raw TCB
// pointer.
var defaultScheduler = newScheduler(Options{})

// Configure replaces the default scheduler's tuning. It must be called
// before the first thread is created; it exists for tests that need
// Options.Manual and is not part of its external interface.
func Configure(opts Options) {
	defaultScheduler = newScheduler(opts)
}

// ensureInit lazily binds TCB 0 to whichever goroutine first touches the
// scheduler, mirroring the source's `is_first_call` one-time
// initialization in both pthread_create and tls_create.
func (s *Scheduler) ensureInit() *tcb {
	s.initOnce.Do(func() {
		main := newTCB(ID(s.nextID))
		s.nextID++
		main.status = statusRunning
		main.next, main.prev = main, main
		s.cur = main
		s.byID[main.id] = main
		s.live = 1
		if !s.manual {
			s.startTicker()
		}
	})
	s.mu.Lock()
	cur := s.cur
	s.mu.Unlock()
	return cur
}

func (s *Scheduler) startTicker() {
	s.ticker = time.NewTicker(s.quantum)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				if atomic.LoadInt32(&s.masked) == 0 {
					atomic.StoreInt32(&s.preemptRequested, 1)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *Scheduler) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stopCh)
	}
}

// Create implements create_thread:
// allocates a TCB, links it into the circular list just before the
// running cursor, and parks a fresh goroutine until the scheduler grants
// it the baton — the Go substitute for preparing a stack whose top frame
// returns into a trampoline.
func (s *Scheduler) Create(start func(arg any) any, arg any) (ID, error) {
	s.ensureInit()

	s.mu.Lock()
	if s.live >= MaxThreads {
		s.mu.Unlock()
		return 0, errs.New(errs.Exhausted, "uthread: %d threads already live", MaxThreads)
	}
	id := ID(s.nextID)
	s.nextID++
	t := newTCB(id)
	t.status = statusReady

	// Link just before the running cursor.
	t.next = s.cur
	t.prev = s.cur.prev
	s.cur.prev.next = t
	s.cur.prev = t

	s.byID[id] = t
	s.live++
	s.mu.Unlock()

	go func() {
		t.park()
		ret := runGuarded(start, arg)
		s.finish(t, ret)
	}()

	return id, nil
}

// runGuarded invokes start and recovers an explicit Exit() unwind,
// treating it as the thread's return value rather than letting the
// panic propagate. This is the idiomatic-Go substitute for
// exit_thread's "never returns": Exit always unwinds to here via panic,
// exactly as the source always eventually reaches pthread_exit.
func runGuarded(start func(arg any) any, arg any) (ret any) {
	defer func() {
		if r := recover(); r != nil {
			if ep, ok := r.(exitSignal); ok {
				ret = ep.ret
				return
			}
			panic(r)
		}
	}()
	return start(arg)
}

type exitSignal struct{ ret any }

// finish implements the tail of exit_thread: marks
// Exited, stores the return value, then yields. If no Ready threads
// remain, it stops the ticker — the substitute for "stop the alarm and
// terminate the process," scoped to this library instead of the whole
// process since a Go program may have other work underway.
func (s *Scheduler) finish(t *tcb, ret any) {
	s.mu.Lock()
	t.status = statusExited
	t.retval = ret
	s.live--
	stop := s.live == 0
	s.mu.Unlock()

	if stop {
		s.stopTicker()
	}
	s.schedule(t)
}

// schedule is the scheduler's per-tick procedure: mark the
// calling thread Ready (unless Exited), advance the circular cursor
// skipping non-Ready TCBs, bail out if a full revolution finds none, and
// hand the baton to whichever TCB is chosen. It always runs on behalf of
// the TCB that is actually executing Go code at the moment of the call —
// there is no other way to "snapshot" a goroutine's state than to let it
// park itself.
func (s *Scheduler) schedule(self *tcb) {
	s.mu.Lock()
	if self.status != statusExited {
		self.status = statusReady
	}

	next := self.next
	found := false
	for i := 0; i < MaxThreads+1; i++ {
		if next.status == statusReady {
			found = true
			break
		}
		if next == self {
			break
		}
		next = next.next
	}

	if !found {
		// Bail out: no Ready TCB found in a full revolution. If self
		// itself isn't Exited, it just keeps running (matches the
		// source's schedule(), which falls through and returns to the
		// caller when no other thread is ready).
		if self.status != statusExited {
			self.status = statusRunning
			s.cur = self
			s.mu.Unlock()
			return
		}
		// self is Exited and nobody else is Ready: nothing left to run.
		s.mu.Unlock()
		return
	}

	next.status = statusRunning
	s.cur = next
	s.mu.Unlock()

	if next == self {
		// Only one Ready thread and it's us: no handoff needed.
		return
	}

	next.wake()
	if self.status != statusExited {
		self.park()
	}
}

// Self returns the id of the currently running thread (// "Self-identity").
func (s *Scheduler) Self() ID {
	s.ensureInit()
	s.mu.Lock()
	id := s.cur.id
	s.mu.Unlock()
	return id
}

// currentTCB returns the TCB backing the calling goroutine. Since only
// the baton holder ever calls into the scheduler, s.cur is always that
// goroutine's own TCB.
func (s *Scheduler) currentTCB() *tcb {
	s.ensureInit()
	s.mu.Lock()
	t := s.cur
	s.mu.Unlock()
	return t
}

// Yield is the unconditional cooperative handoff used explicitly by
// uthread.Yield() and internally by Mutex/Barrier spin loops: spinning and
// yielding works because yielding is the only way the owner will make
// progress on a single OS thread.
func (s *Scheduler) Yield() {
	t := s.currentTCB()
	s.schedule(t)
}

// Checkpoint consumes a pending preemption request, if any, and yields.
// Thread bodies are expected to call this periodically at loop
// boundaries — the Go-idiomatic safe point a timer-driven preemption
// tick can actually act on, since nothing in this package can interrupt
// a goroutine mid-instruction: the preemption guarantee is preserved by
// these periodic, timer-driven yield points instead.
func (s *Scheduler) Checkpoint() {
	if atomic.CompareAndSwapInt32(&s.preemptRequested, 1, 0) {
		s.Yield()
	}
}

// Tick forces a preemption request, for Options.Manual schedulers. It is
// the test-facing substitute for a real alarm firing.
func (s *Scheduler) Tick() {
	s.ensureInit()
	atomic.StoreInt32(&s.preemptRequested, 1)
}

// withMasked implements "blocks the preemption signal for their
// duration": fn runs with preemption ticks suppressed, the
// direct equivalent of sigprocmask(SIG_BLOCK, SIGALRM)/unblock around a
// Mutex/Barrier's own state transitions.
func (s *Scheduler) withMasked(fn func()) {
	atomic.AddInt32(&s.masked, 1)
	defer atomic.AddInt32(&s.masked, -1)
	fn()
}

// Join implements join_thread: locate the TCB by id,
// spin-yield while it is not Exited, then publish its return value and
// release its bookkeeping. Joining a nonexistent id returns NotFound
// rather than corrupting state.
func (s *Scheduler) Join(id ID) (any, error) {
	s.ensureInit()

	s.mu.Lock()
	t, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.NotFound, "uthread: no thread %d", id)
	}

	for {
		s.mu.Lock()
		exited := t.status == statusExited
		s.mu.Unlock()
		if exited {
			break
		}
		s.Yield()
	}

	s.mu.Lock()
	ret := t.retval
	// Unlink from the ring and drop the lookup entry: the stack/TCB is
	// "released" in the sense that nothing can reach it again.
	t.prev.next = t.next
	t.next.prev = t.prev
	delete(s.byID, id)
	s.mu.Unlock()

	return ret, nil
}

