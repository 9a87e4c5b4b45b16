package uthread

// Create implements create_thread: start runs on a new
// goroutine once the scheduler grants it the baton, receiving arg, and
// its return value becomes available to Join.
func Create(start func(arg any) any, arg any) (ID, error) {
	return defaultScheduler.Create(start, arg)
}

// Exit implements exit_thread: it never returns to its caller.
// Internally this unwinds the calling goroutine via panic/recover back
// to the point Create parked it at, the Go substitute for "falls off
// implicitly" / jumping straight to the thread-exit trampoline.
func Exit(ret any) {
	panic(exitSignal{ret: ret})
}

// Join implements join_thread.
func Join(id ID) (any, error) {
	return defaultScheduler.Join(id)
}

// Self implements self_thread_id.
func Self() ID {
	return defaultScheduler.Self()
}

// Yield voluntarily hands the baton to the next Ready thread. It is the
// direct analogue of the source's schedule(0) calls from inside
// lock/barrier wait loops, exported here for thread bodies that want to
// cooperate without going through a primitive.
func Yield() {
	defaultScheduler.Yield()
}

// Checkpoint honors a pending preemption request, if any — a periodic
// alarm tick, realized as a cooperative safe point (see the package doc
// on tcb.go). Thread bodies performing CPU-bound work with no natural
// yield points should call this periodically so the scheduler's
// liveness guarantee actually holds.
func Checkpoint() {
	defaultScheduler.Checkpoint()
}

// Tick forces a preemption request; only meaningful when the scheduler
// was configured with Options.Manual (see Configure). It exists for
// deterministic tests of scheduler liveness and mutex exclusion.
func Tick() {
	defaultScheduler.Tick()
}
