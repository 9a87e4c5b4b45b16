package uthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Invariant 9: N threads each performing M mutex-guarded increments on a
// shared counter leave it at exactly N*M, regardless of preemption timing.
func TestMutexExclusionUnderPreemption(t *testing.T) {
	Configure(Options{Quantum: time.Millisecond})

	const threads = 10
	const perThread = 10000

	var mu Mutex
	require.NoError(t, mu.Init())

	counter := 0
	ids := make([]ID, 0, threads)
	for i := 0; i < threads; i++ {
		id, err := Create(func(arg any) any {
			for j := 0; j < perThread; j++ {
				mu.Lock()
				counter++
				mu.Unlock()
				if j%64 == 0 {
					Checkpoint()
				}
			}
			return nil
		}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for _, id := range ids {
		_, err := Join(id)
		require.NoError(t, err)
	}

	require.Equal(t, threads*perThread, counter)
	require.NoError(t, mu.Destroy())
}

func TestMutexDestroyUninitializedErrors(t *testing.T) {
	var mu Mutex
	require.Error(t, mu.Destroy())
}

func TestMutexLockBlocksUntilUnlocked(t *testing.T) {
	Configure(Options{Quantum: time.Millisecond})

	var mu Mutex
	require.NoError(t, mu.Init())
	mu.Lock()

	order := make(chan string, 2)
	id, err := Create(func(arg any) any {
		mu.Lock()
		order <- "second"
		mu.Unlock()
		return nil
	}, nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	order <- "first"
	mu.Unlock()

	_, err = Join(id)
	require.NoError(t, err)
	close(order)

	first := <-order
	second := <-order
	require.Equal(t, "first", first)
	require.Equal(t, "second", second)
}
