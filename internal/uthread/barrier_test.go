package uthread

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Invariant 7: exactly one arrival per generation observes Wait() == true.
func TestBarrierExactlyOneWinnerPerGeneration(t *testing.T) {
	Configure(Options{Quantum: time.Millisecond})

	const n = 5
	var b Barrier
	require.NoError(t, b.Init(n))

	var winners int32
	ids := make([]ID, 0, n)
	for i := 0; i < n; i++ {
		id, err := Create(func(arg any) any {
			if b.Wait() {
				atomic.AddInt32(&winners, 1)
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

	require.Equal(t, int32(1), atomic.LoadInt32(&winners))
}

// S5: a barrier of 5 releases one generation, is destroyed and
// reinitialized for 4, and the second generation also releases exactly
// one winner.
func TestBarrierReinitWithDifferentCount(t *testing.T) {
	Configure(Options{Quantum: time.Millisecond})

	var b Barrier
	require.NoError(t, b.Init(5))

	var firstWinners int32
	ids := make([]ID, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := Create(func(arg any) any {
			if b.Wait() {
				atomic.AddInt32(&firstWinners, 1)
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
	require.Equal(t, int32(1), firstWinners)

	require.NoError(t, b.Destroy())
	require.NoError(t, b.Init(4))

	var secondWinners int32
	ids = ids[:0]
	for i := 0; i < 4; i++ {
		id, err := Create(func(arg any) any {
			if b.Wait() {
				atomic.AddInt32(&secondWinners, 1)
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
	require.Equal(t, int32(1), secondWinners)
}

func TestBarrierInitRejectsZeroCount(t *testing.T) {
	var b Barrier
	require.Error(t, b.Init(0))
}

func TestBarrierDestroyUninitializedErrors(t *testing.T) {
	var b Barrier
	require.Error(t, b.Destroy())
}
