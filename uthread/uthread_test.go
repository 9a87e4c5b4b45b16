package uthread

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFacadeCreateJoin(t *testing.T) {
	id, err := Create(func(arg any) any {
		return arg.(int) * 2
	}, 21)
	require.NoError(t, err)

	ret, err := Join(id)
	require.NoError(t, err)
	require.Equal(t, 42, ret)
}

func TestFacadeMutexExclusion(t *testing.T) {
	var mu Mutex
	require.NoError(t, mu.Init())

	counter := 0
	const n = 20
	ids := make([]ID, 0, n)
	for i := 0; i < n; i++ {
		id, err := Create(func(arg any) any {
			mu.Lock()
			counter++
			mu.Unlock()
			return nil
		}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		_, err := Join(id)
		require.NoError(t, err)
	}
	require.Equal(t, n, counter)
}

func TestFacadeBarrierSingleWinner(t *testing.T) {
	var b Barrier
	require.NoError(t, b.Init(4))

	winners := make(chan bool, 4)
	ids := make([]ID, 0, 4)
	for i := 0; i < 4; i++ {
		id, err := Create(func(arg any) any {
			winners <- b.Wait()
			return nil
		}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		_, err := Join(id)
		require.NoError(t, err)
	}
	close(winners)

	count := 0
	for w := range winners {
		if w {
			count++
		}
	}
	require.Equal(t, 1, count)
}
