package tlsvm

import (
	"testing"

	"github.com/bennetttaylor/gosyslab/internal/hostvm"
	"github.com/stretchr/testify/require"
)

// S1: tls_create(100), tls_write(0,5,"hello"), tls_read(0,5,buf) => "hello".
func TestRoundTripWriteThenRead(t *testing.T) {
	e := NewEngine()
	const tid Identity = 1
	require.NoError(t, e.Create(tid, 100))
	defer e.Destroy(tid)

	require.NoError(t, e.Write(tid, 0, 5, []byte("hello")))
	buf := make([]byte, 5)
	require.NoError(t, e.Read(tid, 0, 5, buf))
	require.Equal(t, "hello", string(buf))
}

// S2: clone sharing then divergent writes leave each side's own bytes
// intact and never leak across.
func TestCloneThenDivergentWrites(t *testing.T) {
	e := NewEngine()
	const a, b Identity = 1, 2
	ps := uint(hostvm.PageSize)

	require.NoError(t, e.Create(a, ps*2))
	require.NoError(t, e.Write(a, 0, 1, []byte("A")))
	require.NoError(t, e.Write(a, ps, 1, []byte("A")))

	require.NoError(t, e.Clone(b, a))
	require.NoError(t, e.Write(b, 0, 1, []byte("B")))

	abuf, bbuf := make([]byte, 1), make([]byte, 1)

	require.NoError(t, e.Read(a, 0, 1, abuf))
	require.Equal(t, "A", string(abuf))

	require.NoError(t, e.Read(b, 0, 1, bbuf))
	require.Equal(t, "B", string(bbuf))

	require.NoError(t, e.Read(a, ps, 1, abuf))
	require.Equal(t, "A", string(abuf))

	require.NoError(t, e.Read(b, ps, 1, bbuf))
	require.Equal(t, "A", string(bbuf))
}

// Invariant 3: reads through a clone return identical bytes until a write
// diverges them.
func TestReadThroughCoWBeforeWrite(t *testing.T) {
	e := NewEngine()
	const a, b Identity = 1, 2

	require.NoError(t, e.Create(a, 64))
	require.NoError(t, e.Write(a, 10, 4, []byte("ABCD")))
	require.NoError(t, e.Clone(b, a))

	abuf, bbuf := make([]byte, 4), make([]byte, 4)
	require.NoError(t, e.Read(a, 10, 4, abuf))
	require.NoError(t, e.Read(b, 10, 4, bbuf))
	require.Equal(t, abuf, bbuf)
}

// Invariant 2: refcount soundness across clone/destroy lifecycles.
func TestRefcountSoundness(t *testing.T) {
	e := NewEngine()
	const a, b, c Identity = 1, 2, 3

	require.NoError(t, e.Create(a, 1))
	require.NoError(t, e.Clone(b, a))
	require.NoError(t, e.Clone(c, a))

	areaA, _ := e.reg.Lookup(a)
	require.Equal(t, 3, areaA.RefcountAt(0))

	require.NoError(t, e.Destroy(c))
	require.Equal(t, 2, areaA.RefcountAt(0))

	require.NoError(t, e.Destroy(b))
	require.Equal(t, 1, areaA.RefcountAt(0))

	require.NoError(t, e.Destroy(a))
}

// Invariant 6: the registry boundary holds at exactly MaxAreas (128)
// successes then one failure for the 129th area.
func TestRegistryBoundary(t *testing.T) {
	e := NewEngine()
	for i := Identity(0); i < MaxAreas; i++ {
		require.NoError(t, e.Create(i, 1), "create %d should succeed", i)
	}
	require.Equal(t, MaxAreas, e.Registry().Count())
	require.Error(t, e.Create(Identity(MaxAreas), 1))
}

func TestCreateRejectsZeroSize(t *testing.T) {
	e := NewEngine()
	require.Error(t, e.Create(1, 0))
}

func TestCreateRejectsDuplicate(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Create(1, 8))
	require.Error(t, e.Create(1, 8))
}

func TestOperationsOnUnregisteredIdentity(t *testing.T) {
	e := NewEngine()
	require.Error(t, e.Destroy(99))
	require.Error(t, e.Read(99, 0, 1, make([]byte, 1)))
	require.Error(t, e.Write(99, 0, 1, []byte("x")))
	require.Error(t, e.Clone(1, 99))
}

func TestOutOfBoundsAccess(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Create(1, 10))
	require.Error(t, e.Read(1, 8, 4, make([]byte, 4)))
	require.Error(t, e.Write(1, 8, 4, []byte("abcd")))
}

// FindByAddr is what SignalGate uses on every fault.
func TestFindByAddr(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Create(1, 8))
	area, _ := e.reg.Lookup(1)
	addr := area.pages[0].hp.Addr()

	found, owner, idx, ok := e.Registry().FindByAddr(addr)
	require.True(t, ok)
	require.Equal(t, area, found)
	require.Equal(t, Identity(1), owner)
	require.Equal(t, 0, idx)

	_, _, _, ok = e.Registry().FindByAddr(addr + uintptr(hostvm.PageSize)*1000)
	require.False(t, ok)
}
