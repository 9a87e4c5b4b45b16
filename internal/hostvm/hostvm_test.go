package hostvm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReservePageStartsUnreadable(t *testing.T) {
	p, err := ReservePage()
	require.NoError(t, err)
	defer p.Release()

	require.Equal(t, None, p.Access())
	require.Len(t, p.Bytes(), PageSize)
}

func TestSetAccessRoundTrip(t *testing.T) {
	p, err := ReservePage()
	require.NoError(t, err)
	defer p.Release()

	p.SetAccess(ReadWrite)
	require.Equal(t, ReadWrite, p.Access())
	p.Bytes()[0] = 0x42
	require.Equal(t, byte(0x42), p.Bytes()[0])

	p.SetAccess(ReadOnly)
	require.Equal(t, ReadOnly, p.Access())

	p.SetAccess(None)
	require.Equal(t, None, p.Access())
}

func TestAlignDown(t *testing.T) {
	base := uintptr(PageSize * 7)
	require.Equal(t, base, AlignDown(base+13))
	require.Equal(t, base, AlignDown(base+uintptr(PageSize)-1))
}

func TestReleaseTwicePanics(t *testing.T) {
	p, err := ReservePage()
	require.NoError(t, err)
	require.NoError(t, p.Release())
	require.Panics(t, func() { p.Release() })
}
