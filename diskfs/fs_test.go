package diskfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newMounted(t *testing.T) *FileSystem {
	t.Helper()
	fsys := Make(NewDisk())
	require.NoError(t, fsys.Mount())
	return fsys
}

func TestCreateOpenWriteReadRoundTrip(t *testing.T) {
	fsys := newMounted(t)

	require.NoError(t, fsys.Create("hello.txt"))
	fd, err := fsys.Open("hello.txt")
	require.NoError(t, err)

	payload := []byte("the quick brown fox")
	n, err := fsys.Write(fd, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	require.NoError(t, fsys.Seek(fd, 0))
	out := make([]byte, len(payload))
	n, err = fsys.Read(fd, out)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, out)
}

func TestWriteSpanningMultipleBlocks(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("big"))
	fd, err := fsys.Open("big")
	require.NoError(t, err)

	payload := make([]byte, BlockSize*3+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	n, err := fsys.Write(fd, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	require.NoError(t, fsys.Seek(fd, 0))
	out := make([]byte, len(payload))
	n, err = fsys.Read(fd, out)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, out)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("dup"))
	require.Error(t, fsys.Create("dup"))
}

func TestCreatePicksLowestFreeInode(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("a"))
	require.NoError(t, fsys.Create("b"))
	require.NoError(t, fsys.Unlink("a"))
	require.NoError(t, fsys.Create("c"))

	// "c" should have reused "a"'s inode (index 0), not been assigned a
	// fresh higher index, since the lowest free slot is picked.
	_, bInode := fsys.lookup("b")
	_, cInode := fsys.lookup("c")
	require.NotEqual(t, bInode, cInode)
	require.Equal(t, 0, cInode)
}

func TestUnlinkFreesBlocksForReuse(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("f1"))
	fd, err := fsys.Open("f1")
	require.NoError(t, err)
	_, err = fsys.Write(fd, make([]byte, BlockSize*2))
	require.NoError(t, err)
	require.NoError(t, fsys.Close(fd))
	require.NoError(t, fsys.Unlink("f1"))

	require.NoError(t, fsys.Create("f2"))
	fd2, err := fsys.Open("f2")
	require.NoError(t, err)
	n, err := fsys.Write(fd2, make([]byte, BlockSize*2))
	require.NoError(t, err)
	require.Equal(t, BlockSize*2, n)
}

func TestUnlinkRefusesWhileOpen(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("open-file"))
	_, err := fsys.Open("open-file")
	require.NoError(t, err)
	require.Error(t, fsys.Unlink("open-file"))
}

// OQ-4: seeking to exactly the file's size (append position) succeeds.
func TestSeekToEndOfFileAllowed(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("f"))
	fd, err := fsys.Open("f")
	require.NoError(t, err)
	_, err = fsys.Write(fd, []byte("abc"))
	require.NoError(t, err)

	require.NoError(t, fsys.Seek(fd, 3))
	require.Error(t, fsys.Seek(fd, 4))
}

func TestTruncateShrinksFileAndFreesBlocks(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("f"))
	fd, err := fsys.Open("f")
	require.NoError(t, err)
	_, err = fsys.Write(fd, make([]byte, BlockSize*2))
	require.NoError(t, err)

	require.NoError(t, fsys.Truncate(fd, BlockSize))
	size, err := fsys.GetFileSize(fd)
	require.NoError(t, err)
	require.Equal(t, BlockSize, size)
}

func TestOperationsOnUnmountedFileSystem(t *testing.T) {
	fsys := Make(NewDisk())
	require.Error(t, fsys.Create("x"))
}

func TestListFilesReflectsDirectory(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("a"))
	require.NoError(t, fsys.Create("b"))
	names := fsys.ListFiles()
	require.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestOpenNonexistentFileErrors(t *testing.T) {
	fsys := newMounted(t)
	_, err := fsys.Open("missing")
	require.Error(t, err)
}

func TestReadClampsToFileSize(t *testing.T) {
	fsys := newMounted(t)
	require.NoError(t, fsys.Create("f"))
	fd, err := fsys.Open("f")
	require.NoError(t, err)
	_, err = fsys.Write(fd, []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, fsys.Seek(fd, 0))

	buf := make([]byte, 100)
	n, err := fsys.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
