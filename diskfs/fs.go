package diskfs

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bennetttaylor/gosyslab/internal/errs"
)

// Layout limits carried over verbatim from fs.c's #define block.
const (
	MaxFiles            = 64
	MaxFileDescriptors  = 32
	MaxFileName         = 15
	MaxFileSize         = 1024 * 1024
	maxBlocksPerFile    = MaxFileSize / BlockSize
	directoryOffset     = 1
	superBlockReserved  = 1
)

type direntry struct {
	name       string
	inodeIndex int // -1 when unused
}

type inode struct {
	refCount  int
	fileSize  int
	blocks    [maxBlocksPerFile]int // -1 when unallocated
}

type descriptor struct {
	inodeIndex int // -1 when unused
	offset     int
}

// FileSystem is FlatFS mounted over a Disk: a fixed-size directory, a
// fixed-size inode table, and a free-block bitmap, exactly mirroring
// fs.c's globals but scoped to a value instead of file-scope statics so
// more than one file system can exist in a process (e.g. under test).
type FileSystem struct {
	mu sync.Mutex

	disk    *Disk
	mounted bool

	bitmap    []bool
	dataStart int

	directory [MaxFiles]direntry
	inodes    [MaxFiles]inode
	fds       [MaxFileDescriptors]descriptor
}

// Make formats disk as a fresh FlatFS image: an empty directory, an empty
// inode table, and a bitmap with only the metadata blocks marked used.
// Grounded on make_fs, minus the host-file make_disk/open_disk/close_disk
// calls that have no meaning for an in-process Disk.
func Make(disk *Disk) *FileSystem {
	directorySize := (MaxFiles*dirEntryEncodedSize + BlockSize - 1) / BlockSize
	inodeTableOffset := directoryOffset + directorySize
	dataStart := inodeTableOffset + MaxFiles

	fsys := &FileSystem{
		disk:      disk,
		bitmap:    make([]bool, BlockCount),
		dataStart: dataStart,
	}
	for i := range fsys.directory {
		fsys.directory[i].inodeIndex = -1
	}
	for i := range fsys.inodes {
		for j := range fsys.inodes[i].blocks {
			fsys.inodes[i].blocks[j] = -1
		}
	}
	for i := 0; i < dataStart; i++ {
		fsys.bitmap[i] = true
	}
	return fsys
}

// dirEntryEncodedSize is an on-disk sizing constant only; this
// implementation keeps the directory and inode table resident in memory
// (mirroring fs.c's cached globals) rather than re-deriving layout from
// serialized struct sizes, since there is no C struct layout to match.
const dirEntryEncodedSize = 32

// Mount implements mount_fs. A FileSystem built by Make is already
// resident, so mounting is just the not-already-mounted transition and
// the file-descriptor table reset.
func (fsys *FileSystem) Mount() error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	if fsys.mounted {
		return errs.New(errs.Exists, "diskfs: already mounted")
	}
	for i := range fsys.fds {
		fsys.fds[i].inodeIndex = -1
		fsys.fds[i].offset = -1
	}
	fsys.mounted = true
	logrus.WithField("disk", fsys.disk.ID).Debug("diskfs: mounted")
	return nil
}

// Unmount implements umount_fs.
func (fsys *FileSystem) Unmount() error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	if !fsys.mounted {
		return errs.New(errs.InvalidArg, "diskfs: not mounted")
	}
	fsys.mounted = false
	return nil
}

func (fsys *FileSystem) requireMounted() error {
	if !fsys.mounted {
		return errs.New(errs.InvalidArg, "diskfs: not mounted")
	}
	return nil
}

// Create implements fs_create.
//
// [REDESIGN — OQ-3] fs.c's free-inode search has no break statement, so
// it silently picks the *highest*-indexed free inode rather than the
// first. This implementation picks the lowest free index, matching the
// directory-slot search just above it in the same function and the
// lowest-free-index convention of tlsvm's Registry.
func (fsys *FileSystem) Create(name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if err := fsys.requireMounted(); err != nil {
		return err
	}
	if len(name) == 0 || len(name) > MaxFileName {
		return errs.New(errs.InvalidArg, "diskfs: invalid file name %q", name)
	}
	for i := range fsys.directory {
		if fsys.directory[i].inodeIndex != -1 && fsys.directory[i].name == name {
			return errs.New(errs.Exists, "diskfs: file %q already exists", name)
		}
	}

	dirIdx := -1
	for i := range fsys.directory {
		if fsys.directory[i].inodeIndex == -1 {
			dirIdx = i
			break
		}
	}
	if dirIdx == -1 {
		return errs.New(errs.Exhausted, "diskfs: directory full")
	}

	inodeIdx := -1
	for i := range fsys.inodes {
		if fsys.inodes[i].refCount == 0 {
			inodeIdx = i
			break
		}
	}
	if inodeIdx == -1 {
		return errs.New(errs.Exhausted, "diskfs: no free inodes")
	}

	fsys.directory[dirIdx].name = name
	fsys.directory[dirIdx].inodeIndex = inodeIdx
	fsys.inodes[inodeIdx].refCount++
	return nil
}

// Unlink implements fs_delete: frees the file's data blocks and clears its
// directory and inode entries. Refuses to unlink a file with any open
// descriptor, same as the source's ref_count > 1 check (ref_count is 1 for
// "exists, unopened", so > 1 means at least one Open is outstanding).
func (fsys *FileSystem) Unlink(name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if err := fsys.requireMounted(); err != nil {
		return err
	}

	dirIdx, inodeIdx := fsys.lookup(name)
	if dirIdx == -1 {
		return errs.New(errs.NotFound, "diskfs: file %q not found", name)
	}
	if fsys.inodes[inodeIdx].refCount > 1 {
		return errs.New(errs.InvalidArg, "diskfs: file %q is open", name)
	}

	for i, blk := range fsys.inodes[inodeIdx].blocks {
		if blk != -1 {
			fsys.bitmap[blk] = false
			fsys.inodes[inodeIdx].blocks[i] = -1
		}
	}
	fsys.directory[dirIdx].inodeIndex = -1
	fsys.directory[dirIdx].name = ""
	fsys.inodes[inodeIdx].refCount = 0
	fsys.inodes[inodeIdx].fileSize = 0
	return nil
}

func (fsys *FileSystem) lookup(name string) (dirIdx, inodeIdx int) {
	for i := range fsys.directory {
		if fsys.directory[i].inodeIndex != -1 && fsys.directory[i].name == name {
			return i, fsys.directory[i].inodeIndex
		}
	}
	return -1, -1
}

// Open implements fs_open: finds name in the directory, allocates the
// lowest-free file descriptor, and bumps the inode's reference count.
func (fsys *FileSystem) Open(name string) (int, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if err := fsys.requireMounted(); err != nil {
		return -1, err
	}
	_, inodeIdx := fsys.lookup(name)
	if inodeIdx == -1 {
		return -1, errs.New(errs.NotFound, "diskfs: file %q not found", name)
	}

	for i := range fsys.fds {
		if fsys.fds[i].inodeIndex == -1 {
			fsys.fds[i].inodeIndex = inodeIdx
			fsys.fds[i].offset = 0
			fsys.inodes[inodeIdx].refCount++
			return i, nil
		}
	}
	return -1, errs.New(errs.Exhausted, "diskfs: no free file descriptors")
}

// Close implements fs_close.
func (fsys *FileSystem) Close(fd int) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if err := fsys.requireMounted(); err != nil {
		return err
	}
	if err := fsys.checkFD(fd); err != nil {
		return err
	}
	fsys.inodes[fsys.fds[fd].inodeIndex].refCount--
	fsys.fds[fd].inodeIndex = -1
	fsys.fds[fd].offset = -1
	return nil
}

func (fsys *FileSystem) checkFD(fd int) error {
	if fd < 0 || fd >= MaxFileDescriptors || fsys.fds[fd].inodeIndex == -1 {
		return errs.New(errs.NotFound, "diskfs: no such open file %d", fd)
	}
	return nil
}

// GetFileSize implements fs_get_filesize.
func (fsys *FileSystem) GetFileSize(fd int) (int, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	if err := fsys.checkFD(fd); err != nil {
		return -1, err
	}
	return fsys.inodes[fsys.fds[fd].inodeIndex].fileSize, nil
}

// ListFiles implements fs_listfiles, returning names in directory-slot
// order rather than through the source's malloc'd NULL-terminated array.
func (fsys *FileSystem) ListFiles() []string {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	names := make([]string, 0, MaxFiles)
	for i := range fsys.directory {
		if fsys.directory[i].inodeIndex != -1 {
			names = append(names, fsys.directory[i].name)
		}
	}
	return names
}

// Seek implements fs_lseek.
//
// [REDESIGN — OQ-4] fs.c rejects offset == file_size ("offset >
// file_size - 1"), which would make it impossible to seek to end-of-file
// to append — every standard lseek(2)/io.Seeker allows offset == size.
// This implementation allows it.
func (fsys *FileSystem) Seek(fd, offset int) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	if err := fsys.checkFD(fd); err != nil {
		return err
	}
	size := fsys.inodes[fsys.fds[fd].inodeIndex].fileSize
	if offset < 0 || offset > size {
		return errs.New(errs.InvalidArg, "diskfs: offset %d out of bounds (size %d)", offset, size)
	}
	fsys.fds[fd].offset = offset
	return nil
}

// Read implements fs_read: reads at most len(buf) bytes starting at the
// descriptor's current offset, block by block, clamped to the file's
// size, and returns the number of bytes actually read.
func (fsys *FileSystem) Read(fd int, buf []byte) (int, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if err := fsys.requireMounted(); err != nil {
		return 0, err
	}
	if err := fsys.checkFD(fd); err != nil {
		return 0, err
	}

	inodeIdx := fsys.fds[fd].inodeIndex
	ino := &fsys.inodes[inodeIdx]
	offset := fsys.fds[fd].offset

	n := len(buf)
	if offset+n > ino.fileSize {
		n = ino.fileSize - offset
	}
	if n <= 0 {
		return 0, nil
	}

	blockBuf := make([]byte, BlockSize)
	read := 0
	for read < n {
		blockIdx := (offset + read) / BlockSize
		blockOff := (offset + read) % BlockSize
		disk := ino.blocks[blockIdx]
		if disk == -1 {
			break
		}
		if err := fsys.disk.ReadBlock(disk, blockBuf); err != nil {
			return read, err
		}
		chunk := BlockSize - blockOff
		if chunk > n-read {
			chunk = n - read
		}
		copy(buf[read:read+chunk], blockBuf[blockOff:blockOff+chunk])
		read += chunk
	}

	fsys.fds[fd].offset += read
	return read, nil
}

// Write implements fs_write: writes len(buf) bytes (clamped to
// MaxFileSize) at the descriptor's current offset, allocating fresh data
// blocks from the bitmap as needed using the lowest free block.
func (fsys *FileSystem) Write(fd int, buf []byte) (int, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if err := fsys.requireMounted(); err != nil {
		return 0, err
	}
	if err := fsys.checkFD(fd); err != nil {
		return 0, err
	}

	inodeIdx := fsys.fds[fd].inodeIndex
	ino := &fsys.inodes[inodeIdx]
	offset := fsys.fds[fd].offset

	n := len(buf)
	if offset+n > MaxFileSize {
		n = MaxFileSize - offset
	}
	if n <= 0 {
		return 0, errs.New(errs.Exhausted, "diskfs: file size limit reached")
	}

	blockBuf := make([]byte, BlockSize)
	written := 0
	for written < n {
		blockIdx := (offset + written) / BlockSize
		blockOff := (offset + written) % BlockSize

		if ino.blocks[blockIdx] == -1 {
			free, err := fsys.allocBlock()
			if err != nil {
				return written, err
			}
			ino.blocks[blockIdx] = free
		}
		disk := ino.blocks[blockIdx]

		if err := fsys.disk.ReadBlock(disk, blockBuf); err != nil {
			return written, err
		}
		chunk := BlockSize - blockOff
		if chunk > n-written {
			chunk = n - written
		}
		copy(blockBuf[blockOff:blockOff+chunk], buf[written:written+chunk])
		if err := fsys.disk.WriteBlock(disk, blockBuf); err != nil {
			return written, err
		}
		written += chunk
	}

	if offset+written > ino.fileSize {
		ino.fileSize = offset + written
	}
	fsys.fds[fd].offset += written
	return written, nil
}

func (fsys *FileSystem) allocBlock() (int, error) {
	for i := fsys.dataStart; i < BlockCount; i++ {
		if !fsys.bitmap[i] {
			fsys.bitmap[i] = true
			return i, nil
		}
	}
	return -1, errs.New(errs.Exhausted, "diskfs: disk full")
}

// Truncate implements fs_truncate: shrinks the file to length, zeroing
// the tail of its last retained block and freeing every block beyond it.
func (fsys *FileSystem) Truncate(fd, length int) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if err := fsys.requireMounted(); err != nil {
		return err
	}
	if err := fsys.checkFD(fd); err != nil {
		return err
	}

	inodeIdx := fsys.fds[fd].inodeIndex
	ino := &fsys.inodes[inodeIdx]
	if length > ino.fileSize {
		return errs.New(errs.InvalidArg, "diskfs: truncate length exceeds file size")
	}

	lastBlock := length / BlockSize
	lastOffset := length % BlockSize

	blockBuf := make([]byte, BlockSize)
	if length > 0 && ino.blocks[lastBlock] != -1 {
		if err := fsys.disk.ReadBlock(ino.blocks[lastBlock], blockBuf); err != nil {
			return err
		}
		for i := lastOffset; i < BlockSize; i++ {
			blockBuf[i] = 0
		}
		if err := fsys.disk.WriteBlock(ino.blocks[lastBlock], blockBuf); err != nil {
			return err
		}
	}

	start := lastBlock
	if length == 0 || lastOffset == 0 {
		// The block at lastBlock itself holds nothing of the truncated
		// file when the cut lands exactly on a block boundary.
	} else {
		start = lastBlock + 1
	}
	for i := start; i < maxBlocksPerFile; i++ {
		if ino.blocks[i] == -1 {
			continue
		}
		fsys.bitmap[ino.blocks[i]] = false
		ino.blocks[i] = -1
	}

	ino.fileSize = length
	if fsys.fds[fd].offset > length {
		fsys.fds[fd].offset = length
	}
	return nil
}
