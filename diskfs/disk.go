// Package diskfs implements FlatFS: a flat, single-directory file system
// laid out over a fixed-size block device, grounded on fs/fs.c and
// fs/disk.h. The source keeps the disk as a file on the host and talks to
// it through block_read/block_write; here the "disk" is simply an
// in-process slice of blocks, since FlatFS has no notion of a process
// boundary to cross.
package diskfs

import (
	"github.com/google/uuid"

	"github.com/bennetttaylor/gosyslab/internal/errs"
)

// BlockSize and BlockCount match disk.h's BLOCK_SIZE (4096) and
// DISK_BLOCKS (8192).
const (
	BlockSize  = 4096
	BlockCount = 8192
)

// Disk is the block-addressable storage FlatFS is built on top of. The
// source identifies a disk by its host file name; since this Disk has no
// file name, ID gives each one a stable identity for log correlation
// (diagnosing which simulated disk a Mount/Create/Write call touched when
// a process runs more than one).
type Disk struct {
	ID     uuid.UUID
	blocks [][BlockSize]byte
}

// NewDisk allocates a zeroed disk of BlockCount blocks, the Go substitute
// for make_disk's creation of a zero-filled backing file.
func NewDisk() *Disk {
	return &Disk{ID: uuid.New(), blocks: make([][BlockSize]byte, BlockCount)}
}

// ReadBlock implements block_read: copies block n's contents into buf.
func (d *Disk) ReadBlock(n int, buf []byte) error {
	if n < 0 || n >= len(d.blocks) {
		return errs.New(errs.InvalidArg, "diskfs: block %d out of range", n)
	}
	copy(buf, d.blocks[n][:])
	return nil
}

// WriteBlock implements block_write: copies buf into block n, zero-padding
// or truncating to BlockSize.
func (d *Disk) WriteBlock(n int, buf []byte) error {
	if n < 0 || n >= len(d.blocks) {
		return errs.New(errs.InvalidArg, "diskfs: block %d out of range", n)
	}
	var blk [BlockSize]byte
	copy(blk[:], buf)
	d.blocks[n] = blk
	return nil
}
