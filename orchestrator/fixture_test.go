package orchestrator

import (
	"encoding/binary"

	"github.com/xfsscan/xfsscan/xfs"
)

// memReader is a flat in-memory xfs.Reader with no real coalescing,
// sufficient to drive the orchestrator end-to-end over a synthetic image.
type memReader struct {
	data []byte
}

func (m *memReader) ReadAt(offset int64, length int, phase xfs.Phase) ([]byte, error) {
	end := offset + int64(length)
	if offset < 0 || end > int64(len(m.data)) {
		return nil, xfs.IOErrorf("fixture read out of bounds [%d,%d) of %d", offset, end, len(m.data))
	}
	return m.data[offset:end], nil
}

func (m *memReader) CoalescedReadBatch(requests []xfs.ReadRequest, onComplete func(buf []byte, tag any) error, phase xfs.Phase) error {
	return xfs.SequentialBatch(m, requests, onComplete, phase)
}

var _ xfs.Reader = (*memReader)(nil)

const (
	fixBlockSize = 512
	fixInodeSize = 256
	fixRootIno   = 16
	fixHelloIno  = 17
	fixSubdirIno = 18

	fixSbOffMagic      = 0
	fixSbOffBlockSize  = 4
	fixSbOffRootIno    = 56
	fixSbOffAgBlocks   = 84
	fixSbOffAgCount    = 88
	fixSbOffVersionNum = 100
	fixSbOffSectSize   = 102
	fixSbOffInodeSize  = 104
	fixSbOffInopBlock  = 106
	fixSbOffBlockLog   = 120
	fixSbOffInodeLog   = 122
	fixSbOffInopBlog   = 123
	fixSbOffAgBlkLog   = 124

	fixAgiOffMagic = 0
	fixAgiOffSeqno = 8
	fixAgiOffRoot  = 20
	fixAgiOffLevel = 24
)

// buildShortformHeader4 builds a 4-byte-inode shortform directory header
// (no entries yet) for the given entry count and parent inode.
func buildShortformHeader4(entryCount int, parentIno uint32) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(entryCount)
	buf[1] = 0
	binary.BigEndian.PutUint32(buf[2:6], parentIno)
	return buf
}

func appendShortformEntry4(buf []byte, name string, ftype uint8, childIno uint32) []byte {
	buf = append(buf, byte(len(name)))
	buf = append(buf, 0, 0)
	buf = append(buf, []byte(name)...)
	buf = append(buf, ftype)
	childBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(childBuf, childIno)
	return append(buf, childBuf...)
}

func buildInlineBtreeLeafFork(ext xfs.Extent) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], 0)
	binary.BigEndian.PutUint16(buf[2:4], 1)
	packed := ext.Pack()
	return append(buf, packed[:]...)
}

// writeInodeCore writes a V5 inode core + data fork (padded to fixInodeSize)
// at byte offset off in data.
func writeInodeCore(data []byte, off int, mode uint16, format uint8, nextents uint32, fork []byte) {
	buf := data[off : off+fixInodeSize]
	binary.BigEndian.PutUint16(buf[0:2], 0x494e) // dinode magic
	binary.BigEndian.PutUint16(buf[2:4], mode)
	buf[5] = format
	binary.BigEndian.PutUint32(buf[76:80], nextents)
	binary.BigEndian.PutUint64(buf[56:64], 512) // size, diagnostic only
	binary.BigEndian.PutUint32(buf[16:20], 1)   // nlink
	copy(buf[176:], fork)
}

// buildFixtureImage constructs a minimal single-AG V5 image: a root
// directory containing a btree-format regular file "hello.txt" and an
// empty subdirectory "subdir".
func buildFixtureImage() []byte {
	const deviceSize = 24576 // 48 blocks of 512 bytes
	data := make([]byte, deviceSize)

	// Superblock at byte 0.
	binary.BigEndian.PutUint32(data[fixSbOffMagic:], 0x58465342)
	binary.BigEndian.PutUint32(data[fixSbOffBlockSize:], fixBlockSize)
	binary.BigEndian.PutUint64(data[fixSbOffRootIno:], fixRootIno)
	binary.BigEndian.PutUint32(data[fixSbOffAgBlocks:], 1024)
	binary.BigEndian.PutUint32(data[fixSbOffAgCount:], 1)
	binary.BigEndian.PutUint16(data[fixSbOffVersionNum:], 5)
	binary.BigEndian.PutUint16(data[fixSbOffSectSize:], 512)
	binary.BigEndian.PutUint16(data[fixSbOffInodeSize:], fixInodeSize)
	binary.BigEndian.PutUint16(data[fixSbOffInopBlock:], 2)
	data[fixSbOffBlockLog] = 9
	data[fixSbOffInodeLog] = 8
	data[fixSbOffInopBlog] = 1
	data[fixSbOffAgBlkLog] = 12

	// AGI header at byte 1024 (block 2).
	const agiOff = 1024
	binary.BigEndian.PutUint32(data[agiOff+fixAgiOffMagic:], 0x58414749)
	binary.BigEndian.PutUint32(data[agiOff+fixAgiOffSeqno:], 0)
	binary.BigEndian.PutUint32(data[agiOff+fixAgiOffRoot:], 3) // AG-relative block 3
	binary.BigEndian.PutUint32(data[agiOff+fixAgiOffLevel:], 1)

	// Inobt leaf (root) at block 3 (byte 1536), V5 header (56 bytes) + 1 record.
	const inobtOff = 1536
	binary.BigEndian.PutUint32(data[inobtOff:], 0x49414233) // IAB3
	binary.BigEndian.PutUint16(data[inobtOff+4:], 0)        // level
	binary.BigEndian.PutUint16(data[inobtOff+6:], 1)        // numrecs
	recOff := inobtOff + 56
	binary.BigEndian.PutUint32(data[recOff:], 16)               // start_ino (agino)
	binary.BigEndian.PutUint16(data[recOff+4:], 0)              // holemask
	data[recOff+6] = 64                                         // count
	data[recOff+7] = 61                                         // freecount
	binary.BigEndian.PutUint64(data[recOff+8:], ^uint64(0b111)) // free: slots 0-2 allocated

	// Inode chunk at block 8 (byte 4096), 64 inodes * 256 bytes = 32 blocks.
	const chunkOff = 4096

	rootFork := buildShortformHeader4(2, fixRootIno)
	rootFork = appendShortformEntry4(rootFork, "hello.txt", 1, fixHelloIno)
	rootFork = appendShortformEntry4(rootFork, "subdir", 2, fixSubdirIno)
	writeInodeCore(data, chunkOff+0*fixInodeSize, 0o040755, xfs.FmtLocal, 0, rootFork)

	helloFork := buildInlineBtreeLeafFork(xfs.Extent{LogicalOffset: 0, StartBlock: 50, BlockCount: 1})
	writeInodeCore(data, chunkOff+1*fixInodeSize, 0o100644, xfs.FmtBtree, 0, helloFork)

	subdirFork := buildShortformHeader4(0, fixRootIno)
	writeInodeCore(data, chunkOff+2*fixInodeSize, 0o040755, xfs.FmtLocal, 0, subdirFork)

	return data
}
