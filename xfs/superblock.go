package xfs

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// xfsSbMagic is the on-disk superblock magic, "XFSB".
const xfsSbMagic = 0x58465342

// XFS_SB_VERSION2_FTYPE: V4 feature bit indicating directory entries carry
// a file-type byte.
const sbVersion2FType = 0x0200

// XFS_SB_FEAT_INCOMPAT_NREXT64: V5 incompat bit indicating 64-bit extent
// counts.
const sbFeatIncompatNrExt64 = 0x20

// Byte offsets into the fixed superblock prefix this decoder reads.
const (
	offMagic           = 0
	offBlockSize       = 4
	offUUID            = 32
	offRootIno         = 56
	offAgBlocks        = 84
	offAgCount         = 88
	offVersionNum      = 100
	offSectSize        = 102
	offInodeSize       = 104
	offInopBlock       = 106
	offBlockLog        = 120
	offSectLog         = 121
	offInodeLog        = 122
	offInopBlog        = 123
	offAgBlkLog        = 124
	offDirBlkLog        = 192
	offFeatures2        = 200
	offFeaturesIncompat = 216

	minSuperblockLen = 220
)

// ParseSuperblock decodes the fixed on-disk superblock layout at byte 0 of
// buf and derives the FsContext used by every other decoder in this
// package.
func ParseSuperblock(buf []byte) (*FsContext, error) {
	if len(buf) < minSuperblockLen {
		return nil, Parse("buffer too small for superblock")
	}

	magic := binary.BigEndian.Uint32(buf[offMagic:])
	if magic != xfsSbMagic {
		return nil, BadMagic("superblock")
	}

	versionNum := binary.BigEndian.Uint16(buf[offVersionNum:])
	version := V4
	if versionNum&0x000f >= 5 {
		version = V5
	}

	features2 := binary.BigEndian.Uint32(buf[offFeatures2:])
	hasFTypeV4 := features2&sbVersion2FType != 0
	hasFType := version == V5 || hasFTypeV4

	hasNrExt64 := false
	if version == V5 {
		incompat := binary.BigEndian.Uint32(buf[offFeaturesIncompat:])
		hasNrExt64 = incompat&sbFeatIncompatNrExt64 != 0
	}

	ctx := &FsContext{
		Version:        version,
		BlockSize:      binary.BigEndian.Uint32(buf[offBlockSize:]),
		BlockLog:       buf[offBlockLog],
		AgCount:        binary.BigEndian.Uint32(buf[offAgCount:]),
		AgBlocks:       binary.BigEndian.Uint32(buf[offAgBlocks:]),
		AgBlkLog:       buf[offAgBlkLog],
		InodeSize:      binary.BigEndian.Uint16(buf[offInodeSize:]),
		InodesPerBlock: binary.BigEndian.Uint16(buf[offInopBlock:]),
		InodeLog:       buf[offInodeLog],
		InopBlog:       buf[offInopBlog],
		DirBlkLog:      buf[offDirBlkLog],
		RootIno:        binary.BigEndian.Uint64(buf[offRootIno:]),
		SectSize:       binary.BigEndian.Uint16(buf[offSectSize:]),
		HasFType:       hasFType,
		HasNrExt64:     hasNrExt64,
	}
	copy(ctx.UUID[:], buf[offUUID:offUUID+16])

	return ctx, nil
}

// FsUUID returns the filesystem UUID decoded from the superblock. It is
// diagnostic only; no operation in this package branches on it.
func (c *FsContext) FsUUID() uuid.UUID {
	u, _ := uuid.FromBytes(c.UUID[:])
	return u
}
