package xfs

import "encoding/binary"

// xfsDinodeMagic is the on-disk inode magic, "IN".
const xfsDinodeMagic = 0x494e

// Data fork format codes.
const (
	FmtDev     = 0
	FmtLocal   = 1
	FmtExtents = 2
	FmtBtree   = 3
	FmtUUID    = 4
)

// Mode bits.
const (
	SIFMT  = 0o170000
	SIFDIR = 0o040000
	SIFREG = 0o100000
	SIFLNK = 0o120000
)

// Size of the fixed inode core prefix per format version.
const (
	V4CoreSize = 96
	V5CoreSize = 176
)

// Byte offsets into the inode core.
const (
	offDiMagic    = 0
	offDiMode     = 2
	offDiFormat   = 5
	offDiUID      = 8
	offDiGID      = 12
	offDiNlink    = 16
	offDiAtime    = 32
	offDiMtime    = 40
	offDiCtime    = 48
	offDiSize     = 56
	offDiNblocks  = 64
	offDiNextents = 76
)

// InodeCore is the decoded fixed-width prefix of an on-disk inode.
type InodeCore struct {
	Ino       uint64
	Mode      uint16
	Format    uint8
	Size      uint64
	UID       uint32
	GID       uint32
	Nlink     uint32
	Nextents  uint32
	MtimeSec  uint32
	MtimeNsec uint32
	AtimeSec  uint32
	AtimeNsec uint32
	CtimeSec  uint32
	CtimeNsec uint32
	Nblocks   uint64

	// DataForkOffset is the byte offset within the on-disk inode at which
	// the data fork begins.
	DataForkOffset int
}

func (i *InodeCore) IsDir() bool     { return i.Mode&SIFMT == SIFDIR }
func (i *InodeCore) IsRegular() bool { return i.Mode&SIFMT == SIFREG }
func (i *InodeCore) IsSymlink() bool { return i.Mode&SIFMT == SIFLNK }

// ParseInodeCore decodes the fixed-width inode core from the start of buf.
// version selects the V4/96-byte vs V5/176-byte core size; hasNrExt64
// selects the 48-bit packed extent-count field over the legacy 32-bit one.
func ParseInodeCore(buf []byte, ino uint64, version Version, hasNrExt64 bool) (*InodeCore, error) {
	if len(buf) < V4CoreSize {
		return nil, Parse("buffer too small for dinode core")
	}

	if binary.BigEndian.Uint16(buf[offDiMagic:]) != xfsDinodeMagic {
		return nil, BadMagic("dinode")
	}

	dataForkOffset := V4CoreSize
	if version == V5 {
		dataForkOffset = V5CoreSize
	}

	var nextents uint32
	if hasNrExt64 {
		// The data-fork extent count overlaps the V4 pad + flushiter
		// fields as the low 48 bits of a big-endian 64-bit word at
		// inode byte offset 24; the legacy 32-bit field is zeroed.
		if len(buf) < 32 {
			return nil, Parse("buffer too small for nrext64 extent count")
		}
		big := binary.BigEndian.Uint64(buf[24:32])
		nextents = uint32(big & 0x0000FFFFFFFFFFFF)
	} else {
		nextents = binary.BigEndian.Uint32(buf[offDiNextents:])
	}

	return &InodeCore{
		Ino:             ino,
		Mode:            binary.BigEndian.Uint16(buf[offDiMode:]),
		Format:          buf[offDiFormat],
		Size:            binary.BigEndian.Uint64(buf[offDiSize:]),
		UID:             binary.BigEndian.Uint32(buf[offDiUID:]),
		GID:             binary.BigEndian.Uint32(buf[offDiGID:]),
		Nlink:           binary.BigEndian.Uint32(buf[offDiNlink:]),
		Nextents:        nextents,
		MtimeSec:        binary.BigEndian.Uint32(buf[offDiMtime:]),
		MtimeNsec:       binary.BigEndian.Uint32(buf[offDiMtime+4:]),
		AtimeSec:        binary.BigEndian.Uint32(buf[offDiAtime:]),
		AtimeNsec:       binary.BigEndian.Uint32(buf[offDiAtime+4:]),
		CtimeSec:        binary.BigEndian.Uint32(buf[offDiCtime:]),
		CtimeNsec:       binary.BigEndian.Uint32(buf[offDiCtime+4:]),
		Nblocks:         binary.BigEndian.Uint64(buf[offDiNblocks:]),
		DataForkOffset:  dataForkOffset,
	}, nil
}
