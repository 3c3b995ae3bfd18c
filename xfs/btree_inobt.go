package xfs

import (
	"encoding/binary"
	"sort"
)

// Inode-allocation B-tree short-form block magics.
const (
	xfsIbtMagic  = 0x49414254 // "IABT" V4
	xfsIbt3Magic = 0x49414233 // "IAB3" V5
)

const inobtRecSize = 16

// InobtRecord describes a chunk of up to 64 consecutive AG-relative
// inodes: its starting inode, an allocation bitmap (bit i clear means
// inode i is allocated), and a hole mask covering the chunk in groups
// of 4.
type InobtRecord struct {
	StartIno  uint32
	Holemask  uint16
	Count     uint8
	Freecount uint8
	Free      uint64
}

// IsAllocated reports whether AG-relative slot i (0..63) within the
// chunk is allocated. A clear bit in the free mask means the inode is
// allocated.
func (r InobtRecord) IsAllocated(i int) bool {
	return r.Free&(uint64(1)<<uint(i)) == 0
}

// IsHole reports whether the 4-inode group containing slot i is a
// sparse hole (no inode ever allocated there).
func (r InobtRecord) IsHole(i int) bool {
	return r.Holemask&(uint16(1)<<uint(i/4)) != 0
}

func inobtHeaderSize(version Version) int {
	if version == V5 {
		return 56
	}
	return 16
}

func parseInobtHeader(buf []byte, version Version) (level uint16, numrecs uint16, err error) {
	hdrSize := inobtHeaderSize(version)
	if len(buf) < hdrSize {
		return 0, 0, Parse("buffer too small for inobt header")
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	wantMagic := uint32(xfsIbtMagic)
	region := "inobt V4 block"
	if version == V5 {
		wantMagic = xfsIbt3Magic
		region = "inobt V5 block"
	}
	if magic != wantMagic {
		return 0, 0, BadMagic(region)
	}
	level = binary.BigEndian.Uint16(buf[4:6])
	numrecs = binary.BigEndian.Uint16(buf[6:8])
	return level, numrecs, nil
}

func parseInobtRecord(buf []byte) InobtRecord {
	return InobtRecord{
		StartIno:  binary.BigEndian.Uint32(buf[0:4]),
		Holemask:  binary.BigEndian.Uint16(buf[4:6]),
		Count:     buf[6],
		Freecount: buf[7],
		Free:      binary.BigEndian.Uint64(buf[8:16]),
	}
}

type inobtPending struct {
	block         uint32
	expectedLevel uint32
}

// CollectInobtRecords walks the inode-allocation B-tree rooted at
// rootBlock (AG-relative) for AG agno, converting the traversal into a
// sorted, coalesced disk sweep per tree level rather than a depth-first
// per-node walk. agiLevel is the AGI-reported level count (1-based); the
// on-disk root block's own level field is agiLevel-1.
func CollectInobtRecords(r Reader, ctx *FsContext, agno uint32, rootBlock uint32, agiLevel uint32) ([]InobtRecord, error) {
	rootLevel := uint32(0)
	if agiLevel > 0 {
		rootLevel = agiLevel - 1
	}

	var records []InobtRecord
	pending := []inobtPending{{block: rootBlock, expectedLevel: rootLevel}}

	blockSize := int(ctx.BlockSize)
	hdrSize := inobtHeaderSize(ctx.Version)

	for len(pending) > 0 {
		sort.Slice(pending, func(i, j int) bool { return pending[i].block < pending[j].block })

		requests := make([]ReadRequest, len(pending))
		for i, p := range pending {
			requests[i] = ReadRequest{
				Offset: int64(ctx.AgBlockToByte(agno, p.block)),
				Length: blockSize,
				Tag:    i,
			}
		}

		var nextPending []inobtPending

		err := r.CoalescedReadBatch(requests, func(buf []byte, tag any) error {
			idx := tag.(int)
			p := pending[idx]

			level, numrecs, err := parseInobtHeader(buf, ctx.Version)
			if err != nil {
				return err
			}
			if uint32(level) != p.expectedLevel {
				return Parse("inobt level mismatch")
			}

			if level == 0 {
				for i := 0; i < int(numrecs); i++ {
					start := hdrSize + i*inobtRecSize
					end := start + inobtRecSize
					if end > len(buf) {
						return Parse("inobt leaf record out of bounds")
					}
					records = append(records, parseInobtRecord(buf[start:end]))
				}
				return nil
			}

			keySize, ptrSize := 4, 4
			maxrecs := (blockSize - hdrSize) / (keySize + ptrSize)
			ptrOffset := hdrSize + maxrecs*keySize

			for i := 0; i < int(numrecs); i++ {
				start := ptrOffset + i*ptrSize
				if start+ptrSize > len(buf) {
					return Parse("inobt pointer out of bounds")
				}
				child := binary.BigEndian.Uint32(buf[start : start+ptrSize])
				nextPending = append(nextPending, inobtPending{block: child, expectedLevel: levelMinusOne(level)})
			}
			return nil
		}, PhaseInobtWalk)

		if err != nil {
			return nil, err
		}

		pending = nextPending
	}

	return records, nil
}

func levelMinusOne(level uint16) uint32 {
	if level == 0 {
		return 0
	}
	return uint32(level) - 1
}
