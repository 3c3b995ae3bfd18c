package xfs

import (
	"encoding/binary"
	"sort"
)

// Block-mapping B-tree long-form block magics.
const (
	xfsBmapMagic  = 0x424d4150 // "BMAP" V4
	xfsBma3Magic  = 0x424d4133 // "BMA3" V5
)

func bmbtBlockHdrSize(version Version) int {
	if version == V5 {
		return 72
	}
	return 24
}

// BmbtInput is one btree-format inode whose data fork needs walking: the
// fork bytes copied out of its on-disk inode, and the fork area's total
// size (used to compute maxrecs for the in-inode root).
type BmbtInput struct {
	Ino          uint64
	ForkData     []byte
	DataForkSize int
}

type bmbtPending struct {
	fsblock       uint64
	ownerIno      uint64
	expectedLevel uint32
}

// CollectBmbtExtents walks the block-mapping B-tree for every btree-format
// inode in dirs, coalescing the traversal across all of them into one
// sorted disk sweep per tree level instead of a per-inode depth-first
// walk. Returns a map from inode number to its decoded extent list.
func CollectBmbtExtents(r Reader, ctx *FsContext, dirs []BmbtInput) (map[uint64][]Extent, error) {
	results := make(map[uint64][]Extent)
	var pending []bmbtPending

	for _, dir := range dirs {
		if len(dir.ForkData) < 4 {
			return nil, Parse("bmbt root too small")
		}

		level := binary.BigEndian.Uint16(dir.ForkData[0:2])
		numrecs := int(binary.BigEndian.Uint16(dir.ForkData[2:4]))

		if level == 0 {
			extents, err := parseBmbtLeafInline(dir.ForkData, numrecs)
			if err != nil {
				return nil, err
			}
			if len(extents) > 0 {
				results[dir.Ino] = append(results[dir.Ino], extents...)
			}
			continue
		}

		maxrecs := (dir.DataForkSize - 4) / (8 + 8)
		ptrStart := 4 + maxrecs*8

		for i := 0; i < numrecs; i++ {
			off := ptrStart + i*8
			if off+8 > len(dir.ForkData) {
				break
			}
			fsblock := binary.BigEndian.Uint64(dir.ForkData[off : off+8])
			pending = append(pending, bmbtPending{
				fsblock:       fsblock,
				ownerIno:      dir.Ino,
				expectedLevel: levelMinusOne(level),
			})
		}
	}

	blockSize := int(ctx.BlockSize)

	for len(pending) > 0 {
		sort.Slice(pending, func(i, j int) bool { return pending[i].fsblock < pending[j].fsblock })

		requests := make([]ReadRequest, len(pending))
		for i, p := range pending {
			requests[i] = ReadRequest{
				Offset: int64(ctx.FsblockToByte(p.fsblock)),
				Length: blockSize,
				Tag:    i,
			}
		}

		var nextPending []bmbtPending

		err := r.CoalescedReadBatch(requests, func(buf []byte, tag any) error {
			idx := tag.(int)
			p := pending[idx]

			if len(buf) < 8 {
				return Parse("bmbt block too small")
			}

			magic := binary.BigEndian.Uint32(buf[0:4])
			wantMagic := uint32(xfsBmapMagic)
			region := "bmbt V4 block"
			if ctx.Version == V5 {
				wantMagic = xfsBma3Magic
				region = "bmbt V5 block"
			}
			if magic != wantMagic {
				return BadMagic(region)
			}
			hdrSize := bmbtBlockHdrSize(ctx.Version)

			level := binary.BigEndian.Uint16(buf[4:6])
			numrecs := int(binary.BigEndian.Uint16(buf[6:8]))

			if uint32(level) != p.expectedLevel {
				return Parse("bmbt level mismatch")
			}

			if level == 0 {
				for i := 0; i < numrecs; i++ {
					offset := hdrSize + i*extentRecSize
					if offset+extentRecSize > len(buf) {
						break
					}
					results[p.ownerIno] = append(results[p.ownerIno], UnpackExtent(buf[offset:offset+extentRecSize]))
				}
				return nil
			}

			keySize, ptrSize := 8, 8
			maxrecs := (blockSize - hdrSize) / (keySize + ptrSize)
			ptrStart := hdrSize + maxrecs*keySize

			for i := 0; i < numrecs; i++ {
				off := ptrStart + i*ptrSize
				if off+ptrSize > len(buf) {
					break
				}
				fsblock := binary.BigEndian.Uint64(buf[off : off+8])
				nextPending = append(nextPending, bmbtPending{
					fsblock:       fsblock,
					ownerIno:      p.ownerIno,
					expectedLevel: levelMinusOne(level),
				})
			}
			return nil
		}, PhaseBmbtWalk)

		if err != nil {
			return nil, err
		}

		pending = nextPending
	}

	return results, nil
}

func parseBmbtLeafInline(forkData []byte, numrecs int) ([]Extent, error) {
	extents := make([]Extent, 0, numrecs)
	for i := 0; i < numrecs; i++ {
		offset := 4 + i*extentRecSize
		if offset+extentRecSize > len(forkData) {
			break
		}
		extents = append(extents, UnpackExtent(forkData[offset:offset+extentRecSize]))
	}
	return extents, nil
}
