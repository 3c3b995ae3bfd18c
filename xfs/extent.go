package xfs

import "encoding/binary"

// extentRecSize is the width of one packed on-disk extent record.
const extentRecSize = 16

// Extent is an unpacked data-fork extent: a contiguous run of physical
// filesystem blocks mapped to a contiguous logical block range of a file.
type Extent struct {
	LogicalOffset uint64
	StartBlock    uint64
	BlockCount    uint64
	IsUnwritten   bool
}

// UnpackExtent decodes one 16-byte packed big-endian extent record.
//
// Bit layout (bit 127 is MSB of the 128-bit record):
//
//	bit 127:    unwritten flag
//	bits 126-73: logical file offset (54 bits)
//	bits 72-21:  starting filesystem block (52 bits)
//	bits 20-0:   block count (21 bits)
func UnpackExtent(rec []byte) Extent {
	l0 := binary.BigEndian.Uint64(rec[0:8])
	l1 := binary.BigEndian.Uint64(rec[8:16])

	isUnwritten := l0>>63 != 0
	logicalOffset := (l0 >> 9) & 0x003FFFFFFFFFFFFF
	startBlock := ((l0 & 0x1FF) << 43) | (l1 >> 21)
	blockCount := l1 & 0x001FFFFF

	return Extent{
		LogicalOffset: logicalOffset,
		StartBlock:    startBlock,
		BlockCount:    blockCount,
		IsUnwritten:   isUnwritten,
	}
}

// Pack re-encodes an Extent into its 16-byte packed big-endian form, the
// exact inverse of UnpackExtent.
func (e Extent) Pack() [16]byte {
	var l0, l1 uint64
	if e.IsUnwritten {
		l0 |= 1 << 63
	}
	l0 |= (e.LogicalOffset & 0x003FFFFFFFFFFFFF) << 9
	l0 |= (e.StartBlock >> 43) & 0x1FF
	l1 |= (e.StartBlock & 0x7FFFFFFFFFF) << 21
	l1 |= e.BlockCount & 0x001FFFFF

	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], l0)
	binary.BigEndian.PutUint64(out[8:16], l1)
	return out
}

// ParseExtentList decodes nextents consecutive packed extent records
// starting at byte 0 of forkBuf (an inline EXTENTS-format data fork).
func ParseExtentList(forkBuf []byte, nextents uint32) ([]Extent, error) {
	extents := make([]Extent, 0, nextents)
	for i := 0; i < int(nextents); i++ {
		start := i * extentRecSize
		if start+extentRecSize > len(forkBuf) {
			return nil, Parse("extent record out of bounds")
		}
		extents = append(extents, UnpackExtent(forkBuf[start:start+extentRecSize]))
	}
	return extents, nil
}
