package xfs

import "encoding/binary"

// Directory data/block-format magics.
const (
	xfsDir2DataMagic  = 0x58443244 // "XD2D" V4 data-only block
	xfsDir2BlockMagic = 0x58443242 // "XD2B" V4 single-block dir
	xfsDir3DataMagic  = 0x58444433 // "XDD3" V5 data-only block
	xfsDir3BlockMagic = 0x58444233 // "XDB3" V5 single-block dir
)

const dirFreeTag = 0xffff

func dataHdrSize(version Version) int {
	if version == V5 {
		return 64
	}
	return 16
}

func isDataBlockMagic(magic uint32, version Version) bool {
	if version == V5 {
		return magic == xfsDir3DataMagic || magic == xfsDir3BlockMagic
	}
	return magic == xfsDir2DataMagic || magic == xfsDir2BlockMagic
}

func isBlockFormatMagic(magic uint32) bool {
	return magic == xfsDir2BlockMagic || magic == xfsDir3BlockMagic
}

// dataEndOffset computes where directory data entries end within buf.
// Block-format directories (XD2B/XDB3) carry a trailing leaf section and
// an 8-byte tail {leaf_count, stale}; data entries end before the leaf
// entries (8 bytes each) that immediately precede the tail. Data-only
// blocks (XD2D/XDD3) use the whole buffer.
func dataEndOffset(buf []byte, magic uint32) int {
	if isBlockFormatMagic(magic) && len(buf) >= 8 {
		tailOffset := len(buf) - 8
		leafCount := int(binary.BigEndian.Uint32(buf[tailOffset : tailOffset+4]))
		end := tailOffset - leafCount*8
		if end < 0 {
			return 0
		}
		return end
	}
	return len(buf)
}

// ParseDirDataBlock decodes directory entries from one on-disk directory
// block (buf is exactly one directory block) and emits a DirEntry event
// for each used entry via emit. Any magic other than the four data/block
// magics for ctx's version is silently skipped — the block may be a leaf
// or free-space block returned by a coalesced batch read.
func ParseDirDataBlock(buf []byte, parentIno uint64, ctx *FsContext, emit func(Event) error) error {
	if len(buf) < 4 {
		return Parse("dir data block too small")
	}

	magic := binary.BigEndian.Uint32(buf[0:4])
	if !isDataBlockMagic(magic, ctx.Version) {
		return nil
	}

	hdrSize := dataHdrSize(ctx.Version)
	dataEnd := dataEndOffset(buf, magic)
	offset := hdrSize

	for offset+6 <= dataEnd {
		freetag := binary.BigEndian.Uint16(buf[offset : offset+2])

		if freetag == dirFreeTag {
			length := int(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
			if length == 0 || offset+length > dataEnd {
				break
			}
			offset += length
			continue
		}

		if offset+9 > dataEnd {
			break
		}

		inumber := binary.BigEndian.Uint64(buf[offset : offset+8])
		namelen := int(buf[offset+8])

		nameStart := offset + 9
		nameEnd := nameStart + namelen
		if nameEnd > dataEnd {
			break
		}
		name := buf[nameStart:nameEnd]

		var ftype uint8
		ftypeSize := 0
		if ctx.HasFType {
			ftypeSize = 1
			if nameEnd < dataEnd {
				ftype = buf[nameEnd]
			}
		}

		if err := emit(Event{Kind: EventDirEntry, ParentIno: parentIno, ChildIno: inumber, Name: name, FileType: ftype}); err != nil {
			return err
		}

		rawSize := 8 + 1 + namelen + ftypeSize + 2
		paddedSize := (rawSize + 7) &^ 7
		offset += paddedSize
	}

	return nil
}
