package xfs

import "encoding/binary"

// ParseShortformDir decodes a shortform directory from an inode's data
// fork (forkBuf) and emits one DirEntry event per on-disk entry via
// emit, synthesizing "." and ".." first. Name byte slices borrow from
// forkBuf and are only valid until emit returns.
func ParseShortformDir(forkBuf []byte, parentIno uint64, ctx *FsContext, emit func(Event) error) error {
	if len(forkBuf) < 6 {
		return Parse("shortform dir too small")
	}

	i8count := forkBuf[1]
	use8Byte := i8count > 0

	entryCount := int(forkBuf[0])
	var hdrParentIno uint64
	var hdrSize int
	if use8Byte {
		if len(forkBuf) < 10 {
			return Parse("shortform hdr8 too small")
		}
		hdrParentIno = binary.BigEndian.Uint64(forkBuf[2:10])
		hdrSize = 10
	} else {
		hdrParentIno = uint64(binary.BigEndian.Uint32(forkBuf[2:6]))
		hdrSize = 6
	}

	if err := emit(Event{Kind: EventDirEntry, ParentIno: parentIno, ChildIno: parentIno, Name: []byte("."), FileType: 0}); err != nil {
		return err
	}
	if err := emit(Event{Kind: EventDirEntry, ParentIno: parentIno, ChildIno: hdrParentIno, Name: []byte(".."), FileType: 0}); err != nil {
		return err
	}

	inoSize := 4
	if use8Byte {
		inoSize = 8
	}
	offset := hdrSize

	for n := 0; n < entryCount; n++ {
		if offset >= len(forkBuf) {
			return Parse("shortform entry past end")
		}

		namelen := int(forkBuf[offset])
		nameStart := offset + 1 + 2 // namelen(1) + on-disk offset(2, ignored)
		nameEnd := nameStart + namelen
		if nameEnd > len(forkBuf) {
			return Parse("shortform entry name out of bounds")
		}
		name := forkBuf[nameStart:nameEnd]

		ftypeSize := 0
		var ftype uint8
		if ctx.HasFType {
			ftypeSize = 1
			if nameEnd >= len(forkBuf) {
				return Parse("shortform entry ftype out of bounds")
			}
			ftype = forkBuf[nameEnd]
		}

		inoStart := nameEnd + ftypeSize
		var childIno uint64
		if use8Byte {
			if inoStart+8 > len(forkBuf) {
				return Parse("shortform 8-byte ino out of bounds")
			}
			childIno = binary.BigEndian.Uint64(forkBuf[inoStart : inoStart+8])
		} else {
			if inoStart+4 > len(forkBuf) {
				return Parse("shortform 4-byte ino out of bounds")
			}
			childIno = uint64(binary.BigEndian.Uint32(forkBuf[inoStart : inoStart+4]))
		}

		if err := emit(Event{Kind: EventDirEntry, ParentIno: parentIno, ChildIno: childIno, Name: name, FileType: ftype}); err != nil {
			return err
		}

		offset = inoStart + inoSize
	}

	return nil
}
