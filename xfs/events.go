package xfs

// ControlFlow is returned by the caller's event callback to signal whether
// the scan should continue or stop at the next safe boundary.
type ControlFlow int

const (
	Continue ControlFlow = iota
	Stop
)

// EventKind discriminates the Event sum type.
type EventKind int

const (
	EventSuperblock EventKind = iota
	EventInodeFound
	EventFileExtents
	EventDirEntry
)

// Event is the tagged union emitted to the scan callback. Exactly one of
// the per-kind fields is meaningful for a given Kind; Name (for DirEntry)
// borrows from the reader's current buffer and is valid only for the
// duration of the callback invocation.
type Event struct {
	Kind EventKind

	// EventSuperblock
	SbBlockSize uint32
	SbAgCount   uint32
	SbInodeSize uint16
	SbRootIno   uint64

	// EventInodeFound
	AgNumber  uint32
	Ino       uint64
	Mode      uint16
	Size      uint64
	UID       uint32
	GID       uint32
	Nlink     uint32
	MtimeSec  uint32
	MtimeNsec uint32
	AtimeSec  uint32
	AtimeNsec uint32
	CtimeSec  uint32
	CtimeNsec uint32
	Nblocks   uint64
	Extents   []Extent // populated for InodeFound (inline extents) and FileExtents

	// EventDirEntry
	ParentIno uint64
	ChildIno  uint64
	Name      []byte
	FileType  uint8
}
