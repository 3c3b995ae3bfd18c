package ioreader

import "github.com/xfsscan/xfsscan/backend"

// OpenDirectAt opens path exactly like OpenDirect, then restricts the
// resulting backend.Storage to the byte range [offset, offset+size) via
// backend.Sub. This is how a caller points the scanner at an XFS
// filesystem that starts partway into a larger image (behind a partition
// table this module doesn't parse, or concatenated with other data)
// without re-deriving every offset the decoders compute: everything
// downstream keeps addressing byte 0 as the start of the filesystem.
func OpenDirectAt(path string, offset, size int64) (backend.Storage, error) {
	storage, err := OpenDirect(path)
	if err != nil {
		return nil, err
	}
	return backend.Sub(storage, offset, size), nil
}
