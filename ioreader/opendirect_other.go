//go:build !linux && !darwin

package ioreader

import (
	"os"

	"github.com/xfsscan/xfsscan/backend"
	"github.com/xfsscan/xfsscan/backend/file"
)

// OpenDirect opens path read-only. Platforms with no uncached-I/O
// facility this package knows how to drive fall back to a plain open;
// the reader's own alignment discipline still holds.
func OpenDirect(path string) (backend.Storage, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return file.New(f, true), nil
}
