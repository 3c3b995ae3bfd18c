//go:build linux

package ioreader

import (
	"os"

	"github.com/xfsscan/xfsscan/backend"
	"github.com/xfsscan/xfsscan/backend/file"
	"golang.org/x/sys/unix"
)

// OpenDirect opens path read-only with O_DIRECT, the only place this
// package requests uncached I/O.
func OpenDirect(path string) (backend.Storage, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_DIRECT, 0)
	if err != nil {
		return nil, err
	}
	return file.New(f, true), nil
}
