//go:build darwin

package ioreader

import (
	"os"

	"github.com/xfsscan/xfsscan/backend"
	"github.com/xfsscan/xfsscan/backend/file"
	"golang.org/x/sys/unix"
)

// OpenDirect opens path read-only and disables the buffer cache via
// fcntl(F_NOCACHE), macOS's equivalent of O_DIRECT.
func OpenDirect(path string) (backend.Storage, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if _, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
		f.Close()
		return nil, err
	}
	return file.New(f, true), nil
}
