//go:build !linux

package ioreader

import "os"

// ProbeDiskProfile has no portable probing strategy outside Linux; it
// always returns the conservative defaults.
func ProbeDiskProfile(f *os.File) DiskProfile {
	return DefaultDiskProfile()
}
