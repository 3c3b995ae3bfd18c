//go:build linux

package ioreader

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ProbeDiskProfile best-effort probes f's backing device: sector size via
// the BLKSSZGET ioctl, and rotational-ness via the sysfs queue/rotational
// attribute for the device's major:minor (there is no ioctl for this on
// Linux). Any failure falls back to DefaultDiskProfile.
func ProbeDiskProfile(f *os.File) DiskProfile {
	profile := DefaultDiskProfile()

	sectSize, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err == nil && sectSize > 0 {
		profile.MergeGap = int64(sectSize) * 256
	}

	var st syscall.Stat_t
	if err := syscall.Fstat(int(f.Fd()), &st); err != nil {
		return profile
	}
	major := unix.Major(st.Rdev)
	minor := unix.Minor(st.Rdev)
	path := fmt.Sprintf("/sys/dev/block/%d:%d/queue/rotational", major, minor)
	data, err := os.ReadFile(path)
	if err != nil {
		return profile
	}
	if v, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
		profile.Rotational = v != 0
	}
	return profile
}
