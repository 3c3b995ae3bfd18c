package ioreader

// DiskProfile is a best-effort hint about the backing device, used only
// to tune the coalescing reader's merge-gap and max-merged-length.
// Detection failure is never fatal; callers fall back to these
// conservative defaults.
type DiskProfile struct {
	Rotational bool
	MaxIOBytes int64
	MergeGap   int64
}

// DefaultDiskProfile is returned whenever probing fails or is
// unsupported on the current platform.
func DefaultDiskProfile() DiskProfile {
	return DiskProfile{
		Rotational: true,
		MaxIOBytes: 1 << 20,
		MergeGap:   1 << 20,
	}
}
