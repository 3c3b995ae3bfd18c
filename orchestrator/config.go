// Package orchestrator drives the phased, per-AG scan described by the
// core: superblock, then for each AG the AGI, the inobt walk, a batched
// inode-chunk read, the bmbt sweep for queued btree-format forks, and a
// coalesced directory-data sweep.
package orchestrator

import "github.com/sirupsen/logrus"

// Config carries the only tuning knobs the orchestrator recognizes.
// There is no other global state.
type Config struct {
	// MaxAG caps the number of allocation groups scanned; 0 means no
	// cap (scan every AG the superblock reports).
	MaxAG uint32

	// MergeGap is the coalescing reader's merge-adjacent-requests
	// threshold in bytes; 0 selects the disk-profile default.
	MergeGap int64

	// MaxMerged is the coalescing reader's max physical-read length in
	// bytes; 0 selects the disk-profile default.
	MaxMerged int64

	// MaxInFlight bounds how many logical requests one coalesced batch
	// groups into pending physical reads before backpressure applies;
	// 0 selects the default of 128.
	MaxInFlight int

	// IoLogPath names the phase-labeled CSV diagnostic log. Scan and
	// NewScanner do not read IoLogPath or IoLogLimit and never open the
	// log; ioreader.MaybeInstrumented takes the same two values and
	// builds the logging reader.
	IoLogPath string
	// IoLogLimit caps the number of logged rows; 0 means unlimited.
	IoLogLimit int

	// Logger receives a single structured entry if the scan aborts with
	// a fatal error. The core never logs anything else.
	Logger *logrus.Logger
}
