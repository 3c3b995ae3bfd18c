// Package xfs parses the on-disk structures of an XFS filesystem image:
// superblock, AG headers, the inode-allocation and block-mapping B-trees,
// inode cores, packed extents, and directory data. It opens no device of
// its own: the B-tree walkers read through a caller-supplied Reader, and
// the other decoders take already-read buffers.
package xfs

import (
	"errors"
	"fmt"
)

// Sentinel error classes. Use errors.Is against these, not the wrapped
// value, since every occurrence carries a region-specific message.
var (
	ErrIO       = errors.New("i/o failure")
	ErrBadMagic = errors.New("bad magic")
	ErrParse    = errors.New("parse error")

	// errStopped unwinds nested batch callbacks when the caller's event
	// callback requests early termination. It never escapes the
	// orchestrator package.
	errStopped = errors.New("scan stopped")
)

// BadMagic builds an ErrBadMagic for the named on-disk region.
func BadMagic(region string) error {
	return fmt.Errorf("%w: %s", ErrBadMagic, region)
}

// Parse builds an ErrParse with a short static message.
func Parse(msg string) error {
	return fmt.Errorf("%w: %s", ErrParse, msg)
}

// IOErrorf builds an ErrIO wrapping an underlying I/O failure.
func IOErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrIO}, args...)...)
}

// Stopped reports whether err is the internal early-termination sentinel.
func Stopped(err error) bool {
	return errors.Is(err, errStopped)
}

// ErrStop is returned by an event callback to request early termination.
// It is never a fatal condition; the orchestrator converts it to a nil
// return at the top level.
var ErrStop = errStopped
