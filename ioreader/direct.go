// Package ioreader implements the xfs.Reader capability over a
// backend.Storage: a single growable, sector-aligned buffer reader plus a
// gap-fill/merge coalescing batch implementation, and an optional CSV
// logging decorator for diagnostics.
package ioreader

import (
	"sort"

	"github.com/xfsscan/xfsscan/backend"
	"github.com/xfsscan/xfsscan/xfs"
)

// IoAlign is the required alignment for offsets and lengths (512 bytes
// covers all common block devices).
const IoAlign = 512

// defaultBufSize is the initial size of the reusable read buffer.
const defaultBufSize = 4 << 20 // 4 MiB

// defaultMaxInFlight is the default bound on how many logical requests one
// call to CoalescedReadBatch groups into pending physical reads before a
// following merge round is started (spec'd bounded queue depth 64-128).
const defaultMaxInFlight = 128

// Direct is the reference xfs.Reader implementation: one preallocated
// buffer grown on demand, reads clamped to device size and alignment, and
// a coalescing CoalescedReadBatch that merges nearby requests into fewer
// physical reads.
type Direct struct {
	storage     backend.Storage
	deviceSize  int64
	buf         []byte
	mergeGap    int64
	maxMerged   int64
	maxInFlight int
}

// NewDirect wraps an already-open backend.Storage. mergeGap and maxMerged
// tune CoalescedReadBatch; a mergeGap or maxMerged of 0 selects the
// conservative defaults from the disk-profile hint (1 MiB each).
func NewDirect(storage backend.Storage, mergeGap, maxMerged int64) (*Direct, error) {
	info, err := storage.Stat()
	if err != nil {
		return nil, xfs.IOErrorf("stat: %v", err)
	}
	if mergeGap <= 0 {
		mergeGap = 1 << 20
	}
	if maxMerged <= 0 {
		maxMerged = 1 << 20
	}
	return &Direct{
		storage:     storage,
		deviceSize:  info.Size(),
		buf:         make([]byte, defaultBufSize),
		mergeGap:    mergeGap,
		maxMerged:   maxMerged,
		maxInFlight: defaultMaxInFlight,
	}, nil
}

// Configure retunes merge/backpressure behavior after construction, letting
// orchestrator.Scan apply an orchestrator.Config's knobs to a reader it
// didn't build. A zero value for any parameter leaves that setting
// unchanged, so a Config with only MaxInFlight set doesn't reset the
// merge-gap tuning NewDirect already established.
func (d *Direct) Configure(mergeGap, maxMerged int64, maxInFlight int) {
	if mergeGap > 0 {
		d.mergeGap = mergeGap
	}
	if maxMerged > 0 {
		d.maxMerged = maxMerged
	}
	if maxInFlight > 0 {
		d.maxInFlight = maxInFlight
	}
}

func alignDown(v int64) int64 {
	return v &^ (IoAlign - 1)
}

func alignUp(v int64) int64 {
	return (v + IoAlign - 1) &^ (IoAlign - 1)
}

// ReadAt reads up to length bytes at offset, clamped to device size and
// I/O alignment, returning a slice into the internal buffer. The slice is
// only valid until the next ReadAt/CoalescedReadBatch call.
func (d *Direct) ReadAt(offset int64, length int, phase xfs.Phase) ([]byte, error) {
	if offset >= d.deviceSize {
		return nil, xfs.IOErrorf("read at or beyond device boundary (phase=%s offset=%d)", phase, offset)
	}
	available := d.deviceSize - offset
	clamped := int64(length)
	if clamped > available {
		clamped = available
	}
	clamped = alignDown(clamped)
	if clamped == 0 {
		return nil, xfs.IOErrorf("read clamps to zero bytes (phase=%s offset=%d)", phase, offset)
	}

	if int64(len(d.buf)) < clamped {
		d.buf = make([]byte, clamped)
	}

	total := int64(0)
	for total < clamped {
		n, err := d.storage.ReadAt(d.buf[total:clamped], offset+total)
		if n > 0 {
			total += int64(n)
		}
		if err != nil {
			if total > 0 {
				break
			}
			return nil, xfs.IOErrorf("pread at %d: %v", offset+total, err)
		}
		if n == 0 {
			break
		}
	}
	if total == 0 {
		return nil, xfs.IOErrorf("unexpected EOF at offset %d", offset)
	}

	return d.buf[:total], nil
}

// mergedGroup is one physical read covering one or more logical requests.
type mergedGroup struct {
	offset  int64
	length  int64
	members []int // indices into the sorted request slice
}

// CoalescedReadBatch sorts requests by offset, then processes them in
// rounds of at most maxInFlight logical requests: each round merges
// requests separated by at most mergeGap into a single physical read
// bounded by maxMerged, and invokes onComplete once per logical request by
// slicing the physical buffer. Bounding the round size caps how much of a
// single physical read's worth of pending requests is outstanding at once,
// rather than letting one CoalescedReadBatch call widen without limit.
func (d *Direct) CoalescedReadBatch(requests []xfs.ReadRequest, onComplete func(buf []byte, tag any) error, phase xfs.Phase) error {
	if len(requests) == 0 {
		return nil
	}

	order := make([]int, len(requests))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return requests[order[i]].Offset < requests[order[j]].Offset })

	roundSize := d.maxInFlight
	if roundSize <= 0 {
		roundSize = defaultMaxInFlight
	}

	for start := 0; start < len(order); start += roundSize {
		end := start + roundSize
		if end > len(order) {
			end = len(order)
		}
		if err := d.coalesceRound(order[start:end], requests, onComplete, phase); err != nil {
			return err
		}
	}

	return nil
}

// coalesceRound merges and reads one bounded round of requests, identified
// by their indices (already sorted by offset) into the original requests
// slice.
func (d *Direct) coalesceRound(round []int, requests []xfs.ReadRequest, onComplete func(buf []byte, tag any) error, phase xfs.Phase) error {
	var groups []mergedGroup
	for _, idx := range round {
		req := requests[idx]
		reqEnd := req.Offset + int64(req.Length)

		if n := len(groups); n > 0 {
			g := &groups[n-1]
			gEnd := g.offset + g.length
			if req.Offset-gEnd <= d.mergeGap && reqEnd-g.offset <= d.maxMerged {
				if reqEnd > gEnd {
					g.length = reqEnd - g.offset
				}
				g.members = append(g.members, idx)
				continue
			}
		}

		groups = append(groups, mergedGroup{
			offset:  req.Offset,
			length:  reqEnd - req.Offset,
			members: []int{idx},
		})
	}

	for _, g := range groups {
		physBuf, err := d.ReadAt(g.offset, int(g.length), phase)
		if err != nil {
			return err
		}
		physEnd := g.offset + int64(len(physBuf))

		for _, idx := range g.members {
			req := requests[idx]
			reqEnd := req.Offset + int64(req.Length)
			if reqEnd > physEnd {
				return xfs.IOErrorf("coalesced read short at offset %d (phase=%s)", req.Offset, phase)
			}
			start := req.Offset - g.offset
			end := start + int64(req.Length)
			if err := onComplete(physBuf[start:end], req.Tag); err != nil {
				return err
			}
		}
	}

	return nil
}

var _ xfs.Reader = (*Direct)(nil)
