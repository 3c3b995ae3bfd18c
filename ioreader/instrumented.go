package ioreader

import (
	"bufio"
	"fmt"
	"os"

	"github.com/xfsscan/xfsscan/util/timestamp"
	"github.com/xfsscan/xfsscan/xfs"
)

// Instrumented decorates any xfs.Reader, appending a CSV row per read to
// an optional diagnostic log. It is never constructed unless a log path
// was configured.
type Instrumented struct {
	inner     xfs.Reader
	w         *bufio.Writer
	f         *os.File
	remaining int // rows still allowed; -1 sentinel for unlimited
}

// NewInstrumented wraps inner with CSV logging to path, capped at limit
// rows (0 means unlimited).
func NewInstrumented(inner xfs.Reader, path string, limit int) (*Instrumented, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, xfs.IOErrorf("create io log %q: %v", path, err)
	}
	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintln(w, "phase,offset,len,timestamp"); err != nil {
		f.Close()
		return nil, xfs.IOErrorf("write io log header: %v", err)
	}
	remaining := limit
	if remaining <= 0 {
		remaining = -1 // unlimited sentinel
	}
	return &Instrumented{inner: inner, w: w, f: f, remaining: remaining}, nil
}

func (i *Instrumented) logRead(phase xfs.Phase, offset int64, length int) {
	if i.remaining == 0 {
		return
	}
	fmt.Fprintf(i.w, "%s,%d,%d,%d\n", phase, offset, length, timestamp.GetTime().Unix())
	if i.remaining > 0 {
		i.remaining--
	}
}

// Close flushes and closes the underlying log file.
func (i *Instrumented) Close() error {
	if err := i.w.Flush(); err != nil {
		i.f.Close()
		return err
	}
	return i.f.Close()
}

func (i *Instrumented) ReadAt(offset int64, length int, phase xfs.Phase) ([]byte, error) {
	i.logRead(phase, offset, length)
	return i.inner.ReadAt(offset, length, phase)
}

func (i *Instrumented) CoalescedReadBatch(requests []xfs.ReadRequest, onComplete func(buf []byte, tag any) error, phase xfs.Phase) error {
	for _, req := range requests {
		i.logRead(phase, req.Offset, req.Length)
	}
	return i.inner.CoalescedReadBatch(requests, onComplete, phase)
}

var _ xfs.Reader = (*Instrumented)(nil)

// MaybeInstrumented chooses between a bare reader and an instrumented one
// at construction time, avoiding an interface-dispatch layer when logging
// is disabled (the common case).
func MaybeInstrumented(inner xfs.Reader, logPath string, limit int) (xfs.Reader, func() error, error) {
	if logPath == "" {
		return inner, func() error { return nil }, nil
	}
	instr, err := NewInstrumented(inner, logPath, limit)
	if err != nil {
		return nil, nil, err
	}
	return instr, instr.Close, nil
}
