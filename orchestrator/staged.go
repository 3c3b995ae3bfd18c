package orchestrator

import (
	"sort"

	"github.com/xfsscan/xfsscan/xfs"
)

// Scanner is the entry point of the phase-chained API: an alternative to
// Scan's plain callback that forces phases to be consumed in order. Both
// entry points share the same decoders and emit the same event ordering
// guarantee; Scan is simply this API driven to completion automatically.
type Scanner struct {
	r     xfs.Reader
	ctx   *xfs.FsContext
	maxAG uint32
	next  uint32
}

// NewScanner reads the superblock from r and returns the phase-chained
// entry point. The caller is responsible for emitting the Superblock
// event itself if it wants one; ctx is returned alongside the Scanner for
// read-only inspection.
func NewScanner(r xfs.Reader, cfg Config) (*Scanner, *xfs.FsContext, error) {
	applyConfig(r, cfg)

	sbBuf, err := r.ReadAt(0, 512, xfs.PhaseSuperblock)
	if err != nil {
		return nil, nil, err
	}
	ctx, err := xfs.ParseSuperblock(sbBuf)
	if err != nil {
		return nil, nil, err
	}

	maxAG := ctx.AgCount
	if cfg.MaxAG > 0 && cfg.MaxAG < maxAG {
		maxAG = cfg.MaxAG
	}

	return &Scanner{r: r, ctx: ctx, maxAG: maxAG}, ctx, nil
}

// NextAG advances to the next AG in ascending order. ok is false once
// every AG (bounded by MaxAG) has been consumed.
func (s *Scanner) NextAG() (ag *AGScanner, ok bool, err error) {
	if s.next >= s.maxAG {
		return nil, false, nil
	}
	agno := s.next
	s.next++

	agiLen := alignUp512(28)
	agiBuf, err := s.r.ReadAt(int64(s.ctx.AgiByteOffset(agno)), agiLen, xfs.PhaseAgi)
	if err != nil {
		return nil, false, err
	}
	agi, err := xfs.ParseAgi(agiBuf, agno)
	if err != nil {
		return nil, false, err
	}

	return &AGScanner{r: s.r, ctx: s.ctx, agno: agno, agi: agi}, true, nil
}

// AGScanner is the per-AG phase: it must consume the inobt walk and
// inode-chunk batch read before advancing to extent/directory phases.
type AGScanner struct {
	r    xfs.Reader
	ctx  *xfs.FsContext
	agno uint32
	agi  *xfs.Agi
}

// ScanInodes walks the inobt, batch-reads every inode chunk, and emits
// InodeFound for every live slot, returning the next phase with
// btree-format forks queued for the extent sweep.
func (a *AGScanner) ScanInodes(emit func(xfs.Event) error) (*AGExtentPhase, error) {
	records, err := xfs.CollectInobtRecords(a.r, a.ctx, a.agno, a.agi.InobtRoot, a.agi.InobtLevel)
	if err != nil {
		return nil, err
	}

	var dirs []dirWork
	var files []fileWork
	if err := scanInodeChunksSorted(a.r, a.ctx, a.agno, records, emit, &dirs, &files); err != nil {
		return nil, err
	}

	return &AGExtentPhase{r: a.r, ctx: a.ctx, dirs: dirs, files: files}, nil
}

func scanInodeChunksSorted(r xfs.Reader, ctx *xfs.FsContext, agno uint32, records []xfs.InobtRecord, emit func(xfs.Event) error, dirs *[]dirWork, files *[]fileWork) error {
	sortInobtRecords(records)
	return scanInodeChunks(r, ctx, agno, records, emit, dirs, files)
}

// AGExtentPhase walks the bmbt for any regular files queued by ScanInodes.
type AGExtentPhase struct {
	r     xfs.Reader
	ctx   *xfs.FsContext
	dirs  []dirWork
	files []fileWork
}

// ScanFileExtents runs the bmbt sweep for btree-format regular files and
// emits FileExtents for each, returning the directory phase.
func (e *AGExtentPhase) ScanFileExtents(emit func(xfs.Event) error) (*AGDirPhase, error) {
	if err := sweepFileExtents(e.r, e.ctx, e.files, emit); err != nil {
		return nil, err
	}
	return &AGDirPhase{r: e.r, ctx: e.ctx, dirs: e.dirs}, nil
}

// SkipExtents bypasses the bmbt sweep entirely (no FileExtents events for
// this AG) and advances straight to the directory phase.
func (e *AGExtentPhase) SkipExtents() *AGDirPhase {
	return &AGDirPhase{r: e.r, ctx: e.ctx, dirs: e.dirs}
}

// AGDirPhase sweeps directory data for every queued directory inode.
type AGDirPhase struct {
	r    xfs.Reader
	ctx  *xfs.FsContext
	dirs []dirWork
}

// ScanDirEntries resolves btree-format directory forks, batch-reads every
// directory extent, and emits DirEntry for each on-disk entry.
func (d *AGDirPhase) ScanDirEntries(emit func(xfs.Event) error) error {
	return sweepDirectories(d.r, d.ctx, d.dirs, emit)
}

// SkipDirs bypasses the directory sweep entirely for this AG.
func (d *AGDirPhase) SkipDirs() {}

func sortInobtRecords(records []xfs.InobtRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].StartIno < records[j].StartIno })
}
