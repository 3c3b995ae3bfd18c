package orchestrator

import (
	"errors"
	"sort"

	"github.com/xfsscan/xfsscan/xfs"
)

// Callback is the sole output surface: invoked once per discovered event,
// in strict disk-sweep order. Returning xfs.Stop requests clean early
// termination at the next safe boundary.
type Callback func(xfs.Event) xfs.ControlFlow

// configurableReader is implemented by xfs.Reader backends that accept
// merge/backpressure tuning after construction (ioreader.Direct). Scan
// type-asserts for it so Config's MergeGap/MaxMerged/MaxInFlight actually
// reach the reader that does the coalescing, without orchestrator needing
// to import ioreader.
type configurableReader interface {
	Configure(mergeGap, maxMerged int64, maxInFlight int)
}

func applyConfig(r xfs.Reader, cfg Config) {
	if cfg.MergeGap == 0 && cfg.MaxMerged == 0 && cfg.MaxInFlight == 0 {
		return
	}
	if c, ok := r.(configurableReader); ok {
		c.Configure(cfg.MergeGap, cfg.MaxMerged, cfg.MaxInFlight)
	}
}

// dirWork is one directory inode queued during the inode-chunk scan,
// carrying whatever its fork format needs for the later directory sweep.
type dirWork struct {
	ino       uint64
	format    uint8
	forkBytes []byte // LOCAL: shortform fork; BTREE: copied fork root
	forkSize  int
	extents   []xfs.Extent // EXTENTS format, decoded inline
}

// fileWork is one regular-file inode whose BTREE-format fork needs a
// bmbt walk before FileExtents can be emitted.
type fileWork struct {
	ino       uint64
	forkBytes []byte
	forkSize  int
}

// Scan reads the superblock from r, then walks every AG in ascending
// order (bounded by cfg.MaxAG if set), emitting events to cb. A stop
// request from cb is translated into a clean nil return; any other fatal
// condition is returned verbatim, optionally logged via cfg.Logger first.
func Scan(r xfs.Reader, cfg Config, cb Callback) error {
	err := scan(r, cfg, cb)
	if err != nil {
		if errors.Is(err, xfs.ErrStop) {
			return nil
		}
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).Error("scan aborted")
		}
		return err
	}
	return nil
}

func scan(r xfs.Reader, cfg Config, cb Callback) error {
	applyConfig(r, cfg)

	emit := func(e xfs.Event) error {
		if cb(e) == xfs.Stop {
			return xfs.ErrStop
		}
		return nil
	}

	sbBuf, err := r.ReadAt(0, 512, xfs.PhaseSuperblock)
	if err != nil {
		return err
	}
	ctx, err := xfs.ParseSuperblock(sbBuf)
	if err != nil {
		return err
	}

	if err := emit(xfs.Event{
		Kind:        xfs.EventSuperblock,
		SbBlockSize: ctx.BlockSize,
		SbAgCount:   ctx.AgCount,
		SbInodeSize: ctx.InodeSize,
		SbRootIno:   ctx.RootIno,
	}); err != nil {
		return err
	}

	agCount := ctx.AgCount
	if cfg.MaxAG > 0 && cfg.MaxAG < agCount {
		agCount = cfg.MaxAG
	}

	for agno := uint32(0); agno < agCount; agno++ {
		if err := scanAG(r, ctx, agno, emit); err != nil {
			return err
		}
	}

	return nil
}

func scanAG(r xfs.Reader, ctx *xfs.FsContext, agno uint32, emit func(xfs.Event) error) error {
	agiLen := alignUp512(28)
	agiBuf, err := r.ReadAt(int64(ctx.AgiByteOffset(agno)), agiLen, xfs.PhaseAgi)
	if err != nil {
		return err
	}
	agi, err := xfs.ParseAgi(agiBuf, agno)
	if err != nil {
		return err
	}

	records, err := xfs.CollectInobtRecords(r, ctx, agno, agi.InobtRoot, agi.InobtLevel)
	if err != nil {
		return err
	}
	sortInobtRecords(records)

	var dirs []dirWork
	var files []fileWork

	if err := scanInodeChunks(r, ctx, agno, records, emit, &dirs, &files); err != nil {
		return err
	}

	if err := sweepFileExtents(r, ctx, files, emit); err != nil {
		return err
	}

	return sweepDirectories(r, ctx, dirs, emit)
}

func alignUp512(n int) int {
	return (n + 511) &^ 511
}

// scanInodeChunks builds and executes one coalesced batch read for every
// inode chunk described by records, emitting InodeFound for every live
// slot and queuing directory/file work according to fork format.
func scanInodeChunks(r xfs.Reader, ctx *xfs.FsContext, agno uint32, records []xfs.InobtRecord, emit func(xfs.Event) error, dirs *[]dirWork, files *[]fileWork) error {
	if len(records) == 0 {
		return nil
	}

	chunkLen := 64 * int(ctx.InodeSize)
	requests := make([]xfs.ReadRequest, len(records))
	for i, rec := range records {
		agBlock := rec.StartIno >> ctx.InopBlog
		requests[i] = xfs.ReadRequest{
			Offset: int64(ctx.AgBlockToByte(agno, agBlock)),
			Length: chunkLen,
			Tag:    i,
		}
	}

	return r.CoalescedReadBatch(requests, func(buf []byte, tag any) error {
		idx := tag.(int)
		rec := records[idx]

		for i := 0; i < 64; i++ {
			if rec.IsHole(i) {
				continue
			}
			if !rec.IsAllocated(i) {
				continue
			}

			start := i * int(ctx.InodeSize)
			end := start + int(ctx.InodeSize)
			if end > len(buf) {
				return xfs.Parse("inode chunk short read")
			}
			inodeBuf := buf[start:end]

			ino := ctx.AginoToIno(agno, rec.StartIno+uint32(i))
			core, err := xfs.ParseInodeCore(inodeBuf, ino, ctx.Version, ctx.HasNrExt64)
			if err != nil {
				return err
			}

			ev := xfs.Event{
				Kind:      xfs.EventInodeFound,
				AgNumber:  agno,
				Ino:       ino,
				Mode:      core.Mode,
				Size:      core.Size,
				UID:       core.UID,
				GID:       core.GID,
				Nlink:     core.Nlink,
				MtimeSec:  core.MtimeSec,
				MtimeNsec: core.MtimeNsec,
				AtimeSec:  core.AtimeSec,
				AtimeNsec: core.AtimeNsec,
				CtimeSec:  core.CtimeSec,
				CtimeNsec: core.CtimeNsec,
				Nblocks:   core.Nblocks,
			}

			forkBuf := inodeBuf[core.DataForkOffset:]

			switch {
			case core.IsDir():
				switch core.Format {
				case xfs.FmtLocal:
					*dirs = append(*dirs, dirWork{ino: ino, format: xfs.FmtLocal, forkBytes: cloneBytes(forkBuf)})
				case xfs.FmtExtents:
					extents, err := xfs.ParseExtentList(forkBuf, core.Nextents)
					if err != nil {
						return err
					}
					*dirs = append(*dirs, dirWork{ino: ino, format: xfs.FmtExtents, extents: extents})
				case xfs.FmtBtree:
					forkSize := len(inodeBuf) - core.DataForkOffset
					*dirs = append(*dirs, dirWork{ino: ino, format: xfs.FmtBtree, forkBytes: cloneBytes(forkBuf), forkSize: forkSize})
				}
			case core.IsRegular():
				switch core.Format {
				case xfs.FmtExtents:
					if core.Nextents > 0 {
						extents, err := xfs.ParseExtentList(forkBuf, core.Nextents)
						if err != nil {
							return err
						}
						ev.Extents = extents
					}
				case xfs.FmtBtree:
					forkSize := len(inodeBuf) - core.DataForkOffset
					*files = append(*files, fileWork{ino: ino, forkBytes: cloneBytes(forkBuf), forkSize: forkSize})
				}
			}

			if err := emit(ev); err != nil {
				return err
			}
		}

		return nil
	}, xfs.PhaseInodeChunks)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func sweepFileExtents(r xfs.Reader, ctx *xfs.FsContext, files []fileWork, emit func(xfs.Event) error) error {
	if len(files) == 0 {
		return nil
	}

	inputs := make([]xfs.BmbtInput, len(files))
	for i, f := range files {
		inputs[i] = xfs.BmbtInput{Ino: f.ino, ForkData: f.forkBytes, DataForkSize: f.forkSize}
	}

	result, err := xfs.CollectBmbtExtents(r, ctx, inputs)
	if err != nil {
		return err
	}

	for _, f := range files {
		extents := result[f.ino]
		if err := emit(xfs.Event{Kind: xfs.EventFileExtents, Ino: f.ino, Extents: extents}); err != nil {
			return err
		}
	}
	return nil
}

// sweepDirectories processes every queued directory: LOCAL format needs
// no I/O; EXTENTS and BTREE format directories contribute read requests
// to a single coalesced batch, sorted by byte offset, after which each
// returned buffer is split into directory-block-size chunks.
func sweepDirectories(r xfs.Reader, ctx *xfs.FsContext, dirs []dirWork, emit func(xfs.Event) error) error {
	if len(dirs) == 0 {
		return nil
	}

	var btreeDirs []xfs.BmbtInput
	for _, d := range dirs {
		if d.format == xfs.FmtBtree {
			btreeDirs = append(btreeDirs, xfs.BmbtInput{Ino: d.ino, ForkData: d.forkBytes, DataForkSize: d.forkSize})
		}
	}

	var btreeExtents map[uint64][]xfs.Extent
	if len(btreeDirs) > 0 {
		var err error
		btreeExtents, err = xfs.CollectBmbtExtents(r, ctx, btreeDirs)
		if err != nil {
			return err
		}
	}

	type extentRequest struct {
		ino uint64
		ext xfs.Extent
	}
	var requests []extentRequest

	for _, d := range dirs {
		switch d.format {
		case xfs.FmtLocal:
			if err := xfs.ParseShortformDir(d.forkBytes, d.ino, ctx, emit); err != nil {
				return err
			}
		case xfs.FmtExtents:
			for _, ext := range d.extents {
				if ext.IsUnwritten || ext.BlockCount == 0 {
					continue
				}
				requests = append(requests, extentRequest{ino: d.ino, ext: ext})
			}
		case xfs.FmtBtree:
			for _, ext := range btreeExtents[d.ino] {
				if ext.IsUnwritten || ext.BlockCount == 0 {
					continue
				}
				requests = append(requests, extentRequest{ino: d.ino, ext: ext})
			}
		}
	}

	if len(requests) == 0 {
		return nil
	}

	sort.Slice(requests, func(i, j int) bool {
		return ctx.FsblockToByte(requests[i].ext.StartBlock) < ctx.FsblockToByte(requests[j].ext.StartBlock)
	})

	readRequests := make([]xfs.ReadRequest, len(requests))
	for i, req := range requests {
		readRequests[i] = xfs.ReadRequest{
			Offset: int64(ctx.FsblockToByte(req.ext.StartBlock)),
			Length: int(req.ext.BlockCount) << ctx.BlockLog,
			Tag:    i,
		}
	}

	dirBlkSize := int(ctx.DirBlkSize())

	return r.CoalescedReadBatch(readRequests, func(buf []byte, tag any) error {
		idx := tag.(int)
		ino := requests[idx].ino

		for off := 0; off+dirBlkSize <= len(buf); off += dirBlkSize {
			if err := xfs.ParseDirDataBlock(buf[off:off+dirBlkSize], ino, ctx, emit); err != nil {
				return err
			}
		}
		return nil
	}, xfs.PhaseDirExtents)
}
