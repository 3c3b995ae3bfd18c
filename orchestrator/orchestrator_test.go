package orchestrator

import (
	"reflect"
	"testing"

	"github.com/xfsscan/xfsscan/xfs"
)

func runFixtureScan(t *testing.T) []xfs.Event {
	t.Helper()
	r := &memReader{data: buildFixtureImage()}

	var events []xfs.Event
	err := Scan(r, Config{}, func(e xfs.Event) xfs.ControlFlow {
		events = append(events, e)
		return xfs.Continue
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return events
}

func TestScanEmitsSuperblockFirst(t *testing.T) {
	events := runFixtureScan(t)
	if len(events) == 0 || events[0].Kind != xfs.EventSuperblock {
		t.Fatalf("first event = %+v, want EventSuperblock", events[0])
	}
	if events[0].SbRootIno != fixRootIno {
		t.Fatalf("SbRootIno = %d, want %d", events[0].SbRootIno, fixRootIno)
	}
}

func TestScanCoversEveryLiveInode(t *testing.T) {
	events := runFixtureScan(t)
	seen := map[uint64]bool{}
	for _, e := range events {
		if e.Kind == xfs.EventInodeFound {
			seen[e.Ino] = true
		}
	}
	for _, ino := range []uint64{fixRootIno, fixHelloIno, fixSubdirIno} {
		if !seen[ino] {
			t.Fatalf("inode %d was never reported", ino)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("got %d distinct inodes, want 3: %v", len(seen), seen)
	}
}

func TestScanInodeEventsPrecedeExtentsAndDirEntries(t *testing.T) {
	events := runFixtureScan(t)
	lastInodeIdx, firstExtentIdx, firstDirIdx := -1, -1, -1
	for i, e := range events {
		switch e.Kind {
		case xfs.EventInodeFound:
			lastInodeIdx = i
		case xfs.EventFileExtents:
			if firstExtentIdx == -1 {
				firstExtentIdx = i
			}
		case xfs.EventDirEntry:
			if firstDirIdx == -1 {
				firstDirIdx = i
			}
		}
	}
	if firstExtentIdx == -1 || firstDirIdx == -1 {
		t.Fatalf("expected both FileExtents and DirEntry events, got extent=%d dir=%d", firstExtentIdx, firstDirIdx)
	}
	if lastInodeIdx > firstExtentIdx || lastInodeIdx > firstDirIdx {
		t.Fatalf("an InodeFound event (idx %d) arrived after FileExtents (idx %d) or DirEntry (idx %d)",
			lastInodeIdx, firstExtentIdx, firstDirIdx)
	}
}

func TestScanFileExtentsMatchInlineBtreeLeaf(t *testing.T) {
	events := runFixtureScan(t)
	for _, e := range events {
		if e.Kind == xfs.EventFileExtents && e.Ino == fixHelloIno {
			if len(e.Extents) != 1 || e.Extents[0].StartBlock != 50 || e.Extents[0].BlockCount != 1 {
				t.Fatalf("unexpected extents for hello.txt: %+v", e.Extents)
			}
			return
		}
	}
	t.Fatal("no FileExtents event for hello.txt inode")
}

func TestScanRootDirectorySelfReference(t *testing.T) {
	events := runFixtureScan(t)
	var gotDot, gotDotDot bool
	for _, e := range events {
		if e.Kind != xfs.EventDirEntry || e.ParentIno != fixRootIno {
			continue
		}
		switch string(e.Name) {
		case ".":
			gotDot = e.ChildIno == fixRootIno
		case "..":
			gotDotDot = e.ChildIno == fixRootIno
		}
	}
	if !gotDot || !gotDotDot {
		t.Fatalf("root directory must self-reference via . and .. (got dot=%v dotdot=%v)", gotDot, gotDotDot)
	}
}

func TestScanDirectoryEntriesNameChildAndType(t *testing.T) {
	events := runFixtureScan(t)
	found := map[string][2]uint64{}
	for _, e := range events {
		if e.Kind == xfs.EventDirEntry && e.ParentIno == fixRootIno {
			found[string(e.Name)] = [2]uint64{e.ChildIno, uint64(e.FileType)}
		}
	}
	if found["hello.txt"] != [2]uint64{fixHelloIno, 1} {
		t.Fatalf("hello.txt entry = %v, want {%d,1}", found["hello.txt"], fixHelloIno)
	}
	if found["subdir"] != [2]uint64{fixSubdirIno, 2} {
		t.Fatalf("subdir entry = %v, want {%d,2}", found["subdir"], fixSubdirIno)
	}
}

func TestScanIsIdempotentAcrossRuns(t *testing.T) {
	first := runFixtureScan(t)
	second := runFixtureScan(t)
	if len(first) != len(second) {
		t.Fatalf("event counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Fatalf("event %d differs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestScanRespectsStopRequest(t *testing.T) {
	r := &memReader{data: buildFixtureImage()}
	count := 0
	err := Scan(r, Config{}, func(e xfs.Event) xfs.ControlFlow {
		count++
		return xfs.Stop
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("callback invoked %d times, want exactly 1 after immediate stop", count)
	}
}

func TestScanRespectsMaxAG(t *testing.T) {
	r := &memReader{data: buildFixtureImage()}
	var sawInode bool
	err := Scan(r, Config{MaxAG: 0}, func(e xfs.Event) xfs.ControlFlow {
		if e.Kind == xfs.EventInodeFound {
			sawInode = true
		}
		return xfs.Continue
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !sawInode {
		t.Fatal("expected at least one inode with MaxAG=0 (no cap)")
	}
}
