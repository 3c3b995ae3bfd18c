package orchestrator

import (
	"testing"

	"github.com/xfsscan/xfsscan/xfs"
)

func TestStagedAPIMatchesPlainScanEventCount(t *testing.T) {
	plain := runFixtureScan(t)

	r := &memReader{data: buildFixtureImage()}
	scanner, ctx, err := NewScanner(r, Config{})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	if ctx.RootIno != fixRootIno {
		t.Fatalf("ctx.RootIno = %d, want %d", ctx.RootIno, fixRootIno)
	}

	var staged []xfs.Event
	emit := func(e xfs.Event) error {
		staged = append(staged, e)
		return nil
	}

	agCount := 0
	for {
		ag, ok, err := scanner.NextAG()
		if err != nil {
			t.Fatalf("NextAG: %v", err)
		}
		if !ok {
			break
		}
		agCount++

		extentPhase, err := ag.ScanInodes(emit)
		if err != nil {
			t.Fatalf("ScanInodes: %v", err)
		}
		dirPhase, err := extentPhase.ScanFileExtents(emit)
		if err != nil {
			t.Fatalf("ScanFileExtents: %v", err)
		}
		if err := dirPhase.ScanDirEntries(emit); err != nil {
			t.Fatalf("ScanDirEntries: %v", err)
		}
	}

	if agCount != 1 {
		t.Fatalf("agCount = %d, want 1", agCount)
	}
	// The staged walk omits the Superblock event (the caller owns that),
	// so it should have exactly one fewer event than the plain Scan.
	if len(staged) != len(plain)-1 {
		t.Fatalf("staged emitted %d events, want %d (plain minus superblock)", len(staged), len(plain)-1)
	}
}

func TestStagedAPISkipExtentsAndDirs(t *testing.T) {
	r := &memReader{data: buildFixtureImage()}
	scanner, _, err := NewScanner(r, Config{})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}

	ag, ok, err := scanner.NextAG()
	if err != nil || !ok {
		t.Fatalf("NextAG: ok=%v err=%v", ok, err)
	}

	var inodeEvents int
	extentPhase, err := ag.ScanInodes(func(e xfs.Event) error {
		inodeEvents++
		return nil
	})
	if err != nil {
		t.Fatalf("ScanInodes: %v", err)
	}
	if inodeEvents != 3 {
		t.Fatalf("inodeEvents = %d, want 3", inodeEvents)
	}

	dirPhase := extentPhase.SkipExtents()
	dirPhase.SkipDirs()
}
