package backend_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xfsscan/xfsscan/backend"
	"github.com/xfsscan/xfsscan/backend/file"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestSubStorageReadAtTranslatesOffset(t *testing.T) {
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := writeTempFile(t, content)

	storage, err := file.OpenFromPath(path, true)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer storage.Close()

	sub := backend.Sub(storage, 1024, 512)

	buf := make([]byte, 16)
	n, err := sub.ReadAt(buf, 8)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 16 {
		t.Fatalf("n = %d, want 16", n)
	}
	want := content[1024+8 : 1024+8+16]
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, buf[i], want[i])
		}
	}
}

func TestSubStorageStatReportsWindowSize(t *testing.T) {
	path := writeTempFile(t, make([]byte, 4096))
	storage, err := file.OpenFromPath(path, true)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer storage.Close()

	sub := backend.Sub(storage, 1024, 512)
	info, err := sub.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 512 {
		t.Fatalf("Size() = %d, want 512 (the window, not the whole 4096-byte file)", info.Size())
	}
}

func TestSubStorageSeekIsRelativeToWindow(t *testing.T) {
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := writeTempFile(t, content)

	storage, err := file.OpenFromPath(path, true)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer storage.Close()

	sub := backend.Sub(storage, 1024, 512)
	pos, err := sub.Seek(64, os.SEEK_SET)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if pos != 64 {
		t.Fatalf("Seek returned %d, want 64 (window-relative)", pos)
	}
}
