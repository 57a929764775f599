package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/transferd/transferd/pkg/types"
)

func TestNewNonExistentPath(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	exists, err := a.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true, want false for missing path")
	}
}

func TestKindAndRoot(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Kind() != types.BackendLocal {
		t.Errorf("Kind() = %v, want BackendLocal", a.Kind())
	}
	if a.Root() != dir {
		t.Errorf("Root() = %q, want %q", a.Root(), dir)
	}
}

func TestListdir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatal(err)
	}

	a, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entries, err := a.Listdir(context.Background())
	if err != nil {
		t.Fatalf("Listdir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Listdir() returned %d entries, want 2", len(entries))
	}

	var sawFile, sawDir bool
	for _, e := range entries {
		if e.IsDir {
			sawDir = true
		} else {
			sawFile = true
			if e.Size != 5 {
				t.Errorf("file entry size = %d, want 5", e.Size)
			}
		}
	}
	if !sawFile || !sawDir {
		t.Error("Listdir() did not report both file and directory entries")
	}
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var visited int
	err = a.Walk(context.Background(), func(d types.Adapter, dirs, files []types.Entry) error {
		visited++
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if visited != 2 {
		t.Errorf("Walk() visited %d directories, want 2", visited)
	}
}

func TestDownloadUpload(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.bin")
	content := make([]byte, defaultChunkSize*2+17)
	for i := range content {
		content[i] = byte(i % 256)
	}
	if err := os.WriteFile(srcPath, content, 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := New(srcPath)
	if err != nil {
		t.Fatalf("New(src) error = %v", err)
	}

	dstPath := filepath.Join(dir, "nested", "dst.bin")
	dst, err := New(dstPath)
	if err != nil {
		t.Fatalf("New(dst) error = %v", err)
	}

	sink, err := dst.Upload(context.Background())
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	chunks, errc := src.Download(context.Background())
	var total int
	for chunk := range chunks {
		n, err := sink.Write(chunk)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		total += n
	}
	if err := <-errc; err != nil && err != io.EOF {
		t.Fatalf("Download() error = %v", err)
	}

	written, err := sink.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if written != len(content) {
		t.Errorf("Finalize() wrote %d bytes, want %d", written, len(content))
	}
	if total != len(content) {
		t.Errorf("streamed %d bytes, want %d", total, len(content))
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("ReadFile(dst) error = %v", err)
	}
	if len(got) != len(content) {
		t.Fatalf("destination file size = %d, want %d", len(got), len(content))
	}
	for i := range got {
		if got[i] != content[i] {
			t.Fatalf("destination content mismatch at byte %d", i)
		}
	}
}

func TestMakedirsAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new", "nested")
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Makedirs(context.Background()); err != nil {
		t.Fatalf("Makedirs() error = %v", err)
	}
	exists, err := a.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Fatal("Exists() = false after Makedirs()")
	}

	if err := a.Remove(context.Background()); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	exists, err = a.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true after Remove()")
	}
}

func TestWithRoot(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := a.WithRoot(filepath.Join(dir, "child"))
	if child.Kind() != types.BackendLocal {
		t.Errorf("WithRoot().Kind() = %v, want BackendLocal", child.Kind())
	}
	if child.Root() != filepath.Join(dir, "child") {
		t.Errorf("WithRoot().Root() = %q", child.Root())
	}
}
