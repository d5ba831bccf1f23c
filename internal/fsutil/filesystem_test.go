package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateCommitsOnClose(t *testing.T) {
	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "classes.bin")

	if err := osfs.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("new table")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "old" {
		t.Errorf("before Close: got %q, want %q", data, "old")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err = osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "new table" {
		t.Errorf("after Close: got %q, want %q", data, "new table")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}

	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestOSFileSystem_CreateMissingDir(t *testing.T) {
	osfs := OSFileSystem{}
	_, err := osfs.Create(filepath.Join(t.TempDir(), "missing", "classes.bin"))
	if err == nil {
		t.Fatal("expected error creating a file in a missing directory")
	}
}

func TestOSFileSystem_WriteFilePerm(t *testing.T) {
	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "class-rot-00.dat")

	if err := osfs.WriteFile(path, []byte("0.00000 \n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
}

func TestOSFileSystem_MkdirAllAndRemove(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if !osfs.Exists(dir) {
		t.Fatal("expected directory to exist")
	}

	f, err := osfs.Open(filepath.Join(dir, "nope"))
	if err == nil {
		f.Close()
		t.Fatal("expected error opening missing file")
	}

	if err := osfs.Remove(dir); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if osfs.Exists(dir) {
		t.Error("expected directory to be removed")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, rig")
	if err := mfs.WriteFile("/test.txt", testData, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Mutating either copy must not leak into the filesystem.
	testData[0] = 'X'
	data[1] = 'Y'
	again, _ := mfs.ReadFile("/test.txt")
	if string(again) != "hello, rig" {
		t.Errorf("stored data changed: %q", again)
	}
}

func TestMemoryFileSystem_CreateCommitsOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/model/classes.bin")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("table")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if mfs.Exists("/model/classes.bin") {
		t.Error("file should not exist before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/model/classes.bin")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "table" {
		t.Errorf("got %q, want %q", data, "table")
	}

	if _, err := w.Write([]byte("more")); !errors.Is(err, ErrClosed) {
		t.Errorf("write after Close: got %v, want ErrClosed", err)
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/model/classes.bin.cells", []byte("cells"), 0o644)

	f, err := mfs.Open("/model/classes.bin.cells")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "cells" {
		t.Errorf("got %q", data)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "classes.bin.cells" || info.Size() != 5 || info.IsDir() {
		t.Errorf("unexpected info: name=%q size=%d dir=%v", info.Name(), info.Size(), info.IsDir())
	}

	if _, err := mfs.Open("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open missing: got %v, want ErrNotExist", err)
	}
	if _, err := mfs.ReadFile("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile missing: got %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/out/png/tables", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"/out", "/out/png", "/out/png/tables"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
}

func TestMemoryFileSystem_Remove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.MkdirAll("/dir", 0o755)
	mfs.WriteFile("/dir/file.txt", []byte("x"), 0o644)

	if err := mfs.Remove("/dir"); !errors.Is(err, fs.ErrExist) {
		t.Errorf("removing non-empty dir: got %v, want ErrExist", err)
	}
	if err := mfs.Remove("/dir/file.txt"); err != nil {
		t.Fatalf("Remove file failed: %v", err)
	}
	if err := mfs.Remove("/dir"); err != nil {
		t.Fatalf("Remove empty dir failed: %v", err)
	}
	if mfs.Exists("/dir") {
		t.Error("expected dir to be removed")
	}
	if err := mfs.Remove("/dir"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove missing: got %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_PathCleaning(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/a/b/../c.txt", []byte("x"), 0o644)

	if !mfs.Exists("/a/c.txt") {
		t.Error("expected cleaned path to exist")
	}
	if !mfs.Exists("/a/./c.txt") {
		t.Error("expected path with . to resolve")
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/out/b.png", nil, 0o644)
	mfs.WriteFile("/out/a.png", nil, 0o644)
	mfs.WriteFile("/outside.png", nil, 0o644)

	got := mfs.Files("/out")
	want := []string{"/out/a.png", "/out/b.png"}
	if len(got) != len(want) {
		t.Fatalf("Files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Files[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if n := len(mfs.Files(".")); n != 3 {
		t.Errorf("Files(.) returned %d names, want 3", n)
	}
}
