package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	first, err := WriteAtomic(path, []byte("one"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	second, err := WriteAtomic(path, []byte("two"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("expected digests to differ")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Fatalf("content mismatch: got %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}

	onDisk, err := DigestFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if onDisk != second || onDisk != Digest([]byte("two")) {
		t.Fatalf("digest mismatch: %s vs %s", onDisk, second)
	}
}
