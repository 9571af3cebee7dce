package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryReadAt(t *testing.T) {
	m := NewMemory([]byte("hello world"))
	buf := make([]byte, 5)
	if n, err := m.ReadAt(buf, 6); n != 5 || err != nil || string(buf) != "world" {
		t.Fatalf("read: %d %v %q", n, err, buf)
	}
	if n, err := m.ReadAt(buf, 8); n != 3 || err != io.EOF {
		t.Fatalf("short read: %d %v", n, err)
	}
	if _, err := m.ReadAt(buf, -1); err == nil {
		t.Fatalf("expected error for negative offset")
	}
}

func TestOpenFile(t *testing.T) {
	content := bytes.Repeat([]byte("%PDF-1.7\n"), 1000)
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	if src.Size() != int64(len(content)) || !bytes.Equal(src.Bytes(), content) {
		t.Fatalf("content mismatch")
	}
	if err := src.Advise(0, 100, AdviceSequential); err != nil {
		t.Fatalf("advise: %v", err)
	}
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
