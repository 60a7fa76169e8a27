package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	return fs
}

func TestFSRoundtrip(t *testing.T) {
	fs := newTestFS(t)
	data := []byte("PURCHASE ORDER PO-2024-001\n")

	if err := fs.Write("purchase_order/po_2024_001.txt", data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := fs.Read("purchase_order/po_2024_001.txt")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read %q, wrote %q", got, data)
	}
}

func TestFSReadMissingReturnsErrNotFound(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Read("invoice/nope.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSOverwrite(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Write("doc.txt", []byte("v1")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := fs.Write("doc.txt", []byte("v2")); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	got, err := fs.Read("doc.txt")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected latest content, got %q", got)
	}
}

func TestFSRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFS(filepath.Join(root, "content"))
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}

	for _, loc := range []string{"../escape.txt", "a/../../escape.txt", "/etc/passwd", ""} {
		if err := fs.Write(loc, []byte("x")); err == nil {
			t.Errorf("Write accepted unsafe location %q", loc)
		}
		if _, err := fs.Read(loc); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Read did not reject unsafe location %q (err=%v)", loc, err)
		}
	}

	// Nothing may have leaked outside the content root.
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("traversal write escaped the storage root")
	}
}
