package classfile

import (
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndexPutLookup(t *testing.T) {
	ix := openTestIndex(t)

	if _, ok, err := ix.Lookup("pkg/A"); err != nil || ok {
		t.Fatalf("lookup on empty index = ok=%v, %v", ok, err)
	}
	if err := ix.Put("pkg/A", "/cp/pkg/A.jbc"); err != nil {
		t.Fatalf("put: %v", err)
	}
	path, ok, err := ix.Lookup("pkg/A")
	if err != nil || !ok || path != "/cp/pkg/A.jbc" {
		t.Errorf("lookup = %q, ok=%v, %v", path, ok, err)
	}

	// Put replaces an existing entry.
	if err := ix.Put("pkg/A", "/cp2/pkg/A.jbc"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if path, _, _ := ix.Lookup("pkg/A"); path != "/cp2/pkg/A.jbc" {
		t.Errorf("after upsert, path = %q", path)
	}
}

func TestIndexRebuild(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeImage(t, first, &ClassFile{Name: "Dup"})
	writeImage(t, second, &ClassFile{Name: "Dup"})
	writeImage(t, second, &ClassFile{Name: "pkg/sub/Deep"})

	ix := openTestIndex(t)
	if err := ix.Put("Stale", "/old/Stale.jbc"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ix.Rebuild([]string{first, second}); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if _, ok, _ := ix.Lookup("Stale"); ok {
		t.Error("rebuild kept a stale entry")
	}
	path, ok, err := ix.Lookup("Dup")
	if err != nil || !ok {
		t.Fatalf("lookup Dup: ok=%v, %v", ok, err)
	}
	if want := filepath.Join(first, "Dup"+Ext); path != want {
		t.Errorf("Dup = %q, want the earlier directory's %q", path, want)
	}
	if path, ok, _ := ix.Lookup("pkg/sub/Deep"); !ok || path != filepath.Join(second, "pkg", "sub", "Deep"+Ext) {
		t.Errorf("nested class = %q, ok=%v", path, ok)
	}
}

func TestIndexPersistsAcrossOpens(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	ix, err := OpenIndex(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ix.Put("pkg/Keep", "/cp/pkg/Keep.jbc"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ix, err = OpenIndex(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ix.Close()
	if path, ok, _ := ix.Lookup("pkg/Keep"); !ok || path != "/cp/pkg/Keep.jbc" {
		t.Errorf("after reopen, path = %q, ok=%v", path, ok)
	}
}
