package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte(`{"id":"000148"}`)
	if err := s.Write("books.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("books.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("book/000148/content.json", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("book/000148/content.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("book/1/content.json", []byte("bye"))
	if err := s.Delete("book/1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("book/1/content.json"); err == nil {
		t.Error("expected error reading deleted file")
	}
	if err := s.Delete(""); err == nil {
		t.Error("deleting the root should fail")
	}
}

func TestListFiltersByExtension(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("cards/000148/files/789_ruby_5639.zip", []byte("a"))
	_ = s.Write("cards/000879/files/127_ruby_150.ZIP", []byte("b"))
	_ = s.Write("cards/000148/files/789_14547.html", []byte("not zip"))

	items, err := s.List("cards", ".zip")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
		if filepath.IsAbs(it.Path) {
			t.Errorf("%s: want relative path", it.Path)
		}
	}

	all, err := s.List("", "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("books.json", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("books.json", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("books.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".aozoraconv-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestRel(t *testing.T) {
	s := tempRoot(t)
	rel, err := s.Rel(filepath.Join(s.Root(), "cards", "x.zip"))
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if rel != "cards/x.zip" {
		t.Errorf("Rel = %q", rel)
	}
	if _, err := s.Rel(filepath.Dir(s.Root())); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "aozoraconv-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
