package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// buildScanTree creates:
//
//	root/
//	  a.txt
//	  b.md
//	  .hidden.txt
//	  sub/
//	    c.txt
//	    deep/
//	      d.txt
//	  node_modules/
//	    junk.js
func buildScanTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"sub/deep", "node_modules"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		"a.txt":                "a",
		"b.md":                 "b",
		".hidden.txt":          "h",
		"sub/c.txt":            "c",
		"sub/deep/d.txt":       "d",
		"node_modules/junk.js": "j",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func scanPaths(entries []Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}

func TestDirectoryScanner_Scan(t *testing.T) {
	root := buildScanTree(t)

	s, err := NewDirectoryScanner(root, &ScanOptions{MaxDepth: 5})
	if err != nil {
		t.Fatalf("NewDirectoryScanner failed: %v", err)
	}
	defer s.Close()

	entries, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	got := map[string]Entry{}
	for _, e := range entries {
		got[e.Path] = e
	}

	for _, want := range []string{"a.txt", "b.md", "sub", "sub/c.txt", "sub/deep", "sub/deep/d.txt"} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing entry %q in %v", want, scanPaths(entries))
		}
	}
	if _, ok := got[".hidden.txt"]; ok {
		t.Error("hidden file listed without IncludeHidden")
	}
	if !got["sub"].IsDir {
		t.Error("sub should be a directory entry")
	}
	if got["sub/deep/d.txt"].Depth != 2 {
		t.Errorf("d.txt depth = %d, want 2", got["sub/deep/d.txt"].Depth)
	}
	if got["a.txt"].Size != 1 {
		t.Errorf("a.txt size = %d, want 1", got["a.txt"].Size)
	}
}

func TestDirectoryScanner_DepthLimit(t *testing.T) {
	root := buildScanTree(t)

	s, err := NewDirectoryScanner(root, &ScanOptions{MaxDepth: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entries, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Depth != 0 {
			t.Errorf("entry %q at depth %d with MaxDepth 0", e.Path, e.Depth)
		}
	}
}

func TestDirectoryScanner_IgnorePatterns(t *testing.T) {
	root := buildScanTree(t)

	s, err := NewDirectoryScanner(root, &ScanOptions{
		MaxDepth:       5,
		IgnorePatterns: []string{"node_modules", "*.md"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entries, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Path == "b.md" || e.Path == "node_modules" || e.Path == "node_modules/junk.js" {
			t.Errorf("ignored entry %q was listed", e.Path)
		}
	}
}

func TestDirectoryScanner_EntryCap(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		if err := os.WriteFile(filepath.Join(root, fmt.Sprintf("f%02d.txt", i)), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := NewDirectoryScanner(root, &ScanOptions{MaxDepth: 1, MaxEntriesPerDir: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entries, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 4 listed + 1 marker: %v", len(entries), scanPaths(entries))
	}
	marker := entries[len(entries)-1]
	if !marker.Truncated {
		t.Fatal("last entry should be a truncation marker")
	}
	if marker.Omitted != 6 {
		t.Errorf("marker.Omitted = %d, want 6", marker.Omitted)
	}
}

func TestDirectoryScanner_SymlinkLoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(root, filepath.Join(sub, "loop")); err != nil {
		t.Fatal(err)
	}

	s, err := NewDirectoryScanner(root, &ScanOptions{MaxDepth: 50})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entries, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan should survive symlink loops: %v", err)
	}
	if len(entries) > 10 {
		t.Errorf("loop was not broken: %d entries", len(entries))
	}
}

func TestNewDirectoryScanner_Errors(t *testing.T) {
	if _, err := NewDirectoryScanner("", nil); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := NewDirectoryScanner(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
	f := writeTestFile(t, t.TempDir(), "f.txt", "x")
	if _, err := NewDirectoryScanner(f, nil); err == nil {
		t.Error("expected error for non-directory path")
	}
}

func TestDirectoryScanner_Close(t *testing.T) {
	s, err := NewDirectoryScanner(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err == nil {
		t.Error("Scan after Close should fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("double Close should be a no-op: %v", err)
	}
}
