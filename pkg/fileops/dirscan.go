package fileops

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ScanOptions controls a directory scan.
type ScanOptions struct {
	// MaxDepth bounds recursion; the scan root is depth 0. Zero lists only
	// the root's immediate entries.
	MaxDepth int

	// MaxEntriesPerDir caps how many entries of a single directory are
	// returned. Directories that exceed it are reported via Entry.Truncated
	// on a synthetic marker entry. <= 0 means unlimited.
	MaxEntriesPerDir int

	// IgnorePatterns are shell patterns (path.Match syntax) tested against
	// entry base names. Matching entries and their subtrees are skipped.
	IgnorePatterns []string

	// IncludeHidden controls whether dot-prefixed entries are listed.
	IncludeHidden bool
}

// Entry is one result of a directory scan. Paths are relative to the scan
// root and use forward slashes.
type Entry struct {
	Name      string
	Path      string
	IsDir     bool
	Size      int64
	ModTime   time.Time
	Depth     int
	Truncated bool // marker entry: the parent directory had more entries than the cap
	Omitted   int  // on a Truncated marker, how many entries were not listed
}

// DefaultMaxEntriesPerDir is the per-directory listing cap applied when the
// caller does not choose one.
const DefaultMaxEntriesPerDir = 100

// DirectoryScanner walks a directory tree confined to its scan root. All
// traversal happens through an os.Root, so a symlink inside the tree cannot
// pull the scan outside the root. Symlink loops are broken by tracking
// visited resolved directories.
type DirectoryScanner struct {
	root     *os.Root
	scanRoot string
	opts     ScanOptions

	entries []Entry
	visited map[string]bool
}

// NewDirectoryScanner opens scanPath for scanning. The caller must Close the
// scanner when done.
func NewDirectoryScanner(scanPath string, opts *ScanOptions) (*DirectoryScanner, error) {
	if strings.TrimSpace(scanPath) == "" {
		return nil, fmt.Errorf("scan path cannot be empty")
	}

	absPath, err := filepath.Abs(ExpandPath(scanPath))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve scan path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access scan path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan path is not a directory: %s", absPath)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open scan root: %w", err)
	}

	scanOpts := ScanOptions{MaxDepth: 3, MaxEntriesPerDir: DefaultMaxEntriesPerDir}
	if opts != nil {
		scanOpts = *opts
	}

	return &DirectoryScanner{
		root:     root,
		scanRoot: absPath,
		opts:     scanOpts,
	}, nil
}

// Close releases the scanner's handle on the scan root. The scanner cannot
// be used after Close.
func (s *DirectoryScanner) Close() error {
	if s.root == nil {
		return nil
	}
	err := s.root.Close()
	s.root = nil
	return err
}

// Scan walks the tree and returns the collected entries in traversal order:
// each directory's entries sorted by name, directories descended in place.
func (s *DirectoryScanner) Scan() ([]Entry, error) {
	if s.root == nil {
		return nil, fmt.Errorf("scanner has been closed")
	}

	s.entries = nil
	s.visited = make(map[string]bool)

	if err := s.scanDir(".", 0); err != nil {
		return nil, fmt.Errorf("directory scan failed: %w", err)
	}

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *DirectoryScanner) scanDir(rel string, depth int) error {
	resolved := filepath.Join(s.scanRoot, rel)
	if target, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = target
	}
	if s.visited[resolved] {
		return nil // symlink loop
	}
	s.visited[resolved] = true

	dir, err := s.root.Open(rel)
	if err != nil {
		return nil // unreadable directories are skipped, not fatal
	}
	dirEntries, err := dir.ReadDir(-1)
	dir.Close()
	if err != nil {
		return nil
	}

	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name() < dirEntries[j].Name()
	})

	listed := 0
	for i, entry := range dirEntries {
		name := entry.Name()
		if s.skip(name) {
			continue
		}

		if s.opts.MaxEntriesPerDir > 0 && listed >= s.opts.MaxEntriesPerDir {
			s.entries = append(s.entries, Entry{
				Path:      path.Join(filepath.ToSlash(rel), "..."),
				Depth:     depth,
				Truncated: true,
				Omitted:   len(dirEntries) - i,
			})
			return nil
		}

		entryRel := filepath.Join(rel, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}

		e := Entry{
			Name:    name,
			Path:    filepath.ToSlash(entryRel),
			IsDir:   entry.IsDir(),
			ModTime: info.ModTime(),
			Depth:   depth,
		}
		if !e.IsDir {
			e.Size = info.Size()
		}
		s.entries = append(s.entries, e)
		listed++

		if entry.IsDir() && depth < s.opts.MaxDepth {
			if err := s.scanDir(entryRel, depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *DirectoryScanner) skip(name string) bool {
	if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range s.opts.IgnorePatterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
