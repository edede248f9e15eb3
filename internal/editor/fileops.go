package editor

import (
	"fmt"
	"os"
	"path/filepath"

	"codeedit/internal/pathguard"
	"codeedit/pkg/fileops"
)

// defaultIgnorePatterns are filtered out of flat directory listings when
// the caller supplies no patterns of their own.
var defaultIgnorePatterns = []string{".git", "__pycache__", "node_modules", ".DS_Store"}

// CopyFile copies a regular file. The destination must not already exist;
// the optimistic lock protects the source.
func (e *Engine) CopyFile(set pathguard.AllowedSet, sourcePath, destPath string, expectedMtime *float64) (*WriteResult, error) {
	source, err := set.Resolve(sourcePath)
	if err != nil {
		return nil, err
	}
	dest, err := set.Resolve(destPath)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(source)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, &NotFoundError{Path: source}
		}
		return nil, fmt.Errorf("cannot stat source: %w", statErr)
	}
	if info.IsDir() {
		return nil, &NotAFileError{Path: source}
	}
	if _, err := os.Lstat(dest); err == nil {
		return nil, &DestinationExistsError{Path: dest}
	}
	if err := checkLockToken(source, expectedMtime); err != nil {
		return nil, err
	}

	if err := fileops.EnsureDirectoryExists(filepath.Dir(dest)); err != nil {
		return nil, err
	}
	if err := fileops.AtomicCopy(source, dest); err != nil {
		return nil, err
	}

	destInfo, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("cannot stat destination after copy: %w", err)
	}
	return &WriteResult{
		Path:    dest,
		Mtime:   mtimeSeconds(destInfo.ModTime()),
		Message: fmt.Sprintf("Copied %s to %s.", sourcePath, destPath),
	}, nil
}

// MoveFile renames a file or directory. The destination must not already
// exist; the optimistic lock protects the source.
func (e *Engine) MoveFile(set pathguard.AllowedSet, sourcePath, destPath string, expectedMtime *float64) (*WriteResult, error) {
	source, err := set.Resolve(sourcePath)
	if err != nil {
		return nil, err
	}
	dest, err := set.Resolve(destPath)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(source); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, &NotFoundError{Path: source}
		}
		return nil, fmt.Errorf("cannot stat source: %w", statErr)
	}
	if _, err := os.Lstat(dest); err == nil {
		return nil, &DestinationExistsError{Path: dest}
	}
	if err := checkLockToken(source, expectedMtime); err != nil {
		return nil, err
	}

	if err := fileops.EnsureDirectoryExists(filepath.Dir(dest)); err != nil {
		return nil, err
	}
	if err := os.Rename(source, dest); err != nil {
		return nil, fmt.Errorf("move failed: %w", err)
	}
	e.encodings.evict(source)
	e.encodings.evict(dest)

	destInfo, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("cannot stat destination after move: %w", err)
	}
	return &WriteResult{
		Path:    dest,
		Mtime:   mtimeSeconds(destInfo.ModTime()),
		Message: fmt.Sprintf("Moved %s to %s.", sourcePath, destPath),
	}, nil
}

// DeleteFile removes a regular file, never a directory.
func (e *Engine) DeleteFile(set pathguard.AllowedSet, path string, expectedMtime *float64) (string, error) {
	resolved, err := set.Resolve(path)
	if err != nil {
		return "", err
	}

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", &NotFoundError{Path: resolved}
		}
		return "", fmt.Errorf("cannot stat %s: %w", resolved, statErr)
	}
	if info.IsDir() {
		return "", &NotAFileError{Path: resolved}
	}
	if err := checkLockToken(resolved, expectedMtime); err != nil {
		return "", err
	}

	if err := os.Remove(resolved); err != nil {
		return "", fmt.Errorf("delete failed: %w", err)
	}
	e.encodings.evict(resolved)
	return fmt.Sprintf("Deleted file %s.", path), nil
}

// DeleteDirectory removes a directory tree. Protection comes first: the
// active root, its ancestors, and critical system directories are refused
// before the lock token is even looked at.
func (e *Engine) DeleteDirectory(set pathguard.AllowedSet, path string, expectedMtime *float64) (string, error) {
	resolved, err := set.Resolve(path)
	if err != nil {
		return "", err
	}

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", &NotFoundError{Path: resolved}
		}
		return "", fmt.Errorf("cannot stat %s: %w", resolved, statErr)
	}
	if !info.IsDir() {
		return "", &NotADirectoryError{Path: resolved}
	}
	if pathguard.IsProtectedDirectory(resolved, set.Root()) {
		return "", &ProtectedPathError{
			Path:   resolved,
			Reason: "target is the active root, an ancestor of it, or a critical system directory",
		}
	}
	if err := checkLockToken(resolved, expectedMtime); err != nil {
		return "", err
	}

	if err := os.RemoveAll(resolved); err != nil {
		return "", fmt.Errorf("delete failed: %w", err)
	}
	e.log.Info("delete_directory", "path", resolved)
	return fmt.Sprintf("Deleted directory %s.", path), nil
}

// CreateDirectory creates a directory inside the allow-list, with parents.
func (e *Engine) CreateDirectory(set pathguard.AllowedSet, path string) (string, error) {
	resolved, err := set.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := fileops.EnsureDirectoryExists(resolved); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created directory %s", path), nil
}

// FileInfoResult is the stat report for a path. LineCount and
// AppendPosition are filled only for small text files.
type FileInfoResult struct {
	Path           string  `json:"path"`
	Size           int64   `json:"size"`
	Modified       float64 `json:"modified"`
	IsDirectory    bool    `json:"is_directory"`
	IsFile         bool    `json:"is_file"`
	Permissions    string  `json:"permissions"`
	LineCount      *int    `json:"line_count,omitempty"`
	AppendPosition *int    `json:"append_position,omitempty"`
}

// FileInfo stats a file or directory.
func (e *Engine) FileInfo(set pathguard.AllowedSet, path string) (*FileInfoResult, error) {
	resolved, err := set.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, statErr := os.Stat(resolved)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, &NotFoundError{Path: resolved}
		}
		return nil, fmt.Errorf("cannot stat %s: %w", resolved, statErr)
	}

	result := &FileInfoResult{
		Path:        resolved,
		Size:        info.Size(),
		Modified:    mtimeSeconds(info.ModTime()),
		IsDirectory: info.IsDir(),
		IsFile:      info.Mode().IsRegular(),
		Permissions: fmt.Sprintf("%03o", info.Mode().Perm()),
	}

	if result.IsFile && info.Size() < e.cfg.MaxEditFileSize && !isImageMime(mimeTypeFor(resolved)) {
		if data, err := os.ReadFile(resolved); err == nil {
			count := countLines(string(data))
			result.LineCount = &count
			appendPos := count
			result.AppendPosition = &appendPos
		}
	}
	return result, nil
}

// DirEntry is one item of a flat directory listing.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// ListDirectoryTree renders a recursive listing as "[DIR]"/"[FILE]" lines,
// depth levels deep, with oversized directories truncated and reported.
func (e *Engine) ListDirectoryTree(set pathguard.AllowedSet, path string, depth int) ([]string, error) {
	resolved, err := e.resolveDirectory(set, path)
	if err != nil {
		return nil, err
	}
	if depth < 1 {
		depth = 1
	}

	scanner, err := fileops.NewDirectoryScanner(resolved, &fileops.ScanOptions{
		MaxDepth:         depth - 1,
		MaxEntriesPerDir: fileops.DefaultMaxEntriesPerDir,
		IncludeHidden:    true,
	})
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	entries, err := scanner.Scan()
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.Truncated:
			lines = append(lines, fmt.Sprintf("[WARNING] %s: %d items hidden (per-directory limit %d)",
				filepath.Dir(entry.Path), entry.Omitted, fileops.DefaultMaxEntriesPerDir))
		case entry.IsDir:
			lines = append(lines, "[DIR] "+entry.Path)
		default:
			lines = append(lines, "[FILE] "+entry.Path)
		}
	}
	return lines, nil
}

// ListDirectoryFlat lists a directory's immediate children with metadata,
// filtered by ignore patterns (shell-style, matched on names).
func (e *Engine) ListDirectoryFlat(set pathguard.AllowedSet, path string, ignorePatterns []string) ([]DirEntry, error) {
	resolved, err := e.resolveDirectory(set, path)
	if err != nil {
		return nil, err
	}
	if len(ignorePatterns) == 0 {
		ignorePatterns = defaultIgnorePatterns
	}

	scanner, err := fileops.NewDirectoryScanner(resolved, &fileops.ScanOptions{
		MaxDepth:       0,
		IncludeHidden:  true,
		IgnorePatterns: ignorePatterns,
	})
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	scanned, err := scanner.Scan()
	if err != nil {
		return nil, err
	}

	entries := make([]DirEntry, 0, len(scanned))
	for _, entry := range scanned {
		if entry.Truncated {
			continue
		}
		entries = append(entries, DirEntry{Name: entry.Name, IsDir: entry.IsDir, Size: entry.Size})
	}
	return entries, nil
}

func (e *Engine) resolveDirectory(set pathguard.AllowedSet, path string) (string, error) {
	resolved, err := set.Resolve(path)
	if err != nil {
		return "", err
	}
	info, statErr := os.Stat(resolved)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", &NotFoundError{Path: resolved}
		}
		return "", fmt.Errorf("cannot stat %s: %w", resolved, statErr)
	}
	if !info.IsDir() {
		return "", &NotADirectoryError{Path: resolved}
	}
	return resolved, nil
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			n++
		}
	}
	return n
}
