// Package pathguard confines filesystem access to an allow-list of
// directories. Every path-bearing operation resolves its target through
// Resolve before touching the filesystem; a path that escapes all allowed
// roots is rejected with a DeniedError and nothing is read or written.
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeedit/pkg/fileops"
)

// ErrDenied is matched by errors.Is for any allow-list rejection.
var ErrDenied = errors.New("path not allowed")

// DeniedError reports a path that resolved outside every allowed root.
type DeniedError struct {
	Path    string
	Allowed []string
}

func (e *DeniedError) Error() string {
	allowed := "unrestricted"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("path not allowed: %s (must be within: %s)", e.Path, allowed)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

// AllowedSet is an immutable per-request view of the allow-list plus the
// active root used to resolve relative paths. It is a value type: handlers
// receive it as a parameter rather than consulting global state.
type AllowedSet struct {
	root  string
	roots []string
}

// NewAllowedSet builds an AllowedSet from the active root and the allow-list.
// All entries are expanded (~/), absolutized, and cleaned. An empty list, or
// a list containing the filesystem root, means unrestricted access.
func NewAllowedSet(root string, roots []string) (AllowedSet, error) {
	normRoot, err := normalize(root)
	if err != nil {
		return AllowedSet{}, fmt.Errorf("invalid active root %q: %w", root, err)
	}

	norm := make([]string, 0, len(roots))
	for _, r := range roots {
		n, err := normalize(r)
		if err != nil {
			return AllowedSet{}, fmt.Errorf("invalid allowed root %q: %w", r, err)
		}
		norm = append(norm, n)
	}
	return AllowedSet{root: normRoot, roots: norm}, nil
}

func normalize(path string) (string, error) {
	expanded := fileops.ExpandPath(strings.TrimSpace(path))
	if expanded == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Root returns the active root directory.
func (s AllowedSet) Root() string { return s.root }

// Roots returns a copy of the allowed roots.
func (s AllowedSet) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Unrestricted reports whether the set imposes no confinement: either no
// roots are configured or the filesystem root itself is allowed.
func (s AllowedSet) Unrestricted() bool {
	if len(s.roots) == 0 {
		return true
	}
	for _, r := range s.roots {
		if r == "/" {
			return true
		}
		if vol := filepath.VolumeName(r); vol != "" && r == vol+string(os.PathSeparator) {
			return true
		}
	}
	return false
}

// Resolve expands, absolutizes, and symlink-resolves raw, then verifies the
// result is admissible: equal to or a descendant of some allowed root.
// Relative paths resolve against the active root. The target itself need
// not exist — the deepest existing ancestor is resolved so a symlinked
// parent cannot smuggle a new file outside the allow-list.
//
// Resolve performs no filesystem writes; its only I/O is symlink and
// existence resolution.
func (s AllowedSet) Resolve(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &DeniedError{Path: raw, Allowed: s.roots}
	}

	expanded := fileops.ExpandPath(strings.TrimSpace(raw))
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(s.root, expanded)
	}
	cleaned := filepath.Clean(expanded)

	resolved, err := resolveExisting(cleaned)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %s: %w", raw, err)
	}

	if !s.admits(resolved) {
		return "", &DeniedError{Path: raw, Allowed: s.roots}
	}
	return resolved, nil
}

// admits checks containment of an already-resolved absolute path.
func (s AllowedSet) admits(path string) bool {
	if s.Unrestricted() {
		return true
	}
	for _, root := range s.roots {
		// Allowed roots may themselves be symlinks; compare against the
		// resolved form so containment is judged on real paths.
		resolvedRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			resolvedRoot = root
		}
		rel, err := filepath.Rel(resolvedRoot, path)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..") {
			return true
		}
	}
	return false
}

// resolveExisting resolves symlinks on the deepest existing ancestor of
// path and rejoins the nonexistent remainder. EvalSymlinks alone fails on
// paths that do not exist yet, which is the normal case for new files.
func resolveExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	var suffix []string
	current := path
	for {
		parent := filepath.Dir(current)
		if parent == current {
			// Ran out of ancestors; keep the cleaned path as-is.
			return path, nil
		}
		suffix = append([]string{filepath.Base(current)}, suffix...)
		current = parent

		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

// IsProtectedDirectory reports whether deleting path would remove the
// active root, one of its ancestors, or a critical system directory.
// delete_directory refuses such targets regardless of any lock token.
func IsProtectedDirectory(path, activeRoot string) bool {
	cleaned := filepath.Clean(path)

	if cleaned == filepath.Clean(activeRoot) {
		return true
	}
	// Ancestors of the active root.
	current := filepath.Clean(activeRoot)
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		if cleaned == parent {
			return true
		}
		current = parent
	}

	// Drive/filesystem root.
	if cleaned == filepath.Dir(cleaned) {
		return true
	}

	for _, critical := range criticalPaths() {
		if cleaned == critical {
			return true
		}
	}
	return fileops.IsReservedDirectory(cleaned)
}

func criticalPaths() []string {
	return []string{"/", "/home", "/root", "/Users", `C:\`}
}
