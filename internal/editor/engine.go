// Package editor implements the file-mutation and patch engine: reads,
// writes, line edits, exact-text substitution, unified-diff application,
// and batch editing, under allow-list path confinement, optimistic mtime
// locking, and atomic temp-file-plus-rename commits.
package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeedit/internal/config"
	"codeedit/internal/logging"
	"codeedit/internal/pathguard"
	"codeedit/pkg/fileops"
)

// Engine executes the tool operations. It holds no per-file state: requests
// are safe to run concurrently, with single-file safety provided entirely
// by the optimistic lock check plus the atomicity of the commit rename.
type Engine struct {
	cfg       *config.Config
	log       *logging.AppLogger
	writer    AtomicWriter
	encodings *encodingCache
}

// NewEngine builds an Engine with the configured limits.
func NewEngine(cfg *config.Config, logger *logging.AppLogger) *Engine {
	return &Engine{
		cfg:       cfg,
		log:       logger,
		writer:    AtomicWriter{AppendMax: cfg.AtomicAppendMax},
		encodings: newEncodingCache(),
	}
}

// WriteResult reports a completed write, copy, or move.
type WriteResult struct {
	Path     string  `json:"path"`
	Mtime    float64 `json:"mtime"`
	Degraded bool    `json:"degraded,omitempty"`
	Message  string  `json:"message"`
}

// WriteFile rewrites or appends to a file. Missing parent directories are
// created. The returned mtime is the caller's next lock token.
func (e *Engine) WriteFile(set pathguard.AllowedSet, path, content, mode, encodingName string, expectedMtime *float64) (*WriteResult, error) {
	switch mode {
	case "write":
		mode = "rewrite"
	case "rewrite", "append":
	default:
		return nil, fmt.Errorf("mode must be \"rewrite\" (or \"write\") or \"append\", got %q", mode)
	}

	resolved, err := set.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := e.checkLockIfExists(resolved, expectedMtime); err != nil {
		return nil, err
	}
	if err := fileops.EnsureDirectoryExists(filepath.Dir(resolved)); err != nil {
		return nil, err
	}

	var result WriteResult
	result.Path = resolved
	if mode == "append" {
		mod, degraded, err := e.writer.Append(resolved, content, encodingName)
		if err != nil {
			return nil, err
		}
		result.Mtime = mtimeSeconds(mod)
		result.Degraded = degraded
		result.Message = fmt.Sprintf("Successfully appended to %s.", path)
		if degraded {
			result.Message += " Append was non-atomic: the file exceeds the atomic-append size threshold."
		}
	} else {
		mod, err := e.writer.Commit(resolved, content, encodingName)
		if err != nil {
			return nil, err
		}
		result.Mtime = mtimeSeconds(mod)
		result.Message = fmt.Sprintf("Successfully rewrote %s.", path)
	}

	e.encodings.evict(resolved)
	e.log.Debug("write_file", "path", resolved, "mode", mode, "bytes", len(content))
	return &result, nil
}

// EditLines replaces the closed line interval [startLine, endLine] with
// newContent. The interval is validated before anything is read.
func (e *Engine) EditLines(set pathguard.AllowedSet, path string, startLine, endLine int, newContent, encodingName string, expectedMtime *float64) (*EditResult, error) {
	if startLine < 1 || endLine < startLine {
		return nil, &RangeError{Msg: "start_line must be >= 1 and end_line must be >= start_line"}
	}

	resolved, err := set.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := checkLockToken(resolved, expectedMtime); err != nil {
		return nil, err
	}

	snap, err := takeSnapshot(resolved, encodingName, e.encodings)
	if err != nil {
		return nil, err
	}
	lines := snap.Lines()
	updated, err := ReplaceLines(lines, startLine, endLine, newContent)
	if err != nil {
		return nil, err
	}

	if _, err := e.commit(resolved, joinLines(updated), snap.Encoding); err != nil {
		return nil, err
	}

	newLineCount := len(splitKeepEnds(newContent))
	loc := spanLocation(updated, startLine, newLineCount)
	return &EditResult{
		Status:       "success",
		Message:      fmt.Sprintf("Replaced lines %d-%d in %s with %d new line(s).", startLine, endLine, path, newLineCount),
		FilePath:     resolved,
		Replacements: 1,
		Locations:    []EditLocation{loc},
	}, nil
}

// InsertAtLine inserts content after the given 1-based line; line 0 inserts
// before the first line.
func (e *Engine) InsertAtLine(set pathguard.AllowedSet, path string, lineNumber int, content, encodingName string, expectedMtime *float64) (*EditResult, error) {
	if lineNumber < 0 {
		return nil, &RangeError{Msg: "line_number must be >= 0"}
	}

	resolved, err := set.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := checkLockToken(resolved, expectedMtime); err != nil {
		return nil, err
	}

	snap, err := takeSnapshot(resolved, encodingName, e.encodings)
	if err != nil {
		return nil, err
	}
	updated, err := InsertAfter(snap.Lines(), lineNumber, content)
	if err != nil {
		return nil, err
	}

	if _, err := e.commit(resolved, joinLines(updated), snap.Encoding); err != nil {
		return nil, err
	}

	insertedCount := len(splitKeepEnds(content))
	startLine, endLine := lineNumber+1, lineNumber+insertedCount
	if insertedCount == 0 {
		// Nothing was inserted; report the anchor line itself.
		startLine, endLine = lineNumber, lineNumber
	}
	loc := spanLocation(updated, startLine, insertedCount)
	return &EditResult{
		Status: "success",
		Message: fmt.Sprintf("Inserted %d line(s) into %s at lines %d-%d.",
			insertedCount, path, startLine, endLine),
		FilePath:     resolved,
		Replacements: 1,
		Locations:    []EditLocation{loc},
	}, nil
}

// EditBlock performs an exact-text substitution with an occurrence-count
// contract: the file is mutated only when the number of occurrences equals
// expectedReplacements.
func (e *Engine) EditBlock(set pathguard.AllowedSet, path, oldString, newString string, expectedReplacements int, ignoreWhitespace bool, encodingName string, expectedMtime *float64) (*EditResult, error) {
	if oldString == "" {
		return nil, fmt.Errorf("%w: provide a non-empty string to search for", ErrEmptySearch)
	}
	if expectedReplacements < 1 {
		expectedReplacements = 1
	}

	resolved, err := set.Resolve(path)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(resolved); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, &NotFoundError{Path: resolved}
		}
		return nil, fmt.Errorf("cannot stat %s: %w", resolved, statErr)
	}
	// Bound memory: the whole file is loaded for matching.
	if err := fileops.ValidateFileSizeLimit(resolved, e.cfg.MaxEditFileSize); err != nil {
		return nil, fmt.Errorf("edit_block refused: %w", err)
	}
	if err := checkLockToken(resolved, expectedMtime); err != nil {
		return nil, err
	}

	snap, err := takeSnapshot(resolved, encodingName, e.encodings)
	if err != nil {
		return nil, err
	}

	newContent, locations, err := Substitute(snap.Content, oldString, newString, expectedReplacements, ignoreWhitespace)
	if err != nil {
		return nil, err
	}
	if _, err := e.commit(resolved, newContent, snap.Encoding); err != nil {
		return nil, err
	}

	return &EditResult{
		Status:       "success",
		Message:      fmt.Sprintf("Applied %d edit(s) to %s (%s)", expectedReplacements, path, summarizeLocations(locations)),
		FilePath:     resolved,
		Replacements: expectedReplacements,
		Locations:    locations,
	}, nil
}

// ApplyDiff applies unified-diff text to a file. Every hunk is verified
// byte-for-byte against the current content before any line is rewritten;
// a single mismatch leaves the file untouched.
func (e *Engine) ApplyDiff(set pathguard.AllowedSet, path, diffText, encodingName string, expectedMtime *float64) (*EditResult, error) {
	resolved, err := set.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := checkLockToken(resolved, expectedMtime); err != nil {
		return nil, err
	}

	snap, err := takeSnapshot(resolved, encodingName, e.encodings)
	if err != nil {
		return nil, err
	}

	patched, summaries, err := ApplyUnifiedDiff(snap.Content, diffText)
	if err != nil {
		return nil, err
	}
	if _, err := e.commit(resolved, patched, snap.Encoding); err != nil {
		return nil, err
	}

	return &EditResult{
		Status:       "success",
		Message:      fmt.Sprintf("Patch applied to %s. Hunks: %s", path, strings.Join(summaries, "; ")),
		FilePath:     resolved,
		Replacements: len(summaries),
	}, nil
}

// commit writes content through the atomic writer and evicts the path's
// encoding-cache entry.
func (e *Engine) commit(resolved, content, encodingName string) (float64, error) {
	mod, err := e.writer.Commit(resolved, content, encodingName)
	if err != nil {
		return 0, err
	}
	e.encodings.evict(resolved)
	return mtimeSeconds(mod), nil
}

// checkLockIfExists applies the lock check only when the target exists, so
// a token from "file absent" still allows the creating write.
func (e *Engine) checkLockIfExists(resolved string, expectedMtime *float64) error {
	if expectedMtime == nil {
		return nil
	}
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		return nil
	}
	return checkLockToken(resolved, expectedMtime)
}

// spanLocation computes the EditLocation covering count lines starting at
// startLine in the updated file. Columns span each line fully.
func spanLocation(updated []string, startLine, count int) EditLocation {
	if count < 1 {
		return EditLocation{StartLine: startLine, EndLine: startLine, StartCol: 1, EndCol: 1}
	}
	endLine := startLine + count - 1
	endCol := 1
	if endLine-1 >= 0 && endLine-1 < len(updated) {
		if n := len(strings.TrimRight(updated[endLine-1], "\r\n")); n > 0 {
			endCol = n
		}
	}
	return EditLocation{StartLine: startLine, EndLine: endLine, StartCol: 1, EndCol: endCol}
}
