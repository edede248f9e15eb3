package editor

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Every failure a tool
// can surface wraps exactly one of these, so callers distinguish kinds with
// errors.Is and recover details with errors.As on the typed wrappers below.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotAFile          = errors.New("not a file")
	ErrNotADirectory     = errors.New("not a directory")
	ErrDestinationExists = errors.New("destination already exists")
	ErrProtectedPath     = errors.New("protected path")
	ErrConflict          = errors.New("conflict: file modified by another process")
	ErrRange             = errors.New("line range out of bounds")
	ErrEmptySearch       = errors.New("empty search string")
	ErrCountMismatch     = errors.New("occurrence count mismatch")
	ErrMalformedDiff     = errors.New("malformed diff")
	ErrHunkMismatch      = errors.New("hunk mismatch")
	ErrEncoding          = errors.New("encoding error")
)

// NotFoundError reports a path that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Path) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotAFileError reports an operation that requires a regular file but was
// given something else, usually a directory.
type NotAFileError struct {
	Path string
}

func (e *NotAFileError) Error() string { return fmt.Sprintf("not a file: %s", e.Path) }
func (e *NotAFileError) Unwrap() error { return ErrNotAFile }

// NotADirectoryError reports an operation that requires a directory.
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string { return fmt.Sprintf("not a directory: %s", e.Path) }
func (e *NotADirectoryError) Unwrap() error { return ErrNotADirectory }

// DestinationExistsError reports a copy or move whose destination is
// already occupied.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination already exists: %s", e.Path)
}
func (e *DestinationExistsError) Unwrap() error { return ErrDestinationExists }

// ProtectedPathError reports a recursive delete aimed at the active root,
// one of its ancestors, or a critical system directory.
type ProtectedPathError struct {
	Path   string
	Reason string
}

func (e *ProtectedPathError) Error() string {
	return fmt.Sprintf("refusing to delete %s: %s", e.Path, e.Reason)
}
func (e *ProtectedPathError) Unwrap() error { return ErrProtectedPath }

// ConflictError reports an optimistic-lock failure. Both timestamps are
// carried (seconds since epoch, matching the wire format) so the caller can
// re-read and retry; the engine never retries on its own.
type ConflictError struct {
	Path     string
	Expected float64
	Actual   float64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s modified by another process (expected mtime %.6f, got %.6f)",
		e.Path, e.Expected, e.Actual)
}
func (e *ConflictError) Unwrap() error { return ErrConflict }

// RangeError reports line coordinates outside the file or an inverted
// interval. Detected before any read or write.
type RangeError struct {
	Msg string
}

func (e *RangeError) Error() string { return e.Msg }
func (e *RangeError) Unwrap() error { return ErrRange }

// CountMismatchError reports a substitution whose occurrence count differs
// from the caller's contract. Found == 0 additionally carries a Hint with
// the closest fuzzy match so the caller can correct the search string.
type CountMismatchError struct {
	Found    int
	Expected int
	Hint     string
}

func (e *CountMismatchError) Error() string {
	if e.Found == 0 && e.Hint != "" {
		return fmt.Sprintf("search content not found (expected %d occurrence(s)). %s", e.Expected, e.Hint)
	}
	return fmt.Sprintf("expected %d occurrence(s) but found %d; adjust expected_replacements or make the search string more specific",
		e.Expected, e.Found)
}
func (e *CountMismatchError) Unwrap() error { return ErrCountMismatch }

// MalformedDiffError reports diff text that cannot be parsed into hunks.
type MalformedDiffError struct {
	Line   int
	Reason string
}

func (e *MalformedDiffError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed diff at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed diff: %s", e.Reason)
}
func (e *MalformedDiffError) Unwrap() error { return ErrMalformedDiff }

// HunkMismatchError reports a hunk whose old-side lines disagree with the
// file. Hunk is 1-based; Line is the 1-based original-file line where the
// comparison failed. Raised during verification, before any mutation.
type HunkMismatchError struct {
	Hunk     int
	Line     int
	Expected string
	Actual   string
	Reason   string
}

func (e *HunkMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("hunk #%d %s", e.Hunk, e.Reason)
	}
	return fmt.Sprintf("hunk #%d mismatch at original line %d: expected %q, found %q",
		e.Hunk, e.Line, e.Expected, e.Actual)
}
func (e *HunkMismatchError) Unwrap() error { return ErrHunkMismatch }

// EncodingError reports a decode or encode failure for a declared encoding.
// The attempted encoding name is carried so the caller can retry with an
// alternative.
type EncodingError struct {
	Encoding string
	Err      error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %q failed: %v (retry with a different encoding)", e.Encoding, e.Err)
}
func (e *EncodingError) Unwrap() error { return ErrEncoding }
