package editor

import (
	"fmt"
	"os"
	"time"

	"codeedit/pkg/fileops"
)

// AtomicWriter commits whole-file content. Every rewrite goes through a
// temporary sibling plus rename, so the target either reflects exactly the
// new content or is untouched; the window between temp write and rename is
// never subject to cancellation.
type AtomicWriter struct {
	// AppendMax bounds the read-concatenate-commit append path. Appending
	// to a file larger than this degrades to an in-place O_APPEND write to
	// keep memory bounded; the degradation is reported to the caller.
	AppendMax int64
}

// Commit encodes content with the declared encoding and atomically
// replaces path. It returns the file's new modification time, which the
// caller hands back as the next lock token.
func (w AtomicWriter) Commit(path, content, encodingName string) (time.Time, error) {
	data, err := encodeString(content, encodingName)
	if err != nil {
		return time.Time{}, err
	}
	if err := fileops.AtomicWriteFile(path, data, 0644); err != nil {
		return time.Time{}, fmt.Errorf("atomic commit of %s failed: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot stat %s after commit: %w", path, err)
	}
	return info.ModTime(), nil
}

// Append adds content to the end of path. Below AppendMax the new file
// content is produced by concatenation and committed atomically; above it
// the writer appends in place and reports degraded=true. A missing file is
// created.
func (w AtomicWriter) Append(path, content, encodingName string) (modTime time.Time, degraded bool, err error) {
	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && info.IsDir():
		return time.Time{}, false, &NotAFileError{Path: path}

	case statErr == nil && info.Size() > w.AppendMax:
		data, encErr := encodeString(content, encodingName)
		if encErr != nil {
			return time.Time{}, false, encErr
		}
		f, openErr := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
		if openErr != nil {
			return time.Time{}, false, fmt.Errorf("cannot open %s for append: %w", path, openErr)
		}
		if _, writeErr := f.Write(data); writeErr != nil {
			f.Close()
			return time.Time{}, false, fmt.Errorf("append to %s failed: %w", path, writeErr)
		}
		if closeErr := f.Close(); closeErr != nil {
			return time.Time{}, false, fmt.Errorf("append to %s failed: %w", path, closeErr)
		}
		after, statErr := os.Stat(path)
		if statErr != nil {
			return time.Time{}, true, fmt.Errorf("cannot stat %s after append: %w", path, statErr)
		}
		return after.ModTime(), true, nil

	default:
		existing := ""
		if statErr == nil {
			raw, readErr := os.ReadFile(path)
			if readErr != nil {
				return time.Time{}, false, fmt.Errorf("cannot read %s for append: %w", path, readErr)
			}
			existing, err = decodeBytes(raw, encodingName)
			if err != nil {
				return time.Time{}, false, err
			}
		} else if !os.IsNotExist(statErr) {
			return time.Time{}, false, fmt.Errorf("cannot stat %s: %w", path, statErr)
		}

		mod, commitErr := w.Commit(path, existing+content, encodingName)
		return mod, false, commitErr
	}
}
