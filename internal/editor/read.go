package editor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"codeedit/internal/pathguard"
)

// ReadResult carries file content back to the caller. Mtime doubles as the
// lock token for a subsequent mutation.
type ReadResult struct {
	Content    string  `json:"content"`
	MimeType   string  `json:"mime_type"`
	IsImage    bool    `json:"is_image"`
	Mtime      float64 `json:"mtime"`
	TotalLines int     `json:"total_lines,omitempty"`
}

// mimeTypeFor guesses a MIME type from the file extension.
func mimeTypeFor(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// looksBinary probes the leading bytes for NUL, the cheap signal that a
// file is not text.
func looksBinary(data []byte) bool {
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// ReadFile returns a window of a text file's lines, or the whole file
// base64-encoded when it is an image.
//
// offset >= 0 starts the window at that line (0-based); offset < 0 reads
// the last |offset| lines. length bounds the window; nil applies the
// configured default. Text responses start with a status line describing
// the window.
func (e *Engine) ReadFile(set pathguard.AllowedSet, path string, offset int, length *int, encodingName string) (*ReadResult, error) {
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
	if info.IsDir() {
		return nil, &NotAFileError{Path: resolved}
	}

	mimeType := mimeTypeFor(resolved)
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", resolved, err)
	}
	mtime := mtimeSeconds(info.ModTime())

	if isImageMime(mimeType) {
		return &ReadResult{
			Content:  base64.StdEncoding.EncodeToString(raw),
			MimeType: mimeType,
			IsImage:  true,
			Mtime:    mtime,
		}, nil
	}

	if looksBinary(raw) {
		return &ReadResult{
			Content: fmt.Sprintf(
				"Cannot read binary file as text: %s (%s)\n\nread_file only handles text files and images.",
				filepath.Base(resolved), mimeType),
			MimeType: "text/plain",
			Mtime:    mtime,
		}, nil
	}

	// A declared encoding is remembered for this (path, mtime), so a later
	// edit that declares none decodes the same way the read did.
	if encodingName == "" {
		if remembered, ok := e.encodings.lookup(resolved, info.ModTime()); ok {
			encodingName = remembered
		}
	}
	content, err := decodeBytes(raw, encodingName)
	if err != nil {
		return nil, err
	}
	e.encodings.store(resolved, info.ModTime(), normalizeEncoding(encodingName))

	window := e.cfg.ReadLineLimit
	if length != nil && *length > 0 {
		window = *length
	}

	lines := splitKeepEnds(content)
	total := len(lines)

	var selected []string
	var status string
	if offset < 0 {
		requested := -offset
		if requested > total {
			requested = total
		}
		selected = lines[total-requested:]
		status = fmt.Sprintf("[Reading last %d lines (total: %d lines)]", len(selected), total)
	} else {
		if offset > total {
			offset = total
		}
		end := offset + window
		if end > total {
			end = total
		}
		selected = lines[offset:end]
		remaining := total - end
		if offset == 0 {
			status = fmt.Sprintf("[Reading %d lines from start (total: %d lines, %d remaining)]", len(selected), total, remaining)
		} else {
			status = fmt.Sprintf("[Reading %d lines from line %d (total: %d lines, %d remaining)]", len(selected), offset, total, remaining)
		}
	}

	stripped := make([]string, len(selected))
	for i, line := range selected {
		stripped[i] = strings.TrimRight(line, "\n")
	}

	return &ReadResult{
		Content:    status + "\n\n" + strings.Join(stripped, "\n"),
		MimeType:   mimeType,
		Mtime:      mtime,
		TotalLines: total,
	}, nil
}
