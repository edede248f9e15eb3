package editor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRE = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Hunk is one unified-diff unit: a declared old-side range, a declared
// new-side range, and the tagged body lines. Body lines keep their
// terminators, like file lines, so comparison is byte-exact including EOLs.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []string // tagged: " " context, "-" removal, "+" addition
}

// ParseDiff splits unified-diff text into hunks. File headers (---, +++),
// index lines, and anything before the first @@ header are ignored. A diff
// with no hunk header at all, an invalid header, or an invalid body marker
// is rejected as MalformedDiff.
func ParseDiff(diffText string) ([]Hunk, error) {
	diffLines := splitKeepEnds(diffText)

	var hunks []Hunk
	var current *Hunk
	for i, raw := range diffLines {
		line := raw
		if strings.HasPrefix(line, "@@") {
			m := hunkHeaderRE.FindStringSubmatch(line)
			if m == nil {
				return nil, &MalformedDiffError{Line: i + 1, Reason: "invalid hunk header"}
			}
			hunks = append(hunks, Hunk{
				OldStart: atoiDefault(m[1], 1),
				OldCount: atoiDefault(m[2], 1),
				NewStart: atoiDefault(m[3], 1),
				NewCount: atoiDefault(m[4], 1),
			})
			current = &hunks[len(hunks)-1]
			continue
		}
		if current == nil {
			continue // preamble before the first hunk
		}
		switch {
		case line == "" || line == "\n":
			// Some producers emit a bare newline for an empty context line.
			current.Lines = append(current.Lines, " "+line)
		default:
			switch line[0] {
			case ' ', '-', '+':
				current.Lines = append(current.Lines, line)
			case '\\':
				// "\ No newline at end of file" - tolerated, not applied.
			default:
				return nil, &MalformedDiffError{
					Line:   i + 1,
					Reason: fmt.Sprintf("invalid hunk line marker %q", line[0]),
				}
			}
		}
	}

	if len(hunks) == 0 {
		return nil, &MalformedDiffError{Reason: "no hunk headers found"}
	}
	return hunks, nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// verifyHunks checks every hunk against the original lines without touching
// them: old-side lines (context and removals) must match the file
// byte-for-byte at their declared positions, hunks must not overlap, and
// each hunk's declared counts must equal what its body consumes and
// produces. Any failure rejects the whole patch; verification never
// mutates.
func verifyHunks(original []string, hunks []Hunk) error {
	oldIndex := 0 // last original line consumed by an earlier hunk
	for i, hunk := range hunks {
		no := i + 1
		start := hunk.OldStart - 1
		if start < oldIndex {
			return &HunkMismatchError{Hunk: no, Reason: "overlaps the previous hunk"}
		}

		idx := start
		consumed, produced := 0, 0
		for _, line := range hunk.Lines {
			marker, text := line[0], line[1:]
			switch marker {
			case ' ':
				if idx >= len(original) {
					return &HunkMismatchError{Hunk: no, Reason: "context extends beyond end of file"}
				}
				if !linesEqual(original[idx], text) {
					return &HunkMismatchError{
						Hunk: no, Line: idx + 1,
						Expected: text, Actual: original[idx],
					}
				}
				idx++
				consumed++
				produced++
			case '-':
				if idx >= len(original) {
					return &HunkMismatchError{Hunk: no, Reason: "deletion extends beyond end of file"}
				}
				if !linesEqual(original[idx], text) {
					return &HunkMismatchError{
						Hunk: no, Line: idx + 1,
						Expected: text, Actual: original[idx],
					}
				}
				idx++
				consumed++
			case '+':
				produced++
			}
		}

		if consumed != hunk.OldCount {
			return &HunkMismatchError{
				Hunk:   no,
				Reason: fmt.Sprintf("declared old count %d but body consumes %d lines", hunk.OldCount, consumed),
			}
		}
		if produced != hunk.NewCount {
			return &HunkMismatchError{
				Hunk:   no,
				Reason: fmt.Sprintf("declared new count %d but body produces %d lines", hunk.NewCount, produced),
			}
		}
		oldIndex = idx
	}
	return nil
}

// linesEqual compares a file line against a diff body line byte-for-byte,
// tolerating only the final line of either side lacking its terminator.
func linesEqual(fileLine, diffLine string) bool {
	if fileLine == diffLine {
		return true
	}
	return fileLine == diffLine+"\n" || diffLine == fileLine+"\n"
}

// applyHunks produces the patched line sequence. It must only be called
// after verifyHunks succeeded; positions refer to the pre-edit file, so the
// pass walks the original once and splices hunk output in order.
func applyHunks(original []string, hunks []Hunk) []string {
	var out []string
	oldIndex := 0
	for _, hunk := range hunks {
		start := hunk.OldStart - 1
		out = append(out, original[oldIndex:start]...)
		oldIndex = start
		for _, line := range hunk.Lines {
			marker, text := line[0], line[1:]
			switch marker {
			case ' ':
				out = append(out, original[oldIndex])
				oldIndex++
			case '-':
				oldIndex++
			case '+':
				out = append(out, text)
			}
		}
	}
	out = append(out, original[oldIndex:]...)
	return out
}

// ApplyUnifiedDiff patches content with diffText. Parsing and verification
// run to completion before any line is rewritten: either every hunk applies
// or the content comes back unchanged with the error. The returned
// summaries describe each hunk's line ranges for result messages.
func ApplyUnifiedDiff(content, diffText string) (string, []string, error) {
	hunks, err := ParseDiff(diffText)
	if err != nil {
		return content, nil, err
	}

	original := splitKeepEnds(content)
	if err := verifyHunks(original, hunks); err != nil {
		return content, nil, err
	}

	patched := applyHunks(original, hunks)

	summaries := make([]string, 0, len(hunks))
	for i, h := range hunks {
		oldEnd := h.OldStart + maxInt(h.OldCount, 1) - 1
		newEnd := h.NewStart + maxInt(h.NewCount, 1) - 1
		summaries = append(summaries, fmt.Sprintf("#%d -%d-%d -> +%d-%d", i+1, h.OldStart, oldEnd, h.NewStart, newEnd))
	}
	return joinLines(patched), summaries, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
