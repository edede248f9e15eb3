package editor

import "fmt"

// splitKeepEnds splits content into lines with their terminators attached,
// so joining the slice reproduces the input byte-for-byte. The final line
// may lack a terminator. Empty content yields no lines.
func splitKeepEnds(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

// joinLines is the inverse of splitKeepEnds.
func joinLines(lines []string) string {
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	out := make([]byte, 0, total)
	for _, l := range lines {
		out = append(out, l...)
	}
	return string(out)
}

// ReplaceLines substitutes the closed interval [start, end] (1-based) with
// the lines of newContent. The replacement is a pure slice substitution:
// the line count may change, and every line outside the interval is carried
// over byte-identical. No I/O happens here; the caller commits the joined
// result.
func ReplaceLines(lines []string, start, end int, newContent string) ([]string, error) {
	if start < 1 || end < start {
		return nil, &RangeError{Msg: "start_line must be >= 1 and end_line must be >= start_line"}
	}
	if end > len(lines) {
		return nil, &RangeError{Msg: fmt.Sprintf("end_line %d exceeds total number of lines (%d)", end, len(lines))}
	}

	newLines := splitKeepEnds(newContent)
	out := make([]string, 0, len(lines)-(end-start+1)+len(newLines))
	out = append(out, lines[:start-1]...)
	out = append(out, newLines...)
	out = append(out, lines[end:]...)
	return out, nil
}

// InsertAfter inserts the lines of content after line index (1-based);
// index 0 inserts before the first line, index len(lines) appends at the
// end.
func InsertAfter(lines []string, index int, content string) ([]string, error) {
	if index < 0 {
		return nil, &RangeError{Msg: "line_number must be >= 0"}
	}
	if index > len(lines) {
		return nil, &RangeError{Msg: fmt.Sprintf("line_number %d exceeds total number of lines (%d)", index, len(lines))}
	}

	newLines := splitKeepEnds(content)
	out := make([]string, 0, len(lines)+len(newLines))
	out = append(out, lines[:index]...)
	out = append(out, newLines...)
	out = append(out, lines[index:]...)
	return out, nil
}
