package editor

import "fmt"

// EditLocation describes where a change landed in the resulting file.
// Coordinates are 1-based and inclusive, and exist purely for reporting;
// nothing addresses file content by EditLocation.
type EditLocation struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`
}

// EditResult is the structured outcome of a single edit operation.
type EditResult struct {
	Status       string         `json:"status"` // "success" | "error" | "partial"
	Message      string         `json:"message"`
	FilePath     string         `json:"file_path"`
	Replacements int            `json:"replacements"`
	Locations    []EditLocation `json:"locations"`
}

// summarizeLocations renders "line 3, lines 7-9" style summaries for result
// messages.
func summarizeLocations(locations []EditLocation) string {
	summary := ""
	for i, loc := range locations {
		if i > 0 {
			summary += ", "
		}
		if loc.StartLine == loc.EndLine {
			summary += fmt.Sprintf("line %d", loc.StartLine)
		} else {
			summary += fmt.Sprintf("lines %d-%d", loc.StartLine, loc.EndLine)
		}
	}
	return summary
}

// indexToLineCol converts a character index into 1-based line and column.
func indexToLineCol(text string, index int) (line, col int) {
	line = 1
	lastNewline := -1
	for i := 0; i < index && i < len(text); i++ {
		if text[i] == '\n' {
			line++
			lastNewline = i
		}
	}
	return line, index - lastNewline
}

// locationForSpan computes the EditLocation covering [startIdx, endIdx) in
// text.
func locationForSpan(text string, startIdx, endIdx int) EditLocation {
	startLine, startCol := indexToLineCol(text, startIdx)
	endLine, endCol := indexToLineCol(text, endIdx)
	return EditLocation{
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}
