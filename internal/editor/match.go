package editor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// fuzzyThreshold is the similarity above which a near miss is reported as
// "found similar text" rather than "not found".
const fuzzyThreshold = 0.7

// detectLineEnding returns the dominant line terminator of content.
func detectLineEnding(content string) string {
	if strings.Contains(content, "\r\n") {
		return "\r\n"
	}
	if strings.Contains(content, "\r") {
		return "\r"
	}
	return "\n"
}

// normalizeLineEndings rewrites every line terminator in text to target, so
// a search string pasted with LF endings still matches a CRLF file.
func normalizeLineEndings(text, target string) string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	if target == "\n" {
		return normalized
	}
	return strings.ReplaceAll(normalized, "\n", target)
}

// Substitute replaces non-overlapping literal occurrences of oldText with
// newText, left to right. The number of occurrences must equal expected or the
// content is returned unmodified with a CountMismatchError — there is no
// partial substitution. When ignoreWhitespace is set and no exact match
// exists, matching retries with runs of whitespace collapsed.
//
// The returned locations describe where each replacement landed in the new
// content, 1-based and inclusive.
func Substitute(content, oldText, newText string, expected int, ignoreWhitespace bool) (string, []EditLocation, error) {
	if oldText == "" {
		return content, nil, fmt.Errorf("%w: provide a non-empty string to search for", ErrEmptySearch)
	}

	lineEnding := detectLineEnding(content)
	search := normalizeLineEndings(oldText, lineEnding)
	replacement := normalizeLineEndings(newText, lineEnding)

	if count := strings.Count(content, search); count > 0 {
		if count != expected {
			return content, nil, &CountMismatchError{Found: count, Expected: expected}
		}
		newContent, locations := replaceExact(content, search, replacement, expected)
		return newContent, locations, nil
	}

	if ignoreWhitespace {
		newContent, locations, matched, err := replaceWhitespaceInsensitive(content, search, replacement, expected)
		if err != nil {
			return content, nil, err
		}
		if matched {
			return newContent, locations, nil
		}
	}

	return content, nil, &CountMismatchError{
		Found:    0,
		Expected: expected,
		Hint:     fuzzyHint(content, oldText),
	}
}

// replaceExact substitutes exactly count occurrences of search, which the
// caller has verified to exist, and computes each replacement's span in the
// resulting content.
func replaceExact(content, search, replacement string, count int) (string, []EditLocation) {
	var b strings.Builder
	b.Grow(len(content) + count*(len(replacement)-len(search)))

	spans := make([][2]int, 0, count)
	searchFrom := 0
	for i := 0; i < count; i++ {
		idx := strings.Index(content[searchFrom:], search)
		idx += searchFrom

		b.WriteString(content[searchFrom:idx])
		start := b.Len()
		b.WriteString(replacement)
		spans = append(spans, [2]int{start, b.Len()})

		searchFrom = idx + len(search)
	}
	b.WriteString(content[searchFrom:])

	newContent := b.String()
	locations := make([]EditLocation, 0, len(spans))
	for _, span := range spans {
		locations = append(locations, locationForSpan(newContent, span[0], span[1]))
	}
	return newContent, locations
}

// replaceWhitespaceInsensitive matches search with contiguous whitespace
// collapsed to \s+ and substitutes the expected number of occurrences.
// matched reports whether any occurrence was found at all; zero matches is
// not an error here so the caller can fall through to the fuzzy hint.
func replaceWhitespaceInsensitive(content, search, replacement string, expected int) (string, []EditLocation, bool, error) {
	pattern, err := regexp.Compile("(?s)" + whitespaceInsensitivePattern(search))
	if err != nil {
		return "", nil, false, fmt.Errorf("failed to build whitespace-insensitive pattern: %w", err)
	}

	matches := pattern.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return "", nil, false, nil
	}
	if len(matches) != expected {
		return "", nil, false, &CountMismatchError{Found: len(matches), Expected: expected}
	}

	// A collapsed-whitespace pattern can swallow far more text than the
	// search string spans. Reject matches that grew past 1.5x the search's
	// line count rather than commit an unintended large edit.
	searchLines := strings.Count(search, "\n") + 1
	for _, m := range matches {
		matchedLines := strings.Count(content[m[0]:m[1]], "\n") + 1
		if float64(matchedLines) > float64(searchLines)*1.5 {
			return "", nil, false, fmt.Errorf(
				"%w: whitespace-insensitive match spanned %d lines vs expected %d; aborting to avoid an unintended large edit",
				ErrCountMismatch, matchedLines, searchLines)
		}
	}

	var b strings.Builder
	spans := make([][2]int, 0, len(matches))
	prev := 0
	for _, m := range matches {
		b.WriteString(content[prev:m[0]])
		start := b.Len()
		b.WriteString(replacement)
		spans = append(spans, [2]int{start, b.Len()})
		prev = m[1]
	}
	b.WriteString(content[prev:])

	newContent := b.String()
	locations := make([]EditLocation, 0, len(spans))
	for _, span := range spans {
		locations = append(locations, locationForSpan(newContent, span[0], span[1]))
	}
	return newContent, locations, true, nil
}

// whitespaceInsensitivePattern converts a literal string to a regular
// expression in which every run of whitespace matches \s+ and everything
// else is quoted.
func whitespaceInsensitivePattern(text string) string {
	var b strings.Builder
	inWhitespace := false
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			b.WriteString(regexp.QuoteMeta(literal.String()))
			literal.Reset()
		}
	}

	for _, r := range text {
		if unicode.IsSpace(r) {
			if !inWhitespace {
				flush()
				b.WriteString(`\s+`)
				inWhitespace = true
			}
		} else {
			literal.WriteRune(r)
			inWhitespace = false
		}
	}
	flush()
	return b.String()
}

// fuzzyHint scans content for the window most similar to needle and renders
// a caller-facing hint with the similarity percentage.
func fuzzyHint(content, needle string) string {
	value, similarity := bestFuzzyMatch(content, needle)
	if similarity >= fuzzyThreshold {
		return fmt.Sprintf(
			"Exact match not found, but found similar text with %d%% similarity:\n%s\nUse the exact text as it appears in the file.",
			int(similarity*100+0.5), truncateForHint(value))
	}
	if value == "" {
		return "No similar text found in the file."
	}
	return fmt.Sprintf("Closest match (%d%% similarity, below the %d%% threshold):\n%s",
		int(similarity*100+0.5), int(fuzzyThreshold*100), truncateForHint(value))
}

// bestFuzzyMatch slides a needle-sized window across content and returns
// the most similar segment with its similarity ratio in [0, 1].
func bestFuzzyMatch(content, needle string) (string, float64) {
	if content == "" || needle == "" {
		return "", 0
	}
	window := len(needle)
	step := window / 5
	if step < 1 {
		step = 1
	}

	needleGrams := bigrams(needle)
	bestRatio := 0.0
	bestValue := ""
	for i := 0; ; i += step {
		end := i + window
		if end > len(content) {
			end = len(content)
		}
		segment := content[i:end]
		ratio := diceCoefficient(needleGrams, bigrams(segment))
		if ratio > bestRatio {
			bestRatio = ratio
			bestValue = segment
		}
		if end == len(content) {
			break
		}
	}
	return bestValue, bestRatio
}

// bigrams returns the multiset of adjacent byte pairs in s.
func bigrams(s string) map[[2]byte]int {
	grams := make(map[[2]byte]int, len(s))
	for i := 0; i+1 < len(s); i++ {
		grams[[2]byte{s[i], s[i+1]}]++
	}
	return grams
}

// diceCoefficient computes the Sorensen-Dice similarity of two bigram
// multisets.
func diceCoefficient(a, b map[[2]byte]int) float64 {
	totalA, totalB, common := 0, 0, 0
	for g, n := range a {
		totalA += n
		if m := b[g]; m > 0 {
			if m < n {
				common += m
			} else {
				common += n
			}
		}
	}
	for _, n := range b {
		totalB += n
	}
	if totalA+totalB == 0 {
		return 0
	}
	return 2 * float64(common) / float64(totalA+totalB)
}

func truncateForHint(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
