package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitKeepEnds(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"empty", "", nil},
		{"single line no newline", "abc", []string{"abc"}},
		{"single line with newline", "abc\n", []string{"abc\n"}},
		{"multiple lines", "a\nb\nc\n", []string{"a\n", "b\n", "c\n"}},
		{"no trailing newline", "a\nb", []string{"a\n", "b"}},
		{"blank lines", "\n\n", []string{"\n", "\n"}},
		{"crlf kept intact", "a\r\nb\r\n", []string{"a\r\n", "b\r\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitKeepEnds(tt.content)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.content, joinLines(got), "split/join must round-trip")
		})
	}
}

func TestReplaceLines(t *testing.T) {
	base := []string{"one\n", "two\n", "three\n", "four\n"}

	t.Run("replaces exactly the closed interval", func(t *testing.T) {
		got, err := ReplaceLines(base, 2, 3, "TWO\nTHREE\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"one\n", "TWO\n", "THREE\n", "four\n"}, got)
	})

	t.Run("line count may shrink", func(t *testing.T) {
		got, err := ReplaceLines(base, 1, 3, "single\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"single\n", "four\n"}, got)
	})

	t.Run("line count may grow", func(t *testing.T) {
		got, err := ReplaceLines(base, 4, 4, "a\nb\nc\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"one\n", "two\n", "three\n", "a\n", "b\n", "c\n"}, got)
	})

	t.Run("empty replacement deletes lines", func(t *testing.T) {
		got, err := ReplaceLines(base, 2, 3, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"one\n", "four\n"}, got)
	})

	t.Run("lines outside the interval are byte-identical", func(t *testing.T) {
		for start := 1; start <= len(base); start++ {
			for end := start; end <= len(base); end++ {
				got, err := ReplaceLines(base, start, end, "X\n")
				require.NoError(t, err)
				assert.Equal(t, base[:start-1], got[:start-1])
				assert.Equal(t, base[end:], got[len(got)-(len(base)-end):])
			}
		}
	})

	t.Run("range errors", func(t *testing.T) {
		for _, tc := range []struct{ start, end int }{
			{0, 1}, {-1, 2}, {3, 2}, {1, 5}, {5, 5},
		} {
			_, err := ReplaceLines(base, tc.start, tc.end, "x\n")
			assert.True(t, errors.Is(err, ErrRange), "(%d,%d) should be a RangeError", tc.start, tc.end)
		}
	})
}

func TestInsertAfter(t *testing.T) {
	base := []string{"one\n", "two\n"}

	t.Run("index 0 inserts before first line", func(t *testing.T) {
		got, err := InsertAfter(base, 0, "zero\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"zero\n", "one\n", "two\n"}, got)
	})

	t.Run("index between lines", func(t *testing.T) {
		got, err := InsertAfter(base, 1, "mid\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"one\n", "mid\n", "two\n"}, got)
	})

	t.Run("index len appends", func(t *testing.T) {
		got, err := InsertAfter(base, 2, "three\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"one\n", "two\n", "three\n"}, got)
	})

	t.Run("range errors", func(t *testing.T) {
		_, err := InsertAfter(base, -1, "x\n")
		assert.True(t, errors.Is(err, ErrRange))
		_, err = InsertAfter(base, 3, "x\n")
		assert.True(t, errors.Is(err, ErrRange))
	})
}
