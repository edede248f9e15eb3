package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diffBase = "alpha\nbeta\ngamma\ndelta\n"

func TestParseDiff(t *testing.T) {
	t.Run("no hunk headers", func(t *testing.T) {
		_, err := ParseDiff("just some text\nwithout hunks\n")
		assert.True(t, errors.Is(err, ErrMalformedDiff))
	})

	t.Run("header counts default to 1", func(t *testing.T) {
		hunks, err := ParseDiff("@@ -3 +3 @@\n-gamma\n+GAMMA\n")
		require.NoError(t, err)
		require.Len(t, hunks, 1)
		assert.Equal(t, 3, hunks[0].OldStart)
		assert.Equal(t, 1, hunks[0].OldCount)
		assert.Equal(t, 1, hunks[0].NewCount)
	})

	t.Run("file headers are ignored", func(t *testing.T) {
		diff := "--- a/f.txt\n+++ b/f.txt\n@@ -1,1 +1,1 @@\n-alpha\n+ALPHA\n"
		hunks, err := ParseDiff(diff)
		require.NoError(t, err)
		assert.Len(t, hunks, 1)
	})

	t.Run("invalid body marker", func(t *testing.T) {
		_, err := ParseDiff("@@ -1,1 +1,1 @@\n-alpha\n*bogus\n")
		assert.True(t, errors.Is(err, ErrMalformedDiff))
	})

	t.Run("no-newline marker tolerated", func(t *testing.T) {
		_, err := ParseDiff("@@ -1,1 +1,1 @@\n-alpha\n+ALPHA\n\\ No newline at end of file\n")
		assert.NoError(t, err)
	})
}

func TestApplyUnifiedDiff(t *testing.T) {
	t.Run("single hunk", func(t *testing.T) {
		patch := "@@ -2,1 +2,1 @@\n-beta\n+BETA\n"
		got, summaries, err := ApplyUnifiedDiff(diffBase, patch)
		require.NoError(t, err)
		assert.Equal(t, "alpha\nBETA\ngamma\ndelta\n", got)
		assert.Equal(t, []string{"#1 -2-2 -> +2-2"}, summaries)
	})

	t.Run("context lines verified and kept", func(t *testing.T) {
		patch := "@@ -1,3 +1,3 @@\n alpha\n-beta\n+BETA\n gamma\n"
		got, _, err := ApplyUnifiedDiff(diffBase, patch)
		require.NoError(t, err)
		assert.Equal(t, "alpha\nBETA\ngamma\ndelta\n", got)
	})

	t.Run("multiple hunks with shifting offsets", func(t *testing.T) {
		patch := "@@ -1,1 +1,2 @@\n-alpha\n+alpha\n+inserted\n@@ -4,1 +5,1 @@\n-delta\n+DELTA\n"
		got, _, err := ApplyUnifiedDiff(diffBase, patch)
		require.NoError(t, err)
		assert.Equal(t, "alpha\ninserted\nbeta\ngamma\nDELTA\n", got)
	})

	t.Run("pure insertion", func(t *testing.T) {
		patch := "@@ -2,1 +2,2 @@\n beta\n+after-beta\n"
		got, _, err := ApplyUnifiedDiff(diffBase, patch)
		require.NoError(t, err)
		assert.Equal(t, "alpha\nbeta\nafter-beta\ngamma\ndelta\n", got)
	})

	t.Run("pure deletion", func(t *testing.T) {
		patch := "@@ -3,1 +3,0 @@\n-gamma\n"
		got, _, err := ApplyUnifiedDiff(diffBase, patch)
		require.NoError(t, err)
		assert.Equal(t, "alpha\nbeta\ndelta\n", got)
	})
}

func TestApplyUnifiedDiff_AllOrNothing(t *testing.T) {
	t.Run("corrupted context leaves content unchanged", func(t *testing.T) {
		// First hunk would match; second has a wrong context line.
		patch := "@@ -1,1 +1,1 @@\n-alpha\n+ALPHA\n@@ -3,2 +3,2 @@\n WRONG\n-delta\n+DELTA\n"
		got, _, err := ApplyUnifiedDiff(diffBase, patch)
		var mismatch *HunkMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 2, mismatch.Hunk)
		assert.Equal(t, diffBase, got, "no hunk may be applied when any hunk fails")
	})

	t.Run("deletion mismatch reports line", func(t *testing.T) {
		patch := "@@ -2,1 +2,1 @@\n-not-beta\n+x\n"
		_, _, err := ApplyUnifiedDiff(diffBase, patch)
		var mismatch *HunkMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 1, mismatch.Hunk)
		assert.Equal(t, 2, mismatch.Line)
	})

	t.Run("declared counts must match the body", func(t *testing.T) {
		patch := "@@ -2,2 +2,1 @@\n-beta\n+BETA\n"
		got, _, err := ApplyUnifiedDiff(diffBase, patch)
		assert.True(t, errors.Is(err, ErrHunkMismatch))
		assert.Equal(t, diffBase, got)

		patch = "@@ -2,1 +2,5 @@\n-beta\n+BETA\n"
		_, _, err = ApplyUnifiedDiff(diffBase, patch)
		assert.True(t, errors.Is(err, ErrHunkMismatch))
	})

	t.Run("overlapping hunks rejected", func(t *testing.T) {
		patch := "@@ -2,2 +2,2 @@\n-beta\n-gamma\n+x\n+y\n@@ -3,1 +3,1 @@\n-gamma\n+z\n"
		got, _, err := ApplyUnifiedDiff(diffBase, patch)
		assert.True(t, errors.Is(err, ErrHunkMismatch))
		assert.Equal(t, diffBase, got)
	})

	t.Run("context beyond end of file", func(t *testing.T) {
		patch := "@@ -4,2 +4,2 @@\n delta\n extra\n"
		_, _, err := ApplyUnifiedDiff(diffBase, patch)
		assert.True(t, errors.Is(err, ErrHunkMismatch))
	})
}

func TestApplyUnifiedDiff_IdempotenceRejected(t *testing.T) {
	patch := "@@ -2,1 +2,1 @@\n-beta\n+BETA\n"
	patched, _, err := ApplyUnifiedDiff(diffBase, patch)
	require.NoError(t, err)

	// Applying the same diff to the patched content must fail: the old-side
	// line no longer exists.
	got, _, err := ApplyUnifiedDiff(patched, patch)
	assert.True(t, errors.Is(err, ErrHunkMismatch))
	assert.Equal(t, patched, got)
}

func TestApplyUnifiedDiff_FinalLineWithoutNewline(t *testing.T) {
	content := "alpha\nomega"
	patch := "@@ -2,1 +2,1 @@\n-omega\n+OMEGA\n"
	got, _, err := ApplyUnifiedDiff(content, patch)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nOMEGA\n", got)
}
