package editor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeedit/internal/config"
	"codeedit/internal/logging"
	"codeedit/internal/pathguard"
)

func newTestEngine(t *testing.T) (*Engine, pathguard.AllowedSet, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig(dir)
	logger, _ := logging.NewTestLogger()
	set, err := pathguard.NewAllowedSet(dir, []string{dir})
	require.NoError(t, err)
	return NewEngine(&cfg, logger), set, dir
}

func seedFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func fileContent(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteFile(t *testing.T) {
	t.Run("rewrite creates and replaces", func(t *testing.T) {
		e, set, dir := newTestEngine(t)

		res, err := e.WriteFile(set, "notes.txt", "hello\n", "rewrite", "", nil)
		require.NoError(t, err)
		assert.Greater(t, res.Mtime, 0.0)
		assert.Equal(t, "hello\n", fileContent(t, filepath.Join(dir, "notes.txt")))

		_, err = e.WriteFile(set, "notes.txt", "goodbye\n", "write", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "goodbye\n", fileContent(t, filepath.Join(dir, "notes.txt")))
	})

	t.Run("append concatenates", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		seedFile(t, dir, "log.txt", "line1\n")

		res, err := e.WriteFile(set, "log.txt", "line2\n", "append", "", nil)
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		assert.Equal(t, "line1\nline2\n", fileContent(t, filepath.Join(dir, "log.txt")))
	})

	t.Run("append degrades above the threshold", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		e.writer.AppendMax = 4
		seedFile(t, dir, "big.txt", "0123456789")

		res, err := e.WriteFile(set, "big.txt", "-tail", "append", "", nil)
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Contains(t, res.Message, "non-atomic")
		assert.Equal(t, "0123456789-tail", fileContent(t, filepath.Join(dir, "big.txt")))
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		_, err := e.WriteFile(set, "a/b/c.txt", "deep\n", "rewrite", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "deep\n", fileContent(t, filepath.Join(dir, "a", "b", "c.txt")))
	})

	t.Run("invalid mode", func(t *testing.T) {
		e, set, _ := newTestEngine(t)
		_, err := e.WriteFile(set, "x.txt", "x", "replace", "", nil)
		assert.Error(t, err)
	})

	t.Run("path outside allow-list denied", func(t *testing.T) {
		e, set, _ := newTestEngine(t)
		_, err := e.WriteFile(set, filepath.Join(t.TempDir(), "evil.txt"), "x", "rewrite", "", nil)
		assert.True(t, errors.Is(err, pathguard.ErrDenied))
	})
}

func TestWriteFile_OptimisticLock(t *testing.T) {
	e, set, dir := newTestEngine(t)
	path := seedFile(t, dir, "shared.txt", "v0\n")

	// Backdate the file so the stale token falls outside the lock's
	// epsilon window even on fast filesystems.
	backdated := time.Now().Add(-2 * time.Second)
	require.NoError(t, os.Chtimes(path, backdated, backdated))

	// Two writers read the same mtime.
	info, err := os.Stat(path)
	require.NoError(t, err)
	token := mtimeSeconds(info.ModTime())

	// Writer A commits first and changes the mtime.
	resA, err := e.WriteFile(set, "shared.txt", "writer-a\n", "rewrite", "", &token)
	require.NoError(t, err)

	// Writer B must observe a conflict carrying the new actual mtime,
	// never silently overwrite.
	_, err = e.WriteFile(set, "shared.txt", "writer-b\n", "rewrite", "", &token)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, token, conflict.Expected)
	assert.InDelta(t, resA.Mtime, conflict.Actual, 0.5)
	assert.Equal(t, "writer-a\n", fileContent(t, path))

	// A fresh token from the new mtime unlocks the write.
	fresh := resA.Mtime
	_, err = e.WriteFile(set, "shared.txt", "writer-b\n", "rewrite", "", &fresh)
	assert.NoError(t, err)
}

func TestEditLines(t *testing.T) {
	t.Run("replaces exactly the interval", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		path := seedFile(t, dir, "f.txt", "one\ntwo\nthree\nfour\n")

		res, err := e.EditLines(set, "f.txt", 2, 3, "TWO\nTHREE\n", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "success", res.Status)
		assert.Equal(t, "one\nTWO\nTHREE\nfour\n", fileContent(t, path))
		require.Len(t, res.Locations, 1)
		assert.Equal(t, 2, res.Locations[0].StartLine)
		assert.Equal(t, 3, res.Locations[0].EndLine)
	})

	t.Run("range validated before any read", func(t *testing.T) {
		e, set, _ := newTestEngine(t)
		_, err := e.EditLines(set, "missing.txt", 3, 2, "x", "", nil)
		assert.True(t, errors.Is(err, ErrRange), "range check must precede existence check")
	})

	t.Run("end beyond file", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		path := seedFile(t, dir, "f.txt", "one\ntwo\n")
		_, err := e.EditLines(set, "f.txt", 1, 5, "x\n", "", nil)
		assert.True(t, errors.Is(err, ErrRange))
		assert.Equal(t, "one\ntwo\n", fileContent(t, path))
	})

	t.Run("conflict leaves file untouched", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		path := seedFile(t, dir, "f.txt", "one\ntwo\n")
		stale := 1.0
		_, err := e.EditLines(set, "f.txt", 1, 1, "X\n", "", &stale)
		assert.True(t, errors.Is(err, ErrConflict))
		assert.Equal(t, "one\ntwo\n", fileContent(t, path))
	})
}

func TestInsertAtLine(t *testing.T) {
	e, set, dir := newTestEngine(t)
	path := seedFile(t, dir, "f.txt", "one\ntwo\n")

	res, err := e.InsertAtLine(set, "f.txt", 0, "zero\n", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "zero\none\ntwo\n", fileContent(t, path))
	assert.Contains(t, res.Message, "lines 1-1")

	_, err = e.InsertAtLine(set, "f.txt", 3, "end\n", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "zero\none\ntwo\nend\n", fileContent(t, path))

	_, err = e.InsertAtLine(set, "f.txt", 99, "x\n", "", nil)
	assert.True(t, errors.Is(err, ErrRange))
}

func TestInsertAtLine_EmptyContent(t *testing.T) {
	e, set, dir := newTestEngine(t)
	path := seedFile(t, dir, "f.txt", "one\ntwo\n")

	// Zero lines inserted: the message anchors on line_number itself
	// rather than producing an inverted range.
	res, err := e.InsertAtLine(set, "f.txt", 1, "", "", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Inserted 0 line(s)")
	assert.Contains(t, res.Message, "at lines 1-1")
	assert.Equal(t, "one\ntwo\n", fileContent(t, path))
}

func TestEditBlock(t *testing.T) {
	t.Run("substitutes and reports locations", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		path := seedFile(t, dir, "f.txt", "x one x two\n")

		res, err := e.EditBlock(set, "f.txt", "x", "y", 2, false, "", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Replacements)
		assert.Equal(t, "y one y two\n", fileContent(t, path))
	})

	t.Run("count mismatch mutates nothing", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		path := seedFile(t, dir, "f.txt", "x one x two\n")

		_, err := e.EditBlock(set, "f.txt", "x", "y", 3, false, "", nil)
		assert.True(t, errors.Is(err, ErrCountMismatch))
		assert.Equal(t, "x one x two\n", fileContent(t, path))
	})

	t.Run("empty search rejected before I/O", func(t *testing.T) {
		e, set, _ := newTestEngine(t)
		_, err := e.EditBlock(set, "does-not-exist.txt", "", "y", 1, false, "", nil)
		assert.True(t, errors.Is(err, ErrEmptySearch))
	})

	t.Run("file size limit enforced", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		e.cfg.MaxEditFileSize = 4
		seedFile(t, dir, "big.txt", "0123456789")
		_, err := e.EditBlock(set, "big.txt", "01", "ab", 1, false, "", nil)
		assert.Error(t, err)
	})
}

func TestApplyDiffEngine(t *testing.T) {
	t.Run("applies and reports hunks", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		path := seedFile(t, dir, "f.txt", "alpha\nbeta\ngamma\n")

		res, err := e.ApplyDiff(set, "f.txt", "@@ -2,1 +2,1 @@\n-beta\n+BETA\n", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "alpha\nBETA\ngamma\n", fileContent(t, path))
		assert.Contains(t, res.Message, "#1")
	})

	t.Run("corrupted hunk leaves file byte-identical", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		original := "alpha\nbeta\ngamma\n"
		path := seedFile(t, dir, "f.txt", original)

		_, err := e.ApplyDiff(set, "f.txt", "@@ -2,1 +2,1 @@\n-WRONG\n+BETA\n", "", nil)
		assert.True(t, errors.Is(err, ErrHunkMismatch))
		assert.Equal(t, original, fileContent(t, path))
	})

	t.Run("reapplying a successful diff fails", func(t *testing.T) {
		e, set, _ := newTestEngine(t)
		dir := set.Root()
		seedFile(t, dir, "f.txt", "alpha\nbeta\n")

		patch := "@@ -1,1 +1,1 @@\n-alpha\n+ALPHA\n"
		_, err := e.ApplyDiff(set, "f.txt", patch, "", nil)
		require.NoError(t, err)

		_, err = e.ApplyDiff(set, "f.txt", patch, "", nil)
		assert.True(t, errors.Is(err, ErrHunkMismatch))
	})
}

func TestFileOperations(t *testing.T) {
	t.Run("copy requires missing destination", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		seedFile(t, dir, "src.txt", "payload")

		res, err := e.CopyFile(set, "src.txt", "dst.txt", nil)
		require.NoError(t, err)
		assert.Equal(t, "payload", fileContent(t, res.Path))

		_, err = e.CopyFile(set, "src.txt", "dst.txt", nil)
		assert.True(t, errors.Is(err, ErrDestinationExists))
	})

	t.Run("copy refuses directories", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
		_, err := e.CopyFile(set, "sub", "sub2", nil)
		assert.True(t, errors.Is(err, ErrNotAFile))
	})

	t.Run("move renames and frees the source name", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		seedFile(t, dir, "old.txt", "data")

		_, err := e.MoveFile(set, "old.txt", "new.txt", nil)
		require.NoError(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "old.txt"))
		assert.Equal(t, "data", fileContent(t, filepath.Join(dir, "new.txt")))
	})

	t.Run("delete file refuses directories", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
		_, err := e.DeleteFile(set, "sub", nil)
		assert.True(t, errors.Is(err, ErrNotAFile))
	})

	t.Run("delete file honors the lock", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		path := seedFile(t, dir, "f.txt", "x")
		stale := 1.0
		_, err := e.DeleteFile(set, "f.txt", &stale)
		assert.True(t, errors.Is(err, ErrConflict))
		assert.FileExists(t, path)
	})

	t.Run("create directory and file info", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		_, err := e.CreateDirectory(set, "a/b")
		require.NoError(t, err)
		assert.DirExists(t, filepath.Join(dir, "a", "b"))

		seedFile(t, dir, "f.txt", "one\ntwo\n")
		info, err := e.FileInfo(set, "f.txt")
		require.NoError(t, err)
		assert.True(t, info.IsFile)
		require.NotNil(t, info.LineCount)
		assert.Equal(t, 3, *info.LineCount) // trailing newline opens a final empty line
		assert.Greater(t, info.Modified, 0.0)
	})
}

func TestDeleteDirectory(t *testing.T) {
	t.Run("removes a plain subdirectory", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		sub := filepath.Join(dir, "scratch")
		require.NoError(t, os.MkdirAll(filepath.Join(sub, "nested"), 0755))

		_, err := e.DeleteDirectory(set, "scratch", nil)
		require.NoError(t, err)
		assert.NoDirExists(t, sub)
	})

	t.Run("protected regardless of lock token", func(t *testing.T) {
		e, set, dir := newTestEngine(t)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		token := mtimeSeconds(info.ModTime())

		// The active root is refused even with a perfectly valid token.
		_, err = e.DeleteDirectory(set, dir, &token)
		assert.True(t, errors.Is(err, ErrProtectedPath))
		assert.DirExists(t, dir)
	})

	t.Run("not a directory", func(t *testing.T) {
		e, set, dir := newTestEngine(t)
		seedFile(t, dir, "f.txt", "x")
		_, err := e.DeleteDirectory(set, "f.txt", nil)
		assert.True(t, errors.Is(err, ErrNotADirectory))
	})
}

func TestListDirectory(t *testing.T) {
	e, set, dir := newTestEngine(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	seedFile(t, dir, "a.txt", "a")
	seedFile(t, filepath.Join(dir, "sub"), "b.txt", "b")

	tree, err := e.ListDirectoryTree(set, ".", 2)
	require.NoError(t, err)
	assert.Contains(t, tree, "[FILE] a.txt")
	assert.Contains(t, tree, "[DIR] sub")
	assert.Contains(t, tree, "[FILE] sub/b.txt")

	flat, err := e.ListDirectoryFlat(set, ".", nil)
	require.NoError(t, err)
	names := make([]string, 0, len(flat))
	for _, entry := range flat {
		names = append(names, entry.Name)
	}
	assert.ElementsMatch(t, []string{"a.txt", "sub"}, names)

	_, err = e.ListDirectoryTree(set, "a.txt", 1)
	assert.True(t, errors.Is(err, ErrNotADirectory))
}
