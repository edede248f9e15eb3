package editor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEncoding(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "utf-8"},
		{"UTF-8", "utf-8"},
		{"utf8", "utf-8"},
		{"latin1", "iso-8859-1"},
		{"Latin-1", "iso-8859-1"},
		{"utf16", "utf-16"},
		{"shift_jis", "shift_jis"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeEncoding(tt.in), "input %q", tt.in)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Run("utf-8 passthrough", func(t *testing.T) {
		data, err := encodeString("héllo", "utf-8")
		require.NoError(t, err)
		assert.Equal(t, []byte("héllo"), data)

		got, err := decodeBytes(data, "")
		require.NoError(t, err)
		assert.Equal(t, "héllo", got)
	})

	t.Run("latin-1", func(t *testing.T) {
		data, err := encodeString("café", "latin1")
		require.NoError(t, err)
		// é is a single byte in ISO-8859-1.
		assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, data)

		got, err := decodeBytes(data, "latin1")
		require.NoError(t, err)
		assert.Equal(t, "café", got)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := decodeBytes([]byte("x"), "klingon-8")
		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, "klingon-8", encErr.Encoding)
		assert.True(t, errors.Is(err, ErrEncoding))
	})
}

func TestEncodingCache(t *testing.T) {
	cache := newEncodingCache()
	now := time.Now()

	_, ok := cache.lookup("/f", now)
	assert.False(t, ok)

	cache.store("/f", now, "iso-8859-1")
	name, ok := cache.lookup("/f", now)
	assert.True(t, ok)
	assert.Equal(t, "iso-8859-1", name)

	// A different mtime means the cached entry no longer describes the file.
	_, ok = cache.lookup("/f", now.Add(time.Second))
	assert.False(t, ok)

	cache.evict("/f")
	_, ok = cache.lookup("/f", now)
	assert.False(t, ok)
}

func TestTakeSnapshot_UsesRememberedEncoding(t *testing.T) {
	e, _, dir := newTestEngine(t)

	seedFile(t, dir, "l1.txt", string([]byte{'c', 'a', 'f', 0xe9, '\n'}))
	path := dir + "/l1.txt"

	// First touch declares latin-1; the cache remembers it.
	snap, err := takeSnapshot(path, "latin1", e.encodings)
	require.NoError(t, err)
	assert.Equal(t, "café\n", snap.Content)

	// A later touch with no declared encoding decodes the same way.
	snap, err = takeSnapshot(path, "", e.encodings)
	require.NoError(t, err)
	assert.Equal(t, "iso-8859-1", snap.Encoding)
	assert.Equal(t, "café\n", snap.Content)

	// An explicit declaration always wins over the remembered one.
	snap, err = takeSnapshot(path, "utf-8", e.encodings)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", snap.Encoding)
	assert.NotEqual(t, "café\n", snap.Content)
}

func TestReadThenEdit_RemembersEncoding(t *testing.T) {
	e, set, dir := newTestEngine(t)

	_, err := e.WriteFile(set, "l1.txt", "café au lait\n", "rewrite", "latin1", nil)
	require.NoError(t, err)

	// Reading with a declared encoding teaches the cache; the follow-up
	// edit declares none and must still decode and re-encode as latin-1.
	_, err = e.ReadFile(set, "l1.txt", 0, nil, "latin1")
	require.NoError(t, err)

	_, err = e.EditBlock(set, "l1.txt", "lait", "chocolat", 1, false, "", nil)
	require.NoError(t, err)

	raw := fileContent(t, dir+"/l1.txt")
	assert.Contains(t, raw, "\xe9")
	assert.NotContains(t, raw, "é")

	res, err := e.ReadFile(set, "l1.txt", 0, nil, "latin1")
	require.NoError(t, err)
	assert.Contains(t, res.Content, "café au chocolat")
}

func TestEngineEncoding_RoundTripOnDisk(t *testing.T) {
	e, set, dir := newTestEngine(t)

	_, err := e.WriteFile(set, "l1.txt", "café au lait\n", "rewrite", "latin1", nil)
	require.NoError(t, err)

	// Bytes on disk are ISO-8859-1, not UTF-8.
	raw := fileContent(t, dir+"/l1.txt")
	assert.Contains(t, raw, "\xe9")
	assert.NotContains(t, raw, "é")

	res, err := e.ReadFile(set, "l1.txt", 0, nil, "latin1")
	require.NoError(t, err)
	assert.Contains(t, res.Content, "café au lait")

	// An edit with the declared encoding keeps the file in that encoding.
	_, err = e.EditBlock(set, "l1.txt", "lait", "chocolat", 1, false, "latin1", nil)
	require.NoError(t, err)
	res, err = e.ReadFile(set, "l1.txt", 0, nil, "latin1")
	require.NoError(t, err)
	assert.Contains(t, res.Content, "café au chocolat")
}
