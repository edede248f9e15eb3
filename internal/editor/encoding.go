package editor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// normalizeEncoding canonicalizes caller-supplied encoding names. The
// engine consumes declared encodings only; it never detects.
func normalizeEncoding(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "utf8", "utf-8":
		return "utf-8"
	case "latin1", "latin-1", "latin_1":
		return "iso-8859-1"
	case "utf16", "utf-16":
		return "utf-16"
	}
	return n
}

// lookupEncoding resolves a declared encoding name via the IANA registry.
func lookupEncoding(name string) (encoding.Encoding, error) {
	canonical := normalizeEncoding(name)
	switch canonical {
	case "utf-8":
		return unicode.UTF8, nil
	case "utf-16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	}
	enc, err := ianaindex.IANA.Encoding(canonical)
	if err != nil || enc == nil {
		return nil, &EncodingError{Encoding: name, Err: fmt.Errorf("unknown encoding")}
	}
	return enc, nil
}

// decodeBytes decodes raw file bytes using the declared encoding.
func decodeBytes(data []byte, name string) (string, error) {
	if normalizeEncoding(name) == "utf-8" {
		return string(data), nil
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &EncodingError{Encoding: name, Err: err}
	}
	return string(decoded), nil
}

// encodeString encodes content for writing using the declared encoding.
func encodeString(content, name string) ([]byte, error) {
	if normalizeEncoding(name) == "utf-8" {
		return []byte(content), nil
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	encoded, err := enc.NewEncoder().Bytes([]byte(content))
	if err != nil {
		return nil, &EncodingError{Encoding: name, Err: err}
	}
	return encoded, nil
}

// encodingCache remembers which declared encoding last decoded a file,
// keyed by (path, mtime). A stale mtime never serves: lookups compare the
// stored timestamp, and every successful mutation of a path evicts its
// entry deterministically rather than waiting for the mismatch.
type encodingCache struct {
	mu      sync.Mutex
	entries map[string]encodingCacheEntry
}

type encodingCacheEntry struct {
	modTime time.Time
	name    string
}

func newEncodingCache() *encodingCache {
	return &encodingCache{entries: make(map[string]encodingCacheEntry)}
}

func (c *encodingCache) lookup(path string, modTime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[path]
	if !ok || !entry.modTime.Equal(modTime) {
		return "", false
	}
	return entry.name, true
}

func (c *encodingCache) store(path string, modTime time.Time, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = encodingCacheEntry{modTime: modTime, name: name}
}

func (c *encodingCache) evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
