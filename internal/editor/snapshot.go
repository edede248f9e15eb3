package editor

import (
	"fmt"
	"math"
	"os"
	"time"
)

// MtimeEpsilonSeconds is the optimistic-lock comparison slack. Filesystem
// timestamps can be coarser than the clock that produced the caller's
// token, so an exact comparison would reject honest writers.
const MtimeEpsilonSeconds = 0.01

// Snapshot is an ephemeral whole-file read taken at the start of a mutating
// operation. It is never cached across operations that mutate: every
// operation reads fresh.
type Snapshot struct {
	Path     string
	Content  string
	Encoding string
	ModTime  time.Time
	Size     int64
}

// mtimeSeconds renders a timestamp in the wire format for lock tokens:
// fractional seconds since the epoch.
func mtimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// takeSnapshot reads path in full and decodes it with the declared
// encoding. When the caller declares none, the cache supplies the encoding
// that last decoded this (path, mtime); the encoding that worked is stored
// back either way.
func takeSnapshot(path, encodingName string, cache *encodingCache) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &NotAFileError{Path: path}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if encodingName == "" && cache != nil {
		if remembered, ok := cache.lookup(path, info.ModTime()); ok {
			encodingName = remembered
		}
	}
	content, err := decodeBytes(data, encodingName)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		cache.store(path, info.ModTime(), normalizeEncoding(encodingName))
	}

	return &Snapshot{
		Path:     path,
		Content:  content,
		Encoding: normalizeEncoding(encodingName),
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}, nil
}

// Lines returns the snapshot content split with terminators kept.
func (s *Snapshot) Lines() []string {
	return splitKeepEnds(s.Content)
}

// checkLockToken enforces the optimistic lock: the target's current mtime,
// read fresh immediately before mutation, must be within epsilon of the
// caller's token. A nil token skips the check (last-writer-wins by
// agreement). On conflict both timestamps are surfaced; the engine never
// retries on the caller's behalf.
func checkLockToken(path string, expected *float64) error {
	if expected == nil {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Path: path}
		}
		return fmt.Errorf("cannot stat %s for lock check: %w", path, err)
	}
	actual := mtimeSeconds(info.ModTime())
	if math.Abs(actual-*expected) > MtimeEpsilonSeconds {
		return &ConflictError{Path: path, Expected: *expected, Actual: actual}
	}
	return nil
}
