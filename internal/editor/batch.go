package editor

import (
	"fmt"
	"math"

	"codeedit/internal/pathguard"
)

// Policy selects how a batch reacts to a failing edit.
type Policy string

const (
	// PolicyFailFast stops at the first failure; files whose sequences
	// completed earlier stay committed, later requests are not attempted.
	PolicyFailFast Policy = "fail-fast"
	// PolicyContinue attempts every request and commits every file whose
	// own sequence fully succeeded.
	PolicyContinue Policy = "continue"
	// PolicyRollback stages everything in memory and commits only if every
	// request across every file succeeded.
	PolicyRollback Policy = "rollback"
)

// BlockEdit is one entry of an edit_blocks batch: a TextMatcher-style
// substitution aimed at a file.
type BlockEdit struct {
	Path                 string   `json:"file_path"`
	OldString            string   `json:"old_string"`
	NewString            string   `json:"new_string"`
	ExpectedReplacements int      `json:"expected_replacements,omitempty"`
	IgnoreWhitespace     bool     `json:"ignore_whitespace,omitempty"`
	ExpectedMtime        *float64 `json:"expected_mtime,omitempty"`
}

// BatchResult aggregates the per-request outcomes of a batch. Results keeps
// the input order; every error is surfaced, never only the first.
type BatchResult struct {
	Status     string       `json:"status"` // "success" | "error" | "partial"
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []EditResult `json:"results"`
}

// batchFile is the evolving in-memory state of one file during a batch.
// Same-file edits apply in input order against this content; disk is read
// once and written at most once.
type batchFile struct {
	resolved   string
	snap       *Snapshot
	content    string
	dirty      bool
	failed     bool
	finalIndex int // index of the file's last edit in the whole input
	resultIdx  []int
}

// EditBlocks runs an ordered sequence of substitutions grouped per file
// under the chosen error policy. Same-file edits see each other's output;
// independent files are isolated. Cross-file atomicity is best-effort only:
// rollback stages all files before committing any, but a commit failure
// mid-flight cannot un-commit earlier files.
func (e *Engine) EditBlocks(set pathguard.AllowedSet, edits []BlockEdit, policy Policy) (*BatchResult, error) {
	switch policy {
	case PolicyFailFast, PolicyContinue, PolicyRollback:
	case "":
		policy = PolicyFailFast
	default:
		return nil, fmt.Errorf("error_policy must be %q, %q, or %q", PolicyFailFast, PolicyContinue, PolicyRollback)
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("edit_blocks requires at least one edit")
	}

	// Resolve every path once up front. A file is only committed at the
	// end of its whole sequence, so the commit decision needs each file's
	// true final edit index, including edits a fail-fast stop never
	// reaches.
	resolvedPaths := make([]string, len(edits))
	resolveErrs := make([]error, len(edits))
	finalIndex := make(map[string]int)
	for i, edit := range edits {
		resolvedPaths[i], resolveErrs[i] = set.Resolve(edit.Path)
		if resolveErrs[i] == nil {
			finalIndex[resolvedPaths[i]] = i
		}
	}

	files := make(map[string]*batchFile)
	var order []*batchFile
	results := make([]EditResult, len(edits))

	failAt := -1
	for i, edit := range edits {
		if failAt >= 0 && policy == PolicyFailFast {
			results[i] = EditResult{
				Status:   "error",
				Message:  "not attempted: an earlier edit failed under fail-fast",
				FilePath: edit.Path,
			}
			continue
		}

		var state *batchFile
		err := resolveErrs[i]
		if err == nil {
			state, err = e.batchFileFor(files, &order, resolvedPaths[i], finalIndex[resolvedPaths[i]], i)
		}
		if err == nil {
			err = checkBatchToken(state, edit.ExpectedMtime)
		}
		if err == nil {
			var locations []EditLocation
			var newContent string
			newContent, locations, err = Substitute(
				state.content, edit.OldString, edit.NewString,
				normalizeExpected(edit.ExpectedReplacements), edit.IgnoreWhitespace)
			if err == nil {
				state.content = newContent
				state.dirty = true
				results[i] = EditResult{
					Status:       "success",
					Message:      fmt.Sprintf("Applied %d edit(s) (%s)", normalizeExpected(edit.ExpectedReplacements), summarizeLocations(locations)),
					FilePath:     state.resolved,
					Replacements: normalizeExpected(edit.ExpectedReplacements),
					Locations:    locations,
				}
			}
		}

		if err != nil {
			if state != nil {
				state.failed = true
			}
			results[i] = EditResult{Status: "error", Message: err.Error(), FilePath: edit.Path}
			if failAt < 0 {
				failAt = i
			}
		}
	}

	e.commitBatch(policy, order, results, failAt)

	result := &BatchResult{Total: len(edits), Results: results}
	for _, r := range results {
		if r.Status == "success" {
			result.Successful++
		} else {
			result.Failed++
		}
	}
	switch {
	case result.Failed == 0:
		result.Status = "success"
	case result.Successful == 0:
		result.Status = "error"
	default:
		result.Status = "partial"
	}
	return result, nil
}

// batchFileFor returns the in-memory state for an edit's file, reading the
// file on first touch. finalIdx is the index of the file's last edit in the
// whole batch, precomputed so the commit decision does not depend on how
// far the loop got before stopping.
func (e *Engine) batchFileFor(files map[string]*batchFile, order *[]*batchFile, resolved string, finalIdx, index int) (*batchFile, error) {
	if state, ok := files[resolved]; ok {
		state.resultIdx = append(state.resultIdx, index)
		return state, nil
	}

	snap, err := takeSnapshot(resolved, "", e.encodings)
	if err != nil {
		return nil, err
	}
	state := &batchFile{
		resolved:   resolved,
		snap:       snap,
		content:    snap.Content,
		finalIndex: finalIdx,
		resultIdx:  []int{index},
	}
	files[resolved] = state
	*order = append(*order, state)
	return state, nil
}

// checkBatchToken compares an edit's lock token against the snapshot taken
// at the file's first touch — the batch never re-reads a file mid-sequence.
func checkBatchToken(state *batchFile, expected *float64) error {
	if expected == nil {
		return nil
	}
	actual := mtimeSeconds(state.snap.ModTime)
	if math.Abs(actual-*expected) > MtimeEpsilonSeconds {
		return &ConflictError{Path: state.resolved, Expected: *expected, Actual: actual}
	}
	return nil
}

// commitBatch writes out the files the policy allows, in first-appearance
// order for determinism. A commit failure flips that file's results to
// error; under rollback it also aborts the remaining commits, since the
// all-or-nothing promise is already broken.
func (e *Engine) commitBatch(policy Policy, order []*batchFile, results []EditResult, failAt int) {
	anyFailed := failAt >= 0

	for _, state := range order {
		if !state.dirty {
			continue
		}
		if state.failed {
			// Earlier edits on this file may have succeeded in memory, but
			// the file is never committed with a failure in its sequence.
			e.markSkipped(state, results, "not committed: another edit on this file failed")
			continue
		}
		switch policy {
		case PolicyRollback:
			if anyFailed {
				e.markSkipped(state, results, "rolled back: another edit in the batch failed")
				continue
			}
		case PolicyFailFast:
			if anyFailed && state.finalIndex >= failAt {
				e.markSkipped(state, results, "not committed: the batch stopped before this file's sequence completed")
				continue
			}
		}

		if _, err := e.commit(state.resolved, state.content, state.snap.Encoding); err != nil {
			e.log.Error("batch commit failed", "path", state.resolved, "error", err)
			e.markSkipped(state, results, fmt.Sprintf("commit failed: %v", err))
			if policy == PolicyRollback {
				anyFailed = true
			}
		}
	}
}

// markSkipped rewrites a file's per-request results to errors when its
// staged content was not committed.
func (e *Engine) markSkipped(state *batchFile, results []EditResult, msg string) {
	for _, idx := range state.resultIdx {
		if results[idx].Status == "success" {
			results[idx] = EditResult{Status: "error", Message: msg, FilePath: state.resolved}
		}
	}
}

func normalizeExpected(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
