package merging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/epiclabs-io/diff3"
	"github.com/merge-o-matic/mom/internal/patches"
)

// BuiltinTextMerger implements a text-based 3-way merge using the diff3 algorithm
// in-process, for hosts without an external diff3.
type BuiltinTextMerger struct{}

var _ TextMerger = (*BuiltinTextMerger)(nil)

func NewBuiltinTextMerger() *BuiltinTextMerger {
	return &BuiltinTextMerger{}
}

// Merge reads the three files and merges them with MergeContent.
func (m *BuiltinTextMerger) Merge(_ context.Context, leftPath, basePath, rightPath string, labels Labels) (*MergeResult, error) {
	left, err := os.ReadFile(leftPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read left file: %w", err)
	}
	base, err := os.ReadFile(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read base file: %w", err)
	}
	right, err := os.ReadFile(rightPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read right file: %w", err)
	}

	return m.MergeContent(base, left, right, labels)
}

// MergeContent performs a 3-way merge: MergeContent(base, left, right)
// - base: the common ancestor
// - left: the derivative's content
// - right: the new upstream content
//
// Returns:
// - MergeStatusClean: All changes merged successfully
// - MergeStatusConflict: Overlapping changes, conflict markers injected
// - MergeStatusBinary: Content is not line oriented; nothing was merged
func (m *BuiltinTextMerger) MergeContent(base, left, right []byte, labels Labels) (*MergeResult, error) {
	res := &MergeResult{
		Status: MergeStatusClean,
	}

	// 1. Fast path: Identical content
	if bytes.Equal(left, right) {
		res.Content = left
		return res, nil
	}

	// 2. Check if left equals base (derivative made no changes)
	if bytes.Equal(left, base) {
		res.Content = right
		return res, nil
	}

	// 3. Check if right equals base (upstream made no changes)
	if bytes.Equal(right, base) {
		res.Content = left
		return res, nil
	}

	// 4. diff3 only understands lines
	if patches.IsBinary(base) || patches.IsBinary(left) || patches.IsBinary(right) {
		res.Status = MergeStatusBinary
		return res, nil
	}

	// 5. Perform 3-way merge using diff3
	result, err := diff3.Merge(
		bytes.NewReader(left),  // A (ours/left)
		bytes.NewReader(base),  // O (original/base)
		bytes.NewReader(right), // B (theirs/right)
		true,                   // includeConflicts - inject markers
		labels.Left,
		labels.Right,
	)
	if err != nil {
		return nil, fmt.Errorf("diff3 merge failed: %w", err)
	}

	// 6. Read merged content
	mergedBytes, err := io.ReadAll(result.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge result: %w", err)
	}

	res.Content = mergedBytes

	// 7. Check for conflicts
	if result.Conflicts {
		res.Status = MergeStatusConflict
		res.HasConflicts = true
		res.Conflicts = parseConflictMarkers(string(mergedBytes))
	}

	return res, nil
}

// parseConflictMarkers scans the merged content for conflict markers
// and returns structured conflict information
func parseConflictMarkers(content string) []Conflict {
	var conflicts []Conflict
	lines := strings.Split(content, "\n")

	var inConflict bool
	var startLine int

	for i, line := range lines {
		if strings.HasPrefix(line, "<<<<<<<") {
			inConflict = true
			startLine = i + 1 // Line numbers are 1-indexed
		} else if strings.HasPrefix(line, ">>>>>>>") && inConflict {
			conflicts = append(conflicts, Conflict{
				StartLine: startLine,
				EndLine:   i + 1,
				Message:   "Overlapping changes between left and right",
			})
			inConflict = false
		}
	}

	return conflicts
}
