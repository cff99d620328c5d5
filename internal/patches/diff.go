package patches

import (
	"bytes"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// FileDiff represents a merged file with its diff against RIGHT.
type FileDiff struct {
	Path     string
	DiffText string
	Stats    DiffStats
}

type DiffStats struct {
	Added   int
	Removed int
}

// ComputeFileDiff generates a unified diff between RIGHT's copy of path and
// the merged result. Problems reading either side are reported in DiffText.
func ComputeFileDiff(rightPath, mergedPath, path string) FileDiff {
	fd := FileDiff{Path: path}

	right, err := os.ReadFile(rightPath)
	if err != nil {
		fd.DiffText = "(file not found in right tree)"
		return fd
	}

	merged, err := os.ReadFile(mergedPath)
	if err != nil {
		fd.DiffText = "(file not found in merged tree)"
		return fd
	}

	if IsBinary(right) || IsBinary(merged) {
		fd.DiffText = "(binary file)"
		return fd
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(normalizeLineEndings(string(right))),
		B:        difflib.SplitLines(normalizeLineEndings(string(merged))),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}

	diffText, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		fd.DiffText = "(diff computation failed)"
		return fd
	}

	fd.DiffText = diffText
	fd.Stats = countDiffStats(diffText)
	return fd
}

// binarySniffLen bounds how much of a file IsBinary inspects.
const binarySniffLen = 8 << 10

// IsBinary reports whether content has a NUL byte near its start.
func IsBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), binarySniffLen)], 0) >= 0
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func normalizeLineEndings(s string) string {
	return lineEndings.Replace(s)
}

// countDiffStats counts the added and removed lines of a unified diff,
// ignoring the ---/+++ file headers.
func countDiffStats(diffText string) DiffStats {
	var stats DiffStats
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			stats.Added++
		case strings.HasPrefix(line, "-"):
			stats.Removed++
		}
	}
	return stats
}
