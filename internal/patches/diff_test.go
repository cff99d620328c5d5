package patches

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBinary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  []byte
		expected bool
	}{
		{
			name:     "text content",
			content:  []byte("hello world\nthis is text"),
			expected: false,
		},
		{
			name:     "binary with null byte",
			content:  []byte("hello\x00world"),
			expected: true,
		},
		{
			name:     "empty content",
			content:  []byte{},
			expected: false,
		},
		{
			name:     "binary at start",
			content:  []byte{0x00, 0x01, 0x02},
			expected: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := IsBinary(tc.content)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestNormalizeLineEndings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "LF unchanged",
			input:    "hello\nworld",
			expected: "hello\nworld",
		},
		{
			name:     "CRLF to LF",
			input:    "hello\r\nworld",
			expected: "hello\nworld",
		},
		{
			name:     "CR to LF",
			input:    "hello\rworld",
			expected: "hello\nworld",
		},
		{
			name:     "mixed endings",
			input:    "line1\r\nline2\rline3\n",
			expected: "line1\nline2\nline3\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := normalizeLineEndings(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestCountDiffStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		diffText string
		expected DiffStats
	}{
		{
			name:     "empty diff",
			diffText: "",
			expected: DiffStats{Added: 0, Removed: 0},
		},
		{
			name: "simple diff",
			diffText: `--- a/file.go
+++ b/file.go
@@ -1,3 +1,3 @@
 unchanged
-removed line
+added line
 unchanged`,
			expected: DiffStats{Added: 1, Removed: 1},
		},
		{
			name: "multiple additions",
			diffText: `--- a/file.go
+++ b/file.go
@@ -1 +1,4 @@
 unchanged
+added1
+added2
+added3`,
			expected: DiffStats{Added: 3, Removed: 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := countDiffStats(tc.diffText)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestComputeFileDiff_MissingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, "control")
	require.NoError(t, os.WriteFile(existing, []byte("Source: hello\n"), 0o644))

	fd := ComputeFileDiff(filepath.Join(dir, "missing"), existing, "debian/control")
	assert.Equal(t, "debian/control", fd.Path)
	assert.Equal(t, "(file not found in right tree)", fd.DiffText)

	fd = ComputeFileDiff(existing, filepath.Join(dir, "missing"), "debian/control")
	assert.Equal(t, "(file not found in merged tree)", fd.DiffText)
}

func TestComputeFileDiff_Binary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	right := filepath.Join(dir, "right")
	merged := filepath.Join(dir, "merged")
	require.NoError(t, os.WriteFile(right, []byte("text\n"), 0o644))
	require.NoError(t, os.WriteFile(merged, []byte("bin\x00ary"), 0o644))

	fd := ComputeFileDiff(right, merged, "logo.png")
	assert.Equal(t, "(binary file)", fd.DiffText)
	assert.Equal(t, DiffStats{}, fd.Stats)
}

func TestComputeFileDiff_WithDiff(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	right := filepath.Join(dir, "right")
	merged := filepath.Join(dir, "merged")
	require.NoError(t, os.WriteFile(right, []byte("Source: hello\nMaintainer: Ubuntu\nSection: devel\n"), 0o644))
	require.NoError(t, os.WriteFile(merged, []byte("Source: hello\nMaintainer: Endless\nSection: devel\n"), 0o644))

	fd := ComputeFileDiff(right, merged, "debian/control")

	assert.Equal(t, "debian/control", fd.Path)
	assert.Contains(t, fd.DiffText, "--- a/debian/control")
	assert.Contains(t, fd.DiffText, "+++ b/debian/control")
	assert.Contains(t, fd.DiffText, "-Maintainer: Ubuntu")
	assert.Contains(t, fd.DiffText, "+Maintainer: Endless")
	assert.Equal(t, 1, fd.Stats.Added)
	assert.Equal(t, 1, fd.Stats.Removed)
}

func TestFormatSummary_WithDiffs(t *testing.T) {
	t.Parallel()

	summary := FileChangeSummary{
		Modified: []FileDiff{
			{
				Path: "changed.c",
				Stats: DiffStats{
					Added:   5,
					Removed: 2,
				},
				DiffText: "@@ -1,3 +1,6 @@\n unchanged\n-removed\n+added1\n+added2",
			},
		},
	}

	// Without diffs
	result := summary.FormatSummary(10, false)
	assert.Contains(t, result, "M changed.c")
	assert.NotContains(t, result, "+5/-2")

	// With diffs
	result = summary.FormatSummary(20, true)
	assert.Contains(t, result, "M changed.c (+5/-2)")
	assert.Contains(t, result, "@@")
}

func TestFormatSummary_Empty(t *testing.T) {
	t.Parallel()

	summary := FileChangeSummary{}
	assert.True(t, summary.IsEmpty())
	assert.Empty(t, summary.FormatSummary(10, false))
}

func TestFormatSummary_WithChanges(t *testing.T) {
	t.Parallel()

	summary := FileChangeSummary{
		Added:     []string{"debian/patches/endless.patch"},
		Removed:   []string{"file1.c", "file2.c"},
		Modified:  []FileDiff{{Path: "debian/changelog"}},
		Conflicts: []string{"debian/rules"},
	}

	result := summary.FormatSummary(10, false)

	assert.False(t, summary.IsEmpty())
	assert.Equal(t, "C debian/rules\nA debian/patches/endless.patch\nD file1.c\nD file2.c\nM debian/changelog", result)
}

func TestFormatSummary_Truncation(t *testing.T) {
	t.Parallel()

	summary := FileChangeSummary{
		Removed: []string{"f1.c", "f2.c", "f3.c", "f4.c", "f5.c"},
	}

	result := summary.FormatSummary(3, false)

	// 3 items + "... and X more" = 4 lines, so 3 newlines
	assert.Equal(t, 3, strings.Count(result, "\n"))
	assert.Contains(t, result, "... and 2 more")
}
