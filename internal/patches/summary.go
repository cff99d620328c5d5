package patches

import (
	"fmt"
	"strings"
)

// FileChangeSummary groups the differences between a merged tree and RIGHT.
type FileChangeSummary struct {
	Added     []string
	Removed   []string
	Modified  []FileDiff
	Conflicts []string
}

// IsEmpty reports whether the merged tree is identical to RIGHT.
func (s FileChangeSummary) IsEmpty() bool {
	return len(s.Added) == 0 && len(s.Removed) == 0 && len(s.Modified) == 0 && len(s.Conflicts) == 0
}

// FormatSummary renders one line per path, at most maxLines of them. With
// showDiffs the line statistics and unified diff of each modified file follow.
func (s FileChangeSummary) FormatSummary(maxLines int, showDiffs bool) string {
	type line struct {
		text string
		diff string
	}

	var lines []line
	for _, p := range s.Conflicts {
		lines = append(lines, line{text: "C " + p})
	}
	for _, p := range s.Added {
		lines = append(lines, line{text: "A " + p})
	}
	for _, p := range s.Removed {
		lines = append(lines, line{text: "D " + p})
	}
	for _, fd := range s.Modified {
		if showDiffs && (fd.Stats.Added > 0 || fd.Stats.Removed > 0) {
			lines = append(lines, line{
				text: fmt.Sprintf("M %s (+%d/-%d)", fd.Path, fd.Stats.Added, fd.Stats.Removed),
				diff: fd.DiffText,
			})
			continue
		}
		lines = append(lines, line{text: "M " + fd.Path})
	}

	if len(lines) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, l := range lines {
		if maxLines > 0 && i >= maxLines {
			fmt.Fprintf(&sb, "\n... and %d more", len(lines)-maxLines)
			return sb.String()
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(l.text)
		if showDiffs && l.diff != "" {
			sb.WriteString("\n")
			sb.WriteString(strings.TrimRight(l.diff, "\n"))
		}
	}

	return sb.String()
}
