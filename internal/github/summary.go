package github

import (
	"fmt"
	"strings"

	"github.com/merge-o-matic/mom/internal/env"
	"github.com/merge-o-matic/mom/internal/reports"
	"github.com/sethvargo/go-githubactions"
)

var statusIcons = map[reports.Status]string{
	reports.StatusClean:     ":white_check_mark:",
	reports.StatusConflicts: ":warning:",
	reports.StatusFailed:    ":stop_sign:",
}

// MergeSummary renders the reports as a markdown table, one row per package.
func MergeSummary(rs []*reports.MergeReport) string {
	var sb strings.Builder
	sb.WriteString("# Merge Summary\n\n")
	sb.WriteString("| Package | Status | Left | Right | Conflicts |\n")
	sb.WriteString("| --- | --- | --- | --- | --- |\n")

	for _, r := range rs {
		detail := strings.Join(r.Conflicts, "<br>")
		if r.Status == reports.StatusFailed {
			detail = r.Error
		}
		fmt.Fprintf(&sb, "| %s | %s %s | %s | %s | %s |\n",
			cell(r.Package), statusIcons[r.Status], r.Status, cell(r.Versions.Left), cell(r.Versions.Right), cell(detail))
	}

	return sb.String()
}

// PublishMergeSummary adds the summary to the job page when running inside
// GitHub Actions, and does nothing elsewhere.
func PublishMergeSummary(rs []*reports.MergeReport) {
	if !env.IsGithubAction() || len(rs) == 0 {
		return
	}
	githubactions.AddStepSummary(MergeSummary(rs))
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
