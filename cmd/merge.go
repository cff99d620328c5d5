package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/merge-o-matic/mom/internal/charm/styles"
	"github.com/merge-o-matic/mom/internal/config"
	"github.com/merge-o-matic/mom/internal/env"
	"github.com/merge-o-matic/mom/internal/github"
	"github.com/merge-o-matic/mom/internal/log"
	"github.com/merge-o-matic/mom/internal/merging"
	"github.com/merge-o-matic/mom/internal/snapshot"
	"github.com/merge-o-matic/mom/internal/utils"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Three-way merge the source trees of one package",
	Long: `Merge the derivative's tree (LEFT) and the new upstream tree (RIGHT) against their common ancestor (BASE).
Paths that cannot be merged are left as <path>.<LEFT LABEL> and <path>.<RIGHT LABEL> copies, and a YAML report is written next to the output directory.`,
	RunE: mergeExec,
}

// engineFlags are shared by merge and merge-batch; each overrides its
// configuration key when given.
var engineFlags = map[string]string{
	"left-label":  config.LeftLabelKey,
	"right-label": config.RightLabelKey,
	"text-merger": config.TextMergerKey,
}

func addEngineFlags(flags *pflag.FlagSet) {
	flags.String("left-label", "", "label of the derivative side, used in conflict markers and copies (default from config: LEFT)")
	flags.String("right-label", "", "label of the upstream side (default from config: RIGHT)")
	flags.String("text-merger", "", fmt.Sprintf("line merge implementation: %s or %s", config.TextMergerExternal, config.TextMergerBuiltin))
}

func mergeInit() {
	mergeCmd.Flags().String("base", "", "path to the unpacked BASE tree")
	_ = mergeCmd.MarkFlagRequired("base")
	mergeCmd.Flags().String("left", "", "path to the unpacked LEFT (derivative) tree")
	_ = mergeCmd.MarkFlagRequired("left")
	mergeCmd.Flags().String("right", "", "path to the unpacked RIGHT (upstream) tree")
	_ = mergeCmd.MarkFlagRequired("right")
	mergeCmd.Flags().StringP("out", "o", "", "directory to write the merged tree to; replaced if it exists")
	_ = mergeCmd.MarkFlagRequired("out")
	mergeCmd.Flags().String("name", "", "package name recorded in the report (default: the output directory name)")
	mergeCmd.Flags().String("left-format", "", "source format of LEFT (default: read from debian/source/format)")
	mergeCmd.Flags().String("right-format", "", "source format of RIGHT (default: read from debian/source/format)")
	mergeCmd.Flags().String("report", "", "path of the YAML report (default: <out>.merge-report.yaml)")
	mergeCmd.Flags().Bool("show-diffs", false, "print the diff of every file that differs from RIGHT")
	mergeCmd.Flags().Int("max-lines", 50, "maximum number of changed paths to print, 0 for all")
	mergeCmd.Flags().Bool("fail-on-conflict", false, "exit with an error when any path conflicts")
	addEngineFlags(mergeCmd.Flags())

	rootCmd.AddCommand(mergeCmd)
}

func mergeExec(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	job := merging.Job{}
	for name, dest := range map[string]*string{
		"base":         &job.BaseDir,
		"left":         &job.LeftDir,
		"right":        &job.RightDir,
		"out":          &job.OutDir,
		"name":         &job.Name,
		"left-format":  &job.LeftFormat,
		"right-format": &job.RightFormat,
		"report":       &job.ReportPath,
	} {
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dest = v
	}
	for _, p := range []*string{&job.BaseDir, &job.LeftDir, &job.RightDir, &job.OutDir, &job.ReportPath} {
		*p = utils.ExpandPath(*p)
	}
	for what, dir := range map[string]string{"BASE tree": job.BaseDir, "LEFT tree": job.LeftDir, "RIGHT tree": job.RightDir} {
		if err := utils.RequireDir(what, dir); err != nil {
			return err
		}
	}
	if job.Name == "" {
		job.Name = filepath.Base(filepath.Clean(job.OutDir))
	}

	showDiffs, err := flags.GetBool("show-diffs")
	if err != nil {
		return err
	}
	maxLines, err := flags.GetInt("max-lines")
	if err != nil {
		return err
	}
	failOnConflict, err := flags.GetBool("fail-on-conflict")
	if err != nil {
		return err
	}

	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}

	res, err := engine.Process(cmd.Context(), job)
	if env.IsGithubAction() {
		github.PublishMergeSummary(readReports(cmd, []merging.Job{job}))
	}
	if err != nil {
		return err
	}

	printJobResult(cmd, res, maxLines, showDiffs)

	if failOnConflict && res.Result.HasConflicts() {
		return fmt.Errorf("%d paths of %s conflict", len(res.Result.Conflicts), job.Name)
	}
	return nil
}

// newEngine builds the merge engine from configuration, with the engine flags
// of cmd taking precedence.
func newEngine(cmd *cobra.Command) (*merging.Engine, error) {
	for flag, key := range engineFlags {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return nil, err
		}
		config.Set(key, v)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var text merging.TextMerger = merging.NewDiffToolMerger(config.Diff3Tool())
	if config.TextMerger() == config.TextMergerBuiltin {
		text = merging.NewBuiltinTextMerger()
	}
	catalogs := merging.NewGettextCatalogMerger(config.MsgMergeTool(), config.MsgCatTool())

	opts := merging.Options{
		Labels:        merging.Labels{Left: config.LeftLabel(), Right: config.RightLabel()},
		MetadataFile:  config.MetadataFile(),
		ChangelogFile: config.ChangelogFile(),
	}

	return merging.NewEngine(merging.NewTreeMerger(text, catalogs), opts), nil
}

func printJobResult(cmd *cobra.Command, res *merging.JobResult, maxLines int, showDiffs bool) {
	logger := log.From(cmd.Context())
	out := cmd.OutOrStdout()

	if summary := res.Summary.FormatSummary(maxLines, showDiffs); summary != "" {
		lines := strings.Split(summary, "\n")
		fmt.Fprintln(out, strings.Join(lo.Map(lines, func(line string, _ int) string {
			return styles.ChangeLine(line)
		}), "\n"))
	}

	for _, note := range res.Result.Notes {
		logger.Info(note)
	}

	details := []string{
		fmt.Sprintf("%s differ from %s", pluralize(len(res.Result.Changes), "path"), lo.CoalesceOrEmpty(res.Report.Versions.Right, "upstream")),
		fmt.Sprintf("report: %s", res.Job.ReportPath),
	}
	if size, err := treeSize(res.Job.OutDir); err == nil {
		details = append(details, fmt.Sprintf("merged tree: %s", humanize.Bytes(size)))
	}

	if res.Result.HasConflicts() {
		heading := fmt.Sprintf("%s merged with %s", res.Job.Name, pluralize(len(res.Result.Conflicts), "conflict"))
		logger.PrintlnUnstyled(styles.RenderErrorMessage(heading, append(append([]string{}, res.Result.Conflicts...), details...)...))
		return
	}
	logger.PrintlnUnstyled(styles.RenderSuccessMessage(res.Job.Name+" merged cleanly", details...))
}

func treeSize(dir string) (uint64, error) {
	s, err := snapshot.Load(dir)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, p := range s.Paths() {
		if e, ok := s.Get(p); ok && e.IsFile() {
			total += uint64(e.Size)
		}
	}
	return total, nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}
