package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/merge-o-matic/mom/internal/charm/styles"
	"github.com/merge-o-matic/mom/internal/config"
	"github.com/merge-o-matic/mom/internal/env"
	"github.com/merge-o-matic/mom/internal/github"
	"github.com/merge-o-matic/mom/internal/log"
	"github.com/merge-o-matic/mom/internal/merging"
	"github.com/merge-o-matic/mom/internal/reports"
	"github.com/merge-o-matic/mom/internal/utils"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var batchCmd = &cobra.Command{
	Use:   "merge-batch <manifest.yaml>",
	Short: "Merge many packages concurrently",
	Long: `Merge every package listed in a YAML manifest:

jobs:
  - name: hello
    base: /srv/unpacked/hello/2.10-2
    left: /srv/unpacked/hello/2.10-2endless1
    right: /srv/unpacked/hello/2.10-3
    out: /srv/merges/hello

Relative paths are resolved against the manifest's directory. Every package is attempted even when others fail.`,
	Args: cobra.ExactArgs(1),
	RunE: batchExec,
}

type manifest struct {
	Jobs []merging.Job `yaml:"jobs"`
}

func batchInit() {
	batchCmd.Flags().IntP("concurrency", "j", 0, "maximum number of packages merged at once (default from config: 4)")
	batchCmd.Flags().Int("max-lines", 20, "maximum number of changed paths to print per package, 0 for all")
	addEngineFlags(batchCmd.Flags())

	rootCmd.AddCommand(batchCmd)
}

func batchExec(cmd *cobra.Command, args []string) error {
	jobs, err := readManifest(args[0])
	if err != nil {
		return err
	}

	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		config.Set(config.BatchConcurrencyKey, concurrency)
	}
	maxLines, err := cmd.Flags().GetInt("max-lines")
	if err != nil {
		return err
	}

	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}

	logger := log.From(cmd.Context())
	logger.Infof("Merging %s with up to %d at a time", pluralize(len(jobs), "package"), config.BatchConcurrency())

	results, batchErr := engine.ProcessBatch(cmd.Context(), jobs, config.BatchConcurrency())
	for _, res := range results {
		printJobResult(cmd, res, maxLines, false)
	}
	if env.IsGithubAction() {
		github.PublishMergeSummary(readReports(cmd, jobs))
	}

	if batchErr != nil {
		failed := len(jobs) - len(results)
		logger.Error(fmt.Sprintf("%s could not be merged", pluralize(failed, "package")), zap.Error(batchErr))
		logger.WithInteractiveOnly().PrintfStyled(styles.DimmedItalic, "Failed packages have a report with status: failed.\n")
		return fmt.Errorf("%d of %d packages failed", failed, len(jobs))
	}

	return nil
}

func readManifest(path string) ([]merging.Job, error) {
	if !utils.HasYAMLExt(path) {
		return nil, fmt.Errorf("manifest %s must be a .yaml or .yml file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		if strings.HasPrefix(p, "~/") {
			return utils.ExpandPath(p)
		}
		return filepath.Join(dir, p)
	}

	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.BaseDir == "" || j.LeftDir == "" || j.RightDir == "" || j.OutDir == "" {
			return nil, fmt.Errorf("job %d (%q) of %s needs base, left, right and out", i+1, j.Name, path)
		}
		j.BaseDir = resolve(j.BaseDir)
		j.LeftDir = resolve(j.LeftDir)
		j.RightDir = resolve(j.RightDir)
		j.OutDir = resolve(j.OutDir)
		j.ReportPath = resolve(j.ReportPath)
		if j.Name == "" {
			j.Name = filepath.Base(filepath.Clean(j.OutDir))
		}
	}

	return m.Jobs, nil
}

// readReports collects the reports the jobs left on disk, failed ones included.
func readReports(cmd *cobra.Command, jobs []merging.Job) []*reports.MergeReport {
	logger := log.From(cmd.Context())

	var rs []*reports.MergeReport
	for _, j := range jobs {
		p := lo.CoalesceOrEmpty(j.ReportPath, reports.DefaultPath(j.OutDir))
		r, err := reports.Read(p)
		if err != nil {
			logger.Warn("no report for "+j.Name, zap.Error(err))
			continue
		}
		rs = append(rs, r)
	}
	return rs
}
