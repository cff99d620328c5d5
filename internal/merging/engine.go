package merging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/merge-o-matic/mom/internal/changelog"
	"github.com/merge-o-matic/mom/internal/debversion"
	"github.com/merge-o-matic/mom/internal/env"
	"github.com/merge-o-matic/mom/internal/fs"
	"github.com/merge-o-matic/mom/internal/locks"
	"github.com/merge-o-matic/mom/internal/log"
	"github.com/merge-o-matic/mom/internal/patches"
	"github.com/merge-o-matic/mom/internal/reports"
	"github.com/merge-o-matic/mom/internal/snapshot"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Job describes the merge of one package.
type Job struct {
	Name     string `yaml:"name"`
	BaseDir  string `yaml:"base"`
	LeftDir  string `yaml:"left"`
	RightDir string `yaml:"right"`
	OutDir   string `yaml:"out"`

	// LeftFormat and RightFormat override the trees' debian/source/format.
	LeftFormat  string `yaml:"left_format,omitempty"`
	RightFormat string `yaml:"right_format,omitempty"`

	// ReportPath defaults to reports.DefaultPath(OutDir).
	ReportPath string `yaml:"report,omitempty"`
}

func (j Job) reportPath() string {
	if j.ReportPath != "" {
		return j.ReportPath
	}
	return reports.DefaultPath(j.OutDir)
}

// checkOutDir rejects an output directory that is, holds or sits inside one of
// the input trees, since it is cleared before merging.
func (j Job) checkOutDir() error {
	out, err := filepath.Abs(j.OutDir)
	if err != nil {
		return engineError("resolve", j.OutDir, err)
	}

	inputs := []struct{ name, dir string }{
		{"base", j.BaseDir},
		{"left", j.LeftDir},
		{"right", j.RightDir},
	}
	for _, in := range inputs {
		dir, err := filepath.Abs(in.dir)
		if err != nil {
			return engineError("resolve", in.dir, err)
		}
		if isWithin(out, dir) || isWithin(dir, out) {
			return errors.Wrapf(ErrOutputOverlap, "output %s, %s tree %s", j.OutDir, in.name, in.dir)
		}
	}
	return nil
}

// isWithin reports whether p is dir or lies beneath it.
func isWithin(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// JobResult is what Process hands back besides the merged tree on disk.
type JobResult struct {
	Job     Job
	Result  *Result
	Summary patches.FileChangeSummary
	Report  *reports.MergeReport
}

// Engine runs package merges end to end: locking, loading the trees, merging
// and reporting.
type Engine struct {
	trees     *TreeMerger
	opts      Options
	lockDelay time.Duration
}

func NewEngine(trees *TreeMerger, opts Options) *Engine {
	return &Engine{
		trees:     trees,
		opts:      opts.withDefaults(),
		lockDelay: locks.DefaultRetryDelay,
	}
}

// Process merges one package into job.OutDir, replacing anything left there by
// a previous run, and writes its report. Conflicts are not errors; an error
// means no usable tree was produced, and the report records why.
func (e *Engine) Process(ctx context.Context, job Job) (*JobResult, error) {
	if err := job.checkOutDir(); err != nil {
		return nil, err
	}

	job.ReportPath = job.reportPath()
	logger := log.From(ctx).With(zap.String("package", job.Name))
	ctx = log.With(ctx, logger)

	if !env.IsMergeLockDisabled() {
		mutex := locks.ForOutputDir(job.OutDir)
		err := mutex.Lock(ctx, e.lockDelay, func(attempt int) {
			if attempt == 0 {
				logger.Info("waiting for another merge into " + job.OutDir)
			}
		})
		if err != nil {
			return nil, err
		}
		defer mutex.Unlock()
	}

	report := &reports.MergeReport{
		Package:     job.Name,
		GeneratedAt: time.Now().UTC(),
	}

	res, summary, err := e.merge(ctx, job, report)
	if err != nil {
		report.Status = reports.StatusFailed
		report.Error = err.Error()
		if werr := reports.Write(job.ReportPath, report); werr != nil {
			logger.Warn("failed to write report", zap.Error(werr))
		}
		return nil, err
	}

	report.Status = reports.StatusClean
	if res.HasConflicts() {
		report.Status = reports.StatusConflicts
	}
	report.Conflicts = res.Conflicts
	report.Notes = res.Notes
	report.Changes = reportChanges(res.Changes, summary)

	if err := reports.Write(job.ReportPath, report); err != nil {
		return nil, engineError("write", job.ReportPath, err)
	}

	return &JobResult{
		Job:     job,
		Result:  res,
		Summary: summary,
		Report:  report,
	}, nil
}

// ProcessBatch merges independent packages concurrently. Every job is
// attempted; the returned results hold the ones that produced a tree.
func (e *Engine) ProcessBatch(ctx context.Context, jobs []Job, concurrency int) ([]*JobResult, error) {
	results := make([]*JobResult, len(jobs))
	indexes := make([]int, len(jobs))
	for i := range jobs {
		indexes[i] = i
	}

	err := RunBatch(ctx, indexes, concurrency, func(ctx context.Context, i int) error {
		res, err := e.Process(ctx, jobs[i])
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	})

	done := make([]*JobResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			done = append(done, r)
		}
	}
	return done, err
}

func (e *Engine) merge(ctx context.Context, job Job, report *reports.MergeReport) (*Result, patches.FileChangeSummary, error) {
	logger := log.From(ctx)
	var summary patches.FileChangeSummary

	trees := make([]*snapshot.Snapshot, 3)
	for i, dir := range []string{job.BaseDir, job.LeftDir, job.RightDir} {
		s, err := snapshot.Load(dir)
		if err != nil {
			return nil, summary, engineError("read", dir, err)
		}
		trees[i] = s
	}
	base, left, right := trees[0], trees[1], trees[2]

	leftFormat, err := formatOf(job.LeftFormat, left)
	if err != nil {
		return nil, summary, engineError("read", left.Abs(SourceFormatFile), err)
	}
	rightFormat, err := formatOf(job.RightFormat, right)
	if err != nil {
		return nil, summary, engineError("read", right.Abs(SourceFormatFile), err)
	}

	opts := e.opts
	opts.QuiltOnly = QuiltOnly(leftFormat, rightFormat)
	report.QuiltOnly = opts.QuiltOnly
	report.Versions = e.versions(ctx, base, left, right)

	if err := os.RemoveAll(job.OutDir); err != nil {
		return nil, summary, engineError("clear", job.OutDir, err)
	}

	logger.Info("merging", zap.String("left", leftFormat), zap.String("right", rightFormat), zap.Bool("quilt_only", opts.QuiltOnly))

	res, err := e.trees.Merge(ctx, base, left, right, job.OutDir, opts)
	if err != nil {
		return nil, summary, err
	}

	summary = summarize(res, right, job.OutDir)
	return res, summary, nil
}

func formatOf(given string, s *snapshot.Snapshot) (string, error) {
	if given != "" {
		return given, nil
	}
	return SourceFormat(s)
}

// versions reads the newest changelog entry of each tree. A missing or
// unreadable changelog only leaves its version out of the report.
func (e *Engine) versions(ctx context.Context, base, left, right *snapshot.Snapshot) reports.Versions {
	logger := log.From(ctx)

	newest := func(s *snapshot.Snapshot) *debversion.Version {
		if _, ok := s.Get(e.opts.ChangelogFile); !ok {
			return nil
		}
		cl, err := changelog.ReadFile(s.Abs(e.opts.ChangelogFile))
		if err != nil {
			logger.Warn("failed to read changelog", zap.String("tree", s.Root()), zap.Error(err))
			return nil
		}
		vs := cl.Versions()
		if len(vs) == 0 {
			return nil
		}
		return &vs[0]
	}

	var v reports.Versions
	if bv := newest(base); bv != nil {
		v.Base = bv.String()
	}
	lv := newest(left)
	if lv != nil {
		v.Left = lv.String()
		v.LeftBase = debversion.Base(*lv).String()
	}
	rv := newest(right)
	if rv != nil {
		v.Right = rv.String()
	}

	if lv != nil && rv != nil && !rv.GreaterThan(*lv) {
		logger.Warn("right version is not newer than left", zap.String("left", v.Left), zap.String("right", v.Right))
	}

	return v
}

func summarize(res *Result, right *snapshot.Snapshot, outDir string) patches.FileChangeSummary {
	merged := fs.NewFileSystem(outDir)
	s := patches.FileChangeSummary{Conflicts: res.Conflicts}

	conflicted := map[string]bool{}
	for _, p := range res.Conflicts {
		conflicted[p] = true
	}

	for _, c := range res.Changes {
		if conflicted[c.Path] {
			continue
		}
		switch c.Kind {
		case ChangeAdded:
			s.Added = append(s.Added, c.Path)
		case ChangeRemoved:
			s.Removed = append(s.Removed, c.Path)
		case ChangeModified:
			fd := patches.FileDiff{Path: c.Path}
			if e := right.Lookup(c.Path); e != nil && e.IsFile() {
				fd = patches.ComputeFileDiff(right.Abs(c.Path), merged.Abs(c.Path), c.Path)
			}
			s.Modified = append(s.Modified, fd)
		}
	}

	return s
}

func reportChanges(changes []ChangeRecord, summary patches.FileChangeSummary) []reports.Change {
	stats := map[string]patches.DiffStats{}
	for _, fd := range summary.Modified {
		stats[fd.Path] = fd.Stats
	}

	out := make([]reports.Change, 0, len(changes))
	for _, c := range changes {
		st := stats[c.Path]
		out = append(out, reports.Change{
			Path:    c.Path,
			Kind:    string(c.Kind),
			Added:   st.Added,
			Removed: st.Removed,
		})
	}
	return out
}
