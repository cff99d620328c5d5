package merging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/merge-o-matic/mom/internal/reports"
	"github.com/merge-o-matic/mom/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packageJob(t *testing.T, name string, leftFormat, rightFormat string) Job {
	t.Helper()

	tree := func(version, readme, format string) testutils.Tree {
		tr := testutils.Tree{
			"debian/changelog": testutils.File(clOf(clEntry(version, "Release."), clEntry("1.0-1", "Initial release."))),
			"README":           testutils.File(readme),
		}
		if format != "" {
			tr["debian/source/format"] = testutils.File(format + "\n")
		}
		return tr
	}

	return Job{
		Name:     name,
		BaseDir:  testutils.NewTree(t, tree("1.0-1", "a\nb\nc\nd\n", leftFormat)),
		LeftDir:  testutils.NewTree(t, tree("1.0-1mom1", "A\nb\nc\nd\n", leftFormat)),
		RightDir: testutils.NewTree(t, tree("1.1-1", "a\nb\nc\nD\n", rightFormat)),
		OutDir:   filepath.Join(t.TempDir(), name),
	}
}

func newTestEngine() *Engine {
	return NewEngine(NewTreeMerger(NewBuiltinTextMerger(), &fakeCatalogMerger{}), Options{Labels: testLabels})
}

func TestEngine_Process(t *testing.T) {
	t.Parallel()

	job := packageJob(t, "hello", "", "")
	require.NoError(t, os.MkdirAll(job.OutDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(job.OutDir, "stale"), []byte("old run\n"), 0o644))

	res, err := newTestEngine().Process(context.Background(), job)
	require.NoError(t, err)

	assert.False(t, res.Result.HasConflicts())
	assert.False(t, testutils.Exists(t, job.OutDir, "stale"))
	assert.Equal(t, "A\nb\nc\nD\n", testutils.ReadFile(t, job.OutDir, "README"))

	require.Len(t, res.Summary.Modified, 2)
	assert.Equal(t, "README", res.Summary.Modified[0].Path)
	assert.Equal(t, 1, res.Summary.Modified[0].Stats.Added)
	assert.Equal(t, 1, res.Summary.Modified[0].Stats.Removed)

	report, err := reports.Read(reports.DefaultPath(job.OutDir))
	require.NoError(t, err)
	assert.Equal(t, reports.StatusClean, report.Status)
	assert.Equal(t, "hello", report.Package)
	assert.False(t, report.QuiltOnly)
	assert.Equal(t, reports.Versions{Base: "1.0-1", Left: "1.0-1mom1", Right: "1.1-1", LeftBase: "1.0-1"}, report.Versions)
	assert.Contains(t, report.Changes, reports.Change{Path: "README", Kind: "modified", Added: 1, Removed: 1})
}

func TestEngine_ProcessQuilt(t *testing.T) {
	t.Parallel()

	t.Run("both quilt", func(t *testing.T) {
		t.Parallel()

		job := packageJob(t, "quilt", QuiltFormat, QuiltFormat)
		res, err := newTestEngine().Process(context.Background(), job)
		require.NoError(t, err)

		assert.True(t, res.Report.QuiltOnly)
		assert.False(t, testutils.Exists(t, job.OutDir, "README"))
		assert.True(t, testutils.Exists(t, job.OutDir, "debian/changelog"))
	})

	t.Run("formats given on the job win", func(t *testing.T) {
		t.Parallel()

		job := packageJob(t, "override", QuiltFormat, QuiltFormat)
		job.RightFormat = DefaultFormat

		res, err := newTestEngine().Process(context.Background(), job)
		require.NoError(t, err)
		assert.False(t, res.Report.QuiltOnly)
		assert.True(t, testutils.Exists(t, job.OutDir, "README"))
	})
}

func TestEngine_ProcessFailure(t *testing.T) {
	t.Parallel()

	job := packageJob(t, "broken", "", "")
	job.BaseDir = filepath.Join(t.TempDir(), "missing")
	job.ReportPath = filepath.Join(t.TempDir(), "report.yaml")

	_, err := newTestEngine().Process(context.Background(), job)
	require.Error(t, err)

	var engineErr *EngineError
	assert.ErrorAs(t, err, &engineErr)

	report, err := reports.Read(job.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, reports.StatusFailed, report.Status)
	assert.NotEmpty(t, report.Error)
}

func TestEngine_ProcessRejectsOverlappingOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		outDir func(job Job) string
	}{
		{
			name:   "output is the left tree",
			outDir: func(job Job) string { return job.LeftDir },
		},
		{
			name:   "output inside the base tree",
			outDir: func(job Job) string { return filepath.Join(job.BaseDir, "merged") },
		},
		{
			name:   "output holds the right tree",
			outDir: func(job Job) string { return filepath.Dir(job.RightDir) },
		},
		{
			name:   "output names the left tree indirectly",
			outDir: func(job Job) string { return filepath.Join(job.LeftDir, "debian", "..") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := packageJob(t, "hello", "", "")
			job.OutDir = tt.outDir(job)

			_, err := newTestEngine().Process(context.Background(), job)
			require.ErrorIs(t, err, ErrOutputOverlap)

			for _, dir := range []string{job.BaseDir, job.LeftDir, job.RightDir} {
				assert.True(t, testutils.Exists(t, dir, "README"), dir)
			}
			_, err = os.Stat(reports.DefaultPath(job.OutDir))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestEngine_ProcessBatch(t *testing.T) {
	t.Parallel()

	good := packageJob(t, "good", "", "")
	other := packageJob(t, "other", "", "")
	bad := packageJob(t, "bad", "", "")
	bad.LeftDir = filepath.Join(t.TempDir(), "missing")

	results, err := newTestEngine().ProcessBatch(context.Background(), []Job{good, bad, other}, 2)
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "good", results[0].Job.Name)
	assert.Equal(t, "other", results[1].Job.Name)
}
