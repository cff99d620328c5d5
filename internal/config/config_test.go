package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests share the package-level viper instance and must not run in
// parallel.

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	require.NoError(t, LoadFrom(t.TempDir()))

	assert.Equal(t, "LEFT", LeftLabel())
	assert.Equal(t, "RIGHT", RightLabel())
	assert.Equal(t, "diff3", Diff3Tool())
	assert.Equal(t, "msgmerge", MsgMergeTool())
	assert.Equal(t, "msgcat", MsgCatTool())
	assert.Equal(t, TextMergerExternal, TextMerger())
	assert.Equal(t, "debian/control", MetadataFile())
	assert.Equal(t, "debian/changelog", ChangelogFile())
	assert.Equal(t, 4, BatchConcurrency())
	assert.Empty(t, MinVersion())
	assert.NoError(t, Validate())
}

func TestLoad_File(t *testing.T) {
	dir := writeConfig(t, `
labels:
  left: endless
  right: debian
merge:
  text_merger: builtin
batch:
  concurrency: 8
`)
	require.NoError(t, LoadFrom(dir))

	assert.Equal(t, dir, Dir())
	assert.Equal(t, "endless", LeftLabel())
	assert.Equal(t, "debian", RightLabel())
	assert.Equal(t, TextMergerBuiltin, TextMerger())
	assert.Equal(t, 8, BatchConcurrency())
	assert.Equal(t, "diff3", Diff3Tool())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MOM_LABELS_LEFT", "ubuntu")
	t.Setenv("MOM_TOOLS_DIFF3", "/opt/diffutils/bin/diff3")

	require.NoError(t, LoadFrom(writeConfig(t, "labels:\n  left: endless\n")))

	assert.Equal(t, "ubuntu", LeftLabel())
	assert.Equal(t, "/opt/diffutils/bin/diff3", Diff3Tool())
}

func TestLoad_HomeDir(t *testing.T) {
	dir := writeConfig(t, "labels:\n  right: upstream\n")
	t.Setenv("MOM_HOME", dir)

	require.NoError(t, Load())
	assert.Equal(t, dir, Dir())
	assert.Equal(t, "upstream", RightLabel())
}

func TestLoad_InvalidFile(t *testing.T) {
	assert.Error(t, LoadFrom(writeConfig(t, "labels: [\n")))
}

func TestValidate(t *testing.T) {
	require.NoError(t, LoadFrom(writeConfig(t, `
labels:
  left: same
  right: SAME
merge:
  text_merger: patience
  metadata_file: /etc/control
  changelog_file: debian/../changelog
batch:
  concurrency: 0
min_version: not-a-version
`)))

	err := Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 6)
	assert.Contains(t, err.Error(), "labels.left and labels.right must differ")
	assert.Contains(t, err.Error(), `merge.text_merger must be "external" or "builtin"`)
	assert.Contains(t, err.Error(), "batch.concurrency must be at least 1")
}

func TestValidate_Labels(t *testing.T) {
	require.NoError(t, LoadFrom(t.TempDir()))
	Set(LeftLabelKey, "")
	Set(RightLabelKey, "has space")

	err := Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "labels.left: must not be empty")
	assert.Contains(t, err.Error(), "cannot be used in a file name")
}

func TestCheckMinVersion(t *testing.T) {
	require.NoError(t, LoadFrom(t.TempDir()))
	assert.NoError(t, CheckMinVersion("0.0.1"))

	Set(MinVersionKey, "1.2.0")
	assert.NoError(t, CheckMinVersion("1.2.0"))
	assert.NoError(t, CheckMinVersion("1.10.0"))
	assert.ErrorContains(t, CheckMinVersion("1.1.9"), "older than the configured minimum")
	assert.Error(t, CheckMinVersion("dev"))
}
