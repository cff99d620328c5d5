package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/merge-o-matic/mom/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	t.Parallel()

	out := NewFileSystem(t.TempDir())

	require.NoError(t, out.WriteFile("debian/rules", []byte("#!/usr/bin/make -f\n"), 0o755))
	data, err := out.ReadFile("debian/rules")
	require.NoError(t, err)
	assert.Equal(t, "#!/usr/bin/make -f\n", string(data))

	info, err := out.Lstat("debian/rules")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// Replaces a symlink rather than writing through it.
	require.NoError(t, out.WriteFile("target", []byte("target\n"), 0o644))
	require.NoError(t, out.Symlink("target", "README"))
	require.NoError(t, out.WriteFile("README", []byte("readme\n"), 0o644))

	info, err = out.Lstat("README")
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	data, err = out.ReadFile("target")
	require.NoError(t, err)
	assert.Equal(t, "target\n", string(data))

	entries, err := os.ReadDir(filepath.Join(out.Root(), "debian"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestRemove(t *testing.T) {
	t.Parallel()

	out := NewFileSystem(t.TempDir())
	require.NoError(t, out.WriteFile("po/de.po", []byte("msgid \"\"\n"), 0o644))

	require.NoError(t, out.Remove("missing"))
	require.NoError(t, out.RemoveAll("po"))
	assert.False(t, out.Exists("po"))
}

func TestCopyEntry(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "configure"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(src, "private"), 0o700))
	require.NoError(t, os.Symlink("configure", filepath.Join(src, "link")))

	in, err := snapshot.Load(src)
	require.NoError(t, err)
	out := NewFileSystem(t.TempDir())

	for _, p := range []string{"configure", "private", "link"} {
		e, ok := in.Get(p)
		require.True(t, ok, p)
		require.NoError(t, out.CopyEntry(in.Abs(p), e, p), p)
	}

	data, err := out.ReadFile("configure")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))

	info, err := out.Lstat("configure")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	info, err = out.Lstat("private")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	target, err := os.Readlink(out.Abs("link"))
	require.NoError(t, err)
	assert.Equal(t, "configure", target)
}
