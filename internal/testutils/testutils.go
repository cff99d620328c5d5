package testutils

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Node is one object in a test tree.
type Node struct {
	Content string
	Mode    os.FileMode
	Dir     bool
	Link    string
}

func File(content string) Node {
	return Node{Content: content, Mode: 0o644}
}

func Exec(content string) Node {
	return Node{Content: content, Mode: 0o755}
}

func Dir() Node {
	return Node{Dir: true, Mode: 0o755}
}

func Link(target string) Node {
	return Node{Link: target}
}

// Tree maps slash-separated relative paths to nodes.
type Tree map[string]Node

// NewTree writes tree into a fresh temporary directory and returns its path.
func NewTree(t *testing.T, tree Tree) string {
	t.Helper()

	root := t.TempDir()
	WriteTree(t, root, tree)
	return root
}

// WriteTree creates every node of tree beneath root. Parent directories that
// are not listed are created with mode 0755.
func WriteTree(t *testing.T, root string, tree Tree) {
	t.Helper()

	paths := make([]string, 0, len(tree))
	for p := range tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var dirs []string
	for _, p := range paths {
		n := tree[p]
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))

		switch {
		case n.Dir:
			require.NoError(t, os.MkdirAll(full, 0o755))
			dirs = append(dirs, full)
		case n.Link != "":
			require.NoError(t, os.Symlink(n.Link, full))
		default:
			require.NoError(t, os.WriteFile(full, []byte(n.Content), 0o644))
			require.NoError(t, os.Chmod(full, n.Mode))
		}
	}

	// Deepest first, so a read-only directory never blocks its children.
	for i := len(dirs) - 1; i >= 0; i-- {
		rel, err := filepath.Rel(root, dirs[i])
		require.NoError(t, err)
		require.NoError(t, os.Chmod(dirs[i], tree[filepath.ToSlash(rel)].Mode))
	}
}

// ReadFile returns the content of a file in a test tree.
func ReadFile(t *testing.T, root, path string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
	require.NoError(t, err)
	return string(data)
}

// Mode returns the permission bits of a path in a test tree.
func Mode(t *testing.T, root, path string) os.FileMode {
	t.Helper()

	info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(path)))
	require.NoError(t, err)
	return info.Mode().Perm()
}

// Exists reports whether path is present in a test tree, without following
// symlinks.
func Exists(t *testing.T, root, path string) bool {
	t.Helper()

	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return true
}
