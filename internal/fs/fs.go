package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/merge-o-matic/mom/internal/snapshot"
)

// FileSystem is a wrapper around the os package rooted at the directory a
// merged tree is written to. Paths are relative, slash separated.
type FileSystem struct {
	root string
}

func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root: root}
}

func (f *FileSystem) Root() string {
	return f.root
}

func (f *FileSystem) Abs(path string) string {
	return filepath.Join(f.root, filepath.FromSlash(path))
}

func (f *FileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(f.Abs(path))
}

// WriteFile writes data through a temporary sibling and renames it into place,
// so a failed write never leaves a truncated file behind.
func (f *FileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	full := f.Abs(path)
	dir := filepath.Dir(full)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mom-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm.Perm()); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := f.removeNonDir(full); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, full)
}

func (f *FileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(f.Abs(path), perm)
}

func (f *FileSystem) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(f.Abs(path))
}

func (f *FileSystem) Exists(path string) bool {
	_, err := f.Lstat(path)
	return err == nil
}

func (f *FileSystem) Chmod(path string, perm os.FileMode) error {
	return os.Chmod(f.Abs(path), perm.Perm())
}

func (f *FileSystem) Remove(path string) error {
	err := os.Remove(f.Abs(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileSystem) RemoveAll(path string) error {
	return os.RemoveAll(f.Abs(path))
}

// Symlink creates path pointing at target, replacing whatever was there.
func (f *FileSystem) Symlink(target, path string) error {
	full := f.Abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return err
	}
	return os.Symlink(target, full)
}

// CopyEntry materialises the object e, found at src on disk, at path.
func (f *FileSystem) CopyEntry(src string, e snapshot.Entry, path string) error {
	switch e.Kind {
	case snapshot.KindFile:
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return f.WriteFile(path, data, e.Mode)

	case snapshot.KindDirectory:
		full := f.Abs(path)
		if err := f.removeNonDir(full); err != nil {
			return err
		}
		if err := os.MkdirAll(full, 0o755); err != nil {
			return err
		}
		return os.Chmod(full, e.Mode.Perm())

	case snapshot.KindSymlink:
		return f.Symlink(e.Target, path)

	case snapshot.KindFifo, snapshot.KindSocket, snapshot.KindCharDevice, snapshot.KindBlockDevice:
		full := f.Abs(path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.RemoveAll(full); err != nil {
			return err
		}
		return mknod(full, e)
	}

	return fmt.Errorf("cannot copy %s of kind %s", path, e.Kind)
}

func (f *FileSystem) removeNonDir(full string) error {
	info, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return os.Remove(full)
}
