// Package snapshot records an unpacked source tree as an immutable mapping
// from relative path to filesystem object.
package snapshot

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// Kind is the type of filesystem object at a path.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
	KindFifo
	KindSocket
	KindCharDevice
	KindBlockDevice
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindFifo:
		return "fifo"
	case KindSocket:
		return "socket"
	case KindCharDevice:
		return "char-device"
	case KindBlockDevice:
		return "block-device"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Entry describes one object. Hash and Size are set for files, Target for
// symlinks and Rdev for devices. Mode holds the permission bits only.
type Entry struct {
	Kind   Kind
	Hash   string
	Size   int64
	Mode   fs.FileMode
	Target string
	Rdev   uint64
}

// IsFile reports whether e is a regular file.
func (e Entry) IsFile() bool {
	return e.Kind == KindFile
}

// SameContent reports whether a and b are the same kind of object with the
// same body, ignoring permissions. Directories, fifos and sockets have no body.
func SameContent(a, b Entry) bool {
	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KindFile:
		return a.Size == b.Size && a.Hash == b.Hash
	case KindSymlink:
		return a.Target == b.Target
	case KindCharDevice, KindBlockDevice:
		return a.Rdev == b.Rdev
	}

	return true
}

// Same reports whether a and b are identical including permission bits.
func Same(a, b Entry) bool {
	return SameContent(a, b) && a.Mode.Perm() == b.Mode.Perm()
}

// Snapshot is an immutable view of a tree rooted at a directory.
type Snapshot struct {
	root    string
	entries map[string]Entry
	paths   []string
}

// New builds a snapshot from precomputed entries. The map is copied.
func New(root string, entries map[string]Entry) *Snapshot {
	s := &Snapshot{
		root:    root,
		entries: make(map[string]Entry, len(entries)),
		paths:   make([]string, 0, len(entries)),
	}
	for p, e := range entries {
		s.entries[p] = e
		s.paths = append(s.paths, p)
	}
	sort.Strings(s.paths)
	return s
}

// Load walks root and records every object beneath it. Symlinks are recorded,
// never followed.
func Load(root string) (*Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tree root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tree root %s is not a directory", root)
	}

	entries := map[string]Entry{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		entry, err := stat(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		entries[rel] = entry

		return nil
	})
	if err != nil {
		return nil, err
	}

	return New(root, entries), nil
}

// Root returns the directory the snapshot was taken from.
func (s *Snapshot) Root() string {
	return s.root
}

// Get returns the entry at a relative path.
func (s *Snapshot) Get(path string) (Entry, bool) {
	e, ok := s.entries[path]
	return e, ok
}

// Lookup is like Get but returns nil when the path is absent.
func (s *Snapshot) Lookup(path string) *Entry {
	if e, ok := s.entries[path]; ok {
		return &e
	}
	return nil
}

// Paths returns every relative path in lexical order.
func (s *Snapshot) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.paths)
}

// Abs returns the on-disk location of a relative path.
func (s *Snapshot) Abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func stat(path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, err
	}

	mode := info.Mode()
	entry := Entry{Mode: mode.Perm()}

	switch {
	case mode.IsRegular():
		entry.Kind = KindFile
		entry.Size = info.Size()
		entry.Hash, err = hashFile(path)
		if err != nil {
			return Entry{}, err
		}
	case mode.IsDir():
		entry.Kind = KindDirectory
	case mode&fs.ModeSymlink != 0:
		entry.Kind = KindSymlink
		entry.Target, err = os.Readlink(path)
		if err != nil {
			return Entry{}, err
		}
	case mode&fs.ModeNamedPipe != 0:
		entry.Kind = KindFifo
	case mode&fs.ModeSocket != 0:
		entry.Kind = KindSocket
	case mode&fs.ModeCharDevice != 0:
		entry.Kind = KindCharDevice
		entry.Rdev = rdev(info)
	case mode&fs.ModeDevice != 0:
		entry.Kind = KindBlockDevice
		entry.Rdev = rdev(info)
	default:
		return Entry{}, fmt.Errorf("unsupported file type %s", mode.Type())
	}

	return entry, nil
}

// HashBytes returns the content hash used for file entries.
func HashBytes(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
