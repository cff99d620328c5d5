//go:build linux || darwin

package fs

import (
	"syscall"

	"github.com/merge-o-matic/mom/internal/snapshot"
)

func mknod(path string, e snapshot.Entry) error {
	mode := uint32(e.Mode.Perm())

	switch e.Kind {
	case snapshot.KindFifo:
		return syscall.Mkfifo(path, mode)
	case snapshot.KindSocket:
		mode |= syscall.S_IFSOCK
	case snapshot.KindCharDevice:
		mode |= syscall.S_IFCHR
	case snapshot.KindBlockDevice:
		mode |= syscall.S_IFBLK
	}

	return syscall.Mknod(path, mode, int(e.Rdev))
}
