//go:build unix

package snapshot

import (
	"io/fs"
	"syscall"
)

func rdev(info fs.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Rdev)
	}
	return 0
}
