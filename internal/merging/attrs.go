package merging

import (
	"io/fs"

	"github.com/merge-o-matic/mom/internal/snapshot"
)

// MergePermissions combines the permission bits of both sides. The result
// starts from BASE when BASE holds a regular file, otherwise from RIGHT. Each
// of the nine bits then takes LEFT's value if LEFT differs from that starting
// point, and RIGHT's value if RIGHT does.
func MergePermissions(base, left, right *snapshot.Entry) fs.FileMode {
	var seed fs.FileMode
	switch {
	case base != nil && base.IsFile():
		seed = base.Mode.Perm()
	case right != nil:
		seed = right.Mode.Perm()
	case left != nil:
		seed = left.Mode.Perm()
	}

	mode := seed
	for shift := 0; shift < 9; shift++ {
		bit := fs.FileMode(1) << shift
		for _, side := range []*snapshot.Entry{left, right} {
			if side == nil {
				continue
			}
			if side.Mode&bit != seed&bit {
				mode = mode&^bit | side.Mode&bit
			}
		}
	}

	return mode
}
