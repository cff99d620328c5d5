//go:build !linux && !darwin

package fs

import (
	"fmt"

	"github.com/merge-o-matic/mom/internal/snapshot"
)

func mknod(path string, e snapshot.Entry) error {
	return fmt.Errorf("cannot create %s at %s on this platform", e.Kind, path)
}
