package merging

import (
	"os"
	"strings"

	"github.com/merge-o-matic/mom/internal/snapshot"
)

const (
	QuiltFormat      = "3.0 (quilt)"
	DefaultFormat    = "1.0"
	SourceFormatFile = "debian/source/format"
	quiltBookkeeping = ".pc"
	quiltScopeDir    = "debian"
)

// IsQuiltFormat reports whether a source-format string names the quilt format,
// where every tracked change lives under debian/.
func IsQuiltFormat(format string) bool {
	return strings.TrimSpace(format) == QuiltFormat
}

// QuiltOnly reports whether a merge between trees of the two formats can be
// restricted to debian/.
func QuiltOnly(leftFormat, rightFormat string) bool {
	return IsQuiltFormat(leftFormat) && IsQuiltFormat(rightFormat)
}

// SourceFormat reads the tree's declared source format, defaulting to 1.0.
func SourceFormat(s *snapshot.Snapshot) (string, error) {
	e, ok := s.Get(SourceFormatFile)
	if !ok || !e.IsFile() {
		return DefaultFormat, nil
	}

	data, err := os.ReadFile(s.Abs(SourceFormatFile))
	if err != nil {
		return "", err
	}

	format := strings.TrimSpace(string(data))
	if format == "" {
		return DefaultFormat, nil
	}
	return format, nil
}

func inScope(path string, quiltOnly bool) bool {
	if isUnder(path, quiltBookkeeping) {
		return false
	}
	if quiltOnly {
		return isUnder(path, quiltScopeDir)
	}
	return true
}

func isUnder(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+"/")
}
