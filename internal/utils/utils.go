package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/term"
)

// CreateDirectory makes sure the parent directory of filename exists.
func CreateDirectory(filename string) error {
	dir := filepath.Dir(filename)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return err
		}
	}
	return nil
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func CapitalizeFirst(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func FileExists(file string) bool {
	info, err := os.Stat(file)
	return err == nil && info.Mode().IsRegular()
}

// ExpandPath expands a leading ~/ and makes path absolute. The path is
// returned unchanged when either step fails.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}

	expanded := path
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		expanded = filepath.Join(home, path[2:])
	}

	if abs, err := filepath.Abs(expanded); err == nil {
		expanded = abs
	}
	return expanded
}

// RequireDir fails unless path names an existing directory. what names the
// path in the error, e.g. "BASE tree".
func RequireDir(what, path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s %s does not exist", what, path)
	case err != nil:
		return fmt.Errorf("cannot read %s %s: %w", what, path, err)
	case !info.IsDir():
		return fmt.Errorf("%s %s is not a directory", what, path)
	}
	return nil
}

var yamlExtensions = []string{".yaml", ".yml"}

func HasYAMLExt(path string) bool {
	return slices.Contains(yamlExtensions, filepath.Ext(path))
}
