package merging

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrToolNotFound is returned when an external merge tool is not installed.
var ErrToolNotFound = errors.New("external tool not found")

// ErrOutputOverlap is returned for a job whose output directory would clear
// one of its input trees.
var ErrOutputOverlap = errors.New("output directory overlaps an input tree")

// ExternalToolError reports an external tool that could not run or exited with
// a status outside its documented non-error outcomes.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	cmd := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))
	if e.Err != nil {
		return fmt.Sprintf("failed to run %s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("%s exited with status %d: %s", cmd, e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// EngineError is an unrecoverable failure to read or write a tree entry. It
// aborts the merge of the whole package.
type EngineError struct {
	Op   string
	Path string
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("merge engine failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func engineError(op, path string, err error) error {
	return &EngineError{Op: op, Path: path, Err: errors.WithStack(err)}
}
