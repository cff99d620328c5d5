package merging

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

const (
	DefaultDiff3    = "diff3"
	DefaultMsgMerge = "msgmerge"
	DefaultMsgCat   = "msgcat"
)

type toolOutput struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// failure describes an exit status the caller does not accept.
func (o *toolOutput) failure(tool string, args []string) error {
	return &ExternalToolError{Tool: tool, Args: args, ExitCode: o.ExitCode, Stderr: o.Stderr}
}

// runTool executes an external tool, capturing stdout and stderr separately. A
// non-zero exit is not an error here; callers decide which statuses they accept.
func runTool(ctx context.Context, tool string, args ...string) (*toolOutput, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = ErrToolNotFound
		}
		return nil, &ExternalToolError{Tool: tool, Args: args, ExitCode: -1, Err: err}
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return &toolOutput{Stdout: outb.Bytes(), Stderr: errb.String(), ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, &ExternalToolError{Tool: tool, Args: args, ExitCode: -1, Stderr: errb.String(), Err: err}
	}

	return &toolOutput{Stdout: outb.Bytes(), Stderr: errb.String()}, nil
}

// DiffToolMerger runs the external diff3 utility in merge mode.
type DiffToolMerger struct {
	command string
}

var _ TextMerger = (*DiffToolMerger)(nil)

func NewDiffToolMerger(command string) *DiffToolMerger {
	if command == "" {
		command = DefaultDiff3
	}
	return &DiffToolMerger{command: command}
}

// Merge runs `diff3 -E -m` over the three files. Exit status 0 is a clean merge
// and 1 a merge with embedded markers; anything else is an *ExternalToolError.
func (m *DiffToolMerger) Merge(ctx context.Context, leftPath, basePath, rightPath string, labels Labels) (*MergeResult, error) {
	args := []string{
		"-E", "-m",
		"-L", labels.Left,
		"-L", "BASE",
		"-L", labels.Right,
		leftPath, basePath, rightPath,
	}

	out, err := runTool(ctx, m.command, args...)
	if err != nil {
		return nil, err
	}

	switch out.ExitCode {
	case 0:
		return &MergeResult{Content: out.Stdout, Status: MergeStatusClean}, nil
	case 1:
		return &MergeResult{
			Content:      out.Stdout,
			Status:       MergeStatusConflict,
			HasConflicts: true,
			Conflicts:    parseConflictMarkers(string(out.Stdout)),
		}, nil
	}

	return nil, out.failure(m.command, args)
}

// GettextCatalogMerger merges message catalogs with the gettext tools.
type GettextCatalogMerger struct {
	msgmerge string
	msgcat   string
}

var _ CatalogMerger = (*GettextCatalogMerger)(nil)

func NewGettextCatalogMerger(msgmerge, msgcat string) *GettextCatalogMerger {
	if msgmerge == "" {
		msgmerge = DefaultMsgMerge
	}
	if msgcat == "" {
		msgcat = DefaultMsgCat
	}
	return &GettextCatalogMerger{msgmerge: msgmerge, msgcat: msgcat}
}

func (c *GettextCatalogMerger) MessageMerge(ctx context.Context, leftPath, rightPath, templatePath, outPath string) error {
	return c.run(ctx, c.msgmerge, "--force-po", "-o", outPath, "-C", leftPath, rightPath, templatePath)
}

func (c *GettextCatalogMerger) Concatenate(ctx context.Context, firstPath, secondPath, outPath string) error {
	return c.run(ctx, c.msgcat, "--force-po", "--use-first", "-o", outPath, firstPath, secondPath)
}

func (c *GettextCatalogMerger) run(ctx context.Context, tool string, args ...string) error {
	out, err := runTool(ctx, tool, args...)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return out.failure(tool, args)
	}
	return nil
}
