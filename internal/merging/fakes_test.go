package merging

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
)

// wholeFileMerger is a deterministic TextMerger: it resolves a file only when
// one side is unchanged or both sides agree, and otherwise embeds markers
// around both whole files.
type wholeFileMerger struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (m *wholeFileMerger) Merge(_ context.Context, leftPath, basePath, rightPath string, labels Labels) (*MergeResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, rightPath)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	left, err := os.ReadFile(leftPath)
	if err != nil {
		return nil, err
	}
	base, err := os.ReadFile(basePath)
	if err != nil {
		return nil, err
	}
	right, err := os.ReadFile(rightPath)
	if err != nil {
		return nil, err
	}

	switch {
	case bytes.Equal(left, right), bytes.Equal(right, base):
		return &MergeResult{Content: left, Status: MergeStatusClean}, nil
	case bytes.Equal(left, base):
		return &MergeResult{Content: right, Status: MergeStatusClean}, nil
	}

	var sb strings.Builder
	sb.WriteString("<<<<<<< " + labels.Left + "\n")
	sb.Write(left)
	sb.WriteString("=======\n")
	sb.Write(right)
	sb.WriteString(">>>>>>> " + labels.Right + "\n")

	content := sb.String()
	return &MergeResult{
		Content:      []byte(content),
		Status:       MergeStatusConflict,
		HasConflicts: true,
		Conflicts:    parseConflictMarkers(content),
	}, nil
}

func (m *wholeFileMerger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// emptyConflictMerger reports a conflict without producing any content.
type emptyConflictMerger struct{}

func (emptyConflictMerger) Merge(context.Context, string, string, string, Labels) (*MergeResult, error) {
	return &MergeResult{Status: MergeStatusConflict, HasConflicts: true}, nil
}

// fakeCatalogMerger writes recognisable output instead of running gettext.
type fakeCatalogMerger struct {
	mu        sync.Mutex
	err       error
	templates []string
	concats   int
}

func (c *fakeCatalogMerger) MessageMerge(_ context.Context, leftPath, rightPath, templatePath, outPath string) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	c.templates = append(c.templates, templatePath)
	c.mu.Unlock()

	left, err := os.ReadFile(leftPath)
	if err != nil {
		return err
	}
	right, err := os.ReadFile(rightPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("# msgmerge\n"+string(right)+string(left)), 0o644)
}

func (c *fakeCatalogMerger) Concatenate(_ context.Context, firstPath, secondPath, outPath string) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	c.concats++
	c.mu.Unlock()

	first, err := os.ReadFile(firstPath)
	if err != nil {
		return err
	}
	second, err := os.ReadFile(secondPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("# msgcat\n"+string(first)+string(second)), 0o644)
}
