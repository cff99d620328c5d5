package merging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/merge-o-matic/mom/internal/deb822"
	"github.com/merge-o-matic/mom/internal/log"
	"go.uber.org/zap"
)

// RewriteStrategy rewrites LEFT's copy of the metadata document so that a
// retried text merge has a chance to succeed.
type RewriteStrategy struct {
	Name string
	// Note is recorded when the retry after this rewrite merges cleanly.
	Note string
	// Apply returns the rewritten LEFT document, or false when the strategy
	// has nothing to change.
	Apply func(left, base *deb822.Document) (*deb822.Document, bool, error)
}

// UploadersReset reverts LEFT's Uploaders field to BASE's value. Derivatives
// routinely list themselves there and nothing downstream cares about it.
var UploadersReset = RewriteStrategy{
	Name:  "uploaders-reset",
	Note:  "dropped uninteresting Uploaders change",
	Apply: resetField("Uploaders"),
}

// DefaultRewriteStrategies are tried in order; the first clean retry wins.
var DefaultRewriteStrategies = []RewriteStrategy{
	UploadersReset,
}

func resetField(name string) func(left, base *deb822.Document) (*deb822.Document, bool, error) {
	return func(left, base *deb822.Document) (*deb822.Document, bool, error) {
		lp, ok := left.ParagraphFor("")
		if !ok {
			return nil, false, nil
		}
		bp, ok := base.ParagraphFor("")
		if !ok {
			return nil, false, nil
		}

		lf, inLeft := lp.Field(name)
		bf, inBase := bp.Field(name)

		var (
			doc *deb822.Document
			err error
		)
		switch {
		case inLeft && inBase:
			if lf.Value == bf.Value {
				return nil, false, nil
			}
			doc, err = left.Patch(lp, name, bf.Value)
		case inLeft:
			doc, err = left.RemoveField(lp, name)
		case inBase:
			doc, err = left.AddField(lp, name, bf.Value)
		default:
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}

		return doc, true, nil
	}
}

// MetadataResult is the outcome of merging the package metadata document.
type MetadataResult struct {
	*MergeResult
	// Modified is false when the merged document is byte-identical to RIGHT.
	Modified bool
	Notes    []string
}

// MetadataMerger merges the package's control document, retrying the generic
// text merge after each rewrite strategy when the first attempt conflicts.
type MetadataMerger struct {
	text       TextMerger
	strategies []RewriteStrategy
}

func NewMetadataMerger(text TextMerger, strategies ...RewriteStrategy) *MetadataMerger {
	if len(strategies) == 0 {
		strategies = DefaultRewriteStrategies
	}
	return &MetadataMerger{text: text, strategies: strategies}
}

// Merge returns the clean merge if one exists. When no strategy helps it
// returns the result of the first attempt unchanged, conflict markers and all.
func (m *MetadataMerger) Merge(ctx context.Context, leftPath, basePath, rightPath string, labels Labels) (*MetadataResult, error) {
	l := log.From(ctx).With(zap.String("path", rightPath))

	right, err := os.ReadFile(rightPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read right document: %w", err)
	}

	first, err := m.text.Merge(ctx, leftPath, basePath, rightPath, labels)
	if err != nil {
		return nil, err
	}
	if first.Clean() {
		return &MetadataResult{MergeResult: first, Modified: !bytes.Equal(first.Content, right)}, nil
	}

	unresolved := &MetadataResult{MergeResult: first, Modified: !bytes.Equal(first.Content, right)}

	leftDoc, err := parseDocument(leftPath)
	if err != nil {
		l.Warn("cannot rewrite left metadata", zap.Error(err))
		return unresolved, nil
	}
	baseDoc, err := parseDocument(basePath)
	if err != nil {
		l.Warn("cannot rewrite left metadata", zap.Error(err))
		return unresolved, nil
	}

	scratch, err := os.MkdirTemp("", "mom-metadata-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	rewrittenPath := filepath.Join(scratch, filepath.Base(leftPath))

	for _, s := range m.strategies {
		rewritten, ok, err := s.Apply(leftDoc, baseDoc)
		if err != nil {
			l.Warn("metadata rewrite failed", zap.String("strategy", s.Name), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		leftDoc = rewritten

		if err := os.WriteFile(rewrittenPath, []byte(leftDoc.String()), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write rewritten document: %w", err)
		}

		retry, err := m.text.Merge(ctx, rewrittenPath, basePath, rightPath, labels)
		if err != nil {
			return nil, err
		}
		if retry.Clean() {
			l.Info("metadata merged after rewrite", zap.String("strategy", s.Name))
			return &MetadataResult{
				MergeResult: retry,
				Modified:    !bytes.Equal(retry.Content, right),
				Notes:       []string{s.Note},
			}, nil
		}
	}

	return unresolved, nil
}

func parseDocument(path string) (*deb822.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return deb822.Parse(string(data))
}
