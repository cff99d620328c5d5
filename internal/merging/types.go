package merging

import (
	"context"
	"strings"
)

// MergeStatus represents the outcome of a single text merge.
type MergeStatus string

const (
	MergeStatusClean    MergeStatus = "CLEAN"
	MergeStatusConflict MergeStatus = "CONFLICT" // Conflict markers were embedded in the content
	MergeStatusBinary   MergeStatus = "BINARY"   // No line merge was possible
)

// MergeResult holds the result of merging a single file.
type MergeResult struct {
	Content      []byte
	Status       MergeStatus
	HasConflicts bool
	Conflicts    []Conflict
}

// Clean reports whether the merge succeeded without conflict markers.
func (r *MergeResult) Clean() bool {
	return r != nil && r.Status == MergeStatusClean && !r.HasConflicts
}

// Conflict represents a specific conflict region in a file.
type Conflict struct {
	StartLine int
	EndLine   int
	Message   string
}

// Labels name the two diverging sides. They appear in conflict markers and in
// the names of the per-side copies left behind for conflicted paths.
type Labels struct {
	Left  string
	Right string
}

// LeftSuffix is the extension given to LEFT's copy of a conflicted path.
func (l Labels) LeftSuffix() string {
	return "." + strings.ToUpper(l.Left)
}

// RightSuffix is the extension given to RIGHT's copy of a conflicted path.
func (l Labels) RightSuffix() string {
	return "." + strings.ToUpper(l.Right)
}

// TextMerger abstracts the line-based three-way merge utility.
type TextMerger interface {
	// Merge merges the files at leftPath and rightPath against basePath.
	// Embedded conflict markers are reported through the result, not as an error.
	Merge(ctx context.Context, leftPath, basePath, rightPath string, labels Labels) (*MergeResult, error)
}

// CatalogMerger abstracts the message-catalog tools.
type CatalogMerger interface {
	// MessageMerge writes a catalog with RIGHT's structure and LEFT's
	// translations, updated against the template.
	MessageMerge(ctx context.Context, leftPath, rightPath, templatePath, outPath string) error
	// Concatenate writes the union of both catalogs; the first occurrence of
	// a message wins.
	Concatenate(ctx context.Context, firstPath, secondPath, outPath string) error
}

// PendingKind is the deferred action recorded for a path during classification.
type PendingKind int

const (
	PendingSync     PendingKind = iota // Materialise LEFT's object
	PendingAdd                         // Materialise LEFT's new object
	PendingRemove                      // Delete RIGHT's placeholder
	PendingThreeWay                    // Merge file contents
)

func (k PendingKind) String() string {
	switch k {
	case PendingSync:
		return "sync"
	case PendingAdd:
		return "add"
	case PendingRemove:
		return "remove"
	case PendingThreeWay:
		return "three-way"
	}
	return "unknown"
}

// PendingChange is a path whose resolution is deferred to the second pass.
type PendingChange struct {
	Path string
	Kind PendingKind
}

// ChangeKind describes how a merged path differs from RIGHT.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// ChangeRecord is one difference between the merged tree and RIGHT.
type ChangeRecord struct {
	Path string
	Kind ChangeKind
}

// Options control a tree merge.
type Options struct {
	// QuiltOnly restricts the merge to debian/; everything else is taken from RIGHT.
	QuiltOnly bool
	Labels    Labels
	// MetadataFile is merged with the MetadataMerger before the generic text merge.
	MetadataFile string
	// ChangelogFile is knitted rather than text merged.
	ChangelogFile string
}

const (
	DefaultMetadataFile  = "debian/control"
	DefaultChangelogFile = "debian/changelog"
	DefaultLeftLabel     = "LEFT"
	DefaultRightLabel    = "RIGHT"
)

func (o Options) withDefaults() Options {
	if o.MetadataFile == "" {
		o.MetadataFile = DefaultMetadataFile
	}
	if o.ChangelogFile == "" {
		o.ChangelogFile = DefaultChangelogFile
	}
	if o.Labels.Left == "" {
		o.Labels.Left = DefaultLeftLabel
	}
	if o.Labels.Right == "" {
		o.Labels.Right = DefaultRightLabel
	}
	return o
}

// Result is everything a tree merge produces besides the merged tree itself.
type Result struct {
	// Conflicts lists, in order, the paths that could not be resolved.
	Conflicts []string
	// Changes describes the merged tree relative to RIGHT.
	Changes []ChangeRecord
	// Notes are free-text remarks worth mentioning in a changelog entry.
	Notes []string
}

// HasConflicts reports whether any path was left unresolved.
func (r *Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// OnlyChanged reports whether path is the sole difference from RIGHT.
func (r *Result) OnlyChanged(path string) bool {
	return len(r.Changes) == 1 && r.Changes[0].Path == path
}
