package merging

import "github.com/merge-o-matic/mom/internal/snapshot"

// Outcome captures the deterministic first-pass classification of one path.
type Outcome int

const (
	OutcomeSkip                Outcome = iota // Nothing to materialise
	OutcomeCopyLeft                           // Take LEFT's object as is
	OutcomeCopyRight                          // Take RIGHT's object as is
	OutcomeCopyLeftMergeAttrs                 // Take LEFT's content, merge permission bits
	OutcomeCopyRightMergeAttrs                // Take RIGHT's content, merge permission bits
	OutcomeQueueSync                          // LEFT changed a non-file object RIGHT left alone
	OutcomeQueueAdd                           // Only LEFT has the path
	OutcomeQueueRemove                        // LEFT removed a path RIGHT left alone
	OutcomeQueueThreeWay                      // Both sides edited a regular file
	OutcomeConflict                           // No automatic resolution exists
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkip:
		return "skip"
	case OutcomeCopyLeft:
		return "copy-left"
	case OutcomeCopyRight:
		return "copy-right"
	case OutcomeCopyLeftMergeAttrs:
		return "copy-left+attrs"
	case OutcomeCopyRightMergeAttrs:
		return "copy-right+attrs"
	case OutcomeQueueSync:
		return "sync"
	case OutcomeQueueAdd:
		return "add"
	case OutcomeQueueRemove:
		return "remove"
	case OutcomeQueueThreeWay:
		return "three-way"
	case OutcomeConflict:
		return "conflict"
	}
	return "unknown"
}

// Pending maps the queueing outcomes onto the second-pass action.
func (o Outcome) Pending() (PendingKind, bool) {
	switch o {
	case OutcomeQueueSync:
		return PendingSync, true
	case OutcomeQueueAdd:
		return PendingAdd, true
	case OutcomeQueueRemove:
		return PendingRemove, true
	case OutcomeQueueThreeWay:
		return PendingThreeWay, true
	}
	return 0, false
}

// Classify decides what to do with a path given its entry in each tree; nil
// means absent. Equality is by content, permission bits are merged separately.
func Classify(base, left, right *snapshot.Entry) Outcome {
	switch {
	case left == nil && right == nil:
		return OutcomeSkip

	case base == nil:
		switch {
		case right == nil:
			return OutcomeQueueAdd
		case left == nil:
			return OutcomeCopyRight
		case snapshot.SameContent(*left, *right):
			return OutcomeCopyLeft
		}
		return OutcomeConflict

	case left == nil:
		if snapshot.SameContent(*base, *right) {
			return OutcomeQueueRemove
		}
		return OutcomeConflict

	case right == nil:
		if snapshot.SameContent(*base, *left) {
			return OutcomeSkip
		}
		return OutcomeConflict

	case left.IsFile() && right.IsFile():
		return classifyFile(base, *left, *right)
	}

	switch {
	case snapshot.SameContent(*left, *right):
		return OutcomeCopyLeft
	case snapshot.SameContent(*base, *left):
		return OutcomeCopyRightMergeAttrs
	case snapshot.SameContent(*base, *right):
		return OutcomeQueueSync
	}
	return OutcomeConflict
}

func classifyFile(base *snapshot.Entry, left, right snapshot.Entry) Outcome {
	switch {
	case base != nil && snapshot.SameContent(*base, left):
		return OutcomeCopyRightMergeAttrs
	case snapshot.SameContent(left, right):
		return OutcomeCopyLeftMergeAttrs
	}
	return OutcomeQueueThreeWay
}
