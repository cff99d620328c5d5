package merging

import (
	"io/fs"
	"testing"

	"github.com/merge-o-matic/mom/internal/snapshot"
	"github.com/stretchr/testify/assert"
)

func file(content string) *snapshot.Entry {
	return &snapshot.Entry{Kind: snapshot.KindFile, Hash: snapshot.HashBytes([]byte(content)), Size: int64(len(content)), Mode: 0o644}
}

func withMode(e *snapshot.Entry, mode fs.FileMode) *snapshot.Entry {
	c := *e
	c.Mode = mode
	return &c
}

func dir() *snapshot.Entry {
	return &snapshot.Entry{Kind: snapshot.KindDirectory, Mode: 0o755}
}

func link(target string) *snapshot.Entry {
	return &snapshot.Entry{Kind: snapshot.KindSymlink, Target: target, Mode: 0o777}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		base, left, right *snapshot.Entry
		want              Outcome
	}{
		{"absent everywhere", nil, nil, nil, OutcomeSkip},
		{"removed by both", file("a"), nil, nil, OutcomeSkip},

		{"left removed, right unchanged", file("a"), nil, file("a"), OutcomeQueueRemove},
		{"left removed, right changed", file("a"), nil, file("b"), OutcomeConflict},
		{"left removed, right mode only", file("a"), nil, withMode(file("a"), 0o755), OutcomeQueueRemove},

		{"right removed, left unchanged", file("a"), file("a"), nil, OutcomeSkip},
		{"right removed, left changed", file("a"), file("b"), nil, OutcomeConflict},

		{"file untouched by left", file("a"), file("a"), file("b"), OutcomeCopyRightMergeAttrs},
		{"file converged", file("a"), file("b"), file("b"), OutcomeCopyLeftMergeAttrs},
		{"file edited by left only", file("a"), file("b"), file("a"), OutcomeQueueThreeWay},
		{"file edited by both", file("a"), file("b"), file("c"), OutcomeQueueThreeWay},
		{"nothing changed", file("a"), file("a"), file("a"), OutcomeCopyRightMergeAttrs},

		{"directory in all", dir(), dir(), dir(), OutcomeCopyLeft},
		{"link untouched by left", link("x"), link("x"), link("y"), OutcomeCopyRightMergeAttrs},
		{"link changed by left", link("x"), link("y"), link("x"), OutcomeQueueSync},
		{"link changed by both", link("x"), link("y"), link("z"), OutcomeConflict},
		{"file became directory on left", file("a"), dir(), file("a"), OutcomeQueueSync},
		{"file became directory on right", file("a"), file("a"), dir(), OutcomeCopyRightMergeAttrs},
		{"kinds diverge", file("a"), dir(), link("x"), OutcomeConflict},

		{"added by left", nil, file("a"), nil, OutcomeQueueAdd},
		{"directory added by left", nil, dir(), nil, OutcomeQueueAdd},
		{"added by both identically", nil, file("a"), file("a"), OutcomeCopyLeft},
		{"added by both differently", nil, file("a"), file("b"), OutcomeConflict},
		{"added by right", nil, nil, file("a"), OutcomeCopyRight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.base, tt.left, tt.right))
		})
	}
}

func TestOutcome_Pending(t *testing.T) {
	t.Parallel()

	queued := map[Outcome]PendingKind{
		OutcomeQueueSync:     PendingSync,
		OutcomeQueueAdd:      PendingAdd,
		OutcomeQueueRemove:   PendingRemove,
		OutcomeQueueThreeWay: PendingThreeWay,
	}

	for o := OutcomeSkip; o <= OutcomeConflict; o++ {
		kind, ok := o.Pending()
		want, queue := queued[o]
		assert.Equal(t, queue, ok, o.String())
		if queue {
			assert.Equal(t, want, kind, o.String())
		}
		assert.NotEqual(t, "unknown", o.String())
	}
}
