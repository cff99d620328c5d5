package merging

import (
	"context"
	iofs "io/fs"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/merge-o-matic/mom/internal/changelog"
	"github.com/merge-o-matic/mom/internal/fs"
	"github.com/merge-o-matic/mom/internal/log"
	"github.com/merge-o-matic/mom/internal/snapshot"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// TreeMerger three-way merges whole directory trees.
type TreeMerger struct {
	text     TextMerger
	catalogs CatalogMerger
	metadata *MetadataMerger
}

func NewTreeMerger(text TextMerger, catalogs CatalogMerger) *TreeMerger {
	return &TreeMerger{
		text:     text,
		catalogs: catalogs,
		metadata: NewMetadataMerger(text),
	}
}

// treeMerge is the state of a single Merge call.
type treeMerge struct {
	*TreeMerger

	ctx  context.Context
	log  log.Logger
	opts Options

	base, left, right *snapshot.Snapshot
	out               *fs.FileSystem

	conflicts map[string]struct{}
	dirModes  map[string]iofs.FileMode
	notes     []string
}

// Merge writes the merge of left and right against base into outDir, which is
// created if needed. Unresolved paths are left as per-side copies named after
// the labels. An error means the merged tree is unusable.
func (m *TreeMerger) Merge(ctx context.Context, base, left, right *snapshot.Snapshot, outDir string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, engineError("create", outDir, err)
	}

	t := &treeMerge{
		TreeMerger: m,
		ctx:        ctx,
		log:        log.From(ctx),
		opts:       opts,
		base:       base,
		left:       left,
		right:      right,
		out:        fs.NewFileSystem(outDir),
		conflicts:  map[string]struct{}{},
		dirModes:   map[string]iofs.FileMode{},
	}

	paths := t.scopedPaths()

	pending, err := t.classify(paths)
	if err != nil {
		return nil, err
	}
	t.reconcile(paths, pending)
	if err := t.resolve(pending); err != nil {
		return nil, err
	}
	conflicts, err := t.materializeConflicts()
	if err != nil {
		return nil, err
	}
	if err := t.applyDirModes(); err != nil {
		return nil, err
	}

	changes, err := t.changes(paths, conflicts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Conflicts: conflicts,
		Changes:   changes,
		Notes:     t.notes,
	}, nil
}

func (t *treeMerge) scopedPaths() []string {
	paths := lo.Uniq(slices.Concat(t.base.Paths(), t.left.Paths(), t.right.Paths()))
	paths = lo.Filter(paths, func(p string, _ int) bool {
		return inScope(p, t.opts.QuiltOnly)
	})
	sort.Strings(paths)
	return paths
}

// classify is the first pass: it materialises every path with an obvious
// answer and returns the rest for resolve.
func (t *treeMerge) classify(paths []string) (map[string]PendingKind, error) {
	pending := map[string]PendingKind{}

	for _, p := range paths {
		outcome := Classify(t.base.Lookup(p), t.left.Lookup(p), t.right.Lookup(p))

		var err error
		switch outcome {
		case OutcomeCopyLeft:
			err = t.materialize(t.left, p)
		case OutcomeCopyRight:
			err = t.materialize(t.right, p)
		case OutcomeCopyLeftMergeAttrs:
			if err = t.materialize(t.left, p); err == nil {
				err = t.mergeAttrs(p)
			}
		case OutcomeCopyRightMergeAttrs:
			if err = t.materialize(t.right, p); err == nil {
				err = t.mergeAttrs(p)
			}
		case OutcomeQueueRemove:
			// RIGHT's copy stands in until the removal is applied.
			err = t.materialize(t.right, p)
			pending[p] = PendingRemove
		case OutcomeConflict:
			t.conflict(p, "both sides changed")
		default:
			if kind, ok := outcome.Pending(); ok {
				pending[p] = kind
			}
		}
		if err != nil {
			return nil, err
		}
	}

	return pending, nil
}

// reconcile raises a conflict on a path whose chosen object cannot hold what
// is kept beneath it, such as a directory LEFT removed or turned into a file
// while RIGHT added or edited something inside. paths must be sorted.
func (t *treeMerge) reconcile(paths []string, pending map[string]PendingKind) {
	for i := 0; i < len(paths); i++ {
		p := paths[i]

		end := i + 1
		for end < len(paths) && isUnder(paths[end], p) {
			end++
		}
		below := paths[i+1 : end]
		if len(below) == 0 {
			continue
		}
		if _, ok := t.conflicts[p]; ok || !t.dropsChildren(p, pending) {
			continue
		}
		if !lo.SomeBy(below, func(d string) bool { return t.survives(d, pending) }) {
			continue
		}

		delete(pending, p)
		for _, d := range below {
			delete(pending, d)
		}
		t.conflict(p, "replaced on one side, changed beneath on the other")
		i = end - 1
	}
}

// dropsChildren reports whether the object chosen for p is not a directory.
func (t *treeMerge) dropsChildren(p string, pending map[string]PendingKind) bool {
	kind, ok := pending[p]
	if !ok {
		info, err := t.out.Lstat(p)
		return err == nil && !info.IsDir()
	}
	switch kind {
	case PendingSync, PendingAdd:
		e := t.left.Lookup(p)
		return e == nil || e.Kind != snapshot.KindDirectory
	}
	return true
}

func (t *treeMerge) survives(p string, pending map[string]PendingKind) bool {
	if _, ok := t.conflicts[p]; ok {
		return true
	}
	if kind, ok := pending[p]; ok {
		return kind != PendingRemove
	}
	return t.out.Exists(p)
}

// resolve is the second pass. Catalogs go first so that the generic stage
// sees a templates directory already in its merged shape.
func (t *treeMerge) resolve(pending map[string]PendingKind) error {
	paths := lo.Keys(pending)
	sort.Strings(paths)

	isCatalog := func(p string, _ int) bool {
		return pending[p] == PendingThreeWay && strings.HasSuffix(p, ".po")
	}
	catalogs := lo.Filter(paths, isCatalog)
	rest := lo.Reject(paths, isCatalog)

	// Removals first, so nothing materialised later is deleted with a
	// placeholder directory.
	sort.SliceStable(rest, func(i, j int) bool {
		return pending[rest[i]] == PendingRemove && pending[rest[j]] != PendingRemove
	})

	for _, p := range catalogs {
		ok, err := t.mergeCatalog(p)
		if err != nil {
			return err
		}
		if !ok {
			t.conflict(p, "catalog merge failed")
		}
	}

	for _, p := range rest {
		switch pending[p] {
		case PendingSync, PendingAdd:
			if err := t.materialize(t.left, p); err != nil {
				return err
			}
		case PendingRemove:
			if err := t.out.RemoveAll(p); err != nil {
				return engineError("remove", p, err)
			}
			delete(t.dirModes, p)
		case PendingThreeWay:
			ok, err := t.mergeFile(p)
			if err != nil {
				return err
			}
			if !ok {
				t.conflict(p, "no automatic merge")
			}
		}
	}

	return nil
}

func (t *treeMerge) mergeFile(p string) (bool, error) {
	switch {
	case p == t.opts.ChangelogFile:
		return true, t.knitChangelog(p)
	case strings.HasSuffix(p, ".pot"):
		return t.mergeCatalog(p)
	}

	base := t.base.Lookup(p)
	if base == nil || !base.IsFile() {
		return false, nil
	}

	var (
		res *MergeResult
		err error
	)
	if p == t.opts.MetadataFile {
		var mres *MetadataResult
		mres, err = t.metadata.Merge(t.ctx, t.left.Abs(p), t.base.Abs(p), t.right.Abs(p), t.opts.Labels)
		if err == nil {
			res = mres.MergeResult
			t.notes = append(t.notes, mres.Notes...)
		}
	} else {
		res, err = t.text.Merge(t.ctx, t.left.Abs(p), t.base.Abs(p), t.right.Abs(p), t.opts.Labels)
	}
	if err != nil {
		var pathErr *iofs.PathError
		if errors.As(err, &pathErr) {
			return false, engineError("read", p, err)
		}
		if errors.Is(err, ErrToolNotFound) {
			return false, engineError("merge", p, err)
		}
		t.log.Warn("text merge failed, choosing a whole file", zap.String("path", p), zap.Error(err))
		res = nil
	}

	merged := res.Clean() || (res != nil && res.Status == MergeStatusConflict && len(res.Content) > 0)
	if !merged {
		return t.wholeFile(p)
	}

	if res.HasConflicts {
		t.log.Warn("conflict markers left in file", zap.String("path", p), zap.Int("regions", len(res.Conflicts)))
	}
	if err := t.out.WriteFile(p, res.Content, t.right.Lookup(p).Mode); err != nil {
		return false, engineError("write", p, err)
	}
	return true, t.mergeAttrs(p)
}

// wholeFile picks one side's file when no line merge was produced.
func (t *treeMerge) wholeFile(p string) (bool, error) {
	base, left, right := t.base.Lookup(p), t.left.Lookup(p), t.right.Lookup(p)

	var src *snapshot.Snapshot
	switch {
	case snapshot.SameContent(*left, *right):
		src = t.left
	case base != nil && snapshot.SameContent(*base, *left):
		src = t.right
	case base != nil && snapshot.SameContent(*base, *right):
		src = t.left
	default:
		return false, nil
	}

	if err := t.materialize(src, p); err != nil {
		return false, err
	}
	return true, t.mergeAttrs(p)
}

func (t *treeMerge) knitChangelog(p string) error {
	left, err := changelog.ReadFile(t.left.Abs(p))
	if err != nil {
		return engineError("read", p, err)
	}
	right, err := changelog.ReadFile(t.right.Abs(p))
	if err != nil {
		return engineError("read", p, err)
	}

	knitted := changelog.Knit(left, right)
	if err := t.out.WriteFile(p, []byte(knitted.String()), t.right.Lookup(p).Mode); err != nil {
		return engineError("write", p, err)
	}
	return t.mergeAttrs(p)
}

// mergeCatalog merges a message catalog. A .po file is updated against a
// template from the merged directory when one is there; otherwise both
// catalogs are concatenated with RIGHT's messages winning.
func (t *treeMerge) mergeCatalog(p string) (bool, error) {
	if err := t.out.MkdirAll(path.Dir(p), 0o755); err != nil {
		return false, engineError("create", path.Dir(p), err)
	}

	dest := t.out.Abs(p)
	tmp := dest + ".mom-merge"

	var err error
	template, found := t.findTemplate(path.Dir(p))
	if strings.HasSuffix(p, ".po") && found {
		err = t.catalogs.MessageMerge(t.ctx, t.left.Abs(p), t.right.Abs(p), t.out.Abs(template), tmp)
	} else {
		err = t.catalogs.Concatenate(t.ctx, t.right.Abs(p), t.left.Abs(p), tmp)
	}
	if err != nil {
		os.Remove(tmp)
		if errors.Is(err, ErrToolNotFound) {
			return false, engineError("merge", p, err)
		}
		t.log.Warn("catalog merge failed", zap.String("path", p), zap.Error(err))
		return false, nil
	}

	if err := t.out.RemoveAll(p); err != nil {
		os.Remove(tmp)
		return false, engineError("write", p, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return false, engineError("write", p, err)
	}

	return true, t.mergeAttrs(p)
}

func (t *treeMerge) findTemplate(dir string) (string, bool) {
	entries, err := os.ReadDir(t.out.Abs(dir))
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".pot") {
			return path.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// materialize copies src's object at p into the merged tree. Directory modes
// are applied once every child has been written.
func (t *treeMerge) materialize(src *snapshot.Snapshot, p string) error {
	e, ok := src.Get(p)
	if !ok {
		return nil
	}

	info, err := t.out.Lstat(p)
	exists := err == nil

	if e.Kind == snapshot.KindDirectory {
		if exists && !info.IsDir() {
			if err := t.out.Remove(p); err != nil {
				return engineError("replace", p, err)
			}
		}
		if err := t.out.MkdirAll(p, 0o755); err != nil {
			return engineError("create", p, err)
		}
		t.dirModes[p] = e.Mode
		return nil
	}

	if exists && info.IsDir() {
		if err := t.out.RemoveAll(p); err != nil {
			return engineError("replace", p, err)
		}
		delete(t.dirModes, p)
	}
	if err := t.out.CopyEntry(src.Abs(p), e, p); err != nil {
		return engineError("copy", p, err)
	}
	return nil
}

func (t *treeMerge) mergeAttrs(p string) error {
	left, right := t.left.Lookup(p), t.right.Lookup(p)
	if left == nil && right == nil {
		return nil
	}

	info, err := t.out.Lstat(p)
	if err != nil {
		return engineError("stat", p, err)
	}
	if info.Mode()&iofs.ModeSymlink != 0 {
		return nil
	}

	mode := MergePermissions(t.base.Lookup(p), left, right)
	if info.IsDir() {
		t.dirModes[p] = mode
		return nil
	}
	if info.Mode().Perm() == mode {
		return nil
	}
	if err := t.out.Chmod(p, mode); err != nil {
		return engineError("chmod", p, err)
	}
	return nil
}

func (t *treeMerge) conflict(p, reason string) {
	t.log.Warn("conflict", zap.String("path", p), zap.String("reason", reason))
	t.conflicts[p] = struct{}{}
}

// materializeConflicts leaves a copy of each side next to every conflicted
// path. A directory cannot hold two bodies, so it becomes a symlink to one of
// its copies. Conflicts beneath a conflicted path are dropped; the copies
// already carry the whole subtree.
func (t *treeMerge) materializeConflicts() ([]string, error) {
	paths := lo.Keys(t.conflicts)
	sort.Strings(paths)

	var result []string
	for _, p := range paths {
		if lo.SomeBy(result, func(dir string) bool { return isUnder(p, dir) }) {
			continue
		}

		if err := t.out.RemoveAll(p); err != nil {
			return nil, engineError("remove", p, err)
		}
		delete(t.dirModes, p)

		linkTarget := ""
		sides := []struct {
			snap   *snapshot.Snapshot
			suffix string
		}{
			{t.left, t.opts.Labels.LeftSuffix()},
			{t.right, t.opts.Labels.RightSuffix()},
		}
		for _, side := range sides {
			e, ok := side.snap.Get(p)
			if !ok {
				continue
			}
			name := p + side.suffix
			if e.Kind == snapshot.KindDirectory {
				if err := t.copySubtree(side.snap, p, name); err != nil {
					return nil, err
				}
				if linkTarget == "" {
					linkTarget = path.Base(name)
				}
				continue
			}
			if err := t.out.CopyEntry(side.snap.Abs(p), e, name); err != nil {
				return nil, engineError("copy", name, err)
			}
		}

		if linkTarget != "" {
			if err := t.out.Symlink(linkTarget, p); err != nil {
				return nil, engineError("link", p, err)
			}
		}
		result = append(result, p)
	}

	return result, nil
}

// copySubtree copies the directory at p in src, with everything beneath it,
// to dest in the merged tree.
func (t *treeMerge) copySubtree(src *snapshot.Snapshot, p, dest string) error {
	for _, sub := range src.Paths() {
		if !isUnder(sub, p) {
			continue
		}
		e, _ := src.Get(sub)
		target := dest + strings.TrimPrefix(sub, p)
		if e.Kind == snapshot.KindDirectory {
			if err := t.out.MkdirAll(target, 0o755); err != nil {
				return engineError("create", target, err)
			}
			t.dirModes[target] = e.Mode
			continue
		}
		if err := t.out.CopyEntry(src.Abs(sub), e, target); err != nil {
			return engineError("copy", target, err)
		}
	}
	return nil
}

// applyDirModes sets directory permissions deepest first, after all writes.
func (t *treeMerge) applyDirModes() error {
	dirs := lo.Keys(t.dirModes)
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	for _, d := range dirs {
		info, err := t.out.Lstat(d)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := t.out.Chmod(d, t.dirModes[d]); err != nil {
			return engineError("chmod", d, err)
		}
	}
	return nil
}

// changes compares the merged tree with RIGHT over the merged paths.
func (t *treeMerge) changes(paths, conflicts []string) ([]ChangeRecord, error) {
	merged, err := snapshot.Load(t.out.Root())
	if err != nil {
		return nil, engineError("read", t.out.Root(), err)
	}

	conflicted := lo.SliceToMap(conflicts, func(p string) (string, struct{}) {
		return p, struct{}{}
	})

	var changes []ChangeRecord
	for _, p := range paths {
		right := t.right.Lookup(p)

		if _, ok := conflicted[p]; ok {
			kind := ChangeModified
			if right == nil {
				kind = ChangeAdded
			}
			changes = append(changes, ChangeRecord{Path: p, Kind: kind})
			continue
		}

		result := merged.Lookup(p)
		switch {
		case right == nil && result == nil:
		case right == nil:
			changes = append(changes, ChangeRecord{Path: p, Kind: ChangeAdded})
		case result == nil:
			changes = append(changes, ChangeRecord{Path: p, Kind: ChangeRemoved})
		case !snapshot.Same(*right, *result):
			changes = append(changes, ChangeRecord{Path: p, Kind: ChangeModified})
		}
	}

	return changes, nil
}
