// Package merging provides the three-way tree merge used to carry a derivative
// distribution's changes onto a new upstream release of a package.
//
// It merges three unpacked trees:
// 1. Base: the common ancestor both sides were derived from.
// 2. Left: the derivative's tree, carrying its own modifications.
// 3. Right: the new upstream tree.
//
// The package coordinates:
// - Classifying every path by comparing the three trees.
// - Merging message catalogs, changelogs, control metadata and plain text.
// - Falling back to whole-file choices when no line merge is possible.
// - Materialising conflicts as per-side copies next to the conflicted path.
// - Reporting how the merged tree differs from Right.
package merging
