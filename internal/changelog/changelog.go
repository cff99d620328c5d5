// Package changelog reads package changelogs as ordered lists of entries and
// knits two diverged changelogs back together.
package changelog

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/merge-o-matic/mom/internal/debversion"
	"github.com/samber/lo"
)

var headerPattern = regexp.MustCompile(`^(\w[-+0-9a-z.]*) \(([^() \t]+)\)`)

// Entry is one changelog stanza, from its header line up to (not including)
// the next header.
type Entry struct {
	Package string
	Version debversion.Version
	Text    string
}

// Changelog is a parsed changelog, newest entry first.
type Changelog struct {
	// Preamble holds any text before the first header.
	Preamble string
	Entries  []Entry
}

// Parse splits text into entries. Lines that look like headers but carry an
// unparseable version are kept as part of the preceding entry.
func Parse(text string) *Changelog {
	cl := &Changelog{}

	var (
		cur *Entry
		sb  strings.Builder
	)

	flush := func() {
		if cur == nil {
			cl.Preamble = sb.String()
		} else {
			cur.Text = sb.String()
			cl.Entries = append(cl.Entries, *cur)
		}
		sb.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			if v, err := debversion.Parse(m[2]); err == nil {
				flush()
				cur = &Entry{Package: m[1], Version: v}
			}
		}

		sb.WriteString(line)
	}
	flush()

	return cl
}

// ReadFile parses the changelog at path.
func ReadFile(path string) (*Changelog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read changelog: %w", err)
	}
	return Parse(string(data)), nil
}

// Versions lists the entry versions, newest first.
func (c *Changelog) Versions() []debversion.Version {
	return lo.Map(c.Entries, func(e Entry, _ int) debversion.Version {
		return e.Version
	})
}

// String renders the changelog. Entries are separated by a blank line even when
// their source text lacked one.
func (c *Changelog) String() string {
	var sb strings.Builder
	sb.WriteString(c.Preamble)

	for i, e := range c.Entries {
		text := e.Text
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		if i < len(c.Entries)-1 && !strings.HasSuffix(text, "\n\n") {
			text += "\n"
		}
		sb.WriteString(text)
	}

	return sb.String()
}

// Knit interleaves the entries of left into right. Right's entries are kept
// in order; before each one, any left entries newer than it are emitted, and a
// left entry with the same version as the right one is dropped in its favour.
// Left entries older than every right entry come last. The preamble is right's.
func Knit(left, right *Changelog) *Changelog {
	out := &Changelog{Preamble: right.Preamble}
	pending := left.Entries

	for _, r := range right.Entries {
		for len(pending) > 0 && pending[0].Version.GreaterThan(r.Version) {
			out.Entries = append(out.Entries, pending[0])
			pending = pending[1:]
		}
		for len(pending) > 0 && pending[0].Version.Equal(r.Version) {
			pending = pending[1:]
		}
		out.Entries = append(out.Entries, r)
	}

	out.Entries = append(out.Entries, pending...)

	return out
}

// KnitText is Knit over raw changelog text.
func KnitText(left, right string) string {
	return Knit(Parse(left), Parse(right)).String()
}
