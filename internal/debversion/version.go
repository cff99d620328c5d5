// Package debversion parses and orders package version strings of the form
// [epoch:]upstream[-revision].
package debversion

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/AlekSi/pointer"
)

// ErrMalformedVersion is returned when a version string has no parseable upstream component.
var ErrMalformedVersion = errors.New("malformed version")

// The upstream part starts with an alphanumeric and cannot end in a hyphen.
var versionPattern = regexp.MustCompile(`^(?:(\d+):)?([A-Za-z0-9](?:[A-Za-z0-9.+:~-]*?[A-Za-z0-9.+:~])?)(?:-([A-Za-z0-9+.~]+))?$`)

// Version is a parsed package version. A nil Revision means the version has no revision part.
type Version struct {
	Epoch    int
	Upstream string
	Revision *string
}

// Parse parses s into a Version.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)

	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
	}

	v := Version{Upstream: m[2]}

	if m[1] != "" {
		epoch, err := strconv.Atoi(m[1])
		if err != nil {
			return Version{}, fmt.Errorf("%w: bad epoch in %q", ErrMalformedVersion, s)
		}
		v.Epoch = epoch
	}

	// A colon in the upstream part is only legal when an epoch is present.
	if m[1] == "" && strings.Contains(v.Upstream, ":") {
		return Version{}, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
	}

	if m[3] != "" {
		v.Revision = pointer.ToString(m[3])
	}

	return v, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	var sb strings.Builder
	if v.Epoch > 0 {
		sb.WriteString(strconv.Itoa(v.Epoch))
		sb.WriteByte(':')
	}
	sb.WriteString(v.Upstream)
	if v.Revision != nil {
		sb.WriteByte('-')
		sb.WriteString(*v.Revision)
	}
	return sb.String()
}

func (v Version) revision() string {
	return pointer.GetString(v.Revision)
}

// Compare returns -1, 0 or 1 depending on whether v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	return Compare(v, o)
}

func (v Version) LessThan(o Version) bool {
	return Compare(v, o) < 0
}

func (v Version) GreaterThan(o Version) bool {
	return Compare(v, o) > 0
}

func (v Version) Equal(o Version) bool {
	return Compare(v, o) == 0
}

// Compare orders two versions: epochs numerically, then upstream and revision
// by alternating non-digit and digit runs. An absent revision sorts as empty.
func Compare(a, b Version) int {
	switch {
	case a.Epoch < b.Epoch:
		return -1
	case a.Epoch > b.Epoch:
		return 1
	}

	if c := compareFragment(a.Upstream, b.Upstream); c != 0 {
		return c
	}

	return compareFragment(a.revision(), b.revision())
}

// CompareStrings parses and compares two version strings.
func CompareStrings(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return Compare(va, vb), nil
}

// Base derives the common-ancestor candidate of a derivative version: the
// revision is cut down to its leading digit run. A revision without leading
// digits is dropped entirely. The result never sorts after v.
func Base(v Version) Version {
	base := Version{Epoch: v.Epoch, Upstream: v.Upstream}

	if v.Revision != nil {
		rev := *v.Revision
		n := 0
		for n < len(rev) && isDigit(rev[n]) {
			n++
		}
		if n > 0 {
			base.Revision = pointer.ToString(rev[:n])
		}
	}

	// Revisions such as "4~bpo1" sort before their digit prefix.
	if Compare(base, v) > 0 {
		return v
	}

	return base
}

// Sort orders versions ascending.
func Sort(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) < 0
	})
}

func compareFragment(a, b string) int {
	i, j := 0, 0

	for i < len(a) || j < len(b) {
		for (i < len(a) && !isDigit(a[i])) || (j < len(b) && !isDigit(b[j])) {
			ac, bc := 0, 0
			if i < len(a) {
				ac = order(a[i])
			}
			if j < len(b) {
				bc = order(b[j])
			}
			if ac != bc {
				return sign(ac - bc)
			}
			i++
			j++
		}

		for i < len(a) && a[i] == '0' {
			i++
		}
		for j < len(b) && b[j] == '0' {
			j++
		}

		firstDiff := 0
		for i < len(a) && isDigit(a[i]) && j < len(b) && isDigit(b[j]) {
			if firstDiff == 0 {
				firstDiff = int(a[i]) - int(b[j])
			}
			i++
			j++
		}

		if i < len(a) && isDigit(a[i]) {
			return 1
		}
		if j < len(b) && isDigit(b[j]) {
			return -1
		}
		if firstDiff != 0 {
			return sign(firstDiff)
		}
	}

	return 0
}

// order ranks a single non-digit character: '~' before the end of the run,
// letters before everything else.
func order(c byte) int {
	switch {
	case isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	case c == '~':
		return -1
	default:
		return int(c) + 256
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
