package merging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/merge-o-matic/mom/internal/deb822"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseControl = `Source: hello
Maintainer: Debian QA Group <packages@qa.debian.org>
Uploaders: Jane Doe <jane@debian.org>
Standards-Version: 4.6.0

Package: hello
Architecture: any
Description: example package
`

func writeControls(t *testing.T, base, left, right string) (string, string, string) {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 3)
	for i, content := range []string{left, base, right} {
		paths[i] = filepath.Join(dir, []string{"left", "base", "right"}[i])
		require.NoError(t, os.WriteFile(paths[i], []byte(content), 0o644))
	}
	return paths[0], paths[1], paths[2]
}

func replaceLine(doc, old, new string) string {
	d, err := deb822.Parse(doc)
	if err != nil {
		panic(err)
	}
	p, _ := d.ParagraphFor("")
	patched, err := d.Patch(p, old, new)
	if err != nil {
		panic(err)
	}
	return patched.String()
}

func TestMetadataMerger_UploadersReset(t *testing.T) {
	t.Parallel()

	left := replaceLine(baseControl, "Uploaders", "Jane Doe <jane@debian.org>, Endless <maintainers@endlessos.org>")
	right := replaceLine(baseControl, "Standards-Version", "4.7.0")

	l, b, r := writeControls(t, baseControl, left, right)

	res, err := NewMetadataMerger(&wholeFileMerger{}).Merge(context.Background(), l, b, r, testLabels)
	require.NoError(t, err)

	assert.True(t, res.Clean())
	assert.False(t, res.Modified)
	assert.Equal(t, right, string(res.Content))
	assert.Contains(t, string(res.Content), "Standards-Version: 4.7.0")
	assert.Equal(t, []string{"dropped uninteresting Uploaders change"}, res.Notes)
}

func TestMetadataMerger_UploadersAddedAndRemoved(t *testing.T) {
	t.Parallel()

	withoutUploaders := func(doc string) string {
		d, err := deb822.Parse(doc)
		require.NoError(t, err)
		p, _ := d.ParagraphFor("")
		out, err := d.RemoveField(p, "Uploaders")
		require.NoError(t, err)
		return out.String()
	}

	t.Run("left removed the field", func(t *testing.T) {
		t.Parallel()

		base := "Source: hello\nMaintainer: Debian QA Group <packages@qa.debian.org>\nUploaders: Jane Doe <jane@debian.org>\n\nPackage: hello\nArchitecture: any\n"
		left := withoutUploaders(base)
		right := replaceLine(base, "Maintainer", "Jane Doe <jane@debian.org>")
		l, b, r := writeControls(t, base, left, right)

		res, err := NewMetadataMerger(&wholeFileMerger{}).Merge(context.Background(), l, b, r, testLabels)
		require.NoError(t, err)
		assert.True(t, res.Clean())
		assert.Equal(t, right, string(res.Content))
	})

	t.Run("left added the field", func(t *testing.T) {
		t.Parallel()

		base := withoutUploaders(baseControl)
		left := baseControl
		right := replaceLine(base, "Standards-Version", "4.7.0")
		l, b, r := writeControls(t, base, left, right)

		res, err := NewMetadataMerger(&wholeFileMerger{}).Merge(context.Background(), l, b, r, testLabels)
		require.NoError(t, err)
		assert.True(t, res.Clean())
		assert.Equal(t, right, string(res.Content))
	})
}

func TestMetadataMerger_BuiltinMerger(t *testing.T) {
	t.Parallel()

	left := replaceLine(baseControl, "Uploaders", "Endless <maintainers@endlessos.org>")
	right := replaceLine(baseControl, "Uploaders", "Jane Doe <jane@debian.org>, John Roe <john@debian.org>")

	l, b, r := writeControls(t, baseControl, left, right)

	res, err := NewMetadataMerger(NewBuiltinTextMerger()).Merge(context.Background(), l, b, r, testLabels)
	require.NoError(t, err)
	assert.True(t, res.Clean())
	assert.False(t, res.Modified)
	assert.Len(t, res.Notes, 1)
}

func TestMetadataMerger_CleanFirstAttempt(t *testing.T) {
	t.Parallel()

	left := replaceLine(baseControl, "Maintainer", "Endless <maintainers@endlessos.org>")
	l, b, r := writeControls(t, baseControl, left, baseControl)

	merger := &wholeFileMerger{}
	res, err := NewMetadataMerger(merger).Merge(context.Background(), l, b, r, testLabels)
	require.NoError(t, err)

	assert.True(t, res.Clean())
	assert.True(t, res.Modified)
	assert.Empty(t, res.Notes)
	assert.Equal(t, 1, merger.callCount())
}

func TestMetadataMerger_Unresolved(t *testing.T) {
	t.Parallel()

	left := replaceLine(baseControl, "Maintainer", "Endless <maintainers@endlessos.org>")
	right := replaceLine(baseControl, "Maintainer", "Someone Else <else@debian.org>")
	l, b, r := writeControls(t, baseControl, left, right)

	res, err := NewMetadataMerger(&wholeFileMerger{}).Merge(context.Background(), l, b, r, testLabels)
	require.NoError(t, err)

	assert.False(t, res.Clean())
	assert.Equal(t, MergeStatusConflict, res.Status)
	assert.Empty(t, res.Notes)
	assert.Contains(t, string(res.Content), "<<<<<<< endless")
}

func TestMetadataMerger_StrategiesInOrder(t *testing.T) {
	t.Parallel()

	var tried []string
	noop := func(name string) RewriteStrategy {
		return RewriteStrategy{
			Name: name,
			Apply: func(left, base *deb822.Document) (*deb822.Document, bool, error) {
				tried = append(tried, name)
				return nil, false, nil
			},
		}
	}

	left := replaceLine(baseControl, "Uploaders", "Endless <maintainers@endlessos.org>")
	right := replaceLine(baseControl, "Standards-Version", "4.7.0")
	l, b, r := writeControls(t, baseControl, left, right)

	m := NewMetadataMerger(&wholeFileMerger{}, noop("first"), UploadersReset, noop("never"))
	res, err := m.Merge(context.Background(), l, b, r, testLabels)
	require.NoError(t, err)

	assert.True(t, res.Clean())
	assert.Equal(t, []string{"first"}, tried)
}

func TestMetadataMerger_MalformedLeft(t *testing.T) {
	t.Parallel()

	left := "Source: hello\n continuation without a field\n:\n"
	right := replaceLine(baseControl, "Standards-Version", "4.7.0")
	l, b, r := writeControls(t, baseControl, left, right)

	res, err := NewMetadataMerger(&wholeFileMerger{}).Merge(context.Background(), l, b, r, testLabels)
	require.NoError(t, err)
	assert.False(t, res.Clean())
}
