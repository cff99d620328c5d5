package merging

import (
	"testing"

	"github.com/merge-o-matic/mom/internal/snapshot"
	"github.com/merge-o-matic/mom/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsQuiltFormat(t *testing.T) {
	t.Parallel()

	assert.True(t, IsQuiltFormat("3.0 (quilt)"))
	assert.True(t, IsQuiltFormat("3.0 (quilt)\n"))
	assert.False(t, IsQuiltFormat("3.0 (native)"))
	assert.False(t, IsQuiltFormat("1.0"))

	assert.True(t, QuiltOnly(QuiltFormat, QuiltFormat))
	assert.False(t, QuiltOnly(QuiltFormat, DefaultFormat))
	assert.False(t, QuiltOnly(DefaultFormat, QuiltFormat))
}

func TestSourceFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tree testutils.Tree
		want string
	}{
		{"declared", testutils.Tree{"debian/source/format": testutils.File("3.0 (quilt)\n")}, QuiltFormat},
		{"missing", testutils.Tree{"debian/control": testutils.File("Source: hello\n")}, DefaultFormat},
		{"blank", testutils.Tree{"debian/source/format": testutils.File("\n")}, DefaultFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := snapshot.Load(testutils.NewTree(t, tt.tree))
			require.NoError(t, err)

			got, err := SourceFormat(s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path      string
		quiltOnly bool
		want      bool
	}{
		{"src/main.c", false, true},
		{"src/main.c", true, false},
		{"debian", true, true},
		{"debian/rules", true, true},
		{"debianish/rules", true, false},
		{".pc", false, false},
		{".pc/applied-patches", false, false},
		{".pc/applied-patches", true, false},
		{".pcx", false, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, inScope(tt.path, tt.quiltOnly), "%s quilt=%v", tt.path, tt.quiltOnly)
	}
}
