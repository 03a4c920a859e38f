package spvxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/spv/errs"
)

func TestParse(t *testing.T) {
	root, err := Parse([]byte(`<root a="1"><child>hi</child><!-- skip --><child/></root>`))
	require.NoError(t, err)
	assert.Equal(t, "root", root.Name)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "hi", root.Children[0].Text)
}

func TestParseMalformed(t *testing.T) {
	for _, doc := range []string{"", "<a><b></a>", "<a>", "text only", "<a/><b/>"} {
		t.Run(doc, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrWellFormed)
		})
	}
}

func TestCheckRoot(t *testing.T) {
	root, err := Parse([]byte(`<heading/>`))
	require.NoError(t, err)
	require.NoError(t, CheckRoot(root, "heading"))

	err = CheckRoot(root, "visualization")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `root node is "heading" but "visualization" was expected`)
}

func TestContent(t *testing.T) {
	root, err := Parse([]byte(`<p><a/><b/><b/><c/></p>`))
	require.NoError(t, err)

	c := NewContent(root)
	assert.NotNil(t, c.Next("a"))
	assert.Nil(t, c.Next("a"), "mismatch must not consume")
	assert.Len(t, c.All("b"), 2)

	err = c.End()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra content <c>")

	assert.NotNil(t, c.Next("c"))
	assert.NoError(t, c.End())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("v1", "sourceVariable", "node-a"))

	t.Run("duplicate id", func(t *testing.T) {
		err := reg.Register("v1", "derivedVariable", "node-b")
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrDuplicateID)
		assert.Contains(t, err.Error(), `nodes sourceVariable and derivedVariable both have ID "v1"`)
	})

	t.Run("resolve", func(t *testing.T) {
		n, err := reg.Resolve("v1", "sourceVariable")
		require.NoError(t, err)
		assert.Equal(t, "node-a", n)
	})

	t.Run("undefined", func(t *testing.T) {
		_, err := reg.Resolve("nope", "sourceVariable")
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrBadReference)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := reg.Resolve("v1", "graph")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"v1" is not a graph`)
	})
}

func TestAttrs(t *testing.T) {
	parse := func(t *testing.T, doc string) *Elem {
		t.Helper()
		root, err := Parse([]byte(doc))
		require.NoError(t, err)

		return root
	}

	t.Run("typed extraction", func(t *testing.T) {
		e := parse(t, `<e id="x" n="42" f="1.5" b="true" c="#10Ff00" d="72pt" k="circle"/>`)
		a := NewAttrs(e)
		assert.Equal(t, 42, a.Int("n", 0))
		assert.Equal(t, 1.5, a.Real("f", 0))
		assert.True(t, a.Bool("b", false))
		assert.Equal(t, 0x10ff00, a.Color("c", 0))
		assert.Equal(t, 1.0, a.Dimension("d", 0))
		assert.Equal(t, 2, a.Enum("k", map[string]int{"square": 1, "circle": 2}, 0))
		assert.NoError(t, a.Finish())
	})

	t.Run("defaults for absent", func(t *testing.T) {
		e := parse(t, `<e/>`)
		a := NewAttrs(e)
		assert.Equal(t, 7, a.Int("n", 7))
		assert.False(t, a.Bool("b", false))
		assert.Equal(t, -1, a.Color("c", -1))
		assert.NoError(t, a.Finish())
	})

	t.Run("missing required", func(t *testing.T) {
		a := NewAttrs(parse(t, `<e/>`))
		a.Required("name")
		err := a.Finish()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `attribute "name" is missing`)
	})

	t.Run("unexpected reported together", func(t *testing.T) {
		a := NewAttrs(parse(t, `<e id="ok" known="1" foo="x" bar="y"/>`))
		a.Int("known", 0)
		err := a.Finish()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "foo")
		assert.Contains(t, err.Error(), "bar")
	})

	t.Run("bad values", func(t *testing.T) {
		a := NewAttrs(parse(t, `<e n="abc"/>`))
		assert.Equal(t, 0, a.Int("n", 0))
		require.Error(t, a.Finish())
	})

	t.Run("transparent color", func(t *testing.T) {
		a := NewAttrs(parse(t, `<e c="transparent" d="96px" e="2.54cm"/>`))
		assert.Equal(t, -1, a.Color("c", 0))
		assert.Equal(t, 1.0, a.Dimension("d", 0))
		assert.Equal(t, 1.0, a.Dimension("e", 0))
		assert.NoError(t, a.Finish())
	})

	t.Run("enum other fallback", func(t *testing.T) {
		a := NewAttrs(parse(t, `<e k="hexagon"/>`))
		assert.Equal(t, 99, a.Enum("k", map[string]int{"circle": 2}, 99))
		assert.NoError(t, a.Finish())
	})
}
