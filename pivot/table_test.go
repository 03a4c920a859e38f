package pivot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/spv/errs"
)

func leafDim(n int) *Dimension {
	root := NewGroup(NewText("dim"))
	for i := 0; i < n; i++ {
		root.AddChild(NewLeaf(NewText("leaf"), i))
	}
	d := NewDimension(root)
	if err := d.FillLeaves(); err != nil {
		panic(err)
	}

	return d
}

func TestFillLeaves(t *testing.T) {
	t.Run("dense permutation", func(t *testing.T) {
		root := NewGroup(NewText("d"),
			NewLeaf(NewText("b"), 1),
			NewLeaf(NewText("a"), 0),
			NewLeaf(NewText("c"), 2),
		)
		d := NewDimension(root)
		require.NoError(t, d.FillLeaves())
		assert.Equal(t, 3, d.NumLeaves())
		assert.Equal(t, "a", d.DataLeaves[0].Name.BodyText())
		assert.Equal(t, 0, d.PresentationLeaves[0].PresentationIndex)
		assert.Equal(t, "b", d.PresentationLeaves[0].Name.BodyText(),
			"presentation order follows arrival order")
	})

	t.Run("out of range index", func(t *testing.T) {
		d := NewDimension(NewGroup(NewText("d"),
			NewLeaf(NewText("a"), 0),
			NewLeaf(NewText("b"), 2),
		))
		err := d.FillLeaves()
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrBadReference)
		assert.Contains(t, err.Error(), "leaf_index 2 >= n_leaves 2")
	})

	t.Run("duplicate index", func(t *testing.T) {
		d := NewDimension(NewGroup(NewText("d"),
			NewLeaf(NewText("a"), 0),
			NewLeaf(NewText("b"), 0),
		))
		err := d.FillLeaves()
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrDuplicateID)
		assert.Contains(t, err.Error(), "two leaves with data_index 0")
	})
}

func TestBindAxes(t *testing.T) {
	newTable := func() *Table {
		tb := NewTable()
		tb.AddDimension(leafDim(2))
		tb.AddDimension(leafDim(3))
		tb.AddDimension(leafDim(4))

		return tb
	}

	t.Run("valid binding", func(t *testing.T) {
		tb := newTable()
		require.NoError(t, tb.BindAxes([]int{2}, []int{0}, []int{1}))
		assert.Equal(t, 4, tb.AxisExtent(AxisLayer))
		assert.Equal(t, 2, tb.AxisExtent(AxisRow))
		assert.Equal(t, 3, tb.AxisExtent(AxisColumn))
		assert.Len(t, tb.CurrentLayer, 1)
	})

	t.Run("sum mismatch", func(t *testing.T) {
		tb := newTable()
		err := tb.BindAxes(nil, []int{0}, []int{1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimensions do not sum correctly (0 + 1 + 1 != 3)")
	})

	t.Run("duplicate dimension", func(t *testing.T) {
		tb := newTable()
		err := tb.BindAxes([]int{0}, []int{0}, []int{1})
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrDuplicateID)
	})

	t.Run("out of range dimension", func(t *testing.T) {
		tb := newTable()
		err := tb.BindAxes([]int{5}, []int{0}, []int{1})
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrBadReference)
	})
}

func TestCellIndexBijection(t *testing.T) {
	tb := NewTable()
	tb.AddDimension(leafDim(2))
	tb.AddDimension(leafDim(3))

	t.Run("index 5 in a 2x3 table is row 1 col 2", func(t *testing.T) {
		got, err := tb.DecomposeCellIndex(5)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, got)
	})

	t.Run("bijection over all cells", func(t *testing.T) {
		for i := uint64(0); i < 6; i++ {
			di, err := tb.DecomposeCellIndex(i)
			require.NoError(t, err)
			assert.Equal(t, i, tb.CellIndex(di))
		}
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := tb.DecomposeCellIndex(6)
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrBadReference)
		assert.Contains(t, err.Error(), "out of range cell data index")
	})
}

func TestPutGet(t *testing.T) {
	tb := NewTable()
	tb.AddDimension(leafDim(2))
	tb.AddDimension(leafDim(3))

	require.NoError(t, tb.Put([]int{1, 2}, NewNumber(42)))
	v := tb.Get([]int{1, 2})
	require.NotNil(t, v)
	assert.Equal(t, 42.0, v.Numeric.X)
	assert.Nil(t, tb.Get([]int{0, 0}))
	assert.Equal(t, 1, tb.NumCells())

	err := tb.Put([]int{1, 3}, NewNumber(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrBadReference)

	err = tb.Put([]int{1}, NewNumber(1))
	require.Error(t, err)
}

func TestFootnotePlaceholders(t *testing.T) {
	tb := NewTable()

	// forward reference to footnote 2 before any definition
	f := tb.EnsureFootnote(2)
	require.Len(t, tb.Footnotes, 3)
	assert.Equal(t, 2, f.Idx)
	assert.True(t, f.Show)
	assert.True(t, f.Content.IsEmpty())

	// idempotent
	again := tb.EnsureFootnote(2)
	assert.Same(t, f, again)
	assert.Len(t, tb.Footnotes, 3)

	// later definition fills the placeholder in place
	def := tb.SetFootnote(2, NewText("note"), NewText("*"), false)
	assert.Same(t, f, def)
	assert.Equal(t, "note", f.Content.BodyText())
	assert.False(t, f.Show)
}

func TestAddFootnoteRefs(t *testing.T) {
	v := NewText("cell")
	v.AddFootnote(3)
	v.AddFootnote(1)
	v.AddFootnote(3)
	v.AddFootnote(2)
	assert.Equal(t, []int{1, 2, 3}, v.Mod.FootnoteRefs)
}

func TestCurrentLayer(t *testing.T) {
	tb := NewTable()
	tb.AddDimension(leafDim(2))
	tb.AddDimension(leafDim(3))
	tb.AddDimension(leafDim(4))
	require.NoError(t, tb.BindAxes([]int{0, 1}, []int{2}, nil))

	// layer axis extent is 2*3; index 5 means dim0=1, dim1=2
	require.NoError(t, tb.SetCurrentLayer(5))
	assert.Equal(t, []int{1, 2}, tb.CurrentLayer)
	assert.Equal(t, uint64(5), tb.CurrentLayerIndex())

	err := tb.SetCurrentLayer(6)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrBadReference)
}
