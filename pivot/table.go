package pivot

import (
	"fmt"

	"github.com/arloliu/spv/errs"
)

// Axis identifies where a dimension displays.
type Axis uint8

const (
	AxisLayer Axis = iota
	AxisRow
	AxisColumn
	NAxes
)

func (a Axis) String() string {
	switch a {
	case AxisLayer:
		return "layer"
	case AxisRow:
		return "row"
	case AxisColumn:
		return "column"
	default:
		return fmt.Sprintf("Axis(%d)", uint8(a))
	}
}

// Footnote is one table footnote. Placeholders created for forward
// references have empty content until their own definition arrives.
type Footnote struct {
	Idx     int
	Content *Value
	Marker  *Value
	Show    bool
}

// Look collects the presentation settings of a table: area and border
// styles plus the layout toggles that a table-look file or the light
// member's settings blocks control.
type Look struct {
	Name string

	Areas   [NAreas]AreaStyle
	Borders [NBorders]BorderStyle

	OmitEmpty           bool
	RowLabelsInCorner   bool
	ShowNumericMarkers  bool
	FootnoteMarkerSuper bool

	// HeadingWidths holds the minimum and maximum label width per heading
	// axis: [0] columns, [1] rows.
	HeadingWidths [2][2]int

	PrintAllLayers       bool
	PagedLayers          bool
	FitWidth             bool
	FitLength            bool
	TopContinuation      bool
	BottomContinuation   bool
	NOrphanLines         int
	ContinuationString   string
	ShowGridLines        bool
}

// DefaultLook returns a look with conventional area styles.
func DefaultLook() *Look {
	l := &Look{}
	for i := range l.Areas {
		l.Areas[i] = AreaStyle{
			Font: FontStyle{FG: Black, BG: White, Typeface: "SansSerif", Size: 9},
			Cell: CellStyle{HAlign: HAlignMixed, VAlign: VAlignTop},
		}
	}
	for i := range l.Borders {
		l.Borders[i] = BorderStyle{Stroke: StrokeSolid, Color: Black}
	}

	return l
}

// Table is a decoded pivot table.
type Table struct {
	Look *Look

	Title    *Value
	Subtype  *Value
	Corner   *Value
	Caption  *Value
	ShowTitle   bool
	ShowCaption bool

	RotateInnerColumnLabels bool
	RotateOuterRowLabels    bool

	TableID uint64
	Notes   string

	Dimensions []*Dimension
	Axes       [NAxes][]*Dimension

	// CurrentLayer holds one leaf data index per layer-axis dimension.
	CurrentLayer []int

	Footnotes []*Footnote

	cells map[uint64]*Value

	Locale   string
	Epoch    int
	Decimal  byte
	Grouping byte
	CCs      [5]string

	SmallValue float64
	Dataset    string
	Datafile   string
	Date       int64
}

// NewTable returns an empty table with the default look.
func NewTable() *Table {
	return &Table{Look: DefaultLook(), cells: make(map[uint64]*Value), ShowTitle: true}
}

// AddDimension appends a dimension, assigning its creation-order index.
func (t *Table) AddDimension(d *Dimension) {
	d.Index = len(t.Dimensions)
	t.Dimensions = append(t.Dimensions, d)
}

// EnsureFootnote returns the footnote with the given index, creating empty
// placeholders up to and including it so that forward and self references
// resolve before their definitions arrive. Calling it twice for one index
// returns the same footnote.
func (t *Table) EnsureFootnote(idx int) *Footnote {
	for len(t.Footnotes) <= idx {
		t.Footnotes = append(t.Footnotes, &Footnote{
			Idx:     len(t.Footnotes),
			Content: NewText(""),
			Show:    true,
		})
	}

	return t.Footnotes[idx]
}

// SetFootnote fills in the definition of footnote idx.
func (t *Table) SetFootnote(idx int, content, marker *Value, show bool) *Footnote {
	f := t.EnsureFootnote(idx)
	f.Content = content
	f.Marker = marker
	f.Show = show

	return f
}

// BindAxes distributes the dimensions onto the three axes by creation
// index. Each dimension must appear exactly once across all axes, and the
// per-axis counts must sum to the dimension count.
func (t *Table) BindAxes(layer, row, column []int) error {
	n := len(t.Dimensions)
	if len(layer)+len(row)+len(column) != n {
		return fmt.Errorf("%w: dimensions do not sum correctly (%d + %d + %d != %d)",
			errs.ErrInvalidFormat, len(layer), len(row), len(column), n)
	}

	for _, d := range t.Dimensions {
		d.level = -1
	}
	axes := [NAxes][]int{AxisLayer: layer, AxisRow: row, AxisColumn: column}
	for a := Axis(0); a < NAxes; a++ {
		t.Axes[a] = t.Axes[a][:0]
		for level, idx := range axes[a] {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: axis references dimension %d of %d", errs.ErrBadReference, idx, n)
			}
			d := t.Dimensions[idx]
			if d.level >= 0 {
				return fmt.Errorf("%w: duplicate dimension %d in axes", errs.ErrDuplicateID, idx)
			}
			d.level = level
			t.Axes[a] = append(t.Axes[a], d)
		}
	}

	t.CurrentLayer = make([]int, len(t.Axes[AxisLayer]))

	return nil
}

// AxisExtent returns the product of the leaf counts of the axis.
func (t *Table) AxisExtent(a Axis) int {
	n := 1
	for _, d := range t.Axes[a] {
		n *= d.NumLeaves()
	}

	return n
}

// CellIndex maps the per-dimension leaf indexes to the linear cell key,
// with dimension 0 most significant.
func (t *Table) CellIndex(dindexes []int) uint64 {
	var idx uint64
	for i, d := range t.Dimensions {
		idx = idx*uint64(d.NumLeaves()) + uint64(dindexes[i])
	}

	return idx
}

// DecomposeCellIndex is the inverse of CellIndex: it splits a linear cell
// key into per-dimension leaf indexes. Dimensions with zero leaves yield
// index 0. The leftover most-significant digit must be a valid index of
// dimension 0.
func (t *Table) DecomposeCellIndex(idx uint64) ([]int, error) {
	n := len(t.Dimensions)
	out := make([]int, n)
	rem := idx
	for i := n - 1; i > 0; i-- {
		leaves := uint64(t.Dimensions[i].NumLeaves())
		if leaves == 0 {
			out[i] = 0

			continue
		}
		out[i] = int(rem % leaves)
		rem /= leaves
	}
	if n > 0 {
		if leaves := uint64(t.Dimensions[0].NumLeaves()); rem >= leaves {
			return nil, fmt.Errorf("%w: out of range cell data index %d", errs.ErrBadReference, idx)
		}
		out[0] = int(rem)
	} else if rem != 0 {
		return nil, fmt.Errorf("%w: out of range cell data index %d", errs.ErrBadReference, idx)
	}

	return out, nil
}

// Put stores a value at the given per-dimension leaf indexes.
func (t *Table) Put(dindexes []int, v *Value) error {
	if len(dindexes) != len(t.Dimensions) {
		return fmt.Errorf("%w: cell has %d indexes for %d dimensions",
			errs.ErrInvalidFormat, len(dindexes), len(t.Dimensions))
	}
	for i, di := range dindexes {
		if di < 0 || di >= t.Dimensions[i].NumLeaves() {
			return fmt.Errorf("%w: leaf index %d out of range for dimension %d",
				errs.ErrBadReference, di, i)
		}
	}
	if t.cells == nil {
		t.cells = make(map[uint64]*Value)
	}
	t.cells[t.CellIndex(dindexes)] = v

	return nil
}

// PutLinear stores a value at a linear cell key, validating it first.
func (t *Table) PutLinear(idx uint64, v *Value) error {
	if _, err := t.DecomposeCellIndex(idx); err != nil {
		return err
	}
	if t.cells == nil {
		t.cells = make(map[uint64]*Value)
	}
	t.cells[idx] = v

	return nil
}

// Get returns the value at the given per-dimension leaf indexes, nil when
// the cell is empty.
func (t *Table) Get(dindexes []int) *Value {
	if len(dindexes) != len(t.Dimensions) {
		return nil
	}

	return t.cells[t.CellIndex(dindexes)]
}

// NumCells returns the number of populated cells.
func (t *Table) NumCells() int { return len(t.cells) }

// EachCell calls fn for every populated cell with its linear key.
func (t *Table) EachCell(fn func(idx uint64, v *Value)) {
	for idx, v := range t.cells {
		fn(idx, v)
	}
}

// SetCurrentLayer decomposes a linear index over the layer axis only,
// dimension 0 of the axis most significant, and stores the result.
func (t *Table) SetCurrentLayer(idx uint64) error {
	layer := t.Axes[AxisLayer]
	out := make([]int, len(layer))
	rem := idx
	for i := len(layer) - 1; i > 0; i-- {
		leaves := uint64(layer[i].NumLeaves())
		if leaves == 0 {
			out[i] = 0

			continue
		}
		out[i] = int(rem % leaves)
		rem /= leaves
	}
	if len(layer) > 0 {
		if leaves := uint64(layer[0].NumLeaves()); rem >= leaves {
			return fmt.Errorf("%w: current layer %d out of range", errs.ErrBadReference, idx)
		}
		out[0] = int(rem)
	} else if rem != 0 {
		return fmt.Errorf("%w: current layer %d out of range", errs.ErrBadReference, idx)
	}
	t.CurrentLayer = out

	return nil
}

// CurrentLayerIndex re-encodes CurrentLayer as the linear index over the
// layer axis, dimension 0 most significant.
func (t *Table) CurrentLayerIndex() uint64 {
	var idx uint64
	for i, d := range t.Axes[AxisLayer] {
		idx = idx*uint64(d.NumLeaves()) + uint64(t.CurrentLayer[i])
	}

	return idx
}
