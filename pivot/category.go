package pivot

import (
	"fmt"

	"github.com/arloliu/spv/errs"
)

// Category is a node in a dimension's category tree. A leaf carries a data
// index and an arrival-order presentation index; a group carries child
// categories and whether its label is shown.
type Category struct {
	Name   *Value
	Parent *Category

	// GroupIndex is the category's position within Parent.Subs, -1 on a
	// detached root.
	GroupIndex int

	// Leaf fields. DataIndex is -1 on groups.
	DataIndex         int
	PresentationIndex int
	Format            Format

	// Group fields.
	Subs      []*Category
	ShowLabel bool
	// ShowLabelInCorner puts the group label in the table corner instead
	// of beside its children.
	ShowLabelInCorner bool
}

// IsGroup reports whether the category has children.
func (c *Category) IsGroup() bool { return c.DataIndex < 0 }

// IsLeaf reports whether the category is a data leaf.
func (c *Category) IsLeaf() bool { return c.DataIndex >= 0 }

// NewLeaf returns a leaf category for the given data index.
func NewLeaf(name *Value, dataIndex int) *Category {
	return &Category{Name: name, DataIndex: dataIndex, PresentationIndex: -1, GroupIndex: -1}
}

// NewGroup returns a group category with a visible label.
func NewGroup(name *Value, subs ...*Category) *Category {
	g := &Category{Name: name, DataIndex: -1, PresentationIndex: -1, GroupIndex: -1, ShowLabel: true, Subs: subs}
	for i, s := range subs {
		s.Parent = g
		s.GroupIndex = i
	}

	return g
}

// AddChild appends a child category to a group, recording the child's
// position within the group.
func (c *Category) AddChild(sub *Category) {
	sub.Parent = c
	sub.GroupIndex = len(c.Subs)
	c.Subs = append(c.Subs, sub)
}

// Dimension is one axis component: a category tree whose leaves index the
// table data.
type Dimension struct {
	Root *Category

	// Index is the dimension's position in table creation order.
	Index int

	HideAllLabels bool

	// DataLeaves lists leaves ordered by data index; PresentationLeaves
	// orders the same leaves as they appear in the category tree.
	DataLeaves         []*Category
	PresentationLeaves []*Category

	// axis binding state, -1 while unbound
	level int
}

// NewDimension returns a dimension rooted at the given category.
func NewDimension(root *Category) *Dimension {
	return &Dimension{Root: root, level: -1}
}

// NumLeaves returns the number of data leaves.
func (d *Dimension) NumLeaves() int { return len(d.DataLeaves) }

func countLeaves(c *Category) int {
	if c.IsLeaf() {
		return 1
	}
	n := 0
	for _, sub := range c.Subs {
		n += countLeaves(sub)
	}

	return n
}

func (d *Dimension) fillLeaves(c *Category, n int) error {
	if c.IsLeaf() {
		if c.DataIndex >= n {
			return fmt.Errorf("%w: leaf_index %d >= n_leaves %d", errs.ErrBadReference, c.DataIndex, n)
		}
		if d.DataLeaves[c.DataIndex] != nil {
			return fmt.Errorf("%w: two leaves with data_index %d", errs.ErrDuplicateID, c.DataIndex)
		}
		c.PresentationIndex = len(d.PresentationLeaves)
		d.DataLeaves[c.DataIndex] = c
		d.PresentationLeaves = append(d.PresentationLeaves, c)

		return nil
	}
	for _, sub := range c.Subs {
		if err := d.fillLeaves(sub, n); err != nil {
			return err
		}
	}

	return nil
}

// FillLeaves walks the category tree assigning presentation indexes in
// arrival order and validating that the leaf data indexes form a dense
// permutation of 0..n-1.
func (d *Dimension) FillLeaves() error {
	n := countLeaves(d.Root)
	d.DataLeaves = make([]*Category, n)
	d.PresentationLeaves = d.PresentationLeaves[:0]

	return d.fillLeaves(d.Root, n)
}

// AssignDataIndexes renumbers the leaves sequentially in presentation
// order and rebuilds DataLeaves, used after restructuring a category tree.
func (d *Dimension) AssignDataIndexes() {
	d.DataLeaves = d.DataLeaves[:0]
	d.PresentationLeaves = d.PresentationLeaves[:0]
	d.assignDataIndexes(d.Root)
}

func (d *Dimension) assignDataIndexes(c *Category) {
	if c.IsLeaf() {
		c.DataIndex = len(d.DataLeaves)
		c.PresentationIndex = len(d.PresentationLeaves)
		d.DataLeaves = append(d.DataLeaves, c)
		d.PresentationLeaves = append(d.PresentationLeaves, c)

		return
	}
	for _, sub := range c.Subs {
		d.assignDataIndexes(sub)
	}
}
