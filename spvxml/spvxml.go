// Package spvxml implements the XML layer shared by the SPV member
// decoders: a lightweight element tree over encoding/xml, typed attribute
// extraction with unexpected-attribute reporting, ordered content
// matching, and two-pass ID registration with reference resolution.
package spvxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/arloliu/spv/errs"
)

// Elem is one element of a parsed document. Namespace prefixes are
// stripped; matching is by local name.
type Elem struct {
	Name     string
	Attrs    []xml.Attr
	Children []*Elem
	Text     string
}

// Attr returns the value of the named attribute and whether it exists.
// A duplicate attribute is reported by Attrs during typed extraction.
func (e *Elem) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}

	return "", false
}

// ID returns the element's id attribute, empty when absent.
func (e *Elem) ID() string {
	v, _ := e.Attr("id")

	return v
}

// Parse reads an XML document into an element tree. Character data is
// accumulated per element; comments and processing instructions are
// skipped.
func Parse(data []byte) (*Elem, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*Elem
	var root *Elem
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrWellFormed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := &Elem{Name: t.Name.Local, Attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", errs.ErrWellFormed)
				}
				root = e
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, e)
			}
			stack = append(stack, e)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil || len(stack) > 0 {
		return nil, fmt.Errorf("%w: missing or unclosed root element", errs.ErrWellFormed)
	}

	return root, nil
}

// CheckRoot verifies the document's root element name.
func CheckRoot(root *Elem, want string) error {
	if root.Name != want {
		return fmt.Errorf("%w: root node is %q but %q was expected",
			errs.ErrInvalidFormat, root.Name, want)
	}

	return nil
}

// Content walks an element's children in order, matching elements by name
// and reporting leftovers.
type Content struct {
	parent *Elem
	pos    int
}

// NewContent returns a cursor over the element's children.
func NewContent(e *Elem) *Content {
	return &Content{parent: e}
}

// Next returns the next child element if its name is one of names,
// without consuming anything on a mismatch.
func (c *Content) Next(names ...string) *Elem {
	if c.pos >= len(c.parent.Children) {
		return nil
	}
	e := c.parent.Children[c.pos]
	for _, n := range names {
		if e.Name == n {
			c.pos++

			return e
		}
	}

	return nil
}

// All consumes and returns every remaining child whose name is one of
// names, stopping at the first mismatch.
func (c *Content) All(names ...string) []*Elem {
	var out []*Elem
	for {
		e := c.Next(names...)
		if e == nil {
			return out
		}
		out = append(out, e)
	}
}

// End reports an error if unconsumed children remain.
func (c *Content) End() error {
	if c.pos < len(c.parent.Children) {
		return fmt.Errorf("%w: extra content <%s> found expecting end of <%s>",
			errs.ErrInvalidFormat, c.parent.Children[c.pos].Name, c.parent.Name)
	}

	return nil
}

// Registry resolves cross-references between identified nodes. Pass one:
// Register every node carrying an id. Pass two: Resolve the refs.
type Registry struct {
	nodes map[string]regEntry
}

type regEntry struct {
	kind string
	node any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]regEntry)}
}

// Register records a node under its ID. Registering two nodes with one ID
// is an error naming both kinds.
func (r *Registry) Register(id, kind string, node any) error {
	if id == "" {
		return nil
	}
	if prev, ok := r.nodes[id]; ok {
		return fmt.Errorf("%w: nodes %s and %s both have ID %q",
			errs.ErrDuplicateID, prev.kind, kind, id)
	}
	r.nodes[id] = regEntry{kind: kind, node: node}

	return nil
}

// Resolve returns the node registered under id, requiring its kind.
func (r *Registry) Resolve(id, kind string) (any, error) {
	e, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: undefined reference to %q", errs.ErrBadReference, id)
	}
	if e.kind != kind {
		return nil, fmt.Errorf("%w: %q is not a %s", errs.ErrBadReference, id, kind)
	}

	return e.node, nil
}

// joinNames renders attribute names for the unexpected-attributes error.
func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
