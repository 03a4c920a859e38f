// Package structure decodes SPV structure members: the XML documents
// that give a viewer file its outline of headings and containers. Each
// container holds one piece of output, most importantly a reference to
// the member holding a pivot table's data. The decoded tree keeps member
// names only; reading and decoding the referenced members is the
// caller's job.
package structure

import (
	"fmt"
	"strings"

	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/internal/markup"
	"github.com/arloliu/spv/pivot"
	"github.com/arloliu/spv/spvxml"
)

// ItemKind discriminates the arms of Item.
type ItemKind uint8

const (
	KindGroup ItemKind = iota
	KindText
	KindTable
	KindImage
	KindUnsupported
)

// Item is one node of a structure member's outline: a heading group, or
// the content of a single container.
type Item struct {
	Kind            ItemKind
	Label           string
	CommandName     string
	Show            bool
	PageBreakBefore bool

	Children []*Item   // KindGroup
	Text     *Text     // KindText
	Table    *TableRef // KindTable
	Image    string    // KindImage, member name or URI
	Message  string    // KindUnsupported
}

// TextKind distinguishes the roles a text container can play.
type TextKind uint8

const (
	TextPlain TextKind = iota
	TextTitle
	TextLog
	TextPageTitle
)

// Text is decoded rich text with the font style its style sheet
// declared.
type Text struct {
	Kind    TextKind
	Content string
	Font    *pivot.FontStyle
}

// TableRef points at the members holding one table. XMLMember is empty
// for light tables, whose data member is self-contained.
type TableRef struct {
	DataMember string
	XMLMember  string
	SubType    string
	TableID    string
}

// Orientation is a page orientation.
type Orientation uint8

const (
	Portrait Orientation = iota
	Landscape
)

// ChartSize scales charts on the printed page.
type ChartSize uint8

const (
	ChartAsIs ChartSize = iota
	ChartFullHeight
	ChartHalfHeight
	ChartQuarterHeight
)

// PageSetup carries the print layout of the root heading. Lengths are
// in inches. Margins are ordered left, right, top, bottom.
type PageSetup struct {
	InitialPageNumber int
	PaperWidth        float64
	PaperHeight       float64
	Margins           [4]float64
	Orientation       Orientation
	ObjectSpacing     float64
	ChartSize         ChartSize
	Header            []markup.Paragraph
	Footer            []markup.Paragraph
}

// Member is one decoded structure member.
type Member struct {
	Root      *Item
	PageSetup *PageSetup
}

// Parse decodes a structure member document.
func Parse(data []byte) (*Member, error) {
	root, err := spvxml.Parse(data)
	if err != nil {
		return nil, err
	}

	return Decode(root)
}

// Decode builds a Member from a parsed structure document.
func Decode(root *spvxml.Elem) (*Member, error) {
	if err := spvxml.CheckRoot(root, "heading"); err != nil {
		return nil, err
	}

	m := &Member{}
	item, err := decodeHeading(root, m)
	if err != nil {
		return nil, err
	}
	m.Root = item

	return m, nil
}

// decodeHeading decodes a heading element into a group item. m is
// non-nil only for the root heading, which may carry a pageSetup.
func decodeHeading(e *spvxml.Elem, m *Member) (*Item, error) {
	a := spvxml.NewAttrs(e)
	item := &Item{Kind: KindGroup, Show: true, CommandName: a.String("commandName")}
	if m != nil {
		// The root heading records its producer; nothing downstream
		// needs the values.
		a.String("creator")
		a.String("creator-version")
		a.String("creation-date-time")
		a.String("schemaLocation")
		a.String("locale")
		a.String("olang")
	}
	if err := a.Finish(); err != nil {
		return nil, err
	}

	content := spvxml.NewContent(e)
	if label := content.Next("label"); label != nil {
		item.Label = strings.TrimSpace(label.Text)
	}
	if content.Next("visibility") != nil {
		item.Show = false
	}
	if m != nil {
		if ps := content.Next("pageSetup"); ps != nil {
			setup, err := decodePageSetup(ps)
			if err != nil {
				return nil, err
			}
			m.PageSetup = setup
		}
	}

	for {
		if c := content.Next("container"); c != nil {
			child, err := decodeContainer(c)
			if err != nil {
				return nil, err
			}
			item.Children = append(item.Children, child)

			continue
		}
		if h := content.Next("heading"); h != nil {
			child, err := decodeHeading(h, nil)
			if err != nil {
				return nil, err
			}
			item.Children = append(item.Children, child)

			continue
		}

		break
	}
	if err := content.End(); err != nil {
		return nil, err
	}

	return item, nil
}

func decodeContainer(e *spvxml.Elem) (*Item, error) {
	a := spvxml.NewAttrs(e)
	visibility := a.Required("visibility")
	pageBreak := a.String("page-break-before")
	a.String("text-align")
	a.String("width")
	if err := a.Finish(); err != nil {
		return nil, err
	}

	content := spvxml.NewContent(e)
	label := ""
	if l := content.Next("label"); l != nil {
		label = strings.TrimSpace(l.Text)
	}

	body := content.Next("text", "table", "object", "image", "graph", "model", "tree")
	if body == nil {
		if err := content.End(); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: container has no content", errs.ErrInvalidFormat)
	}
	if err := content.End(); err != nil {
		return nil, err
	}

	item, err := decodeContent(body)
	if err != nil {
		return nil, err
	}
	item.Label = label
	item.Show = visibility != "hidden"
	item.PageBreakBefore = pageBreak == "always"

	return item, nil
}

func decodeContent(e *spvxml.Elem) (*Item, error) {
	switch e.Name {
	case "text":
		return decodeText(e)
	case "table":
		return decodeTable(e)
	case "object":
		a := spvxml.NewAttrs(e)
		a.String("type")
		uri := a.Required("uri")
		if err := a.Finish(); err != nil {
			return nil, err
		}

		return &Item{Kind: KindImage, Image: uri}, nil
	case "image":
		a := spvxml.NewAttrs(e)
		a.String("commandName")
		a.String("VDPId")
		if err := a.Finish(); err != nil {
			return nil, err
		}
		content := spvxml.NewContent(e)
		path := content.Next("dataPath")
		if path == nil {
			return nil, fmt.Errorf("%w: image lacks dataPath", errs.ErrInvalidFormat)
		}
		if err := content.End(); err != nil {
			return nil, err
		}

		return &Item{Kind: KindImage, Image: strings.TrimSpace(path.Text)}, nil
	case "graph":
		return &Item{Kind: KindUnsupported, Message: "graphs not yet implemented"}, nil
	case "model":
		return &Item{Kind: KindUnsupported, Message: "models not yet implemented"}, nil
	default:
		return &Item{Kind: KindUnsupported, Message: "trees not yet implemented"}, nil
	}
}

var textKinds = map[string]int{
	"text":       int(TextPlain),
	"title":      int(TextTitle),
	"log":        int(TextLog),
	"page-title": int(TextPageTitle),
}

func decodeText(e *spvxml.Elem) (*Item, error) {
	a := spvxml.NewAttrs(e)
	kind := TextKind(a.Enum("type", textKinds, int(TextPlain)))
	command := a.String("commandName")
	if err := a.Finish(); err != nil {
		return nil, err
	}

	content := spvxml.NewContent(e)
	htmlElem := content.Next("html")
	if htmlElem == nil {
		return nil, fmt.Errorf("%w: text container lacks html content", errs.ErrInvalidFormat)
	}
	if err := content.End(); err != nil {
		return nil, err
	}

	body, font := markup.Decode(htmlElem.Text)

	return &Item{
		Kind:        KindText,
		CommandName: command,
		Text:        &Text{Kind: kind, Content: body, Font: font},
	}, nil
}

func decodeTable(e *spvxml.Elem) (*Item, error) {
	a := spvxml.NewAttrs(e)
	command := a.String("commandName")
	ref := &TableRef{
		SubType: a.String("subType"),
		TableID: a.String("tableId"),
	}
	a.String("type")
	if err := a.Finish(); err != nil {
		return nil, err
	}

	content := spvxml.NewContent(e)
	ts := content.Next("tableStructure")
	if ts == nil {
		return nil, fmt.Errorf("%w: table lacks tableStructure", errs.ErrInvalidFormat)
	}
	if err := content.End(); err != nil {
		return nil, err
	}

	for _, child := range ts.Children {
		switch child.Name {
		case "dataPath":
			ref.DataMember = strings.TrimSpace(child.Text)
		case "path":
			ref.XMLMember = strings.TrimSpace(child.Text)
		default:
			return nil, fmt.Errorf("%w: unexpected <%s> in tableStructure",
				errs.ErrInvalidFormat, child.Name)
		}
	}
	if ref.DataMember == "" {
		return nil, fmt.Errorf("%w: tableStructure lacks dataPath", errs.ErrInvalidFormat)
	}

	return &Item{Kind: KindTable, CommandName: command, Table: ref}, nil
}

var chartSizes = map[string]int{
	"as-is":          int(ChartAsIs),
	"full-height":    int(ChartFullHeight),
	"half-height":    int(ChartHalfHeight),
	"quarter-height": int(ChartQuarterHeight),
}

func decodePageSetup(e *spvxml.Elem) (*PageSetup, error) {
	a := spvxml.NewAttrs(e)
	setup := &PageSetup{
		InitialPageNumber: a.Int("initial-page-number", 1),
		PaperWidth:        a.Dimension("paper-width", 8.5),
		PaperHeight:       a.Dimension("paper-height", 11),
		Margins: [4]float64{
			a.Dimension("margin-left", 0.5),
			a.Dimension("margin-right", 0.5),
			a.Dimension("margin-top", 0.5),
			a.Dimension("margin-bottom", 0.5),
		},
		ObjectSpacing: a.Dimension("space-after", 12.0/72.0),
		ChartSize:     ChartSize(a.Enum("chart-size", chartSizes, int(ChartAsIs))),
	}
	if strings.Contains(a.String("reference-orientation"), "90") {
		setup.Orientation = Landscape
	}
	if err := a.Finish(); err != nil {
		return nil, err
	}

	content := spvxml.NewContent(e)
	if header := content.Next("pageHeader"); header != nil {
		paras, err := decodePageHeading(header)
		if err != nil {
			return nil, err
		}
		setup.Header = paras
	}
	if footer := content.Next("pageFooter"); footer != nil {
		paras, err := decodePageHeading(footer)
		if err != nil {
			return nil, err
		}
		setup.Footer = paras
	}
	if err := content.End(); err != nil {
		return nil, err
	}

	return setup, nil
}

func decodePageHeading(e *spvxml.Elem) ([]markup.Paragraph, error) {
	var out []markup.Paragraph
	content := spvxml.NewContent(e)
	for _, p := range content.All("pageParagraph") {
		inner := spvxml.NewContent(p)
		text := inner.Next("text")
		if text == nil {
			return nil, fmt.Errorf("%w: pageParagraph lacks text", errs.ErrInvalidFormat)
		}
		if err := inner.End(); err != nil {
			return nil, err
		}
		out = append(out, markup.Paragraphs(text.Text)...)
	}
	if err := content.End(); err != nil {
		return nil, err
	}

	return out, nil
}
