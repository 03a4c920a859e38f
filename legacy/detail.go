package legacy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/pivot"
	"github.com/arloliu/spv/spvxml"
)

// Visualization is the decoded detail XML member. It names data series,
// arranges them onto axes, and carries the table's labels.
type Visualization struct {
	Name string

	// Vars lists sourceVariable and derivedVariable nodes in document
	// order.
	Vars []*VarNode

	Graph       *Graph
	LabelFrames []*LabelFrame

	ShowGridLines bool

	styles map[string]*styleElem
	reg    *spvxml.Registry
}

// VarNode is one variable node; exactly one of Source and Derived is set.
type VarNode struct {
	ID      string
	Source  *SourceVariable
	Derived *DerivedVariable
}

// SourceVariable binds a series to a variable of the binary data member.
type SourceVariable struct {
	Source     string
	SourceName string
	Label      string
	LabelVarID string
	Formats    []*FormatElem
}

// DerivedVariable computes a series from an expression over other series.
type DerivedVariable struct {
	Value           string
	ValueMapEntries []ValueMapEntry
	Formats         []*FormatElem
}

// FormatElem is a format or stringFormat child: an output format plus
// relabels and footnote-defining affixes.
type FormatElem struct {
	IsString            bool
	Format              pivot.Format
	TryStringsAsNumbers bool
	Relabels            []Relabel
	Affixes             []Affix
}

// Relabel renames one numeric category.
type Relabel struct {
	From float64
	To   string
}

// ValueMapEntry renames one or more semicolon-separated numeric
// categories of a derived variable.
type ValueMapEntry struct {
	From string
	To   string
}

// Affix attaches a footnote reference to the values it decorates.
type Affix struct {
	DefinesReference int
}

// Graph holds the axis layout and the cell labeling.
type Graph struct {
	CellStyleRef string
	Faceting     *Faceting
	FacetLevels  []*FacetLevel
	Interval     *Interval
}

// Faceting nests series onto the column, row, and layer axes.
type Faceting struct {
	Columns []string
	Rows    []string
	Layers1 []*Layer
	Layers2 []*Layer
}

// Layer is one layer-axis series with its selected category.
type Layer struct {
	VarID string
	Value string
}

// FacetLevel carries per-axis-nesting-level label settings.
type FacetLevel struct {
	Level         int
	HasAxisLabel  bool
	LabelStyleRef string
	LabelAngle    int
}

// Interval holds the cell series, its formats, and cell footnotes.
type Interval struct {
	Labeling *Labeling
}

// Labeling binds the cell series and its companions.
type Labeling struct {
	VarID      string
	Footnotes  []*Footnotes
	Formatting []*Formatting
}

// Footnotes defines footnote contents and binds the series that refers
// to them per cell.
type Footnotes struct {
	VarID    string
	Mappings []FootnoteMapping
}

// FootnoteMapping is one footnote definition.
type FootnoteMapping struct {
	DefinesReference int
	To               string
}

// Formatting binds the per-cell format series and maps raw format codes
// to explicit formats.
type Formatting struct {
	VarID    string
	Mappings []FormatMapping
}

// FormatMapping overrides the decoding of one raw format code.
type FormatMapping struct {
	From   uint32
	Format pivot.Format
	HasFmt bool
}

// LabelFrame carries the title, caption, layer, or footnote text blocks.
type LabelFrame struct {
	Purpose int
	Texts   []FrameText
}

// Frame label purposes.
const (
	PurposeNone = iota
	PurposeTitle
	PurposeSubTitle
	PurposeFootnote
	PurposeLayer
)

// FrameText is one text run of a label frame. References are 1-based;
// zero means absent.
type FrameText struct {
	Text             string
	UsesReference    int
	DefinesReference int
}

type styleElem struct {
	id      string
	visible bool
	width   string
}

var purposeNames = map[string]int{
	"title":    PurposeTitle,
	"subTitle": PurposeSubTitle,
	"footnote": PurposeFootnote,
	"layer":    PurposeLayer,
}

// ParseDetail decodes a detail XML document into its model. Series
// references are collected into a registry and validated; unknown
// elements are skipped so that newer writers still decode.
func ParseDetail(root *spvxml.Elem) (*Visualization, error) {
	if err := spvxml.CheckRoot(root, "visualization"); err != nil {
		return nil, err
	}

	attrs := spvxml.NewAttrs(root)
	v := &Visualization{
		Name:   attrs.Required("name"),
		styles: make(map[string]*styleElem),
		reg:    spvxml.NewRegistry(),
	}
	attrs.String("creator")
	attrs.String("date")
	attrs.String("lang")
	attrs.String("type")
	attrs.String("version")
	attrs.Ref("style")
	if err := attrs.Finish(); err != nil {
		return nil, err
	}

	if err := collectStyles(root, v); err != nil {
		return nil, err
	}

	for _, child := range root.Children {
		var err error
		switch child.Name {
		case "sourceVariable", "derivedVariable":
			err = parseVarNode(child, v)
		case "graph":
			v.Graph, err = parseGraph(child)
		case "labelFrame":
			err = parseLabelFrame(child, v)
		case "container":
			for _, sub := range child.Children {
				if sub.Name == "labelFrame" {
					if err = parseLabelFrame(sub, v); err != nil {
						break
					}
				}
			}
		case "extension":
			if sg, ok := child.Attr("showGridline"); ok {
				v.ShowGridLines = sg == "true"
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if v.Graph == nil {
		return nil, fmt.Errorf("%w: visualization lacks a graph element", errs.ErrInvalidFormat)
	}
	if err := v.resolveRefs(); err != nil {
		return nil, err
	}

	return v, nil
}

// Style nodes and variable nodes share one ID space; refs name them by
// kind so a wrongly typed reference is reported.
func collectStyles(root *spvxml.Elem, v *Visualization) error {
	var walk func(e *spvxml.Elem) error
	walk = func(e *spvxml.Elem) error {
		if e.Name == "style" && e.ID() != "" {
			attrs := spvxml.NewAttrs(e)
			s := &styleElem{
				id:      attrs.String("id"),
				visible: attrs.Bool("visible", true),
				width:   attrs.String("width"),
			}
			v.styles[s.id] = s
			if err := v.reg.Register(s.id, "style", s); err != nil {
				return err
			}
		}
		for _, c := range e.Children {
			if err := walk(c); err != nil {
				return err
			}
		}

		return nil
	}

	return walk(root)
}

func parseVarNode(e *spvxml.Elem, v *Visualization) error {
	attrs := spvxml.NewAttrs(e)
	node := &VarNode{ID: attrs.Required("id")}

	if e.Name == "sourceVariable" {
		node.Source = &SourceVariable{
			Source:     attrs.Required("source"),
			SourceName: attrs.Required("sourceName"),
			Label:      attrs.String("label"),
			LabelVarID: attrs.Ref("labelVariable"),
		}
		attrs.String("categorical")
		attrs.String("dependsOn")
		attrs.String("domain")
	} else {
		node.Derived = &DerivedVariable{Value: attrs.Required("value")}
		attrs.String("categorical")
		attrs.String("dependsOn")
	}
	if err := attrs.Finish(); err != nil {
		return err
	}

	for _, child := range e.Children {
		switch child.Name {
		case "format", "stringFormat":
			f, err := parseFormatElem(child)
			if err != nil {
				return err
			}
			if node.Source != nil {
				node.Source.Formats = append(node.Source.Formats, f)
			} else {
				node.Derived.Formats = append(node.Derived.Formats, f)
			}
		case "valueMapEntry":
			if node.Derived == nil {
				return fmt.Errorf("%w: valueMapEntry outside derivedVariable", errs.ErrInvalidFormat)
			}
			a := spvxml.NewAttrs(child)
			vme := ValueMapEntry{From: a.Required("from"), To: a.Required("to")}
			if err := a.Finish(); err != nil {
				return err
			}
			node.Derived.ValueMapEntries = append(node.Derived.ValueMapEntries, vme)
		}
	}

	v.Vars = append(v.Vars, node)

	return v.reg.Register(node.ID, "variable", node)
}

func parseFormatElem(e *spvxml.Elem) (*FormatElem, error) {
	attrs := spvxml.NewAttrs(e)
	f := &FormatElem{IsString: e.Name == "stringFormat"}
	if !f.IsString {
		f.TryStringsAsNumbers = attrs.Bool("tryStringsAsNumbers", false)
		f.Format = decodeFormatAttrs(attrs)
	}
	attrs.Finish()

	for _, child := range e.Children {
		switch child.Name {
		case "relabel":
			a := spvxml.NewAttrs(child)
			r := Relabel{From: a.Real("from", 0), To: a.Required("to")}
			if err := a.Finish(); err != nil {
				return nil, err
			}
			f.Relabels = append(f.Relabels, r)
		case "affix":
			a := spvxml.NewAttrs(child)
			if ref := a.Int("definesReference", 0); ref > 0 {
				f.Affixes = append(f.Affixes, Affix{DefinesReference: ref})
			}
		}
	}

	return f, nil
}

// decodeFormatAttrs approximates a format element as an output format.
// Dates and times keep only the attributes that select the type; number
// formats keep grouping, scientific notation, affixes, and decimals.
func decodeFormatAttrs(attrs *spvxml.Attrs) pivot.Format {
	base := attrs.String("baseFormat")
	switch base {
	case "date", "dateTime":
		return decodeDateFormat(attrs, base == "dateTime")
	case "time", "elapsedTime":
		return decodeTimeFormat(attrs)
	}

	typ := pivot.FormatF
	switch {
	case attrs.Bool("scientific", false):
		typ = pivot.FormatE
	case attrs.String("prefix") == "$":
		typ = pivot.FormatDollar
	case attrs.String("suffix") == "%":
		typ = pivot.FormatPct
	case attrs.Bool("useGrouping", false):
		typ = pivot.FormatComma
	}
	d := attrs.Int("maximumFractionDigits", -1)
	if d < 0 || d > 15 {
		d = 2
	}

	return pivot.Format{Type: typ, Width: 40, Decimals: d}
}

func decodeDateFormat(attrs *spvxml.Attrs, dateTime bool) pivot.Format {
	mdy := attrs.String("mdyOrder")
	var typ pivot.FormatType
	switch {
	case dateTime:
		if mdy == "yearMonthDay" {
			typ = pivot.FormatYmdHms
		} else {
			typ = pivot.FormatDateTime
		}
	case attrs.Bool("showQuarter", false):
		typ = pivot.FormatQYr
	case attrs.Bool("showWeek", false):
		typ = pivot.FormatWkYr
	case mdy == "dayMonthYear":
		mf := attrs.String("monthFormat")
		if mf == "number" || mf == "paddedNumber" {
			typ = pivot.FormatEDate
		} else {
			typ = pivot.FormatDate
		}
	case mdy == "yearMonthDay":
		typ = pivot.FormatSDate
	default:
		typ = pivot.FormatADate
	}

	w := minFormatWidth(typ)
	if !attrs.Bool("yearAbbreviation", false) {
		w += 2
	}

	return pivot.Format{Type: typ, Width: w}
}

func decodeTimeFormat(attrs *spvxml.Attrs) pivot.Format {
	var typ pivot.FormatType
	switch {
	case attrs.Bool("showDay", false):
		typ = pivot.FormatDTime
	case attrs.Bool("showHour", true):
		typ = pivot.FormatTime
	default:
		typ = pivot.FormatMTime
	}
	w := minFormatWidth(typ)
	d := 0
	if attrs.Bool("showSecond", false) {
		w += 3
		if attrs.Bool("showMillis", false) {
			d = 3
			w += d + 1
		}
	}

	return pivot.Format{Type: typ, Width: w, Decimals: d}
}

func minFormatWidth(t pivot.FormatType) int {
	switch t {
	case pivot.FormatDate, pivot.FormatADate, pivot.FormatEDate, pivot.FormatSDate:
		return 9
	case pivot.FormatJDate, pivot.FormatQYr, pivot.FormatMoYr, pivot.FormatWkYr:
		return 6
	case pivot.FormatDateTime, pivot.FormatYmdHms:
		return 17
	case pivot.FormatDTime:
		return 8
	case pivot.FormatTime, pivot.FormatMTime:
		return 5
	default:
		return 1
	}
}

func parseGraph(e *spvxml.Elem) (*Graph, error) {
	attrs := spvxml.NewAttrs(e)
	g := &Graph{CellStyleRef: attrs.Ref("cellStyle")}
	attrs.Ref("style")
	attrs.Finish()

	for _, child := range e.Children {
		var err error
		switch child.Name {
		case "faceting":
			g.Faceting, err = parseFaceting(child)
		case "facetLayout":
			err = parseFacetLayout(child, g)
		case "interval":
			g.Interval, err = parseInterval(child)
		}
		if err != nil {
			return nil, err
		}
	}
	if g.Faceting == nil {
		g.Faceting = &Faceting{}
	}
	if g.Interval == nil || g.Interval.Labeling == nil {
		return nil, fmt.Errorf("%w: graph lacks an interval labeling", errs.ErrInvalidFormat)
	}

	return g, nil
}

func parseFaceting(e *spvxml.Elem) (*Faceting, error) {
	f := &Faceting{}
	crossSeen := false
	for _, child := range e.Children {
		switch child.Name {
		case "cross":
			crossSeen = true
			content := spvxml.NewContent(child)
			cols := content.Next("nest", "unity")
			rows := content.Next("nest", "unity")
			if rows == nil {
				return nil, fmt.Errorf("%w: cross needs two nestings", errs.ErrInvalidFormat)
			}
			f.Columns = nestRefs(cols)
			f.Rows = nestRefs(rows)
		case "layer":
			a := spvxml.NewAttrs(child)
			l := &Layer{VarID: a.Ref("variable"), Value: a.Required("value")}
			if err := a.Finish(); err != nil {
				return nil, err
			}
			if !crossSeen {
				f.Layers1 = append(f.Layers1, l)
			} else {
				f.Layers2 = append(f.Layers2, l)
			}
		}
	}
	if !crossSeen {
		return nil, fmt.Errorf("%w: faceting lacks a cross element", errs.ErrInvalidFormat)
	}

	return f, nil
}

func nestRefs(e *spvxml.Elem) []string {
	if e == nil || e.Name != "nest" {
		return nil
	}
	var refs []string
	for _, child := range e.Children {
		if child.Name == "variableReference" {
			if ref, ok := child.Attr("ref"); ok {
				refs = append(refs, ref)
			}
		}
	}

	return refs
}

func parseFacetLayout(e *spvxml.Elem, g *Graph) error {
	for _, child := range e.Children {
		if child.Name != "facetLevel" {
			continue
		}
		a := spvxml.NewAttrs(child)
		fl := &FacetLevel{Level: a.Int("level", 0)}
		a.Real("gap", 0)
		if err := a.Finish(); err != nil {
			return err
		}
		for _, axis := range child.Children {
			if axis.Name != "axis" {
				continue
			}
			for _, sub := range axis.Children {
				switch sub.Name {
				case "label":
					fl.HasAxisLabel = true
					fl.LabelStyleRef, _ = sub.Attr("style")
				case "majorTicks":
					la := spvxml.NewAttrs(sub)
					fl.LabelAngle = la.Int("labelAngle", 0)
				}
			}
		}
		g.FacetLevels = append(g.FacetLevels, fl)
	}

	return nil
}

func parseInterval(e *spvxml.Elem) (*Interval, error) {
	iv := &Interval{}
	for _, child := range e.Children {
		switch child.Name {
		case "labeling":
			l, err := parseLabeling(child)
			if err != nil {
				return nil, err
			}
			iv.Labeling = l
		case "footnotes":
			f, err := parseFootnotes(child)
			if err != nil {
				return nil, err
			}
			if iv.Labeling == nil {
				iv.Labeling = &Labeling{}
			}
			iv.Labeling.Footnotes = append(iv.Labeling.Footnotes, f)
		}
	}

	return iv, nil
}

func parseLabeling(e *spvxml.Elem) (*Labeling, error) {
	attrs := spvxml.NewAttrs(e)
	l := &Labeling{VarID: attrs.Ref("variable")}
	attrs.Ref("style")
	attrs.Finish()

	for _, child := range e.Children {
		switch child.Name {
		case "footnotes":
			f, err := parseFootnotes(child)
			if err != nil {
				return nil, err
			}
			l.Footnotes = append(l.Footnotes, f)
		case "formatting":
			f, err := parseFormatting(child)
			if err != nil {
				return nil, err
			}
			l.Formatting = append(l.Formatting, f)
		}
	}

	return l, nil
}

func parseFootnotes(e *spvxml.Elem) (*Footnotes, error) {
	attrs := spvxml.NewAttrs(e)
	f := &Footnotes{VarID: attrs.Ref("variable")}
	attrs.String("superscript")
	attrs.Finish()

	for _, child := range e.Children {
		if child.Name != "footnoteMapping" {
			continue
		}
		a := spvxml.NewAttrs(child)
		fm := FootnoteMapping{
			DefinesReference: a.Int("definesReference", 0),
			To:               a.Required("to"),
		}
		a.String("from")
		if err := a.Finish(); err != nil {
			return nil, err
		}
		f.Mappings = append(f.Mappings, fm)
	}

	return f, nil
}

func parseFormatting(e *spvxml.Elem) (*Formatting, error) {
	attrs := spvxml.NewAttrs(e)
	f := &Formatting{VarID: attrs.Ref("variable")}
	attrs.Finish()

	for _, child := range e.Children {
		if child.Name != "formatMapping" {
			continue
		}
		a := spvxml.NewAttrs(child)
		fm := FormatMapping{From: uint32(a.Int("from", 0))}
		if err := a.Finish(); err != nil {
			return nil, err
		}
		for _, sub := range child.Children {
			if sub.Name == "format" {
				fa := spvxml.NewAttrs(sub)
				fm.Format = decodeFormatAttrs(fa)
				fm.HasFmt = true
			}
		}
		f.Mappings = append(f.Mappings, fm)
	}

	return f, nil
}

func parseLabelFrame(e *spvxml.Elem, v *Visualization) error {
	for _, child := range e.Children {
		if child.Name != "label" {
			continue
		}
		attrs := spvxml.NewAttrs(child)
		lf := &LabelFrame{Purpose: attrs.Enum("purpose", purposeNames, PurposeNone)}
		attrs.Ref("style")
		attrs.Ref("textFrameStyle")
		attrs.Finish()

		for _, t := range child.Children {
			if t.Name != "text" {
				continue
			}
			ta := spvxml.NewAttrs(t)
			ft := FrameText{
				Text:             t.Text,
				UsesReference:    ta.Int("usesReference", 0),
				DefinesReference: ta.Int("definesReference", 0),
			}
			lf.Texts = append(lf.Texts, ft)
		}
		v.LabelFrames = append(v.LabelFrames, lf)
	}

	return nil
}

// resolveRefs verifies every series and style reference against the
// registry so a dangling or wrongly typed ref fails before decoding.
func (v *Visualization) resolveRefs() error {
	check := func(id, kind string) error {
		if id == "" {
			return nil
		}
		_, err := v.reg.Resolve(id, kind)

		return err
	}

	for _, node := range v.Vars {
		if node.Source != nil && node.Source.LabelVarID != "" {
			if err := check(node.Source.LabelVarID, "variable"); err != nil {
				return err
			}
		}
	}
	f := v.Graph.Faceting
	for _, refs := range [][]string{f.Columns, f.Rows} {
		for _, ref := range refs {
			if err := check(ref, "variable"); err != nil {
				return err
			}
		}
	}
	for _, layers := range [][]*Layer{f.Layers1, f.Layers2} {
		for _, l := range layers {
			if err := check(l.VarID, "variable"); err != nil {
				return err
			}
		}
	}
	l := v.Graph.Interval.Labeling
	if err := check(l.VarID, "variable"); err != nil {
		return err
	}
	for _, fn := range l.Footnotes {
		if err := check(fn.VarID, "variable"); err != nil {
			return err
		}
	}
	for _, fm := range l.Formatting {
		if err := check(fm.VarID, "variable"); err != nil {
			return err
		}
	}

	return check(v.Graph.CellStyleRef, "style")
}

// cellWidthRange parses the legacy "NN%;MMpt;KKpt" column width hint.
func (v *Visualization) cellWidthRange() (minPt, maxPt int, ok bool) {
	if v.Graph == nil || v.Graph.CellStyleRef == "" {
		return 0, 0, false
	}
	s, found := v.styles[v.Graph.CellStyleRef]
	if !found || s.width == "" {
		return 0, 0, false
	}
	parts := strings.Split(s.width, ";")
	if len(parts) != 3 || !strings.HasSuffix(parts[0], "%") {
		return 0, 0, false
	}
	minW, err1 := strconv.Atoi(strings.TrimSuffix(parts[1], "pt"))
	maxW, err2 := strconv.Atoi(strings.TrimSuffix(parts[2], "pt"))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}

	return minW, maxW, true
}

// styleVisible reports whether the referenced style is visible; an
// unresolved ref counts as visible.
func (v *Visualization) styleVisible(ref string) bool {
	if ref == "" {
		return true
	}
	if s, ok := v.styles[ref]; ok {
		return s.visible
	}

	return true
}
