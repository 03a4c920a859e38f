package light

import (
	"fmt"

	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/pivot"
	"github.com/arloliu/spv/spvbin"
)

type decoder struct {
	table  *pivot.Table
	recode func(string) string
}

// Decode parses a light binary member into a pivot table. The charset is
// taken from the member's own format metadata; strings already valid as
// UTF-8 are never recoded.
func Decode(data []byte) (*pivot.Table, error) {
	return DecodeWithEncoding(data, "")
}

// DecodeWithEncoding is Decode with the member charset forced.
func DecodeWithEncoding(data []byte, charset string) (*pivot.Table, error) {
	cur := spvbin.NewCursor(data)
	root, ok := spvbin.Eval(cur, tableSchema, &spvbin.Context{})
	if !ok {
		return nil, cur.Err()
	}
	if cur.Remaining() > 0 {
		return nil, fmt.Errorf("%w: expected end of file at offset %#x", errs.ErrInvalidFormat, cur.Ofs())
	}

	if charset == "" {
		charset = memberCharset(root)
	}
	d := &decoder{table: pivot.NewTable(), recode: newRecoder(charset)}
	if err := d.decode(root); err != nil {
		return nil, err
	}

	return d.table, nil
}

// memberCharset finds the charset the member's strings use: the y1
// charset field when present, otherwise the locale's codeset suffix.
func memberCharset(root *spvbin.Record) string {
	formats := root.Field("formats")
	tail := formats.Field("tail").Inner()
	if y1 := tail.Field("x0").Inner().Inner().Field("y1"); y1 != nil {
		if cs := y1.Field("charset").Str(); cs != "" {
			return cs
		}
	}
	if y1 := tail.Field("v3").Inner().Field("x3").Inner().Field("y1"); y1 != nil {
		if cs := y1.Field("charset").Str(); cs != "" {
			return cs
		}
	}

	return encodingFromLocale(formats.Field("locale").Str())
}

func (d *decoder) decode(root *spvbin.Record) error {
	t := d.table

	header := root.Field("header")
	t.RotateInnerColumnLabels = header.Field("rotate_inner_column_labels").Boolv()
	t.RotateOuterRowLabels = header.Field("rotate_outer_row_labels").Boolv()
	t.TableID = header.Field("table_id").Uint()
	t.Look.HeadingWidths[0][0] = int(header.Field("min_col_heading_width").I32v())
	t.Look.HeadingWidths[0][1] = int(header.Field("max_col_heading_width").I32v())
	t.Look.HeadingWidths[1][0] = int(header.Field("min_row_heading_width").I32v())
	t.Look.HeadingWidths[1][1] = int(header.Field("max_row_heading_width").I32v())

	// Footnotes come first so that references inside any value, including
	// footnote contents themselves, resolve.
	fns := root.Field("footnotes")
	if fns.Len() > 0 {
		t.EnsureFootnote(fns.Len() - 1)
	}
	for i := 0; i < fns.Len(); i++ {
		if err := d.decodeFootnote(i, fns.At(i)); err != nil {
			return err
		}
	}

	titles := root.Field("titles")
	var err error
	if t.Title, err = d.valueOpt(titles.Field("user_title").Inner()); err != nil {
		return err
	}
	if t.Subtype, err = d.valueOpt(titles.Field("subtype")); err != nil {
		return err
	}
	if t.Corner, err = d.valueOpt(titles.Field("corner").Inner()); err != nil {
		return err
	}
	if t.Caption, err = d.valueOpt(titles.Field("caption").Inner()); err != nil {
		return err
	}

	areas := root.Field("areas")
	for i := 0; i < int(pivot.NAreas); i++ {
		if err := d.decodeArea(i, areas.Field(areaFieldName(i))); err != nil {
			return err
		}
	}

	if err := d.decodeBorders(root.Field("borders").Inner()); err != nil {
		return err
	}
	d.decodePrintSettings(root.Field("print_settings").Inner())
	ts := root.Field("table_settings").Inner().Inner()
	d.decodeTableSettings(ts)
	if err := d.decodeFormats(root.Field("formats")); err != nil {
		return err
	}

	dims := root.Field("dimensions")
	for i := 0; i < dims.Len(); i++ {
		if err := d.decodeDimension(dims.At(i)); err != nil {
			return err
		}
	}

	axes := root.Field("axes")
	if err := t.BindAxes(
		dimIndexes(axes.Field("layers")),
		dimIndexes(axes.Field("rows")),
		dimIndexes(axes.Field("columns")),
	); err != nil {
		return err
	}

	currentLayer := root.Field("formats").Field("current_layer").Uint()
	if ts != nil {
		currentLayer = ts.Field("current_layer").Uint()
	}
	if err := t.SetCurrentLayer(currentLayer); err != nil {
		return err
	}

	cells := root.Field("cells")
	for i := 0; i < cells.Len(); i++ {
		cell := cells.At(i)
		v, err := d.value(cell.Field("value"))
		if err != nil {
			return err
		}
		if err := t.PutLinear(cell.Field("index").Uint(), v); err != nil {
			return err
		}
	}

	return nil
}

func dimIndexes(r *spvbin.Record) []int {
	out := make([]int, r.Len())
	for i := range out {
		out[i] = int(r.At(i).I32v())
	}

	return out
}

func (d *decoder) decodeFootnote(idx int, r *spvbin.Record) error {
	content, err := d.value(r.Field("content"))
	if err != nil {
		return err
	}
	marker, err := d.valueOpt(r.Field("marker").Inner())
	if err != nil {
		return err
	}
	show := r.Field("show").I32v() > 0
	d.table.SetFootnote(idx, content, marker, show)

	return nil
}

func (d *decoder) decodeArea(i int, r *spvbin.Record) error {
	if r.Field("index").Uint() != uint64(i+1) {
		return fmt.Errorf("%w: bad area index %d for area %d",
			errs.ErrInvalidFormat, r.Field("index").Uint(), i)
	}
	style := r.Field("style").U32v()
	fg, err := pivot.ColorFromString(d.recode(r.Field("fg").Str()), pivot.Black)
	if err != nil {
		return err
	}
	bg, err := pivot.ColorFromString(d.recode(r.Field("bg").Str()), pivot.White)
	if err != nil {
		return err
	}
	halign, _ := pivot.HAlignFromWire(r.Field("halign").U32v())
	valign, _ := pivot.VAlignFromWire(r.Field("valign").U32v())

	area := pivot.AreaStyle{
		Font: pivot.FontStyle{
			Bold:      style&1 != 0,
			Italic:    style&2 != 0,
			Underline: r.Field("underline").Boolv(),
			FG:        fg,
			BG:        bg,
			Typeface:  d.recode(r.Field("typeface").Str()),
			Size:      r.Field("size").Float() / 1.33,
		},
		Cell: pivot.CellStyle{HAlign: halign, VAlign: valign},
	}
	if r.Field("alternate").Boolv() {
		area.AlternateColors = true
		if area.FG2, err = pivot.ColorFromString(d.recode(r.Field("alt_fg").Str()), fg); err != nil {
			return err
		}
		if area.BG2, err = pivot.ColorFromString(d.recode(r.Field("alt_bg").Str()), bg); err != nil {
			return err
		}
	}
	if m := r.Field("margins").Inner(); m != nil {
		area.Cell.Margins = [4]int{
			int(m.Field("left").I32v()),
			int(m.Field("right").I32v()),
			int(m.Field("top").I32v()),
			int(m.Field("bottom").I32v()),
		}
	}
	d.table.Look.Areas[i] = area

	return nil
}

func (d *decoder) decodeBorders(r *spvbin.Record) error {
	if r == nil {
		return nil
	}
	list := r.Field("list")
	for i := 0; i < list.Len(); i++ {
		b := list.At(i)
		btype := b.Field("type").U32v()
		if btype >= uint32(pivot.NBorders) {
			return fmt.Errorf("%w: bad border type %d", errs.ErrInvalidFormat, btype)
		}
		stroke := b.Field("stroke").U32v()
		if stroke > uint32(pivot.StrokeDouble) {
			return fmt.Errorf("%w: bad stroke %d", errs.ErrInvalidFormat, stroke)
		}
		d.table.Look.Borders[btype] = pivot.BorderStyle{
			Stroke: pivot.Stroke(stroke),
			Color:  pivot.ColorFromWire(b.Field("color").U32v()),
		}
	}
	d.table.Look.ShowGridLines = r.Field("show_grid_lines").Boolv()

	return nil
}

func (d *decoder) decodePrintSettings(r *spvbin.Record) {
	if r == nil {
		return
	}
	look := d.table.Look
	look.PrintAllLayers = r.Field("all_layers").Boolv()
	look.PagedLayers = r.Field("paged_layers").Boolv()
	look.FitWidth = r.Field("fit_width").Boolv()
	look.FitLength = r.Field("fit_length").Boolv()
	look.TopContinuation = r.Field("top_continuation").Boolv()
	look.BottomContinuation = r.Field("bottom_continuation").Boolv()
	look.NOrphanLines = int(r.Field("n_orphan_lines").U32v())
	look.ContinuationString = d.recode(r.Field("continuation").Str())
}

func (d *decoder) decodeTableSettings(r *spvbin.Record) {
	if r == nil {
		return
	}
	look := d.table.Look
	look.OmitEmpty = r.Field("omit_empty").Boolv()
	look.RowLabelsInCorner = r.Field("row_labels_in_corner").Boolv()
	look.ShowNumericMarkers = !r.Field("alpha_markers").Boolv()
	look.FootnoteMarkerSuper = r.Field("marker_superscripts").Boolv()
	look.Name = d.recode(r.Field("table_look").Str())
	d.table.Notes = d.recode(r.Field("notes").Str())
}

func (d *decoder) decodeFormats(r *spvbin.Record) error {
	t := d.table
	t.Locale = r.Field("locale").Str()

	y0 := r.Field("y0")
	t.Epoch = int(y0.Field("epoch").I32v())
	t.Decimal = byte(y0.Field("decimal").Uint())
	t.Grouping = byte(y0.Field("grouping").Uint())

	cc := r.Field("custom_currency")
	for i := 0; i < cc.Len() && i < len(t.CCs); i++ {
		t.CCs[i] = d.recode(cc.At(i).Str())
	}

	t.ShowTitle = true
	t.ShowCaption = true
	tail := r.Field("tail").Inner()
	v3 := tail.Field("v3").Inner()
	if x1 := v3.Field("x1x2").Inner().Field("x1"); x1 != nil {
		t.ShowTitle = x1.Field("show_title").Uint() != 10
		t.ShowCaption = x1.Field("show_caption").Boolv()
	}
	if x3 := v3.Field("x3").Inner(); x3 != nil {
		t.SmallValue = x3.Field("small").Float()
		if ext := x3.Field("ext").Inner(); ext != nil {
			t.Dataset = d.recode(ext.Field("dataset").Str())
			t.Datafile = d.recode(ext.Field("datafile").Str())
			t.Date = int64(ext.Field("date").I32v())
		}
	}

	return nil
}

func (d *decoder) decodeDimension(r *spvbin.Record) error {
	name, err := d.value(r.Field("name"))
	if err != nil {
		return err
	}
	root := pivot.NewGroup(name)
	root.ShowLabel = !r.Field("hide_dim_label").Boolv()

	cats := r.Field("categories")
	for i := 0; i < cats.Len(); i++ {
		if err := d.decodeCategory(cats.At(i), root); err != nil {
			return err
		}
	}

	dim := pivot.NewDimension(root)
	dim.HideAllLabels = r.Field("hide_all_labels").Boolv()
	if err := dim.FillLeaves(); err != nil {
		return err
	}
	d.table.AddDimension(dim)

	return nil
}

// decodeCategory adds the wire category to parent. A group marked for
// merging contributes its children directly to the parent instead of
// itself.
func (d *decoder) decodeCategory(r *spvbin.Record, parent *pivot.Category) error {
	name, err := d.value(r.Field("name"))
	if err != nil {
		return err
	}
	body := r.Field("body")
	arm := body.Inner()
	switch body.Tag {
	case 0:
		leaf := pivot.NewLeaf(name, int(arm.Field("leaf_index").I32v()))
		if leaf.DataIndex < 0 {
			return fmt.Errorf("%w: negative leaf index", errs.ErrInvalidFormat)
		}
		if name.Type == pivot.ValueNumeric {
			leaf.Format = name.Numeric.Format
		}
		parent.AddChild(leaf)
	case 1:
		merge := r.Field("merge").Uint() != 0
		target := parent
		if !merge {
			group := pivot.NewGroup(name)
			parent.AddChild(group)
			target = group
		}
		subs := arm.Field("subcats")
		for i := 0; i < subs.Len(); i++ {
			if err := d.decodeCategory(subs.At(i), target); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: bad category tag %d", errs.ErrInvalidFormat, body.Tag)
	}

	return nil
}

// valueOpt is value for records that may be absent.
func (d *decoder) valueOpt(r *spvbin.Record) (*pivot.Value, error) {
	if r == nil {
		return nil, nil
	}

	return d.value(r)
}

func (d *decoder) value(r *spvbin.Record) (*pivot.Value, error) {
	raw := r.Field("raw")
	arm := raw.Inner()

	var v *pivot.Value
	var vmRec *spvbin.Record
	var err error

	switch raw.Tag {
	case 1, 2:
		format, ferr := pivot.FormatFromWire(arm.Field("format").U32v())
		if ferr != nil {
			return nil, ferr
		}
		v = &pivot.Value{Type: pivot.ValueNumeric, Numeric: &pivot.NumericValue{
			Format:     format,
			X:          arm.Field("x").Float(),
			VarName:    d.recode(arm.Field("var_name").Str()),
			ValueLabel: d.recode(arm.Field("value_label").Str()),
			Show:       pivot.Show(arm.Field("show").Uint()),
		}}
	case 3, 6:
		v = &pivot.Value{Type: pivot.ValueText, Text: &pivot.TextValue{
			Local:        d.recode(arm.Field("local").Str()),
			ID:           d.recode(arm.Field("id").Str()),
			C:            d.recode(arm.Field("c").Str()),
			UserProvided: !arm.Field("fixed").Boolv(),
		}}
	case 4:
		format, ferr := pivot.FormatFromWire(arm.Field("format").U32v())
		if ferr != nil {
			return nil, ferr
		}
		v = &pivot.Value{Type: pivot.ValueString, String: &pivot.StringValue{
			S:          d.recode(arm.Field("s").Str()),
			Hex:        format.Type == pivot.FormatAHex,
			VarName:    d.recode(arm.Field("var_name").Str()),
			ValueLabel: d.recode(arm.Field("value_label").Str()),
			Show:       pivot.Show(arm.Field("show").Uint()),
		}}
	case 5:
		v = &pivot.Value{Type: pivot.ValueVariable, Variable: &pivot.VariableValue{
			VarName:  d.recode(arm.Field("var_name").Str()),
			VarLabel: d.recode(arm.Field("var_label").Str()),
			Show:     pivot.Show(arm.Field("show").Uint()),
		}}
	default:
		v, err = d.template(arm)
		if err != nil {
			return nil, err
		}
	}
	vmRec = arm.Field("vm")

	if err := d.valueMod(v, vmRec.Inner()); err != nil {
		return nil, err
	}

	return v, nil
}

func (d *decoder) template(arm *spvbin.Record) (*pivot.Value, error) {
	tv := &pivot.TemplateValue{Local: d.recode(arm.Field("local").Str())}
	args := arm.Field("args")
	for i := 0; i < args.Len(); i++ {
		argUnion := args.At(i)
		argArm := argUnion.Inner()
		var group []*pivot.Value
		if argUnion.Tag == 0 {
			v, err := d.value(argArm.Field("value"))
			if err != nil {
				return nil, err
			}
			group = []*pivot.Value{v}
		} else {
			values := argArm.Field("values")
			for j := 0; j < values.Len(); j++ {
				v, err := d.value(values.At(j))
				if err != nil {
					return nil, err
				}
				group = append(group, v)
			}
		}
		tv.Args = append(tv.Args, group)
	}

	return &pivot.Value{Type: pivot.ValueTemplate, Template: tv}, nil
}

func (d *decoder) valueMod(v *pivot.Value, r *spvbin.Record) error {
	if r == nil {
		return nil
	}
	refs := r.Field("refs")
	for i := 0; i < refs.Len(); i++ {
		ref := int(refs.At(i).Uint())
		if ref >= len(d.table.Footnotes) {
			return fmt.Errorf("%w: bad footnote index: %d >= %d",
				errs.ErrBadReference, ref, len(d.table.Footnotes))
		}
		v.AddFootnote(ref)
	}

	subs := r.Field("subscripts")
	for i := 0; i < subs.Len(); i++ {
		if v.Mod == nil {
			v.Mod = &pivot.ValueMod{}
		}
		v.Mod.Subscripts = append(v.Mod.Subscripts, d.recode(subs.At(i).Str()))
	}

	v3 := r.Field("v3").Inner().Inner()
	if v3 == nil {
		return nil
	}
	if ts := v3.Field("template_string").Inner().Inner(); ts != nil {
		if id := ts.Field("id").Inner(); id != nil {
			if v.Mod == nil {
				v.Mod = &pivot.ValueMod{}
			}
			v.Mod.Template = d.recode(id.Str())
		}
	}
	style := v3.Field("style")
	if font := style.Field("font").Inner(); font != nil {
		fg, err := pivot.ColorFromString(d.recode(font.Field("fg").Str()), pivot.Black)
		if err != nil {
			return err
		}
		bg, err := pivot.ColorFromString(d.recode(font.Field("bg").Str()), pivot.White)
		if err != nil {
			return err
		}
		if v.Mod == nil {
			v.Mod = &pivot.ValueMod{}
		}
		v.Mod.Font = &pivot.FontStyle{
			Bold:      font.Field("bold").Boolv(),
			Italic:    font.Field("italic").Boolv(),
			Underline: font.Field("underline").Boolv(),
			Show:      font.Field("show").Boolv(),
			FG:        fg,
			BG:        bg,
			Typeface:  d.recode(font.Field("typeface").Str()),
			Size:      float64(font.Field("size").Uint()) / 1.33,
		}
	}
	if cell := style.Field("cell").Inner(); cell != nil {
		halign, _ := pivot.HAlignFromWire(cell.Field("halign").U32v())
		valign, _ := pivot.VAlignFromWire(cell.Field("valign").U32v())
		if v.Mod == nil {
			v.Mod = &pivot.ValueMod{}
		}
		v.Mod.Cell = &pivot.CellStyle{
			HAlign:        halign,
			VAlign:        valign,
			DecimalOffset: cell.Field("decimal_offset").Float(),
			Margins: [4]int{
				int(int16(cell.Field("left").Uint())),
				int(int16(cell.Field("right").Uint())),
				int(int16(cell.Field("top").Uint())),
				int(int16(cell.Field("bottom").Uint())),
			},
		}
	}

	return nil
}
