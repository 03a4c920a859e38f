// Package look reads binary table-look (.tlo) files into the pivot
// presentation model.
//
// A .tlo file is a sequence of tagged records, each introduced by
// \xff\xff\0\0, a 16-bit length, and the record name. PTTableLook
// carries the layout flags, PVSeparatorStyle the row and column
// separator lines, PVCellStyle and PVTextStyle the area styles, and an
// optional trailing block holds the frame borders, the continuation
// text, and the heading width ranges that version 2 files add.
package look

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/arloliu/spv/endian"
	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/pivot"
	"github.com/arloliu/spv/spvbin"
)

var le = endian.GetLittleEndianEngine()

// tag matches one record introducer: the \xff\xff\0\0 marker, the
// little-endian name length, and the name itself.
func tagLit(name string) *spvbin.Production {
	b := []byte{0xff, 0xff, 0x00, 0x00, byte(len(name)), byte(len(name) >> 8)}

	return spvbin.Lit(append(b, name...)...)
}

// u8String is a byte-length-prefixed ISO-8859-1 string.
var u8String = spvbin.Struct("u8string",
	spvbin.F("n", spvbin.U8()),
	spvbin.F("chars", spvbin.Repeat("n", spvbin.U8())),
)

// separator is one border line: absent, or a color with style and width.
var separator = spvbin.Union("separator", spvbin.U16(le),
	map[uint64]*spvbin.Production{
		0: spvbin.Struct("no_line"),
		1: spvbin.Struct("line",
			spvbin.F("color", spvbin.U32(le)),
			spvbin.F("style", spvbin.U16(le)),
			spvbin.F("width", spvbin.U16(le)),
		),
	}, nil)

// areaColor is a background given as two endpoint colors and a 0..10
// shading position between them.
var areaColor = spvbin.Struct("area_color",
	spvbin.F("pad1", spvbin.Lit(0x00, 0x01, 0x00)),
	spvbin.F("color10", spvbin.U32(le)),
	spvbin.F("color0", spvbin.U32(le)),
	spvbin.F("shading", spvbin.U8()),
	spvbin.F("pad2", spvbin.Lit(0x00)),
)

var areaStyle = spvbin.Struct("area_style",
	spvbin.F("valign", spvbin.U16(le)),
	spvbin.F("halign", spvbin.U16(le)),
	spvbin.F("decimal_offset", spvbin.U16(le)),
	spvbin.F("left_margin", spvbin.U16(le)),
	spvbin.F("right_margin", spvbin.U16(le)),
	spvbin.F("top_margin", spvbin.U16(le)),
	spvbin.F("bottom_margin", spvbin.U16(le)),
	spvbin.F("pad1", spvbin.Lit(0x00, 0x00, 0x01, 0x00)),
	spvbin.F("font_size", spvbin.I32(le)),
	spvbin.F("stretch", spvbin.U16(le)),
	spvbin.F("pad2", spvbin.Lit(0x00, 0x00)),
	spvbin.F("rotation_angle", spvbin.U32(le)),
	spvbin.F("pad3", spvbin.Lit(0x00, 0x00, 0x00, 0x00)),
	spvbin.F("weight", spvbin.U16(le)),
	spvbin.F("pad4", spvbin.Lit(0x00, 0x00)),
	spvbin.F("italic", spvbin.Bool()),
	spvbin.F("underline", spvbin.Bool()),
	spvbin.F("strike_through", spvbin.Bool()),
	spvbin.F("rtf_charset", spvbin.U32(le)),
	spvbin.F("x", spvbin.U8()),
	spvbin.F("font_name", u8String),
	spvbin.F("text_color", spvbin.U32(le)),
	spvbin.F("pad5", spvbin.Lit(0x00, 0x00)),
)

// mostAreas styles one area other than the title: a background color
// block and a text style block, each behind its own marker.
var mostAreas = spvbin.Struct("most_areas",
	spvbin.F("pad1", spvbin.Lit(0x06, 0x80)),
	spvbin.F("color", areaColor),
	spvbin.F("pad2", spvbin.Lit(0x08, 0x80, 0x00)),
	spvbin.F("style", areaStyle),
)

var ptTableLook = spvbin.Struct("pt_table_look",
	spvbin.F("tag", tagLit("PTTableLook")),
	spvbin.F("version", spvbin.U8()),
	spvbin.F("flags", spvbin.U16(le)),
	spvbin.F("pad1", spvbin.Lit(0x00, 0x00)),
	spvbin.F("nested_row_labels", spvbin.Bool()),
	spvbin.F("pad2", spvbin.Lit(0x00)),
	spvbin.F("footnote_marker_subscripts", spvbin.Bool()),
	spvbin.F("pad3", spvbin.Lit(0x00, 0x36, 0x00, 0x00, 0x00, 0x12, 0x00, 0x00, 0x00)),
)

var pvSeparatorStyle = spvbin.Struct("pv_separator_style",
	spvbin.F("tag", tagLit("PVSeparatorStyle")),
	spvbin.F("pad1", spvbin.Lit(0x00)),
	spvbin.F("dim_row_horz", separator),
	spvbin.F("dim_row_vert", separator),
	spvbin.F("cat_row_horz", separator),
	spvbin.F("cat_row_vert", separator),
	spvbin.F("pad2", spvbin.Lit(0x03, 0x80, 0x00)),
	spvbin.F("dim_col_horz", separator),
	spvbin.F("dim_col_vert", separator),
	spvbin.F("cat_col_horz", separator),
	spvbin.F("cat_col_vert", separator),
)

var pvCellStyle = spvbin.Struct("pv_cell_style",
	spvbin.F("tag", tagLit("PVCellStyle")),
	spvbin.F("title_color", areaColor),
)

var pvTextStyle = spvbin.Struct("pv_text_style",
	spvbin.F("tag", tagLit("PVTextStyle")),
	spvbin.F("pad1", spvbin.Lit(0x00)),
	spvbin.F("title_style", areaStyle),
	spvbin.F("layers", mostAreas),
	spvbin.F("corner", mostAreas),
	spvbin.F("row_labels", mostAreas),
	spvbin.F("column_labels", mostAreas),
	spvbin.F("data", mostAreas),
	spvbin.F("caption", mostAreas),
	spvbin.F("footer", mostAreas),
)

// v2Styles is the trailing block of version 2 files: frame borders, the
// continuation text, and the heading width ranges.
var v2Styles = spvbin.Struct("v2_styles",
	spvbin.F("title", separator),
	spvbin.F("left_inner", separator),
	spvbin.F("right_inner", separator),
	spvbin.F("top_inner", separator),
	spvbin.F("bottom_inner", separator),
	spvbin.F("left_outer", separator),
	spvbin.F("right_outer", separator),
	spvbin.F("top_outer", separator),
	spvbin.F("bottom_outer", separator),
	spvbin.F("data_left", separator),
	spvbin.F("data_top", separator),
	spvbin.F("continuation", u8String),
	spvbin.F("min_col_width", spvbin.I32(le)),
	spvbin.F("max_col_width", spvbin.I32(le)),
	spvbin.F("min_row_width", spvbin.I32(le)),
	spvbin.F("max_row_width", spvbin.I32(le)),
)

var tableLookSchema = spvbin.Struct("table_look",
	spvbin.F("pt", ptTableLook),
	spvbin.F("ss", pvSeparatorStyle),
	spvbin.F("cs", pvCellStyle),
	spvbin.F("ts", pvTextStyle),
	spvbin.F("v2", spvbin.Maybe(v2Styles)),
)

// Decode reads a .tlo file into a look, starting from the built-in
// defaults.
func Decode(in []byte) (*pivot.Look, error) {
	c := spvbin.NewCursor(in)
	root, ok := spvbin.Eval(c, tableLookSchema, &spvbin.Context{})
	if !ok {
		return nil, c.Err()
	}
	if c.Remaining() > 0 {
		return nil, fmt.Errorf("%w: unexpected %d bytes following table look data",
			errs.ErrInvalidFormat, c.Remaining())
	}
	if v := root.Get("pt", "version").Uint(); v != 0 && v != 2 {
		return nil, fmt.Errorf("%w: PTTableLook version %d not supported",
			errs.ErrInvalidFormat, v)
	}

	out := pivot.DefaultLook()

	pt := root.Field("pt")
	flags := pt.Field("flags").Uint()
	out.OmitEmpty = flags&0x02 != 0
	out.RowLabelsInCorner = !pt.Field("nested_row_labels").Boolv()
	out.ShowNumericMarkers = flags&0x04 != 0
	out.FootnoteMarkerSuper = !pt.Field("footnote_marker_subscripts").Boolv()
	out.PrintAllLayers = flags&0x08 != 0
	out.FitWidth = flags&0x10 != 0
	out.FitLength = flags&0x20 != 0
	out.PagedLayers = flags&0x40 != 0
	out.TopContinuation = flags&0x80 != 0
	out.BottomContinuation = flags&0x100 != 0

	ss := root.Field("ss")
	rowBorders := [4]pivot.Border{
		pivot.BorderDimRowHorz, pivot.BorderDimRowVert,
		pivot.BorderCatRowHorz, pivot.BorderCatRowVert,
	}
	for i, name := range []string{"dim_row_horz", "dim_row_vert", "cat_row_horz", "cat_row_vert"} {
		out.Borders[rowBorders[i]] = decodeBorder(ss.Field(name))
	}
	colBorders := [4]pivot.Border{
		pivot.BorderDimColHorz, pivot.BorderDimColVert,
		pivot.BorderCatColHorz, pivot.BorderCatColVert,
	}
	for i, name := range []string{"dim_col_horz", "dim_col_vert", "cat_col_horz", "cat_col_vert"} {
		out.Borders[colBorders[i]] = decodeBorder(ss.Field(name))
	}

	if v2 := root.Field("v2").Inner(); v2 != nil {
		frameBorders := [11]pivot.Border{
			pivot.BorderTitle,
			pivot.BorderInnerLeft, pivot.BorderInnerRight,
			pivot.BorderInnerTop, pivot.BorderInnerBottom,
			pivot.BorderOuterLeft, pivot.BorderOuterRight,
			pivot.BorderOuterTop, pivot.BorderOuterBottom,
			pivot.BorderDataLeft, pivot.BorderDataTop,
		}
		for i, name := range []string{
			"title", "left_inner", "right_inner", "top_inner", "bottom_inner",
			"left_outer", "right_outer", "top_outer", "bottom_outer",
			"data_left", "data_top",
		} {
			out.Borders[frameBorders[i]] = decodeBorder(v2.Field(name))
		}
		out.ContinuationString = decodeString(v2.Field("continuation"))
		out.HeadingWidths[0] = [2]int{
			int(v2.Field("min_col_width").I32v()), int(v2.Field("max_col_width").I32v()),
		}
		out.HeadingWidths[1] = [2]int{
			int(v2.Field("min_row_width").I32v()), int(v2.Field("max_row_width").I32v()),
		}
	} else {
		out.Borders[pivot.BorderTitle].Stroke = pivot.StrokeNone
		for _, b := range []pivot.Border{
			pivot.BorderInnerLeft, pivot.BorderInnerTop,
			pivot.BorderInnerRight, pivot.BorderInnerBottom,
		} {
			out.Borders[b].Stroke = pivot.StrokeSolid
		}
		for _, b := range []pivot.Border{
			pivot.BorderOuterLeft, pivot.BorderOuterTop,
			pivot.BorderOuterRight, pivot.BorderOuterBottom,
			pivot.BorderDataLeft, pivot.BorderDataTop,
		} {
			out.Borders[b].Stroke = pivot.StrokeNone
		}
		out.HeadingWidths[0] = [2]int{36, 72}
		out.HeadingWidths[1] = [2]int{36, 120}
	}

	cs := root.Field("cs")
	ts := root.Field("ts")
	out.Areas[pivot.AreaTitle] = decodeArea(cs.Field("title_color"), ts.Field("title_style"))

	textAreas := [7]pivot.Area{
		pivot.AreaLayers, pivot.AreaCorner, pivot.AreaRowLabels,
		pivot.AreaColumnLabels, pivot.AreaData, pivot.AreaCaption,
		pivot.AreaFooter,
	}
	for i, name := range []string{
		"layers", "corner", "row_labels", "column_labels", "data", "caption", "footer",
	} {
		ma := ts.Field(name)
		out.Areas[textAreas[i]] = decodeArea(ma.Field("color"), ma.Field("style"))
	}

	return out, nil
}

// decodeColor unpacks the BGR-ordered color word of .tlo files.
func decodeColor(u32 uint32) pivot.Color {
	return pivot.Color{
		Alpha: 0xff,
		R:     uint8(u32),
		G:     uint8(u32 >> 8),
		B:     uint8(u32 >> 16),
	}
}

func decodeBorder(sep *spvbin.Record) pivot.BorderStyle {
	if sep.Tag == 0 {
		return pivot.BorderStyle{Stroke: pivot.StrokeNone, Color: pivot.Black}
	}
	line := sep.Inner()
	out := pivot.BorderStyle{Color: decodeColor(line.Field("color").U32v())}
	switch line.Field("style").Uint() {
	case 0:
		switch line.Field("width").Uint() {
		case 0:
			out.Stroke = pivot.StrokeThin
		case 1:
			out.Stroke = pivot.StrokeSolid
		default:
			out.Stroke = pivot.StrokeThick
		}
	case 1:
		out.Stroke = pivot.StrokeDouble
	default:
		out.Stroke = pivot.StrokeDashed
	}

	return out
}

// decodeAreaColor blends the two endpoint colors at the shading
// position: 0 yields the first color, 10 the second.
func decodeAreaColor(rec *spvbin.Record) pivot.Color {
	c0 := decodeColor(rec.Field("color0").U32v())
	c10 := decodeColor(rec.Field("color10").U32v())
	shading := int(rec.Field("shading").Uint())
	switch {
	case shading <= 0:
		return c0
	case shading >= 10:
		return c10
	}
	x0, x1 := 10-shading, shading
	mix := func(a, b uint8) uint8 {
		return uint8((int(a)*x0 + int(b)*x1) / 10)
	}

	return pivot.Color{Alpha: 0xff, R: mix(c0.R, c10.R), G: mix(c0.G, c10.G), B: mix(c0.B, c10.B)}
}

// decodeString reads a length-prefixed ISO-8859-1 string record.
func decodeString(rec *spvbin.Record) string {
	chars := rec.Field("chars")
	raw := make([]byte, 0, chars.Len())
	for i := 0; i < chars.Len(); i++ {
		raw = append(raw, byte(chars.At(i).Uint()))
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}

	return string(s)
}

func decodeArea(color, style *spvbin.Record) pivot.AreaStyle {
	var out pivot.AreaStyle

	switch style.Field("halign").Uint() {
	case 0:
		out.Cell.HAlign = pivot.HAlignLeft
	case 1:
		out.Cell.HAlign = pivot.HAlignRight
	case 2:
		out.Cell.HAlign = pivot.HAlignCenter
	case 4:
		out.Cell.HAlign = pivot.HAlignDecimal
	default:
		out.Cell.HAlign = pivot.HAlignMixed
	}
	switch style.Field("valign").Uint() {
	case 0:
		out.Cell.VAlign = pivot.VAlignTop
	case 1:
		out.Cell.VAlign = pivot.VAlignBottom
	default:
		out.Cell.VAlign = pivot.VAlignCenter
	}

	// margins and offsets are in 20ths of a point
	out.Cell.DecimalOffset = float64(style.Field("decimal_offset").Uint()) / 20
	out.Cell.Margins = [4]int{
		int(style.Field("left_margin").Uint()) / 20,
		int(style.Field("right_margin").Uint()) / 20,
		int(style.Field("top_margin").Uint()) / 20,
		int(style.Field("bottom_margin").Uint()) / 20,
	}

	out.Font.Bold = style.Field("weight").Uint() > 400
	out.Font.Italic = style.Field("italic").Boolv()
	out.Font.Underline = style.Field("underline").Boolv()
	out.Font.FG = decodeColor(style.Field("text_color").U32v())
	out.Font.BG = decodeAreaColor(color)
	out.Font.Typeface = decodeString(style.Field("font_name"))
	out.Font.Size = float64(-style.Field("font_size").I32v()) * 3 / 4

	return out
}
