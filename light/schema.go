// Package light decodes and encodes the light binary table member of an
// SPV container. The member layout is described as a schema table for the
// spvbin engine; the decoder then maps the evaluated record tree onto the
// pivot data model.
package light

import (
	"github.com/arloliu/spv/endian"
	"github.com/arloliu/spv/spvbin"
)

var (
	le = endian.GetLittleEndianEngine()
	be = endian.GetBigEndianEngine()
)

func isV1(v uint32) bool { return v == 1 }
func isV3(v uint32) bool { return v == 3 }

// markers for optional constructs
const (
	markPresent = 0x31
	markAbsent  = 0x58
)

// tableSchema is the full light member grammar.
var tableSchema = buildSchema()

func buildSchema() *spvbin.Production {
	s := spvbin.Struct
	f := spvbin.F
	str := func() *spvbin.Production { return spvbin.Str(le) }
	opt := func(inner *spvbin.Production) *spvbin.Production {
		return spvbin.Optional(markPresent, markAbsent, inner)
	}

	fontStyle := s("font_style",
		f("bold", spvbin.Bool()),
		f("italic", spvbin.Bool()),
		f("underline", spvbin.Bool()),
		f("show", spvbin.Bool()),
		f("fg", str()),
		f("bg", str()),
		f("typeface", str()),
		f("size", spvbin.U8()),
	)
	cellStyle := s("cell_style",
		f("halign", spvbin.U32(le)),
		f("valign", spvbin.U32(le)),
		f("decimal_offset", spvbin.F64(le)),
		f("left", spvbin.U16(le)),
		f("right", spvbin.U16(le)),
		f("top", spvbin.U16(le)),
		f("bottom", spvbin.U16(le)),
	)
	stylePair := s("style_pair",
		f("font", opt(fontStyle)),
		f("cell", opt(cellStyle)),
	)

	templateString := spvbin.Counted(le, spvbin.Maybe(s("template_string",
		f("inner", spvbin.Counted(le, spvbin.Maybe(s("ts_inner",
			f("z", spvbin.I32(le)),
			f("m", opt(spvbin.Lit(0x55))),
		)))),
		f("id", opt(str())),
	)))

	valueMod := opt(s("vm",
		f("refs", spvbin.Array(le, spvbin.U16(le))),
		f("subscripts", spvbin.Array(le, str())),
		f("v1", spvbin.Cond(isV1, s("vm_v1",
			f("z", spvbin.U8()),
			f("i", spvbin.I32(le)),
			f("p1", spvbin.SkipZeros(2)),
			f("x", spvbin.I32(le)),
			f("p2", spvbin.SkipZeros(2)),
		))),
		f("v3", spvbin.Cond(isV3, spvbin.Counted(le, s("vm_v3",
			f("template_string", templateString),
			f("style", stylePair),
		)))),
	))

	// value is recursive through template arguments; bind it late
	value := &spvbin.Production{Kind: spvbin.KindStruct, Name: "value"}

	argument := spvbin.PeekUnion("argument", spvbin.U32(le),
		map[uint64]*spvbin.Production{
			0: s("arg_value", f("value", value)),
		},
		s("arg_list",
			f("n", spvbin.U32(le)),
			f("z", spvbin.I32(le)),
			f("values", spvbin.Repeat("n", value)),
		),
	)

	rawValue := spvbin.PeekUnion("raw_value", spvbin.U8(),
		map[uint64]*spvbin.Production{
			1: s("numeric",
				f("vm", valueMod),
				f("format", spvbin.U32(le)),
				f("x", spvbin.F64(le)),
			),
			2: s("numeric_var",
				f("vm", valueMod),
				f("format", spvbin.U32(le)),
				f("x", spvbin.F64(le)),
				f("var_name", str()),
				f("value_label", str()),
				f("show", spvbin.U8()),
			),
			3: s("text_local",
				f("local", str()),
				f("vm", valueMod),
				f("id", str()),
				f("c", str()),
				f("fixed", spvbin.Bool()),
			),
			4: s("string",
				f("vm", valueMod),
				f("format", spvbin.U32(le)),
				f("value_label", str()),
				f("var_name", str()),
				f("show", spvbin.U8()),
				f("s", str()),
			),
			5: s("variable",
				f("vm", valueMod),
				f("var_name", str()),
				f("var_label", str()),
				f("show", spvbin.U8()),
			),
			6: s("text",
				f("vm", valueMod),
				f("local", str()),
				f("id", str()),
				f("c", str()),
				f("fixed", spvbin.Bool()),
			),
		},
		s("template",
			f("vm", valueMod),
			f("local", str()),
			f("args", spvbin.Array(le, argument)),
		),
	)
	value.Fields = []spvbin.Field{
		f("pad", spvbin.SkipZeros(4)),
		f("raw", rawValue),
	}

	header := s("header",
		f("magic", spvbin.Lit(1, 0)),
		f("version", spvbin.Version(le)),
		f("x0", spvbin.Bool()),
		f("x1", spvbin.Bool()),
		f("rotate_inner_column_labels", spvbin.Bool()),
		f("rotate_outer_row_labels", spvbin.Bool()),
		f("x2", spvbin.Bool()),
		f("x3", spvbin.I32(le)),
		f("min_col_heading_width", spvbin.I32(le)),
		f("max_col_heading_width", spvbin.I32(le)),
		f("min_row_heading_width", spvbin.I32(le)),
		f("max_row_heading_width", spvbin.I32(le)),
		f("table_id", spvbin.U64(le)),
	)

	titles := s("titles",
		f("title", value),
		f("o1", spvbin.SkipByte(1, 1)),
		f("subtype", value),
		f("o2", spvbin.SkipByte(1, 1)),
		f("user_title", opt(value)),
		f("o3", spvbin.SkipByte(1, 1)),
		f("corner", opt(value)),
		f("caption", opt(value)),
	)

	footnotes := spvbin.Array(le, s("footnote",
		f("content", value),
		f("marker", opt(value)),
		f("show", spvbin.I32(le)),
	))

	area := s("area",
		f("index", spvbin.U8()),
		f("m31", spvbin.Lit(0x31)),
		f("typeface", str()),
		f("size", spvbin.F32(le)),
		f("style", spvbin.U32(le)),
		f("underline", spvbin.Bool()),
		f("halign", spvbin.U32(le)),
		f("valign", spvbin.U32(le)),
		f("fg", str()),
		f("bg", str()),
		f("alternate", spvbin.Bool()),
		f("alt_fg", str()),
		f("alt_bg", str()),
		f("margins", spvbin.Cond(isV3, s("margins",
			f("left", spvbin.I32(le)),
			f("right", spvbin.I32(le)),
			f("top", spvbin.I32(le)),
			f("bottom", spvbin.I32(le)),
		))),
	)
	areaFields := make([]spvbin.Field, 8)
	for i := range areaFields {
		areaFields[i] = f(areaFieldName(i), area)
	}
	areas := s("areas", areaFields...)

	borders := spvbin.Counted(le, s("borders",
		f("x1", spvbin.Lit(0, 0, 0, 1)),
		f("list", spvbin.Array(be, s("border",
			f("type", spvbin.U32(be)),
			f("stroke", spvbin.U32(be)),
			f("color", spvbin.U32(be)),
		))),
		f("show_grid_lines", spvbin.Bool()),
		f("pad", spvbin.Lit(0, 0, 0)),
	))

	printSettings := spvbin.Counted(le, s("print_settings",
		f("x1", spvbin.Lit(0, 0, 0, 1)),
		f("all_layers", spvbin.Bool()),
		f("paged_layers", spvbin.Bool()),
		f("fit_width", spvbin.Bool()),
		f("fit_length", spvbin.Bool()),
		f("top_continuation", spvbin.Bool()),
		f("bottom_continuation", spvbin.Bool()),
		f("n_orphan_lines", spvbin.U32(be)),
		f("continuation", spvbin.Str(be)),
	))

	breakpoints := spvbin.Array(be, spvbin.U32(be))
	keeps := spvbin.Array(be, s("keep",
		f("offset", spvbin.U32(be)),
		f("n", spvbin.U32(be)),
	))
	pointKeeps := spvbin.Array(be, s("point_keep",
		f("offset", spvbin.U32(be)),
		f("x1", spvbin.U32(be)),
		f("x2", spvbin.U32(be)),
	))
	tableSettings := spvbin.Counted(le, spvbin.Cond(isV3, s("table_settings",
		f("x1", spvbin.Lit(0, 0, 0, 1)),
		f("x2", spvbin.I32(be)),
		f("current_layer", spvbin.U32(be)),
		f("omit_empty", spvbin.Bool()),
		f("row_labels_in_corner", spvbin.Bool()),
		f("alpha_markers", spvbin.Bool()),
		f("marker_superscripts", spvbin.Bool()),
		f("x3", spvbin.U8()),
		f("x4", spvbin.Counted(le, spvbin.Maybe(s("breaks",
			f("row_breaks", breakpoints),
			f("col_breaks", breakpoints),
			f("row_keeps", keeps),
			f("col_keeps", keeps),
			f("row_point_keeps", pointKeeps),
			f("col_point_keeps", pointKeeps),
		)))),
		f("notes", spvbin.Str(be)),
		f("table_look", spvbin.Str(be)),
	)))

	y0 := s("y0",
		f("epoch", spvbin.I32(le)),
		f("decimal", spvbin.U8()),
		f("grouping", spvbin.U8()),
	)
	customCurrency := spvbin.Array(le, str())
	y1 := s("y1",
		f("command", str()),
		f("command_local", str()),
		f("language", str()),
		f("charset", str()),
		f("locale", str()),
		f("x10", spvbin.Bool()),
		f("include_leading_zero", spvbin.Bool()),
		f("x12", spvbin.Bool()),
		f("x13", spvbin.Bool()),
		f("y0", y0),
	)
	y2 := s("y2",
		f("custom_currency", customCurrency),
		f("missing", spvbin.U8()),
		f("x17", spvbin.Bool()),
	)
	x0 := s("x0",
		f("pad", spvbin.Bytes(14)),
		f("y1", y1),
		f("y2", y2),
	)
	x1 := s("x1",
		f("x14", spvbin.U8()),
		f("show_title", spvbin.U8()),
		f("x16", spvbin.U8()),
		f("lang", spvbin.U8()),
		f("show_variables", spvbin.U8()),
		f("show_values", spvbin.U8()),
		f("x18", spvbin.I32(le)),
		f("x19", spvbin.I32(le)),
		f("pad", spvbin.Bytes(17)),
		f("x20", spvbin.Bool()),
		f("show_caption", spvbin.Bool()),
	)
	x2 := s("x2",
		f("row_heights", spvbin.Array(le, spvbin.I32(le))),
		f("style_map", spvbin.Array(le, s("style_map_entry",
			f("cell", spvbin.U64(le)),
			f("style", spvbin.U16(le)),
		))),
		f("styles", spvbin.Array(le, stylePair)),
		f("tail", spvbin.Counted(le, spvbin.Maybe(s("x2_tail",
			f("a", spvbin.I32(le)),
			f("b", spvbin.I32(le)),
		)))),
	)
	x3 := s("x3",
		f("magic", spvbin.Lit(1, 0)),
		f("x21", spvbin.U8()),
		f("zeros", spvbin.Lit(0, 0, 0)),
		f("y1", y1),
		f("small", spvbin.F64(le)),
		f("one", spvbin.U8()),
		f("ext", spvbin.Maybe(s("x3_ext",
			f("dataset", str()),
			f("datafile", str()),
			f("z1", spvbin.I32(le)),
			f("date", spvbin.I32(le)),
			f("z2", spvbin.I32(le)),
			f("y2", y2),
			f("tail", spvbin.Maybe(s("x3_tail",
				f("x22", spvbin.I32(le)),
				f("z3", spvbin.I32(le)),
				f("o", spvbin.SkipByte(1, 1)),
			))),
		))),
	)

	formats := s("formats",
		f("widths", spvbin.Array(le, spvbin.I32(le))),
		f("locale", str()),
		f("current_layer", spvbin.I32(le)),
		f("x7", spvbin.Bool()),
		f("x8", spvbin.Bool()),
		f("x9", spvbin.Bool()),
		f("y0", y0),
		f("custom_currency", customCurrency),
		f("tail", spvbin.Counted(le, s("formats_tail",
			f("x0", spvbin.Cond(isV1, spvbin.Maybe(x0))),
			f("v3", spvbin.Cond(isV3, s("formats_v3",
				f("x1x2", spvbin.Counted(le, s("x1x2",
					f("x1", x1),
					f("x2", x2),
				))),
				f("x3", spvbin.Maybe(x3)),
			))),
		))),
	)

	// categories are recursive; bind late
	category := &spvbin.Production{Kind: spvbin.KindStruct, Name: "category"}
	leaf := s("leaf",
		f("x3", spvbin.I32(le)),
		f("leaf_index", spvbin.I32(le)),
		f("z", spvbin.I32(le)),
	)
	group := s("group",
		f("x23", spvbin.I32(le)),
		f("neg1", spvbin.I32(le)),
		f("subcats", spvbin.Array(le, category)),
	)
	category.Fields = []spvbin.Field{
		f("name", value),
		f("merge", spvbin.U8()),
		f("x2", spvbin.U8()),
		f("body", spvbin.Union("category_body", spvbin.U8(),
			map[uint64]*spvbin.Production{0: leaf, 1: group}, nil)),
	}

	dimension := s("dimension",
		f("name", value),
		f("x1", spvbin.U8()),
		f("x2", spvbin.U8()),
		f("x3", spvbin.I32(le)),
		f("hide_dim_label", spvbin.Bool()),
		f("hide_all_labels", spvbin.Bool()),
		f("one", spvbin.U8()),
		f("dim_index", spvbin.I32(le)),
		f("categories", spvbin.Array(le, category)),
	)

	axes := s("axes",
		f("n_layers", spvbin.U32(le)),
		f("n_rows", spvbin.U32(le)),
		f("n_columns", spvbin.U32(le)),
		f("layers", spvbin.Repeat("n_layers", spvbin.I32(le))),
		f("rows", spvbin.Repeat("n_rows", spvbin.I32(le))),
		f("columns", spvbin.Repeat("n_columns", spvbin.I32(le))),
	)

	cells := spvbin.Array(le, s("cell",
		f("index", spvbin.U64(le)),
		f("value", value),
	))

	return s("table",
		f("header", header),
		f("titles", titles),
		f("footnotes", footnotes),
		f("areas", areas),
		f("borders", borders),
		f("print_settings", printSettings),
		f("table_settings", tableSettings),
		f("formats", formats),
		f("dimensions", spvbin.Array(le, dimension)),
		f("axes", axes),
		f("cells", cells),
	)
}

var areaFieldNames = [8]string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}

func areaFieldName(i int) string { return areaFieldNames[i] }
