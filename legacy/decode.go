package legacy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/pivot"
	"github.com/arloliu/spv/spvxml"
)

// series is one column of parallel per-row data, keyed by the ID of the
// XML node that defined it.
type series struct {
	name   string
	label  string
	format pivot.Format

	labelSeries   *series
	isLabelSeries bool

	values   []Datum
	mapping  map[float64]Datum
	remapped bool

	affixes []Affix

	dimension  *pivot.Dimension
	indexToCat map[int]*pivot.Category
}

// resolution is the outcome of decoding one variable node. A deferred
// node references a series that does not exist yet and is retried on the
// next fixpoint pass.
type resolution int

const (
	resolved resolution = iota
	deferred
)

type decoder struct {
	v     *Visualization
	data  *Data
	table *pivot.Table

	seriesMap map[string]*series
	order     []*series

	formatMap map[uint32]pivot.Format

	layerIdx, rowIdx, colIdx []int
	layerValues              []int
}

// Decode builds a pivot table from a parsed detail XML member and its
// previously decoded binary data. The look, when non-nil, seeds the
// table's presentation settings.
func Decode(root *spvxml.Elem, data *Data, subtype string, look *pivot.Look) (*pivot.Table, error) {
	v, err := ParseDetail(root)
	if err != nil {
		return nil, err
	}

	return DecodeParsed(v, data, subtype, look)
}

// DecodeParsed is Decode for an already parsed visualization.
func DecodeParsed(v *Visualization, data *Data, subtype string, look *pivot.Look) (*pivot.Table, error) {
	t := pivot.NewTable()
	if look != nil {
		t.Look = look
	}
	t.Title = pivot.NewUserText(v.Name)
	if subtype != "" {
		t.Subtype = pivot.NewUserText(subtype)
	}
	t.Look.ShowGridLines = v.ShowGridLines
	if minW, maxW, ok := v.cellWidthRange(); ok {
		t.Look.HeadingWidths[0] = [2]int{minW, maxW}
	}

	dec := &decoder{
		v:         v,
		data:      data,
		table:     t,
		seriesMap: make(map[string]*series),
		formatMap: make(map[uint32]pivot.Format),
	}

	// Footnote placeholders first, so self and forward references in
	// footnote definitions and titles resolve.
	dec.createFootnotes()

	for _, lf := range v.LabelFrames {
		dec.decodeLabelFrame(lf)
	}

	if err := dec.resolveSeries(); err != nil {
		return nil, err
	}
	if err := dec.buildDimensions(); err != nil {
		return nil, err
	}
	if err := dec.fillCells(); err != nil {
		return nil, err
	}

	return t, nil
}

func (dec *decoder) labeling() *Labeling {
	return dec.v.Graph.Interval.Labeling
}

func (dec *decoder) createFootnotes() {
	for _, lf := range dec.v.LabelFrames {
		if lf.Purpose == PurposeFootnote {
			for _, ft := range lf.Texts {
				if ft.UsesReference > 0 {
					dec.table.EnsureFootnote(ft.UsesReference - 1)
				}
			}
		}
	}
	for _, fn := range dec.labeling().Footnotes {
		if n := len(fn.Mappings); n > 0 {
			dec.table.EnsureFootnote(n - 1)
		}
		for _, fm := range fn.Mappings {
			if fm.DefinesReference > 0 {
				f := dec.table.EnsureFootnote(fm.DefinesReference - 1)
				f.Content = pivot.NewUserText(fm.To)
			}
		}
	}
}

// addFootnote attaches a 1-based footnote reference, ignoring indexes
// outside the defined range.
func (dec *decoder) addFootnote(v *pivot.Value, idx int) {
	if idx < 1 || idx > len(dec.table.Footnotes) {
		return
	}
	v.AddFootnote(idx - 1)
}

func (dec *decoder) addAffixes(v *pivot.Value, affixes []Affix) {
	for _, a := range affixes {
		dec.addFootnote(v, a.DefinesReference)
	}
}

func (dec *decoder) decodeLabelFrame(lf *LabelFrame) {
	switch lf.Purpose {
	case PurposeTitle, PurposeSubTitle:
		v := &pivot.Value{Type: pivot.ValueText, Text: &pivot.TextValue{}}
		var text strings.Builder
		for _, ft := range lf.Texts {
			if ft.DefinesReference > 0 {
				dec.addFootnote(v, ft.DefinesReference)

				continue
			}
			text.WriteString(ft.Text)
		}
		v.Text.Local = text.String()
		v.Text.C = v.Text.Local
		v.Text.ID = v.Text.Local
		if lf.Purpose == PurposeTitle {
			dec.table.Title = v
		} else {
			dec.table.Caption = v
		}

	case PurposeFootnote:
		// Alternating text runs define a footnote's marker and content.
		for i, ft := range lf.Texts {
			if ft.UsesReference < 1 {
				continue
			}
			f := dec.table.EnsureFootnote(ft.UsesReference - 1)
			if i%2 == 1 {
				f.Content = pivot.NewUserText(strings.TrimSuffix(ft.Text, "\n"))
			} else {
				f.Marker = pivot.NewUserText(strings.TrimSuffix(ft.Text, "."))
			}
		}
	}
}

// resolveSeries decodes every variable node, retrying deferred nodes
// until a full pass makes no progress.
func (dec *decoder) resolveSeries() error {
	pending := make([]*VarNode, len(dec.v.Vars))
	copy(pending, dec.v.Vars)

	for len(pending) > 0 {
		progress := false
		next := pending[:0:0]
		for _, node := range pending {
			var res resolution
			var err error
			if node.Source != nil {
				res, err = dec.decodeSourceVar(node)
			} else {
				res, err = dec.decodeDerivedVar(node)
			}
			if err != nil {
				return err
			}
			if res == deferred {
				next = append(next, node)
			} else {
				progress = true
			}
		}
		if !progress {
			return fmt.Errorf("%w: table has %d variables with circular or unresolved references, including variable %s",
				errs.ErrUnresolved, len(next), next[0].ID)
		}
		pending = next
	}

	return nil
}

func (dec *decoder) addSeries(s *series) {
	dec.seriesMap[s.name] = s
	dec.order = append(dec.order, s)
}

func (dec *decoder) decodeSourceVar(node *VarNode) (resolution, error) {
	sv := node.Source

	var labelSeries *series
	if sv.LabelVarID != "" {
		labelSeries = dec.seriesMap[sv.LabelVarID]
		if labelSeries == nil {
			return deferred, nil
		}
		labelSeries.isLabelSeries = true
	}

	variable := dec.data.FindVariable(sv.Source, sv.SourceName)
	if variable == nil {
		return resolved, fmt.Errorf("%w: sourceVariable %s references nonexistent source %s variable %s",
			errs.ErrBadReference, node.ID, sv.Source, sv.SourceName)
	}

	s := &series{
		name:        node.ID,
		label:       sv.Label,
		labelSeries: labelSeries,
		values:      append([]Datum(nil), variable.Values...),
		format:      pivot.Format{Type: pivot.FormatF, Width: 8},
		mapping:     make(map[float64]Datum),
	}
	dec.addSeries(s)

	if err := s.remapFormats(sv.Formats); err != nil {
		return resolved, err
	}

	// A label series maps each numeric value to its label, unless an
	// explicit relabeling already remapped the series.
	if labelSeries != nil && !s.remapped {
		for i, v := range s.values {
			if v.IsString || i >= len(labelSeries.values) {
				continue
			}
			lv := labelSeries.values[i]
			dest := lv.S
			if !lv.IsString {
				dest = formatNumber(s.format, lv.Number)
			}
			// duplicate labels for one value are fine
			_ = mapInsert(s.mapping, v.Number, dest, false, nil)
		}
	}

	return resolved, nil
}

func (dec *decoder) decodeDerivedVar(node *VarNode) (resolution, error) {
	dv := node.Derived

	var values []Datum
	switch {
	case dv.Value == "constant(0)":
		if len(dec.order) == 0 {
			return deferred, nil
		}
		values = make([]Datum, len(dec.order[0].values))

	case strings.HasPrefix(dv.Value, "constant("):
		values = nil

	case strings.HasPrefix(dv.Value, "map(") && strings.HasSuffix(dv.Value, ")"):
		depName := dv.Value[4 : len(dv.Value)-1]
		dep := dec.seriesMap[depName]
		if dep == nil {
			return deferred, nil
		}
		values = append([]Datum(nil), dep.values...)

	default:
		return resolved, fmt.Errorf("%w: derived variable %s has unknown value %q",
			errs.ErrInvalidFormat, node.ID, dv.Value)
	}

	s := &series{
		name:    node.ID,
		values:  values,
		format:  pivot.Format{Type: pivot.FormatF, Width: 8},
		mapping: make(map[float64]Datum),
	}
	dec.addSeries(s)

	if err := s.remapVMEs(dv.ValueMapEntries); err != nil {
		return resolved, err
	}
	if err := s.remapFormats(dv.Formats); err != nil {
		return resolved, err
	}

	// A series of nothing but empty strings carries no information.
	if len(s.values) > 0 {
		empty := true
		for _, v := range s.values {
			if !v.IsString || v.S != "" {
				empty = false

				break
			}
		}
		if empty {
			s.values = nil
		}
	}

	return resolved, nil
}

func parseReal(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)

	return f, err == nil
}

// mapInsert records that category from renames to the string to. When
// the series format is numeric and to parses as a number, the mapping
// stores the reformatted number instead; with tryStringsAsNumbers the
// raw number is kept. Inserting a different mapping for a present key is
// an error, re-inserting an identical one is not.
func mapInsert(m map[float64]Datum, from float64, to string, tryStringsAsNumbers bool, format *pivot.Format) error {
	var d Datum
	if n, ok := parseReal(to); ok && (tryStringsAsNumbers || (format != nil && !format.Type.IsString())) {
		if tryStringsAsNumbers {
			d = Datum{Number: n}
		} else {
			d = Datum{IsString: true, S: formatNumber(*format, n)}
		}
	} else {
		d = Datum{IsString: true, S: to}
	}

	if old, ok := m[from]; ok {
		if old.Equal(d) {
			return nil
		}

		return fmt.Errorf("%w: duplicate relabeling differs for from=\"%.16g\"", errs.ErrInvalidFormat, from)
	}
	m[from] = d

	return nil
}

func (s *series) parseRelabels(relabels []Relabel, tryStringsAsNumbers bool, format *pivot.Format) error {
	for _, r := range relabels {
		if err := mapInsert(s.mapping, r.From, r.To, tryStringsAsNumbers, format); err != nil {
			return err
		}
	}

	return nil
}

// remapFormats applies the format and stringFormat children: output
// format, relabels, and footnote affixes, then rewrites the values.
func (s *series) remapFormats(formats []*FormatElem) error {
	s.mapping = make(map[float64]Datum)
	for _, f := range formats {
		if f.IsString {
			if err := s.parseRelabels(f.Relabels, false, nil); err != nil {
				return err
			}
		} else {
			s.format = f.Format
			if err := s.parseRelabels(f.Relabels, f.TryStringsAsNumbers, &s.format); err != nil {
				return err
			}
		}
		if len(f.Affixes) > 0 {
			s.affixes = f.Affixes
		}
	}
	s.executeMapping()

	return nil
}

func (s *series) remapVMEs(vmes []ValueMapEntry) error {
	s.mapping = make(map[float64]Datum)
	for _, vme := range vmes {
		if err := s.parseValueMapEntry(vme); err != nil {
			return err
		}
	}
	s.executeMapping()

	return nil
}

// A valueMapEntry's from attribute is one or more semicolon-separated
// numbers that all rename to the same string.
func (s *series) parseValueMapEntry(vme ValueMapEntry) error {
	for _, part := range strings.Split(vme.From, ";") {
		from, ok := parseReal(part)
		if !ok {
			return fmt.Errorf("%w: syntax error in valueMapEntry from=%q", errs.ErrInvalidFormat, vme.From)
		}
		if err := mapInsert(s.mapping, from, vme.To, true, nil); err != nil {
			return err
		}
	}

	return nil
}

// executeMapping rewrites numeric values through the mapping, keeping
// the original number as the category index.
func (s *series) executeMapping() {
	if len(s.mapping) == 0 {
		return
	}
	s.remapped = true
	for i := range s.values {
		v := &s.values[i]
		if v.IsString {
			continue
		}
		m, ok := s.mapping[v.Number]
		if !ok {
			continue
		}
		v.Index = v.Number
		if m.IsString {
			v.IsString = true
			v.S = m.S
		} else {
			v.Number = m.Number
		}
	}
}

// mapLookup resolves a datum through the series mapping without
// rewriting it, for naming categories of series that were not remapped.
func (s *series) mapLookup(d Datum) Datum {
	if d.IsString {
		return d
	}
	if m, ok := s.mapping[d.Number]; ok {
		return m
	}

	return d
}

func formatNumber(f pivot.Format, x float64) string {
	if x == SysMis {
		return ""
	}

	return strconv.FormatFloat(x, 'f', f.Decimals, 64)
}

func (dec *decoder) findFacetLevel(level int) *FacetLevel {
	for _, fl := range dec.v.Graph.FacetLevels {
		if fl.Level == level {
			return fl
		}
	}

	return nil
}

// buildDimensions turns the nested series of each axis into dimensions:
// the innermost series of a nest provides the leaves, each outer series
// folds maximal runs of equal values into groups.
func (dec *decoder) buildDimensions() error {
	f := dec.v.Graph.Faceting
	maxColumns := len(f.Columns)

	if err := dec.addNest(f.Columns, pivot.AxisColumn, 1); err != nil {
		return err
	}
	if err := dec.addNest(f.Rows, pivot.AxisRow, maxColumns+1); err != nil {
		return err
	}
	baseLayers := maxColumns + len(f.Rows) + 1
	if err := dec.addLayers(f.Layers1, baseLayers); err != nil {
		return err
	}
	if err := dec.addLayers(f.Layers2, baseLayers+len(f.Layers1)); err != nil {
		return err
	}

	if err := dec.table.BindAxes(dec.layerIdx, dec.rowIdx, dec.colIdx); err != nil {
		return err
	}
	copy(dec.table.CurrentLayer, dec.layerValues)

	return nil
}

// addNest splits a nest into maximal runs of resolvable non-empty series
// and builds one dimension per run.
func (dec *decoder) addNest(refs []string, axis pivot.Axis, levelOfs int) error {
	for i := 0; i < len(refs); {
		var run []*series
		for i+len(run) < len(refs) {
			s := dec.seriesMap[refs[i+len(run)]]
			if s == nil || len(s.values) == 0 {
				break
			}
			run = append(run, s)
		}
		if len(run) > 0 {
			if err := dec.addDimension(run, axis, levelOfs+i); err != nil {
				return err
			}
		}
		i += len(run) + 1
	}

	return nil
}

func (dec *decoder) addLayers(layers []*Layer, levelOfs int) error {
	for i := 0; i < len(layers); {
		var run []*series
		for i+len(run) < len(layers) {
			s := dec.seriesMap[layers[i+len(run)].VarID]
			if s == nil || len(s.values) == 0 {
				break
			}
			run = append(run, s)
		}
		if len(run) > 0 {
			if err := dec.addDimension(run, pivot.AxisLayer, levelOfs+i); err != nil {
				return err
			}
			d := run[0].dimension
			idx, err := strconv.Atoi(layers[i].Value)
			if err != nil || idx < 0 || idx >= d.NumLeaves() {
				return fmt.Errorf("%w: layer value %q out of range", errs.ErrBadReference, layers[i].Value)
			}
			dec.layerValues = append(dec.layerValues, idx)
		}
		i += len(run) + 1
	}

	return nil
}

func categoryNumber(d Datum) (int, bool) {
	n := d.Category()
	if n < 0 || n >= float64(1<<31) || n != math.Trunc(n) {
		return 0, false
	}

	return int(n), true
}

func (dec *decoder) addDimension(run []*series, axis pivot.Axis, baseLevel int) error {
	leafSeries := run[0]

	// First row of each category number, in ascending category order.
	maxCat := -1
	for _, v := range leafSeries.values {
		if n, ok := categoryNumber(v); ok && n > maxCat {
			maxCat = n
		}
	}
	firstRow := make([]int, maxCat+1)
	for i := range firstRow {
		firstRow[i] = -1
	}
	for row, v := range leafSeries.values {
		if n, ok := categoryNumber(v); ok && firstRow[n] == -1 {
			firstRow[n] = row
		}
	}

	leafSeries.indexToCat = make(map[int]*pivot.Category)
	var cats []*pivot.Category
	var rows []int
	for n, row := range firstRow {
		if row == -1 {
			continue
		}
		name, err := dec.valueFromDatum(leafSeries.mapLookup(leafSeries.values[row]), nil)
		if err != nil {
			return err
		}
		dec.addAffixes(name, leafSeries.affixes)
		cat := pivot.NewLeaf(name, len(cats))
		leafSeries.indexToCat[n] = cat
		cats = append(cats, cat)
		rows = append(rows, row)
	}
	if len(cats) == 0 {
		return fmt.Errorf("%w: series %s has no categories", errs.ErrInvalidFormat, leafSeries.name)
	}

	// One folding pass per grouping series, innermost first: maximal
	// runs of equal values become groups, single unnamed runs stand.
	for _, gs := range run[1:] {
		gs.indexToCat = make(map[int]*pivot.Category)
		var newCats []*pivot.Category
		var newRows []int
		for c1 := 0; c1 < len(cats); {
			v1 := gs.values[rows[c1]]
			c2 := c1 + 1
			for c2 < len(cats) && gs.values[rows[c2]].Equal(v1) {
				c2++
			}

			name := gs.mapLookup(v1)
			if c2-c1 == 1 && name.IsString && name.S == "" {
				newCats = append(newCats, cats[c1])
				newRows = append(newRows, rows[c1])
				c1 = c2

				continue
			}

			nameValue, err := dec.valueFromDatum(name, nil)
			if err != nil {
				return err
			}
			dec.addAffixes(nameValue, gs.affixes)
			group := pivot.NewGroup(nameValue, cats[c1:c2]...)
			if n, ok := categoryNumber(v1); ok {
				gs.indexToCat[n] = group
			}
			newCats = append(newCats, group)
			newRows = append(newRows, rows[c1])
			c1 = c2
		}
		cats = newCats
		rows = newRows
	}

	fl := dec.findFacetLevel(baseLevel + len(run))
	rootName := pivot.NewUserText(leafSeries.label)
	root := pivot.NewGroup(rootName, cats...)
	root.ShowLabel = fl != nil && fl.HasAxisLabel && dec.v.styleVisible(fl.LabelStyleRef)

	if inner := dec.findFacetLevel(baseLevel); inner != nil && inner.LabelAngle == -90 {
		if axis == pivot.AxisColumn {
			dec.table.RotateInnerColumnLabels = true
		} else {
			dec.table.RotateOuterRowLabels = true
		}
	}

	d := pivot.NewDimension(root)
	d.AssignDataIndexes()
	dec.table.AddDimension(d)
	leafSeries.dimension = d

	switch axis {
	case pivot.AxisLayer:
		dec.layerIdx = append(dec.layerIdx, d.Index)
	case pivot.AxisRow:
		dec.rowIdx = append(dec.rowIdx, d.Index)
	case pivot.AxisColumn:
		dec.colIdx = append(dec.colIdx, d.Index)
	}

	return nil
}

func (s *series) findCategory(d Datum) *pivot.Category {
	n, ok := categoryNumber(d)
	if !ok {
		return nil
	}

	return s.indexToCat[n]
}

// fillCells walks the cell series row by row, resolving each row's
// dimension categories and storing the decoded value.
func (dec *decoder) fillCells() error {
	l := dec.labeling()
	cell := dec.seriesMap[l.VarID]
	if cell == nil {
		return fmt.Errorf("%w: table lacks cell data", errs.ErrInvalidFormat)
	}

	var cellFormat, footnotes *series
	for _, f := range l.Formatting {
		cellFormat = dec.seriesMap[f.VarID]
		for _, fm := range f.Mappings {
			if fm.HasFmt {
				dec.formatMap[fm.From] = fm.Format
			}
		}
	}
	for _, f := range l.Footnotes {
		if s := dec.seriesMap[f.VarID]; s != nil {
			footnotes = s
		}
	}

	dimSeries := make([]*series, 0, len(dec.table.Dimensions))
	for _, s := range dec.order {
		if s.dimension != nil {
			dimSeries = append(dimSeries, s)
		}
	}

	indexes := make([]int, len(dimSeries))
rowLoop:
	for row := 0; row < len(cell.values); row++ {
		for _, s := range dimSeries {
			if row >= len(s.values) {
				continue rowLoop
			}
			cat := s.findCategory(s.values[row])
			if cat == nil {
				continue rowLoop
			}
			indexes[s.dimension.Index] = cat.DataIndex
		}

		var fmtDatum *Datum
		if cellFormat != nil && row < len(cellFormat.values) {
			fmtDatum = &cellFormat.values[row]
		}
		value, err := dec.valueFromDatum(cell.values[row], fmtDatum)
		if err != nil {
			return err
		}

		if footnotes != nil && row < len(footnotes.values) {
			if fv := footnotes.values[row]; fv.IsString {
				for _, part := range strings.Split(fv.S, ",") {
					if idx, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
						dec.addFootnote(value, idx)
					}
				}
			}
		}

		// system-missing cells with no footnotes stay empty
		if value.Type == pivot.ValueNumeric && value.Numeric.X == SysMis &&
			(value.Mod == nil || len(value.Mod.FootnoteRefs) == 0) {
			continue
		}

		if err := dec.table.Put(indexes, value); err != nil {
			return err
		}
	}

	return nil
}

// valueFromDatum converts a datum and its optional per-row format code
// into a pivot value. String datums under a date or time format are
// parsed into SPSS time values.
func (dec *decoder) valueFromDatum(d Datum, fmtDatum *Datum) (*pivot.Value, error) {
	f := pivot.DefaultFormat()
	if fmtDatum != nil {
		var code uint32
		if fmtDatum.IsString {
			n, _ := strconv.Atoi(strings.TrimSpace(fmtDatum.S))
			code = uint32(n)
		} else {
			code = uint32(fmtDatum.Number)
		}
		if mapped, ok := dec.formatMap[code]; ok {
			f = mapped
		} else {
			var err error
			f, err = pivot.FormatFromWire(code)
			if err != nil {
				return nil, err
			}
		}
	}

	if d.IsString {
		if fmtDatum != nil {
			if x, ok := parseTemporal(f.Type, d.S); ok {
				return pivot.NewNumberFormat(x, f), nil
			}
		}

		return pivot.NewString(d.S), nil
	}

	return pivot.NewNumberFormat(d.Number, f), nil
}

func isDateFormat(t pivot.FormatType) bool {
	switch t {
	case pivot.FormatDate, pivot.FormatADate, pivot.FormatEDate, pivot.FormatJDate,
		pivot.FormatSDate, pivot.FormatQYr, pivot.FormatMoYr, pivot.FormatWkYr,
		pivot.FormatDateTime, pivot.FormatYmdHms:
		return true
	default:
		return false
	}
}

func isTimeFormat(t pivot.FormatType) bool {
	switch t {
	case pivot.FormatMTime, pivot.FormatTime, pivot.FormatDTime:
		return true
	default:
		return false
	}
}

func parseTemporal(t pivot.FormatType, s string) (float64, bool) {
	switch {
	case isDateFormat(t):
		return parseDateValue(s)
	case isTimeFormat(t):
		return parseTimeValue(s)
	default:
		return 0, false
	}
}

// parseDateValue reads "YYYY-MM-DDTHH:MM:SS.mmm" into seconds since the
// calendar epoch of 14 Oct 1582.
func parseDateValue(s string) (float64, bool) {
	if len(s) != 23 || s[4] != '-' || s[7] != '-' || s[10] != 'T' ||
		s[13] != ':' || s[16] != ':' || s[19] != '.' {
		return 0, false
	}
	nums := make([]int, 7)
	for i, span := range [][2]int{{0, 4}, {5, 7}, {8, 10}, {11, 13}, {14, 16}, {17, 19}, {20, 23}} {
		n, err := strconv.Atoi(s[span[0]:span[1]])
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}
	year, month, day := nums[0], nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, false
	}
	days := daysFromCivil(year, month, day) - daysFromCivil(1582, 10, 14)

	return float64(days)*86400 +
		float64(nums[3])*3600 + float64(nums[4])*60 + float64(nums[5]) +
		float64(nums[6])/1000, true
}

// parseTimeValue reads "H:MM:SS.mmm" into seconds.
func parseTimeValue(s string) (float64, bool) {
	colon1 := strings.IndexByte(s, ':')
	if colon1 < 1 || len(s) < colon1+10 || len(s) != colon1+10 ||
		s[colon1+3] != ':' || s[colon1+6] != '.' {
		return 0, false
	}
	hour, err1 := strconv.Atoi(s[:colon1])
	minute, err2 := strconv.Atoi(s[colon1+1 : colon1+3])
	second, err3 := strconv.Atoi(s[colon1+4 : colon1+6])
	msec, err4 := strconv.Atoi(s[colon1+7:])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, false
	}

	return float64(hour)*3600 + float64(minute)*60 + float64(second) +
		float64(msec)/1000, true
}

// daysFromCivil counts days since 1970-01-01 of a proleptic Gregorian
// date.
func daysFromCivil(y, m, d int) int {
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy

	return era*146097 + doe - 719468
}
