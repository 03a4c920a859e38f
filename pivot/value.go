package pivot

import (
	"fmt"
	"strings"
)

// Show controls whether a value displays its raw form, its label, or both.
type Show uint8

const (
	ShowDefault Show = iota
	ShowValue
	ShowLabel
	ShowBoth
)

// ValueType discriminates the arms of the Value union.
type ValueType uint8

const (
	ValueNumeric ValueType = iota
	ValueString
	ValueVariable
	ValueText
	ValueTemplate
)

// NumericValue is a number with its output format and optional variable
// attribution.
type NumericValue struct {
	Format     Format
	X          float64
	VarName    string
	ValueLabel string
	Show       Show
}

// StringValue is a string datum with optional variable attribution.
type StringValue struct {
	S          string
	Hex        bool
	VarName    string
	ValueLabel string
	Show       Show
}

// VariableValue names a variable.
type VariableValue struct {
	VarName  string
	VarLabel string
	Show     Show
}

// TextValue is a piece of text in up to three forms: localized, C locale,
// and a stable identifier.
type TextValue struct {
	Local        string
	C            string
	ID           string
	UserProvided bool
}

// TemplateValue is a format template applied to argument lists, each
// argument itself a list of values.
type TemplateValue struct {
	Local string
	ID    string
	Args  [][]*Value
}

// ValueMod carries the optional decorations of a value: footnote
// references, subscripts, an overriding template string, and style
// overrides.
type ValueMod struct {
	FootnoteRefs []int
	Subscripts   []string
	Template     string
	Font         *FontStyle
	Cell         *CellStyle
}

// IsEmpty reports whether the modification carries nothing.
func (m *ValueMod) IsEmpty() bool {
	return m == nil || (len(m.FootnoteRefs) == 0 && len(m.Subscripts) == 0 &&
		m.Template == "" && m.Font == nil && m.Cell == nil)
}

// Value is a single datum of a pivot table: a cell, a label, a title, a
// footnote content or marker. Exactly one arm matching Type is non-nil.
type Value struct {
	Type ValueType
	Mod  *ValueMod

	Numeric  *NumericValue
	String   *StringValue
	Variable *VariableValue
	Text     *TextValue
	Template *TemplateValue
}

// NewNumber returns a numeric value with the default format.
func NewNumber(x float64) *Value {
	return &Value{Type: ValueNumeric, Numeric: &NumericValue{X: x}}
}

// NewNumberFormat returns a numeric value with an explicit format.
func NewNumberFormat(x float64, f Format) *Value {
	return &Value{Type: ValueNumeric, Numeric: &NumericValue{X: x, Format: f}}
}

// NewString returns a string value.
func NewString(s string) *Value {
	return &Value{Type: ValueString, String: &StringValue{S: s}}
}

// NewText returns a text value whose three forms are all s.
func NewText(s string) *Value {
	return &Value{Type: ValueText, Text: &TextValue{Local: s, C: s, ID: s}}
}

// NewUserText returns a user-provided text value.
func NewUserText(s string) *Value {
	v := NewText(s)
	v.Text.UserProvided = true

	return v
}

// NewVariable returns a value naming a variable.
func NewVariable(name, label string) *Value {
	return &Value{Type: ValueVariable, Variable: &VariableValue{VarName: name, VarLabel: label}}
}

// IsEmpty reports whether the value is an empty unstyled text value.
func (v *Value) IsEmpty() bool {
	return v != nil && v.Type == ValueText && v.Text.Local == "" && v.Mod.IsEmpty()
}

// AddFootnote appends a reference to the footnote with the given index,
// keeping the reference list sorted and duplicate free.
func (v *Value) AddFootnote(idx int) {
	if v.Mod == nil {
		v.Mod = &ValueMod{}
	}
	refs := v.Mod.FootnoteRefs
	pos := 0
	for pos < len(refs) && refs[pos] < idx {
		pos++
	}
	if pos < len(refs) && refs[pos] == idx {
		return
	}
	refs = append(refs, 0)
	copy(refs[pos+1:], refs[pos:])
	refs[pos] = idx
	v.Mod.FootnoteRefs = refs
}

// BodyText renders the bare content of the value without footnote markers
// or subscripts, for diagnostics and plain-text output.
func (v *Value) BodyText() string {
	if v == nil {
		return ""
	}
	switch v.Type {
	case ValueNumeric:
		return strings.TrimRight(strings.TrimRight(
			fmt.Sprintf("%.*f", clampDecimals(v.Numeric.Format), v.Numeric.X), "0"), ".")
	case ValueString:
		return v.String.S
	case ValueVariable:
		if v.Variable.VarLabel != "" {
			return v.Variable.VarLabel
		}

		return v.Variable.VarName
	case ValueText:
		return v.Text.Local
	case ValueTemplate:
		return v.Template.Local
	default:
		return ""
	}
}

func clampDecimals(f Format) int {
	if !f.IsSet() {
		return 2
	}
	d := f.Decimals
	if d < 0 {
		return 0
	}
	if d > 16 {
		return 16
	}

	return d
}
