// Package legacy decodes the legacy table members of SPV files: the old
// binary data member that carries per-source variable series, and the
// detail XML member that arranges those series into a pivot table.
package legacy

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/arloliu/spv/endian"
	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/spvbin"
)

// SysMis is the system-missing numeric value.
const SysMis = -math.MaxFloat64

// Datum is one value of a data series. A datum starts out numeric; value
// maps may replace it by a string or another number, in which case Index
// preserves the original category number.
type Datum struct {
	Index    float64
	Number   float64
	S        string
	IsString bool
}

// Equal reports whether two datums carry the same value.
func (d Datum) Equal(o Datum) bool {
	if d.IsString != o.IsString || d.Index != o.Index {
		return false
	}
	if d.IsString {
		return d.S == o.S
	}

	return d.Number == o.Number
}

// Category returns the datum's category number: the numeric value, or the
// pre-mapping number for a remapped datum.
func (d Datum) Category() float64 {
	if d.IsString {
		return d.Index
	}

	return d.Number
}

// Variable is one named series of values within a data source.
type Variable struct {
	Name   string
	Values []Datum
}

// Source is one data source of the old binary member.
type Source struct {
	Name    string
	NValues int
	Vars    []Variable
}

// FindVariable returns the named variable, nil when absent.
func (s *Source) FindVariable(name string) *Variable {
	for i := range s.Vars {
		if s.Vars[i].Name == name {
			return &s.Vars[i]
		}
	}

	return nil
}

// Data is the decoded old binary member.
type Data struct {
	Sources []Source
}

// FindSource returns the named source, nil when absent.
func (d *Data) FindSource(name string) *Source {
	for i := range d.Sources {
		if d.Sources[i].Name == name {
			return &d.Sources[i]
		}
	}

	return nil
}

// FindVariable returns the named variable of the named source.
func (d *Data) FindVariable(source, name string) *Variable {
	if s := d.FindSource(source); s != nil {
		return s.FindVariable(name)
	}

	return nil
}

var le = endian.GetLittleEndianEngine()

const (
	versionAF = 0xaf
	versionB0 = 0xb0
)

// The old binary member leads with a two-byte magic and a version that
// selects the metadata layout. Each source's data lives at an absolute
// offset recorded in its metadata, outside the sequential grammar.
var oldBinarySchema = spvbin.Struct("legacy_binary",
	spvbin.F("magic", spvbin.Lit(0x01, 0x00)),
	spvbin.F("body", spvbin.Union("version", spvbin.U16(le), map[uint64]*spvbin.Production{
		versionAF: oldBinaryBody(spvbin.Struct("metadata",
			spvbin.F("n_values", spvbin.U32(le)),
			spvbin.F("n_variables", spvbin.U32(le)),
			spvbin.F("data_offset", spvbin.U32(le)),
			spvbin.F("source_name", spvbin.Bytes(28)),
		)),
		versionB0: oldBinaryBody(spvbin.Struct("metadata",
			spvbin.F("n_values", spvbin.U32(le)),
			spvbin.F("n_variables", spvbin.U32(le)),
			spvbin.F("data_offset", spvbin.U32(le)),
			spvbin.F("source_name", spvbin.Bytes(64)),
			spvbin.F("x", spvbin.I32(le)),
			spvbin.F("ext_source_name", spvbin.Bytes(64)),
		)),
	}, nil)),
)

func oldBinaryBody(metadata *spvbin.Production) *spvbin.Production {
	return spvbin.Struct("body",
		spvbin.F("n_sources", spvbin.U32(le)),
		spvbin.F("member_size", spvbin.U32(le)),
		spvbin.F("metadata", spvbin.Repeat("n_sources", metadata)),
	)
}

var stringsSchema = spvbin.Struct("strings",
	spvbin.F("maps", spvbin.Struct("source_maps",
		spvbin.F("n_maps", spvbin.U32(le)),
		spvbin.F("maps", spvbin.Repeat("n_maps", spvbin.Struct("source_map",
			spvbin.F("source_name", spvbin.Str(le)),
			spvbin.F("n_variables", spvbin.U32(le)),
			spvbin.F("variables", spvbin.Repeat("n_variables", spvbin.Struct("variable_map",
				spvbin.F("variable_name", spvbin.Str(le)),
				spvbin.F("n_data", spvbin.U32(le)),
				spvbin.F("data", spvbin.Repeat("n_data", spvbin.Struct("datum_map",
					spvbin.F("value_idx", spvbin.U32(le)),
					spvbin.F("label_idx", spvbin.U32(le)),
				))),
			))),
		))),
	)),
	spvbin.F("labels", spvbin.Struct("labels",
		spvbin.F("n_labels", spvbin.U32(le)),
		spvbin.F("labels", spvbin.Repeat("n_labels", spvbin.Struct("label",
			spvbin.F("frequency", spvbin.U32(le)),
			spvbin.F("label", spvbin.Str(le)),
		))),
	)),
)

func fixedString(raw []byte) string {
	s := string(raw)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}

	return s
}

func sourceName(md *spvbin.Record, version uint64) string {
	name := fixedString(md.Field("source_name").Raw)
	if version == versionB0 && len(name) == len(md.Field("source_name").Raw) {
		name += fixedString(md.Field("ext_source_name").Raw)
	}

	return name
}

// DecodeData decodes an old binary data member.
func DecodeData(in []byte) (*Data, error) {
	c := spvbin.NewCursor(in)
	root, ok := spvbin.Eval(c, oldBinarySchema, &spvbin.Context{})
	if !ok {
		return nil, c.Err()
	}

	body := root.Field("body")
	version := body.Tag
	meta := body.Inner().Field("metadata")

	out := &Data{Sources: make([]Source, 0, meta.Len())}
	end := c.Ofs()
	for i := 0; i < meta.Len(); i++ {
		md := meta.At(i)
		source := Source{
			Name:    sourceName(md, version),
			NValues: int(md.Field("n_values").Uint()),
		}
		dataEnd, err := decodeSourceData(in, &source, int(md.Field("n_variables").Uint()),
			int(md.Field("data_offset").Uint()))
		if err != nil {
			return nil, err
		}
		if dataEnd > end {
			end = dataEnd
		}
		out.Sources = append(out.Sources, source)
	}

	if end < len(in) {
		c.Restore(end)
		strs, ok := spvbin.Eval(c, stringsSchema, &spvbin.Context{})
		if !ok {
			return nil, c.Err()
		}
		if c.Remaining() > 0 {
			return nil, fmt.Errorf("%w: expected end of file at offset %#x", errs.ErrInvalidFormat, c.Ofs())
		}
		if err := decodeStrings(strs, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Each variable's data is a 288-byte NUL-padded name followed by one
// little-endian double per value.
func decodeSourceData(in []byte, source *Source, nVars, dataOffset int) (int, error) {
	varSize := 288 + 8*source.NValues
	end := dataOffset + nVars*varSize
	if end > len(in) || end < dataOffset {
		return 0, fmt.Errorf("%w: %d-byte data source %q starting at offset %#x runs past end of %d-byte ZIP member",
			errs.ErrTruncated, nVars*varSize, source.Name, dataOffset, len(in))
	}

	p := in[dataOffset:]
	source.Vars = make([]Variable, nVars)
	for i := range source.Vars {
		v := &source.Vars[i]
		v.Name = fixedString(p[:288])
		p = p[288:]
		v.Values = make([]Datum, source.NValues)
		for j := range v.Values {
			v.Values[j] = Datum{
				Index:  SysMis,
				Number: math.Float64frombits(binary.LittleEndian.Uint64(p)),
			}
			p = p[8:]
		}
	}

	return end, nil
}

// The strings trailer replaces numeric values with label strings, keyed
// by source, variable, and value index.
func decodeStrings(strs *spvbin.Record, out *Data) error {
	labels := strs.Get("labels", "labels")
	maps := strs.Get("maps", "maps")
	for i := 0; i < maps.Len(); i++ {
		sm := maps.At(i)
		name := sm.Field("source_name").Str()
		source := out.FindSource(name)
		if source == nil {
			return fmt.Errorf("%w: cannot decode source map for unknown source %q", errs.ErrBadReference, name)
		}
		vms := sm.Field("variables")
		if vms.Len() > len(source.Vars) {
			return fmt.Errorf("%w: source map for %q has %d variables but source has only %d",
				errs.ErrBadReference, name, vms.Len(), len(source.Vars))
		}
		for j := 0; j < vms.Len(); j++ {
			if err := decodeVariableMap(name, vms.At(j), labels, &source.Vars[j]); err != nil {
				return err
			}
		}
	}

	return nil
}

func decodeVariableMap(sourceName string, vm, labels *spvbin.Record, out *Variable) error {
	if name := vm.Field("variable_name").Str(); name != out.Name {
		return fmt.Errorf("%w: source %q variable %q mapping is associated with wrong variable %q",
			errs.ErrBadReference, sourceName, out.Name, name)
	}

	data := vm.Field("data")
	for i := 0; i < data.Len(); i++ {
		dm := data.At(i)
		valueIdx := int(dm.Field("value_idx").Uint())
		labelIdx := int(dm.Field("label_idx").Uint())
		if valueIdx >= len(out.Values) {
			return fmt.Errorf("%w: source %q variable %q mapping %d attempts to set 0-based value %d but source has only %d values",
				errs.ErrBadReference, sourceName, out.Name, i, valueIdx, len(out.Values))
		}
		if labelIdx >= labels.Len() {
			return fmt.Errorf("%w: source %q variable %q mapping %d attempts to set value %d to 0-based label %d but only %d labels are present",
				errs.ErrBadReference, sourceName, out.Name, i, valueIdx, labelIdx, labels.Len())
		}
		value := &out.Values[valueIdx]
		if value.IsString {
			return fmt.Errorf("%w: source %q variable %q mapping %d attempts to change string value %d",
				errs.ErrInvalidFormat, sourceName, out.Name, i, valueIdx)
		}
		value.IsString = true
		value.S = labels.At(labelIdx).Field("label").Str()
	}

	return nil
}
