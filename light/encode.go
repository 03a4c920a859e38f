package light

import (
	"fmt"
	"math"
	"sort"

	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/internal/options"
	"github.com/arloliu/spv/pivot"
)

// Encoder writes pivot tables as version 3 light binary members.
type Encoder struct {
	version uint32
}

// EncoderOption configures an Encoder.
type EncoderOption = options.Option[*Encoder]

// WithVersion selects the member version to write. Only version 3 is
// supported; version 1 members predate the settings blocks this encoder
// emits.
func WithVersion(v uint32) EncoderOption {
	return options.New(func(e *Encoder) error {
		if v != 3 {
			return fmt.Errorf("%w: cannot write version %d member", errs.ErrInvalidFormat, v)
		}
		e.version = v

		return nil
	})
}

// NewEncoder returns an encoder with the given options applied.
func NewEncoder(opts ...EncoderOption) (*Encoder, error) {
	e := &Encoder{version: 3}
	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}

	return e, nil
}

// Encode serializes the table. The result decodes back to an equivalent
// table.
func (e *Encoder) Encode(t *pivot.Table) ([]byte, error) {
	w := &writer{}
	w.header(t)
	w.titles(t)
	w.footnotes(t)
	w.areas(t)
	w.borders(t)
	w.printSettings(t)
	w.tableSettings(t)
	w.formats(t)
	w.dimensions(t)
	w.axes(t)
	w.cells(t)

	return w.buf, nil
}

// Encode writes t as a version 3 member with default encoder settings.
func Encode(t *pivot.Table) ([]byte, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}

	return enc.Encode(t)
}

type writer struct {
	buf []byte
}

func (w *writer) u8(b byte)     { w.buf = append(w.buf, b) }
func (w *writer) boolb(b bool)  { w.u8(boolByte(b)) }
func (w *writer) u16(v uint16)  { w.buf = le.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32)  { w.buf = le.AppendUint32(w.buf, v) }
func (w *writer) i32(v int32)   { w.u32(uint32(v)) }
func (w *writer) u64(v uint64)  { w.buf = le.AppendUint64(w.buf, v) }
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *writer) f64(v float64) { w.u64(math.Float64bits(v)) }
func (w *writer) be32(v uint32) { w.buf = be.AppendUint32(w.buf, v) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) beStr(s string) {
	w.be32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) zeros(n int) {
	for i := 0; i < n; i++ {
		w.u8(0)
	}
}

// counted writes fn's output preceded by its little-endian byte count.
func (w *writer) counted(fn func(*writer)) {
	inner := &writer{}
	fn(inner)
	w.u32(uint32(len(inner.buf)))
	w.buf = append(w.buf, inner.buf...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

func (w *writer) header(t *pivot.Table) {
	w.u8(1)
	w.u8(0)
	w.u32(3) // version
	w.boolb(false)
	w.boolb(false)
	w.boolb(t.RotateInnerColumnLabels)
	w.boolb(t.RotateOuterRowLabels)
	w.boolb(false)
	w.i32(0x15)
	w.i32(int32(t.Look.HeadingWidths[0][0]))
	w.i32(int32(t.Look.HeadingWidths[0][1]))
	w.i32(int32(t.Look.HeadingWidths[1][0]))
	w.i32(int32(t.Look.HeadingWidths[1][1]))
	w.u64(t.TableID)
}

func (w *writer) optValue(v *pivot.Value) {
	if v == nil {
		w.u8(markAbsent)

		return
	}
	w.u8(markPresent)
	w.value(v)
}

func (w *writer) titles(t *pivot.Table) {
	title := t.Title
	if title == nil {
		title = pivot.NewText("")
	}
	subtype := t.Subtype
	if subtype == nil {
		subtype = pivot.NewText("")
	}
	w.value(title)
	w.value(subtype)
	w.optValue(t.Title)
	w.optValue(t.Corner)
	w.optValue(t.Caption)
}

func (w *writer) footnotes(t *pivot.Table) {
	w.u32(uint32(len(t.Footnotes)))
	for _, f := range t.Footnotes {
		w.value(f.Content)
		w.optValue(f.Marker)
		if f.Show {
			w.i32(1)
		} else {
			w.i32(-1)
		}
	}
}

func (w *writer) areas(t *pivot.Table) {
	for i := 0; i < int(pivot.NAreas); i++ {
		a := &t.Look.Areas[i]
		w.u8(byte(i + 1))
		w.u8(markPresent)
		w.str(a.Font.Typeface)
		// sizes travel scaled by 1.33 on the wire, like value-mod fonts
		w.f32(float32(a.Font.Size * 1.33))
		style := uint32(0)
		if a.Font.Bold {
			style |= 1
		}
		if a.Font.Italic {
			style |= 2
		}
		w.u32(style)
		w.boolb(a.Font.Underline)
		w.u32(a.Cell.HAlign.ToWire())
		w.u32(a.Cell.VAlign.ToWire())
		w.str(a.Font.FG.String())
		w.str(a.Font.BG.String())
		w.boolb(a.AlternateColors)
		if a.AlternateColors {
			w.str(a.FG2.String())
			w.str(a.BG2.String())
		} else {
			w.str(a.Font.FG.String())
			w.str(a.Font.BG.String())
		}
		w.i32(int32(a.Cell.Margins[0]))
		w.i32(int32(a.Cell.Margins[1]))
		w.i32(int32(a.Cell.Margins[2]))
		w.i32(int32(a.Cell.Margins[3]))
	}
}

func (w *writer) borders(t *pivot.Table) {
	w.counted(func(w *writer) {
		w.be32(1)
		w.be32(uint32(pivot.NBorders))
		for i := 0; i < int(pivot.NBorders); i++ {
			b := t.Look.Borders[i]
			w.be32(uint32(i))
			w.be32(uint32(b.Stroke))
			w.be32(b.Color.ToWire())
		}
		w.boolb(t.Look.ShowGridLines)
		w.zeros(3)
	})
}

func (w *writer) printSettings(t *pivot.Table) {
	look := t.Look
	w.counted(func(w *writer) {
		w.be32(1)
		w.boolb(look.PrintAllLayers)
		w.boolb(look.PagedLayers)
		w.boolb(look.FitWidth)
		w.boolb(look.FitLength)
		w.boolb(look.TopContinuation)
		w.boolb(look.BottomContinuation)
		w.be32(uint32(look.NOrphanLines))
		w.beStr(look.ContinuationString)
	})
}

func (w *writer) tableSettings(t *pivot.Table) {
	look := t.Look
	w.counted(func(w *writer) {
		w.be32(1)
		w.be32(4)
		w.be32(uint32(t.CurrentLayerIndex()))
		w.boolb(look.OmitEmpty)
		w.boolb(look.RowLabelsInCorner)
		w.boolb(!look.ShowNumericMarkers)
		w.boolb(look.FootnoteMarkerSuper)
		w.u8(0)
		w.u32(0) // no breaks or keeps
		w.beStr(t.Notes)
		w.beStr(look.Name)
		w.zeros(82)
	})
}

func (w *writer) y0(t *pivot.Table) {
	epoch := t.Epoch
	if epoch == 0 {
		epoch = 1582
	}
	decimal := t.Decimal
	if decimal == 0 {
		decimal = '.'
	}
	w.i32(int32(epoch))
	w.u8(decimal)
	w.u8(t.Grouping)
}

func (w *writer) customCurrency(t *pivot.Table) {
	n := 0
	for i, cc := range t.CCs {
		if cc != "" {
			n = i + 1
		}
	}
	w.u32(uint32(n))
	for i := 0; i < n; i++ {
		w.str(t.CCs[i])
	}
}

func (w *writer) y1(t *pivot.Table) {
	w.str("")
	w.str("")
	w.str("en")
	w.str("UTF-8")
	w.str(t.Locale)
	w.boolb(false)
	w.boolb(false)
	w.boolb(false)
	w.boolb(false)
	w.y0(t)
}

func (w *writer) formats(t *pivot.Table) {
	w.u32(0) // no explicit column widths
	w.str(t.Locale)
	w.i32(int32(t.CurrentLayerIndex()))
	w.boolb(false)
	w.boolb(false)
	w.boolb(true)
	w.y0(t)
	w.customCurrency(t)
	w.counted(func(w *writer) {
		w.counted(func(w *writer) {
			// X1
			w.u8(0)
			if t.ShowTitle {
				w.u8(1)
			} else {
				w.u8(10)
			}
			w.u8(0)
			w.u8(0)
			w.u8(0)
			w.u8(0)
			w.i32(0)
			w.i32(0)
			w.zeros(17)
			w.boolb(false)
			w.boolb(t.ShowCaption)
			// X2
			w.u32(0) // row heights
			w.u32(0) // style map
			w.u32(0) // styles
			w.u32(0) // trailing block
		})
		// X3
		w.u8(1)
		w.u8(0)
		w.u8(0)
		w.zeros(3)
		w.y1(t)
		w.f64(t.SmallValue)
		w.u8(1)
		w.str(t.Dataset)
		w.str(t.Datafile)
		w.i32(0)
		w.i32(int32(t.Date))
		w.i32(0)
		w.customCurrency(t)
		w.u8(0) // missing marker
		w.boolb(false)
	})
}

func (w *writer) dimensions(t *pivot.Table) {
	w.u32(uint32(len(t.Dimensions)))
	for _, d := range t.Dimensions {
		w.value(d.Root.Name)
		w.u8(0)
		w.u8(2)
		w.i32(2)
		w.boolb(!d.Root.ShowLabel)
		w.boolb(d.HideAllLabels)
		w.u8(1)
		w.i32(int32(d.Index))
		w.u32(uint32(len(d.Root.Subs)))
		for _, c := range d.Root.Subs {
			w.category(c)
		}
	}
}

func (w *writer) category(c *pivot.Category) {
	w.value(c.Name)
	if c.IsLeaf() {
		w.u8(0)
		w.u8(0)
		w.u8(0)
		w.i32(2)
		w.i32(int32(c.DataIndex))
		w.i32(0)

		return
	}
	w.u8(0) // not merged
	w.u8(0)
	w.u8(1)
	w.i32(0)
	w.i32(-1)
	w.u32(uint32(len(c.Subs)))
	for _, sub := range c.Subs {
		w.category(sub)
	}
}

func (w *writer) axes(t *pivot.Table) {
	for a := pivot.Axis(0); a < pivot.NAxes; a++ {
		w.u32(uint32(len(t.Axes[a])))
	}
	for a := pivot.Axis(0); a < pivot.NAxes; a++ {
		for _, d := range t.Axes[a] {
			w.i32(int32(d.Index))
		}
	}
}

func (w *writer) cells(t *pivot.Table) {
	keys := make([]uint64, 0, t.NumCells())
	t.EachCell(func(idx uint64, _ *pivot.Value) {
		keys = append(keys, idx)
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	w.u32(uint32(len(keys)))
	for _, idx := range keys {
		di, _ := t.DecomposeCellIndex(idx)
		w.u64(idx)
		w.value(t.Get(di))
	}
}

func (w *writer) value(v *pivot.Value) {
	if v == nil {
		v = pivot.NewText("")
	}
	switch v.Type {
	case pivot.ValueNumeric:
		n := v.Numeric
		if n.VarName == "" && n.ValueLabel == "" && n.Show == pivot.ShowDefault {
			w.u8(1)
			w.valueMod(v.Mod)
			w.u32(n.Format.ToWire())
			w.f64(n.X)
		} else {
			w.u8(2)
			w.valueMod(v.Mod)
			w.u32(n.Format.ToWire())
			w.f64(n.X)
			w.str(n.VarName)
			w.str(n.ValueLabel)
			w.u8(byte(n.Show))
		}
	case pivot.ValueText:
		w.u8(3)
		w.str(v.Text.Local)
		w.valueMod(v.Mod)
		w.str(v.Text.ID)
		w.str(v.Text.C)
		w.boolb(!v.Text.UserProvided)
	case pivot.ValueString:
		s := v.String
		w.u8(4)
		w.valueMod(v.Mod)
		format := pivot.Format{Type: pivot.FormatA, Width: len(s.S)}
		if s.Hex {
			format.Type = pivot.FormatAHex
		}
		if format.Width < 1 {
			format.Width = 1
		}
		w.u32(format.ToWire())
		w.str(s.ValueLabel)
		w.str(s.VarName)
		w.u8(byte(s.Show))
		w.str(s.S)
	case pivot.ValueVariable:
		w.u8(5)
		w.valueMod(v.Mod)
		w.str(v.Variable.VarName)
		w.str(v.Variable.VarLabel)
		w.u8(byte(v.Variable.Show))
	case pivot.ValueTemplate:
		w.valueMod(v.Mod)
		w.str(v.Template.Local)
		w.u32(uint32(len(v.Template.Args)))
		for _, arg := range v.Template.Args {
			if len(arg) == 1 {
				w.u32(0)
				w.value(arg[0])
			} else {
				w.u32(uint32(len(arg)))
				w.u32(0)
				for _, av := range arg {
					w.value(av)
				}
			}
		}
	}
}

func (w *writer) valueMod(m *pivot.ValueMod) {
	if m.IsEmpty() {
		w.u8(markAbsent)

		return
	}
	w.u8(markPresent)
	w.u32(uint32(len(m.FootnoteRefs)))
	for _, ref := range m.FootnoteRefs {
		w.u16(uint16(ref))
	}
	w.u32(uint32(len(m.Subscripts)))
	for _, s := range m.Subscripts {
		w.str(s)
	}
	w.counted(func(w *writer) {
		if m.Template == "" && m.Font == nil && m.Cell == nil {
			return
		}
		// template string
		if m.Template == "" {
			w.u32(0)
		} else {
			w.counted(func(w *writer) {
				w.u32(0)
				w.u8(markPresent)
				w.str(m.Template)
			})
		}
		// style pair
		if f := m.Font; f != nil {
			w.u8(markPresent)
			w.boolb(f.Bold)
			w.boolb(f.Italic)
			w.boolb(f.Underline)
			w.boolb(f.Show)
			w.str(f.FG.String())
			w.str(f.BG.String())
			w.str(f.Typeface)
			size := int(math.Round(f.Size * 1.33))
			if size < 0 {
				size = 0
			} else if size > 255 {
				size = 255
			}
			w.u8(byte(size))
		} else {
			w.u8(markAbsent)
		}
		if c := m.Cell; c != nil {
			w.u8(markPresent)
			w.u32(c.HAlign.ToWire())
			w.u32(c.VAlign.ToWire())
			w.f64(c.DecimalOffset)
			w.u16(uint16(int16(c.Margins[0])))
			w.u16(uint16(int16(c.Margins[1])))
			w.u16(uint16(int16(c.Margins[2])))
			w.u16(uint16(int16(c.Margins[3])))
		} else {
			w.u8(markAbsent)
		}
	})
}
