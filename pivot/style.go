package pivot

import (
	"fmt"

	"github.com/arloliu/spv/errs"
)

// Color is an ARGB color. The zero value is transparent black.
type Color struct {
	Alpha uint8
	R     uint8
	G     uint8
	B     uint8
}

// Black and White are the common style defaults.
var (
	Black = Color{Alpha: 0xff}
	White = Color{Alpha: 0xff, R: 0xff, G: 0xff, B: 0xff}
)

// ColorFromString parses "#rrggbb" or "rrggbb". An empty string yields the
// given default.
func ColorFromString(s string, def Color) (Color, error) {
	if s == "" {
		return def, nil
	}
	if s[0] == '#' {
		s = s[1:]
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil || len(s) != 6 {
		return def, fmt.Errorf("%w: bad color %q", errs.ErrInvalidFormat, s)
	}

	return Color{Alpha: 0xff, R: r, G: g, B: b}, nil
}

// ColorFromWire unpacks the 32-bit (alpha<<24 | r<<16 | g<<8 | b) form.
// A zero alpha is treated as opaque.
func ColorFromWire(u32 uint32) Color {
	c := Color{
		Alpha: uint8(u32 >> 24),
		R:     uint8(u32 >> 16),
		G:     uint8(u32 >> 8),
		B:     uint8(u32),
	}
	if c.Alpha == 0 {
		c.Alpha = 0xff
	}

	return c
}

// ToWire packs the color into its 32-bit form.
func (c Color) ToWire() uint32 {
	return uint32(c.Alpha)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Stroke is a border line style.
type Stroke uint8

const (
	StrokeNone Stroke = iota
	StrokeSolid
	StrokeDashed
	StrokeThick
	StrokeThin
	StrokeDouble
)

func (s Stroke) String() string {
	switch s {
	case StrokeNone:
		return "none"
	case StrokeSolid:
		return "solid"
	case StrokeDashed:
		return "dashed"
	case StrokeThick:
		return "thick"
	case StrokeThin:
		return "thin"
	case StrokeDouble:
		return "double"
	default:
		return fmt.Sprintf("Stroke(%d)", uint8(s))
	}
}

// HAlign is a horizontal cell alignment.
type HAlign uint8

const (
	HAlignCenter HAlign = iota
	HAlignLeft
	HAlignRight
	HAlignDecimal
	HAlignMixed
)

// HAlignFromWire maps the light-member alignment codes.
func HAlignFromWire(u32 uint32) (HAlign, bool) {
	switch u32 {
	case 0:
		return HAlignCenter, true
	case 2:
		return HAlignLeft, true
	case 4:
		return HAlignRight, true
	case 6, 61453:
		return HAlignDecimal, true
	case 0xffffffad, 64173:
		return HAlignMixed, true
	default:
		return HAlignMixed, false
	}
}

// ToWire returns the light-member alignment code.
func (a HAlign) ToWire() uint32 {
	switch a {
	case HAlignLeft:
		return 2
	case HAlignRight:
		return 4
	case HAlignDecimal:
		return 6
	case HAlignMixed:
		return 0xffffffad
	default:
		return 0
	}
}

// VAlign is a vertical cell alignment.
type VAlign uint8

const (
	VAlignCenter VAlign = iota
	VAlignTop
	VAlignBottom
)

// VAlignFromWire maps the light-member alignment codes.
func VAlignFromWire(u32 uint32) (VAlign, bool) {
	switch u32 {
	case 0:
		return VAlignCenter, true
	case 1:
		return VAlignTop, true
	case 3:
		return VAlignBottom, true
	default:
		return VAlignCenter, false
	}
}

// ToWire returns the light-member alignment code.
func (a VAlign) ToWire() uint32 {
	switch a {
	case VAlignTop:
		return 1
	case VAlignBottom:
		return 3
	default:
		return 0
	}
}

// FontStyle describes text rendering for a value or area.
type FontStyle struct {
	Bold      bool
	Italic    bool
	Underline bool
	Show      bool
	FG        Color
	BG        Color
	Typeface  string
	Size      float64 // points
}

// CellStyle describes cell geometry and alignment.
type CellStyle struct {
	HAlign        HAlign
	VAlign        VAlign
	DecimalOffset float64
	// Margins are left, right, top, bottom in that order.
	Margins [4]int
}

// AreaStyle styles one of the eight table areas.
type AreaStyle struct {
	Font FontStyle
	Cell CellStyle
	// AlternateColors enables FG2/BG2 on alternate rows.
	AlternateColors bool
	FG2             Color
	BG2             Color
}

// Area identifies one of the eight styled regions of a table, in the
// order the light member stores them.
type Area uint8

const (
	AreaTitle Area = iota
	AreaCaption
	AreaFooter
	AreaCorner
	AreaColumnLabels
	AreaRowLabels
	AreaData
	AreaLayers
	NAreas
)

// Border identifies one of the nineteen table border lines, in the order
// the light member stores them.
type Border uint8

const (
	BorderTitle Border = iota
	BorderOuterLeft
	BorderOuterTop
	BorderOuterRight
	BorderOuterBottom
	BorderInnerLeft
	BorderInnerTop
	BorderInnerRight
	BorderInnerBottom
	BorderDataLeft
	BorderDataTop
	BorderDimRowHorz
	BorderDimRowVert
	BorderCatRowHorz
	BorderCatRowVert
	BorderDimColHorz
	BorderDimColVert
	BorderCatColHorz
	BorderCatColVert
	NBorders
)

// BorderStyle is the stroke and color of one border line.
type BorderStyle struct {
	Stroke Stroke
	Color  Color
}
