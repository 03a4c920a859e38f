// Package pivot defines the pivot-table data model shared by the light and
// legacy member decoders: values and their modifications, number formats,
// styles, category trees, dimensions, axes, footnotes and the table itself.
package pivot

import (
	"fmt"

	"github.com/arloliu/spv/errs"
)

// FormatType enumerates the value output formats.
type FormatType uint8

const (
	FormatF FormatType = iota
	FormatComma
	FormatDot
	FormatDollar
	FormatPct
	FormatE
	FormatCCA
	FormatCCB
	FormatCCC
	FormatCCD
	FormatCCE
	FormatN
	FormatZ
	FormatP
	FormatPK
	FormatIB
	FormatPIB
	FormatPIBHex
	FormatRB
	FormatRBHex
	FormatDate
	FormatADate
	FormatEDate
	FormatJDate
	FormatSDate
	FormatQYr
	FormatMoYr
	FormatWkYr
	FormatDateTime
	FormatYmdHms
	FormatMTime
	FormatTime
	FormatDTime
	FormatWkDay
	FormatMonth
	FormatA
	FormatAHex
)

var formatNames = map[FormatType]string{
	FormatF: "F", FormatComma: "COMMA", FormatDot: "DOT", FormatDollar: "DOLLAR",
	FormatPct: "PCT", FormatE: "E", FormatCCA: "CCA", FormatCCB: "CCB",
	FormatCCC: "CCC", FormatCCD: "CCD", FormatCCE: "CCE", FormatN: "N",
	FormatZ: "Z", FormatP: "P", FormatPK: "PK", FormatIB: "IB",
	FormatPIB: "PIB", FormatPIBHex: "PIBHEX", FormatRB: "RB", FormatRBHex: "RBHEX",
	FormatDate: "DATE", FormatADate: "ADATE", FormatEDate: "EDATE", FormatJDate: "JDATE",
	FormatSDate: "SDATE", FormatQYr: "QYR", FormatMoYr: "MOYR", FormatWkYr: "WKYR",
	FormatDateTime: "DATETIME", FormatYmdHms: "YMDHMS", FormatMTime: "MTIME",
	FormatTime: "TIME", FormatDTime: "DTIME", FormatWkDay: "WKDAY",
	FormatMonth: "MONTH", FormatA: "A", FormatAHex: "AHEX",
}

func (t FormatType) String() string {
	if s, ok := formatNames[t]; ok {
		return s
	}

	return fmt.Sprintf("FormatType(%d)", uint8(t))
}

// IsString reports whether the type formats string data.
func (t FormatType) IsString() bool { return t == FormatA || t == FormatAHex }

// fromIO maps the on-disk IO format codes to format types.
var fromIO = map[uint8]FormatType{
	1: FormatA, 2: FormatAHex, 3: FormatComma, 4: FormatDollar, 5: FormatF,
	6: FormatIB, 7: FormatPIBHex, 8: FormatP, 9: FormatPIB, 10: FormatPK,
	11: FormatRB, 12: FormatRBHex, 15: FormatZ, 16: FormatN, 17: FormatE,
	20: FormatDate, 21: FormatTime, 22: FormatDateTime, 23: FormatADate,
	24: FormatJDate, 25: FormatDTime, 26: FormatWkDay, 27: FormatMonth,
	28: FormatMoYr, 29: FormatQYr, 30: FormatWkYr, 31: FormatPct, 32: FormatDot,
	33: FormatCCA, 34: FormatCCB, 35: FormatCCC, 36: FormatCCD, 37: FormatCCE,
	38: FormatEDate, 39: FormatSDate,
}

var toIO = func() map[FormatType]uint8 {
	m := make(map[FormatType]uint8, len(fromIO))
	for io, t := range fromIO {
		m[t] = io
	}

	return m
}()

// Format is a value output format: a type plus field width and decimal
// count. HonorSmall selects scientific notation for magnitudes below the
// configured small threshold.
type Format struct {
	Type       FormatType
	Width      int
	Decimals   int
	HonorSmall bool
}

// DefaultFormat is the fallback applied to unset and invalid format codes.
func DefaultFormat() Format {
	return Format{Type: FormatF, Width: 40, Decimals: 2}
}

// IsSet reports whether the format differs from the zero value.
func (f Format) IsSet() bool { return f != Format{} }

func (f Format) String() string {
	if f.Decimals > 0 {
		return fmt.Sprintf("%s%d.%d", f.Type, f.Width, f.Decimals)
	}

	return fmt.Sprintf("%s%d", f.Type, f.Width)
}

// maxDecimals returns the largest permitted decimal count for a type at
// the given width, or -1 when decimals are not allowed at all.
func maxDecimals(t FormatType, w int) int {
	switch t {
	case FormatA, FormatAHex, FormatPIBHex, FormatRBHex, FormatIB, FormatPIB,
		FormatP, FormatPK, FormatRB, FormatZ, FormatN:
		// decimals carried but not printed for the binary types
		return 16
	case FormatDate, FormatADate, FormatEDate, FormatJDate, FormatSDate,
		FormatQYr, FormatMoYr, FormatWkYr, FormatWkDay, FormatMonth:
		return 0
	case FormatDateTime, FormatYmdHms, FormatTime, FormatDTime, FormatMTime:
		if w >= 18 {
			return 16
		}

		return 0
	default:
		if w <= 1 {
			return 0
		}
		d := w - 1
		if d > 16 {
			d = 16
		}

		return d
	}
}

// FormatFromWire decodes the packed 32-bit format code
// (type<<16 | width<<8 | decimals). The values 0, 1 and 0x10000 all stand
// for an unset string format and decode to the default. An invalid code
// still yields the default format, together with an error naming the code,
// so decoding can continue.
func FormatFromWire(u32 uint32) (Format, error) {
	if u32 == 0 || u32 == 1 || u32 == 0x10000 {
		return DefaultFormat(), nil
	}

	rawType := uint8(u32 >> 16)
	f := Format{Type: FormatF, Width: int(uint8(u32 >> 8)), Decimals: int(uint8(u32))}

	ok := true
	if rawType >= 40 {
		f.HonorSmall = true
	} else if t, found := fromIO[rawType]; found {
		f.Type = t
	} else {
		ok = false
	}

	if ok {
		if f.Width < 1 || f.Width > 40 {
			ok = false
		} else if max := maxDecimals(f.Type, f.Width); f.Decimals > max {
			f.Decimals = max
			if f.Decimals < 0 {
				ok = false
			}
		}
	}

	if !ok {
		return DefaultFormat(), fmt.Errorf("%w: bad format %#x", errs.ErrBadFormatCode, u32)
	}

	return f, nil
}

// ToWire encodes the format as the packed 32-bit code.
func (f Format) ToWire() uint32 {
	if !f.IsSet() {
		return 0
	}
	rawType := uint32(40)
	if !f.HonorSmall {
		if io, ok := toIO[f.Type]; ok {
			rawType = uint32(io)
		} else {
			rawType = 5
		}
	}

	return rawType<<16 | uint32(uint8(f.Width))<<8 | uint32(uint8(f.Decimals))
}
