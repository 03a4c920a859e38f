package pivot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/spv/errs"
)

func TestFormatFromWire(t *testing.T) {
	tests := []struct {
		name    string
		in      uint32
		want    Format
		wantErr bool
	}{
		{name: "zero is default", in: 0, want: DefaultFormat()},
		{name: "one is default", in: 1, want: DefaultFormat()},
		{name: "bare type is default", in: 0x10000, want: DefaultFormat()},
		{
			name: "F8.2",
			in:   5<<16 | 8<<8 | 2,
			want: Format{Type: FormatF, Width: 8, Decimals: 2},
		},
		{
			name: "comma",
			in:   3<<16 | 10<<8 | 1,
			want: Format{Type: FormatComma, Width: 10, Decimals: 1},
		},
		{
			name: "string A10",
			in:   1<<16 | 10<<8,
			want: Format{Type: FormatA, Width: 10},
		},
		{
			name: "type 40 honors small",
			in:   40<<16 | 12<<8 | 3,
			want: Format{Type: FormatF, Width: 12, Decimals: 3, HonorSmall: true},
		},
		{
			name:    "unknown type code",
			in:      13<<16 | 8<<8,
			want:    DefaultFormat(),
			wantErr: true,
		},
		{
			name:    "zero width",
			in:      5 << 16,
			want:    DefaultFormat(),
			wantErr: true,
		},
		{
			name: "excess decimals clamped",
			in:   5<<16 | 4<<8 | 9,
			want: Format{Type: FormatF, Width: 4, Decimals: 3},
		},
		{
			name: "date with decimals clamped to zero",
			in:   20<<16 | 11<<8 | 2,
			want: Format{Type: FormatDate, Width: 11},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromWire(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.ErrBadFormatCode)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	formats := []Format{
		{Type: FormatF, Width: 8, Decimals: 2},
		{Type: FormatComma, Width: 12, Decimals: 0},
		{Type: FormatA, Width: 20},
		{Type: FormatPct, Width: 6, Decimals: 1},
		{Type: FormatF, Width: 10, Decimals: 4, HonorSmall: true},
	}
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			got, err := FormatFromWire(f.ToWire())
			require.NoError(t, err)
			assert.Equal(t, f, got)
		})
	}
}

func TestColor(t *testing.T) {
	t.Run("parse hash form", func(t *testing.T) {
		c, err := ColorFromString("#1a2b3c", Black)
		require.NoError(t, err)
		assert.Equal(t, Color{Alpha: 0xff, R: 0x1a, G: 0x2b, B: 0x3c}, c)
	})

	t.Run("empty uses default", func(t *testing.T) {
		c, err := ColorFromString("", White)
		require.NoError(t, err)
		assert.Equal(t, White, c)
	})

	t.Run("bad string keeps default", func(t *testing.T) {
		c, err := ColorFromString("#zzz", Black)
		require.Error(t, err)
		assert.Equal(t, Black, c)
	})

	t.Run("wire round trip", func(t *testing.T) {
		c := Color{Alpha: 0x80, R: 1, G: 2, B: 3}
		assert.Equal(t, c, ColorFromWire(c.ToWire()))
	})

	t.Run("zero alpha wire means opaque", func(t *testing.T) {
		assert.Equal(t, uint8(0xff), ColorFromWire(0x00aabbcc).Alpha)
	})
}

func TestHAlignFromWire(t *testing.T) {
	for _, a := range []HAlign{HAlignCenter, HAlignLeft, HAlignRight, HAlignDecimal, HAlignMixed} {
		got, ok := HAlignFromWire(a.ToWire())
		assert.True(t, ok)
		assert.Equal(t, a, got)
	}
	_, ok := HAlignFromWire(5)
	assert.False(t, ok)
}
