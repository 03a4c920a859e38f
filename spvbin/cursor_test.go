package spvbin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/spv/endian"
	"github.com/arloliu/spv/errs"
)

func TestCursorPrimitives(t *testing.T) {
	le := endian.GetLittleEndianEngine()
	be := endian.GetBigEndianEngine()

	data := []byte{
		0x01,                   // u8
		0x02, 0x03,             // u16 LE = 0x0302
		0x0a, 0x0b, 0x0c, 0x0d, // u32 BE = 0x0a0b0c0d
	}
	c := NewCursor(data)

	b, ok := c.U8()
	require.True(t, ok)
	assert.Equal(t, byte(1), b)

	v16, ok := c.U16(le)
	require.True(t, ok)
	assert.Equal(t, uint16(0x0302), v16)

	v32, ok := c.U32(be)
	require.True(t, ok)
	assert.Equal(t, uint32(0x0a0b0c0d), v32)

	assert.Equal(t, 0, c.Remaining())
	_, ok = c.U8()
	assert.False(t, ok)
}

func TestCursorBool(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		want bool
		ok   bool
	}{
		{name: "false", b: 0, want: false, ok: true},
		{name: "true", b: 1, want: true, ok: true},
		{name: "out of range", b: 2, ok: false},
		{name: "high bit", b: 0xff, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor([]byte{tt.b})
			got, ok := c.Bool()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, 1, c.Ofs())
			} else {
				assert.Equal(t, 0, c.Ofs())
			}
		})
	}
}

func TestCursorString(t *testing.T) {
	le := endian.GetLittleEndianEngine()

	t.Run("basic", func(t *testing.T) {
		c := NewCursor([]byte{3, 0, 0, 0, 'a', 'b', 'c'})
		s, ok := c.String(le)
		require.True(t, ok)
		assert.Equal(t, "abc", s)
		assert.Equal(t, 0, c.Remaining())
	})

	t.Run("empty", func(t *testing.T) {
		c := NewCursor([]byte{0, 0, 0, 0})
		s, ok := c.String(le)
		require.True(t, ok)
		assert.Empty(t, s)
	})

	t.Run("length past visible size", func(t *testing.T) {
		c := NewCursor([]byte{4, 0, 0, 0, 'a', 'b'})
		_, ok := c.String(le)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Ofs(), "failed read must not consume the length")
	})

	t.Run("huge length does not overflow", func(t *testing.T) {
		c := NewCursor([]byte{0xff, 0xff, 0xff, 0xff, 'a'})
		_, ok := c.String(le)
		assert.False(t, ok)
	})
}

func TestCursorSaveRestore(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4})
	pos := c.Save()
	_, _ = c.U8()
	_, _ = c.U8()
	c.Restore(pos)
	b, ok := c.U8()
	require.True(t, ok)
	assert.Equal(t, byte(1), b)
}

func TestCursorLimit(t *testing.T) {
	le := endian.GetLittleEndianEngine()

	t.Run("pop skips unread bytes", func(t *testing.T) {
		// limit of 3 bytes, only 1 consumed inside, then a trailing byte
		c := NewCursor([]byte{3, 0, 0, 0, 0xaa, 0xbb, 0xcc, 0xdd})
		l, ok := c.PushLimit(le)
		require.True(t, ok)
		assert.Equal(t, 3, c.Remaining())

		b, ok := c.U8()
		require.True(t, ok)
		assert.Equal(t, byte(0xaa), b)

		c.PopLimit(l)
		assert.Equal(t, 7, c.Ofs(), "offset must land at the limit boundary")

		b, ok = c.U8()
		require.True(t, ok)
		assert.Equal(t, byte(0xdd), b)
	})

	t.Run("limit hides trailing bytes", func(t *testing.T) {
		c := NewCursor([]byte{1, 0, 0, 0, 0xaa, 0xbb})
		l, ok := c.PushLimit(le)
		require.True(t, ok)
		_, _ = c.U8()
		_, ok = c.U8()
		assert.False(t, ok, "read past the limit must fail")
		c.PopLimit(l)
		b, ok := c.U8()
		require.True(t, ok)
		assert.Equal(t, byte(0xbb), b)
	})

	t.Run("count past end fails", func(t *testing.T) {
		c := NewCursor([]byte{9, 0, 0, 0, 0xaa})
		_, ok := c.PushLimit(le)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Ofs())
	})
}

func TestCursorMatch(t *testing.T) {
	c := NewCursor([]byte{1, 0, 0xfe})
	assert.True(t, c.MatchBytes([]byte{1, 0}))
	assert.False(t, c.MatchByte(0xad))
	assert.Equal(t, 2, c.Ofs(), "mismatch must not advance")
	assert.True(t, c.MatchByte(0xfe))
}

func TestCursorErrorState(t *testing.T) {
	c := NewCursor(nil)
	require.NoError(t, c.Err())

	c.Fail("inner")
	c.Fail("outer")
	assert.Equal(t, 0, c.ErrorOfs())

	err := c.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidFormat)
	assert.Contains(t, err.Error(), "inner (0x0) in outer (0x0)")
}

func TestCursorErrorContextOffsets(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4, 5, 6})
	_, ok := c.Bytes(4)
	require.True(t, ok)

	// the failing production started two bytes before the failure point
	c.FailAt("field", 2)
	c.FailAt("record", 0)
	assert.Equal(t, 4, c.ErrorOfs(), "first failure keeps the cursor offset")

	err := c.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at offset 0x4")
	assert.Contains(t, err.Error(), "field (0x2) in record (0x0)")
}

func TestCursorErrorOverflow(t *testing.T) {
	c := NewCursor(nil)
	for i := 0; i < MaxErrorContexts+5; i++ {
		c.Fail("ctx")
	}
	err := c.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 more")
}
