package spvbin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/spv/endian"
)

var le = endian.GetLittleEndianEngine()

func TestEvalStruct(t *testing.T) {
	schema := Struct("point",
		F("x", U32(le)),
		F("y", F64(le)),
		F("label", Str(le)),
	)
	data := []byte{
		7, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0xf0, 0x3f, // 1.0
		2, 0, 0, 0, 'h', 'i',
	}
	c := NewCursor(data)
	r, ok := Eval(c, schema, &Context{})
	require.True(t, ok)
	require.NoError(t, c.Err())

	assert.Equal(t, uint64(7), r.Field("x").Uint())
	assert.Equal(t, 1.0, r.Field("y").Float())
	assert.Equal(t, "hi", r.Field("label").Str())
	assert.Nil(t, r.Field("missing"))
	assert.Nil(t, r.Get("x", "nested"))
}

func TestEvalArray(t *testing.T) {
	schema := Array(le, U8())
	c := NewCursor([]byte{3, 0, 0, 0, 10, 20, 30})
	r, ok := Eval(c, schema, &Context{})
	require.True(t, ok)
	require.Equal(t, 3, r.Len())
	assert.Equal(t, uint64(20), r.At(1).Uint())
	assert.Nil(t, r.At(3))
}

func TestEvalUnion(t *testing.T) {
	schema := Union("shape", U8(), map[uint64]*Production{
		1: Struct("circle", F("radius", U32(le))),
		2: Struct("rect", F("w", U32(le)), F("h", U32(le))),
	}, nil)

	t.Run("selects arm by tag", func(t *testing.T) {
		c := NewCursor([]byte{1, 5, 0, 0, 0})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		assert.Equal(t, uint64(1), r.Tag)
		assert.Equal(t, uint64(5), r.Inner().Field("radius").Uint())
	})

	t.Run("unknown tag without fallback fails", func(t *testing.T) {
		c := NewCursor([]byte{9})
		_, ok := Eval(c, schema, &Context{})
		assert.False(t, ok)
		assert.Error(t, c.Err())
	})
}

func TestEvalOptional(t *testing.T) {
	schema := Optional(0x31, 0x58, U32(le))

	t.Run("present", func(t *testing.T) {
		c := NewCursor([]byte{0x31, 7, 0, 0, 0})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		assert.True(t, r.Present)
		assert.Equal(t, uint64(7), r.Inner().Uint())
	})

	t.Run("absent", func(t *testing.T) {
		c := NewCursor([]byte{0x58})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		assert.False(t, r.Present)
		assert.Nil(t, r.Inner())
	})

	t.Run("bad marker", func(t *testing.T) {
		c := NewCursor([]byte{0x99})
		_, ok := Eval(c, schema, &Context{})
		assert.False(t, ok)
		assert.Equal(t, 0, c.ErrorOfs())
	})
}

func TestEvalCounted(t *testing.T) {
	schema := Struct("outer",
		F("block", Counted(le, U8())),
		F("after", U8()),
	)

	t.Run("skips padding", func(t *testing.T) {
		c := NewCursor([]byte{3, 0, 0, 0, 0xaa, 0, 0, 0xbb})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		assert.Equal(t, uint64(0xaa), r.Field("block").Inner().Uint())
		assert.Equal(t, uint64(0xbb), r.Field("after").Uint())
	})

	t.Run("zero count means absent", func(t *testing.T) {
		c := NewCursor([]byte{0, 0, 0, 0, 0xbb})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		assert.False(t, r.Field("block").Present)
		assert.Equal(t, uint64(0xbb), r.Field("after").Uint())
	})
}

func TestEvalVersionCond(t *testing.T) {
	schema := Struct("member",
		F("version", Version(le)),
		F("v3only", Cond(func(v uint32) bool { return v == 3 }, U8())),
		F("tail", U8()),
	)

	t.Run("version 3 reads the gated field", func(t *testing.T) {
		c := NewCursor([]byte{3, 0, 0, 0, 0x11, 0x22})
		ctx := &Context{}
		r, ok := Eval(c, schema, ctx)
		require.True(t, ok)
		assert.Equal(t, uint32(3), ctx.Version)
		assert.Equal(t, uint64(0x11), r.Field("v3only").Inner().Uint())
		assert.Equal(t, uint64(0x22), r.Field("tail").Uint())
	})

	t.Run("version 1 skips it", func(t *testing.T) {
		c := NewCursor([]byte{1, 0, 0, 0, 0x22})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		assert.False(t, r.Field("v3only").Present)
		assert.Equal(t, uint64(0x22), r.Field("tail").Uint())
	})
}

func TestEvalRepeat(t *testing.T) {
	schema := Struct("axes",
		F("n_rows", U32(le)),
		F("n_cols", U32(le)),
		F("rows", Repeat("n_rows", U8())),
		F("cols", Repeat("n_cols", U8())),
	)
	c := NewCursor([]byte{2, 0, 0, 0, 1, 0, 0, 0, 10, 11, 20})
	r, ok := Eval(c, schema, &Context{})
	require.True(t, ok)
	require.Equal(t, 2, r.Field("rows").Len())
	assert.Equal(t, uint64(11), r.Field("rows").At(1).Uint())
	assert.Equal(t, uint64(20), r.Field("cols").At(0).Uint())
}

func TestEvalSkipZeros(t *testing.T) {
	schema := Struct("padded",
		F("pad", SkipZeros(4)),
		F("v", U8()),
	)
	c := NewCursor([]byte{0, 0, 0x07})
	r, ok := Eval(c, schema, &Context{})
	require.True(t, ok)
	assert.Equal(t, uint64(2), r.Field("pad").Uint())
	assert.Equal(t, uint64(7), r.Field("v").Uint())
}

func TestEvalMaybe(t *testing.T) {
	schema := Counted(le, Struct("blk",
		F("a", U8()),
		F("b", Maybe(U8())),
	))

	t.Run("payload present", func(t *testing.T) {
		c := NewCursor([]byte{2, 0, 0, 0, 1, 2})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		blk := r.Inner()
		assert.True(t, blk.Field("b").Present)
		assert.Equal(t, uint64(2), blk.Field("b").Inner().Uint())
	})

	t.Run("payload absent at block end", func(t *testing.T) {
		c := NewCursor([]byte{1, 0, 0, 0, 1})
		r, ok := Eval(c, schema, &Context{})
		require.True(t, ok)
		assert.False(t, r.Inner().Field("b").Present)
	})
}

func TestEvalPeekUnion(t *testing.T) {
	schema := PeekUnion("v", U8(), map[uint64]*Production{
		1: U32(le),
	}, Struct("fallback", F("marker", U8()), F("n", U32(le))))

	c := NewCursor([]byte{0x58, 9, 0, 0, 0})
	r, ok := Eval(c, schema, &Context{})
	require.True(t, ok)
	fb := r.Inner()
	assert.Equal(t, uint64(0x58), fb.Field("marker").Uint(),
		"fallback must re-read the tag byte")
	assert.Equal(t, uint64(9), fb.Field("n").Uint())
}

func TestEvalTruncationSafety(t *testing.T) {
	schema := Struct("record",
		F("magic", Lit(1, 0)),
		F("n", U32(le)),
		F("name", Str(le)),
		F("flag", Bool()),
	)
	full := []byte{1, 0, 7, 0, 0, 0, 2, 0, 0, 0, 'o', 'k', 1}

	for n := 0; n < len(full); n++ {
		c := NewCursor(full[:n])
		_, ok := Eval(c, schema, &Context{})
		assert.False(t, ok, "prefix of %d bytes must fail cleanly", n)
		assert.Error(t, c.Err())
	}

	c := NewCursor(full)
	_, ok := Eval(c, schema, &Context{})
	assert.True(t, ok)
}
