// Package spvbin implements the binary layer shared by the SPV member
// decoders: a bounds-checked cursor over a byte buffer, and a data-driven
// schema engine that evaluates production tables into record trees.
//
// The cursor tracks a visible size separate from the buffer length so that
// counted blocks can temporarily narrow the readable region. Parse failures
// do not abort immediately; they are accumulated on the cursor together
// with the production names active at the failure point, and the first
// failing offset, so a single Err call reports where and inside what the
// data went wrong.
package spvbin

import (
	"fmt"
	"math"
	"strings"

	"github.com/arloliu/spv/endian"
	"github.com/arloliu/spv/errs"
)

// MaxErrorContexts bounds the number of production names retained on the
// error stack. The total error counter keeps incrementing past it.
const MaxErrorContexts = 16

// Cursor reads binary data with an explicit visible size and offset.
// The zero value is not usable; call NewCursor.
type Cursor struct {
	data []byte
	size int
	ofs  int

	errTotal int
	errOfs   int
	errCtx   []errContext
}

// errContext is one entry of the error stack: the production's name and
// the offset it started reading at.
type errContext struct {
	name string
	ofs  int
}

// NewCursor returns a cursor over data with the visible size set to the
// full buffer length.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data, size: len(data)}
}

// Ofs returns the current byte offset.
func (c *Cursor) Ofs() int { return c.ofs }

// Size returns the current visible size.
func (c *Cursor) Size() int { return c.size }

// Remaining returns the number of visible bytes left.
func (c *Cursor) Remaining() int { return c.size - c.ofs }

// Save captures the current offset for later Restore. Saving and restoring
// is a plain integer copy; the error state is unaffected.
func (c *Cursor) Save() int { return c.ofs }

// Restore rewinds the cursor to a previously saved offset.
func (c *Cursor) Restore(ofs int) { c.ofs = ofs }

// Fail records a parse failure inside the production named name, taken to
// start at the current offset. Only the offset of the first failure is
// kept as ErrorOfs; later failures still increment the total counter and,
// up to MaxErrorContexts, extend the context stack.
func (c *Cursor) Fail(name string) bool {
	return c.FailAt(name, c.ofs)
}

// FailAt is Fail for a production whose payload started at start.
func (c *Cursor) FailAt(name string, start int) bool {
	if c.errTotal == 0 {
		c.errOfs = c.ofs
	}
	if c.errTotal < MaxErrorContexts {
		c.errCtx = append(c.errCtx, errContext{name: name, ofs: start})
	}
	c.errTotal++

	return false
}

// Failed reports whether any failure has been recorded.
func (c *Cursor) Failed() bool { return c.errTotal > 0 }

// ErrorOfs returns the offset of the first recorded failure.
func (c *Cursor) ErrorOfs() int { return c.errOfs }

// Err returns nil if no failure was recorded, otherwise an error wrapping
// errs.ErrInvalidFormat that names the first failing offset and the
// production context, innermost first, each with its start offset.
func (c *Cursor) Err() error {
	if c.errTotal == 0 {
		return nil
	}
	names := make([]string, len(c.errCtx))
	for i, e := range c.errCtx {
		names[i] = fmt.Sprintf("%s (%#x)", e.name, e.ofs)
	}
	ctx := strings.Join(names, " in ")
	if c.errTotal > MaxErrorContexts {
		ctx = fmt.Sprintf("%s (%d more)", ctx, c.errTotal-MaxErrorContexts)
	}

	return fmt.Errorf("%w: parse error at offset %#x in %s", errs.ErrInvalidFormat, c.errOfs, ctx)
}

// Bytes consumes n raw bytes.
func (c *Cursor) Bytes(n int) ([]byte, bool) {
	if n < 0 || n > c.size-c.ofs {
		return nil, false
	}
	b := c.data[c.ofs : c.ofs+n]
	c.ofs += n

	return b, true
}

// U8 consumes one byte.
func (c *Cursor) U8() (byte, bool) {
	if c.ofs >= c.size {
		return 0, false
	}
	b := c.data[c.ofs]
	c.ofs++

	return b, true
}

// U16 consumes a 16-bit integer in the given byte order.
func (c *Cursor) U16(e endian.EndianEngine) (uint16, bool) {
	b, ok := c.Bytes(2)
	if !ok {
		return 0, false
	}

	return e.Uint16(b), true
}

// U32 consumes a 32-bit integer in the given byte order.
func (c *Cursor) U32(e endian.EndianEngine) (uint32, bool) {
	b, ok := c.Bytes(4)
	if !ok {
		return 0, false
	}

	return e.Uint32(b), true
}

// U64 consumes a 64-bit integer in the given byte order.
func (c *Cursor) U64(e endian.EndianEngine) (uint64, bool) {
	b, ok := c.Bytes(8)
	if !ok {
		return 0, false
	}

	return e.Uint64(b), true
}

// I32 consumes a signed 32-bit integer in the given byte order.
func (c *Cursor) I32(e endian.EndianEngine) (int32, bool) {
	v, ok := c.U32(e)

	return int32(v), ok
}

// I64 consumes a signed 64-bit integer in the given byte order.
func (c *Cursor) I64(e endian.EndianEngine) (int64, bool) {
	v, ok := c.U64(e)

	return int64(v), ok
}

// F32 consumes a 32-bit float in the given byte order.
func (c *Cursor) F32(e endian.EndianEngine) (float32, bool) {
	v, ok := c.U32(e)

	return math.Float32frombits(v), ok
}

// F64 consumes a 64-bit float in the given byte order.
func (c *Cursor) F64(e endian.EndianEngine) (float64, bool) {
	v, ok := c.U64(e)

	return math.Float64frombits(v), ok
}

// Bool consumes one byte that must be 0 or 1.
func (c *Cursor) Bool() (bool, bool) {
	if c.ofs >= c.size {
		return false, false
	}
	b := c.data[c.ofs]
	if b > 1 {
		return false, false
	}
	c.ofs++

	return b != 0, true
}

// String consumes a 32-bit length in the given byte order followed by that
// many raw bytes. No charset conversion is applied.
func (c *Cursor) String(e endian.EndianEngine) (string, bool) {
	n, ok := c.U32(e)
	if !ok {
		return "", false
	}
	if uint64(n) > uint64(c.size-c.ofs) {
		c.ofs -= 4

		return "", false
	}
	s := string(c.data[c.ofs : c.ofs+int(n)])
	c.ofs += int(n)

	return s, true
}

// MatchByte consumes one byte if it equals b. On mismatch the cursor does
// not advance.
func (c *Cursor) MatchByte(b byte) bool {
	if c.ofs >= c.size || c.data[c.ofs] != b {
		return false
	}
	c.ofs++

	return true
}

// MatchBytes consumes len(b) bytes if they equal b. On mismatch the cursor
// does not advance.
func (c *Cursor) MatchBytes(b []byte) bool {
	if len(b) > c.size-c.ofs {
		return false
	}
	for i, x := range b {
		if c.data[c.ofs+i] != x {
			return false
		}
	}
	c.ofs += len(b)

	return true
}

// Limit is a narrowed visible region opened by PushLimit.
type Limit struct {
	savedSize int
}

// PushLimit consumes a 32-bit byte count in the given byte order and
// narrows the visible size to end that many bytes past the current offset.
// The returned Limit must be handed back to PopLimit.
func (c *Cursor) PushLimit(e endian.EndianEngine) (Limit, bool) {
	n, ok := c.U32(e)
	if !ok {
		return Limit{}, false
	}
	if uint64(n) > uint64(c.size-c.ofs) {
		c.ofs -= 4

		return Limit{}, false
	}
	l := Limit{savedSize: c.size}
	c.size = c.ofs + int(n)

	return l, true
}

// PopLimit closes a narrowed region: the offset is placed at the limit
// boundary, skipping any bytes the inner productions left unread, and the
// previous visible size is restored.
func (c *Cursor) PopLimit(l Limit) {
	c.ofs = c.size
	c.size = l.savedSize
}
