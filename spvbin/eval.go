package spvbin

import "math"

// Context carries state threaded through an evaluation, currently the
// member version consumed by Version productions and tested by Cond.
type Context struct {
	Version uint32
}

// Eval evaluates the production against the cursor, returning the record
// tree and whether the parse succeeded. On failure the cursor's error
// state names the enclosing productions; call Cursor.Err for the rendered
// error.
func Eval(c *Cursor, p *Production, ctx *Context) (*Record, bool) {
	return eval(c, p, ctx, nil)
}

func eval(c *Cursor, p *Production, ctx *Context, parent *Record) (*Record, bool) {
	r := &Record{Name: p.Name, Present: true}
	start := c.Ofs()

	switch p.Kind {
	case KindU8:
		v, ok := c.U8()
		if !ok {
			return nil, c.FailAt("u8", start)
		}
		r.U = uint64(v)

	case KindU16:
		v, ok := c.U16(p.Engine)
		if !ok {
			return nil, c.FailAt("u16", start)
		}
		r.U = uint64(v)

	case KindU32:
		v, ok := c.U32(p.Engine)
		if !ok {
			return nil, c.FailAt("u32", start)
		}
		r.U = uint64(v)

	case KindU64:
		v, ok := c.U64(p.Engine)
		if !ok {
			return nil, c.FailAt("u64", start)
		}
		r.U = v

	case KindI32:
		v, ok := c.I32(p.Engine)
		if !ok {
			return nil, c.FailAt("i32", start)
		}
		r.U = uint64(uint32(v))

	case KindI64:
		v, ok := c.I64(p.Engine)
		if !ok {
			return nil, c.FailAt("i64", start)
		}
		r.U = uint64(v)

	case KindF32:
		v, ok := c.F32(p.Engine)
		if !ok {
			return nil, c.FailAt("f32", start)
		}
		r.F = float64(v)

	case KindF64:
		v, ok := c.F64(p.Engine)
		if !ok {
			return nil, c.FailAt("f64", start)
		}
		r.F = v

	case KindBool:
		v, ok := c.Bool()
		if !ok {
			return nil, c.FailAt("bool", start)
		}
		if v {
			r.U = 1
		}

	case KindString:
		s, ok := c.String(p.Engine)
		if !ok {
			return nil, c.FailAt("string", start)
		}
		r.S = s

	case KindBytes:
		b, ok := c.Bytes(p.N)
		if !ok {
			return nil, c.FailAt("bytes", start)
		}
		r.Raw = b

	case KindLiteral:
		if !c.MatchBytes(p.Literal) {
			return nil, c.FailAt("literal", start)
		}
		r.Raw = p.Literal

	case KindStruct:
		for _, f := range p.Fields {
			child, ok := eval(c, f.Prod, ctx, r)
			if !ok {
				return nil, c.FailAt(p.Name, start)
			}
			child.Name = f.Name
			r.Children = append(r.Children, child)
		}

	case KindArray:
		n, ok := c.U32(p.Engine)
		if !ok {
			return nil, c.FailAt("array count", start)
		}
		if uint64(n) > uint64(c.Remaining()) {
			return nil, c.FailAt("array count", start)
		}
		for i := uint32(0); i < n; i++ {
			child, okc := eval(c, p.Inner, ctx, r)
			if !okc {
				return nil, c.FailAt("array element", start)
			}
			r.Children = append(r.Children, child)
		}
		r.U = uint64(n)

	case KindUnion:
		tagOfs := c.Save()
		tag, ok := eval(c, p.Tag, ctx, r)
		if !ok {
			return nil, c.FailAt(p.Name, start)
		}
		r.Tag = tag.U
		arm, found := p.Cases[tag.U]
		if !found {
			arm = p.Default
			if arm != nil && p.PeekDefault {
				c.Restore(tagOfs)
			}
		}
		if arm == nil {
			return nil, c.FailAt(p.Name, start)
		}
		child, ok := eval(c, arm, ctx, parent)
		if !ok {
			return nil, c.FailAt(p.Name, start)
		}
		r.Children = append(r.Children, child)

	case KindOptional:
		b, ok := c.U8()
		if !ok {
			return nil, c.FailAt("optional", start)
		}
		switch b {
		case p.Absent:
			r.Present = false
		case p.Present:
			child, okc := eval(c, p.Inner, ctx, r)
			if !okc {
				return nil, c.FailAt("optional", start)
			}
			r.Children = append(r.Children, child)
		default:
			c.Restore(c.Ofs() - 1)

			return nil, c.FailAt("optional", start)
		}

	case KindCounted:
		limit, ok := c.PushLimit(p.Engine)
		if !ok {
			return nil, c.FailAt("counted", start)
		}
		if c.Remaining() == 0 {
			// zero-length block means the payload is absent
			r.Present = false
			c.PopLimit(limit)

			break
		}
		child, ok := eval(c, p.Inner, ctx, parent)
		if !ok {
			c.PopLimit(limit)

			return nil, c.FailAt("counted", start)
		}
		c.PopLimit(limit)
		r.Children = append(r.Children, child)

	case KindCond:
		if p.If != nil && !p.If(ctx.Version) {
			r.Present = false

			break
		}
		child, ok := eval(c, p.Inner, ctx, parent)
		if !ok {
			return nil, false
		}
		r.Children = append(r.Children, child)

	case KindVersion:
		v, ok := c.U32(p.Engine)
		if !ok {
			return nil, c.FailAt("version", start)
		}
		ctx.Version = v
		r.U = uint64(v)

	case KindMaybe:
		if c.Remaining() == 0 {
			r.Present = false

			break
		}
		child, ok := eval(c, p.Inner, ctx, parent)
		if !ok {
			return nil, c.FailAt("maybe", start)
		}
		r.Children = append(r.Children, child)

	case KindSkipZeros:
		target := byte(0)
		if len(p.Literal) > 0 {
			target = p.Literal[0]
		}
		n := 0
		for n < p.N && c.MatchByte(target) {
			n++
		}
		r.U = uint64(n)

	case KindRepeat:
		count := parent.Field(p.CountFrom)
		if count == nil || count.Uint() > uint64(c.Remaining()) {
			return nil, c.FailAt("repeat count", start)
		}
		for i := uint64(0); i < count.Uint(); i++ {
			child, ok := eval(c, p.Inner, ctx, r)
			if !ok {
				return nil, c.FailAt("repeat element", start)
			}
			r.Children = append(r.Children, child)
		}
		r.U = count.Uint()

	default:
		return nil, c.FailAt("unknown production", start)
	}

	return r, true
}

// Float64Bits exposes the raw bits of a record float, used by encoders
// when re-emitting values unchanged.
func Float64Bits(f float64) uint64 { return math.Float64bits(f) }
