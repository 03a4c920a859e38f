package spvbin

import "github.com/arloliu/spv/endian"

// Kind identifies what a production reads from the wire.
type Kind uint8

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindU64
	KindI32
	KindI64
	KindF32
	KindF64
	KindBool
	KindString
	KindBytes   // fixed-length raw bytes
	KindLiteral // exact bytes that must be present
	KindStruct  // ordered named fields
	KindArray   // u32 count then that many elements
	KindUnion   // tag production selecting a case
	KindOptional
	KindCounted // u32 byte count narrowing the visible size
	KindCond    // present only when the predicate holds
	KindVersion // u32 stored into the evaluation context
	KindMaybe   // present only when bytes remain in the visible region
	KindSkipZeros // consumes up to N zero bytes greedily
	KindRepeat  // N elements where N comes from a sibling field
)

// Production is one row of a schema table. Schemas are plain data: build
// them with the constructor functions below and hand the root to Eval.
type Production struct {
	Kind   Kind
	Name   string
	Engine endian.EndianEngine

	N       int    // KindBytes length
	Literal []byte // KindLiteral bytes

	Fields []Field // KindStruct

	Inner *Production // KindArray, KindOptional, KindCounted, KindCond

	Tag     *Production             // KindUnion tag
	Cases   map[uint64]*Production  // KindUnion arms
	Default *Production             // KindUnion fallback, nil means tag is an error
	If      func(version uint32) bool // KindCond predicate

	Present byte // KindOptional marker for a present payload
	Absent  byte // KindOptional marker for no payload

	// PeekDefault rewinds the tag bytes before evaluating the union
	// fallback, for grammars whose fallback arm carries no tag.
	PeekDefault bool

	// CountFrom names the sibling field holding a repeat count.
	CountFrom string
}

// Field is a named member of a struct production.
type Field struct {
	Name string
	Prod *Production
}

func prim(k Kind, e endian.EndianEngine) *Production {
	return &Production{Kind: k, Engine: e}
}

// U8 reads one unsigned byte.
func U8() *Production { return prim(KindU8, nil) }

// U16 reads a 16-bit unsigned integer.
func U16(e endian.EndianEngine) *Production { return prim(KindU16, e) }

// U32 reads a 32-bit unsigned integer.
func U32(e endian.EndianEngine) *Production { return prim(KindU32, e) }

// U64 reads a 64-bit unsigned integer.
func U64(e endian.EndianEngine) *Production { return prim(KindU64, e) }

// I32 reads a 32-bit signed integer.
func I32(e endian.EndianEngine) *Production { return prim(KindI32, e) }

// I64 reads a 64-bit signed integer.
func I64(e endian.EndianEngine) *Production { return prim(KindI64, e) }

// F32 reads a 32-bit float.
func F32(e endian.EndianEngine) *Production { return prim(KindF32, e) }

// F64 reads a 64-bit float.
func F64(e endian.EndianEngine) *Production { return prim(KindF64, e) }

// Bool reads one byte that must be 0 or 1.
func Bool() *Production { return prim(KindBool, nil) }

// Str reads a 32-bit length followed by that many raw bytes.
func Str(e endian.EndianEngine) *Production { return prim(KindString, e) }

// Bytes reads exactly n raw bytes.
func Bytes(n int) *Production { return &Production{Kind: KindBytes, N: n} }

// Lit requires the exact bytes b to be present and consumes them.
func Lit(b ...byte) *Production { return &Production{Kind: KindLiteral, Literal: b} }

// Struct reads the named fields in order.
func Struct(name string, fields ...Field) *Production {
	return &Production{Kind: KindStruct, Name: name, Fields: fields}
}

// F pairs a field name with its production.
func F(name string, p *Production) Field { return Field{Name: name, Prod: p} }

// Array reads a 32-bit element count followed by that many inner elements.
func Array(e endian.EndianEngine, inner *Production) *Production {
	return &Production{Kind: KindArray, Engine: e, Inner: inner}
}

// Union reads the tag production and then the case it selects. A nil
// fallback makes an unlisted tag a parse error.
func Union(name string, tag *Production, cases map[uint64]*Production, fallback *Production) *Production {
	return &Production{Kind: KindUnion, Name: name, Tag: tag, Cases: cases, Default: fallback}
}

// Optional reads one marker byte: present means the payload follows,
// absent means it does not. Any other byte is a parse error.
func Optional(present, absent byte, inner *Production) *Production {
	return &Production{Kind: KindOptional, Inner: inner, Present: present, Absent: absent}
}

// Counted reads a 32-bit byte count, evaluates the payload inside the
// narrowed region, and skips to the region's end regardless of how much
// the payload consumed.
func Counted(e endian.EndianEngine, inner *Production) *Production {
	return &Production{Kind: KindCounted, Engine: e, Inner: inner}
}

// Cond evaluates the payload only when the predicate holds for the
// member version; otherwise it reads nothing and yields an absent record.
func Cond(pred func(version uint32) bool, inner *Production) *Production {
	return &Production{Kind: KindCond, Inner: inner, If: pred}
}

// Version reads a 32-bit integer and stores it as the member version for
// later Cond productions.
func Version(e endian.EndianEngine) *Production { return prim(KindVersion, e) }

// Maybe evaluates the payload only when bytes remain in the visible
// region, for trailing optional constructs inside counted blocks.
func Maybe(inner *Production) *Production {
	return &Production{Kind: KindMaybe, Inner: inner}
}

// SkipZeros consumes up to n zero bytes greedily, stopping at the first
// non-zero byte.
func SkipZeros(n int) *Production { return &Production{Kind: KindSkipZeros, N: n} }

// SkipByte consumes up to n bytes equal to b greedily.
func SkipByte(b byte, n int) *Production {
	return &Production{Kind: KindSkipZeros, N: n, Literal: []byte{b}}
}

// Repeat reads as many inner elements as the named sibling field, which
// must already have been evaluated within the same struct.
func Repeat(countFrom string, inner *Production) *Production {
	return &Production{Kind: KindRepeat, CountFrom: countFrom, Inner: inner}
}

// PeekUnion is like Union but rewinds the tag before evaluating the
// fallback, so a fallback arm carrying no tag byte parses correctly.
func PeekUnion(name string, tag *Production, cases map[uint64]*Production, fallback *Production) *Production {
	return &Production{Kind: KindUnion, Name: name, Tag: tag, Cases: cases, Default: fallback, PeekDefault: true}
}
