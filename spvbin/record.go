package spvbin

// Record is one node of the tree produced by evaluating a schema. The
// populated fields depend on the production kind that produced it.
type Record struct {
	Name string

	U   uint64  // integers, bools (0/1), union tags
	F   float64 // floats
	S   string  // strings
	Raw []byte  // fixed-byte and literal productions

	// Present reports whether an optional or conditional payload was
	// read. For all other kinds it is true.
	Present bool

	// Tag is the selected union arm.
	Tag uint64

	// Children holds struct fields (in declaration order), array
	// elements, the payload of an optional/counted/conditional/union
	// production.
	Children []*Record
}

// Field returns the child with the given name, or nil.
func (r *Record) Field(name string) *Record {
	if r == nil {
		return nil
	}
	for _, c := range r.Children {
		if c.Name == name {
			return c
		}
	}

	return nil
}

// Get walks nested fields by name, returning nil as soon as one is
// missing.
func (r *Record) Get(path ...string) *Record {
	for _, p := range path {
		r = r.Field(p)
		if r == nil {
			return nil
		}
	}

	return r
}

// Inner returns the payload of an optional, counted, conditional or union
// record, or nil when absent.
func (r *Record) Inner() *Record {
	if r == nil || !r.Present || len(r.Children) == 0 {
		return nil
	}

	return r.Children[0]
}

// Uint returns the integer value, 0 for nil.
func (r *Record) Uint() uint64 {
	if r == nil {
		return 0
	}

	return r.U
}

// U32v returns the integer value truncated to 32 bits.
func (r *Record) U32v() uint32 { return uint32(r.Uint()) }

// Int returns the integer value as a signed 64-bit number.
func (r *Record) Int() int64 { return int64(r.Uint()) }

// I32v returns the integer value as a signed 32-bit number.
func (r *Record) I32v() int32 { return int32(r.Uint()) }

// Float returns the float value, 0 for nil.
func (r *Record) Float() float64 {
	if r == nil {
		return 0
	}

	return r.F
}

// Str returns the string value, empty for nil.
func (r *Record) Str() string {
	if r == nil {
		return ""
	}

	return r.S
}

// Boolv returns the boolean value, false for nil.
func (r *Record) Boolv() bool { return r.Uint() != 0 }

// Len returns the number of children.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}

	return len(r.Children)
}

// At returns the i-th child, or nil when out of range.
func (r *Record) At(i int) *Record {
	if r == nil || i < 0 || i >= len(r.Children) {
		return nil
	}

	return r.Children[i]
}
