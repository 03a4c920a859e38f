// Package errs defines sentinel errors shared across the spv packages.
//
// Callers match these with errors.Is; the concrete messages wrap them with
// context such as member names and byte offsets.
package errs

import "errors"

var (
	// ErrTruncated indicates a binary member ended before a production
	// could be fully read.
	ErrTruncated = errors.New("data truncated")

	// ErrInvalidFormat indicates bytes that do not match any production of
	// the schema being decoded.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrBadReference indicates an index or ID that does not resolve, such
	// as an out-of-range footnote or leaf index, or an XML ref attribute
	// naming an unknown or wrongly typed node.
	ErrBadReference = errors.New("bad reference")

	// ErrDuplicateID indicates two XML nodes carrying the same ID, or two
	// leaves claiming the same data index.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrBadFormatCode indicates a value format whose type, width, or
	// decimal count is out of range for its type.
	ErrBadFormatCode = errors.New("bad format code")

	// ErrNotSPV indicates a file that is not an SPV container.
	ErrNotSPV = errors.New("not an SPV file")

	// ErrMemberMissing indicates a container item naming a ZIP member that
	// does not exist.
	ErrMemberMissing = errors.New("container member missing")

	// ErrWellFormed indicates an XML member that is not well-formed.
	ErrWellFormed = errors.New("document is not well-formed")

	// ErrUnresolved indicates legacy series whose derived expressions never
	// converge due to circular or missing references.
	ErrUnresolved = errors.New("unresolved reference")
)
