// Package endian provides byte order utilities for binary decoding and encoding.
//
// SPV binary members mix byte orders: light-table members are mostly
// little-endian but contain big-endian blocks (borders, print and table
// settings), and table-look files are little-endian throughout. Schema
// productions therefore name an explicit EndianEngine, combining the
// ByteOrder and AppendByteOrder interfaces from encoding/binary so both
// fixed-offset reads and append-style writes go through one value.
//
// # Basic Usage
//
//	engine := endian.GetLittleEndianEngine()
//	n := engine.Uint32(buf)
//	out = engine.AppendUint32(out, n)
//
// # Thread Safety
//
// The returned EndianEngine instances are immutable and stateless, and safe
// for concurrent use.
package endian

import (
	"encoding/binary"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian from
// the standard library, making it fully compatible with existing Go code while
// providing access to both read/write and append operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
