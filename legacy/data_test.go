package legacy

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dataWriter struct {
	buf bytes.Buffer
}

func (w *dataWriter) u16(v uint16) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *dataWriter) u32(v uint32) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *dataWriter) f64(v float64) {
	_ = binary.Write(&w.buf, binary.LittleEndian, math.Float64bits(v))
}

func (w *dataWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *dataWriter) fixed(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.buf.Write(b)
}

// oldBinaryMember assembles a single-source member with the given
// variables, in either metadata layout.
func oldBinaryMember(t *testing.T, version uint16, sourceName string, vars map[string][]float64, varOrder []string) []byte {
	t.Helper()

	nValues := 0
	for _, vs := range vars {
		nValues = len(vs)
	}

	headerSize := 2 + 2 + 4 + 4
	if version == versionAF {
		headerSize += 4 + 4 + 4 + 28
	} else {
		headerSize += 4 + 4 + 4 + 64 + 4 + 64
	}

	var w dataWriter
	w.buf.Write([]byte{0x01, 0x00})
	w.u16(version)
	w.u32(1)
	w.u32(uint32(headerSize + len(vars)*(288+8*nValues)))
	w.u32(uint32(nValues))
	w.u32(uint32(len(vars)))
	w.u32(uint32(headerSize))
	if version == versionAF {
		w.fixed(sourceName, 28)
	} else {
		w.fixed(sourceName, 64)
		w.u32(0)
		w.fixed("", 64)
	}
	require.Equal(t, headerSize, w.buf.Len())

	for _, name := range varOrder {
		w.fixed(name, 288)
		for _, v := range vars[name] {
			w.f64(v)
		}
	}

	return w.buf.Bytes()
}

func TestDecodeData(t *testing.T) {
	vars := map[string][]float64{
		"dim0":  {1, 2, 1},
		"cells": {10.5, 20.5, 30.5},
	}
	order := []string{"dim0", "cells"}

	t.Run("VersionB0", func(t *testing.T) {
		data, err := DecodeData(oldBinaryMember(t, versionB0, "tableData", vars, order))
		require.NoError(t, err)
		require.Len(t, data.Sources, 1)

		src := data.FindSource("tableData")
		require.NotNil(t, src)
		assert.Equal(t, 3, src.NValues)
		require.Len(t, src.Vars, 2)

		dim := data.FindVariable("tableData", "dim0")
		require.NotNil(t, dim)
		require.Len(t, dim.Values, 3)
		assert.Equal(t, 2.0, dim.Values[1].Number)
		assert.False(t, dim.Values[1].IsString)
		assert.Equal(t, SysMis, dim.Values[1].Index)

		cells := data.FindVariable("tableData", "cells")
		require.NotNil(t, cells)
		assert.Equal(t, 30.5, cells.Values[2].Number)
	})

	t.Run("VersionAF", func(t *testing.T) {
		data, err := DecodeData(oldBinaryMember(t, versionAF, "t0", vars, order))
		require.NoError(t, err)
		assert.NotNil(t, data.FindVariable("t0", "cells"))
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member[2] = 0x99
		_, err := DecodeData(member)
		require.Error(t, err)
	})

	t.Run("BadMagic", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member[0] = 0xff
		_, err := DecodeData(member)
		require.Error(t, err)
	})

	t.Run("MissingVariable", func(t *testing.T) {
		data, err := DecodeData(oldBinaryMember(t, versionB0, "tableData", vars, order))
		require.NoError(t, err)
		assert.Nil(t, data.FindVariable("tableData", "nope"))
		assert.Nil(t, data.FindVariable("other", "dim0"))
	})
}

func TestDecodeDataTruncated(t *testing.T) {
	member := oldBinaryMember(t, versionB0, "tableData", map[string][]float64{"v": {1, 2}}, []string{"v"})
	// chopping anywhere inside the data region must fail, not crash
	for n := 0; n < len(member); n += 7 {
		_, err := DecodeData(member[:n])
		assert.Error(t, err, "prefix of %d bytes", n)
	}
}

func TestDecodeStringsTrailer(t *testing.T) {
	buildTrailer := func(sourceName, varName string, valueIdx, labelIdx uint32, labels ...string) []byte {
		var w dataWriter
		w.u32(1)
		w.str(sourceName)
		w.u32(1)
		w.str(varName)
		w.u32(1)
		w.u32(valueIdx)
		w.u32(labelIdx)
		w.u32(uint32(len(labels)))
		for _, l := range labels {
			w.u32(1)
			w.str(l)
		}

		return w.buf.Bytes()
	}

	vars := map[string][]float64{"dim0": {1, 2}}
	order := []string{"dim0"}

	t.Run("AppliesLabels", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member = append(member, buildTrailer("tableData", "dim0", 1, 0, "Female")...)

		data, err := DecodeData(member)
		require.NoError(t, err)
		v := data.FindVariable("tableData", "dim0")
		require.NotNil(t, v)
		assert.False(t, v.Values[0].IsString)
		require.True(t, v.Values[1].IsString)
		assert.Equal(t, "Female", v.Values[1].S)
	})

	t.Run("UnknownSource", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member = append(member, buildTrailer("other", "dim0", 0, 0, "x")...)

		_, err := DecodeData(member)
		require.ErrorContains(t, err, "unknown source")
	})

	t.Run("WrongVariableName", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member = append(member, buildTrailer("tableData", "mismatch", 0, 0, "x")...)

		_, err := DecodeData(member)
		require.ErrorContains(t, err, "wrong variable")
	})

	t.Run("ValueIndexOutOfRange", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member = append(member, buildTrailer("tableData", "dim0", 9, 0, "x")...)

		_, err := DecodeData(member)
		require.ErrorContains(t, err, "only 2 values")
	})

	t.Run("LabelIndexOutOfRange", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member = append(member, buildTrailer("tableData", "dim0", 0, 5, "x")...)

		_, err := DecodeData(member)
		require.ErrorContains(t, err, "labels are present")
	})

	t.Run("TrailingGarbage", func(t *testing.T) {
		member := oldBinaryMember(t, versionB0, "tableData", vars, order)
		member = append(member, buildTrailer("tableData", "dim0", 1, 0, "Female")...)
		member = append(member, 0xde, 0xad)

		_, err := DecodeData(member)
		require.ErrorContains(t, err, "expected end of file")
	})
}

func TestDatumEqual(t *testing.T) {
	assert.True(t, Datum{Number: 1}.Equal(Datum{Number: 1}))
	assert.False(t, Datum{Number: 1}.Equal(Datum{Number: 2}))
	assert.True(t, Datum{IsString: true, S: "a", Index: 3}.Equal(Datum{IsString: true, S: "a", Index: 3}))
	assert.False(t, Datum{IsString: true, S: "a", Index: 3}.Equal(Datum{IsString: true, S: "a", Index: 4}))
	assert.False(t, Datum{IsString: true, S: "a"}.Equal(Datum{Number: 0}))
}
