package spv

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/light"
	"github.com/arloliu/spv/pivot"
)

type member struct {
	name string
	data []byte
}

func buildZip(t *testing.T, members []member) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = w.Write(m.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func openZip(t *testing.T, members []member, opts ...ReaderOption) *File {
	t.Helper()

	data := buildZip(t, members)
	f, err := Read(bytes.NewReader(data), int64(len(data)), opts...)
	require.NoError(t, err)

	return f
}

func manifest() member {
	return member{name: "META-INF/MANIFEST.MF", data: []byte("allowPivoting=true")}
}

// lightMember returns an encoded light table with one row dimension of
// two leaves holding the values 1.5 and 2.5.
func lightMember(t *testing.T) []byte {
	t.Helper()

	tb := pivot.NewTable()
	tb.Title = pivot.NewUserText("Statistics")
	root := pivot.NewGroup(pivot.NewText("Row"))
	root.AddChild(pivot.NewLeaf(pivot.NewText("a"), 0))
	root.AddChild(pivot.NewLeaf(pivot.NewText("b"), 1))
	d := pivot.NewDimension(root)
	require.NoError(t, d.FillLeaves())
	tb.AddDimension(d)
	require.NoError(t, tb.BindAxes(nil, []int{0}, nil))
	require.NoError(t, tb.Put([]int{0}, pivot.NewNumber(1.5)))
	require.NoError(t, tb.Put([]int{1}, pivot.NewNumber(2.5)))

	data, err := light.Encode(tb)
	require.NoError(t, err)

	return data
}

// legacyBinMember assembles an old-style binary member with a single
// source named tableData.
func legacyBinMember(t *testing.T, vars map[string][]float64, order []string) []byte {
	t.Helper()

	nValues := 0
	for _, vs := range vars {
		nValues = len(vs)
	}
	headerSize := 2 + 2 + 4 + 4 + 4 + 4 + 4 + 64 + 4 + 64

	var buf bytes.Buffer
	u16 := func(v uint16) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	u32 := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	fixed := func(s string, n int) {
		b := make([]byte, n)
		copy(b, s)
		buf.Write(b)
	}

	buf.Write([]byte{0x01, 0x00})
	u16(0xb0)
	u32(1)
	u32(uint32(headerSize + len(vars)*(288+8*nValues)))
	u32(uint32(nValues))
	u32(uint32(len(vars)))
	u32(uint32(headerSize))
	fixed("tableData", 64)
	u32(0)
	fixed("", 64)
	require.Equal(t, headerSize, buf.Len())

	for _, name := range order {
		fixed(name, 288)
		for _, v := range vars[name] {
			_ = binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
		}
	}

	return buf.Bytes()
}

func structureMember(body string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?><heading>` + body + `</heading>`)
}

func tableContainer(label, dataPath, xmlPath string) string {
	path := ""
	if xmlPath != "" {
		path = `<path>` + xmlPath + `</path>`
	}

	return `<container visibility="visible"><label>` + label + `</label>` +
		`<table commandName="Frequencies" subType="Statistics">` +
		`<tableStructure>` + path + `<dataPath>` + dataPath + `</dataPath></tableStructure>` +
		`</table></container>`
}

func TestDetect(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		data := buildZip(t, []member{manifest()})
		assert.NoError(t, Detect(bytes.NewReader(data), int64(len(data))))
	})

	t.Run("MissingManifest", func(t *testing.T) {
		data := buildZip(t, []member{{name: "other.txt", data: []byte("x")}})
		err := Detect(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, errs.ErrNotSPV)
	})

	t.Run("WrongManifest", func(t *testing.T) {
		data := buildZip(t, []member{{name: "META-INF/MANIFEST.MF", data: []byte("nope")}})
		err := Detect(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, errs.ErrNotSPV)
	})

	t.Run("NotZip", func(t *testing.T) {
		data := []byte("this is not an archive")
		err := Detect(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, errs.ErrNotSPV)

		_, err = Read(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, errs.ErrNotSPV)
	})
}

func TestReadLightTable(t *testing.T) {
	f := openZip(t, []member{
		manifest(),
		{name: "outputViewer0000000001.xml", data: structureMember(
			tableContainer("Statistics", "0000000001_table.bin", "") +
				tableContainer("Statistics Again", "0000000001_table.bin", ""))},
		{name: "0000000001_table.bin", data: lightMember(t)},
	})
	defer f.Close()

	require.Len(t, f.Root.Children, 1)
	heading := f.Root.Children[0]
	require.Len(t, heading.Children, 2)

	item := heading.Children[0]
	require.Equal(t, KindTable, item.Kind)
	assert.Equal(t, "Statistics", item.Label)

	table, err := item.Table()
	require.NoError(t, err)
	assert.Equal(t, "Statistics", table.Title.BodyText())
	require.Len(t, table.Dimensions, 1)
	assert.Equal(t, 1.5, table.Get([]int{0}).Numeric.X)
	assert.Equal(t, 2.5, table.Get([]int{1}).Numeric.X)

	again, err := item.Table()
	require.NoError(t, err)
	assert.Same(t, table, again, "repeated decode of one item")

	shared, err := heading.Children[1].Table()
	require.NoError(t, err)
	assert.Same(t, table, shared, "items referencing the same member data")
}

func TestReadLegacyTable(t *testing.T) {
	detail := []byte(`
<visualization name="Crosstabs" creator="pspp" lang="en">
  <sourceVariable id="s_dim" source="tableData" sourceName="dim0"/>
  <sourceVariable id="s_cell" source="tableData" sourceName="cells"/>
  <graph>
    <faceting>
      <cross>
        <nest><variableReference ref="s_dim"/></nest>
        <unity/>
      </cross>
    </faceting>
    <interval>
      <labeling variable="s_cell"/>
    </interval>
  </graph>
</visualization>`)
	bin := legacyBinMember(t, map[string][]float64{
		"dim0":  {1, 2},
		"cells": {10.5, 20.5},
	}, []string{"dim0", "cells"})

	f := openZip(t, []member{
		manifest(),
		{name: "outputViewer0000000002.xml", data: structureMember(
			tableContainer("Crosstabs", "0000000002_table.bin", "0000000002_table.xml"))},
		{name: "0000000002_table.bin", data: bin},
		{name: "0000000002_table.xml", data: detail},
	})
	defer f.Close()

	item := f.Root.Children[0].Children[0]
	require.Equal(t, KindTable, item.Kind)
	require.NotNil(t, item.Ref)
	assert.Equal(t, "0000000002_table.xml", item.Ref.XMLMember)

	table, err := item.Table()
	require.NoError(t, err)
	assert.Equal(t, "Crosstabs", table.Title.BodyText())
	assert.Equal(t, "Statistics", table.Subtype.BodyText())
	require.Len(t, table.Dimensions, 1)
	assert.Equal(t, 10.5, table.Get([]int{0}).Numeric.X)
	assert.Equal(t, 20.5, table.Get([]int{1}).Numeric.X)
}

func TestReadTableErrors(t *testing.T) {
	t.Run("EmptyLightMember", func(t *testing.T) {
		f := openZip(t, []member{
			manifest(),
			{name: "outputViewer0000000001.xml", data: structureMember(
				tableContainer("t", "empty.bin", ""))},
			{name: "empty.bin", data: nil},
		})
		defer f.Close()

		table, err := f.Root.Children[0].Children[0].Table()
		require.ErrorContains(t, err, "light table member is empty")
		assert.NotNil(t, table)
	})

	t.Run("MissingDataMember", func(t *testing.T) {
		f := openZip(t, []member{
			manifest(),
			{name: "outputViewer0000000001.xml", data: structureMember(
				tableContainer("t", "absent.bin", ""))},
		})
		defer f.Close()

		_, err := f.Root.Children[0].Children[0].Table()
		assert.ErrorIs(t, err, errs.ErrMemberMissing)
	})

	t.Run("CorruptLightMember", func(t *testing.T) {
		f := openZip(t, []member{
			manifest(),
			{name: "outputViewer0000000001.xml", data: structureMember(
				tableContainer("t", "bad.bin", ""))},
			{name: "bad.bin", data: []byte{0xde, 0xad, 0xbe, 0xef}},
		})
		defer f.Close()

		item := f.Root.Children[0].Children[0]
		table, err := item.Table()
		require.ErrorContains(t, err, "bad.bin")

		require.NotNil(t, table, "corrupt member yields a placeholder table")
		assert.Equal(t, "Error", table.Title.BodyText())
		cell := table.Get([]int{})
		require.NotNil(t, cell)
		assert.Contains(t, cell.BodyText(), "bad.bin")

		again, errAgain := item.Table()
		assert.Same(t, err, errAgain, "decode failures memoize too")
		assert.Same(t, table, again)
	})

	t.Run("NotATableItem", func(t *testing.T) {
		f := openZip(t, []member{manifest()})
		defer f.Close()

		_, err := f.Root.Table()
		assert.ErrorContains(t, err, "holds no table")
	})
}

func TestBadStructureMemberBecomesErrorItem(t *testing.T) {
	f := openZip(t, []member{
		manifest(),
		{name: "outputViewer0000000001.xml", data: structureMember("")},
		{name: "outputViewer0000000002.xml", data: []byte("<unclosed")},
	})
	defer f.Close()

	require.Len(t, f.Root.Children, 2)
	assert.Equal(t, KindGroup, f.Root.Children[0].Kind)

	errItem := f.Root.Children[1]
	assert.Equal(t, KindText, errItem.Kind)
	assert.Equal(t, "Error", errItem.Label)
	require.NotNil(t, errItem.Text)
	assert.Contains(t, errItem.Text.Content, "outputViewer0000000002.xml: ")
}

func TestMemberLimit(t *testing.T) {
	f := openZip(t, []member{
		manifest(),
		{name: "outputViewer0000000001.xml", data: structureMember(
			tableContainer("t", "big.bin", ""))},
		{name: "big.bin", data: bytes.Repeat([]byte{0xaa}, 4096)},
	}, WithMemberLimit(1024))
	defer f.Close()

	_, err := f.Root.Children[0].Children[0].Table()
	require.ErrorContains(t, err, "exceeds the 1024 byte limit")

	good := buildZip(t, []member{manifest()})
	_, err = Read(bytes.NewReader(good), int64(len(good)), WithMemberLimit(-1))
	require.ErrorContains(t, err, "member limit must be positive")
}

func TestImageData(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	f := openZip(t, []member{
		manifest(),
		{name: "outputViewer0000000001.xml", data: structureMember(
			`<container visibility="visible"><label>Chart</label>` +
				`<object type="image" uri="chart001.png"/></container>`)},
		{name: "chart001.png", data: png},
	})
	defer f.Close()

	item := f.Root.Children[0].Children[0]
	require.Equal(t, KindImage, item.Kind)

	data, err := item.ImageData()
	require.NoError(t, err)
	assert.Equal(t, png, data)

	_, err = f.Root.ImageData()
	assert.ErrorContains(t, err, "holds no image")
}

func TestPageSetupSurfaces(t *testing.T) {
	f := openZip(t, []member{
		manifest(),
		{name: "outputViewer0000000001.xml", data: structureMember(
			`<pageSetup initial-page-number="2"/>`)},
	})
	defer f.Close()

	require.NotNil(t, f.PageSetup)
	assert.Equal(t, 2, f.PageSetup.InitialPageNumber)
}

func TestErrorTable(t *testing.T) {
	table := ErrorTable("member.bin: not decodable")
	require.NotNil(t, table.Title)
	assert.Equal(t, "Error", table.Title.BodyText())

	cell := table.Get([]int{})
	require.NotNil(t, cell)
	assert.Equal(t, "member.bin: not decodable", cell.BodyText())
}
