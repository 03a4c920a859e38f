// Package spv reads SPSS Viewer (.spv) files: zip containers holding an
// outline of headings whose containers carry pivot tables, text, and
// images.
//
// A viewer file is detected by its manifest member. Structure members
// named outputViewer*.xml describe the outline; each table container
// points at a binary data member and, for legacy tables, a detail XML
// member. Table members are decoded lazily on first access and the
// result is shared between items referencing the same data.
//
// # Basic Usage
//
//	f, err := spv.ReadFile("report.spv")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	var walk func(it *spv.Item)
//	walk = func(it *spv.Item) {
//	    if it.Kind == spv.KindTable {
//	        table, err := it.Table()
//	        ...
//	    }
//	    for _, child := range it.Children {
//	        walk(child)
//	    }
//	}
//	walk(f.Root)
//
// Decoding options force a string encoding for light members, seed the
// presentation of legacy tables with a table look, or bound the size of
// decompressed members:
//
//	f, err := spv.ReadFile("report.spv",
//	    spv.WithEncoding("windows-1252"),
//	    spv.WithLook(look),
//	    spv.WithMemberLimit(64<<20))
package spv

import (
	"fmt"

	"github.com/arloliu/spv/internal/options"
	"github.com/arloliu/spv/pivot"
)

// ReaderOption configures a File while it is opened.
type ReaderOption = options.Option[*File]

// WithEncoding forces the character encoding of light table members,
// overriding the charset recorded in each member.
func WithEncoding(charset string) ReaderOption {
	return options.NoError(func(f *File) {
		f.encoding = charset
	})
}

// WithLook seeds legacy tables with presentation settings, standing in
// for the table look the file itself does not carry.
func WithLook(look *pivot.Look) ReaderOption {
	return options.NoError(func(f *File) {
		f.look = look
	})
}

// WithMemberLimit bounds the decompressed size of any single member.
// The default limit is 256 MiB.
func WithMemberLimit(n int64) ReaderOption {
	return options.New(func(f *File) error {
		if n <= 0 {
			return fmt.Errorf("member limit must be positive, got %d", n)
		}
		f.memberLimit = n

		return nil
	})
}
