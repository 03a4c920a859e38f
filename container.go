package spv

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	kflate "github.com/klauspost/compress/flate"

	"github.com/arloliu/spv/errs"
	"github.com/arloliu/spv/internal/options"
	"github.com/arloliu/spv/legacy"
	"github.com/arloliu/spv/light"
	"github.com/arloliu/spv/pivot"
	"github.com/arloliu/spv/spvxml"
	"github.com/arloliu/spv/structure"
)

const (
	manifestMember   = "META-INF/MANIFEST.MF"
	manifestContent  = "allowPivoting=true"
	headingPrefix    = "outputViewer"
	headingSuffix    = ".xml"
	defaultMemberCap = 256 << 20
)

// ItemKind discriminates the arms of Item.
type ItemKind = structure.ItemKind

const (
	KindGroup       = structure.KindGroup
	KindText        = structure.KindText
	KindTable       = structure.KindTable
	KindImage       = structure.KindImage
	KindUnsupported = structure.KindUnsupported
)

// Item is one node of a viewer file's outline. Group items own their
// children; the other kinds are container content.
type Item struct {
	Kind            ItemKind
	Label           string
	CommandName     string
	Show            bool
	PageBreakBefore bool

	Children []*Item             // KindGroup
	Text     *structure.Text     // KindText
	Ref      *structure.TableRef // KindTable
	Image    string              // KindImage, member name or URI
	Message  string              // KindUnsupported

	file     *File
	table    *pivot.Table
	tableErr error
}

// File is an open viewer file.
type File struct {
	Root      *Item
	PageSetup *structure.PageSetup

	zr      *zip.Reader
	closer  io.Closer
	members map[string]*zip.File

	encoding    string
	look        *pivot.Look
	memberLimit int64

	mu     sync.Mutex
	tables map[uint64]*pivot.Table
}

// ReadFile opens the viewer file at path.
func ReadFile(path string, opts ...ReaderOption) (*File, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrNotSPV, path, err)
	}
	f, err := newFile(&rc.Reader, opts)
	if err != nil {
		rc.Close()

		return nil, err
	}
	f.closer = rc

	return f, nil
}

// Read opens a viewer file from an in-memory or seekable source.
func Read(r io.ReaderAt, size int64, opts ...ReaderOption) (*File, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrNotSPV, err)
	}

	return newFile(zr, opts)
}

// Detect reports whether the source looks like a viewer file, without
// decoding any structure member.
func Detect(r io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrNotSPV, err)
	}
	f := &File{zr: zr, memberLimit: defaultMemberCap, members: memberMap(zr)}

	return f.checkManifest()
}

// Close releases the underlying file, if any. Tables already decoded
// stay usable.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil

	return err
}

func memberMap(zr *zip.Reader) map[string]*zip.File {
	m := make(map[string]*zip.File, len(zr.File))
	for _, zf := range zr.File {
		m[zf.Name] = zf
	}

	return m
}

func newFile(zr *zip.Reader, opts []ReaderOption) (*File, error) {
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return kflate.NewReader(r)
	})

	f := &File{
		zr:          zr,
		members:     memberMap(zr),
		memberLimit: defaultMemberCap,
		tables:      make(map[uint64]*pivot.Table),
	}
	if err := options.Apply(f, opts...); err != nil {
		return nil, err
	}

	if err := f.checkManifest(); err != nil {
		return nil, err
	}

	root := &Item{Kind: KindGroup, Show: true, file: f}
	for _, zf := range zr.File {
		if !strings.HasPrefix(zf.Name, headingPrefix) || !strings.HasSuffix(zf.Name, headingSuffix) {
			continue
		}
		child, setup, err := f.readHeading(zf.Name)
		if err != nil {
			// A bad structure member must not hide the rest of the
			// file; it is kept as an error entry in the outline.
			root.Children = append(root.Children, errorItem(zf.Name, err))

			continue
		}
		root.Children = append(root.Children, child)
		if f.PageSetup == nil {
			f.PageSetup = setup
		}
	}
	f.Root = root

	return f, nil
}

func (f *File) checkManifest() error {
	data, err := f.member(manifestMember)
	if err != nil {
		return fmt.Errorf("%w: missing %s", errs.ErrNotSPV, manifestMember)
	}
	if string(bytes.TrimSpace(data)) != manifestContent {
		return fmt.Errorf("%w: %s does not declare %s", errs.ErrNotSPV, manifestMember, manifestContent)
	}

	return nil
}

// member returns the decompressed contents of one zip member, bounded
// by the configured size limit.
func (f *File) member(name string) ([]byte, error) {
	zf, ok := f.members[name]
	if !ok {
		return nil, fmt.Errorf("%w: no member named %q", errs.ErrMemberMissing, name)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, f.memberLimit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if int64(len(data)) > f.memberLimit {
		return nil, fmt.Errorf("%w: member %q exceeds the %d byte limit",
			errs.ErrInvalidFormat, name, f.memberLimit)
	}

	return data, nil
}

func (f *File) readHeading(name string) (*Item, *structure.PageSetup, error) {
	data, err := f.member(name)
	if err != nil {
		return nil, nil, err
	}
	m, err := structure.Parse(data)
	if err != nil {
		return nil, nil, err
	}

	return f.adopt(m.Root), m.PageSetup, nil
}

// adopt converts a structure item into an outline item bound to the
// file, so tables and images can be decoded on demand.
func (f *File) adopt(s *structure.Item) *Item {
	it := &Item{
		Kind:            s.Kind,
		Label:           s.Label,
		CommandName:     s.CommandName,
		Show:            s.Show,
		PageBreakBefore: s.PageBreakBefore,
		Text:            s.Text,
		Ref:             s.Table,
		Image:           s.Image,
		Message:         s.Message,
		file:            f,
	}
	for _, child := range s.Children {
		it.Children = append(it.Children, f.adopt(child))
	}

	return it
}

func errorItem(member string, err error) *Item {
	return &Item{
		Kind:  KindText,
		Label: "Error",
		Show:  true,
		Text: &structure.Text{
			Kind:    structure.TextLog,
			Content: fmt.Sprintf("%s: %s", member, err),
		},
	}
}

// Table decodes the item's pivot table. The first call does the work;
// later calls return the same result. Items that reference identical
// member data share one decoded table. When the member cannot be
// decoded, the error comes back together with a placeholder table
// carrying the message, so renderers keep a table to show in place.
func (it *Item) Table() (*pivot.Table, error) {
	if it.Kind != KindTable {
		return nil, fmt.Errorf("%w: item %q holds no table", errs.ErrInvalidFormat, it.Label)
	}
	if it.table == nil && it.tableErr == nil {
		it.table, it.tableErr = it.file.decodeTable(it.Ref)
		if it.tableErr != nil {
			it.table = ErrorTable(it.tableErr.Error())
		}
	}

	return it.table, it.tableErr
}

// ImageData returns the raw bytes of an image item's member.
func (it *Item) ImageData() ([]byte, error) {
	if it.Kind != KindImage {
		return nil, fmt.Errorf("%w: item %q holds no image", errs.ErrInvalidFormat, it.Label)
	}

	return it.file.member(it.Image)
}

func (f *File) decodeTable(ref *structure.TableRef) (*pivot.Table, error) {
	data, err := f.member(ref.DataMember)
	if err != nil {
		return nil, err
	}
	digest := xxhash.New()
	_, _ = digest.Write(data)

	if ref.XMLMember == "" {
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: %s: light table member is empty",
				errs.ErrInvalidFormat, ref.DataMember)
		}
		if t := f.cached(digest.Sum64()); t != nil {
			return t, nil
		}
		t, err := light.DecodeWithEncoding(data, f.encoding)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ref.DataMember, err)
		}

		return f.remember(digest.Sum64(), t), nil
	}

	xmlData, err := f.member(ref.XMLMember)
	if err != nil {
		return nil, err
	}
	_, _ = digest.Write(xmlData)
	if t := f.cached(digest.Sum64()); t != nil {
		return t, nil
	}

	binary, err := legacy.DecodeData(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.DataMember, err)
	}
	root, err := spvxml.Parse(xmlData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.XMLMember, err)
	}
	t, err := legacy.Decode(root, binary, ref.SubType, f.look)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.XMLMember, err)
	}

	return f.remember(digest.Sum64(), t), nil
}

func (f *File) cached(key uint64) *pivot.Table {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tables[key]
}

func (f *File) remember(key uint64, t *pivot.Table) *pivot.Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.tables[key]; ok {
		return prev
	}
	f.tables[key] = t

	return t
}

// ErrorTable builds the placeholder shown in place of a table that
// could not be decoded: a title of "Error" over the message itself.
func ErrorTable(message string) *pivot.Table {
	t := pivot.NewTable()
	t.Title = pivot.NewText("Error")
	_ = t.BindAxes(nil, nil, nil)
	_ = t.Put([]int{}, pivot.NewUserText(message))

	return t
}
