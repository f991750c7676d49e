package datastore

import (
	"context"
	"io"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/overlay"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
)

// leafBase is shared by every scalar byte-view decoder (Data, UIntBE,
// CString, Boolean, Enumeration): it reads and writes through its parent,
// translating between its own local coordinates and the parent's, per
// spec.md §4.5. A leaf is either a Structure field child (attached via its
// field name) or a TypeMarker-requested view of its parent's whole range.
type leafBase struct {
	session.Base
	Stub

	parent    session.DataStore
	fieldName string
}

func (l *leafBase) ownRange(ctx context.Context) (rangealg.Range, error) {
	if l.fieldName == "" {
		size, err := l.parent.GetSize(ctx)
		if err != nil {
			return rangealg.Range{}, err
		}
		return rangealg.Range{Start: 0, End: size}, nil
	}
	r, ok := l.parent.LocateField(l.fieldName)
	if !ok {
		return rangealg.Range{}, &lledit.SchemaMismatchError{Field: l.fieldName}
	}
	return r, nil
}

func (l *leafBase) readRange(ctx context.Context, r rangealg.Range) ([]byte, error) {
	fr, err := l.ownRange(ctx)
	if err != nil {
		return nil, err
	}
	return l.parent.ReadBytes(ctx, rangealg.Translate(fr, r))
}

func (l *leafBase) widthOf(ctx context.Context) (int64, error) {
	fr, err := l.ownRange(ctx)
	if err != nil {
		return 0, err
	}
	if fr.Open() {
		size, err := l.parent.GetSize(ctx)
		if err != nil {
			return 0, err
		}
		return size - fr.Start, nil
	}
	return fr.End - fr.Start, nil
}

func (l *leafBase) writeRange(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	fr, err := l.ownRange(ctx)
	if err != nil {
		return overlay.Change{}, err
	}
	change, err := l.parent.Write(ctx, rangealg.Translate(fr, r), src)
	if err != nil {
		return overlay.Change{}, err
	}
	local := rangealg.Offset(change.Range, -fr.Start)
	if local.Start < 0 {
		local.Start = 0
	}
	l.Session().NotifyChange(l, dsid.CharRange(local), l)
	return overlay.Change{Range: local}, nil
}

func (l *leafBase) GetSize(ctx context.Context) (int64, error) { return l.widthOf(ctx) }

// OnChange re-translates a parent notification into this leaf's own
// coordinates before forwarding it, mirroring Slice's rule (spec.md §9).
func (l *leafBase) OnChange(source session.DataStore, key dsid.Key, requestor session.DataStore) {
	cr, ok := key.(dsid.CharRange)
	if !ok {
		l.Session().NotifyChange(l, key, requestor)
		return
	}
	fr, err := l.ownRange(context.Background())
	if err != nil {
		return
	}
	overlap, ok := rangealg.Intersect(cr.Range(), fr)
	if !ok {
		return
	}
	local := rangealg.Offset(overlap, -fr.Start)
	l.Session().NotifyChange(l, dsid.CharRange(local), requestor)
}

func (l *leafBase) DoFree() error {
	return l.Session().Release(l.parent, session.From(l.Dsid()))
}

// Data is a raw, undecoded byte view: used for opaque blobs (padding,
// checksums treated as bytes, anything a schema doesn't further decompose).
type Data struct {
	leafBase
	selfWidth int64 // 0 means indeterminate (reported as the End sentinel)
}

// NewDataConstructor builds the session.Constructor for a Data class of the
// given self-described width (0 means "indeterminate", i.e. the rest of
// whatever it's attached to).
func NewDataConstructor(width int64) session.Constructor {
	return func(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
		parent, fieldName, err := attachLeaf(sess, id)
		if err != nil {
			return nil, err
		}
		return &Data{
			leafBase:  leafBase{Base: session.NewBase(sess, id, class), parent: parent, fieldName: fieldName},
			selfWidth: width,
		}, nil
	}
}

func (d *Data) Handle() *session.Base { return &d.Base }

func (d *Data) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return d.readRange(ctx, r)
}
func (d *Data) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	return d.writeRange(ctx, r, src)
}
func (d *Data) LocateEnd(ctx context.Context) (int64, error) {
	if d.selfWidth > 0 {
		return d.selfWidth, nil
	}
	return rangealg.End, nil
}

// UIntBE decodes a fixed-width big-endian unsigned integer.
type UIntBE struct {
	leafBase
	width int64
}

// NewUIntBEConstructor builds a UIntBE class of the given byte width.
func NewUIntBEConstructor(width int64) session.Constructor {
	return func(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
		parent, fieldName, err := attachLeaf(sess, id)
		if err != nil {
			return nil, err
		}
		return &UIntBE{leafBase: leafBase{Base: session.NewBase(sess, id, class), parent: parent, fieldName: fieldName}, width: width}, nil
	}
}

func (u *UIntBE) Handle() *session.Base { return &u.Base }

func (u *UIntBE) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return u.readRange(ctx, r)
}
func (u *UIntBE) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	return u.writeRange(ctx, r, src)
}
func (u *UIntBE) LocateEnd(ctx context.Context) (int64, error) { return u.width, nil }

// Value decodes this field's current bytes as an unsigned integer.
func (u *UIntBE) Value(ctx context.Context) (uint64, error) {
	b, err := u.readRange(ctx, rangealg.Range{Start: 0, End: u.width})
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// Boolean decodes a single byte as a truth value (nonzero is true).
type Boolean struct{ leafBase }

// NewBooleanConstructor builds the session.Constructor for a Boolean class.
func NewBooleanConstructor() session.Constructor {
	return func(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
		parent, fieldName, err := attachLeaf(sess, id)
		if err != nil {
			return nil, err
		}
		return &Boolean{leafBase{Base: session.NewBase(sess, id, class), parent: parent, fieldName: fieldName}}, nil
	}
}

func (b *Boolean) Handle() *session.Base { return &b.Base }

func (b *Boolean) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return b.readRange(ctx, r)
}
func (b *Boolean) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	return b.writeRange(ctx, r, src)
}
func (b *Boolean) LocateEnd(ctx context.Context) (int64, error) { return 1, nil }

func (b *Boolean) Value(ctx context.Context) (bool, error) {
	raw, err := b.readRange(ctx, rangealg.Range{Start: 0, End: 1})
	if err != nil {
		return false, err
	}
	return len(raw) > 0 && raw[0] != 0, nil
}

// CString is a NUL-terminated byte string; its self-described extent scans
// forward from its start for the first zero byte.
type CString struct{ leafBase }

// NewCStringConstructor builds the session.Constructor for a CString class.
func NewCStringConstructor() session.Constructor {
	return func(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
		parent, fieldName, err := attachLeaf(sess, id)
		if err != nil {
			return nil, err
		}
		return &CString{leafBase{Base: session.NewBase(sess, id, class), parent: parent, fieldName: fieldName}}, nil
	}
}

func (c *CString) Handle() *session.Base { return &c.Base }

func (c *CString) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return c.readRange(ctx, r)
}
func (c *CString) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	return c.writeRange(ctx, r, src)
}

func (c *CString) LocateEnd(ctx context.Context) (int64, error) {
	fr, err := c.ownRange(ctx)
	if err != nil {
		return 0, err
	}
	if fr.Open() {
		return rangealg.End, nil
	}
	width := fr.End - fr.Start
	if width <= 0 {
		return rangealg.End, nil
	}
	raw, err := c.readRange(ctx, rangealg.Range{Start: 0, End: width})
	if err != nil {
		return rangealg.End, nil
	}
	for i, b := range raw {
		if b == 0 {
			return int64(i) + 1, nil
		}
	}
	return rangealg.End, nil
}

// Enumeration decodes a fixed-width unsigned integer and looks it up in a
// class-supplied name table, for fields like PNG's color type byte.
type Enumeration struct {
	leafBase
	width int64
	names map[int64]string
}

// NewEnumerationConstructor builds an Enumeration class of the given width
// and value→name table.
func NewEnumerationConstructor(width int64, names map[int64]string) session.Constructor {
	return func(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
		parent, fieldName, err := attachLeaf(sess, id)
		if err != nil {
			return nil, err
		}
		return &Enumeration{leafBase{Base: session.NewBase(sess, id, class), parent: parent, fieldName: fieldName}, width, names}, nil
	}
}

func (e *Enumeration) Handle() *session.Base { return &e.Base }

func (e *Enumeration) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return e.readRange(ctx, r)
}
func (e *Enumeration) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	return e.writeRange(ctx, r, src)
}
func (e *Enumeration) LocateEnd(ctx context.Context) (int64, error) { return e.width, nil }

// Name decodes this field's current value and looks it up in the name
// table; ok is false for a value with no registered name.
func (e *Enumeration) Name(ctx context.Context) (string, bool, error) {
	raw, err := e.readRange(ctx, rangealg.Range{Start: 0, End: e.width})
	if err != nil {
		return "", false, err
	}
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	name, ok := e.names[int64(v)]
	return name, ok, nil
}
