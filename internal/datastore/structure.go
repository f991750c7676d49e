package datastore

import (
	"context"
	"io"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/overlay"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/schema"
	"github.com/lledit/lledit/internal/session"
)

// Structure decomposes its parent's byte range into the named fields of a
// declarative schema.Schema (spec.md §4.4), memoising the decode behind a
// generation-counter cache invalidated by overlapping change notifications.
type Structure struct {
	session.Base
	Stub

	parent session.DataStore
	sch    schema.Schema
	cache  schema.Cache
}

// NewStructureConstructor builds the session.Constructor for a Structure
// class decomposing its parent's bytes according to sch.
func NewStructureConstructor(sch schema.Schema) session.Constructor {
	return func(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
		parent, err := attachFull(sess, id)
		if err != nil {
			return nil, err
		}
		return &Structure{Base: session.NewBase(sess, id, class), parent: parent, sch: sch}, nil
	}
}

func (s *Structure) Handle() *session.Base { return &s.Base }

// structSource adapts a Structure to schema.ByteSource. It is a distinct
// type (rather than methods directly on Structure) because schema.ByteSource
// and session.DataStore both want a method named LocateEnd with different
// signatures.
type structSource struct{ s *Structure }

func (b structSource) Size(ctx context.Context) (int64, error) { return b.s.parent.GetSize(ctx) }

func (b structSource) ReadAt(ctx context.Context, start, n int64) ([]byte, error) {
	return b.s.parent.ReadBytes(ctx, rangealg.Range{Start: start, End: start + n})
}

func (b structSource) LocateEnd(ctx context.Context, typeMarker string, start int64) (int64, bool, error) {
	s := b.s
	sliceID := s.Dsid().Append(dsid.CharRange(rangealg.Range{Start: start, End: rangealg.End}))
	typedID := sliceID.Append(dsid.TypeMarker(typeMarker))
	view, err := s.Session().Open(ctx, typedID, session.Tag("<locate-end>"))
	if err != nil {
		return 0, false, err
	}
	defer s.Session().Release(view, session.Tag("<locate-end>"))
	local, err := view.LocateEnd(ctx)
	if err != nil {
		return 0, false, err
	}
	if local == rangealg.End {
		return 0, false, nil
	}
	return start + local, true, nil
}

func (s *Structure) ensure(ctx context.Context) (*schema.Result, error) {
	if res, ok := s.cache.Get(); ok {
		return res, nil
	}
	gen := s.cache.Generation()
	res, err := schema.Eval(ctx, s.sch, structSource{s})
	if err != nil {
		return nil, xerrors.Errorf("structure %s: %w", s.Dsid().String(), err)
	}
	s.cache.Install(gen, res)
	return res, nil
}

// LocateEnd reports this structure's own self-described extent when it is
// itself requested as a typed view (e.g. a heteroarray item or another
// structure's field): the end of the last field its own schema actually
// placed, not the size of whatever backing range it happened to be given
// (which, for a heteroarray item opened over an open-ended [start, END)
// slice, would wrongly report "rest of the file").
func (s *Structure) LocateEnd(ctx context.Context) (int64, error) {
	res, err := s.ensure(ctx)
	if err != nil {
		return 0, err
	}
	var maxEnd int64
	for _, name := range res.Order {
		end := res.Fields[name].Range.End
		if end == rangealg.End {
			return rangealg.End, nil
		}
		if end > maxEnd {
			maxEnd = end
		}
	}
	return maxEnd, nil
}

func (s *Structure) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	name, ok := key.(dsid.Name)
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "a structure's children are named fields"}
	}
	res, err := s.ensure(context.Background())
	if err != nil {
		return nil, "", err
	}
	field, ok := res.Fields[string(name)]
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "no such field"}
	}
	return s.Dsid().Append(key), field.Type, nil
}

func (s *Structure) EnumKeys(ctx context.Context) session.KeyIterator {
	res, err := s.ensure(ctx)
	if err != nil {
		return session.NewSliceIterator([]dsid.Key{dsid.Broken{Description: err.Error()}})
	}
	keys := make([]dsid.Key, 0, len(res.Order)+len(res.Warnings))
	for _, name := range res.Order {
		keys = append(keys, dsid.Name(name))
	}
	for _, w := range res.Warnings {
		keys = append(keys, dsid.Broken{Description: w.Description()})
	}
	return session.NewSliceIterator(keys)
}

func (s *Structure) LocateField(name string) (rangealg.Range, bool) {
	res, err := s.ensure(context.Background())
	if err != nil {
		return rangealg.Range{}, false
	}
	f, ok := res.Fields[name]
	if !ok {
		return rangealg.Range{}, false
	}
	return f.Range, true
}

func (s *Structure) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return s.parent.ReadBytes(ctx, r)
}

func (s *Structure) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	change, err := s.parent.Write(ctx, r, src)
	if err != nil {
		return overlay.Change{}, err
	}
	s.Session().NotifyChange(s, dsid.CharRange(change.Range), s)
	return change, nil
}

func (s *Structure) GetSize(ctx context.Context) (int64, error) { return s.parent.GetSize(ctx) }

// OnChange treats any notification from its parent as overlapping its own
// region (a structure's region is exactly whatever it was given), so it
// conservatively bumps its cache on every one rather than computing overlap.
func (s *Structure) OnChange(source session.DataStore, key dsid.Key, requestor session.DataStore) {
	s.cache.Bump()
	s.Session().NotifyChange(s, key, requestor)
}

func (s *Structure) DoFree() error {
	return s.Session().Release(s.parent, session.From(s.Dsid()))
}
