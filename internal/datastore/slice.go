package datastore

import (
	"context"
	"io"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/overlay"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
)

// Slice is the generic [start, end) window datastore produced whenever a
// non-identity CharRange key is opened (spec.md §4.1, §9): it forwards reads
// and writes to its parent translated into the parent's coordinate space,
// and re-translates change notifications back into its own before fanning
// them out (the open-question decision of spec.md §9).
type Slice struct {
	session.Base
	Stub

	parent session.DataStore
	window rangealg.Range // in parent's local coordinates
}

// NewSlice is the session.Constructor for the Slice class, registered
// against any CharRange key that isn't the identity range (session.Open
// handles the identity case itself by collapsing it, per spec.md §4.3).
func NewSlice(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
	if len(id) == 0 {
		return nil, xerrors.Errorf("slice: empty dsid")
	}
	cr, ok := id[len(id)-1].(dsid.CharRange)
	if !ok {
		return nil, xerrors.Errorf("slice %s: last key is not a char range", id.String())
	}
	parent, err := attachFull(sess, id)
	if err != nil {
		return nil, err
	}
	return &Slice{Base: session.NewBase(sess, id, class), parent: parent, window: cr.Range()}, nil
}

func (s *Slice) Handle() *session.Base { return &s.Base }

func (s *Slice) resolvedWindow(ctx context.Context) (rangealg.Range, error) {
	if !s.window.Open() {
		return s.window, nil
	}
	size, err := s.parent.GetSize(ctx)
	if err != nil {
		return rangealg.Range{}, err
	}
	return s.window.Resolve(size), nil
}

func (s *Slice) GetSize(ctx context.Context) (int64, error) {
	w, err := s.resolvedWindow(ctx)
	if err != nil {
		return 0, err
	}
	return w.End - w.Start, nil
}

func (s *Slice) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return s.parent.ReadBytes(ctx, rangealg.Translate(s.window, r))
}

func (s *Slice) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	change, err := s.parent.Write(ctx, rangealg.Translate(s.window, r), src)
	if err != nil {
		return overlay.Change{}, err
	}
	local := rangealg.Offset(change.Range, -s.window.Start)
	if local.Start < 0 {
		local.Start = 0
	}
	if local.End != rangealg.End && !s.window.Open() {
		if width := s.window.End - s.window.Start; local.End > width {
			local.End = width
		}
	}
	s.Session().NotifyChange(s, dsid.CharRange(local), s)
	return overlay.Change{Range: local}, nil
}

// OnChange re-translates a parent notification that overlaps this slice's
// window into the slice's own local coordinates before forwarding it.
func (s *Slice) OnChange(source session.DataStore, key dsid.Key, requestor session.DataStore) {
	cr, ok := key.(dsid.CharRange)
	if !ok {
		return
	}
	overlap, ok := rangealg.Intersect(cr.Range(), s.window)
	if !ok {
		return
	}
	local := rangealg.Offset(overlap, -s.window.Start)
	s.Session().NotifyChange(s, dsid.CharRange(local), requestor)
}

func (s *Slice) LocateEnd(ctx context.Context) (int64, error) { return s.GetSize(ctx) }

func (s *Slice) DoFree() error {
	return s.Session().Release(s.parent, session.From(s.Dsid()))
}

func (s *Slice) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "a byte range has no named or indexed children of its own"}
}
