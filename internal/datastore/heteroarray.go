package datastore

import (
	"context"
	"io"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/overlay"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/schema"
	"github.com/lledit/lledit/internal/session"
)

// IsLastItemFunc is the class-supplied terminal predicate of spec.md §4.4
// (e.g. PNG's IEND chunk), evaluated over the typed item occupying r.
type IsLastItemFunc func(ctx context.Context, parent session.DataStore, r rangealg.Range) (bool, error)

// HeteroArray decomposes its parent's byte range into a sequence of
// same-type items of varying length, discovered lazily by repeatedly typing
// the cursor and asking it its own extent (spec.md §4.4). Children are
// addressed by integer Index; a class built on top of this (e.g. a PNG
// wrapper) may expose friendlier synthetic names by redirecting through it.
type HeteroArray struct {
	session.Base
	Stub

	parent   session.DataStore
	itemType string
	isLast   IsLastItemFunc
	table    *schema.Table
}

// NewHeteroArrayConstructor builds the session.Constructor for a
// HeteroArray class whose items are typed itemType and whose terminal item
// is recognized by isLast (nil means "never terminate early": the array
// runs to the end of its parent's bytes).
func NewHeteroArrayConstructor(itemType string, isLast IsLastItemFunc) session.Constructor {
	return func(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
		parent, err := attachFull(sess, id)
		if err != nil {
			return nil, err
		}
		h := &HeteroArray{Base: session.NewBase(sess, id, class), parent: parent, itemType: itemType, isLast: isLast}
		h.table = schema.NewTable(arraySource{h}, itemType)
		return h, nil
	}
}

func (h *HeteroArray) Handle() *session.Base { return &h.Base }

// arraySource adapts a HeteroArray to schema.ArraySource, for the same
// method-name-collision reason as Structure's structSource.
type arraySource struct{ h *HeteroArray }

func (a arraySource) Size(ctx context.Context) (int64, error) { return a.h.parent.GetSize(ctx) }

func (a arraySource) ItemLength(ctx context.Context, itemType string, start int64) (int64, bool, error) {
	h := a.h
	sliceID := h.Dsid().Append(dsid.CharRange(rangealg.Range{Start: start, End: rangealg.End}))
	typedID := sliceID.Append(dsid.TypeMarker(itemType))
	view, err := h.Session().Open(ctx, typedID, session.Tag("<array-item>"))
	if err != nil {
		return 0, false, err
	}
	defer h.Session().Release(view, session.Tag("<array-item>"))
	local, err := view.LocateEnd(ctx)
	if err != nil {
		return 0, false, err
	}
	if local == rangealg.End {
		return 0, false, nil
	}
	return local, true, nil
}

func (a arraySource) IsLastItem(ctx context.Context, itemType string, r rangealg.Range) (bool, error) {
	if a.h.isLast == nil {
		return false, nil
	}
	return a.h.isLast(ctx, a.h.parent, r)
}

func (h *HeteroArray) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	idx, ok := key.(dsid.Index)
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "a heteroarray's children are integer indices"}
	}
	r, ok, err := h.table.EntryAt(context.Background(), int(idx))
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "array index out of range"}
	}
	target := h.Dsid().Append(dsid.CharRange(r)).Append(dsid.TypeMarker(h.itemType))
	return target, h.itemType, nil
}

func (h *HeteroArray) EnumKeys(ctx context.Context) session.KeyIterator {
	var keys []dsid.Key
	for i := 0; ; i++ {
		_, ok, err := h.table.EntryAt(ctx, i)
		if err != nil {
			keys = append(keys, dsid.Broken{Description: err.Error()})
			break
		}
		if !ok {
			break
		}
		keys = append(keys, dsid.Index(i))
	}
	return session.NewSliceIterator(keys)
}

func (h *HeteroArray) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return h.parent.ReadBytes(ctx, r)
}

func (h *HeteroArray) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	change, err := h.parent.Write(ctx, r, src)
	if err != nil {
		return overlay.Change{}, err
	}
	h.table.Invalidate(change.Range)
	h.Session().NotifyChange(h, dsid.CharRange(change.Range), h)
	return change, nil
}

func (h *HeteroArray) GetSize(ctx context.Context) (int64, error) { return h.parent.GetSize(ctx) }

// LocateEnd, when this array is itself a typed view (a structure field or
// another array's item), extends the table fully and reports where the
// last item ends — 0 if the array is empty.
func (h *HeteroArray) LocateEnd(ctx context.Context) (int64, error) {
	var last rangealg.Range
	for i := 0; ; i++ {
		r, ok, err := h.table.EntryAt(ctx, i)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		last = r
	}
	return last.End, nil
}

func (h *HeteroArray) OnChange(source session.DataStore, key dsid.Key, requestor session.DataStore) {
	if cr, ok := key.(dsid.CharRange); ok {
		h.table.Invalidate(cr.Range())
	}
	h.Session().NotifyChange(h, key, requestor)
}

func (h *HeteroArray) DoFree() error {
	return h.Session().Release(h.parent, session.From(h.Dsid()))
}
