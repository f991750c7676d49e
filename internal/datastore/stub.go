// Package datastore implements the concrete datastore kinds of spec.md
// §4.5: Root, FileSystemObject, Slice, the leaf decoders, Structure, and
// HeteroArray, dispatched over the session.DataStore capability interface by
// tagged variants rather than a subclass hierarchy (spec.md §9).
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

// Stub supplies the default, unsupported implementation of every
// session.DataStore capability, mirroring fuseutil.NotImplementedFileSystem:
// a concrete kind embeds Stub and shadows only the methods its kind actually
// implements. Embedders must still define Handle() themselves (Stub has no
// session.Base to return one from).
type Stub struct{}

func (Stub) EnumKeys(ctx context.Context) session.KeyIterator {
	return session.NewSliceIterator(nil)
}

func (Stub) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	return nil, "", xerrorsInvalidKey(key)
}

func (Stub) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return nil, &lledit.NotReadableError{}
}

func (Stub) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	return overlay.Change{}, &lledit.NotReadableError{}
}

func (Stub) LocateField(name string) (rangealg.Range, bool) {
	return rangealg.Range{}, false
}

// LocateEnd's default reports an indeterminate extent (the End sentinel),
// per spec.md §4.4 step 4 ("propagate END if indeterminate").
func (Stub) LocateEnd(ctx context.Context) (int64, error) {
	return rangealg.End, nil
}

func (Stub) GetSize(ctx context.Context) (int64, error) {
	return 0, nil
}

func (Stub) OnChange(source session.DataStore, key dsid.Key, requestor session.DataStore) {}

func (Stub) DoFree() error { return nil }

func xerrorsInvalidKey(key dsid.Key) error {
	return &lledit.InvalidDsidError{Dsid: key.String(), Reason: "this datastore kind has no children"}
}
