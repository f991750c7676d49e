package datastore

import (
	"context"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/session"
)

// Root holds the session's registered top-level names; every open path
// begins here (spec.md §4.5). It exists for the session's entire lifetime.
type Root struct {
	session.Base
	Stub
}

// NewRoot is the session.Constructor for the Root class.
func NewRoot(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
	return &Root{Base: session.NewBase(sess, id, class)}, nil
}

func (r *Root) Handle() *session.Base { return &r.Base }

func (r *Root) EnumKeys(ctx context.Context) session.KeyIterator {
	names := r.Session().TopLevelNames()
	keys := make([]dsid.Key, len(names))
	for i, n := range names {
		keys[i] = dsid.Name(n)
	}
	return session.NewSliceIterator(keys)
}

func (r *Root) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	name, ok := key.(dsid.Name)
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "root only has named top-level children"}
	}
	canonical, class, ok := r.Session().TopLevelClass(string(name))
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "no such top-level datastore"}
	}
	return r.Dsid().Append(dsid.Name(canonical)), class, nil
}
