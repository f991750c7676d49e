package datastore

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/session"
)

// attachFull opens (and permanently addrefs, as an outgoing reference) the
// datastore named by id's parent dsid, for kinds that view the same
// coordinate space as their parent rather than a named sub-field (Structure,
// HeteroArray, Slice's own parent).
func attachFull(sess *session.Session, id dsid.Dsid) (session.DataStore, error) {
	parentID, ok := id.Parent()
	if !ok {
		return nil, xerrors.Errorf("%s: datastore has no parent to attach to", id.String())
	}
	return sess.Open(context.Background(), parentID, session.From(id))
}

// attachLeaf is attachFull plus the field name a leaf should query via its
// parent's LocateField, when id's last key names one (a Structure field
// child); it is empty for a TypeMarker-requested view, which reads its
// parent's entire range directly instead.
func attachLeaf(sess *session.Session, id dsid.Dsid) (session.DataStore, string, error) {
	parent, err := attachFull(sess, id)
	if err != nil {
		return nil, "", err
	}
	lastKey := id[len(id)-1]
	if name, ok := lastKey.(dsid.Name); ok {
		return parent, string(name), nil
	}
	return parent, "", nil
}
