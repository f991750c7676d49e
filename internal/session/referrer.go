package session

import "github.com/lledit/lledit/internal/dsid"

// Referrer is one entry of a datastore's referrer list (spec.md §3): either a
// plain string annotation (e.g. the transient-construction tag "<temporary>",
// or the self-referrer "<modified>" a datastore holds until commit) or the
// dsid of another live datastore that holds this one as an outgoing
// reference.
type Referrer struct {
	tag     string
	from    dsid.Dsid
	hasFrom bool
}

// Tag returns a string-annotation referrer.
func Tag(tag string) Referrer { return Referrer{tag: tag} }

// From returns a referrer naming the dsid of the holding datastore.
func From(d dsid.Dsid) Referrer { return Referrer{from: d, hasFrom: true} }

const (
	// TagTemporary marks a datastore constructed only to traverse through
	// during Open, released once the walk no longer needs it.
	TagTemporary = "<temporary>"
	// TagModified marks a datastore a session keeps alive across an edit
	// until an external commit releases it.
	TagModified = "<modified>"
)

func (r Referrer) Equal(o Referrer) bool {
	if r.hasFrom != o.hasFrom {
		return false
	}
	if r.hasFrom {
		return dsid.Equal(r.from, o.from)
	}
	return r.tag == o.tag
}

func (r Referrer) String() string {
	if r.hasFrom {
		return r.from.String()
	}
	return r.tag
}
