package session

import (
	"context"
	"io"
	"sync"

	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/overlay"
	"github.com/lledit/lledit/internal/rangealg"
)

// KeyIterator is a pull-based enumerator of a datastore's children, per
// spec.md §9 ("coroutine-style key enumeration"): a lazy sequence that may
// interleave dsid.Broken warning keys with valid keys. Implementations hold
// whatever state they need between calls (schema evaluation, directory
// scanning) rather than materializing the full key list up front.
type KeyIterator interface {
	// Next advances the iterator. ok is false once the sequence is
	// exhausted; err is set only for a hard failure (not for brokenness,
	// which is reported in-band as a dsid.Broken key).
	Next() (key dsid.Key, ok bool, err error)
}

// sliceIterator adapts a precomputed key slice to KeyIterator, for the
// (common) case of a datastore whose keys are all known up front.
type sliceIterator struct {
	keys []dsid.Key
	pos  int
}

func NewSliceIterator(keys []dsid.Key) KeyIterator { return &sliceIterator{keys: keys} }

func (it *sliceIterator) Next() (dsid.Key, bool, error) {
	if it.pos >= len(it.keys) {
		return nil, false, nil
	}
	k := it.keys[it.pos]
	it.pos++
	return k, true, nil
}

// DataStore is the closed capability interface of spec.md §9: every concrete
// kind (Root, FileSystemObject, Slice, the leaf decoders, Structure,
// HeteroArray) implements it via tagged-variant dispatch rather than a class
// hierarchy. Kinds that do not support a given capability return
// *lledit.NotReadableError (for ReadBytes/Write), a zero range with ok=false
// (for LocateField), or the rangealg.End sentinel (for LocateEnd).
type DataStore interface {
	// EnumKeys returns a fresh pull-based iterator over this datastore's
	// children.
	EnumKeys(ctx context.Context) KeyIterator

	// ChildDsid is the pure per-kind resolver of spec.md §4.3: given the next
	// key of a path being opened, it returns either a direct child dsid
	// (exactly this datastore's dsid plus key) or a redirect target, along
	// with the class the child (or redirect target) should be constructed
	// as.
	ChildDsid(key dsid.Key) (dsid.Dsid, string, error)

	// ReadBytes reads r's bytes from this datastore's own coordinate space.
	ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error)

	// Write splices src's bytes into r, fanning out a change notification.
	Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error)

	// LocateField returns the range of a named field, for datastores with
	// named fields (Structure, FileStat).
	LocateField(name string) (rangealg.Range, bool)

	// LocateEnd is a type's self-described extent, used by schema evaluation
	// when no setting has fixed a field's end (spec.md §4.4 step 4).
	LocateEnd(ctx context.Context) (int64, error)

	// GetSize returns this datastore's current byte size.
	GetSize(ctx context.Context) (int64, error)

	// OnChange is delivered to every referrer-as-datastore when the
	// datastore named by source emits a change notification.
	OnChange(source DataStore, key dsid.Key, requestor DataStore)

	// DoFree runs class-specific teardown once the last referrer has been
	// released (close an fd, release scratch handles).
	DoFree() error

	Handle() *Base
}

// Base is the bookkeeping every concrete datastore embeds: the essential
// attributes of spec.md §3 (session back-reference, dsid, referrers,
// outgoing references), generalized from the "common struct instead of deep
// subclassing" note of spec.md §9 by composition rather than embedding
// behavior.
type Base struct {
	mu sync.Mutex

	sess  *Session
	id    dsid.Dsid
	class string

	referrers []Referrer
	outgoing  []dsid.Dsid
}

// NewBase initializes a Base for a datastore under construction. Concrete
// kinds call this from their constructor and embed the result.
func NewBase(sess *Session, id dsid.Dsid, class string) Base {
	return Base{sess: sess, id: id, class: class}
}

func (b *Base) Session() *Session { return b.sess }
func (b *Base) Dsid() dsid.Dsid   { return b.id }
func (b *Base) Class() string     { return b.class }

// AddOutgoing records that this datastore holds an outgoing reference to
// child, maintaining the referrer-symmetry invariant of spec.md §3: the
// caller is responsible for having already added a From(b.Dsid()) referrer to
// child via the session.
func (b *Base) AddOutgoing(child dsid.Dsid) {
	b.mu.Lock()
	b.outgoing = append(b.outgoing, child)
	b.mu.Unlock()
}

func (b *Base) referrerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.referrers)
}

func (b *Base) snapshotReferrers() []Referrer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Referrer, len(b.referrers))
	copy(out, b.referrers)
	return out
}
