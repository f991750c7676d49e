// Package session implements the datastore cache and open protocol of
// spec.md §4.3: interning live datastore instances by dsid, reference
// counting them, routing change notifications, and resolving a path one key
// at a time via each datastore kind's own child-dsid resolver.
package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/rangealg"
)

// Constructor builds a fresh DataStore instance for id under class. It may
// perform I/O (stat, open) — the session never holds its lock while calling
// one.
type Constructor func(sess *Session, id dsid.Dsid, class string) (DataStore, error)

// Session is the owning container of the datastore cache and the type
// registry (spec.md §9 "Global state"): no process-wide singletons, so that
// multiple sessions can coexist.
type Session struct {
	Log        *log.Logger
	ScratchDir string

	mu    sync.Mutex
	cache map[string]DataStore

	types    map[string]Constructor
	topLevel map[string]topLevelEntry // lowercase name -> registered entry
}

type topLevelEntry struct {
	canonical string
	class     string
}

// Option configures a Session at construction.
type Option func(*Session)

// WithLogger overrides the session's logger (default log.Default()).
func WithLogger(l *log.Logger) Option { return func(s *Session) { s.Log = l } }

// WithScratchDir overrides where overlay scratch files spill to disk
// (default $LLEDIT_SCRATCH_DIR, falling back to os.TempDir()).
func WithScratchDir(dir string) Option { return func(s *Session) { s.ScratchDir = dir } }

// RegisterType adds a datastore class to the session's type registry, used
// both to resolve "?Name" type markers and, for Root, top-level names.
// Registration is case-insensitive, matching spec.md §6.
func RegisterType(s *Session, name string, ctor Constructor) {
	s.types[strings.ToLower(name)] = ctor
}

// RegisterTopLevel additionally exposes class under name as a session
// top-level name, reachable as Root's immediate child "name" (spec.md §6).
// The filesystem root's own registration ("FileSystem") is the one top-level
// name every session carries.
func RegisterTopLevel(s *Session, name string, class string) {
	s.topLevel[strings.ToLower(name)] = topLevelEntry{canonical: name, class: class}
}

// TopLevelClass resolves a case-insensitive top-level name to its registered
// canonical name and class, as used by Root.ChildDsid.
func (s *Session) TopLevelClass(name string) (canonical, class string, ok bool) {
	e, found := s.topLevel[strings.ToLower(name)]
	if !found {
		return "", "", false
	}
	return e.canonical, e.class, true
}

// TopLevelNames returns the canonical names of every registered top-level
// datastore class, for Root.EnumKeys.
func (s *Session) TopLevelNames() []string {
	out := make([]string, 0, len(s.topLevel))
	for _, e := range s.topLevel {
		out = append(out, e.canonical)
	}
	sort.Strings(out)
	return out
}

func defaultScratchDir() string {
	if d := os.Getenv("LLEDIT_SCRATCH_DIR"); d != "" {
		return d
	}
	return os.TempDir()
}

// New constructs a session and installs the always-present empty-dsid Root
// (spec.md §3: "The empty-dsid Root exists for the session's entire
// lifetime"), rooted by a permanent self-referrer so it never reaches a
// zero-referrer count.
func New(rootCtor Constructor, opts ...Option) (*Session, error) {
	s := &Session{
		Log:        log.Default(),
		ScratchDir: defaultScratchDir(),
		cache:      make(map[string]DataStore),
		types:      make(map[string]Constructor),
		topLevel:   make(map[string]topLevelEntry),
	}
	for _, o := range opts {
		o(s)
	}

	root, err := rootCtor(s, dsid.Dsid{}, "Root")
	if err != nil {
		return nil, xerrors.Errorf("constructing root: %w", err)
	}
	b := root.Handle()
	b.referrers = append(b.referrers, Tag("<root>"))
	s.cache[dsid.Dsid{}.CacheKey()] = root
	return s, nil
}

// Root returns the session's permanent root datastore.
func (s *Session) Root() DataStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[dsid.Dsid{}.CacheKey()]
}

// lookupConstructor resolves class to its registered Constructor.
func (s *Session) lookupConstructor(class string) (Constructor, error) {
	ctor, ok := s.types[strings.ToLower(class)]
	if !ok {
		return nil, xerrors.Errorf("%w", &lledit.InvalidDsidError{Dsid: class, Reason: "unknown datastore class"})
	}
	return ctor, nil
}

func (s *Session) cacheGet(id dsid.Dsid) (DataStore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.cache[id.CacheKey()]
	return ds, ok
}

// longestCachedPrefix returns the longest prefix of d present in the cache,
// along with the datastore at that prefix. The empty dsid is always cached
// (the Root), so this always succeeds.
func (s *Session) longestCachedPrefix(d dsid.Dsid) (dsid.Dsid, DataStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(d); i >= 0; i-- {
		p := d.Prefix(i)
		if ds, ok := s.cache[p.CacheKey()]; ok {
			return p, ds
		}
	}
	panic("session: empty dsid (root) is not cached")
}

// Open implements the protocol of spec.md §4.3: walk the longest cached
// prefix, ask its holder for the next child's dsid and class, construct or
// follow a redirect, and loop until every key of the current search dsid is
// resolved. A redirect replaces the search dsid outright (its canonical form
// may differ permanently from the dsid the caller originally asked for, e.g.
// a type-marker name that resolves to a nested field), so "done" is judged
// against how much of the current search dsid remains, not against identity
// with the caller's original target. Intermediate datastores built along the
// way are held by the transient "<temporary>" tag and released once no
// longer needed for the walk.
func (s *Session) Open(ctx context.Context, target dsid.Dsid, referrer Referrer) (DataStore, error) {
	if ds, ok := s.cacheGet(target); ok {
		s.addref(ds, referrer)
		return ds, nil
	}

	current := target
	var transient []DataStore

	releaseTransients := func() {
		for i := len(transient) - 1; i >= 0; i-- {
			s.Release(transient[i], Tag(TagTemporary))
		}
	}

	for {
		prefix, holder := s.longestCachedPrefix(current)
		if len(prefix) >= len(current) {
			// Every key of the current search dsid is resolved: current is
			// the walk's result, whether or not it still equals target.
			s.addref(holder, referrer)
			releaseTransients()
			return holder, nil
		}

		key := current[len(prefix)]

		// A handful of key kinds resolve the same way regardless of the
		// holder's concrete class (spec.md §4.3's "child-dsid resolution
		// policies per datastore class" bullets that aren't actually
		// per-class): PARENT peeling, identity char-range collapse, and
		// type-marker views. Everything else is delegated to the holder.
		if _, isParent := key.(dsid.Parent); isParent {
			parentOfPrefix, ok := prefix.Parent()
			if !ok {
				releaseTransients()
				return nil, xerrors.Errorf("open %s: %w", current.String(),
					&lledit.InvalidDsidError{Dsid: current.String(), Reason: "root has no parent"})
			}
			rest := current[len(prefix)+1:]
			current = parentOfPrefix.Join(rest)
			continue
		}
		if cr, isRange := key.(dsid.CharRange); isRange && cr.Range().Start == 0 && cr.Range().Open() {
			rest := current[len(prefix)+1:]
			current = prefix.Join(rest)
			continue
		}

		var childID dsid.Dsid
		var class string
		if tm, isMarker := key.(dsid.TypeMarker); isMarker {
			resolved, err := s.TypeMarkerClass(string(tm))
			if err != nil {
				releaseTransients()
				return nil, xerrors.Errorf("resolving %s under %s: %w", key, prefix.String(), err)
			}
			childID, class = prefix.Append(key), resolved
		} else if _, isRange := key.(dsid.CharRange); isRange {
			childID, class = prefix.Append(key), "Slice"
		} else {
			var err error
			childID, class, err = holder.ChildDsid(key)
			if err != nil {
				releaseTransients()
				return nil, xerrors.Errorf("resolving %s under %s: %w", key, prefix.String(), err)
			}
		}

		direct := dsid.Equal(childID, prefix.Append(key))
		if !direct {
			// Redirect: splice the remainder of the original walk onto the
			// canonical dsid the holder returned and restart resolution
			// from there, without constructing anything for this hop.
			rest := current[len(prefix)+1:]
			current = childID.Join(rest)
			continue
		}

		rest := current[len(prefix)+1:]
		final := len(rest) == 0

		if ds, ok := s.cacheGet(childID); ok {
			// A racing Open already constructed this child; record the same
			// outgoing/referrer pair the constructing branch below would
			// have, then observe it and continue the walk (addref with the
			// caller's own referrer happens only for the final target).
			s.addref(ds, From(prefix))
			holder.Handle().AddOutgoing(childID)
			if final {
				s.addref(ds, referrer)
				releaseTransients()
				return ds, nil
			}
			current = childID.Join(rest)
			continue
		}

		tag := Tag(TagTemporary)
		if final {
			tag = referrer
		}
		child, err := s.construct(childID, class, tag)
		if err != nil {
			releaseTransients()
			return nil, err
		}
		// Every outgoing reference implies a corresponding incoming referrer
		// on the target naming the holder's dsid (spec.md §3's symmetry
		// invariant), independent of whichever tag the walk itself used.
		s.addref(child, From(prefix))
		holder.Handle().AddOutgoing(childID)

		if final {
			releaseTransients()
			return child, nil
		}
		transient = append(transient, child)
		current = childID.Join(rest)
	}
}

// construct instantiates class at id via the registered Constructor,
// installs it in the cache with an initial referrer, and returns it; if a
// racing Open installed id first, that instance gets the referrer and is
// returned instead. Cache insertion is the only part done under the session
// lock; the constructor itself may block on I/O.
func (s *Session) construct(id dsid.Dsid, class string, referrer Referrer) (DataStore, error) {
	ctor, err := s.lookupConstructor(class)
	if err != nil {
		return nil, err
	}
	ds, err := ctor(s, id, class)
	if err != nil {
		return nil, xerrors.Errorf("constructing %s as %s: %w", id.String(), class, err)
	}
	b := ds.Handle()
	b.mu.Lock()
	b.referrers = append(b.referrers, referrer)
	b.mu.Unlock()

	s.mu.Lock()
	if existing, ok := s.cache[id.CacheKey()]; ok {
		s.mu.Unlock()
		ds.DoFree() // drop the losing instance's own references
		s.addref(existing, referrer)
		return existing, nil
	}
	s.cache[id.CacheKey()] = ds
	s.mu.Unlock()
	return ds, nil
}

// addref appends referrer to ds's referrer list (spec.md §4.3 "addref(tag)
// appends").
func (s *Session) addref(ds DataStore, referrer Referrer) {
	b := ds.Handle()
	b.mu.Lock()
	b.referrers = append(b.referrers, referrer)
	b.mu.Unlock()
}

// Release implements "release(tag): removes the first matching tag. On
// reaching zero, the datastore releases every outgoing reference recorded
// during its lifetime, removes itself from the cache, then runs
// class-specific teardown."
func (s *Session) Release(ds DataStore, referrer Referrer) error {
	b := ds.Handle()
	b.mu.Lock()
	idx := -1
	for i, r := range b.referrers {
		if r.Equal(referrer) {
			idx = i
			break
		}
	}
	if idx == -1 {
		b.mu.Unlock()
		return xerrors.Errorf("release %s: no matching referrer %s", b.id.String(), referrer.String())
	}
	b.referrers = append(b.referrers[:idx], b.referrers[idx+1:]...)
	empty := len(b.referrers) == 0
	var outgoing []dsid.Dsid
	if empty {
		outgoing = b.outgoing
		b.outgoing = nil
	}
	b.mu.Unlock()

	if !empty {
		return nil
	}

	for _, childID := range outgoing {
		child, ok := s.cacheGet(childID)
		if !ok {
			continue // already torn down via some other path
		}
		cb := child.Handle()
		cb.mu.Lock()
		tagged := false
		for _, r := range cb.referrers {
			if r.Equal(From(b.id)) {
				tagged = true
				break
			}
		}
		cb.mu.Unlock()
		if !tagged {
			// Open pairs every AddOutgoing(childID) with a matching
			// From(b.id) referrer on the child, so this is normally true;
			// its absence means some other release already consumed the
			// matching entry (e.g. a duplicate edge recorded by a racing
			// Open), and there is nothing left here for this cascade to do.
			continue
		}
		if err := s.Release(child, From(b.id)); err != nil {
			return xerrors.Errorf("cascading release of %s from %s: %w", childID.String(), b.id.String(), err)
		}
	}

	s.mu.Lock()
	delete(s.cache, b.id.CacheKey())
	s.mu.Unlock()

	if err := ds.DoFree(); err != nil {
		return xerrors.Errorf("freeing %s: %w", b.id.String(), err)
	}
	return nil
}

// MarkModified records a self-referrer that keeps ds alive until an external
// commit calls ClearModified, per spec.md §4.3.
func (s *Session) MarkModified(ds DataStore) {
	s.addref(ds, Tag(TagModified))
}

// ClearModified releases the self-referrer installed by MarkModified.
func (s *Session) ClearModified(ds DataStore) error {
	return s.Release(ds, Tag(TagModified))
}

// Commit writes ds's current bytes back to path atomically (via
// renameio.TempFile, matching the teacher's cmd/distri/initrd.go output
// step) and then clears the modified-since-open mark MarkModified installed.
// It is the write-back half of spec.md §4.5's "overlay until committed"
// model: nothing touches the backing file until Commit is called explicitly.
func (s *Session) Commit(ctx context.Context, ds DataStore, path string) error {
	size, err := ds.GetSize(ctx)
	if err != nil {
		return xerrors.Errorf("commit %s: %w", path, err)
	}

	out, err := renameio.TempFile("", path)
	if err != nil {
		return xerrors.Errorf("commit %s: %w", path, err)
	}
	defer out.Cleanup()

	const chunk = 1 << 20
	for off := int64(0); off < size; off += chunk {
		end := off + chunk
		if end > size {
			end = size
		}
		b, err := ds.ReadBytes(ctx, rangealg.Range{Start: off, End: end})
		if err != nil {
			return xerrors.Errorf("commit %s: %w", path, err)
		}
		if _, err := out.Write(b); err != nil {
			return xerrors.Errorf("commit %s: %w", path, err)
		}
	}

	if err := out.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("commit %s: %w", path, err)
	}

	return s.ClearModified(ds)
}

// NotifyChange implements spec.md §4.3's notify_change: every referrer of ds
// that is itself a datastore (i.e. a From() referrer) receives OnChange.
// requestor lets the originating component suppress its own echo.
func (s *Session) NotifyChange(ds DataStore, key dsid.Key, requestor DataStore) {
	for _, r := range ds.Handle().snapshotReferrers() {
		if !r.hasFrom {
			continue
		}
		target, ok := s.cacheGet(r.from)
		if !ok {
			continue
		}
		target.OnChange(ds, key, requestor)
	}
}

// NodeSnapshot is one cached datastore's identity and outgoing edges, as of
// the moment Snapshot was called. It exists for internal/graphdump to walk
// the live graph without internal/session exposing its cache directly.
type NodeSnapshot struct {
	Dsid     dsid.Dsid
	Class    string
	Outgoing []dsid.Dsid
}

// Snapshot returns every currently cached datastore's dsid, class, and
// outgoing references, per spec.md §9's "Cycles" note that the parent-of
// direction is expressed only through outgoing references: this is the raw
// material for asserting that direction stays acyclic.
func (s *Session) Snapshot() []NodeSnapshot {
	s.mu.Lock()
	entries := make([]DataStore, 0, len(s.cache))
	for _, ds := range s.cache {
		entries = append(entries, ds)
	}
	s.mu.Unlock()

	out := make([]NodeSnapshot, 0, len(entries))
	for _, ds := range entries {
		h := ds.Handle()
		h.mu.Lock()
		outgoing := make([]dsid.Dsid, len(h.outgoing))
		copy(outgoing, h.outgoing)
		h.mu.Unlock()
		out = append(out, NodeSnapshot{Dsid: h.id, Class: h.class, Outgoing: outgoing})
	}
	return out
}

// TypeMarkerClass resolves a "?Name" type marker to its registered class
// name, case-insensitively, per spec.md §6.
func (s *Session) TypeMarkerClass(name string) (string, error) {
	if _, ok := s.types[strings.ToLower(name)]; !ok {
		return "", xerrors.Errorf("%w", &lledit.InvalidDsidError{Dsid: "?" + name, Reason: fmt.Sprintf("unregistered type %q", name)})
	}
	return name, nil
}
