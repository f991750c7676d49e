package datastore_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lledit/lledit/internal/datastore"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/dstest"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
)

// watcher is a minimal session.DataStore that records every OnChange it
// receives, standing in for whatever real datastore might hold a From()
// reference to a node under test.
type watcher struct {
	session.Base
	datastore.Stub

	seen []dsid.Key
}

func (w *watcher) Handle() *session.Base { return &w.Base }

func (w *watcher) OnChange(source session.DataStore, key dsid.Key, requestor session.DataStore) {
	w.seen = append(w.seen, key)
}

func newWatcher(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
	return &watcher{Base: session.NewBase(sess, id, class)}, nil
}

// attachWatcher opens a fresh watcher at its own top-level dsid and adds it
// as a From(watcher's own dsid) referrer of target, the same relation a real
// Structure or Slice installs on the node it reads through.
func attachWatcher(t *testing.T, sess *session.Session, name string, target dsid.Dsid) *watcher {
	t.Helper()
	session.RegisterType(sess, name, newWatcher)
	session.RegisterTopLevel(sess, name, name)
	watcherID := dsid.Dsid{dsid.Name(name)}

	ds, err := sess.Open(context.Background(), watcherID, session.Tag("watcher-owner"))
	if err != nil {
		t.Fatalf("opening watcher %s: %v", name, err)
	}
	if _, err := sess.Open(context.Background(), target, session.From(watcherID)); err != nil {
		t.Fatalf("attaching watcher %s to %s: %v", name, target.String(), err)
	}
	return ds.(*watcher)
}

// TestSliceWriteTranslatesNotificationRanges exercises the two-sided
// translation a window view performs: a write through a Slice over a file's
// [10,20) range notifies the slice's own referrers in the slice's local
// coordinates, while referrers attached directly to the underlying file see
// the untranslated, file-relative range.
func TestSliceWriteTranslatesNotificationRanges(t *testing.T) {
	sess := dstest.NewSession(t)
	path := dstest.TempFile(t, "windowed.bin", make([]byte, 32))

	fileID := dsid.Dsid{dsid.Name("FileSystem")}
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		fileID = fileID.Append(dsid.Name(part))
	}

	file, err := sess.Open(context.Background(), fileID, session.Tag("t"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(file, session.Tag("t"))

	sliceID := fileID.Append(dsid.CharRange{Start: 10, End: 20})
	slice, err := sess.Open(context.Background(), sliceID, session.Tag("t"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(slice, session.Tag("t"))

	fileObserver := attachWatcher(t, sess, "FileObserver", fileID)
	sliceObserver := attachWatcher(t, sess, "SliceObserver", sliceID)

	if _, err := slice.Write(context.Background(), rangealg.Range{Start: 0, End: 5}, strings.NewReader("HELLO")); err != nil {
		t.Fatal(err)
	}

	wantFileRange := dsid.CharRange{Start: 10, End: 15}
	wantSliceRange := dsid.CharRange{Start: 0, End: 5}

	if len(fileObserver.seen) == 0 {
		t.Fatal("file's referrer saw no change notification")
	}
	if got := fileObserver.seen[len(fileObserver.seen)-1]; got != wantFileRange {
		t.Errorf("file observer saw %v, want %v (untranslated, file-relative)", got, wantFileRange)
	}

	if len(sliceObserver.seen) == 0 {
		t.Fatal("slice's referrer saw no change notification")
	}
	if got := sliceObserver.seen[len(sliceObserver.seen)-1]; got != wantSliceRange {
		t.Errorf("slice observer saw %v, want %v (translated into the slice's own coordinates)", got, wantSliceRange)
	}
}

// TestSliceFullWidthWriteReportsLocalRange covers the other half of the
// window arithmetic in Slice.Write: a write spanning a finite slice's whole
// width reports its change in the slice's own coordinates, [0, width), not
// in the file's.
func TestSliceFullWidthWriteReportsLocalRange(t *testing.T) {
	sess := dstest.NewSession(t)
	path := dstest.TempFile(t, "tail.bin", make([]byte, 16))

	fileID := dsid.Dsid{dsid.Name("FileSystem")}
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		fileID = fileID.Append(dsid.Name(part))
	}
	file, err := sess.Open(context.Background(), fileID, session.Tag("t"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(file, session.Tag("t"))

	sliceID := fileID.Append(dsid.CharRange{Start: 4, End: 10})
	slice, err := sess.Open(context.Background(), sliceID, session.Tag("t"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(slice, session.Tag("t"))

	// Writing the slice's full declared width (6 bytes) must report a local
	// change of exactly [0,6), not something derived from the file's
	// physical size.
	change, err := slice.Write(context.Background(), rangealg.Range{Start: 0, End: 6}, strings.NewReader("ABCDEF"))
	if err != nil {
		t.Fatal(err)
	}
	if want := (rangealg.Range{Start: 0, End: 6}); change.Range != want {
		t.Errorf("change.Range = %v, want %v", change.Range, want)
	}
}
