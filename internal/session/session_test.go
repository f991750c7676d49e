package session_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/dstest"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
)

func fsPath(t *testing.T, path string) dsid.Dsid {
	t.Helper()
	id := dsid.Dsid{dsid.Name("FileSystem")}
	for _, part := range splitPath(path) {
		id = id.Append(dsid.Name(part))
	}
	return id
}

func splitPath(path string) []string {
	var parts []string
	cur := ""
	for _, c := range path {
		if c == '/' {
			if cur != "" {
				parts = append(parts, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}

func TestOpenReadsBytesRoundTrip(t *testing.T) {
	sess := dstest.NewSession(t)
	path := dstest.TempFile(t, "sixteen.bin", make([]byte, 16))

	id := fsPath(t, path)
	ds, err := sess.Open(context.Background(), id, session.Tag("t"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(ds, session.Tag("t"))

	size, err := ds.GetSize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if size != 16 {
		t.Fatalf("GetSize = %d, want 16", size)
	}

	if _, err := ds.Write(context.Background(), rangealg.Range{Start: 0, End: 4}, strings.NewReader("abcd")); err != nil {
		t.Fatal(err)
	}
	got, err := ds.ReadBytes(context.Background(), rangealg.All)
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte("abcd"), make([]byte, 12)...)
	if string(got) != string(want) {
		t.Errorf("ReadBytes after write = %q, want %q", got, want)
	}
}

func TestOpenParentDoesNotOverInstantiate(t *testing.T) {
	sess := dstest.NewSession(t)
	path := dstest.TempFile(t, "a.bin", []byte("hi"))

	nested := fsPath(t, path)
	viaParent := nested.Append(dsid.Parent{}).Append(dsid.Name("a.bin"))

	ds, err := sess.Open(context.Background(), viaParent, session.Tag("t"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(ds, session.Tag("t"))

	direct, err := sess.Open(context.Background(), nested, session.Tag("t2"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(direct, session.Tag("t2"))

	if ds != direct {
		t.Error("resolving through PARENT should land on the same cached instance as the direct path")
	}

	snap := sess.Snapshot()
	seen := make(map[string]bool)
	for _, n := range snap {
		seen[n.Dsid.String()] = true
		if n.Dsid.String() == viaParent.String() {
			t.Errorf("PARENT-peeling should redirect before construction, not instantiate %v itself", viaParent)
		}
	}
	if !seen[nested.String()] {
		t.Errorf("expected %v to be cached after opening through PARENT", nested)
	}
}

func TestConcurrentOpenReturnsSameInstance(t *testing.T) {
	sess := dstest.NewSession(t)
	path := dstest.TempFile(t, "shared.bin", []byte("data"))
	id := fsPath(t, path)

	const n = 8
	results := make([]session.DataStore, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			results[i], errs[i] = sess.Open(context.Background(), id, session.Tag("concurrent"))
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Open[%d]: %v", i, err)
		}
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Errorf("Open[%d] returned a different instance than Open[0]", i)
		}
	}
	for i := 0; i < n; i++ {
		sess.Release(results[i], session.Tag("concurrent"))
	}
}

func TestTypeMarkerViewOfFileSystemObject(t *testing.T) {
	sess := dstest.NewSession(t)
	path := dstest.TempFile(t, "data.bin", []byte{1, 2, 3, 4})
	id := fsPath(t, path).Append(dsid.TypeMarker("Data"))

	ds, err := sess.Open(context.Background(), id, session.Tag("t"))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(ds, session.Tag("t"))

	got, err := ds.ReadBytes(context.Background(), rangealg.All)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "\x01\x02\x03\x04" {
		t.Errorf("ReadBytes = %v, want [1 2 3 4]", got)
	}
}

func TestReleaseUnknownReferrerErrors(t *testing.T) {
	sess := dstest.NewSession(t)
	root := sess.Root()
	if err := sess.Release(root, session.Tag("never-added")); err == nil {
		t.Error("Release with an unregistered referrer should error")
	}
}
