// Package dstest provides the scratch session and backing-file helpers used
// by table tests throughout the datastore/overlay/session packages, grounded
// on the teacher's internal/distritest.
package dstest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lledit/lledit/internal/datastore"
	"github.com/lledit/lledit/internal/session"
)

// TempFile writes contents to a fresh file under t.TempDir() and returns its
// path. The directory (and file) are removed automatically when t completes.
func TempFile(t testing.TB, name string, contents []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, contents, 0644); err != nil {
		t.Fatalf("dstest.TempFile: %v", err)
	}
	return path
}

// NewSession builds a *session.Session with every core datastore class
// registered and a scratch directory scoped to the test, the way a table
// test wants one without repeating the registration boilerplate.
func NewSession(t testing.TB, opts ...session.Option) *session.Session {
	t.Helper()
	scratch := t.TempDir()
	allOpts := append([]session.Option{session.WithScratchDir(scratch)}, opts...)
	sess, err := session.New(datastore.NewRoot, allOpts...)
	if err != nil {
		t.Fatalf("dstest.NewSession: %v", err)
	}
	datastore.RegisterCore(sess)
	return sess
}
