package datastore

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/overlay"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
)

// rootPathMarker is the FileSystemObject.path value for the FileSystem
// top-level datastore itself (the dsid [Name("FileSystem")]), standing in
// for "/" on POSIX and for "no single directory" on Windows, where
// enumerateWindowsDrives lists the available drive roots instead.
const rootPathMarker = "/"

// FileSystemObject represents a single filesystem path: it enumerates
// directory entries, opens a regular file lazily (re-verifying identity
// between stat and open to detect replacement), and holds one overlay log
// per instance so edits to this path are independent of any other open
// view of the same bytes (spec.md §4.5).
type FileSystemObject struct {
	session.Base
	Stub

	path string

	mu       sync.Mutex
	f        *os.File
	isDir    bool
	modified bool
	overlay  *overlay.Log
}

// NewFileSystemObject is the session.Constructor for the FileSystemObject
// class.
func NewFileSystemObject(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
	path, err := pathFromDsid(id)
	if err != nil {
		return nil, err
	}
	return &FileSystemObject{
		Base:    session.NewBase(sess, id, class),
		path:    path,
		overlay: overlay.New(sess.ScratchDir),
	}, nil
}

func (o *FileSystemObject) Handle() *session.Base { return &o.Base }

// pathFromDsid reconstructs an absolute filesystem path from a
// FileSystemObject's dsid: the leading Name("FileSystem") top-level key
// maps to "/", and every subsequent Name key is one more path component
// (spec.md scenario 4: each path segment is its own dsid Name key, so
// PARENT-peeling and redirects only ever instantiate as many
// FileSystemObjects as the final resolved path actually needs).
func pathFromDsid(id dsid.Dsid) (string, error) {
	if len(id) == 0 {
		return "", xerrors.Errorf("filesystem object: empty dsid")
	}
	if _, ok := id[0].(dsid.Name); !ok {
		return "", xerrors.Errorf("filesystem object: dsid does not start with a name")
	}
	if len(id) == 1 {
		return rootPathMarker, nil
	}
	parts := make([]string, 0, len(id)-1)
	for _, k := range id[1:] {
		name, ok := k.(dsid.Name)
		if !ok {
			return "", &lledit.InvalidDsidError{Dsid: id.String(), Reason: "filesystem path components must be names"}
		}
		parts = append(parts, string(name))
	}
	return "/" + strings.Join(parts, "/"), nil
}

// ensureOpen lazily stats and, for regular files, opens the path, verifying
// that the file descriptor it gets back still refers to the inode/device
// pair it just stat'd — guarding against a replacement race between the two
// syscalls (spec.md §4.5).
func (o *FileSystemObject) ensureOpen() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f != nil || o.isDir {
		return nil
	}

	st, err := os.Stat(o.path) // follows symlinks
	if err != nil {
		return &lledit.BrokenBackingError{Cause: err}
	}
	if st.IsDir() {
		o.isDir = true
		return nil
	}
	if !st.Mode().IsRegular() {
		return &lledit.NotAFileError{Path: o.path}
	}
	wantStat, ok := st.Sys().(*unix.Stat_t)

	f, err := os.Open(o.path)
	if err != nil {
		return &lledit.BrokenBackingError{Cause: err}
	}
	if ok {
		var got unix.Stat_t
		if err := unix.Fstat(int(f.Fd()), &got); err != nil {
			f.Close()
			return &lledit.BrokenBackingError{Cause: err}
		}
		if got.Ino != wantStat.Ino || got.Dev != wantStat.Dev {
			f.Close()
			return &lledit.BrokenBackingError{Cause: xerrors.Errorf("%s: replaced between stat and open", o.path)}
		}
	}
	o.f = f
	return nil
}

func (o *FileSystemObject) physicalSize() (int64, error) {
	o.mu.Lock()
	f := o.f
	o.mu.Unlock()
	if f == nil {
		return 0, nil
	}
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (o *FileSystemObject) GetSize(ctx context.Context) (int64, error) {
	if err := o.ensureOpen(); err != nil {
		return 0, err
	}
	phys, err := o.physicalSize()
	if err != nil {
		return 0, &lledit.BrokenBackingError{Cause: err}
	}
	return o.overlay.Size(phys), nil
}

func (o *FileSystemObject) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	if err := o.ensureOpen(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	f := o.f
	o.mu.Unlock()
	if f == nil {
		return nil, &lledit.NotAFileError{Path: o.path}
	}
	phys, err := o.physicalSize()
	if err != nil {
		return nil, &lledit.BrokenBackingError{Cause: err}
	}
	return o.overlay.Read(f, phys, r)
}

func (o *FileSystemObject) markModifiedOnce() {
	o.mu.Lock()
	already := o.modified
	o.modified = true
	o.mu.Unlock()
	if !already {
		o.Session().MarkModified(o)
	}
}

func (o *FileSystemObject) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	if err := o.ensureOpen(); err != nil {
		return overlay.Change{}, err
	}
	o.mu.Lock()
	f := o.f
	o.mu.Unlock()
	if f == nil {
		return overlay.Change{}, &lledit.NotAFileError{Path: o.path}
	}
	phys, err := o.physicalSize()
	if err != nil {
		return overlay.Change{}, &lledit.BrokenBackingError{Cause: err}
	}
	change, err := o.overlay.Write(src, r, phys)
	if err != nil {
		return overlay.Change{}, err
	}
	o.markModifiedOnce()
	o.Session().NotifyChange(o, dsid.CharRange(change.Range), o)
	return change, nil
}

func (o *FileSystemObject) LocateEnd(ctx context.Context) (int64, error) { return o.GetSize(ctx) }

func (o *FileSystemObject) EnumKeys(ctx context.Context) session.KeyIterator {
	keys := []dsid.Key{dsid.Stat{}}

	if err := o.ensureOpen(); err != nil {
		keys = append(keys, dsid.Broken{Description: err.Error()})
		return session.NewSliceIterator(keys)
	}

	o.mu.Lock()
	isDir := o.isDir
	o.mu.Unlock()

	if isDir {
		if o.path == rootPathMarker {
			if drives := enumerateWindowsDrives(); len(drives) > 0 {
				return session.NewSliceIterator(append(keys, drives...))
			}
		}
		entries, err := os.ReadDir(o.path)
		if err != nil {
			keys = append(keys, dsid.Broken{Description: err.Error()})
			return session.NewSliceIterator(keys)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, n := range names {
			keys = append(keys, dsid.Name(n))
		}
	}
	return session.NewSliceIterator(keys)
}

func (o *FileSystemObject) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	switch k := key.(type) {
	case dsid.Stat:
		return o.Dsid().Append(k), "FileStat", nil
	case dsid.Name:
		if string(k) == "~" && o.path == rootPathMarker {
			return homeRedirect(o.Dsid())
		}
		return o.Dsid().Append(k), "FileSystemObject", nil
	default:
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "filesystem objects only have name and stat children"}
	}
}

// homeRedirect resolves the literal name "~" opened at the filesystem root
// to the current user's home directory, expressed as a chain of ordinary
// Name keys under prefix (so the redirect is indistinguishable, from the
// cache onward, from having opened that path directly).
func homeRedirect(prefix dsid.Dsid) (dsid.Dsid, string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, "", &lledit.BrokenBackingError{Cause: err}
	}
	target := prefix
	for _, seg := range strings.Split(strings.Trim(home, "/"), "/") {
		if seg == "" {
			continue
		}
		target = target.Append(dsid.Name(seg))
	}
	return target, "FileSystemObject", nil
}

func (o *FileSystemObject) DoFree() error {
	o.mu.Lock()
	f := o.f
	o.f = nil
	o.mu.Unlock()
	if f != nil {
		return f.Close()
	}
	return nil
}
