package datastore

import (
	"context"
	"encoding/binary"
	"os"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
)

// FileStat is the supplemented STAT sentinel child of a FileSystemObject
// (spec.md's Stat key, surfaced as an addressable leaf like anything else):
// a small fixed-layout view of os.Lstat's Size/Mode/ModTime, snapshotted
// fresh on every read rather than cached, since stat data is cheap to
// refetch and callers expect it to reflect the filesystem's current state.
type FileStat struct {
	session.Base
	Stub

	path string
}

const fileStatWidth = 20 // 8 (size) + 4 (mode) + 8 (mtime unix seconds)

// NewFileStat is the session.Constructor for the FileStat class.
func NewFileStat(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
	parent, ok := id.Parent()
	if !ok {
		return nil, xerrors.Errorf("filestat %s: no parent", id.String())
	}
	path, err := pathFromDsid(parent)
	if err != nil {
		return nil, err
	}
	return &FileStat{Base: session.NewBase(sess, id, class), path: path}, nil
}

func (s *FileStat) Handle() *session.Base { return &s.Base }

func (s *FileStat) snapshot() ([]byte, error) {
	st, err := os.Lstat(s.path)
	if err != nil {
		return nil, &lledit.BrokenBackingError{Cause: err}
	}
	buf := make([]byte, fileStatWidth)
	binary.BigEndian.PutUint64(buf[0:8], uint64(st.Size()))
	binary.BigEndian.PutUint32(buf[8:12], uint32(st.Mode()))
	binary.BigEndian.PutUint64(buf[12:20], uint64(st.ModTime().Unix()))
	return buf, nil
}

func (s *FileStat) GetSize(ctx context.Context) (int64, error) { return fileStatWidth, nil }

func (s *FileStat) LocateEnd(ctx context.Context) (int64, error) { return fileStatWidth, nil }

func (s *FileStat) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	buf, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	resolved := r.Resolve(int64(len(buf)))
	if resolved.Start < 0 || resolved.End > int64(len(buf)) || resolved.End < resolved.Start {
		return nil, xerrors.Errorf("filestat read %v: out of range", r)
	}
	return buf[resolved.Start:resolved.End], nil
}

func (s *FileStat) LocateField(name string) (rangealg.Range, bool) {
	switch name {
	case "Size":
		return rangealg.Range{Start: 0, End: 8}, true
	case "Mode":
		return rangealg.Range{Start: 8, End: 12}, true
	case "Mtime":
		return rangealg.Range{Start: 12, End: 20}, true
	}
	return rangealg.Range{}, false
}

func (s *FileStat) EnumKeys(ctx context.Context) session.KeyIterator {
	return session.NewSliceIterator([]dsid.Key{dsid.Name("Size"), dsid.Name("Mode"), dsid.Name("Mtime")})
}

func (s *FileStat) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	name, ok := key.(dsid.Name)
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "filestat only has named fields"}
	}
	switch name {
	case "Size", "Mtime":
		return s.Dsid().Append(key), ClassUInt64, nil
	case "Mode":
		return s.Dsid().Append(key), ClassUInt32, nil
	}
	return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "no such stat field"}
}

// ClassUInt64 and ClassUInt32 name the fixed-width UIntBE classes FileStat's
// fields are decoded as; registered once per session via NewUIntBEConstructor.
const (
	ClassUInt64 = "UInt64"
	ClassUInt32 = "UInt32"
)
