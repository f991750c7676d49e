package datastore

import "github.com/lledit/lledit/internal/session"

// RegisterCore installs every datastore class the core engine itself needs
// regardless of which schemas a caller layers on top: Root, the filesystem
// view and its Stat child, the Slice range view, and the generic scalar leaf
// classes (Data, Boolean, CString, and the UInt widths, FileStat's own field
// types among them). Structure and HeteroArray classes are built per schema
// or item type, so none is registered here.
func RegisterCore(sess *session.Session) {
	session.RegisterType(sess, "Root", NewRoot)
	session.RegisterType(sess, "FileSystemObject", NewFileSystemObject)
	session.RegisterType(sess, "FileStat", NewFileStat)
	session.RegisterType(sess, "Slice", NewSlice)

	session.RegisterType(sess, "Data", NewDataConstructor(0))
	session.RegisterType(sess, "Boolean", NewBooleanConstructor())
	session.RegisterType(sess, "CString", NewCStringConstructor())
	session.RegisterType(sess, ClassUInt64, NewUIntBEConstructor(8))
	session.RegisterType(sess, ClassUInt32, NewUIntBEConstructor(4))
	session.RegisterType(sess, "UInt8", NewUIntBEConstructor(1))
	session.RegisterType(sess, "UInt16", NewUIntBEConstructor(2))

	session.RegisterTopLevel(sess, "FileSystem", "FileSystemObject")
}
