// Package lledit provides the ambient pieces shared across the datastore
// graph and overlay engine: process lifecycle hooks, interrupt handling, and
// the error kinds of spec.md §7.
package lledit

import "golang.org/x/xerrors"

// The error kinds of spec.md §7. Each is a distinct type so callers can
// dispatch on it with errors.As; Cause, when set, is the underlying error
// that was wrapped (e.g. an I/O failure behind a BrokenBackingError).

// InvalidDsidError is raised when a key is syntactically malformed or refers
// to a non-existent field or top-level name.
type InvalidDsidError struct {
	Dsid   string
	Reason string
}

func (e *InvalidDsidError) Error() string {
	return xerrors.Errorf("invalid dsid %q: %s", e.Dsid, e.Reason).Error()
}

// NotReadableError is raised when a datastore does not support byte reads
// (an abstract wrapper used only as a type marker).
type NotReadableError struct {
	Dsid string
}

func (e *NotReadableError) Error() string {
	return xerrors.Errorf("%s: not readable", e.Dsid).Error()
}

// NotAFileError is raised when a filesystem path exists but is not a
// regular file.
type NotAFileError struct {
	Path string
}

func (e *NotAFileError) Error() string {
	return xerrors.Errorf("%s: not a regular file", e.Path).Error()
}

// BrokenBackingError is raised when underlying I/O fails.
type BrokenBackingError struct {
	Cause error
}

func (e *BrokenBackingError) Error() string {
	return xerrors.Errorf("broken backing store: %w", e.Cause).Error()
}

func (e *BrokenBackingError) Unwrap() error { return e.Cause }

// CancelledError is raised when a progress callback signals cancellation.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "operation cancelled" }

// SchemaMismatchError is raised when decoding depends on a field that was
// skipped (e.g. by an ifequal condition that did not hold).
type SchemaMismatchError struct {
	Field string
}

func (e *SchemaMismatchError) Error() string {
	return xerrors.Errorf("schema mismatch: field %q was skipped", e.Field).Error()
}
