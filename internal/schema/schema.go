// Package schema implements the structured-field decomposition of spec.md
// §4.4: a declarative ordered field list, evaluated lazily against a byte
// region to produce named sub-ranges, tolerating truncated or missing data
// by yielding in-band warnings instead of failing the decode.
package schema

import "context"

// Field is one entry of a Schema: (name, type marker, settings), per
// spec.md §4.4.
type Field struct {
	Name string
	Type string // type marker used to construct the field's sub-datastore

	size      *int64 // "size N"
	hasSize   bool
	sizeIs    string // "size_is F"
	optional  bool
	ifEqField string // "ifequal (F, V)"
	ifEqValue []byte
	startsWithField string
	endsWithField   string
	stopAtNul       bool
}

// FieldOption configures a Field's settings at construction.
type FieldOption func(*Field)

// Size fixes the field to exactly n bytes from its start.
func Size(n int64) FieldOption {
	return func(f *Field) { f.size = &n; f.hasSize = true }
}

// SizeIs reads field's bytes as a big-endian unsigned integer and uses it as
// this field's length.
func SizeIs(field string) FieldOption {
	return func(f *Field) { f.sizeIs = field }
}

// Optional suppresses the missing-field warning for this field.
func Optional() FieldOption {
	return func(f *Field) { f.optional = true }
}

// IfEqual skips the field entirely unless field's bytes equal value.
func IfEqual(field string, value []byte) FieldOption {
	return func(f *Field) { f.ifEqField = field; f.ifEqValue = value }
}

// StartsWith overrides this field's start to equal field's start.
func StartsWith(field string) FieldOption {
	return func(f *Field) { f.startsWithField = field }
}

// EndsWith overrides this field's end to equal field's end.
func EndsWith(field string) FieldOption {
	return func(f *Field) { f.endsWithField = field }
}

// StopAtNul truncates the field's end to one past the first zero byte found
// scanning forward from its start, if any.
func StopAtNul() FieldOption {
	return func(f *Field) { f.stopAtNul = true }
}

// NewField builds a field declaration.
func NewField(name, typeMarker string, opts ...FieldOption) Field {
	f := Field{Name: name, Type: typeMarker}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// Schema is the declarative ordered field tuple.
type Schema []Field

// ByteSource is the narrow view of the owning datastore's byte region that
// schema evaluation needs: reading bytes (for size_is and stopatnul) and
// asking a field's own type for its self-described extent (spec.md §4.4 step
// 4). It is implemented by internal/datastore's Structure against a
// transient per-field child, keeping this package free of a dependency on
// the session/datastore packages.
type ByteSource interface {
	// Size returns the number of bytes currently known to be readable in
	// this region (used to detect missing/truncated fields).
	Size(ctx context.Context) (int64, error)
	// ReadAt reads [start, start+n) from the region. It may return fewer
	// than n bytes if the region is shorter; it never errors solely because
	// of that (truncation is reported by the caller comparing against
	// Size).
	ReadAt(ctx context.Context, start, n int64) ([]byte, error)
	// LocateEnd asks typeMarker's self-described extent starting at start,
	// by transiently constructing a typed view. ok is false if the type
	// cannot determine its own end (propagates as the End sentinel).
	LocateEnd(ctx context.Context, typeMarker string, start int64) (end int64, ok bool, err error)
}
