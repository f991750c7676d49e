// Package dsid implements the key and dsid data model of spec.md §3 and the
// textual wire form of §6: the universal address by which the session names
// a datastore.
package dsid

import (
	"strconv"
	"strings"

	"github.com/lledit/lledit/internal/rangealg"
)

// Key is one element of a Dsid. The concrete types below form a closed set,
// matching spec.md's "A key is one of ..." enumeration.
type Key interface {
	isKey()
	String() string
}

// Name is a printable byte-string key: a filesystem entry, a field name, a
// registered top-level name, and so on.
type Name string

func (Name) isKey()          {}
func (n Name) String() string { return string(n) }

// Stat is the STAT sentinel key.
type Stat struct{}

func (Stat) isKey()          {}
func (Stat) String() string { return "Stat" }

// Parent is the PARENT sentinel key ("..").
type Parent struct{}

func (Parent) isKey()          {}
func (Parent) String() string { return ".." }

// Index is an integer child index, used by array-like datastores.
type Index int64

func (Index) isKey()          {}
func (i Index) String() string { return strconv.FormatInt(int64(i), 10) }

// TypeMarker requests a typed view of a region: "?Png" in the textual form.
type TypeMarker string

func (TypeMarker) isKey()          {}
func (t TypeMarker) String() string { return "?" + string(t) }

// CharRange is a [start, end) byte range key; End may be rangealg.End.
type CharRange rangealg.Range

func (CharRange) isKey() {}
func (c CharRange) String() string {
	if c.End == rangealg.End {
		return strconv.FormatInt(c.Start, 10) + "..."
	}
	return strconv.FormatInt(c.Start, 10) + ".." + strconv.FormatInt(c.End, 10)
}

// Range returns c as a rangealg.Range.
func (c CharRange) Range() rangealg.Range { return rangealg.Range(c) }

// Broken is a broken-data warning key: opaque, enumerated alongside valid
// keys, never traversable.
type Broken struct {
	Description string
}

func (Broken) isKey()          {}
func (b Broken) String() string { return "BrokenData(" + b.Description + ")" }

// Dsid is an ordered sequence of keys naming a datastore.
type Dsid []Key

// Equal reports element-wise equality.
func Equal(a, b Dsid) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !keyEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func keyEqual(a, b Key) bool {
	switch av := a.(type) {
	case Name:
		bv, ok := b.(Name)
		return ok && av == bv
	case Stat:
		_, ok := b.(Stat)
		return ok
	case Parent:
		_, ok := b.(Parent)
		return ok
	case Index:
		bv, ok := b.(Index)
		return ok && av == bv
	case TypeMarker:
		bv, ok := b.(TypeMarker)
		return ok && strings.EqualFold(string(av), string(bv))
	case CharRange:
		bv, ok := b.(CharRange)
		return ok && av == bv
	case Broken:
		bv, ok := b.(Broken)
		return ok && av.Description == bv.Description
	}
	return false
}

// Prefix returns the first n keys of d.
func (d Dsid) Prefix(n int) Dsid {
	out := make(Dsid, n)
	copy(out, d[:n])
	return out
}

// Append returns a new Dsid with key appended.
func (d Dsid) Append(key Key) Dsid {
	out := make(Dsid, len(d)+1)
	copy(out, d)
	out[len(d)] = key
	return out
}

// Join returns a new Dsid with rest appended after d.
func (d Dsid) Join(rest Dsid) Dsid {
	out := make(Dsid, 0, len(d)+len(rest))
	out = append(out, d...)
	out = append(out, rest...)
	return out
}

// Parent returns the dsid of the parent (all but the last key), and false if
// d is already the root (empty) dsid.
func (d Dsid) Parent() (Dsid, bool) {
	if len(d) == 0 {
		return nil, false
	}
	return d.Prefix(len(d) - 1), true
}

// CacheKey returns a string uniquely and deterministically identifying d,
// suitable for use as a Go map key. It is an internal encoding, distinct
// from the stable textual form in format.go/parse.go.
func (d Dsid) CacheKey() string {
	var b strings.Builder
	for i, k := range d {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		encodeKey(&b, k)
	}
	return b.String()
}

func encodeKey(b *strings.Builder, k Key) {
	switch v := k.(type) {
	case Name:
		b.WriteString("n:")
		writeLenPrefixed(b, string(v))
	case Stat:
		b.WriteString("s")
	case Parent:
		b.WriteString("p")
	case Index:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case TypeMarker:
		b.WriteString("t:")
		writeLenPrefixed(b, strings.ToLower(string(v)))
	case CharRange:
		b.WriteString("r:")
		b.WriteString(strconv.FormatInt(v.Start, 10))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(v.End, 10))
	case Broken:
		b.WriteString("b:")
		writeLenPrefixed(b, v.Description)
	default:
		b.WriteString("?")
	}
}

func writeLenPrefixed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
