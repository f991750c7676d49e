// Package rangealg implements the half-open byte range arithmetic shared by
// the overlay log and the datastore graph: translation between a parent's
// and a child's coordinate space, intersection, and offsetting.
package rangealg

import "fmt"

// End is the sentinel for an open-ended range boundary ("to the end of
// whatever is readable"). It is never a valid finite offset, so it can be
// distinguished from any real length without a side channel.
const End int64 = -1

// Range is a half-open byte range [Start, End). End may be the End sentinel,
// meaning the range has no fixed upper bound.
type Range struct {
	Start int64
	End   int64
}

// All is the identity range covering an entire datastore.
var All = Range{Start: 0, End: End}

func (r Range) String() string {
	if r.End == End {
		return fmt.Sprintf("[%d, end)", r.Start)
	}
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Open reports whether r has no fixed upper bound.
func (r Range) Open() bool {
	return r.End == End
}

// Valid reports whether r is a well-formed half-open range: Start >= 0, and
// End is either the End sentinel or strictly greater than Start, except that
// Start == End == 0 denotes the empty range.
func (r Range) Valid() bool {
	if r.Start < 0 {
		return false
	}
	if r.End == End {
		return true
	}
	if r.End == 0 && r.Start == 0 {
		return true
	}
	return r.End > r.Start
}

// Width returns the width of r given the size of whatever it is a range
// over. If r is open, the width extends to size.
func (r Range) Width(size int64) int64 {
	end := r.End
	if end == End {
		end = size
	}
	if end < r.Start {
		return 0
	}
	return end - r.Start
}

// Resolve replaces an open End with size, producing a finite range.
func (r Range) Resolve(size int64) Range {
	if r.End != End {
		return r
	}
	return Range{Start: r.Start, End: size}
}

// Translate expresses inner, given in outer's local coordinate space, in
// outer's parent's coordinate space. It is total and never coerces End to a
// finite value: an open inner range takes outer's end (so it stays open only
// when outer is open), and a finite outer range caps a finite inner range
// whose translated end would otherwise run past it; an open outer never caps.
func Translate(outer, inner Range) Range {
	start := outer.Start + inner.Start

	if inner.End == End {
		return Range{Start: start, End: outer.End}
	}

	end := outer.Start + inner.End
	if outer.End != End && end > outer.End {
		end = outer.End
	}
	return Range{Start: start, End: end}
}

// Compose returns the single translation equivalent to first translating by
// b and then by a: Translate(a, Translate(b, r)) == Translate(Compose(a, b), r).
func Compose(a, b Range) Range {
	return Translate(a, b)
}

// Intersect returns the overlap of a and b, and false if they are disjoint.
// End is treated as positive infinity on both sides.
func Intersect(a, b Range) (Range, bool) {
	start := a.Start
	if b.Start > start {
		start = b.Start
	}

	var end int64
	switch {
	case a.End == End && b.End == End:
		end = End
	case a.End == End:
		end = b.End
	case b.End == End:
		end = a.End
	default:
		end = a.End
		if b.End < end {
			end = b.End
		}
	}

	if end != End && end <= start {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// Offset shifts both endpoints of r by n, preserving an open End.
func Offset(r Range, n int64) Range {
	end := r.End
	if end != End {
		end += n
	}
	return Range{Start: r.Start + n, End: end}
}
