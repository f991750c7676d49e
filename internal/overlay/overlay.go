// Package overlay implements the copy-on-write byte overlay of spec.md §4.2:
// an ordered list of segments layered over a backing byte source, supporting
// arbitrary range splices with size and read queries resolved through the
// overlay.
package overlay

import (
	"io"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit/internal/rangealg"
)

type source int

const (
	sourceBacking source = iota
	sourceScratch
)

// segment is one entry of the overlay log: a contiguous logical byte range
// sourced either from the backing store or from a scratch handle. length ==
// rangealg.End marks the distinguished tail segment meaning "remainder of
// backing from offset onward".
type segment struct {
	length  int64
	source  source
	offset  int64
	scratch *scratchHandle // nil when source == sourceBacking
}

func (s segment) logicalLen(backingSize int64) int64 {
	if s.length != rangealg.End {
		return s.length
	}
	v := backingSize - s.offset
	if v < 0 {
		return 0
	}
	return v
}

// Change describes the byte range affected by a Write, in the overlay's own
// coordinates. It is what a datastore passes to its notify-change fanout.
type Change struct {
	Range rangealg.Range
}

// BackingReader is the read side of the backing byte source an OverlayLog is
// layered over. Reads may legitimately run past the physical end of the
// backing store (it is treated as sparse): callers pad with zero bytes up to
// whatever virtual extent the segment claims.
type BackingReader interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Log is the overlay log itself. The zero value is not usable; use New.
type Log struct {
	segments   []segment
	scratchDir string
}

// New returns an overlay log that is initially the identity overlay: reads
// and size queries pass straight through to the backing store.
func New(scratchDir string) *Log {
	return &Log{
		segments:   []segment{{length: rangealg.End, source: sourceBacking, offset: 0}},
		scratchDir: scratchDir,
	}
}

// Size returns the logical size of the overlaid byte stream given the
// current size of the backing store. It is computed directly from the
// segment list (sum of finite segment lengths, plus whatever of the backing
// store remains visible through an open tail) rather than tracked
// incrementally, which trivially satisfies the invariant that the two must
// always agree.
func (l *Log) Size(backingSize int64) int64 {
	var total int64
	for _, s := range l.segments {
		total += s.logicalLen(backingSize)
	}
	return total
}

// segmentBounds returns, for segment i, its logical [start, end) range given
// backingSize.
func (l *Log) segmentBounds(backingSize int64) []rangealg.Range {
	bounds := make([]rangealg.Range, len(l.segments))
	var ofs int64
	for i, s := range l.segments {
		ln := s.logicalLen(backingSize)
		bounds[i] = rangealg.Range{Start: ofs, End: ofs + ln}
		ofs += ln
	}
	return bounds
}

// Read returns the bytes in r (r.End may be rangealg.End, resolved against
// Size). BACKING segments read through backing, zero-padded past its
// physical end; SCRATCH segments read from their scratch handle.
func (l *Log) Read(backing BackingReader, backingSize int64, r rangealg.Range) ([]byte, error) {
	size := l.Size(backingSize)
	r = r.Resolve(size)
	if r.End < r.Start {
		return nil, xerrors.Errorf("read %v: out of range (size %d)", r, size)
	}
	out := make([]byte, 0, r.End-r.Start)

	bounds := l.segmentBounds(backingSize)
	for i, s := range l.segments {
		overlap, ok := rangealg.Intersect(r, bounds[i])
		if !ok {
			continue
		}
		relStart := overlap.Start - bounds[i].Start
		width := overlap.End - overlap.Start
		chunk, err := readSegment(backing, s, backingSize, relStart, width)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func readSegment(backing BackingReader, s segment, backingSize, relStart, width int64) ([]byte, error) {
	if width <= 0 {
		return nil, nil
	}
	buf := make([]byte, width)
	switch s.source {
	case sourceScratch:
		n, err := s.scratch.readAt(buf, s.offset+relStart)
		if err != nil && err != io.EOF {
			return nil, err
		}
		return buf[:n], nil
	default: // sourceBacking
		physOff := s.offset + relStart
		physAvail := backingSize - physOff
		if physAvail <= 0 {
			return buf, nil // entirely past the physical end: all zeros
		}
		readWidth := width
		if physAvail < readWidth {
			readWidth = physAvail
		}
		n, err := backing.ReadAt(buf[:readWidth], physOff)
		if err != nil && err != io.EOF {
			return nil, err
		}
		_ = n
		return buf, nil // remainder past physAvail is already zero
	}
}

// Write replaces the logical bytes in r with the bytes produced by reading
// src in full into a new scratch handle, splicing the segment list and
// returning the change notification that should be fanned out.
func (l *Log) Write(src io.Reader, r rangealg.Range, backingSize int64) (Change, error) {
	handle, err := newScratchHandle(src, l.scratchDir)
	if err != nil {
		return Change{}, err
	}

	size := l.Size(backingSize)
	resolved := r.Resolve(size)
	width := resolved.End - resolved.Start
	if width < 0 {
		return Change{}, xerrors.Errorf("write %v: out of range (size %d)", r, size)
	}
	if resolved.Start > size {
		return Change{}, xerrors.Errorf("write %v: starts past current size %d (sparse-extending writes are not supported)", r, size)
	}

	bounds := l.segmentBounds(backingSize)

	// lower..upper are the segments whose logical span actually intersects
	// resolved; a zero-width write on a segment boundary (a pure append at
	// resolved.Start == size among them) touches none of them, in which case
	// lower is the insertion point and upper is lower-1.
	lower, upper, touched := len(l.segments), -1, false
	for i := range l.segments {
		if bounds[i].Start < resolved.End && bounds[i].End > resolved.Start {
			if !touched {
				lower = i
				touched = true
			}
			upper = i
		}
	}
	if !touched {
		for i := range l.segments {
			if bounds[i].Start >= resolved.Start {
				lower = i
				break
			}
		}
		upper = lower - 1 // empty span: nothing to keep a head/tail from
	}

	var newSegments []segment

	// Keep the head of the lower segment, if the write starts partway through it.
	if lower < len(l.segments) {
		headWidth := resolved.Start - bounds[lower].Start
		if headWidth > 0 {
			head := l.segments[lower]
			head.length = headWidth
			if head.source == sourceScratch {
				head.scratch.addref()
			}
			newSegments = append(newSegments, head)
		}
	}

	// The new segment itself.
	newSegments = append(newSegments, segment{
		length:  handle.Size(),
		source:  sourceScratch,
		offset:  0,
		scratch: handle,
	})

	// Keep the tail of the upper segment, if the write ends partway through
	// it. The kept remainder is always given a finite length, even if the
	// original segment was the open tail: a write that carves into the open
	// tail fixes the byte count of what is left over, per spec.
	if upper >= 0 && upper < len(l.segments) {
		tailWidth := bounds[upper].End - resolved.End
		if tailWidth > 0 {
			tail := l.segments[upper]
			advance := resolved.End - bounds[upper].Start
			tail.offset += advance
			tail.length = tailWidth
			if tail.source == sourceScratch {
				tail.scratch.addref()
			}
			newSegments = append(newSegments, tail)
		}
	}

	// Drop every segment strictly inside [lower, upper], releasing scratch refs.
	for i := lower; i <= upper && i < len(l.segments); i++ {
		if l.segments[i].source == sourceScratch {
			if err := l.segments[i].scratch.release(); err != nil {
				return Change{}, err
			}
		}
	}

	result := make([]segment, 0, len(l.segments)-(upper-lower+1)+len(newSegments))
	result = append(result, l.segments[:lower]...)
	result = append(result, newSegments...)
	if upper+1 < len(l.segments) {
		result = append(result, l.segments[upper+1:]...)
	}
	l.segments = result

	changeRange := rangealg.Range{Start: resolved.Start, End: resolved.Start + handle.Size()}
	if r.End == rangealg.End || handle.Size() != width {
		changeRange.End = rangealg.End
	}
	return Change{Range: changeRange}, nil
}
