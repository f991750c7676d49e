package schema

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit/internal/rangealg"
)

// Decoded is one successfully-placed field, per spec.md §3's "structured
// field record".
type Decoded struct {
	Name  string
	Type  string
	Range rangealg.Range
}

// WarningKind enumerates the in-band brokenness warnings of spec.md §7: a
// decode never fails outright because of them, it reports them alongside
// whatever did decode.
type WarningKind int

const (
	// WarningMissing marks a field whose first byte was unreadable and
	// which was not declared Optional.
	WarningMissing WarningKind = iota
	// WarningTruncated marks a field with a finite end whose last byte was
	// unreadable; the field is still emitted.
	WarningTruncated
)

func (k WarningKind) String() string {
	if k == WarningMissing {
		return "Missing field"
	}
	return "Truncated field"
}

// Warning is a BrokenData item yielded alongside a Result, per spec.md §7.
type Warning struct {
	Kind  WarningKind
	Field string
}

func (w Warning) Description() string {
	return w.Kind.String() + " " + w.Field
}

// Result is the decoded (fields, warnings, field_order) triple of spec.md
// §4.4, memoised by a Cache under a generation counter.
type Result struct {
	Fields   map[string]Decoded
	Order    []string
	Warnings []Warning
}

// Eval decomposes schema against src following spec.md §4.4's evaluation
// algorithm. It performs no locking and no caching of its own — Cache wraps
// it with the generation-counter discipline — and may be run outside any
// session lock since ByteSource calls are expected to do their own I/O
// synchronization.
func Eval(ctx context.Context, s Schema, src ByteSource) (*Result, error) {
	res := &Result{Fields: make(map[string]Decoded, len(s))}

	size, err := src.Size(ctx)
	if err != nil {
		return nil, xerrors.Errorf("schema eval: %w", err)
	}

	var ofs int64
	frozen := false

	for _, f := range s {
		if f.ifEqField != "" {
			referent, ok := res.Fields[f.ifEqField]
			if !ok {
				continue // referent was itself skipped: propagate the skip
			}
			got, err := src.ReadAt(ctx, referent.Range.Start, referent.Range.End-referent.Range.Start)
			if err != nil {
				return nil, xerrors.Errorf("schema eval: reading %q for ifequal: %w", f.ifEqField, err)
			}
			if !bytesEqual(got, f.ifEqValue) {
				continue
			}
		}

		start := ofs
		if frozen {
			start = rangealg.End
		}
		if f.startsWithField != "" {
			referent, ok := res.Fields[f.startsWithField]
			if !ok {
				continue
			}
			start = referent.Range.Start
		}

		end := int64(rangealg.End)
		endFixed := false
		switch {
		case f.endsWithField != "":
			referent, ok := res.Fields[f.endsWithField]
			if !ok {
				continue
			}
			end = referent.Range.End
			endFixed = true
		case f.sizeIs != "":
			referent, ok := res.Fields[f.sizeIs]
			if !ok {
				continue
			}
			raw, err := src.ReadAt(ctx, referent.Range.Start, referent.Range.End-referent.Range.Start)
			if err != nil {
				return nil, xerrors.Errorf("schema eval: reading %q for size_is: %w", f.sizeIs, err)
			}
			if start == rangealg.End {
				return nil, xerrors.Errorf("schema eval: field %q: size_is with frozen start", f.Name)
			}
			end = start + decodeUintBE(raw)
			endFixed = true
		case f.hasSize:
			if start == rangealg.End {
				return nil, xerrors.Errorf("schema eval: field %q: size with frozen start", f.Name)
			}
			end = start + *f.size
			endFixed = true
		}

		if !endFixed && !frozen {
			located, ok, err := src.LocateEnd(ctx, f.Type, start)
			if err != nil {
				return nil, xerrors.Errorf("schema eval: field %q: locate_end: %w", f.Name, err)
			}
			if ok {
				end = located
				endFixed = true
			}
		}

		if f.stopAtNul && endFixed && start >= 0 {
			scanEnd := end
			if scanEnd == rangealg.End {
				scanEnd = size
			}
			if scanEnd > start {
				chunk, err := src.ReadAt(ctx, start, scanEnd-start)
				if err == nil {
					for i, b := range chunk {
						if b == 0 {
							end = start + int64(i) + 1
							break
						}
					}
				}
			}
		}

		width := int64(0)
		if end != rangealg.End && start != rangealg.End {
			width = end - start
		} else if end == rangealg.End {
			width = 1 // non-zero: an open-ended field is never treated as zero-width
		}

		if width > 0 && start != rangealg.End {
			if start >= size {
				if !f.optional {
					res.Warnings = append(res.Warnings, Warning{Kind: WarningMissing, Field: f.Name})
				}
				goto advance
			}
			if end != rangealg.End && end > size {
				res.Warnings = append(res.Warnings, Warning{Kind: WarningTruncated, Field: f.Name})
			}
		}

		res.Fields[f.Name] = Decoded{Name: f.Name, Type: f.Type, Range: rangealg.Range{Start: start, End: end}}
		res.Order = append(res.Order, f.Name)

	advance:
		if end == rangealg.End {
			frozen = true
		} else if !frozen {
			ofs = end
		}
	}

	return res, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func decodeUintBE(b []byte) int64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return int64(v)
}
