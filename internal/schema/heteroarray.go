package schema

import (
	"context"
	"sync"

	"golang.org/x/xerrors"

	"github.com/lledit/lledit/internal/rangealg"
)

// ArraySource is what a HeteroArray needs from its owning datastore: its
// size, the self-described length of a typed item starting at a given
// offset, and the class-supplied is_last_item predicate of spec.md §4.4
// (e.g. PNG's IEND chunk).
type ArraySource interface {
	Size(ctx context.Context) (int64, error)
	// ItemLength opens (transiently) itemType at start and returns its
	// length. ok is false if the item's own locate_end is indeterminate.
	ItemLength(ctx context.Context, itemType string, start int64) (length int64, ok bool, err error)
	// IsLastItem reports whether the item occupying r is the terminal item
	// of the array (e.g. IEND), per the item type's own rule.
	IsLastItem(ctx context.Context, itemType string, r rangealg.Range) (bool, error)
}

// Table is a HeteroArray's lazily-extended range table: repeatedly opening a
// typed item at the cursor, recording its range, and advancing, per
// spec.md §4.4. It terminates when a zero-byte read, a zero-length item, or
// IsLastItem says so.
type Table struct {
	mu         sync.Mutex
	src        ArraySource
	itemType   string
	entries    []rangealg.Range
	terminated bool
}

// NewTable returns an empty table over src, decoding itemType-typed items.
func NewTable(src ArraySource, itemType string) *Table {
	return &Table{src: src, itemType: itemType}
}

// Len returns the number of entries currently known, without extending the
// table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// EntryAt returns the range of item idx, extending the table as needed. ok
// is false if idx is at or past the array's end.
func (t *Table) EntryAt(ctx context.Context, idx int) (rangealg.Range, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.entries) <= idx && !t.terminated {
		if err := t.extendOnceLocked(ctx); err != nil {
			return rangealg.Range{}, false, err
		}
	}
	if idx < 0 || idx >= len(t.entries) {
		return rangealg.Range{}, false, nil
	}
	return t.entries[idx], true, nil
}

func (t *Table) extendOnceLocked(ctx context.Context) error {
	var cursor int64
	if n := len(t.entries); n > 0 {
		cursor = t.entries[n-1].End
	}

	size, err := t.src.Size(ctx)
	if err != nil {
		return xerrors.Errorf("heteroarray: %w", err)
	}
	if cursor >= size {
		t.terminated = true // (a) reading one byte at the cursor yields empty
		return nil
	}

	length, ok, err := t.src.ItemLength(ctx, t.itemType, cursor)
	if err != nil {
		return xerrors.Errorf("heteroarray: item at %d: %w", cursor, err)
	}
	if !ok || length == 0 {
		t.terminated = true // (b) locate_end returned zero/indeterminate
		return nil
	}

	r := rangealg.Range{Start: cursor, End: cursor + length}
	last, err := t.src.IsLastItem(ctx, t.itemType, r)
	if err != nil {
		return xerrors.Errorf("heteroarray: is_last_item at %d: %w", cursor, err)
	}
	t.entries = append(t.entries, r)
	if last {
		t.terminated = true // (c) class-supplied terminal predicate
	}
	return nil
}

// Invalidate applies the open-question decision of spec.md §9: on any
// change overlapping the array's region, drop every entry whose start is at
// or past change.Start, unconditionally, and re-enable extension from there.
func (t *Table) Invalidate(change rangealg.Range) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.Start >= change.Start {
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
	t.terminated = false
}
