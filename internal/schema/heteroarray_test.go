package schema_test

import (
	"context"
	"testing"

	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/schema"
)

// fixedArraySource lays out items of fixedLen each over a size-byte region,
// terminating after lastIndex (inclusive) via IsLastItem.
type fixedArraySource struct {
	size      int64
	fixedLen  int64
	lastIndex int
	seen      int
}

func (s *fixedArraySource) Size(ctx context.Context) (int64, error) { return s.size, nil }

func (s *fixedArraySource) ItemLength(ctx context.Context, itemType string, start int64) (int64, bool, error) {
	if start >= s.size {
		return 0, false, nil
	}
	return s.fixedLen, true, nil
}

func (s *fixedArraySource) IsLastItem(ctx context.Context, itemType string, r rangealg.Range) (bool, error) {
	idx := int(r.Start / s.fixedLen)
	return idx == s.lastIndex, nil
}

func TestTableExtendsUntilIsLastItem(t *testing.T) {
	src := &fixedArraySource{size: 100, fixedLen: 10, lastIndex: 2}
	table := schema.NewTable(src, "Item")

	for i := 0; i <= 2; i++ {
		r, ok, err := table.EntryAt(context.Background(), i)
		if err != nil || !ok {
			t.Fatalf("EntryAt(%d) = %v, %v, %v", i, r, ok, err)
		}
		want := rangealg.Range{Start: int64(i) * 10, End: int64(i)*10 + 10}
		if r != want {
			t.Errorf("EntryAt(%d) = %v, want %v", i, r, want)
		}
	}

	if _, ok, err := table.EntryAt(context.Background(), 3); err != nil || ok {
		t.Errorf("EntryAt(3) after the terminal item should report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestTableTerminatesAtEndOfRegion(t *testing.T) {
	// no item is ever declared "last"; the table stops because the cursor
	// reaches the end of the region.
	src := &fixedArraySource{size: 20, fixedLen: 10, lastIndex: -1}
	table := schema.NewTable(src, "Item")

	if _, ok, err := table.EntryAt(context.Background(), 0); err != nil || !ok {
		t.Fatalf("EntryAt(0): ok=%v err=%v", ok, err)
	}
	if _, ok, err := table.EntryAt(context.Background(), 1); err != nil || !ok {
		t.Fatalf("EntryAt(1): ok=%v err=%v", ok, err)
	}
	if _, ok, err := table.EntryAt(context.Background(), 2); err != nil || ok {
		t.Errorf("EntryAt(2) should be past the end of the region, got ok=%v err=%v", ok, err)
	}
}

func TestTableInvalidateDropsEntriesFromChangeStart(t *testing.T) {
	src := &fixedArraySource{size: 100, fixedLen: 10, lastIndex: 2}
	table := schema.NewTable(src, "Item")
	for i := 0; i <= 2; i++ {
		if _, _, err := table.EntryAt(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 before Invalidate", table.Len())
	}

	table.Invalidate(rangealg.Range{Start: 15, End: rangealg.End})
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after invalidating from offset 15", table.Len())
	}

	// re-extending should re-derive the dropped entry rather than stay stuck.
	r, ok, err := table.EntryAt(context.Background(), 2)
	if err != nil || !ok {
		t.Fatalf("EntryAt(2) after Invalidate: ok=%v err=%v", ok, err)
	}
	if want := (rangealg.Range{Start: 20, End: 30}); r != want {
		t.Errorf("EntryAt(2) after Invalidate = %v, want %v", r, want)
	}
}

func TestCacheInstallLosesRaceToBump(t *testing.T) {
	var c schema.Cache
	gen := c.Generation()
	c.Bump() // a concurrent change notification arrives before Install

	installed := c.Install(gen, &schema.Result{})
	if installed {
		t.Error("Install should fail once the generation has advanced")
	}
	if _, ok := c.Get(); ok {
		t.Error("Get should report no cached result after a lost race")
	}
}

func TestCacheInstallAndGet(t *testing.T) {
	var c schema.Cache
	gen := c.Generation()
	want := &schema.Result{Order: []string{"Width"}}
	if !c.Install(gen, want) {
		t.Fatal("Install should succeed when the generation has not advanced")
	}
	got, ok := c.Get()
	if !ok || got != want {
		t.Errorf("Get() = %v, %v, want %v, true", got, ok, want)
	}
}
