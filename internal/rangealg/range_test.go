package rangealg_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lledit/lledit/internal/rangealg"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name  string
		outer rangealg.Range
		inner rangealg.Range
		want  rangealg.Range
	}{
		{
			name:  "finite in finite",
			outer: rangealg.Range{Start: 100, End: 200},
			inner: rangealg.Range{Start: 10, End: 20},
			want:  rangealg.Range{Start: 110, End: 120},
		},
		{
			name:  "open inner takes finite outer end",
			outer: rangealg.Range{Start: 100, End: 200},
			inner: rangealg.Range{Start: 10, End: rangealg.End},
			want:  rangealg.Range{Start: 110, End: 200},
		},
		{
			name:  "finite inner capped by finite outer",
			outer: rangealg.Range{Start: 100, End: 110},
			inner: rangealg.Range{Start: 0, End: 50},
			want:  rangealg.Range{Start: 100, End: 110},
		},
		{
			name:  "open outer never caps",
			outer: rangealg.Range{Start: 100, End: rangealg.End},
			inner: rangealg.Range{Start: 0, End: 50},
			want:  rangealg.Range{Start: 100, End: 150},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rangealg.Translate(tc.outer, tc.inner)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Translate(%v, %v) mismatch (-want +got):\n%s", tc.outer, tc.inner, diff)
			}
		})
	}
}

func TestComposeMatchesNestedTranslate(t *testing.T) {
	a := rangealg.Range{Start: 10, End: 1000}
	b := rangealg.Range{Start: 5, End: 50}
	r := rangealg.Range{Start: 2, End: 8}

	composed := rangealg.Translate(rangealg.Compose(a, b), r)
	nested := rangealg.Translate(a, rangealg.Translate(b, r))
	if diff := cmp.Diff(nested, composed); diff != "" {
		t.Errorf("Compose disagrees with nested Translate (-nested +composed):\n%s", diff)
	}
}

func TestIntersect(t *testing.T) {
	cases := []struct {
		name    string
		a, b    rangealg.Range
		want    rangealg.Range
		wantOK  bool
	}{
		{
			name:   "overlap",
			a:      rangealg.Range{Start: 0, End: 10},
			b:      rangealg.Range{Start: 5, End: 15},
			want:   rangealg.Range{Start: 5, End: 10},
			wantOK: true,
		},
		{
			name:   "disjoint",
			a:      rangealg.Range{Start: 0, End: 10},
			b:      rangealg.Range{Start: 10, End: 20},
			wantOK: false,
		},
		{
			name:   "both open",
			a:      rangealg.Range{Start: 5, End: rangealg.End},
			b:      rangealg.Range{Start: 0, End: rangealg.End},
			want:   rangealg.Range{Start: 5, End: rangealg.End},
			wantOK: true,
		},
		{
			name:   "one open",
			a:      rangealg.Range{Start: 5, End: rangealg.End},
			b:      rangealg.Range{Start: 0, End: 10},
			want:   rangealg.Range{Start: 5, End: 10},
			wantOK: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := rangealg.Intersect(tc.a, tc.b)
			if ok != tc.wantOK {
				t.Fatalf("Intersect(%v, %v) ok = %v, want %v", tc.a, tc.b, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Intersect(%v, %v) mismatch (-want +got):\n%s", tc.a, tc.b, diff)
			}
		})
	}
}

func TestOffsetPreservesOpenEnd(t *testing.T) {
	r := rangealg.Range{Start: 10, End: rangealg.End}
	got := rangealg.Offset(r, 8)
	want := rangealg.Range{Start: 18, End: rangealg.End}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Offset mismatch (-want +got):\n%s", diff)
	}
}

func TestWidthOfOpenRangeUsesSize(t *testing.T) {
	r := rangealg.Range{Start: 10, End: rangealg.End}
	if got := r.Width(100); got != 90 {
		t.Errorf("Width(100) = %d, want 90", got)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		r    rangealg.Range
		want bool
	}{
		{rangealg.Range{Start: 0, End: 0}, true},
		{rangealg.Range{Start: 0, End: rangealg.End}, true},
		{rangealg.Range{Start: 5, End: 5}, false},
		{rangealg.Range{Start: 5, End: 3}, false},
		{rangealg.Range{Start: -1, End: 10}, false},
	}
	for _, tc := range cases {
		if got := tc.r.Valid(); got != tc.want {
			t.Errorf("%v.Valid() = %v, want %v", tc.r, got, tc.want)
		}
	}
}
