package schema_test

import (
	"context"
	"testing"

	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/schema"
)

// fakeSource is a ByteSource over an in-memory buffer. LocateEnd is only
// used by fields with no explicit size-fixing option, so tests that fix
// every field's size never exercise it.
type fakeSource struct {
	data      []byte
	locateErr error
}

func (f *fakeSource) Size(ctx context.Context) (int64, error) { return int64(len(f.data)), nil }

func (f *fakeSource) ReadAt(ctx context.Context, start, n int64) ([]byte, error) {
	if start >= int64(len(f.data)) {
		return nil, nil
	}
	end := start + n
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	return f.data[start:end], nil
}

func (f *fakeSource) LocateEnd(ctx context.Context, typeMarker string, start int64) (int64, bool, error) {
	if f.locateErr != nil {
		return 0, false, f.locateErr
	}
	return 0, false, nil
}

func TestEvalFixedSizeFields(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Width", "UInt32", schema.Size(4)),
		schema.NewField("Height", "UInt32", schema.Size(4)),
	}
	src := &fakeSource{data: make([]byte, 8)}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	want := map[string]rangealg.Range{
		"Width":  {Start: 0, End: 4},
		"Height": {Start: 4, End: 8},
	}
	for name, wantRange := range want {
		got, ok := res.Fields[name]
		if !ok {
			t.Fatalf("field %q not decoded", name)
		}
		if got.Range != wantRange {
			t.Errorf("field %q range = %v, want %v", name, got.Range, wantRange)
		}
	}
	if got := res.Order; len(got) != 2 || got[0] != "Width" || got[1] != "Height" {
		t.Errorf("Order = %v, want [Width Height]", got)
	}
}

func TestEvalSizeIs(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Length", "UInt32", schema.Size(4)),
		schema.NewField("RawData", "Data", schema.SizeIs("Length")),
	}
	data := append([]byte{0, 0, 0, 5}, []byte("hello")...)
	src := &fakeSource{data: data}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	want := rangealg.Range{Start: 4, End: 9}
	if got := res.Fields["RawData"].Range; got != want {
		t.Errorf("RawData range = %v, want %v", got, want)
	}
}

func TestEvalSizeIsPastEndOfDataWarnsTruncated(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Length", "UInt32", schema.Size(4)),
		schema.NewField("RawData", "Data", schema.SizeIs("Length")),
	}
	// declared length 13, but only 5 bytes of payload actually follow.
	data := append([]byte{0, 0, 0, 13}, []byte("hello")...)
	src := &fakeSource{data: data}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != schema.WarningTruncated || res.Warnings[0].Field != "RawData" {
		t.Fatalf("Warnings = %v, want a single truncated warning on RawData", res.Warnings)
	}
	// the field is still placed using its declared (optimistic) length.
	want := rangealg.Range{Start: 4, End: 17}
	if got := res.Fields["RawData"].Range; got != want {
		t.Errorf("RawData range = %v, want %v", got, want)
	}
}

func TestEvalIfEqualSkipsNonMatchingField(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Type", "Data", schema.Size(4)),
		schema.NewField("Gamma", "UInt32", schema.IfEqual("Type", []byte("gAMA")), schema.Size(4)),
	}
	src := &fakeSource{data: append([]byte("IHDR"), 0, 0, 0, 0)}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Fields["Gamma"]; ok {
		t.Error("Gamma should have been skipped: Type does not equal gAMA")
	}
}

func TestEvalIfEqualPlacesMatchingField(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Type", "Data", schema.Size(4)),
		schema.NewField("Gamma", "UInt32", schema.IfEqual("Type", []byte("gAMA")), schema.Size(4)),
	}
	src := &fakeSource{data: append([]byte("gAMA"), 1, 2, 3, 4)}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	want := rangealg.Range{Start: 4, End: 8}
	if got, ok := res.Fields["Gamma"]; !ok || got.Range != want {
		t.Errorf("Gamma = %+v, ok=%v, want range %v", got, ok, want)
	}
}

func TestEvalMissingFieldPastEndOfData(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Width", "UInt32", schema.Size(4)),
		schema.NewField("Height", "UInt32", schema.Size(4)),
	}
	src := &fakeSource{data: make([]byte, 4)} // only enough for Width
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != schema.WarningMissing || res.Warnings[0].Field != "Height" {
		t.Fatalf("Warnings = %v, want a single missing warning on Height", res.Warnings)
	}
	if _, ok := res.Fields["Height"]; ok {
		t.Error("Height should not be placed when entirely missing")
	}
}

func TestEvalOptionalSuppressesMissingWarning(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Width", "UInt32", schema.Size(4)),
		schema.NewField("Extra", "UInt32", schema.Size(4), schema.Optional()),
	}
	src := &fakeSource{data: make([]byte, 4)}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none (Extra is Optional)", res.Warnings)
	}
}

func TestEvalStartsWithAndEndsWith(t *testing.T) {
	s := schema.Schema{
		schema.NewField("RawData", "Data", schema.Size(6)),
		schema.NewField("Inner", "UInt32", schema.StartsWith("RawData"), schema.EndsWith("RawData")),
	}
	src := &fakeSource{data: make([]byte, 6)}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	want := rangealg.Range{Start: 0, End: 6}
	if got := res.Fields["Inner"].Range; got != want {
		t.Errorf("Inner range = %v, want %v", got, want)
	}
}

func TestEvalStopAtNul(t *testing.T) {
	s := schema.Schema{
		schema.NewField("Text", "CString", schema.Size(10), schema.StopAtNul()),
	}
	data := []byte("hi\x00garbage")
	src := &fakeSource{data: data}
	res, err := schema.Eval(context.Background(), s, src)
	if err != nil {
		t.Fatal(err)
	}
	want := rangealg.Range{Start: 0, End: 3}
	if got := res.Fields["Text"].Range; got != want {
		t.Errorf("Text range = %v, want %v", got, want)
	}
}
