package png_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/dstest"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
	png "github.com/lledit/lledit/schemas/png"
)

var magic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func ihdrChunk() []byte {
	data := []byte{
		0, 0, 0, 1, // width = 1
		0, 0, 0, 1, // height = 1
		8,    // bit depth
		6,    // color type: RGBA
		0, 0, // compression, filter
		0, // interlace
	}
	var b []byte
	b = append(b, 0, 0, 0, byte(len(data))) // length
	b = append(b, []byte("IHDR")...)
	b = append(b, data...)
	b = append(b, 0xde, 0xad, 0xbe, 0xef) // CRC placeholder, never checked
	return b
}

func iendChunk() []byte {
	b := []byte{0, 0, 0, 0}
	b = append(b, []byte("IEND")...)
	b = append(b, 0xde, 0xad, 0xbe, 0xef)
	return b
}

func fsDsid(path string) dsid.Dsid {
	id := dsid.Dsid{dsid.Name("FileSystem")}
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		id = append(id, dsid.Name(part))
	}
	return id
}

func newPngSession(t *testing.T) *session.Session {
	t.Helper()
	sess := dstest.NewSession(t)
	png.Register(sess)
	return sess
}

// Scenario 1 of spec.md §8: a valid PNG's MagicNumber view reads back the
// eight-byte signature.
func TestMagicNumber(t *testing.T) {
	contents := append(append([]byte{}, magic...), ihdrChunk()...)
	contents = append(contents, iendChunk()...)
	path := dstest.TempFile(t, "valid.png", contents)

	sess := newPngSession(t)
	ctx := context.Background()

	id := fsDsid(path).Append(dsid.TypeMarker("Png"))
	view, err := sess.Open(ctx, id, session.Tag("test"))
	if err != nil {
		t.Fatalf("open Png: %v", err)
	}
	defer sess.Release(view, session.Tag("test"))

	magicID := id.Append(dsid.Name("MagicNumber"))
	magicView, err := sess.Open(ctx, magicID, session.Tag("test"))
	if err != nil {
		t.Fatalf("open MagicNumber: %v", err)
	}
	defer sess.Release(magicView, session.Tag("test"))

	got, err := magicView.ReadBytes(ctx, rangealg.Range{Start: 0, End: int64(len(magic))})
	if err != nil {
		t.Fatalf("read MagicNumber: %v", err)
	}
	if string(got) != string(magic) {
		t.Fatalf("MagicNumber = %x, want %x", got, magic)
	}
}

// Scenario 2 of spec.md §8: a PNG truncated mid-chunk still enumerates the
// chunks that decoded fully and reports the truncated one as BrokenData,
// rather than failing the whole listing.
func TestTruncatedChunkReportsBrokenData(t *testing.T) {
	full := append(append([]byte{}, magic...), ihdrChunk()...)
	full = append(full, iendChunk()...)
	truncated := full[:len(magic)+8+5] // magic + IHDR's length+type + 5 data bytes, no CRC
	path := dstest.TempFile(t, "truncated.png", truncated)

	sess := newPngSession(t)
	ctx := context.Background()

	id := fsDsid(path).Append(dsid.TypeMarker("Png"))
	view, err := sess.Open(ctx, id, session.Tag("test"))
	if err != nil {
		t.Fatalf("open Png: %v", err)
	}
	defer sess.Release(view, session.Tag("test"))

	var sawBroken bool
	it := view.EnumKeys(ctx)
	for {
		key, ok, err := it.Next()
		if err != nil {
			t.Fatalf("EnumKeys: %v", err)
		}
		if !ok {
			break
		}
		if _, isBroken := key.(dsid.Broken); isBroken {
			sawBroken = true
		}
	}
	if !sawBroken {
		t.Fatalf("expected a BrokenData key for the truncated chunk, got none")
	}
}
