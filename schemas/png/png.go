package png

import (
	"context"
	"fmt"
	"io"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/datastore"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/overlay"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/schema"
	"github.com/lledit/lledit/internal/session"
)

// magicSize is the length of the 8-byte PNG signature every stream must
// begin with.
const magicSize = 8

// Png is the top-level view over a PNG byte stream: it exposes "MagicNumber"
// and one "ChunkAt<offset>" name per chunk found scanning forward from byte
// 8, rather than nesting the chunk sequence under an ordinary field name the
// way ds_png.py's Python ancestor did (it composed an ordinary Structure
// field holding a HeteroArray of PngChunk). Exposing the chunks as the
// datastore's own top-level children keeps a PNG's chunk dsids one level
// shallower and is the layout this package's tests exercise directly.
type Png struct {
	session.Base
	datastore.Stub

	parent session.DataStore
	table  *schema.Table // local coordinates: 0 means byte 8 of the file
}

// NewPng is the session.Constructor for the "Png" class.
func NewPng(sess *session.Session, id dsid.Dsid, class string) (session.DataStore, error) {
	parent, err := attachFull(sess, id)
	if err != nil {
		return nil, err
	}
	p := &Png{Base: session.NewBase(sess, id, class), parent: parent}
	p.table = schema.NewTable(chunkSource{p}, ClassChunk)
	return p, nil
}

// attachFull mirrors internal/datastore's unexported helper of the same
// name: Png views the same coordinate space as its parent (the whole file),
// not a named field, so it attaches to its own dsid's parent directly.
func attachFull(sess *session.Session, id dsid.Dsid) (session.DataStore, error) {
	parentID, ok := id.Parent()
	if !ok {
		return nil, &lledit.InvalidDsidError{Dsid: id.String(), Reason: "Png has no parent to attach to"}
	}
	return sess.Open(context.Background(), parentID, session.From(id))
}

func (p *Png) Handle() *session.Base { return &p.Base }

// chunkSource adapts Png's chunk table to schema.ArraySource, translating
// between the table's local coordinates (offset 0 is the first byte after
// the magic number) and the parent's global file coordinates.
type chunkSource struct{ p *Png }

func (c chunkSource) Size(ctx context.Context) (int64, error) {
	size, err := c.p.parent.GetSize(ctx)
	if err != nil {
		return 0, err
	}
	if size < magicSize {
		return 0, nil
	}
	return size - magicSize, nil
}

func (c chunkSource) ItemLength(ctx context.Context, itemType string, start int64) (int64, bool, error) {
	p := c.p
	global := start + magicSize
	sliceID := p.Dsid().Append(dsid.CharRange(rangealg.Range{Start: global, End: rangealg.End}))
	typedID := sliceID.Append(dsid.TypeMarker(itemType))
	view, err := p.Session().Open(ctx, typedID, session.Tag("<png-chunk>"))
	if err != nil {
		return 0, false, err
	}
	defer p.Session().Release(view, session.Tag("<png-chunk>"))
	local, err := view.LocateEnd(ctx)
	if err != nil {
		return 0, false, err
	}
	if local == rangealg.End {
		return 0, false, nil
	}
	return local, true, nil
}

func (c chunkSource) IsLastItem(ctx context.Context, itemType string, r rangealg.Range) (bool, error) {
	global := rangealg.Offset(r, magicSize)
	raw, err := c.p.parent.ReadBytes(ctx, rangealg.Range{Start: global.Start + 4, End: global.Start + 8})
	if err != nil || len(raw) < 4 {
		return false, nil
	}
	return string(raw) == "IEND", nil
}

// chunkAt returns the file-coordinate range of the chunk whose table index
// is idx, or ok=false if the table has no such entry.
func (p *Png) chunkAt(ctx context.Context, idx int) (rangealg.Range, bool, error) {
	local, ok, err := p.table.EntryAt(ctx, idx)
	if err != nil || !ok {
		return rangealg.Range{}, ok, err
	}
	return rangealg.Offset(local, magicSize), true, nil
}

// truncationWarning reports the broken-data description spec.md's worked
// example uses when chunk r's declared envelope runs past the actual file
// size: it reads the chunk's own length+type header directly, independent
// of whatever (possibly past-EOF) range the table optimistically recorded
// for it (a chunk's declared length is trusted even when the backing store
// cannot supply that many bytes — the engine reports brokenness rather than
// rejecting the chunk, per spec.md §1's Non-goals).
func (p *Png) truncationWarning(ctx context.Context, r rangealg.Range, fileSize int64) (string, bool) {
	if r.End <= fileSize {
		return "", false
	}
	if fileSize-r.Start < 8 {
		return "", false // not even a length+type prefix present: nothing to report
	}
	head, err := p.parent.ReadBytes(ctx, rangealg.Range{Start: r.Start, End: r.Start + 8})
	if err != nil || len(head) < 8 {
		return "", false
	}
	length := uint32(head[0])<<24 | uint32(head[1])<<16 | uint32(head[2])<<8 | uint32(head[3])
	typ := string(head[4:8])
	return fmt.Sprintf("Chunk at %d (length %d, type %s) is truncated", r.Start, length, typ), true
}

func (p *Png) EnumKeys(ctx context.Context) session.KeyIterator {
	keys := []dsid.Key{dsid.Name("MagicNumber")}
	size, err := p.parent.GetSize(ctx)
	if err != nil {
		return session.NewSliceIterator(append(keys, dsid.Broken{Description: err.Error()}))
	}
	for i := 0; ; i++ {
		r, ok, err := p.chunkAt(ctx, i)
		if err != nil {
			keys = append(keys, dsid.Broken{Description: err.Error()})
			break
		}
		if !ok {
			break
		}
		keys = append(keys, dsid.Name(fmt.Sprintf("ChunkAt%d", r.Start)))
		if desc, broken := p.truncationWarning(ctx, r, size); broken {
			keys = append(keys, dsid.Broken{Description: desc})
		}
	}
	return session.NewSliceIterator(keys)
}

func (p *Png) ChildDsid(key dsid.Key) (dsid.Dsid, string, error) {
	name, ok := key.(dsid.Name)
	if !ok {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "a Png's children are named fields"}
	}
	if name == "MagicNumber" {
		r := rangealg.Range{Start: 0, End: magicSize}
		target := p.Dsid().Append(dsid.CharRange(r)).Append(dsid.TypeMarker("Data"))
		return target, "Data", nil
	}
	var globalStart int64
	if n, err := fmt.Sscanf(string(name), "ChunkAt%d", &globalStart); n != 1 || err != nil {
		return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "no such field"}
	}
	ctx := context.Background()
	for i := 0; ; i++ {
		r, ok, err := p.chunkAt(ctx, i)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "no such chunk"}
		}
		if r.Start == globalStart {
			target := p.Dsid().Append(dsid.CharRange(r)).Append(dsid.TypeMarker(ClassChunk))
			return target, ClassChunk, nil
		}
		if r.Start > globalStart {
			return nil, "", &lledit.InvalidDsidError{Dsid: key.String(), Reason: "no chunk at that offset"}
		}
	}
}

func (p *Png) ReadBytes(ctx context.Context, r rangealg.Range) ([]byte, error) {
	return p.parent.ReadBytes(ctx, r)
}

func (p *Png) Write(ctx context.Context, r rangealg.Range, src io.Reader) (overlay.Change, error) {
	change, err := p.parent.Write(ctx, r, src)
	if err != nil {
		return overlay.Change{}, err
	}
	p.table.Invalidate(rangealg.Offset(change.Range, -magicSize))
	p.Session().NotifyChange(p, dsid.CharRange(change.Range), p)
	return change, nil
}

func (p *Png) GetSize(ctx context.Context) (int64, error) { return p.parent.GetSize(ctx) }

func (p *Png) LocateEnd(ctx context.Context) (int64, error) { return p.parent.GetSize(ctx) }

func (p *Png) OnChange(source session.DataStore, key dsid.Key, requestor session.DataStore) {
	if cr, ok := key.(dsid.CharRange); ok {
		p.table.Invalidate(rangealg.Offset(cr.Range(), -magicSize))
	}
	p.Session().NotifyChange(p, key, requestor)
}

func (p *Png) DoFree() error {
	return p.Session().Release(p.parent, session.From(p.Dsid()))
}
