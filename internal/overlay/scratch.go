package overlay

import (
	"io"
	"sync"

	"github.com/orcaman/writerseeker"
)

// spillThreshold is the default size in bytes above which a scratch buffer
// is spilled from memory to a backing temp file.
const spillThreshold = 1 << 20 // 1 MiB

// scratchHandle is a reference-counted spooled store holding the bytes of
// one or more overlay edits. Below spillThreshold it is an in-memory
// writerseeker.WriterSeeker buffer; beyond it, a backing temp file created by
// createScratchFile (OS-specific: scratch_linux.go / scratch_other.go).
//
// Segments that happen to reference the same underlying bytes (the head and
// tail left behind when a later write splits a scratch-backed segment, for
// instance) share one scratchHandle, so refcounting has to be explicit rather than relying
// on Go's GC: do_free-time bookkeeping needs to know exactly when the last
// segment referencing a handle goes away.
type scratchHandle struct {
	mu   sync.Mutex
	refs int
	size int64

	mem  *writerseeker.WriterSeeker
	file *spilledFile
}

func newScratchHandle(r io.Reader, dir string) (*scratchHandle, error) {
	ws := &writerseeker.WriterSeeker{}
	limited := io.LimitReader(r, spillThreshold+1)
	n, err := io.Copy(ws, limited)
	if err != nil {
		return nil, err
	}

	if n <= spillThreshold {
		return &scratchHandle{mem: ws, size: n, refs: 1}, nil
	}

	f, err := createScratchFile(dir)
	if err != nil {
		return nil, err
	}
	memReader := ws.Reader()
	written, err := io.Copy(f, memReader)
	if err != nil {
		f.Close()
		return nil, err
	}
	rest, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &scratchHandle{file: f, size: written + rest, refs: 1}, nil
}

// addref records another segment pointing at this handle.
func (h *scratchHandle) addref() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs++
}

// release drops a segment's reference; once the count reaches zero the
// backing resource (a spilled temp file, if any) is closed.
func (h *scratchHandle) release() error {
	h.mu.Lock()
	h.refs--
	empty := h.refs == 0
	h.mu.Unlock()
	if !empty {
		return nil
	}
	if h.file != nil {
		return h.file.Close()
	}
	return nil
}

func (h *scratchHandle) Size() int64 { return h.size }

// readAt reads up to len(p) bytes starting at off. It never returns more
// bytes than are actually stored; callers are responsible for not reading
// past size.
func (h *scratchHandle) readAt(p []byte, off int64) (int, error) {
	if h.mem != nil {
		return h.mem.BytesReader().ReadAt(p, off)
	}
	return h.file.ReadAt(p, off)
}
