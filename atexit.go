package lledit

import (
	"sync"
	"sync/atomic"
)

// atExit collects cleanup callbacks registered by RegisterAtExit, most
// notably the scratch-file pool's spilled-temp-file unlinker: a session may
// be garbage collected without Close ever running, so cleanup is anchored to
// process exit instead of to any one session's lifetime.
var atExit struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

// RegisterAtExit registers fn to run when RunAtExit is called.
func RegisterAtExit(fn func() error) {
	if atomic.LoadUint32(&atExit.closed) != 0 {
		panic("BUG: RegisterAtExit must not be called from an atExit func")
	}
	atExit.Lock()
	defer atExit.Unlock()
	atExit.fns = append(atExit.fns, fn)
}

// RunAtExit runs every registered cleanup callback, stopping at the first
// error. Call it from main before returning.
func RunAtExit() error {
	atomic.StoreUint32(&atExit.closed, 1)
	for _, fn := range atExit.fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
