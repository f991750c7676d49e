package schema

import "sync"

// Cache memoises a Result behind a monotonically increasing generation
// counter, per spec.md §4.4: evaluation runs outside the owning datastore's
// lock, and its result is installed only if the generation hasn't advanced
// meanwhile (a concurrent change notification bumping it first wins).
type Cache struct {
	mu         sync.Mutex
	generation uint64
	result     *Result
	resultGen  uint64
}

// Generation returns the current generation, to be captured before starting
// an Eval so Install can detect a race against it.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Get returns the cached result, if one is installed for the current
// generation.
func (c *Cache) Get() (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result != nil && c.resultGen == c.generation {
		return c.result, true
	}
	return nil, false
}

// Install stores result computed against generation gen; it is discarded
// (and false returned) if Bump ran in the meantime.
func (c *Cache) Install(gen uint64, result *Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.result = result
	c.resultGen = gen
	return true
}

// Bump invalidates any cached result: called when a change notification
// overlaps the structure's region.
func (c *Cache) Bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.result = nil
}
