package hookfs

import (
	"os"
	"sync"
)

// handleEntry is one row of the file-handle table: an opaque 64-bit cookie
// mapped to an exclusively-owned host descriptor (spec.md §3 "File
// Handle"). dir is true for directory handles, in which case entries
// caches the directory's listing across a readdir sequence so successive
// calls can serve from the same snapshot.
type handleEntry struct {
	file    *os.File
	rel     string
	dir     bool
	entries []os.DirEntry
}

type handleTable struct {
	mu      sync.Mutex
	byID    map[uint64]*handleEntry
	nextID  uint64
}

func newHandleTable() *handleTable {
	return &handleTable{byID: make(map[uint64]*handleEntry), nextID: 1}
}

// insert records a host descriptor for rel (the path it was opened
// against), so later release/releasedir calls can present that path to
// the injector chain.
func (t *handleTable) insert(f *os.File, rel string, dir bool) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.byID[id] = &handleEntry{file: f, rel: rel, dir: dir}
	return id
}

func (t *handleTable) get(id uint64) (*handleEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	return e, ok
}

// remove drops the handle record and returns it so the caller can close
// its descriptor; the handle table itself never performs I/O.
func (t *handleTable) remove(id uint64) (*handleEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if ok {
		delete(t.byID, id)
	}
	return e, ok
}
