package hookfs

import "sync"

// rootInodeID is reserved for the backing directory itself, mirroring
// jacobsa/fuse's fuseops.RootInodeID convention.
const rootInodeID uint64 = 1

// inodeEntry is one row of the inode table: a stable inode number mapped
// to a canonical host-side path, with a kernel-maintained lookup count.
type inodeEntry struct {
	path        string
	lookupCount uint64
}

// inodeTable is the bidirectional {inode ↔ canonical_path} map described in
// spec.md §4.G, including the reverse index lookup needs to resolve an
// existing inode for a path it has already minted.
type inodeTable struct {
	mu        sync.Mutex
	byID      map[uint64]*inodeEntry
	byPath    map[string]uint64
	nextID    uint64
}

func newInodeTable(rootPath string) *inodeTable {
	t := &inodeTable{
		byID:   make(map[uint64]*inodeEntry),
		byPath: make(map[string]uint64),
		nextID: rootInodeID + 1,
	}
	t.byID[rootInodeID] = &inodeEntry{path: rootPath, lookupCount: 1}
	t.byPath[rootPath] = rootInodeID
	return t
}

// lookUpOrMint resolves path to its existing inode, incrementing its
// lookup count, or mints a fresh one with lookup count 1.
func (t *inodeTable) lookUpOrMint(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byPath[path]; ok {
		t.byID[id].lookupCount++
		return id
	}

	id := t.nextID
	t.nextID++
	t.byID[id] = &inodeEntry{path: path, lookupCount: 1}
	t.byPath[path] = id
	return id
}

// path returns the canonical path for ino, or "" if it is unknown (already
// forgotten, or never minted).
func (t *inodeTable) path(ino uint64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[ino]
	if !ok {
		return "", false
	}
	return e.path, true
}

// inoForPath returns the inode already minted for path, if any, without
// minting a new one.
func (t *inodeTable) inoForPath(path string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byPath[path]
	return id, ok
}

// inoForDisplay resolves path to its existing inode, or mints a fresh one
// with lookup count 0, WITHOUT incrementing any lookup count. It is for
// callers (plain, non-READDIRPLUS readdir) that must hand the kernel an
// inode number but for which the kernel takes no lookup reference and will
// never send a matching Forget; using lookUpOrMint here would inflate
// lookup counts that can never reach zero.
func (t *inodeTable) inoForDisplay(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byPath[path]; ok {
		return id
	}

	id := t.nextID
	t.nextID++
	t.byID[id] = &inodeEntry{path: path, lookupCount: 0}
	t.byPath[path] = id
	return id
}

// forget decrements ino's lookup count by n, removing the entry once it
// reaches zero (spec.md §3 "Inode" invariant).
func (t *inodeTable) forget(ino uint64, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[ino]
	if !ok {
		return
	}
	if n >= e.lookupCount {
		delete(t.byID, ino)
		delete(t.byPath, e.path)
		return
	}
	e.lookupCount -= n
}

// rename updates the canonical path recorded for an inode already in the
// table, used when a passthrough rename changes the backing path of
// an entry the kernel still holds a reference to.
func (t *inodeTable) rename(ino uint64, newPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[ino]
	if !ok {
		return
	}
	delete(t.byPath, e.path)
	e.path = newPath
	t.byPath[newPath] = ino
}
