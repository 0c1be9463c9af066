// Package hookfs implements the passthrough Hook Filesystem: every
// operation is served against a real backing directory, with its own
// inode/handle bookkeeping, consulting an injector chain before the
// underlying syscall and whenever an attribute reply is produced
// (spec.md §4.G).
package hookfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/iofault/fi/internal/fusereply"
	"github.com/iofault/fi/internal/injector"
	"github.com/iofault/fi/internal/logger"
)

// attrTTL is how long the kernel may cache an attribute/entry reply before
// re-validating; passthrough semantics call for a short TTL so out-of-band
// changes to the backing directory are picked up promptly.
const attrTTL = time.Second

// FileSystem is the Hook Filesystem: a passthrough view of root, gated by
// chain. enabled mirrors the Mount Guard's atomic flag (spec.md §5); while
// false the chain is bypassed entirely.
type FileSystem struct {
	root    string
	chain   *injector.Chain
	enabled *atomic.Bool

	inodes  *inodeTable
	handles *handleTable
}

// New builds a Hook Filesystem rooted at backingDir. chain may be nil,
// meaning the passthrough-identity configuration (spec.md §8 "Passthrough
// identity"). enabled is owned by the caller (the Mount Orchestrator) and
// toggled independently of construction.
func New(backingDir string, chain *injector.Chain, enabled *atomic.Bool) *FileSystem {
	return &FileSystem{
		root:    backingDir,
		chain:   chain,
		enabled: enabled,
		inodes:  newInodeTable(""),
		handles: newHandleTable(),
	}
}

func (fs *FileSystem) absPath(rel string) string {
	if rel == "" {
		return fs.root
	}
	return filepath.Join(fs.root, rel)
}

func (fs *FileSystem) fusePath(rel string) string {
	return "/" + rel
}

func (fs *FileSystem) relPath(ino uint64) (string, bool) {
	return fs.inodes.path(ino)
}

// inject consults the chain's pre-op hook when injection is enabled; it is
// a no-op while the Mount Guard is disabled (spec.md §4.I "Mounted
// (disabled)").
func (fs *FileSystem) inject(ctx context.Context, method injector.Method, rel string) error {
	if fs.enabled == nil || !fs.enabled.Load() {
		return nil
	}
	return fs.chain.Inject(ctx, method, fs.fusePath(rel))
}

// injectAttr consults the chain's attribute-mutation hook when injection
// is enabled.
func (fs *FileSystem) injectAttr(attr *injector.Attr, rel string) {
	if fs.enabled == nil || !fs.enabled.Load() {
		return
	}
	fs.chain.InjectAttr(attr, fs.fusePath(rel))
}

func errno(err error) error {
	if err == nil {
		return nil
	}
	var pe *os.PathError
	if e, ok := err.(*os.PathError); ok {
		pe = e
	}
	if pe != nil {
		if errno, ok := pe.Err.(syscall.Errno); ok {
			return errno
		}
	}
	if e, ok := err.(syscall.Errno); ok {
		return e
	}
	return err
}

func (fs *FileSystem) statAttr(ino uint64, rel string) (injector.Attr, error) {
	fi, err := os.Lstat(fs.absPath(rel))
	if err != nil {
		return injector.Attr{}, errno(err)
	}
	attr := attrFromFileInfo(ino, fi)
	fs.injectAttr(&attr, rel)
	return attr, nil
}

// LookUpInode resolves name inside the directory inode parent.
func (fs *FileSystem) LookUpInode(ctx context.Context, parent uint64, name string, sink *fusereply.Sink[fusereply.Entry]) {
	parentRel, ok := fs.relPath(parent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	rel := filepath.Join(parentRel, name)

	if err := fs.inject(ctx, injector.MethodLookup, rel); err != nil {
		sink.Err(err)
		return
	}

	fi, err := os.Lstat(fs.absPath(rel))
	if err != nil {
		sink.Err(errno(err))
		return
	}

	ino := fs.inodes.lookUpOrMint(rel)
	attr := attrFromFileInfo(ino, fi)
	fs.injectAttr(&attr, rel)

	sink.Ok(fusereply.Entry{
		Child:           ino,
		Generation:      1,
		Attr:            attr,
		AttrExpiration:  time.Now().Add(attrTTL),
		EntryExpiration: time.Now().Add(attrTTL),
	})
}

// GetInodeAttributes returns the current attributes of ino.
func (fs *FileSystem) GetInodeAttributes(ctx context.Context, ino uint64, sink *fusereply.Sink[fusereply.Attr]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodGetattr, rel); err != nil {
		sink.Err(err)
		return
	}
	attr, err := fs.statAttr(ino, rel)
	if err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Attr{Attr: attr, Expiration: time.Now().Add(attrTTL)})
}

// SetAttrRequest carries the optional fields setattr may change.
type SetAttrRequest struct {
	Size  *uint64
	Mode  *os.FileMode
	Atime *time.Time
	Mtime *time.Time
}

// SetInodeAttributes applies req to ino then returns the resulting
// attributes.
func (fs *FileSystem) SetInodeAttributes(ctx context.Context, ino uint64, req SetAttrRequest, sink *fusereply.Sink[fusereply.Attr]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodSetattr, rel); err != nil {
		sink.Err(err)
		return
	}

	abs := fs.absPath(rel)
	if req.Size != nil {
		if err := os.Truncate(abs, int64(*req.Size)); err != nil {
			sink.Err(errno(err))
			return
		}
	}
	if req.Mode != nil {
		if err := os.Chmod(abs, *req.Mode); err != nil {
			sink.Err(errno(err))
			return
		}
	}
	if req.Atime != nil || req.Mtime != nil {
		at, mt := time.Now(), time.Now()
		if req.Atime != nil {
			at = *req.Atime
		}
		if req.Mtime != nil {
			mt = *req.Mtime
		}
		if err := os.Chtimes(abs, at, mt); err != nil {
			sink.Err(errno(err))
			return
		}
	}

	attr, err := fs.statAttr(ino, rel)
	if err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Attr{Attr: attr, Expiration: time.Now().Add(attrTTL)})
}

// ForgetInode decrements ino's lookup count by n.
func (fs *FileSystem) ForgetInode(ctx context.Context, ino uint64, n uint64, sink *fusereply.Sink[fusereply.Empty]) {
	rel, _ := fs.relPath(ino)
	err := fs.inject(ctx, injector.MethodForget, rel)
	// The lookup-count decrement is bookkeeping the inode pinning invariant
	// (spec.md §8) depends on; it always runs regardless of an injected
	// fault so a faulted forget can never leak a pinned entry.
	fs.inodes.forget(ino, n)
	if err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Empty{})
}

// MkDir creates a directory named name inside parent.
func (fs *FileSystem) MkDir(ctx context.Context, parent uint64, name string, mode os.FileMode, sink *fusereply.Sink[fusereply.Entry]) {
	parentRel, ok := fs.relPath(parent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	rel := filepath.Join(parentRel, name)
	if err := fs.inject(ctx, injector.MethodMkdir, rel); err != nil {
		sink.Err(err)
		return
	}
	if err := os.Mkdir(fs.absPath(rel), mode); err != nil {
		sink.Err(errno(err))
		return
	}

	fi, err := os.Lstat(fs.absPath(rel))
	if err != nil {
		sink.Err(errno(err))
		return
	}
	ino := fs.inodes.lookUpOrMint(rel)
	attr := attrFromFileInfo(ino, fi)
	fs.injectAttr(&attr, rel)
	sink.Ok(fusereply.Entry{Child: ino, Generation: 1, Attr: attr, AttrExpiration: time.Now().Add(attrTTL), EntryExpiration: time.Now().Add(attrTTL)})
}

// CreateFile creates and opens a file named name inside parent.
func (fs *FileSystem) CreateFile(ctx context.Context, parent uint64, name string, mode os.FileMode, sink *fusereply.Sink[fusereply.Create]) {
	parentRel, ok := fs.relPath(parent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	rel := filepath.Join(parentRel, name)
	if err := fs.inject(ctx, injector.MethodCreate, rel); err != nil {
		sink.Err(err)
		return
	}

	f, err := os.OpenFile(fs.absPath(rel), os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		sink.Err(errno(err))
		return
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		sink.Err(errno(err))
		return
	}
	ino := fs.inodes.lookUpOrMint(rel)
	attr := attrFromFileInfo(ino, fi)
	fs.injectAttr(&attr, rel)
	handle := fs.handles.insert(f, rel, false)

	sink.Ok(fusereply.Create{
		Entry: fusereply.Entry{
			Child: ino, Generation: 1, Attr: attr,
			AttrExpiration: time.Now().Add(attrTTL), EntryExpiration: time.Now().Add(attrTTL),
		},
		Handle: handle,
	})
}

// CreateSymlink creates a symlink named name inside parent, pointing at
// target.
func (fs *FileSystem) CreateSymlink(ctx context.Context, parent uint64, name, target string, sink *fusereply.Sink[fusereply.Entry]) {
	parentRel, ok := fs.relPath(parent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	rel := filepath.Join(parentRel, name)
	if err := fs.inject(ctx, injector.MethodSymlink, rel); err != nil {
		sink.Err(err)
		return
	}
	if err := os.Symlink(target, fs.absPath(rel)); err != nil {
		sink.Err(errno(err))
		return
	}
	fi, err := os.Lstat(fs.absPath(rel))
	if err != nil {
		sink.Err(errno(err))
		return
	}
	ino := fs.inodes.lookUpOrMint(rel)
	attr := attrFromFileInfo(ino, fi)
	fs.injectAttr(&attr, rel)
	sink.Ok(fusereply.Entry{Child: ino, Generation: 1, Attr: attr, AttrExpiration: time.Now().Add(attrTTL), EntryExpiration: time.Now().Add(attrTTL)})
}

// ReadSymlink returns the target of the symlink at ino.
func (fs *FileSystem) ReadSymlink(ctx context.Context, ino uint64, sink *fusereply.Sink[fusereply.Data]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodReadlink, rel); err != nil {
		sink.Err(err)
		return
	}
	target, err := os.Readlink(fs.absPath(rel))
	if err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Data{Bytes: []byte(target)})
}

// RmDir removes the directory named name inside parent.
func (fs *FileSystem) RmDir(ctx context.Context, parent uint64, name string, sink *fusereply.Sink[fusereply.Empty]) {
	parentRel, ok := fs.relPath(parent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	rel := filepath.Join(parentRel, name)
	if err := fs.inject(ctx, injector.MethodRmdir, rel); err != nil {
		sink.Err(err)
		return
	}
	if err := os.Remove(fs.absPath(rel)); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Empty{})
}

// Unlink removes the file named name inside parent.
func (fs *FileSystem) Unlink(ctx context.Context, parent uint64, name string, sink *fusereply.Sink[fusereply.Empty]) {
	parentRel, ok := fs.relPath(parent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	rel := filepath.Join(parentRel, name)
	if err := fs.inject(ctx, injector.MethodUnlink, rel); err != nil {
		sink.Err(err)
		return
	}
	if err := os.Remove(fs.absPath(rel)); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Empty{})
}

// Rename moves oldParent/oldName to newParent/newName.
func (fs *FileSystem) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, sink *fusereply.Sink[fusereply.Empty]) {
	oldParentRel, ok := fs.relPath(oldParent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	newParentRel, ok := fs.relPath(newParent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	oldRel := filepath.Join(oldParentRel, oldName)
	newRel := filepath.Join(newParentRel, newName)

	if err := fs.inject(ctx, injector.MethodRename, oldRel); err != nil {
		sink.Err(err)
		return
	}
	if err := os.Rename(fs.absPath(oldRel), fs.absPath(newRel)); err != nil {
		sink.Err(errno(err))
		return
	}
	if ino, ok := fs.inodes.inoForPath(oldRel); ok {
		fs.inodes.rename(ino, newRel)
	}
	sink.Ok(fusereply.Empty{})
}

// Link creates a new hard link newName inside newParent pointing at ino.
func (fs *FileSystem) Link(ctx context.Context, ino uint64, newParent uint64, newName string, sink *fusereply.Sink[fusereply.Entry]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	newParentRel, ok := fs.relPath(newParent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	newRel := filepath.Join(newParentRel, newName)
	if err := fs.inject(ctx, injector.MethodLink, newRel); err != nil {
		sink.Err(err)
		return
	}
	if err := os.Link(fs.absPath(rel), fs.absPath(newRel)); err != nil {
		sink.Err(errno(err))
		return
	}
	fi, err := os.Lstat(fs.absPath(newRel))
	if err != nil {
		sink.Err(errno(err))
		return
	}
	newIno := fs.inodes.lookUpOrMint(newRel)
	attr := attrFromFileInfo(newIno, fi)
	fs.injectAttr(&attr, newRel)
	sink.Ok(fusereply.Entry{Child: newIno, Generation: 1, Attr: attr, AttrExpiration: time.Now().Add(attrTTL), EntryExpiration: time.Now().Add(attrTTL)})
}

// OpenDir opens ino (which must be a directory) for reading.
func (fs *FileSystem) OpenDir(ctx context.Context, ino uint64, sink *fusereply.Sink[fusereply.Open]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodOpendir, rel); err != nil {
		sink.Err(err)
		return
	}
	f, err := os.Open(fs.absPath(rel))
	if err != nil {
		sink.Err(errno(err))
		return
	}
	handle := fs.handles.insert(f, rel, true)
	sink.Ok(fusereply.Open{Handle: handle})
}

// ReadDir serves entries lazily from the directory stream seeded by
// OpenDir, honouring the kernel's offset cookie.
func (fs *FileSystem) ReadDir(ctx context.Context, ino uint64, handle uint64, offset uint64, size int, sink *fusereply.Sink[fusereply.DirEntries]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodReaddir, rel); err != nil {
		sink.Err(err)
		return
	}
	h, ok := fs.handles.get(handle)
	if !ok || !h.dir {
		sink.Err(syscall.EBADF)
		return
	}
	if offset == 0 || h.entries == nil {
		entries, err := h.file.ReadDir(-1)
		if err != nil {
			sink.Err(errno(err))
			return
		}
		h.entries = entries
	}

	buf := make([]byte, size)
	n := 0
	for i := uint64(offset); i < uint64(len(h.entries)); i++ {
		e := h.entries[i]
		fi, err := e.Info()
		if err != nil {
			continue
		}
		childIno := fs.inodes.inoForDisplay(filepath.Join(rel, e.Name()))
		entry := dirent{name: e.Name(), ino: childIno, offset: i + 1, mode: fi.Mode()}
		wrote := writeDirent(buf[n:], entry)
		if wrote == 0 {
			break
		}
		n += wrote
	}
	sink.Ok(fusereply.DirEntries{Bytes: buf[:n]})
}

// ReleaseDirHandle releases a directory handle previously returned by
// OpenDir.
func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, handle uint64, sink *fusereply.Sink[fusereply.Empty]) {
	h, ok := fs.handles.remove(handle)
	var rel string
	if ok {
		rel = h.rel
	}
	err := fs.inject(ctx, injector.MethodReleasedir, rel)
	// The descriptor is exclusively owned by this handle record (spec.md
	// §3 "File Handle"); it is closed unconditionally so a faulted release
	// never leaks it, even though the injected error still becomes the
	// reply.
	if ok && h.file != nil {
		if cerr := h.file.Close(); cerr != nil {
			logger.Warnf("hookfs: close dir handle %d: %v", handle, cerr)
		}
	}
	if err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Empty{})
}

// FsyncDir flushes a directory handle's metadata to storage. jacobsa/fuse
// has no corresponding op type to route a kernel request to this method
// (see DESIGN.md), but it is fully implemented and reachable from tests so
// the "fsyncdir" entry in the Method vocabulary (spec.md §6) is not a dead
// filter target.
func (fs *FileSystem) FsyncDir(ctx context.Context, ino uint64, handle uint64, sink *fusereply.Sink[fusereply.Empty]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodFsyncdir, rel); err != nil {
		sink.Err(err)
		return
	}
	h, ok := fs.handles.get(handle)
	if !ok || !h.dir {
		sink.Err(syscall.EBADF)
		return
	}
	if err := h.file.Sync(); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Empty{})
}

// OpenFile opens ino (which must be a regular file) with flags.
func (fs *FileSystem) OpenFile(ctx context.Context, ino uint64, flags int, sink *fusereply.Sink[fusereply.Open]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodOpen, rel); err != nil {
		sink.Err(err)
		return
	}
	f, err := os.OpenFile(fs.absPath(rel), flags, 0)
	if err != nil {
		sink.Err(errno(err))
		return
	}
	handle := fs.handles.insert(f, rel, false)
	sink.Ok(fusereply.Open{Handle: handle})
}

// ReadFile reads up to size bytes at offset from an open file handle.
func (fs *FileSystem) ReadFile(ctx context.Context, ino uint64, handle uint64, offset int64, size int, sink *fusereply.Sink[fusereply.Data]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodRead, rel); err != nil {
		sink.Err(err)
		return
	}
	h, ok := fs.handles.get(handle)
	if !ok || h.dir {
		sink.Err(syscall.EBADF)
		return
	}
	buf := make([]byte, size)
	n, err := h.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Data{Bytes: buf[:n]})
}

// WriteFile writes data at offset to an open file handle.
func (fs *FileSystem) WriteFile(ctx context.Context, ino uint64, handle uint64, offset int64, data []byte, sink *fusereply.Sink[fusereply.Write]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodWrite, rel); err != nil {
		sink.Err(err)
		return
	}
	h, ok := fs.handles.get(handle)
	if !ok || h.dir {
		sink.Err(syscall.EBADF)
		return
	}
	n, err := h.file.WriteAt(data, offset)
	if err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Write{Size: n})
}

// SyncFile flushes ino's open handle contents to storage.
func (fs *FileSystem) SyncFile(ctx context.Context, ino uint64, handle uint64, sink *fusereply.Sink[fusereply.Empty]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodFsync, rel); err != nil {
		sink.Err(err)
		return
	}
	h, ok := fs.handles.get(handle)
	if !ok {
		sink.Err(syscall.EBADF)
		return
	}
	if err := h.file.Sync(); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Empty{})
}

// FlushFile is sent when a file descriptor referencing ino's handle is
// closed; passthrough has nothing extra to flush beyond what Sync does.
func (fs *FileSystem) FlushFile(ctx context.Context, ino uint64, handle uint64, sink *fusereply.Sink[fusereply.Empty]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodFlush, rel); err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Empty{})
}

// ReleaseFileHandle releases a file handle previously returned by
// OpenFile or CreateFile.
func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, handle uint64, sink *fusereply.Sink[fusereply.Empty]) {
	h, ok := fs.handles.remove(handle)
	var rel string
	if ok {
		rel = h.rel
	}
	err := fs.inject(ctx, injector.MethodRelease, rel)
	// As in ReleaseDirHandle: the host descriptor is always closed so a
	// faulted release never leaks it.
	if ok && h.file != nil {
		if cerr := h.file.Close(); cerr != nil {
			logger.Warnf("hookfs: close file handle %d: %v", handle, cerr)
		}
	}
	if err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Empty{})
}

// StatFS reports filesystem-wide statistics for the backing directory.
func (fs *FileSystem) StatFS(ctx context.Context, sink *fusereply.Sink[fusereply.Statfs]) {
	if err := fs.inject(ctx, injector.MethodStatfs, ""); err != nil {
		sink.Err(err)
		return
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(fs.root, &st); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Statfs{
		BlockSize:       uint32(st.Bsize),
		Blocks:          st.Blocks,
		BlocksFree:      st.Bfree,
		BlocksAvailable: st.Bavail,
		IoSize:          uint32(st.Bsize),
		Inodes:          st.Files,
		InodesFree:      st.Ffree,
	})
}

// SetXattr sets an extended attribute on ino.
func (fs *FileSystem) SetXattr(ctx context.Context, ino uint64, name string, value []byte, sink *fusereply.Sink[fusereply.Empty]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodSetxattr, rel); err != nil {
		sink.Err(err)
		return
	}
	if err := setXattr(fs.absPath(rel), name, value); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Empty{})
}

// GetXattr returns the value of an extended attribute on ino.
func (fs *FileSystem) GetXattr(ctx context.Context, ino uint64, name string, sink *fusereply.Sink[fusereply.Xattr]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodGetxattr, rel); err != nil {
		sink.Err(err)
		return
	}
	v, err := getXattr(fs.absPath(rel), name)
	if err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Xattr{Bytes: v})
}

// ListXattr returns the null-separated names of ino's extended attributes.
func (fs *FileSystem) ListXattr(ctx context.Context, ino uint64, sink *fusereply.Sink[fusereply.Xattr]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodListxattr, rel); err != nil {
		sink.Err(err)
		return
	}
	v, err := listXattr(fs.absPath(rel))
	if err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Xattr{Bytes: v})
}

// RemoveXattr removes an extended attribute from ino.
func (fs *FileSystem) RemoveXattr(ctx context.Context, ino uint64, name string, sink *fusereply.Sink[fusereply.Empty]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodRemovexattr, rel); err != nil {
		sink.Err(err)
		return
	}
	if err := removeXattr(fs.absPath(rel), name); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Empty{})
}

// Access checks ino against the requested access mask.
func (fs *FileSystem) Access(ctx context.Context, ino uint64, mask uint32, sink *fusereply.Sink[fusereply.Empty]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodAccess, rel); err != nil {
		sink.Err(err)
		return
	}
	if err := syscall.Access(fs.absPath(rel), mask); err != nil {
		sink.Err(errno(err))
		return
	}
	sink.Ok(fusereply.Empty{})
}

// GetLk reports whether a conflicting lock exists on ino's range.
func (fs *FileSystem) GetLk(ctx context.Context, ino uint64, handle uint64, start, end uint64, lockType int32, pid uint32, sink *fusereply.Sink[fusereply.Lock]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodGetlk, rel); err != nil {
		sink.Err(err)
		return
	}
	// Passthrough never tracks POSIX locks of its own; report the probe
	// back unchanged (no conflicting lock), matching local-fs behaviour
	// for files nobody else has locked.
	sink.Ok(fusereply.Lock{Type: lockType, Start: start, End: end, Pid: pid})
}

// SetLk runs the injector chain for a POSIX lock request on ino's range
// and then reports success. The lock is neither recorded nor applied to
// the backing file, so conflicting requests are not detected.
func (fs *FileSystem) SetLk(ctx context.Context, ino uint64, handle uint64, start, end uint64, lockType int32, sink *fusereply.Sink[fusereply.Empty]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodSetlk, rel); err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Empty{})
}

// Bmap maps a logical file block to a physical device block; passthrough
// has no block device underneath, so it returns the identity mapping.
func (fs *FileSystem) Bmap(ctx context.Context, ino uint64, block uint64, sink *fusereply.Sink[fusereply.Bmap]) {
	rel, ok := fs.relPath(ino)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	if err := fs.inject(ctx, injector.MethodBmap, rel); err != nil {
		sink.Err(err)
		return
	}
	sink.Ok(fusereply.Bmap{Block: block})
}

// MkNod creates a non-directory, non-symlink inode (device node, FIFO, or
// socket) named name inside parent.
func (fs *FileSystem) MkNod(ctx context.Context, parent uint64, name string, mode os.FileMode, rdev uint32, sink *fusereply.Sink[fusereply.Entry]) {
	parentRel, ok := fs.relPath(parent)
	if !ok {
		sink.Err(syscall.ENOENT)
		return
	}
	rel := filepath.Join(parentRel, name)
	if err := fs.inject(ctx, injector.MethodMknod, rel); err != nil {
		sink.Err(err)
		return
	}
	unixMode := uint32(mode.Perm())
	switch {
	case mode&os.ModeNamedPipe != 0:
		unixMode |= syscall.S_IFIFO
	case mode&os.ModeSocket != 0:
		unixMode |= syscall.S_IFSOCK
	case mode&os.ModeCharDevice != 0:
		unixMode |= syscall.S_IFCHR
	case mode&os.ModeDevice != 0:
		unixMode |= syscall.S_IFBLK
	default:
		unixMode |= syscall.S_IFREG
	}
	if err := syscall.Mknod(fs.absPath(rel), unixMode, int(rdev)); err != nil {
		sink.Err(errno(err))
		return
	}
	fi, err := os.Lstat(fs.absPath(rel))
	if err != nil {
		sink.Err(errno(err))
		return
	}
	ino := fs.inodes.lookUpOrMint(rel)
	attr := attrFromFileInfo(ino, fi)
	fs.injectAttr(&attr, rel)
	sink.Ok(fusereply.Entry{Child: ino, Generation: 1, Attr: attr, AttrExpiration: time.Now().Add(attrTTL), EntryExpiration: time.Now().Add(attrTTL)})
}
