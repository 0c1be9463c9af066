// Package dispatcher implements the Async FUSE Dispatcher (spec.md §4.F):
// it owns a bounded pool of worker goroutines that pull decoded kernel
// requests off a channel fed by the connection's read loop, invoke the
// Hook Filesystem, and fulfil the matching Reply Sink.
package dispatcher

import (
	"context"
	"io"
	"runtime"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"golang.org/x/sync/errgroup"

	"github.com/iofault/fi/internal/fusereply"
	"github.com/iofault/fi/internal/hookfs"
	"github.com/iofault/fi/internal/injector"
	"github.com/iofault/fi/internal/logger"
)

// Dispatcher implements fuse.Server. Each incoming op is independent; the
// kernel's per-file-handle ordering is preserved only to the extent the
// kernel itself serializes issuance (spec.md §4.F/§5).
type Dispatcher struct {
	fs      *hookfs.FileSystem
	workers int
}

// New builds a Dispatcher over fs with workers worker goroutines. workers
// <= 0 defaults to runtime.GOMAXPROCS(0).
func New(fs *hookfs.FileSystem, workers int) *Dispatcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Dispatcher{fs: fs, workers: workers}
}

type job struct {
	ctx context.Context
	op  fuseops.Op
}

// ServeOps implements fuse.Server. The connection-reading goroutine never
// runs an op itself: it hands each op to the worker pool, and waits for a
// free worker only when every worker is busy.
func (d *Dispatcher) ServeOps(c *fuse.Connection) {
	jobs := make(chan job)

	var g errgroup.Group
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for j := range jobs {
				d.handle(j.ctx, j.op)
			}
			return nil
		})
	}

	for {
		ctx, op, err := c.ReadOp()
		if err != nil {
			if err != io.EOF {
				logger.Errorf("dispatcher: read op: %v", err)
			}
			break
		}
		jobs <- job{ctx: ctx, op: op}
	}

	close(jobs)
	_ = g.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, op fuseops.Op) {
	switch typed := op.(type) {
	case *fuseops.LookUpInodeOp:
		d.fs.LookUpInode(ctx, uint64(typed.Parent), typed.Name,
			fusereply.New(typed, func(e fusereply.Entry) { applyEntry(&typed.Entry, e) }))

	case *fuseops.GetInodeAttributesOp:
		d.fs.GetInodeAttributes(ctx, uint64(typed.Inode),
			fusereply.New(typed, func(a fusereply.Attr) {
				typed.Attributes = toInodeAttributes(a.Attr)
				typed.AttributesExpiration = a.Expiration
			}))

	case *fuseops.SetInodeAttributesOp:
		req := hookfs.SetAttrRequest{Size: typed.Size, Mode: typed.Mode, Atime: typed.Atime, Mtime: typed.Mtime}
		d.fs.SetInodeAttributes(ctx, uint64(typed.Inode), req,
			fusereply.New(typed, func(a fusereply.Attr) {
				typed.Attributes = toInodeAttributes(a.Attr)
				typed.AttributesExpiration = a.Expiration
			}))

	case *fuseops.ForgetInodeOp:
		d.fs.ForgetInode(ctx, uint64(typed.Inode), uint64(typed.N), fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.MkDirOp:
		d.fs.MkDir(ctx, uint64(typed.Parent), typed.Name, typed.Mode,
			fusereply.New(typed, func(e fusereply.Entry) { applyEntry(&typed.Entry, e) }))

	case *fuseops.CreateFileOp:
		d.fs.CreateFile(ctx, uint64(typed.Parent), typed.Name, typed.Mode,
			fusereply.New(typed, func(c fusereply.Create) {
				applyEntry(&typed.Entry, c.Entry)
				typed.Handle = fuseops.HandleID(c.Handle)
			}))

	case *fuseops.CreateSymlinkOp:
		d.fs.CreateSymlink(ctx, uint64(typed.Parent), typed.Name, typed.Target,
			fusereply.New(typed, func(e fusereply.Entry) { applyEntry(&typed.Entry, e) }))

	case *fuseops.RmDirOp:
		d.fs.RmDir(ctx, uint64(typed.Parent), typed.Name, fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.UnlinkOp:
		d.fs.Unlink(ctx, uint64(typed.Parent), typed.Name, fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.OpenDirOp:
		d.fs.OpenDir(ctx, uint64(typed.Inode),
			fusereply.New(typed, func(o fusereply.Open) { typed.Handle = fuseops.HandleID(o.Handle) }))

	case *fuseops.ReadDirOp:
		d.fs.ReadDir(ctx, uint64(typed.Inode), uint64(typed.Handle), uint64(typed.Offset), typed.Size,
			fusereply.New(typed, func(d fusereply.DirEntries) { typed.Data = d.Bytes }))

	case *fuseops.ReleaseDirHandleOp:
		d.fs.ReleaseDirHandle(ctx, uint64(typed.Handle), fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.OpenFileOp:
		d.fs.OpenFile(ctx, uint64(typed.Inode), openFlags(typed),
			fusereply.New(typed, func(o fusereply.Open) { typed.Handle = fuseops.HandleID(o.Handle) }))

	case *fuseops.ReadFileOp:
		d.fs.ReadFile(ctx, uint64(typed.Inode), uint64(typed.Handle), typed.Offset, typed.Size,
			fusereply.New(typed, func(dt fusereply.Data) { typed.Data = dt.Bytes }))

	case *fuseops.ReadSymlinkOp:
		d.fs.ReadSymlink(ctx, uint64(typed.Inode),
			fusereply.New(typed, func(dt fusereply.Data) { typed.Target = string(dt.Bytes) }))

	case *fuseops.WriteFileOp:
		d.fs.WriteFile(ctx, uint64(typed.Inode), uint64(typed.Handle), typed.Offset, typed.Data,
			fusereply.New(typed, func(fusereply.Write) {}))

	case *fuseops.SyncFileOp:
		d.fs.SyncFile(ctx, uint64(typed.Inode), uint64(typed.Handle), fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.FlushFileOp:
		d.fs.FlushFile(ctx, uint64(typed.Inode), uint64(typed.Handle), fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.ReleaseFileHandleOp:
		d.fs.ReleaseFileHandle(ctx, uint64(typed.Handle), fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.RenameOp:
		d.fs.Rename(ctx, uint64(typed.OldParent), typed.OldName, uint64(typed.NewParent), typed.NewName,
			fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.CreateLinkOp:
		d.fs.Link(ctx, uint64(typed.Target), uint64(typed.Parent), typed.Name,
			fusereply.New(typed, func(e fusereply.Entry) { applyEntry(&typed.Entry, e) }))

	case *fuseops.MkNodOp:
		d.fs.MkNod(ctx, uint64(typed.Parent), typed.Name, typed.Mode, uint32(typed.Rdev),
			fusereply.New(typed, func(e fusereply.Entry) { applyEntry(&typed.Entry, e) }))

	case *fuseops.StatFSOp:
		d.fs.StatFS(ctx, fusereply.New(typed, func(s fusereply.Statfs) {
			typed.BlockSize = s.BlockSize
			typed.Blocks = s.Blocks
			typed.BlocksFree = s.BlocksFree
			typed.BlocksAvailable = s.BlocksAvailable
			typed.IoSize = s.IoSize
			typed.Inodes = s.Inodes
			typed.InodesFree = s.InodesFree
		}))

	case *fuseops.SetXattrOp:
		d.fs.SetXattr(ctx, uint64(typed.Inode), typed.Name, typed.Value, fusereply.New(typed, func(fusereply.Empty) {}))

	case *fuseops.GetXattrOp:
		d.fs.GetXattr(ctx, uint64(typed.Inode), typed.Name, fusereply.New(typed, func(x fusereply.Xattr) {
			typed.BytesRead = len(x.Bytes)
			if len(typed.Dst) >= len(x.Bytes) {
				copy(typed.Dst, x.Bytes)
			}
		}))

	case *fuseops.ListXattrOp:
		d.fs.ListXattr(ctx, uint64(typed.Inode), fusereply.New(typed, func(x fusereply.Xattr) {
			typed.BytesRead = len(x.Bytes)
			if len(typed.Dst) >= len(x.Bytes) {
				copy(typed.Dst, x.Bytes)
			}
		}))

	case *fuseops.RemoveXattrOp:
		d.fs.RemoveXattr(ctx, uint64(typed.Inode), typed.Name, fusereply.New(typed, func(fusereply.Empty) {}))

	default:
		// Unimplemented op: respond ENOSYS rather than leaving the kernel
		// waiting, matching fuseutil.NewFileSystemServer's default case.
		typed.Respond(syscall.ENOSYS)
	}
}

func applyEntry(dst *fuseops.ChildInodeEntry, e fusereply.Entry) {
	dst.Child = fuseops.InodeID(e.Child)
	dst.Generation = fuseops.GenerationNumber(e.Generation)
	dst.Attributes = toInodeAttributes(e.Attr)
	dst.AttributesExpiration = e.AttrExpiration
	dst.EntryExpiration = e.EntryExpiration
}

func toInodeAttributes(a injector.Attr) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   a.Size,
		Nlink:  uint64(a.Nlink),
		Mode:   a.Mode,
		Atime:  a.Atime,
		Mtime:  a.Mtime,
		Ctime:  a.Ctime,
		Crtime: a.Crtime,
		Uid:    a.Uid,
		Gid:    a.Gid,
	}
}

// openFlags normalizes whatever flags type the installed jacobsa/fuse
// version attaches to OpenFileOp into the plain int os.OpenFile expects.
func openFlags(op *fuseops.OpenFileOp) int {
	return int(op.Flags)
}
