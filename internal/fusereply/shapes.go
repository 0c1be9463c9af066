package fusereply

import (
	"time"

	"github.com/iofault/fi/internal/injector"
)

// Attr is the value shape for getattr/setattr replies.
type Attr struct {
	Attr       injector.Attr
	Expiration time.Time
}

// Entry is the value shape for lookup/mkdir/symlink/mknod replies: a
// freshly minted or resolved child inode.
type Entry struct {
	Child              uint64
	Generation         uint64
	Attr               injector.Attr
	AttrExpiration     time.Time
	EntryExpiration    time.Time
}

// Data is the value shape for read and readlink replies.
type Data struct {
	Bytes []byte
}

// Open is the value shape for open/opendir replies.
type Open struct {
	Handle      uint64
	KeepCache   bool
	DirectIO    bool
}

// Write is the value shape for write replies.
type Write struct {
	Size int
}

// Statfs is the value shape for statfs replies.
type Statfs struct {
	BlockSize       uint32
	Blocks          uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	IoSize          uint32
	Inodes          uint64
	InodesFree      uint64
}

// DirEntries is the value shape for readdir replies: a pre-serialized
// buffer of kernel directory entries (built with fuseutil.WriteDirent),
// truncated to the requested size by the caller.
type DirEntries struct {
	Bytes []byte
}

// Xattr is the value shape for getxattr/listxattr replies.
type Xattr struct {
	Bytes []byte
}

// Lock is the value shape for getlk replies.
type Lock struct {
	Type  int32
	Start uint64
	End   uint64
	Pid   uint32
}

// Bmap is the value shape for bmap replies.
type Bmap struct {
	Block uint64
}

// Create is the value shape for create replies: an Entry plus the file
// handle minted by the same call.
type Create struct {
	Entry  Entry
	Handle uint64
}

// Empty is the value shape for replies that carry no payload (forget,
// unlink, rmdir, flush, release, fsync, setxattr, removexattr, access, ...).
type Empty struct{}
