package hookfs

import (
	"os"
	"syscall"
	"time"

	"github.com/iofault/fi/internal/injector"
)

// attrFromFileInfo builds an injector.Attr from a backing-directory stat
// result, substituting the hook-allocated inode number as spec.md §4.G
// requires ("the hook-allocated inode number substituted").
func attrFromFileInfo(ino uint64, fi os.FileInfo) injector.Attr {
	attr := injector.Attr{
		Ino:  ino,
		Size: uint64(fi.Size()),
		Mode: fi.Mode(),
		Mtime: fi.ModTime(),
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		attr.Nlink = uint32(st.Nlink)
		attr.Uid = st.Uid
		attr.Gid = st.Gid
		attr.Rdev = uint32(st.Rdev)
		attr.Blocks = uint64(st.Blocks)
		attr.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		attr.Ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
		attr.Crtime = attr.Ctime
	}

	return attr
}
