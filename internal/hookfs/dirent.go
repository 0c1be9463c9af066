package hookfs

import (
	"os"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// dirent is one readdir record before kernel-wire serialization.
type dirent struct {
	name   string
	ino    uint64
	offset uint64
	mode   os.FileMode
}

// writeDirent serializes d into buf in the kernel's expected wire format
// via fuseutil.WriteDirent, returning the number of bytes written, or zero
// if d does not fit in the remaining budget.
func writeDirent(buf []byte, d dirent) int {
	return fuseutil.WriteDirent(buf, fuseutil.Dirent{
		Offset: fuseops.DirOffset(d.offset),
		Inode:  fuseops.InodeID(d.ino),
		Name:   d.name,
		Type:   direntType(d.mode),
	})
}

// direntType maps a Go file mode to the FUSE dirent type fuseutil expects.
func direntType(mode os.FileMode) fuseutil.DirentType {
	switch {
	case mode&os.ModeDir != 0:
		return fuseutil.DT_Directory
	case mode&os.ModeSymlink != 0:
		return fuseutil.DT_Link
	case mode&os.ModeNamedPipe != 0:
		return fuseutil.DT_FIFO
	case mode&os.ModeSocket != 0:
		return fuseutil.DT_Socket
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		return fuseutil.DT_Char
	case mode&os.ModeDevice != 0:
		return fuseutil.DT_Block
	default:
		return fuseutil.DT_File
	}
}
