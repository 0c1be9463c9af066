package injector

// Method names one FUSE operation the hook filesystem implements. It is the
// filter axis alongside path glob matching.
type Method string

const (
	MethodLookup      Method = "lookup"
	MethodGetattr     Method = "getattr"
	MethodSetattr     Method = "setattr"
	MethodForget      Method = "forget"
	MethodMknod       Method = "mknod"
	MethodMkdir       Method = "mkdir"
	MethodCreate      Method = "create"
	MethodRmdir       Method = "rmdir"
	MethodUnlink      Method = "unlink"
	MethodSymlink     Method = "symlink"
	MethodReadlink    Method = "readlink"
	MethodRename      Method = "rename"
	MethodLink        Method = "link"
	MethodOpen        Method = "open"
	MethodRead        Method = "read"
	MethodWrite       Method = "write"
	MethodFlush       Method = "flush"
	MethodRelease     Method = "release"
	MethodFsync       Method = "fsync"
	MethodOpendir     Method = "opendir"
	MethodReaddir     Method = "readdir"
	MethodReleasedir  Method = "releasedir"
	MethodFsyncdir    Method = "fsyncdir"
	MethodStatfs      Method = "statfs"
	MethodSetxattr    Method = "setxattr"
	MethodGetxattr    Method = "getxattr"
	MethodListxattr   Method = "listxattr"
	MethodRemovexattr Method = "removexattr"
	MethodAccess      Method = "access"
	MethodGetlk       Method = "getlk"
	MethodSetlk       Method = "setlk"
	MethodBmap        Method = "bmap"
)

// allMethods is the full vocabulary accepted in configuration; anything
// else fails parsing (spec.md §6: "unknown tags fail configuration
// parsing").
var allMethods = map[Method]bool{
	MethodLookup: true, MethodGetattr: true, MethodSetattr: true,
	MethodForget: true, MethodMknod: true, MethodMkdir: true,
	MethodCreate: true, MethodRmdir: true, MethodUnlink: true,
	MethodSymlink: true, MethodReadlink: true, MethodRename: true,
	MethodLink: true, MethodOpen: true, MethodRead: true,
	MethodWrite: true, MethodFlush: true, MethodRelease: true,
	MethodFsync: true, MethodOpendir: true, MethodReaddir: true,
	MethodReleasedir: true, MethodFsyncdir: true, MethodStatfs: true,
	MethodSetxattr: true, MethodGetxattr: true, MethodListxattr: true,
	MethodRemovexattr: true, MethodAccess: true, MethodGetlk: true,
	MethodSetlk: true, MethodBmap: true,
}

// ParseMethod validates s against the known method vocabulary.
func ParseMethod(s string) (Method, bool) {
	m := Method(s)
	if !allMethods[m] {
		return "", false
	}
	return m, true
}
