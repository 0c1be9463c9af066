package hookfs

import "golang.org/x/sys/unix"

// setXattr, getXattr, listXattr, and removeXattr wrap the raw Linux xattr
// syscalls (golang.org/x/sys/unix) against symlink-aware paths, since the
// passthrough filesystem must not dereference a symlink to reach its
// attribute store.

func setXattr(path, name string, value []byte) error {
	return unix.Lsetxattr(path, name, value, 0)
}

func getXattr(path, name string) ([]byte, error) {
	size, err := unix.Lgetxattr(path, name, nil)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, size)
	n, err := unix.Lgetxattr(path, name, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func listXattr(path string) ([]byte, error) {
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, size)
	n, err := unix.Llistxattr(path, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func removeXattr(path, name string) error {
	return unix.Lremovexattr(path, name)
}
