// Package fusedev provides the small piece of device bookkeeping the
// Mount Orchestrator needs before it can bind a FUSE session into a
// possibly-minimal target mount namespace: discovering the host's
// /dev/fuse major/minor and making sure a matching device node exists
// wherever the session is about to be mounted.
package fusedev

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Path is the conventional location of the FUSE character device.
const Path = "/dev/fuse"

// fuseMajor is the kernel's fixed major number for misc devices, which
// /dev/fuse is registered under; only the minor is dynamic.
const fuseMajor = 10

// HostDeviceNumbers reads /proc/misc to find the minor number the running
// kernel assigned to the "fuse" misc device. Target containers commonly
// run under the same kernel, so this number is valid for the mknod the
// orchestrator performs inside the target's mount namespace.
func HostDeviceNumbers() (major, minor uint32, err error) {
	f, err := os.Open("/proc/misc")
	if err != nil {
		return 0, 0, fmt.Errorf("fusedev: open /proc/misc: %w", err)
	}
	defer f.Close()

	minor, err = parseFuseMinor(f)
	if err != nil {
		return 0, 0, err
	}
	return fuseMajor, minor, nil
}

// parseFuseMinor scans /proc/misc-formatted text for the "fuse" entry's
// minor number. Split out from HostDeviceNumbers so it can be tested
// against a fixed string instead of the host's actual /proc/misc.
func parseFuseMinor(r io.Reader) (uint32, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 2 && fields[1] == "fuse" {
			n, err := strconv.ParseUint(fields[0], 10, 32)
			if err != nil {
				return 0, fmt.Errorf("fusedev: parse minor %q: %w", fields[0], err)
			}
			return uint32(n), nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("fusedev: scan /proc/misc: %w", err)
	}
	return 0, fmt.Errorf("fusedev: no \"fuse\" entry in /proc/misc")
}

// Ensure makes sure a /dev/fuse character device exists at Path with the
// given major/minor, creating it if absent. Intended to run inside the
// target's mount namespace, since that is whose /dev may be missing the
// node. A pre-existing node (however it got there) is left untouched.
func Ensure(major, minor uint32) error {
	if _, err := os.Stat(Path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("fusedev: stat %s: %w", Path, err)
	}

	dev := unix.Mkdev(major, minor)
	if err := unix.Mknod(Path, unix.S_IFCHR|0666, int(dev)); err != nil {
		return fmt.Errorf("fusedev: mknod %s: %w", Path, err)
	}
	return nil
}
