// Package replacer implements the Descriptor Replacer (spec.md §4.D): it
// finds every file descriptor a target process has open under a given
// directory and, while the target's threads are held stopped by a Tracer,
// rewrites each to point at the same relative path under a different
// directory (the interposed FUSE mount on inject, or the real backing
// directory on resume) using ptrace-assisted syscall injection.
package replacer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iofault/fi/internal/logger"
	"github.com/iofault/fi/internal/tracer"
)

// Descriptor is one open file descriptor discovered under the original
// path, along with enough state to reopen an equivalent one elsewhere.
type Descriptor struct {
	FD     uint64 // descriptor number in the target
	Suffix string // path relative to the scanned root, "" for the root itself
	Flags  int    // open(2) flags, parsed from /proc/<pid>/fdinfo
	Offset int64  // current seek offset, parsed from /proc/<pid>/fdinfo
}

// Replacer holds the state of one prepare/run/detach pass (spec.md §4.D).
type Replacer struct {
	pid         int
	att         *tracer.Attachment
	descriptors []Descriptor
}

// Prepare scans /proc/<pid>/fd for every descriptor whose resolved target
// lies under originalPath, and takes this pass's share of the pid's
// tracer attachment. The scan tolerates descriptors closing concurrently;
// it does not tolerate the target process itself disappearing.
func Prepare(pid int, originalPath string) (*Replacer, error) {
	descs, err := scanDescriptors(pid, originalPath)
	if err != nil {
		return nil, fmt.Errorf("replacer: prepare: %w", err)
	}

	att, err := tracer.Attach(pid)
	if err != nil {
		return nil, fmt.Errorf("replacer: attach tracer: %w", err)
	}

	logger.Debugf("replacer: prepared %d descriptor(s) under %s for pid %d", len(descs), originalPath, pid)
	return &Replacer{pid: pid, att: att, descriptors: descs}, nil
}

// Run rewrites every prepared descriptor to point at newPath+suffix. A
// failure on any single descriptor is recorded and returned but does not
// abort the pass. A failure up to and including dup2 leaves the descriptor
// unchanged; a failure to close the temporary descriptor after dup2 is
// returned too, although the descriptor has then already been rewritten.
func (r *Replacer) Run(newPath string) []error {
	var errs []error
	err := r.att.WithThreadsStopped(func(tids []int) error {
		if len(tids) == 0 {
			return fmt.Errorf("replacer: no stopped threads to inject through")
		}
		// Syscall injection only needs one stopped thread sharing the
		// target's address space and file descriptor table; the first
		// listed thread is as good as any other.
		tid := tids[0]

		for _, d := range r.descriptors {
			target := filepath.Join(newPath, d.Suffix)
			if err := replaceOne(tid, target, d); err != nil {
				errs = append(errs, fmt.Errorf("fd %d (%s): %w", d.FD, target, err))
				logger.Warnf("replacer: fd %d not rewritten: %v", d.FD, err)
			}
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Detach releases this pass's share of the tracer attachment.
func (r *Replacer) Detach() {
	r.att.Detach()
}

// scanDescriptors enumerates /proc/<pid>/fd, keeping only entries resolved
// under base.
func scanDescriptors(pid int, originalPath string) ([]Descriptor, error) {
	base := filepath.Clean(originalPath)
	fdDir := fmt.Sprintf("/proc/%d/fd", pid)

	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fdDir, err)
	}

	var out []Descriptor
	for _, e := range entries {
		fd, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}

		target, err := os.Readlink(filepath.Join(fdDir, e.Name()))
		if err != nil {
			// The descriptor closed between ReadDir and Readlink; it no
			// longer needs rewriting.
			continue
		}

		suffix, ok := underPath(base, target)
		if !ok {
			continue
		}

		flags, offset, err := readFdInfo(pid, fd)
		if err != nil {
			continue
		}

		out = append(out, Descriptor{FD: fd, Suffix: suffix, Flags: flags, Offset: offset})
	}
	return out, nil
}

// underPath reports whether target lies at or under base, and if so the
// path relative to base ("" for base itself).
func underPath(base, target string) (string, bool) {
	target = filepath.Clean(target)
	if target == base {
		return "", true
	}
	prefix := base + string(filepath.Separator)
	if strings.HasPrefix(target, prefix) {
		return strings.TrimPrefix(target, prefix), true
	}
	return "", false
}

// readFdInfo parses the "flags" (octal, open(2) flags) and "pos" (decimal,
// current seek offset) fields out of /proc/<pid>/fdinfo/<fd>.
func readFdInfo(pid int, fd uint64) (flags int, offset int64, err error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/fdinfo/%d", pid, fd))
	if err != nil {
		return 0, 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "pos":
			if v, e := strconv.ParseInt(fields[1], 10, 64); e == nil {
				offset = v
			}
		case "flags":
			if v, e := strconv.ParseInt(fields[1], 8, 64); e == nil {
				flags = int(v)
			}
		}
	}
	return flags, offset, nil
}
