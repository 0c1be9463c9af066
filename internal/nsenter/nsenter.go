// Package nsenter implements the Namespace Gate (spec.md §4.A): running a
// closure on a fresh OS thread that has joined a target process's mount
// and PID namespaces, so mount-table mutations performed inside task land
// in the target's view of the filesystem rather than the injector's own.
package nsenter

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// JoinHandle is returned by Enter; Join blocks until task has returned.
type JoinHandle struct {
	done chan error
}

// Join blocks until the namespaced task completes and returns its error.
func (h *JoinHandle) Join() error {
	return <-h.done
}

// Enter spawns a fresh OS thread, attaches it to target's mount and PID
// namespaces, and runs task there. It returns once namespace attachment
// has either succeeded or failed; a failure to attach is fatal for this
// launch and no thread is leaked running task. The calling goroutine's own
// OS thread, and every other goroutine in the process, remains in its
// original namespaces — only the spawned thread moves.
func Enter(targetPID int, task func() error) (*JoinHandle, error) {
	attached := make(chan error, 1)
	h := &JoinHandle{done: make(chan error, 1)}

	go func() {
		// Namespace membership is a per-OS-thread kernel attribute; Go's
		// scheduler must never move this goroutine to another thread nor
		// reuse this thread for another goroutine once it has joined the
		// target's namespaces. LockOSThread is deliberately never paired
		// with UnlockOSThread: once this goroutine exits, the runtime
		// destroys the thread instead of returning it to the idle pool,
		// where it could otherwise be handed to an unrelated goroutine
		// that would then silently execute syscalls inside the target's
		// namespaces.
		runtime.LockOSThread()

		if err := joinNamespaces(targetPID); err != nil {
			attached <- err
			return
		}
		attached <- nil

		h.done <- task()
	}()

	if err := <-attached; err != nil {
		return nil, err
	}
	return h, nil
}

// joinNamespaces opens /proc/<pid>/ns/{mnt,pid} and associates the calling
// thread with both via setns(2). Order matters: the PID namespace handle
// must be opened before the mount namespace is joined, since after
// joining a different mount namespace /proc may no longer resolve the
// target's paths the same way.
func joinNamespaces(pid int) error {
	pidNS, err := os.Open(fmt.Sprintf("/proc/%d/ns/pid", pid))
	if err != nil {
		return fmt.Errorf("nsenter: open pid ns for %d: %w", pid, err)
	}
	defer pidNS.Close()

	mntNS, err := os.Open(fmt.Sprintf("/proc/%d/ns/mnt", pid))
	if err != nil {
		return fmt.Errorf("nsenter: open mnt ns for %d: %w", pid, err)
	}
	defer mntNS.Close()

	if err := unix.Setns(int(pidNS.Fd()), unix.CLONE_NEWPID); err != nil {
		return fmt.Errorf("nsenter: setns pid %d: %w", pid, err)
	}
	if err := unix.Setns(int(mntNS.Fd()), unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("nsenter: setns mnt %d: %w", pid, err)
	}
	return nil
}
